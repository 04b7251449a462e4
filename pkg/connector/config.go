// Copyright 2024-2026 Aiku AI

package connector

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Defaults applied when a field is left empty.
const (
	DefaultHistoryLimit      = 1000
	DefaultPopTimeout        = 10 * time.Second
	DefaultFloodInterval     = 1 * time.Second
	DefaultReconnectCooldown = 60 * time.Second
	DefaultRedisAddress      = "redis://localhost/1"
)

// Config is the full on-disk configuration.
type Config struct {
	IRC    IRCConfig    `yaml:"irc"`
	Redis  RedisConfig  `yaml:"redis"`
	Bridge BridgeConfig `yaml:"bridge"`
	// AdminAPIAddr is the listen address for /metrics and /healthz. Leave
	// empty to disable the admin API.
	AdminAPIAddr string `yaml:"admin_api_addr"`

	Logging zeroconfig.Config `yaml:"logging"`
}

// IRCConfig describes the IRC server and the identity the bridge registers with.
type IRCConfig struct {
	Server             string            `yaml:"server"`
	Port               int               `yaml:"port"`
	UseTLS             bool              `yaml:"use_tls"`
	InsecureSkipVerify bool              `yaml:"insecure_skip_verify"`
	Nickname           string            `yaml:"nickname"`
	AltNicknames       []string          `yaml:"alt_nicknames"`
	Username           string            `yaml:"username"`
	Realname           string            `yaml:"realname"`
	Password           string            `yaml:"password"`
	Channels           []string          `yaml:"channels"`
	ChannelKeys        map[string]string `yaml:"channel_keys"`
}

// Address returns the host:port to dial.
func (c *IRCConfig) Address() string {
	port := c.Port
	if port == 0 {
		if c.UseTLS {
			port = 6697
		} else {
			port = 6667
		}
	}
	return fmt.Sprintf("%s:%d", c.Server, port)
}

// RedisConfig holds the store address. Both redis:// URLs and bare
// host:port addresses are accepted.
type RedisConfig struct {
	Address string `yaml:"address"`
}

// BridgeConfig is the read-only configuration shared by both bridge loops.
type BridgeConfig struct {
	HistoryLimit      int
	PopTimeout        time.Duration
	FloodInterval     time.Duration
	ReconnectCooldown time.Duration
}

type rawBridgeConfig struct {
	HistoryLimit      int    `yaml:"history_limit"`
	PopTimeout        string `yaml:"pop_timeout"`
	FloodInterval     string `yaml:"flood_interval"`
	ReconnectCooldown string `yaml:"reconnect_cooldown"`
}

func (c *BridgeConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw rawBridgeConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.HistoryLimit = raw.HistoryLimit
	var err error
	if c.PopTimeout, err = parseDuration("pop_timeout", raw.PopTimeout); err != nil {
		return err
	}
	if c.FloodInterval, err = parseDuration("flood_interval", raw.FloodInterval); err != nil {
		return err
	}
	if c.ReconnectCooldown, err = parseDuration("reconnect_cooldown", raw.ReconnectCooldown); err != nil {
		return err
	}
	return nil
}

func (c BridgeConfig) MarshalYAML() (any, error) {
	return rawBridgeConfig{
		HistoryLimit:      c.HistoryLimit,
		PopTimeout:        c.PopTimeout.String(),
		FloodInterval:     c.FloodInterval.String(),
		ReconnectCooldown: c.ReconnectCooldown.String(),
	}, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("bridge.%s: %w", field, err)
	}
	return d, nil
}

// WithDefaults returns a copy with zero durations replaced by the defaults.
// HistoryLimit is left alone so that Validate can reject explicit zeros.
func (c BridgeConfig) WithDefaults() BridgeConfig {
	if c.PopTimeout == 0 {
		c.PopTimeout = DefaultPopTimeout
	}
	if c.FloodInterval == 0 {
		c.FloodInterval = DefaultFloodInterval
	}
	if c.ReconnectCooldown == 0 {
		c.ReconnectCooldown = DefaultReconnectCooldown
	}
	return c
}

// Validate checks the bridge tunables.
func (c *BridgeConfig) Validate() error {
	if c.HistoryLimit < 1 {
		return fmt.Errorf("%w: bridge.history_limit must be at least 1, got %d", ErrConfig, c.HistoryLimit)
	}
	if c.PopTimeout < 0 || c.FloodInterval < 0 || c.ReconnectCooldown < 0 {
		return fmt.Errorf("%w: bridge durations must not be negative", ErrConfig)
	}
	return nil
}

// Validate checks the whole configuration and fills in defaults.
func (c *Config) Validate() error {
	c.Bridge = c.Bridge.WithDefaults()
	if err := c.Bridge.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Redis.Address) == "" {
		c.Redis.Address = DefaultRedisAddress
	}
	if c.IRC.Server == "" {
		return fmt.Errorf("%w: irc.server is required", ErrConfig)
	}
	if c.IRC.Nickname == "" {
		return fmt.Errorf("%w: irc.nickname is required", ErrConfig)
	}
	if c.IRC.Username == "" {
		c.IRC.Username = c.IRC.Nickname
	}
	if c.IRC.Realname == "" {
		c.IRC.Realname = c.IRC.Nickname
	}
	if c.IRC.Port < 0 || c.IRC.Port > 65535 {
		return fmt.Errorf("%w: irc.port %d out of range", ErrConfig, c.IRC.Port)
	}
	return nil
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "irc", "server")
	helper.Copy(up.Int, "irc", "port")
	helper.Copy(up.Bool, "irc", "use_tls")
	helper.Copy(up.Bool, "irc", "insecure_skip_verify")
	helper.Copy(up.Str, "irc", "nickname")
	helper.Copy(up.List, "irc", "alt_nicknames")
	helper.Copy(up.Str, "irc", "username")
	helper.Copy(up.Str, "irc", "realname")
	helper.Copy(up.Str, "irc", "password")
	helper.Copy(up.List, "irc", "channels")
	helper.Copy(up.Map, "irc", "channel_keys")
	helper.Copy(up.Str, "redis", "address")
	helper.Copy(up.Int, "bridge", "history_limit")
	helper.Copy(up.Str, "bridge", "pop_timeout")
	helper.Copy(up.Str, "bridge", "flood_interval")
	helper.Copy(up.Str, "bridge", "reconnect_cooldown")
	helper.Copy(up.Str, "admin_api_addr")
	helper.Copy(up.Map, "logging")
}

// Upgrader returns the config upgrader that merges a user config onto
// ExampleConfig, keeping every value the user set.
func Upgrader() up.BaseUpgrader {
	return &up.StructUpgrader{
		SimpleUpgrader: up.SimpleUpgrader(upgradeConfig),
		Blocks: [][]string{
			{"redis"},
			{"bridge"},
			{"admin_api_addr"},
			{"logging"},
		},
		Base: ExampleConfig,
	}
}

// LoadConfig reads the config at path, upgrades it against the example
// config, and validates the result. When save is true the upgraded config
// is written back to path.
func LoadConfig(path string, save bool) (*Config, error) {
	data, _, err := up.Do(path, save, Upgrader())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load %s: %w", ErrConfig, path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates an already-upgraded config document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
