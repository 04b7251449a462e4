// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command irc-redis-bridge connects to an IRC server and mirrors its
// traffic into Redis. Incoming lines are kept in a bounded history list and
// announced over pub/sub; commands pushed onto a Redis queue are written
// back to IRC with flood control.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aiku/irc-redis-bridge/pkg/connector"
	"github.com/aiku/irc-redis-bridge/pkg/connector/ircconn"
	"github.com/aiku/irc-redis-bridge/pkg/connector/redisstore"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type options struct {
	configPath    string
	redisAddress  string
	historyLength int
	saveConfig    bool
}

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "irc-redis-bridge",
		Short:         "Bridge an IRC connection to Redis lists and pub/sub",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Tag, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the config file")
	flags.StringVarP(&opts.redisAddress, "redis", "r", "", "redis address, overrides redis.address (default redis://localhost/1)")
	flags.IntVarP(&opts.historyLength, "history-length", "l", 0, "number of lines kept in the history list, overrides bridge.history_limit (default 1000)")
	flags.BoolVar(&opts.saveConfig, "save-config", false, "write the upgraded config back to the config file")
	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	cfg, err := connector.LoadConfig(opts.configPath, opts.saveConfig)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("redis") {
		cfg.Redis.Address = opts.redisAddress
	}
	if cmd.Flags().Changed("history-length") {
		cfg.Bridge.HistoryLimit = opts.historyLength
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logPtr, err := cfg.Logging.Compile()
	if err != nil {
		return fmt.Errorf("%w: logging: %w", connector.ErrConfig, err)
	}
	log := *logPtr
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	irc := ircconn.New(cfg.IRC, log)
	if err := irc.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", connector.ErrProtocolSetup, err)
	}
	defer irc.Close()
	if err := irc.Identify(ctx); err != nil {
		return fmt.Errorf("%w: failed identifying: %w", connector.ErrProtocolSetup, err)
	}

	bridge := connector.NewBridge(cfg.Bridge, irc, redisstore.NewFactory(cfg.Redis.Address), nil, log)
	if cfg.AdminAPIAddr != "" {
		if _, err := bridge.StartAdminAPI(ctx, cfg.AdminAPIAddr); err != nil {
			return fmt.Errorf("%w: admin api: %w", connector.ErrConfig, err)
		}
	}
	return bridge.Run(ctx)
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		code := connector.ExitCode(err)
		log.Error().Err(err).Int("exit_code", code).Msg("Fatal error")
		os.Exit(code)
	}
}
