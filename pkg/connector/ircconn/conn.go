// Copyright 2024-2026 Aiku AI

// Package ircconn implements connector.ProtocolConn over a plain or TLS
// TCP connection using gopkg.in/irc.v4 for message parsing and encoding.
//
// Besides moving lines, the connection answers server PINGs, joins the
// configured channels once the MOTD is over, and walks through alternate
// nicknames while the chosen one is taken.
package ircconn

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/irc.v4"

	"github.com/aiku/irc-redis-bridge/pkg/connector"
)

// Numerics handled by the connection itself.
const (
	rplWelcome      = "001"
	rplEndOfMOTD    = "376"
	errNoMOTD       = "422"
	errNicknameUsed = "433"
)

const dialTimeout = 30 * time.Second

// ErrNotConnected is returned by Send and Identify before Connect succeeds
// or after Close.
var ErrNotConnected = errors.New("irc connection not established")

// Conn is a reconnectable IRC client connection. Writes are serialized by
// an internal mutex, so the inbound loop (reading and answering PINGs) and
// the outbound loop (sending commands) can share one Conn.
type Conn struct {
	cfg connector.IRCConfig
	log zerolog.Logger

	mu         sync.Mutex
	transport  net.Conn
	reader     *bufio.Reader
	writer     *irc.Writer
	nick       string
	altIndex   int
	registered bool
}

var _ connector.ProtocolConn = (*Conn)(nil)

// New creates an unconnected Conn. Call Connect before Identify.
func New(cfg connector.IRCConfig, log zerolog.Logger) *Conn {
	return &Conn{
		cfg:  cfg,
		log:  log.With().Str("component", "irc").Str("server", cfg.Address()).Logger(),
		nick: cfg.Nickname,
	}
}

// Connect dials the server. Any previous transport is closed.
func (c *Conn) Connect(ctx context.Context) error {
	transport, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.Address(), err)
	}

	c.mu.Lock()
	old := c.transport
	c.transport = transport
	c.reader = bufio.NewReader(transport)
	c.writer = irc.NewWriter(transport)
	c.nick = c.cfg.Nickname
	c.altIndex = 0
	c.registered = false
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	c.log.Info().Bool("tls", c.cfg.UseTLS).Msg("Connected to IRC server")
	return nil
}

func (c *Conn) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	if !c.cfg.UseTLS {
		return d.DialContext(ctx, "tcp", c.cfg.Address())
	}
	td := &tls.Dialer{
		NetDialer: d,
		Config: &tls.Config{
			ServerName:         c.cfg.Server,
			InsecureSkipVerify: c.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed test networks
			MinVersion:         tls.VersionTLS12,
		},
	}
	return td.DialContext(ctx, "tcp", c.cfg.Address())
}

// Reconnect drops the current transport and dials again. Registration has
// to be redone with Identify.
func (c *Conn) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	old := c.transport
	c.transport = nil
	c.reader = nil
	c.writer = nil
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return c.Connect(ctx)
}

// Identify registers with the server: PASS (if configured), NICK and USER.
func (c *Conn) Identify(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return ErrNotConnected
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.transport.SetWriteDeadline(deadline)
		defer func() { _ = c.transport.SetWriteDeadline(time.Time{}) }()
	}

	var msgs []*irc.Message
	if c.cfg.Password != "" {
		msgs = append(msgs, &irc.Message{Command: "PASS", Params: []string{c.cfg.Password}})
	}
	msgs = append(msgs,
		&irc.Message{Command: "NICK", Params: []string{c.nick}},
		&irc.Message{Command: "USER", Params: []string{c.cfg.Username, "0", "*", c.cfg.Realname}},
	)
	for _, msg := range msgs {
		if err := c.writer.WriteMessage(msg); err != nil {
			return fmt.Errorf("failed to send %s: %w", msg.Command, err)
		}
	}
	c.log.Info().Str("nick", c.nick).Msg("Sent registration")
	return nil
}

// Send writes one raw line. The line must already end with CRLF.
func (c *Conn) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return ErrNotConnected
	}
	_, err := io.WriteString(c.transport, line)
	return err
}

// Close closes the transport. Events stops at its next read.
func (c *Conn) Close() error {
	c.mu.Lock()
	transport := c.transport
	c.transport = nil
	c.writer = nil
	c.mu.Unlock()
	if transport == nil {
		return nil
	}
	return transport.Close()
}

// Nick returns the nickname the connection is currently registered (or
// registering) with.
func (c *Conn) Nick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nick
}

// Events yields every line read from the current transport. A line that
// does not parse is yielded as an error and reading continues; a read error
// or EOF ends the sequence. Cancelling ctx closes the transport so that a
// blocked read returns.
func (c *Conn) Events(ctx context.Context) iter.Seq2[*connector.Event, error] {
	return func(yield func(*connector.Event, error) bool) {
		c.mu.Lock()
		transport, reader := c.transport, c.reader
		c.mu.Unlock()
		if transport == nil {
			return
		}

		stop := context.AfterFunc(ctx, func() { _ = transport.Close() })
		defer stop()

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if ctx.Err() == nil {
					c.log.Info().Err(err).Msg("IRC stream ended")
				}
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				continue
			}

			msg, err := irc.ParseMessage(line)
			if err != nil {
				if !yield(nil, fmt.Errorf("malformed line %q: %w", line, err)) {
					return
				}
				continue
			}
			c.handleProtocol(msg)
			if !yield(&connector.Event{Raw: line, Message: msg}, nil) {
				return
			}
		}
	}
}

// handleProtocol takes care of the messages the connection answers itself.
func (c *Conn) handleProtocol(msg *irc.Message) {
	switch msg.Command {
	case "PING":
		c.writeOrLog(&irc.Message{Command: "PONG", Params: msg.Params})
	case rplWelcome:
		c.mu.Lock()
		c.registered = true
		if len(msg.Params) > 0 && msg.Params[0] != "" {
			c.nick = msg.Params[0]
		}
		nick := c.nick
		c.mu.Unlock()
		c.log.Info().Str("nick", nick).Msg("Registered with IRC server")
	case rplEndOfMOTD, errNoMOTD:
		c.joinChannels()
	case errNicknameUsed:
		c.mu.Lock()
		if c.registered {
			c.mu.Unlock()
			return
		}
		taken := c.nick
		c.nick = c.nextNick()
		nick := c.nick
		c.mu.Unlock()
		c.log.Warn().Str("taken", taken).Str("nick", nick).Msg("Nickname in use, trying another")
		c.writeOrLog(&irc.Message{Command: "NICK", Params: []string{nick}})
	}
}

// nextNick must be called with mu held.
func (c *Conn) nextNick() string {
	if c.altIndex < len(c.cfg.AltNicknames) {
		nick := c.cfg.AltNicknames[c.altIndex]
		c.altIndex++
		return nick
	}
	return c.nick + "_"
}

func (c *Conn) joinChannels() {
	for _, channel := range c.cfg.Channels {
		params := []string{channel}
		if key, ok := c.cfg.ChannelKeys[channel]; ok && key != "" {
			params = append(params, key)
		}
		c.log.Info().Str("channel", channel).Msg("Joining channel")
		c.writeOrLog(&irc.Message{Command: "JOIN", Params: params})
	}
}

func (c *Conn) writeOrLog(msg *irc.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer == nil {
		return
	}
	if err := c.writer.WriteMessage(msg); err != nil {
		c.log.Warn().Err(err).Str("command", msg.Command).Msg("Failed to write protocol reply")
	}
}
