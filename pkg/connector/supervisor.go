// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ConnState is the reconnection supervisor's view of the IRC session.
type ConnState int32

const (
	StateConnected ConnState = iota
	StateCooldown
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateCooldown:
		return "cooldown"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// supervisor restores the IRC session after the event stream ends. It has
// no terminal state: every end of stream leads to a cooldown and another
// reconnect attempt, without backoff or an attempt cap.
type supervisor struct {
	cooldown   time.Duration
	state      atomic.Int32
	generation atomic.Uint64
}

func newSupervisor(cooldown time.Duration) *supervisor {
	return &supervisor{cooldown: cooldown}
}

func (s *supervisor) State() ConnState {
	return ConnState(s.state.Load())
}

func (s *supervisor) Generation() uint64 {
	return s.generation.Load()
}

func (s *supervisor) markConnected() {
	s.state.Store(int32(StateConnected))
}

// recover waits out the cooldown and then attempts reconnect followed by
// identify. Failures are logged only; the caller resumes reading either way
// and the next end of stream brings it back here. The only error returned
// is ctx.Err() when the cooldown is interrupted.
func (s *supervisor) recover(ctx context.Context, conn ProtocolConn, metrics *Metrics, log zerolog.Logger) error {
	s.state.Store(int32(StateCooldown))
	log.Info().Dur("cooldown", s.cooldown).Msg("Waiting before reconnection")
	if err := sleepContext(ctx, s.cooldown); err != nil {
		return err
	}

	s.state.Store(int32(StateReconnecting))
	gen := s.generation.Add(1)
	metrics.Reconnects.Inc()
	log.Info().Uint64("generation", gen).Msg("Trying to reconnect")

	if err := conn.Reconnect(ctx); err != nil {
		log.Error().Err(err).Uint64("generation", gen).Msg("Reconnect failed")
		return nil
	}
	if err := conn.Identify(ctx); err != nil {
		log.Error().Err(err).Uint64("generation", gen).Msg("Identify after reconnect failed")
		return nil
	}
	log.Info().Uint64("generation", gen).Msg("Reconnected")
	return nil
}
