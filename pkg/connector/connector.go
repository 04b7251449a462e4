// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Store is the subset of Redis the bridge needs. Each loop opens its own
// Store and never shares it.
type Store interface {
	// BlockingPop waits up to timeout for an element on queue. It returns
	// the [queue, value] pair, or nil when the wait timed out.
	BlockingPop(ctx context.Context, queue string, timeout time.Duration) ([]string, error)
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Push(ctx context.Context, key, value string) error
	// Trim keeps only the elements in [start, stop]. Negative indices count
	// from the tail, so -n, -1 keeps the last n elements.
	Trim(ctx context.Context, key string, start, stop int64) error
	Publish(ctx context.Context, channel string, value any) error
	Ping(ctx context.Context) error
	Close() error
}

// StoreFactory opens a fresh Store connection.
type StoreFactory func(ctx context.Context) (Store, error)

// ProtocolConn is the IRC connection shared by both loops. Events is only
// ever called from the inbound loop and Send only from the outbound loop,
// so implementations must allow one concurrent reader and one writer.
type ProtocolConn interface {
	Identify(ctx context.Context) error
	Reconnect(ctx context.Context) error
	// Send writes one CRLF-terminated line.
	Send(line string) error
	// Events yields incoming lines until the stream ends. A malformed line
	// is yielded as a non-nil error and iteration continues.
	Events(ctx context.Context) iter.Seq2[*Event, error]
}

// Bridge moves IRC traffic into Redis and queued Redis commands back out
// to IRC.
type Bridge struct {
	cfg      BridgeConfig
	conn     ProtocolConn
	newStore StoreFactory
	governor FloodGovernor
	sup      *supervisor
	metrics  *Metrics
	log      zerolog.Logger

	lastSeq atomic.Int64
}

// NewBridge creates a bridge. cfg must already be validated. A nil metrics
// gets a fresh private registry.
func NewBridge(cfg BridgeConfig, conn ProtocolConn, newStore StoreFactory, metrics *Metrics, log zerolog.Logger) *Bridge {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Bridge{
		cfg:      cfg,
		conn:     conn,
		newStore: newStore,
		governor: FloodGovernor{Interval: cfg.FloodInterval},
		sup:      newSupervisor(cfg.ReconnectCooldown),
		metrics:  metrics,
		log:      log.With().Str("component", "bridge").Logger(),
	}
}

// Metrics returns the bridge's collectors.
func (b *Bridge) Metrics() *Metrics {
	return b.metrics
}

// State returns the reconnection supervisor's current state.
func (b *Bridge) State() ConnState {
	return b.sup.State()
}

// Generation returns how many reconnection attempts have been made.
func (b *Bridge) Generation() uint64 {
	return b.sup.Generation()
}

// LastSequence returns the sequence number of the most recently recorded
// inbound event.
func (b *Bridge) LastSequence() int64 {
	return b.lastSeq.Load()
}

// Run starts the inbound and outbound loops and waits for both. The loops
// only stop when ctx is cancelled, so in steady state Run blocks forever.
// A store that cannot be reached at loop startup is returned wrapped with
// ErrStoreUnavailable.
func (b *Bridge) Run(ctx context.Context) error {
	b.log.Info().
		Int("history_limit", b.cfg.HistoryLimit).
		Dur("pop_timeout", b.cfg.PopTimeout).
		Dur("flood_interval", b.cfg.FloodInterval).
		Dur("reconnect_cooldown", b.cfg.ReconnectCooldown).
		Msg("Starting bridge loops")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.runInbound(ctx) })
	g.Go(func() error { return b.runOutbound(ctx) })
	err := g.Wait()
	if err != nil {
		b.log.Error().Err(err).Msg("Bridge stopped")
	} else {
		b.log.Info().Msg("Bridge stopped")
	}
	return err
}

// openStore opens and pings a store connection for one loop.
func (b *Bridge) openStore(ctx context.Context, loop string) (Store, error) {
	store, err := b.newStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s loop: %w", ErrStoreUnavailable, loop, err)
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%w: %s loop: %w", ErrStoreUnavailable, loop, err)
	}
	return store, nil
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
