// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"

	"github.com/rs/zerolog"
)

// runInbound records every IRC line into the history list and announces it
// on the notify channel. When the server closes the stream it hands over to
// the supervisor and then resumes reading.
func (b *Bridge) runInbound(ctx context.Context) error {
	store, err := b.openStore(ctx, "inbound")
	if err != nil {
		return err
	}
	defer store.Close()

	log := b.log.With().Str("loop", "inbound").Logger()
	log.Info().Msg("Inbound loop started")

	for {
		b.sup.markConnected()
		for evt, err := range b.conn.Events(ctx) {
			if err != nil {
				b.metrics.InboundMalformed.Inc()
				log.Warn().Err(err).Msg("Skipping malformed IRC line")
				continue
			}
			b.recordEvent(ctx, store, evt, log)
		}
		if ctx.Err() != nil {
			log.Info().Msg("Inbound loop stopped")
			return nil
		}

		log.Warn().Msg("Connection closed by server")
		if err := b.sup.recover(ctx, b.conn, b.metrics, log); err != nil {
			log.Info().Msg("Inbound loop stopped")
			return nil
		}
	}
}

// recordEvent stores one event. Every store failure is logged and ignored
// so that a Redis hiccup never stalls the IRC read side; a failed increment
// records the event with sequence 0.
func (b *Bridge) recordEvent(ctx context.Context, store Store, evt *Event, log zerolog.Logger) int64 {
	text := evt.String()

	seq, err := store.Increment(ctx, SequenceCounterKey, 1)
	if err != nil {
		b.metrics.StoreErrors.WithLabelValues("increment").Inc()
		log.Warn().Err(err).Msg("Failed to increment sequence counter")
		seq = 0
	}

	if err := store.Push(ctx, HistoryKey, MakeHistoryRecord(seq, text)); err != nil {
		b.metrics.StoreErrors.WithLabelValues("push").Inc()
		log.Warn().Err(err).Int64("seq", seq).Msg("Failed to append history record")
	}
	if err := store.Trim(ctx, HistoryKey, -int64(b.cfg.HistoryLimit), -1); err != nil {
		b.metrics.StoreErrors.WithLabelValues("trim").Inc()
		log.Warn().Err(err).Msg("Failed to trim history")
	}
	if err := store.Publish(ctx, NotifyChannel, seq); err != nil {
		b.metrics.StoreErrors.WithLabelValues("publish").Inc()
		log.Warn().Err(err).Int64("seq", seq).Msg("Failed to publish notification")
	}

	b.lastSeq.Store(seq)
	b.metrics.InboundEvents.Inc()
	b.metrics.LastSequence.Set(float64(seq))
	log.Trace().Int64("seq", seq).Str("line", text).Msg("Recorded IRC line")
	return seq
}
