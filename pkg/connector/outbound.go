// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"

	"github.com/rs/zerolog"
)

// runOutbound pops queued commands and writes them to IRC. Every popped
// entry is followed by the flood interval, whatever happened to it. Send
// failures are dropped here; recovering the connection is left to the
// inbound loop, which notices when the stream ends.
func (b *Bridge) runOutbound(ctx context.Context) error {
	store, err := b.openStore(ctx, "outbound")
	if err != nil {
		return err
	}
	defer store.Close()

	log := b.log.With().Str("loop", "outbound").Logger()
	log.Info().Msg("Outbound loop started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("Outbound loop stopped")
			return nil
		}

		reply, err := store.BlockingPop(ctx, CommandQueueKey, b.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.metrics.StoreErrors.WithLabelValues("pop").Inc()
			log.Warn().Err(err).Msg("Failed to pop outbound command")
			_ = b.governor.Wait(ctx)
			continue
		}
		if reply == nil {
			continue
		}

		b.dispatchCommand(reply, log)
		_ = b.governor.Wait(ctx)
	}
}

// dispatchCommand validates one popped entry and sends it.
func (b *Bridge) dispatchCommand(reply []string, log zerolog.Logger) {
	if len(reply) != 2 {
		b.metrics.CommandsDropped.WithLabelValues("shape").Inc()
		log.Warn().Strs("reply", reply).Msg("Discarding malformed queue reply")
		return
	}

	line := NormalizeCommand(reply[1])
	msg, err := ParseCommand(line)
	if err != nil {
		b.metrics.CommandsDropped.WithLabelValues("parse").Inc()
		log.Warn().Err(err).Str("payload", reply[1]).Msg("Discarding unparsable command")
		return
	}

	log.Debug().Str("command", msg.Command).Str("line", line).Msg("Sending command")
	if err := b.conn.Send(line); err != nil {
		b.metrics.CommandsDropped.WithLabelValues("send").Inc()
		log.Error().Err(err).Str("command", msg.Command).Msg("Sending command failed")
		return
	}
	b.metrics.CommandsSent.Inc()
}
