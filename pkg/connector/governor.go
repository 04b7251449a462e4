// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"time"
)

// FloodGovernor paces outbound commands with a fixed pause after every
// dequeued entry, whether or not it was sent. There is no burst allowance.
type FloodGovernor struct {
	Interval time.Duration
}

// Wait blocks for the flood interval. It returns early with ctx.Err() if
// the context is cancelled.
func (g FloodGovernor) Wait(ctx context.Context) error {
	return sleepContext(ctx, g.Interval)
}
