package dispatch

import (
	"context"
	"time"
)

// Pacer enforces the minimum gap between consecutive sends within one
// campaign. Pacing is per-campaign only; there is no cross-campaign or
// cross-tenant coordination.
type Pacer struct {
	delay time.Duration
}

// NewPacer builds a pacer from a campaign's throughput config. An explicit
// delay wins; otherwise the delay is derived from messages per minute. Both
// zero means no pacing.
func NewPacer(delayBetweenMs, messagesPerMinute int) *Pacer {
	var delay time.Duration
	switch {
	case delayBetweenMs > 0:
		delay = time.Duration(delayBetweenMs) * time.Millisecond
	case messagesPerMinute > 0:
		delay = time.Minute / time.Duration(messagesPerMinute)
	}
	return &Pacer{delay: delay}
}

// Delay returns the configured inter-message gap.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Wait blocks for the inter-message gap or until the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
