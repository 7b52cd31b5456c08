package mcplink

import (
	"context"
	"time"
)

// backoff produces doubling delays between connection attempts, capped at a
// maximum.
type backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{base: base, max: max, current: base}
}

// Next returns the delay to wait before the next attempt and advances the
// sequence.
func (b *backoff) Next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Sleep waits for the next delay or until the context is done.
func (b *backoff) Sleep(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
