// Package clock indirects wall-clock reads and sleeps so that paced sampling,
// capture intervals and cooldowns can be driven by virtual time in tests.
package clock

import (
	"context"
	"time"
)

// Clock abstracts the subset of package time the daemon depends on.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	// It returns ctx.Err() when interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the production Clock backed by package time.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
