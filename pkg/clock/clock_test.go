package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/motion-guardian/pkg/clock"
)

func TestReal_Sleep(t *testing.T) {
	c := clock.Real{}
	start := c.Now()
	require.NoError(t, c.Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestReal_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := clock.Real{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReal_SleepZero(t *testing.T) {
	assert.NoError(t, clock.Real{}.Sleep(context.Background(), 0))
}
