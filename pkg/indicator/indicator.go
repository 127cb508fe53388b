package indicator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ogulcanaydogan/motion-guardian/pkg/clock"
)

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

var (
	Red   = Color{R: 255}
	White = Color{R: 255, G: 255, B: 255}
	Black = Color{}
)

// Device drives the physical indicator.
type Device interface {
	SetState(c Color) error
	Clear() error
}

// AlarmIndicator runs the alarm blink pattern on a Device.
type AlarmIndicator struct {
	device Device
	clock  clock.Clock
	on     Color
	off    Color
}

// NewAlarmIndicator alternates red and white on device.
func NewAlarmIndicator(device Device, c clock.Clock) *AlarmIndicator {
	return &AlarmIndicator{device: device, clock: c, on: Red, off: White}
}

// Toggles returns how many state changes a blink of total at period makes.
func Toggles(period, total time.Duration) int {
	if period <= 0 || total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(period)))
}

// Blink alternates the two alarm colours every period for total, then clears.
// It blocks for the whole pattern. The device is cleared even when ctx is
// cancelled part way through.
func (a *AlarmIndicator) Blink(ctx context.Context, period, total time.Duration) (err error) {
	defer func() {
		if cerr := a.device.Clear(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("clear indicator: %w", cerr))
		}
	}()

	n := Toggles(period, total)
	for i := 0; i < n; i++ {
		c := a.on
		if i%2 == 1 {
			c = a.off
		}
		if err := a.device.SetState(c); err != nil {
			return fmt.Errorf("set indicator: %w", err)
		}
		if err := a.clock.Sleep(ctx, period); err != nil {
			return err
		}
	}
	return nil
}

// Clear returns the indicator to its neutral state.
func (a *AlarmIndicator) Clear() error {
	return a.device.Clear()
}
