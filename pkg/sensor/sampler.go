package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ogulcanaydogan/motion-guardian/pkg/clock"
	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

// ErrSensorUnavailable is returned when the IMU cannot be read.
var ErrSensorUnavailable = errors.New("sensor unavailable")

// Sensor reads instantaneous IMU values. Reads are synchronous and have no side effects.
type Sensor interface {
	// ReadAcceleration returns the raw acceleration in g.
	ReadAcceleration() (model.Vec3, error)

	// ReadOrientation returns pitch, roll and yaw in degrees.
	ReadOrientation() (model.Orientation, error)
}

// SignalSampler averages short windows of accelerometer readings and compares
// them against the baseline captured at construction.
type SignalSampler struct {
	sensor   Sensor
	clock    clock.Clock
	baseline model.Baseline

	// mu keeps SampleDelta from running concurrently with itself.
	mu sync.Mutex
}

// NewSignalSampler captures the baseline from s. A read failure is fatal to
// startup and is reported as ErrSensorUnavailable.
func NewSignalSampler(s Sensor, c clock.Clock) (*SignalSampler, error) {
	accel, err := s.ReadAcceleration()
	if err != nil {
		return nil, fmt.Errorf("%w: baseline acceleration: %v", ErrSensorUnavailable, err)
	}
	orient, err := s.ReadOrientation()
	if err != nil {
		return nil, fmt.Errorf("%w: baseline orientation: %v", ErrSensorUnavailable, err)
	}

	return &SignalSampler{
		sensor: s,
		clock:  c,
		baseline: model.Baseline{
			Acceleration: accel,
			Orientation:  orient,
			CapturedAt:   c.Now(),
		},
	}, nil
}

// Baseline returns the reference reading.
func (s *SignalSampler) Baseline() model.Baseline {
	return s.baseline
}

// SampleDelta takes samples readings, pausing delay after each, and returns the
// per-axis absolute difference between their mean and the baseline.
// It blocks for roughly samples*delay.
func (s *SignalSampler) SampleDelta(ctx context.Context, samples int, delay time.Duration) (model.Vec3, error) {
	if samples < 1 {
		return model.Vec3{}, fmt.Errorf("sample count must be positive, got %d", samples)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var sum model.Vec3
	for i := 0; i < samples; i++ {
		a, err := s.sensor.ReadAcceleration()
		if err != nil {
			return model.Vec3{}, fmt.Errorf("%w: sample %d: %v", ErrSensorUnavailable, i+1, err)
		}
		sum.X += a.X
		sum.Y += a.Y
		sum.Z += a.Z

		if err := s.clock.Sleep(ctx, delay); err != nil {
			return model.Vec3{}, err
		}
	}

	n := float64(samples)
	mean := model.Vec3{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
	return mean.AbsDiff(s.baseline.Acceleration), nil
}

// CurrentOrientation performs one unaveraged orientation read.
func (s *SignalSampler) CurrentOrientation() (model.Orientation, error) {
	o, err := s.sensor.ReadOrientation()
	if err != nil {
		return model.Orientation{}, fmt.Errorf("%w: orientation: %v", ErrSensorUnavailable, err)
	}
	return o, nil
}
