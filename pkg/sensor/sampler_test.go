package sensor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/motion-guardian/pkg/clock/clocktest"
	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
	"github.com/ogulcanaydogan/motion-guardian/pkg/sensor"
)

// scriptedSensor returns the first reading as the baseline, then cycles through readings.
type scriptedSensor struct {
	baseline    model.Vec3
	readings    []model.Vec3
	orientation model.Orientation
	calls       int
	failAfter   int
	orientErr   error
}

func (s *scriptedSensor) ReadAcceleration() (model.Vec3, error) {
	s.calls++
	if s.failAfter > 0 && s.calls > s.failAfter {
		return model.Vec3{}, errors.New("i2c read timeout")
	}
	if s.calls == 1 {
		return s.baseline, nil
	}
	if len(s.readings) == 0 {
		return s.baseline, nil
	}
	return s.readings[(s.calls-2)%len(s.readings)], nil
}

func (s *scriptedSensor) ReadOrientation() (model.Orientation, error) {
	if s.orientErr != nil {
		return model.Orientation{}, s.orientErr
	}
	return s.orientation, nil
}

func newFakeClock() *clocktest.Fake {
	return clocktest.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
}

func TestNewSignalSampler_CapturesBaseline(t *testing.T) {
	s := &scriptedSensor{
		baseline:    model.Vec3{X: 0.01, Y: -0.02, Z: 0.98},
		orientation: model.Orientation{Pitch: 1, Roll: 2, Yaw: 3},
	}
	clk := newFakeClock()

	sampler, err := sensor.NewSignalSampler(s, clk)
	require.NoError(t, err)

	b := sampler.Baseline()
	assert.Equal(t, s.baseline, b.Acceleration)
	assert.Equal(t, s.orientation, b.Orientation)
	assert.Equal(t, clk.Now(), b.CapturedAt)
}

func TestNewSignalSampler_Unavailable(t *testing.T) {
	_, err := sensor.NewSignalSampler(&scriptedSensor{orientErr: errors.New("no device")}, newFakeClock())
	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrSensorUnavailable)
}

func TestSampleDelta_AveragesWindow(t *testing.T) {
	s := &scriptedSensor{
		readings: []model.Vec3{
			{X: 0.04, Y: 0.00, Z: 0.0},
			{X: 0.06, Y: 0.02, Z: 0.0},
		},
	}
	clk := newFakeClock()
	sampler, err := sensor.NewSignalSampler(s, clk)
	require.NoError(t, err)

	delta, err := sampler.SampleDelta(context.Background(), 10, 10*time.Millisecond)
	require.NoError(t, err)

	assert.InDelta(t, 0.05, delta.X, 1e-9)
	assert.InDelta(t, 0.01, delta.Y, 1e-9)
	assert.InDelta(t, 0.0, delta.Z, 1e-9)
	assert.True(t, delta.AnyAbove(0.03))

	// One pause after every reading.
	assert.Len(t, clk.Sleeps(), 10)
	for _, d := range clk.Sleeps() {
		assert.Equal(t, 10*time.Millisecond, d)
	}
}

func TestSampleDelta_AbsoluteAgainstBaseline(t *testing.T) {
	s := &scriptedSensor{
		baseline: model.Vec3{X: 0.1, Y: 0.1, Z: 1.0},
		readings: []model.Vec3{{X: 0.08, Y: 0.12, Z: 0.98}},
	}
	sampler, err := sensor.NewSignalSampler(s, newFakeClock())
	require.NoError(t, err)

	delta, err := sampler.SampleDelta(context.Background(), 3, 0)
	require.NoError(t, err)

	assert.InDelta(t, 0.02, delta.X, 1e-9)
	assert.InDelta(t, 0.02, delta.Y, 1e-9)
	assert.InDelta(t, 0.02, delta.Z, 1e-9)
	assert.False(t, delta.AnyAbove(0.03))
}

func TestSampleDelta_InvalidCount(t *testing.T) {
	sampler, err := sensor.NewSignalSampler(&scriptedSensor{}, newFakeClock())
	require.NoError(t, err)

	_, err = sampler.SampleDelta(context.Background(), 0, time.Millisecond)
	assert.Error(t, err)
}

func TestSampleDelta_ReadFailure(t *testing.T) {
	s := &scriptedSensor{failAfter: 3}
	sampler, err := sensor.NewSignalSampler(s, newFakeClock())
	require.NoError(t, err)

	_, err = sampler.SampleDelta(context.Background(), 5, time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrSensorUnavailable)
}

func TestSampleDelta_Cancelled(t *testing.T) {
	sampler, err := sensor.NewSignalSampler(&scriptedSensor{}, newFakeClock())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sampler.SampleDelta(ctx, 5, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCurrentOrientation(t *testing.T) {
	s := &scriptedSensor{orientation: model.Orientation{Pitch: 10, Roll: 20, Yaw: 30}}
	sampler, err := sensor.NewSignalSampler(s, newFakeClock())
	require.NoError(t, err)

	o, err := sampler.CurrentOrientation()
	require.NoError(t, err)
	assert.Equal(t, s.orientation, o)

	s.orientErr = errors.New("bus error")
	_, err = sampler.CurrentOrientation()
	assert.ErrorIs(t, err, sensor.ErrSensorUnavailable)
}
