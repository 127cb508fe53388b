package sensor_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/motion-guardian/pkg/sensor"
)

func writeIIODevice(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, value := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644))
	}
}

func TestIIO_ReadAcceleration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "iio:device0")
	// 1000 counts * 0.00980665 m/s^2 per count = 1 g.
	writeIIODevice(t, dir, map[string]string{
		"in_accel_x_raw": "0",
		"in_accel_y_raw": "-500",
		"in_accel_z_raw": "1000",
		"in_accel_scale": "0.00980665",
	})

	s, err := sensor.NewIIO(dir, "")
	require.NoError(t, err)

	a, err := s.ReadAcceleration()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, a.X, 1e-9)
	assert.InDelta(t, -0.5, a.Y, 1e-9)
	assert.InDelta(t, 1.0, a.Z, 1e-9)
}

func TestIIO_PerAxisScale(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "iio:device0")
	writeIIODevice(t, dir, map[string]string{
		"in_accel_x_raw":   "100",
		"in_accel_y_raw":   "0",
		"in_accel_z_raw":   "0",
		"in_accel_scale":   "1",
		"in_accel_x_scale": "0.0980665",
	})

	s, err := sensor.NewIIO(dir, "")
	require.NoError(t, err)

	a, err := s.ReadAcceleration()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, a.X, 1e-9)
}

func TestIIO_OrientationFlat(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "iio:device0")
	writeIIODevice(t, dir, map[string]string{
		"in_accel_x_raw": "0",
		"in_accel_y_raw": "0",
		"in_accel_z_raw": "1000",
		"in_accel_scale": "0.00980665",
	})

	s, err := sensor.NewIIO(dir, "")
	require.NoError(t, err)

	o, err := s.ReadOrientation()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, o.Pitch, 1e-6)
	assert.InDelta(t, 0.0, o.Roll, 1e-6)
	assert.InDelta(t, 0.0, o.Yaw, 1e-6)
}

func TestIIO_OrientationRolled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "iio:device0")
	// Gravity along +y: rolled 90 degrees.
	writeIIODevice(t, dir, map[string]string{
		"in_accel_x_raw": "0",
		"in_accel_y_raw": "1000",
		"in_accel_z_raw": "0",
		"in_accel_scale": "0.00980665",
	})

	s, err := sensor.NewIIO(dir, "")
	require.NoError(t, err)

	o, err := s.ReadOrientation()
	require.NoError(t, err)
	assert.InDelta(t, 90.0, o.Roll, 1e-6)
}

func TestIIO_HeadingFromMagnetometer(t *testing.T) {
	root := t.TempDir()
	accel := filepath.Join(root, "iio:device0")
	magn := filepath.Join(root, "iio:device1")
	writeIIODevice(t, accel, map[string]string{
		"in_accel_x_raw": "0",
		"in_accel_y_raw": "0",
		"in_accel_z_raw": "1000",
		"in_accel_scale": "0.00980665",
	})
	// Field along -y on a flat board: heading 90 degrees.
	writeIIODevice(t, magn, map[string]string{
		"in_magn_x_raw": "0",
		"in_magn_y_raw": "-300",
		"in_magn_z_raw": "0",
		"in_magn_scale": "0.001",
	})

	s, err := sensor.NewIIO(accel, magn)
	require.NoError(t, err)

	o, err := s.ReadOrientation()
	require.NoError(t, err)
	assert.InDelta(t, 90.0, o.Yaw, 1e-6)
}

func TestDiscoverIIO(t *testing.T) {
	root := t.TempDir()
	writeIIODevice(t, filepath.Join(root, "iio:device0"), map[string]string{
		"in_temp_raw": "21",
	})
	writeIIODevice(t, filepath.Join(root, "iio:device1"), map[string]string{
		"in_accel_x_raw": "0", "in_accel_y_raw": "0", "in_accel_z_raw": "0",
	})
	writeIIODevice(t, filepath.Join(root, "iio:device2"), map[string]string{
		"in_magn_x_raw": "0", "in_magn_y_raw": "0", "in_magn_z_raw": "0",
	})

	s, err := sensor.DiscoverIIO(root, "", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "iio:device1"), s.AccelDir())
	assert.Equal(t, filepath.Join(root, "iio:device2"), s.MagnDir())
}

func TestDiscoverIIO_NoAccelerometer(t *testing.T) {
	_, err := sensor.DiscoverIIO(t.TempDir(), "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrSensorUnavailable)
}

func TestIIO_CorruptReading(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "iio:device0")
	writeIIODevice(t, dir, map[string]string{
		"in_accel_x_raw": "garbage",
		"in_accel_y_raw": "0",
		"in_accel_z_raw": "0",
	})

	s, err := sensor.NewIIO(dir, "")
	require.NoError(t, err)

	_, err = s.ReadAcceleration()
	assert.Error(t, err)
}
