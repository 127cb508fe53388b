package sensor

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

// DefaultIIORoot is where the kernel exposes Industrial I/O devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

const standardGravity = 9.80665

// IIO reads the Sense HAT IMU through the Linux Industrial I/O sysfs interface.
// Acceleration comes from an accelerometer device; yaw needs an optional
// magnetometer device and reads as 0 without one.
type IIO struct {
	accelDir string
	magnDir  string
}

// NewIIO returns a sensor bound to explicit device directories. magnDir may be empty.
func NewIIO(accelDir, magnDir string) (*IIO, error) {
	if _, err := os.Stat(filepath.Join(accelDir, "in_accel_x_raw")); err != nil {
		return nil, fmt.Errorf("%w: no accelerometer at %s: %v", ErrSensorUnavailable, accelDir, err)
	}
	if magnDir != "" {
		if _, err := os.Stat(filepath.Join(magnDir, "in_magn_x_raw")); err != nil {
			return nil, fmt.Errorf("%w: no magnetometer at %s: %v", ErrSensorUnavailable, magnDir, err)
		}
	}
	return &IIO{accelDir: accelDir, magnDir: magnDir}, nil
}

// DiscoverIIO scans root for the first accelerometer and magnetometer devices.
// Explicit directories take precedence over discovery.
func DiscoverIIO(root, accelDir, magnDir string) (*IIO, error) {
	if root == "" {
		root = DefaultIIORoot
	}
	if accelDir == "" || magnDir == "" {
		devices, _ := filepath.Glob(filepath.Join(root, "iio:device*"))
		sort.Strings(devices)
		for _, dev := range devices {
			if accelDir == "" && fileExists(filepath.Join(dev, "in_accel_x_raw")) {
				accelDir = dev
			}
			if magnDir == "" && fileExists(filepath.Join(dev, "in_magn_x_raw")) {
				magnDir = dev
			}
		}
	}
	if accelDir == "" {
		return nil, fmt.Errorf("%w: no accelerometer found under %s", ErrSensorUnavailable, root)
	}
	return NewIIO(accelDir, magnDir)
}

// AccelDir returns the accelerometer device directory.
func (s *IIO) AccelDir() string { return s.accelDir }

// MagnDir returns the magnetometer device directory, empty when absent.
func (s *IIO) MagnDir() string { return s.magnDir }

func (s *IIO) ReadAcceleration() (model.Vec3, error) {
	v, err := readChannel(s.accelDir, "accel")
	if err != nil {
		return model.Vec3{}, err
	}
	return model.Vec3{
		X: v.X / standardGravity,
		Y: v.Y / standardGravity,
		Z: v.Z / standardGravity,
	}, nil
}

func (s *IIO) ReadOrientation() (model.Orientation, error) {
	a, err := s.ReadAcceleration()
	if err != nil {
		return model.Orientation{}, err
	}

	roll := math.Atan2(a.Y, a.Z)
	pitch := math.Atan2(-a.X, math.Sqrt(a.Y*a.Y+a.Z*a.Z))

	var yaw float64
	if s.magnDir != "" {
		m, err := readChannel(s.magnDir, "magn")
		if err != nil {
			return model.Orientation{}, err
		}
		// Tilt-compensated heading.
		mx := m.X*math.Cos(pitch) + m.Z*math.Sin(pitch)
		my := m.X*math.Sin(roll)*math.Sin(pitch) + m.Y*math.Cos(roll) - m.Z*math.Sin(roll)*math.Cos(pitch)
		yaw = math.Atan2(-my, mx)
	}

	return model.Orientation{
		Pitch: normalizeDegrees(pitch),
		Roll:  normalizeDegrees(roll),
		Yaw:   normalizeDegrees(yaw),
	}, nil
}

// readChannel returns raw*scale for the x, y and z axes of an IIO channel type.
// A per-axis scale file wins over the shared one.
func readChannel(dir, channel string) (model.Vec3, error) {
	shared := 1.0
	if p := filepath.Join(dir, "in_"+channel+"_scale"); fileExists(p) {
		v, err := readFloat(p)
		if err != nil {
			return model.Vec3{}, err
		}
		shared = v
	}

	var out [3]float64
	for i, axis := range []string{"x", "y", "z"} {
		raw, err := readFloat(filepath.Join(dir, fmt.Sprintf("in_%s_%s_raw", channel, axis)))
		if err != nil {
			return model.Vec3{}, err
		}
		scale := shared
		if p := filepath.Join(dir, fmt.Sprintf("in_%s_%s_scale", channel, axis)); fileExists(p) {
			if scale, err = readFloat(p); err != nil {
				return model.Vec3{}, err
			}
		}
		out[i] = raw * scale
	}
	return model.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

func readFloat(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// normalizeDegrees converts radians to degrees in [0, 360).
func normalizeDegrees(rad float64) float64 {
	deg := math.Mod(rad*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
