package indicator

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SenseHatName is the sysfs name of the Sense HAT LED matrix framebuffer.
const SenseHatName = "RPi-Sense FB"

// MatrixSize is the edge length of the LED matrix.
const MatrixSize = 8

// Frame is one full image of the LED matrix in row-major order.
type Frame [MatrixSize * MatrixSize]Color

// Fill returns a frame with every pixel set to c.
func Fill(c Color) Frame {
	var f Frame
	for i := range f {
		f[i] = c
	}
	return f
}

// Framebuffer drives the Sense HAT 8x8 LED matrix through its RGB565 framebuffer.
type Framebuffer struct {
	path string
	mu   sync.Mutex
}

// NewFramebuffer binds to the framebuffer device at path.
func NewFramebuffer(path string) (*Framebuffer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open led matrix %s: %w", path, err)
	}
	return &Framebuffer{path: path}, nil
}

// FindFramebuffer locates the Sense HAT framebuffer by scanning sysfsRoot
// (normally /sys/class/graphics) and returns the matching /dev path.
func FindFramebuffer(sysfsRoot, devRoot string) (string, error) {
	if sysfsRoot == "" {
		sysfsRoot = "/sys/class/graphics"
	}
	if devRoot == "" {
		devRoot = "/dev"
	}
	entries, err := filepath.Glob(filepath.Join(sysfsRoot, "fb*"))
	if err != nil {
		return "", err
	}
	for _, dir := range entries {
		name, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(name)) == SenseHatName {
			return filepath.Join(devRoot, filepath.Base(dir)), nil
		}
	}
	return "", fmt.Errorf("no %q framebuffer under %s", SenseHatName, sysfsRoot)
}

// Path returns the device path.
func (f *Framebuffer) Path() string { return f.path }

// SetPixels writes a whole frame.
func (f *Framebuffer) SetPixels(frame Frame) error {
	buf := make([]byte, len(frame)*2)
	for i, c := range frame {
		binary.LittleEndian.PutUint16(buf[i*2:], rgb565(c))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fd, err := os.OpenFile(f.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer fd.Close()

	if _, err := fd.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}

func (f *Framebuffer) SetState(c Color) error {
	return f.SetPixels(Fill(c))
}

func (f *Framebuffer) Clear() error {
	return f.SetPixels(Fill(Black))
}

func rgb565(c Color) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}
