package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/motion-guardian/pkg/clock"
	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

// ErrCaptureFailure aborts the current alert sequence only.
var ErrCaptureFailure = errors.New("capture failure")

// Camera is the capture device. The caller paces CaptureOne calls.
type Camera interface {
	Start(ctx context.Context) error
	CaptureOne(ctx context.Context) (model.Artifact, error)
	Stop() error
}

// Source captures paced bursts from a Camera.
type Source struct {
	camera Camera
	clock  clock.Clock
	logger *slog.Logger
}

// NewSource wraps camera.
func NewSource(camera Camera, c clock.Clock, logger *slog.Logger) *Source {
	return &Source{camera: camera, clock: c, logger: logger}
}

// CaptureBurst takes count captures with interval between consecutive shots.
//
// A camera that fails to start yields ErrCaptureFailure and no artifacts.
// A failure after at least one capture returns the partial burst together
// with an ErrCaptureFailure-wrapped error, so the caller can still use it.
func (s *Source) CaptureBurst(ctx context.Context, count int, interval time.Duration) ([]model.Artifact, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: burst count must be positive, got %d", ErrCaptureFailure, count)
	}

	if err := s.camera.Start(ctx); err != nil {
		return nil, fmt.Errorf("%w: start camera: %v", ErrCaptureFailure, err)
	}
	defer func() {
		if err := s.camera.Stop(); err != nil {
			s.logger.Warn("stop camera", "error", err)
		}
	}()

	artifacts := make([]model.Artifact, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 {
			if err := s.clock.Sleep(ctx, interval); err != nil {
				return artifacts, err
			}
		}

		a, err := s.camera.CaptureOne(ctx)
		if err != nil {
			return artifacts, fmt.Errorf("%w: shot %d of %d: %v", ErrCaptureFailure, i+1, count, err)
		}
		s.logger.Debug("captured", "path", a.Path, "kind", a.Kind)
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}
