package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ogulcanaydogan/motion-guardian/pkg/clock"
	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

// Runner executes an external program to completion.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the program with os/exec and folds its output into the error.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// StillConfig configures the rpicam-still camera.
type StillConfig struct {
	Command string
	Dir     string
	Width   int
	Height  int
}

// StillCamera takes JPEG stills with rpicam-still.
type StillCamera struct {
	cfg   StillConfig
	run   Runner
	clock clock.Clock
	shot  int
}

// NewStillCamera returns a camera writing into cfg.Dir. A nil run uses ExecRunner.
func NewStillCamera(cfg StillConfig, run Runner, c clock.Clock) *StillCamera {
	if run == nil {
		run = ExecRunner
	}
	return &StillCamera{cfg: cfg, run: run, clock: c}
}

func (s *StillCamera) Start(ctx context.Context) error {
	s.shot = 0
	return startCommand(ctx, s.run, s.cfg.Command, s.cfg.Dir)
}

func (s *StillCamera) CaptureOne(ctx context.Context) (model.Artifact, error) {
	s.shot++
	now := s.clock.Now()
	path := filepath.Join(s.cfg.Dir, fmt.Sprintf("image_%s_%02d.jpg", now.Format("20060102_150405"), s.shot))

	err := s.run(ctx, s.cfg.Command,
		"-n",
		"--immediate",
		"--width", strconv.Itoa(s.cfg.Width),
		"--height", strconv.Itoa(s.cfg.Height),
		"-o", path,
	)
	if err != nil {
		return model.Artifact{}, err
	}
	if _, err := os.Stat(path); err != nil {
		return model.Artifact{}, fmt.Errorf("%s produced no file: %w", s.cfg.Command, err)
	}
	return model.Artifact{Path: path, Kind: model.MediaPhoto, CapturedAt: now}, nil
}

func (s *StillCamera) Stop() error { return nil }

// VideoConfig configures clip recording.
type VideoConfig struct {
	Command       string
	FFmpegCommand string
	Dir           string
	Width         int
	Height        int
	Duration      time.Duration
	FPS           float64
}

// VideoCamera records an H.264 clip with rpicam-vid and remuxes it to MP4.
type VideoCamera struct {
	cfg   VideoConfig
	run   Runner
	clock clock.Clock
}

// NewVideoCamera returns a clip recorder. A nil run uses ExecRunner.
func NewVideoCamera(cfg VideoConfig, run Runner, c clock.Clock) *VideoCamera {
	if run == nil {
		run = ExecRunner
	}
	return &VideoCamera{cfg: cfg, run: run, clock: c}
}

func (v *VideoCamera) Start(ctx context.Context) error {
	if err := startCommand(ctx, v.run, v.cfg.Command, v.cfg.Dir); err != nil {
		return err
	}
	return v.run(ctx, v.cfg.FFmpegCommand, "-version")
}

func (v *VideoCamera) CaptureOne(ctx context.Context) (model.Artifact, error) {
	now := v.clock.Now()
	base := filepath.Join(v.cfg.Dir, "video_"+now.Format("20060102_150405"))
	raw, mp4 := base+".h264", base+".mp4"
	fps := strconv.FormatFloat(v.cfg.FPS, 'f', -1, 64)

	err := v.run(ctx, v.cfg.Command,
		"-n",
		"-t", strconv.FormatInt(v.cfg.Duration.Milliseconds(), 10),
		"--framerate", fps,
		"--width", strconv.Itoa(v.cfg.Width),
		"--height", strconv.Itoa(v.cfg.Height),
		"-o", raw,
	)
	if err != nil {
		return model.Artifact{}, err
	}
	defer os.Remove(raw)

	if err := v.run(ctx, v.cfg.FFmpegCommand, "-y", "-r", fps, "-i", raw, "-vcodec", "copy", mp4); err != nil {
		return model.Artifact{}, fmt.Errorf("remux %s: %w", raw, err)
	}
	if _, err := os.Stat(mp4); err != nil {
		return model.Artifact{}, fmt.Errorf("%s produced no file: %w", v.cfg.FFmpegCommand, err)
	}
	return model.Artifact{Path: mp4, Kind: model.MediaVideo, CapturedAt: now}, nil
}

func (v *VideoCamera) Stop() error { return nil }

func startCommand(ctx context.Context, run Runner, command, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create capture dir: %w", err)
	}
	if err := run(ctx, command, "--version"); err != nil {
		return fmt.Errorf("probe %s: %w", command, err)
	}
	return nil
}
