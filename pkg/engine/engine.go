// Package engine runs the motion detection loop and the alert sequence it triggers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/motion-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/motion-guardian/pkg/clock"
	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
	"github.com/ogulcanaydogan/motion-guardian/pkg/storage"
)

// Sampler produces motion deltas against a fixed baseline.
type Sampler interface {
	SampleDelta(ctx context.Context, samples int, delay time.Duration) (model.Vec3, error)
	CurrentOrientation() (model.Orientation, error)
}

// Capturer takes a burst of photos or a clip.
type Capturer interface {
	CaptureBurst(ctx context.Context, count int, interval time.Duration) ([]model.Artifact, error)
}

// Indicator is the local alarm.
type Indicator interface {
	Blink(ctx context.Context, period, total time.Duration) error
	Clear() error
}

// Recorder receives engine metrics.
type Recorder interface {
	ObserveTick(outcome string, d time.Duration)
	AlertCompleted()
	Delivery(notifier string, ok bool)
	MotionDelta(v model.Vec3)
	State(s model.AlertState)
}

// Outcome is the result of one tick.
type Outcome string

const (
	OutcomeStill      Outcome = "still"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeAlerted    Outcome = "alerted"
	OutcomeAborted    Outcome = "aborted"
	OutcomeFault      Outcome = "fault"
)

// Config holds the detection and alert parameters. It is not modified after New.
type Config struct {
	Device          string
	Samples         int
	SampleDelay     time.Duration
	Threshold       float64
	PollInterval    time.Duration
	Cooldown        time.Duration
	CaptureCount    int
	CaptureInterval time.Duration
	BlinkPeriod     time.Duration
	BlinkTotal      time.Duration
	NotifyTimeout   time.Duration
}

// Deps are the engine's collaborators. Journal and Metrics are optional.
type Deps struct {
	Sampler   Sampler
	Capture   Capturer
	Indicator Indicator
	Notifiers []alerts.Notifier
	Journal   storage.Journal
	Metrics   Recorder
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Snapshot is a point-in-time copy of the engine state.
type Snapshot struct {
	Device      string            `json:"device"`
	State       model.AlertState  `json:"state"`
	LastAlert   time.Time         `json:"last_alert"`
	LastTick    time.Time         `json:"last_tick"`
	LastOutcome Outcome           `json:"last_outcome,omitempty"`
	Delta       model.Vec3        `json:"delta"`
	Orientation model.Orientation `json:"orientation"`
	Threshold   float64           `json:"threshold"`
	Ticks       uint64            `json:"ticks"`
	Alerts      uint64            `json:"alerts"`
}

// Engine is the motion alert state machine. RunOnce and Run must be called
// from a single goroutine; Status is safe from any goroutine.
type Engine struct {
	cfg       Config
	sampler   Sampler
	capture   Capturer
	indicator Indicator
	notifiers []alerts.Notifier
	journal   storage.Journal
	metrics   Recorder
	clock     clock.Clock
	logger    *slog.Logger

	mu        sync.Mutex
	state     model.AlertState
	lastAlert time.Time
	snap      Snapshot
}

// New validates cfg and builds an engine in the Idle state.
func New(cfg Config, d Deps) (*Engine, error) {
	switch {
	case d.Sampler == nil:
		return nil, errors.New("engine: sampler is required")
	case d.Capture == nil:
		return nil, errors.New("engine: capture source is required")
	case d.Indicator == nil:
		return nil, errors.New("engine: indicator is required")
	case cfg.Samples < 1:
		return nil, fmt.Errorf("engine: samples must be positive, got %d", cfg.Samples)
	case cfg.PollInterval <= 0:
		return nil, fmt.Errorf("engine: poll interval must be positive, got %s", cfg.PollInterval)
	case cfg.Threshold < 0 || cfg.Cooldown < 0:
		return nil, errors.New("engine: threshold and cooldown must not be negative")
	}
	if cfg.CaptureCount < 1 {
		cfg.CaptureCount = 1
	}
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}

	e := &Engine{
		cfg:       cfg,
		sampler:   d.Sampler,
		capture:   d.Capture,
		indicator: d.Indicator,
		notifiers: d.Notifiers,
		journal:   d.Journal,
		metrics:   d.Metrics,
		clock:     d.Clock,
		logger:    d.Logger,
		state:     model.StateIdle,
	}
	e.snap.Device = cfg.Device
	e.snap.Threshold = cfg.Threshold
	e.metrics.State(model.StateIdle)
	return e, nil
}

// Run ticks at a fixed cadence of PollInterval measured from the start of
// each tick. A tick that overruns starts the next one immediately. Run
// returns nil once ctx is cancelled, after clearing the indicator.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("motion guardian started",
		"device", e.cfg.Device,
		"poll_interval", e.cfg.PollInterval,
		"threshold", e.cfg.Threshold,
		"cooldown", e.cfg.Cooldown,
		"notifiers", len(e.notifiers),
	)

	for ctx.Err() == nil {
		start := e.clock.Now()
		e.RunOnce(ctx)

		wait := e.cfg.PollInterval - e.clock.Now().Sub(start)
		if wait <= 0 {
			if ctx.Err() == nil {
				e.logger.Warn("tick overran poll interval", "overrun", -wait)
			}
			continue
		}
		if err := e.clock.Sleep(ctx, wait); err != nil {
			break
		}
	}

	if err := e.indicator.Clear(); err != nil {
		e.logger.Warn("clear indicator on shutdown", "error", err)
	}
	e.logger.Info("motion guardian stopped")
	return nil
}

// RunOnce performs a single detection tick. Errors never escape: they are
// logged and reported as OutcomeFault.
func (e *Engine) RunOnce(ctx context.Context) Outcome {
	start := e.clock.Now()
	outcome := e.safeTick(ctx)
	e.metrics.ObserveTick(string(outcome), e.clock.Now().Sub(start))

	e.mu.Lock()
	e.snap.Ticks++
	e.snap.LastTick = start
	e.snap.LastOutcome = outcome
	e.mu.Unlock()
	return outcome
}

// Status returns a copy of the current state.
func (e *Engine) Status() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.snap
	s.State = e.state
	s.LastAlert = e.lastAlert
	return s
}

// safeTick turns a collaborator panic into a fault so the loop keeps ticking.
func (e *Engine) safeTick(ctx context.Context) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tick panicked", "panic", r, "stack", string(debug.Stack()))
			e.setState(e.recoveredState())
			if err := e.indicator.Clear(); err != nil {
				e.logger.Warn("clear indicator", "error", err)
			}
			outcome = OutcomeFault
		}
	}()
	return e.tick(ctx)
}

// recoveredState drops an interrupted Alerting state back to Idle, or to
// Cooldown when a completed sequence is still inside its window.
func (e *Engine) recoveredState() model.AlertState {
	switch st := e.currentState(); {
	case st != model.StateAlerting:
		return st
	case !e.lastAlertAt().IsZero() && !e.cooldownElapsed(e.clock.Now()):
		return model.StateCooldown
	default:
		return model.StateIdle
	}
}

func (e *Engine) tick(ctx context.Context) Outcome {
	if e.currentState() == model.StateCooldown && e.cooldownElapsed(e.clock.Now()) {
		e.setState(model.StateIdle)
	}

	delta, err := e.sampler.SampleDelta(ctx, e.cfg.Samples, e.cfg.SampleDelay)
	if err != nil {
		e.fault("sample motion", err)
		return OutcomeFault
	}
	orientation, err := e.sampler.CurrentOrientation()
	if err != nil {
		e.fault("read orientation", err)
		return OutcomeFault
	}

	e.mu.Lock()
	e.snap.Delta = delta
	e.snap.Orientation = orientation
	e.mu.Unlock()
	e.metrics.MotionDelta(delta)

	if !delta.AnyAbove(e.cfg.Threshold) {
		// Inside the cooldown window the state stays Cooldown until it elapses.
		if e.currentState() != model.StateCooldown {
			e.setState(model.StateIdle)
		}
		if err := e.indicator.Clear(); err != nil {
			e.logger.Warn("clear indicator", "error", err)
		}
		e.logger.Info("device still",
			"dx", delta.X, "dy", delta.Y, "dz", delta.Z,
			"pitch", orientation.Pitch, "roll", orientation.Roll, "yaw", orientation.Yaw,
		)
		return OutcomeStill
	}

	now := e.clock.Now()
	if !e.cooldownElapsed(now) {
		e.logger.Info("motion suppressed by cooldown",
			"dx", delta.X, "dy", delta.Y, "dz", delta.Z,
			"remaining", e.cfg.Cooldown-now.Sub(e.lastAlertAt()),
		)
		return OutcomeSuppressed
	}

	e.logger.Warn("device moved",
		"dx", delta.X, "dy", delta.Y, "dz", delta.Z,
		"pitch", orientation.Pitch, "roll", orientation.Roll, "yaw", orientation.Yaw,
	)
	e.setState(model.StateAlerting)
	return e.alert(ctx, now, delta, orientation)
}

// alert runs capture, dispatch and indication in order.
func (e *Engine) alert(ctx context.Context, triggeredAt time.Time, delta model.Vec3, orientation model.Orientation) Outcome {
	artifacts, err := e.capture.CaptureBurst(ctx, e.cfg.CaptureCount, e.cfg.CaptureInterval)
	if err != nil {
		if len(artifacts) == 0 {
			e.logger.Error("alert sequence aborted", "error", err)
			e.setState(model.StateIdle)
			return OutcomeAborted
		}
		e.logger.Warn("partial capture burst", "captured", len(artifacts), "requested", e.cfg.CaptureCount, "error", err)
	}

	base := alerts.Alert{
		Device:      e.cfg.Device,
		TriggeredAt: triggeredAt,
		Delta:       delta,
		Orientation: orientation,
	}
	deliveries := e.dispatch(ctx, base, artifacts)

	if err := e.indicator.Blink(ctx, e.cfg.BlinkPeriod, e.cfg.BlinkTotal); err != nil {
		e.logger.Warn("alarm indicator", "error", err)
	}

	completed := e.clock.Now()
	e.mu.Lock()
	e.lastAlert = completed
	e.snap.Alerts++
	e.mu.Unlock()
	e.setState(model.StateCooldown)
	e.metrics.AlertCompleted()

	record := &model.AlertRecord{
		ID:          uuid.New().String(),
		Device:      e.cfg.Device,
		TriggeredAt: triggeredAt,
		CompletedAt: completed,
		Delta:       delta,
		Orientation: orientation,
		Artifacts:   len(artifacts),
		Status:      model.AlertStatusCompleted,
		Deliveries:  deliveries,
	}
	if e.journal != nil {
		// Record the sequence even when shutdown interrupted it.
		if err := e.journal.RecordAlert(context.WithoutCancel(ctx), record); err != nil {
			e.logger.Error("journal alert", "error", err)
		}
	}

	e.logger.Info("alert sequence completed",
		"id", record.ID,
		"artifacts", len(artifacts),
		"delivered", record.Delivered(),
		"failed", len(deliveries)-record.Delivered(),
		"duration", completed.Sub(triggeredAt),
	)
	return OutcomeAlerted
}

// dispatch sends every artifact through every notifier. A failed delivery
// never stops the remaining ones.
func (e *Engine) dispatch(ctx context.Context, base alerts.Alert, artifacts []model.Artifact) []model.Delivery {
	deliveries := make([]model.Delivery, 0, len(artifacts)*len(e.notifiers))
	for _, artifact := range artifacts {
		a := base
		a.Artifact = artifact
		for _, n := range e.notifiers {
			d := e.send(ctx, n, a)
			e.metrics.Delivery(d.Notifier, d.OK)
			deliveries = append(deliveries, d)
		}
	}
	return deliveries
}

func (e *Engine) send(ctx context.Context, n alerts.Notifier, a alerts.Alert) model.Delivery {
	if e.cfg.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.NotifyTimeout)
		defer cancel()
	}

	receipt, err := sendRecovered(ctx, n, a)
	d := model.Delivery{
		Notifier:     n.Name(),
		ArtifactPath: a.Artifact.Path,
		OK:           err == nil,
		Ack:          receipt.Ack,
		SentAt:       e.clock.Now(),
	}
	if err != nil {
		d.Error = err.Error()
		e.logger.Error("send alert failed", "notifier", d.Notifier, "artifact", d.ArtifactPath, "error", err)
		return d
	}
	e.logger.Info("alert sent", "notifier", d.Notifier, "artifact", d.ArtifactPath, "ack", d.Ack)
	return d
}

// sendRecovered reports a notifier panic as a failed delivery.
func sendRecovered(ctx context.Context, n alerts.Notifier, a alerts.Alert) (receipt alerts.Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier %s panicked: %v", n.Name(), r)
		}
	}()
	return n.Send(ctx, a)
}

func (e *Engine) fault(op string, err error) {
	if errors.Is(err, context.Canceled) {
		e.logger.Debug(op+" interrupted", "error", err)
		return
	}
	e.logger.Error(op, "error", err)
}

// cooldownElapsed reports whether a new sequence may start at now.
// No previous alert counts as elapsed.
func (e *Engine) cooldownElapsed(now time.Time) bool {
	last := e.lastAlertAt()
	return last.IsZero() || now.Sub(last) >= e.cfg.Cooldown
}

func (e *Engine) lastAlertAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAlert
}

func (e *Engine) currentState() model.AlertState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s model.AlertState) {
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()

	if prev != s {
		e.logger.Debug("state change", "from", prev, "to", s)
	}
	e.metrics.State(s)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(string, time.Duration) {}
func (nopRecorder) AlertCompleted()                   {}
func (nopRecorder) Delivery(string, bool)             {}
func (nopRecorder) MotionDelta(model.Vec3)            {}
func (nopRecorder) State(model.AlertState)            {}
