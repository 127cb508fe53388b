package model

import (
	"fmt"
	"math"
	"time"
)

// Vec3 is a three-axis reading in g. It is also used for per-axis deltas.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// AbsDiff returns the per-axis absolute difference between v and o.
func (v Vec3) AbsDiff(o Vec3) Vec3 {
	return Vec3{
		X: math.Abs(v.X - o.X),
		Y: math.Abs(v.Y - o.Y),
		Z: math.Abs(v.Z - o.Z),
	}
}

// AnyAbove reports whether at least one axis is strictly greater than threshold.
func (v Vec3) AnyAbove(threshold float64) bool {
	return v.X > threshold || v.Y > threshold || v.Z > threshold
}

// Orientation holds Euler angles in degrees.
type Orientation struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Baseline is the reference reading captured once at startup.
type Baseline struct {
	Acceleration Vec3        `json:"acceleration"`
	Orientation  Orientation `json:"orientation"`
	CapturedAt   time.Time   `json:"captured_at"`
}

// AlertState is the position of the engine in its alert cycle.
type AlertState int

const (
	StateIdle AlertState = iota
	StateAlerting
	StateCooldown
)

func (s AlertState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAlerting:
		return "alerting"
	case StateCooldown:
		return "cooldown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s AlertState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MediaKind distinguishes still images from video clips.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// Artifact is one captured file awaiting dispatch.
type Artifact struct {
	Path       string    `json:"path"`
	Kind       MediaKind `json:"kind"`
	CapturedAt time.Time `json:"captured_at"`
}

// Delivery is the outcome of sending one artifact through one notifier.
type Delivery struct {
	Notifier     string    `json:"notifier" db:"notifier"`
	ArtifactPath string    `json:"artifact_path" db:"artifact_path"`
	OK           bool      `json:"ok" db:"ok"`
	Ack          string    `json:"ack,omitempty" db:"ack"`
	Error        string    `json:"error,omitempty" db:"error"`
	SentAt       time.Time `json:"sent_at" db:"sent_at"`
}

// AlertStatusCompleted marks a sequence that ran to the end, whatever its deliveries did.
const AlertStatusCompleted = "completed"

// AlertRecord summarises one completed alert sequence.
type AlertRecord struct {
	ID          string      `json:"id" db:"id"`
	Device      string      `json:"device" db:"device"`
	TriggeredAt time.Time   `json:"triggered_at" db:"triggered_at"`
	CompletedAt time.Time   `json:"completed_at" db:"completed_at"`
	Delta       Vec3        `json:"delta"`
	Orientation Orientation `json:"orientation"`
	Artifacts   int         `json:"artifacts" db:"artifacts"`
	Status      string      `json:"status" db:"status"`
	Deliveries  []Delivery  `json:"deliveries,omitempty"`
}

// Delivered counts successful deliveries.
func (r *AlertRecord) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.OK {
			n++
		}
	}
	return n
}

// HistoryFilter controls which alert records are listed.
type HistoryFilter struct {
	Since time.Time `json:"since,omitempty"`
	Limit int       `json:"limit,omitempty"`
}
