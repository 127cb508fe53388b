package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

var (
	// ErrTransport covers network failures and timeouts.
	ErrTransport = errors.New("transport error")

	// ErrRemoteRejected means the endpoint answered but did not accept the upload.
	ErrRemoteRejected = errors.New("remote rejected")

	// ErrArtifactUnavailable means the captured file could not be read, so nothing was sent.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
)

// Alert is one captured artifact plus the motion that triggered it.
type Alert struct {
	Device      string            `json:"device"`
	TriggeredAt time.Time         `json:"triggered_at"`
	Delta       model.Vec3        `json:"delta"`
	Orientation model.Orientation `json:"orientation"`
	Artifact    model.Artifact    `json:"artifact"`
}

// Caption is the human-readable line sent with the media.
func (a Alert) Caption() string {
	return fmt.Sprintf("DEVICE MOVED (%s) at %s\nRoll = %.1f°  Pitch = %.1f°  Yaw = %.1f°",
		a.Device, a.TriggeredAt.Format(time.RFC3339),
		a.Orientation.Roll, a.Orientation.Pitch, a.Orientation.Yaw,
	)
}

// Receipt is the endpoint's acknowledgment of a delivered artifact.
type Receipt struct {
	Ack string `json:"ack"`
}

// Notifier delivers one artifact to an external system.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send uploads a single artifact. Failures wrap ErrTransport,
	// ErrRemoteRejected or ErrArtifactUnavailable. Implementations do not retry.
	Send(ctx context.Context, alert Alert) (Receipt, error)
}
