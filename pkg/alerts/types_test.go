package alerts_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/motion-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

func TestAlert_Caption(t *testing.T) {
	a := alerts.Alert{
		Device:      "shed",
		TriggeredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Orientation: model.Orientation{Pitch: 10, Roll: 20.3, Yaw: 359.9},
	}
	c := a.Caption()
	assert.Contains(t, c, "shed")
	assert.Contains(t, c, "2026-01-02T03:04:05Z")
	assert.Contains(t, c, "Roll = 20.3°")
	assert.Contains(t, c, "Pitch = 10.0°")
	assert.Contains(t, c, "Yaw = 359.9°")
}

func TestLogNotifier_Send(t *testing.T) {
	n := alerts.NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "log", n.Name())

	receipt, err := n.Send(context.Background(), alerts.Alert{})
	require.NoError(t, err)
	assert.Equal(t, "logged", receipt.Ack)
}
