package alerts

import (
	"context"
	"log/slog"
)

// LogNotifier records alerts in the log instead of sending them. Used for dry runs.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Send(_ context.Context, alert Alert) (Receipt, error) {
	l.logger.Info("dry-run alert",
		"device", alert.Device,
		"artifact", alert.Artifact.Path,
		"kind", alert.Artifact.Kind,
		"delta_x", alert.Delta.X,
		"delta_y", alert.Delta.Y,
		"delta_z", alert.Delta.Z,
	)
	return Receipt{Ack: "logged"}, nil
}
