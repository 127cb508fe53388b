package indicator

import (
	"fmt"
	"log/slog"
)

// LogDevice stands in for the LED matrix on hosts without one.
type LogDevice struct {
	logger *slog.Logger
}

// NewLogDevice logs every indicator change at debug level.
func NewLogDevice(logger *slog.Logger) *LogDevice {
	return &LogDevice{logger: logger}
}

func (d *LogDevice) SetState(c Color) error {
	d.logger.Debug("indicator set", "color", fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
	return nil
}

func (d *LogDevice) Clear() error {
	d.logger.Debug("indicator cleared")
	return nil
}
