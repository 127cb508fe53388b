package alerts

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionLostHandler_UsesInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	connectionLostHandler(logger, "tcp://broker:1883")(nil, errors.New("EOF"))

	out := buf.String()
	assert.Contains(t, out, "mqtt connection lost")
	assert.Contains(t, out, "broker=tcp://broker:1883")
	assert.Contains(t, out, "error=EOF")
}

func TestConnectionLostHandler_DefaultLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		connectionLostHandler(nil, "tcp://broker:1883")(nil, errors.New("EOF"))
	})
}
