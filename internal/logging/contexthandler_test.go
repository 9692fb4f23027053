package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextHandler_SamplesProviderPerRecord(t *testing.T) {
	var buf bytes.Buffer
	clients := 0
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.Int("clients", clients)}
	})
	logger := slog.New(h)

	clients = 3
	logger.Info("first")
	clients = 7
	logger.Info("second")

	out := buf.String()
	assert.Contains(t, out, "clients=3")
	assert.Contains(t, out, "clients=7")
}

func TestContextHandler_NilProvider(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), nil))

	logger.Info("plain")
	assert.Contains(t, buf.String(), "plain")
}

func TestContextHandler_WithAttrsKeepsProvider(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.String("dynamic", "yes")}
	})

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("static", "also")}))
	logger.Info("both")

	out := buf.String()
	assert.Contains(t, out, "dynamic=yes")
	assert.Contains(t, out, "static=also")
}
