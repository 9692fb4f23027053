package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Swapped out by tests to observe the console fallback.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager builds and owns the process logger: a text handler on the
// session log file (or stdout when none is given), fanned out to an OTel
// bridge when a provider is configured.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager returns an unconfigured manager. Logger() falls back to
// slog.Default until Setup runs.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "INFO":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

// rfc3339Times rewrites the built-in time attribute to UTC RFC3339 so log
// lines from different reviewer machines sort together.
func rfc3339Times(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	}
	return a
}

// Setup configures the logger. service names the OTel log scope; a nil
// provider disables the bridge, a nil file sends text output to stdout.
// Calling Setup again replaces the previous configuration.
func (m *SlogManager) Setup(service string, file io.Writer, level string, provider *sdklog.LoggerProvider) {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: rfc3339Times,
	}

	sink := file
	if sink == nil {
		sink = osStdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(sink, opts)}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(service, otelslog.WithLoggerProvider(provider)))
	}

	m.logProvider = provider
	m.logger = slog.New(NewMultiHandler(handlers...))
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces the OTel pipeline to export buffered records.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}
