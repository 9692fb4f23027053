// Package logging wires slog for the review services: a session log file,
// optional OTel export, and small adapters for subsystems with their own
// logger interfaces.
package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath names a session's log file after the service and its start
// time, so restarts never clobber an earlier session's log.
func LogFilePath(logsDir, service string, sessionStart time.Time) string {
	name := fmt.Sprintf("%s.%s.log", service, sessionStart.Format("20060102_150405"))
	return filepath.Join(logsDir, name)
}
