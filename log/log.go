// Package log holds the process-wide loggers. Until Initialize is called they
// discard everything, so packages can log unconditionally.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kastheco/opsdash/internal/sentry"
)

var (
	InfoLog    = log.New(io.Discard, "", 0)
	WarningLog = log.New(io.Discard, "", 0)
	ErrorLog   = log.New(io.Discard, "", 0)
)

var (
	globalLogFile *os.File
	logFileName   = defaultLogPath()
)

func defaultLogPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "opsdash.log")
	}
	return filepath.Join(dir, "opsdash", "opsdash.log")
}

// Path returns the file the loggers write to once initialized.
func Path() string { return logFileName }

// Initialize opens the log file and points the loggers at it. When telemetry
// is on, errors are also reported to sentry and the rest kept as breadcrumbs.
func Initialize(telemetry bool) {
	if err := os.MkdirAll(filepath.Dir(logFileName), 0o755); err != nil {
		logFileName = filepath.Join(os.TempDir(), "opsdash.log")
	}
	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		panic(fmt.Sprintf("could not open log file: %s", err))
	}

	flags := log.Ldate | log.Ltime | log.Lshortfile
	InfoLog = log.New(tee(f, sentry.LevelInfo, telemetry), "INFO:", flags)
	WarningLog = log.New(tee(f, sentry.LevelWarning, telemetry), "WARNING:", flags)
	ErrorLog = log.New(tee(f, sentry.LevelError, telemetry), "ERROR:", flags)

	globalLogFile = f
}

func tee(w io.Writer, level sentry.Level, telemetry bool) io.Writer {
	if !telemetry {
		return w
	}
	return sentry.NewWriter(w, level)
}

// Close flushes sentry and closes the log file.
func Close() {
	sentry.Flush()
	if globalLogFile == nil {
		return
	}
	_ = globalLogFile.Close()
	globalLogFile = nil
}

// Every is used to log at most once every timeout duration.
type Every struct {
	mu      sync.Mutex
	timeout time.Duration
	last    time.Time
}

func NewEvery(timeout time.Duration) *Every {
	return &Every{timeout: timeout}
}

// ShouldLog returns true if the timeout has passed since the last log.
func (e *Every) ShouldLog() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if time.Since(e.last) < e.timeout {
		return false
	}
	e.last = time.Now()
	return true
}
