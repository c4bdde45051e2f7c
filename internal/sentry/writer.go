package sentry

import (
	"bytes"
	"io"
	"strings"

	gosentry "github.com/getsentry/sentry-go"
)

// Level is the severity a Writer reports at.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// Writer passes log output through to inner and reports each line: errors as
// events, everything else as breadcrumbs for the next event.
type Writer struct {
	inner  io.Writer
	level  Level
	report func(level Level, caller, msg string)
}

func NewWriter(inner io.Writer, level Level) *Writer {
	return &Writer{inner: inner, level: level, report: send}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.inner.Write(p)
	if !enabled {
		return n, err
	}
	for _, line := range bytes.Split(p, []byte("\n")) {
		caller, msg := parseLogLine(string(line))
		if msg != "" {
			w.report(w.level, caller, scrub(msg))
		}
	}
	return n, err
}

func send(level Level, caller, msg string) {
	if level == LevelError {
		gosentry.WithScope(func(scope *gosentry.Scope) {
			if caller != "" {
				scope.SetTag("caller", caller)
			}
			gosentry.CaptureMessage(msg)
		})
		return
	}
	crumb := &gosentry.Breadcrumb{Category: "log", Message: msg, Level: gosentry.LevelInfo}
	if level == LevelWarning {
		crumb.Level = gosentry.LevelWarning
	}
	if caller != "" {
		crumb.Data = map[string]interface{}{"caller": caller}
	}
	gosentry.AddBreadcrumb(crumb)
}

// parseLogLine strips what the log package adds in front of a message
// ("ERROR:2026/05/01 12:00:00 panel.go:240: ") so identical messages group
// together, and returns the file:line part separately.
func parseLogLine(line string) (caller, msg string) {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, ':'); i > 0 && isLevelPrefix(line[:i]) {
		line = line[i+1:]
	}
	fields := strings.SplitN(line, " ", 4)
	if len(fields) == 4 && isStamp(fields[0], '/') && isStamp(fields[1], ':') && strings.HasSuffix(fields[2], ":") {
		return strings.TrimSuffix(fields[2], ":"), strings.TrimSpace(fields[3])
	}
	return "", line
}

// isStamp reports whether s is digits separated by sep, like 2026/05/01.
func isStamp(s string, sep rune) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != sep && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func isLevelPrefix(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
