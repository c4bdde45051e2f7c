package sentry

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reported struct {
	level  Level
	caller string
	msg    string
}

func recordingWriter(t *testing.T, level Level) (*Writer, *bytes.Buffer, *[]reported) {
	t.Helper()
	enabled = true
	t.Cleanup(func() { enabled = false })

	var buf bytes.Buffer
	var got []reported
	w := NewWriter(&buf, level)
	w.report = func(l Level, caller, msg string) {
		got = append(got, reported{l, caller, msg})
	}
	return w, &buf, &got
}

func TestWriter_PassthroughWhenDisabled(t *testing.T) {
	enabled = false
	var buf bytes.Buffer
	w := NewWriter(&buf, LevelError)
	w.report = func(Level, string, string) { t.Fatal("reported while disabled") }

	msg := []byte("ERROR:2026/05/01 12:00:00 panel.go:240: sync failed\n")
	n, err := w.Write(msg)
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)
	assert.Equal(t, string(msg), buf.String())
}

func TestWriter_ReportsParsedLine(t *testing.T) {
	w, buf, got := recordingWriter(t, LevelWarning)

	_, err := w.Write([]byte("WARNING:2026/05/01 12:00:00 planner.go:375: open audit log: locked\n"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "open audit log: locked")
	assert.Equal(t, []reported{{LevelWarning, "planner.go:375", "open audit log: locked"}}, *got)
}

func TestWriter_SkipsBlankLines(t *testing.T) {
	w, _, got := recordingWriter(t, LevelError)

	n, err := w.Write([]byte("   \n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Empty(t, *got)
}

func TestWriter_RedactsSecrets(t *testing.T) {
	w, _, got := recordingWriter(t, LevelError)
	mu.Lock()
	secrets = []string{"tok-123"}
	mu.Unlock()
	t.Cleanup(func() { secrets = nil })

	_, _ = w.Write([]byte("request with tok-123 failed\n"))
	require.Len(t, *got, 1)
	assert.Equal(t, "request with [redacted] failed", (*got)[0].msg)
}

func TestParseLogLine(t *testing.T) {
	tests := []struct {
		line, caller, msg string
	}{
		{"ERROR:2026/05/01 12:00:00 panel.go:240: sync failed: 502", "panel.go:240", "sync failed: 502"},
		{"INFO:2026/05/01 12:00:00 app.go:50: connected to Launch", "app.go:50", "connected to Launch"},
		{"plain message", "", "plain message"},
		{"Sync: not a prefix", "", "Sync: not a prefix"},
	}
	for _, tt := range tests {
		caller, msg := parseLogLine(tt.line)
		assert.Equal(t, tt.caller, caller, tt.line)
		assert.Equal(t, tt.msg, msg, tt.line)
	}
}
