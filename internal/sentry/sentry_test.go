package sentry

import (
	"errors"
	"testing"

	gosentry "github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kastheco/opsdash/internal/planner"
)

func TestInit_StaysOff(t *testing.T) {
	tests := []struct {
		name      string
		dsn       string
		telemetry bool
	}{
		{"telemetry off", "https://key@example.invalid/1", false},
		{"no dsn", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, Init("1.0.0", tt.dsn, tt.telemetry))
			assert.False(t, IsEnabled())
		})
	}
}

func TestDisabled_NoOps(t *testing.T) {
	enabled = false
	assert.NotPanics(t, func() {
		Flush()
		SetContext("42", "api.example.com")
		CaptureError(errors.New("boom"))
		CaptureError(&planner.IntegrationError{Kind: planner.KindTransport, Op: "list plans"})
		CaptureError(nil)
	})
}

func TestIntegrationTags(t *testing.T) {
	tags := integrationTags(&planner.IntegrationError{
		Kind: planner.KindPermission, Op: "create team", Status: 403, RequestID: "req-1",
	})
	assert.Equal(t, map[string]string{
		"kind": "permission", "op": "create team", "status": "403", "request_id": "req-1",
	}, tags)

	tags = integrationTags(&planner.IntegrationError{Kind: planner.KindTransport, Op: "list groups"})
	assert.NotContains(t, tags, "status")
	assert.NotContains(t, tags, "request_id")
}

func TestScrubEvent(t *testing.T) {
	Redact("")
	Redact("tok-123")
	t.Cleanup(func() { secrets = nil })

	ev := &gosentry.Event{
		Message:     "auth tok-123 rejected",
		Exception:   []gosentry.Exception{{Value: "Bearer tok-123"}},
		Breadcrumbs: []*gosentry.Breadcrumb{{Message: "retry with tok-123"}},
	}
	scrubEvent(ev)
	assert.Equal(t, "auth [redacted] rejected", ev.Message)
	assert.Equal(t, "Bearer [redacted]", ev.Exception[0].Value)
	assert.Equal(t, "retry with [redacted]", ev.Breadcrumbs[0].Message)
	assert.Len(t, secrets, 1, "empty values are ignored")
}
