// Package sentry reports crashes and logged errors. Every function is a
// no-op until Init succeeds with telemetry on and a DSN configured.
package sentry

import (
	"errors"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	gosentry "github.com/getsentry/sentry-go"

	"github.com/kastheco/opsdash/internal/planner"
)

const flushTimeout = 2 * time.Second

var (
	enabled bool

	mu      sync.RWMutex
	secrets []string
)

// Init configures the SDK. An empty dsn or disabled telemetry leaves
// reporting off and returns nil.
func Init(version, dsn string, telemetryEnabled bool) error {
	enabled = false
	if !telemetryEnabled || dsn == "" {
		return nil
	}
	err := gosentry.Init(gosentry.ClientOptions{
		Dsn:              dsn,
		Release:          "opsdash@" + version,
		AttachStacktrace: true,
		BeforeSend: func(ev *gosentry.Event, _ *gosentry.EventHint) *gosentry.Event {
			scrubEvent(ev)
			return ev
		},
	})
	if err != nil {
		return err
	}
	gosentry.ConfigureScope(func(scope *gosentry.Scope) {
		scope.SetTags(map[string]string{
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"go_version": runtime.Version(),
		})
	})
	enabled = true
	return nil
}

func IsEnabled() bool { return enabled }

func Flush() {
	if enabled {
		gosentry.Flush(flushTimeout)
	}
}

// RecoverPanic reports a panic and re-panics. Use as defer sentry.RecoverPanic().
func RecoverPanic() {
	if !enabled {
		return
	}
	if r := recover(); r != nil {
		gosentry.CurrentHub().Recover(r)
		gosentry.Flush(flushTimeout)
		panic(r)
	}
}

// SetContext tags later events with the project and API host in use.
func SetContext(projectID, apiHost string) {
	if !enabled {
		return
	}
	gosentry.ConfigureScope(func(scope *gosentry.Scope) {
		scope.SetTag("project", projectID)
		scope.SetTag("api_host", apiHost)
	})
}

// Redact registers a value, such as the API token, that must never leave
// the machine. It is replaced in messages and exception values before send.
func Redact(secret string) {
	if secret == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	secrets = append(secrets, secret)
}

func scrub(s string) string {
	mu.RLock()
	defer mu.RUnlock()
	for _, sec := range secrets {
		s = strings.ReplaceAll(s, sec, "[redacted]")
	}
	return s
}

func scrubEvent(ev *gosentry.Event) {
	ev.Message = scrub(ev.Message)
	for i := range ev.Exception {
		ev.Exception[i].Value = scrub(ev.Exception[i].Value)
	}
	for i := range ev.Breadcrumbs {
		ev.Breadcrumbs[i].Message = scrub(ev.Breadcrumbs[i].Message)
	}
}

// CaptureError reports err. Integration errors carry their kind, operation,
// status and request id as tags so the event can be matched with server logs.
func CaptureError(err error) {
	if !enabled || err == nil {
		return
	}
	var ie *planner.IntegrationError
	if !errors.As(err, &ie) {
		gosentry.CaptureException(err)
		return
	}
	gosentry.WithScope(func(scope *gosentry.Scope) {
		scope.SetTags(integrationTags(ie))
		gosentry.CaptureException(err)
	})
}

func integrationTags(ie *planner.IntegrationError) map[string]string {
	tags := map[string]string{"kind": ie.Kind.String(), "op": ie.Op}
	if ie.Status != 0 {
		tags["status"] = strconv.Itoa(ie.Status)
	}
	if ie.RequestID != "" {
		tags["request_id"] = ie.RequestID
	}
	return tags
}
