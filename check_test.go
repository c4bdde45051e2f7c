package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kastheco/opsdash/config"
	"github.com/kastheco/opsdash/internal/check"
	"github.com/kastheco/opsdash/internal/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureCheckOutput runs newCheckCmd() with a temp home and the given backend
// URL and captures stdout along with the command's error.
func captureCheckOutput(t *testing.T, apiURL string, args ...string) (string, error) {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvAPIURL, apiURL)
	t.Setenv(config.EnvAPIToken, "secret")

	cmd := newCheckCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func fakeBackend(t *testing.T, status planner.IntegrationStatus, sync planner.SyncStatus) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/planner/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("/projects/42/planner-sync-status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sync)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckCmd_NoBackendConfigured(t *testing.T) {
	out, err := captureCheckOutput(t, "")

	assert.ErrorIs(t, err, errUnhealthy)
	assert.Contains(t, out, "Config")
	assert.Contains(t, out, "✗ no api_url configured")
	assert.NotContains(t, out, "Integration")
	assert.Contains(t, out, "Health:")
}

func TestCheckCmd_HealthyConnection(t *testing.T) {
	srv := fakeBackend(t,
		planner.IntegrationStatus{Configured: true, Connected: true},
		planner.SyncStatus{Connected: true, Connection: &planner.Connection{
			PlanID: "p1", PlanTitle: "Launch", SyncEnabled: true, LastSyncStatus: planner.LastSyncSuccess,
		}},
	)

	out, err := captureCheckOutput(t, srv.URL, "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Integration")
	assert.Contains(t, out, "Connection (42)")
	assert.Contains(t, out, "linked plan")
	assert.NotContains(t, out, "Launch", "details of passing checks need --verbose")
	assert.Contains(t, out, "(100%)")
}

func TestCheckCmd_VerboseShowsDetail(t *testing.T) {
	srv := fakeBackend(t,
		planner.IntegrationStatus{Configured: true, Connected: true},
		planner.SyncStatus{Connected: true, Connection: &planner.Connection{PlanID: "p1", PlanTitle: "Launch", SyncEnabled: true}},
	)

	out, err := captureCheckOutput(t, srv.URL, "42", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Launch")
	assert.Contains(t, out, srv.URL)
}

func TestCheckCmd_PermissionIssueFails(t *testing.T) {
	srv := fakeBackend(t,
		planner.IntegrationStatus{Configured: true, Connected: true, PermissionIssue: true, Message: "grant Group.ReadWrite.All"},
		planner.SyncStatus{},
	)

	out, err := captureCheckOutput(t, srv.URL, "42")
	assert.ErrorIs(t, err, errUnhealthy)
	assert.Contains(t, out, "✗ grant Group.ReadWrite.All")
	assert.NotContains(t, out, "Connection (42)", "connection is not checked while the integration is unusable")
}

func TestCheckCmd_WarningsDoNotFail(t *testing.T) {
	srv := fakeBackend(t,
		planner.IntegrationStatus{Configured: true, Connected: true},
		planner.SyncStatus{},
	)

	out, err := captureCheckOutput(t, srv.URL, "42")
	require.NoError(t, err)
	assert.Contains(t, out, "! project is not connected to a plan")
	assert.NotContains(t, out, "(100%)")
}

func TestReportAudit_SkippedNotCounted(t *testing.T) {
	var buf bytes.Buffer
	err := reportAudit(&buf, &check.AuditResult{
		Config: []check.Entry{
			{Name: "api url", Status: check.StatusOK, Detail: "http://x"},
			{Name: "audit log", Status: check.StatusSkipped, Detail: "disabled"},
		},
	}, false)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "⊘ disabled")
	assert.Contains(t, buf.String(), "Health: 1/1 OK (100%)")
}
