package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kastheco/opsdash/config"
	"github.com/kastheco/opsdash/internal/planner"
)

// Status represents the outcome of a single check.
type Status int

const (
	StatusOK      Status = iota // check passed
	StatusSkipped                // not applicable, not counted
	StatusWarn                   // usable but degraded
	StatusFail                   // blocks the integration
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Entry is one check's result.
type Entry struct {
	Name   string
	Status Status
	Detail string // e.g. the server's message or a remediation hint
}

// Remote is the part of planner.Client the audit calls.
type Remote interface {
	Status(ctx context.Context) planner.IntegrationStatus
	SyncStatus(ctx context.Context, projectID string) (planner.SyncStatus, error)
}

// AuditResult is the complete output of opsdash check.
type AuditResult struct {
	Config      []Entry
	Integration []Entry
	Connection  []Entry
	ProjectID   string // empty when no project was checked
}

// Audit checks the local configuration, the integration status and, when
// projectID is set, the project's connection. A nil remote skips the two
// remote sections.
func Audit(ctx context.Context, cfg *config.Config, remote Remote, projectID string) *AuditResult {
	result := &AuditResult{ProjectID: projectID}
	result.Config = AuditConfig(cfg)
	if remote == nil {
		return result
	}

	st := remote.Status(ctx)
	result.Integration = AuditIntegration(st)
	if projectID != "" && st.Usable() {
		result.Connection = AuditConnection(ctx, remote, projectID)
	}
	return result
}

// AuditConfig checks the settings the client needs.
func AuditConfig(cfg *config.Config) []Entry {
	var out []Entry

	if err := cfg.Validate(); err != nil {
		out = append(out, Entry{Name: "api url", Status: StatusFail, Detail: err.Error()})
	} else {
		out = append(out, Entry{Name: "api url", Status: StatusOK, Detail: cfg.APIURL})
	}

	if strings.TrimSpace(cfg.APIToken) == "" {
		out = append(out, Entry{Name: "api token", Status: StatusWarn, Detail: "not set; requests are sent unauthenticated"})
	} else {
		out = append(out, Entry{Name: "api token", Status: StatusOK})
	}

	if cfg.RequestTimeout != "" {
		if d, err := time.ParseDuration(cfg.RequestTimeout); err != nil || d <= 0 {
			out = append(out, Entry{Name: "request timeout", Status: StatusWarn,
				Detail: fmt.Sprintf("%q is not a duration; using %s", cfg.RequestTimeout, cfg.Timeout())})
		} else {
			out = append(out, Entry{Name: "request timeout", Status: StatusOK, Detail: d.String()})
		}
	}

	out = append(out, auditLogEntry(cfg.AuditDB))
	return out
}

func auditLogEntry(path string) Entry {
	if path == "" {
		return Entry{Name: "audit log", Status: StatusSkipped, Detail: "disabled"}
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Created on first use.
		return Entry{Name: "audit log", Status: StatusOK, Detail: path}
	case err != nil:
		return Entry{Name: "audit log", Status: StatusWarn, Detail: err.Error()}
	case !info.IsDir():
		return Entry{Name: "audit log", Status: StatusWarn, Detail: dir + " is not a directory"}
	}
	return Entry{Name: "audit log", Status: StatusOK, Detail: path}
}

// AuditIntegration turns a status report into entries.
func AuditIntegration(st planner.IntegrationStatus) []Entry {
	detail := st.Message
	if detail == "" {
		detail = st.Error
	}

	out := make([]Entry, 0, 4)
	if !st.Configured {
		out = append(out, Entry{Name: "configured", Status: StatusFail, Detail: detail})
	} else {
		out = append(out, Entry{Name: "configured", Status: StatusOK})
	}

	switch {
	case !st.Configured:
		out = append(out, Entry{Name: "connected", Status: StatusSkipped})
	case !st.Connected:
		out = append(out, Entry{Name: "connected", Status: StatusFail, Detail: detail})
	default:
		out = append(out, Entry{Name: "connected", Status: StatusOK})
	}

	switch {
	case st.AppConfigured == nil:
		out = append(out, Entry{Name: "app registration", Status: StatusSkipped})
	case *st.AppConfigured:
		out = append(out, Entry{Name: "app registration", Status: StatusOK})
	default:
		out = append(out, Entry{Name: "app registration", Status: StatusWarn, Detail: "the directory application is not registered"})
	}

	if st.PermissionIssue {
		out = append(out, Entry{Name: "permissions", Status: StatusFail, Detail: detail})
	} else if st.Configured {
		out = append(out, Entry{Name: "permissions", Status: StatusOK})
	}
	return out
}

// AuditConnection checks the stored connection of one project.
func AuditConnection(ctx context.Context, remote Remote, projectID string) []Entry {
	st, err := remote.SyncStatus(ctx, projectID)
	if err != nil {
		return []Entry{{Name: "sync status", Status: StatusFail, Detail: err.Error()}}
	}
	if !st.Connected || st.Connection == nil {
		return []Entry{{Name: "linked plan", Status: StatusWarn, Detail: "project is not connected to a plan"}}
	}

	c := st.Connection
	out := []Entry{{Name: "linked plan", Status: StatusOK, Detail: c.PlanTitle}}
	if c.SyncEnabled {
		out = append(out, Entry{Name: "auto-sync", Status: StatusOK})
	} else {
		out = append(out, Entry{Name: "auto-sync", Status: StatusWarn, Detail: "off"})
	}

	switch c.LastSyncStatus {
	case planner.LastSyncSuccess:
		out = append(out, Entry{Name: "last sync", Status: StatusOK})
	case planner.LastSyncPartial:
		out = append(out, Entry{Name: "last sync", Status: StatusWarn, Detail: "partial"})
	case planner.LastSyncError:
		out = append(out, Entry{Name: "last sync", Status: StatusFail, Detail: "failed"})
	default:
		out = append(out, Entry{Name: "last sync", Status: StatusSkipped, Detail: "never synced"})
	}
	return out
}

// Summary returns (ok, total) counts across all checks. Warnings count
// toward the total but not as ok.
func (r *AuditResult) Summary() (int, int) {
	ok, total := 0, 0
	for _, section := range [][]Entry{r.Config, r.Integration, r.Connection} {
		for _, e := range section {
			if e.Status == StatusSkipped {
				continue // don't count checks that do not apply
			}
			total++
			if e.Status == StatusOK {
				ok++
			}
		}
	}
	return ok, total
}

// Failed reports whether any check failed outright.
func (r *AuditResult) Failed() bool {
	for _, section := range [][]Entry{r.Config, r.Integration, r.Connection} {
		for _, e := range section {
			if e.Status == StatusFail {
				return true
			}
		}
	}
	return false
}
