package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kastheco/opsdash/config"
	"github.com/kastheco/opsdash/internal/check"
	"github.com/kastheco/opsdash/internal/planner"
	"github.com/spf13/cobra"
)

// errUnhealthy is returned when a check failed to signal exit code 1 without printing a message.
var errUnhealthy = errors.New("unhealthy")

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [project]",
		Short: "Audit the planner integration and a project's connection",
		Long: `Checks three layers and reports what is broken:

  1. Config       (api url, token, timeout, audit log)
  2. Integration  (configured, connected, app registration, permissions)
  3. Connection   (linked plan, auto-sync, last sync) when a project is known

Exit code 0 unless a check failed, exit code 1 otherwise.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
		// Health failures are not usage errors.
		SilenceUsage: true,
		// Suppress cobra's "Error: ..." line for the unhealthy sentinel.
		SilenceErrors: true,
	}
	cmd.Flags().BoolP("verbose", "v", false, "show detail for passing checks too")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg := config.LoadConfig()
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	// No project is fine: the connection section is skipped.
	project, _ := cfg.ResolveProject(arg)

	var remote check.Remote
	if cfg.Validate() == nil {
		remote = planner.NewClient(cfg.APIURL, cfg.APIToken, cfg.Timeout())
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result := check.Audit(ctx, cfg, remote, project)
	return reportAudit(cmd.OutOrStdout(), result, verbose)
}

// reportAudit renders result and returns errUnhealthy when a check failed.
func reportAudit(out io.Writer, result *check.AuditResult, verbose bool) error {
	renderSection(out, "Config", result.Config, verbose)
	if result.Integration != nil {
		renderSection(out, "Integration", result.Integration, verbose)
	}
	if result.Connection != nil {
		renderSection(out, "Connection ("+result.ProjectID+")", result.Connection, verbose)
	}

	ok, total := result.Summary()
	pct := 0
	if total > 0 {
		pct = ok * 100 / total
	}

	fmt.Fprintf(out, "\nHealth: %d/%d OK (%d%%)\n", ok, total, pct)

	if result.Failed() {
		return errUnhealthy
	}
	return nil
}

func renderSection(out io.Writer, title string, entries []check.Entry, verbose bool) {
	fmt.Fprintf(out, "%s\n", title)
	for _, e := range entries {
		if e.Detail == "" || (e.Status == check.StatusOK && !verbose) {
			fmt.Fprintf(out, "  %-18s %s\n", e.Name, statusGlyph(e.Status))
			continue
		}
		fmt.Fprintf(out, "  %-18s %s %s\n", e.Name, statusGlyph(e.Status), e.Detail)
	}
}

func statusGlyph(s check.Status) string {
	switch s {
	case check.StatusOK:
		return "✓"
	case check.StatusSkipped:
		return "⊘"
	case check.StatusWarn:
		return "!"
	case check.StatusFail:
		return "✗"
	default:
		return "?"
	}
}

func init() {
	rootCmd.AddCommand(newCheckCmd())
}
