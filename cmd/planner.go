package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kastheco/opsdash/app"
	"github.com/kastheco/opsdash/config"
	"github.com/kastheco/opsdash/config/auditlog"
	"github.com/kastheco/opsdash/internal/connectfsm"
	"github.com/kastheco/opsdash/internal/planner"
	"github.com/kastheco/opsdash/internal/provision"
	"github.com/kastheco/opsdash/internal/sentry"
	"github.com/kastheco/opsdash/internal/syncpanel"
	"github.com/kastheco/opsdash/internal/wizard"
	"github.com/kastheco/opsdash/log"
	"github.com/kastheco/opsdash/ui"
	"github.com/kastheco/opsdash/ui/connect"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ConnectOptions drives the connection wizard without the dialog. Which
// fields are read depends on Method.
type ConnectOptions struct {
	Method   connectfsm.Method
	ClientID string

	// TeamID picks an existing team at select-team.
	TeamID string
	// PlanID picks an existing plan at select-plan.
	PlanID string

	TeamName           string
	TeamDescription    string
	TeamTemplate       string
	ChannelName        string
	ChannelDescription string
	ChannelMembership  string
	PlanTitle          string

	// ChannelID is the channel the plan is pinned to. Empty keeps the channel
	// created by the method, if any.
	ChannelID string
	Pin       bool
}

// executeConnect walks the wizard from choose-method to confirm using opts
// and links the project. The integration is checked first so an unusable
// backend fails before anything is created.
func executeConnect(ctx context.Context, remote connect.Remote, audit auditlog.Logger, projectID string, opts ConnectOptions) (provision.Outcome, error) {
	if st := remote.Status(ctx); !st.Usable() {
		return provision.Outcome{}, integrationProblem(st)
	}

	w := wizard.New(remote, audit)
	w.Open(projectID, opts.ClientID)
	defer w.Close()

	if err := w.ChooseMethod(opts.Method); err != nil {
		return provision.Outcome{}, err
	}
	for step := w.Session().Step; step != connectfsm.StepConfirm; step = w.Session().Step {
		if err := connectStep(ctx, w, step, opts); err != nil {
			return provision.Outcome{}, fmt.Errorf("%s: %w", step, err)
		}
	}
	return w.Confirm(ctx)
}

func connectStep(ctx context.Context, w *wizard.Wizard, step connectfsm.Step, opts ConnectOptions) error {
	switch step {
	case connectfsm.StepSelectTeam:
		if opts.TeamID == "" {
			return errors.New("--team is required for this method")
		}
		g, err := findGroup(ctx, w, opts.TeamID)
		if err != nil {
			return err
		}
		return w.PickGroup(g)

	case connectfsm.StepSelectPlan:
		if opts.PlanID == "" {
			return errors.New("--plan is required for this method")
		}
		if err := w.LoadPlans(ctx); err != nil {
			return err
		}
		for _, p := range w.Session().Plans {
			if p.ID == opts.PlanID {
				return w.PickPlan(p)
			}
		}
		return fmt.Errorf("plan %s not found", opts.PlanID)

	case connectfsm.StepCreateTeam:
		w.SetTeamName(opts.TeamName)
		w.SetTeamDescription(opts.TeamDescription)
		w.SetTeamTemplate(opts.TeamTemplate)
		if !w.CanSubmit() {
			return errors.New("--team-name is required for this method")
		}
		return w.CreateTeam(ctx)

	case connectfsm.StepCreateChannel:
		w.SetChannelName(opts.ChannelName)
		w.SetChannelDescription(opts.ChannelDescription)
		if opts.ChannelMembership != "" {
			if err := w.SetChannelMembership(opts.ChannelMembership); err != nil {
				return err
			}
		}
		if !w.CanSubmit() {
			return errors.New("--channel-name is required for this method")
		}
		return w.CreateChannel(ctx)

	case connectfsm.StepCreatePlan:
		w.SetPlanTitle(opts.PlanTitle)
		if !w.CanSubmit() {
			return errors.New("--plan-title is required for this method")
		}
		return w.CreatePlan(ctx)

	case connectfsm.StepSelectChannel:
		w.SetPinToChannel(opts.Pin)
		if opts.Pin && opts.ChannelID != "" {
			if err := w.LoadChannels(ctx); err != nil {
				return err
			}
			var found bool
			for _, c := range w.Session().Channels {
				if c.ID == opts.ChannelID {
					if err := w.PickChannel(c); err != nil {
						return err
					}
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("channel %s not found", opts.ChannelID)
			}
		}
		if opts.Pin && w.Session().Channel == nil {
			return errors.New("--channel is required to pin the plan")
		}
		return w.ContinueFromChannel()
	}
	return fmt.Errorf("unexpected step %s", step)
}

// findGroup looks for id in the loaded groups, fetching further pages until
// it is found or the list is exhausted.
func findGroup(ctx context.Context, w *wizard.Wizard, id string) (planner.Group, error) {
	if err := w.LoadGroups(ctx); err != nil {
		return planner.Group{}, err
	}
	for {
		for _, g := range w.Session().Groups {
			if g.ID == id {
				return g, nil
			}
		}
		if !w.CanLoadMore() {
			return planner.Group{}, fmt.Errorf("team %s not found", id)
		}
		if err := w.LoadMoreGroups(ctx); err != nil {
			return planner.Group{}, err
		}
	}
}

func integrationProblem(st planner.IntegrationStatus) error {
	switch {
	case !st.Configured:
		return errors.New("the planner integration is not configured for this workspace")
	case st.PermissionIssue:
		msg := "the planner integration is missing permissions"
		if hint := firstNonEmpty(st.Message, st.Error); hint != "" {
			msg += ": " + hint
		}
		return errors.New(msg)
	case !st.Connected:
		msg := "the planner integration is not connected"
		if st.Error != "" {
			msg += ": " + st.Error
		}
		return errors.New(msg)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// describeOutcome is the line printed after a successful connect.
func describeOutcome(out provision.Outcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "connected: %s", out.Connection.PlanTitle)
	if out.Connection.GroupName != "" {
		fmt.Fprintf(&sb, " (%s)", out.Connection.GroupName)
	}
	sb.WriteString("\n")
	switch {
	case out.TabPinned:
		fmt.Fprintf(&sb, "pinned to %s\n", out.Connection.ChannelName)
	case out.TabErr != nil:
		fmt.Fprintf(&sb, "warning: the plan is linked but the tab could not be pinned: %v\n", out.TabErr)
	}
	return sb.String()
}

// executeStatus refreshes panel and renders it as plain text.
func executeStatus(ctx context.Context, panel *syncpanel.Panel) (string, error) {
	if err := panel.Refresh(ctx); err != nil {
		return "", err
	}
	return renderStatus(panel.ProjectID(), panel.View()), nil
}

func renderStatus(projectID string, v syncpanel.View) string {
	var sb strings.Builder
	row := func(k, val string) {
		fmt.Fprintf(&sb, "%-10s %s\n", k, val)
	}
	row("project", projectID)
	row("state", v.State.String())
	if v.State != syncpanel.StateConnected {
		return sb.String()
	}
	row("plan", v.PlanTitle)
	if v.GroupName != "" {
		row("team", v.GroupName)
	}
	if v.ChannelName != "" {
		row("channel", v.ChannelName)
	}
	row("tasks", fmt.Sprintf("%d synced", v.SyncedTasks))
	glyph, _ := ui.IconGlyph(v.Icon)
	row("last sync", glyph+" "+v.LastSync)
	row("auto-sync", onOff(v.SyncEnabled))
	if v.ShowAutoAddMembers {
		row("auto-add", onOff(v.AutoAddMembers))
	}
	return sb.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// executeSync triggers a sync and returns its digest.
func executeSync(ctx context.Context, panel *syncpanel.Panel) (string, error) {
	if err := panel.Refresh(ctx); err != nil {
		return "", err
	}
	return panel.SyncNow(ctx)
}

// executeFlags updates the connection toggles. A nil flag is left alone.
func executeFlags(ctx context.Context, panel *syncpanel.Panel, autoSync, autoAdd *bool) (string, error) {
	if autoSync == nil && autoAdd == nil {
		return "", errors.New("nothing to change: pass --auto-sync or --auto-add-members")
	}
	if err := panel.Refresh(ctx); err != nil {
		return "", err
	}
	if autoSync != nil {
		if err := panel.SetAutoSync(ctx, *autoSync); err != nil {
			return "", err
		}
	}
	if autoAdd != nil {
		if !panel.ShowAutoAddMembers() {
			return "", errors.New("auto-add members needs a connection with a team")
		}
		if err := panel.SetAutoAddMembers(ctx, *autoAdd); err != nil {
			return "", err
		}
	}
	return renderStatus(panel.ProjectID(), panel.View()), nil
}

// executeDisconnect unlinks the project. Requires yes=true to prevent
// accidental misuse.
func executeDisconnect(ctx context.Context, panel *syncpanel.Panel, yes bool) (string, error) {
	if !yes {
		return "", fmt.Errorf("--yes required to disconnect. %s", syncpanel.DisconnectWarning)
	}
	if err := panel.Refresh(ctx); err != nil {
		return "", err
	}
	title := panel.View().PlanTitle
	if err := panel.RequestDisconnect(); err != nil {
		return "", err
	}
	if err := panel.ConfirmDisconnect(ctx); err != nil {
		return "", err
	}
	return title, nil
}

// executeHistory returns the recorded connection events of projectID,
// newest first.
func executeHistory(audit auditlog.Logger, projectID string, kinds []string, limit int) (string, error) {
	filter := auditlog.QueryFilter{Project: projectID, Limit: limit}
	for _, k := range kinds {
		filter.Kinds = append(filter.Kinds, auditlog.EventKind(k))
	}
	events, err := audit.Query(filter)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "no events recorded for " + projectID + "\n", nil
	}
	var sb strings.Builder
	for _, e := range events {
		level := e.Level
		if level == "" {
			level = "info"
		}
		line := fmt.Sprintf("%s  %-5s  %-17s %s", e.Timestamp.Local().Format("2006-01-02 15:04:05"), level, e.Kind, e.Message)
		sb.WriteString(strings.TrimRight(line, " ") + "\n")
	}
	return sb.String(), nil
}

// env is everything a planner command runs against.
type env struct {
	cfg     *config.Config
	client  *planner.Client
	audit   auditlog.Logger
	project string
}

func (e *env) close() {
	if err := e.audit.Close(); err != nil {
		log.WarningLog.Printf("close audit log: %v", err)
	}
}

// openEnv loads config, resolves the project and opens the audit log. A
// broken audit log is logged and replaced by a no-op logger.
func openEnv(projectArg string) (*env, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	project, err := cfg.ResolveProject(projectArg)
	if err != nil {
		return nil, err
	}
	sentry.SetContext(project, cfg.APIURL)
	sentry.Redact(cfg.APIToken)

	audit := auditlog.NopLogger()
	if cfg.AuditDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.AuditDB), 0o755); err != nil {
			log.WarningLog.Printf("create audit log dir: %v", err)
		} else if l, err := auditlog.Open(cfg.AuditDB); err != nil {
			log.WarningLog.Printf("open audit log: %v", err)
		} else {
			audit = l
		}
	}
	return &env{
		cfg:     cfg,
		client:  planner.NewClient(cfg.APIURL, cfg.APIToken, cfg.Timeout()),
		audit:   audit,
		project: project,
	}, nil
}

func projectArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// RunDashboard opens the connection dashboard of a project.
func RunDashboard(ctx context.Context, projectArg string) error {
	e, err := openEnv(projectArg)
	if err != nil {
		return err
	}
	defer e.close()
	return app.Run(ctx, e.client, e.audit, e.project)
}

// NewPlannerCmd builds the `opsdash planner` cobra command tree.
func NewPlannerCmd() *cobra.Command {
	plannerCmd := &cobra.Command{
		Use:   "planner",
		Short: "connect a project to a planner plan and manage the connection",
	}

	// opsdash planner connect
	var (
		opts   ConnectOptions
		method string
	)
	connectCmd := &cobra.Command{
		Use:   "connect [project]",
		Short: "link a project to a plan (interactive unless --method is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(projectArg(args))
			if err != nil {
				return err
			}
			defer e.close()

			if method == "" {
				out, ok, err := app.RunConnect(cmd.Context(), e.client, e.audit, e.project, opts.ClientID)
				if err != nil {
					return err
				}
				if ok {
					fmt.Print(describeOutcome(out))
				}
				return nil
			}
			m, err := connectfsm.ParseMethod(method)
			if err != nil {
				return err
			}
			opts.Method = m
			out, err := executeConnect(cmd.Context(), e.client, e.audit, e.project, opts)
			if err != nil {
				return err
			}
			fmt.Print(describeOutcome(out))
			return nil
		},
	}
	f := connectCmd.Flags()
	f.StringVar(&method, "method", "", "existing-plan, create-in-team, create-channel-in-team or create-new-team")
	f.StringVar(&opts.ClientID, "client", "", "client id recorded on a new team")
	f.StringVar(&opts.TeamID, "team", "", "existing team id")
	f.StringVar(&opts.PlanID, "plan", "", "existing plan id")
	f.StringVar(&opts.TeamName, "team-name", "", "name of the team to create")
	f.StringVar(&opts.TeamDescription, "team-description", "", "description of the team to create")
	f.StringVar(&opts.TeamTemplate, "team-template", "", "template id of the team to create")
	f.StringVar(&opts.ChannelName, "channel-name", "", "name of the channel to create")
	f.StringVar(&opts.ChannelDescription, "channel-description", "", "description of the channel to create")
	f.StringVar(&opts.ChannelMembership, "channel-membership", "", "standard or private (default: standard)")
	f.StringVar(&opts.PlanTitle, "plan-title", "", "title of the plan to create")
	f.StringVar(&opts.ChannelID, "channel", "", "channel to pin the plan to")
	f.BoolVar(&opts.Pin, "pin", false, "pin the plan as a tab in the channel")
	plannerCmd.AddCommand(connectCmd)

	// opsdash planner status
	var plain bool
	statusCmd := &cobra.Command{
		Use:   "status [project]",
		Short: "show the connection of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Piped output gets the plain rendering.
			if !plain && term.IsTerminal(int(os.Stdout.Fd())) {
				return RunDashboard(cmd.Context(), projectArg(args))
			}
			e, err := openEnv(projectArg(args))
			if err != nil {
				return err
			}
			defer e.close()
			out, err := executeStatus(cmd.Context(), syncpanel.New(e.client, e.project, e.audit))
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&plain, "plain", false, "print the status instead of opening the dashboard")
	plannerCmd.AddCommand(statusCmd)

	// opsdash planner sync
	syncCmd := &cobra.Command{
		Use:   "sync [project]",
		Short: "sync tasks with the linked plan now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(projectArg(args))
			if err != nil {
				return err
			}
			defer e.close()
			digest, err := executeSync(cmd.Context(), syncpanel.New(e.client, e.project, e.audit))
			if err != nil {
				return err
			}
			fmt.Printf("synced: %s\n", digest)
			return nil
		},
	}
	plannerCmd.AddCommand(syncCmd)

	// opsdash planner flags
	var autoSync, autoAdd bool
	flagsCmd := &cobra.Command{
		Use:   "flags [project]",
		Short: "turn auto-sync or auto-add members on or off",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var syncFlag, addFlag *bool
			if cmd.Flags().Changed("auto-sync") {
				syncFlag = &autoSync
			}
			if cmd.Flags().Changed("auto-add-members") {
				addFlag = &autoAdd
			}
			e, err := openEnv(projectArg(args))
			if err != nil {
				return err
			}
			defer e.close()
			out, err := executeFlags(cmd.Context(), syncpanel.New(e.client, e.project, e.audit), syncFlag, addFlag)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	flagsCmd.Flags().BoolVar(&autoSync, "auto-sync", false, "sync tasks automatically")
	flagsCmd.Flags().BoolVar(&autoAdd, "auto-add-members", false, "add project members to the team automatically")
	plannerCmd.AddCommand(flagsCmd)

	// opsdash planner disconnect
	var yes bool
	disconnectCmd := &cobra.Command{
		Use:   "disconnect [project]",
		Short: "unlink a project from its plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(projectArg(args))
			if err != nil {
				return err
			}
			defer e.close()
			title, err := executeDisconnect(cmd.Context(), syncpanel.New(e.client, e.project, e.audit), yes)
			if err != nil {
				return err
			}
			fmt.Printf("disconnected from %s\n", title)
			return nil
		},
	}
	disconnectCmd.Flags().BoolVar(&yes, "yes", false, "confirm the disconnect")
	plannerCmd.AddCommand(disconnectCmd)

	// opsdash planner history
	var (
		kinds []string
		limit int
	)
	historyCmd := &cobra.Command{
		Use:   "history [project]",
		Short: "list recorded connection events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(projectArg(args))
			if err != nil {
				return err
			}
			defer e.close()
			out, err := executeHistory(e.audit, e.project, kinds, limit)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	historyCmd.Flags().StringSliceVar(&kinds, "kind", nil, "only show these event kinds (e.g. project_linked,sync_failed)")
	historyCmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")
	plannerCmd.AddCommand(historyCmd)

	return plannerCmd
}
