package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kastheco/opsdash/config/auditlog"
	"github.com/kastheco/opsdash/internal/provision"
	"github.com/kastheco/opsdash/internal/syncpanel"
	"github.com/kastheco/opsdash/keys"
	"github.com/kastheco/opsdash/log"
	"github.com/kastheco/opsdash/ui/overlay"
)

// activityLimit is how many audit events the activity pane shows.
const activityLimit = 50

// activityWarn throttles the activity query warning, which would otherwise
// repeat on every redraw.
var activityWarn = log.NewEvery(time.Minute)

type refreshedMsg struct{ err error }

type syncedMsg struct {
	toast  int
	digest string
	err    error
}

type flagMsg struct {
	name string
	on   bool
	err  error
}

type disconnectedMsg struct{ err error }

// Dashboard is the sync panel of one project: connection details, manual
// sync, the connection flags and disconnect.
type Dashboard struct {
	ctx   context.Context
	panel *syncpanel.Panel
	audit auditlog.Logger

	statusBar *StatusBar
	info      *InfoPane
	activity  *ActivityPane
	notes     *overlay.Notifier
	spinner   spinner.Model
	confirm   *overlay.ConfirmOverlay

	width, height int
	showHelp      bool
	wantsConnect  bool

	// writeClipboard is clipboard.WriteAll outside tests.
	writeClipboard func(string) error
}

// NewDashboard returns the sync panel for panel's project. A nil audit
// logger leaves the activity pane empty.
func NewDashboard(ctx context.Context, panel *syncpanel.Panel, audit auditlog.Logger) *Dashboard {
	if audit == nil {
		audit = auditlog.NopLogger()
	}
	s := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	s.Style = lipgloss.NewStyle().Foreground(ColorFoam)
	d := &Dashboard{
		ctx:            ctx,
		panel:          panel,
		audit:          audit,
		statusBar:      NewStatusBar(),
		info:           NewInfoPane(),
		activity:       NewActivityPane(),
		notes:          overlay.NewNotifier(),
		spinner:        s,
		width:          80,
		height:         24,
		writeClipboard: clipboard.WriteAll,
	}
	d.layout()
	d.sync()
	return d
}

// WantsConnect reports whether the user asked to open the connect dialog.
func (d *Dashboard) WantsConnect() bool { return d.wantsConnect }

// ShowConnected raises the result of a connect made in the dialog: a success
// toast, plus a warning when the tab could not be pinned.
func (d *Dashboard) ShowConnected(out provision.Outcome) {
	d.notes.Success("Connected to " + out.Connection.PlanTitle)
	if out.TabErr != nil {
		d.notes.Warning("Connected, but the plan could not be pinned to the channel: " + out.TabErr.Error())
	}
}

func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.spinner.Tick, d.refresh(), d.notes.Tick())
}

func (d *Dashboard) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: d.panel.Refresh(d.ctx)}
	}
}

// sync copies the panel snapshot and recent activity into the panes.
func (d *Dashboard) sync() {
	v := d.panel.View()
	d.info.SetData(v)
	d.statusBar.Update(d.panel.ProjectID(), v)

	events, err := d.audit.Query(auditlog.QueryFilter{Project: d.panel.ProjectID(), Limit: activityLimit})
	if err != nil {
		if activityWarn.ShouldLog() {
			log.WarningLog.Printf("activity query failed: %v", err)
		}
		return
	}
	d.activity.SetEvents(events)
}

func (d *Dashboard) layout() {
	d.statusBar.SetSize(d.width)
	// status bar + blank line + hints
	body := max(d.height-3, 4)
	if !d.activity.Hidden() {
		infoH := max(body/2, 9)
		d.info.SetSize(d.width, infoH)
		d.activity.Resize(d.width, max(body-infoH, 2))
		return
	}
	d.info.SetSize(d.width, body)
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.layout()
		return d, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, tea.Batch(cmd, d.notes.Update(msg))

	case overlay.ToastTickMsg:
		return d, d.notes.Update(msg)

	case refreshedMsg:
		d.sync()
		if msg.err != nil {
			return d, d.toastErr(msg.err)
		}
		return d, nil

	case syncedMsg:
		d.sync()
		if msg.err != nil {
			d.notes.Resolve(msg.toast, overlay.ToastError, "Sync failed: "+msg.err.Error())
			return d, nil
		}
		d.notes.Resolve(msg.toast, overlay.ToastSuccess, msg.digest)
		return d, nil

	case flagMsg:
		d.sync()
		if msg.err != nil {
			return d, d.toastErr(msg.err)
		}
		state := "off"
		if msg.on {
			state = "on"
		}
		d.notes.Success(msg.name + " turned " + state)
		return d, d.notes.Tick()

	case disconnectedMsg:
		d.sync()
		if msg.err != nil {
			return d, d.toastErr(msg.err)
		}
		d.notes.Success("Disconnected")
		return d, d.notes.Tick()

	case tea.KeyMsg:
		return d.handleKey(msg)
	}
	return d, nil
}

func (d *Dashboard) toastErr(err error) tea.Cmd {
	d.notes.Error(err.Error())
	return d.notes.Tick()
}

func (d *Dashboard) toastWarn(msg string) tea.Cmd {
	d.notes.Warning(msg)
	return d.notes.Tick()
}

func matches(msg tea.KeyMsg, name keys.KeyName) bool {
	return key.Matches(msg, keys.GlobalkeyBindings[name])
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return d, tea.Quit
	}
	if d.confirm != nil {
		return d.handleConfirm(msg)
	}

	v := d.panel.View()
	switch {
	case matches(msg, keys.KeyQuit):
		return d, tea.Quit
	case matches(msg, keys.KeyHelp):
		d.showHelp = !d.showHelp
	case matches(msg, keys.KeyRefresh):
		return d, d.refresh()
	case matches(msg, keys.KeyToggleLog):
		d.activity.Toggle()
		d.layout()
	case matches(msg, keys.KeyUp):
		d.activity.Scroll(-1)
	case matches(msg, keys.KeyDown):
		d.activity.Scroll(1)

	case matches(msg, keys.KeyConnect):
		if v.State != syncpanel.StateDisconnected {
			return d, nil
		}
		d.wantsConnect = true
		return d, tea.Quit

	case matches(msg, keys.KeySync):
		return d.startSync()

	case matches(msg, keys.KeyCopy):
		conn, ok := d.panel.Connection()
		if !ok {
			return d, nil
		}
		if err := d.writeClipboard(conn.PlanID); err != nil {
			return d, d.toastWarn("Could not copy: " + err.Error())
		}
		d.notes.Info("Plan id copied to the clipboard")
		return d, d.notes.Tick()

	case matches(msg, keys.KeyAutoSync):
		if v.State != syncpanel.StateConnected {
			return d, nil
		}
		return d.sendFlag("Auto-sync", !v.SyncEnabled, d.panel.BeginAutoSync)

	case matches(msg, keys.KeyAutoAdd):
		if !v.ShowAutoAddMembers {
			return d, nil
		}
		return d.sendFlag("Auto-add members", !v.AutoAddMembers, d.panel.BeginAutoAddMembers)

	case matches(msg, keys.KeyDisconnect):
		if err := d.panel.RequestDisconnect(); err != nil {
			return d, nil
		}
		d.confirm = overlay.NewConfirmOverlay("Disconnect from "+v.PlanTitle+"?",
			syncpanel.DisconnectWarning, "Disconnect", "Keep", min(d.width-4, 70))
		d.sync()
	}
	return d, nil
}

// sendFlag shows the new flag value at once and sends it in the background.
func (d *Dashboard) sendFlag(name string, on bool, begin func(bool) (*syncpanel.FlagUpdate, error)) (tea.Model, tea.Cmd) {
	u, err := begin(on)
	if err != nil {
		return d, nil
	}
	d.sync()
	return d, func() tea.Msg {
		return flagMsg{name: name, on: on, err: u.Send(d.ctx)}
	}
}

func (d *Dashboard) startSync() (tea.Model, tea.Cmd) {
	if !d.panel.CanSyncNow() {
		v := d.panel.View()
		switch {
		case v.State != syncpanel.StateConnected:
			return d, nil
		case !v.SyncEnabled:
			return d, d.toastWarn("Turn auto-sync on to sync now")
		}
		return d, nil
	}
	id := d.notes.Loading("Syncing…")
	return d, tea.Batch(d.notes.Tick(), func() tea.Msg {
		digest, err := d.panel.SyncNow(d.ctx)
		return syncedMsg{toast: id, digest: digest, err: err}
	})
}

func (d *Dashboard) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !d.confirm.HandleKeyPress(msg) {
		return d, nil
	}
	confirmed := d.confirm.Confirmed()
	d.confirm = nil
	if !confirmed {
		d.panel.CancelDisconnect()
		d.sync()
		return d, nil
	}
	return d, func() tea.Msg {
		err := d.panel.ConfirmDisconnect(d.ctx)
		if errors.Is(err, syncpanel.ErrNotConfirmed) {
			err = nil
		}
		return disconnectedMsg{err: err}
	}
}

var (
	hintStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	helpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorOverlay).
			Padding(0, 1)
)

func (d *Dashboard) hints() string {
	v := d.panel.View()
	var names []keys.KeyName
	switch v.State {
	case syncpanel.StateConnected:
		names = append(names, keys.KeySync, keys.KeyAutoSync)
		if v.ShowAutoAddMembers {
			names = append(names, keys.KeyAutoAdd)
		}
		names = append(names, keys.KeyDisconnect, keys.KeyCopy)
	case syncpanel.StateDisconnected:
		names = append(names, keys.KeyConnect)
	}
	names = append(names, keys.KeyRefresh, keys.KeyHelp, keys.KeyQuit)
	return strings.Join(keys.Help(names...), " · ")
}

func (d *Dashboard) helpView() string {
	all := keys.Help(keys.KeySync, keys.KeyAutoSync, keys.KeyAutoAdd, keys.KeyDisconnect,
		keys.KeyCopy, keys.KeyConnect, keys.KeyRefresh, keys.KeyToggleLog, keys.KeyUp, keys.KeyQuit)
	return helpStyle.Render(strings.Join(all, "\n"))
}

func (d *Dashboard) View() string {
	parts := []string{d.statusBar.String(), ""}
	switch {
	case d.confirm != nil:
		parts = append(parts, lipgloss.Place(d.width, max(d.height-3, 8), lipgloss.Center, lipgloss.Center, d.confirm.Render()))
	case d.showHelp:
		parts = append(parts, d.helpView())
	default:
		parts = append(parts, d.info.String())
		if !d.activity.Hidden() {
			parts = append(parts, d.activity.View())
		}
	}
	parts = append(parts, hintStyle.Render(d.hints()))

	out := lipgloss.JoinVertical(lipgloss.Left, parts...)
	if toasts := d.notes.View(); toasts != "" {
		out = lipgloss.JoinVertical(lipgloss.Right, out, toasts)
	}
	return out
}
