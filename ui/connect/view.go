package connect

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"github.com/kastheco/opsdash/internal/connectfsm"
	"github.com/kastheco/opsdash/internal/planner"
	"github.com/kastheco/opsdash/internal/wizard"
	"github.com/kastheco/opsdash/ui/overlay"
)

// maxRows caps the number of list rows drawn at once.
const maxRows = 12

const notConfiguredDoc = `# Planner integration unavailable

The planner integration is not set up for this workspace, so projects cannot
be connected to plans yet.

An administrator needs to:

1. Register the planner application with your directory.
2. Grant it access to teams, channels and plans.
3. Enter the application credentials in the workspace settings.

Run ` + "`opsdash check`" + ` to see the current integration status.
`

var stepTitles = map[connectfsm.Step]string{
	connectfsm.StepChooseMethod:  "Connect to a plan",
	connectfsm.StepSelectTeam:    "Select a team",
	connectfsm.StepSelectPlan:    "Select a plan",
	connectfsm.StepCreatePlan:    "Create a plan",
	connectfsm.StepSelectChannel: "Pin to a channel",
	connectfsm.StepCreateTeam:    "Create a team",
	connectfsm.StepCreateChannel: "Create a channel",
	connectfsm.StepConfirm:       "Confirm",
}

func (m Model) View() string {
	var body string
	switch m.mode {
	case modeChecking:
		body = m.spinner.View() + " Checking planner integration…"
	case modeUnavailable:
		body = m.unavailableView()
	case modeDone:
		body = m.doneView()
	default:
		body = m.wizardView()
	}

	dialog := overlay.DialogStyle.Width(m.dialogWidth()).Render(body)
	if toasts := m.notes.View(); toasts != "" {
		return lipgloss.JoinVertical(lipgloss.Left, dialog, toasts)
	}
	return dialog
}

func (m Model) dialogWidth() int {
	return max(min(m.width-2, 90), 40)
}

func (m Model) textWidth() int {
	return m.dialogWidth() - 6
}

func (m Model) unavailableView() string {
	st := m.status
	if st.Configured && st.PermissionIssue {
		hint := st.Message
		if hint == "" {
			hint = st.Error
		}
		if hint == "" {
			hint = "Ask an administrator to grant the planner application the required permissions."
		}
		return overlay.TitleStyle.Render("Missing planner permissions") + "\n\n" +
			wordwrap.String(hint, m.textWidth()) + "\n\n" +
			overlay.HintStyle.Render("press any key to close")
	}

	doc := notConfiguredDoc
	if detail := firstNonEmpty(st.Message, st.Error); detail != "" {
		doc += "\n> " + detail + "\n"
	}
	rendered, err := renderMarkdown(doc, m.textWidth())
	if err != nil {
		rendered = wordwrap.String(doc, m.textWidth())
	}
	return strings.TrimRight(rendered, "\n") + "\n\n" + overlay.HintStyle.Render("press any key to close")
}

// markdownStyle picks the glamour style once per process.
var markdownStyle = sync.OnceValue(func() string {
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
})

func renderMarkdown(doc string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(markdownStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(doc)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (m Model) doneView() string {
	out, ok := m.Outcome()
	if !ok {
		return ""
	}
	lines := []string{overlay.OKStyle.Render("✓ Connected to " + out.Connection.PlanTitle)}
	if out.TabPinned {
		lines = append(lines, overlay.SubtitleStyle.Render("Pinned to "+out.Connection.ChannelName))
	}
	if out.TabErr != nil {
		lines = append(lines,
			overlay.WarnStyle.Render(wordwrap.String("The plan could not be pinned to the channel: "+out.TabErr.Error(), m.textWidth())),
			"",
			overlay.HintStyle.Render("press any key to continue"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) wizardView() string {
	s := m.wiz.Session()
	var b strings.Builder

	b.WriteString(overlay.TitleStyle.Render(stepTitles[s.Step]))
	if crumbs := m.progress(s); crumbs != "" {
		b.WriteString("  " + crumbs)
	}
	b.WriteString("\n\n")

	switch s.Step {
	case connectfsm.StepChooseMethod:
		if m.methods != nil {
			b.WriteString(m.methods.View())
		}
		b.WriteString("\n" + overlay.HintStyle.Render("1-4 pick · "+hints(keys.Up, keys.Down, keys.Select, keys.Quit)))
	case connectfsm.StepSelectTeam:
		b.WriteString(m.teamList(s))
	case connectfsm.StepSelectPlan:
		b.WriteString(m.planList(s))
	case connectfsm.StepSelectChannel:
		b.WriteString(m.channelList(s))
	case connectfsm.StepCreateTeam, connectfsm.StepCreateChannel, connectfsm.StepCreatePlan:
		if m.form != nil {
			hint := ""
			if s.Pending {
				hint = m.spinner.View() + " Creating…"
			}
			b.WriteString(m.form.Render(hint))
		}
	case connectfsm.StepConfirm:
		b.WriteString(m.confirmView(s))
	}

	if s.Err != nil {
		b.WriteString("\n\n" + overlay.ErrorStyle.Render(wordwrap.String(s.Err.Error(), m.textWidth())))
	}
	return b.String()
}

// progress renders the steps of the chosen method with the current one highlighted.
func (m Model) progress(s wizard.Session) string {
	if s.Method == "" {
		return ""
	}
	path := connectfsm.Path(s.Method)
	for i, step := range path {
		if step == s.Step {
			return overlay.SubtitleStyle.Render(fmt.Sprintf("step %d of %d", i+1, len(path)))
		}
	}
	return ""
}

func (m Model) truncate(s string) string {
	return ansi.Truncate(s, m.textWidth()-4, "…")
}

func (m Model) filterLine(s wizard.Session) string {
	if m.filtering {
		return m.filter.View() + "\n"
	}
	if s.FilterActive() {
		return overlay.LabelStyle.Render("filter: "+s.Filter) + "\n"
	}
	return ""
}

// window returns the bounds of the rows to draw so the cursor stays visible.
func (m Model) window(n int) (int, int) {
	start := 0
	if m.cursor >= maxRows {
		start = m.cursor - maxRows + 1
	}
	return start, min(start+maxRows, n)
}

func (m Model) row(i int, label, detail string) string {
	line := m.truncate(label)
	if detail != "" {
		line += overlay.SubtitleStyle.Render("  " + m.truncate(detail))
	}
	if i == m.cursor {
		return overlay.SelectedStyle.Render("› ") + overlay.SelectedStyle.Render(line)
	}
	return "  " + line
}

func (m Model) teamList(s wizard.Session) string {
	var b strings.Builder
	b.WriteString(overlay.SubtitleStyle.Render(s.ScopeLabel()) + "\n")
	b.WriteString(m.filterLine(s))

	groups := s.VisibleGroups()
	switch {
	case s.LoadingGroups && len(s.Groups) == 0:
		b.WriteString(m.spinner.View() + " Loading teams…\n")
	case len(groups) == 0 && s.GroupsLoaded:
		if s.FilterActive() {
			b.WriteString(overlay.HintStyle.Render("No teams match the filter") + "\n")
		} else {
			b.WriteString(overlay.HintStyle.Render("No teams found") + "\n")
		}
	}
	start, end := m.window(len(groups))
	for i := start; i < end; i++ {
		b.WriteString(m.row(i, groups[i].DisplayName, groups[i].Description) + "\n")
	}

	if s.LoadingGroups && len(s.Groups) > 0 {
		b.WriteString(m.spinner.View() + " Loading more…\n")
	} else if s.CanLoadMore() {
		b.WriteString(overlay.LabelStyle.Render("More teams available") + "\n")
	}
	hint := hints(keys.Up, keys.Down, keys.Select, keys.Filter, keys.Back)
	if s.CanLoadMore() {
		hint = hints(keys.Up, keys.Down, keys.Select, keys.Filter, keys.More, keys.Back)
	}
	if s.Err != nil {
		hint += " · " + hints(keys.Retry)
	}
	b.WriteString("\n" + overlay.HintStyle.Render(hint))
	return b.String()
}

func (m Model) planList(s wizard.Session) string {
	var b strings.Builder
	b.WriteString(m.filterLine(s))

	plans := s.VisiblePlans()
	switch {
	case s.LoadingPlans:
		b.WriteString(m.spinner.View() + " Loading plans…\n")
	case len(plans) == 0 && s.PlansLoaded:
		if s.FilterActive() {
			b.WriteString(overlay.HintStyle.Render("No plans match the filter") + "\n")
		} else {
			b.WriteString(overlay.HintStyle.Render("No plans found") + "\n")
		}
	}
	start, end := m.window(len(plans))
	for i := start; i < end; i++ {
		owner := ""
		if g := s.OwnerOf(plans[i]); g != nil {
			owner = g.DisplayName
		}
		b.WriteString(m.row(i, plans[i].Title, owner) + "\n")
	}

	hint := hints(keys.Up, keys.Down, keys.Select, keys.Filter, keys.Back)
	if s.Err != nil {
		hint += " · " + hints(keys.Retry)
	}
	b.WriteString("\n" + overlay.HintStyle.Render(hint))
	return b.String()
}

func (m Model) channelList(s wizard.Session) string {
	var b strings.Builder
	pin := "[ ]"
	if s.PinToChannel {
		pin = "[x]"
	}
	b.WriteString(overlay.LabelStyle.Render(pin+" Pin the plan as a tab in the selected channel") + "\n\n")

	switch {
	case s.LoadingChannels:
		b.WriteString(m.spinner.View() + " Loading channels…\n")
	case len(s.Channels) == 0 && s.ChannelsLoaded:
		b.WriteString(overlay.HintStyle.Render("This team has no channels; continue without a tab") + "\n")
	}
	start, end := m.window(len(s.Channels))
	for i := start; i < end; i++ {
		label := s.Channels[i].DisplayName
		if s.Channel != nil && s.Channel.ID == s.Channels[i].ID {
			label += " ✓"
		}
		b.WriteString(m.row(i, label, s.Channels[i].Description) + "\n")
	}

	hint := hints(keys.Up, keys.Down, keys.Select, keys.Pin, keys.Back)
	if s.Err != nil {
		hint += " · " + hints(keys.Retry)
	}
	b.WriteString("\n" + overlay.HintStyle.Render(hint))
	return b.String()
}

func (m Model) confirmView(s wizard.Session) string {
	rows := [][2]string{{"Method", s.Method.Label()}}
	if s.Group != nil {
		rows = append(rows, [2]string{"Team", s.Group.DisplayName})
	} else if s.Plan != nil {
		rows = append(rows, [2]string{"Team", wizard.UnknownGroupName})
	}
	if s.Plan != nil {
		rows = append(rows, [2]string{"Plan", s.Plan.Title})
	}
	if s.Method != connectfsm.MethodExistingPlan {
		switch {
		case s.Channel != nil && s.PinToChannel:
			rows = append(rows, [2]string{"Tab", "pinned in " + s.Channel.DisplayName})
		case s.Channel != nil:
			rows = append(rows, [2]string{"Channel", s.Channel.DisplayName + " (no tab)"})
		default:
			rows = append(rows, [2]string{"Tab", "none"})
		}
	}
	rows = append(rows, [2]string{"Sync", planner.SyncDirectionBidirectional})

	var b strings.Builder
	for _, r := range rows {
		b.WriteString(overlay.LabelStyle.Width(9).Render(r[0]) + overlay.ValueStyle.Render(m.truncate(r[1])) + "\n")
	}
	if s.Pending {
		b.WriteString("\n" + m.spinner.View() + " Connecting…")
		return b.String()
	}
	b.WriteString("\n" + overlay.HintStyle.Render(hints(keys.Select, keys.Back, keys.StartOver, keys.Quit)))
	return b.String()
}
