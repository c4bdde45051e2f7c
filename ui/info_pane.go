package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/kastheco/opsdash/internal/syncpanel"
)

const infoLabelWidth = 18

var (
	infoHeadStyle  = lipgloss.NewStyle().Foreground(ColorFoam).Bold(true)
	infoLabelStyle = lipgloss.NewStyle().Foreground(ColorMuted).Width(infoLabelWidth)
	infoNoteStyle  = lipgloss.NewStyle().Foreground(ColorSubtle).Italic(true)
	infoErrStyle   = lipgloss.NewStyle().Foreground(ColorLove)
)

// field is one label/value line of the pane.
type field struct {
	label string
	value string
	color lipgloss.Color
}

// InfoPane shows the linked plan and the connection settings.
type InfoPane struct {
	width int
	view  syncpanel.View
	vp    viewport.Model
}

func NewInfoPane() *InfoPane {
	return &InfoPane{vp: viewport.New(0, 0)}
}

func (p *InfoPane) SetSize(width, height int) {
	p.width = width
	p.vp.Width, p.vp.Height = width, height
	p.vp.SetContent(p.render())
}

func (p *InfoPane) SetData(v syncpanel.View) {
	p.view = v
	p.vp.SetContent(p.render())
}

func (p *InfoPane) String() string { return p.vp.View() }

// IconGlyph maps the last-sync icon to a glyph and its color.
func IconGlyph(icon syncpanel.Icon) (string, lipgloss.Color) {
	switch icon {
	case syncpanel.IconSuccess:
		return "✓", ColorFoam
	case syncpanel.IconError:
		return "✗", ColorLove
	case syncpanel.IconPartial:
		return "◐", ColorGold
	}
	return "○", ColorMuted
}

func toggleField(label string, on bool) field {
	if on {
		return field{label, "on", ColorFoam}
	}
	return field{label, "off", ColorMuted}
}

func (p *InfoPane) block(title string, fields []field) string {
	valueW := max(p.width-infoLabelWidth, 10)
	lines := []string{infoHeadStyle.Render(title)}
	for _, f := range fields {
		color := f.color
		if color == "" {
			color = ColorText
		}
		value := lipgloss.NewStyle().Foreground(color).Width(valueW).Render(f.value)
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, infoLabelStyle.Render(f.label), value))
	}
	return strings.Join(lines, "\n")
}

func (p *InfoPane) connection() []field {
	v := p.view
	fields := []field{{label: "plan", value: v.PlanTitle}}
	if v.GroupName != "" {
		fields = append(fields, field{label: "team", value: v.GroupName})
	}
	if v.ChannelName != "" {
		fields = append(fields, field{label: "channel", value: v.ChannelName})
	}
	fields = append(fields, field{label: "synced tasks", value: strconv.Itoa(v.SyncedTasks)})

	glyph, color := IconGlyph(v.Icon)
	last := v.LastSync
	if v.Syncing {
		last = "syncing…"
	}
	return append(fields, field{"last sync", glyph + " " + last, color})
}

func (p *InfoPane) settings() []field {
	fields := []field{toggleField("auto-sync", p.view.SyncEnabled)}
	// Without a team there are no members to add.
	if p.view.ShowAutoAddMembers {
		fields = append(fields, toggleField("auto-add members", p.view.AutoAddMembers))
	}
	return fields
}

func (p *InfoPane) render() string {
	var parts []string
	switch p.view.State {
	case syncpanel.StateConnected:
		parts = []string{p.block("connection", p.connection()), p.block("settings", p.settings())}
	case syncpanel.StateDisconnected:
		parts = []string{"not connected to a plan", infoNoteStyle.Render("Connecting links this project to a Planner plan; existing tasks are kept.")}
	default:
		parts = []string{infoNoteStyle.Render("loading connection…")}
	}
	if err := p.view.Err; err != nil {
		parts = append(parts, infoErrStyle.Width(max(p.width, 20)).Render(err.Error()))
	}
	return strings.Join(parts, "\n\n")
}
