package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/kastheco/opsdash/internal/syncpanel"
)

// StatusBar is the top line of the dashboard: where we are on the left,
// connection state and any running action on the right.
type StatusBar struct {
	width    int
	project  string
	plan     string
	state    syncpanel.State
	activity string
}

func NewStatusBar() *StatusBar { return &StatusBar{} }

func (s *StatusBar) SetSize(width int) { s.width = width }

// Update copies what the bar shows from the panel snapshot.
func (s *StatusBar) Update(project string, v syncpanel.View) {
	s.project = project
	s.plan = v.PlanTitle
	s.state = v.State
	switch {
	case v.Syncing:
		s.activity = "syncing…"
	case v.ConfirmingDisconnect:
		s.activity = "confirm disconnect"
	default:
		s.activity = ""
	}
}

var (
	barStyle      = lipgloss.NewStyle().Background(ColorSurface).Foreground(ColorText)
	barBrandStyle = barStyle.Foreground(ColorIris).Bold(true)
	barDimStyle   = barStyle.Foreground(ColorSubtle)
)

func stateBadge(st syncpanel.State) string {
	switch st {
	case syncpanel.StateConnected:
		return barStyle.Foreground(ColorFoam).Render("● connected")
	case syncpanel.StateDisconnected:
		return barStyle.Foreground(ColorRose).Render("○ not connected")
	}
	return barStyle.Foreground(ColorMuted).Render("◌ loading")
}

func (s *StatusBar) String() string {
	if s.width < 10 {
		return ""
	}
	dot := barDimStyle.Render(" · ")
	left := barBrandStyle.Render(" opsdash")
	if s.project != "" {
		left += dot + barStyle.Render("project "+s.project)
	}
	if s.plan != "" {
		left += dot + barStyle.Render(s.plan)
	}

	right := stateBadge(s.state) + barStyle.Render(" ")
	if s.activity != "" {
		right = barDimStyle.Render(s.activity) + dot + right
	}

	room := s.width - lipgloss.Width(right) - 1
	if room < 1 {
		return ansi.Truncate(right, s.width, "")
	}
	left = ansi.Truncate(left, room, "…")
	gap := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	return left + barStyle.Render(strings.Repeat(" ", max(gap, 0))) + right
}
