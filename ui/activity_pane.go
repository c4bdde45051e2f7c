package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/kastheco/opsdash/config/auditlog"
)

// ActivityPane lists the audit events of the project, newest first, with a
// date line whenever the day changes.
type ActivityPane struct {
	events []auditlog.Event
	vp     viewport.Model
	width  int
	height int
	hidden bool
	now    func() time.Time
}

func NewActivityPane() *ActivityPane {
	return &ActivityPane{vp: viewport.New(0, 0), now: time.Now}
}

// Resize sets the outer size. One line goes to the title.
func (p *ActivityPane) Resize(w, h int) {
	p.width, p.height = w, h
	p.vp.Width = w
	p.vp.Height = max(h-1, 0)
	p.vp.SetContent(p.body())
}

func (p *ActivityPane) Height() int { return p.height }

// SetEvents replaces the list and scrolls back to the newest event.
func (p *ActivityPane) SetEvents(events []auditlog.Event) {
	p.events = events
	p.vp.SetContent(p.body())
	p.vp.GotoTop()
}

// Scroll moves the list by delta lines; negative goes towards newer events.
func (p *ActivityPane) Scroll(delta int) {
	if delta < 0 {
		p.vp.LineUp(-delta)
		return
	}
	p.vp.LineDown(delta)
}

func (p *ActivityPane) Hidden() bool { return p.hidden }

func (p *ActivityPane) Toggle() { p.hidden = !p.hidden }

var (
	activityTitleStyle = lipgloss.NewStyle().Foreground(ColorSubtle).Bold(true)
	activityDimStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	activityTextStyle  = lipgloss.NewStyle().Foreground(ColorText)
	activityWarnStyle  = lipgloss.NewStyle().Foreground(ColorGold)
	activityErrStyle   = lipgloss.NewStyle().Foreground(ColorLove)
)

func (p *ActivityPane) View() string {
	title := activityTitleStyle.Render("activity")
	if n := len(p.events); n > 0 {
		title += activityDimStyle.Render(fmt.Sprintf(" · %d recent", n))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, p.vp.View())
}

func (p *ActivityPane) body() string {
	if len(p.events) == 0 {
		return activityDimStyle.Render("nothing recorded yet")
	}
	var (
		lines []string
		day   string
	)
	for _, e := range p.events {
		at := e.Timestamp.Local()
		if d := dayLabel(at, p.now()); d != day {
			day = d
			lines = append(lines, activityDimStyle.Render(d))
		}
		lines = append(lines, p.row(e, at))
	}
	return strings.Join(lines, "\n")
}

func (p *ActivityPane) row(e auditlog.Event, at time.Time) string {
	glyph, color := KindGlyph(e.Kind)
	lead := "  " + activityDimStyle.Render(at.Format("15:04")) + " " +
		lipgloss.NewStyle().Foreground(color).Render(glyph) + " "
	msg := e.Message
	if room := p.width - lipgloss.Width(lead); p.width > 0 && room > 1 {
		msg = ansi.Truncate(msg, room, "…")
	}
	switch e.Level {
	case "warn":
		return lead + activityWarnStyle.Render(msg)
	case "error":
		return lead + activityErrStyle.Render(msg)
	}
	return lead + activityTextStyle.Render(msg)
}

// dayLabel names the calendar day of t relative to now.
func dayLabel(t, now time.Time) string {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	today := time.Date(y2, m2, d2, 0, 0, 0, 0, now.Location())
	switch day := time.Date(y1, m1, d1, 0, 0, 0, 0, now.Location()); {
	case day.Equal(today):
		return "today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "yesterday"
	case y1 == y2:
		return t.Format("Mon Jan 2")
	default:
		return t.Format("Jan 2 2006")
	}
}

// KindGlyph is the marker drawn in front of an event of kind k.
func KindGlyph(k auditlog.EventKind) (string, lipgloss.Color) {
	switch k {
	case auditlog.EventTeamCreated, auditlog.EventChannelCreated, auditlog.EventPlanCreated:
		return "+", ColorFoam
	case auditlog.EventProjectLinked:
		return "⇄", ColorIris
	case auditlog.EventProjectUnlinked:
		return "✕", ColorRose
	case auditlog.EventTabPinned:
		return "⌖", ColorFoam
	case auditlog.EventTabPinFailed:
		return "!", ColorGold
	case auditlog.EventFlagsChanged:
		return "⚙", ColorSubtle
	case auditlog.EventSyncTriggered:
		return "⟳", ColorFoam
	case auditlog.EventSyncFailed, auditlog.EventCreateFailed, auditlog.EventError:
		return "!", ColorLove
	}
	return "·", ColorMuted
}
