package ui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kastheco/opsdash/config/auditlog"
)

var paneNow = time.Date(2026, 3, 4, 18, 0, 0, 0, time.Local)

func newPane(w, h int) *ActivityPane {
	p := NewActivityPane()
	p.now = func() time.Time { return paneNow }
	p.Resize(w, h)
	return p
}

func TestActivityPane_Empty(t *testing.T) {
	p := newPane(60, 10)
	out := p.View()
	assert.Contains(t, out, "activity")
	assert.Contains(t, out, "nothing recorded yet")
	assert.NotContains(t, out, "recent")
}

func TestActivityPane_GroupsByDay(t *testing.T) {
	p := newPane(60, 12)
	p.SetEvents([]auditlog.Event{
		{Kind: auditlog.EventSyncTriggered, Timestamp: paneNow.Add(-time.Hour), Message: "2 tasks created"},
		{Kind: auditlog.EventTabPinned, Timestamp: paneNow.Add(-25 * time.Hour), Message: "pinned Launch to Delivery"},
		{Kind: auditlog.EventProjectLinked, Timestamp: paneNow.Add(-26 * time.Hour), Message: "linked plan Launch"},
		{Kind: auditlog.EventPlanCreated, Timestamp: time.Date(2026, 2, 20, 9, 0, 0, 0, time.Local), Message: "created plan Launch"},
	})
	out := p.View()
	assert.Contains(t, out, "· 4 recent")
	assert.Contains(t, out, "today")
	assert.Contains(t, out, "yesterday")
	assert.Contains(t, out, "Fri Feb 20")
	assert.Contains(t, out, "17:00 ⟳ 2 tasks created")
	assert.Equal(t, 1, strings.Count(out, "yesterday"), "one date line per day")
}

func TestActivityPane_Levels(t *testing.T) {
	p := newPane(60, 10)
	p.SetEvents([]auditlog.Event{
		{Kind: auditlog.EventSyncFailed, Timestamp: paneNow, Message: "gateway timeout", Level: "error"},
		{Kind: auditlog.EventTabPinFailed, Timestamp: paneNow, Message: "pin refused", Level: "warn"},
	})
	out := p.View()
	assert.Contains(t, out, "gateway timeout")
	assert.Contains(t, out, "pin refused")
}

func TestActivityPane_Truncates(t *testing.T) {
	p := newPane(40, 5)
	long := "this is a very long message that cannot fit into a forty column pane"
	p.SetEvents([]auditlog.Event{{Kind: auditlog.EventError, Timestamp: paneNow, Message: long}})
	out := p.View()
	assert.NotContains(t, out, long)
	assert.Contains(t, out, "this is a very")
}

func TestActivityPane_Scroll(t *testing.T) {
	p := newPane(60, 4)
	events := make([]auditlog.Event, 20)
	for i := range events {
		events[i] = auditlog.Event{Kind: auditlog.EventSyncTriggered, Timestamp: paneNow, Message: fmt.Sprintf("sync %02d", i)}
	}
	p.SetEvents(events)
	assert.Contains(t, p.View(), "sync 00")

	p.Scroll(6)
	assert.NotContains(t, p.View(), "sync 00")

	p.Scroll(-6)
	assert.Contains(t, p.View(), "sync 00")
}

func TestActivityPane_Toggle(t *testing.T) {
	p := NewActivityPane()
	assert.False(t, p.Hidden())
	p.Toggle()
	assert.True(t, p.Hidden())
}

func TestDayLabel(t *testing.T) {
	assert.Equal(t, "today", dayLabel(paneNow.Add(-17*time.Hour), paneNow))
	assert.Equal(t, "yesterday", dayLabel(paneNow.Add(-19*time.Hour), paneNow))
	assert.Equal(t, "Dec 31 2025", dayLabel(time.Date(2025, 12, 31, 12, 0, 0, 0, time.Local), paneNow))
}

func TestKindGlyph(t *testing.T) {
	g, c := KindGlyph(auditlog.EventSyncFailed)
	assert.Equal(t, "!", g)
	assert.Equal(t, ColorLove, c)

	g, _ = KindGlyph(auditlog.EventKind("unknown"))
	assert.Equal(t, "·", g)
}
