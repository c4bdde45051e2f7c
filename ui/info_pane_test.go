package ui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kastheco/opsdash/internal/syncpanel"
)

func TestInfoPane_Disconnected(t *testing.T) {
	p := NewInfoPane()
	p.SetSize(80, 24)
	p.SetData(syncpanel.View{State: syncpanel.StateDisconnected})
	assert.Contains(t, p.String(), "not connected to a plan")
}

func TestInfoPane_Connected(t *testing.T) {
	p := NewInfoPane()
	p.SetSize(80, 24)
	p.SetData(syncpanel.View{
		State:              syncpanel.StateConnected,
		PlanTitle:          "Q3 Launch",
		GroupName:          "Acme",
		ChannelName:        "Delivery",
		SyncedTasks:        12,
		LastSync:           "3 minutes ago",
		Icon:               syncpanel.IconSuccess,
		SyncEnabled:        true,
		ShowAutoAddMembers: true,
	})
	output := p.String()
	assert.Contains(t, output, "Q3 Launch")
	assert.Contains(t, output, "Acme")
	assert.Contains(t, output, "Delivery")
	assert.Contains(t, output, "12")
	assert.Contains(t, output, "✓ 3 minutes ago")
	assert.Contains(t, output, "auto-add members")
}

func TestInfoPane_HidesAutoAddWithoutGroup(t *testing.T) {
	p := NewInfoPane()
	p.SetSize(80, 24)
	p.SetData(syncpanel.View{
		State:     syncpanel.StateConnected,
		PlanTitle: "Solo plan",
		LastSync:  "Never",
		Icon:      syncpanel.IconPending,
	})
	output := p.String()
	assert.Contains(t, output, "○ Never")
	assert.Contains(t, output, "auto-sync")
	assert.NotContains(t, output, "auto-add members")
	assert.NotContains(t, output, "team")
}

func TestInfoPane_ShowsError(t *testing.T) {
	p := NewInfoPane()
	p.SetSize(80, 24)
	p.SetData(syncpanel.View{State: syncpanel.StateConnected, PlanTitle: "x", Err: errors.New("sync failed: 502")})
	assert.Contains(t, p.String(), "sync failed: 502")
}

func TestIconGlyph(t *testing.T) {
	cases := map[syncpanel.Icon]string{
		syncpanel.IconSuccess: "✓",
		syncpanel.IconError:   "✗",
		syncpanel.IconPartial: "◐",
		syncpanel.IconPending: "○",
	}
	for icon, want := range cases {
		got, _ := IconGlyph(icon)
		assert.Equal(t, want, got, string(icon))
	}
}

func TestInfoPane_LoadingAndToggles(t *testing.T) {
	p := NewInfoPane()
	p.SetSize(80, 24)
	assert.Contains(t, p.String(), "loading connection…")

	p.SetData(syncpanel.View{State: syncpanel.StateConnected, PlanTitle: "x", SyncEnabled: false, ShowAutoAddMembers: true, AutoAddMembers: true})
	out := p.String()
	assert.Regexp(t, `auto-sync\s+off`, out)
	assert.Regexp(t, `auto-add members\s+on`, out)
}
