package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kastheco/opsdash/config/auditlog"
	"github.com/kastheco/opsdash/internal/planner"
	"github.com/kastheco/opsdash/internal/planner/plannertest"
	"github.com/kastheco/opsdash/internal/provision"
	"github.com/kastheco/opsdash/internal/syncpanel"
)

func connectedFake(withGroup bool) *plannertest.Fake {
	fake := plannertest.NewFake()
	conn := planner.Connection{
		PlanID:        "p1",
		PlanTitle:     "Launch",
		SyncDirection: planner.SyncDirectionBidirectional,
		SyncEnabled:   true,
	}
	if withGroup {
		conn.GroupID = "g1"
		conn.GroupName = "Acme"
	}
	fake.Sync = planner.SyncStatus{Connected: true, Connection: &conn, SyncedTasks: 3}
	fake.SyncResult = planner.SyncResult{Created: 2}
	return fake
}

func newTestDashboard(t *testing.T, fake *plannertest.Fake) (*Dashboard, auditlog.Logger) {
	t.Helper()
	audit, err := auditlog.NewSQLiteLogger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { audit.Close() })

	d := NewDashboard(context.Background(), syncpanel.New(fake, "42", audit), audit)
	d.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	run(t, d, d.refresh())
	return d, audit
}

// run executes cmd and feeds the dashboard's own results back in.
func run(t *testing.T, d *Dashboard, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		ch := make(chan tea.Msg, 1)
		go func() { ch <- c() }()
		var msg tea.Msg
		select {
		case msg = <-ch:
		case <-time.After(20 * time.Millisecond):
			continue
		}
		switch msg := msg.(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case refreshedMsg, syncedMsg, flagMsg, disconnectedMsg:
			_, next := d.Update(msg)
			queue = append(queue, next)
		}
	}
}

func press(t *testing.T, d *Dashboard, k string) {
	t.Helper()
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	switch k {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	}
	_, cmd := d.Update(msg)
	run(t, d, cmd)
}

func TestDashboard_ShowsConnection(t *testing.T) {
	d, _ := newTestDashboard(t, connectedFake(true))
	out := d.View()
	assert.Contains(t, out, "Launch")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "m auto-add members")
}

func TestDashboard_SyncNowShowsDigest(t *testing.T) {
	fake := connectedFake(false)
	d, audit := newTestDashboard(t, fake)

	press(t, d, "s")
	assert.Equal(t, 1, fake.Count("TriggerSync"))
	assert.Contains(t, d.notes.Messages(), "2 tasks created")

	events, err := audit.Query(auditlog.QueryFilter{Project: "42", Kinds: []auditlog.EventKind{auditlog.EventSyncTriggered}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, d.View(), "2 tasks created")
}

func TestDashboard_SyncDisabledWarns(t *testing.T) {
	fake := connectedFake(false)
	fake.Sync.Connection.SyncEnabled = false
	d, _ := newTestDashboard(t, fake)

	press(t, d, "s")
	assert.Zero(t, fake.Count("TriggerSync"))
	assert.Contains(t, d.notes.Messages(), "Turn auto-sync on to sync now")
}

func TestDashboard_ToggleAutoSync(t *testing.T) {
	fake := connectedFake(false)
	d, _ := newTestDashboard(t, fake)

	press(t, d, "a")
	assert.False(t, d.panel.View().SyncEnabled)
	conn, ok := fake.Connection()
	require.True(t, ok)
	assert.False(t, conn.SyncEnabled)
	assert.Contains(t, d.notes.Messages(), "Auto-sync turned off")
}

func TestDashboard_ToggleShownBeforeServerAnswers(t *testing.T) {
	fake := connectedFake(false)
	d, _ := newTestDashboard(t, fake)
	assert.Regexp(t, `auto-sync\s+on`, d.View())

	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	require.NotNil(t, cmd)
	assert.Zero(t, fake.Count("SetConnectionFlags"))
	assert.Regexp(t, `auto-sync\s+off`, d.View())

	run(t, d, cmd)
	assert.Equal(t, 1, fake.Count("SetConnectionFlags"))
	assert.Regexp(t, `auto-sync\s+off`, d.View())
}

func TestDashboard_ToggleFailureReverts(t *testing.T) {
	fake := connectedFake(true)
	fake.SetErr("SetConnectionFlags", errors.New("403 forbidden"))
	d, _ := newTestDashboard(t, fake)

	press(t, d, "m")
	assert.False(t, d.panel.View().AutoAddMembers)
	assert.Contains(t, d.notes.Messages(), "403 forbidden")
}

func TestDashboard_AutoAddIgnoredWithoutGroup(t *testing.T) {
	fake := connectedFake(false)
	d, _ := newTestDashboard(t, fake)

	press(t, d, "m")
	assert.Zero(t, fake.Count("SetConnectionFlags"))
	assert.NotContains(t, d.View(), "auto-add members")
}

func TestDashboard_DisconnectCancel(t *testing.T) {
	fake := connectedFake(false)
	d, _ := newTestDashboard(t, fake)

	press(t, d, "D")
	require.NotNil(t, d.confirm)
	assert.Contains(t, d.View(), "Disconnect from Launch?")

	press(t, d, "n")
	assert.Nil(t, d.confirm)
	assert.Zero(t, fake.Count("Unlink"))
	assert.Equal(t, syncpanel.StateConnected, d.panel.State())
}

func TestDashboard_DisconnectConfirm(t *testing.T) {
	fake := connectedFake(false)
	d, _ := newTestDashboard(t, fake)
	fake.Reset()

	press(t, d, "D")
	press(t, d, "y")
	assert.Equal(t, []string{"Unlink"}, fake.Calls(), "a single DELETE and no reload")
	assert.Equal(t, syncpanel.StateDisconnected, d.panel.State())
	assert.Contains(t, d.View(), "not connected to a plan")
	assert.Contains(t, d.View(), "c connect")
}

func TestDashboard_ConnectRequestedWhenDisconnected(t *testing.T) {
	fake := plannertest.NewFake()
	d, _ := newTestDashboard(t, fake)

	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	require.NotNil(t, cmd)
	assert.True(t, d.WantsConnect())
}

func TestDashboard_ConnectIgnoredWhenConnected(t *testing.T) {
	d, _ := newTestDashboard(t, connectedFake(false))
	press(t, d, "c")
	assert.False(t, d.WantsConnect())
}

func TestDashboard_CopyPlanID(t *testing.T) {
	d, _ := newTestDashboard(t, connectedFake(false))
	var copied string
	d.writeClipboard = func(s string) error {
		copied = s
		return nil
	}

	press(t, d, "i")
	assert.Equal(t, "p1", copied)
	assert.Contains(t, d.notes.Messages(), "Plan id copied to the clipboard")
}

func TestDashboard_CopyFailureWarns(t *testing.T) {
	d, _ := newTestDashboard(t, connectedFake(false))
	d.writeClipboard = func(string) error { return errors.New("no clipboard utility") }

	press(t, d, "i")
	assert.Contains(t, d.notes.Messages(), "Could not copy: no clipboard utility")
}

func TestDashboard_CopyIgnoredWhenDisconnected(t *testing.T) {
	d, _ := newTestDashboard(t, plannertest.NewFake())
	called := false
	d.writeClipboard = func(string) error {
		called = true
		return nil
	}

	press(t, d, "i")
	assert.False(t, called)
}

func TestDashboard_ShowConnectedWarnsAboutTab(t *testing.T) {
	d, _ := newTestDashboard(t, connectedFake(true))
	d.ShowConnected(provision.Outcome{
		Connection: planner.Connection{PlanID: "p1", PlanTitle: "Launch"},
		TabErr:     errors.New("channel is archived"),
	})

	msgs := d.notes.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Connected to Launch", msgs[0])
	assert.Contains(t, msgs[1], "channel is archived")
	assert.Contains(t, d.View(), "Connected to Launch")
}

func TestDashboard_ShowConnectedWithoutTabError(t *testing.T) {
	d, _ := newTestDashboard(t, connectedFake(true))
	d.ShowConnected(provision.Outcome{Connection: planner.Connection{PlanTitle: "Launch"}, TabPinned: true})
	assert.Equal(t, []string{"Connected to Launch"}, d.notes.Messages())
}

func TestDashboard_RefreshErrorToasts(t *testing.T) {
	fake := connectedFake(false)
	d, _ := newTestDashboard(t, fake)
	fake.SetErr("SyncStatus", errors.New("gateway timeout"))

	press(t, d, "r")
	assert.Contains(t, d.notes.Messages(), "gateway timeout")
	assert.Equal(t, syncpanel.StateConnected, d.panel.State(), "last known status is kept")
}

func TestDashboard_ToggleLog(t *testing.T) {
	d, _ := newTestDashboard(t, connectedFake(false))
	assert.Contains(t, d.View(), "activity")
	press(t, d, "l")
	assert.NotContains(t, d.View(), "nothing recorded yet")
	assert.NotContains(t, d.View(), "recent")
}

func TestDashboard_TeatestSyncThenDisconnect(t *testing.T) {
	fake := connectedFake(true)
	audit := auditlog.NopLogger()
	d := NewDashboard(context.Background(), syncpanel.New(fake, "42", audit), audit)

	tm := teatest.NewTestModel(t, d, teatest.WithInitialTermSize(100, 30))

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Launch"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("created"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'D'}})
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Disconnected"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	final := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second)).(*Dashboard)

	assert.Equal(t, syncpanel.StateDisconnected, final.panel.State())
	assert.Equal(t, 1, fake.Count("TriggerSync"))
	assert.Equal(t, 1, fake.Count("Unlink"))
}
