// Package syncpanel is the read/act surface for an existing project
// connection: status, manual sync, the two connection flags, and disconnect.
package syncpanel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kastheco/opsdash/config/auditlog"
	"github.com/kastheco/opsdash/internal/planner"
	"github.com/kastheco/opsdash/log"
)

// DisconnectWarning is shown before a disconnect is confirmed.
const DisconnectWarning = "Disconnecting stops syncing this project. Tasks already in Planner are not deleted."

var (
	ErrNotConnected = errors.New("project is not connected to a plan")
	ErrSyncDisabled = errors.New("auto-sync is off")
	ErrBusy         = errors.New("another operation is still in progress")
	ErrNotConfirmed = errors.New("disconnect was not confirmed")
)

// State is the panel's top-level rendering mode.
type State int

const (
	StateUnknown State = iota
	StateDisconnected
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// Icon is the sync health marker shown next to the last sync time.
type Icon string

const (
	IconSuccess Icon = "success"
	IconError   Icon = "error"
	IconPartial Icon = "partial"
	IconPending Icon = "pending"
)

// IconFor maps a connection's lastSyncStatus to an icon. Unknown and empty
// values are pending.
func IconFor(lastSyncStatus string) Icon {
	switch lastSyncStatus {
	case planner.LastSyncSuccess:
		return IconSuccess
	case planner.LastSyncError:
		return IconError
	case planner.LastSyncPartial:
		return IconPartial
	}
	return IconPending
}

// Remote is the part of planner.Client the panel uses.
type Remote interface {
	SyncStatus(ctx context.Context, projectID string) (planner.SyncStatus, error)
	TriggerSync(ctx context.Context, projectID string) (planner.SyncResult, error)
	SetConnectionFlags(ctx context.Context, projectID string, flags planner.ConnectionFlags) (planner.Connection, error)
	Unlink(ctx context.Context, projectID string) error
}

// View is a render-ready snapshot of the panel.
type View struct {
	State       State
	PlanTitle   string
	GroupName   string
	ChannelName string
	SyncedTasks int
	// LastSync is a relative time such as "3 minutes ago", or "Never".
	LastSync string
	Icon     Icon

	SyncEnabled        bool
	AutoAddMembers     bool
	ShowAutoAddMembers bool

	Syncing              bool
	ConfirmingDisconnect bool
	Err                  error
}

// Panel holds the connection status of one project.
type Panel struct {
	remote  Remote
	audit   auditlog.Logger
	project string
	now     func() time.Time

	mu            sync.Mutex
	status        planner.SyncStatus
	loaded        bool
	syncing       bool
	updating      bool
	confirming    bool
	disconnecting bool
	err           error
}

// New returns a Panel for projectID. Call Refresh before reading it.
func New(remote Remote, projectID string, audit auditlog.Logger) *Panel {
	if audit == nil {
		audit = auditlog.NopLogger()
	}
	return &Panel{remote: remote, audit: audit, project: projectID, now: time.Now}
}

// ProjectID returns the project the panel reports on.
func (p *Panel) ProjectID() string { return p.project }

// Refresh reloads the connection status.
func (p *Panel) Refresh(ctx context.Context) error {
	st, err := p.remote.SyncStatus(ctx, p.project)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.err = err
		return err
	}
	p.status = st
	p.loaded = true
	p.err = nil
	return nil
}

func (p *Panel) stateLocked() State {
	switch {
	case !p.loaded:
		return StateUnknown
	case p.status.Connected && p.status.Connection != nil:
		return StateConnected
	}
	return StateDisconnected
}

// State reports whether the project is connected.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// Connection returns the current connection, if connected.
func (p *Panel) Connection() (planner.Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stateLocked() != StateConnected {
		return planner.Connection{}, false
	}
	return *p.status.Connection, true
}

// View returns a snapshot for rendering.
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		State:                p.stateLocked(),
		Syncing:              p.syncing,
		ConfirmingDisconnect: p.confirming,
		Err:                  p.err,
	}
	if v.State != StateConnected {
		return v
	}
	c := p.status.Connection
	v.PlanTitle = c.PlanTitle
	v.GroupName = c.GroupName
	v.ChannelName = c.ChannelName
	v.SyncedTasks = p.status.SyncedTasks
	v.Icon = IconFor(c.LastSyncStatus)
	v.LastSync = "Never"
	if c.LastSyncAt != nil {
		v.LastSync = humanize.RelTime(*c.LastSyncAt, p.now(), "ago", "from now")
	}
	v.SyncEnabled = c.SyncEnabled
	v.ShowAutoAddMembers = c.HasGroup()
	v.AutoAddMembers = c.AutoAddMembers != nil && *c.AutoAddMembers
	return v
}

// CanSyncNow reports whether a manual sync may be started.
func (p *Panel) CanSyncNow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canSyncLocked() == nil
}

func (p *Panel) canSyncLocked() error {
	if p.stateLocked() != StateConnected {
		return ErrNotConnected
	}
	if !p.status.Connection.SyncEnabled {
		return ErrSyncDisabled
	}
	if p.syncing || p.disconnecting {
		return ErrBusy
	}
	return nil
}

// SyncNow triggers a manual sync and returns its digest. The status is
// reloaded afterwards; a failed reload is recorded but not returned.
func (p *Panel) SyncNow(ctx context.Context) (string, error) {
	p.mu.Lock()
	if err := p.canSyncLocked(); err != nil {
		p.mu.Unlock()
		return "", err
	}
	p.syncing = true
	p.mu.Unlock()

	res, err := p.remote.TriggerSync(ctx, p.project)

	p.mu.Lock()
	p.syncing = false
	if err != nil {
		p.err = err
		p.mu.Unlock()
		log.ErrorLog.Printf("planner sync failed for project %s: %v", p.project, err)
		p.audit.Emit(auditlog.NewEvent(auditlog.EventSyncFailed, p.project, err.Error(), auditlog.WithLevel("error")))
		return "", err
	}
	p.err = nil
	p.mu.Unlock()

	digest := Digest(res)
	p.audit.Emit(auditlog.NewEvent(auditlog.EventSyncTriggered, p.project, digest))
	if err := p.Refresh(ctx); err != nil {
		log.WarningLog.Printf("planner status reload after sync failed for project %s: %v", p.project, err)
	}
	return digest, nil
}

// ShowAutoAddMembers reports whether the auto-add toggle applies: only
// connections scoped to a group have members to add.
func (p *Panel) ShowAutoAddMembers() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked() == StateConnected && p.status.Connection.HasGroup()
}

// SetAutoSync turns automatic sync on or off.
func (p *Panel) SetAutoSync(ctx context.Context, on bool) error {
	u, err := p.BeginAutoSync(on)
	if err != nil {
		return err
	}
	return u.Send(ctx)
}

// SetAutoAddMembers turns automatic member addition on or off.
func (p *Panel) SetAutoAddMembers(ctx context.Context, on bool) error {
	u, err := p.BeginAutoAddMembers(on)
	if err != nil {
		return err
	}
	return u.Send(ctx)
}

// FlagUpdate is a flag change already visible in View but not yet sent.
// Send must be called exactly once.
type FlagUpdate struct {
	p      *Panel
	name   string
	flags  planner.ConnectionFlags
	conn   *planner.Connection
	revert func()
}

// BeginAutoSync applies the auto-sync value locally and returns the update
// that sends it.
func (p *Panel) BeginAutoSync(on bool) (*FlagUpdate, error) {
	return p.begin("auto-sync", planner.ConnectionFlags{SyncEnabled: &on}, false,
		func(c *planner.Connection) func() {
			prev := c.SyncEnabled
			c.SyncEnabled = on
			return func() { c.SyncEnabled = prev }
		})
}

// BeginAutoAddMembers is BeginAutoSync for the member toggle, which only
// exists on connections scoped to a group.
func (p *Panel) BeginAutoAddMembers(on bool) (*FlagUpdate, error) {
	return p.begin("auto-add members", planner.ConnectionFlags{AutoAddMembers: &on}, true,
		func(c *planner.Connection) func() {
			prev := c.AutoAddMembers
			c.AutoAddMembers = &on
			return func() { c.AutoAddMembers = prev }
		})
}

func (p *Panel) begin(name string, flags planner.ConnectionFlags, needsGroup bool, apply func(*planner.Connection) func()) (*FlagUpdate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stateLocked() != StateConnected || (needsGroup && !p.status.Connection.HasGroup()) {
		return nil, ErrNotConnected
	}
	if p.updating || p.disconnecting {
		return nil, ErrBusy
	}
	p.updating = true
	conn := *p.status.Connection
	p.status.Connection = &conn
	return &FlagUpdate{p: p, name: name, flags: flags, conn: &conn, revert: apply(&conn)}, nil
}

// Send patches the flag, then adopts the server's copy of the connection or
// reverts the local change.
func (u *FlagUpdate) Send(ctx context.Context) error {
	p := u.p
	updated, err := p.remote.SetConnectionFlags(ctx, p.project, u.flags)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.updating = false
	if err != nil {
		if p.status.Connection == u.conn {
			u.revert()
		}
		p.err = err
		log.ErrorLog.Printf("planner %s update failed for project %s: %v", u.name, p.project, err)
		return err
	}
	p.err = nil
	if updated.PlanID != "" && p.status.Connection == u.conn {
		p.status.Connection = &updated
	}
	p.audit.Emit(auditlog.NewEvent(auditlog.EventFlagsChanged, p.project, fmt.Sprintf("%s set to %t", u.name, flagValue(u.flags))))
	return nil
}

func flagValue(f planner.ConnectionFlags) bool {
	if f.SyncEnabled != nil {
		return *f.SyncEnabled
	}
	return f.AutoAddMembers != nil && *f.AutoAddMembers
}

// RequestDisconnect asks for confirmation before disconnecting.
func (p *Panel) RequestDisconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stateLocked() != StateConnected {
		return ErrNotConnected
	}
	p.confirming = true
	return nil
}

// CancelDisconnect dismisses the confirmation without calling the backend.
func (p *Panel) CancelDisconnect() {
	p.mu.Lock()
	p.confirming = false
	p.mu.Unlock()
}

// ConfirmDisconnect removes the connection with a single DELETE. The panel
// is disconnected afterwards without reloading.
func (p *Panel) ConfirmDisconnect(ctx context.Context) error {
	p.mu.Lock()
	if !p.confirming {
		p.mu.Unlock()
		return ErrNotConfirmed
	}
	if p.disconnecting {
		p.mu.Unlock()
		return ErrBusy
	}
	p.disconnecting = true
	p.mu.Unlock()

	err := p.remote.Unlink(ctx, p.project)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnecting = false
	p.confirming = false
	if err != nil {
		p.err = err
		log.ErrorLog.Printf("planner disconnect failed for project %s: %v", p.project, err)
		return err
	}
	p.status = planner.SyncStatus{}
	p.loaded = true
	p.err = nil
	p.audit.Emit(auditlog.NewEvent(auditlog.EventProjectUnlinked, p.project, "disconnected from plan"))
	return nil
}
