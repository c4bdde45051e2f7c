package auditlog

import "time"

// EventKind identifies the type of audit event.
type EventKind string

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Resource creation events.
const (
	EventTeamCreated    EventKind = "team_created"
	EventChannelCreated EventKind = "channel_created"
	EventPlanCreated    EventKind = "plan_created"
	EventCreateFailed   EventKind = "create_failed"
)

// Connection events.
const (
	EventProjectLinked   EventKind = "project_linked"
	EventProjectUnlinked EventKind = "project_unlinked"
	EventTabPinned       EventKind = "tab_pinned"
	EventTabPinFailed    EventKind = "tab_pin_failed"
	EventFlagsChanged    EventKind = "flags_changed"
)

// Sync events.
const (
	EventSyncTriggered EventKind = "sync_triggered"
	EventSyncFailed    EventKind = "sync_failed"
	EventError         EventKind = "error"
)

// Event is a single audit log entry.
type Event struct {
	ID         int64
	Kind       EventKind
	Timestamp  time.Time
	Project    string
	ResourceID string // id of the team, channel or plan the event concerns
	Message    string
	Detail     string // JSON-encoded extra data
	Level      string // info, warn, error
}
