package planner

import "time"

// SyncDirectionBidirectional is the only sync direction this client ever sends.
// Stored connections may carry other values; they are displayed as-is.
const SyncDirectionBidirectional = "bidirectional"

// Group source labels returned by ListGroups.
const (
	SourceUser = "user" // scoped to the caller's memberships
	SourceAll  = "all"  // organization-wide fallback when no membership mapping exists
)

// Last sync outcomes reported on a Connection.
const (
	LastSyncSuccess = "success"
	LastSyncError   = "error"
	LastSyncPartial = "partial"
)

// Group is an external team: the organizational container that owns plans and channels.
type Group struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

// Plan is the unit of task management linked to an internal project.
// Owner is the ID of the Group the plan belongs to.
type Plan struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Owner string `json:"owner"`
}

// Channel is a sub-division of a Group that can host a tab.
type Channel struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description,omitempty"`
	MembershipType string `json:"membershipType,omitempty"`
}

// TeamTemplate is a read-only catalog entry offered when creating a team.
type TeamTemplate struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	ShortDescription string `json:"shortDescription,omitempty"`
}

// Connection is the persisted link between a project and a plan.
type Connection struct {
	PlanID         string     `json:"planId"`
	PlanTitle      string     `json:"planTitle"`
	GroupID        string     `json:"groupId,omitempty"`
	GroupName      string     `json:"groupName,omitempty"`
	ChannelID      string     `json:"channelId,omitempty"`
	ChannelName    string     `json:"channelName,omitempty"`
	SyncDirection  string     `json:"syncDirection"`
	SyncEnabled    bool       `json:"syncEnabled"`
	AutoAddMembers *bool      `json:"autoAddMembers,omitempty"`
	LastSyncAt     *time.Time `json:"lastSyncAt,omitempty"`
	LastSyncStatus string     `json:"lastSyncStatus,omitempty"`
}

// HasGroup reports whether the connection is scoped to a group.
func (c Connection) HasGroup() bool {
	return c.GroupID != ""
}

// SyncRecord is one entry of the sync history attached to a SyncStatus.
// Details is kept raw because its shape varies between sync runs.
type SyncRecord struct {
	ID        string         `json:"id,omitempty"`
	Status    string         `json:"status,omitempty"`
	StartedAt *time.Time     `json:"startedAt,omitempty"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// SyncStatus is the read model assembled server-side from the connection and
// the task mapping state.
type SyncStatus struct {
	Connected   bool         `json:"connected"`
	Connection  *Connection  `json:"connection,omitempty"`
	SyncedTasks int          `json:"syncedTasks"`
	Syncs       []SyncRecord `json:"syncs,omitempty"`
}

// SyncResult holds the counters returned by a manual sync. Absent counters decode as zero.
type SyncResult struct {
	Created        int `json:"created,omitempty"`
	Updated        int `json:"updated,omitempty"`
	InboundUpdated int `json:"inboundUpdated,omitempty"`
	InboundDeleted int `json:"inboundDeleted,omitempty"`
}

// IntegrationStatus describes whether the integration is usable. A disabled
// or unreachable integration is reported here rather than as an error.
type IntegrationStatus struct {
	Configured      bool   `json:"configured"`
	Connected       bool   `json:"connected"`
	AppConfigured   *bool  `json:"appConfigured,omitempty"`
	Error           string `json:"error,omitempty"`
	Message         string `json:"message,omitempty"`
	PermissionIssue bool   `json:"permissionIssue,omitempty"`
}

// Usable reports whether listing and creation calls can be expected to work.
func (s IntegrationStatus) Usable() bool {
	return s.Configured && s.Connected && !s.PermissionIssue
}

// GroupPage is one page of ListGroups. NextLink is empty on the last page.
type GroupPage struct {
	Groups          []Group `json:"groups"`
	Source          string  `json:"source"`
	HasAzureMapping bool    `json:"hasAzureMapping"`
	NextLink        string  `json:"nextLink,omitempty"`
}

// CreateTeamRequest is the body of POST /planner/teams.
type CreateTeamRequest struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	TemplateID  string `json:"templateId,omitempty"`
	ClientID    string `json:"clientId,omitempty"`
}

// Channel membership types accepted by CreateChannel.
const (
	MembershipStandard = "standard"
	MembershipPrivate  = "private"
)

// CreateChannelRequest is the body of POST /planner/teams/{id}/channels.
type CreateChannelRequest struct {
	DisplayName    string `json:"displayName"`
	Description    string `json:"description,omitempty"`
	MembershipType string `json:"membershipType"`
}

// CreatePlanRequest is the body of POST /planner/groups/{id}/plans.
type CreatePlanRequest struct {
	Title string `json:"title"`
}

// CreateTabRequest is the body of POST /planner/teams/{id}/channels/{id}/tabs.
type CreateTabRequest struct {
	PlanID    string `json:"planId"`
	PlanTitle string `json:"planTitle"`
}

// LinkRequest is the body of POST /projects/{id}/planner-connection.
type LinkRequest struct {
	PlanID        string `json:"planId"`
	PlanTitle     string `json:"planTitle"`
	GroupID       string `json:"groupId,omitempty"`
	GroupName     string `json:"groupName,omitempty"`
	ChannelID     string `json:"channelId,omitempty"`
	ChannelName   string `json:"channelName,omitempty"`
	SyncDirection string `json:"syncDirection"`
}

// ConnectionFlags is the body of PATCH /projects/{id}/planner-connection.
// Nil fields are omitted so each toggle only touches its own flag.
type ConnectionFlags struct {
	SyncEnabled    *bool `json:"syncEnabled,omitempty"`
	AutoAddMembers *bool `json:"autoAddMembers,omitempty"`
}
