// Package plannertest provides an in-memory planner backend for tests.
package plannertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/kastheco/opsdash/internal/planner"
)

// Fake implements every planner.Client operation in memory and records the
// order of calls. Set Errs[op] to make an operation fail, and Hooks[op] to run
// code while the operation is in flight.
type Fake struct {
	mu sync.Mutex

	// GroupPages is keyed by skipToken; "" is the first page.
	GroupPages  map[string]planner.GroupPage
	Plans       []planner.Plan
	Channels    map[string][]planner.Channel
	Templates   []planner.TeamTemplate
	Integration planner.IntegrationStatus
	Sync        planner.SyncStatus
	SyncResult  planner.SyncResult

	Errs  map[string]error
	Hooks map[string]func()

	calls  []string
	nextID int
}

// NewFake returns a Fake with a usable integration and no data.
func NewFake() *Fake {
	return &Fake{
		GroupPages:  make(map[string]planner.GroupPage),
		Channels:    make(map[string][]planner.Channel),
		Integration: planner.IntegrationStatus{Configured: true, Connected: true},
		Errs:        make(map[string]error),
		Hooks:       make(map[string]func()),
	}
}

// Calls returns the operation names invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how many times op was invoked.
func (f *Fake) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// SetErr makes op fail with err until cleared with a nil err.
func (f *Fake) SetErr(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errs, op)
		return
	}
	f.Errs[op] = err
}

func (f *Fake) enter(op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	hook := f.Hooks[op]
	err := f.Errs[op]
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *Fake) id(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *Fake) Status(ctx context.Context) planner.IntegrationStatus {
	_ = f.enter("Status")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Integration
}

func (f *Fake) ListGroups(ctx context.Context, skipToken string) (planner.GroupPage, error) {
	if err := f.enter("ListGroups"); err != nil {
		return planner.GroupPage{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.GroupPages[skipToken]
	if !ok {
		return planner.GroupPage{}, fmt.Errorf("unknown skip token %q", skipToken)
	}
	if page.Source == "" {
		page.Source = planner.SourceUser
	}
	return page, nil
}

func (f *Fake) ListPlans(ctx context.Context) ([]planner.Plan, error) {
	if err := f.enter("ListPlans"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]planner.Plan(nil), f.Plans...), nil
}

func (f *Fake) ListGroupPlans(ctx context.Context, groupID string) ([]planner.Plan, error) {
	if err := f.enter("ListGroupPlans"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []planner.Plan
	for _, p := range f.Plans {
		if p.Owner == groupID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *Fake) ListChannels(ctx context.Context, teamID string) ([]planner.Channel, error) {
	if err := f.enter("ListChannels"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]planner.Channel(nil), f.Channels[teamID]...), nil
}

func (f *Fake) ListTeamTemplates(ctx context.Context) ([]planner.TeamTemplate, error) {
	if err := f.enter("ListTeamTemplates"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]planner.TeamTemplate(nil), f.Templates...), nil
}

func (f *Fake) CreateTeam(ctx context.Context, req planner.CreateTeamRequest) (planner.Group, error) {
	if err := f.enter("CreateTeam"); err != nil {
		return planner.Group{}, err
	}
	return planner.Group{ID: f.id("team"), DisplayName: req.DisplayName, Description: req.Description}, nil
}

func (f *Fake) CreateChannel(ctx context.Context, teamID string, req planner.CreateChannelRequest) (planner.Channel, error) {
	if err := f.enter("CreateChannel"); err != nil {
		return planner.Channel{}, err
	}
	ch := planner.Channel{ID: f.id("channel"), DisplayName: req.DisplayName, Description: req.Description, MembershipType: req.MembershipType}
	f.mu.Lock()
	f.Channels[teamID] = append(f.Channels[teamID], ch)
	f.mu.Unlock()
	return ch, nil
}

func (f *Fake) CreatePlan(ctx context.Context, groupID string, req planner.CreatePlanRequest) (planner.Plan, error) {
	if err := f.enter("CreatePlan"); err != nil {
		return planner.Plan{}, err
	}
	p := planner.Plan{ID: f.id("plan"), Title: req.Title, Owner: groupID}
	f.mu.Lock()
	f.Plans = append(f.Plans, p)
	f.mu.Unlock()
	return p, nil
}

func (f *Fake) CreateTab(ctx context.Context, teamID, channelID string, req planner.CreateTabRequest) error {
	return f.enter("CreateTab")
}

func (f *Fake) LinkProject(ctx context.Context, projectID string, req planner.LinkRequest) (planner.Connection, error) {
	if err := f.enter("LinkProject"); err != nil {
		return planner.Connection{}, err
	}
	conn := planner.Connection{
		PlanID:        req.PlanID,
		PlanTitle:     req.PlanTitle,
		GroupID:       req.GroupID,
		GroupName:     req.GroupName,
		ChannelID:     req.ChannelID,
		ChannelName:   req.ChannelName,
		SyncDirection: req.SyncDirection,
		SyncEnabled:   true,
	}
	f.mu.Lock()
	f.Sync = planner.SyncStatus{Connected: true, Connection: &conn}
	f.mu.Unlock()
	return conn, nil
}

// Connection returns the currently stored connection, if any.
func (f *Fake) Connection() (planner.Connection, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Sync.Connected || f.Sync.Connection == nil {
		return planner.Connection{}, false
	}
	return *f.Sync.Connection, true
}

func (f *Fake) SyncStatus(ctx context.Context, projectID string) (planner.SyncStatus, error) {
	if err := f.enter("SyncStatus"); err != nil {
		return planner.SyncStatus{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.Sync
	if st.Connection != nil {
		conn := *st.Connection
		st.Connection = &conn
	}
	return st, nil
}

func (f *Fake) TriggerSync(ctx context.Context, projectID string) (planner.SyncResult, error) {
	if err := f.enter("TriggerSync"); err != nil {
		return planner.SyncResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SyncResult, nil
}

func (f *Fake) SetConnectionFlags(ctx context.Context, projectID string, flags planner.ConnectionFlags) (planner.Connection, error) {
	if err := f.enter("SetConnectionFlags"); err != nil {
		return planner.Connection{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Sync.Connection == nil {
		return planner.Connection{}, fmt.Errorf("project is not connected")
	}
	conn := *f.Sync.Connection
	if flags.SyncEnabled != nil {
		conn.SyncEnabled = *flags.SyncEnabled
	}
	if flags.AutoAddMembers != nil {
		v := *flags.AutoAddMembers
		conn.AutoAddMembers = &v
	}
	f.Sync.Connection = &conn
	return conn, nil
}

func (f *Fake) Unlink(ctx context.Context, projectID string) error {
	if err := f.enter("Unlink"); err != nil {
		return err
	}
	f.mu.Lock()
	f.Sync = planner.SyncStatus{}
	f.mu.Unlock()
	return nil
}
