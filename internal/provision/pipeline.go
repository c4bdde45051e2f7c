// Package provision materializes the planner hierarchy a project connection
// needs (team, channel, plan), persists the connection, and optionally pins
// the plan as a channel tab. Each creation consumes the id produced by the
// previous one, so calls are strictly sequential.
package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kastheco/opsdash/config/auditlog"
	"github.com/kastheco/opsdash/internal/planner"
)

// Stage names a remote call made by the pipeline.
type Stage string

const (
	StageCreateTeam    Stage = "create-team"
	StageCreateChannel Stage = "create-channel"
	StageCreatePlan    Stage = "create-plan"
	StageLinkProject   Stage = "link-project"
	StageCreateTab     Stage = "create-tab"
)

// Fatal reports whether a failure at this stage blocks forward progress.
// Only the tab pin is cosmetic.
func (s Stage) Fatal() bool {
	return s != StageCreateTab
}

// ErrBusy is returned when a call is made while another one is still in flight.
var ErrBusy = errors.New("another operation is still in progress")

// StageError wraps the failure of one pipeline stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Fatal reports whether the failure blocks forward progress.
func (e *StageError) Fatal() bool { return e.Stage.Fatal() }

// Remote is the subset of planner.Client the pipeline needs.
type Remote interface {
	CreateTeam(ctx context.Context, req planner.CreateTeamRequest) (planner.Group, error)
	CreateChannel(ctx context.Context, teamID string, req planner.CreateChannelRequest) (planner.Channel, error)
	CreatePlan(ctx context.Context, groupID string, req planner.CreatePlanRequest) (planner.Plan, error)
	LinkProject(ctx context.Context, projectID string, req planner.LinkRequest) (planner.Connection, error)
	CreateTab(ctx context.Context, teamID, channelID string, req planner.CreateTabRequest) error
}

// Target is everything the connect step needs. Group and Channel are optional.
type Target struct {
	Group        *planner.Group
	Channel      *planner.Channel
	Plan         planner.Plan
	PinToChannel bool
	// GroupUnresolved marks Group as a stand-in for an owner that could not
	// be looked up. Only its ID is stored with the connection.
	GroupUnresolved bool
}

// Outcome is the result of Connect. The connection succeeded whenever Connect
// returns a nil error; TabErr is set when the optional tab pin failed.
type Outcome struct {
	Connection planner.Connection
	TabPinned  bool
	TabErr     error
}

// Pipeline runs the creation chain for one project. It remembers what it has
// already created so a retry after a later failure does not create twice.
type Pipeline struct {
	remote  Remote
	audit   auditlog.Logger
	project string

	mu      sync.Mutex
	running Stage
	team    *planner.Group
	// channels and plans are keyed by the parent id they were created under.
	channels map[string]planner.Channel
	plans    map[string]planner.Plan
}

// New creates a Pipeline for projectID. A nil audit logger discards events.
func New(remote Remote, projectID string, audit auditlog.Logger) *Pipeline {
	if audit == nil {
		audit = auditlog.NopLogger()
	}
	return &Pipeline{
		remote:   remote,
		audit:    audit,
		project:  projectID,
		channels: make(map[string]planner.Channel),
		plans:    make(map[string]planner.Plan),
	}
}

// Running returns the stage currently in flight, or "" when idle.
func (p *Pipeline) Running() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) begin(s Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running != "" {
		return ErrBusy
	}
	p.running = s
	return nil
}

func (p *Pipeline) end() {
	p.mu.Lock()
	p.running = ""
	p.mu.Unlock()
}

// CreatedTeam returns the team created by this pipeline, if any.
func (p *Pipeline) CreatedTeam() (planner.Group, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.team == nil {
		return planner.Group{}, false
	}
	return *p.team, true
}

// EnsureTeam creates the team once. Later calls return the team already
// created, whatever the request.
func (p *Pipeline) EnsureTeam(ctx context.Context, req planner.CreateTeamRequest) (planner.Group, error) {
	if err := p.begin(StageCreateTeam); err != nil {
		return planner.Group{}, err
	}
	defer p.end()

	if team, ok := p.CreatedTeam(); ok {
		return team, nil
	}
	team, err := p.remote.CreateTeam(ctx, req)
	if err != nil {
		p.failed(StageCreateTeam, "", err)
		return planner.Group{}, &StageError{Stage: StageCreateTeam, Err: err}
	}
	p.mu.Lock()
	p.team = &team
	p.mu.Unlock()
	p.audit.Emit(auditlog.NewEvent(auditlog.EventTeamCreated, p.project,
		"created team "+team.DisplayName, auditlog.WithResource(team.ID)))
	return team, nil
}

// EnsureChannel creates a channel in teamID unless one was already created there.
func (p *Pipeline) EnsureChannel(ctx context.Context, teamID string, req planner.CreateChannelRequest) (planner.Channel, error) {
	if err := p.begin(StageCreateChannel); err != nil {
		return planner.Channel{}, err
	}
	defer p.end()

	p.mu.Lock()
	existing, ok := p.channels[teamID]
	p.mu.Unlock()
	if ok {
		return existing, nil
	}
	if req.MembershipType == "" {
		req.MembershipType = planner.MembershipStandard
	}
	ch, err := p.remote.CreateChannel(ctx, teamID, req)
	if err != nil {
		p.failed(StageCreateChannel, teamID, err)
		return planner.Channel{}, &StageError{Stage: StageCreateChannel, Err: err}
	}
	p.mu.Lock()
	p.channels[teamID] = ch
	p.mu.Unlock()
	p.audit.Emit(auditlog.NewEvent(auditlog.EventChannelCreated, p.project,
		"created channel "+ch.DisplayName, auditlog.WithResource(ch.ID)))
	return ch, nil
}

// EnsurePlan creates a plan owned by groupID unless one was already created there.
func (p *Pipeline) EnsurePlan(ctx context.Context, groupID string, req planner.CreatePlanRequest) (planner.Plan, error) {
	if err := p.begin(StageCreatePlan); err != nil {
		return planner.Plan{}, err
	}
	defer p.end()

	p.mu.Lock()
	existing, ok := p.plans[groupID]
	p.mu.Unlock()
	if ok {
		return existing, nil
	}
	plan, err := p.remote.CreatePlan(ctx, groupID, req)
	if err != nil {
		p.failed(StageCreatePlan, groupID, err)
		return planner.Plan{}, &StageError{Stage: StageCreatePlan, Err: err}
	}
	p.mu.Lock()
	p.plans[groupID] = plan
	p.mu.Unlock()
	p.audit.Emit(auditlog.NewEvent(auditlog.EventPlanCreated, p.project,
		"created plan "+plan.Title, auditlog.WithResource(plan.ID)))
	return plan, nil
}

// Connect persists the connection and then, if requested, pins the plan as a
// tab. The tab pin only runs after the link succeeded, and its failure does
// not undo the link. The pin is issued with a context detached from ctx's
// cancellation so closing the dialog right after linking still pins the tab.
func (p *Pipeline) Connect(ctx context.Context, t Target) (Outcome, error) {
	if err := p.begin(StageLinkProject); err != nil {
		return Outcome{}, err
	}
	defer p.end()

	if t.Plan.ID == "" {
		return Outcome{}, &StageError{Stage: StageLinkProject, Err: errors.New("no plan selected")}
	}

	req := planner.LinkRequest{
		PlanID:        t.Plan.ID,
		PlanTitle:     t.Plan.Title,
		SyncDirection: planner.SyncDirectionBidirectional,
	}
	if t.Group != nil {
		req.GroupID = t.Group.ID
		if !t.GroupUnresolved {
			req.GroupName = t.Group.DisplayName
		}
	}
	if t.Channel != nil {
		req.ChannelID = t.Channel.ID
		req.ChannelName = t.Channel.DisplayName
	}

	conn, err := p.remote.LinkProject(ctx, p.project, req)
	if err != nil {
		p.failed(StageLinkProject, t.Plan.ID, err)
		return Outcome{}, &StageError{Stage: StageLinkProject, Err: err}
	}
	p.audit.Emit(auditlog.NewEvent(auditlog.EventProjectLinked, p.project,
		"linked plan "+t.Plan.Title, auditlog.WithResource(t.Plan.ID)))

	out := Outcome{Connection: conn}
	if !t.PinToChannel || t.Channel == nil || t.Group == nil {
		return out, nil
	}

	p.mu.Lock()
	p.running = StageCreateTab
	p.mu.Unlock()

	tabReq := planner.CreateTabRequest{PlanID: t.Plan.ID, PlanTitle: t.Plan.Title}
	if err := p.remote.CreateTab(context.WithoutCancel(ctx), t.Group.ID, t.Channel.ID, tabReq); err != nil {
		out.TabErr = &StageError{Stage: StageCreateTab, Err: err}
		p.audit.Emit(auditlog.NewEvent(auditlog.EventTabPinFailed, p.project, err.Error(),
			auditlog.WithResource(t.Channel.ID), auditlog.WithLevel("warn")))
		return out, nil
	}
	out.TabPinned = true
	p.audit.Emit(auditlog.NewEvent(auditlog.EventTabPinned, p.project,
		"pinned "+t.Plan.Title+" to "+t.Channel.DisplayName, auditlog.WithResource(t.Channel.ID)))
	return out, nil
}

func (p *Pipeline) failed(s Stage, resource string, err error) {
	p.audit.Emit(auditlog.NewEvent(auditlog.EventCreateFailed, p.project, fmt.Sprintf("%s: %v", s, err),
		auditlog.WithResource(resource), auditlog.WithLevel("error")))
}
