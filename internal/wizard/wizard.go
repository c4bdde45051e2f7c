// Package wizard drives the planner connection dialog: it walks the steps of
// the chosen method, loads the lists each step needs, and hands creations to
// a provision.Pipeline. It holds no UI; front-ends read Session snapshots and
// call the operations below.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kastheco/opsdash/config/auditlog"
	"github.com/kastheco/opsdash/internal/connectfsm"
	"github.com/kastheco/opsdash/internal/planner"
	"github.com/kastheco/opsdash/internal/provision"
	"github.com/kastheco/opsdash/log"
)

var (
	// ErrBusy is returned when a mutation is requested while another is in flight.
	ErrBusy = provision.ErrBusy
	// ErrSessionClosed is returned when the dialog is closed, including for
	// results that arrive after it was closed.
	ErrSessionClosed = errors.New("connection dialog is closed")
	// ErrNotReady is returned when the current step does not allow the action.
	ErrNotReady = errors.New("action not available at this step")
)

// Remote is the part of planner.Client the wizard uses.
type Remote interface {
	provision.Remote
	ListGroups(ctx context.Context, skipToken string) (planner.GroupPage, error)
	ListPlans(ctx context.Context) ([]planner.Plan, error)
	ListChannels(ctx context.Context, teamID string) ([]planner.Channel, error)
	ListTeamTemplates(ctx context.Context) ([]planner.TeamTemplate, error)
}

// Wizard owns one dialog session at a time. All methods are safe for
// concurrent use; remote calls are made without holding the lock.
type Wizard struct {
	remote Remote
	audit  auditlog.Logger

	mu   sync.Mutex
	open bool
	// gen changes whenever the session is replaced; results tagged with an
	// older gen are dropped.
	gen  uint64
	s    Session
	pipe *provision.Pipeline
}

// New returns a closed Wizard. A nil audit logger discards events.
func New(remote Remote, audit auditlog.Logger) *Wizard {
	if audit == nil {
		audit = auditlog.NopLogger()
	}
	return &Wizard{remote: remote, audit: audit}
}

// Open starts a fresh session for projectID at choose-method. clientID is
// passed along when a team is created and may be empty.
func (w *Wizard) Open(projectID, clientID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.open = true
	w.s = Session{
		ProjectID:    projectID,
		ClientID:     clientID,
		Step:         connectfsm.StepChooseMethod,
		PinToChannel: true,
	}
	w.pipe = provision.New(w.remote, projectID, w.audit)
}

// Close discards the session. In-flight calls are not cancelled, but their
// results will not be applied.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeLocked()
}

func (w *Wizard) closeLocked() {
	w.gen++
	w.open = false
	w.s = Session{}
	w.pipe = nil
}

// IsOpen reports whether a session is active.
func (w *Wizard) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Session returns a copy of the current session.
func (w *Wizard) Session() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.clone()
}

// navigable checks that the session is open and idle. Caller holds mu.
func (w *Wizard) navigable() error {
	if !w.open {
		return ErrSessionClosed
	}
	if w.s.Pending {
		return ErrBusy
	}
	return nil
}

func (w *Wizard) at(step connectfsm.Step) error {
	if w.s.Step != step {
		return fmt.Errorf("%w: at %s, not %s", ErrNotReady, w.s.Step, step)
	}
	return nil
}

// moveLocked applies event and resets per-step state. Caller holds mu.
func (w *Wizard) moveLocked(event connectfsm.Event) error {
	next, err := connectfsm.ApplyTransition(w.s.Method, w.s.Step, event)
	if err != nil {
		return err
	}
	w.s.Step = next
	w.s.Filter = ""
	w.s.Err = nil
	return nil
}

// ChooseMethod records the method and moves to its first step.
func (w *Wizard) ChooseMethod(m connectfsm.Method) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.navigable(); err != nil {
		return err
	}
	if err := w.at(connectfsm.StepChooseMethod); err != nil {
		return err
	}
	if _, err := connectfsm.Next(m, connectfsm.StepChooseMethod); err != nil {
		return err
	}
	w.s.Method = m
	return w.moveLocked(connectfsm.Advance)
}

// Back returns to the previous step of the method's path. Typed text and
// selections are kept.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.navigable(); err != nil {
		return err
	}
	if w.s.Step == connectfsm.StepChooseMethod {
		return ErrNotReady
	}
	return w.moveLocked(connectfsm.Retreat)
}

// StartOver goes from confirm back to choose-method, dropping the method and
// every selection. Typed text and loaded lists are kept. Nothing created so
// far is reused by the next attempt.
func (w *Wizard) StartOver() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.navigable(); err != nil {
		return err
	}
	if err := w.moveLocked(connectfsm.StartOver); err != nil {
		return err
	}
	w.s.Method = ""
	w.s.Group = nil
	w.s.Plan = nil
	w.s.Channel = nil
	w.pipe = provision.New(w.remote, w.s.ProjectID, w.audit)
	return nil
}

// SetFilter narrows the current list. It never fetches.
func (w *Wizard) SetFilter(filter string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.s.Filter = filter
}

// VisibleGroups is Session().VisibleGroups() without copying the whole session.
func (w *Wizard) VisibleGroups() []planner.Group {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]planner.Group(nil), w.s.VisibleGroups()...)
}

// CanLoadMore reports whether a further group page may be requested.
func (w *Wizard) CanLoadMore() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open && w.s.CanLoadMore()
}

// GroupSource returns the source of the loaded group list.
func (w *Wizard) GroupSource() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Source
}

// CanSubmit reports whether the primary action of the current step is enabled.
func (w *Wizard) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open && w.s.CanSubmit()
}

// read starts a list fetch. It returns the session gen to check the result
// against, or ok=false when there is nothing to do.
func (w *Wizard) read(flag *bool) (uint64, bool, error) {
	if !w.open {
		return 0, false, ErrSessionClosed
	}
	if *flag {
		return 0, false, nil
	}
	*flag = true
	return w.gen, true, nil
}

// LoadGroups fetches the first page of groups unless it is already loaded.
func (w *Wizard) LoadGroups(ctx context.Context) error {
	w.mu.Lock()
	if w.open && w.s.GroupsLoaded {
		w.mu.Unlock()
		return nil
	}
	gen, ok, err := w.read(&w.s.LoadingGroups)
	w.mu.Unlock()
	if !ok {
		return err
	}

	page, err := w.remote.ListGroups(ctx, "")

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrSessionClosed
	}
	w.s.LoadingGroups = false
	if err != nil {
		return w.failLocked("list groups", err)
	}
	w.s.Groups = nil
	w.appendPageLocked(page)
	return nil
}

// LoadMoreGroups fetches the next page and appends it to the loaded groups.
// It is a no-op on the last page and refused while a filter is active.
func (w *Wizard) LoadMoreGroups(ctx context.Context) error {
	w.mu.Lock()
	if w.open && w.s.FilterActive() {
		w.mu.Unlock()
		return ErrNotReady
	}
	token := w.s.NextLink
	if w.open && token == "" {
		w.mu.Unlock()
		return nil
	}
	gen, ok, err := w.read(&w.s.LoadingGroups)
	w.mu.Unlock()
	if !ok {
		return err
	}

	page, err := w.remote.ListGroups(ctx, token)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrSessionClosed
	}
	w.s.LoadingGroups = false
	if err != nil {
		return w.failLocked("load more groups", err)
	}
	w.appendPageLocked(page)
	return nil
}

func (w *Wizard) appendPageLocked(page planner.GroupPage) {
	seen := make(map[string]bool, len(w.s.Groups))
	for _, g := range w.s.Groups {
		seen[g.ID] = true
	}
	for _, g := range page.Groups {
		if !seen[g.ID] {
			w.s.Groups = append(w.s.Groups, g)
			seen[g.ID] = true
		}
	}
	w.s.NextLink = page.NextLink
	w.s.Source = page.Source
	w.s.HasAzureMapping = page.HasAzureMapping
	w.s.GroupsLoaded = true
	w.s.Err = nil
}

// LoadPlans fetches the plan list and, when no groups are loaded yet, the
// first group page alongside it so plan owners can be resolved.
func (w *Wizard) LoadPlans(ctx context.Context) error {
	w.mu.Lock()
	gen, ok, err := w.read(&w.s.LoadingPlans)
	needGroups := ok && !w.s.GroupsLoaded
	w.mu.Unlock()
	if !ok {
		return err
	}

	var (
		plans []planner.Plan
		page  planner.GroupPage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plans, err = w.remote.ListPlans(gctx)
		return err
	})
	if needGroups {
		g.Go(func() error {
			var err error
			page, err = w.remote.ListGroups(gctx, "")
			return err
		})
	}
	err = g.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrSessionClosed
	}
	w.s.LoadingPlans = false
	if err != nil {
		return w.failLocked("list plans", err)
	}
	w.s.Plans = plans
	w.s.PlansLoaded = true
	if needGroups && !w.s.GroupsLoaded {
		w.appendPageLocked(page)
	}
	w.s.Err = nil
	return nil
}

// LoadChannels lists the channels of the selected group.
func (w *Wizard) LoadChannels(ctx context.Context) error {
	w.mu.Lock()
	if w.open && w.s.Group == nil {
		w.mu.Unlock()
		return ErrNotReady
	}
	var teamID string
	if w.open {
		teamID = w.s.Group.ID
	}
	gen, ok, err := w.read(&w.s.LoadingChannels)
	w.mu.Unlock()
	if !ok {
		return err
	}

	channels, err := w.remote.ListChannels(ctx, teamID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrSessionClosed
	}
	w.s.LoadingChannels = false
	if err != nil {
		return w.failLocked("list channels", err)
	}
	if w.s.Group == nil || w.s.Group.ID != teamID {
		// The group changed while the list was in flight.
		return nil
	}
	if c := w.s.Channel; c != nil && !slices.ContainsFunc(channels, func(ch planner.Channel) bool { return ch.ID == c.ID }) {
		// A channel created moments ago may not be listed yet.
		channels = append([]planner.Channel{*c}, channels...)
	}
	w.s.Channels = channels
	w.s.ChannelsFor = teamID
	w.s.ChannelsLoaded = true
	w.s.Err = nil
	return nil
}

// LoadTemplates fetches the team template catalog.
func (w *Wizard) LoadTemplates(ctx context.Context) error {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return ErrSessionClosed
	}
	gen := w.gen
	w.mu.Unlock()

	templates, err := w.remote.ListTeamTemplates(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrSessionClosed
	}
	if err != nil {
		return w.failLocked("list team templates", err)
	}
	w.s.Templates = templates
	return nil
}

// PickGroup selects a team at select-team and advances. Picking a different
// team drops the channel and plan chosen under the previous one.
func (w *Wizard) PickGroup(g planner.Group) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.navigable(); err != nil {
		return err
	}
	if err := w.at(connectfsm.StepSelectTeam); err != nil {
		return err
	}
	w.setGroupLocked(g)
	return w.moveLocked(connectfsm.Advance)
}

func (w *Wizard) setGroupLocked(g planner.Group) {
	if w.s.Group == nil || w.s.Group.ID != g.ID {
		w.s.Channel = nil
		w.s.Plan = nil
		w.s.Channels = nil
		w.s.ChannelsFor = ""
		w.s.ChannelsLoaded = false
	}
	w.s.Group = &g
}

// PickPlan selects an existing plan at select-plan, resolves its owner and
// advances to confirm.
func (w *Wizard) PickPlan(p planner.Plan) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.navigable(); err != nil {
		return err
	}
	if err := w.at(connectfsm.StepSelectPlan); err != nil {
		return err
	}
	w.s.Plan = &p
	w.s.Group = w.s.OwnerOf(p)
	w.s.Channel = nil
	return w.moveLocked(connectfsm.Advance)
}

// PickChannel selects the channel the plan may be pinned to.
func (w *Wizard) PickChannel(c planner.Channel) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.navigable(); err != nil {
		return err
	}
	if err := w.at(connectfsm.StepSelectChannel); err != nil {
		return err
	}
	w.s.Channel = &c
	w.s.Err = nil
	return nil
}

// SetPinToChannel toggles whether confirm also pins the plan as a tab.
func (w *Wizard) SetPinToChannel(pin bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.s.PinToChannel = pin
}

// ContinueFromChannel advances from select-channel to confirm.
func (w *Wizard) ContinueFromChannel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.navigable(); err != nil {
		return err
	}
	if err := w.at(connectfsm.StepSelectChannel); err != nil {
		return err
	}
	if !w.s.CanContinueFromChannel() {
		return ErrNotReady
	}
	return w.moveLocked(connectfsm.Advance)
}

func (w *Wizard) edit(fn func(in *Inputs)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.s.Inputs)
}

func (w *Wizard) SetTeamName(v string)        { w.edit(func(in *Inputs) { in.TeamName = v }) }
func (w *Wizard) SetTeamDescription(v string) { w.edit(func(in *Inputs) { in.TeamDescription = v }) }
func (w *Wizard) SetTeamTemplate(id string)   { w.edit(func(in *Inputs) { in.TeamTemplate = id }) }
func (w *Wizard) SetChannelName(v string)     { w.edit(func(in *Inputs) { in.ChannelName = v }) }
func (w *Wizard) SetPlanTitle(v string)       { w.edit(func(in *Inputs) { in.PlanTitle = v }) }

func (w *Wizard) SetChannelDescription(v string) {
	w.edit(func(in *Inputs) { in.ChannelDescription = v })
}

// SetChannelMembership accepts "standard" or "private".
func (w *Wizard) SetChannelMembership(v string) error {
	switch v {
	case planner.MembershipStandard, planner.MembershipPrivate:
		w.edit(func(in *Inputs) { in.ChannelMembership = v })
		return nil
	}
	return fmt.Errorf("unknown membership type %q", v)
}

// mutate runs call as the single in-flight mutation of step. apply runs with
// the lock held, only if call succeeded and the session is still the same.
func (w *Wizard) mutate(step connectfsm.Step, call func(p *provision.Pipeline, s Session) error, apply func() error) error {
	w.mu.Lock()
	if err := w.navigable(); err != nil {
		w.mu.Unlock()
		return err
	}
	if err := w.at(step); err != nil {
		w.mu.Unlock()
		return err
	}
	if !w.s.CanSubmit() {
		w.mu.Unlock()
		return ErrNotReady
	}
	w.s.Pending = true
	w.s.Err = nil
	gen, pipe, snap := w.gen, w.pipe, w.s
	w.mu.Unlock()

	err := call(pipe, snap)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrSessionClosed
	}
	w.s.Pending = false
	if err != nil {
		return w.failLocked(string(step), err)
	}
	return apply()
}

func (w *Wizard) failLocked(what string, err error) error {
	w.s.Err = err
	log.WarningLog.Printf("planner connect %s (project %s): %v", what, w.s.ProjectID, err)
	return err
}

// CreateTeam creates the team named in the inputs and advances to create-channel.
func (w *Wizard) CreateTeam(ctx context.Context) error {
	var team planner.Group
	return w.mutate(connectfsm.StepCreateTeam, func(p *provision.Pipeline, s Session) (err error) {
		team, err = p.EnsureTeam(ctx, planner.CreateTeamRequest{
			DisplayName: strings.TrimSpace(s.Inputs.TeamName),
			Description: strings.TrimSpace(s.Inputs.TeamDescription),
			TemplateID:  s.Inputs.TeamTemplate,
			ClientID:    s.ClientID,
		})
		return err
	}, func() error {
		w.setGroupLocked(team)
		return w.moveLocked(connectfsm.Advance)
	})
}

// CreateChannel creates a channel in the selected team and advances to create-plan.
// The new channel is preselected for the tab pin.
func (w *Wizard) CreateChannel(ctx context.Context) error {
	var ch planner.Channel
	return w.mutate(connectfsm.StepCreateChannel, func(p *provision.Pipeline, s Session) (err error) {
		ch, err = p.EnsureChannel(ctx, s.Group.ID, planner.CreateChannelRequest{
			DisplayName:    strings.TrimSpace(s.Inputs.ChannelName),
			Description:    strings.TrimSpace(s.Inputs.ChannelDescription),
			MembershipType: s.Inputs.ChannelMembership,
		})
		return err
	}, func() error {
		w.s.Channel = &ch
		return w.moveLocked(connectfsm.Advance)
	})
}

// CreatePlan creates a plan in the selected team and advances to select-channel.
func (w *Wizard) CreatePlan(ctx context.Context) error {
	var plan planner.Plan
	return w.mutate(connectfsm.StepCreatePlan, func(p *provision.Pipeline, s Session) (err error) {
		plan, err = p.EnsurePlan(ctx, s.Group.ID, planner.CreatePlanRequest{
			Title: strings.TrimSpace(s.Inputs.PlanTitle),
		})
		return err
	}, func() error {
		w.s.Plan = &plan
		return w.moveLocked(connectfsm.Advance)
	})
}

// Confirm links the project to the selected plan and, when requested, pins
// the plan to the selected channel. On success the session is closed.
//
// If the dialog was closed while the link was in flight the returned
// Outcome is still filled in, alongside ErrSessionClosed.
func (w *Wizard) Confirm(ctx context.Context) (provision.Outcome, error) {
	var out provision.Outcome
	err := w.mutate(connectfsm.StepConfirm, func(p *provision.Pipeline, s Session) (err error) {
		t := provision.Target{Group: s.Group, Plan: *s.Plan, PinToChannel: s.PinToChannel}
		if s.Method != connectfsm.MethodExistingPlan {
			t.Channel = s.Channel
		} else {
			t.GroupUnresolved = s.Group != nil && !s.OwnerResolved()
		}
		out, err = p.Connect(ctx, t)
		return err
	}, func() error {
		w.closeLocked()
		return nil
	})
	return out, err
}
