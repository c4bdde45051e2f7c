package wizard

import (
	"strings"

	"github.com/kastheco/opsdash/internal/connectfsm"
	"github.com/kastheco/opsdash/internal/planner"
)

// UnknownGroupName stands in for the owner of a plan whose group is not in
// the loaded group list.
const UnknownGroupName = "Unknown Group"

// Inputs holds the free text typed into the creation steps. It survives
// back and forward navigation and is only cleared by Open and Close.
type Inputs struct {
	TeamName           string
	TeamDescription    string
	TeamTemplate       string
	ChannelName        string
	ChannelDescription string
	ChannelMembership  string
	PlanTitle          string
}

// Session is everything one open dialog knows. Wizard hands out copies.
type Session struct {
	ProjectID string
	ClientID  string

	Step   connectfsm.Step
	Method connectfsm.Method

	Group        *planner.Group
	Plan         *planner.Plan
	Channel      *planner.Channel
	PinToChannel bool
	Inputs       Inputs

	// Groups accumulates every page fetched so far.
	Groups          []planner.Group
	NextLink        string
	Source          string
	HasAzureMapping bool
	GroupsLoaded    bool
	LoadingGroups   bool

	Plans        []planner.Plan
	PlansLoaded  bool
	LoadingPlans bool

	// Channels belong to ChannelsFor, the group they were listed under.
	Channels        []planner.Channel
	ChannelsFor     string
	ChannelsLoaded  bool
	LoadingChannels bool

	Templates []planner.TeamTemplate

	// Filter narrows the list shown at the current step. It never triggers a fetch.
	Filter string

	// Pending is set while a creation or the final link is in flight.
	Pending bool
	// Err is the failure shown inline at the current step.
	Err error
}

// FilterActive reports whether a non-blank filter is set.
func (s Session) FilterActive() bool {
	return strings.TrimSpace(s.Filter) != ""
}

// VisibleGroups returns the accumulated groups matching the filter.
func (s Session) VisibleGroups() []planner.Group {
	if !s.FilterActive() {
		return s.Groups
	}
	var out []planner.Group
	for _, g := range s.Groups {
		if matches(s.Filter, g.DisplayName, g.Description) {
			out = append(out, g)
		}
	}
	return out
}

// VisiblePlans returns the loaded plans matching the filter.
func (s Session) VisiblePlans() []planner.Plan {
	if !s.FilterActive() {
		return s.Plans
	}
	var out []planner.Plan
	for _, p := range s.Plans {
		if matches(s.Filter, p.Title) {
			out = append(out, p)
		}
	}
	return out
}

// CanLoadMore reports whether another group page exists and may be fetched.
// Paging is hidden while a filter is active.
func (s Session) CanLoadMore() bool {
	return s.NextLink != "" && !s.FilterActive() && !s.LoadingGroups
}

// ScopeLabel describes where the group list came from.
func (s Session) ScopeLabel() string {
	if s.Source == planner.SourceAll {
		return "All teams in your organization"
	}
	return "Your teams"
}

// OwnerOf resolves a plan's owning group against the loaded groups. A plan
// whose owner is not loaded gets a placeholder named UnknownGroupName.
func (s Session) OwnerOf(p planner.Plan) *planner.Group {
	if p.Owner == "" {
		return nil
	}
	for _, g := range s.Groups {
		if g.ID == p.Owner {
			g := g
			return &g
		}
	}
	return &planner.Group{ID: p.Owner, DisplayName: UnknownGroupName}
}

// OwnerResolved reports whether the selected group was found among the
// loaded groups rather than made up by OwnerOf.
func (s Session) OwnerResolved() bool {
	if s.Group == nil {
		return false
	}
	for _, g := range s.Groups {
		if g.ID == s.Group.ID {
			return true
		}
	}
	return false
}

// CanContinueFromChannel reports whether select-channel may advance: either
// no tab is wanted, a channel is picked, or there is nothing to pick from.
func (s Session) CanContinueFromChannel() bool {
	if !s.PinToChannel || s.Channel != nil {
		return true
	}
	return s.ChannelsLoaded && len(s.Channels) == 0
}

// CanSubmit reports whether the primary action of the current step is enabled.
func (s Session) CanSubmit() bool {
	if s.Pending {
		return false
	}
	switch s.Step {
	case connectfsm.StepCreateTeam:
		return strings.TrimSpace(s.Inputs.TeamName) != ""
	case connectfsm.StepCreateChannel:
		return s.Group != nil && strings.TrimSpace(s.Inputs.ChannelName) != ""
	case connectfsm.StepCreatePlan:
		return s.Group != nil && strings.TrimSpace(s.Inputs.PlanTitle) != ""
	case connectfsm.StepSelectChannel:
		return s.CanContinueFromChannel()
	case connectfsm.StepConfirm:
		return s.Plan != nil
	}
	return false
}

func matches(filter string, fields ...string) bool {
	needle := strings.ToLower(strings.TrimSpace(filter))
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func (s Session) clone() Session {
	c := s
	c.Groups = append([]planner.Group(nil), s.Groups...)
	c.Plans = append([]planner.Plan(nil), s.Plans...)
	c.Channels = append([]planner.Channel(nil), s.Channels...)
	c.Templates = append([]planner.TeamTemplate(nil), s.Templates...)
	return c
}
