// Package connectfsm defines the steps of the planner connection wizard and
// the transitions between them. Which steps are reachable depends on the
// connection method chosen in the first step.
package connectfsm

import "fmt"

// Step is a screen of the connection wizard.
type Step string

const (
	StepChooseMethod  Step = "choose-method"
	StepSelectTeam    Step = "select-team"
	StepSelectPlan    Step = "select-plan"
	StepCreatePlan    Step = "create-plan"
	StepSelectChannel Step = "select-channel"
	StepCreateTeam    Step = "create-team"
	StepCreateChannel Step = "create-channel"
	StepConfirm       Step = "confirm"
)

// Method is the way the user chose to obtain a plan.
type Method string

const (
	MethodExistingPlan        Method = "existing-plan"
	MethodCreateInTeam        Method = "create-in-team"
	MethodCreateChannelInTeam Method = "create-channel-in-team"
	MethodCreateNewTeam       Method = "create-new-team"
)

// Label returns the text shown for a method in the chooser.
func (m Method) Label() string {
	switch m {
	case MethodExistingPlan:
		return "Link an existing plan"
	case MethodCreateInTeam:
		return "Create a plan in an existing team"
	case MethodCreateChannelInTeam:
		return "Create a channel and plan in an existing team"
	case MethodCreateNewTeam:
		return "Create a new team, channel and plan"
	}
	return string(m)
}

// Methods returns all methods in display order.
func Methods() []Method {
	return []Method{MethodExistingPlan, MethodCreateInTeam, MethodCreateChannelInTeam, MethodCreateNewTeam}
}

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown connection method %q", s)
}

// Event is a navigation trigger.
type Event string

const (
	Advance   Event = "advance"
	Retreat   Event = "back"
	StartOver Event = "start_over"
)

// forwardTable defines the forward edge out of every step, per method.
// Key: method → current step → next step.
var forwardTable = map[Method]map[Step]Step{
	MethodExistingPlan: {
		StepChooseMethod: StepSelectPlan,
		StepSelectPlan:   StepConfirm,
	},
	MethodCreateInTeam: {
		StepChooseMethod:  StepSelectTeam,
		StepSelectTeam:    StepCreatePlan,
		StepCreatePlan:    StepSelectChannel,
		StepSelectChannel: StepConfirm,
	},
	MethodCreateChannelInTeam: {
		StepChooseMethod:  StepSelectTeam,
		StepSelectTeam:    StepCreateChannel,
		StepCreateChannel: StepCreatePlan,
		StepCreatePlan:    StepSelectChannel,
		StepSelectChannel: StepConfirm,
	},
	MethodCreateNewTeam: {
		StepChooseMethod:  StepCreateTeam,
		StepCreateTeam:    StepCreateChannel,
		StepCreateChannel: StepCreatePlan,
		StepCreatePlan:    StepSelectChannel,
		StepSelectChannel: StepConfirm,
	},
}

// Path returns the steps visited after choose-method for the given method,
// ending with confirm. Returns nil for an unknown method.
func Path(m Method) []Step {
	edges, ok := forwardTable[m]
	if !ok {
		return nil
	}
	var path []Step
	for step := edges[StepChooseMethod]; step != ""; step = edges[step] {
		path = append(path, step)
	}
	return path
}

// Reachable reports whether step is part of the method's path.
func Reachable(m Method, step Step) bool {
	if step == StepChooseMethod {
		return true
	}
	for _, s := range Path(m) {
		if s == step {
			return true
		}
	}
	return false
}

// ApplyTransition returns the step reached from current by event under method.
// Returns an error if the transition is not valid.
func ApplyTransition(m Method, current Step, event Event) (Step, error) {
	edges, ok := forwardTable[m]
	if !ok {
		return "", fmt.Errorf("no transitions defined for method %q", m)
	}
	if !Reachable(m, current) {
		return "", fmt.Errorf("step %q is not part of method %q", current, m)
	}

	switch event {
	case Advance:
		next, ok := edges[current]
		if !ok {
			return "", fmt.Errorf("invalid transition: %q + %q", current, event)
		}
		return next, nil
	case Retreat:
		if current == StepChooseMethod {
			return "", fmt.Errorf("invalid transition: %q + %q", current, event)
		}
		for from, to := range edges {
			if to == current {
				return from, nil
			}
		}
		return "", fmt.Errorf("invalid transition: %q + %q", current, event)
	case StartOver:
		if current != StepConfirm {
			return "", fmt.Errorf("invalid transition: %q + %q", current, event)
		}
		return StepChooseMethod, nil
	}
	return "", fmt.Errorf("unknown event %q", event)
}

// Next is shorthand for ApplyTransition(m, current, Advance).
func Next(m Method, current Step) (Step, error) {
	return ApplyTransition(m, current, Advance)
}

// Back is shorthand for ApplyTransition(m, current, Retreat).
func Back(m Method, current Step) (Step, error) {
	return ApplyTransition(m, current, Retreat)
}
