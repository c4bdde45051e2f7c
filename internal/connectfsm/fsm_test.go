package connectfsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath_MatchesMethodTable(t *testing.T) {
	cases := []struct {
		method Method
		path   []Step
	}{
		{MethodExistingPlan, []Step{StepSelectPlan, StepConfirm}},
		{MethodCreateInTeam, []Step{StepSelectTeam, StepCreatePlan, StepSelectChannel, StepConfirm}},
		{MethodCreateChannelInTeam, []Step{StepSelectTeam, StepCreateChannel, StepCreatePlan, StepSelectChannel, StepConfirm}},
		{MethodCreateNewTeam, []Step{StepCreateTeam, StepCreateChannel, StepCreatePlan, StepSelectChannel, StepConfirm}},
	}
	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			assert.Equal(t, tc.path, Path(tc.method))

			// Walking Advance from choose-method realizes the same path.
			var walked []Step
			step := StepChooseMethod
			for step != StepConfirm {
				next, err := ApplyTransition(tc.method, step, Advance)
				require.NoError(t, err)
				walked = append(walked, next)
				step = next
			}
			assert.Equal(t, tc.path, walked)
		})
	}
}

func TestRetreat_IsInverseOfAdvance(t *testing.T) {
	for _, m := range Methods() {
		prev := StepChooseMethod
		for _, step := range Path(m) {
			back, err := ApplyTransition(m, step, Retreat)
			require.NoError(t, err)
			assert.Equal(t, prev, back, "%s: back from %s", m, step)
			prev = step
		}
	}
}

func TestTransition_InvalidTransitions(t *testing.T) {
	cases := []struct {
		method Method
		from   Step
		event  Event
	}{
		{MethodExistingPlan, StepConfirm, Advance},       // terminal
		{MethodExistingPlan, StepChooseMethod, Retreat},  // nothing before the chooser
		{MethodExistingPlan, StepSelectTeam, Advance},    // not on this path
		{MethodCreateInTeam, StepCreateChannel, Advance}, // not on this path
		{MethodCreateNewTeam, StepSelectPlan, Retreat},   // not on this path
		{MethodCreateNewTeam, StepCreatePlan, StartOver}, // only from confirm
		{Method("bogus"), StepChooseMethod, Advance},
	}
	for _, tc := range cases {
		t.Run(string(tc.method)+"_"+string(tc.from)+"_"+string(tc.event), func(t *testing.T) {
			_, err := ApplyTransition(tc.method, tc.from, tc.event)
			assert.Error(t, err)
		})
	}
}

func TestStartOver_FromConfirm(t *testing.T) {
	for _, m := range Methods() {
		step, err := ApplyTransition(m, StepConfirm, StartOver)
		require.NoError(t, err)
		assert.Equal(t, StepChooseMethod, step)
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("create-new-team")
	require.NoError(t, err)
	assert.Equal(t, MethodCreateNewTeam, m)

	_, err = ParseMethod("create-everything")
	assert.Error(t, err)
}
