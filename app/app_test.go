package app

import (
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kastheco/opsdash/internal/planner/plannertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headless(keys string) []tea.ProgramOption {
	return []tea.ProgramOption{
		tea.WithInput(strings.NewReader(keys)),
		tea.WithOutput(io.Discard),
		tea.WithoutSignalHandler(),
	}
}

func TestRunConnect_ClosedWithoutLinking(t *testing.T) {
	fake := plannertest.NewFake()
	out, ok, err := RunConnect(context.Background(), fake, nil, "42", "", headless("\x03")...)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, out.Connection.PlanID)
	assert.Zero(t, fake.Count("LinkProject"))
}

func TestRun_QuitFromDashboard(t *testing.T) {
	fake := plannertest.NewFake()
	err := Run(context.Background(), fake, nil, "42", headless("q")...)
	require.NoError(t, err)
	assert.Zero(t, fake.Count("Status"), "the connect dialog never opened")
}
