// Package app runs the interactive programs: the connection dashboard and
// the connect dialog it hands over to.
package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kastheco/opsdash/config/auditlog"
	"github.com/kastheco/opsdash/internal/provision"
	"github.com/kastheco/opsdash/internal/syncpanel"
	"github.com/kastheco/opsdash/internal/wizard"
	"github.com/kastheco/opsdash/log"
	"github.com/kastheco/opsdash/ui"
	"github.com/kastheco/opsdash/ui/connect"
)

// Remote is everything the two programs call on the backend.
type Remote interface {
	connect.Remote
	syncpanel.Remote
}

// Run is the main entrypoint into the application. It shows the dashboard
// of projectID; when the user asks to connect from there, the connect dialog
// runs and the dashboard comes back afterwards.
func Run(ctx context.Context, remote Remote, audit auditlog.Logger, projectID string, opts ...tea.ProgramOption) error {
	panel := syncpanel.New(remote, projectID, audit)
	var connected *provision.Outcome
	for {
		d := ui.NewDashboard(ctx, panel, audit)
		if connected != nil {
			d.ShowConnected(*connected)
			connected = nil
		}
		p := tea.NewProgram(d, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)...)
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run dashboard: %w", err)
		}
		if !d.WantsConnect() {
			return nil
		}
		out, ok, err := RunConnect(ctx, remote, audit, projectID, "", opts...)
		if err != nil {
			return err
		}
		if ok {
			log.InfoLog.Printf("project %s connected to plan %s", projectID, out.Connection.PlanID)
			connected = &out
		}
	}
}

// RunConnect runs the connect dialog. ok is false when the user closed it
// without linking.
func RunConnect(ctx context.Context, remote connect.Remote, audit auditlog.Logger, projectID, clientID string, opts ...tea.ProgramOption) (provision.Outcome, bool, error) {
	wiz := wizard.New(remote, audit)
	m := connect.New(ctx, remote, wiz, projectID, clientID)
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)...)
	final, err := p.Run()
	if err != nil {
		return provision.Outcome{}, false, fmt.Errorf("run connect dialog: %w", err)
	}
	fm, ok := final.(connect.Model)
	if !ok {
		return provision.Outcome{}, false, nil
	}
	out, linked := fm.Outcome()
	return out, linked, nil
}
