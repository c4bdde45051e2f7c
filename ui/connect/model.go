// Package connect is the terminal dialog that connects a project to a
// planner plan. All state lives in a wizard.Wizard; this package only maps
// keys to wizard operations and renders session snapshots.
package connect

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/kastheco/opsdash/internal/connectfsm"
	"github.com/kastheco/opsdash/internal/planner"
	"github.com/kastheco/opsdash/internal/provision"
	"github.com/kastheco/opsdash/internal/wizard"
	"github.com/kastheco/opsdash/log"
	"github.com/kastheco/opsdash/ui/overlay"
)

// Remote is what the dialog needs from the planner client.
type Remote interface {
	wizard.Remote
	Status(ctx context.Context) planner.IntegrationStatus
}

type mode int

const (
	modeChecking mode = iota
	modeUnavailable
	modeWizard
	modeDone
)

type statusMsg struct{ status planner.IntegrationStatus }

type loadedMsg struct {
	step connectfsm.Step
	err  error
}

type submittedMsg struct {
	step connectfsm.Step
	err  error
}

type confirmedMsg struct {
	out provision.Outcome
	err error
}

// Model is the bubbletea model of the connection dialog.
type Model struct {
	ctx       context.Context
	remote    Remote
	wiz       *wizard.Wizard
	projectID string
	clientID  string

	mode   mode
	status planner.IntegrationStatus

	spinner spinner.Model
	notes   *overlay.Notifier

	// chosen is bound to the method chooser and must outlive Model copies.
	chosen  *connectfsm.Method
	methods *huh.Form

	form     *overlay.FieldForm
	formStep connectfsm.Step

	filter    textinput.Model
	filtering bool
	cursor    int

	width  int
	height int

	outcome  *provision.Outcome
	canceled bool
}

// New returns a dialog for projectID. The wizard session is opened once the
// integration reports itself usable.
func New(ctx context.Context, remote Remote, wiz *wizard.Wizard, projectID, clientID string) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = overlay.OKStyle

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "type to filter"
	ti.CharLimit = 120

	return Model{
		ctx:       ctx,
		remote:    remote,
		wiz:       wiz,
		projectID: projectID,
		clientID:  clientID,
		spinner:   s,
		notes:     overlay.NewNotifier(),
		chosen:    new(connectfsm.Method),
		filter:    ti,
		width:     80,
		height:    24,
	}
}

// Outcome returns the result of a successful confirm.
func (m Model) Outcome() (provision.Outcome, bool) {
	if m.outcome == nil {
		return provision.Outcome{}, false
	}
	return *m.outcome, true
}

// Canceled reports whether the user quit before connecting.
func (m Model) Canceled() bool { return m.canceled }

// Status returns the integration status fetched at startup.
func (m Model) Status() planner.IntegrationStatus { return m.status }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.checkStatus())
}

func (m Model) checkStatus() tea.Cmd {
	return func() tea.Msg {
		return statusMsg{status: m.remote.Status(m.ctx)}
	}
}

func (m Model) load(step connectfsm.Step, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{step: step, err: fn(m.ctx)}
	}
}

func (m Model) submit(step connectfsm.Step, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return submittedMsg{step: step, err: fn(m.ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filter.Width = max(msg.Width-10, 20)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, tea.Batch(cmd, m.notes.Update(msg))

	case overlay.ToastTickMsg:
		return m, m.notes.Update(msg)

	case statusMsg:
		m.status = msg.status
		if !msg.status.Usable() {
			m.mode = modeUnavailable
			log.WarningLog.Printf("planner integration unavailable for project %s: %+v", m.projectID, msg.status)
			return m, nil
		}
		m.wiz.Open(m.projectID, m.clientID)
		m.mode = modeWizard
		return m, m.enterStep()

	case loadedMsg:
		var cmd tea.Cmd
		if msg.err != nil && !errors.Is(msg.err, wizard.ErrSessionClosed) {
			log.WarningLog.Printf("planner %s load failed: %v", msg.step, msg.err)
			cmd = m.notify(msg.err)
		}
		if msg.step == connectfsm.StepCreateTeam && msg.err == nil && m.formStep == connectfsm.StepCreateTeam {
			// Templates arrived: rebuild so the template picker shows them.
			m.buildForm(m.wiz.Session())
		}
		if msg.step == connectfsm.StepSelectChannel && msg.err == nil {
			if i := selectedChannel(m.wiz.Session()); i >= 0 {
				m.cursor = i
			}
		}
		m.clampCursor()
		return m, cmd

	case submittedMsg:
		if errors.Is(msg.err, wizard.ErrSessionClosed) {
			return m, nil
		}
		if msg.err != nil {
			return m, m.notify(msg.err)
		}
		return m, m.enterStep()

	case confirmedMsg:
		// A closed session still reports the outcome when the link landed.
		if msg.err != nil && (!errors.Is(msg.err, wizard.ErrSessionClosed) || msg.out.Connection.PlanID == "") {
			if errors.Is(msg.err, wizard.ErrSessionClosed) {
				return m, nil
			}
			return m, m.notify(msg.err)
		}
		out := msg.out
		m.outcome = &out
		m.mode = modeDone
		if out.TabErr == nil {
			return m, tea.Quit
		}
		// Stay on the result until a key is pressed so the warning is read.
		m.notes.Warning("Connected, but the plan could not be pinned to the channel: " + out.TabErr.Error())
		return m, m.notes.Tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// notify raises a transient error toast; the inline copy comes from the session.
func (m *Model) notify(err error) tea.Cmd {
	m.notes.Error(err.Error())
	return m.notes.Tick()
}

// enterStep prepares the current step and starts whatever it needs loaded.
func (m *Model) enterStep() tea.Cmd {
	s := m.wiz.Session()
	m.cursor = 0
	m.filtering = false
	m.filter.Blur()
	m.filter.SetValue(s.Filter)
	m.form = nil
	m.formStep = ""

	switch s.Step {
	case connectfsm.StepChooseMethod:
		m.buildChooser(s.Method)
	case connectfsm.StepSelectTeam:
		return m.load(s.Step, m.wiz.LoadGroups)
	case connectfsm.StepSelectPlan:
		return m.load(s.Step, m.wiz.LoadPlans)
	case connectfsm.StepSelectChannel:
		return m.load(s.Step, m.wiz.LoadChannels)
	case connectfsm.StepCreateTeam:
		m.buildForm(s)
		return m.load(s.Step, m.wiz.LoadTemplates)
	case connectfsm.StepCreateChannel, connectfsm.StepCreatePlan:
		m.buildForm(s)
	}
	return nil
}

func (m *Model) buildChooser(current connectfsm.Method) {
	*m.chosen = current
	if *m.chosen == "" {
		*m.chosen = connectfsm.MethodExistingPlan
	}
	opts := make([]huh.Option[connectfsm.Method], 0, len(connectfsm.Methods()))
	for _, meth := range connectfsm.Methods() {
		opts = append(opts, huh.NewOption(meth.Label(), meth))
	}
	m.methods = huh.NewForm(huh.NewGroup(
		huh.NewSelect[connectfsm.Method]().
			Title("How do you want to connect?").
			Options(opts...).
			Value(m.chosen),
	)).
		WithTheme(overlay.ThemeRosePine()).
		WithWidth(max(m.width-6, 34)).
		WithShowHelp(false)
	_ = m.methods.Init()
}

func (m *Model) buildForm(s wizard.Session) {
	in := s.Inputs
	m.formStep = s.Step
	switch s.Step {
	case connectfsm.StepCreateTeam:
		fields := []overlay.Field{
			{Key: "name", Title: "Team name", Initial: in.TeamName, Required: true},
			{Key: "description", Title: "Description (optional)", Initial: in.TeamDescription},
		}
		if len(s.Templates) > 0 {
			opts := []overlay.Option{{Label: "No template", Value: ""}}
			for _, t := range s.Templates {
				opts = append(opts, overlay.Option{Label: t.DisplayName, Value: t.ID})
			}
			fields = append(fields, overlay.Field{Key: "template", Title: "Template", Initial: in.TeamTemplate, Options: opts})
		}
		m.form = overlay.NewFieldForm("Create a new team", m.width, fields...)
	case connectfsm.StepCreateChannel:
		membership := in.ChannelMembership
		if membership == "" {
			membership = planner.MembershipStandard
		}
		m.form = overlay.NewFieldForm("Create a channel in "+groupName(s), m.width,
			overlay.Field{Key: "name", Title: "Channel name", Initial: in.ChannelName, Required: true},
			overlay.Field{Key: "description", Title: "Description (optional)", Initial: in.ChannelDescription},
			overlay.Field{Key: "membership", Title: "Membership", Initial: membership, Options: []overlay.Option{
				{Label: "Standard: everyone in the team", Value: planner.MembershipStandard},
				{Label: "Private: invited members only", Value: planner.MembershipPrivate},
			}},
		)
	case connectfsm.StepCreatePlan:
		m.form = overlay.NewFieldForm("Create a plan in "+groupName(s), m.width,
			overlay.Field{Key: "title", Title: "Plan title", Initial: in.PlanTitle, Required: true},
		)
	}
}

func groupName(s wizard.Session) string {
	if s.Group == nil {
		return "the team"
	}
	return s.Group.DisplayName
}

// pushInputs copies the form into the wizard so typed text survives navigation.
func (m *Model) pushInputs() {
	if m.form == nil {
		return
	}
	switch m.formStep {
	case connectfsm.StepCreateTeam:
		m.wiz.SetTeamName(m.form.Value("name"))
		m.wiz.SetTeamDescription(m.form.Value("description"))
		m.wiz.SetTeamTemplate(m.form.Value("template"))
	case connectfsm.StepCreateChannel:
		m.wiz.SetChannelName(m.form.Value("name"))
		m.wiz.SetChannelDescription(m.form.Value("description"))
		if err := m.wiz.SetChannelMembership(m.form.Value("membership")); err != nil {
			log.WarningLog.Printf("channel membership: %v", err)
		}
	case connectfsm.StepCreatePlan:
		m.wiz.SetPlanTitle(m.form.Value("title"))
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}

	switch m.mode {
	case modeChecking:
		if key.Matches(msg, keys.Quit) || msg.Type == tea.KeyEsc {
			return m.quit()
		}
		return m, nil
	case modeUnavailable:
		return m.quit()
	case modeDone:
		return m, tea.Quit
	}

	s := m.wiz.Session()
	switch s.Step {
	case connectfsm.StepChooseMethod:
		return m.handleChooser(msg)
	case connectfsm.StepCreateTeam, connectfsm.StepCreateChannel, connectfsm.StepCreatePlan:
		return m.handleForm(msg, s)
	case connectfsm.StepConfirm:
		return m.handleConfirm(msg, s)
	}
	return m.handleList(msg, s)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.wiz.Close()
	m.canceled = true
	return m, tea.Quit
}

func (m Model) back() (tea.Model, tea.Cmd) {
	if err := m.wiz.Back(); err != nil {
		return m, nil
	}
	return m, m.enterStep()
}

func (m Model) handleChooser(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit), msg.Type == tea.KeyEsc:
		return m.quit()
	case msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && msg.Runes[0] >= '1' && int(msg.Runes[0]-'0') <= len(connectfsm.Methods()):
		*m.chosen = connectfsm.Methods()[msg.Runes[0]-'1']
		return m.chooseMethod()
	case msg.Type == tea.KeyEnter:
		// Enter makes the select commit its value; the returned command is not needed.
		_, _ = m.methods.Update(msg)
		return m.chooseMethod()
	}
	updated, _ := m.methods.Update(msg)
	if f, ok := updated.(*huh.Form); ok {
		m.methods = f
	}
	return m, nil
}

func (m Model) chooseMethod() (tea.Model, tea.Cmd) {
	if err := m.wiz.ChooseMethod(*m.chosen); err != nil {
		return m, m.notify(err)
	}
	return m, m.enterStep()
}

func (m Model) handleForm(msg tea.KeyMsg, s wizard.Session) (tea.Model, tea.Cmd) {
	if m.form == nil || m.formStep != s.Step {
		m.buildForm(s)
	}
	if s.Pending {
		return m, nil
	}
	done := m.form.HandleKeyPress(msg)
	m.pushInputs()
	if !done {
		return m, nil
	}
	if m.form.IsCanceled() {
		m.form.Reopen()
		return m.back()
	}
	m.form.Reopen()

	var fn func(context.Context) error
	switch s.Step {
	case connectfsm.StepCreateTeam:
		fn = m.wiz.CreateTeam
	case connectfsm.StepCreateChannel:
		fn = m.wiz.CreateChannel
	case connectfsm.StepCreatePlan:
		fn = m.wiz.CreatePlan
	}
	if !m.wiz.CanSubmit() {
		return m, nil
	}
	return m, m.submit(s.Step, fn)
}

func (m Model) handleConfirm(msg tea.KeyMsg, s wizard.Session) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()
	case key.Matches(msg, keys.Back):
		if s.Pending {
			return m, nil
		}
		return m.back()
	case key.Matches(msg, keys.StartOver):
		if err := m.wiz.StartOver(); err != nil {
			return m, nil
		}
		return m, m.enterStep()
	case key.Matches(msg, keys.Select):
		if !m.wiz.CanSubmit() {
			return m, nil
		}
		return m, func() tea.Msg {
			out, err := m.wiz.Confirm(m.ctx)
			return confirmedMsg{out: out, err: err}
		}
	}
	return m, nil
}

// visibleCount is the length of the list shown at the current step.
func visibleCount(s wizard.Session) int {
	switch s.Step {
	case connectfsm.StepSelectTeam:
		return len(s.VisibleGroups())
	case connectfsm.StepSelectPlan:
		return len(s.VisiblePlans())
	case connectfsm.StepSelectChannel:
		return len(s.Channels)
	}
	return 0
}

// selectedChannel is the list index of the session's channel, or -1.
func selectedChannel(s wizard.Session) int {
	if s.Channel == nil {
		return -1
	}
	for i, c := range s.Channels {
		if c.ID == s.Channel.ID {
			return i
		}
	}
	return -1
}

func (m *Model) clampCursor() {
	n := visibleCount(m.wiz.Session())
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

func (m Model) handleList(msg tea.KeyMsg, s wizard.Session) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.Type {
		case tea.KeyEsc, tea.KeyEnter:
			m.filtering = false
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.wiz.SetFilter(m.filter.Value())
		m.cursor = 0
		return m, cmd
	}

	n := visibleCount(s)
	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()
	case key.Matches(msg, keys.Back):
		return m.back()
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < n-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Filter) && s.Step != connectfsm.StepSelectChannel:
		m.filtering = true
		return m, m.filter.Focus()
	case key.Matches(msg, keys.More) && s.Step == connectfsm.StepSelectTeam:
		if m.wiz.CanLoadMore() {
			return m, m.load(s.Step, m.wiz.LoadMoreGroups)
		}
	case key.Matches(msg, keys.Pin) && s.Step == connectfsm.StepSelectChannel:
		m.wiz.SetPinToChannel(!s.PinToChannel)
	case key.Matches(msg, keys.Retry) && s.Err != nil:
		return m, m.enterStep()
	case key.Matches(msg, keys.Select):
		return m.pick(s)
	}
	return m, nil
}

func (m Model) pick(s wizard.Session) (tea.Model, tea.Cmd) {
	var err error
	switch s.Step {
	case connectfsm.StepSelectTeam:
		groups := s.VisibleGroups()
		if m.cursor >= len(groups) {
			return m, nil
		}
		err = m.wiz.PickGroup(groups[m.cursor])
	case connectfsm.StepSelectPlan:
		plans := s.VisiblePlans()
		if m.cursor >= len(plans) {
			return m, nil
		}
		err = m.wiz.PickPlan(plans[m.cursor])
	case connectfsm.StepSelectChannel:
		if m.cursor < len(s.Channels) {
			if err := m.wiz.PickChannel(s.Channels[m.cursor]); err != nil {
				return m, nil
			}
		}
		err = m.wiz.ContinueFromChannel()
	}
	if err != nil {
		return m, nil
	}
	return m, m.enterStep()
}
