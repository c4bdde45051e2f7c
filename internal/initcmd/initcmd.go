// Package initcmd implements `opsdash setup`: an interactive form that writes
// config.toml and then checks that the configured backend answers.
package initcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/kastheco/opsdash/config"
	"github.com/kastheco/opsdash/internal/planner"
	"github.com/kastheco/opsdash/ui/overlay"
)

// Options holds the CLI flags for opsdash setup.
type Options struct {
	Clean bool // ignore existing config, start with factory defaults
	// Out receives progress lines. Defaults to stdout.
	Out io.Writer
	// Prompt fills in State. Defaults to the interactive form.
	Prompt func(*State) error
	// Probe reports on the configured backend. Defaults to the planner client.
	Probe func(ctx context.Context, cfg *config.Config) planner.IntegrationStatus
}

// State holds the values collected by the form.
type State struct {
	APIURL         string
	APIToken       string
	RequestTimeout string
	DefaultProject string
	Telemetry      bool
}

// stateFrom pre-populates the form from cfg.
func stateFrom(cfg *config.Config) *State {
	return &State{
		APIURL:         cfg.APIURL,
		APIToken:       cfg.APIToken,
		RequestTimeout: cfg.RequestTimeout,
		DefaultProject: cfg.DefaultProject,
		Telemetry:      cfg.IsTelemetryEnabled(),
	}
}

// Apply copies the collected values onto cfg. Settings the form does not
// ask about are left alone.
func (s *State) Apply(cfg *config.Config) {
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(s.APIURL), "/")
	cfg.APIToken = strings.TrimSpace(s.APIToken)
	cfg.RequestTimeout = strings.TrimSpace(s.RequestTimeout)
	cfg.DefaultProject = strings.TrimSpace(s.DefaultProject)
	telemetry := s.Telemetry
	cfg.TelemetryEnabled = &telemetry
}

func validateURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("required")
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func validateTimeout(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return errors.New("must be a positive duration such as 30s")
	}
	return nil
}

// runForm asks for every setting in one huh form.
func runForm(s *State) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API URL").
				Description("Base URL of the project backend").
				Value(&s.APIURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API token").
				Description("Sent as a bearer token; leave empty for none").
				EchoMode(huh.EchoModePassword).
				Value(&s.APIToken),
			huh.NewInput().
				Title("Request timeout").
				Placeholder("30s").
				Value(&s.RequestTimeout).
				Validate(validateTimeout),
			huh.NewInput().
				Title("Default project").
				Description("Used when a command is given no project id").
				Value(&s.DefaultProject),
			huh.NewConfirm().
				Title("Send crash reports?").
				Value(&s.Telemetry),
		),
	).WithTheme(overlay.ThemeRosePine())
	return form.Run()
}

func probe(ctx context.Context, cfg *config.Config) planner.IntegrationStatus {
	return planner.NewClient(cfg.APIURL, cfg.APIToken, cfg.Timeout()).Status(ctx)
}

// Run executes the opsdash setup workflow.
func Run(ctx context.Context, opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Prompt == nil {
		opts.Prompt = runForm
	}
	if opts.Probe == nil {
		opts.Probe = probe
	}

	configDir, err := config.GetConfigDir()
	if err != nil {
		return err
	}
	path := filepath.Join(configDir, config.ConfigFileName)

	// Load existing config unless --clean
	cfg := config.DefaultConfig()
	if !opts.Clean {
		existing, err := config.LoadTOMLConfigFrom(path)
		switch {
		case err == nil:
			cfg = existing
		case !errors.Is(err, os.ErrNotExist):
			fmt.Fprintf(opts.Out, "Warning: could not load existing config: %v\n", err)
		}
	}

	state := stateFrom(cfg)
	if err := opts.Prompt(state); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("setup cancelled")
		}
		return fmt.Errorf("setup form: %w", err)
	}
	state.Apply(cfg)
	if err := validateURL(cfg.APIURL); err != nil {
		return fmt.Errorf("api url: %w", err)
	}
	if err := validateTimeout(cfg.RequestTimeout); err != nil {
		return fmt.Errorf("request timeout: %w", err)
	}

	fmt.Fprintln(opts.Out, "Writing config...")
	if err := config.SaveTOMLConfigTo(cfg, path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(opts.Out, "  %s\n", path)

	fmt.Fprintln(opts.Out, "\nChecking the planner integration...")
	st := opts.Probe(ctx, cfg)
	switch {
	case st.Usable():
		fmt.Fprintln(opts.Out, "  OK")
	case st.Message != "":
		fmt.Fprintf(opts.Out, "  WARNING: %s\n", st.Message)
	default:
		fmt.Fprintf(opts.Out, "  WARNING: %s\n", st.Error)
	}

	fmt.Fprintln(opts.Out, "\nDone! Run 'opsdash planner connect' to link a project.")
	return nil
}
