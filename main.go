package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cmd2 "github.com/kastheco/opsdash/cmd"
	"github.com/kastheco/opsdash/config"
	initcmd "github.com/kastheco/opsdash/internal/initcmd"
	sentrypkg "github.com/kastheco/opsdash/internal/sentry"
	"github.com/kastheco/opsdash/log"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "opsdash [project]",
		Short: "opsdash - Connect projects to Planner plans and keep their tasks in sync.",
		Long: `Opens the connection dashboard of a project. The project id comes from the
argument or default_project in ~/.config/opsdash/config.toml.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var project string
			if len(args) > 0 {
				project = args[0]
			}
			err := cmd2.RunDashboard(cmd.Context(), project)
			sentrypkg.CaptureError(err)
			return err
		},
	}

	debugCmd = &cobra.Command{
		Use:   "debug",
		Short: "Print debug information like config paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()

			configDir, err := config.GetConfigDir()
			if err != nil {
				return fmt.Errorf("failed to get config directory: %w", err)
			}
			shown := *cfg
			if shown.APIToken != "" {
				shown.APIToken = "<redacted>"
			}
			configJson, _ := json.MarshalIndent(shown, "", "  ")

			fmt.Printf("Config: %s\n%s\n", filepath.Join(configDir, config.ConfigFileName), configJson)
			fmt.Printf("Log: %s\n", log.Path())

			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of opsdash",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("opsdash version %s\n", version)
			fmt.Printf("https://github.com/kastheco/opsdash/releases/tag/v%s\n", version)
		},
	}
)

func init() {
	var cleanFlag bool

	setupCmd := &cobra.Command{
		Use:     "setup",
		Aliases: []string{"init"},
		Short:   "Configure the backend URL, token and default project",
		Long: `Run an interactive form to:
  1. Set the project backend URL and bearer token
  2. Pick the request timeout and default project
  3. Write ~/.config/opsdash/config.toml and check the planner integration`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initcmd.Run(cmd.Context(), initcmd.Options{Clean: cleanFlag})
		},
	}
	setupCmd.Flags().BoolVar(&cleanFlag, "clean", false, "Ignore existing config, start with factory defaults")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cmd2.NewPlannerCmd())
}

// run sets up logging and crash reporting around the command tree.
func run() error {
	cfg := config.LoadConfig()

	log.Initialize(cfg.IsTelemetryEnabled())
	defer log.Close()

	if err := sentrypkg.Init(version, cfg.SentryDSN, cfg.IsTelemetryEnabled()); err != nil {
		// Non-fatal: sentry failure should not prevent startup
		log.WarningLog.Printf("sentry init: %v", err)
	}
	defer sentrypkg.RecoverPanic()

	return rootCmd.Execute()
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, errUnhealthy) {
			os.Exit(1)
		}
		fmt.Println(err)
		os.Exit(1)
	}
}
