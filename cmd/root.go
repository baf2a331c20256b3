package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/planner/pkg/config"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	version = v
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	calendarID string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "planner",
		Short: "Personal task planner with Google Calendar mirroring",
		Long: `planner keeps courses, work, research, social and internship tasks in one
place, tracks daily job applications and mirrors dated tasks to a Google
Calendar once you sign in.

Configuration is read from ~/.config/planner/config.yaml, PLANNER_*
environment variables and an optional .env file.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				return config.LoadDotEnv(opts.envFile)
			}
			return config.LoadDotEnv()
		},
	}
	cmd.SetVersionTemplate(`{{printf "planner version %s\n" .Version}}`)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/planner/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.calendarID, "calendar", "", "Google Calendar id to use (overrides config)")
	flags.StringVar(&opts.envFile, "env-file", "", "load environment variables from this file instead of .env")

	cmd.AddCommand(
		newTaskCmd(opts),
		newContainerCmd(opts, "course"),
		newContainerCmd(opts, "work"),
		newJobAppsCmd(opts),
		newStatsCmd(opts),
		newCalendarCmd(opts),
		newImportCmd(opts),
		newConfigCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// Execute is the main entry point for the CLI application.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
