package cmd

import (
	"github.com/spf13/cobra"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's, completed and total task counts",
		Args:  cobra.NoArgs,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			a.println(a.render.Stats(a.planner.Stats()))
			st, err := a.planner.JobApps()
			a.println(a.render.JobApps(st))
			a.report(err, nil)
			return nil
		}),
	}
}

func newJobAppsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobapps",
		Short: "Show today's job application count",
		Args:  cobra.NoArgs,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			st, err := a.planner.JobApps()
			a.println(a.render.JobApps(st))
			a.report(err, nil)
			return nil
		}),
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add",
			Short: "Count one job application",
			Args:  cobra.NoArgs,
			RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
				st, err := a.planner.IncrementJobApps()
				a.println(a.render.JobApps(st))
				a.report(err, nil)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Reset today's count to zero",
			Args:  cobra.NoArgs,
			RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
				st, err := a.planner.ResetJobApps()
				a.println(a.render.JobApps(st))
				a.report(err, nil)
				return nil
			}),
		},
	)
	return cmd
}
