package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/planner/pkg/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and change the config file",
	}
	cmd.AddCommand(newConfigInitCmd(opts), newConfigShowCmd(opts), newConfigSetCalendarCmd(opts))
	return cmd
}

func configPath(opts *rootOptions) (string, error) {
	if opts.configPath != "" {
		return opts.configPath, nil
	}
	return config.Path()
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(opts)
			if err != nil {
				return err
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newConfigSetCalendarCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-calendar <calendar-id>",
		Short: "Set the calendar tasks are mirrored to",
		Long: `Set the calendar tasks are mirrored to. Pass "primary" or a calendar id as
shown under "Integrate calendar" in the Google Calendar settings, e.g.
abc123@group.calendar.google.com. Calendar names are not looked up: the
planner only holds the calendar.events scope, which cannot read your
calendar list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if strings.ContainsAny(id, " \t") {
				return fmt.Errorf("%q looks like a calendar name; pass the calendar id instead", id)
			}
			path, err := configPath(opts)
			if err != nil {
				return err
			}
			if err := config.SetCalendar(path, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "default calendar set to %s\n", id)
			return nil
		},
	}
}
