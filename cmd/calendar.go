package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/planner/pkg/metrics"
	"github.com/harrisonrobin/planner/pkg/model"
)

func newCalendarCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calendar",
		Aliases: []string{"cal"},
		Short:   "Google Calendar sign-in and sync",
	}
	cmd.AddCommand(
		newCalendarAuthCmd(opts),
		newCalendarLogoutCmd(opts),
		newCalendarStatusCmd(opts),
		newCalendarSyncCmd(opts),
		newCalendarImportCmd(opts),
	)
	return cmd
}

func newCalendarAuthCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in to Google Calendar",
		Long: `Sign in to Google Calendar with the OAuth client in calendar.credentials_file.
A consent URL is printed; after approving, the browser is redirected to a
local listener and the token is saved to calendar.token_file.`,
		Args: cobra.NoArgs,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			session, err := a.requireSession()
			if err != nil {
				return err
			}
			if session.SignedIn() && !force {
				a.println("already signed in; use --force to sign in again")
				return nil
			}
			if force {
				if err := session.SignOut(); err != nil {
					return err
				}
			}

			err = session.SignInWithBrowser(cmd.Context(), a.out)
			a.metrics.RecordSignIn(metrics.Result(err))
			if err != nil {
				return err
			}
			a.calendar.Reset()
			a.printf("signed in, token saved to %s\n", a.cfg.Calendar.TokenFile)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "discard the saved token and sign in again")
	return cmd
}

func newCalendarLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and delete the saved token",
		Args:  cobra.NoArgs,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			session, err := a.requireSession()
			if err != nil {
				return err
			}
			if err := session.SignOut(); err != nil {
				return err
			}
			a.calendar.Reset()
			a.println("signed out")
			return nil
		}),
	}
}

func newCalendarStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether calendar mirroring is active",
		Args:  cobra.NoArgs,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if a.session == nil {
				a.printf("calendar: disabled (no client secrets at %s)\n", a.cfg.Calendar.CredentialsFile)
				return nil
			}
			state := "signed out"
			if a.session.SignedIn() {
				state = "signed in"
			}
			a.printf("calendar: %s\ncalendar id: %s\n", state, a.calendar.CalendarID())

			var synced, pending int
			for _, t := range a.store.AllTasks() {
				switch {
				case t.Synced():
					synced++
				case t.HasDate() && !t.Completed:
					pending++
				}
			}
			a.printf("synced tasks: %d\nwaiting for sync: %d\n", synced, pending)
			return nil
		}),
	}
}

func newCalendarSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Create events for every dated, open task without one",
		Args:  cobra.NoArgs,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			n, err := a.planner.Sync(cmd.Context())
			a.printf("created %d events\n", n)
			if err != nil {
				// per-task failures are reported but do not fail the pass
				for _, e := range unjoin(err) {
					a.println(a.render.Warning(e.Error()))
				}
				if n == 0 {
					return errors.New("sync failed")
				}
			}
			return nil
		}),
	}
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func newCalendarImportCmd(opts *rootOptions) *cobra.Command {
	var (
		from, to string
		days     int
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "List upcoming events from the calendar",
		Args:  cobra.NoArgs,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			start := time.Now()
			if from != "" {
				t, err := model.ParseDate(from, nil)
				if err != nil {
					return &model.ValidationError{Field: "from", Reason: "must be YYYY-MM-DD"}
				}
				start = t
			}
			end := start.AddDate(0, 0, days)
			if to != "" {
				t, err := model.ParseDate(to, nil)
				if err != nil {
					return &model.ValidationError{Field: "to", Reason: "must be YYYY-MM-DD"}
				}
				end = t
			}

			events, err := a.planner.ImportEvents(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			a.println(a.render.Events(events))
			return nil
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (default now)")
	cmd.Flags().StringVar(&to, "to", "", "end day, exclusive, YYYY-MM-DD")
	cmd.Flags().IntVar(&days, "days", 7, "number of days to list when --to is not set")
	return cmd
}
