package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/planner/pkg/model"
	"github.com/harrisonrobin/planner/pkg/store"
)

// newContainerCmd builds the "course" and "work" command trees.
func newContainerCmd(opts *rootOptions, name string) *cobra.Command {
	kind, err := model.ParseContainerKind(name)
	if err != nil {
		panic(err)
	}
	noun := "course"
	if kind == model.KindWorkRole {
		noun = "work role"
	}

	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Manage %ss and their tasks", noun),
	}

	parseID := func(arg string) (int64, error) {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return 0, &model.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a %s id", arg, noun)}
		}
		return id, nil
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a " + noun,
		Args:  cobra.ExactArgs(1),
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			c, err := a.planner.AddContainer(kind, args[0])
			if err != nil && !store.IsPersistence(err) {
				return err
			}
			a.printf("added %s %q (%d)\n", noun, c.Name, c.ID)
			a.report(err, nil)
			return nil
		}),
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   fmt.Sprintf("List %ss with their tasks", noun),
		Args:    cobra.NoArgs,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			containers := a.planner.Containers(kind)
			if len(containers) == 0 {
				a.printf("no %ss yet\n", noun)
				return nil
			}
			for _, c := range containers {
				a.println(a.render.Container(c, a.planner.ContainerTasks(kind, c.ID)))
			}
			return nil
		}),
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: fmt.Sprintf("Delete a %s and all its tasks", noun),
		Args:  cobra.ExactArgs(1),
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !hasContainer(a, kind, id) {
				return fmt.Errorf("%s %d: %w", noun, id, store.ErrNotFound)
			}
			out, err := a.planner.DeleteContainer(cmd.Context(), kind, id)
			a.printf("deleted %s %d and %d tasks\n", noun, id, len(out.Removed))
			a.report(err, out.Remote)
			return nil
		}),
	}

	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: fmt.Sprintf("Expand or collapse a %s in listings", noun),
		Args:  cobra.ExactArgs(1),
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ok, err := a.planner.ToggleExpanded(kind, id)
			if !ok {
				return fmt.Errorf("%s %d: %w", noun, id, store.ErrNotFound)
			}
			state := "collapsed"
			if c.Expanded {
				state = "expanded"
			}
			a.printf("%s %q %s\n", noun, c.Name, state)
			a.report(err, nil)
			return nil
		}),
	}

	cmd.AddCommand(add, list, rm, toggle)
	return cmd
}

func hasContainer(a *app, kind model.ContainerKind, id int64) bool {
	for _, c := range a.planner.Containers(kind) {
		if c.ID == id {
			return true
		}
	}
	return false
}
