package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/planner/pkg/filter"
	"github.com/harrisonrobin/planner/pkg/model"
	"github.com/harrisonrobin/planner/pkg/store"
)

// taskFlags are the editable fields shared by add and edit.
type taskFlags struct {
	due, clock, category, sub, kind, notes string
	priority                               int
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.due, "due", "", "due date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.clock, "time", "", "time of day, HH:MM (requires --due)")
	cmd.Flags().StringVar(&f.category, "category", "", "category (default depends on the domain)")
	cmd.Flags().StringVar(&f.sub, "sub", "", "subcategory")
	cmd.Flags().StringVar(&f.kind, "type", "", "free-form type, e.g. exam or shift")
	cmd.Flags().StringVar(&f.notes, "notes", "", "notes")
	cmd.Flags().IntVarP(&f.priority, "priority", "p", 0, "priority, higher is more important")
}

// patch builds a store.Patch from the flags the user actually set.
func (f *taskFlags) patch(cmd *cobra.Command) store.Patch {
	var p store.Patch
	changed := cmd.Flags().Changed
	if changed("due") {
		p.DueDate = &f.due
	}
	if changed("time") {
		p.Time = &f.clock
	}
	if changed("category") {
		p.Category = &f.category
	}
	if changed("sub") {
		p.Subcategory = &f.sub
	}
	if changed("type") {
		p.Type = &f.kind
	}
	if changed("notes") {
		p.Notes = &f.notes
	}
	if changed("priority") {
		p.Priority = &f.priority
	}
	return p
}

func newTaskCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Add, list, complete, edit and remove tasks",
	}
	cmd.AddCommand(
		newTaskAddCmd(opts),
		newTaskListCmd(opts),
		newTaskDoneCmd(opts),
		newTaskEditCmd(opts),
		newTaskRmCmd(opts),
	)
	return cmd
}

func newTaskAddCmd(opts *rootOptions) *cobra.Command {
	var (
		f      taskFlags
		domain string
		parent int64
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a task",
		Example: `  planner task add "Problem set 3" -d courses --parent 1710000000000 --due 2024-03-12
  planner task add "Coffee with Sam" -d social --due 2024-03-10 --time 15:30`,
		Args: cobra.ExactArgs(1),
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			d, err := model.ParseDomain(domain)
			if err != nil {
				return err
			}
			out, err := a.planner.CreateTask(cmd.Context(), d, store.NewTask{
				Name:        args[0],
				DueDate:     f.due,
				Time:        f.clock,
				Category:    f.category,
				Subcategory: f.sub,
				Type:        f.kind,
				Priority:    f.priority,
				Notes:       f.notes,
				ParentID:    parent,
			})
			if err != nil && !store.IsPersistence(err) {
				return err
			}
			a.println("added " + a.render.TaskLine(out.Task))
			a.report(err, out.Remote)
			return nil
		}),
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&domain, "domain", "d", "social", "courses, work, research, social or internship")
	cmd.Flags().Int64Var(&parent, "parent", 0, "owning course or work role id (courses and work only)")
	return cmd
}

func newTaskListCmd(opts *rootOptions) *cobra.Command {
	var (
		mode, category, domain string
		group                  bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			m, err := filter.ParseMode(mode)
			if err != nil {
				return err
			}
			if group {
				a.println(a.render.Groups(a.planner.Grouped(m)))
				return nil
			}
			if domain != "" {
				d, err := model.ParseDomain(domain)
				if err != nil {
					return err
				}
				a.println(a.render.TaskList(a.planner.DomainView(d, m, category)))
				return nil
			}
			a.println(a.render.TaskList(a.planner.View(m, category)))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&mode, "filter", "f", "all", "all, today, upcoming or completed")
	cmd.Flags().StringVarP(&category, "category", "c", filter.AllCategories, "only show this category")
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "only show this domain")
	cmd.Flags().BoolVarP(&group, "group", "g", false, "group by category")
	return cmd
}

// findTask resolves a task id in any domain.
func findTask(a *app, arg string) (model.Task, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return model.Task{}, &model.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a task id", arg)}
	}
	t, ok := a.store.Find(id)
	if !ok {
		return model.Task{}, fmt.Errorf("task %d: %w", id, store.ErrNotFound)
	}
	return t, nil
}

func newTaskDoneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task's completion",
		Args:  cobra.ExactArgs(1),
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			t, err := findTask(a, args[0])
			if err != nil {
				return err
			}
			updated, _, err := a.planner.ToggleCompleted(t.Domain, t.ID)
			a.println(a.render.TaskLine(updated))
			a.report(err, nil)
			return nil
		}),
	}
}

func newTaskEditCmd(opts *rootOptions) *cobra.Command {
	var (
		f    taskFlags
		name string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Example: `  planner task edit 1710064800000 --due 2024-03-14 --notes "moved"
  planner task edit 1710064800000 --due ""   # drop the due date`,
		Args: cobra.ExactArgs(1),
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			t, err := findTask(a, args[0])
			if err != nil {
				return err
			}
			p := f.patch(cmd)
			if cmd.Flags().Changed("name") {
				p.Name = &name
			}
			out, err := a.planner.UpdateTask(cmd.Context(), t.Domain, t.ID, p)
			if err != nil && !store.IsPersistence(err) {
				return err
			}
			a.println(a.render.TaskLine(out.Task))
			a.report(err, out.Remote)
			return nil
		}),
	}
	f.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "new name")
	return cmd
}

func newTaskRmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task and its calendar event",
		Args:    cobra.ExactArgs(1),
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			t, err := findTask(a, args[0])
			if err != nil {
				return err
			}
			out, _, err := a.planner.DeleteTask(cmd.Context(), t.Domain, t.ID)
			a.printf("deleted %q\n", out.Task.Name)
			a.report(err, out.Remote)
			return nil
		}),
	}
}
