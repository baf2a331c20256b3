package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/planner/pkg/importer"
	"github.com/harrisonrobin/planner/pkg/model"
	"github.com/harrisonrobin/planner/pkg/store"
)

type importOptions struct {
	domain string
	parent int64
}

func (o *importOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.domain, "domain", "d", "social", "domain to import into")
	cmd.Flags().Int64Var(&o.parent, "parent", 0, "owning course or work role id (courses and work only)")
}

// save creates the parsed tasks and prints a summary. Entries that fail
// validation are listed but do not stop the import.
func (o *importOptions) save(cmd *cobra.Command, a *app, tasks []store.NewTask) error {
	d, err := model.ParseDomain(o.domain)
	if err != nil {
		return err
	}
	for i := range tasks {
		tasks[i].ParentID = o.parent
	}
	n, err := a.planner.ImportTasks(cmd.Context(), d, tasks)
	a.printf("imported %d of %d tasks into %s\n", n, len(tasks), d)
	if err != nil {
		for _, e := range unjoin(err) {
			a.println(a.render.Warning(e.Error()))
		}
	}
	return nil
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tasks from Taskwarrior or Org mode",
	}
	cmd.AddCommand(newImportTaskwarriorCmd(opts), newImportOrgCmd(opts))
	return cmd
}

// openInput opens path, or stdin for "-".
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

func newImportTaskwarriorCmd(opts *rootOptions) *cobra.Command {
	var (
		imp  importOptions
		file string
	)
	cmd := &cobra.Command{
		Use:   "taskwarrior [filter...]",
		Short: "Import pending and completed Taskwarrior tasks",
		Long: `Import tasks from Taskwarrior. Without --file, "task <filter> export" is run;
with --file, a saved export (JSON array or one object per line) is read,
"-" meaning stdin. Deleted tasks are skipped.`,
		Example: `  planner import taskwarrior project:thesis -d research
  task export | planner import taskwarrior --file - -d social`,
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			// dates land in the zone events are mirrored in
			loc := a.mapper.Location()
			var (
				tasks []store.NewTask
				err   error
			)
			if file != "" {
				in, err := openInput(cmd, file)
				if err != nil {
					return err
				}
				defer in.Close()
				tasks, err = importer.ParseTaskwarrior(in, loc)
				if err != nil {
					return err
				}
			} else {
				tasks, err = importer.ExportTaskwarrior(cmd.Context(), args, loc)
				if err != nil {
					return err
				}
			}
			return imp.save(cmd, a, tasks)
		}),
	}
	imp.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", `read a saved export instead of running task ("-" for stdin)`)
	return cmd
}

func newImportOrgCmd(opts *rootOptions) *cobra.Command {
	var imp importOptions
	cmd := &cobra.Command{
		Use:   "org <file>",
		Short: "Import TODO and DONE headlines from an Org file",
		Args:  cobra.ExactArgs(1),
		RunE: runE(opts, func(cmd *cobra.Command, a *app, args []string) error {
			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			tasks, err := importer.ParseOrg(in)
			if err != nil {
				return err
			}
			return imp.save(cmd, a, tasks)
		}),
	}
	imp.register(cmd)
	return cmd
}
