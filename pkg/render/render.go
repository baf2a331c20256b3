// Package render draws planner views for the terminal.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/harrisonrobin/planner/pkg/calsync"
	"github.com/harrisonrobin/planner/pkg/filter"
	"github.com/harrisonrobin/planner/pkg/jobapps"
	"github.com/harrisonrobin/planner/pkg/model"
)

const (
	priorityBall = "●"
	barWidth     = 20
)

// Renderer renders views for one output. Colors are only emitted when the
// output is a capable terminal.
type Renderer struct {
	styles Styles
}

// New returns a renderer whose color profile is detected from w.
func New(w io.Writer) *Renderer {
	return &Renderer{styles: newStyles(lipgloss.NewRenderer(w), TokyoNight)}
}

// TaskLine renders one task: status mark, id, name, then date, type,
// priority balls and notes.
func (r *Renderer) TaskLine(t model.Task) string {
	s := r.styles

	mark := "[ ]"
	nameStyle := s.Task
	if t.Completed {
		mark = "[x]"
		nameStyle = s.Done
	}
	line := fmt.Sprintf("%s %s %s", mark, s.Meta.Render(strconv.FormatInt(t.ID, 10)), nameStyle.Render(t.Name))

	var meta []string
	if date := displayDate(t); date != "" {
		meta = append(meta, date)
	}
	if t.Type != "" {
		meta = append(meta, t.Type)
	}
	if t.Synced() {
		meta = append(meta, "synced")
	}
	if len(meta) > 0 {
		line += "  " + s.Meta.Render(strings.Join(meta, " • "))
	}
	if t.Priority > 0 {
		line += " " + s.Priority.Render(strings.Repeat(priorityBall, t.Priority))
	}
	if t.Notes != "" {
		line += "\n    " + s.Meta.Render(t.Notes)
	}
	return line
}

// displayDate formats the due date as "Jan 2", plus the time if set.
func displayDate(t model.Task) string {
	if !t.HasDate() {
		return ""
	}
	d, err := model.ParseDate(t.DueDate, nil)
	if err != nil {
		return t.DueDate
	}
	out := d.Format("Jan 2")
	if t.Time != "" {
		out += " " + t.Time
	}
	return out
}

// TaskList renders tasks one per line, or a placeholder when empty.
func (r *Renderer) TaskList(tasks []model.Task) string {
	if len(tasks) == 0 {
		return r.styles.Empty.Render("no tasks yet")
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, r.TaskLine(t))
	}
	return strings.Join(lines, "\n")
}

// Groups renders the grouped view.
func (r *Renderer) Groups(groups []filter.Group) string {
	if len(groups) == 0 {
		return r.styles.Empty.Render("no tasks yet")
	}
	var blocks []string
	for _, g := range groups {
		var b strings.Builder
		b.WriteString(r.styles.Heading.Render(strings.ToUpper(g.Category)))
		if len(g.Subgroups) == 0 {
			b.WriteString("\n" + r.TaskList(g.Tasks))
		}
		for _, sg := range g.Subgroups {
			if sg.Name != filter.MainSubgroup {
				b.WriteString("\n" + r.styles.Subgroup.Render(sg.Name))
			}
			b.WriteString("\n" + r.TaskList(sg.Tasks))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// Container renders a course or work role with its tasks. Collapsed
// containers show only their header.
func (r *Renderer) Container(c model.Container, tasks []model.Task) string {
	arrow := "▾"
	if !c.Expanded {
		arrow = "▸"
	}
	header := fmt.Sprintf("%s %s %s", arrow, r.styles.Heading.Render(c.Name), r.styles.Meta.Render(fmt.Sprintf("(%d, %d tasks)", c.ID, len(tasks))))
	if !c.Expanded {
		return header
	}
	return header + "\n" + r.TaskList(tasks)
}

// Stats renders the summary panel.
func (r *Renderer) Stats(st filter.Stats) string {
	s := r.styles
	cell := func(v int, label string) string {
		return s.StatValue.Render(strconv.Itoa(v)) + " " + s.StatLabel.Render(label)
	}
	return s.Box.Render(strings.Join([]string{
		cell(st.Today, "today"),
		cell(st.Completed, "completed"),
		cell(st.Total, "total"),
	}, "   "))
}

// JobApps renders the daily counter as a progress bar.
func (r *Renderer) JobApps(st jobapps.State) string {
	filled := int(st.Fraction()*barWidth + 0.5)
	bar := r.styles.BarFill.Render(strings.Repeat("█", filled)) +
		r.styles.BarEmpty.Render(strings.Repeat("░", barWidth-filled))
	return fmt.Sprintf("job apps %s %d/%d", bar, st.Count, jobapps.DailyGoal)
}

// Events renders remote calendar events.
func (r *Renderer) Events(events []calsync.RemoteEvent) string {
	if len(events) == 0 {
		return r.styles.Empty.Render("no events")
	}
	lines := make([]string, 0, len(events))
	for _, e := range events {
		when := e.Start.Format("Mon Jan 2 15:04")
		if e.AllDay {
			when = e.Start.Format("Mon Jan 2")
		}
		line := fmt.Sprintf("%s  %s", r.styles.Meta.Render(when), r.styles.Task.Render(e.Summary))
		if e.TaskID != 0 {
			line += " " + r.styles.Meta.Render(fmt.Sprintf("(task %d)", e.TaskID))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Warning renders a non-fatal problem, such as a failed calendar call.
func (r *Renderer) Warning(msg string) string {
	return r.styles.Warning.Render("! " + msg)
}
