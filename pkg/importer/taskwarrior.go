// Package importer turns tasks from other tools into planner tasks.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/harrisonrobin/planner/pkg/model"
	"github.com/harrisonrobin/planner/pkg/store"
)

// Taskwarrior task statuses the importer acts on.
const (
	twCompleted = "completed"
	twDeleted   = "deleted"
)

const taskwarriorTimeLayout = "20060102T150405Z" // UTC

// twTime is a Taskwarrior export timestamp.
type twTime struct {
	time.Time
}

func (ct *twTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "0" {
		ct.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(taskwarriorTimeLayout, s)
	if err != nil {
		return fmt.Errorf("failed to parse Taskwarrior time string '%s': %w", s, err)
	}
	ct.Time = t
	return nil
}

// twTask is the subset of the Taskwarrior export format the importer reads.
type twTask struct {
	UUID        string   `json:"uuid"`
	Description string   `json:"description"`
	Due         *twTime  `json:"due,omitempty"`
	Scheduled   *twTime  `json:"scheduled,omitempty"`
	Status      string   `json:"status"`
	Project     string   `json:"project,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Annotations []struct {
		Description string `json:"description"`
	} `json:"annotations,omitempty"`
}

// ParseTaskwarrior reads a Taskwarrior export: either a JSON array or a
// stream of JSON objects (one per line, as hooks receive them). Deleted
// tasks are skipped. Dates are converted to loc.
func ParseTaskwarrior(r io.Reader, loc *time.Location) ([]store.NewTask, error) {
	raw, err := decodeTaskwarrior(r)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	var out []store.NewTask
	for _, t := range raw {
		if t.Status == twDeleted {
			continue
		}
		out = append(out, t.toNewTask(loc))
	}
	return out, nil
}

func decodeTaskwarrior(r io.Reader) ([]twTask, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read taskwarrior export: %w", err)
	}
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		var tasks []twTask
		if err := json.Unmarshal([]byte(trimmed), &tasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal taskwarrior output: %w", err)
		}
		return tasks, nil
	}

	var tasks []twTask
	decoder := json.NewDecoder(strings.NewReader(trimmed))
	for {
		var task twTask
		if err := decoder.Decode(&task); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (t twTask) toNewTask(loc *time.Location) store.NewTask {
	nt := store.NewTask{
		Name:      t.Description,
		Type:      t.Project,
		Priority:  twPriority(t.Priority),
		Completed: t.Status == twCompleted,
		Category:  categoryFromTags(t.Tags),
	}

	when := t.Due
	if when == nil || when.IsZero() {
		when = t.Scheduled
	}
	if when != nil && !when.IsZero() {
		nt.DueDate, nt.Time = splitDateTime(when.In(loc))
	}

	notes := make([]string, 0, len(t.Annotations))
	for _, a := range t.Annotations {
		notes = append(notes, a.Description)
	}
	nt.Notes = strings.Join(notes, "\n")
	return nt
}

func twPriority(p string) int {
	switch strings.ToUpper(p) {
	case "H":
		return 3
	case "M":
		return 2
	case "L":
		return 1
	}
	return 0
}

// splitDateTime drops the time of day when it is midnight, which is what
// date-only due dates look like after conversion.
func splitDateTime(t time.Time) (date, clock string) {
	date = t.Format(model.DateLayout)
	if t.Hour() != 0 || t.Minute() != 0 {
		clock = t.Format(model.TimeLayout)
	}
	return date, clock
}

// categoryFromTags returns the first tag naming a planner category.
func categoryFromTags(tags []string) string {
	for _, tag := range tags {
		switch tag {
		case model.CategoryCourses, model.CategoryWork, model.CategoryCareer, model.CategoryResearch, model.CategoryFun:
			return tag
		}
	}
	return ""
}

// ExportTaskwarrior runs `task <filter> export` and parses its output.
func ExportTaskwarrior(ctx context.Context, filter []string, loc *time.Location) ([]store.NewTask, error) {
	args := append(append([]string{}, filter...), "export", "rc.hooks=0")
	cmd := exec.CommandContext(ctx, "task", args...)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}
	return ParseTaskwarrior(strings.NewReader(string(output)), loc)
}
