// Package filter computes the derived views the planner shows: filtered,
// sorted and grouped task lists plus summary counts. Everything here is
// pure; callers pass the current date in.
package filter

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/harrisonrobin/planner/pkg/model"
)

// Mode is a quick filter.
type Mode string

const (
	ModeAll       Mode = "all"
	ModeToday     Mode = "today"
	ModeUpcoming  Mode = "upcoming"
	ModeCompleted Mode = "completed"
)

// ParseMode accepts the mode names case-insensitively. An empty string
// means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAll, nil
	case ModeAll, ModeToday, ModeUpcoming, ModeCompleted:
		return m, nil
	}
	return "", &model.ValidationError{Field: "filter", Reason: fmt.Sprintf("unknown filter %q", s)}
}

// AllCategories is the selector that keeps every category.
const AllCategories = "all"

// Query selects tasks for a view. Today is the current date as YYYY-MM-DD.
type Query struct {
	Mode     Mode
	Category string
	Today    string
}

// Today formats now as a due date.
func Today(now time.Time) string {
	return now.Format(model.DateLayout)
}

// Matches reports whether t passes the category selector and the mode
// predicate. Dates compare as strings, which is correct for YYYY-MM-DD.
func (q Query) Matches(t model.Task) bool {
	if q.Category != "" && q.Category != AllCategories && t.Category != q.Category {
		return false
	}
	switch q.Mode {
	case ModeToday:
		return !t.Completed && t.DueDate == q.Today
	case ModeUpcoming:
		return !t.Completed && t.HasDate() && t.DueDate > q.Today
	case ModeCompleted:
		return t.Completed
	}
	return true
}

// Apply returns the matching tasks in display order. The input is not
// modified.
func Apply(tasks []model.Task, q Query) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if q.Matches(t) {
			out = append(out, t)
		}
	}
	Sort(out)
	return out
}

// Sort orders tasks in place: incomplete before completed, dated before
// undated, earlier due date first, then higher priority first. Ties keep
// their input order.
func Sort(tasks []model.Task) {
	slices.SortStableFunc(tasks, Compare)
}

// Compare is the ordering used by Sort.
func Compare(a, b model.Task) int {
	if a.Completed != b.Completed {
		if a.Completed {
			return 1
		}
		return -1
	}
	if a.HasDate() != b.HasDate() {
		if a.HasDate() {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.DueDate, b.DueDate); c != 0 {
		return c
	}
	// absent priority is 0, the lowest
	return b.Priority - a.Priority
}

// Stats are the counts shown in the summary panel.
type Stats struct {
	Today     int `json:"today"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Summarize counts open tasks due today, completed tasks and all tasks.
func Summarize(tasks []model.Task, today string) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch {
		case t.Completed:
			s.Completed++
		case t.DueDate == today:
			s.Today++
		}
	}
	return s
}
