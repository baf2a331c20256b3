package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02" // dueDate, YYYY-MM-DD
	TimeLayout = "15:04"      // time of day, 24h
)

// Task is a single planner item. The same shape is used by every domain;
// CourseID and WorkID are only set on container-owned tasks.
type Task struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DueDate     string `json:"dueDate,omitempty"`
	Time        string `json:"time,omitempty"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	Type        string `json:"type,omitempty"`
	Priority    int    `json:"priority,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Completed   bool   `json:"completed"`
	GcalEventID string `json:"gcalEventId,omitempty"`
	CourseID    int64  `json:"courseId,omitempty"`
	WorkID      int64  `json:"workId,omitempty"`

	// Domain is implied by the collection the task lives in.
	Domain Domain `json:"-"`
}

// HasDate reports whether the task carries a due date.
func (t Task) HasDate() bool {
	return t.DueDate != ""
}

// Synced reports whether the task has a remote calendar counterpart.
func (t Task) Synced() bool {
	return t.GcalEventID != ""
}

// ParentID returns the owning container id, or 0.
func (t Task) ParentID() int64 {
	switch t.Domain {
	case DomainCourses:
		return t.CourseID
	case DomainWork:
		return t.WorkID
	}
	return 0
}

// Container is a Course or a WorkRole owning a subset of tasks.
type Container struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Expanded bool   `json:"expanded"`
}

// ValidationError is returned when a required field is missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseDate parses a YYYY-MM-DD due date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// Validate checks the invariants shared by creation and update. It does not
// check container membership; the store does that.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if t.DueDate != "" {
		if _, err := time.Parse(DateLayout, t.DueDate); err != nil {
			return &ValidationError{Field: "dueDate", Reason: fmt.Sprintf("%q is not YYYY-MM-DD", t.DueDate)}
		}
	}
	if t.Time != "" {
		if t.DueDate == "" {
			return &ValidationError{Field: "time", Reason: "requires a due date"}
		}
		if _, err := time.Parse(TimeLayout, t.Time); err != nil {
			return &ValidationError{Field: "time", Reason: fmt.Sprintf("%q is not HH:MM", t.Time)}
		}
	}
	if t.Priority < 0 {
		return &ValidationError{Field: "priority", Reason: "must not be negative"}
	}
	if t.Subcategory != "" && t.Category != CategoryCourses && t.ParentID() == 0 {
		return &ValidationError{Field: "subcategory", Reason: "only allowed for courses or container tasks"}
	}
	return nil
}
