package calsync

import (
	"errors"
	"fmt"
)

// ErrNoDueDate is returned when mapping a task that has no due date.
var ErrNoDueDate = errors.New("task has no due date")

// RemoteSyncError reports a failed remote calendar call. It never implies
// that local state was changed or rolled back.
type RemoteSyncError struct {
	Op      string
	TaskID  int64
	EventID string
	Err     error
}

func (e *RemoteSyncError) Error() string {
	switch {
	case e.TaskID != 0:
		return fmt.Sprintf("calendar %s for task %d failed: %v", e.Op, e.TaskID, e.Err)
	case e.EventID != "":
		return fmt.Sprintf("calendar %s for event %s failed: %v", e.Op, e.EventID, e.Err)
	}
	return fmt.Sprintf("calendar %s failed: %v", e.Op, e.Err)
}

func (e *RemoteSyncError) Unwrap() error {
	return e.Err
}
