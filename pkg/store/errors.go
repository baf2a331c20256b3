package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by operations that require an existing task or
// container.
var ErrNotFound = errors.New("not found")

// PersistenceError reports that a mutation was applied in memory but the
// snapshot could not be written. The in-memory state is not rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("could not persist planner state after %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var perr *PersistenceError
	return errors.As(err, &perr)
}
