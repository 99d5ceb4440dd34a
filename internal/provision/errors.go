package provision

import "errors"

// ErrManagerNotFound covers both an absent manager record and a manager
// with no role assigned. The HTTP layer maps it to 403.
var ErrManagerNotFound = errors.New("provision: manager not found")

// ValidationError reports the first request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// StorageError wraps a failure while persisting the employee record. It is
// the only failure class that triggers rollback of the created role.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "provision: store employee record: " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }
