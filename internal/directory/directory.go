// Package directory stores identity records mapping employees and managers
// to their access roles.
package directory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("directory: not found")
	ErrAlreadyExists = errors.New("directory: already exists")
)

// Employee is one identity record. Records are immutable once the
// identifier is assigned; identifiers are never reused.
type Employee struct {
	EmployeeID   string    `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	ManagerID    string    `json:"manager_id,omitempty"`
	RoleARN      string    `json:"iam_role_arn"`
	RoleName     string    `json:"iam_role_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store describes persistence operations over identity records.
type Store interface {
	// Lookup returns the stored record, or ErrNotFound when the identifier
	// is absent. Transport and storage failures surface as other errors;
	// absence is a normal outcome, not a failure.
	Lookup(ctx context.Context, employeeID string) (*Employee, error)

	// Exists reports whether a record with the identifier is present.
	Exists(ctx context.Context, employeeID string) (bool, error)

	// Insert persists a new record. The write is conditional on the
	// identifier being absent: a duplicate returns ErrAlreadyExists
	// without overwriting anything.
	Insert(ctx context.Context, e *Employee) error
}
