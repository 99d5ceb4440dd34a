// Package iam wraps the external permission service that owns roles and
// the policies attached to them.
package iam

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrAlreadyExists = errors.New("iam: already exists")
	ErrNotFound      = errors.New("iam: not found")
	ErrAccessDenied  = errors.New("iam: access denied")
)

// Role is a reference to a permission-service role.
type Role struct {
	Name string `json:"name"`
	ARN  string `json:"arn"`
}

// Client describes the permission-service operations the provisioning
// workflow needs. Implementations classify failures: the sentinel errors
// above are permanent, anything else is treated as transient.
type Client interface {
	// ListAttachedPolicies returns the policy ARNs attached to a role in
	// the service's listing order. An empty list is a valid result.
	ListAttachedPolicies(ctx context.Context, roleName string) ([]string, error)

	// CreateRole creates a role; ErrAlreadyExists reports a name collision.
	CreateRole(ctx context.Context, name, description string) (Role, error)

	// AttachPolicy attaches a policy to a role. Attaching an
	// already-attached policy is not an error.
	AttachPolicy(ctx context.Context, roleName, policyARN string) error

	// DetachPolicy and DeleteRole serve the rollback path.
	DetachPolicy(ctx context.Context, roleName, policyARN string) error
	DeleteRole(ctx context.Context, roleName string) error
}

// RoleName derives the role name for an employee. The derivation is
// deterministic so a retried request for the same employee collides on the
// existing role instead of creating a duplicate.
func RoleName(employeeID string) string {
	return "Employee-" + employeeID + "-Role"
}

// RoleNameFromARN extracts the role name from a role ARN.
func RoleNameFromARN(arn string) string {
	if i := strings.LastIndexByte(arn, '/'); i >= 0 {
		return arn[i+1:]
	}
	return arn
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccessDenied)
}
