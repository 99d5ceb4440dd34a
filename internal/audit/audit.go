// Package audit records the terminal outcome of every provisioning attempt.
// Records are append-only: one per attempt, keyed by request id, never
// mutated or deleted.
package audit

import (
	"context"
	"strings"
	"time"
)

// ActionProvisionAccess is the action name stamped on provisioning records.
const ActionProvisionAccess = "PROVISION_ACCESS"

// Terminal outcome statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Record describes the outcome of one provisioning attempt. The request id
// is generated fresh per attempt, so duplicate attempts for the same
// employee produce distinct records.
type Record struct {
	RequestID         string    `json:"request_id"`
	Timestamp         time.Time `json:"timestamp"`
	ManagerEmployeeID string    `json:"manager_employee_id"`
	NewEmployeeID     string    `json:"new_employee_id"`
	NewEmployeeName   string    `json:"new_employee_name"`
	Action            string    `json:"action"`
	Status            string    `json:"status"`
	RoleARN           string    `json:"iam_role_arn,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	ClonedPolicyCount *int      `json:"cloned_policies_count,omitempty"`
}

// Recorder appends immutable audit records.
type Recorder interface {
	Append(ctx context.Context, rec *Record) error
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so the
// workflow and its audit record share the id returned to the caller.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
