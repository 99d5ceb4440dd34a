// Package provision orchestrates the end-to-end access provisioning
// workflow: validate the request, verify the manager, clone the manager's
// policy set onto a fresh role, persist the identity record, and audit the
// outcome. Persistence failure after role creation triggers a compensating
// rollback of the role.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"accessgate.org/internal/audit"
	"accessgate.org/internal/directory"
	"accessgate.org/internal/iam"
	"accessgate.org/internal/ids"
	"accessgate.org/internal/obs"
)

// Service sequences the provisioning workflow. It is stateless across
// requests; all transient state lives on the stack of one Provision call.
type Service struct {
	dir     directory.Store
	iam     iam.Client
	auditor audit.Recorder
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewService wires the orchestrator. The iam client should already carry
// the retry policy (iam.WithRetry).
func NewService(dir directory.Store, iamClient iam.Client, auditor audit.Recorder, log *zap.SugaredLogger) *Service {
	return &Service{
		dir:     dir,
		iam:     iamClient,
		auditor: auditor,
		log:     log,
		now:     time.Now,
	}
}

// Result is the success payload of one provisioning attempt.
type Result struct {
	RequestID      string    `json:"request_id"`
	EmployeeID     string    `json:"new_employee_id"`
	EmployeeName   string    `json:"new_employee_name"`
	RoleARN        string    `json:"iam_role_arn"`
	ClonedPolicies []string  `json:"cloned_policies"`
	CreatedAt      time.Time `json:"created_at"`
}

// Provision runs the workflow for one request. Exactly one audit record is
// written per terminal outcome; audit failures never change the outcome.
func (s *Service) Provision(ctx context.Context, req Request) (*Result, error) {
	requestID := audit.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = ids.RequestID()
		ctx = audit.WithRequestID(ctx, requestID)
	}
	log := s.log.With("request_id", requestID, "new_employee_id", req.NewEmployeeID)

	var (
		manager   *directory.Employee
		policies  []string
		role      iam.Role
		createdAt time.Time
	)

	steps := []step{
		{
			name: "validate",
			run: func(context.Context) error {
				return ValidateRequest(req)
			},
		},
		{
			name: "verify_manager",
			run: func(ctx context.Context) error {
				rec, err := s.dir.Lookup(ctx, req.ManagerEmployeeID)
				if errors.Is(err, directory.ErrNotFound) {
					return fmt.Errorf("%w: manager %q not found", ErrManagerNotFound, req.ManagerEmployeeID)
				}
				if err != nil {
					return fmt.Errorf("verify manager: %w", err)
				}
				if rec.RoleARN == "" {
					return fmt.Errorf("%w: manager %q has no role assigned", ErrManagerNotFound, req.ManagerEmployeeID)
				}
				manager = rec
				log.Infow("manager verified", "manager_id", manager.EmployeeID, "manager_role_arn", manager.RoleARN)
				return nil
			},
		},
		{
			name: "clone_permissions",
			run: func(ctx context.Context) error {
				list, err := s.iam.ListAttachedPolicies(ctx, iam.RoleNameFromARN(manager.RoleARN))
				if err != nil {
					return fmt.Errorf("list manager policies: %w", err)
				}
				if len(list) == 0 {
					log.Warnw("manager role has no attached policies", "manager_id", manager.EmployeeID)
				}
				policies = list
				return nil
			},
		},
		{
			name: "create_role",
			run: func(ctx context.Context) error {
				name := iam.RoleName(req.NewEmployeeID)
				created, err := s.iam.CreateRole(ctx, name, "Access role for employee "+req.NewEmployeeID)
				if err != nil {
					return fmt.Errorf("create role %q: %w", name, err)
				}
				role = created
				log.Infow("role created", "role_arn", role.ARN)
				return nil
			},
			compensate: func(ctx context.Context) {
				s.rollbackRole(ctx, log, role)
			},
		},
		{
			name: "attach_permissions",
			run: func(ctx context.Context) error {
				for _, policy := range policies {
					if err := s.iam.AttachPolicy(ctx, role.Name, policy); err != nil {
						return fmt.Errorf("attach policy %q: %w", policy, err)
					}
				}
				log.Infow("policies attached", "count", len(policies))
				return nil
			},
		},
		{
			name:              "store_record",
			rollbackOnFailure: true,
			run: func(ctx context.Context) error {
				exists, err := s.dir.Exists(ctx, req.NewEmployeeID)
				if err != nil {
					return &StorageError{Err: err}
				}
				if exists {
					return &StorageError{Err: fmt.Errorf("employee %q: %w", req.NewEmployeeID, directory.ErrAlreadyExists)}
				}
				createdAt = s.now().UTC()
				rec := &directory.Employee{
					EmployeeID:   req.NewEmployeeID,
					EmployeeName: req.NewEmployeeName,
					ManagerID:    req.ManagerEmployeeID,
					RoleARN:      role.ARN,
					RoleName:     role.Name,
					CreatedAt:    createdAt,
					UpdatedAt:    createdAt,
				}
				if err := s.dir.Insert(ctx, rec); err != nil {
					return &StorageError{Err: err}
				}
				return nil
			},
		},
	}

	if err := runSaga(ctx, steps); err != nil {
		log.Warnw("provisioning failed", "error", err)
		s.writeAudit(ctx, req, requestID, &audit.Record{
			Status:       audit.StatusFailed,
			ErrorMessage: err.Error(),
		})
		obs.ProvisionAttempts.WithLabelValues(audit.StatusFailed).Inc()
		return nil, err
	}

	count := len(policies)
	s.writeAudit(ctx, req, requestID, &audit.Record{
		Status:            audit.StatusSuccess,
		RoleARN:           role.ARN,
		ClonedPolicyCount: &count,
	})
	obs.ProvisionAttempts.WithLabelValues(audit.StatusSuccess).Inc()
	log.Infow("provisioning succeeded", "role_arn", role.ARN, "cloned_policies", count)

	return &Result{
		RequestID:      requestID,
		EmployeeID:     req.NewEmployeeID,
		EmployeeName:   req.NewEmployeeName,
		RoleARN:        role.ARN,
		ClonedPolicies: policies,
		CreatedAt:      createdAt,
	}, nil
}

// rollbackRole detaches whatever is currently attached to the role and
// deletes it. Best-effort and attempted exactly once: failures are logged
// and counted, never surfaced, so the original storage error stays the
// reported outcome. A role left behind here is an out-of-band cleanup
// concern.
func (s *Service) rollbackRole(ctx context.Context, log *zap.SugaredLogger, role iam.Role) {
	log.Warnw("rolling back role", "role_name", role.Name)

	failed := false
	policies, err := s.iam.ListAttachedPolicies(ctx, role.Name)
	if err != nil {
		log.Errorw("rollback: list attached policies failed", "role_name", role.Name, "error", err)
		failed = true
	}
	for _, policy := range policies {
		if err := s.iam.DetachPolicy(ctx, role.Name, policy); err != nil {
			log.Errorw("rollback: detach policy failed", "role_name", role.Name, "policy", policy, "error", err)
			failed = true
		}
	}
	if err := s.iam.DeleteRole(ctx, role.Name); err != nil {
		log.Errorw("rollback: delete role failed", "role_name", role.Name, "error", err)
		failed = true
	}

	if failed {
		obs.RollbackFailures.Inc()
	} else {
		log.Infow("rollback complete", "role_name", role.Name)
	}
}

// writeAudit fills the request-shaped fields and appends the record.
// Audit failures are logged and swallowed.
func (s *Service) writeAudit(ctx context.Context, req Request, requestID string, rec *audit.Record) {
	rec.RequestID = requestID
	rec.Timestamp = s.now().UTC()
	rec.ManagerEmployeeID = req.ManagerEmployeeID
	rec.NewEmployeeID = req.NewEmployeeID
	rec.NewEmployeeName = req.NewEmployeeName
	rec.Action = audit.ActionProvisionAccess

	if err := s.auditor.Append(ctx, rec); err != nil {
		s.log.Errorw("audit write failed", "request_id", requestID, "status", rec.Status, "error", err)
	}
}
