// Package pg persists identity records and the audit trail in PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"accessgate.org/internal/audit"
	"accessgate.org/internal/directory"
	"accessgate.org/internal/ids"
)

type Store struct {
	db *sql.DB
}

var (
	_ directory.Store = (*Store)(nil)
	_ audit.Recorder  = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool. Tests pass a sqlmock connection.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Lookup(ctx context.Context, employeeID string) (*directory.Employee, error) {
	var e directory.Employee
	err := s.db.QueryRowContext(ctx, `
		select employee_id, employee_name, coalesce(manager_id, ''),
		       iam_role_arn, iam_role_name, created_at, updated_at
		from employees
		where employee_id = $1
	`, employeeID).Scan(
		&e.EmployeeID, &e.EmployeeName, &e.ManagerID,
		&e.RoleARN, &e.RoleName, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) Exists(ctx context.Context, employeeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from employees where employee_id = $1)`,
		employeeID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Insert is conditional on the identifier being absent: the on-conflict
// clause makes check-then-insert races lose cleanly instead of
// overwriting.
func (s *Store) Insert(ctx context.Context, e *directory.Employee) error {
	res, err := s.db.ExecContext(ctx, `
		insert into employees (employee_id, employee_name, manager_id,
		                       iam_role_arn, iam_role_name, created_at, updated_at)
		values ($1, $2, nullif($3, ''), $4, $5, $6, $7)
		on conflict (employee_id) do nothing
	`, e.EmployeeID, e.EmployeeName, e.ManagerID,
		e.RoleARN, e.RoleName, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrAlreadyExists
	}
	return nil
}

// Append writes one audit record. The request id is unique per attempt,
// so the table naturally holds one row per provisioning attempt.
func (s *Store) Append(ctx context.Context, rec *audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, request_id, ts, manager_employee_id,
		                       new_employee_id, new_employee_name, action, status,
		                       iam_role_arn, error_message, cloned_policies_count)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, ids.New(), rec.RequestID, rec.Timestamp, rec.ManagerEmployeeID,
		rec.NewEmployeeID, rec.NewEmployeeName, rec.Action, rec.Status,
		nullString(rec.RoleARN), nullString(rec.ErrorMessage), nullInt(rec.ClonedPolicyCount))
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
