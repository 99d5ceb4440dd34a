package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"accessgate.org/internal/audit"
	"accessgate.org/internal/directory"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestLookupNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select employee_id, employee_name").
		WithArgs("EMP-404").
		WillReturnRows(sqlmock.NewRows([]string{"employee_id"}))

	_, err := s.Lookup(context.Background(), "EMP-404")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLookupFound(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"employee_id", "employee_name", "manager_id",
		"iam_role_arn", "iam_role_name", "created_at", "updated_at",
	}).AddRow("MGR-1", "Manager One", "", "arn:ext:iam::role/Employee-MGR-1-Role", "Employee-MGR-1-Role", now, now)

	mock.ExpectQuery("select employee_id, employee_name").
		WithArgs("MGR-1").
		WillReturnRows(rows)

	rec, err := s.Lookup(context.Background(), "MGR-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.EmployeeName != "Manager One" || rec.RoleName != "Employee-MGR-1-Role" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestExists(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select exists").
		WithArgs("EMP-9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.Exists(context.Background(), "EMP-9")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertConditional(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	rec := &directory.Employee{
		EmployeeID:   "EMP-9",
		EmployeeName: "Ada Lovelace",
		ManagerID:    "MGR-1",
		RoleARN:      "arn:ext:iam::role/Employee-EMP-9-Role",
		RoleName:     "Employee-EMP-9-Role",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec("insert into employees").
		WithArgs(rec.EmployeeID, rec.EmployeeName, rec.ManagerID,
			rec.RoleARN, rec.RoleName, rec.CreatedAt, rec.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// A lost race reports zero affected rows.
	mock.ExpectExec("insert into employees").
		WithArgs(rec.EmployeeID, rec.EmployeeName, rec.ManagerID,
			rec.RoleARN, rec.RoleName, rec.CreatedAt, rec.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Insert(context.Background(), rec); !errors.Is(err, directory.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAppendAuditRecord(t *testing.T) {
	s, mock := newMockStore(t)
	count := 2
	rec := &audit.Record{
		RequestID:         "req-1",
		Timestamp:         time.Now().UTC(),
		ManagerEmployeeID: "MGR-1",
		NewEmployeeID:     "EMP-9",
		NewEmployeeName:   "Ada Lovelace",
		Action:            audit.ActionProvisionAccess,
		Status:            audit.StatusSuccess,
		RoleARN:           "arn:ext:iam::role/Employee-EMP-9-Role",
		ClonedPolicyCount: &count,
	}

	mock.ExpectExec("insert into audit_log").
		WithArgs(sqlmock.AnyArg(), rec.RequestID, rec.Timestamp, rec.ManagerEmployeeID,
			rec.NewEmployeeID, rec.NewEmployeeName, rec.Action, rec.Status,
			rec.RoleARN, nil, count).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAppendAuditRecordFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("insert into audit_log").
		WillReturnError(errors.New("connection reset"))

	rec := &audit.Record{
		RequestID: "req-2",
		Timestamp: time.Now().UTC(),
		Action:    audit.ActionProvisionAccess,
		Status:    audit.StatusFailed,
	}
	if err := s.Append(context.Background(), rec); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
