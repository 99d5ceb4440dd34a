package audit

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Memory keeps records in-process. Used by tests and by cmd/api when no
// Postgres DSN is configured.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

var _ Recorder = (*Memory)(nil)

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

// Records returns a snapshot of everything appended so far. Test helper.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// LogRecorder writes records to the structured log instead of a store.
// Useful for storeless development runs; the trail is not durable.
type LogRecorder struct {
	Log *zap.SugaredLogger
}

var _ Recorder = (*LogRecorder)(nil)

func (l *LogRecorder) Append(ctx context.Context, rec *Record) error {
	l.Log.Infow("audit",
		"request_id", rec.RequestID,
		"timestamp", rec.Timestamp,
		"manager_employee_id", rec.ManagerEmployeeID,
		"new_employee_id", rec.NewEmployeeID,
		"new_employee_name", rec.NewEmployeeName,
		"action", rec.Action,
		"status", rec.Status,
		"iam_role_arn", rec.RoleARN,
		"error_message", rec.ErrorMessage,
	)
	return nil
}
