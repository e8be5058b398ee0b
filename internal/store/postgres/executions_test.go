package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"neco/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

var executionRowColumns = []string{
	"id", "system_id", "system_json", "logs", "status", "dispatch_job_id",
	"started_at", "stopped_at", "created_at", "updated_at",
}

func TestCreateExecution_Defaults(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	systemID := uuid.New()
	now := time.Now().Truncate(time.Second)
	exec := &store.Execution{SystemID: systemID, SystemJSON: []byte(`{"nodes":[]}`)}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO system_executions`).
		WithArgs(sqlmock.AnyArg(), systemID, `{"nodes":[]}`, "[]", "created").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	if err := s.CreateExecution(context.Background(), exec); err != nil {
		t.Fatalf("CreateExecution failed: %v", err)
	}
	if exec.Status != store.ExecutionStatusCreated {
		t.Errorf("got Status %q, want created", exec.Status)
	}
	if exec.ID == uuid.Nil {
		t.Error("expected generated ID")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetExecutionByID_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	id := uuid.New()
	systemID := uuid.New()
	jobID := "job-1"
	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	now := time.Now().Truncate(time.Second)
	logs := []byte(`[{"event":"dispatched","job_id":"job-1","at":"2026-01-01T00:00:00Z"}]`)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM system_executions WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(executionRowColumns).
			AddRow(id.String(), systemID.String(), []byte(`{}`), logs, "running", jobID, started, nil, now, now))
	mock.ExpectCommit()

	exec, err := s.GetExecutionByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetExecutionByID failed: %v", err)
	}
	if exec == nil {
		t.Fatal("expected execution, got nil")
	}
	if exec.Status != store.ExecutionStatusRunning {
		t.Errorf("got Status %q, want running", exec.Status)
	}
	if exec.DispatchJobID == nil || *exec.DispatchJobID != jobID {
		t.Errorf("got DispatchJobID %v, want %s", exec.DispatchJobID, jobID)
	}
	if exec.StartedAt == nil || !exec.StartedAt.Equal(started) {
		t.Errorf("got StartedAt %v, want %v", exec.StartedAt, started)
	}
	if exec.StoppedAt != nil {
		t.Errorf("expected nil StoppedAt, got %v", exec.StoppedAt)
	}
	if len(exec.Logs) != 1 || exec.Logs[0].Event != "dispatched" || exec.Logs[0].JobID != jobID {
		t.Errorf("unexpected logs %+v", exec.Logs)
	}
}

func TestGetExecutionByID_Absent(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM system_executions WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(executionRowColumns))
	mock.ExpectCommit()

	exec, err := s.GetExecutionByID(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec != nil {
		t.Errorf("expected nil, got %+v", exec)
	}
}

func TestTransitionExecution(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "row in expected state", affected: 1, want: true},
		{name: "row in another state", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			defer s.db.Close()

			id := uuid.New()

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE system_executions SET .* WHERE id = \$1 AND status = \$2`).
				WithArgs(id, "created", "running", "[]").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectCommit()

			changed, err := s.TransitionExecution(context.Background(), id,
				store.ExecutionStatusCreated, store.ExecutionStatusRunning, nil)
			if err != nil {
				t.Fatalf("TransitionExecution failed: %v", err)
			}
			if changed != tt.want {
				t.Errorf("got changed %v, want %v", changed, tt.want)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTransitionExecution_AppendsLogEntry(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	id := uuid.New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := &store.LogEntry{Event: "dispatch_failed", Message: "redis down", At: at}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE system_executions SET`).
		WithArgs(id, "running", "failed", `[{"event":"dispatch_failed","message":"redis down","at":"2026-01-02T03:04:05Z"}]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := s.TransitionExecution(context.Background(), id,
		store.ExecutionStatusRunning, store.ExecutionStatusFailed, entry)
	if err != nil {
		t.Fatalf("TransitionExecution failed: %v", err)
	}
	if !changed {
		t.Error("expected transition to apply")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTransitionExecution_RejectsBackwardMove(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	_, err := s.TransitionExecution(context.Background(), uuid.New(),
		store.ExecutionStatusCompleted, store.ExecutionStatusRunning, nil)
	if err == nil {
		t.Fatal("expected error for completed -> running")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no queries expected: %v", err)
	}
}

func TestAppendExecutionLog_RecordsJobID(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	id := uuid.New()
	jobID := "0b5c"
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE system_executions SET`).
		WithArgs(id, `[{"event":"dispatched","job_id":"0b5c","at":"2026-01-02T03:04:05Z"}]`, jobID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.AppendExecutionLog(context.Background(), id,
		store.LogEntry{Event: "dispatched", JobID: jobID, At: at}, &jobID)
	if err != nil {
		t.Fatalf("AppendExecutionLog failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestListStaleExecutions(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	cutoff := time.Now().Add(-time.Hour)
	id1, id2 := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM system_executions WHERE status = \$1 AND started_at < \$2`).
		WithArgs("running", cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id1.String()).AddRow(id2.String()))
	mock.ExpectCommit()

	ids, err := s.ListStaleExecutions(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ListStaleExecutions failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != id1 || ids[1] != id2 {
		t.Errorf("got %v, want [%v %v]", ids, id1, id2)
	}
}

func TestListExecutionsBySystem_QueryError(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	systemID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM system_executions WHERE system_id = \$1`).
		WithArgs(systemID).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.ListExecutionsBySystem(context.Background(), systemID)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
