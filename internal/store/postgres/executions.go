package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"neco/internal/store"

	"github.com/google/uuid"
)

const executionColumns = "id, system_id, system_json, logs, status, dispatch_job_id, started_at, stopped_at, created_at, updated_at"

func scanExecution(row scanner) (*store.Execution, error) {
	var (
		e        store.Execution
		snapshot []byte
		logs     []byte
	)
	if err := row.Scan(
		&e.ID, &e.SystemID, &snapshot, &logs, &e.Status, &e.DispatchJobID,
		&e.StartedAt, &e.StoppedAt, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.SystemJSON = json.RawMessage(snapshot)
	e.Logs = []store.LogEntry{}
	if len(logs) > 0 {
		if err := json.Unmarshal(logs, &e.Logs); err != nil {
			return nil, fmt.Errorf("failed to decode logs of execution %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

func (s *Store) CreateExecution(ctx context.Context, execution *store.Execution) error {
	if execution.ID == uuid.Nil {
		execution.ID = uuid.New()
	}
	if execution.Status == "" {
		execution.Status = store.ExecutionStatusCreated
	}
	if len(execution.SystemJSON) == 0 {
		execution.SystemJSON = emptyObject
	}
	if execution.Logs == nil {
		execution.Logs = []store.LogEntry{}
	}

	logs, err := json.Marshal(execution.Logs)
	if err != nil {
		return fmt.Errorf("failed to encode execution logs: %w", err)
	}

	query := `
		INSERT INTO system_executions (id, system_id, system_json, logs, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	return s.InTx(ctx, func(tx store.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			execution.ID, execution.SystemID, string(execution.SystemJSON), string(logs), execution.Status,
		).Scan(&execution.CreatedAt, &execution.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create execution: %w", mapError(err))
		}
		return nil
	})
}

func (s *Store) GetExecutionByID(ctx context.Context, id uuid.UUID) (*store.Execution, error) {
	query := "SELECT " + executionColumns + " FROM system_executions WHERE id = $1"

	var execution *store.Execution
	err := s.InTx(ctx, func(tx store.Tx) error {
		e, err := scanExecution(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get execution %s: %w", id, err)
		}
		execution = e
		return nil
	})
	return execution, err
}

func (s *Store) ListExecutions(ctx context.Context) ([]store.Execution, error) {
	query := "SELECT " + executionColumns + " FROM system_executions ORDER BY created_at"

	var executions []store.Execution
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		executions, err = queryExecutions(ctx, tx, query)
		return err
	})
	return executions, err
}

func (s *Store) ListExecutionsBySystem(ctx context.Context, systemID uuid.UUID) ([]store.Execution, error) {
	query := "SELECT " + executionColumns + " FROM system_executions WHERE system_id = $1 ORDER BY created_at DESC"

	var executions []store.Execution
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		executions, err = queryExecutions(ctx, tx, query, systemID)
		return err
	})
	return executions, err
}

func (s *Store) UpdateExecution(ctx context.Context, id uuid.UUID, patch store.ExecutionPatch) (*store.Execution, error) {
	query := `
		UPDATE system_executions SET
			system_json = COALESCE($2, system_json),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + executionColumns

	var snapshot any
	if len(patch.SystemJSON) > 0 {
		snapshot = string(patch.SystemJSON)
	}

	var execution *store.Execution
	err := s.InTx(ctx, func(tx store.Tx) error {
		e, err := scanExecution(tx.QueryRowContext(ctx, query, id, snapshot))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to update execution %s: %w", id, err)
		}
		execution = e
		return nil
	})
	return execution, err
}

func (s *Store) DeleteExecution(ctx context.Context, id uuid.UUID) (*store.Execution, error) {
	query := "DELETE FROM system_executions WHERE id = $1 RETURNING " + executionColumns

	var execution *store.Execution
	err := s.InTx(ctx, func(tx store.Tx) error {
		e, err := scanExecution(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to delete execution %s: %w", id, err)
		}
		execution = e
		return nil
	})
	return execution, err
}

// TransitionExecution is a compare-and-set on status. started_at is stamped
// when entering running and stopped_at when entering a terminal state.
// Concurrent callers racing on the same `from` see exactly one success.
func (s *Store) TransitionExecution(ctx context.Context, id uuid.UUID, from, to store.ExecutionStatus, entry *store.LogEntry) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("invalid execution transition %s -> %s", from, to)
	}

	appended := "[]"
	if entry != nil {
		b, err := json.Marshal([]store.LogEntry{*entry})
		if err != nil {
			return false, fmt.Errorf("failed to encode log entry: %w", err)
		}
		appended = string(b)
	}

	query := `
		UPDATE system_executions SET
			status = $3,
			started_at = CASE WHEN $3 = 'running' THEN NOW() ELSE started_at END,
			stopped_at = CASE WHEN $3 IN ('completed', 'failed') THEN NOW() ELSE stopped_at END,
			logs = logs || $4::jsonb,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	var changed bool
	err := s.InTx(ctx, func(tx store.Tx) error {
		res, err := tx.ExecContext(ctx, query, id, string(from), string(to), appended)
		if err != nil {
			return fmt.Errorf("failed to transition execution %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		changed = n == 1
		return nil
	})
	return changed, err
}

func (s *Store) AppendExecutionLog(ctx context.Context, id uuid.UUID, entry store.LogEntry, jobID *string) error {
	b, err := json.Marshal([]store.LogEntry{entry})
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}

	query := `
		UPDATE system_executions SET
			logs = logs || $2::jsonb,
			dispatch_job_id = COALESCE($3, dispatch_job_id),
			updated_at = NOW()
		WHERE id = $1
	`

	return s.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.ExecContext(ctx, query, id, string(b), jobID); err != nil {
			return fmt.Errorf("failed to append log to execution %s: %w", id, err)
		}
		return nil
	})
}

func (s *Store) ListStaleExecutions(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	query := `SELECT id FROM system_executions WHERE status = $1 AND started_at < $2 ORDER BY started_at`

	var ids []uuid.UUID
	err := s.InTx(ctx, func(tx store.Tx) error {
		rows, err := tx.QueryContext(ctx, query, string(store.ExecutionStatusRunning), cutoff)
		if err != nil {
			return fmt.Errorf("failed to list stale executions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

func queryExecutions(ctx context.Context, tx store.DBTransaction, query string, args ...any) ([]store.Execution, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	executions := []store.Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return executions, rows.Err()
}
