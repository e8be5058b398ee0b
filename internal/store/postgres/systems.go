package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"neco/internal/store"

	"github.com/google/uuid"
)

const systemColumns = "id, name, description, status, global_config, nodes_count, workspace_id, created_at, updated_at"

var emptyObject = json.RawMessage(`{}`)

func scanSystem(row scanner) (*store.System, error) {
	var sys store.System
	var config []byte
	if err := row.Scan(
		&sys.ID, &sys.Name, &sys.Description, &sys.Status, &config,
		&sys.NodesCount, &sys.WorkspaceID, &sys.CreatedAt, &sys.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sys.GlobalConfig = json.RawMessage(config)
	return &sys, nil
}

// CreateSystem inserts the system and increments systems_count on its
// workspace in the same transaction.
func (s *Store) CreateSystem(ctx context.Context, system *store.System) error {
	if system.ID == uuid.Nil {
		system.ID = uuid.New()
	}
	if system.Status == "" {
		system.Status = store.SystemStatusInactive
	}
	if len(system.GlobalConfig) == 0 {
		system.GlobalConfig = emptyObject
	}

	insert := `
		INSERT INTO systems (id, name, description, status, global_config, nodes_count, workspace_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	bump := `UPDATE workspaces SET systems_count = systems_count + 1, updated_at = NOW() WHERE id = $1`

	return s.InTx(ctx, func(tx store.Tx) error {
		err := tx.QueryRowContext(ctx, insert,
			system.ID, system.Name, system.Description, system.Status,
			string(system.GlobalConfig), system.NodesCount, system.WorkspaceID,
		).Scan(&system.CreatedAt, &system.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create system: %w", mapError(err))
		}

		res, err := tx.ExecContext(ctx, bump, system.WorkspaceID)
		if err != nil {
			return fmt.Errorf("failed to update systems_count: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("workspace %s vanished while creating system", system.WorkspaceID)
		}
		return nil
	})
}

func (s *Store) GetSystemByID(ctx context.Context, id uuid.UUID) (*store.System, error) {
	query := "SELECT " + systemColumns + " FROM systems WHERE id = $1"

	var system *store.System
	err := s.InTx(ctx, func(tx store.Tx) error {
		sys, err := scanSystem(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get system %s: %w", id, err)
		}
		system = sys
		return nil
	})
	return system, err
}

func (s *Store) ListSystems(ctx context.Context) ([]store.System, error) {
	query := "SELECT " + systemColumns + " FROM systems ORDER BY created_at"

	var systems []store.System
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		systems, err = querySystems(ctx, tx, query)
		return err
	})
	return systems, err
}

func (s *Store) ListSystemsByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]store.System, error) {
	query := "SELECT " + systemColumns + " FROM systems WHERE workspace_id = $1 ORDER BY created_at"

	var systems []store.System
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		systems, err = querySystems(ctx, tx, query, workspaceID)
		return err
	})
	return systems, err
}

func (s *Store) UpdateSystem(ctx context.Context, id uuid.UUID, patch store.SystemPatch) (*store.System, error) {
	query := `
		UPDATE systems SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			status = COALESCE($4, status),
			global_config = COALESCE($5, global_config),
			nodes_count = COALESCE($6, nodes_count),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + systemColumns

	var config any
	if len(patch.GlobalConfig) > 0 {
		config = string(patch.GlobalConfig)
	}

	var system *store.System
	err := s.InTx(ctx, func(tx store.Tx) error {
		sys, err := scanSystem(tx.QueryRowContext(ctx, query,
			id, patch.Name, patch.Description, patch.Status, config, patch.NodesCount,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to update system %s: %w", id, err)
		}
		system = sys
		return nil
	})
	return system, err
}

// DeleteSystem removes the system and decrements its workspace counter when
// the workspace still exists.
func (s *Store) DeleteSystem(ctx context.Context, id uuid.UUID) (*store.System, error) {
	query := "DELETE FROM systems WHERE id = $1 RETURNING " + systemColumns
	drop := `UPDATE workspaces SET systems_count = GREATEST(systems_count - 1, 0), updated_at = NOW() WHERE id = $1`

	var system *store.System
	err := s.InTx(ctx, func(tx store.Tx) error {
		sys, err := scanSystem(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to delete system %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, drop, sys.WorkspaceID); err != nil {
			return fmt.Errorf("failed to update systems_count: %w", err)
		}
		system = sys
		return nil
	})
	return system, err
}

func querySystems(ctx context.Context, tx store.DBTransaction, query string, args ...any) ([]store.System, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query systems: %w", err)
	}
	defer rows.Close()

	systems := []store.System{}
	for rows.Next() {
		sys, err := scanSystem(rows)
		if err != nil {
			return nil, err
		}
		systems = append(systems, *sys)
	}
	return systems, rows.Err()
}
