package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"neco/internal/store"

	"github.com/google/uuid"
)

const workspaceColumns = "id, name, description, status, systems_count, user_id, created_at, updated_at"

// sortableWorkspaceColumns whitelists the ORDER BY targets for search.
var sortableWorkspaceColumns = map[string]bool{
	"name":          true,
	"status":        true,
	"created_at":    true,
	"updated_at":    true,
	"systems_count": true,
}

// IsSortableWorkspaceColumn reports whether field may be used to sort a search.
func IsSortableWorkspaceColumn(field string) bool {
	return sortableWorkspaceColumns[field]
}

func scanWorkspace(row scanner) (*store.Workspace, error) {
	var w store.Workspace
	if err := row.Scan(
		&w.ID, &w.Name, &w.Description, &w.Status,
		&w.SystemsCount, &w.UserID, &w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Store) CreateWorkspace(ctx context.Context, workspace *store.Workspace) error {
	if workspace.ID == uuid.Nil {
		workspace.ID = uuid.New()
	}
	if workspace.Status == "" {
		workspace.Status = store.WorkspaceStatusActive
	}

	query := `
		INSERT INTO workspaces (id, name, description, status, systems_count, user_id)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING systems_count, created_at, updated_at
	`

	return s.InTx(ctx, func(tx store.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			workspace.ID, workspace.Name, workspace.Description, workspace.Status, workspace.UserID,
		).Scan(&workspace.SystemsCount, &workspace.CreatedAt, &workspace.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create workspace: %w", mapError(err))
		}
		return nil
	})
}

func (s *Store) GetWorkspaceByID(ctx context.Context, id uuid.UUID) (*store.Workspace, error) {
	query := "SELECT " + workspaceColumns + " FROM workspaces WHERE id = $1"

	var workspace *store.Workspace
	err := s.InTx(ctx, func(tx store.Tx) error {
		w, err := scanWorkspace(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get workspace %s: %w", id, err)
		}
		workspace = w
		return nil
	})
	return workspace, err
}

func (s *Store) ListWorkspaces(ctx context.Context) ([]store.Workspace, error) {
	query := "SELECT " + workspaceColumns + " FROM workspaces ORDER BY created_at"

	var workspaces []store.Workspace
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		workspaces, err = queryWorkspaces(ctx, tx, query)
		return err
	})
	return workspaces, err
}

// ListWorkspacesByUser returns one page of the user's workspaces and the
// total number the user owns.
func (s *Store) ListWorkspacesByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]store.Workspace, int, error) {
	return s.SearchWorkspaces(ctx, store.WorkspaceSearch{
		UserID:    userID,
		SortField: "created_at",
		Offset:    offset,
		Limit:     limit,
	})
}

// SearchWorkspaces filters the user's workspaces. Name is matched as a
// case-insensitive substring and status exactly. Results are sorted only
// when SortField names a sortable column.
func (s *Store) SearchWorkspaces(ctx context.Context, search store.WorkspaceSearch) ([]store.Workspace, int, error) {
	where := []string{"user_id = $1"}
	args := []any{search.UserID}

	if search.Name != "" {
		args = append(args, "%"+escapeLike(search.Name)+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if search.Status != "" {
		args = append(args, search.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	filter := " WHERE " + strings.Join(where, " AND ")
	countQuery := "SELECT COUNT(*) FROM workspaces" + filter

	query := "SELECT " + workspaceColumns + " FROM workspaces" + filter
	if sortableWorkspaceColumns[search.SortField] {
		order := "ASC"
		if strings.EqualFold(search.SortOrder, "desc") {
			order = "DESC"
		}
		query += " ORDER BY " + search.SortField + " " + order
	}

	pageArgs := args
	if search.Limit > 0 {
		pageArgs = append(pageArgs, search.Limit, search.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(pageArgs)-1, len(pageArgs))
	}

	var (
		workspaces []store.Workspace
		total      int
	)
	err := s.InTx(ctx, func(tx store.Tx) error {
		if err := tx.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count workspaces: %w", err)
		}

		var err error
		workspaces, err = queryWorkspaces(ctx, tx, query, pageArgs...)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return workspaces, total, nil
}

func (s *Store) UpdateWorkspace(ctx context.Context, id uuid.UUID, patch store.WorkspacePatch) (*store.Workspace, error) {
	query := `
		UPDATE workspaces SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			status = COALESCE($4, status),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + workspaceColumns

	var workspace *store.Workspace
	err := s.InTx(ctx, func(tx store.Tx) error {
		w, err := scanWorkspace(tx.QueryRowContext(ctx, query, id, patch.Name, patch.Description, patch.Status))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to update workspace %s: %w", id, err)
		}
		workspace = w
		return nil
	})
	return workspace, err
}

// DeleteWorkspace removes the workspace row only. Its systems are left in place.
func (s *Store) DeleteWorkspace(ctx context.Context, id uuid.UUID) (*store.Workspace, error) {
	query := "DELETE FROM workspaces WHERE id = $1 RETURNING " + workspaceColumns

	var workspace *store.Workspace
	err := s.InTx(ctx, func(tx store.Tx) error {
		w, err := scanWorkspace(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to delete workspace %s: %w", id, err)
		}
		workspace = w
		return nil
	})
	return workspace, err
}

func queryWorkspaces(ctx context.Context, tx store.DBTransaction, query string, args ...any) ([]store.Workspace, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workspaces: %w", err)
	}
	defer rows.Close()

	workspaces := []store.Workspace{}
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		workspaces = append(workspaces, *w)
	}
	return workspaces, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
