package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"neco/internal/store"

	"github.com/google/uuid"
)

const userColumns = "id, email, username, role, avatar_url, created_at, updated_at"

func scanUser(row scanner) (*store.User, error) {
	var u store.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Role, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user profile. The ID must already be set to the
// identity provider's id. A duplicate email returns store.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	if user.Role == "" {
		user.Role = store.DefaultUserRole
	}

	query := `
		INSERT INTO users (id, email, username, role, avatar_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	return s.InTx(ctx, func(tx store.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			user.ID, user.Email, user.Username, user.Role, user.AvatarURL,
		).Scan(&user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", mapError(err))
		}
		return nil
	})
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getUser(ctx, "email = $1", email)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + where

	var user *store.User
	err := s.InTx(ctx, func(tx store.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, query, arg))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		user = u
		return nil
	})
	return user, err
}

func (s *Store) ListUsers(ctx context.Context) ([]store.User, error) {
	query := "SELECT " + userColumns + " FROM users ORDER BY created_at"

	var users []store.User
	err := s.InTx(ctx, func(tx store.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, *u)
		}
		return rows.Err()
	})
	return users, err
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, patch store.UserPatch) (*store.User, error) {
	query := `
		UPDATE users SET
			username = COALESCE($2, username),
			role = COALESCE($3, role),
			avatar_url = COALESCE($4, avatar_url),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	var user *store.User
	err := s.InTx(ctx, func(tx store.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, query, id, patch.Username, patch.Role, patch.AvatarURL))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		user = u
		return nil
	})
	return user, err
}

func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) (*store.User, error) {
	query := "DELETE FROM users WHERE id = $1 RETURNING " + userColumns

	var user *store.User
	err := s.InTx(ctx, func(tx store.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		user = u
		return nil
	})
	return user, err
}
