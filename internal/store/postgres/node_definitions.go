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

const nodeDefinitionColumns = "id, name, type, description, parameters, is_public, input_schema, output_schema, created_by, created_at, updated_at"

func scanNodeDefinition(row scanner) (*store.NodeDefinition, error) {
	var (
		d            store.NodeDefinition
		params       []byte
		outputSchema []byte
	)
	if err := row.Scan(
		&d.ID, &d.Name, &d.Type, &d.Description, &params, &d.IsPublic,
		&d.InputSchema, &outputSchema, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Parameters = json.RawMessage(params)
	d.OutputSchema = json.RawMessage(outputSchema)
	return &d, nil
}

func (s *Store) CreateNodeDefinition(ctx context.Context, def *store.NodeDefinition) error {
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	if len(def.Parameters) == 0 {
		def.Parameters = emptyObject
	}
	if len(def.OutputSchema) == 0 {
		def.OutputSchema = emptyObject
	}

	query := `
		INSERT INTO node_definitions (id, name, type, description, parameters, is_public, input_schema, output_schema, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	return s.InTx(ctx, func(tx store.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			def.ID, def.Name, def.Type, def.Description, string(def.Parameters),
			def.IsPublic, def.InputSchema, string(def.OutputSchema), def.CreatedBy,
		).Scan(&def.CreatedAt, &def.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create node definition: %w", mapError(err))
		}
		return nil
	})
}

func (s *Store) GetNodeDefinitionByID(ctx context.Context, id uuid.UUID) (*store.NodeDefinition, error) {
	query := "SELECT " + nodeDefinitionColumns + " FROM node_definitions WHERE id = $1"

	var def *store.NodeDefinition
	err := s.InTx(ctx, func(tx store.Tx) error {
		d, err := scanNodeDefinition(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get node definition %s: %w", id, err)
		}
		def = d
		return nil
	})
	return def, err
}

func (s *Store) ListNodeDefinitions(ctx context.Context) ([]store.NodeDefinition, error) {
	query := "SELECT " + nodeDefinitionColumns + " FROM node_definitions ORDER BY name"

	var defs []store.NodeDefinition
	err := s.InTx(ctx, func(tx store.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to list node definitions: %w", err)
		}
		defer rows.Close()

		defs = []store.NodeDefinition{}
		for rows.Next() {
			d, err := scanNodeDefinition(rows)
			if err != nil {
				return err
			}
			defs = append(defs, *d)
		}
		return rows.Err()
	})
	return defs, err
}
