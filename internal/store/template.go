package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/haclabs/simcore/internal/sim"
)

// UpsertTemplate inserts a template or, if one with the same tenant and name
// already exists, replaces its editable fields and state. Snapshots are
// unaffected: they carry their own document copies.
//
// Returns the template ID (the existing one on update).
func (s *Store) UpsertTemplate(ctx context.Context, t sim.Template) (string, error) {
	stateJSON, _, err := sim.EncodeState(t.State)
	if err != nil {
		return "", fmt.Errorf("upsert template: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("upsert template: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM templates WHERE tenant_id = ? AND name = ?
	`, t.Tenant, t.Name).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO templates
			(id, tenant_id, name, description, specialty, difficulty, active, state, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			t.ID, t.Tenant, t.Name, t.Description, t.Specialty, t.Difficulty,
			boolToInt(t.Active), string(stateJSON), t.CreatedBy,
			fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt),
		)
		if err != nil {
			return "", fmt.Errorf("upsert template: insert: %w", err)
		}
		existingID = t.ID
	case err != nil:
		return "", fmt.Errorf("upsert template: lookup: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE templates
			SET description = ?, specialty = ?, difficulty = ?, active = ?, state = ?, updated_at = ?
			WHERE id = ?
		`,
			t.Description, t.Specialty, t.Difficulty, boolToInt(t.Active),
			string(stateJSON), fmtTime(t.UpdatedAt), existingID,
		)
		if err != nil {
			return "", fmt.Errorf("upsert template: update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("upsert template: commit: %w", err)
	}

	return existingID, nil
}

// GetTemplate retrieves a template by ID, scoped to a tenant.
// Returns sql.ErrNoRows if not found or owned by a different tenant.
func (s *Store) GetTemplate(ctx context.Context, tenant, id string) (sim.Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, description, specialty, difficulty, active, state, created_by, created_at, updated_at
		FROM templates
		WHERE id = ? AND tenant_id = ?
	`, id, tenant)

	return scanTemplate(row)
}

// GetTemplateByName retrieves a template by tenant and name.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetTemplateByName(ctx context.Context, tenant, name string) (sim.Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, description, specialty, difficulty, active, state, created_by, created_at, updated_at
		FROM templates
		WHERE tenant_id = ? AND name = ?
	`, tenant, name)

	return scanTemplate(row)
}

// ListTemplates returns all templates for a tenant ordered by name.
// Returns an empty slice (not nil) if the tenant has none.
func (s *Store) ListTemplates(ctx context.Context, tenant string) ([]sim.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, description, specialty, difficulty, active, state, created_by, created_at, updated_at
		FROM templates
		WHERE tenant_id = ?
		ORDER BY name ASC
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	templates := []sim.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	return templates, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row scanner) (sim.Template, error) {
	var t sim.Template
	var active int
	var stateJSON, createdAt, updatedAt string

	if err := row.Scan(
		&t.ID, &t.Tenant, &t.Name, &t.Description, &t.Specialty, &t.Difficulty,
		&active, &stateJSON, &t.CreatedBy, &createdAt, &updatedAt,
	); err != nil {
		return sim.Template{}, err
	}
	t.Active = active != 0

	state, err := sim.DecodeState([]byte(stateJSON), "")
	if err != nil {
		return sim.Template{}, fmt.Errorf("scan template: %w", err)
	}
	t.State = state

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return sim.Template{}, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return sim.Template{}, err
	}

	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
