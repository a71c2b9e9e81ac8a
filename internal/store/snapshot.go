package store

import (
	"context"
	"fmt"

	"github.com/haclabs/simcore/internal/sim"
)

// InsertSnapshot persists a snapshot, assigning the next version number for
// its template inside the insert transaction. Versions start at 1 and are
// strictly increasing per template; the UNIQUE(template_id, version)
// constraint makes duplicates impossible even under concurrent creation.
//
// Returns the snapshot with its assigned version.
func (s *Store) InsertSnapshot(ctx context.Context, snap sim.Snapshot) (sim.Snapshot, error) {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return sim.Snapshot{}, fmt.Errorf("insert snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var version int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE template_id = ?
	`, snap.TemplateID).Scan(&version)
	if err != nil {
		return sim.Snapshot{}, fmt.Errorf("insert snapshot: next version: %w", err)
	}
	snap.Version = version

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(id, template_id, version, name, description, document, doc_hash, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.ID, snap.TemplateID, snap.Version, snap.Name, snap.Description,
		string(snap.Document), snap.DocHash, snap.CreatedBy, fmtTime(snap.CreatedAt),
	)
	if err != nil {
		return sim.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return sim.Snapshot{}, fmt.Errorf("insert snapshot: commit: %w", err)
	}

	return snap, nil
}

// GetSnapshot retrieves a snapshot by ID, scoped to a tenant via its
// template. Returns sql.ErrNoRows if not found or inaccessible.
func (s *Store) GetSnapshot(ctx context.Context, tenant, id string) (sim.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sn.id, sn.template_id, sn.version, sn.name, sn.description,
		       sn.document, sn.doc_hash, sn.created_by, sn.created_at
		FROM snapshots sn
		JOIN templates t ON sn.template_id = t.id
		WHERE sn.id = ? AND t.tenant_id = ?
	`, id, tenant)

	return scanSnapshot(row)
}

// ListSnapshots returns all snapshots of a template, newest version first.
// Returns an empty slice (not nil) if the template has none.
func (s *Store) ListSnapshots(ctx context.Context, tenant, templateID string) ([]sim.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sn.id, sn.template_id, sn.version, sn.name, sn.description,
		       sn.document, sn.doc_hash, sn.created_by, sn.created_at
		FROM snapshots sn
		JOIN templates t ON sn.template_id = t.id
		WHERE sn.template_id = ? AND t.tenant_id = ?
		ORDER BY sn.version DESC
	`, templateID, tenant)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []sim.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snaps, nil
}

func scanSnapshot(row scanner) (sim.Snapshot, error) {
	var snap sim.Snapshot
	var document, createdAt string

	if err := row.Scan(
		&snap.ID, &snap.TemplateID, &snap.Version, &snap.Name, &snap.Description,
		&document, &snap.DocHash, &snap.CreatedBy, &createdAt,
	); err != nil {
		return sim.Snapshot{}, err
	}
	snap.Document = []byte(document)

	var err error
	if snap.CreatedAt, err = parseTime(createdAt); err != nil {
		return sim.Snapshot{}, err
	}

	return snap, nil
}
