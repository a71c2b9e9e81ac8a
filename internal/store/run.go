package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/haclabs/simcore/internal/sim"
)

// CreateRun persists a run together with its stable entities in one
// transaction. Either the run, every run patient, and every barcode entry
// exist afterwards, or nothing does. Partial runs must not exist.
func (s *Store) CreateRun(ctx context.Context, run sim.Run, patients []sim.RunPatient, barcodes []sim.BarcodeEntry) error {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("create run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, snapshot_id, template_id, tenant_id, name, status, generation, created_by, started_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
	`,
		run.ID, run.SnapshotID, run.TemplateID, run.Tenant, run.Name,
		string(run.Status), run.Generation, run.CreatedBy,
		fmtTime(run.StartedAt), fmtTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create run: insert run: %w", err)
	}

	for _, p := range patients {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_patients
			(id, run_id, source_key, printed_id, display_name, document)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.ID, p.RunID, p.SourceKey, p.PrintedID, p.DisplayName, string(p.Document))
		if err != nil {
			return fmt.Errorf("create run: insert patient %q: %w", p.SourceKey, err)
		}
	}

	for _, b := range barcodes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO barcode_pool
			(id, run_id, source_key, barcode, medication, document)
			VALUES (?, ?, ?, ?, ?, ?)
		`, b.ID, b.RunID, b.SourceKey, b.Barcode, b.Medication, string(b.Document))
		if err != nil {
			return fmt.Errorf("create run: insert barcode %q: %w", b.SourceKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create run: commit: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID, scoped to a tenant.
// Returns sql.ErrNoRows if not found or owned by a different tenant.
func (s *Store) GetRun(ctx context.Context, tenant, id string) (sim.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, snapshot_id, template_id, tenant_id, name, status, generation,
		       created_by, started_at, completed_at, updated_at
		FROM runs
		WHERE id = ? AND tenant_id = ?
	`, id, tenant)

	return scanRun(row)
}

// LatestRunForTemplate returns the most recently started run of a template
// within a tenant. Used by the opt-in identifier-reuse launch path.
// Returns sql.ErrNoRows if the template has no runs.
func (s *Store) LatestRunForTemplate(ctx context.Context, tenant, templateID string) (sim.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, snapshot_id, template_id, tenant_id, name, status, generation,
		       created_by, started_at, completed_at, updated_at
		FROM runs
		WHERE template_id = ? AND tenant_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`, templateID, tenant)

	return scanRun(row)
}

// SetRunStatus updates a run's status and, for completions, its completion
// time. updated_at is always touched.
func (s *Store) SetRunStatus(ctx context.Context, runID string, status sim.RunStatus, completedAt *time.Time, updatedAt time.Time) error {
	var res sql.Result
	var err error
	if completedAt != nil {
		res, err = s.db.ExecContext(ctx, `
			UPDATE runs SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?
		`, string(status), fmtTime(*completedAt), fmtTime(updatedAt), runID)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE runs SET status = ?, updated_at = ? WHERE id = ?
		`, string(status), fmtTime(updatedAt), runID)
	}
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set run status: rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// RunPatients returns a run's stable patient rows ordered by source key.
// Returns an empty slice (not nil) if the run has none.
func (s *Store) RunPatients(ctx context.Context, runID string) ([]sim.RunPatient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, source_key, printed_id, display_name, document
		FROM run_patients
		WHERE run_id = ?
		ORDER BY source_key ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run patients: %w", err)
	}
	defer rows.Close()

	patients := []sim.RunPatient{}
	for rows.Next() {
		var p sim.RunPatient
		var document string
		if err := rows.Scan(&p.ID, &p.RunID, &p.SourceKey, &p.PrintedID, &p.DisplayName, &document); err != nil {
			return nil, fmt.Errorf("scan run patient: %w", err)
		}
		p.Document = []byte(document)
		patients = append(patients, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run patients: %w", err)
	}

	return patients, nil
}

// GetRunPatient retrieves one stable patient row by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetRunPatient(ctx context.Context, id string) (sim.RunPatient, error) {
	var p sim.RunPatient
	var document string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, source_key, printed_id, display_name, document
		FROM run_patients
		WHERE id = ?
	`, id).Scan(&p.ID, &p.RunID, &p.SourceKey, &p.PrintedID, &p.DisplayName, &document)
	if err != nil {
		return sim.RunPatient{}, err
	}
	p.Document = []byte(document)
	return p, nil
}

// BarcodeEntries returns a run's barcode pool ordered by source key.
// Returns an empty slice (not nil) if the run has none.
func (s *Store) BarcodeEntries(ctx context.Context, runID string) ([]sim.BarcodeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, source_key, barcode, medication, document
		FROM barcode_pool
		WHERE run_id = ?
		ORDER BY source_key ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query barcode pool: %w", err)
	}
	defer rows.Close()

	entries := []sim.BarcodeEntry{}
	for rows.Next() {
		var b sim.BarcodeEntry
		var document string
		if err := rows.Scan(&b.ID, &b.RunID, &b.SourceKey, &b.Barcode, &b.Medication, &document); err != nil {
			return nil, fmt.Errorf("scan barcode entry: %w", err)
		}
		b.Document = []byte(document)
		entries = append(entries, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate barcode pool: %w", err)
	}

	return entries, nil
}

// GetBarcodeEntry resolves a scanned barcode within a run.
// Returns sql.ErrNoRows if the barcode was never issued for this run.
func (s *Store) GetBarcodeEntry(ctx context.Context, runID, barcode string) (sim.BarcodeEntry, error) {
	var b sim.BarcodeEntry
	var document string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, source_key, barcode, medication, document
		FROM barcode_pool
		WHERE run_id = ? AND barcode = ?
	`, runID, barcode).Scan(&b.ID, &b.RunID, &b.SourceKey, &b.Barcode, &b.Medication, &document)
	if err != nil {
		return sim.BarcodeEntry{}, err
	}
	b.Document = []byte(document)
	return b, nil
}

func scanRun(row scanner) (sim.Run, error) {
	var run sim.Run
	var status, startedAt, updatedAt string
	var completedAt sql.NullString

	if err := row.Scan(
		&run.ID, &run.SnapshotID, &run.TemplateID, &run.Tenant, &run.Name,
		&status, &run.Generation, &run.CreatedBy, &startedAt, &completedAt, &updatedAt,
	); err != nil {
		return sim.Run{}, err
	}
	run.Status = sim.RunStatus(status)

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return sim.Run{}, err
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return sim.Run{}, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return sim.Run{}, err
		}
		run.CompletedAt = &t
	}

	return run, nil
}
