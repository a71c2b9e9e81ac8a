package store

import (
	"context"
	"fmt"
	"time"

	"github.com/haclabs/simcore/internal/sim"
)

// eventTables lists the four append-only stores swept by a reset.
var eventTables = []string{
	"vitals_events",
	"med_admin_events",
	"alert_ack_events",
	"note_events",
}

// ResetRun deletes every event of a run, bumps its generation, and appends a
// system note describing the reset, all in one transaction. Stable entities
// (run patients, barcode pool) are untouched.
//
// The system note is inserted under the new generation so it survives the
// sweep it describes. If any delete fails the whole transaction rolls back
// and the run is unchanged.
func (s *Store) ResetRun(ctx context.Context, runID string, note sim.NoteEvent, resetAt time.Time) (sim.ResetReport, error) {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return sim.ResetReport{}, fmt.Errorf("reset run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var deleted sim.EventCounts
	for _, table := range eventTables {
		if s.failDelete != nil {
			if err := s.failDelete(table); err != nil {
				return sim.ResetReport{}, fmt.Errorf("reset run: delete %s: %w", table, err)
			}
		}

		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE run_id = ?", table), runID)
		if err != nil {
			return sim.ResetReport{}, fmt.Errorf("reset run: delete %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return sim.ResetReport{}, fmt.Errorf("reset run: delete %s: rows affected: %w", table, err)
		}
		switch table {
		case "vitals_events":
			deleted.Vitals = n
		case "med_admin_events":
			deleted.MedAdmin = n
		case "alert_ack_events":
			deleted.AlertAck = n
		case "note_events":
			deleted.Notes = n
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE runs SET generation = generation + 1, updated_at = ? WHERE id = ?
	`, fmtTime(resetAt), runID)
	if err != nil {
		return sim.ResetReport{}, fmt.Errorf("reset run: bump generation: %w", err)
	}

	generation, err := runEpoch(ctx, tx, runID)
	if err != nil {
		return sim.ResetReport{}, fmt.Errorf("reset run: read generation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO note_events
		(id, run_id, generation, run_patient_id, kind, content, actor_id, recorded_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, note.ID, runID, generation, note.RunPatientID, string(sim.NoteSystem), note.Content, note.ActorID, fmtTime(note.RecordedAt), note.Seq)
	if err != nil {
		return sim.ResetReport{}, fmt.Errorf("reset run: insert reset note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return sim.ResetReport{}, fmt.Errorf("reset run: commit: %w", err)
	}

	return sim.ResetReport{
		RunID:      runID,
		Deleted:    deleted,
		Total:      deleted.Total(),
		Generation: generation,
		ResetAt:    resetAt.UTC(),
	}, nil
}
