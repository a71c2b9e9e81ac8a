package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/haclabs/simcore/internal/sim"
)

// runEpoch reads a run's current generation inside tx. The caller's insert
// shares the transaction, so the stamped generation and the commit are one
// atomic unit: an event committing after a reset carries the post-reset
// generation and is not swept.
func runEpoch(ctx context.Context, tx *sql.Tx, runID string) (int64, error) {
	var generation int64
	err := tx.QueryRowContext(ctx, `
		SELECT generation FROM runs WHERE id = ?
	`, runID).Scan(&generation)
	if err != nil {
		return 0, err
	}
	return generation, nil
}

// InsertVitalsEvent appends a vitals event, stamping the run's current
// generation in the same transaction. Returns the stamped generation.
func (s *Store) InsertVitalsEvent(ctx context.Context, ev sim.VitalsEvent) (int64, error) {
	payload, err := marshalVitals(ev.Vitals)
	if err != nil {
		return 0, fmt.Errorf("insert vitals event: %w", err)
	}

	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert vitals event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	generation, err := runEpoch(ctx, tx, ev.RunID)
	if err != nil {
		return 0, fmt.Errorf("insert vitals event: read generation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vitals_events
		(id, run_id, generation, run_patient_id, vitals, actor_id, recorded_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.RunID, generation, ev.RunPatientID, payload, ev.ActorID, fmtTime(ev.RecordedAt), ev.Seq)
	if err != nil {
		return 0, fmt.Errorf("insert vitals event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert vitals event: commit: %w", err)
	}

	return generation, nil
}

// InsertMedAdminEvent appends a medication administration event.
// Returns the stamped generation.
func (s *Store) InsertMedAdminEvent(ctx context.Context, ev sim.MedAdminEvent) (int64, error) {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert med admin event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	generation, err := runEpoch(ctx, tx, ev.RunID)
	if err != nil {
		return 0, fmt.Errorf("insert med admin event: read generation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO med_admin_events
		(id, run_id, generation, barcode_id, dose_ucg, route, notes, actor_id, recorded_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.RunID, generation, ev.BarcodeID, ev.DoseUCG, ev.Route, ev.Notes, ev.ActorID, fmtTime(ev.RecordedAt), ev.Seq)
	if err != nil {
		return 0, fmt.Errorf("insert med admin event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert med admin event: commit: %w", err)
	}

	return generation, nil
}

// InsertAlertAckEvent appends an alert acknowledgment event.
// Returns the stamped generation.
func (s *Store) InsertAlertAckEvent(ctx context.Context, ev sim.AlertAckEvent) (int64, error) {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert alert ack event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	generation, err := runEpoch(ctx, tx, ev.RunID)
	if err != nil {
		return 0, fmt.Errorf("insert alert ack event: read generation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO alert_ack_events
		(id, run_id, generation, alert_ref, notes, actor_id, recorded_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.RunID, generation, ev.AlertRef, ev.Notes, ev.ActorID, fmtTime(ev.RecordedAt), ev.Seq)
	if err != nil {
		return 0, fmt.Errorf("insert alert ack event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert alert ack event: commit: %w", err)
	}

	return generation, nil
}

// InsertNoteEvent appends a note event. Returns the stamped generation.
func (s *Store) InsertNoteEvent(ctx context.Context, ev sim.NoteEvent) (int64, error) {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert note event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	generation, err := runEpoch(ctx, tx, ev.RunID)
	if err != nil {
		return 0, fmt.Errorf("insert note event: read generation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO note_events
		(id, run_id, generation, run_patient_id, kind, content, actor_id, recorded_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.RunID, generation, ev.RunPatientID, string(ev.Kind), ev.Content, ev.ActorID, fmtTime(ev.RecordedAt), ev.Seq)
	if err != nil {
		return 0, fmt.Errorf("insert note event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert note event: commit: %w", err)
	}

	return generation, nil
}

// VitalsEvents returns a run's vitals events in deterministic order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) VitalsEvents(ctx context.Context, runID string) ([]sim.VitalsEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, generation, run_patient_id, vitals, actor_id, recorded_at, seq
		FROM vitals_events
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query vitals events: %w", err)
	}
	defer rows.Close()

	events := []sim.VitalsEvent{}
	for rows.Next() {
		var ev sim.VitalsEvent
		var payload, recordedAt string
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Generation, &ev.RunPatientID, &payload, &ev.ActorID, &recordedAt, &ev.Seq); err != nil {
			return nil, fmt.Errorf("scan vitals event: %w", err)
		}
		if ev.Vitals, err = unmarshalVitals(payload); err != nil {
			return nil, err
		}
		if ev.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vitals events: %w", err)
	}

	return events, nil
}

// MedAdminEvents returns a run's medication administration events in
// deterministic order. Returns an empty slice (not nil) if there are none.
func (s *Store) MedAdminEvents(ctx context.Context, runID string) ([]sim.MedAdminEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, generation, barcode_id, dose_ucg, route, notes, actor_id, recorded_at, seq
		FROM med_admin_events
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query med admin events: %w", err)
	}
	defer rows.Close()

	events := []sim.MedAdminEvent{}
	for rows.Next() {
		var ev sim.MedAdminEvent
		var recordedAt string
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Generation, &ev.BarcodeID, &ev.DoseUCG, &ev.Route, &ev.Notes, &ev.ActorID, &recordedAt, &ev.Seq); err != nil {
			return nil, fmt.Errorf("scan med admin event: %w", err)
		}
		if ev.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate med admin events: %w", err)
	}

	return events, nil
}

// AlertAckEvents returns a run's alert acknowledgment events in deterministic
// order. Returns an empty slice (not nil) if there are none.
func (s *Store) AlertAckEvents(ctx context.Context, runID string) ([]sim.AlertAckEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, generation, alert_ref, notes, actor_id, recorded_at, seq
		FROM alert_ack_events
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query alert ack events: %w", err)
	}
	defer rows.Close()

	events := []sim.AlertAckEvent{}
	for rows.Next() {
		var ev sim.AlertAckEvent
		var recordedAt string
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Generation, &ev.AlertRef, &ev.Notes, &ev.ActorID, &recordedAt, &ev.Seq); err != nil {
			return nil, fmt.Errorf("scan alert ack event: %w", err)
		}
		if ev.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert ack events: %w", err)
	}

	return events, nil
}

// NoteEvents returns a run's note events in deterministic order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) NoteEvents(ctx context.Context, runID string) ([]sim.NoteEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, generation, run_patient_id, kind, content, actor_id, recorded_at, seq
		FROM note_events
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query note events: %w", err)
	}
	defer rows.Close()

	events := []sim.NoteEvent{}
	for rows.Next() {
		var ev sim.NoteEvent
		var kind, recordedAt string
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Generation, &ev.RunPatientID, &kind, &ev.Content, &ev.ActorID, &recordedAt, &ev.Seq); err != nil {
			return nil, fmt.Errorf("scan note event: %w", err)
		}
		ev.Kind = sim.NoteKind(kind)
		if ev.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note events: %w", err)
	}

	return events, nil
}

// CountEvents returns per-store event totals for a run.
func (s *Store) CountEvents(ctx context.Context, runID string) (sim.EventCounts, error) {
	var counts sim.EventCounts
	for _, q := range []struct {
		table string
		dst   *int64
	}{
		{"vitals_events", &counts.Vitals},
		{"med_admin_events", &counts.MedAdmin},
		{"alert_ack_events", &counts.AlertAck},
		{"note_events", &counts.Notes},
	} {
		err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE run_id = ?", q.table), runID,
		).Scan(q.dst)
		if err != nil {
			return sim.EventCounts{}, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return counts, nil
}

// MaxSeq returns the highest seq stamped on any event across all runs, or
// zero when the database holds no events. Callers reopening a database
// resume the logical clock from this value so new events never reuse a seq.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	const query = `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM vitals_events
			UNION ALL SELECT seq FROM med_admin_events
			UNION ALL SELECT seq FROM alert_ack_events
			UNION ALL SELECT seq FROM note_events
		)`

	var max int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return max, nil
}
