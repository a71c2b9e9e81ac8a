package store

import (
	"context"
	"fmt"

	"github.com/haclabs/simcore/internal/sim"
)

// CompleteRun archives a run: inserts its history record and marks the run
// completed in one transaction. The history record is a denormalized copy
// with no live references, so later resets or deletions of the run leave it
// intact. The run itself keeps all events; completion is non-destructive.
func (s *Store) CompleteRun(ctx context.Context, rec sim.HistoryRecord) error {
	participants, err := marshalParticipants(rec.Participants)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	counts, err := marshalEventCounts(rec.EventCounts)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}

	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("complete run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history_records
		(id, run_id, name, original_name, started_at, completed_at, participants, event_counts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.RunID, rec.Name, rec.OriginalName,
		fmtTime(rec.StartedAt), fmtTime(rec.CompletedAt),
		participants, counts, fmtTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("complete run: insert history: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?
	`, string(sim.RunCompleted), fmtTime(rec.CompletedAt), fmtTime(rec.CompletedAt), rec.RunID)
	if err != nil {
		return fmt.Errorf("complete run: update run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("complete run: commit: %w", err)
	}

	return nil
}

// ListHistoryForRun returns every history record of a run, newest first.
// A run completed more than once has multiple records. Returns an empty
// slice (not nil) if the run has none.
func (s *Store) ListHistoryForRun(ctx context.Context, runID string) ([]sim.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, name, original_name, started_at, completed_at, participants, event_counts, created_at
		FROM history_records
		WHERE run_id = ?
		ORDER BY completed_at DESC, id DESC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query history records: %w", err)
	}
	defer rows.Close()

	records := []sim.HistoryRecord{}
	for rows.Next() {
		var rec sim.HistoryRecord
		var startedAt, completedAt, participants, counts, createdAt string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Name, &rec.OriginalName, &startedAt, &completedAt, &participants, &counts, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		if rec.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if rec.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if rec.Participants, err = unmarshalParticipants(participants); err != nil {
			return nil, err
		}
		if rec.EventCounts, err = unmarshalEventCounts(counts); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history records: %w", err)
	}

	return records, nil
}
