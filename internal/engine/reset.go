package engine

import (
	"context"
	"fmt"

	"github.com/haclabs/simcore/internal/sim"
)

// ResetRun clears every event of a run while leaving its stable entities
// untouched, so printed wristbands and barcode labels keep working without
// reprinting.
//
// Mutual exclusion is a per-run in-process TryLock: a second reset arriving
// while one is in flight gets a concurrency conflict and should simply
// retry. Releasing happens on every return path; a failed reset never
// leaves the lock held.
//
// The delete pass, generation bump, and system audit note are one store
// transaction. A write racing the reset either commits before the sweep
// and is deleted, or commits after and carries the new generation; it can
// never be half-visible. On any failure nothing is deleted and the run is
// unchanged.
func (e *Engine) ResetRun(ctx context.Context, actor sim.Actor, runID string) (sim.ResetReport, error) {
	run, err := e.getRun(ctx, actor, runID)
	if err != nil {
		return sim.ResetReport{}, err
	}

	mu := e.resetLock(run.ID)
	if !mu.TryLock() {
		return sim.ResetReport{}, NewConcurrencyConflictError(run.ID, "another reset is in flight")
	}
	defer mu.Unlock()

	resetAt := e.times.Now()
	note := sim.NoteEvent{
		EventMeta: sim.EventMeta{
			ID:         e.ids.Generate(),
			RunID:      run.ID,
			ActorID:    actor.ID,
			RecordedAt: resetAt,
			Seq:        e.clock.Next(),
		},
		Kind:    sim.NoteSystem,
		Content: fmt.Sprintf("run reset by %s", actor.ID),
	}

	report, err := e.store.ResetRun(ctx, run.ID, note, resetAt)
	if err != nil {
		e.logger.Error("reset transaction rolled back",
			"run_id", run.ID,
			"err", err,
		)
		return sim.ResetReport{}, NewTransactionError(run.ID, "reset run", err)
	}

	e.logger.Info("run reset",
		"run_id", run.ID,
		"deleted_total", report.Total,
		"generation", report.Generation,
		"actor", actor.ID,
	)

	e.notifier.Publish(Notification{
		RunID:      run.ID,
		Kind:       NotifyRunReset,
		Generation: report.Generation,
		At:         resetAt,
	})

	return report, nil
}
