package engine

import (
	"context"
	"fmt"

	"github.com/haclabs/simcore/internal/sim"
)

// statusTransitions enumerates the administrative moves. Completion is not
// here: it goes through CompleteRun so the history record and the status
// change stay atomic.
var statusTransitions = map[sim.RunStatus][]sim.RunStatus{
	sim.RunActive:    {sim.RunPaused, sim.RunArchived},
	sim.RunPaused:    {sim.RunActive, sim.RunArchived},
	sim.RunCompleted: {sim.RunActive, sim.RunArchived},
	sim.RunArchived:  {},
}

func transitionAllowed(from, to sim.RunStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PauseRun suspends event recording for a run.
func (e *Engine) PauseRun(ctx context.Context, actor sim.Actor, runID string) error {
	return e.transition(ctx, actor, runID, sim.RunPaused)
}

// ResumeRun reactivates a paused or completed run for another session.
func (e *Engine) ResumeRun(ctx context.Context, actor sim.Actor, runID string) error {
	return e.transition(ctx, actor, runID, sim.RunActive)
}

// ArchiveRun retires a run. Archived is terminal; the run and its stable
// entities remain queryable but accept no further operations.
func (e *Engine) ArchiveRun(ctx context.Context, actor sim.Actor, runID string) error {
	return e.transition(ctx, actor, runID, sim.RunArchived)
}

func (e *Engine) transition(ctx context.Context, actor sim.Actor, runID string, to sim.RunStatus) error {
	run, err := e.getRun(ctx, actor, runID)
	if err != nil {
		return err
	}
	if run.Status == to {
		return nil
	}
	if !transitionAllowed(run.Status, to) {
		return NewStatusConflictError(runID, string(run.Status), fmt.Sprintf("move to %s from", to))
	}

	now := e.times.Now()
	if err := e.store.SetRunStatus(ctx, runID, to, nil, now); err != nil {
		return fmt.Errorf("set run status: %w", err)
	}

	e.logger.Info("run status changed",
		"run_id", runID,
		"from", string(run.Status),
		"to", string(to),
		"actor", actor.ID,
	)

	e.notifier.Publish(Notification{
		RunID:      runID,
		Kind:       NotifyStatusChanged,
		Generation: run.Generation,
		At:         now,
	})

	return nil
}
