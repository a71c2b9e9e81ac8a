package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/haclabs/simcore/internal/sim"
)

// CompleteRun archives a run: builds the participant roster from the event
// log, writes an independent history record, and marks the run completed.
// The run and its stable entities stay in place; a completed run may still
// be reset and reused. Completing again later produces another history
// record with a new timestamped name.
func (e *Engine) CompleteRun(ctx context.Context, actor sim.Actor, runID string) (sim.HistoryRecord, error) {
	run, err := e.getRun(ctx, actor, runID)
	if err != nil {
		return sim.HistoryRecord{}, err
	}
	if run.Status == sim.RunArchived {
		return sim.HistoryRecord{}, NewStatusConflictError(runID, string(run.Status), "complete")
	}

	participants, counts, err := e.participantRoster(ctx, run.ID)
	if err != nil {
		return sim.HistoryRecord{}, fmt.Errorf("complete run: %w", err)
	}

	completedAt := e.times.Now()
	rec := sim.HistoryRecord{
		ID:           e.ids.Generate(),
		RunID:        run.ID,
		Name:         fmt.Sprintf("%s - %s", run.Name, completedAt.UTC().Format(time.RFC3339Nano)),
		OriginalName: run.Name,
		StartedAt:    run.StartedAt,
		CompletedAt:  completedAt,
		Participants: participants,
		EventCounts:  counts,
		CreatedAt:    completedAt,
	}

	if err := e.store.CompleteRun(ctx, rec); err != nil {
		e.logger.Error("completion transaction rolled back",
			"run_id", run.ID,
			"history_id", rec.ID,
			"err", err,
		)
		return sim.HistoryRecord{}, NewTransactionError(run.ID, "complete run", err)
	}

	e.logger.Info("run completed",
		"run_id", run.ID,
		"history_id", rec.ID,
		"participants", len(participants),
		"events", counts.Total(),
	)

	e.notifier.Publish(Notification{
		RunID:      run.ID,
		Kind:       NotifyRunCompleted,
		Generation: run.Generation,
		At:         completedAt,
	})

	return rec, nil
}

// RunHistory returns a run's history records, newest first.
func (e *Engine) RunHistory(ctx context.Context, actor sim.Actor, runID string) ([]sim.HistoryRecord, error) {
	if _, err := e.getRun(ctx, actor, runID); err != nil {
		return nil, err
	}
	recs, err := e.store.ListHistoryForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("run history: %w", err)
	}
	return recs, nil
}

// participantRoster folds the four event stores into per-actor activity
// summaries plus per-store totals. Roster order is by actor ID for
// deterministic output.
func (e *Engine) participantRoster(ctx context.Context, runID string) ([]sim.Participant, sim.EventCounts, error) {
	byActor := map[string]*sim.Participant{}
	observe := func(actorID string, at time.Time) {
		p, ok := byActor[actorID]
		if !ok {
			byActor[actorID] = &sim.Participant{
				ActorID:    actorID,
				EventCount: 1,
				FirstSeen:  at,
				LastSeen:   at,
			}
			return
		}
		p.EventCount++
		if at.Before(p.FirstSeen) {
			p.FirstSeen = at
		}
		if at.After(p.LastSeen) {
			p.LastSeen = at
		}
	}

	var counts sim.EventCounts

	vitals, err := e.store.VitalsEvents(ctx, runID)
	if err != nil {
		return nil, sim.EventCounts{}, err
	}
	for _, ev := range vitals {
		observe(ev.ActorID, ev.RecordedAt)
	}
	counts.Vitals = int64(len(vitals))

	meds, err := e.store.MedAdminEvents(ctx, runID)
	if err != nil {
		return nil, sim.EventCounts{}, err
	}
	for _, ev := range meds {
		observe(ev.ActorID, ev.RecordedAt)
	}
	counts.MedAdmin = int64(len(meds))

	acks, err := e.store.AlertAckEvents(ctx, runID)
	if err != nil {
		return nil, sim.EventCounts{}, err
	}
	for _, ev := range acks {
		observe(ev.ActorID, ev.RecordedAt)
	}
	counts.AlertAck = int64(len(acks))

	notes, err := e.store.NoteEvents(ctx, runID)
	if err != nil {
		return nil, sim.EventCounts{}, err
	}
	for _, ev := range notes {
		observe(ev.ActorID, ev.RecordedAt)
	}
	counts.Notes = int64(len(notes))

	roster := make([]sim.Participant, 0, len(byActor))
	for _, p := range byActor {
		roster = append(roster, *p)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].ActorID < roster[j].ActorID })

	return roster, counts, nil
}
