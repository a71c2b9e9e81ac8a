package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haclabs/simcore/internal/sim"
)

// canRecord reports whether a run's status admits new events. Completed runs
// still accept events (completion is not terminal); paused and archived runs
// do not.
func canRecord(status sim.RunStatus) bool {
	return status == sim.RunActive || status == sim.RunCompleted
}

// RecordVitals appends one vitals reading for a run patient.
// Corrections are new events, never edits.
func (e *Engine) RecordVitals(ctx context.Context, actor sim.Actor, runID, runPatientID string, vitals sim.VitalsReading) (sim.VitalsEvent, error) {
	run, err := e.getRun(ctx, actor, runID)
	if err != nil {
		return sim.VitalsEvent{}, err
	}
	if !canRecord(run.Status) {
		return sim.VitalsEvent{}, NewStatusConflictError(runID, string(run.Status), "record vitals in")
	}
	if err := validateVitals(vitals); err != nil {
		return sim.VitalsEvent{}, err
	}
	if err := e.checkRunPatient(ctx, runID, runPatientID); err != nil {
		return sim.VitalsEvent{}, err
	}

	ev := sim.VitalsEvent{
		EventMeta:    e.newEventMeta(runID, actor),
		RunPatientID: runPatientID,
		Vitals:       vitals,
	}

	generation, err := e.store.InsertVitalsEvent(ctx, ev)
	if err != nil {
		return sim.VitalsEvent{}, fmt.Errorf("record vitals: %w", err)
	}
	ev.Generation = generation

	e.notifyEvent(runID, generation, ev.RecordedAt)
	return ev, nil
}

// AdministerMedication records one medication administration resolved from a
// scanned barcode. The barcode must belong to the run; an unrecognized scan
// is a validation error, not a lookup miss.
func (e *Engine) AdministerMedication(ctx context.Context, actor sim.Actor, runID, barcode string, doseUCG int64, route, notes string) (sim.MedAdminEvent, error) {
	run, err := e.getRun(ctx, actor, runID)
	if err != nil {
		return sim.MedAdminEvent{}, err
	}
	if !canRecord(run.Status) {
		return sim.MedAdminEvent{}, NewStatusConflictError(runID, string(run.Status), "administer medication in")
	}
	if doseUCG <= 0 {
		return sim.MedAdminEvent{}, NewValidationError(fmt.Sprintf("dose must be positive, got %d", doseUCG))
	}

	entry, err := e.store.GetBarcodeEntry(ctx, runID, strings.TrimSpace(barcode))
	if errors.Is(err, sql.ErrNoRows) {
		return sim.MedAdminEvent{}, NewValidationError(fmt.Sprintf("unrecognized barcode %q", barcode))
	}
	if err != nil {
		return sim.MedAdminEvent{}, fmt.Errorf("administer medication: resolve barcode: %w", err)
	}

	ev := sim.MedAdminEvent{
		EventMeta: e.newEventMeta(runID, actor),
		BarcodeID: entry.ID,
		DoseUCG:   doseUCG,
		Route:     route,
		Notes:     notes,
	}

	generation, err := e.store.InsertMedAdminEvent(ctx, ev)
	if err != nil {
		return sim.MedAdminEvent{}, fmt.Errorf("administer medication: %w", err)
	}
	ev.Generation = generation

	e.notifyEvent(runID, generation, ev.RecordedAt)
	return ev, nil
}

// AcknowledgeAlert records the acknowledgment of a clinical alert seeded by
// the run's snapshot. The alert key is checked against the snapshot document.
func (e *Engine) AcknowledgeAlert(ctx context.Context, actor sim.Actor, runID, alertKey, notes string) (sim.AlertAckEvent, error) {
	run, err := e.getRun(ctx, actor, runID)
	if err != nil {
		return sim.AlertAckEvent{}, err
	}
	if !canRecord(run.Status) {
		return sim.AlertAckEvent{}, NewStatusConflictError(runID, string(run.Status), "acknowledge alerts in")
	}

	snap, err := e.store.GetSnapshot(ctx, actor.Tenant, run.SnapshotID)
	if err != nil {
		return sim.AlertAckEvent{}, fmt.Errorf("acknowledge alert: load snapshot: %w", err)
	}
	state, err := sim.DecodeState(snap.Document, snap.DocHash)
	if err != nil {
		e.logger.Error("snapshot document failed verification",
			"snapshot_id", snap.ID,
			"run_id", runID,
			"err", err,
		)
		return sim.AlertAckEvent{}, NewSerializationError("snapshot", snap.ID, err)
	}
	if _, ok := state.Alert(alertKey); !ok {
		return sim.AlertAckEvent{}, NewValidationError(fmt.Sprintf("unknown alert %q", alertKey))
	}

	ev := sim.AlertAckEvent{
		EventMeta: e.newEventMeta(runID, actor),
		AlertRef:  alertKey,
		Notes:     notes,
	}

	generation, err := e.store.InsertAlertAckEvent(ctx, ev)
	if err != nil {
		return sim.AlertAckEvent{}, fmt.Errorf("acknowledge alert: %w", err)
	}
	ev.Generation = generation

	e.notifyEvent(runID, generation, ev.RecordedAt)
	return ev, nil
}

// AddNote appends a free-text participant note, optionally tied to a run
// patient. Engine-written audit notes use the system kind and are created
// only by reset.
func (e *Engine) AddNote(ctx context.Context, actor sim.Actor, runID, runPatientID, content string) (sim.NoteEvent, error) {
	run, err := e.getRun(ctx, actor, runID)
	if err != nil {
		return sim.NoteEvent{}, err
	}
	if !canRecord(run.Status) {
		return sim.NoteEvent{}, NewStatusConflictError(runID, string(run.Status), "add notes to")
	}
	if strings.TrimSpace(content) == "" {
		return sim.NoteEvent{}, NewValidationError("note content is required")
	}
	if runPatientID != "" {
		if err := e.checkRunPatient(ctx, runID, runPatientID); err != nil {
			return sim.NoteEvent{}, err
		}
	}

	ev := sim.NoteEvent{
		EventMeta:    e.newEventMeta(runID, actor),
		RunPatientID: runPatientID,
		Kind:         sim.NoteUser,
		Content:      content,
	}

	generation, err := e.store.InsertNoteEvent(ctx, ev)
	if err != nil {
		return sim.NoteEvent{}, fmt.Errorf("add note: %w", err)
	}
	ev.Generation = generation

	e.notifyEvent(runID, generation, ev.RecordedAt)
	return ev, nil
}

// newEventMeta stamps a fresh event header. Generation is filled in by the
// store at insert time, inside the insert transaction.
func (e *Engine) newEventMeta(runID string, actor sim.Actor) sim.EventMeta {
	return sim.EventMeta{
		ID:         e.ids.Generate(),
		RunID:      runID,
		ActorID:    actor.ID,
		RecordedAt: e.times.Now(),
		Seq:        e.clock.Next(),
	}
}

// checkRunPatient verifies a stable patient row exists and belongs to the run.
func (e *Engine) checkRunPatient(ctx context.Context, runID, runPatientID string) error {
	p, err := e.store.GetRunPatient(ctx, runPatientID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFoundError("run patient", runPatientID)
	}
	if err != nil {
		return fmt.Errorf("load run patient: %w", err)
	}
	if p.RunID != runID {
		return NewNotFoundError("run patient", runPatientID)
	}
	return nil
}

func (e *Engine) notifyEvent(runID string, generation int64, at time.Time) {
	e.notifier.Publish(Notification{
		RunID:      runID,
		Kind:       NotifyEventRecorded,
		Generation: generation,
		At:         at,
	})
}
