package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/haclabs/simcore/internal/sim"
)

// RunState is a read-side view of a run folded from its stable entities and
// event log. It is computed on demand, never stored: the event log is the
// state of record, so there is no mirror to drift out of sync.
type RunState struct {
	Run                sim.Run
	Patients           []PatientView
	Medications        []MedicationView
	AcknowledgedAlerts []string
	Notes              []sim.NoteEvent
}

// PatientView is one patient's current state within a run.
type PatientView struct {
	RunPatientID string
	SourceKey    string
	PrintedID    string
	DisplayName  string
	Baseline     sim.VitalsReading
	Latest       *sim.VitalsReading // nil until the first reading
	VitalsCount  int
}

// MedicationView is one barcode entry's administration tally.
type MedicationView struct {
	BarcodeID    string
	SourceKey    string
	Barcode      string
	Medication   string
	TimesGiven   int
	TotalDoseUCG int64
	LastRoute    string
}

// RunState folds a run's current view. Baseline vitals come from the stable
// patient documents; the latest reading per patient comes from the event log.
func (e *Engine) RunState(ctx context.Context, actor sim.Actor, runID string) (RunState, error) {
	run, err := e.getRun(ctx, actor, runID)
	if err != nil {
		return RunState{}, err
	}

	patients, err := e.store.RunPatients(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("run state: %w", err)
	}
	barcodes, err := e.store.BarcodeEntries(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("run state: %w", err)
	}

	views := make([]PatientView, 0, len(patients))
	byPatient := make(map[string]*PatientView, len(patients))
	for _, p := range patients {
		def, err := sim.DecodePatient(p.Document)
		if err != nil {
			return RunState{}, fmt.Errorf("run state: patient %q: %w", p.SourceKey, err)
		}
		views = append(views, PatientView{
			RunPatientID: p.ID,
			SourceKey:    p.SourceKey,
			PrintedID:    p.PrintedID,
			DisplayName:  p.DisplayName,
			Baseline:     def.BaselineVitals,
		})
	}
	for i := range views {
		byPatient[views[i].RunPatientID] = &views[i]
	}

	vitals, err := e.store.VitalsEvents(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("run state: %w", err)
	}
	for _, ev := range vitals {
		v, ok := byPatient[ev.RunPatientID]
		if !ok {
			continue
		}
		reading := ev.Vitals
		v.Latest = &reading
		v.VitalsCount++
	}

	medViews := make([]MedicationView, 0, len(barcodes))
	byBarcode := make(map[string]*MedicationView, len(barcodes))
	for _, b := range barcodes {
		medViews = append(medViews, MedicationView{
			BarcodeID:  b.ID,
			SourceKey:  b.SourceKey,
			Barcode:    b.Barcode,
			Medication: b.Medication,
		})
	}
	for i := range medViews {
		byBarcode[medViews[i].BarcodeID] = &medViews[i]
	}

	meds, err := e.store.MedAdminEvents(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("run state: %w", err)
	}
	for _, ev := range meds {
		m, ok := byBarcode[ev.BarcodeID]
		if !ok {
			continue
		}
		m.TimesGiven++
		m.TotalDoseUCG += ev.DoseUCG
		m.LastRoute = ev.Route
	}

	acks, err := e.store.AlertAckEvents(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("run state: %w", err)
	}
	acked := map[string]bool{}
	for _, ev := range acks {
		acked[ev.AlertRef] = true
	}
	ackedKeys := make([]string, 0, len(acked))
	for k := range acked {
		ackedKeys = append(ackedKeys, k)
	}
	sort.Strings(ackedKeys)

	notes, err := e.store.NoteEvents(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("run state: %w", err)
	}

	return RunState{
		Run:                run,
		Patients:           views,
		Medications:        medViews,
		AcknowledgedAlerts: ackedKeys,
		Notes:              notes,
	}, nil
}

// TraceEvent is one entry in a run's merged debrief trace.
type TraceEvent struct {
	Seq        int64
	Op         string // "vitals" | "med_admin" | "alert_ack" | "note"
	ActorID    string
	Generation int64
	Ref        string // run patient, barcode entry, or alert key
	Summary    string
}

// Trace merges all four event stores into one sequence-ordered debrief
// trace. Order is deterministic: logical seq, then row ID.
func (e *Engine) Trace(ctx context.Context, actor sim.Actor, runID string) ([]TraceEvent, error) {
	if _, err := e.getRun(ctx, actor, runID); err != nil {
		return nil, err
	}

	type keyed struct {
		id string
		ev TraceEvent
	}
	var all []keyed

	vitals, err := e.store.VitalsEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	for _, ev := range vitals {
		all = append(all, keyed{ev.ID, TraceEvent{
			Seq:        ev.Seq,
			Op:         "vitals",
			ActorID:    ev.ActorID,
			Generation: ev.Generation,
			Ref:        ev.RunPatientID,
			Summary:    fmt.Sprintf("HR %d RR %d BP %d/%d SpO2 %d", ev.Vitals.HeartRate, ev.Vitals.RespRate, ev.Vitals.SystolicBP, ev.Vitals.DiastolicBP, ev.Vitals.SpO2),
		}})
	}

	meds, err := e.store.MedAdminEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	for _, ev := range meds {
		all = append(all, keyed{ev.ID, TraceEvent{
			Seq:        ev.Seq,
			Op:         "med_admin",
			ActorID:    ev.ActorID,
			Generation: ev.Generation,
			Ref:        ev.BarcodeID,
			Summary:    fmt.Sprintf("%d ucg via %s", ev.DoseUCG, ev.Route),
		}})
	}

	acks, err := e.store.AlertAckEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	for _, ev := range acks {
		all = append(all, keyed{ev.ID, TraceEvent{
			Seq:        ev.Seq,
			Op:         "alert_ack",
			ActorID:    ev.ActorID,
			Generation: ev.Generation,
			Ref:        ev.AlertRef,
			Summary:    "acknowledged",
		}})
	}

	notes, err := e.store.NoteEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	for _, ev := range notes {
		all = append(all, keyed{ev.ID, TraceEvent{
			Seq:        ev.Seq,
			Op:         "note",
			ActorID:    ev.ActorID,
			Generation: ev.Generation,
			Ref:        ev.RunPatientID,
			Summary:    fmt.Sprintf("[%s] %s", ev.Kind, ev.Content),
		}})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].ev.Seq != all[j].ev.Seq {
			return all[i].ev.Seq < all[j].ev.Seq
		}
		return all[i].id < all[j].id
	})

	trace := make([]TraceEvent, len(all))
	for i, k := range all {
		trace[i] = k.ev
	}
	return trace, nil
}

// EventCounts returns per-store event totals for a run.
func (e *Engine) EventCounts(ctx context.Context, actor sim.Actor, runID string) (sim.EventCounts, error) {
	if _, err := e.getRun(ctx, actor, runID); err != nil {
		return sim.EventCounts{}, err
	}
	counts, err := e.store.CountEvents(ctx, runID)
	if err != nil {
		return sim.EventCounts{}, fmt.Errorf("event counts: %w", err)
	}
	return counts, nil
}
