// Package harness executes YAML lifecycle scenarios against a real engine
// backed by an in-memory database.
//
// Every source of nondeterminism is pinned: row identifiers come from a
// sequential generator, printed identifiers from a sequential generator,
// and timestamps from a fixed clock that advances one second per call. Two
// executions of the same scenario therefore produce byte-identical traces,
// which makes golden-file comparison meaningful.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/haclabs/simcore/internal/engine"
	"github.com/haclabs/simcore/internal/sim"
	"github.com/haclabs/simcore/internal/store"
	"github.com/haclabs/simcore/internal/testutil"
)

// harnessTenant scopes every scenario execution. Each execution gets a fresh
// in-memory database, so scenarios never see each other's identifiers.
const harnessTenant = "harness"

// Run executes a scenario end to end: save the inline template, snapshot it,
// launch a run, execute the flow, then gather final state. Assertions are NOT
// evaluated here; call CheckAssertions on the result.
func Run(scenario *Scenario) (*Result, error) {
	s, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	eng := engine.New(s,
		engine.WithTimeSource(testutil.NewDeterministicTime()),
		engine.WithIDGenerator(testutil.NewSequentialIDs("row")),
		engine.WithPrintedIDs(testutil.NewSequentialPrintedIDs()),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	ctx := context.Background()
	instructor := sim.Actor{ID: "instructor", Tenant: harnessTenant, Role: "instructor"}

	templateID, err := eng.SaveTemplate(ctx, instructor, scenario.Template.toTemplate())
	if err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}

	snap, err := eng.CreateSnapshot(ctx, instructor, templateID, "", "")
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	run, err := eng.LaunchRun(ctx, instructor, snap.ID, scenario.Launch.RunName, engine.LaunchOptions{
		ReuseIdentifiers: scenario.Launch.ReuseIdentifiers,
	})
	if err != nil {
		return nil, fmt.Errorf("launch run: %w", err)
	}

	result := &Result{
		Scenario: scenario,
		RunID:    run.ID,
	}

	result.LaunchedPatients, err = eng.RunPatients(ctx, instructor, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load launched patients: %w", err)
	}
	result.LaunchedBarcodes, err = eng.BarcodeEntries(ctx, instructor, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load launched barcodes: %w", err)
	}

	// Lookup tables from template keys to run-level identifiers.
	patientIDs := make(map[string]string, len(result.LaunchedPatients))
	for _, p := range result.LaunchedPatients {
		patientIDs[p.SourceKey] = p.ID
	}
	barcodes := make(map[string]string, len(result.LaunchedBarcodes))
	for _, b := range result.LaunchedBarcodes {
		barcodes[b.SourceKey] = b.Barcode
	}

	for i, step := range scenario.Flow {
		if err := executeStep(ctx, eng, run.ID, step, patientIDs, barcodes); err != nil {
			return nil, fmt.Errorf("flow[%d] (%s): %w", i, step.Op, err)
		}
	}

	result.FinalRun, err = eng.GetRun(ctx, instructor, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load final run: %w", err)
	}
	result.FinalPatients, err = eng.RunPatients(ctx, instructor, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load final patients: %w", err)
	}
	result.FinalBarcodes, err = eng.BarcodeEntries(ctx, instructor, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load final barcodes: %w", err)
	}
	result.State, err = eng.RunState(ctx, instructor, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load run state: %w", err)
	}
	result.Trace, err = eng.Trace(ctx, instructor, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load trace: %w", err)
	}
	result.Counts, err = eng.EventCounts(ctx, instructor, run.ID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	result.History, err = eng.RunHistory(ctx, instructor, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	return result, nil
}

// executeStep runs one flow step, honoring expect_error.
func executeStep(ctx context.Context, eng *engine.Engine, runID string, step FlowStep, patientIDs, barcodes map[string]string) error {
	actor := stepActor(step)

	var err error
	switch step.Op {
	case OpVitals:
		var reading sim.VitalsReading
		if step.Vitals != nil {
			reading = step.Vitals.toReading()
		}
		_, err = eng.RecordVitals(ctx, actor, runID, patientIDs[step.Patient], reading)
	case OpMed:
		barcode, ok := barcodes[step.Medication]
		if !ok {
			// Unknown keys pass validation only with expect_error set;
			// feed the raw key through so the engine rejects it.
			barcode = step.Medication
		}
		_, err = eng.AdministerMedication(ctx, actor, runID, barcode, step.DoseUCG, step.Route, "")
	case OpAlert:
		_, err = eng.AcknowledgeAlert(ctx, actor, runID, step.Alert, "")
	case OpNote:
		_, err = eng.AddNote(ctx, actor, runID, patientIDs[step.Patient], step.Content)
	case OpReset:
		_, err = eng.ResetRun(ctx, actor, runID)
	case OpComplete:
		_, err = eng.CompleteRun(ctx, actor, runID)
	case OpPause:
		err = eng.PauseRun(ctx, actor, runID)
	case OpResume:
		err = eng.ResumeRun(ctx, actor, runID)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.ExpectError == "" {
		return err
	}

	if err == nil {
		return fmt.Errorf("expected %s error, got success", step.ExpectError)
	}
	var opErr *engine.OpError
	if !errors.As(err, &opErr) {
		return fmt.Errorf("expected %s error, got: %w", step.ExpectError, err)
	}
	if string(opErr.Code) != step.ExpectError {
		return fmt.Errorf("expected %s error, got %s: %w", step.ExpectError, opErr.Code, err)
	}
	return nil
}

// stepActor builds the acting identity for one step. Lifecycle operations
// default to the instructor, recording operations to a student.
func stepActor(step FlowStep) sim.Actor {
	id := step.Actor
	role := "student"
	switch step.Op {
	case OpReset, OpComplete, OpPause, OpResume:
		role = "instructor"
		if id == "" {
			id = "instructor"
		}
	default:
		if id == "" {
			id = "student"
		}
	}
	return sim.Actor{ID: id, Tenant: harnessTenant, Role: role}
}
