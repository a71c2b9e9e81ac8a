package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haclabs/simcore/internal/sim"
	"github.com/haclabs/simcore/internal/store"
	"github.com/haclabs/simcore/internal/testutil"
)

var (
	instructor = sim.Actor{ID: "instructor", Tenant: "acme", Role: "instructor"}
	student    = sim.Actor{ID: "student-1", Tenant: "acme", Role: "student"}
	outsider   = sim.Actor{ID: "stranger", Tenant: "globex", Role: "instructor"}
)

// newTestEngine builds an engine over a fresh in-memory store with
// deterministic time, row IDs, and printed identifiers.
func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	eng := New(s,
		WithTimeSource(testutil.NewDeterministicTime()),
		WithIDGenerator(testutil.NewSequentialIDs("id")),
		WithPrintedIDs(testutil.NewSequentialPrintedIDs()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return eng, s
}

// wardTemplate is a valid template with two patients, one medication, and
// one alert.
func wardTemplate() sim.Template {
	return sim.Template{
		Name:        "sepsis-ward",
		Description: "Two-bed sepsis drill",
		Active:      true,
		State: sim.TemplateState{
			Patients: []sim.PatientDef{
				{
					Key:       "patient-1",
					Name:      "Jordan Avery",
					Diagnosis: "Suspected sepsis",
					BaselineVitals: sim.VitalsReading{
						HeartRate: 88, RespRate: 18, SystolicBP: 122,
						DiastolicBP: 78, SpO2: 97, TempDeciC: 372,
					},
				},
				{
					Key:  "patient-2",
					Name: "Riley Chen",
					BaselineVitals: sim.VitalsReading{
						HeartRate: 72, RespRate: 14, SystolicBP: 118,
						DiastolicBP: 74, SpO2: 99, TempDeciC: 368,
					},
				},
			},
			Medications: []sim.MedicationDef{
				{Key: "ceftriaxone", PatientKey: "patient-1", Name: "Ceftriaxone", DoseUCG: 1000000, Route: "IV"},
			},
			Alerts: []sim.AlertDef{
				{Key: "lactate-high", PatientKey: "patient-1", Severity: "high", Message: "Lactate elevated"},
			},
		},
	}
}

// launchTestRun saves the ward template, snapshots it, and launches a run.
func launchTestRun(t *testing.T, eng *Engine) (sim.Run, []sim.RunPatient, []sim.BarcodeEntry) {
	t.Helper()
	ctx := context.Background()

	templateID, err := eng.SaveTemplate(ctx, instructor, wardTemplate())
	require.NoError(t, err)

	snap, err := eng.CreateSnapshot(ctx, instructor, templateID, "", "")
	require.NoError(t, err)

	run, err := eng.LaunchRun(ctx, instructor, snap.ID, "Morning session", LaunchOptions{})
	require.NoError(t, err)

	patients, err := eng.RunPatients(ctx, instructor, run.ID)
	require.NoError(t, err)
	barcodes, err := eng.BarcodeEntries(ctx, instructor, run.ID)
	require.NoError(t, err)

	return run, patients, barcodes
}

// okVitals is a reading inside every plausibility bound.
func okVitals() sim.VitalsReading {
	return sim.VitalsReading{
		HeartRate: 112, RespRate: 24, SystolicBP: 98,
		DiastolicBP: 60, SpO2: 93, TempDeciC: 385,
	}
}
