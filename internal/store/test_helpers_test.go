package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/haclabs/simcore/internal/sim"
)

var testTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// openTestStore creates a fresh in-memory store.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testTemplate builds a minimal valid template owned by tenant "acme".
func testTemplate(id, name string) sim.Template {
	return sim.Template{
		ID:        id,
		Tenant:    "acme",
		Name:      name,
		Active:    true,
		CreatedBy: "instructor",
		CreatedAt: testTime,
		UpdatedAt: testTime,
		State: sim.TemplateState{
			Patients: []sim.PatientDef{
				{
					Key:  "patient-1",
					Name: "Test Patient",
					BaselineVitals: sim.VitalsReading{
						HeartRate: 80, RespRate: 16, SystolicBP: 120,
						DiastolicBP: 80, SpO2: 98, TempDeciC: 370,
					},
				},
			},
			Medications: []sim.MedicationDef{
				{Key: "med-1", PatientKey: "patient-1", Name: "Test Med", DoseUCG: 500, Route: "PO"},
			},
		},
	}
}

// insertTestSnapshot encodes the template state and inserts a snapshot for it.
func insertTestSnapshot(t *testing.T, s *Store, tmpl sim.Template, snapID string) sim.Snapshot {
	t.Helper()
	document, docHash, err := sim.EncodeState(tmpl.State)
	if err != nil {
		t.Fatalf("EncodeState() failed: %v", err)
	}
	snap, err := s.InsertSnapshot(context.Background(), sim.Snapshot{
		ID:         snapID,
		TemplateID: tmpl.ID,
		Name:       tmpl.Name,
		Document:   document,
		DocHash:    docHash,
		CreatedBy:  "instructor",
		CreatedAt:  testTime,
	})
	if err != nil {
		t.Fatalf("InsertSnapshot() failed: %v", err)
	}
	return snap
}

// insertTestRun creates a template, snapshot, and run with one stable patient
// and one barcode entry. Returns the run.
func insertTestRun(t *testing.T, s *Store, runID string) sim.Run {
	t.Helper()
	ctx := context.Background()

	tmpl := testTemplate("tpl-"+runID, "template-"+runID)
	if _, err := s.UpsertTemplate(ctx, tmpl); err != nil {
		t.Fatalf("UpsertTemplate() failed: %v", err)
	}
	snap := insertTestSnapshot(t, s, tmpl, "snap-"+runID)

	run := sim.Run{
		ID:         runID,
		SnapshotID: snap.ID,
		TemplateID: tmpl.ID,
		Tenant:     "acme",
		Name:       "Run " + runID,
		Status:     sim.RunActive,
		Generation: 1,
		CreatedBy:  "instructor",
		StartedAt:  testTime,
		UpdatedAt:  testTime,
	}

	patientDoc, err := sim.EncodePatient(tmpl.State.Patients[0])
	if err != nil {
		t.Fatalf("EncodePatient() failed: %v", err)
	}
	medDoc, err := sim.EncodeMedication(tmpl.State.Medications[0])
	if err != nil {
		t.Fatalf("EncodeMedication() failed: %v", err)
	}

	patients := []sim.RunPatient{{
		ID:          "rp-" + runID,
		RunID:       runID,
		SourceKey:   "patient-1",
		PrintedID:   "PT-" + runID,
		DisplayName: "Test Patient",
		Document:    patientDoc,
	}}
	barcodes := []sim.BarcodeEntry{{
		ID:         "bc-" + runID,
		RunID:      runID,
		SourceKey:  "med-1",
		Barcode:    "MED-" + runID,
		Medication: "Test Med",
		Document:   medDoc,
	}}

	if err := s.CreateRun(ctx, run, patients, barcodes); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
	return run
}

// insertVitals appends n vitals events to a run with increasing seq values
// starting at startSeq.
func insertVitals(t *testing.T, s *Store, runID string, startSeq int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		seq := startSeq + int64(i)
		_, err := s.InsertVitalsEvent(context.Background(), sim.VitalsEvent{
			EventMeta: sim.EventMeta{
				ID:         fmt.Sprintf("ev-%s-%d", runID, seq),
				RunID:      runID,
				ActorID:    "student",
				RecordedAt: testTime.Add(time.Duration(seq) * time.Second),
				Seq:        seq,
			},
			RunPatientID: "rp-" + runID,
			Vitals: sim.VitalsReading{
				HeartRate: 80 + seq, RespRate: 16, SystolicBP: 120,
				DiastolicBP: 80, SpO2: 98, TempDeciC: 370,
			},
		})
		if err != nil {
			t.Fatalf("InsertVitalsEvent() failed: %v", err)
		}
	}
}
