package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/haclabs/simcore/internal/sim"
)

func TestCreateRun_PersistsBundle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := insertTestRun(t, s, "run-1")

	got, err := s.GetRun(ctx, "acme", run.ID)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got.Status != sim.RunActive {
		t.Errorf("Status = %q, want %q", got.Status, sim.RunActive)
	}
	if got.Generation != 1 {
		t.Errorf("Generation = %d, want 1", got.Generation)
	}
	if got.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", got.CompletedAt)
	}

	patients, err := s.RunPatients(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunPatients() failed: %v", err)
	}
	if len(patients) != 1 || patients[0].PrintedID != "PT-run-1" {
		t.Errorf("RunPatients() = %+v, want one PT-run-1", patients)
	}

	barcodes, err := s.BarcodeEntries(ctx, run.ID)
	if err != nil {
		t.Fatalf("BarcodeEntries() failed: %v", err)
	}
	if len(barcodes) != 1 || barcodes[0].Barcode != "MED-run-1" {
		t.Errorf("BarcodeEntries() = %+v, want one MED-run-1", barcodes)
	}
}

func TestCreateRun_AtomicOnDuplicateBarcode(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tmpl := testTemplate("tpl-1", "t")
	if _, err := s.UpsertTemplate(ctx, tmpl); err != nil {
		t.Fatalf("UpsertTemplate() failed: %v", err)
	}
	snap := insertTestSnapshot(t, s, tmpl, "snap-1")

	run := sim.Run{
		ID: "run-1", SnapshotID: snap.ID, TemplateID: tmpl.ID, Tenant: "acme",
		Name: "Run", Status: sim.RunActive, Generation: 1,
		CreatedBy: "instructor", StartedAt: testTime, UpdatedAt: testTime,
	}
	// Two barcode entries with the same barcode violate UNIQUE(run_id, barcode).
	barcodes := []sim.BarcodeEntry{
		{ID: "bc-1", RunID: "run-1", SourceKey: "med-1", Barcode: "MED-X", Medication: "A", Document: []byte("{}")},
		{ID: "bc-2", RunID: "run-1", SourceKey: "med-2", Barcode: "MED-X", Medication: "B", Document: []byte("{}")},
	}

	if err := s.CreateRun(ctx, run, nil, barcodes); err == nil {
		t.Fatal("CreateRun() succeeded, want unique constraint error")
	}

	// Nothing may remain: partial runs must not exist.
	if _, err := s.GetRun(ctx, "acme", "run-1"); err != sql.ErrNoRows {
		t.Errorf("GetRun() after failed create = %v, want sql.ErrNoRows", err)
	}
	entries, err := s.BarcodeEntries(ctx, "run-1")
	if err != nil {
		t.Fatalf("BarcodeEntries() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("BarcodeEntries() after failed create = %d entries, want 0", len(entries))
	}
}

func TestGetRun_TenantScoped(t *testing.T) {
	s := openTestStore(t)

	run := insertTestRun(t, s, "run-1")
	if _, err := s.GetRun(context.Background(), "other-tenant", run.ID); err != sql.ErrNoRows {
		t.Errorf("GetRun() with wrong tenant = %v, want sql.ErrNoRows", err)
	}
}

func TestLatestRunForTemplate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tmpl := testTemplate("tpl-1", "t")
	if _, err := s.UpsertTemplate(ctx, tmpl); err != nil {
		t.Fatalf("UpsertTemplate() failed: %v", err)
	}
	snap := insertTestSnapshot(t, s, tmpl, "snap-1")

	if _, err := s.LatestRunForTemplate(ctx, "acme", tmpl.ID); err != sql.ErrNoRows {
		t.Errorf("LatestRunForTemplate() with no runs = %v, want sql.ErrNoRows", err)
	}

	for i, started := range []time.Time{testTime, testTime.Add(time.Hour)} {
		run := sim.Run{
			ID: []string{"run-old", "run-new"}[i], SnapshotID: snap.ID, TemplateID: tmpl.ID,
			Tenant: "acme", Name: "Run", Status: sim.RunActive, Generation: 1,
			CreatedBy: "instructor", StartedAt: started, UpdatedAt: started,
		}
		if err := s.CreateRun(ctx, run, nil, nil); err != nil {
			t.Fatalf("CreateRun(%s) failed: %v", run.ID, err)
		}
	}

	got, err := s.LatestRunForTemplate(ctx, "acme", tmpl.ID)
	if err != nil {
		t.Fatalf("LatestRunForTemplate() failed: %v", err)
	}
	if got.ID != "run-new" {
		t.Errorf("LatestRunForTemplate() = %q, want run-new", got.ID)
	}
}

func TestSetRunStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := insertTestRun(t, s, "run-1")
	later := testTime.Add(time.Minute)

	if err := s.SetRunStatus(ctx, run.ID, sim.RunPaused, nil, later); err != nil {
		t.Fatalf("SetRunStatus() failed: %v", err)
	}

	got, err := s.GetRun(ctx, "acme", run.ID)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got.Status != sim.RunPaused {
		t.Errorf("Status = %q, want %q", got.Status, sim.RunPaused)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, later)
	}
	if got.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", got.CompletedAt)
	}
}

func TestSetRunStatus_WithCompletionTime(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := insertTestRun(t, s, "run-1")
	done := testTime.Add(time.Hour)

	if err := s.SetRunStatus(ctx, run.ID, sim.RunCompleted, &done, done); err != nil {
		t.Fatalf("SetRunStatus() failed: %v", err)
	}

	got, err := s.GetRun(ctx, "acme", run.ID)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, done)
	}
}

func TestSetRunStatus_UnknownRun(t *testing.T) {
	s := openTestStore(t)

	err := s.SetRunStatus(context.Background(), "missing", sim.RunPaused, nil, testTime)
	if err != sql.ErrNoRows {
		t.Errorf("SetRunStatus(missing) = %v, want sql.ErrNoRows", err)
	}
}

func TestGetBarcodeEntry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := insertTestRun(t, s, "run-1")

	got, err := s.GetBarcodeEntry(ctx, run.ID, "MED-run-1")
	if err != nil {
		t.Fatalf("GetBarcodeEntry() failed: %v", err)
	}
	if got.Medication != "Test Med" {
		t.Errorf("Medication = %q, want %q", got.Medication, "Test Med")
	}

	if _, err := s.GetBarcodeEntry(ctx, run.ID, "MED-UNKNOWN"); err != sql.ErrNoRows {
		t.Errorf("GetBarcodeEntry(unknown) = %v, want sql.ErrNoRows", err)
	}
	// A barcode from another run must not resolve.
	other := insertTestRun(t, s, "run-2")
	if _, err := s.GetBarcodeEntry(ctx, other.ID, "MED-run-1"); err != sql.ErrNoRows {
		t.Errorf("GetBarcodeEntry(cross-run) = %v, want sql.ErrNoRows", err)
	}
}

func TestGetRunPatient(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertTestRun(t, s, "run-1")

	got, err := s.GetRunPatient(ctx, "rp-run-1")
	if err != nil {
		t.Fatalf("GetRunPatient() failed: %v", err)
	}
	if got.RunID != "run-1" || got.SourceKey != "patient-1" {
		t.Errorf("GetRunPatient() = %+v, want run-1/patient-1", got)
	}

	if _, err := s.GetRunPatient(ctx, "missing"); err != sql.ErrNoRows {
		t.Errorf("GetRunPatient(missing) = %v, want sql.ErrNoRows", err)
	}
}
