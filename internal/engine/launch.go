package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/haclabs/simcore/internal/sim"
)

// LaunchOptions configures run launch.
type LaunchOptions struct {
	// ReuseIdentifiers copies printed identifiers from the most recent run
	// of the same template, so relaunching does not force new physical
	// labels to be printed. Entities with no prior identifier still get a
	// fresh one. Off by default: fresh launches issue fresh identifiers.
	ReuseIdentifiers bool
}

// maxIssueAttempts bounds the claim-retry loop for one identifier. The
// identifier space is large enough that hitting this indicates a broken
// generator, not bad luck.
const maxIssueAttempts = 32

// LaunchRun materializes a live run from a snapshot.
//
// Stable entities (one run patient per snapshot patient, one barcode entry
// per snapshot medication) are created in the same transaction as the run:
// partial runs must not exist. Printed identifiers are claimed in the
// tenant-wide ledger before the transaction, so a crash between claim and
// commit wastes identifiers but never duplicates them.
func (e *Engine) LaunchRun(ctx context.Context, actor sim.Actor, snapshotID, runName string, opts LaunchOptions) (sim.Run, error) {
	snap, err := e.store.GetSnapshot(ctx, actor.Tenant, snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return sim.Run{}, NewNotFoundError("snapshot", snapshotID)
	}
	if err != nil {
		return sim.Run{}, fmt.Errorf("launch run: load snapshot: %w", err)
	}

	state, err := sim.DecodeState(snap.Document, snap.DocHash)
	if err != nil {
		e.logger.Error("snapshot document failed verification",
			"snapshot_id", snap.ID,
			"template_id", snap.TemplateID,
			"err", err,
		)
		return sim.Run{}, NewSerializationError("snapshot", snap.ID, err)
	}

	prior := identifierMap{}
	if opts.ReuseIdentifiers {
		prior, err = e.priorIdentifiers(ctx, actor.Tenant, snap.TemplateID)
		if err != nil {
			return sim.Run{}, fmt.Errorf("launch run: %w", err)
		}
	}

	now := e.times.Now()
	run := sim.Run{
		ID:         e.ids.Generate(),
		SnapshotID: snap.ID,
		TemplateID: snap.TemplateID,
		Tenant:     actor.Tenant,
		Name:       runName,
		Status:     sim.RunActive,
		Generation: 1,
		CreatedBy:  actor.ID,
		StartedAt:  now,
		UpdatedAt:  now,
	}

	patients := make([]sim.RunPatient, 0, len(state.Patients))
	for _, p := range state.Patients {
		printedID, ok := prior.patients[p.Key]
		if !ok {
			printedID, err = e.issueIdentifier(ctx, actor.Tenant, sim.IdentifierPatient)
			if err != nil {
				return sim.Run{}, fmt.Errorf("launch run: patient %q: %w", p.Key, err)
			}
		}
		doc, err := sim.EncodePatient(p)
		if err != nil {
			return sim.Run{}, fmt.Errorf("launch run: patient %q: %w", p.Key, err)
		}
		patients = append(patients, sim.RunPatient{
			ID:          e.ids.Generate(),
			RunID:       run.ID,
			SourceKey:   p.Key,
			PrintedID:   printedID,
			DisplayName: p.Name,
			Document:    doc,
		})
	}

	barcodes := make([]sim.BarcodeEntry, 0, len(state.Medications))
	for _, m := range state.Medications {
		barcode, ok := prior.barcodes[m.Key]
		if !ok {
			barcode, err = e.issueIdentifier(ctx, actor.Tenant, sim.IdentifierMedication)
			if err != nil {
				return sim.Run{}, fmt.Errorf("launch run: medication %q: %w", m.Key, err)
			}
		}
		doc, err := sim.EncodeMedication(m)
		if err != nil {
			return sim.Run{}, fmt.Errorf("launch run: medication %q: %w", m.Key, err)
		}
		barcodes = append(barcodes, sim.BarcodeEntry{
			ID:         e.ids.Generate(),
			RunID:      run.ID,
			SourceKey:  m.Key,
			Barcode:    barcode,
			Medication: m.Name,
			Document:   doc,
		})
	}

	if err := e.store.CreateRun(ctx, run, patients, barcodes); err != nil {
		e.logger.Error("launch transaction rolled back",
			"run_id", run.ID,
			"snapshot_id", snap.ID,
			"err", err,
		)
		return sim.Run{}, NewTransactionError(run.ID, "launch run", err)
	}

	e.logger.Info("run launched",
		"run_id", run.ID,
		"snapshot_id", snap.ID,
		"version", snap.Version,
		"patients", len(patients),
		"barcodes", len(barcodes),
		"reused_identifiers", opts.ReuseIdentifiers,
	)

	return run, nil
}

// RunPatients returns a run's stable patient rows.
func (e *Engine) RunPatients(ctx context.Context, actor sim.Actor, runID string) ([]sim.RunPatient, error) {
	if _, err := e.getRun(ctx, actor, runID); err != nil {
		return nil, err
	}
	return e.store.RunPatients(ctx, runID)
}

// BarcodeEntries returns a run's barcode pool.
func (e *Engine) BarcodeEntries(ctx context.Context, actor sim.Actor, runID string) ([]sim.BarcodeEntry, error) {
	if _, err := e.getRun(ctx, actor, runID); err != nil {
		return nil, err
	}
	return e.store.BarcodeEntries(ctx, runID)
}

// GetRun loads a run scoped to the actor's tenant.
func (e *Engine) GetRun(ctx context.Context, actor sim.Actor, runID string) (sim.Run, error) {
	return e.getRun(ctx, actor, runID)
}

// identifierMap holds a prior run's printed identifiers keyed by source key.
type identifierMap struct {
	patients map[string]string
	barcodes map[string]string
}

// priorIdentifiers loads the identifier map of the most recent run of a
// template. An empty map (no prior run) is not an error.
func (e *Engine) priorIdentifiers(ctx context.Context, tenant, templateID string) (identifierMap, error) {
	m := identifierMap{
		patients: map[string]string{},
		barcodes: map[string]string{},
	}

	prev, err := e.store.LatestRunForTemplate(ctx, tenant, templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("load prior run: %w", err)
	}

	patients, err := e.store.RunPatients(ctx, prev.ID)
	if err != nil {
		return m, err
	}
	for _, p := range patients {
		m.patients[p.SourceKey] = p.PrintedID
	}

	barcodes, err := e.store.BarcodeEntries(ctx, prev.ID)
	if err != nil {
		return m, err
	}
	for _, b := range barcodes {
		m.barcodes[b.SourceKey] = b.Barcode
	}

	return m, nil
}

// issueIdentifier generates a printed identifier and claims it in the
// tenant ledger, retrying on collision.
func (e *Engine) issueIdentifier(ctx context.Context, tenant string, kind sim.IdentifierKind) (string, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		var id string
		var err error
		switch kind {
		case sim.IdentifierPatient:
			id, err = e.printed.PatientID()
		case sim.IdentifierMedication:
			id, err = e.printed.Barcode()
		default:
			return "", fmt.Errorf("unknown identifier kind %q", kind)
		}
		if err != nil {
			return "", err
		}

		claimed, err := e.store.ClaimIdentifier(ctx, tenant, id, kind, e.times.Now())
		if err != nil {
			return "", err
		}
		if claimed {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not issue unique %s identifier after %d attempts", kind, maxIssueAttempts)
}
