package harness

import (
	"github.com/haclabs/simcore/internal/engine"
	"github.com/haclabs/simcore/internal/sim"
)

// Result holds everything a scenario execution produced, for assertions and
// golden comparison.
type Result struct {
	// Scenario is the executed scenario.
	Scenario *Scenario

	// RunID is the launched run's identifier.
	RunID string

	// LaunchedPatients and LaunchedBarcodes are the stable entities as they
	// existed immediately after launch, before any flow step ran.
	LaunchedPatients []sim.RunPatient
	LaunchedBarcodes []sim.BarcodeEntry

	// FinalRun is the run row after the whole flow executed.
	FinalRun sim.Run

	// FinalPatients and FinalBarcodes are the stable entities after the flow.
	FinalPatients []sim.RunPatient
	FinalBarcodes []sim.BarcodeEntry

	// State is the run's folded read-side view after the flow.
	State engine.RunState

	// Trace is the merged debrief trace after the flow.
	Trace []engine.TraceEvent

	// Counts holds final per-store event totals.
	Counts sim.EventCounts

	// History holds the run's history records, newest first.
	History []sim.HistoryRecord
}
