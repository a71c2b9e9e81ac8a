package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haclabs/simcore/internal/sim"
)

// minimalScenario builds an in-memory scenario with one patient and one
// medication; tests tweak its flow and assertions.
func minimalScenario() *Scenario {
	return &Scenario{
		Name:        "minimal",
		Description: "Minimal harness scenario",
		Template: TemplateSpec{
			Name: "minimal-template",
			Patients: []PatientSpec{
				{
					Key:  "patient-1",
					Name: "Test Patient",
					BaselineVitals: VitalsSpec{
						HeartRate: 80, RespRate: 16, SystolicBP: 120,
						DiastolicBP: 80, SpO2: 98, TempDeciC: 370,
					},
				},
			},
			Medications: []MedicationSpec{
				{Key: "med-1", Patient: "patient-1", Name: "Test Med", DoseUCG: 500, Route: "PO"},
			},
		},
		Launch: LaunchSpec{RunName: "Test Run"},
		Flow: []FlowStep{
			{Op: OpVitals, Actor: "student-1", Patient: "patient-1", Vitals: &VitalsSpec{
				HeartRate: 90, RespRate: 18, SystolicBP: 118, DiastolicBP: 78, SpO2: 97, TempDeciC: 371,
			}},
		},
		Assertions: []Assertion{
			{Type: AssertEventCount, Counts: map[string]int64{"vitals": 1, "total": 1}},
		},
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(minimalScenario())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, sim.RunActive, result.FinalRun.Status)
	assert.Equal(t, int64(1), result.FinalRun.Generation)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "vitals", result.Trace[0].Op)
	assert.Equal(t, "student-1", result.Trace[0].ActorID)
	assert.Equal(t, int64(1), result.Trace[0].Seq)

	require.NoError(t, CheckAssertions(result))
}

func TestRun_DeterministicIdentifiers(t *testing.T) {
	first, err := Run(minimalScenario())
	require.NoError(t, err)
	second, err := Run(minimalScenario())
	require.NoError(t, err)

	// Every execution gets fresh deterministic generators, so two runs of
	// the same scenario issue identical identifiers.
	require.Len(t, first.LaunchedPatients, 1)
	assert.Equal(t, "PT-TEST01", first.LaunchedPatients[0].PrintedID)
	assert.Equal(t, first.LaunchedPatients[0].PrintedID, second.LaunchedPatients[0].PrintedID)

	require.Len(t, first.LaunchedBarcodes, 1)
	assert.Equal(t, "MED-TEST01", first.LaunchedBarcodes[0].Barcode)
	assert.Equal(t, first.LaunchedBarcodes[0].Barcode, second.LaunchedBarcodes[0].Barcode)

	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_ResetSweepsEvents(t *testing.T) {
	scenario := minimalScenario()
	scenario.Flow = append(scenario.Flow, FlowStep{Op: OpReset})
	scenario.Assertions = []Assertion{
		{Type: AssertEventCount, Counts: map[string]int64{"vitals": 0, "notes": 1, "total": 1}},
		{Type: AssertStableIdentifiers},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.FinalRun.Generation)
	require.Len(t, result.State.Notes, 1)
	assert.Equal(t, sim.NoteSystem, result.State.Notes[0].Kind)

	require.NoError(t, CheckAssertions(result))
}

func TestRun_ExpectErrorMismatchFails(t *testing.T) {
	scenario := minimalScenario()
	// The step succeeds, so the expected error never happens.
	scenario.Flow[0].ExpectError = "VALIDATION"

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected VALIDATION error, got success")
}

func TestRun_ExpectErrorMatches(t *testing.T) {
	scenario := minimalScenario()
	scenario.Flow = append(scenario.Flow, FlowStep{
		Op:          OpMed,
		Medication:  "not-a-barcode",
		DoseUCG:     100,
		ExpectError: "VALIDATION",
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, CheckAssertions(result))
}

func TestCheckAssertions_ReportsAllFailures(t *testing.T) {
	scenario := minimalScenario()
	scenario.Assertions = []Assertion{
		{Type: AssertEventCount, Counts: map[string]int64{"vitals": 5}},
		{Type: AssertRunStatus, Status: "archived"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	err = CheckAssertions(result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vitals count 1, want 5")
	assert.Contains(t, err.Error(), `run status "active", want "archived"`)
}
