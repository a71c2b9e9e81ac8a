package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario YAML to a temp file and returns its path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validScenarioYAML = `
name: test-scenario
description: "Scenario loading test"
template:
  name: test-template
  patients:
    - key: patient-1
      name: Test Patient
      baseline_vitals:
        heart_rate: 80
        resp_rate: 16
        systolic_bp: 120
        diastolic_bp: 80
        spo2: 98
        temp_deci_c: 370
  medications:
    - key: med-1
      patient: patient-1
      name: Test Med
      dose_ucg: 500
launch:
  run_name: Test Run
flow:
  - op: vitals
    patient: patient-1
    vitals:
      heart_rate: 90
      resp_rate: 18
      systolic_bp: 118
      diastolic_bp: 78
      spo2: 97
      temp_deci_c: 371
  - op: med
    medication: med-1
    dose_ucg: 500
assertions:
  - type: event_count
    counts:
      vitals: 1
      med_admin: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, validScenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-scenario", scenario.Name)
	assert.Equal(t, "test-template", scenario.Template.Name)
	assert.Len(t, scenario.Template.Patients, 1)
	assert.Len(t, scenario.Flow, 2)
	assert.Len(t, scenario.Assertions, 1)
	assert.Equal(t, OpVitals, scenario.Flow[0].Op)
	assert.Equal(t, "med-1", scenario.Flow[1].Medication)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	content := `
name: typo-scenario
description: "Unknown field should fail"
template:
  name: t
  patients:
    - key: patient-1
      name: P
      baseline_vitals: {heart_rate: 80, resp_rate: 16, systolic_bp: 120, diastolic_bp: 80, spo2: 98, temp_deci_c: 370}
launch:
  run_name: Run
flows:
  - op: vitals
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingName(t *testing.T) {
	content := `
description: "No name"
template:
  name: t
  patients:
    - key: patient-1
      name: P
      baseline_vitals: {heart_rate: 80, resp_rate: 16, systolic_bp: 120, diastolic_bp: 80, spo2: 98, temp_deci_c: 370}
launch:
  run_name: Run
flow:
  - op: reset
assertions:
  - type: stable_identifiers_unchanged
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenario_UnknownFlowOp(t *testing.T) {
	content := `
name: bad-op
description: "Unknown op should fail"
template:
  name: t
  patients:
    - key: patient-1
      name: P
      baseline_vitals: {heart_rate: 80, resp_rate: 16, systolic_bp: 120, diastolic_bp: 80, spo2: 98, temp_deci_c: 370}
launch:
  run_name: Run
flow:
  - op: teleport
assertions:
  - type: stable_identifiers_unchanged
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown op "teleport"`)
}

func TestLoadScenario_UnknownPatientRef(t *testing.T) {
	content := `
name: bad-ref
description: "Dangling patient reference should fail"
template:
  name: t
  patients:
    - key: patient-1
      name: P
      baseline_vitals: {heart_rate: 80, resp_rate: 16, systolic_bp: 120, diastolic_bp: 80, spo2: 98, temp_deci_c: 370}
launch:
  run_name: Run
flow:
  - op: vitals
    patient: patient-9
    vitals: {heart_rate: 80, resp_rate: 16, systolic_bp: 120, diastolic_bp: 80, spo2: 98, temp_deci_c: 370}
assertions:
  - type: stable_identifiers_unchanged
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown patient "patient-9"`)
}

func TestLoadScenario_UnknownAssertionType(t *testing.T) {
	content := `
name: bad-assertion
description: "Unknown assertion type should fail"
template:
  name: t
  patients:
    - key: patient-1
      name: P
      baseline_vitals: {heart_rate: 80, resp_rate: 16, systolic_bp: 120, diastolic_bp: 80, spo2: 98, temp_deci_c: 370}
launch:
  run_name: Run
flow:
  - op: reset
assertions:
  - type: trace_contains
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown assertion type "trace_contains"`)
}

func TestLoadScenario_InvalidRunStatus(t *testing.T) {
	content := `
name: bad-status
description: "Invalid status in run_status assertion should fail"
template:
  name: t
  patients:
    - key: patient-1
      name: P
      baseline_vitals: {heart_rate: 80, resp_rate: 16, systolic_bp: 120, diastolic_bp: 80, spo2: 98, temp_deci_c: 370}
launch:
  run_name: Run
flow:
  - op: reset
assertions:
  - type: run_status
    status: finished
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid status "finished"`)
}
