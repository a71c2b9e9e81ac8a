package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/haclabs/simcore/internal/sim"
)

// Scenario defines a lifecycle test scenario.
// Scenarios define a template inline, capture a snapshot, launch a run, and
// execute a flow of recording and lifecycle operations, then assert on the
// resulting state and trace.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Template is the inline template definition the scenario snapshots.
	Template TemplateSpec `yaml:"template"`

	// Launch configures the run launched from the snapshot.
	Launch LaunchSpec `yaml:"launch"`

	// Flow contains the operations executed against the run, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state and trace.
	// Supported types: event_count, stable_identifiers_unchanged,
	// run_status, history_count, acknowledged_alerts
	Assertions []Assertion `yaml:"assertions"`
}

// TemplateSpec is the YAML shape of an inline template definition.
type TemplateSpec struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Patients    []PatientSpec    `yaml:"patients"`
	Medications []MedicationSpec `yaml:"medications,omitempty"`
	Alerts      []AlertSpec      `yaml:"alerts,omitempty"`
}

// PatientSpec is one patient in an inline template.
type PatientSpec struct {
	Key            string     `yaml:"key"`
	Name           string     `yaml:"name"`
	DateOfBirth    string     `yaml:"date_of_birth,omitempty"`
	Sex            string     `yaml:"sex,omitempty"`
	Diagnosis      string     `yaml:"diagnosis,omitempty"`
	Allergies      []string   `yaml:"allergies,omitempty"`
	BaselineVitals VitalsSpec `yaml:"baseline_vitals"`
}

// VitalsSpec is one set of vital signs in YAML form.
// Temperature is tenths of a degree Celsius, doses are micrograms: the
// canonical document format has no floats.
type VitalsSpec struct {
	HeartRate   int64 `yaml:"heart_rate"`
	RespRate    int64 `yaml:"resp_rate"`
	SystolicBP  int64 `yaml:"systolic_bp"`
	DiastolicBP int64 `yaml:"diastolic_bp"`
	SpO2        int64 `yaml:"spo2"`
	TempDeciC   int64 `yaml:"temp_deci_c"`
}

// MedicationSpec is one medication order in an inline template.
type MedicationSpec struct {
	Key       string `yaml:"key"`
	Patient   string `yaml:"patient"`
	Name      string `yaml:"name"`
	DoseUCG   int64  `yaml:"dose_ucg"`
	Route     string `yaml:"route,omitempty"`
	Frequency string `yaml:"frequency,omitempty"`
}

// AlertSpec is one clinical alert in an inline template.
type AlertSpec struct {
	Key      string `yaml:"key"`
	Patient  string `yaml:"patient"`
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"`
}

// LaunchSpec configures the scenario's run.
type LaunchSpec struct {
	RunName          string `yaml:"run_name"`
	ReuseIdentifiers bool   `yaml:"reuse_identifiers,omitempty"`
}

// FlowStep is one operation against the scenario's run.
type FlowStep struct {
	// Op selects the operation:
	// "vitals", "med", "alert", "note", "reset", "complete", "pause", "resume"
	Op string `yaml:"op"`

	// Actor is the acting identity recorded on events. Defaults to
	// "instructor" for lifecycle operations and "student" for recording.
	Actor string `yaml:"actor,omitempty"`

	// Patient is the template patient key (vitals, optionally note).
	Patient string `yaml:"patient,omitempty"`

	// Medication is the template medication key (med); the harness
	// resolves it to the run's issued barcode before recording.
	Medication string `yaml:"medication,omitempty"`

	// Alert is the template alert key (alert).
	Alert string `yaml:"alert,omitempty"`

	// Vitals carries the reading (vitals).
	Vitals *VitalsSpec `yaml:"vitals,omitempty"`

	// DoseUCG and Route carry the administration details (med).
	DoseUCG int64  `yaml:"dose_ucg,omitempty"`
	Route   string `yaml:"route,omitempty"`

	// Content carries the note text (note).
	Content string `yaml:"content,omitempty"`

	// ExpectError, when set, asserts the operation fails with this code
	// (e.g. "VALIDATION", "STATUS_CONFLICT") instead of succeeding.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates final state after the flow.
type Assertion struct {
	// Type specifies the assertion type:
	// - "event_count": per-store event totals match Counts
	// - "stable_identifiers_unchanged": printed identifiers equal those at launch
	// - "run_status": run status equals Status
	// - "history_count": number of history records equals Count
	// - "acknowledged_alerts": acknowledged alert keys equal Alerts
	Type string `yaml:"type"`

	// Counts holds expected per-store totals (event_count).
	Counts map[string]int64 `yaml:"counts,omitempty"`

	// Status is the expected run status (run_status).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of records (history_count).
	Count int `yaml:"count,omitempty"`

	// Alerts is the expected set of acknowledged alert keys (acknowledged_alerts).
	Alerts []string `yaml:"alerts,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount         = "event_count"
	AssertStableIdentifiers  = "stable_identifiers_unchanged"
	AssertRunStatus          = "run_status"
	AssertHistoryCount       = "history_count"
	AssertAcknowledgedAlerts = "acknowledged_alerts"
)

// Flow op constants.
const (
	OpVitals   = "vitals"
	OpMed      = "med"
	OpAlert    = "alert"
	OpNote     = "note"
	OpReset    = "reset"
	OpComplete = "complete"
	OpPause    = "pause"
	OpResume   = "resume"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Template.Name == "" {
		return fmt.Errorf("template.name is required")
	}
	if len(s.Template.Patients) == 0 {
		return fmt.Errorf("template.patients is required and must be non-empty")
	}
	if s.Launch.RunName == "" {
		return fmt.Errorf("launch.run_name is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	patientKeys := map[string]bool{}
	for i, p := range s.Template.Patients {
		if p.Key == "" {
			return fmt.Errorf("template.patients[%d]: key is required", i)
		}
		patientKeys[p.Key] = true
	}
	medKeys := map[string]bool{}
	for i, m := range s.Template.Medications {
		if m.Key == "" {
			return fmt.Errorf("template.medications[%d]: key is required", i)
		}
		medKeys[m.Key] = true
	}
	alertKeys := map[string]bool{}
	for i, a := range s.Template.Alerts {
		if a.Key == "" {
			return fmt.Errorf("template.alerts[%d]: key is required", i)
		}
		alertKeys[a.Key] = true
	}

	for i, step := range s.Flow {
		switch step.Op {
		case OpVitals:
			if !patientKeys[step.Patient] {
				return fmt.Errorf("flow[%d]: unknown patient %q", i, step.Patient)
			}
			if step.Vitals == nil && step.ExpectError == "" {
				return fmt.Errorf("flow[%d]: vitals reading is required", i)
			}
		case OpMed:
			if !medKeys[step.Medication] && step.ExpectError == "" {
				return fmt.Errorf("flow[%d]: unknown medication %q", i, step.Medication)
			}
		case OpAlert:
			if !alertKeys[step.Alert] && step.ExpectError == "" {
				return fmt.Errorf("flow[%d]: unknown alert %q", i, step.Alert)
			}
		case OpNote:
			if step.Content == "" && step.ExpectError == "" {
				return fmt.Errorf("flow[%d]: content is required", i)
			}
		case OpReset, OpComplete, OpPause, OpResume:
			// No extra fields required.
		case "":
			return fmt.Errorf("flow[%d]: op is required", i)
		default:
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertEventCount:
		if len(a.Counts) == 0 {
			return fmt.Errorf("assertions[%d]: counts is required for event_count", index)
		}
		for k := range a.Counts {
			switch k {
			case "vitals", "med_admin", "alert_ack", "notes", "total":
			default:
				return fmt.Errorf("assertions[%d]: unknown count key %q", index, k)
			}
		}
	case AssertStableIdentifiers:
		// No fields.
	case AssertRunStatus:
		if !sim.ValidRunStatus(sim.RunStatus(a.Status)) {
			return fmt.Errorf("assertions[%d]: invalid status %q for run_status", index, a.Status)
		}
	case AssertHistoryCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history_count", index)
		}
	case AssertAcknowledgedAlerts:
		// Alerts may legitimately be empty (asserting none acknowledged).
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// toTemplate converts the YAML template spec to the domain type.
func (t TemplateSpec) toTemplate() sim.Template {
	out := sim.Template{
		Name:        t.Name,
		Description: t.Description,
		Active:      true,
	}
	for _, p := range t.Patients {
		out.State.Patients = append(out.State.Patients, sim.PatientDef{
			Key:            p.Key,
			Name:           p.Name,
			DateOfBirth:    p.DateOfBirth,
			Sex:            p.Sex,
			Diagnosis:      p.Diagnosis,
			Allergies:      p.Allergies,
			BaselineVitals: p.BaselineVitals.toReading(),
		})
	}
	for _, m := range t.Medications {
		out.State.Medications = append(out.State.Medications, sim.MedicationDef{
			Key:        m.Key,
			PatientKey: m.Patient,
			Name:       m.Name,
			DoseUCG:    m.DoseUCG,
			Route:      m.Route,
			Frequency:  m.Frequency,
		})
	}
	for _, a := range t.Alerts {
		out.State.Alerts = append(out.State.Alerts, sim.AlertDef{
			Key:        a.Key,
			PatientKey: a.Patient,
			Severity:   a.Severity,
			Message:    a.Message,
		})
	}
	return out
}

func (v VitalsSpec) toReading() sim.VitalsReading {
	return sim.VitalsReading{
		HeartRate:   v.HeartRate,
		RespRate:    v.RespRate,
		SystolicBP:  v.SystolicBP,
		DiastolicBP: v.DiastolicBP,
		SpO2:        v.SpO2,
		TempDeciC:   v.TempDeciC,
	}
}
