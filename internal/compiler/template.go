package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/haclabs/simcore/internal/sim"
)

// CompileTemplate parses a CUE value into a template.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the template struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`template: sepsis: { ... }`)
//	t, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.sepsis")))
func CompileTemplate(v cue.Value) (sim.Template, error) {
	if err := v.Err(); err != nil {
		return sim.Template{}, formatCUEError(err)
	}

	t := sim.Template{Active: true}

	// Template name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		t.Name = labels[len(labels)-1].String()
	}

	// An explicit name field overrides the label
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return sim.Template{}, formatCUEError(err)
		}
		t.Name = name
	}
	if t.Name == "" {
		return sim.Template{}, &CompileError{
			Field:   "name",
			Message: "template name is required",
			Pos:     v.Pos(),
		}
	}

	var err error
	if t.Description, err = optionalString(v, "description"); err != nil {
		return sim.Template{}, err
	}
	if t.Specialty, err = optionalString(v, "specialty"); err != nil {
		return sim.Template{}, err
	}
	if t.Difficulty, err = optionalString(v, "difficulty"); err != nil {
		return sim.Template{}, err
	}

	// Patients (required, at least one)
	t.State.Patients, err = parsePatients(v)
	if err != nil {
		return sim.Template{}, err
	}
	if len(t.State.Patients) == 0 {
		return sim.Template{}, &CompileError{
			Field:   "patients",
			Message: "at least one patient is required",
			Pos:     v.Pos(),
		}
	}

	t.State.Medications, err = parseMedications(v)
	if err != nil {
		return sim.Template{}, err
	}

	t.State.Alerts, err = parseAlerts(v)
	if err != nil {
		return sim.Template{}, err
	}

	return t, nil
}

// parsePatients extracts patient definitions, keyed by struct label.
func parsePatients(v cue.Value) ([]sim.PatientDef, error) {
	var patients []sim.PatientDef

	patientsVal := v.LookupPath(cue.ParsePath("patients"))
	if !patientsVal.Exists() {
		return patients, nil
	}

	iter, err := patientsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		pv := iter.Value()
		p := sim.PatientDef{Key: iter.Label()}

		if p.Name, err = requiredString(pv, "name"); err != nil {
			return nil, err
		}
		if p.DateOfBirth, err = optionalString(pv, "date_of_birth"); err != nil {
			return nil, err
		}
		if p.Sex, err = optionalString(pv, "sex"); err != nil {
			return nil, err
		}
		if p.Diagnosis, err = optionalString(pv, "diagnosis"); err != nil {
			return nil, err
		}

		allergiesVal := pv.LookupPath(cue.ParsePath("allergies"))
		if allergiesVal.Exists() {
			listIter, err := allergiesVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for listIter.Next() {
				a, err := listIter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				p.Allergies = append(p.Allergies, a)
			}
		}

		vitalsVal := pv.LookupPath(cue.ParsePath("baseline_vitals"))
		if !vitalsVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("patients.%s.baseline_vitals", p.Key),
				Message: "baseline vitals are required",
				Pos:     pv.Pos(),
			}
		}
		if p.BaselineVitals, err = parseVitals(vitalsVal); err != nil {
			return nil, err
		}

		patients = append(patients, p)
	}

	return patients, nil
}

// parseVitals reads one vitals block. All quantities are integers:
// temperature in tenths of a degree Celsius. Floats are forbidden; the
// canonical document format cannot carry them.
func parseVitals(v cue.Value) (sim.VitalsReading, error) {
	var reading sim.VitalsReading
	for _, f := range []struct {
		name string
		dst  *int64
	}{
		{"heart_rate", &reading.HeartRate},
		{"resp_rate", &reading.RespRate},
		{"systolic_bp", &reading.SystolicBP},
		{"diastolic_bp", &reading.DiastolicBP},
		{"spo2", &reading.SpO2},
		{"temp_deci_c", &reading.TempDeciC},
	} {
		fv := v.LookupPath(cue.ParsePath(f.name))
		if !fv.Exists() {
			return reading, &CompileError{
				Field:   f.name,
				Message: "vitals field is required",
				Pos:     v.Pos(),
			}
		}
		if fv.IncompleteKind() == cue.FloatKind || fv.IncompleteKind() == cue.NumberKind {
			return reading, &CompileError{
				Field:   f.name,
				Message: "float values are forbidden - use scaled integers (temp_deci_c, dose_ucg)",
				Pos:     fv.Pos(),
			}
		}
		n, err := fv.Int64()
		if err != nil {
			return reading, formatCUEError(err)
		}
		*f.dst = n
	}
	return reading, nil
}

// parseMedications extracts medication orders, keyed by struct label.
func parseMedications(v cue.Value) ([]sim.MedicationDef, error) {
	var medications []sim.MedicationDef

	medsVal := v.LookupPath(cue.ParsePath("medications"))
	if !medsVal.Exists() {
		return medications, nil
	}

	iter, err := medsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		mv := iter.Value()
		m := sim.MedicationDef{Key: iter.Label()}

		if m.PatientKey, err = requiredString(mv, "patient"); err != nil {
			return nil, err
		}
		if m.Name, err = requiredString(mv, "name"); err != nil {
			return nil, err
		}
		if m.Route, err = optionalString(mv, "route"); err != nil {
			return nil, err
		}
		if m.Frequency, err = optionalString(mv, "frequency"); err != nil {
			return nil, err
		}

		doseVal := mv.LookupPath(cue.ParsePath("dose_ucg"))
		if !doseVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("medications.%s.dose_ucg", m.Key),
				Message: "dose_ucg is required (micrograms)",
				Pos:     mv.Pos(),
			}
		}
		if doseVal.IncompleteKind() == cue.FloatKind || doseVal.IncompleteKind() == cue.NumberKind {
			return nil, &CompileError{
				Field:   fmt.Sprintf("medications.%s.dose_ucg", m.Key),
				Message: "float values are forbidden - dose_ucg is integer micrograms",
				Pos:     doseVal.Pos(),
			}
		}
		if m.DoseUCG, err = doseVal.Int64(); err != nil {
			return nil, formatCUEError(err)
		}

		medications = append(medications, m)
	}

	return medications, nil
}

// parseAlerts extracts alert definitions, keyed by struct label.
func parseAlerts(v cue.Value) ([]sim.AlertDef, error) {
	var alerts []sim.AlertDef

	alertsVal := v.LookupPath(cue.ParsePath("alerts"))
	if !alertsVal.Exists() {
		return alerts, nil
	}

	iter, err := alertsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		av := iter.Value()
		a := sim.AlertDef{Key: iter.Label()}

		if a.PatientKey, err = requiredString(av, "patient"); err != nil {
			return nil, err
		}
		if a.Severity, err = requiredString(av, "severity"); err != nil {
			return nil, err
		}
		if a.Message, err = requiredString(av, "message"); err != nil {
			return nil, err
		}

		alerts = append(alerts, a)
	}

	return alerts, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
