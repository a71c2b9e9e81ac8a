package sim

import (
	"encoding/json"
	"fmt"
)

// EncodeState serializes a template state as canonical JSON and returns the
// document plus its snapshot hash. The document is a deep, self-contained
// copy: later edits to the template cannot reach into it.
func EncodeState(state TemplateState) (document []byte, docHash string, err error) {
	document, err = MarshalCanonical(state.canonicalMap())
	if err != nil {
		return nil, "", fmt.Errorf("encode state: %w", err)
	}
	return document, SnapshotDocHash(document), nil
}

// DecodeState parses a canonical state document. If wantHash is non-empty
// the document is verified against it first; a mismatch means the stored
// snapshot no longer matches what was captured.
func DecodeState(document []byte, wantHash string) (TemplateState, error) {
	if wantHash != "" {
		if got := SnapshotDocHash(document); got != wantHash {
			return TemplateState{}, fmt.Errorf("document hash mismatch: got %s, want %s", got, wantHash)
		}
	}

	var doc stateDoc
	if err := json.Unmarshal(document, &doc); err != nil {
		return TemplateState{}, fmt.Errorf("decode state: %w", err)
	}
	return doc.toState(), nil
}

// EncodePatient serializes one patient definition as canonical JSON, for the
// per-entity copy carried by a run patient row.
func EncodePatient(p PatientDef) ([]byte, error) {
	return MarshalCanonical(p.canonicalMap())
}

// EncodeMedication serializes one medication definition as canonical JSON,
// for the per-entity copy carried by a barcode pool row.
func EncodeMedication(m MedicationDef) ([]byte, error) {
	return MarshalCanonical(m.canonicalMap())
}

// DecodePatient parses a run patient's stored document.
func DecodePatient(document []byte) (PatientDef, error) {
	var doc patientDoc
	if err := json.Unmarshal(document, &doc); err != nil {
		return PatientDef{}, fmt.Errorf("decode patient: %w", err)
	}
	return PatientDef{
		Key:         doc.Key,
		Name:        doc.Name,
		DateOfBirth: doc.DateOfBirth,
		Sex:         doc.Sex,
		Diagnosis:   doc.Diagnosis,
		Allergies:   doc.Allergies,
		BaselineVitals: VitalsReading{
			HeartRate:   doc.Vitals.HeartRate,
			RespRate:    doc.Vitals.RespRate,
			SystolicBP:  doc.Vitals.SystolicBP,
			DiastolicBP: doc.Vitals.DiastolicBP,
			SpO2:        doc.Vitals.SpO2,
			TempDeciC:   doc.Vitals.TempDeciC,
		},
	}, nil
}

// DecodeMedication parses a barcode entry's stored document.
func DecodeMedication(document []byte) (MedicationDef, error) {
	var doc medicationDoc
	if err := json.Unmarshal(document, &doc); err != nil {
		return MedicationDef{}, fmt.Errorf("decode medication: %w", err)
	}
	return MedicationDef{
		Key:        doc.Key,
		PatientKey: doc.PatientKey,
		Name:       doc.Name,
		DoseUCG:    doc.DoseUCG,
		Route:      doc.Route,
		Frequency:  doc.Frequency,
	}, nil
}

// Wire structs for JSON decoding. Field names match the canonical maps
// below; keeping both in one file keeps them honest.

type stateDoc struct {
	Patients    []patientDoc    `json:"patients"`
	Medications []medicationDoc `json:"medications"`
	Alerts      []alertDoc      `json:"alerts"`
}

type patientDoc struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	DateOfBirth string    `json:"date_of_birth"`
	Sex         string    `json:"sex"`
	Diagnosis   string    `json:"diagnosis"`
	Allergies   []string  `json:"allergies"`
	Vitals      vitalsDoc `json:"baseline_vitals"`
}

type vitalsDoc struct {
	HeartRate   int64 `json:"heart_rate"`
	RespRate    int64 `json:"resp_rate"`
	SystolicBP  int64 `json:"systolic_bp"`
	DiastolicBP int64 `json:"diastolic_bp"`
	SpO2        int64 `json:"spo2"`
	TempDeciC   int64 `json:"temp_deci_c"`
}

type medicationDoc struct {
	Key        string `json:"key"`
	PatientKey string `json:"patient_key"`
	Name       string `json:"name"`
	DoseUCG    int64  `json:"dose_ucg"`
	Route      string `json:"route"`
	Frequency  string `json:"frequency"`
}

type alertDoc struct {
	Key        string `json:"key"`
	PatientKey string `json:"patient_key"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
}

func (d stateDoc) toState() TemplateState {
	state := TemplateState{}
	for _, p := range d.Patients {
		state.Patients = append(state.Patients, PatientDef{
			Key:         p.Key,
			Name:        p.Name,
			DateOfBirth: p.DateOfBirth,
			Sex:         p.Sex,
			Diagnosis:   p.Diagnosis,
			Allergies:   p.Allergies,
			BaselineVitals: VitalsReading{
				HeartRate:   p.Vitals.HeartRate,
				RespRate:    p.Vitals.RespRate,
				SystolicBP:  p.Vitals.SystolicBP,
				DiastolicBP: p.Vitals.DiastolicBP,
				SpO2:        p.Vitals.SpO2,
				TempDeciC:   p.Vitals.TempDeciC,
			},
		})
	}
	for _, m := range d.Medications {
		state.Medications = append(state.Medications, MedicationDef{
			Key:        m.Key,
			PatientKey: m.PatientKey,
			Name:       m.Name,
			DoseUCG:    m.DoseUCG,
			Route:      m.Route,
			Frequency:  m.Frequency,
		})
	}
	for _, a := range d.Alerts {
		state.Alerts = append(state.Alerts, AlertDef{
			Key:        a.Key,
			PatientKey: a.PatientKey,
			Severity:   a.Severity,
			Message:    a.Message,
		})
	}
	return state
}

func (s TemplateState) canonicalMap() map[string]any {
	patients := make([]any, len(s.Patients))
	for i, p := range s.Patients {
		patients[i] = p.canonicalMap()
	}
	medications := make([]any, len(s.Medications))
	for i, m := range s.Medications {
		medications[i] = m.canonicalMap()
	}
	alerts := make([]any, len(s.Alerts))
	for i, a := range s.Alerts {
		alerts[i] = a.canonicalMap()
	}
	return map[string]any{
		"patients":    patients,
		"medications": medications,
		"alerts":      alerts,
	}
}

func (p PatientDef) canonicalMap() map[string]any {
	allergies := make([]any, len(p.Allergies))
	for i, a := range p.Allergies {
		allergies[i] = a
	}
	return map[string]any{
		"key":           p.Key,
		"name":          p.Name,
		"date_of_birth": p.DateOfBirth,
		"sex":           p.Sex,
		"diagnosis":     p.Diagnosis,
		"allergies":     allergies,
		"baseline_vitals": map[string]any{
			"heart_rate":   p.BaselineVitals.HeartRate,
			"resp_rate":    p.BaselineVitals.RespRate,
			"systolic_bp":  p.BaselineVitals.SystolicBP,
			"diastolic_bp": p.BaselineVitals.DiastolicBP,
			"spo2":         p.BaselineVitals.SpO2,
			"temp_deci_c":  p.BaselineVitals.TempDeciC,
		},
	}
}

func (m MedicationDef) canonicalMap() map[string]any {
	return map[string]any{
		"key":         m.Key,
		"patient_key": m.PatientKey,
		"name":        m.Name,
		"dose_ucg":    m.DoseUCG,
		"route":       m.Route,
		"frequency":   m.Frequency,
	}
}

func (a AlertDef) canonicalMap() map[string]any {
	return map[string]any{
		"key":         a.Key,
		"patient_key": a.PatientKey,
		"severity":    a.Severity,
		"message":     a.Message,
	}
}

// Alert returns the alert definition with the given key, if present.
func (s TemplateState) Alert(key string) (AlertDef, bool) {
	for _, a := range s.Alerts {
		if a.Key == key {
			return a, true
		}
	}
	return AlertDef{}, false
}

// Patient returns the patient definition with the given key, if present.
func (s TemplateState) Patient(key string) (PatientDef, bool) {
	for _, p := range s.Patients {
		if p.Key == key {
			return p, true
		}
	}
	return PatientDef{}, false
}

// Medication returns the medication definition with the given key.
func (s TemplateState) Medication(key string) (MedicationDef, bool) {
	for _, m := range s.Medications {
		if m.Key == key {
			return m, true
		}
	}
	return MedicationDef{}, false
}
