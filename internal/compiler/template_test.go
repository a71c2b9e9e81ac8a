package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileTemplateBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		template: sepsis: {
			description: "Two-bed sepsis drill"
			specialty:   "emergency"
			difficulty:  "intermediate"

			patients: bed1: {
				name:      "Jordan Avery"
				diagnosis: "Suspected sepsis"
				allergies: ["penicillin"]
				baseline_vitals: {
					heart_rate:   88
					resp_rate:    18
					systolic_bp:  122
					diastolic_bp: 78
					spo2:         97
					temp_deci_c:  372
				}
			}

			medications: ceftriaxone: {
				patient:   "bed1"
				name:      "Ceftriaxone"
				dose_ucg:  1000000
				route:     "IV"
				frequency: "q24h"
			}

			alerts: lactate: {
				patient:  "bed1"
				severity: "high"
				message:  "Lactate elevated"
			}
		}
	`)

	require.NoError(t, v.Err())
	tmpl, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.sepsis")))
	require.NoError(t, err)

	assert.Equal(t, "sepsis", tmpl.Name)
	assert.Equal(t, "Two-bed sepsis drill", tmpl.Description)
	assert.Equal(t, "emergency", tmpl.Specialty)
	assert.True(t, tmpl.Active)

	require.Len(t, tmpl.State.Patients, 1)
	p := tmpl.State.Patients[0]
	assert.Equal(t, "bed1", p.Key)
	assert.Equal(t, "Jordan Avery", p.Name)
	assert.Equal(t, []string{"penicillin"}, p.Allergies)
	assert.Equal(t, int64(88), p.BaselineVitals.HeartRate)
	assert.Equal(t, int64(372), p.BaselineVitals.TempDeciC)

	require.Len(t, tmpl.State.Medications, 1)
	m := tmpl.State.Medications[0]
	assert.Equal(t, "ceftriaxone", m.Key)
	assert.Equal(t, "bed1", m.PatientKey)
	assert.Equal(t, int64(1000000), m.DoseUCG)
	assert.Equal(t, "q24h", m.Frequency)

	require.Len(t, tmpl.State.Alerts, 1)
	assert.Equal(t, "lactate", tmpl.State.Alerts[0].Key)
	assert.Equal(t, "high", tmpl.State.Alerts[0].Severity)
}

func TestCompileTemplateExplicitNameOverridesLabel(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		template: draft: {
			name: "sepsis-ward"
			patients: bed1: {
				name: "Jordan Avery"
				baseline_vitals: {
					heart_rate:   88
					resp_rate:    18
					systolic_bp:  122
					diastolic_bp: 78
					spo2:         97
					temp_deci_c:  372
				}
			}
		}
	`)

	require.NoError(t, v.Err())
	tmpl, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.draft")))
	require.NoError(t, err)
	assert.Equal(t, "sepsis-ward", tmpl.Name)
}

func TestCompileTemplateRequiresPatients(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		template: empty: {
			description: "No beds"
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.empty")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "patients")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileTemplateRequiresBaselineVitals(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		template: bad: {
			patients: bed1: {
				name: "Jordan Avery"
			}
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.bad")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "baseline_vitals")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileTemplateMissingVitalsField(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		template: bad: {
			patients: bed1: {
				name: "Jordan Avery"
				baseline_vitals: {
					heart_rate:   88
					resp_rate:    18
					systolic_bp:  122
					diastolic_bp: 78
					spo2:         97
				}
			}
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.bad")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "temp_deci_c")
}

func TestCompileTemplateRejectsFloatVitals(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		template: bad: {
			patients: bed1: {
				name: "Jordan Avery"
				baseline_vitals: {
					heart_rate:   88
					resp_rate:    18
					systolic_bp:  122
					diastolic_bp: 78
					spo2:         97
					temp_deci_c:  37.2
				}
			}
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.bad")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "float values are forbidden")
}

func TestCompileTemplateRejectsFloatDose(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		template: bad: {
			patients: bed1: {
				name: "Jordan Avery"
				baseline_vitals: {
					heart_rate:   88
					resp_rate:    18
					systolic_bp:  122
					diastolic_bp: 78
					spo2:         97
					temp_deci_c:  372
				}
			}
			medications: ceftriaxone: {
				patient:  "bed1"
				name:     "Ceftriaxone"
				dose_ucg: 1000.5
			}
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.bad")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dose_ucg is integer micrograms")
}

func TestCompileTemplateMedicationRequiresPatient(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		template: bad: {
			patients: bed1: {
				name: "Jordan Avery"
				baseline_vitals: {
					heart_rate:   88
					resp_rate:    18
					systolic_bp:  122
					diastolic_bp: 78
					spo2:         97
					temp_deci_c:  372
				}
			}
			medications: ceftriaxone: {
				name:     "Ceftriaxone"
				dose_ucg: 1000000
			}
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.bad")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "patient")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileTemplateAlertRequiresSeverity(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		template: bad: {
			patients: bed1: {
				name: "Jordan Avery"
				baseline_vitals: {
					heart_rate:   88
					resp_rate:    18
					systolic_bp:  122
					diastolic_bp: 78
					spo2:         97
					temp_deci_c:  372
				}
			}
			alerts: lactate: {
				patient: "bed1"
				message: "Lactate elevated"
			}
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.bad")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "severity")
}

func TestCompileErrorFormatting(t *testing.T) {
	err := &CompileError{Field: "name", Message: "template name is required"}
	assert.Equal(t, "name: template name is required", err.Error())
	assert.Equal(t, token.NoPos, err.Pos)
}
