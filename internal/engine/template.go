package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/haclabs/simcore/internal/sim"
)

// SaveTemplate creates or updates a template owned by the actor's tenant.
// The state graph is validated before it touches the store: duplicate keys
// and dangling patient references are authoring mistakes, not data.
//
// Returns the template ID (the existing one on update).
func (e *Engine) SaveTemplate(ctx context.Context, actor sim.Actor, t sim.Template) (string, error) {
	if t.Name == "" {
		return "", NewValidationError("template name is required")
	}
	if err := validateState(t.State); err != nil {
		return "", err
	}

	now := e.times.Now()
	t.Tenant = actor.Tenant
	t.CreatedBy = actor.ID
	t.UpdatedAt = now
	if t.ID == "" {
		t.ID = e.ids.Generate()
		t.CreatedAt = now
	}

	id, err := e.store.UpsertTemplate(ctx, t)
	if err != nil {
		return "", fmt.Errorf("save template: %w", err)
	}

	e.logger.Info("template saved",
		"template_id", id,
		"tenant", actor.Tenant,
		"name", t.Name,
		"patients", len(t.State.Patients),
	)

	return id, nil
}

// GetTemplate loads a template scoped to the actor's tenant.
func (e *Engine) GetTemplate(ctx context.Context, actor sim.Actor, id string) (sim.Template, error) {
	t, err := e.store.GetTemplate(ctx, actor.Tenant, id)
	if errors.Is(err, sql.ErrNoRows) {
		return sim.Template{}, NewNotFoundError("template", id)
	}
	if err != nil {
		return sim.Template{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// GetTemplateByName loads a template by name scoped to the actor's tenant.
func (e *Engine) GetTemplateByName(ctx context.Context, actor sim.Actor, name string) (sim.Template, error) {
	t, err := e.store.GetTemplateByName(ctx, actor.Tenant, name)
	if errors.Is(err, sql.ErrNoRows) {
		return sim.Template{}, NewNotFoundError("template", name)
	}
	if err != nil {
		return sim.Template{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// ListTemplates returns the actor's tenant's templates ordered by name.
func (e *Engine) ListTemplates(ctx context.Context, actor sim.Actor) ([]sim.Template, error) {
	ts, err := e.store.ListTemplates(ctx, actor.Tenant)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return ts, nil
}

// validateState checks a template state graph for authoring errors.
func validateState(state sim.TemplateState) error {
	patientKeys := make(map[string]bool, len(state.Patients))
	for _, p := range state.Patients {
		if p.Key == "" {
			return NewValidationError("patient key is required")
		}
		if patientKeys[p.Key] {
			return NewValidationError(fmt.Sprintf("duplicate patient key %q", p.Key))
		}
		patientKeys[p.Key] = true
		if err := validateVitals(p.BaselineVitals); err != nil {
			return fmt.Errorf("patient %q baseline: %w", p.Key, err)
		}
	}

	medKeys := make(map[string]bool, len(state.Medications))
	for _, m := range state.Medications {
		if m.Key == "" {
			return NewValidationError("medication key is required")
		}
		if medKeys[m.Key] {
			return NewValidationError(fmt.Sprintf("duplicate medication key %q", m.Key))
		}
		medKeys[m.Key] = true
		if !patientKeys[m.PatientKey] {
			return NewValidationError(fmt.Sprintf("medication %q references unknown patient %q", m.Key, m.PatientKey))
		}
		if m.DoseUCG <= 0 {
			return NewValidationError(fmt.Sprintf("medication %q dose must be positive", m.Key))
		}
	}

	alertKeys := make(map[string]bool, len(state.Alerts))
	for _, a := range state.Alerts {
		if a.Key == "" {
			return NewValidationError("alert key is required")
		}
		if alertKeys[a.Key] {
			return NewValidationError(fmt.Sprintf("duplicate alert key %q", a.Key))
		}
		alertKeys[a.Key] = true
		if !patientKeys[a.PatientKey] {
			return NewValidationError(fmt.Sprintf("alert %q references unknown patient %q", a.Key, a.PatientKey))
		}
	}

	return nil
}

// Clinical plausibility bounds. Wide on purpose: the engine rejects
// impossible readings, not unusual ones.
const (
	maxHeartRate = 400
	maxRespRate  = 120
	maxSystolic  = 400
	maxDiastolic = 300
	maxSpO2      = 100
	minTempDeciC = 200 // 20.0C
	maxTempDeciC = 450 // 45.0C
)

func validateVitals(v sim.VitalsReading) error {
	switch {
	case v.HeartRate < 0 || v.HeartRate > maxHeartRate:
		return NewValidationError(fmt.Sprintf("heart rate %d out of range [0, %d]", v.HeartRate, maxHeartRate))
	case v.RespRate < 0 || v.RespRate > maxRespRate:
		return NewValidationError(fmt.Sprintf("respiratory rate %d out of range [0, %d]", v.RespRate, maxRespRate))
	case v.SystolicBP < 0 || v.SystolicBP > maxSystolic:
		return NewValidationError(fmt.Sprintf("systolic pressure %d out of range [0, %d]", v.SystolicBP, maxSystolic))
	case v.DiastolicBP < 0 || v.DiastolicBP > maxDiastolic:
		return NewValidationError(fmt.Sprintf("diastolic pressure %d out of range [0, %d]", v.DiastolicBP, maxDiastolic))
	case v.SpO2 < 0 || v.SpO2 > maxSpO2:
		return NewValidationError(fmt.Sprintf("SpO2 %d out of range [0, %d]", v.SpO2, maxSpO2))
	case v.TempDeciC < minTempDeciC || v.TempDeciC > maxTempDeciC:
		return NewValidationError(fmt.Sprintf("temperature %d out of range [%d, %d]", v.TempDeciC, minTempDeciC, maxTempDeciC))
	}
	return nil
}
