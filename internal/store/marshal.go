package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/haclabs/simcore/internal/sim"
)

// Timestamps are stored as RFC 3339 UTC text. Nanosecond precision keeps
// round-trips exact for deterministic test clocks.
const timeLayout = time.RFC3339Nano

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// marshalVitals converts a vitals reading to canonical JSON TEXT for storage.
func marshalVitals(v sim.VitalsReading) (string, error) {
	data, err := sim.MarshalCanonical(map[string]any{
		"heart_rate":   v.HeartRate,
		"resp_rate":    v.RespRate,
		"systolic_bp":  v.SystolicBP,
		"diastolic_bp": v.DiastolicBP,
		"spo2":         v.SpO2,
		"temp_deci_c":  v.TempDeciC,
	})
	if err != nil {
		return "", fmt.Errorf("marshal vitals: %w", err)
	}
	return string(data), nil
}

// unmarshalVitals parses a stored vitals payload.
func unmarshalVitals(data string) (sim.VitalsReading, error) {
	var v struct {
		HeartRate   int64 `json:"heart_rate"`
		RespRate    int64 `json:"resp_rate"`
		SystolicBP  int64 `json:"systolic_bp"`
		DiastolicBP int64 `json:"diastolic_bp"`
		SpO2        int64 `json:"spo2"`
		TempDeciC   int64 `json:"temp_deci_c"`
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return sim.VitalsReading{}, fmt.Errorf("unmarshal vitals: %w", err)
	}
	return sim.VitalsReading{
		HeartRate:   v.HeartRate,
		RespRate:    v.RespRate,
		SystolicBP:  v.SystolicBP,
		DiastolicBP: v.DiastolicBP,
		SpO2:        v.SpO2,
		TempDeciC:   v.TempDeciC,
	}, nil
}

// marshalParticipants serializes the denormalized participant roster copied
// into a history record. Plain JSON with sorted struct fields; the roster is
// archival data, not content-addressed.
func marshalParticipants(ps []sim.Participant) (string, error) {
	if ps == nil {
		ps = []sim.Participant{}
	}
	data, err := json.Marshal(ps)
	if err != nil {
		return "", fmt.Errorf("marshal participants: %w", err)
	}
	return string(data), nil
}

func unmarshalParticipants(data string) ([]sim.Participant, error) {
	var ps []sim.Participant
	if err := json.Unmarshal([]byte(data), &ps); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	if ps == nil {
		ps = []sim.Participant{}
	}
	return ps, nil
}

func marshalEventCounts(c sim.EventCounts) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal event counts: %w", err)
	}
	return string(data), nil
}

func unmarshalEventCounts(data string) (sim.EventCounts, error) {
	var c sim.EventCounts
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return sim.EventCounts{}, fmt.Errorf("unmarshal event counts: %w", err)
	}
	return c, nil
}
