package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/haclabs/simcore/internal/sim"
)

// TraceSnapshot captures the parts of a scenario execution that golden files
// pin: the final run shape and the full debrief trace. Serialized with
// canonical JSON so byte comparison is stable.
type TraceSnapshot struct {
	ScenarioName string
	RunStatus    string
	Generation   int64
	Trace        []TraceLine
}

// TraceLine is one trace event flattened for golden output.
type TraceLine struct {
	Seq        int64
	Op         string
	ActorID    string
	Generation int64
	Ref        string
	Summary    string
}

// newTraceSnapshot flattens a result into its golden form.
func newTraceSnapshot(result *Result) TraceSnapshot {
	snap := TraceSnapshot{
		ScenarioName: result.Scenario.Name,
		RunStatus:    string(result.FinalRun.Status),
		Generation:   result.FinalRun.Generation,
	}
	for _, ev := range result.Trace {
		snap.Trace = append(snap.Trace, TraceLine{
			Seq:        ev.Seq,
			Op:         ev.Op,
			ActorID:    ev.ActorID,
			Generation: ev.Generation,
			Ref:        ev.Ref,
			Summary:    ev.Summary,
		})
	}
	return snap
}

// toCanonicalMap converts the snapshot to plain maps for canonical JSON
// serialization.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, line := range s.Trace {
		traceList[i] = map[string]any{
			"seq":        line.Seq,
			"op":         line.Op,
			"actor_id":   line.ActorID,
			"generation": line.Generation,
			"ref":        line.Ref,
			"summary":    line.Summary,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run_status":    s.RunStatus,
		"generation":    s.Generation,
		"trace":         traceList,
	}
}

// RunWithGolden executes a scenario, evaluates its assertions, and compares
// the trace snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if err := CheckAssertions(result); err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-executed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := sim.MarshalCanonical(newTraceSnapshot(result).toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
