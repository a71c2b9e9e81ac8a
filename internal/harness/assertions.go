package harness

import (
	"fmt"

	"github.com/haclabs/simcore/internal/sim"
)

// CheckAssertions evaluates every assertion in the result's scenario against
// the final state. All assertions are evaluated; failures are joined into one
// error so a broken scenario reports everything at once.
func CheckAssertions(result *Result) error {
	var failures []string
	for i, a := range result.Scenario.Assertions {
		if err := checkAssertion(result, &a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	msg := failures[0]
	for _, f := range failures[1:] {
		msg += "; " + f
	}
	return fmt.Errorf("%s", msg)
}

func checkAssertion(result *Result, a *Assertion) error {
	switch a.Type {
	case AssertEventCount:
		return checkEventCount(result.Counts, a.Counts)
	case AssertStableIdentifiers:
		return checkStableIdentifiers(result)
	case AssertRunStatus:
		if string(result.FinalRun.Status) != a.Status {
			return fmt.Errorf("run status %q, want %q", result.FinalRun.Status, a.Status)
		}
		return nil
	case AssertHistoryCount:
		if len(result.History) != a.Count {
			return fmt.Errorf("%d history record(s), want %d", len(result.History), a.Count)
		}
		return nil
	case AssertAcknowledgedAlerts:
		return checkAcknowledgedAlerts(result.State.AcknowledgedAlerts, a.Alerts)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func checkEventCount(got sim.EventCounts, want map[string]int64) error {
	actual := map[string]int64{
		"vitals":    got.Vitals,
		"med_admin": got.MedAdmin,
		"alert_ack": got.AlertAck,
		"notes":     got.Notes,
		"total":     got.Total(),
	}
	for k, w := range want {
		if actual[k] != w {
			return fmt.Errorf("%s count %d, want %d", k, actual[k], w)
		}
	}
	return nil
}

// checkStableIdentifiers verifies that printed identifiers after the flow are
// the ones issued at launch. Resets delete events, never stable entities, so
// this must always hold.
func checkStableIdentifiers(result *Result) error {
	launched := map[string]string{}
	for _, p := range result.LaunchedPatients {
		launched["patient:"+p.SourceKey] = p.PrintedID
	}
	for _, b := range result.LaunchedBarcodes {
		launched["barcode:"+b.SourceKey] = b.Barcode
	}

	for _, p := range result.FinalPatients {
		want := launched["patient:"+p.SourceKey]
		if p.PrintedID != want {
			return fmt.Errorf("patient %q printed identifier changed: %q, was %q at launch", p.SourceKey, p.PrintedID, want)
		}
	}
	for _, b := range result.FinalBarcodes {
		want := launched["barcode:"+b.SourceKey]
		if b.Barcode != want {
			return fmt.Errorf("medication %q barcode changed: %q, was %q at launch", b.SourceKey, b.Barcode, want)
		}
	}

	if len(result.FinalPatients) != len(result.LaunchedPatients) {
		return fmt.Errorf("%d patient(s) after flow, %d at launch", len(result.FinalPatients), len(result.LaunchedPatients))
	}
	if len(result.FinalBarcodes) != len(result.LaunchedBarcodes) {
		return fmt.Errorf("%d barcode(s) after flow, %d at launch", len(result.FinalBarcodes), len(result.LaunchedBarcodes))
	}
	return nil
}

func checkAcknowledgedAlerts(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("acknowledged alerts %v, want %v", got, want)
	}
	// Both sides are sorted key lists.
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("acknowledged alerts %v, want %v", got, want)
		}
	}
	return nil
}
