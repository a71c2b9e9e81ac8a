package store

import (
	"context"
	"testing"

	"github.com/haclabs/simcore/internal/sim"
)

func TestClaimIdentifier_FirstClaimWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	claimed, err := s.ClaimIdentifier(ctx, "acme", "PT-4R7Q2M", sim.IdentifierPatient, testTime)
	if err != nil {
		t.Fatalf("ClaimIdentifier() failed: %v", err)
	}
	if !claimed {
		t.Error("first claim returned false, want true")
	}

	claimed, err = s.ClaimIdentifier(ctx, "acme", "PT-4R7Q2M", sim.IdentifierPatient, testTime)
	if err != nil {
		t.Fatalf("second ClaimIdentifier() failed: %v", err)
	}
	if claimed {
		t.Error("second claim returned true, want false")
	}
}

func TestClaimIdentifier_TenantIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.ClaimIdentifier(ctx, "acme", "PT-4R7Q2M", sim.IdentifierPatient, testTime); err != nil {
		t.Fatalf("ClaimIdentifier() failed: %v", err)
	}

	// Another tenant's namespace is independent.
	claimed, err := s.ClaimIdentifier(ctx, "globex", "PT-4R7Q2M", sim.IdentifierPatient, testTime)
	if err != nil {
		t.Fatalf("ClaimIdentifier() for other tenant failed: %v", err)
	}
	if !claimed {
		t.Error("claim in other tenant returned false, want true")
	}
}

func TestIdentifierIssued(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	issued, err := s.IdentifierIssued(ctx, "acme", "MED-9K3W7DQ2")
	if err != nil {
		t.Fatalf("IdentifierIssued() failed: %v", err)
	}
	if issued {
		t.Error("IdentifierIssued() = true before claim, want false")
	}

	if _, err := s.ClaimIdentifier(ctx, "acme", "MED-9K3W7DQ2", sim.IdentifierMedication, testTime); err != nil {
		t.Fatalf("ClaimIdentifier() failed: %v", err)
	}

	issued, err = s.IdentifierIssued(ctx, "acme", "MED-9K3W7DQ2")
	if err != nil {
		t.Fatalf("IdentifierIssued() failed: %v", err)
	}
	if !issued {
		t.Error("IdentifierIssued() = false after claim, want true")
	}
}
