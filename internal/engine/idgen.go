package engine

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator generates unique row identifiers for templates, snapshots,
// runs, events, and history records.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, making IDs
// sortable by creation time. This is helpful for debugging and debrief
// trace inspection.
//
// Uses github.com/google/uuid package for RFC 4122 compliant UUIDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined identifiers for testing.
//
// This enables deterministic test execution and golden trace comparison.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns IDs in order.
//
// Panics on exhaustion. This is a fail-fast approach to catch test
// misconfiguration (test created more entities than expected).
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// PrintedIDGenerator produces human-facing identifiers for printed wristbands
// and medication barcode labels. Uniqueness is enforced by the store's
// issued-identifier ledger, not by the generator; callers retry on collision.
type PrintedIDGenerator interface {
	PatientID() (string, error)
	Barcode() (string, error)
}

// Crockford base32: no I, L, O, U. Unambiguous when printed and read back
// by humans or scanners.
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const (
	patientIDPrefix = "PT-"
	barcodePrefix   = "MED-"

	patientIDLen = 6
	barcodeLen   = 8
)

// RandomPrintedIDs generates printed identifiers from crypto/rand.
//
// Thread-safety: RandomPrintedIDs is stateless and safe for concurrent use.
type RandomPrintedIDs struct{}

// PatientID returns an identifier like "PT-4R7Q2M".
func (RandomPrintedIDs) PatientID() (string, error) {
	suffix, err := randomBase32(patientIDLen)
	if err != nil {
		return "", fmt.Errorf("generate patient id: %w", err)
	}
	return patientIDPrefix + suffix, nil
}

// Barcode returns an identifier like "MED-9K3W7DQ2".
func (RandomPrintedIDs) Barcode() (string, error) {
	suffix, err := randomBase32(barcodeLen)
	if err != nil {
		return "", fmt.Errorf("generate barcode: %w", err)
	}
	return barcodePrefix + suffix, nil
}

func randomBase32(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = crockfordAlphabet[int(b)%len(crockfordAlphabet)]
	}
	return string(out), nil
}
