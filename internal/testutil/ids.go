package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable row identifiers for tests:
// "<prefix>-001", "<prefix>-002", and so on.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator with the given prefix.
func NewSequentialIDs(prefix string) *SequentialIDs {
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next sequential identifier.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%03d", g.prefix, g.n)
}

// SequentialPrintedIDs issues predictable printed identifiers for tests:
// "PT-TEST01", "PT-TEST02" for patients and "MED-TEST01", "MED-TEST02"
// for barcodes.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialPrintedIDs struct {
	mu       sync.Mutex
	patients int
	barcodes int
}

// NewSequentialPrintedIDs creates a fresh generator.
func NewSequentialPrintedIDs() *SequentialPrintedIDs {
	return &SequentialPrintedIDs{}
}

// PatientID returns the next patient wristband identifier.
func (g *SequentialPrintedIDs) PatientID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.patients++
	return fmt.Sprintf("PT-TEST%02d", g.patients), nil
}

// Barcode returns the next medication barcode.
func (g *SequentialPrintedIDs) Barcode() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.barcodes++
	return fmt.Sprintf("MED-TEST%02d", g.barcodes), nil
}
