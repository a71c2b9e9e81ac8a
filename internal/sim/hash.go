package sim

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content hashing. The version suffix enables future
// algorithm migration without ambiguity.
const (
	DomainSnapshot = "simcore/snapshot/v1"
	DomainTemplate = "simcore/template/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotDocHash computes the pinning hash for a snapshot document.
// The document must already be canonical JSON; the hash is what makes
// snapshot immutability checkable on every read.
func SnapshotDocHash(document []byte) string {
	return hashWithDomain(DomainSnapshot, document)
}

// TemplateStateHash computes a content hash for a template's state.
// Used to detect whether an import actually changed anything.
func TemplateStateHash(document []byte) string {
	return hashWithDomain(DomainTemplate, document)
}
