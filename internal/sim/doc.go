// Package sim defines the domain model for the simulation lifecycle engine:
// instructor-authored templates, immutable versioned snapshots, live runs
// with reset-stable printed identifiers, append-only participant events, and
// archival history records.
//
// Snapshot documents are serialized as canonical JSON (see MarshalCanonical)
// and pinned by a domain-separated SHA-256 hash. A snapshot read whose
// document no longer matches its stored hash is treated as corrupt.
package sim
