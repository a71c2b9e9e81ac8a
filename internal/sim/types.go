package sim

import "time"

// Actor identifies the authenticated caller of an operation.
// Authentication and role checks happen outside the engine; the engine only
// records attribution and enforces tenant scoping.
type Actor struct {
	ID     string
	Tenant string
	Role   string // "instructor" | "student" | "system"
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunArchived  RunStatus = "archived"
)

// ValidRunStatus reports whether s is a known run status.
func ValidRunStatus(s RunStatus) bool {
	switch s {
	case RunActive, RunPaused, RunCompleted, RunArchived:
		return true
	}
	return false
}

// Template is an instructor-owned simulation blueprint.
// Templates are edited freely outside simulation time and never mutated by a
// running simulation; snapshots capture their state at a point in time.
type Template struct {
	ID          string
	Tenant      string
	Name        string
	Description string
	Specialty   string
	Difficulty  string
	Active      bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	State       TemplateState
}

// TemplateState is the clinical record graph a template describes.
// All quantities are integers: temperatures in tenths of a degree Celsius,
// doses in micrograms. Canonical JSON forbids floats, and snapshot documents
// must round-trip canonically.
type TemplateState struct {
	Patients    []PatientDef
	Medications []MedicationDef
	Alerts      []AlertDef
}

// PatientDef describes one simulated patient in a template.
type PatientDef struct {
	Key            string // stable key within the template, e.g. "patient-1"
	Name           string
	DateOfBirth    string
	Sex            string
	Diagnosis      string
	Allergies      []string
	BaselineVitals VitalsReading
}

// VitalsReading is one set of vital signs.
// TempDeciC is tenths of a degree Celsius (37.2C == 372).
type VitalsReading struct {
	HeartRate   int64
	RespRate    int64
	SystolicBP  int64
	DiastolicBP int64
	SpO2        int64
	TempDeciC   int64
}

// MedicationDef describes one medication order in a template.
// DoseUCG is micrograms (500mg == 500000).
type MedicationDef struct {
	Key        string
	PatientKey string
	Name       string
	DoseUCG    int64
	Route      string
	Frequency  string
}

// AlertDef describes one clinical alert seeded by a template.
type AlertDef struct {
	Key        string
	PatientKey string
	Severity   string
	Message    string
}

// Snapshot is an immutable, versioned capture of a template's state.
// Document is canonical JSON; DocHash pins it. Versions are monotonically
// increasing per template, starting at 1.
type Snapshot struct {
	ID          string
	TemplateID  string
	Version     int64
	Name        string
	Description string
	Document    []byte
	DocHash     string
	CreatedBy   string
	CreatedAt   time.Time
}

// Run is a live simulation session launched from a snapshot.
//
// Generation is the reset epoch: events are stamped with the run's current
// generation, and each reset bumps it. A write that commits after a reset
// carries the new generation and survives; one that commits before is swept.
type Run struct {
	ID          string
	SnapshotID  string
	TemplateID  string
	Tenant      string
	Name        string
	Status      RunStatus
	Generation  int64
	CreatedBy   string
	StartedAt   time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// RunPatient is a run-scoped stable entity carrying a printed patient
// identifier. Created once at launch; never touched by reset.
type RunPatient struct {
	ID          string
	RunID       string
	SourceKey   string // PatientDef.Key in the snapshot document
	PrintedID   string // e.g. "PT-4R7Q2M"; survives every reset
	DisplayName string
	Document    []byte // canonical JSON copy of the PatientDef
}

// BarcodeEntry is a run-scoped stable entity carrying a printed medication
// barcode. Created once at launch; never touched by reset.
type BarcodeEntry struct {
	ID         string
	RunID      string
	SourceKey  string // MedicationDef.Key in the snapshot document
	Barcode    string // e.g. "MED-9K3W7DQ2"; survives every reset
	Medication string
	Document   []byte // canonical JSON copy of the MedicationDef
}

// IdentifierKind distinguishes namespaces in the issued-identifier ledger.
type IdentifierKind string

const (
	IdentifierPatient    IdentifierKind = "patient"
	IdentifierMedication IdentifierKind = "medication"
)

// EventMeta is the header shared by every event row.
// Seq is a per-engine monotonic logical sequence used, together with the row
// id, for deterministic ordering. Generation is the run's reset epoch at the
// time the event committed.
type EventMeta struct {
	ID         string
	RunID      string
	Generation int64
	ActorID    string
	RecordedAt time.Time
	Seq        int64
}

// VitalsEvent records one set of vital signs for a run patient.
type VitalsEvent struct {
	EventMeta
	RunPatientID string
	Vitals       VitalsReading
}

// MedAdminEvent records one medication administration, resolved from a
// scanned barcode.
type MedAdminEvent struct {
	EventMeta
	BarcodeID string // BarcodeEntry.ID
	DoseUCG   int64
	Route     string
	Notes     string
}

// AlertAckEvent records the acknowledgment of a clinical alert.
type AlertAckEvent struct {
	EventMeta
	AlertRef string // AlertDef.Key in the snapshot document
	Notes    string
}

// NoteKind separates participant notes from engine-written audit notes.
type NoteKind string

const (
	NoteUser   NoteKind = "user"
	NoteSystem NoteKind = "system"
)

// NoteEvent records a free-text note, optionally tied to a run patient.
// Reset appends exactly one system note describing itself.
type NoteEvent struct {
	EventMeta
	RunPatientID string // optional; empty for run-level notes
	Kind         NoteKind
	Content      string
}

// EventCounts holds per-store event totals for a run.
type EventCounts struct {
	Vitals   int64 `json:"vitals"`
	MedAdmin int64 `json:"med_admin"`
	AlertAck int64 `json:"alert_ack"`
	Notes    int64 `json:"notes"`
}

// Total sums all four stores.
func (c EventCounts) Total() int64 {
	return c.Vitals + c.MedAdmin + c.AlertAck + c.Notes
}

// Participant is one actor's denormalized activity summary, copied into a
// history record at completion.
type Participant struct {
	ActorID    string    `json:"actor_id"`
	EventCount int64     `json:"event_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// HistoryRecord is an independent archival copy made when a run completes.
// It shares no live references with the run: later resets or deletions of
// the run do not affect it.
type HistoryRecord struct {
	ID           string
	RunID        string
	Name         string // "<run name> - <completion timestamp>"
	OriginalName string
	StartedAt    time.Time
	CompletedAt  time.Time
	Participants []Participant
	EventCounts  EventCounts
	CreatedAt    time.Time
}

// ResetReport describes one completed reset pass.
type ResetReport struct {
	RunID      string
	Deleted    EventCounts
	Total      int64
	Generation int64 // the run's generation after the reset
	ResetAt    time.Time
}
