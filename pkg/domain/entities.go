// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by forensicvault.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityCase identifies an investigation case record.
	EntityCase EntityType = "case"
	// EntityEvidence identifies an evidence item record.
	EntityEvidence EntityType = "evidence"
	// EntityCustodyTransfer identifies an append-only custody ledger row.
	EntityCustodyTransfer EntityType = "custody_transfer"
)

// CaseStatus enumerates the lifecycle states of an investigation case.
type CaseStatus string

// Canonical case statuses.
const (
	CaseStatusActive    CaseStatus = "active"
	CaseStatusClosed    CaseStatus = "closed"
	CaseStatusSuspended CaseStatus = "suspended"
	CaseStatusArchived  CaseStatus = "archived"
)

// Priority ranks case urgency.
type Priority string

// Canonical case priorities.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// CaseType classifies the investigation domain of a case.
type CaseType string

// Known case types. An empty case type is allowed.
const (
	CaseTypeFraud                CaseType = "fraud"
	CaseTypeCybercrime           CaseType = "cybercrime"
	CaseTypeDataBreach           CaseType = "data_breach"
	CaseTypeIntellectualProperty CaseType = "intellectual_property"
	CaseTypeGeneral              CaseType = "general"
)

// EvidenceStatus enumerates the examination workflow of an evidence item.
type EvidenceStatus string

// Canonical evidence statuses.
const (
	EvidenceStatusCollected  EvidenceStatus = "collected"
	EvidenceStatusProcessing EvidenceStatus = "processing"
	EvidenceStatusAnalyzed   EvidenceStatus = "analyzed"
	EvidenceStatusReviewed   EvidenceStatus = "reviewed"
	EvidenceStatusArchived   EvidenceStatus = "archived"
	EvidenceStatusReturned   EvidenceStatus = "returned"
	EvidenceStatusDestroyed  EvidenceStatus = "destroyed"
)

// EvidenceState records the physical condition of an item on intake.
type EvidenceState string

// Known physical states.
const (
	EvidenceStateClean   EvidenceState = "clean"
	EvidenceStateDirty   EvidenceState = "dirty"
	EvidenceStateDamaged EvidenceState = "damaged"
)

// DeviceType selects the attribute schema applied to an evidence item.
type DeviceType string

// Registered device types.
const (
	DeviceComputer DeviceType = "computer"
	DeviceMobile   DeviceType = "mobile"
	DeviceStorage  DeviceType = "storage"
	DeviceNetwork  DeviceType = "network"
	DeviceCloud    DeviceType = "cloud"
	DeviceDrone    DeviceType = "drone"
	DeviceGaming   DeviceType = "gaming"
	DeviceCar      DeviceType = "car"
	DeviceIoT      DeviceType = "iot"
	DeviceMemory   DeviceType = "memory"
	DeviceVideo    DeviceType = "video"
	DeviceDVRNVR   DeviceType = "dvr_nvr"
	DeviceOther    DeviceType = "other"
)

var deviceTypeLabels = map[DeviceType]string{
	DeviceComputer: "Computer/Laptop",
	DeviceMobile:   "Mobile Device",
	DeviceStorage:  "Storage Media",
	DeviceNetwork:  "Network Device",
	DeviceCloud:    "Cloud Account",
	DeviceDrone:    "Drone",
	DeviceGaming:   "Gaming Console",
	DeviceCar:      "Vehicle",
	DeviceIoT:      "IoT Device",
	DeviceMemory:   "Memory Dump",
	DeviceVideo:    "Video Footage",
	DeviceDVRNVR:   "DVR/NVR",
	DeviceOther:    "Other",
}

// Label returns the display label for a device type, or the raw value when unknown.
func (d DeviceType) Label() string {
	if label, ok := deviceTypeLabels[d]; ok {
		return label
	}
	return string(d)
}

// Known reports whether the device type is registered.
func (d DeviceType) Known() bool {
	_, ok := deviceTypeLabels[d]
	return ok
}

// DeviceTypes returns the registered device types in declaration order.
func DeviceTypes() []DeviceType {
	return []DeviceType{
		DeviceComputer, DeviceMobile, DeviceStorage, DeviceNetwork, DeviceCloud, DeviceDrone,
		DeviceGaming, DeviceCar, DeviceIoT, DeviceMemory, DeviceVideo, DeviceDVRNVR, DeviceOther,
	}
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Case is an investigation that groups evidence items.
type Case struct {
	Base
	CaseNumber       string     `json:"case_number"`
	Name             string     `json:"case_name" validate:"required,max=255"`
	Description      string     `json:"description,omitempty"`
	Status           CaseStatus `json:"status" validate:"omitempty,oneof=active closed suspended archived"`
	Priority         Priority   `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	CaseType         CaseType   `json:"case_type,omitempty" validate:"omitempty,oneof=fraud cybercrime data_breach intellectual_property general"`
	Department       string     `json:"department,omitempty" validate:"max=20"`
	Prosecutor       string     `json:"prosecutor,omitempty" validate:"max=200"`
	Jurisdiction     string     `json:"jurisdiction,omitempty" validate:"max=200"`
	IncidentLocation string     `json:"incident_location,omitempty" validate:"max=500"`
	IncidentAt       *time.Time `json:"incident_date,omitempty"`
	OpenedAt         time.Time  `json:"date_opened"`
	ClosedAt         *time.Time `json:"date_closed,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
}

// Content references the digital content attached to an evidence item and
// the fingerprint computed from its first attachment.
type Content struct {
	Key              string     `json:"key,omitempty"`
	Name             string     `json:"name,omitempty"`
	ContentType      string     `json:"content_type,omitempty"`
	SizeBytes        int64      `json:"size_bytes,omitempty"`
	HashMD5          string     `json:"hash_md5,omitempty"`
	HashSHA1         string     `json:"hash_sha1,omitempty"`
	HashSHA256       string     `json:"hash_sha256,omitempty"`
	FingerprintedAt  *time.Time `json:"fingerprinted_at,omitempty"`
	FingerprintedKey string     `json:"fingerprinted_key,omitempty"`
}

// Fingerprinted reports whether digests have been recorded.
func (c Content) Fingerprinted() bool {
	return c.HashMD5 != ""
}

// Stale reports whether the referenced content differs from the content the
// digests were computed from.
func (c Content) Stale() bool {
	return c.Fingerprinted() && c.Key != c.FingerprintedKey
}

// Evidence is a physical or digital item under custody.
type Evidence struct {
	Base
	EvidenceNumber    string         `json:"evidence_number"`
	IBSNumber         string         `json:"ibs_number,omitempty" validate:"max=50"`
	CaseID            *string        `json:"case_id,omitempty"`
	DeviceType        DeviceType     `json:"device_type" validate:"omitempty,max=20"`
	ItemName          string         `json:"item_name" validate:"max=255"`
	Description       string         `json:"description,omitempty"`
	Brand             string         `json:"brand,omitempty" validate:"max=100"`
	Model             string         `json:"model,omitempty" validate:"max=100"`
	Color             string         `json:"color,omitempty" validate:"max=50"`
	SerialNumber      string         `json:"serial_number,omitempty" validate:"max=100"`
	IMEI              string         `json:"imei,omitempty" validate:"max=100"`
	IMEINumbers       []string       `json:"imei_numbers,omitempty"`
	Status            EvidenceStatus `json:"status" validate:"omitempty,oneof=collected processing analyzed reviewed archived returned destroyed"`
	State             EvidenceState  `json:"state,omitempty" validate:"omitempty,oneof=clean dirty damaged"`
	StorageLocation   string         `json:"storage_location,omitempty" validate:"max=500"`
	CollectedBy       string         `json:"collected_by,omitempty" validate:"max=200"`
	CollectedAt       time.Time      `json:"collected_date"`
	CurrentDepartment string         `json:"current_department,omitempty" validate:"max=20"`
	ReceivedBy        string         `json:"received_by,omitempty" validate:"max=200"`
	ReceivedAt        *time.Time     `json:"received_date,omitempty"`
	Content           Content        `json:"content"`
	DeviceData        map[string]any `json:"device_specific_data,omitempty"`
	Tags              []string       `json:"tags,omitempty"`
	Notes             string         `json:"notes,omitempty"`
}

// Unassigned reports whether the evidence is not bound to any case.
func (e Evidence) Unassigned() bool {
	return e.CaseID == nil || *e.CaseID == ""
}

// CustodyTransfer is an immutable row in the chain-of-custody ledger.
// Sequence is assigned by the store and defines the causal order of rows.
type CustodyTransfer struct {
	ID             string    `json:"id"`
	EvidenceID     string    `json:"evidence_id"`
	FromDepartment string    `json:"from_department"`
	ToDepartment   string    `json:"to_department"`
	TransferredBy  string    `json:"transferred_by,omitempty"`
	ReceivedBy     string    `json:"received_by,omitempty"`
	TransferredAt  time.Time `json:"transfer_date"`
	Notes          string    `json:"notes,omitempty"`
	Sequence       int64     `json:"sequence"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Rule + ": " + v.Message
		}
	}
	return "transaction blocked by rules"
}
