// Package audit is the forensic audit log: an append-only, tamper-evident
// record of every consequential action in the platform. The public surface has
// no update or delete; immutability is enforced by this interface and by the
// database grants in the shipped migration.
package audit

import (
	"encoding/json"
	"time"

	"veris/internal/domain"
)

// Outcome classifies how the audited action ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeBlocked Outcome = "Blocked"
	OutcomeFailure Outcome = "Failure"
)

// Well-known actions and reason codes written by the core itself.
const (
	ActionCrossTenantAccess = "cross-tenant-access"
	ActionDecisionFinalized = "decision-finalized"
	ActionEventReplay       = "event-replay"

	ReasonOrgScopeViolation = "ORG_SCOPE_VIOLATION"
)

// Linkage ties an audit record to the decision packet that authorized the
// audited action.
type Linkage struct {
	DecisionID         string `json:"decision_id"`
	ReasoningComponent string `json:"reasoning_component"`
	ReasoningVersion   string `json:"reasoning_version"`
	MethodUsed         string `json:"method_used"`
	InputHash          string `json:"input_hash"`
	OutputHash         string `json:"output_hash"`
}

// Entry is what callers hand to Log.Record. The log fills in identity,
// timestamps, and request context before persisting.
type Entry struct {
	// ID may be pre-assigned when the caller must reference the record before
	// it is written (decision finalization hashes the audit ref into the
	// packet). Left empty, a fresh one is generated.
	ID string
	// Timestamp may be pre-assigned for the same reason: the timestamp hashed
	// into a decision packet and the one on its audit row must be the same
	// instant. Left zero, the request time is used.
	Timestamp      time.Time
	Actor          domain.Actor
	Action         string
	Resource       string
	Outcome        Outcome
	Classification domain.Classification
	TrainingMode   bool
	ReasonCode     string
	Before         any
	After          any
	Linkage        *Linkage
}

// Record is one immutable audit row. Never updated or deleted by application
// code once written.
type Record struct {
	ID             string                `json:"id"`
	OrgID          domain.OrgID          `json:"org_id"`
	ActorID        string                `json:"actor_id"`
	ActorRole      string                `json:"actor_role"`
	ActorEmail     string                `json:"actor_email"`
	Action         string                `json:"action"`
	Resource       string                `json:"resource"`
	Outcome        Outcome               `json:"outcome"`
	Classification domain.Classification `json:"classification"`
	TrainingMode   bool                  `json:"training_mode"`
	ReasonCode     string                `json:"reason_code,omitempty"`
	BeforeState    json.RawMessage       `json:"before_state,omitempty"`
	AfterState     json.RawMessage       `json:"after_state,omitempty"`
	Linkage        *Linkage              `json:"linkage,omitempty"`
	DeviceID       string                `json:"device_id,omitempty"`
	DeviceName     string                `json:"device_name,omitempty"`
	SessionID      string                `json:"session_id,omitempty"`
	IPAddress      string                `json:"ip_address,omitempty"`
	UserAgent      string                `json:"user_agent,omitempty"`
	RequestID      string                `json:"request_id,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}
