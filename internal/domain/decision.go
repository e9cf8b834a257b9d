package domain

import "time"

// Decision enumerates the possible outcomes of one policy evaluation. BLOCK is
// a value the caller branches on, never an error.
type Decision string

const (
	DecisionAllow               Decision = "ALLOW"
	DecisionWarn                Decision = "WARN"
	DecisionRequireConfirmation Decision = "REQUIRE_CONFIRMATION"
	DecisionBlock               Decision = "BLOCK"
)

// decisionPriority orders decisions by restrictiveness. Unknown values sort
// below ALLOW so a corrupted reason can never relax a packet.
var decisionPriority = map[Decision]int{
	DecisionAllow:               0,
	DecisionWarn:                1,
	DecisionRequireConfirmation: 2,
	DecisionBlock:               3,
}

// Priority returns the restrictiveness rank of d.
func (d Decision) Priority() int {
	if p, ok := decisionPriority[d]; ok {
		return p
	}
	return -1
}

// MoreRestrictive returns the higher-priority of the two decisions.
func MoreRestrictive(a, b Decision) Decision {
	if b.Priority() > a.Priority() {
		return b
	}
	return a
}

// Severity weights a reason's contribution to confidence scoring.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Penalty is the confidence deduction applied per reason of this severity.
// The scoring function is deliberately simple and monotonic: every number in a
// packet must be explainable to an auditor.
func (s Severity) Penalty() float64 {
	switch s {
	case SeverityHigh:
		return 0.25
	case SeverityMedium:
		return 0.15
	case SeverityLow:
		return 0.05
	default:
		return 0
	}
}

// Reason is one rule's verdict contributing to a decision packet. Immutable
// once added to a builder.
type Reason struct {
	RuleID       string   `json:"rule_id"`
	Message      string   `json:"message"`
	Severity     Severity `json:"severity"`
	Decision     Decision `json:"decision"`
	EvidenceRefs []string `json:"evidence_refs"`
}

// EvidenceItem is a self-hashed fact supporting a decision. The hash is
// computed over type, source, and metadata at append time, never back-patched.
type EvidenceItem struct {
	Type     string         `json:"type"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
	Hash     string         `json:"hash"`
}

// NextAction describes a follow-up the caller may offer after a decision.
type NextAction struct {
	ActionID     string `json:"action_id"`
	Label        string `json:"label"`
	Endpoint     string `json:"endpoint"`
	RequiredRole string `json:"required_role"`
}

// AuditRef links a packet to the forensic audit record written at finalize.
type AuditRef struct {
	AuditID   string    `json:"audit_id"`
	Timestamp time.Time `json:"timestamp"`
}

// DecisionPacket is the auditable output of one policy evaluation. It is
// assembled once and never mutated afterwards; the audit record that results
// from it references the packet, never owns it.
type DecisionPacket struct {
	Decision           Decision       `json:"decision"`
	RuleIDs            []string       `json:"rule_ids"`
	Reasons            []Reason       `json:"reasons"`
	Evidence           []EvidenceItem `json:"evidence"`
	NextAllowedActions []NextAction   `json:"next_allowed_actions"`
	Confidence         float64        `json:"confidence"`
	InputHash          string         `json:"input_hash"`
	OutputHash         string         `json:"output_hash"`
	AuditRef           AuditRef       `json:"audit_ref"`
}

// Allowed reports whether the caller may proceed with the operation.
func (p DecisionPacket) Allowed() bool {
	return p.Decision != DecisionBlock
}
