// Package decision turns rule evaluations into auditable, hashed decision
// packets. A Builder accumulates one evaluation's reasons and evidence, Build
// assembles the packet, and the Finalizer stamps identity, hashes the whole
// packet, and writes the forensic audit record.
package decision

import (
	"context"
	"fmt"

	"veris/internal/canonical"
	"veris/internal/domain"
	strs "veris/pkg/platform/strings"
)

// PolicyFlags are the global policy toggles active at evaluation time. They
// are passed explicitly and captured as evidence so an already-finalized
// packet can never be reinterpreted under a later flag state.
type PolicyFlags struct {
	SmartModeEnabled bool
}

// Builder accumulates reasons and evidence for one evaluation. Not safe for
// concurrent use; one evaluation owns one builder.
type Builder struct {
	flags    PolicyFlags
	reasons  []domain.Reason
	evidence []domain.EvidenceItem
	actions  []domain.NextAction
	override *domain.Decision
}

// NewBuilder starts a fresh evaluation under the given policy flags.
func NewBuilder(flags PolicyFlags) *Builder {
	return &Builder{flags: flags}
}

// AddReason records one rule's verdict. Reasons are immutable once added.
func (b *Builder) AddReason(r domain.Reason) {
	b.reasons = append(b.reasons, r)
}

// AddEvidence appends a self-hashed evidence item. The hash covers type,
// source, and metadata at append time; it is never back-patched.
func (b *Builder) AddEvidence(typ, source string, metadata map[string]any) (domain.EvidenceItem, error) {
	hash, err := canonical.Hash(map[string]any{
		"type":     typ,
		"source":   source,
		"metadata": metadata,
	})
	if err != nil {
		return domain.EvidenceItem{}, fmt.Errorf("decision: hash evidence %s/%s: %w", typ, source, err)
	}

	item := domain.EvidenceItem{Type: typ, Source: source, Metadata: metadata, Hash: hash}
	b.evidence = append(b.evidence, item)
	return item, nil
}

// AddNextAction offers a follow-up the caller may surface after the decision.
func (b *Builder) AddNextAction(a domain.NextAction) {
	b.actions = append(b.actions, a)
}

// Override forces the resolved decision regardless of reason priorities. Used
// sparingly; the override is still subject to confidence adjustments.
func (b *Builder) Override(d domain.Decision) {
	b.override = &d
}

// Build assembles the decision packet for the given input payload. The input
// is hashed through the canonicalizer, a final evidence item snapshots the
// active policy flags, and audit linkage fields are left blank for Finalize.
//
// Build never fails for business reasons - BLOCK is a value, not an error.
// The only failure mode is an unhashable input.
func (b *Builder) Build(ctx context.Context, input any) (domain.DecisionPacket, error) {
	inputHash, err := canonical.Hash(input)
	if err != nil {
		return domain.DecisionPacket{}, fmt.Errorf("decision: hash input payload: %w", err)
	}

	if _, err := b.AddEvidence("policy_flags", "decision-engine", map[string]any{
		"smart_mode_enabled": b.flags.SmartModeEnabled,
	}); err != nil {
		return domain.DecisionPacket{}, err
	}

	resolved := resolveDecision(b.reasons, b.override)

	ruleIDs := make([]string, 0, len(b.reasons))
	for _, r := range b.reasons {
		ruleIDs = append(ruleIDs, r.RuleID)
	}

	return domain.DecisionPacket{
		Decision:           resolved,
		RuleIDs:            strs.DedupeAndTrim(ruleIDs),
		Reasons:            append([]domain.Reason{}, b.reasons...),
		Evidence:           append([]domain.EvidenceItem{}, b.evidence...),
		NextAllowedActions: append([]domain.NextAction{}, b.actions...),
		Confidence:         scoreConfidence(b.reasons, resolved),
		InputHash:          inputHash,
	}, nil
}
