package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"veris/internal/audit"
	"veris/internal/canonical"
	"veris/internal/decision/metrics"
	"veris/internal/domain"
	"veris/pkg/requestcontext"
)

// Component identity stamped into every audit linkage so a verifier knows
// which reasoning implementation produced a packet.
const (
	ReasoningComponent = "veris-decision-engine"
	ReasoningVersion   = "1.0"
	MethodRuleChain    = "rule_chain"
)

// FinalizeRequest carries the business context for one finalization.
type FinalizeRequest struct {
	Actor          domain.Actor
	Action         string
	Resource       string
	Classification domain.Classification
	TrainingMode   bool
}

// Finalizer assigns identity to built packets, hashes them, and writes the
// forensic audit record. Decision evaluation itself never fails for business
// reasons; finalization may fail only on storage errors, which propagate
// because an un-audited decision is a compliance gap.
type Finalizer struct {
	log     *audit.Log
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures the Finalizer.
type Option func(*Finalizer)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Finalizer) { f.metrics = m }
}

// NewFinalizer creates a finalizer writing to the given audit log.
func NewFinalizer(log *audit.Log, opts ...Option) *Finalizer {
	f := &Finalizer{
		log:    log,
		tracer: otel.Tracer("veris/decision"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Finalize completes a built packet: fresh decision id, audit reference,
// output hash over the entire packet, then the audit write.
//
// The order is deliberate - set audit ref, hash packet, write audit using that
// hash - so the packet's own hash covers the audit timestamp without the audit
// write needing to know the hash in advance. The returned packet is the
// caller's authorization to proceed; if the audit write fails, no packet is
// returned and the business effect must not happen.
func (f *Finalizer) Finalize(ctx context.Context, packet domain.DecisionPacket, req FinalizeRequest) (domain.DecisionPacket, error) {
	ctx, span := f.tracer.Start(ctx, "decision.finalize")
	defer span.End()
	start := time.Now()

	decisionID := uuid.NewString()
	auditID := uuid.NewString()
	// One instant for both the hashed audit ref and the stored audit row, so a
	// verifier re-deriving output_hash from the audit record gets a match.
	auditTime := requestcontext.Now(ctx).UTC()
	packet.AuditRef = domain.AuditRef{
		AuditID:   auditID,
		Timestamp: auditTime,
	}

	// The output hash covers everything except itself.
	packet.OutputHash = ""
	outputHash, err := canonical.Hash(packet)
	if err != nil {
		return domain.DecisionPacket{}, fmt.Errorf("decision: hash packet %s: %w", decisionID, err)
	}
	packet.OutputHash = outputHash

	outcome := audit.OutcomeSuccess
	if !packet.Allowed() {
		outcome = audit.OutcomeBlocked
	}

	_, err = f.log.Record(ctx, audit.Entry{
		ID:             auditID,
		Timestamp:      auditTime,
		Actor:          req.Actor,
		Action:         req.Action,
		Resource:       req.Resource,
		Outcome:        outcome,
		Classification: req.Classification,
		TrainingMode:   req.TrainingMode,
		Linkage: &audit.Linkage{
			DecisionID:         decisionID,
			ReasoningComponent: ReasoningComponent,
			ReasoningVersion:   ReasoningVersion,
			MethodUsed:         MethodRuleChain,
			InputHash:          packet.InputHash,
			OutputHash:         outputHash,
		},
	})
	if err != nil {
		return domain.DecisionPacket{}, fmt.Errorf("decision: finalize %s: %w", decisionID, err)
	}

	if f.metrics != nil {
		f.metrics.ObserveFinalize(string(packet.Decision), time.Since(start))
	}
	return packet, nil
}
