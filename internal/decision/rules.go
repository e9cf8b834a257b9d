package decision

import "veris/internal/domain"

// resolveDecision picks the packet decision from the accumulated reasons.
// This is pure domain logic - no I/O, no side effects.
//
// Priority order: BLOCK > REQUIRE_CONFIRMATION > WARN > ALLOW. With no reasons
// the decision defaults to ALLOW. An explicit override forces the result; it
// exists for kill-switch style rules and should be rare.
func resolveDecision(reasons []domain.Reason, override *domain.Decision) domain.Decision {
	if override != nil {
		return *override
	}

	resolved := domain.DecisionAllow
	for _, r := range reasons {
		resolved = domain.MoreRestrictive(resolved, r.Decision)
	}
	return resolved
}

// scoreConfidence computes the packet confidence. Deliberately simple and
// monotonic - not a probabilistic model - because every number must be
// justifiable to an auditor.
//
// Start at 1.0, subtract a per-reason severity penalty, subtract an extra 0.10
// when the resolved decision is REQUIRE_CONFIRMATION or 0.20 when it is BLOCK,
// then clamp to [0, 1].
func scoreConfidence(reasons []domain.Reason, resolved domain.Decision) float64 {
	confidence := 1.0
	for _, r := range reasons {
		confidence -= r.Severity.Penalty()
	}

	switch resolved {
	case domain.DecisionRequireConfirmation:
		confidence -= 0.10
	case domain.DecisionBlock:
		confidence -= 0.20
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
