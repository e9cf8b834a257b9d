package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"veris/internal/domain"
)

func TestNormalizeOrgID(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want domain.OrgID
	}{
		{"int", 42, "42"},
		{"int64", int64(42), "42"},
		{"numeric string", "42", "42"},
		{"float from json", float64(42), "42"},
		{"uuid uppercase", "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"uuid lowercase", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"opaque string", "org-east-1", "org-east-1"},
		{"whitespace", "  42 ", "42"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.NormalizeOrgID(tc.in))
		})
	}
}

func TestNormalizeOrgID_IntAndStringCompareEqual(t *testing.T) {
	assert.Equal(t, domain.NormalizeOrgID(7), domain.NormalizeOrgID("7"))
}

func TestDecisionPriority(t *testing.T) {
	assert.Equal(t, 0, domain.DecisionAllow.Priority())
	assert.Equal(t, 1, domain.DecisionWarn.Priority())
	assert.Equal(t, 2, domain.DecisionRequireConfirmation.Priority())
	assert.Equal(t, 3, domain.DecisionBlock.Priority())
	assert.Equal(t, -1, domain.Decision("bogus").Priority())
}

func TestMoreRestrictive(t *testing.T) {
	assert.Equal(t, domain.DecisionBlock, domain.MoreRestrictive(domain.DecisionWarn, domain.DecisionBlock))
	assert.Equal(t, domain.DecisionBlock, domain.MoreRestrictive(domain.DecisionBlock, domain.DecisionAllow))
	assert.Equal(t, domain.DecisionAllow, domain.MoreRestrictive(domain.DecisionAllow, domain.Decision("bogus")))
}

func TestSeverityPenalty(t *testing.T) {
	assert.InDelta(t, 0.05, domain.SeverityLow.Penalty(), 1e-9)
	assert.InDelta(t, 0.15, domain.SeverityMedium.Penalty(), 1e-9)
	assert.InDelta(t, 0.25, domain.SeverityHigh.Penalty(), 1e-9)
}

func TestClassificationEscalate(t *testing.T) {
	assert.Equal(t, domain.ClassificationLegalHold, domain.ClassificationOps.Escalate(domain.ClassificationLegalHold))
	// De-escalation is a no-op.
	assert.Equal(t, domain.ClassificationLegalHold, domain.ClassificationLegalHold.Escalate(domain.ClassificationNonPHI))
	assert.Equal(t, domain.ClassificationPHI, domain.ClassificationPHI.Escalate(domain.ClassificationPHI))
}

func TestPacketAllowed(t *testing.T) {
	assert.True(t, domain.DecisionPacket{Decision: domain.DecisionWarn}.Allowed())
	assert.False(t, domain.DecisionPacket{Decision: domain.DecisionBlock}.Allowed())
}
