package domain

// Classification is the sensitivity tier attached to audit records. Tiers form
// a lattice: escalation to a more restrictive tier is always legal,
// de-escalation is never performed by the core.
type Classification string

const (
	ClassificationNonPHI           Classification = "NON_PHI"
	ClassificationOps              Classification = "OPS"
	ClassificationPHI              Classification = "PHI"
	ClassificationBillingSensitive Classification = "BILLING_SENSITIVE"
	ClassificationLegalHold        Classification = "LEGAL_HOLD"
)

var classificationRank = map[Classification]int{
	ClassificationNonPHI:           0,
	ClassificationOps:              1,
	ClassificationPHI:              2,
	ClassificationBillingSensitive: 3,
	ClassificationLegalHold:        4,
}

// Rank returns the restrictiveness rank of c. Unknown tiers rank lowest.
func (c Classification) Rank() int {
	if r, ok := classificationRank[c]; ok {
		return r
	}
	return -1
}

// Escalate returns the more restrictive of c and to. It never de-escalates.
func (c Classification) Escalate(to Classification) Classification {
	if to.Rank() > c.Rank() {
		return to
	}
	return c
}

// MostRestrictiveClassification is the tier forced onto audit records for
// scope violations: any cross-tenant access attempt is treated as a legal
// event regardless of the resource's normal tier.
func MostRestrictiveClassification() Classification {
	return ClassificationLegalHold
}
