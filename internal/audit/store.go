package audit

import (
	"context"

	"veris/internal/domain"
)

// Store is the append-only persistence contract. There is deliberately no
// update or delete: application-level immutability is half of the guarantee,
// the revoked UPDATE/DELETE grants in the migration are the other half.
type Store interface {
	Append(ctx context.Context, rec Record) error
	ListByOrg(ctx context.Context, orgID domain.OrgID) ([]Record, error)
	ListByDecision(ctx context.Context, decisionID string) ([]Record, error)
}
