package memory

import (
	"context"
	"sync"

	"veris/internal/audit"
	"veris/internal/domain"
)

// InMemoryStore keeps audit records in memory for unit tests and local runs.
// Append-only like its Postgres counterpart.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *InMemoryStore) ListByOrg(_ context.Context, orgID domain.OrgID) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Record
	for _, rec := range s.records {
		if rec.OrgID == orgID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByDecision(_ context.Context, decisionID string) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Record
	for _, rec := range s.records {
		if rec.Linkage != nil && rec.Linkage.DecisionID == decisionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// All returns every stored record in append order. Test helper.
func (s *InMemoryStore) All() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Record{}, s.records...)
}
