package memory

import (
	"context"
	"sync"

	"veris/internal/domain"
	"veris/internal/eventbus"
)

// InMemoryStore keeps event records in memory for unit tests and local runs.
// The single mutex gives the same insert-or-fetch atomicity the Postgres
// store gets from its unique index.
type InMemoryStore struct {
	mu      sync.Mutex
	records []eventbus.Record
	byKey   map[string]int // org+key -> index into records
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byKey: make(map[string]int)}
}

func dedupeKey(orgID domain.OrgID, idempotencyKey string) string {
	return string(orgID) + "\x00" + idempotencyKey
}

func (s *InMemoryStore) Insert(_ context.Context, rec eventbus.Record) (eventbus.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.IdempotencyKey != "" {
		key := dedupeKey(rec.OrgID, rec.IdempotencyKey)
		if idx, ok := s.byKey[key]; ok {
			return s.records[idx], false, nil
		}
		s.byKey[key] = len(s.records)
	}
	s.records = append(s.records, rec)
	return rec, true, nil
}

func (s *InMemoryStore) ListByOrg(_ context.Context, orgID domain.OrgID, eventTypes []string, trainingMode *bool) ([]eventbus.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	typeFilter := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		typeFilter[t] = struct{}{}
	}

	var out []eventbus.Record
	for _, rec := range s.records {
		if rec.OrgID != orgID {
			continue
		}
		if len(typeFilter) > 0 {
			if _, ok := typeFilter[rec.EventType]; !ok {
				continue
			}
		}
		if trainingMode != nil && rec.TrainingMode != *trainingMode {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Len reports how many records are stored. Test helper.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
