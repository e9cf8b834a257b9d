package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veris/internal/eventbus"
	"veris/internal/eventbus/store/memory"
)

// Concurrent duplicate submissions must result in exactly one insert; every
// loser gets the winner's record back.
func TestInsert_ConcurrentDuplicates(t *testing.T) {
	store := memory.NewInMemoryStore()
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var inserts atomic.Int32
	winners := make([]eventbus.Record, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := eventbus.Record{
				ID:             uuid.NewString(),
				OrgID:          "42",
				EventType:      "billing.invoice.created",
				IdempotencyKey: "same-key",
			}
			stored, inserted, err := store.Insert(ctx, rec)
			assert.NoError(t, err)
			if inserted {
				inserts.Add(1)
			}
			winners[i] = stored
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserts.Load())
	assert.Equal(t, 1, store.Len())
	for _, w := range winners[1:] {
		assert.Equal(t, winners[0].ID, w.ID, "every caller observes the same stored record")
	}
}

func TestInsert_EmptyKeyNeverDedupes(t *testing.T) {
	store := memory.NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, inserted, err := store.Insert(ctx, eventbus.Record{
			ID:        uuid.NewString(),
			OrgID:     "42",
			EventType: "a.created",
		})
		require.NoError(t, err)
		assert.True(t, inserted)
	}
	assert.Equal(t, 3, store.Len())
}

func TestInsert_SameKeyDifferentOrgsAreDistinct(t *testing.T) {
	store := memory.NewInMemoryStore()
	ctx := context.Background()

	_, inserted, err := store.Insert(ctx, eventbus.Record{ID: "1", OrgID: "a", IdempotencyKey: "k", EventType: "t"})
	require.NoError(t, err)
	assert.True(t, inserted)

	_, inserted, err = store.Insert(ctx, eventbus.Record{ID: "2", OrgID: "b", IdempotencyKey: "k", EventType: "t"})
	require.NoError(t, err)
	assert.True(t, inserted, "idempotency keys are scoped per org")
}
