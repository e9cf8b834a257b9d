//go:build integration

package eventbus_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veris/internal/domain"
	"veris/internal/eventbus"
	"veris/pkg/testutil/containers"
)

type CacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *eventbus.Cache
}

func TestCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = eventbus.NewCache(s.redis.Client, time.Minute, nil)
}

func (s *CacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *CacheSuite) TestPutThenGet() {
	ctx := context.Background()
	rec := eventbus.Record{
		ID:             uuid.NewString(),
		OrgID:          domain.OrgID(uuid.NewString()),
		EventType:      "record.updated",
		Payload:        json.RawMessage(`{"field":"value"}`),
		IdempotencyKey: "op-1",
		ServerTime:     time.Now().UTC().Truncate(time.Millisecond),
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}

	s.cache.Put(ctx, rec)

	got, ok := s.cache.Get(ctx, rec.OrgID, "op-1")
	s.Require().True(ok)
	s.Equal(rec.ID, got.ID)
	s.JSONEq(`{"field":"value"}`, string(got.Payload))
}

func (s *CacheSuite) TestMissOnUnknownKey() {
	_, ok := s.cache.Get(context.Background(), domain.OrgID(uuid.NewString()), "never-stored")
	s.False(ok)
}

func (s *CacheSuite) TestEmptyKeyNeverCached() {
	ctx := context.Background()
	orgID := domain.OrgID(uuid.NewString())

	s.cache.Put(ctx, eventbus.Record{ID: uuid.NewString(), OrgID: orgID})

	_, ok := s.cache.Get(ctx, orgID, "")
	s.False(ok)
}

func (s *CacheSuite) TestKeysScopedPerOrg() {
	ctx := context.Background()
	orgA := domain.OrgID(uuid.NewString())
	orgB := domain.OrgID(uuid.NewString())

	s.cache.Put(ctx, eventbus.Record{ID: "a", OrgID: orgA, IdempotencyKey: "shared"})

	_, ok := s.cache.Get(ctx, orgB, "shared")
	s.False(ok, "another org must not see the cached record")

	got, ok := s.cache.Get(ctx, orgA, "shared")
	s.Require().True(ok)
	s.Equal("a", got.ID)
}

func (s *CacheSuite) TestCorruptEntryIsAMiss() {
	ctx := context.Background()
	orgID := domain.OrgID(uuid.NewString())

	err := s.redis.Client.Set(ctx, "veris:eventbus:idem:"+string(orgID)+":bad", "not-json", time.Minute).Err()
	s.Require().NoError(err)

	_, ok := s.cache.Get(ctx, orgID, "bad")
	s.False(ok)
}
