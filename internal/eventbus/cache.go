package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"veris/internal/domain"
)

// defaultCacheTTL bounds how long a deduplicated key is answerable from Redis
// without touching Postgres. Expiry only costs a store round-trip; the unique
// index still rejects the duplicate.
const defaultCacheTTL = 24 * time.Hour

// Cache is a best-effort read-through lookup of idempotency keys in Redis.
// It is strictly an optimization: it is populated only after the
// authoritative insert, and every failure degrades to a store hit.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache wraps a Redis client. ttl <= 0 selects the default.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(orgID domain.OrgID, idempotencyKey string) string {
	return fmt.Sprintf("veris:eventbus:idem:%s:%s", orgID, idempotencyKey)
}

// Get returns the cached record for the key, if any. Errors are misses.
func (c *Cache) Get(ctx context.Context, orgID domain.OrgID, idempotencyKey string) (Record, bool) {
	raw, err := c.client.Get(ctx, cacheKey(orgID, idempotencyKey)).Bytes()
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "corrupt idempotency cache entry",
				"org_id", orgID,
				"error", err,
			)
		}
		return Record{}, false
	}
	return rec, true
}

// Put stores the record under its idempotency key, best effort.
func (c *Cache) Put(ctx context.Context, rec Record) {
	if rec.IdempotencyKey == "" {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(rec.OrgID, rec.IdempotencyKey), raw, c.ttl).Err(); err != nil {
		if c.logger != nil {
			c.logger.DebugContext(ctx, "idempotency cache write failed",
				"org_id", rec.OrgID,
				"error", err,
			)
		}
	}
}
