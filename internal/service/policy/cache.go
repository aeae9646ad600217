package policy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/careflow_backend/pkg/constants"
)

// CachedLookup keeps policies in redis for ttl. Redis failures degrade to
// the inner lookup.
type CachedLookup struct {
	inner Lookup
	rdb   *goredis.Client
	ttl   time.Duration
}

func NewCachedLookup(inner Lookup, rdb *goredis.Client, ttl time.Duration) *CachedLookup {
	return &CachedLookup{inner: inner, rdb: rdb, ttl: ttl}
}

func cacheKey(facilityID uuid.UUID) string {
	return constants.RedisPolicyPrefix + facilityID.String()
}

func (c *CachedLookup) Get(ctx context.Context, facilityID uuid.UUID) (Policy, error) {
	key := cacheKey(facilityID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Policy
		if err := json.Unmarshal(raw, &p); err == nil {
			return p, nil
		}
		slog.Warn("policy: dropping unreadable cache entry", "key", key)
	case !errors.Is(err, goredis.Nil):
		slog.Warn("policy: cache read failed", "key", key, "error", err)
	}

	p, err := c.inner.Get(ctx, facilityID)
	if err != nil {
		return Policy{}, err
	}

	if b, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			slog.Warn("policy: cache write failed", "key", key, "error", err)
		}
	}
	return p, nil
}

// Invalidate drops the cached policy of a facility.
func (c *CachedLookup) Invalidate(ctx context.Context, facilityID uuid.UUID) error {
	return c.rdb.Del(ctx, cacheKey(facilityID)).Err()
}
