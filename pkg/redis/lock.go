package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/careflow_backend/pkg/util/codes"
)

// releaseScript deletes the key only while it still holds our token, so an
// instance whose lock already expired cannot release someone else's.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive locks backed by SET NX PX.
type Locker struct {
	rdb *goredis.Client
}

func NewLocker(rdb *goredis.Client) *Locker {
	return &Locker{rdb: rdb}
}

// TryLock attempts to take key for ttl. It never blocks: ok is false when
// another holder owns the key.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	token, err := codes.GenerateSecureToken(16)
	if err != nil {
		return nil, false, err
	}

	ok, err = l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("redis unlock %q: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
