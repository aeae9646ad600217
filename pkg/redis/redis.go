package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/careflow_backend/config"
)

const (
	defaultPoolSize     = 10
	defaultMinIdleConns = 2
	defaultDialTimeout  = 5 * time.Second
	defaultIOTimeout    = 3 * time.Second
)

// Options maps the redis config section onto client options. Zero values
// fall back to package defaults.
func Options(c config.RedisConfig) *goredis.Options {
	return &goredis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     orInt(c.PoolSize, defaultPoolSize),
		MinIdleConns: orInt(c.MinIdleConns, defaultMinIdleConns),
		DialTimeout:  orSeconds(c.DialTimeoutSeconds, defaultDialTimeout),
		ReadTimeout:  orSeconds(c.ReadTimeoutSeconds, defaultIOTimeout),
		WriteTimeout: orSeconds(c.WriteTimeoutSeconds, defaultIOTimeout),
	}
}

// NewRedisFromCentral connects and pings. Sessions, rate limits and the
// scheduler lock all share this client.
func NewRedisFromCentral(ctx context.Context, c config.RedisConfig) (*goredis.Client, error) {
	if c.Addr == "" {
		return nil, errors.New("redis: addr is empty")
	}
	opts := Options(c)
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.Addr, err)
	}
	return rdb, nil
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orSeconds(v int, def time.Duration) time.Duration {
	if v > 0 {
		return time.Duration(v) * time.Second
	}
	return def
}
