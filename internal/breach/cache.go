package breach

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RangeCache stores range API answers keyed by hash prefix. The answers
// hold only suffixes of other people's hashes, never the checked password.
type RangeCache interface {
	Get(ctx context.Context, prefix string) (string, bool)
	Set(ctx context.Context, prefix, body string)
}

// RedisCache keeps range answers in Redis under "<prefix>:<hashPrefix>".
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

// NewRedisCache returns a cache backed by rdb, or nil when rdb is nil so
// callers can pass the result straight to NewChecker.
func NewRedisCache(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) RangeCache {
	if rdb == nil {
		return nil
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "breach:range", log: log}
}

func (c *RedisCache) key(p string) string { return c.prefix + ":" + p }

func (c *RedisCache) Get(ctx context.Context, p string) (string, bool) {
	body, err := c.rdb.Get(ctx, c.key(p)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debug().Err(err).Msg("breach cache read failed")
		}
		return "", false
	}
	return body, true
}

func (c *RedisCache) Set(ctx context.Context, p, body string) {
	if err := c.rdb.Set(ctx, c.key(p), body, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Msg("breach cache write failed")
	}
}
