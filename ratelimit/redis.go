package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a Redis-backed sliding-window limiter using ZSETs,
// shared across server replicas.
type RedisLimiter struct {
	rdb    *redis.Client
	limits map[string]Limit
	prefix string
}

func NewRedisLimiter(rdb *redis.Client, limits map[string]Limit) *RedisLimiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &RedisLimiter{rdb: rdb, limits: limits, prefix: "aegis:rl:"}
}

// Allow implements Limiter. Each request is scored by its millisecond
// timestamp; entries older than the window are trimmed before counting.
func (l *RedisLimiter) Allow(ctx context.Context, bucket, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("ratelimit: bucket and key required")
	}

	lim := lookupLimit(l.limits, bucket)
	now := time.Now().UnixMilli()
	windowStart := now - lim.Window.Milliseconds()
	slot := l.prefix + bucket + ":" + key

	pipe := l.rdb.TxPipeline()
	pipe.ZAdd(ctx, slot, redis.Z{Score: float64(now), Member: now})
	pipe.ZRemRangeByScore(ctx, slot, "0", fmt.Sprintf("%d", windowStart))
	countCmd := pipe.ZCard(ctx, slot)
	pipe.Expire(ctx, slot, lim.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit: %w", err)
	}

	count, err := countCmd.Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: %w", err)
	}
	if count > int64(lim.Limit) {
		l.rdb.ZRem(ctx, slot, now)
		return false, nil
	}
	return true, nil
}
