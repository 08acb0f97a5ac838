package revocation

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisGate answers revocation checks from a Redis set of license ids.
// The set is maintained by a Syncer; the gate itself only reads.
type RedisGate struct {
	rdb *redis.Client
	key string
}

// NewRedisGate wraps a Redis client. keyName defaults to
// "aegis:revoked" when empty.
func NewRedisGate(rdb *redis.Client, keyName string) *RedisGate {
	if keyName == "" {
		keyName = "aegis:revoked"
	}
	return &RedisGate{rdb: rdb, key: keyName}
}

// Key returns the set name the gate reads from.
func (g *RedisGate) Key() string { return g.key }

func (g *RedisGate) IsRevoked(ctx context.Context, licenseID string) (bool, error) {
	ok, err := g.rdb.SIsMember(ctx, g.key, licenseID).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: query %s: %w", g.key, err)
	}
	return ok, nil
}

// Replace swaps the whole revocation set in one step. The new set is
// staged under a temp key and renamed so readers never see a partial
// set.
func (g *RedisGate) Replace(ctx context.Context, licenseIDs []string) error {
	tmp := g.key + ":staging"
	pipe := g.rdb.TxPipeline()
	pipe.Del(ctx, tmp)
	if len(licenseIDs) > 0 {
		members := make([]interface{}, len(licenseIDs))
		for i, id := range licenseIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, tmp, members...)
		pipe.Rename(ctx, tmp, g.key)
	} else {
		pipe.Del(ctx, g.key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revocation: replace %s: %w", g.key, err)
	}
	return nil
}

// Add marks a single license revoked immediately, ahead of the next
// full sync.
func (g *RedisGate) Add(ctx context.Context, licenseID string) error {
	if err := g.rdb.SAdd(ctx, g.key, licenseID).Err(); err != nil {
		return fmt.Errorf("revocation: add to %s: %w", g.key, err)
	}
	return nil
}
