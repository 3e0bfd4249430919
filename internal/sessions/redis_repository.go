package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository implements Repository using Redis as the backing store.
// Revocations are stored under key "<prefix><sha256(token)>" with TTL = expiresAt - now
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRepository creates a Redis-based revocation repository. Prefix may be empty.
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "revoked:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(k string) string {
	return r.prefix + k
}

func (r *RedisRepository) Add(ctx context.Context, rev *Revocation) error {
	exp := time.Until(rev.ExpiresAt)
	if exp <= 0 {
		// token is already past its lifetime; nothing left to block
		return nil
	}
	return r.client.Set(ctx, r.key(rev.Key), rev.Sub, exp).Err()
}

func (r *RedisRepository) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
