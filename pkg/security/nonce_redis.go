package security

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// NonceBackend is the pluggable nonce-spend check pkg/kernel/limiter_redis.go
// models for rate limiting: a single atomic "claim this key or fail"
// operation, so a multi-process deployment can share one spent-nonce set
// instead of each process tracking its own in-memory copy.
type NonceBackend interface {
	Use(ctx context.Context, nonce string, ttl time.Duration) error
}

// RedisNonceRegistry is a NonceBackend shared across processes via Redis,
// claiming a nonce with SET NX EX so the claim and the expiry are a single
// atomic operation.
type RedisNonceRegistry struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisNonceRegistry builds a registry backed by the given client. Every
// nonce is namespaced under keyPrefix to let multiple corridors or
// subsystems share one Redis instance without collision.
func NewRedisNonceRegistry(client *redis.Client, keyPrefix string) *RedisNonceRegistry {
	return &RedisNonceRegistry{client: client, keyPrefix: keyPrefix}
}

// Use claims nonce for ttl, returning a typed error if it was already
// claimed and has not yet expired.
func (r *RedisNonceRegistry) Use(ctx context.Context, nonce string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, r.keyPrefix+nonce, 1, ttl).Result()
	if err != nil {
		return msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "redis nonce claim failed", err)
	}
	if !ok {
		return msezerr.New(msezerr.KindSecurity, msezerr.CodeNonceReused, "nonce already used within its TTL window")
	}
	return nil
}
