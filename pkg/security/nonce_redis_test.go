package security

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestRedisNonceRegistry_RejectsReuseWithinTTL requires a running Redis; it
// skips if one is not reachable rather than failing the suite.
func TestRedisNonceRegistry_RejectsReuseWithinTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("skipping Redis integration test: redis not available")
	}
	defer client.Close()

	r := NewRedisNonceRegistry(client, "msez:nonce-test:")
	if err := r.Use(ctx, "n1", time.Minute); err != nil {
		t.Fatalf("first use: unexpected error: %v", err)
	}
	if err := r.Use(ctx, "n1", time.Minute); err == nil {
		t.Error("second use within TTL: expected an error")
	}
}
