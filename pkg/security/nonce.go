package security

import (
	"sync"
	"time"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// NonceRegistry is a TTL'd set of used nonces. Cleanup iterates over a
// snapshot of keys rather than the live map, so a concurrent Use during
// cleanup never faults on a map being mutated while ranged over.
type NonceRegistry struct {
	mu  sync.Mutex
	ttl time.Duration
	// seenAt maps nonce -> the time it was first used.
	seenAt map[string]time.Time
}

// NewNonceRegistry returns a registry that forgets a nonce ttl after it
// was first used.
func NewNonceRegistry(ttl time.Duration) *NonceRegistry {
	return &NonceRegistry{ttl: ttl, seenAt: make(map[string]time.Time)}
}

// Use records nonce as spent at now. It is atomic and idempotent-safe: a
// nonce already recorded (and not yet expired) returns a typed error
// rather than silently succeeding twice.
func (n *NonceRegistry) Use(nonce string, now time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if seenAt, ok := n.seenAt[nonce]; ok && now.Sub(seenAt) < n.ttl {
		return msezerr.New(msezerr.KindSecurity, msezerr.CodeNonceReused, "nonce already used within its TTL window")
	}
	n.seenAt[nonce] = now
	return nil
}

// Cleanup evicts every nonce whose TTL has elapsed as of now. It snapshots
// the key set before deleting so a Use() running concurrently from another
// goroutine under the same mutex never observes a half-deleted map.
func (n *NonceRegistry) Cleanup(now time.Time) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	snapshot := make([]string, 0, len(n.seenAt))
	for nonce := range n.seenAt {
		snapshot = append(snapshot, nonce)
	}
	evicted := 0
	for _, nonce := range snapshot {
		if now.Sub(n.seenAt[nonce]) >= n.ttl {
			delete(n.seenAt, nonce)
			evicted++
		}
	}
	return evicted
}
