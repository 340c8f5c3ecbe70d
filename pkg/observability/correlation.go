package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

type correlationKey struct{}

// NewCorrelationID returns a fresh "corr-xxxxxxxxxxxx" identifier: the
// literal prefix followed by 12 lowercase hex digits (6 random bytes).
func NewCorrelationID() (string, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating correlation id: %w", err)
	}
	return "corr-" + hex.EncodeToString(b[:]), nil
}

// WithCorrelationID attaches id to ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation ID attached to ctx, if
// any.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok
}
