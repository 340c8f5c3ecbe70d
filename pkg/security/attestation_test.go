package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScopedAttestation_BoundaryInclusive(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	a := ScopedAttestation{ValidFrom: from, ValidUntil: until}

	assert.True(t, a.VerifyScope(from))
	assert.True(t, a.VerifyScope(until))
	assert.False(t, a.VerifyScope(from.Add(-time.Second)))
	assert.False(t, a.VerifyScope(until.Add(time.Second)))
}
