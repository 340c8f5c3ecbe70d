package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeLock_RejectsReadBeforeUnlock(t *testing.T) {
	unlock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lock := NewTimeLock(unlock, "secret")

	_, err := lock.Read(unlock.Add(-time.Second))
	require.Error(t, err)

	value, err := lock.Read(unlock)
	require.NoError(t, err)
	assert.Equal(t, "secret", value)
}
