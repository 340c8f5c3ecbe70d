package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionedStore_CASAdvancesMonotonically(t *testing.T) {
	s := NewVersionedStore()

	v, err := s.CompareAndSwap("k", 0, "first")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	v, err = s.CompareAndSwap("k", 1, "second")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)

	value, version, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "second", value)
	assert.Equal(t, uint64(2), version)
}

func TestVersionedStore_CASRejectsStaleVersion(t *testing.T) {
	s := NewVersionedStore()
	_, err := s.CompareAndSwap("k", 0, "first")
	require.NoError(t, err)

	_, err = s.CompareAndSwap("k", 0, "conflicting")
	require.Error(t, err)
}
