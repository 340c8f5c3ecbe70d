package zkp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockPair_AcceptsValidProof(t *testing.T) {
	c, err := NewCircuit("circuit-1", "migration-eligibility", "vk-abc", "pk-abc")
	require.NoError(t, err)

	pair := NewMockPair()
	witness := map[string]interface{}{"balance": "1000"}
	publicInputs := map[string]interface{}{"asset_id": "asset-1", "threshold": "500"}

	proof, err := pair.Prove(c, witness, publicInputs)
	require.NoError(t, err)

	ok, err := pair.Verify(proof, c.VerifyingKey, publicInputs)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMockPair_RejectsMismatchedPublicInputs(t *testing.T) {
	c, err := NewCircuit("circuit-1", "migration-eligibility", "vk-abc", "")
	require.NoError(t, err)

	pair := NewMockPair()
	proof, err := pair.Prove(c, map[string]interface{}{"x": 1}, map[string]interface{}{"asset_id": "asset-1"})
	require.NoError(t, err)

	ok, err := pair.Verify(proof, c.VerifyingKey, map[string]interface{}{"asset_id": "asset-2"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMockPair_IsPureFunctionOfInputs(t *testing.T) {
	c, err := NewCircuit("circuit-1", "migration-eligibility", "vk-abc", "")
	require.NoError(t, err)
	pair := NewMockPair()
	witness := map[string]interface{}{"x": 1}
	publicInputs := map[string]interface{}{"asset_id": "asset-1"}

	p1, err := pair.Prove(c, witness, publicInputs)
	require.NoError(t, err)
	p2, err := pair.Prove(c, witness, publicInputs)
	require.NoError(t, err)
	assert.Equal(t, p1.Blob, p2.Blob)
}

func TestCircuit_DigestIsContentAddressed(t *testing.T) {
	a, err := NewCircuit("circuit-1", "typeA", "vk", "")
	require.NoError(t, err)
	b, err := NewCircuit("circuit-1", "typeA", "vk", "")
	require.NoError(t, err)
	assert.Equal(t, a.Digest, b.Digest)

	c, err := NewCircuit("circuit-1", "typeB", "vk", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.Digest, c.Digest)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	c, err := NewCircuit("circuit-1", "typeA", "vk", "")
	require.NoError(t, err)
	r.Register(c)

	got, ok := r.Lookup("circuit-1")
	require.True(t, ok)
	assert.Equal(t, c.Digest, got.Digest)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}
