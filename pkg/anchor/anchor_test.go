package anchor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchor_SubmitAndConfirm(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	adapter := NewMockChainAdapter("ethereum", 6)
	reg := NewRegistry(time.Hour)
	reg.RegisterAdapter(adapter)

	record, err := reg.Submit("ethereum", "digest-abc", now)
	require.NoError(t, err)
	assert.Equal(t, Submitted, record.Status)

	record, err = reg.Poll("ethereum", "digest-abc", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Pending, record.Status)

	adapter.AdvanceConfirmations(record.TxID, 6, 100)
	record, err = reg.Poll("ethereum", "digest-abc", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Confirmed, record.Status)
	assert.NotNil(t, record.ConfirmedAt)
}

func TestAnchor_TTLExpiryFailsPending(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	adapter := NewMockChainAdapter("ethereum", 6)
	reg := NewRegistry(time.Minute)
	reg.RegisterAdapter(adapter)

	record, err := reg.Submit("ethereum", "digest-abc", now)
	require.NoError(t, err)

	record, err = reg.Poll("ethereum", "digest-abc", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Failed, record.Status)
}

func TestAnchor_ReorgDemotesConfirmed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	adapter := NewMockChainAdapter("ethereum", 1)
	reg := NewRegistry(time.Hour)
	reg.RegisterAdapter(adapter)

	record, err := reg.Submit("ethereum", "digest-abc", now)
	require.NoError(t, err)
	adapter.AdvanceConfirmations(record.TxID, 1, 50)

	record, err = reg.Poll("ethereum", "digest-abc", now)
	require.NoError(t, err)
	require.Equal(t, Confirmed, record.Status)

	adapter.SimulateReorg(record.TxID, "different-digest")
	record, err = reg.ReorgCheck("ethereum", "digest-abc")
	require.NoError(t, err)
	assert.Equal(t, Reorged, record.Status)
	assert.Nil(t, record.ConfirmedAt)
}

func TestVerifyInclusion_MatchesReadback(t *testing.T) {
	adapter := NewMockChainAdapter("ethereum", 1)
	txID, err := adapter.Submit("digest-xyz")
	require.NoError(t, err)

	ok, err := VerifyInclusion(adapter, InclusionProof{Chain: "ethereum", TxID: txID, Expected: "digest-xyz"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyInclusion(adapter, InclusionProof{Chain: "ethereum", TxID: txID, Expected: "wrong"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnchor_SubmitUnknownChain(t *testing.T) {
	reg := NewRegistry(time.Hour)
	_, err := reg.Submit("arbitrum", "digest-abc", time.Now())
	require.Error(t, err)
}
