package corridorbridge

import (
	"errors"
	"testing"

	"github.com/momentum-sez/msez-core/pkg/arbitration"
	"github.com/momentum-sez/msez-core/pkg/manifold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMoney(t *testing.T, amount, currency string) arbitration.Money {
	t.Helper()
	m, err := arbitration.NewMoney(amount, currency)
	require.NoError(t, err)
	return m
}

func twoHopGraph() *manifold.Graph {
	return manifold.NewGraph([]manifold.Edge{
		{CorridorID: "corridor-a", From: "US", To: "UK", FeeUSD: 1, ExpectedLatencyS: 1},
		{CorridorID: "corridor-b", From: "UK", To: "EU", FeeUSD: 1, ExpectedLatencyS: 1},
	})
}

func TestBridge_ExecuteSucceeds(t *testing.T) {
	var committed []string
	prepare := func(hop manifold.Edge, req Request) (PrepareReceipt, error) {
		return PrepareReceipt{Hop: hop, LockAmount: req.Amount}, nil
	}
	commit := func(hop manifold.Edge, pr *PrepareReceipt, req Request) (CommitReceipt, error) {
		require.NotNil(t, pr)
		committed = append(committed, hop.CorridorID)
		return CommitReceipt{Hop: hop}, nil
	}
	finalized := false
	finalize := func(last CommitReceipt, req Request) error {
		finalized = true
		return nil
	}

	b := New(twoHopGraph(), manifold.DefaultWeights(), prepare, commit, nil, finalize)
	result, err := b.Execute(Request{Source: "US", Target: "EU", Amount: mustMoney(t, "100", "USD")}, manifold.NewHeldSet(nil))
	require.NoError(t, err)

	assert.Len(t, result.Prepares, 2)
	assert.Len(t, result.Commits, 2)
	assert.Equal(t, []string{"corridor-a", "corridor-b"}, committed)
	assert.True(t, finalized)
}

func TestBridge_PrepareFailureReleasesPriorHops(t *testing.T) {
	var released []string
	callCount := 0
	prepare := func(hop manifold.Edge, req Request) (PrepareReceipt, error) {
		callCount++
		if hop.CorridorID == "corridor-b" {
			return PrepareReceipt{}, errors.New("prepare denied")
		}
		return PrepareReceipt{Hop: hop, LockAmount: req.Amount}, nil
	}
	release := func(hop manifold.Edge, pr PrepareReceipt) error {
		released = append(released, hop.CorridorID)
		return nil
	}
	commit := func(hop manifold.Edge, pr *PrepareReceipt, req Request) (CommitReceipt, error) {
		t.Fatal("commit should not be called when a prepare fails")
		return CommitReceipt{}, nil
	}

	b := New(twoHopGraph(), manifold.DefaultWeights(), prepare, commit, release, nil)
	_, err := b.Execute(Request{Source: "US", Target: "EU", Amount: mustMoney(t, "100", "USD")}, manifold.NewHeldSet(nil))
	require.Error(t, err)
	assert.Equal(t, []string{"corridor-a"}, released)
}

func TestBridge_NoPathPropagatesError(t *testing.T) {
	g := manifold.NewGraph(nil)
	prepare := func(hop manifold.Edge, req Request) (PrepareReceipt, error) { return PrepareReceipt{}, nil }
	commit := func(hop manifold.Edge, pr *PrepareReceipt, req Request) (CommitReceipt, error) { return CommitReceipt{}, nil }

	b := New(g, manifold.DefaultWeights(), prepare, commit, nil, nil)
	_, err := b.Execute(Request{Source: "US", Target: "JP"}, manifold.NewHeldSet(nil))
	require.Error(t, err)
}

func TestBuildReceiptChain_VerifyRoundTrips(t *testing.T) {
	prepare := func(hop manifold.Edge, req Request) (PrepareReceipt, error) {
		return PrepareReceipt{Hop: hop, LockAmount: req.Amount}, nil
	}
	commit := func(hop manifold.Edge, pr *PrepareReceipt, req Request) (CommitReceipt, error) {
		return CommitReceipt{Hop: hop}, nil
	}

	b := New(twoHopGraph(), manifold.DefaultWeights(), prepare, commit, nil, nil)
	result, err := b.Execute(Request{Source: "US", Target: "EU", Amount: mustMoney(t, "100", "USD")}, manifold.NewHeldSet(nil))
	require.NoError(t, err)

	chain, err := BuildReceiptChain(result)
	require.NoError(t, err)
	require.Len(t, chain.Links, 2)

	ok, err := chain.Verify(result)
	require.NoError(t, err)
	assert.True(t, ok)
}
