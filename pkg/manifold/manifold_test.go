package manifold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortestPath_PicksCheaperRoute(t *testing.T) {
	edges := []Edge{
		{CorridorID: "corridor-a", From: "US", To: "EU", FeeUSD: 10, ExpectedLatencyS: 5},
		{CorridorID: "corridor-b", From: "US", To: "UK", FeeUSD: 1, ExpectedLatencyS: 5},
		{CorridorID: "corridor-c", From: "UK", To: "EU", FeeUSD: 1, ExpectedLatencyS: 5},
	}
	g := NewGraph(edges)

	path, err := g.ShortestPath("US", "EU", NewHeldSet(nil), DefaultWeights())
	require.NoError(t, err)
	require.Len(t, path.Hops, 2)
	assert.Equal(t, "corridor-b", path.Hops[0].CorridorID)
	assert.Equal(t, "corridor-c", path.Hops[1].CorridorID)
}

func TestShortestPath_AttestationGapDominatesFee(t *testing.T) {
	edges := []Edge{
		{CorridorID: "corridor-direct", From: "US", To: "EU", FeeUSD: 1000, ExpectedLatencyS: 1},
		{CorridorID: "corridor-gapped", From: "US", To: "EU", FeeUSD: 1, ExpectedLatencyS: 1, RequiredAttestation: []string{"kyc-tier2"}},
	}
	g := NewGraph(edges)

	path, err := g.ShortestPath("US", "EU", NewHeldSet(nil), DefaultWeights())
	require.NoError(t, err)
	require.Len(t, path.Hops, 1)
	assert.Equal(t, "corridor-direct", path.Hops[0].CorridorID)
}

func TestShortestPath_TieBreaksLexOnCorridorID(t *testing.T) {
	edges := []Edge{
		{CorridorID: "corridor-zz", From: "US", To: "EU", FeeUSD: 1, ExpectedLatencyS: 1},
		{CorridorID: "corridor-aa", From: "US", To: "EU", FeeUSD: 1, ExpectedLatencyS: 1},
	}
	g := NewGraph(edges)

	path, err := g.ShortestPath("US", "EU", NewHeldSet(nil), DefaultWeights())
	require.NoError(t, err)
	require.Len(t, path.Hops, 1)
	assert.Equal(t, "corridor-aa", path.Hops[0].CorridorID)
}

func TestShortestPath_NoPath(t *testing.T) {
	g := NewGraph([]Edge{{CorridorID: "corridor-a", From: "US", To: "EU"}})
	_, err := g.ShortestPath("US", "JP", NewHeldSet(nil), DefaultWeights())
	require.Error(t, err)
}

func TestShortestPath_SameSourceAndTarget(t *testing.T) {
	g := NewGraph(nil)
	path, err := g.ShortestPath("US", "US", NewHeldSet(nil), DefaultWeights())
	require.NoError(t, err)
	assert.Empty(t, path.Hops)
}

func TestShortestPath_CostExprOverridesLinearCombination(t *testing.T) {
	edges := []Edge{
		{CorridorID: "corridor-cheap-by-formula", From: "US", To: "EU", FeeUSD: 1, ExpectedLatencyS: 100},
		{CorridorID: "corridor-cheap-by-latency", From: "US", To: "EU", FeeUSD: 5, ExpectedLatencyS: 1},
	}
	g := NewGraph(edges)

	env, err := NewWeightEnv()
	require.NoError(t, err)

	// A cost expression that weighs latency alone should route around the
	// corridor the default linear combination would have preferred.
	w := Weights{CostExpr: "expected_latency_s", CelEnv: env}
	path, err := g.ShortestPath("US", "EU", NewHeldSet(nil), w)
	require.NoError(t, err)
	require.Len(t, path.Hops, 1)
	assert.Equal(t, "corridor-cheap-by-latency", path.Hops[0].CorridorID)
}

func TestShortestPath_CostExprWithoutEnvErrors(t *testing.T) {
	g := NewGraph([]Edge{{CorridorID: "corridor-a", From: "US", To: "EU"}})
	_, err := g.ShortestPath("US", "EU", NewHeldSet(nil), Weights{CostExpr: "fee_usd"})
	require.Error(t, err)
}

func TestGaps_ComputesMissingAttestations(t *testing.T) {
	e := Edge{CorridorID: "corridor-a", RequiredAttestation: []string{"kyc-tier1", "kyc-tier2"}}
	held := NewHeldSet([]string{"kyc-tier1"})

	gaps := Gaps(e, held)
	require.Len(t, gaps, 1)
	assert.Equal(t, "kyc-tier2", gaps[0].AttestationType)
	assert.Equal(t, 1, GapCount(e, held))
}
