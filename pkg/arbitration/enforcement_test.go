package arbitration

import (
	"testing"
	"time"

	"github.com/momentum-sez/msez-core/pkg/receiptchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforceRuling_AppendsEnforcementTransitionToChain(t *testing.T) {
	genesis, err := receiptchain.GenesisRoot("corridor-1", "defvcdigest")
	require.NoError(t, err)
	chain := receiptchain.NewChain("corridor-1", genesis, receiptchain.ExpectedSets{})

	ruling := Ruling{
		RulingID:  "ruling-1",
		DisputeID: "dispute-1",
		Outcome:   RulingForClaimant,
		DecidedBy: "arbitrator-1",
		DecidedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	receipt, enforcement, err := EnforceRuling(chain, ruling, "enf-1", EnforcementReleaseEscrow, 0, genesis, ruling.DecidedAt)
	require.NoError(t, err)
	assert.Equal(t, "enforcement", receipt.Transition["kind"])
	assert.Equal(t, "dispute-1", enforcement.DisputeID)
	assert.Len(t, chain.Receipts, 1)
}
