package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func operationalToHaltedRule() TransitionRule {
	return TransitionRule{
		FromState:              "OPERATIONAL",
		ToState:                "HALTED",
		RequiresEvidenceVCType: []string{"MSEZCorridorForkAlarmCredential"},
		RequiresFinalityLevel:  FinalityReceiptSigned,
	}
}

func TestMachine_MissingEvidenceBlocksTransition(t *testing.T) {
	m := NewMachine("OPERATIONAL", []TransitionRule{operationalToHaltedRule()}, nil)

	err := m.Apply("HALTED", nil, func(ref EvidenceRef) (string, FinalityLevel, bool, error) {
		return "", 0, false, nil
	}, "2026-01-01T00:00:00Z", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required evidence VC types")
	assert.Equal(t, "OPERATIONAL", m.State())
}

func TestMachine_ValidEvidenceAdvancesState(t *testing.T) {
	m := NewMachine("OPERATIONAL", []TransitionRule{operationalToHaltedRule()}, nil)

	resolver := func(ref EvidenceRef) (string, FinalityLevel, bool, error) {
		return "MSEZCorridorForkAlarmCredential", FinalityReceiptSigned, true, nil
	}

	err := m.Apply("HALTED", []EvidenceRef{{VCType: "MSEZCorridorForkAlarmCredential", DigestSHA256: "deadbeef"}}, resolver, "2026-01-01T00:00:00Z", nil)
	require.NoError(t, err)
	assert.Equal(t, "HALTED", m.State())

	hist := m.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "OPERATIONAL", hist[0].FromState)
	assert.Equal(t, "HALTED", hist[0].ToState)
}

func TestMachine_FinalityFloorNotMet(t *testing.T) {
	m := NewMachine("OPERATIONAL", []TransitionRule{operationalToHaltedRule()}, nil)

	resolver := func(ref EvidenceRef) (string, FinalityLevel, bool, error) {
		return "MSEZCorridorForkAlarmCredential", FinalityProposed, true, nil
	}

	err := m.Apply("HALTED", []EvidenceRef{{VCType: "MSEZCorridorForkAlarmCredential"}}, resolver, "2026-01-01T00:00:00Z", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finality")
}

func TestMachine_NoRuleForTransition(t *testing.T) {
	m := NewMachine("OPERATIONAL", []TransitionRule{operationalToHaltedRule()}, nil)

	err := m.Apply("TERMINATED", nil, func(ref EvidenceRef) (string, FinalityLevel, bool, error) {
		return "", 0, false, nil
	}, "2026-01-01T00:00:00Z", nil)

	require.Error(t, err)
}

func TestMachine_GuardedTransition(t *testing.T) {
	env, err := NewGuardEnv()
	require.NoError(t, err)

	rule := TransitionRule{
		FromState: "PROPOSED",
		ToState:   "OPERATIONAL",
		Guard:     `transition.amount < 1000`,
	}
	m := NewMachine("PROPOSED", []TransitionRule{rule}, env)

	err = m.Apply("OPERATIONAL", nil, func(ref EvidenceRef) (string, FinalityLevel, bool, error) {
		return "", 0, false, nil
	}, "2026-01-01T00:00:00Z", map[string]interface{}{
		"transition": map[string]interface{}{"amount": 5000},
		"timestamp":  int64(0),
	})
	require.Error(t, err)
	assert.Equal(t, "PROPOSED", m.State())

	err = m.Apply("OPERATIONAL", nil, func(ref EvidenceRef) (string, FinalityLevel, bool, error) {
		return "", 0, false, nil
	}, "2026-01-01T00:00:00Z", map[string]interface{}{
		"transition": map[string]interface{}{"amount": 5},
		"timestamp":  int64(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "OPERATIONAL", m.State())
}

func TestParseFinalityLevel(t *testing.T) {
	lv, err := ParseFinalityLevel("watcher_quorum")
	require.NoError(t, err)
	assert.Equal(t, FinalityWatcherQuorum, lv)

	_, err = ParseFinalityLevel("bogus")
	require.Error(t, err)
}
