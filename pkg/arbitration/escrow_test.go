package arbitration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscrow_FundThenFullyRelease(t *testing.T) {
	total, err := NewMoney("100", "USD")
	require.NoError(t, err)
	e := NewEscrow("escrow-1", "dispute-1", total)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, e.Fund(now))
	assert.Equal(t, EscrowFunded, e.Status())

	require.NoError(t, e.Release(total, RulingEnforced, "ruling enforced", now.Add(time.Hour)))
	assert.Equal(t, EscrowFullyReleased, e.Status())
	assert.Len(t, e.Transactions(), 2)
}

func TestEscrow_PartialThenFullRelease(t *testing.T) {
	total, err := NewMoney("100", "USD")
	require.NoError(t, err)
	half, err := NewMoney("50", "USD")
	require.NoError(t, err)
	e := NewEscrow("escrow-1", "dispute-1", total)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, e.Fund(at))
	require.NoError(t, e.Release(half, SettlementAgreed, "half now", at.Add(time.Hour)))
	assert.Equal(t, EscrowPartiallyReleased, e.Status())

	require.NoError(t, e.Release(half, SettlementAgreed, "remainder", at.Add(2*time.Hour)))
	assert.Equal(t, EscrowFullyReleased, e.Status())
}

func TestEscrow_RejectsOverRelease(t *testing.T) {
	total, err := NewMoney("100", "USD")
	require.NoError(t, err)
	over, err := NewMoney("150", "USD")
	require.NoError(t, err)
	e := NewEscrow("escrow-1", "dispute-1", total)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.Fund(at))

	err = e.Release(over, RulingEnforced, "too much", at)
	require.Error(t, err)
}

func TestEscrow_ForfeitFromFunded(t *testing.T) {
	total, err := NewMoney("100", "USD")
	require.NoError(t, err)
	e := NewEscrow("escrow-1", "dispute-1", total)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.Fund(at))

	require.NoError(t, e.Forfeit(InstitutionOrder, "sanctioned party", at))
	assert.Equal(t, EscrowForfeited, e.Status())
}

func TestEscrow_CannotReleaseBeforeFunding(t *testing.T) {
	total, err := NewMoney("100", "USD")
	require.NoError(t, err)
	e := NewEscrow("escrow-1", "dispute-1", total)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err = e.Release(total, RulingEnforced, "too early", at)
	require.Error(t, err)
}
