package arbitration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_AssociativeAddition(t *testing.T) {
	x, err := NewMoney("10.10", "USD")
	require.NoError(t, err)
	y, err := NewMoney("20.20", "USD")
	require.NoError(t, err)
	z, err := NewMoney("30.30", "USD")
	require.NoError(t, err)

	xy, err := x.Add(y)
	require.NoError(t, err)
	left, err := xy.Add(z)
	require.NoError(t, err)

	yz, err := y.Add(z)
	require.NoError(t, err)
	right, err := x.Add(yz)
	require.NoError(t, err)

	cmp, err := left.Cmp(right)
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)
}

func TestMoney_CrossCurrencyAdditionErrors(t *testing.T) {
	usd, err := NewMoney("10", "USD")
	require.NoError(t, err)
	eur, err := NewMoney("10", "EUR")
	require.NoError(t, err)

	_, err = usd.Add(eur)
	require.Error(t, err)
}

func TestMoney_RejectsMalformedAmount(t *testing.T) {
	_, err := NewMoney("not-a-number", "USD")
	require.Error(t, err)
}

func TestMoney_JSONRoundTripPreservesExactAmount(t *testing.T) {
	original, err := NewMoney("10.005", "USD")
	require.NoError(t, err)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))

	cmp, err := original.Cmp(decoded)
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)
	assert.Equal(t, "USD", decoded.Currency)
}
