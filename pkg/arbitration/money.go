// Package arbitration implements the dispute/evidence/ruling/enforcement
// pipeline and the escrow it drives.
package arbitration

import (
	"encoding/json"
	"math/big"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Money is a fixed-point decimal tagged with a currency code. It is backed
// by math/big.Rat rather than a float so repeated addition is exact and
// associative.
type Money struct {
	amount   *big.Rat
	Currency string
}

// NewMoney parses a decimal string amount (e.g. "100.50") into Money.
func NewMoney(amount, currency string) (Money, error) {
	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return Money{}, msezerr.New(msezerr.KindValidation, "MSEZ/ARBITRATION/BAD_AMOUNT", "amount is not a valid decimal")
	}
	return Money{amount: r, Currency: currency}, nil
}

// ZeroMoney returns the additive identity in the given currency.
func ZeroMoney(currency string) Money {
	return Money{amount: new(big.Rat), Currency: currency}
}

func (m Money) requireSameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return msezerr.New(msezerr.KindValidation, "MSEZ/ARBITRATION/CURRENCY_MISMATCH",
			"cannot combine Money values of different currencies")
	}
	return nil
}

// Add returns m+other. Error on currency mismatch.
func (m Money) Add(other Money) (Money, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: new(big.Rat).Add(m.amount, other.amount), Currency: m.Currency}, nil
}

// Sub returns m-other. Error on currency mismatch.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: new(big.Rat).Sub(m.amount, other.amount), Currency: m.Currency}, nil
}

// Cmp returns -1, 0, or 1 comparing m to other. Error on currency mismatch.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

func (m Money) IsZero() bool { return m.amount.Sign() == 0 }

// IsPositive reports whether m is strictly greater than zero.
func (m Money) IsPositive() bool { return m.amount.Sign() > 0 }

// IsNegative reports whether m is strictly less than zero.
func (m Money) IsNegative() bool { return m.amount.Sign() < 0 }

// Neg returns the additive inverse of m, same currency.
func (m Money) Neg() Money {
	return Money{amount: new(big.Rat).Neg(m.amount), Currency: m.Currency}
}

// MulRat scales m by an exact rational factor, same currency. Used to apply
// fixed-point fractions (slash ratios, fee percentages) to an amount without
// ever rounding through a float.
func (m Money) MulRat(factor *big.Rat) Money {
	return Money{amount: new(big.Rat).Mul(m.amount, factor), Currency: m.Currency}
}

func (m Money) String() string {
	return m.amount.FloatString(2) + " " + m.Currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the amount as an exact rational string (RatString),
// never a JSON number, so canonical digesting never sees a float and
// amounts beyond two decimal places survive round-trips.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.RatString(), Currency: m.Currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var aux moneyJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r, ok := new(big.Rat).SetString(aux.Amount)
	if !ok {
		return msezerr.New(msezerr.KindValidation, "MSEZ/ARBITRATION/BAD_AMOUNT", "amount is not a valid decimal")
	}
	m.amount = r
	m.Currency = aux.Currency
	return nil
}
