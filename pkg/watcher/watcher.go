// Package watcher implements the watcher economy of spec §4.10: bonds with
// capped slashing, a three-component reputation score, deterministic
// min(k,n) selection, and incremental equivocation detection. It
// generalizes the teacher's trust leaderboard (pkg/trust/leaderboard.go) —
// a scored, ranked registry with deterministic tie-break — from
// organizations to watchers, and keeps its (score DESC, id ASC) ranking
// idiom for watcher selection.
package watcher

import (
	"encoding/json"
	"math/big"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/momentum-sez/msez-core/pkg/arbitration"
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Fraction is an exact rational with no currency tag, used wherever a
// percentage or ratio must not be a float: reputation components and slash
// fractions. It marshals as a bare JSON string, per the float ban.
type Fraction struct {
	r *big.Rat
}

// NewFraction parses a decimal or rational string ("0.4", "1/2") into a
// Fraction.
func NewFraction(s string) (Fraction, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Fraction{}, msezerr.New(msezerr.KindValidation, "MSEZ/WATCHER/BAD_FRACTION", "fraction is not a valid decimal")
	}
	return Fraction{r: r}, nil
}

func mustFraction(s string) Fraction {
	f, err := NewFraction(s)
	if err != nil {
		panic(err)
	}
	return f
}

// ZeroFraction returns the additive identity.
func ZeroFraction() Fraction { return Fraction{r: new(big.Rat)} }

// Rat returns a copy of f's underlying rational value.
func (f Fraction) Rat() *big.Rat { return new(big.Rat).Set(f.r) }

func (f Fraction) Add(other Fraction) Fraction { return Fraction{r: new(big.Rat).Add(f.r, other.r)} }
func (f Fraction) Sub(other Fraction) Fraction { return Fraction{r: new(big.Rat).Sub(f.r, other.r)} }
func (f Fraction) Mul(other Fraction) Fraction { return Fraction{r: new(big.Rat).Mul(f.r, other.r)} }

// Cmp returns -1, 0, or 1 comparing f to other.
func (f Fraction) Cmp(other Fraction) int { return f.r.Cmp(other.r) }

func (f Fraction) IsZero() bool     { return f.r.Sign() == 0 }
func (f Fraction) IsNegative() bool { return f.r.Sign() < 0 }

func (f Fraction) String() string { return f.r.RatString() }

// MarshalJSON encodes f as a JSON string, never a number.
func (f Fraction) MarshalJSON() ([]byte, error) { return json.Marshal(f.r.RatString()) }

func (f *Fraction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return msezerr.New(msezerr.KindValidation, "MSEZ/WATCHER/BAD_FRACTION", "fraction is not a valid decimal")
	}
	f.r = r
	return nil
}

func clampFraction(v, lo, hi Fraction) Fraction {
	if v.Cmp(lo) < 0 {
		return lo
	}
	if v.Cmp(hi) > 0 {
		return hi
	}
	return v
}

// SlashCondition is one of the four slashing triggers of spec §4.10.
type SlashCondition string

const (
	Equivocation        SlashCondition = "EQUIVOCATION"
	FalseAttestation    SlashCondition = "FALSE_ATTESTATION"
	AvailabilityFailure SlashCondition = "AVAILABILITY_FAILURE"
	Collusion           SlashCondition = "COLLUSION"
)

// slashFraction is the fraction of remaining collateral each condition
// consumes, per spec §4.10's table.
var slashFraction = map[SlashCondition]Fraction{
	Equivocation:        mustFraction("1"),
	FalseAttestation:    mustFraction("0.5"),
	AvailabilityFailure: mustFraction("0.01"),
	Collusion:           mustFraction("1"),
}

// BondStatus is a bond's position in its lifecycle.
type BondStatus string

const (
	BondPending      BondStatus = "PENDING"
	BondActive       BondStatus = "ACTIVE"
	BondSlashed      BondStatus = "SLASHED"
	BondPartialSlash BondStatus = "PARTIALLY_SLASHED"
	BondFullySlashed BondStatus = "FULLY_SLASHED"
	BondWithdrawn    BondStatus = "WITHDRAWN"
)

// SlashRecord is one entry in a bond's slash_history: the condition that
// fired and the amount it actually consumed (after capping at available
// collateral).
type SlashRecord struct {
	Condition SlashCondition
	Amount    arbitration.Money
}

// Bond is a watcher's staked collateral.
type Bond struct {
	ID           string
	WatcherDID   string
	Collateral   arbitration.Money
	Slashed      arbitration.Money
	SlashCount   int
	SlashHistory []SlashRecord
	Status       BondStatus
	Banned       bool
}

// NewBond constructs a bond; collateral must be a strictly positive decimal
// amount in the given currency.
func NewBond(watcherDID, collateral, currency string) (*Bond, error) {
	amount, err := arbitration.NewMoney(collateral, currency)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, msezerr.New(msezerr.KindValidation, "MSEZ/WATCHER/ZERO_COLLATERAL",
			"bond collateral must be strictly greater than zero")
	}
	return &Bond{
		ID:         uuid.New().String(),
		WatcherDID: watcherDID,
		Collateral: amount,
		Slashed:    arbitration.ZeroMoney(currency),
		Status:     BondActive,
	}, nil
}

// Available returns the collateral remaining after prior slashes.
func (b *Bond) Available() arbitration.Money {
	remaining, err := b.Collateral.Sub(b.Slashed)
	if err != nil || remaining.IsNegative() {
		return arbitration.ZeroMoney(b.Collateral.Currency)
	}
	return remaining
}

// Slash applies a slashing condition, capped at the bond's available
// collateral: a slash consumes at most what remains, and multiple partial
// slashes accumulate in SlashHistory. Collusion additionally bans the
// watcher.
func (b *Bond) Slash(condition SlashCondition) error {
	fraction, ok := slashFraction[condition]
	if !ok {
		return msezerr.New(msezerr.KindValidation, "MSEZ/WATCHER/UNKNOWN_SLASH_CONDITION",
			"unknown slash condition")
	}

	available := b.Available()
	amount := available.MulRat(fraction.Rat())
	if cmp, err := amount.Cmp(available); err != nil {
		return err
	} else if cmp > 0 {
		amount = available
	}

	newSlashed, err := b.Slashed.Add(amount)
	if err != nil {
		return err
	}
	b.Slashed = newSlashed
	b.SlashCount++
	b.SlashHistory = append(b.SlashHistory, SlashRecord{Condition: condition, Amount: amount})

	if b.Available().IsZero() {
		b.Status = BondFullySlashed
	} else if b.Slashed.IsPositive() {
		b.Status = BondPartialSlash
	}

	if condition == Collusion {
		b.Banned = true
	}
	return nil
}

// Withdraw releases an active, unslashed bond's collateral back to the
// watcher. Only a bond still in ACTIVE status may be withdrawn.
func (b *Bond) Withdraw() error {
	if b.Banned {
		return msezerr.New(msezerr.KindState, "MSEZ/WATCHER/BOND_BANNED", "a banned bond cannot be withdrawn")
	}
	if b.Status != BondActive {
		return msezerr.New(msezerr.KindState, "MSEZ/WATCHER/BOND_NOT_ACTIVE", "only an active, unslashed bond can be withdrawn")
	}
	b.Status = BondWithdrawn
	return nil
}

// ReputationInputs are the raw per-watcher signals feeding the score.
type ReputationInputs struct {
	AvailabilityPct Fraction // observed attestation delivery, 0..100, may exceed 100 on over-delivery
	AccuracyPct     Fraction // 0..100
	TenurePct       Fraction // 0..100, already normalized against the tenure cap
}

var (
	availabilityWeight = mustFraction("0.4")
	accuracyWeight     = mustFraction("0.5")
	tenureWeight       = mustFraction("0.1")
	pctFloor           = ZeroFraction()
	pctCeiling         = mustFraction("100")
)

// Score computes the weighted reputation score of spec §4.10:
// 0.4*availability + 0.5*accuracy + 0.1*tenure, each component clamped to
// [0,100] before weighting, and the result clamped non-negative.
func Score(in ReputationInputs, slashPenalty Fraction) Fraction {
	avail := clampFraction(in.AvailabilityPct, pctFloor, pctCeiling)
	accuracy := clampFraction(in.AccuracyPct, pctFloor, pctCeiling)
	tenure := clampFraction(in.TenurePct, pctFloor, pctCeiling)

	weighted := availabilityWeight.Mul(avail).Add(accuracyWeight.Mul(accuracy)).Add(tenureWeight.Mul(tenure))
	score := weighted.Sub(slashPenalty)
	if score.IsNegative() {
		return ZeroFraction()
	}
	return score
}

// Watcher is one registered watcher, eligible for selection when its bond
// is active or partially slashed, it covers the requested jurisdiction, and
// it is not banned.
type Watcher struct {
	DID           string
	Bond          *Bond
	Jurisdictions map[string]bool
	Reputation    Fraction
}

func (w *Watcher) eligible(jurisdiction string) bool {
	if w.Bond == nil || w.Bond.Banned {
		return false
	}
	switch w.Bond.Status {
	case BondActive, BondPartialSlash:
	default:
		return false
	}
	return w.Jurisdictions[jurisdiction]
}

// Registry holds the set of known watchers.
type Registry struct {
	mu       sync.RWMutex
	watchers map[string]*Watcher
}

// NewRegistry returns an empty watcher registry.
func NewRegistry() *Registry {
	return &Registry{watchers: make(map[string]*Watcher)}
}

// Register adds or replaces a watcher entry.
func (r *Registry) Register(w *Watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers[w.DID] = w
}

// SelectWatchers returns exactly min(minCount, |eligible|) watchers for
// jurisdiction, sorted by reputation descending with ties broken by DID
// ascending lexical order.
func (r *Registry) SelectWatchers(jurisdiction string, minCount int) []*Watcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var eligible []*Watcher
	for _, w := range r.watchers {
		if w.eligible(jurisdiction) {
			eligible = append(eligible, w)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if cmp := eligible[i].Reputation.Cmp(eligible[j].Reputation); cmp != 0 {
			return cmp > 0
		}
		return eligible[i].DID < eligible[j].DID
	})

	n := minCount
	if n > len(eligible) {
		n = len(eligible)
	}
	return eligible[:n]
}
