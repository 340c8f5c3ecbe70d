// Package netting computes multilateral settlement plans: given a set of
// bilateral obligations, it nets exposures per party and currency, then
// greedily reconstructs a minimal set of settlement legs across available
// rails.
package netting

import (
	"fmt"
	"sort"

	"github.com/momentum-sez/msez-core/pkg/arbitration"
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Obligation is one bilateral debt to be netted. Amount carries its own
// currency tag; obligations are grouped for netting by Amount.Currency.
type Obligation struct {
	Debtor           string
	Creditor         string
	Amount           arbitration.Money
	Priority         int
	CorridorID       string
	CheckpointDigest string
}

// Rail is a settlement channel with a per-currency capacity. BlockedPairs,
// when set, lists debtor->creditor routes this rail refuses to carry —
// modeling a corridor restriction (jurisdictional routing, sanctions
// screening) independent of raw capacity.
type Rail struct {
	RailID        string
	Priority      int
	CapacityByCcy map[string]arbitration.Money
	BlockedPairs  map[string]bool // key: debtor+"->"+creditor
}

func pairKey(debtor, creditor string) string { return debtor + "->" + creditor }

// SettlementLeg is one planned payment.
type SettlementLeg struct {
	LegID  string
	From   string
	To     string
	Amount arbitration.Money
	RailID string
}

// NetPosition is a party's net exposure in one currency after gross
// receivables and payables are combined.
type NetPosition struct {
	Party string
	Net   arbitration.Money
}

// TraceEntry records one decision the algorithm made, for explainability.
type TraceEntry struct {
	Currency string
	Note     string
}

// SettlementPlan is the full output of Net.
type SettlementPlan struct {
	NetPositions   []NetPosition
	SettlementLegs []SettlementLeg
	Trace          []TraceEntry
}

// InfeasibleNetting reports that constraints blocked every candidate for a
// required leg.
type InfeasibleNetting struct {
	Party  string
	Amount arbitration.Money
}

func (e *InfeasibleNetting) Error() string {
	return fmt.Sprintf("no feasible rail for %s owed by/to %s", e.Amount.String(), e.Party)
}

type partyBalance struct {
	party     string
	remaining arbitration.Money
}

// Net computes the settlement plan for obligations across rails.
// Currencies are processed in lexical order and, within a currency,
// payers and receivers are processed in the documented sort order, so two
// calls with identical inputs always produce an identical plan.
func Net(obligations []Obligation, rails []Rail) (SettlementPlan, error) {
	plan := SettlementPlan{}
	byCurrency := groupByCurrency(obligations)

	currencies := make([]string, 0, len(byCurrency))
	for ccy := range byCurrency {
		currencies = append(currencies, ccy)
	}
	sort.Strings(currencies)

	// rail capacity is consumed across currencies in processing order.
	capUsed := make(map[string]map[string]arbitration.Money) // railID -> currency -> used

	for _, ccy := range currencies {
		obs := byCurrency[ccy]
		net, err := computeNet(obs, ccy)
		if err != nil {
			return SettlementPlan{}, err
		}
		payers, receivers, err := splitAndSort(net)
		if err != nil {
			return SettlementPlan{}, err
		}

		plan.NetPositions = append(plan.NetPositions, toNetPositions(net)...)

		legIdx := 0
		for pi := range payers {
			for payers[pi].remaining.IsPositive() {
				matched := false
				for ri := range receivers {
					if !receivers[ri].remaining.IsPositive() {
						continue
					}
					rail := pickRail(rails, ccy, payers[pi].party, receivers[ri].party, capUsed)
					if rail == nil {
						plan.Trace = append(plan.Trace, TraceEntry{
							Currency: ccy,
							Note:     fmt.Sprintf("no rail available for %s -> %s", payers[pi].party, receivers[ri].party),
						})
						continue
					}
					headroom, err := railHeadroom(rail, ccy, capUsed)
					if err != nil {
						return SettlementPlan{}, err
					}
					amount, err := minMoney(payers[pi].remaining, receivers[ri].remaining, headroom)
					if err != nil {
						return SettlementPlan{}, err
					}
					if !amount.IsPositive() {
						continue
					}
					leg := SettlementLeg{
						LegID:  fmt.Sprintf("%s:%06d", ccy, legIdx),
						From:   payers[pi].party,
						To:     receivers[ri].party,
						Amount: amount,
						RailID: rail.RailID,
					}
					legIdx++
					plan.SettlementLegs = append(plan.SettlementLegs, leg)
					plan.Trace = append(plan.Trace, TraceEntry{
						Currency: ccy,
						Note:     fmt.Sprintf("matched %s -> %s for %s on rail %s", leg.From, leg.To, amount.String(), rail.RailID),
					})

					newPayerRemaining, err := payers[pi].remaining.Sub(amount)
					if err != nil {
						return SettlementPlan{}, err
					}
					payers[pi].remaining = newPayerRemaining
					newReceiverRemaining, err := receivers[ri].remaining.Sub(amount)
					if err != nil {
						return SettlementPlan{}, err
					}
					receivers[ri].remaining = newReceiverRemaining
					if err := consumeCapacity(capUsed, rail.RailID, ccy, amount); err != nil {
						return SettlementPlan{}, err
					}
					matched = true
					break
				}
				if !matched {
					return SettlementPlan{}, msezerr.Wrap(msezerr.KindState, msezerr.CodeInfeasibleNetting,
						"netting constraints blocked every candidate for a required leg",
						&InfeasibleNetting{Party: payers[pi].party, Amount: payers[pi].remaining})
				}
			}
		}
	}
	return plan, nil
}

func groupByCurrency(obs []Obligation) map[string][]Obligation {
	out := make(map[string][]Obligation)
	for _, o := range obs {
		out[o.Amount.Currency] = append(out[o.Amount.Currency], o)
	}
	return out
}

func computeNet(obs []Obligation, ccy string) (map[string]arbitration.Money, error) {
	net := make(map[string]arbitration.Money)
	get := func(party string) arbitration.Money {
		if m, ok := net[party]; ok {
			return m
		}
		return arbitration.ZeroMoney(ccy)
	}
	for _, o := range obs {
		debtorNet, err := get(o.Debtor).Sub(o.Amount)
		if err != nil {
			return nil, err
		}
		net[o.Debtor] = debtorNet

		creditorNet, err := get(o.Creditor).Add(o.Amount)
		if err != nil {
			return nil, err
		}
		net[o.Creditor] = creditorNet
	}
	return net, nil
}

func toNetPositions(net map[string]arbitration.Money) []NetPosition {
	parties := make([]string, 0, len(net))
	for p := range net {
		parties = append(parties, p)
	}
	sort.Strings(parties)
	out := make([]NetPosition, 0, len(parties))
	for _, p := range parties {
		out = append(out, NetPosition{Party: p, Net: net[p]})
	}
	return out
}

// splitAndSort separates net positions into payers (net < 0), sorted by
// (net asc, party_id asc), and receivers (net > 0), sorted by
// (-net asc, party_id asc) i.e. net desc with lexical ties broken asc.
func splitAndSort(net map[string]arbitration.Money) ([]partyBalance, []partyBalance, error) {
	var payers, receivers []partyBalance
	for party, n := range net {
		if n.IsNegative() {
			payers = append(payers, partyBalance{party: party, remaining: n.Neg()})
		} else if n.IsPositive() {
			receivers = append(receivers, partyBalance{party: party, remaining: n})
		}
	}
	var sortErr error
	sort.Slice(payers, func(i, j int) bool {
		cmp, err := payers[i].remaining.Cmp(payers[j].remaining)
		if err != nil {
			sortErr = err
			return false
		}
		if cmp != 0 {
			return cmp > 0
		}
		return payers[i].party < payers[j].party
	})
	if sortErr != nil {
		return nil, nil, sortErr
	}
	sort.Slice(receivers, func(i, j int) bool {
		cmp, err := receivers[i].remaining.Cmp(receivers[j].remaining)
		if err != nil {
			sortErr = err
			return false
		}
		if cmp != 0 {
			return cmp > 0
		}
		return receivers[i].party < receivers[j].party
	})
	if sortErr != nil {
		return nil, nil, sortErr
	}
	return payers, receivers, nil
}

// pickRail selects the highest-priority rail that supports currency and
// the (debtor, creditor) pair and still has headroom, tie-breaking by
// rail_id lexically.
func pickRail(rails []Rail, ccy, debtor, creditor string, capUsed map[string]map[string]arbitration.Money) *Rail {
	var best *Rail
	for i := range rails {
		r := &rails[i]
		if _, ok := r.CapacityByCcy[ccy]; !ok {
			continue
		}
		if r.BlockedPairs != nil && r.BlockedPairs[pairKey(debtor, creditor)] {
			continue
		}
		headroom, err := railHeadroom(r, ccy, capUsed)
		if err != nil || !headroom.IsPositive() {
			continue
		}
		if best == nil ||
			r.Priority > best.Priority ||
			(r.Priority == best.Priority && r.RailID < best.RailID) {
			best = r
		}
	}
	return best
}

func usedCapacity(capUsed map[string]map[string]arbitration.Money, railID, ccy string) arbitration.Money {
	if byCcy, ok := capUsed[railID]; ok {
		if used, ok := byCcy[ccy]; ok {
			return used
		}
	}
	return arbitration.ZeroMoney(ccy)
}

func railHeadroom(r *Rail, ccy string, capUsed map[string]map[string]arbitration.Money) (arbitration.Money, error) {
	limit, ok := r.CapacityByCcy[ccy]
	if !ok {
		return arbitration.ZeroMoney(ccy), nil
	}
	used := usedCapacity(capUsed, r.RailID, ccy)
	return limit.Sub(used)
}

func consumeCapacity(capUsed map[string]map[string]arbitration.Money, railID, ccy string, amount arbitration.Money) error {
	if capUsed[railID] == nil {
		capUsed[railID] = make(map[string]arbitration.Money)
	}
	sum, err := usedCapacity(capUsed, railID, ccy).Add(amount)
	if err != nil {
		return err
	}
	capUsed[railID][ccy] = sum
	return nil
}

// minMoney returns the smallest of three Money values of the same currency.
func minMoney(a, b, c arbitration.Money) (arbitration.Money, error) {
	m := a
	if cmp, err := b.Cmp(m); err != nil {
		return arbitration.Money{}, err
	} else if cmp < 0 {
		m = b
	}
	if cmp, err := c.Cmp(m); err != nil {
		return arbitration.Money{}, err
	} else if cmp < 0 {
		m = c
	}
	return m, nil
}
