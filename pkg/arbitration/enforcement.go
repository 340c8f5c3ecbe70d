package arbitration

import (
	"time"

	"github.com/momentum-sez/msez-core/pkg/artifact"
	"github.com/momentum-sez/msez-core/pkg/receiptchain"
)

// EnforceRuling appends an enforcement transition to the corridor's receipt
// chain and returns both the receipt and the EnforcementReceipt summary.
// Enforcement is written into the same corridor's receipt chain as a
// dedicated transition kind rather than a side channel, so the corridor's
// hash chain carries the full dispute-to-enforcement history.
func EnforceRuling(chain *receiptchain.Chain, ruling Ruling, receiptID string, kind EnforcementKind, seq uint64, prevRoot string, at time.Time) (receiptchain.Receipt, EnforcementReceipt, error) {
	r := receiptchain.Receipt{
		CorridorID:       chain.CorridorID,
		Sequence:         seq,
		Timestamp:        at.UTC().Format(time.RFC3339),
		PrevRoot:         prevRoot,
		LawpackDigestSet: chain.Expected.Lawpacks,
		RulesetDigestSet: chain.Expected.Rulesets,
		Transition: map[string]interface{}{
			"kind":       "enforcement",
			"ruling_id":  ruling.RulingID,
			"dispute_id": ruling.DisputeID,
			"enforcement_kind": string(kind),
		},
	}
	digest, err := artifact.StrictDigest(artifact.KindCorridorReceipt, r.ToGeneric())
	if err != nil {
		return receiptchain.Receipt{}, EnforcementReceipt{}, err
	}
	r.NextRoot = digest

	if _, err := chain.Append(r, receiptchain.AppendOptions{}); err != nil {
		return receiptchain.Receipt{}, EnforcementReceipt{}, err
	}

	enforcement := EnforcementReceipt{
		ReceiptID:  receiptID,
		DisputeID:  ruling.DisputeID,
		RulingID:   ruling.RulingID,
		Kind:       kind,
		CorridorID: chain.CorridorID,
		EnforcedAt: at,
	}
	return r, enforcement, nil
}
