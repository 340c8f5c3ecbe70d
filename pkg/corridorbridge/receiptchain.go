package corridorbridge

import (
	"github.com/momentum-sez/msez-core/pkg/canon"
)

// HopLink is one prepare→commit pair in a BridgeReceiptChain, carrying the
// canonical digests of both receipts for end-to-end verification.
type HopLink struct {
	CorridorID    string
	PrepareDigest string
	CommitDigest  string
}

// BridgeReceiptChain links every hop's prepare and commit receipt with
// canonical digests, producing a verifiable end-to-end proof of a bridge
// transfer.
type BridgeReceiptChain struct {
	Links []HopLink
}

func digestPrepare(r PrepareReceipt) (string, error) {
	return canon.Digest(map[string]interface{}{
		"corridor_id": r.Hop.CorridorID,
		"lock_amount": r.LockAmount,
	})
}

func digestCommit(r CommitReceipt) (string, error) {
	return canon.Digest(map[string]interface{}{
		"corridor_id": r.Hop.CorridorID,
	})
}

// BuildReceiptChain derives a BridgeReceiptChain from a completed bridge
// Result's parallel prepare/commit receipt lists.
func BuildReceiptChain(result Result) (BridgeReceiptChain, error) {
	chain := BridgeReceiptChain{Links: make([]HopLink, 0, len(result.Commits))}
	for i, commit := range result.Commits {
		prepareDigest, err := digestPrepare(result.Prepares[i])
		if err != nil {
			return BridgeReceiptChain{}, err
		}
		commitDigest, err := digestCommit(commit)
		if err != nil {
			return BridgeReceiptChain{}, err
		}
		chain.Links = append(chain.Links, HopLink{
			CorridorID:    commit.Hop.CorridorID,
			PrepareDigest: prepareDigest,
			CommitDigest:  commitDigest,
		})
	}
	return chain, nil
}

// Verify recomputes every hop's digests and confirms they match the chain.
func (c BridgeReceiptChain) Verify(result Result) (bool, error) {
	rebuilt, err := BuildReceiptChain(result)
	if err != nil {
		return false, err
	}
	if len(rebuilt.Links) != len(c.Links) {
		return false, nil
	}
	for i, link := range c.Links {
		if rebuilt.Links[i] != link {
			return false, nil
		}
	}
	return true, nil
}
