package receiptchain

import (
	"github.com/momentum-sez/msez-core/pkg/artifact"
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Checkpoint is the canonical snapshot of spec §4.4: a signed VC attesting
// to a corridor's chain state at a point in time.
type Checkpoint struct {
	CorridorID       string                 `json:"corridor_id"`
	ReceiptCount     int                    `json:"receipt_count"`
	FinalStateRoot   string                 `json:"final_state_root"`
	LawpackDigestSet []string               `json:"lawpack_digest_set"`
	RulesetDigestSet []string               `json:"ruleset_digest_set"`
	Timestamp        string                 `json:"timestamp"`
	Proof            map[string]interface{} `json:"proof,omitempty"`
}

func (cp Checkpoint) toGeneric() map[string]interface{} {
	m := map[string]interface{}{
		"corridor_id":        cp.CorridorID,
		"receipt_count":      cp.ReceiptCount,
		"final_state_root":   cp.FinalStateRoot,
		"lawpack_digest_set": toAnySlice(cp.LawpackDigestSet),
		"ruleset_digest_set": toAnySlice(cp.RulesetDigestSet),
		"timestamp":          cp.Timestamp,
	}
	if cp.Proof != nil {
		m["proof"] = cp.Proof
	}
	return m
}

// BuildCheckpoint snapshots the chain's current state.
func (c *Chain) BuildCheckpoint(timestamp string) Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	final := c.Genesis
	if len(c.Receipts) > 0 {
		final = c.Receipts[len(c.Receipts)-1].NextRoot
	}
	return Checkpoint{
		CorridorID:       c.CorridorID,
		ReceiptCount:     len(c.Receipts),
		FinalStateRoot:   final,
		LawpackDigestSet: append([]string{}, c.Expected.Lawpacks...),
		RulesetDigestSet: append([]string{}, c.Expected.Rulesets...),
		Timestamp:        timestamp,
	}
}

// Digest returns the checkpoint artifact's content digest (JCS(obj minus proof)).
func (cp Checkpoint) Digest() (string, error) {
	return artifact.StrictDigest(artifact.KindCorridorCheckpoint, cp.toGeneric())
}

// AuditResult captures every check spec §4.4 runs against a checkpoint.
type AuditResult struct {
	CanonicalBytesOK bool `json:"canonical_bytes_ok"`
	ChainTerminatesAtFinalRoot bool `json:"chain_terminates_at_final_root"`
	DigestSetsMatch  bool `json:"digest_sets_match"`
	ProofVerified    *bool `json:"proof_verified,omitempty"`
}

// OK reports whether every check in the audit passed.
func (a AuditResult) OK() bool {
	if !a.CanonicalBytesOK || !a.ChainTerminatesAtFinalRoot || !a.DigestSetsMatch {
		return false
	}
	if a.ProofVerified != nil && !*a.ProofVerified {
		return false
	}
	return true
}

// AuditCheckpoint runs the four checks of spec §4.4: canonical bytes,
// chain termination, digest-set match, and optional proof verification.
func (c *Chain) AuditCheckpoint(cp Checkpoint, verifyProof func(Checkpoint) (bool, error)) (AuditResult, error) {
	var result AuditResult

	recomputed, err := cp.Digest()
	if err != nil {
		return result, msezerr.Wrap(msezerr.KindIntegrity, msezerr.CodeDigestMismatch, "checkpoint failed canonical re-digest", err)
	}
	result.CanonicalBytesOK = recomputed != ""

	result.ChainTerminatesAtFinalRoot = c.FinalStateRoot() == cp.FinalStateRoot

	c.mu.Lock()
	expectedLaw := append([]string{}, c.Expected.Lawpacks...)
	expectedRule := append([]string{}, c.Expected.Rulesets...)
	c.mu.Unlock()
	result.DigestSetsMatch = stringSliceEqual(expectedLaw, cp.LawpackDigestSet) && stringSliceEqual(expectedRule, cp.RulesetDigestSet)

	if verifyProof != nil {
		ok, err := verifyProof(cp)
		if err != nil {
			return result, err
		}
		result.ProofVerified = &ok
	}

	return result, nil
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
