// Package receiptchain implements the per-corridor hash-chained receipt
// engine of spec §4.4: genesis derivation, sequence/prev_root validation,
// strict next_root recomputation, fork detection and resolution, and
// checkpoint audit. It generalizes the teacher's hash-chained append-only
// ledger (pkg/ledger/ledger.go) with the fork-aware, multi-writer model the
// receipt chain needs beyond a single-writer log.
package receiptchain

import (
	"sort"
	"sync"

	"github.com/momentum-sez/msez-core/pkg/artifact"
	"github.com/momentum-sez/msez-core/pkg/canon"
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Receipt mirrors spec §3's Corridor Receipt.
type Receipt struct {
	CorridorID                   string                 `json:"corridor_id"`
	Sequence                     uint64                 `json:"sequence"`
	Timestamp                    string                 `json:"timestamp"`
	PrevRoot                     string                 `json:"prev_root"`
	LawpackDigestSet             []string               `json:"lawpack_digest_set"`
	RulesetDigestSet             []string               `json:"ruleset_digest_set"`
	TransitionTypeRegistryDigest string                 `json:"transition_type_registry_digest_sha256,omitempty"`
	Transition                   map[string]interface{} `json:"transition"`
	NextRoot                     string                 `json:"next_root"`
	Proof                        map[string]interface{} `json:"proof,omitempty"`
}

// ToGeneric renders the receipt as a generic JSON map for strict-digest
// computation via pkg/artifact.
func (r Receipt) ToGeneric() map[string]interface{} {
	m := map[string]interface{}{
		"corridor_id":        r.CorridorID,
		"sequence":           r.Sequence,
		"timestamp":          r.Timestamp,
		"prev_root":          r.PrevRoot,
		"lawpack_digest_set": toAnySlice(r.LawpackDigestSet),
		"ruleset_digest_set": toAnySlice(r.RulesetDigestSet),
		"transition":         r.Transition,
		"next_root":          r.NextRoot,
	}
	if r.TransitionTypeRegistryDigest != "" {
		m["transition_type_registry_digest_sha256"] = r.TransitionTypeRegistryDigest
	}
	if r.Proof != nil {
		m["proof"] = r.Proof
	}
	return m
}

func toAnySlice(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// GenesisRoot derives the deterministic genesis root for a corridor from
// its corridor_id and the digest of the corridor definition VC (spec §4.4).
func GenesisRoot(corridorID, definitionVCDigest string) (string, error) {
	return canon.Digest(map[string]interface{}{
		"corridor_id":         corridorID,
		"definition_vc_digest": definitionVCDigest,
	})
}

// ExpectedSets describes the superset constraints a chain enforces on every
// appended receipt (spec invariant I-R4).
type ExpectedSets struct {
	Lawpacks []string
	Rulesets []string
}

// Chain holds per-corridor append state: the linear sequence of accepted
// receipts plus any detected-but-unresolved forks. Appends are serialized
// per corridor via mu, matching spec §5's "receipt append is serialized per
// corridor" ordering guarantee.
type Chain struct {
	mu         sync.Mutex
	CorridorID string
	Genesis    string
	Expected   ExpectedSets
	Receipts   []Receipt
	// slots indexes every first-seen candidate by (sequence, prev_root),
	// independent of commit order, so a conflicting resubmission for an
	// already-committed slot is recognized as a fork rather than mistaken
	// for a sequence gap (spec §4.4's fork index is keyed this way, not by
	// chain head position).
	slots   map[uint64]map[string]Receipt
	orphans []Receipt
}

// NewChain creates an empty chain rooted at genesis.
func NewChain(corridorID, genesis string, expected ExpectedSets) *Chain {
	return &Chain{
		CorridorID: corridorID,
		Genesis:    genesis,
		Expected:   expected,
		slots:      make(map[uint64]map[string]Receipt),
	}
}

// AppendOptions controls the optional artifact-existence and transitive
// reference checks spec §4.4 step 4 describes.
type AppendOptions struct {
	RequireArtifacts bool
	Transitive       bool
	Resolver         func(artifactType, digest string) (exists bool, nestedRefs []artifact.Ref, err error)
	// ForkResolution, if set, names the next_root this append should keep
	// when a fork is detected at (sequence, prev_root).
	ForkResolution *ForkResolution
}

// ForkResolution names which of two competing next_root values at a given
// (sequence, prev_root) a fork-resolution VC has chosen.
type ForkResolution struct {
	Sequence       uint64
	PrevRoot       string
	ChosenNextRoot string
}

// Append validates and admits receipt r onto the chain, per spec §4.4
// steps 1-4 (VC proof verification in step 5 is the caller's
// responsibility via a pluggable verifier, kept out of this package to
// avoid a hard dependency on a specific proof suite here).
func (c *Chain) Append(r Receipt, opts AppendOptions) (warning string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !isSuperset(r.LawpackDigestSet, c.Expected.Lawpacks) {
		return "", msezerr.New(msezerr.KindValidation, "MSEZ/RECEIPT/LAWPACK_SET_INCOMPLETE",
			"lawpack_digest_set is not a superset of the corridor's expected set")
	}
	if !isSuperset(r.RulesetDigestSet, c.Expected.Rulesets) {
		return "", msezerr.New(msezerr.KindValidation, "MSEZ/RECEIPT/RULESET_SET_INCOMPLETE",
			"ruleset_digest_set is not a superset of the corridor's expected set")
	}
	if !sort.StringsAreSorted(r.LawpackDigestSet) || !sort.StringsAreSorted(r.RulesetDigestSet) {
		return "", msezerr.New(msezerr.KindValidation, "MSEZ/RECEIPT/DIGEST_SET_UNSORTED",
			"lawpack_digest_set and ruleset_digest_set must be sorted")
	}

	computed, err := artifact.StrictDigest(artifact.KindCorridorReceipt, r.ToGeneric())
	if err != nil {
		return "", err
	}
	if computed != r.NextRoot {
		return "", msezerr.New(msezerr.KindIntegrity, msezerr.CodeDigestMismatch,
			"next_root does not equal sha256(JCS(receipt minus proof and next_root))")
	}

	// Fork detection is keyed by (sequence, prev_root) independent of chain
	// head position: a conflicting resubmission for an already-committed
	// slot must be recognized as a fork, not mistaken for going backwards.
	if existing, ok := c.slotLookup(r.Sequence, r.PrevRoot); ok {
		if existing.NextRoot == r.NextRoot {
			return "", nil // idempotent duplicate
		}
		if opts.ForkResolution == nil || opts.ForkResolution.Sequence != r.Sequence ||
			opts.ForkResolution.PrevRoot != r.PrevRoot {
			return "", msezerr.New(msezerr.KindAmbiguity, msezerr.CodeForkDetected,
				"fork detected at sequence/prev_root with no matching fork-resolution VC")
		}
		chosen := opts.ForkResolution.ChosenNextRoot
		var keep, orphan Receipt
		switch chosen {
		case existing.NextRoot:
			keep, orphan = existing, r
		case r.NextRoot:
			keep, orphan = r, existing
		default:
			return "", msezerr.New(msezerr.KindValidation, "MSEZ/RECEIPT/BAD_FORK_RESOLUTION",
				"fork-resolution VC names a next_root not observed at this sequence")
		}
		c.orphans = append(c.orphans, orphan)
		c.setSlot(keep)
		c.replaceCommitted(keep)
		return "fork resolved", nil
	}

	expectedSeq := uint64(len(c.Receipts))
	expectedPrev := c.Genesis
	if expectedSeq > 0 {
		expectedPrev = c.Receipts[expectedSeq-1].NextRoot
	}
	if r.Sequence != expectedSeq {
		return "", msezerr.New(msezerr.KindState, msezerr.CodeSequenceGap,
			"sequence must be exactly one greater than the previous receipt's sequence")
	}
	if r.PrevRoot != expectedPrev {
		return "", msezerr.New(msezerr.KindState, msezerr.CodePrevRootMismatch,
			"prev_root does not equal the previous receipt's next_root")
	}

	if opts.RequireArtifacts && opts.Resolver != nil {
		if err := c.verifyArtifacts(r, opts); err != nil {
			return "", err
		}
	}

	c.Receipts = append(c.Receipts, r)
	c.setSlot(r)
	return "", nil
}

func (c *Chain) verifyArtifacts(r Receipt, opts AppendOptions) error {
	refs := collectRefs(r.Transition)
	for _, ref := range refs {
		exists, nested, err := opts.Resolver(ref.ArtifactType, ref.DigestSHA256)
		if err != nil {
			return err
		}
		if !exists {
			return msezerr.New(msezerr.KindMissing, msezerr.CodeNotFound,
				"referenced artifact not found: "+ref.ArtifactType+"/"+ref.DigestSHA256)
		}
		if opts.Transitive {
			for _, n := range nested {
				if _, _, err := opts.Resolver(n.ArtifactType, n.DigestSHA256); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func collectRefs(v interface{}) []artifact.Ref {
	var out []artifact.Ref
	var walk func(interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case map[string]interface{}:
			if at, ok := t["artifact_type"].(string); ok {
				if d, ok := t["digest_sha256"].(string); ok {
					out = append(out, artifact.Ref{ArtifactType: at, DigestSHA256: d})
				}
			}
			for _, val := range t {
				walk(val)
			}
		case []interface{}:
			for _, val := range t {
				walk(val)
			}
		}
	}
	walk(v)
	return out
}

func (c *Chain) slotLookup(seq uint64, prevRoot string) (Receipt, bool) {
	byPrev, ok := c.slots[seq]
	if !ok {
		return Receipt{}, false
	}
	r, ok := byPrev[prevRoot]
	return r, ok
}

func (c *Chain) setSlot(r Receipt) {
	byPrev, ok := c.slots[r.Sequence]
	if !ok {
		byPrev = make(map[string]Receipt)
		c.slots[r.Sequence] = byPrev
	}
	byPrev[r.PrevRoot] = r
}

// replaceCommitted swaps the committed receipt at keep.Sequence for keep,
// if that slot has already been committed to the linear chain.
func (c *Chain) replaceCommitted(keep Receipt) {
	for i, r := range c.Receipts {
		if r.Sequence == keep.Sequence {
			c.Receipts[i] = keep
			return
		}
	}
}

func isSuperset(have, expected []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, e := range expected {
		if _, ok := set[e]; !ok {
			return false
		}
	}
	return true
}

// FinalStateRoot returns the next_root of the most recent receipt, or the
// chain's genesis root if empty.
func (c *Chain) FinalStateRoot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Receipts) == 0 {
		return c.Genesis
	}
	return c.Receipts[len(c.Receipts)-1].NextRoot
}

// Orphans returns receipts that lost a fork resolution, for audit logging.
func (c *Chain) Orphans() []Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Receipt{}, c.orphans...)
}
