// Package anchor implements the anchor layer of spec §4.11: a pluggable
// per-chain adapter port, a mock reference adapter, the
// SUBMITTED→PENDING→CONFIRMED/FAILED/REORGED status machine, and
// cross-chain inclusion-proof verification with TTL and re-org handling.
// It generalizes the teacher's transparency-log client idiom
// (pkg/trust/rekor_client.go: poll an external log for inclusion proofs
// against a submitted digest) from a single append-only log to a
// multi-chain, re-org-aware anchor registry.
package anchor

import (
	"sync"
	"time"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Status is one state of the anchor status machine.
type Status string

const (
	Submitted Status = "SUBMITTED"
	Pending   Status = "PENDING"
	Confirmed Status = "CONFIRMED"
	Failed    Status = "FAILED"
	Reorged   Status = "REORGED"
)

// ChainAdapter is the pluggable per-chain port spec §4.11 names.
type ChainAdapter interface {
	ChainName() string
	ConfirmationThreshold() int
	Submit(digest string) (txID string, err error)
	Confirmations(txID string) (count int, blockHeight int64, err error)
	// ReadbackHash reproduces the on-chain hash for an inclusion proof
	// comparison.
	ReadbackHash(txID string) (string, error)
}

// AnchorRecord tracks one checkpoint's anchoring lifecycle on one chain.
type AnchorRecord struct {
	Digest      string
	Chain       string
	TxID        string
	BlockHeight int64
	Status      Status
	SubmittedAt time.Time
	ConfirmedAt *time.Time
}

// Registry tracks anchor records across chains, with a TTL for pending
// anchors and re-org demotion.
type Registry struct {
	mu       sync.Mutex
	adapters map[string]ChainAdapter
	records  map[string]*AnchorRecord // keyed by chain+":"+digest
	ttl      time.Duration
}

// NewRegistry builds a registry with the given pending-anchor TTL.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{adapters: make(map[string]ChainAdapter), records: make(map[string]*AnchorRecord), ttl: ttl}
}

// RegisterAdapter wires one chain's adapter into the registry.
func (r *Registry) RegisterAdapter(a ChainAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.ChainName()] = a
}

func recordKey(chain, digest string) string { return chain + ":" + digest }

// Submit anchors a checkpoint digest on the named chain and emits the
// initial AnchorRecord in SUBMITTED state.
func (r *Registry) Submit(chain, digest string, now time.Time) (*AnchorRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	adapter, ok := r.adapters[chain]
	if !ok {
		return nil, msezerr.New(msezerr.KindMissing, msezerr.CodeNotFound, "no adapter registered for chain "+chain)
	}

	txID, err := adapter.Submit(digest)
	if err != nil {
		return nil, msezerr.Wrap(msezerr.KindResource, "MSEZ/ANCHOR/SUBMIT_FAILED", "chain submission failed", err)
	}

	record := &AnchorRecord{Digest: digest, Chain: chain, TxID: txID, Status: Submitted, SubmittedAt: now}
	r.records[recordKey(chain, digest)] = record
	return record, nil
}

// Poll advances a record's status by consulting its chain adapter:
// SUBMITTED/PENDING advance to CONFIRMED once confirmations clear the
// chain's threshold, or are demoted to FAILED if the TTL elapses first
// without enough confirmations.
func (r *Registry) Poll(chain, digest string, now time.Time) (*AnchorRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[recordKey(chain, digest)]
	if !ok {
		return nil, msezerr.New(msezerr.KindMissing, msezerr.CodeNotFound, "no anchor record for this chain/digest")
	}
	if record.Status == Confirmed || record.Status == Failed || record.Status == Reorged {
		return record, nil
	}

	adapter := r.adapters[chain]
	confirmations, blockHeight, err := adapter.Confirmations(record.TxID)
	if err != nil {
		return nil, msezerr.Wrap(msezerr.KindResource, "MSEZ/ANCHOR/POLL_FAILED", "chain confirmation poll failed", err)
	}
	record.BlockHeight = blockHeight

	if confirmations >= adapter.ConfirmationThreshold() {
		confirmedAt := now
		record.Status = Confirmed
		record.ConfirmedAt = &confirmedAt
		return record, nil
	}

	record.Status = Pending
	if r.ttl > 0 && now.Sub(record.SubmittedAt) > r.ttl {
		record.Status = Failed
	}
	return record, nil
}

// ReorgCheck compares the adapter's current best readback hash for a
// confirmed record's transaction against the digest it was supposed to
// anchor; a mismatch demotes the record to REORGED.
func (r *Registry) ReorgCheck(chain, digest string) (*AnchorRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[recordKey(chain, digest)]
	if !ok {
		return nil, msezerr.New(msezerr.KindMissing, msezerr.CodeNotFound, "no anchor record for this chain/digest")
	}
	if record.Status != Confirmed {
		return record, nil
	}

	adapter := r.adapters[chain]
	readback, err := adapter.ReadbackHash(record.TxID)
	if err != nil {
		return nil, msezerr.Wrap(msezerr.KindResource, "MSEZ/ANCHOR/READBACK_FAILED", "chain readback failed", err)
	}
	if readback != record.Digest {
		record.Status = Reorged
		record.ConfirmedAt = nil
	}
	return record, nil
}

// InclusionProof lets a verifier reproduce the expected on-chain hash and
// compare it against an adapter's readback.
type InclusionProof struct {
	Chain    string
	TxID     string
	Digest   string
	Expected string
}

// VerifyInclusion reproduces the expected on-chain hash for proof and
// compares it against the adapter's readback.
func VerifyInclusion(adapter ChainAdapter, proof InclusionProof) (bool, error) {
	readback, err := adapter.ReadbackHash(proof.TxID)
	if err != nil {
		return false, msezerr.Wrap(msezerr.KindResource, "MSEZ/ANCHOR/READBACK_FAILED", "chain readback failed", err)
	}
	return readback == proof.Expected, nil
}
