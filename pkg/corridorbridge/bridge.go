// Package corridorbridge implements the multi-hop corridor bridge of spec
// §4.9: discovery via the compliance manifold, a two-phase prepare/commit
// protocol per hop with release-on-failure, and a finalize step landing the
// destination tensor cell in PENDING. It generalizes the teacher's
// composition-layer bridge (pkg/bridge/kernel_bridge.go) — which wires
// independent subsystems into one fail-closed call — from a single-step
// governance call into a multi-hop, multi-phase pipeline.
package corridorbridge

import (
	"github.com/momentum-sez/msez-core/pkg/arbitration"
	"github.com/momentum-sez/msez-core/pkg/manifold"
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Request describes a bridge transfer request, per spec §4.9.
type Request struct {
	Asset         string
	GenesisDigest string
	Source        string
	Target        string
	Amount        arbitration.Money
}

// PrepareReceipt is produced by a hop's prepare_handler; it freezes a
// lock_amount at that hop.
type PrepareReceipt struct {
	Hop        manifold.Edge
	LockAmount arbitration.Money
	Digest     string
}

// CommitReceipt is produced by a hop's commit_handler.
type CommitReceipt struct {
	Hop    manifold.Edge
	Digest string
}

// PrepareHandler attempts to lock funds at one hop.
type PrepareHandler func(hop manifold.Edge, req Request) (PrepareReceipt, error)

// CommitHandler commits a previously prepared hop. prepareReceipt is
// guaranteed non-null by the orchestrator; receiving nil here is a
// programmer error and triggers a fatal assertion rather than an ordinary
// returned error.
type CommitHandler func(hop manifold.Edge, prepareReceipt *PrepareReceipt, req Request) (CommitReceipt, error)

// ReleaseHandler undoes a prepared-but-not-committed hop.
type ReleaseHandler func(hop manifold.Edge, prepareReceipt PrepareReceipt) error

// FinalizeHandler lands the destination tensor cell in PENDING pending
// attestations, using the final commit receipt.
type FinalizeHandler func(lastCommit CommitReceipt, req Request) error

// Bridge composes path discovery with the prepare/commit/finalize protocol.
type Bridge struct {
	graph    *manifold.Graph
	weights  manifold.Weights
	prepare  PrepareHandler
	commit   CommitHandler
	release  ReleaseHandler
	finalize FinalizeHandler
}

// New builds a Bridge bound to a jurisdiction graph and the per-phase
// handlers.
func New(graph *manifold.Graph, weights manifold.Weights, prepare PrepareHandler, commit CommitHandler, release ReleaseHandler, finalize FinalizeHandler) *Bridge {
	return &Bridge{graph: graph, weights: weights, prepare: prepare, commit: commit, release: release, finalize: finalize}
}

// Result is the outcome of a successful end-to-end bridge transfer.
type Result struct {
	Path     manifold.Path
	Prepares []PrepareReceipt
	Commits  []CommitReceipt
}

// Execute runs discovery, prepare, commit, and finalize in order, per spec
// §4.9. Any prepare failure releases every prior prepare on this attempt
// and returns the prepare error; any commit failure is returned as-is (the
// protocol does not support undoing a commit once issued).
func (b *Bridge) Execute(req Request, held manifold.AssetAttestations) (Result, error) {
	path, err := b.graph.ShortestPath(req.Source, req.Target, held, b.weights)
	if err != nil {
		return Result{}, err
	}

	prepares := make([]PrepareReceipt, 0, len(path.Hops))
	for _, hop := range path.Hops {
		receipt, err := b.prepare(hop, req)
		if err != nil {
			b.releaseAll(prepares)
			return Result{}, msezerr.Wrap(msezerr.KindState, "MSEZ/BRIDGE/PREPARE_FAILED", "hop prepare failed, prior prepares released", err)
		}
		prepares = append(prepares, receipt)
	}

	commits := make([]CommitReceipt, 0, len(path.Hops))
	for i, hop := range path.Hops {
		prepareReceipt := &prepares[i]
		msezerr.Assert(prepareReceipt != nil, "MSEZ/BRIDGE/NULL_PREPARE_RECEIPT", "commit_handler invoked with a null prepare receipt")
		commitReceipt, err := b.commit(hop, prepareReceipt, req)
		if err != nil {
			return Result{}, msezerr.Wrap(msezerr.KindState, "MSEZ/BRIDGE/COMMIT_FAILED", "hop commit failed", err)
		}
		commits = append(commits, commitReceipt)
	}

	if b.finalize != nil && len(commits) > 0 {
		if err := b.finalize(commits[len(commits)-1], req); err != nil {
			return Result{}, msezerr.Wrap(msezerr.KindState, "MSEZ/BRIDGE/FINALIZE_FAILED", "finalize failed", err)
		}
	}

	return Result{Path: path, Prepares: prepares, Commits: commits}, nil
}

func (b *Bridge) releaseAll(prepares []PrepareReceipt) {
	for i := len(prepares) - 1; i >= 0; i-- {
		if b.release != nil {
			_ = b.release(prepares[i].Hop, prepares[i])
		}
	}
}
