// Package artifactgraph walks the transitive closure of ArtifactRefs
// reachable from a root artifact, reporting missing artifacts and digest
// mismatches, and can build or verify an offline witness bundle. It
// generalizes the teacher's pkg/proofgraph/graph.go closure-walk model.
package artifactgraph

import (
	"encoding/json"

	"github.com/momentum-sez/msez-core/pkg/artifact"
	"github.com/momentum-sez/msez-core/pkg/cas"
)

// Node is one artifact visited during traversal.
type Node struct {
	ArtifactType string `json:"artifact_type"`
	Digest       string `json:"digest_sha256"`
	Path         string `json:"path,omitempty"`
}

// Edge records that From references To.
type Edge struct {
	From Node `json:"from"`
	To   Node `json:"to"`
}

// Mismatch records a digest mismatch found in strict mode.
type Mismatch struct {
	Node     Node   `json:"node"`
	Expected string `json:"expected"`
	Computed string `json:"computed"`
}

// Report is the full verifier output, the identity-bearing manifest of a
// witness bundle.
type Report struct {
	Root      Node       `json:"root"`
	Nodes     []Node     `json:"nodes"`
	Edges     []Edge     `json:"edges,omitempty"`
	Missing   []Node     `json:"missing,omitempty"`
	Mismatch  []Mismatch `json:"mismatches,omitempty"`
	Truncated bool       `json:"truncated"`
}

// Options bounds traversal depth and breadth per spec §4.3.
type Options struct {
	Strict    bool
	EmitEdges bool
	MaxDepth  int
	MaxNodes  int
}

// DefaultOptions returns the spec's documented defaults (depth <=8, nodes <=1000).
func DefaultOptions() Options {
	return Options{MaxDepth: 8, MaxNodes: 1000}
}

// Verifier walks the artifact closure using a CAS store to resolve and load
// referenced artifacts.
type Verifier struct {
	store *cas.Store
	opts  Options
}

// New creates a Verifier backed by store.
func New(store *cas.Store, opts Options) *Verifier {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 8
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = 1000
	}
	return &Verifier{store: store, opts: opts}
}

type queueItem struct {
	node  Node
	depth int
}

// VerifyRoot performs a BFS closure walk starting at (artifactType, digest).
func (v *Verifier) VerifyRoot(artifactType, digest string) (*Report, error) {
	root := Node{ArtifactType: artifactType, Digest: digest}
	report := &Report{Root: root}

	seen := map[[2]string]bool{}
	queue := []queueItem{{node: root, depth: 0}}
	seen[[2]string{artifactType, digest}] = true

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if len(report.Nodes) >= v.opts.MaxNodes {
			report.Truncated = true
			break
		}

		path, _, err := v.store.Resolve(item.node.ArtifactType, item.node.Digest, false)
		if err != nil {
			report.Missing = append(report.Missing, item.node)
			continue
		}
		item.node.Path = path
		report.Nodes = append(report.Nodes, item.node)

		data, err := v.store.Load(item.node.ArtifactType, item.node.Digest, false)
		if err != nil {
			report.Missing = append(report.Missing, item.node)
			continue
		}

		if v.opts.Strict {
			computed := artifact.DigestBytes(data)
			if computed != item.node.Digest {
				// DigestBytes covers blob/opaque kinds; JSON object kinds
				// are re-verified via their own StrictDigest rule by the
				// owning package (receiptchain, artifact) before they ever
				// reach CAS, so a generic mismatch here always indicates
				// on-disk corruption of the raw file.
				report.Mismatch = append(report.Mismatch, Mismatch{
					Node: item.node, Expected: item.node.Digest, Computed: computed,
				})
			}
		}

		if item.depth >= v.opts.MaxDepth {
			report.Truncated = true
			continue
		}

		refs := extractRefs(data)
		for _, ref := range refs {
			key := [2]string{ref.ArtifactType, ref.DigestSHA256}
			if seen[key] {
				continue
			}
			seen[key] = true
			child := Node{ArtifactType: ref.ArtifactType, Digest: ref.DigestSHA256}
			if v.opts.EmitEdges {
				report.Edges = append(report.Edges, Edge{From: item.node, To: child})
			}
			queue = append(queue, queueItem{node: child, depth: item.depth + 1})
		}
	}

	return report, nil
}

// extractRefs scans a JSON document for every object carrying both
// artifact_type and digest_sha256 keys, per spec §4.3's traversal rule.
func extractRefs(data []byte) []artifact.Ref {
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil
	}
	var refs []artifact.Ref
	walk(generic, &refs)
	return refs
}

func walk(v interface{}, out *[]artifact.Ref) {
	switch t := v.(type) {
	case map[string]interface{}:
		if at, ok := t["artifact_type"].(string); ok {
			if d, ok := t["digest_sha256"].(string); ok {
				*out = append(*out, artifact.Ref{ArtifactType: at, DigestSHA256: d})
			}
		}
		for _, val := range t {
			walk(val, out)
		}
	case []interface{}:
		for _, val := range t {
			walk(val, out)
		}
	}
}

// Success reports whether the walk found no missing artifacts or mismatches.
func (r *Report) Success() bool {
	return len(r.Missing) == 0 && len(r.Mismatch) == 0
}
