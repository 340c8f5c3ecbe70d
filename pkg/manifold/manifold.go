// Package manifold implements the compliance manifold of spec §4.7: a
// jurisdiction-corridor graph with Dijkstra path planning and per-edge
// attestation-gap computation. The jurisdiction graph generalizes the
// teacher's region/regime binding (pkg/governance/jurisdiction.go) from a
// single-hop resolver into a routable graph, and its edge weights are
// evaluated through the same CEL-guard idiom as
// pkg/governance/policy_evaluator_cel.go so weight formulas stay
// data-driven rather than hardcoded.
package manifold

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Edge is one corridor connecting two jurisdictions.
type Edge struct {
	CorridorID          string
	From                string
	To                  string
	FeeUSD              float64
	ExpectedLatencyS    float64
	RequiredAttestation []string
}

// Weights holds the Dijkstra edge-cost coefficients of spec §4.7; defaults
// are chosen so missing attestations dominate fees. CostExpr, when set,
// replaces the built-in linear combination with a CEL expression — the same
// pluggable-cost idiom as pkg/lifecycle's transition guards — evaluated
// against fee_usd, attestation_gap_count, expected_latency_s, alpha, beta,
// and gamma, and must resolve to a double. CelEnv must be non-nil whenever
// CostExpr is set; build one with NewWeightEnv.
type Weights struct {
	Alpha float64 // fee_usd coefficient
	Beta  float64 // attestation_gap_count coefficient
	Gamma float64 // expected_latency_s coefficient

	CostExpr string
	CelEnv   *cel.Env
}

// DefaultWeights returns the spec's default coefficients: attestation gaps
// dominate by an order of magnitude over fee and latency terms. No CostExpr
// is set, so ShortestPath falls back to the built-in linear combination.
func DefaultWeights() Weights {
	return Weights{Alpha: 1.0, Beta: 1000.0, Gamma: 0.01}
}

// NewWeightEnv builds the CEL environment a Weights.CostExpr is evaluated
// against, matching the teacher's policy_evaluator_cel.go environment shape.
func NewWeightEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("fee_usd", cel.DoubleType),
		cel.Variable("attestation_gap_count", cel.IntType),
		cel.Variable("expected_latency_s", cel.DoubleType),
		cel.Variable("alpha", cel.DoubleType),
		cel.Variable("beta", cel.DoubleType),
		cel.Variable("gamma", cel.DoubleType),
	)
}

// AssetAttestations reports which attestation types an asset already holds.
type AssetAttestations interface {
	Holds(attestationType string) bool
}

type heldSet map[string]bool

func (h heldSet) Holds(t string) bool { return h[t] }

// NewHeldSet builds an AssetAttestations from a plain list.
func NewHeldSet(types []string) AssetAttestations {
	h := make(heldSet, len(types))
	for _, t := range types {
		h[t] = true
	}
	return h
}

// AttestationGap is one missing attestation type an asset needs to cross an
// edge, with an acquisition hint.
type AttestationGap struct {
	AttestationType string
	AcquisitionHint string
}

// GapCount computes spec §4.7's attestation_gap_count(edge, asset): the
// count of required attestation types the asset does not already hold.
func GapCount(e Edge, held AssetAttestations) int {
	return len(Gaps(e, held))
}

// Gaps returns the typed descriptors for every missing attestation type on
// edge e for the given asset.
func Gaps(e Edge, held AssetAttestations) []AttestationGap {
	var gaps []AttestationGap
	for _, t := range e.RequiredAttestation {
		if !held.Holds(t) {
			gaps = append(gaps, AttestationGap{
				AttestationType: t,
				AcquisitionHint: "acquire " + t + " before crossing corridor " + e.CorridorID,
			})
		}
	}
	return gaps
}

// Graph is the jurisdiction-corridor graph Dijkstra routes over.
type Graph struct {
	edges map[string][]Edge // keyed by From jurisdiction

	mu       sync.Mutex
	prgCache map[string]cel.Program
}

// NewGraph builds a graph from a flat edge list.
func NewGraph(edges []Edge) *Graph {
	g := &Graph{edges: make(map[string][]Edge), prgCache: make(map[string]cel.Program)}
	for _, e := range edges {
		g.edges[e.From] = append(g.edges[e.From], e)
	}
	return g
}

// weight computes w(edge) per spec §4.7, via w.CostExpr if set, otherwise
// the built-in linear combination.
func (g *Graph) weight(e Edge, held AssetAttestations, w Weights) (float64, error) {
	if w.CostExpr == "" {
		return w.Alpha*e.FeeUSD + w.Beta*float64(GapCount(e, held)) + w.Gamma*e.ExpectedLatencyS, nil
	}
	return g.evalCostExpr(e, held, w)
}

func (g *Graph) evalCostExpr(e Edge, held AssetAttestations, w Weights) (float64, error) {
	if w.CelEnv == nil {
		return 0, fmt.Errorf("no CEL environment configured for cost expression %q", w.CostExpr)
	}

	g.mu.Lock()
	prg, hit := g.prgCache[w.CostExpr]
	if !hit {
		ast, issues := w.CelEnv.Compile(w.CostExpr)
		if issues != nil && issues.Err() != nil {
			g.mu.Unlock()
			return 0, fmt.Errorf("compile cost expression: %w", issues.Err())
		}
		p, err := w.CelEnv.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
		if err != nil {
			g.mu.Unlock()
			return 0, fmt.Errorf("compile cost expression program: %w", err)
		}
		g.prgCache[w.CostExpr] = p
		prg = p
	}
	g.mu.Unlock()

	out, _, err := prg.Eval(map[string]interface{}{
		"fee_usd":               e.FeeUSD,
		"attestation_gap_count": GapCount(e, held),
		"expected_latency_s":    e.ExpectedLatencyS,
		"alpha":                 w.Alpha,
		"beta":                  w.Beta,
		"gamma":                 w.Gamma,
	})
	if err != nil {
		return 0, fmt.Errorf("eval cost expression: %w", err)
	}
	v, ok := out.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("cost expression %q did not evaluate to a double", w.CostExpr)
	}
	return v, nil
}

// Path is a planned route: the corridor hops taken in order and the total
// weight accumulated.
type Path struct {
	Hops        []Edge
	TotalWeight float64
}

type pqItem struct {
	jurisdiction string
	dist         float64
	index        int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].jurisdiction < pq[j].jurisdiction
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// NoPathError is returned when no route connects source and target.
type NoPathError struct {
	From, To string
}

func (e *NoPathError) Error() string {
	return "no path from " + e.From + " to " + e.To
}

// ShortestPath runs Dijkstra from source to target using edge weights
// w(edge) = α·fee_usd + β·attestation_gap_count + γ·expected_latency_s.
// Ties in the priority order break on lex-ordered corridor_id, applied by
// visiting each node's outgoing edges in corridor_id order. Distance
// "infinity" never leaks into arithmetic: unreached nodes are simply absent
// from the distance map.
func (g *Graph) ShortestPath(source, target string, held AssetAttestations, w Weights) (Path, error) {
	if source == target {
		return Path{}, nil
	}

	dist := map[string]float64{source: 0}
	prevEdge := map[string]Edge{}
	prevNode := map[string]string{}
	visited := map[string]bool{}

	pq := &priorityQueue{{jurisdiction: source, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pqItem)
		if visited[cur.jurisdiction] {
			continue
		}
		visited[cur.jurisdiction] = true
		if cur.jurisdiction == target {
			break
		}

		edges := append([]Edge{}, g.edges[cur.jurisdiction]...)
		sort.Slice(edges, func(i, j int) bool { return edges[i].CorridorID < edges[j].CorridorID })

		for _, e := range edges {
			if visited[e.To] {
				continue
			}
			edgeWeight, err := g.weight(e, held, w)
			if err != nil {
				return Path{}, msezerr.Wrap(msezerr.KindValidation, "MSEZ/MANIFOLD/WEIGHT_EXPR_ERROR",
					"edge weight evaluation failed", err)
			}
			nd := cur.dist + edgeWeight
			existing, seen := dist[e.To]
			if !seen || nd < existing || (nd == existing && e.CorridorID < prevEdge[e.To].CorridorID) {
				dist[e.To] = nd
				prevEdge[e.To] = e
				prevNode[e.To] = cur.jurisdiction
				heap.Push(pq, &pqItem{jurisdiction: e.To, dist: nd})
			}
		}
	}

	if _, ok := dist[target]; !ok {
		return Path{}, msezerr.Wrap(msezerr.KindState, msezerr.CodeNoPath, "no path between jurisdictions", &NoPathError{From: source, To: target})
	}

	var hops []Edge
	node := target
	for node != source {
		e := prevEdge[node]
		hops = append([]Edge{e}, hops...)
		node = prevNode[node]
	}

	return Path{Hops: hops, TotalWeight: dist[target]}, nil
}
