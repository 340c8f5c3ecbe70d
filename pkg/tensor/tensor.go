// Package tensor implements the compliance tensor of spec §4.6: a sparse
// 4-D (asset, jurisdiction, domain, time) map of compliance-state cells, a
// worst-first lattice over states, and a pure Merkle-root construction. The
// Merkle build generalizes the teacher's evidence Merkle tree
// (pkg/merkle/tree.go) from path/value leaves to compliance-cell
// coordinates, keeping its odd-sibling duplication and domain-separated
// leaf/node hashing.
package tensor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/momentum-sez/msez-core/pkg/canon"
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// State is a point in the worst-first compliance lattice.
type State int

const (
	NonCompliant State = iota
	Unknown
	Expired
	Pending
	Exempt
	Compliant
)

var stateNames = map[State]string{
	NonCompliant: "NON_COMPLIANT",
	Unknown:      "UNKNOWN",
	Expired:      "EXPIRED",
	Pending:      "PENDING",
	Exempt:       "EXEMPT",
	Compliant:    "COMPLIANT",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState inverts String, for callers loading cell state from JSON/YAML
// descriptors rather than constructing it in Go.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, msezerr.New(msezerr.KindValidation, "MSEZ/TENSOR/BAD_STATE", "unknown compliance state: "+name)
}

// Less, LessOrEqual, Greater, GreaterOrEqual, Equal and Compare give the
// lattice's total order, worst (NON_COMPLIANT) first.
func (s State) Less(other State) bool           { return s < other }
func (s State) LessOrEqual(other State) bool    { return s <= other }
func (s State) Greater(other State) bool        { return s > other }
func (s State) GreaterOrEqual(other State) bool { return s >= other }
func (s State) Equal(other State) bool          { return s == other }
func (s State) Compare(other State) int {
	switch {
	case s < other:
		return -1
	case s > other:
		return 1
	default:
		return 0
	}
}

// Meet returns the lesser (worse) of two states.
func Meet(a, b State) State {
	if a < b {
		return a
	}
	return b
}

// Join returns the greater (better) of two states.
func Join(a, b State) State {
	if a > b {
		return a
	}
	return b
}

// Coord addresses one cell of the tensor.
type Coord struct {
	Asset        string `json:"asset"`
	Jurisdiction string `json:"jur"`
	Domain       string `json:"domain"`
	Time         string `json:"time"`
}

func (c Coord) key() string {
	return c.Asset + "\x00" + c.Jurisdiction + "\x00" + c.Domain + "\x00" + c.Time
}

// Cell is one occupied coordinate of the tensor.
type Cell struct {
	Coord         Coord                    `json:"coord"`
	State         State                    `json:"state"`
	Reason        string                   `json:"reason,omitempty"`
	Attestations  []map[string]interface{} `json:"attestations,omitempty"`
}

func (c Cell) toGeneric() map[string]interface{} {
	m := map[string]interface{}{
		"coord": map[string]interface{}{
			"asset": c.Coord.Asset,
			"jur":   c.Coord.Jurisdiction,
			"domain": c.Coord.Domain,
			"time":  c.Coord.Time,
		},
		"state": c.State.String(),
	}
	if c.Reason != "" {
		m["reason"] = c.Reason
	}
	if len(c.Attestations) > 0 {
		attest := make([]interface{}, len(c.Attestations))
		for i, a := range c.Attestations {
			attest[i] = a
		}
		m["attestations"] = attest
	}
	return m
}

// Tensor is the sparse 4-D compliance map of spec §4.6.
type Tensor struct {
	cells map[string]Cell
}

// New returns an empty tensor.
func New() *Tensor {
	return &Tensor{cells: make(map[string]Cell)}
}

// Set writes or overwrites the cell at coord.
func (t *Tensor) Set(coord Coord, state State, reason string, attestations []map[string]interface{}) {
	t.cells[coord.key()] = Cell{Coord: coord, State: state, Reason: reason, Attestations: attestations}
}

// Get returns the cell at coord, if occupied.
func (t *Tensor) Get(coord Coord) (Cell, bool) {
	c, ok := t.cells[coord.key()]
	return c, ok
}

// Slice returns a sub-tensor of every cell matching the fixed axes (the
// empty string in an axis means "unconstrained").
func (t *Tensor) Slice(fixed Coord) *Tensor {
	out := New()
	for _, c := range t.cells {
		if fixed.Asset != "" && c.Coord.Asset != fixed.Asset {
			continue
		}
		if fixed.Jurisdiction != "" && c.Coord.Jurisdiction != fixed.Jurisdiction {
			continue
		}
		if fixed.Domain != "" && c.Coord.Domain != fixed.Domain {
			continue
		}
		if fixed.Time != "" && c.Coord.Time != fixed.Time {
			continue
		}
		out.cells[c.Coord.key()] = c
	}
	return out
}

func (t *Tensor) sortedCells() []Cell {
	cells := make([]Cell, 0, len(t.cells))
	for _, c := range t.cells {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Coord.key() < cells[j].Coord.key() })
	return cells
}

const leafDomainTag = "msez:tensor:leaf:v1"
const nodeDomainTag = "msez:tensor:node:v1"

func leafHash(c Cell) (string, error) {
	canonical, err := canon.Bytes(c.toGeneric())
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.WriteString(leafDomainTag)
	buf.WriteByte(0)
	buf.WriteString(c.Coord.key())
	buf.WriteByte(0)
	buf.Write(canonical)
	return sha256Hex(buf.Bytes()), nil
}

func nodeHash(left, right string) string {
	var buf bytes.Buffer
	buf.WriteString(nodeDomainTag)
	buf.WriteByte(0)
	buf.Write(hexToBytes(left))
	buf.Write(hexToBytes(right))
	return sha256Hex(buf.Bytes())
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hexToBytes(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}

// MerkleResult is the output of MerkleRoot: the root plus every level, for
// inclusion-proof construction.
type MerkleResult struct {
	Root       string
	CellOrder  []Coord
	LeafHashes []string
	Levels     [][]string
}

// MerkleRoot computes the tensor's Merkle root. Pure: it never mutates the
// tensor's stored cells, sorting a freshly copied cell list instead.
func (t *Tensor) MerkleRoot() (MerkleResult, error) {
	cells := t.sortedCells()
	if len(cells) == 0 {
		return MerkleResult{Root: sha256Hex([]byte(leafDomainTag + "\x00empty"))}, nil
	}

	leaves := make([]string, len(cells))
	order := make([]Coord, len(cells))
	for i, c := range cells {
		h, err := leafHash(c)
		if err != nil {
			return MerkleResult{}, err
		}
		leaves[i] = h
		order[i] = c.Coord
	}

	levels := [][]string{append([]string{}, leaves...)}
	current := leaves
	for len(current) > 1 {
		current = nextLevel(current)
		levels = append(levels, current)
	}

	return MerkleResult{Root: current[0], CellOrder: order, LeafHashes: leaves, Levels: levels}, nil
}

func nextLevel(hashes []string) []string {
	count := len(hashes)
	if count%2 != 0 {
		hashes = append(append([]string{}, hashes...), hashes[count-1])
		count++
	}
	next := make([]string, count/2)
	for i := 0; i < count; i += 2 {
		next[i/2] = nodeHash(hashes[i], hashes[i+1])
	}
	return next
}

// InclusionProof is a sibling path from a leaf to the root.
type InclusionProof struct {
	Coord    Coord
	LeafHash string
	Siblings []string
	Root     string
}

// ProveInclusion builds a Merkle inclusion proof for coord.
func (t *Tensor) ProveInclusion(coord Coord) (InclusionProof, error) {
	result, err := t.MerkleRoot()
	if err != nil {
		return InclusionProof{}, err
	}
	idx := -1
	for i, c := range result.CellOrder {
		if c == coord {
			idx = i
			break
		}
	}
	if idx == -1 {
		return InclusionProof{}, msezerr.New(msezerr.KindMissing, msezerr.CodeNotFound, "coordinate not occupied in tensor")
	}

	var siblings []string
	levelIdx := idx
	for level := 0; level < len(result.Levels)-1; level++ {
		nodes := result.Levels[level]
		if levelIdx%2 == 0 {
			sibling := levelIdx + 1
			if sibling >= len(nodes) {
				sibling = levelIdx
			}
			siblings = append(siblings, nodes[sibling])
		} else {
			siblings = append(siblings, nodes[levelIdx-1])
		}
		levelIdx /= 2
	}

	return InclusionProof{Coord: coord, LeafHash: result.LeafHashes[idx], Siblings: siblings, Root: result.Root}, nil
}

// Meet and Join compose two tensors cell-by-cell per the lattice; a
// coordinate occupied in only one tensor passes through unchanged.
func (t *Tensor) Meet(other *Tensor) *Tensor { return t.combine(other, Meet) }
func (t *Tensor) Join(other *Tensor) *Tensor { return t.combine(other, Join) }

func (t *Tensor) combine(other *Tensor, op func(a, b State) State) *Tensor {
	out := New()
	for k, c := range t.cells {
		out.cells[k] = c
	}
	for k, c := range other.cells {
		if existing, ok := out.cells[k]; ok {
			existing.State = op(existing.State, c.State)
			out.cells[k] = existing
		} else {
			out.cells[k] = c
		}
	}
	return out
}

// Commitment is the VC-able snapshot of a tensor's Merkle state.
type Commitment struct {
	Root      string `json:"root"`
	CellCount int    `json:"cell_count"`
	AsOf      string `json:"as_of"`
	SliceSpec *Coord `json:"slice_spec,omitempty"`
}

// Commit builds a Commitment for the tensor's current Merkle root.
func (t *Tensor) Commit(asOf string, sliceSpec *Coord) (Commitment, error) {
	result, err := t.MerkleRoot()
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{Root: result.Root, CellCount: len(t.cells), AsOf: asOf, SliceSpec: sliceSpec}, nil
}
