// Package savm implements the Smart-Asset VM of spec §4.12: a 256-bit
// stack machine with contiguous opcode-class ranges, a single gas-cost
// table, expand-before-read memory safety, and compliance/migration
// coprocessor ports. It generalizes the teacher's resource-limited
// execution context (pkg/runtime/sandbox/sandbox.go) — which charges a
// budget before letting an operation proceed — into a bespoke
// deterministic instruction set, since no general-purpose WASM engine in
// the pack exposes per-opcode contiguous ranges and a single gas table.
package savm

import "math/big"

// wordMod is 2^256, the wraparound modulus for all Word arithmetic.
var wordMod = new(big.Int).Lsh(big.NewInt(1), 256)

// Word is a 256-bit unsigned integer. All arithmetic wraps mod 2^256.
type Word struct {
	v *big.Int
}

// ZeroWord is the additive identity.
func ZeroWord() Word { return Word{v: big.NewInt(0)} }

// WordFromUint64 lifts a uint64 into a Word.
func WordFromUint64(n uint64) Word { return Word{v: new(big.Int).SetUint64(n)} }

// WordFromBytes interprets b as a big-endian unsigned integer, reduced
// mod 2^256.
func WordFromBytes(b []byte) Word {
	v := new(big.Int).SetBytes(b)
	v.Mod(v, wordMod)
	return Word{v: v}
}

// Bytes32 returns the big-endian 32-byte representation.
func (w Word) Bytes32() [32]byte {
	var out [32]byte
	b := w.v.Bytes()
	copy(out[32-len(b):], b)
	return out
}

func wrap(v *big.Int) Word {
	v.Mod(v, wordMod)
	if v.Sign() < 0 {
		v.Add(v, wordMod)
	}
	return Word{v: v}
}

func (w Word) Add(other Word) Word { return wrap(new(big.Int).Add(w.v, other.v)) }
func (w Word) Sub(other Word) Word { return wrap(new(big.Int).Sub(w.v, other.v)) }
func (w Word) Mul(other Word) Word { return wrap(new(big.Int).Mul(w.v, other.v)) }

func (w Word) Div(other Word) Word {
	if other.v.Sign() == 0 {
		return ZeroWord()
	}
	return wrap(new(big.Int).Div(w.v, other.v))
}

func (w Word) Mod(other Word) Word {
	if other.v.Sign() == 0 {
		return ZeroWord()
	}
	return wrap(new(big.Int).Mod(w.v, other.v))
}

func (w Word) Eq(other Word) bool { return w.v.Cmp(other.v) == 0 }
func (w Word) Lt(other Word) bool { return w.v.Cmp(other.v) < 0 }
func (w Word) Gt(other Word) bool { return w.v.Cmp(other.v) > 0 }

func (w Word) IsZero() bool { return w.v.Sign() == 0 }

// Uint64 truncates w to 64 bits; callers use it only for offsets/sizes
// that are validated against MemoryMax before this conversion.
func (w Word) Uint64() uint64 { return w.v.Uint64() }

func (w Word) String() string { return w.v.String() }

func (w Word) And(other Word) Word { return wrap(new(big.Int).And(w.v, other.v)) }
func (w Word) Or(other Word) Word  { return wrap(new(big.Int).Or(w.v, other.v)) }
func (w Word) Xor(other Word) Word { return wrap(new(big.Int).Xor(w.v, other.v)) }
