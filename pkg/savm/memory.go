package savm

import "github.com/momentum-sez/msez-core/pkg/msezerr"

// Memory is byte-addressable scratch space. Every read or write must
// expand the buffer to cover the access, charging gas for the expansion,
// before the read is served — a read past the currently-expanded boundary
// without going through Expand first is a VM-fatal condition.
type Memory struct {
	data []byte
	max  int
}

// NewMemory returns empty memory capped at maxBytes.
func NewMemory(maxBytes int) *Memory {
	return &Memory{max: maxBytes}
}

// Size returns the currently expanded length.
func (m *Memory) Size() int { return len(m.data) }

// expansionCost computes the gas charge to grow memory to newSize bytes,
// rounded up to the nearest 32-byte word, per spec §4.12: 3 gas/word.
func expansionCost(oldSize, newSize int) uint64 {
	if newSize <= oldSize {
		return 0
	}
	oldWords := (oldSize + 31) / 32
	newWords := (newSize + 31) / 32
	return uint64(newWords-oldWords) * MemoryExpansionGasPerWord
}

// Expand grows memory to cover [offset, offset+size) if needed, returning
// the gas cost of the expansion. It must be called, and its cost charged,
// before every read or write.
func (m *Memory) Expand(offset, size int) (uint64, error) {
	end := offset + size
	if end > m.max {
		return 0, msezerr.New(msezerr.KindResource, msezerr.CodeMemoryCap, "memory expansion would exceed memory_max")
	}
	cost := expansionCost(len(m.data), end)
	if end > len(m.data) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	return cost, nil
}

// Read returns size bytes at offset. The caller must have already called
// Expand covering this range; reading past the expanded boundary is a
// fatal VM error, never a silent zero-fill.
func (m *Memory) Read(offset, size int) ([]byte, error) {
	if offset < 0 || offset+size > len(m.data) {
		return nil, msezerr.New(msezerr.KindIntegrity, "MSEZ/SAVM/UNEXPANDED_READ",
			"read past the currently-expanded memory boundary")
	}
	out := make([]byte, size)
	copy(out, m.data[offset:offset+size])
	return out, nil
}

// Write stores data at offset. The caller must have already called Expand
// covering this range.
func (m *Memory) Write(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > len(m.data) {
		return msezerr.New(msezerr.KindIntegrity, "MSEZ/SAVM/UNEXPANDED_WRITE",
			"write past the currently-expanded memory boundary")
	}
	copy(m.data[offset:], data)
	return nil
}
