package anchor

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockChainAdapter is the reference ChainAdapter implementation spec §4.11
// names for tests: an in-memory chain with a configurable confirmation
// threshold and a controllable confirmation/readback view so tests can
// simulate re-orgs.
type MockChainAdapter struct {
	mu sync.Mutex

	chainName  string
	threshold  int
	byTx       map[string]*mockTx
	bestHashes map[string]string // txID -> the chain's current best readback
}

type mockTx struct {
	digest        string
	confirmations int
	blockHeight   int64
}

// NewMockChainAdapter constructs a mock adapter for chainName requiring
// threshold confirmations before CONFIRMED.
func NewMockChainAdapter(chainName string, threshold int) *MockChainAdapter {
	return &MockChainAdapter{
		chainName:  chainName,
		threshold:  threshold,
		byTx:       make(map[string]*mockTx),
		bestHashes: make(map[string]string),
	}
}

func (m *MockChainAdapter) ChainName() string          { return m.chainName }
func (m *MockChainAdapter) ConfirmationThreshold() int { return m.threshold }

func (m *MockChainAdapter) Submit(digest string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txID := fmt.Sprintf("mocktx-%s", uuid.New().String())
	m.byTx[txID] = &mockTx{digest: digest}
	m.bestHashes[txID] = digest
	return txID, nil
}

// AdvanceConfirmations is a test hook simulating block production.
func (m *MockChainAdapter) AdvanceConfirmations(txID string, n int, blockHeight int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byTx[txID]
	if !ok {
		return
	}
	tx.confirmations += n
	tx.blockHeight = blockHeight
}

// SimulateReorg is a test hook that changes the chain's best readback hash
// for a transaction, as if a competing fork replaced it.
func (m *MockChainAdapter) SimulateReorg(txID, newHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bestHashes[txID] = newHash
}

func (m *MockChainAdapter) Confirmations(txID string) (int, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byTx[txID]
	if !ok {
		return 0, 0, fmt.Errorf("unknown tx %s", txID)
	}
	return tx.confirmations, tx.blockHeight, nil
}

func (m *MockChainAdapter) ReadbackHash(txID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, ok := m.bestHashes[txID]
	if !ok {
		return "", fmt.Errorf("unknown tx %s", txID)
	}
	return hash, nil
}
