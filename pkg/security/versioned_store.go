package security

import (
	"sync"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

type versionedEntry struct {
	value   interface{}
	version uint64
}

// VersionedStore is a key-value store with compare-and-swap semantics keyed
// on (key, version). Versions advance monotonically from 1 on every
// successful write.
type VersionedStore struct {
	mu      sync.Mutex
	entries map[string]versionedEntry
}

func NewVersionedStore() *VersionedStore {
	return &VersionedStore{entries: make(map[string]versionedEntry)}
}

// Get returns the current value and version for key.
func (s *VersionedStore) Get(key string) (value interface{}, version uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, 0, false
	}
	return e.value, e.version, true
}

// CompareAndSwap writes newValue for key only if the key's current version
// equals expectedVersion (0 meaning the key must not yet exist). On
// success it returns the new version.
func (s *VersionedStore) CompareAndSwap(key string, expectedVersion uint64, newValue interface{}) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.entries[key]
	currentVersion := uint64(0)
	if exists {
		currentVersion = e.version
	}
	if currentVersion != expectedVersion {
		return 0, msezerr.New(msezerr.KindState, "MSEZ/SECURITY/VERSION_CONFLICT",
			"compare-and-swap expected version does not match current version")
	}
	nextVersion := currentVersion + 1
	s.entries[key] = versionedEntry{value: newValue, version: nextVersion}
	return nextVersion, nil
}
