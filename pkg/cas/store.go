// Package cas implements the content-addressed artifact store described in
// spec §4.2: a filesystem tree rooted at one or more store roots, addressed
// by (type, digest), with integrity checking on read.
package cas

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Store resolves and persists artifacts across one or more store roots, as
// generalized from the teacher's single-root FileStore
// (pkg/artifacts/store.go) into the multi-root lookup spec §4.2 requires.
type Store struct {
	roots []string
	mu    sync.Mutex
}

// New creates a Store searching roots in order; the first root is used for
// writes. At least one root is required.
func New(roots ...string) (*Store, error) {
	if len(roots) == 0 {
		return nil, msezerr.New(msezerr.KindValidation, "MSEZ/CAS/NO_ROOTS", "at least one store root is required")
	}
	for _, r := range roots {
		//nolint:gosec // shared artifact directory, world-readable by design
		if err := os.MkdirAll(r, 0o755); err != nil {
			return nil, msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to ensure store root "+r, err)
		}
	}
	return &Store{roots: roots}, nil
}

func suffixFor(artifactType string) string {
	return artifactType + ".json"
}

func pathIn(root, artifactType, digest, suffix string) string {
	return filepath.Join(root, artifactType, digest+"."+suffix)
}

// Store writes data for (artifactType, digest) into the primary root.
// overwrite=false and an existing file with matching content is a no-op
// that returns its path. An existing file that does not hash to digest, or
// whose bytes differ from data, is a HashCollision integrity error — the
// engine's strongest safety invariant, per spec §4.2 and §8 item 6.
func (s *Store) Store(artifactType, digest string, data []byte, suffix string, overwrite bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if suffix == "" {
		suffix = suffixFor(artifactType)
	}
	root := s.roots[0]
	dir := filepath.Join(root, artifactType)
	//nolint:gosec // shared artifact directory
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to create type dir", err)
	}
	path := pathIn(root, artifactType, digest, suffix)

	if existing, err := os.ReadFile(path); err == nil { //nolint:gosec // digest-validated path
		existingHash := sha256Hex(existing)
		if existingHash != digest {
			return "", msezerr.New(msezerr.KindIntegrity, msezerr.CodeHashCollision,
				fmt.Sprintf("content at %s does not hash to declared digest %s (got %s)", path, digest, existingHash))
		}
		if !bytes.Equal(existing, data) {
			return "", msezerr.New(msezerr.KindIntegrity, msezerr.CodeHashCollision,
				fmt.Sprintf("content for %s differs from the bytes already stored under digest %s", path, digest))
		}
		if !overwrite {
			return path, nil
		}
	}

	tmp := path + ".tmp"
	//nolint:gosec // artifact files are world-readable by design
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to write artifact", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to commit artifact", err)
	}
	return path, nil
}

// Resolve searches all configured roots for (artifactType, digest). If
// multiple candidates exist across roots, they must all resolve to the same
// canonical path (e.g. via symlink) or AmbiguousArtifact is returned. The
// content is re-hashed on resolve; a mismatch is a warning returned
// alongside the path unless strict is set, in which case it is fatal.
func (s *Store) Resolve(artifactType, digest string, strict bool) (path string, warning error, err error) {
	cands := s.Candidates(artifactType, digest)
	if len(cands) == 0 {
		return "", nil, msezerr.New(msezerr.KindMissing, msezerr.CodeNotFound,
			fmt.Sprintf("artifact not found: %s/%s", artifactType, digest))
	}

	canonicalPaths := make(map[string]struct{})
	for _, c := range cands {
		real, rerr := filepath.EvalSymlinks(c)
		if rerr != nil {
			real = c
		}
		canonicalPaths[real] = struct{}{}
	}
	if len(canonicalPaths) > 1 {
		return "", nil, msezerr.New(msezerr.KindAmbiguity, msezerr.CodeAmbiguousArtifact,
			fmt.Sprintf("multiple distinct artifacts found for %s/%s across store roots", artifactType, digest))
	}

	chosen := cands[0]
	data, rerr := os.ReadFile(chosen) //nolint:gosec // digest-validated path
	if rerr != nil {
		return "", nil, msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to read resolved artifact", rerr)
	}
	computed := sha256Hex(data)
	if computed != digest {
		mismatch := msezerr.New(msezerr.KindIntegrity, msezerr.CodeDigestMismatch,
			fmt.Sprintf("resolved artifact %s hashes to %s, expected %s", chosen, computed, digest))
		if strict {
			return "", nil, mismatch
		}
		return chosen, mismatch, nil
	}
	return chosen, nil, nil
}

// Candidates enumerates every file across all roots matching
// (artifactType, digest) regardless of suffix.
func (s *Store) Candidates(artifactType, digest string) []string {
	var out []string
	for _, root := range s.roots {
		dir := filepath.Join(root, artifactType)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		prefix := digest + "."
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if len(e.Name()) >= len(prefix) && e.Name()[:len(prefix)] == prefix {
				out = append(out, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(out)
	return out
}

// Load resolves and reads an artifact's bytes.
func (s *Store) Load(artifactType, digest string, strict bool) ([]byte, error) {
	path, _, err := s.Resolve(artifactType, digest, strict)
	if err != nil {
		return nil, err
	}
	data, rerr := os.ReadFile(path) //nolint:gosec // digest-validated path
	if rerr != nil {
		return nil, msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to read artifact", rerr)
	}
	return data, nil
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
