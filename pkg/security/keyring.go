package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeyProvider signs artifact digests for DataIntegrity-style VC proofs. The
// interface lets an in-memory seed stand in during development for an HSM
// or KMS-backed provider later without touching callers.
type KeyProvider interface {
	Sign(digest []byte) []byte
	PublicKey() ed25519.PublicKey
}

// MemoryKeyProvider holds an Ed25519 keypair in process memory.
type MemoryKeyProvider struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewMemoryKeyProvider generates a fresh random keypair.
func NewMemoryKeyProvider() (*MemoryKeyProvider, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}
	return &MemoryKeyProvider{pub: pub, priv: priv}, nil
}

// DeriveCorridorKey deterministically derives a per-corridor signing key
// from a single root seed via HKDF-SHA256, so one operator secret can mint
// a distinct key per corridor without persisting each one separately.
func DeriveCorridorKey(rootSeed []byte, corridorID string) (*MemoryKeyProvider, error) {
	reader := hkdf.New(sha256.New, rootSeed, []byte("msez-core-corridor-kdf"), []byte(corridorID))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, seed); err != nil {
		return nil, fmt.Errorf("deriving corridor key: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &MemoryKeyProvider{pub: pub, priv: priv}, nil
}

func (m *MemoryKeyProvider) Sign(digest []byte) []byte {
	return ed25519.Sign(m.priv, digest)
}

func (m *MemoryKeyProvider) PublicKey() ed25519.PublicKey {
	return m.pub
}

// VerifyProof reports whether sig is a valid Ed25519 signature over digest
// under pub.
func VerifyProof(pub ed25519.PublicKey, digest, sig []byte) bool {
	return ed25519.Verify(pub, digest, sig)
}
