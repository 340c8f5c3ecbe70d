package zkp

import (
	"encoding/json"

	"github.com/momentum-sez/msez-core/pkg/canon"
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Proof is opaque to callers outside this package; its Blob layout is an
// implementation detail of whichever Prover produced it.
type Proof struct {
	CircuitID string `json:"circuit_id"`
	Blob      []byte `json:"blob"`
}

// Prover produces a Proof that witness satisfies circuit for the given
// public inputs.
type Prover interface {
	Prove(circuit Circuit, witness map[string]interface{}, publicInputs map[string]interface{}) (Proof, error)
}

// Verifier checks a Proof against a verifying key and the public inputs
// the caller claims were used.
type Verifier interface {
	Verify(proof Proof, verifyingKey string, publicInputs map[string]interface{}) (bool, error)
}

// MockPair is a deterministic Prover/Verifier pair for testing: it proves
// nothing about the witness cryptographically, but it does enforce the one
// property spec §4.13 requires of any mock — the proof blob hash-binds the
// public inputs it was produced against, so swapping in different public
// inputs at verify time is rejected rather than silently accepted.
type MockPair struct{}

func NewMockPair() MockPair { return MockPair{} }

// mockBlob is the canonical structure embedded in a MockPair proof blob.
type mockBlob struct {
	PublicInputHash string `json:"public_input_hash"`
	WitnessHash     string `json:"witness_hash"`
}

func (MockPair) Prove(circuit Circuit, witness map[string]interface{}, publicInputs map[string]interface{}) (Proof, error) {
	publicHash, err := canon.Digest(publicInputs)
	if err != nil {
		return Proof{}, err
	}
	witnessHash, err := canon.Digest(witness)
	if err != nil {
		return Proof{}, err
	}
	blobBytes, err := canon.Bytes(mockBlob{PublicInputHash: publicHash, WitnessHash: witnessHash})
	if err != nil {
		return Proof{}, err
	}
	return Proof{CircuitID: circuit.CircuitID, Blob: blobBytes}, nil
}

func (MockPair) Verify(proof Proof, verifyingKey string, publicInputs map[string]interface{}) (bool, error) {
	var blob mockBlob
	if err := json.Unmarshal(proof.Blob, &blob); err != nil {
		return false, msezerr.Wrap(msezerr.KindValidation, "MSEZ/ZKP/MALFORMED_PROOF", "proof blob is not a mock blob", err)
	}
	publicHash, err := canon.Digest(publicInputs)
	if err != nil {
		return false, err
	}
	return blob.PublicInputHash == publicHash, nil
}
