// Package zkp provides a content-addressed circuit registry and a
// deterministic mock Prover/Verifier pair behind the same pluggable-port
// idiom the engine uses for chain anchoring and compliance verification.
package zkp

import "github.com/momentum-sez/msez-core/pkg/canon"

// Circuit is a content-addressed description of a proving system. Digest
// is computed over the fields below (excluding itself and ProvingKey,
// which is operator-held secret material never hashed into a public
// identifier).
type Circuit struct {
	CircuitID    string `json:"circuit_id"`
	CircuitType  string `json:"circuit_type"`
	Digest       string `json:"digest"`
	VerifyingKey string `json:"verifying_key"`
	ProvingKey   string `json:"proving_key,omitempty"`
}

// NewCircuit builds a Circuit and fills in its content digest.
func NewCircuit(circuitID, circuitType, verifyingKey, provingKey string) (Circuit, error) {
	c := Circuit{
		CircuitID:    circuitID,
		CircuitType:  circuitType,
		VerifyingKey: verifyingKey,
	}
	digest, err := canon.Digest(struct {
		CircuitID    string `json:"circuit_id"`
		CircuitType  string `json:"circuit_type"`
		VerifyingKey string `json:"verifying_key"`
	}{circuitID, circuitType, verifyingKey})
	if err != nil {
		return Circuit{}, err
	}
	c.Digest = digest
	c.ProvingKey = provingKey
	return c, nil
}

// Registry is a content-addressed store of known circuits.
type Registry struct {
	byID map[string]Circuit
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Circuit)}
}

func (r *Registry) Register(c Circuit) {
	r.byID[c.CircuitID] = c
}

func (r *Registry) Lookup(circuitID string) (Circuit, bool) {
	c, ok := r.byID[circuitID]
	return c, ok
}
