package artifact

import (
	"encoding/json"

	"github.com/momentum-sez/msez-core/pkg/cas"
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// AdmissionOptions configures Admit. Registry and SchemaID are
// only consulted when kind is KindSchema or KindRuleset; every other kind
// admits on strict-digest integrity alone.
type AdmissionOptions struct {
	Registry *SchemaRegistry
	SchemaID string
}

// Admit strict-digests obj under kind, gates schema/ruleset payloads through
// opts.Registry when supplied, and writes the canonical bytes into store
// under the recomputed digest. It returns the digest and the path the
// content was written to.
//
// A schema or ruleset artifact with no registry/SchemaID configured is
// admitted without payload validation — callers that need the gate enforced
// (the CLI's admission path) must supply both.
func Admit(store *cas.Store, kind Kind, artifactType string, obj map[string]interface{}, opts AdmissionOptions) (digest string, path string, err error) {
	if (kind == KindSchema || kind == KindRuleset) && opts.Registry != nil && opts.SchemaID != "" {
		decoded, derr := roundTripThroughJSON(obj)
		if derr != nil {
			return "", "", derr
		}
		if verr := opts.Registry.Validate(opts.SchemaID, decoded); verr != nil {
			return "", "", verr
		}
	}

	digest, err = StrictDigest(kind, obj)
	if err != nil {
		return "", "", err
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return "", "", msezerr.Wrap(msezerr.KindValidation, "MSEZ/ARTIFACT/MARSHAL_FAILED", "failed to marshal artifact for admission", err)
	}

	path, err = store.Store(artifactType, digest, data, "json", false)
	if err != nil {
		return "", "", err
	}
	return digest, path, nil
}

// roundTripThroughJSON normalizes a Go map[string]interface{} into the
// decoded shape jsonschema.Schema.Validate expects (json.Number for
// numerics rather than arbitrary Go int/float types).
func roundTripThroughJSON(obj map[string]interface{}) (interface{}, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, msezerr.Wrap(msezerr.KindValidation, "MSEZ/ARTIFACT/MARSHAL_FAILED", "failed to marshal payload for schema validation", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, msezerr.Wrap(msezerr.KindValidation, "MSEZ/ARTIFACT/UNMARSHAL_FAILED", "failed to decode payload for schema validation", err)
	}
	return decoded, nil
}
