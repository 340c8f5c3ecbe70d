// Package artifact defines the universal typed pointer (ArtifactRef), the
// authoritative artifact-type table, and the per-type strict-digest rule
// dispatch described in spec §3.
package artifact

import (
	"regexp"

	"github.com/momentum-sez/msez-core/pkg/canon"
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// typePattern is the required shape of an artifact_type tag.
var typePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// Ref is the universal typed pointer. URI is advisory; the digest is
// authoritative.
type Ref struct {
	ArtifactType string `json:"artifact_type"`
	DigestSHA256 string `json:"digest_sha256"`
	URI          string `json:"uri,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	MediaType    string `json:"media_type,omitempty"`
	ByteLength   int64  `json:"byte_length,omitempty"`
}

// Validate checks the ArtifactType and DigestSHA256 shape.
func (r Ref) Validate() error {
	if !typePattern.MatchString(r.ArtifactType) {
		return msezerr.New(msezerr.KindValidation, "MSEZ/ARTIFACT/BAD_TYPE",
			"artifact_type must match ^[a-z0-9][a-z0-9-]{0,63}$: "+r.ArtifactType)
	}
	if !isDigestHex(r.DigestSHA256) {
		return msezerr.New(msezerr.KindValidation, "MSEZ/ARTIFACT/BAD_DIGEST",
			"digest_sha256 must be a lower-case 64-char hex string: "+r.DigestSHA256)
	}
	return nil
}

func isDigestHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// Kind enumerates the authoritative artifact types from spec §3.
type Kind string

const (
	KindBlob                  Kind = "blob"
	KindSchema                Kind = "schema"
	KindRuleset               Kind = "ruleset"
	KindVC                    Kind = "vc"
	KindAttestation           Kind = "attestation"
	KindProofBinding          Kind = "proof-binding"
	KindSettlementPlan        Kind = "settlement-plan"
	KindSettlementAnchor      Kind = "settlement-anchor"
	KindZoneLock              Kind = "zone-lock"
	KindCorridorAgreement     Kind = "corridor-agreement"
	KindCorridorCheckpoint    Kind = "corridor-checkpoint"
	KindCorridorReceipt       Kind = "corridor-receipt"
	KindSmartAssetGenesis     Kind = "smart-asset-genesis"
	KindSmartAssetCheckpoint  Kind = "smart-asset-checkpoint"
	KindSmartAssetAttestation Kind = "smart-asset-attestation"
	KindTransitionTypesLock   Kind = "transition-types"
	KindLawpack               Kind = "lawpack"
	KindRegpack                Kind = "regpack"
	KindLicensepack           Kind = "licensepack"
	KindCircuit               Kind = "circuit"
	KindProofKey              Kind = "proof-key"
)

// jsonObjectKinds are canonicalized as JCS(obj \ {proof}).
var jsonObjectKinds = map[Kind]bool{
	KindSchema: true, KindRuleset: true, KindVC: true, KindAttestation: true,
	KindProofBinding: true, KindSettlementPlan: true, KindSettlementAnchor: true,
	KindZoneLock: true, KindCorridorAgreement: true, KindCorridorCheckpoint: true,
}

// opaqueContainerKinds hash the raw bytes directly, with type-specific
// internal checks performed by their owning package (lawpack/regpack/etc.).
var opaqueContainerKinds = map[Kind]bool{
	KindLawpack: true, KindRegpack: true, KindLicensepack: true,
	KindCircuit: true, KindProofKey: true,
}

// StrictDigest computes the authoritative digest for obj under kind,
// applying the per-type rule from spec §3. obj must already be a
// JSON-compatible map for JSON object kinds.
func StrictDigest(kind Kind, obj map[string]interface{}) (string, error) {
	switch {
	case kind == KindBlob || opaqueContainerKinds[kind]:
		return "", msezerr.New(msezerr.KindValidation, "MSEZ/ARTIFACT/NOT_JSON_KIND",
			"StrictDigest only applies to JSON object artifact kinds; use DigestBytes for "+string(kind))
	case kind == KindCorridorReceipt:
		return digestReceipt(obj)
	case kind == KindSmartAssetGenesis:
		return digestGenesis(obj)
	case kind == KindSmartAssetCheckpoint:
		return digestDeclaredField(obj, "state_root_sha256", false)
	case kind == KindSmartAssetAttestation:
		return canon.Digest(obj)
	case kind == KindTransitionTypesLock:
		return digestDeclaredField(obj, "snapshot_digest_sha256", true)
	case jsonObjectKinds[kind]:
		return canon.Digest(canon.StripKeys(obj, "proof"))
	default:
		return "", msezerr.New(msezerr.KindValidation, "MSEZ/ARTIFACT/UNKNOWN_KIND", "unknown artifact kind: "+string(kind))
	}
}

// DigestBytes computes sha256(bytes) for blob and opaque-container kinds.
func DigestBytes(data []byte) string {
	return canon.SHA256Hex(data)
}

func digestReceipt(obj map[string]interface{}) (string, error) {
	stripped := canon.StripKeys(obj, "proof", "next_root")
	digest, err := canon.Digest(stripped)
	if err != nil {
		return "", err
	}
	declared, ok := obj["next_root"].(string)
	if !ok || declared == "" {
		return "", msezerr.New(msezerr.KindValidation, "MSEZ/RECEIPT/MISSING_NEXT_ROOT", "receipt is missing next_root")
	}
	if declared != digest {
		return "", msezerr.New(msezerr.KindIntegrity, msezerr.CodeDigestMismatch,
			"receipt next_root does not equal sha256(JCS(receipt minus proof and next_root))")
	}
	return digest, nil
}

func digestGenesis(obj map[string]interface{}) (string, error) {
	return canon.Digest(canon.StripKeys(obj, "asset_id"))
}

// digestDeclaredField returns the digest obj declares inline under field —
// used by checkpoint (state_root_sha256) and transition-types lock
// (snapshot_digest_sha256). With recompute set (the transition-types lock)
// it also recomputes the digest of obj minus the declared-digest field
// itself and requires the declared value to match the recomputation; the
// checkpoint's declared state root is taken as its digest unchecked.
func digestDeclaredField(obj map[string]interface{}, field string, recompute bool) (string, error) {
	declared, ok := obj[field].(string)
	if !ok || declared == "" {
		return "", msezerr.New(msezerr.KindValidation, "MSEZ/ARTIFACT/MISSING_DECLARED_DIGEST", "missing declared digest field: "+field)
	}
	if recompute {
		computed, err := canon.Digest(canon.StripKeys(obj, field))
		if err != nil {
			return "", err
		}
		if computed != declared {
			return "", msezerr.New(msezerr.KindIntegrity, msezerr.CodeDigestMismatch,
				"declared "+field+" does not match the recomputed digest")
		}
	}
	return declared, nil
}
