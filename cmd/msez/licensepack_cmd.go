package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/momentum-sez/msez-core/pkg/artifact"
	"github.com/momentum-sez/msez-core/pkg/cas"
	"github.com/momentum-sez/msez-core/pkg/security"
)

// Licensepacks are opaque containers (spec §3): the core never interprets
// their bytes, only their digest. This command group lets an operator
// admit, pin, and introspect them without any license-registry-specific
// logic living in the core engine.

func runLicensepackCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		return usageError(stderr, "usage: msez licensepack <fetch|verify|lock|delta|query|export-vc> ...")
	}
	switch args[0] {
	case "fetch":
		return runLicensepackFetch(args[1:], stdout, stderr)
	case "verify":
		return runLicensepackVerify(args[1:], stdout, stderr)
	case "lock":
		return runLicensepackLock(args[1:], stdout, stderr)
	case "delta":
		return runLicensepackDelta(args[1:], stdout, stderr)
	case "query":
		return runLicensepackQuery(args[1:], stdout, stderr)
	case "export-vc":
		return runLicensepackExportVC(args[1:], stdout, stderr)
	default:
		return usageError(stderr, "unknown licensepack subcommand: %s", args[0])
	}
}

func runLicensepackFetch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("licensepack fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	source := fs.String("source", "", "path to the licensepack bundle bytes (REQUIRED)")
	store := fs.String("store", "", "CAS store root (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *source == "" || *store == "" {
		return usageError(stderr, "--source and --store are required")
	}

	data, err := os.ReadFile(*source)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read licensepack bundle: %v\n", err)
		return exitInternal
	}
	digest := artifact.DigestBytes(data)

	s, err := cas.New(*store)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open store: %v\n", err)
		return exitInternal
	}
	path, err := s.Store(string(artifact.KindLicensepack), digest, data, "bin", false)
	if err != nil {
		fmt.Fprintf(stderr, "failed to admit licensepack: %v\n", err)
		return exitInternal
	}
	return writeReport(stdout, stderr, map[string]interface{}{
		"digest_sha256": digest, "path": path, "byte_length": len(data),
	}, exitOK)
}

func runLicensepackVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("licensepack verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	store := fs.String("store", "", "CAS store root (REQUIRED)")
	digest := fs.String("digest", "", "licensepack digest_sha256 (REQUIRED)")
	strict := fs.Bool("strict", false, "fail on digest mismatch instead of warning")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *store == "" || *digest == "" {
		return usageError(stderr, "--store and --digest are required")
	}

	s, err := cas.New(*store)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open store: %v\n", err)
		return exitInternal
	}
	path, warning, err := s.Resolve(string(artifact.KindLicensepack), *digest, *strict)
	if err != nil {
		fmt.Fprintf(stderr, "verification failed: %v\n", err)
		return writeReport(stdout, stderr, map[string]interface{}{"valid": false, "error": err.Error()}, exitFailed)
	}
	report := map[string]interface{}{"valid": true, "path": path}
	if warning != nil {
		report["warning"] = warning.Error()
	}
	return writeReport(stdout, stderr, report, exitOK)
}

func runLicensepackLock(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("licensepack lock", flag.ContinueOnError)
	fs.SetOutput(stderr)
	digests := fs.String("digests", "", "comma-separated licensepack digests to pin (REQUIRED)")
	out := fs.String("out", "", "output path for the lock file (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *digests == "" || *out == "" {
		return usageError(stderr, "--digests and --out are required")
	}

	set := splitNonEmpty(*digests)
	sort.Strings(set)
	lock := map[string]interface{}{
		"licensepack_digest_set": set,
		"locked_at":              time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "failed to render lock file: %v\n", err)
		return exitInternal
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil { //nolint:gosec // lock file is not secret
		fmt.Fprintf(stderr, "failed to write lock file: %v\n", err)
		return exitInternal
	}
	return writeReport(stdout, stderr, lock, exitOK)
}

func runLicensepackDelta(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("licensepack delta", flag.ContinueOnError)
	fs.SetOutput(stderr)
	store := fs.String("store", "", "CAS store root (REQUIRED)")
	from := fs.String("from", "", "baseline licensepack digest_sha256 (REQUIRED)")
	to := fs.String("to", "", "candidate licensepack digest_sha256 (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *store == "" || *from == "" || *to == "" {
		return usageError(stderr, "--store, --from, and --to are required")
	}

	s, err := cas.New(*store)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open store: %v\n", err)
		return exitInternal
	}
	fromPath, _, err := s.Resolve(string(artifact.KindLicensepack), *from, false)
	if err != nil {
		fmt.Fprintf(stderr, "failed to resolve --from: %v\n", err)
		return exitInternal
	}
	toPath, _, err := s.Resolve(string(artifact.KindLicensepack), *to, false)
	if err != nil {
		fmt.Fprintf(stderr, "failed to resolve --to: %v\n", err)
		return exitInternal
	}

	fromData, err := os.ReadFile(fromPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read --from bundle: %v\n", err)
		return exitInternal
	}
	toData, err := os.ReadFile(toPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read --to bundle: %v\n", err)
		return exitInternal
	}

	added, removed := lineDelta(fromData, toData)
	return writeReport(stdout, stderr, map[string]interface{}{
		"identical":       bytes.Equal(fromData, toData),
		"from_byte_length": len(fromData),
		"to_byte_length":   len(toData),
		"added_lines":      added,
		"removed_lines":    removed,
	}, exitOK)
}

// lineDelta is a line-set comparison, not a positional diff: it reports
// which lines exist in one side but not the other. Good enough for the
// line-oriented text licensepacks (lawpack/regpack snapshots) this command
// is meant to support; binary bundles will just show every line as changed.
func lineDelta(from, to []byte) (added, removed []string) {
	fromLines := splitLines(from)
	toLines := splitLines(to)
	fromSet := make(map[string]bool, len(fromLines))
	for _, l := range fromLines {
		fromSet[l] = true
	}
	toSet := make(map[string]bool, len(toLines))
	for _, l := range toLines {
		toSet[l] = true
	}
	for _, l := range toLines {
		if !fromSet[l] {
			added = append(added, l)
		}
	}
	for _, l := range fromLines {
		if !toSet[l] {
			removed = append(removed, l)
		}
	}
	return added, removed
}

func splitLines(data []byte) []string {
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func runLicensepackQuery(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("licensepack query", flag.ContinueOnError)
	fs.SetOutput(stderr)
	store := fs.String("store", "", "CAS store root (REQUIRED)")
	digest := fs.String("digest", "", "licensepack digest_sha256 (REQUIRED)")
	path := fs.String("path", "", "dot-separated field path into a JSON-encoded licensepack")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *store == "" || *digest == "" {
		return usageError(stderr, "--store and --digest are required")
	}

	s, err := cas.New(*store)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open store: %v\n", err)
		return exitInternal
	}
	resolved, _, err := s.Resolve(string(artifact.KindLicensepack), *digest, false)
	if err != nil {
		fmt.Fprintf(stderr, "failed to resolve licensepack: %v\n", err)
		return exitInternal
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read licensepack: %v\n", err)
		return exitInternal
	}

	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return usageError(stderr, "licensepack is not JSON-encoded, cannot query by field path: %v", err)
	}
	if *path == "" {
		return writeReport(stdout, stderr, decoded, exitOK)
	}

	value, err := lookupPath(decoded, strings.Split(*path, "."))
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return writeReport(stdout, stderr, map[string]interface{}{"found": false, "error": err.Error()}, exitFailed)
	}
	return writeReport(stdout, stderr, map[string]interface{}{"found": true, "value": value}, exitOK)
}

func lookupPath(v interface{}, segments []string) (interface{}, error) {
	current := v
	for _, seg := range segments {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("path segment %q: not an object", seg)
		}
		next, ok := obj[seg]
		if !ok {
			return nil, fmt.Errorf("path segment %q: not found", seg)
		}
		current = next
	}
	return current, nil
}

func runLicensepackExportVC(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("licensepack export-vc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	digest := fs.String("digest", "", "licensepack digest_sha256 to wrap (REQUIRED)")
	issuer := fs.String("issuer", "", "credential issuer identifier (REQUIRED)")
	out := fs.String("out", "", "output path for the credential (REQUIRED)")
	corridor := fs.String("corridor", "", "corridor ID to derive the signing key for (optional, skips proof if empty)")
	seedHex := fs.String("seed", "", "hex-encoded root seed for corridor key derivation (required with --corridor)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *digest == "" || *issuer == "" || *out == "" {
		return usageError(stderr, "--digest, --issuer, and --out are required")
	}
	if *corridor != "" && *seedHex == "" {
		return usageError(stderr, "--seed is required when --corridor is set")
	}

	vc := map[string]interface{}{
		"type":   "VerifiableCredential",
		"issuer": *issuer,
		"issued": time.Now().UTC().Format(time.RFC3339),
		"credentialSubject": map[string]interface{}{
			"artifact_type": string(artifact.KindLicensepack),
			"digest_sha256": *digest,
		},
	}
	vcDigest, err := artifact.StrictDigest(artifact.KindVC, vc)
	if err != nil {
		fmt.Fprintf(stderr, "failed to digest credential: %v\n", err)
		return exitInternal
	}

	data, err := json.MarshalIndent(vc, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "failed to render credential: %v\n", err)
		return exitInternal
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil { //nolint:gosec // credential is not secret at this stage
		fmt.Fprintf(stderr, "failed to write credential: %v\n", err)
		return exitInternal
	}

	report := map[string]interface{}{
		"credential": vc, "digest_sha256": vcDigest, "out_path": *out,
	}
	if *corridor != "" {
		seed, err := hex.DecodeString(*seedHex)
		if err != nil {
			return usageError(stderr, "--seed must be hex-encoded: %v", err)
		}
		key, err := security.DeriveCorridorKey(seed, *corridor)
		if err != nil {
			fmt.Fprintf(stderr, "failed to derive corridor key: %v\n", err)
			return exitInternal
		}
		digestBytes, err := hex.DecodeString(vcDigest)
		if err != nil {
			fmt.Fprintf(stderr, "credential digest is not hex-encoded: %v\n", err)
			return exitInternal
		}
		sig := key.Sign(digestBytes)
		report["proof"] = map[string]interface{}{
			"type":               "Ed25519Signature2020",
			"verification_method": hex.EncodeToString(key.PublicKey()),
			"signature":          hex.EncodeToString(sig),
		}
	}
	return writeReport(stdout, stderr, report, exitOK)
}
