package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/momentum-sez/msez-core/pkg/artifact"
)

// zoneLockSchema is the minimal shape every zone descriptor must satisfy
// before it is strict-digested into a zone-lock artifact: an identified
// zone in a named jurisdiction carrying at least one rule.
const zoneLockSchema = `{
	"type": "object",
	"required": ["zone_id", "jurisdiction_id", "rules"],
	"properties": {
		"zone_id": {"type": "string", "minLength": 1},
		"jurisdiction_id": {"type": "string", "minLength": 1},
		"rules": {"type": "array", "minItems": 1}
	}
}`

func runLockCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.SetOutput(stderr)
	zonePath := fs.String("zone", "", "path to the zone descriptor JSON file (REQUIRED)")
	out := fs.String("out", "", "output path for the zone-lock artifact (REQUIRED unless --check)")
	check := fs.Bool("check", false, "validate only, do not write the locked artifact")
	emitRefs := fs.Bool("emit-artifactrefs", false, "include every embedded artifact ref found in the zone descriptor")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *zonePath == "" {
		return usageError(stderr, "--zone is required")
	}
	if !*check && *out == "" {
		return usageError(stderr, "--out is required unless --check is set")
	}

	data, err := os.ReadFile(*zonePath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read zone file: %v\n", err)
		return exitInternal
	}

	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		fmt.Fprintf(stderr, "zone file is not valid JSON: %v\n", err)
		return exitUsage
	}

	registry := artifact.NewSchemaRegistry()
	if err := registry.RegisterSchema("zone-lock", []byte(zoneLockSchema)); err != nil {
		fmt.Fprintf(stderr, "failed to compile zone schema: %v\n", err)
		return exitInternal
	}
	if err := registry.Validate("zone-lock", decoded); err != nil {
		fmt.Fprintf(stderr, "zone descriptor failed schema validation: %v\n", err)
		return writeReport(stdout, stderr, map[string]interface{}{"valid": false, "error": err.Error()}, exitFailed)
	}

	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return usageError(stderr, "zone descriptor must be a JSON object")
	}

	digest, err := artifact.StrictDigest(artifact.KindZoneLock, obj)
	if err != nil {
		fmt.Fprintf(stderr, "failed to digest zone descriptor: %v\n", err)
		return exitInternal
	}

	report := map[string]interface{}{
		"valid":         true,
		"digest_sha256": digest,
		"zone_id":       obj["zone_id"],
	}
	if *emitRefs {
		report["artifact_refs"] = findArtifactRefs(decoded)
	}

	if *check {
		return writeReport(stdout, stderr, report, exitOK)
	}

	if err := os.WriteFile(*out, data, 0o644); err != nil { //nolint:gosec // zone-lock artifacts are not secret
		fmt.Fprintf(stderr, "failed to write zone-lock artifact: %v\n", err)
		return exitInternal
	}
	report["out_path"] = *out
	return writeReport(stdout, stderr, report, exitOK)
}

// findArtifactRefs scans a decoded JSON value for every object carrying
// both artifact_type and digest_sha256 keys, mirroring pkg/artifactgraph's
// traversal rule for the CLI's --emit-artifactrefs convenience flag.
func findArtifactRefs(v interface{}) []artifact.Ref {
	var out []artifact.Ref
	var walk func(interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case map[string]interface{}:
			if at, ok := t["artifact_type"].(string); ok {
				if d, ok := t["digest_sha256"].(string); ok {
					out = append(out, artifact.Ref{ArtifactType: at, DigestSHA256: d})
				}
			}
			for _, val := range t {
				walk(val)
			}
		case []interface{}:
			for _, val := range t {
				walk(val)
			}
		}
	}
	walk(v)
	return out
}
