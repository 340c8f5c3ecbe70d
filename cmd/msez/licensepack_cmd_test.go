package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLicensepackFetchAndVerify_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "pack.bin")
	if err := os.WriteFile(sourcePath, []byte("license registry snapshot v1"), 0o644); err != nil {
		t.Fatalf("writing source fixture: %v", err)
	}
	store := t.TempDir()

	var fetchOut, fetchErr bytes.Buffer
	code := Run([]string{"msez", "licensepack", "fetch", "--source", sourcePath, "--store", store}, &fetchOut, &fetchErr)
	if code != exitOK {
		t.Fatalf("fetch exit code = %d, want %d, stderr=%s", code, exitOK, fetchErr.String())
	}

	var fetchReport map[string]interface{}
	if err := json.Unmarshal(fetchOut.Bytes(), &fetchReport); err != nil {
		t.Fatalf("fetch report is not valid JSON: %v", err)
	}
	digest, _ := fetchReport["digest_sha256"].(string)
	if digest == "" {
		t.Fatal("expected a non-empty digest_sha256 in the fetch report")
	}

	var verifyOut, verifyErr bytes.Buffer
	code = Run([]string{"msez", "licensepack", "verify", "--store", store, "--digest", digest}, &verifyOut, &verifyErr)
	if code != exitOK {
		t.Fatalf("verify exit code = %d, want %d, stderr=%s", code, exitOK, verifyErr.String())
	}
}

func TestLicensepackLock_WritesSortedDigestSet(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "lock.json")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "licensepack", "lock", "--digests", "b,a,c", "--out", outPath}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}

	var report map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	set, ok := report["licensepack_digest_set"].([]interface{})
	if !ok || len(set) != 3 {
		t.Fatalf("licensepack_digest_set = %v, want 3 entries", report["licensepack_digest_set"])
	}
	if set[0] != "a" || set[1] != "b" || set[2] != "c" {
		t.Errorf("licensepack_digest_set = %v, want sorted [a b c]", set)
	}
}

func TestLicensepackDelta_ReportsLineDifferences(t *testing.T) {
	store := t.TempDir()
	dir := t.TempDir()

	fromPath := filepath.Join(dir, "from.json")
	toPath := filepath.Join(dir, "to.json")
	if err := os.WriteFile(fromPath, []byte("license-a\nlicense-b\n"), 0o644); err != nil {
		t.Fatalf("writing from fixture: %v", err)
	}
	if err := os.WriteFile(toPath, []byte("license-a\nlicense-c\n"), 0o644); err != nil {
		t.Fatalf("writing to fixture: %v", err)
	}

	var fromFetch, toFetch bytes.Buffer
	if code := Run([]string{"msez", "licensepack", "fetch", "--source", fromPath, "--store", store}, &fromFetch, &bytes.Buffer{}); code != exitOK {
		t.Fatalf("fetch from failed: %d", code)
	}
	if code := Run([]string{"msez", "licensepack", "fetch", "--source", toPath, "--store", store}, &toFetch, &bytes.Buffer{}); code != exitOK {
		t.Fatalf("fetch to failed: %d", code)
	}

	var fromReport, toReport map[string]interface{}
	json.Unmarshal(fromFetch.Bytes(), &fromReport)
	json.Unmarshal(toFetch.Bytes(), &toReport)
	fromDigest := fromReport["digest_sha256"].(string)
	toDigest := toReport["digest_sha256"].(string)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "licensepack", "delta", "--store", store, "--from", fromDigest, "--to", toDigest}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("delta exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}

	var report map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if report["identical"] != false {
		t.Errorf("identical = %v, want false", report["identical"])
	}
	added, _ := report["added_lines"].([]interface{})
	removed, _ := report["removed_lines"].([]interface{})
	if len(added) != 1 || added[0] != "license-c" {
		t.Errorf("added_lines = %v, want [license-c]", added)
	}
	if len(removed) != 1 || removed[0] != "license-b" {
		t.Errorf("removed_lines = %v, want [license-b]", removed)
	}
}

func TestLicensepackExportVC(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "credential.json")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "licensepack", "export-vc",
		"--digest", "a1b2c3", "--issuer", "did:example:issuer", "--out", outPath}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("credential not written: %v", err)
	}

	var report map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if report["digest_sha256"] == "" || report["digest_sha256"] == nil {
		t.Error("expected a non-empty digest_sha256 in the report")
	}
	if report["proof"] != nil {
		t.Errorf("proof = %v, want nil when --corridor is not set", report["proof"])
	}
}

func TestLicensepackExportVC_WithCorridorSignsProof(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "credential.json")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "licensepack", "export-vc",
		"--digest", "a1b2c3", "--issuer", "did:example:issuer", "--out", outPath,
		"--corridor", "corridor-a", "--seed", "deadbeefcafebabe00112233445566778899aabbccddeeff0011223344556677"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}

	var report map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	proof, ok := report["proof"].(map[string]interface{})
	if !ok {
		t.Fatalf("proof = %v, want a populated proof object", report["proof"])
	}
	if proof["signature"] == "" || proof["verification_method"] == "" {
		t.Errorf("proof = %+v, want non-empty signature and verification_method", proof)
	}
}

func TestLicensepackExportVC_BadSeedFailsUsage(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "credential.json")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "licensepack", "export-vc",
		"--digest", "a1b2c3", "--issuer", "did:example:issuer", "--out", outPath,
		"--corridor", "corridor-a", "--seed", "not-hex"}, &stdout, &stderr)
	if code != exitUsage {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitUsage, stderr.String())
	}
}
