package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeJSONFixture(t *testing.T, dir, name string, v interface{}) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestPhoenixConfig_ResolvesWithNoOverrides(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "phoenix", "config"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}
	if stdout.Len() == 0 {
		t.Fatal("expected a non-empty config dump")
	}
}

func TestPhoenixHealth_ReportsAllProbesHealthy(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "phoenix", "health"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}

	var report map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if report["healthy"] != true {
		t.Errorf("healthy = %v, want true", report["healthy"])
	}
}

func TestPhoenixTensor_CommitsCells(t *testing.T) {
	dir := t.TempDir()
	input := map[string]interface{}{
		"as_of": "2026-08-01T00:00:00Z",
		"cells": []map[string]interface{}{
			{"asset": "asset-1", "jur": "jur-1", "domain": "kyc", "time": "2026-Q3", "state": "COMPLIANT"},
			{"asset": "asset-1", "jur": "jur-2", "domain": "kyc", "time": "2026-Q3", "state": "PENDING"},
		},
	}
	inputPath := writeJSONFixture(t, dir, "tensor.json", input)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "phoenix", "tensor", "--input", inputPath}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}

	var commitment map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &commitment); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if commitment["cell_count"].(float64) != 2 {
		t.Errorf("cell_count = %v, want 2", commitment["cell_count"])
	}
	if commitment["root"] == "" || commitment["root"] == nil {
		t.Error("expected a non-empty Merkle root")
	}
}

func TestPhoenixTensor_UnknownStateFailsUsage(t *testing.T) {
	dir := t.TempDir()
	input := map[string]interface{}{
		"cells": []map[string]interface{}{
			{"asset": "asset-1", "jur": "jur-1", "domain": "kyc", "time": "2026-Q3", "state": "NOT_A_STATE"},
		},
	}
	inputPath := writeJSONFixture(t, dir, "tensor.json", input)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "phoenix", "tensor", "--input", inputPath}, &stdout, &stderr)
	if code != exitUsage {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitUsage, stderr.String())
	}
}

func TestPhoenixManifold_FindsShortestPath(t *testing.T) {
	dir := t.TempDir()
	edges := []map[string]interface{}{
		{"CorridorID": "c1", "From": "jur-a", "To": "jur-b", "FeeUSD": 10.0, "ExpectedLatencyS": 5.0, "RequiredAttestation": ""},
		{"CorridorID": "c2", "From": "jur-b", "To": "jur-c", "FeeUSD": 5.0, "ExpectedLatencyS": 3.0, "RequiredAttestation": ""},
	}
	inputPath := writeJSONFixture(t, dir, "edges.json", edges)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "phoenix", "manifold",
		"--input", inputPath, "--source", "jur-a", "--target", "jur-c"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}

	var path map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &path); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	hops, ok := path["Hops"].([]interface{})
	if !ok || len(hops) != 2 {
		t.Errorf("Hops = %v, want 2 entries", path["Hops"])
	}
}

func TestPhoenixManifold_NoRouteFails(t *testing.T) {
	dir := t.TempDir()
	edges := []map[string]interface{}{
		{"CorridorID": "c1", "From": "jur-a", "To": "jur-b", "FeeUSD": 1.0, "ExpectedLatencyS": 1.0, "RequiredAttestation": ""},
	}
	inputPath := writeJSONFixture(t, dir, "edges.json", edges)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "phoenix", "manifold",
		"--input", inputPath, "--source", "jur-a", "--target", "jur-z"}, &stdout, &stderr)
	if code != exitFailed {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitFailed, stderr.String())
	}
}

func TestPhoenixWatcher_SelectsByReputation(t *testing.T) {
	dir := t.TempDir()
	entries := []map[string]interface{}{
		{"did": "did:w1", "collateral": "100", "currency": "USD", "jurisdictions": []string{"jur-1"}, "reputation": "90"},
		{"did": "did:w2", "collateral": "100", "currency": "USD", "jurisdictions": []string{"jur-1"}, "reputation": "50"},
		{"did": "did:w3", "collateral": "100", "currency": "USD", "jurisdictions": []string{"jur-2"}, "reputation": "99"},
	}
	inputPath := writeJSONFixture(t, dir, "watchers.json", entries)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "phoenix", "watcher",
		"--input", inputPath, "--jurisdiction", "jur-1", "--min-count", "1"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}

	var report map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	selected, _ := report["selected"].([]interface{})
	if len(selected) != 1 || selected[0] != "did:w1" {
		t.Errorf("selected = %v, want [did:w1]", report["selected"])
	}
}

func TestPhoenixAnchor_SubmitAndConfirm(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "phoenix", "anchor",
		"--digest", "a1b2c3", "--chain", "mock-chain", "--threshold", "2", "--confirmations", "2"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}

	var record map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &record); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if record["Status"] != "CONFIRMED" {
		t.Errorf("Status = %v, want CONFIRMED", record["Status"])
	}
}

func TestPhoenixMigration_DrivesSagaToUnlock(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "phoenix", "migration", "--saga", "saga-1"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}

	var report map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if report["state"] != "DESTINATION_UNLOCK" {
		t.Errorf("state = %v, want DESTINATION_UNLOCK", report["state"])
	}
	history, _ := report["history"].([]interface{})
	if len(history) != 6 {
		t.Errorf("history length = %d, want 6", len(history))
	}
}

func TestPhoenixVM_EmptyBytecodeFailsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "phoenix", "vm", "--bytecode", "", "--gas", "1000"}, &stdout, &stderr)
	if code != exitUsage {
		t.Fatalf("exit code = %d, want %d (empty --bytecode should be rejected as usage error)", code, exitUsage)
	}
}
