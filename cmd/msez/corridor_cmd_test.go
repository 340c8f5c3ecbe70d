package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/momentum-sez/msez-core/pkg/artifact"
	"github.com/momentum-sez/msez-core/pkg/canon"
	"github.com/momentum-sez/msez-core/pkg/receiptchain"
)

func TestCorridorStateReceiptInit(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "chain.json")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "corridor", "state", "receipt-init",
		"--corridor", "corridor-a", "--definition-vc-digest", artifact.DigestBytes([]byte("def")),
		"--out", statePath}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitOK, stderr.String())
	}

	chain, err := loadChain(statePath)
	if err != nil {
		t.Fatalf("loadChain: %v", err)
	}
	if chain.CorridorID != "corridor-a" {
		t.Errorf("CorridorID = %q, want corridor-a", chain.CorridorID)
	}
	if chain.Genesis == "" {
		t.Error("expected a non-empty genesis root")
	}
}

// signReceipt fills in NextRoot the same way the chain itself will verify
// it: sha256(JCS(receipt minus proof and next_root)).
func signReceipt(t *testing.T, r receiptchain.Receipt) receiptchain.Receipt {
	t.Helper()
	stripped := canon.StripKeys(r.ToGeneric(), "proof", "next_root")
	digest, err := canon.Digest(stripped)
	if err != nil {
		t.Fatalf("computing next_root: %v", err)
	}
	r.NextRoot = digest
	return r
}

func TestCorridorStateVerifyAndCheckpointAudit(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "chain.json")

	var initOut, initErr bytes.Buffer
	code := Run([]string{"msez", "corridor", "state", "receipt-init",
		"--corridor", "corridor-a", "--definition-vc-digest", artifact.DigestBytes([]byte("def")),
		"--out", statePath}, &initOut, &initErr)
	if code != exitOK {
		t.Fatalf("receipt-init exit code = %d, want %d, stderr=%s", code, exitOK, initErr.String())
	}

	chain, err := loadChain(statePath)
	if err != nil {
		t.Fatalf("loadChain: %v", err)
	}

	receipt := signReceipt(t, receiptchain.Receipt{
		CorridorID: "corridor-a",
		Sequence:   0,
		Timestamp:  "2026-08-01T00:00:00Z",
		PrevRoot:   chain.Genesis,
		Transition: map[string]interface{}{"kind": "test-transition"},
	})
	receiptPath := filepath.Join(dir, "receipt.json")
	receiptData, err := json.Marshal(receipt)
	if err != nil {
		t.Fatalf("marshal receipt: %v", err)
	}
	if err := os.WriteFile(receiptPath, receiptData, 0o644); err != nil {
		t.Fatalf("writing receipt fixture: %v", err)
	}

	var verifyOut, verifyErr bytes.Buffer
	code = Run([]string{"msez", "corridor", "state", "verify",
		"--state", statePath, "--receipt", receiptPath}, &verifyOut, &verifyErr)
	if code != exitOK {
		t.Fatalf("verify exit code = %d, want %d, stderr=%s", code, exitOK, verifyErr.String())
	}

	var cpOut, cpErr bytes.Buffer
	code = Run([]string{"msez", "corridor", "state", "checkpoint", "--state", statePath}, &cpOut, &cpErr)
	if code != exitOK {
		t.Fatalf("checkpoint exit code = %d, want %d, stderr=%s", code, exitOK, cpErr.String())
	}

	var cpReport struct {
		Checkpoint receiptchain.Checkpoint `json:"checkpoint"`
	}
	if err := json.Unmarshal(cpOut.Bytes(), &cpReport); err != nil {
		t.Fatalf("checkpoint report is not valid JSON: %v", err)
	}

	checkpointPath := filepath.Join(dir, "checkpoint.json")
	checkpointData, err := json.Marshal(cpReport.Checkpoint)
	if err != nil {
		t.Fatalf("marshal checkpoint: %v", err)
	}
	if err := os.WriteFile(checkpointPath, checkpointData, 0o644); err != nil {
		t.Fatalf("writing checkpoint fixture: %v", err)
	}

	var auditOut, auditErr bytes.Buffer
	code = Run([]string{"msez", "corridor", "state", "checkpoint-audit",
		"--state", statePath, "--checkpoint", checkpointPath}, &auditOut, &auditErr)
	if code != exitOK {
		t.Fatalf("checkpoint-audit exit code = %d, want %d, stderr=%s", code, exitOK, auditErr.String())
	}

	var audit receiptchain.AuditResult
	if err := json.Unmarshal(auditOut.Bytes(), &audit); err != nil {
		t.Fatalf("audit report is not valid JSON: %v", err)
	}
	if !audit.OK() {
		t.Errorf("audit result not OK: %+v", audit)
	}
}

func TestCorridorStateWatcherCompare_DetectsEquivocation(t *testing.T) {
	attestationsPath := filepath.Join(t.TempDir(), "attestations.json")
	attestations := []map[string]interface{}{
		{"WatcherDID": "did:w1", "Subject": "corridor-a", "Domain": "settlement", "TimeQuantum": "2026-08-01",
			"Sequence": 1, "PrevRoot": "root-0", "NextRoot": "root-1a"},
		{"WatcherDID": "did:w1", "Subject": "corridor-a", "Domain": "settlement", "TimeQuantum": "2026-08-01",
			"Sequence": 1, "PrevRoot": "root-0", "NextRoot": "root-1b"},
	}
	data, err := json.Marshal(attestations)
	if err != nil {
		t.Fatalf("marshal attestations: %v", err)
	}
	if err := os.WriteFile(attestationsPath, data, 0o644); err != nil {
		t.Fatalf("writing attestations fixture: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := Run([]string{"msez", "corridor", "state", "watcher-compare",
		"--attestations", attestationsPath}, &stdout, &stderr)
	if code != exitFailed {
		t.Fatalf("exit code = %d, want %d, stdout=%s stderr=%s", code, exitFailed, stdout.String(), stderr.String())
	}

	var report map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	equivocations, _ := report["equivocations"].([]interface{})
	if len(equivocations) != 1 {
		t.Errorf("equivocations = %v, want exactly one entry", report["equivocations"])
	}
}
