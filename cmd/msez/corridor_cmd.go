package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/momentum-sez/msez-core/pkg/receiptchain"
	"github.com/momentum-sez/msez-core/pkg/watcher"
)

// chainState is the CLI's on-disk representation of a receiptchain.Chain —
// the package itself holds no persistence opinion, so the CLI owns
// serializing CorridorID/Genesis/Expected/Receipts between invocations and
// replaying Append to rebuild the chain's internal fork index on load.
type chainState struct {
	CorridorID string                     `json:"corridor_id"`
	Genesis    string                     `json:"genesis"`
	Expected   receiptchain.ExpectedSets  `json:"expected"`
	Receipts   []receiptchain.Receipt     `json:"receipts"`
}

func loadChain(path string) (*receiptchain.Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	var st chainState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	chain := receiptchain.NewChain(st.CorridorID, st.Genesis, st.Expected)
	for _, r := range st.Receipts {
		if _, err := chain.Append(r, receiptchain.AppendOptions{}); err != nil {
			return nil, fmt.Errorf("replaying state file receipt seq %d: %w", r.Sequence, err)
		}
	}
	return chain, nil
}

func stateOf(chain *receiptchain.Chain) chainState {
	return chainState{
		CorridorID: chain.CorridorID,
		Genesis:    chain.Genesis,
		Expected:   chain.Expected,
		Receipts:   chain.Receipts,
	}
}

func writeChainState(path string, st chainState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering state file: %w", err)
	}
	return os.WriteFile(path, data, 0o644) //nolint:gosec // receipt chain state is not secret
}

func runCorridorCmd(args []string, stdout, stderr io.Writer) int {
	usage := "usage: msez corridor state <receipt-init|checkpoint|verify|watcher-compare|checkpoint-audit> ..."
	if len(args) < 2 || args[0] != "state" {
		return usageError(stderr, usage)
	}
	switch args[1] {
	case "receipt-init":
		return runCorridorReceiptInit(args[2:], stdout, stderr)
	case "checkpoint":
		return runCorridorCheckpoint(args[2:], stdout, stderr)
	case "verify":
		return runCorridorVerify(args[2:], stdout, stderr)
	case "watcher-compare":
		return runCorridorWatcherCompare(args[2:], stdout, stderr)
	case "checkpoint-audit":
		return runCorridorCheckpointAudit(args[2:], stdout, stderr)
	default:
		return usageError(stderr, "unknown corridor state subcommand: %s", args[1])
	}
}

// runCorridorWatcherCompare feeds a batch of watcher attestations about a
// corridor's chain state through an equivocation detector, surfacing any
// watcher that signed two different next_root values for the same
// (sequence, prev_root) pair.
func runCorridorWatcherCompare(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("corridor state watcher-compare", flag.ContinueOnError)
	fs.SetOutput(stderr)
	attestationsPath := fs.String("attestations", "", "path to a JSON array of watcher.Attestation (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *attestationsPath == "" {
		return usageError(stderr, "--attestations is required")
	}

	var attestations []watcher.Attestation
	if err := readJSONFile(*attestationsPath, &attestations); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}

	detector := watcher.NewEquivocationDetector()
	var evidence []watcher.EquivocationEvidence
	for _, a := range attestations {
		ev, err := detector.Insert(a)
		if err != nil {
			fmt.Fprintf(stderr, "failed to insert attestation: %v\n", err)
			return exitInternal
		}
		if ev != nil {
			evidence = append(evidence, *ev)
		}
	}

	exit := exitOK
	if len(evidence) > 0 {
		exit = exitFailed
	}
	return writeReport(stdout, stderr, map[string]interface{}{
		"attestation_count": len(attestations), "equivocations": evidence,
	}, exit)
}

func runCorridorReceiptInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("corridor state receipt-init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	corridorID := fs.String("corridor", "", "corridor id (REQUIRED)")
	definitionDigest := fs.String("definition-vc-digest", "", "corridor definition VC digest_sha256 (REQUIRED)")
	out := fs.String("out", "", "output path for the new chain state file (REQUIRED)")
	lawpacks := fs.String("lawpacks", "", "comma-separated sorted expected lawpack digests")
	rulesets := fs.String("rulesets", "", "comma-separated sorted expected ruleset digests")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *corridorID == "" || *definitionDigest == "" || *out == "" {
		return usageError(stderr, "--corridor, --definition-vc-digest, and --out are required")
	}

	genesis, err := receiptchain.GenesisRoot(*corridorID, *definitionDigest)
	if err != nil {
		fmt.Fprintf(stderr, "failed to derive genesis root: %v\n", err)
		return exitInternal
	}

	st := chainState{
		CorridorID: *corridorID,
		Genesis:    genesis,
		Expected:   receiptchain.ExpectedSets{Lawpacks: splitNonEmpty(*lawpacks), Rulesets: splitNonEmpty(*rulesets)},
	}
	if err := writeChainState(*out, st); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}
	return writeReport(stdout, stderr, map[string]interface{}{
		"corridor_id": *corridorID, "genesis_root": genesis, "state_path": *out,
	}, exitOK)
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func runCorridorCheckpoint(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("corridor state checkpoint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	statePath := fs.String("state", "", "chain state file (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *statePath == "" {
		return usageError(stderr, "--state is required")
	}

	chain, err := loadChain(*statePath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}

	cp := chain.BuildCheckpoint(time.Now().UTC().Format(time.RFC3339))
	digest, err := cp.Digest()
	if err != nil {
		fmt.Fprintf(stderr, "failed to digest checkpoint: %v\n", err)
		return exitInternal
	}
	return writeReport(stdout, stderr, map[string]interface{}{
		"checkpoint": cp, "digest_sha256": digest,
	}, exitOK)
}

func runCorridorVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("corridor state verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	statePath := fs.String("state", "", "chain state file (REQUIRED)")
	receiptPath := fs.String("receipt", "", "candidate receipt JSON file (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *statePath == "" || *receiptPath == "" {
		return usageError(stderr, "--state and --receipt are required")
	}

	chain, err := loadChain(*statePath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}

	data, err := os.ReadFile(*receiptPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read receipt file: %v\n", err)
		return exitInternal
	}
	var receipt receiptchain.Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		fmt.Fprintf(stderr, "failed to parse receipt: %v\n", err)
		return exitUsage
	}

	warning, appendErr := chain.Append(receipt, receiptchain.AppendOptions{})
	if appendErr != nil {
		fmt.Fprintf(stderr, "receipt rejected: %v\n", appendErr)
		return writeReport(stdout, stderr, map[string]interface{}{
			"accepted": false, "error": appendErr.Error(),
		}, exitFailed)
	}

	if err := writeChainState(*statePath, stateOf(chain)); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}

	return writeReport(stdout, stderr, map[string]interface{}{
		"accepted": true, "warning": warning, "final_state_root": chain.FinalStateRoot(),
	}, exitOK)
}

func runCorridorCheckpointAudit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("corridor state checkpoint-audit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	statePath := fs.String("state", "", "chain state file (REQUIRED)")
	checkpointPath := fs.String("checkpoint", "", "checkpoint JSON file (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *statePath == "" || *checkpointPath == "" {
		return usageError(stderr, "--state and --checkpoint are required")
	}

	chain, err := loadChain(*statePath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}

	data, err := os.ReadFile(*checkpointPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read checkpoint file: %v\n", err)
		return exitInternal
	}
	var cp receiptchain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		fmt.Fprintf(stderr, "failed to parse checkpoint: %v\n", err)
		return exitUsage
	}

	result, err := chain.AuditCheckpoint(cp, nil)
	if err != nil {
		fmt.Fprintf(stderr, "audit failed to run: %v\n", err)
		return exitInternal
	}

	exit := exitOK
	if !result.OK() {
		fmt.Fprintln(stderr, "checkpoint audit failed")
		exit = exitFailed
	}
	return writeReport(stdout, stderr, result, exit)
}
