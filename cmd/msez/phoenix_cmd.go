package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/momentum-sez/msez-core/pkg/anchor"
	"github.com/momentum-sez/msez-core/pkg/config"
	"github.com/momentum-sez/msez-core/pkg/manifold"
	"github.com/momentum-sez/msez-core/pkg/migration"
	"github.com/momentum-sez/msez-core/pkg/observability"
	"github.com/momentum-sez/msez-core/pkg/savm"
	"github.com/momentum-sez/msez-core/pkg/tensor"
	"github.com/momentum-sez/msez-core/pkg/watcher"
)

func runPhoenixCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		return usageError(stderr, "usage: msez phoenix <tensor|vm|manifold|migration|watcher|anchor|config|health> ...")
	}
	switch args[0] {
	case "config":
		return runPhoenixConfig(args[1:], stdout, stderr)
	case "health":
		return runPhoenixHealth(args[1:], stdout, stderr)
	case "tensor":
		return runPhoenixTensor(args[1:], stdout, stderr)
	case "manifold":
		return runPhoenixManifold(args[1:], stdout, stderr)
	case "watcher":
		return runPhoenixWatcher(args[1:], stdout, stderr)
	case "anchor":
		return runPhoenixAnchor(args[1:], stdout, stderr)
	case "migration":
		return runPhoenixMigration(args[1:], stdout, stderr)
	case "vm":
		return runPhoenixVM(args[1:], stdout, stderr)
	default:
		return usageError(stderr, "unknown phoenix subcommand: %s", args[0])
	}
}

func readJSONFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func runPhoenixConfig(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("phoenix config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	projectFile := fs.String("project-file", "", "optional project config YAML layer")
	userFile := fs.String("user-file", "", "optional user config YAML layer")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	tree := config.NewDefaultTree()
	projectLayer, err := config.LoadYAMLFile(*projectFile)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}
	userLayer, err := config.LoadYAMLFile(*userFile)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}
	if err := tree.ResolveAll(nil, userLayer, projectLayer); err != nil {
		fmt.Fprintf(stderr, "configuration did not resolve cleanly: %v\n", err)
		return writeReport(stdout, stderr, map[string]interface{}{"valid": false, "error": err.Error()}, exitFailed)
	}
	return writeReport(stdout, stderr, tree.Dump(), exitOK)
}

func runPhoenixHealth(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	provider, err := observability.New(ctx, observability.DefaultConfig())
	if err != nil {
		fmt.Fprintf(stderr, "failed to start observability provider: %v\n", err)
		return exitInternal
	}
	defer provider.Shutdown(ctx) //nolint:errcheck // best-effort on CLI exit

	provider.Health().Register("cas-store-writable", func(context.Context) error {
		tmp, err := os.MkdirTemp("", "msez-health-*")
		if err != nil {
			return err
		}
		return os.RemoveAll(tmp)
	})

	results := provider.Health().CheckAll(ctx)
	report := make(map[string]interface{}, len(results))
	ok := true
	for name, err := range results {
		if err != nil {
			report[name] = err.Error()
			ok = false
		} else {
			report[name] = "ok"
		}
	}
	exit := exitOK
	if !ok {
		exit = exitFailed
	}
	return writeReport(stdout, stderr, map[string]interface{}{"healthy": ok, "probes": report}, exit)
}

// tensorInput is the CLI's JSON shape for seeding a compliance tensor:
// a flat list of cells rather than pkg/tensor's internal sparse map.
type tensorInput struct {
	AsOf  string `json:"as_of"`
	Cells []struct {
		Asset        string                   `json:"asset"`
		Jurisdiction string                   `json:"jur"`
		Domain       string                   `json:"domain"`
		Time         string                   `json:"time"`
		State        string                   `json:"state"`
		Reason       string                   `json:"reason"`
		Attestations []map[string]interface{} `json:"attestations"`
	} `json:"cells"`
}

func runPhoenixTensor(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("phoenix tensor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "path to a tensor cell-list JSON file (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *input == "" {
		return usageError(stderr, "--input is required")
	}

	var in tensorInput
	if err := readJSONFile(*input, &in); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}

	t := tensor.New()
	for _, c := range in.Cells {
		state, err := tensor.ParseState(c.State)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return exitUsage
		}
		coord := tensor.Coord{Asset: c.Asset, Jurisdiction: c.Jurisdiction, Domain: c.Domain, Time: c.Time}
		t.Set(coord, state, c.Reason, c.Attestations)
	}

	commitment, err := t.Commit(in.AsOf, nil)
	if err != nil {
		fmt.Fprintf(stderr, "failed to commit tensor: %v\n", err)
		return exitInternal
	}
	return writeReport(stdout, stderr, commitment, exitOK)
}

func runPhoenixManifold(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("phoenix manifold", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "path to an edge-list JSON file (REQUIRED)")
	source := fs.String("source", "", "source jurisdiction id (REQUIRED)")
	target := fs.String("target", "", "target jurisdiction id (REQUIRED)")
	held := fs.String("held", "", "comma-separated attestation types already held")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *input == "" || *source == "" || *target == "" {
		return usageError(stderr, "--input, --source, and --target are required")
	}

	var edges []manifold.Edge
	if err := readJSONFile(*input, &edges); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}

	g := manifold.NewGraph(edges)
	heldSet := manifold.NewHeldSet(splitNonEmpty(*held))
	path, err := g.ShortestPath(*source, *target, heldSet, manifold.DefaultWeights())
	if err != nil {
		fmt.Fprintf(stderr, "no route found: %v\n", err)
		return writeReport(stdout, stderr, map[string]interface{}{"found": false, "error": err.Error()}, exitFailed)
	}
	return writeReport(stdout, stderr, path, exitOK)
}

type watcherInput struct {
	DID           string   `json:"did"`
	Collateral    string   `json:"collateral"`
	Currency      string   `json:"currency"`
	Jurisdictions []string `json:"jurisdictions"`
	Reputation    string   `json:"reputation"`
}

func runPhoenixWatcher(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("phoenix watcher", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "path to a watcher-list JSON file (REQUIRED)")
	jurisdiction := fs.String("jurisdiction", "", "jurisdiction to select watchers for (REQUIRED)")
	minCount := fs.Int("min-count", 1, "minimum number of watchers to select")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *input == "" || *jurisdiction == "" {
		return usageError(stderr, "--input and --jurisdiction are required")
	}

	var entries []watcherInput
	if err := readJSONFile(*input, &entries); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitInternal
	}

	registry := watcher.NewRegistry()
	for _, e := range entries {
		bond, err := watcher.NewBond(e.DID, e.Collateral, e.Currency)
		if err != nil {
			fmt.Fprintf(stderr, "failed to bond watcher %s: %v\n", e.DID, err)
			return exitUsage
		}
		reputation, err := watcher.NewFraction(e.Reputation)
		if err != nil {
			fmt.Fprintf(stderr, "invalid reputation for watcher %s: %v\n", e.DID, err)
			return exitUsage
		}
		jurisdictions := make(map[string]bool, len(e.Jurisdictions))
		for _, j := range e.Jurisdictions {
			jurisdictions[j] = true
		}
		registry.Register(&watcher.Watcher{DID: e.DID, Bond: bond, Jurisdictions: jurisdictions, Reputation: reputation})
	}

	selected := registry.SelectWatchers(*jurisdiction, *minCount)
	dids := make([]string, len(selected))
	for i, w := range selected {
		dids[i] = w.DID
	}
	return writeReport(stdout, stderr, map[string]interface{}{"jurisdiction": *jurisdiction, "selected": dids}, exitOK)
}

func runPhoenixAnchor(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("phoenix anchor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	chain := fs.String("chain", "mock", "chain name to submit to")
	digest := fs.String("digest", "", "checkpoint digest_sha256 to anchor (REQUIRED)")
	threshold := fs.Int("threshold", 3, "confirmation threshold for the mock chain")
	confirmations := fs.Int("confirmations", 3, "confirmations to simulate before polling")
	ttl := fs.Duration("ttl", 10*time.Minute, "pending-anchor TTL")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *digest == "" {
		return usageError(stderr, "--digest is required")
	}

	registry := anchor.NewRegistry(*ttl)
	mockAdapter := anchor.NewMockChainAdapter(*chain, *threshold)
	registry.RegisterAdapter(mockAdapter)

	now := time.Now().UTC()
	record, err := registry.Submit(*chain, *digest, now)
	if err != nil {
		fmt.Fprintf(stderr, "submit failed: %v\n", err)
		return exitInternal
	}
	mockAdapter.AdvanceConfirmations(record.TxID, *confirmations, 1)

	polled, err := registry.Poll(*chain, *digest, now)
	if err != nil {
		fmt.Fprintf(stderr, "poll failed: %v\n", err)
		return exitInternal
	}

	exit := exitOK
	if polled.Status != anchor.Confirmed {
		exit = exitFailed
	}
	return writeReport(stdout, stderr, polled, exit)
}

func runPhoenixMigration(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("phoenix migration", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sagaID := fs.String("saga", "", "saga id (REQUIRED)")
	deadlineMinutes := fs.Int("deadline-minutes", 0, "minutes from now the saga must complete by (0 = no deadline)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *sagaID == "" {
		return usageError(stderr, "--saga is required")
	}

	var deadline *time.Time
	if *deadlineMinutes > 0 {
		d := time.Now().UTC().Add(time.Duration(*deadlineMinutes) * time.Minute)
		deadline = &d
	}

	saga := migration.NewSaga(*sagaID, deadline)
	noop := func(*migration.Saga) (string, []migration.CompensationAction, error) { return "", nil, nil }
	orch := migration.NewOrchestrator(migration.Handlers{
		Compliance: noop, Attestation: noop, Lock: noop, TransitStep: noop, Verify: noop, Unlock: noop,
	}, nil)

	exit := exitOK
	if err := orch.Drive(saga); err != nil {
		fmt.Fprintf(stderr, "saga drive stopped: %v\n", err)
		exit = exitFailed
	}

	return writeReport(stdout, stderr, map[string]interface{}{
		"saga_id": *sagaID, "state": saga.State(), "history": saga.History(),
	}, exit)
}

func runPhoenixVM(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("phoenix vm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bytecodeHex := fs.String("bytecode", "", "hex-encoded bytecode to execute (REQUIRED)")
	gasLimit := fs.Uint64("gas", 10_000_000, "gas limit")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *bytecodeHex == "" {
		return usageError(stderr, "--bytecode is required")
	}

	bytecode, err := hex.DecodeString(*bytecodeHex)
	if err != nil {
		return usageError(stderr, "--bytecode is not valid hex: %v", err)
	}

	result, err := savm.Execute(bytecode, savm.ExecutionContext{}, savm.NewStorage(), *gasLimit, savm.Coprocessors{})
	if err != nil {
		fmt.Fprintf(stderr, "execution failed: %v\n", err)
		return writeReport(stdout, stderr, map[string]interface{}{"error": err.Error()}, exitFailed)
	}

	exit := exitOK
	if result.Reverted {
		exit = exitFailed
	}
	return writeReport(stdout, stderr, map[string]interface{}{
		"reverted":    result.Reverted,
		"revert_code": result.RevertCode,
		"gas_used":    result.GasUsed,
		"return_data": hex.EncodeToString(result.ReturnData),
	}, exit)
}
