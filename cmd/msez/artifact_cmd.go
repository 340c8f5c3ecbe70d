package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/momentum-sez/msez-core/pkg/artifactgraph"
	"github.com/momentum-sez/msez-core/pkg/cas"
)

func runArtifactCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		return usageError(stderr, "usage: msez artifact <graph|bundle> ...")
	}
	switch args[0] {
	case "graph":
		return runArtifactGraphCmd(args[1:], stdout, stderr)
	case "bundle":
		return runArtifactBundleCmd(args[1:], stdout, stderr)
	default:
		return usageError(stderr, "unknown artifact subcommand: %s", args[0])
	}
}

func runArtifactGraphCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] != "verify" {
		return usageError(stderr, "usage: msez artifact graph verify --store DIR --type TYPE --digest SHA256 [--strict] [--edges] [--max-depth N] [--max-nodes N]")
	}

	fs := flag.NewFlagSet("artifact graph verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	store := fs.String("store", "", "CAS store root (REQUIRED)")
	artifactType := fs.String("type", "", "root artifact type (REQUIRED)")
	digest := fs.String("digest", "", "root artifact digest_sha256 (REQUIRED)")
	strict := fs.Bool("strict", false, "re-hash every node's content on the way down")
	edges := fs.Bool("edges", false, "emit the traversed edge list")
	maxDepth := fs.Int("max-depth", 8, "maximum traversal depth")
	maxNodes := fs.Int("max-nodes", 1000, "maximum node count before truncation")
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}
	if *store == "" || *artifactType == "" || *digest == "" {
		return usageError(stderr, "--store, --type, and --digest are required")
	}

	s, err := cas.New(*store)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open store: %v\n", err)
		return exitInternal
	}

	v := artifactgraph.New(s, artifactgraph.Options{
		Strict: *strict, EmitEdges: *edges, MaxDepth: *maxDepth, MaxNodes: *maxNodes,
	})
	report, err := v.VerifyRoot(*artifactType, *digest)
	if err != nil {
		fmt.Fprintf(stderr, "graph walk failed: %v\n", err)
		return exitInternal
	}

	exit := exitOK
	if !report.Success() {
		fmt.Fprintf(stderr, "verification failed: %d missing, %d mismatched\n", len(report.Missing), len(report.Mismatch))
		exit = exitFailed
	}
	return writeReport(stdout, stderr, report, exit)
}

func runArtifactBundleCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		return usageError(stderr, "usage: msez artifact bundle <attest|verify> ...")
	}
	switch args[0] {
	case "attest":
		return runArtifactBundleAttest(args[1:], stdout, stderr)
	case "verify":
		return runArtifactBundleVerify(args[1:], stdout, stderr)
	default:
		return usageError(stderr, "unknown artifact bundle subcommand: %s", args[0])
	}
}

func runArtifactBundleAttest(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("artifact bundle attest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	store := fs.String("store", "", "CAS store root (REQUIRED)")
	artifactType := fs.String("type", "", "root artifact type (REQUIRED)")
	digest := fs.String("digest", "", "root artifact digest_sha256 (REQUIRED)")
	out := fs.String("out", "", "output path for the witness bundle zip (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *store == "" || *artifactType == "" || *digest == "" || *out == "" {
		return usageError(stderr, "--store, --type, --digest, and --out are required")
	}

	s, err := cas.New(*store)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open store: %v\n", err)
		return exitInternal
	}
	v := artifactgraph.New(s, artifactgraph.DefaultOptions())
	report, err := v.VerifyRoot(*artifactType, *digest)
	if err != nil {
		fmt.Fprintf(stderr, "graph walk failed: %v\n", err)
		return exitInternal
	}
	if !report.Success() {
		fmt.Fprintf(stderr, "refusing to attest an incomplete closure: %d missing, %d mismatched\n", len(report.Missing), len(report.Mismatch))
		return writeReport(stdout, stderr, report, exitFailed)
	}

	bundle, err := artifactgraph.BuildBundle(v, report)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build bundle: %v\n", err)
		return exitInternal
	}
	if err := os.WriteFile(*out, bundle, 0o644); err != nil { //nolint:gosec // witness bundle is meant to be shared
		fmt.Fprintf(stderr, "failed to write bundle: %v\n", err)
		return exitInternal
	}

	return writeReport(stdout, stderr, map[string]interface{}{
		"bundle_path": *out,
		"node_count":  len(report.Nodes),
		"root":        report.Root,
	}, exitOK)
}

func runArtifactBundleVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("artifact bundle verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bundlePath := fs.String("bundle", "", "path to a witness bundle zip (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *bundlePath == "" {
		return usageError(stderr, "--bundle is required")
	}

	data, err := os.ReadFile(*bundlePath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read bundle: %v\n", err)
		return exitInternal
	}

	report, err := artifactgraph.VerifyBundleOffline(data)
	if err != nil {
		fmt.Fprintf(stderr, "bundle is malformed: %v\n", err)
		return writeReport(stdout, stderr, map[string]interface{}{"bundle": *bundlePath, "valid": false, "error": err.Error()}, exitFailed)
	}

	exit := exitOK
	if !report.Success() {
		fmt.Fprintf(stderr, "bundle verification failed: %d missing, %d mismatched\n", len(report.Missing), len(report.Mismatch))
		exit = exitFailed
	}
	return writeReport(stdout, stderr, report, exit)
}
