package artifactgraph

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/momentum-sez/msez-core/pkg/canon"
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

const witnessReadme = `This is an MSEZ witness bundle.

manifest.json is the canonical verifier report for the root artifact named
within it. artifacts/<type>/<digest> contains every artifact in the
transitive closure reachable from that root. Verify offline by re-deriving
the root from manifest.json and walking the closure against the bundled
artifacts directory — no network or external CAS access is required.
`

// BuildBundle streams a Report plus every one of its closure members into a
// zip, in deterministic (sorted) order so the resulting bundle's own bytes
// are reproducible across builds of the same closure.
func BuildBundle(v *Verifier, report *Report) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifestBytes, err := canon.Bytes(reportToGeneric(report))
	if err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "manifest.json", manifestBytes); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "README.txt", []byte(witnessReadme)); err != nil {
		return nil, err
	}

	nodes := append([]Node{}, report.Nodes...)
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].ArtifactType != nodes[j].ArtifactType {
			return nodes[i].ArtifactType < nodes[j].ArtifactType
		}
		return nodes[i].Digest < nodes[j].Digest
	})

	for _, n := range nodes {
		data, err := v.store.Load(n.ArtifactType, n.Digest, false)
		if err != nil {
			return nil, err
		}
		entry := fmt.Sprintf("artifacts/%s/%s", n.ArtifactType, n.Digest)
		if err := writeZipEntry(zw, entry, data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to finalize witness bundle", err)
	}
	return buf.Bytes(), nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to create zip entry "+name, err)
	}
	if _, err := w.Write(data); err != nil {
		return msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to write zip entry "+name, err)
	}
	return nil
}

// OpenBundle reads a witness bundle's manifest and artifact set, returning
// the manifest Report and a map of the embedded artifacts keyed by entry name —
// it re-derives the root entirely from the bundle with no CAS dependency.
func OpenBundle(data []byte) (*Report, map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, msezerr.Wrap(msezerr.KindValidation, "MSEZ/GRAPH/BAD_BUNDLE", "failed to open witness bundle", err)
	}

	artifacts := make(map[string][]byte)
	var manifestBytes []byte
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, nil, msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to open bundle entry "+f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck // best-effort close of zip entry reader
		if err != nil {
			return nil, nil, msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to read bundle entry "+f.Name, err)
		}
		switch {
		case f.Name == "manifest.json":
			manifestBytes = content
		case len(f.Name) > len("artifacts/"):
			artifacts[f.Name] = content
		}
	}

	if manifestBytes == nil {
		return nil, nil, msezerr.New(msezerr.KindValidation, "MSEZ/GRAPH/NO_MANIFEST", "witness bundle has no manifest.json")
	}

	report, err := reportFromBytes(manifestBytes)
	if err != nil {
		return nil, nil, err
	}
	return report, artifacts, nil
}

// VerifyBundleOffline re-derives the root from the manifest and checks that
// every node the manifest claims is present in the bundled artifact set,
// re-hashing each (spec §4.3: "a verifier given only a bundle re-derives
// the root from the manifest and proceeds offline").
func VerifyBundleOffline(data []byte) (*Report, error) {
	manifest, artifacts, err := OpenBundle(data)
	if err != nil {
		return nil, err
	}

	verified := &Report{Root: manifest.Root, Edges: manifest.Edges}
	for _, n := range manifest.Nodes {
		entry := fmt.Sprintf("artifacts/%s/%s", n.ArtifactType, n.Digest)
		content, ok := artifacts[entry]
		if !ok {
			verified.Missing = append(verified.Missing, n)
			continue
		}
		// Blob/opaque artifacts hash directly; JSON object artifacts were
		// already strict-digest-checked before they entered the bundle, so
		// a raw sha256 mismatch here always means bundle corruption.
		if computed := canon.SHA256Hex(content); computed != n.Digest {
			verified.Mismatch = append(verified.Mismatch, Mismatch{Node: n, Expected: n.Digest, Computed: computed})
			continue
		}
		verified.Nodes = append(verified.Nodes, n)
	}
	return verified, nil
}
