// Package proof composes the per-subtree proofs each domain module already
// knows how to produce (identity.Prove, balance.Prove, document.Prove, ...)
// into one self-contained, offline-verifiable artifact a light client can
// retrieve once and check without ever talking to a Store again.
package proof

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/driveplatform/drive/pkg/cost"
)

// BundleVersion identifies the wire shape of Bundle for forward compatibility.
const BundleVersion = "1.0"

// Entry is one named subtree proof inside a Bundle. Name is caller-chosen
// ("identity:<id>", "balance:<id>", ...) and has no meaning to Verify beyond
// letting a caller find the pairs it asked for.
type Entry struct {
	Name      string `json:"name"`
	ProofData []byte `json:"proof_data"`
}

// Bundle is a self-contained set of proofs taken from one store snapshot,
// together with enough metadata to check they all agree on the same root.
type Bundle struct {
	Version   string  `json:"version"`
	BundleID  string  `json:"bundle_id"`
	RootHash  []byte  `json:"root_hash"`
	Entries   []Entry `json:"entries"`
	ArtifactHash string `json:"artifact_hash"`
}

// New creates an empty bundle pinned to rootHash; AddEntry populates it.
func New(bundleID string, rootHash []byte) *Bundle {
	return &Bundle{Version: BundleVersion, BundleID: bundleID, RootHash: rootHash}
}

// AddEntry appends a named proof blob, e.g. produced by identity.Prove.
func (b *Bundle) AddEntry(name string, proofData []byte) {
	b.Entries = append(b.Entries, Entry{Name: name, ProofData: proofData})
}

// Finalize sorts entries by name for a stable encoding and stamps the
// artifact hash used by VerifyIntegrity.
func (b *Bundle) Finalize() error {
	sort.Slice(b.Entries, func(i, j int) bool { return b.Entries[i].Name < b.Entries[j].Name })
	h, err := b.computeArtifactHash()
	if err != nil {
		return err
	}
	b.ArtifactHash = h
	return nil
}

func (b *Bundle) computeArtifactHash() (string, error) {
	parts := make([][]byte, 0, len(b.Entries)*2+1)
	parts = append(parts, b.RootHash)
	for _, e := range b.Entries {
		parts = append(parts, []byte(e.Name), e.ProofData)
	}
	return "sha256:" + hex.EncodeToString(cost.HashConcat(parts...)), nil
}

// VerifyIntegrity reports whether the bundle's stored artifact hash still
// matches its contents, catching accidental corruption independent of the
// cryptographic proof checks VerifyBundle performs.
func (b *Bundle) VerifyIntegrity() (bool, error) {
	if b.ArtifactHash == "" {
		return false, fmt.Errorf("proof: bundle has no artifact hash")
	}
	got, err := b.computeArtifactHash()
	if err != nil {
		return false, err
	}
	return got == b.ArtifactHash, nil
}

// Validate reports structural problems that would make the bundle useless
// before anyone attempts the expensive cryptographic verification.
func (b *Bundle) Validate() []string {
	var problems []string
	if b.BundleID == "" {
		problems = append(problems, "bundle_id is required")
	}
	if len(b.RootHash) == 0 {
		problems = append(problems, "root_hash is required")
	}
	if len(b.Entries) == 0 {
		problems = append(problems, "at least one entry is required")
	}
	seen := make(map[string]bool, len(b.Entries))
	for _, e := range b.Entries {
		if e.Name == "" {
			problems = append(problems, "entry with empty name")
		}
		if seen[e.Name] {
			problems = append(problems, fmt.Sprintf("duplicate entry name %q", e.Name))
		}
		seen[e.Name] = true
		if len(e.ProofData) == 0 {
			problems = append(problems, fmt.Sprintf("entry %q has no proof data", e.Name))
		}
	}
	return problems
}

// Compress serializes b to canonical JSON and gzips it, the transport form
// light clients actually fetch - proof bundles are dominated by sibling
// hashes, which gzip well.
func Compress(b *Bundle) ([]byte, error) {
	raw, err := cost.MarshalCanonical(b)
	if err != nil {
		return nil, fmt.Errorf("proof: marshal bundle: %w", err)
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, fmt.Errorf("proof: gzip write: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("proof: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) (*Bundle, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("proof: gzip reader: %w", err)
	}
	defer reader.Close()
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("proof: read gzip: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("proof: unmarshal bundle: %w", err)
	}
	return &b, nil
}
