package spine

import (
	"path/filepath"
	"testing"
)

// Frozen digests of DefaultConfig. Any other implementation of the pipeline
// must reproduce these bytes exactly.
var goldenDefault = Snapshot{
	KeyAsc7Hash:        "89a21d713b4e8bc4930db5694a9c3463905d2b604668e0edde08283d6bfd272c",
	KeyConfusablesHash: "4d9f034ce73a924fe1bcb3fbb6916a5847790f8d208779b382570568908d5507",
	KeyDomainDigest:    "9922c52742d1d8cc119e7ee937ea5716c549f3d133f8653836cbcc8613d0aed2",
	KeyTestsHash:       "cd6cb35c2baa305507afb7baebebdc65ee0bef59db3e6a9827ac251e49d26462",
	KeySembitHash:      "7145f4acf7ed6f412c642fec765062b2c01503927fe73ba898b4d8121f768908",
	KeyChainHash:       "702f6ad0f26c80549b2881d617fc0f442697a9995f876cf914ec7a42fff03c74",
}

func TestGoldenVectors_DefaultConfig(t *testing.T) {
	r := mustCompute(t, DefaultConfig(), nil)
	got := r.Digests()
	for _, k := range SnapshotKeys() {
		if got[k] != goldenDefault[k] {
			t.Fatalf("%s = %s want %s", k, got[k], goldenDefault[k])
		}
	}

	if r.Quotient.Len() != 6 {
		t.Fatalf("classes = %d want 6", r.Quotient.Len())
	}
	if len(r.Domain) != 511 {
		t.Fatalf("domain size = %d want 511", len(r.Domain))
	}
	if got, want := r.QuotientDigest.Hex(), "e93f67d101128a253eb8f10e62bbf4a448fd4b0c59011ae66a4af5d6993fcf57"; got != want {
		t.Fatalf("quotient digest = %s want %s", got, want)
	}
	if got, want := r.Profile.GraphHash.Hex(), "5bc71a726b0f0032debe2b67faef9a3dbe28926589e6d2692b467390eef3aa6a"; got != want {
		t.Fatalf("graph hash = %s want %s", got, want)
	}
}

func TestGoldenVectors_ClassCounts(t *testing.T) {
	r := mustCompute(t, DefaultConfig(), nil)
	want := []struct {
		sig   string
		count int
	}{
		{"Bits[0,0,0]", 24},
		{"Bits[0,0,1]", 211},
		{"Bits[0,1,0]", 21},
		{"Bits[1,0,0]", 24},
		{"Bits[1,0,1]", 211},
		{"Bits[1,1,0]", 20},
	}
	classes := r.Quotient.Classes()
	if len(classes) != len(want) {
		t.Fatalf("classes = %d", len(classes))
	}
	for i, c := range classes {
		if c.Signature.String() != want[i].sig || len(c.Members) != want[i].count {
			t.Fatalf("class %d = %s x%d want %s x%d", i, c.Signature, len(c.Members), want[i].sig, want[i].count)
		}
	}
}

func TestGoldenVectors_CheckedInSnapshot(t *testing.T) {
	r := mustCompute(t, DefaultConfig(), nil)
	if err := Verify(filepath.Join("testdata", "expected.json"), r); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
