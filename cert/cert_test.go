package cert

import (
	"testing"

	"xdao.co/collapse/canon"
	"xdao.co/collapse/digest"
)

func samplePayload() canon.Value {
	return canon.NewObject().Str("profile_name", "code_safe").U64("witness_len", 90).Build()
}

func TestNew_HashCoversPayloadOnly(t *testing.T) {
	a := New("asc7", "1.0.0", samplePayload())
	b := New("renamed", "9.9.9", samplePayload())
	if a.Hash() != b.Hash() {
		t.Fatalf("name/version must not affect the hash")
	}
	if a.Hash() != digest.Sum(canon.Encode(samplePayload())) {
		t.Fatalf("hash must be sha256(canon(payload))")
	}
	if len(a.HashHex()) != 64 {
		t.Fatalf("HashHex length: %d", len(a.HashHex()))
	}
	if err := a.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestCertificate_CIDMatchesPayloadBytes(t *testing.T) {
	c := New("asc7", "1.0.0", samplePayload())
	want, err := digest.CIDOf(c.PayloadBytes())
	if err != nil {
		t.Fatalf("CIDOf: %v", err)
	}
	if !c.CID().Equals(want) {
		t.Fatalf("CID mismatch: %s vs %s", c.CID(), want)
	}
}

func TestCertificate_Record(t *testing.T) {
	c := New("asc7", "1.0.0", canon.Object(nil))
	want := `{"kernel_hash":"` + c.HashHex() + `","kernel_name":"asc7","kernel_version":"1.0.0","payload":{}}`
	if got := string(canon.Encode(c.Record())); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func threeItems() []Item {
	return []Item{
		{Name: "asc7", HashHex: digest.Sum([]byte("a")).Hex()},
		{Name: "asc7_confusables", HashHex: digest.Sum([]byte("b")).Hex()},
		{Name: "sembit", HashHex: digest.Sum([]byte("c")).Hex()},
	}
}

func TestChain_Reproducible(t *testing.T) {
	a := BuildChain(threeItems())
	b := BuildChain(threeItems())
	if a.Hash != b.Hash {
		t.Fatalf("identical inputs must give identical chain hash")
	}
	if err := a.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestChain_SensitiveToItemHash(t *testing.T) {
	base := BuildChain(threeItems())
	items := threeItems()
	items[0].HashHex = "deadbeef"
	if ChainHash(items) == base.Hash {
		t.Fatalf("changing an item hash must change the chain hash")
	}
}

func TestChain_SensitiveToOrder(t *testing.T) {
	base := BuildChain(threeItems())
	items := threeItems()
	items[0], items[1] = items[1], items[0]
	if ChainHash(items) == base.Hash {
		t.Fatalf("reordering items must change the chain hash")
	}
}

func TestChain_NoDeduplication(t *testing.T) {
	items := threeItems()
	dup := append(append([]Item(nil), items...), items[2])
	if ChainHash(dup) == ChainHash(items) {
		t.Fatalf("duplicate items must be hashed, not dropped")
	}
}

func TestChain_CanonicalForm(t *testing.T) {
	items := []Item{{Name: "x", HashHex: "00"}}
	if got := string(canon.Encode(ChainValue(items))); got != `[{"hash":"00","name":"x"}]` {
		t.Fatalf("got %s", got)
	}
	if ChainHash(nil) != digest.Sum([]byte("[]")) {
		t.Fatalf("empty chain must hash the empty array")
	}
}

func TestChain_OwnsItems(t *testing.T) {
	items := threeItems()
	c := BuildChain(items)
	items[0].HashHex = "mutated"
	if err := c.Verify(); err != nil {
		t.Fatalf("chain must not alias caller slice: %v", err)
	}
	c.Items[1].HashHex = "tampered"
	if err := c.Verify(); !IsKind(err, KindIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}
