package spine

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/collapse/asc7"
	"xdao.co/collapse/cert"
	"xdao.co/collapse/trace"
)

func mustCompute(t *testing.T, cfg Config, sink trace.Sink) *Result {
	t.Helper()
	r, err := Compute(cfg, sink)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return r
}

func TestCompute_Deterministic(t *testing.T) {
	golden := mustCompute(t, DefaultConfig(), nil).Digests()
	for i := 0; i < 5; i++ {
		got := mustCompute(t, DefaultConfig(), nil).Digests()
		if err := VerifySnapshot(golden, got); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	for _, k := range SnapshotKeys() {
		if len(golden[k]) != 64 {
			t.Fatalf("%s is not a 64-char hex digest: %q", k, golden[k])
		}
	}
}

func TestCompute_SpineShape(t *testing.T) {
	r := mustCompute(t, DefaultConfig(), nil)
	if r.Quotient.Len() != 6 {
		t.Fatalf("classes = %d", r.Quotient.Len())
	}
	if r.Quotient.Size() != len(r.Domain) {
		t.Fatalf("quotient does not cover the domain")
	}
	names := []string{}
	for _, it := range r.Chain.Items {
		names = append(names, it.Name)
	}
	if strings.Join(names, ",") != "asc7,asc7_confusables,sembit" {
		t.Fatalf("chain order = %v", names)
	}
	if r.Chain.Items[0].HashHex != r.Asc7.HashHex() {
		t.Fatalf("chain does not carry the asc7 hash")
	}
	if err := r.Chain.Verify(); err != nil {
		t.Fatalf("chain verify: %v", err)
	}
	for _, c := range r.Certificates() {
		if err := c.Verify(); err != nil {
			t.Fatalf("%s: %v", c.Name(), err)
		}
	}
	v, ok := r.Sembit.Payload().Get("asc7_graph_hash")
	if s, _ := v.AsString(); !ok || s != r.Asc7.HashHex() {
		t.Fatalf("sembit payload must embed the asc7 certificate hash")
	}
}

func TestChain_DependsOnAsc7Hash(t *testing.T) {
	r := mustCompute(t, Config{
		Profile: asc7.NameCodeSafe, NMax: 10, DMax: 10, Tests: SpineTests(), ImplTag: DefaultImplTag,
	}, nil)
	items := append([]cert.Item(nil), r.Chain.Items...)
	items[0].HashHex = "deadbeef"
	if cert.ChainHash(items) == r.Chain.Hash {
		t.Fatalf("replacing the asc7 hash must change the chain hash")
	}
	if len(r.Chain.Items[0].HashHex) != 64 {
		t.Fatalf("asc7 hash len = %d", len(r.Chain.Items[0].HashHex))
	}
}

func TestCompute_InputsPropagate(t *testing.T) {
	base := mustCompute(t, DefaultConfig(), nil).Digests()

	cfg := DefaultConfig()
	cfg.Profile = asc7.NameAuthSafe
	auth := mustCompute(t, cfg, nil).Digests()
	if auth[KeyAsc7Hash] == base[KeyAsc7Hash] || auth[KeyChainHash] == base[KeyChainHash] {
		t.Fatalf("profile change must reach the chain")
	}
	if auth[KeyDomainDigest] != base[KeyDomainDigest] || auth[KeyConfusablesHash] != base[KeyConfusablesHash] {
		t.Fatalf("profile change must not touch domain or confusables")
	}

	cfg = DefaultConfig()
	cfg.ImplTag = "impl:static_v2"
	tag := mustCompute(t, cfg, nil).Digests()
	if tag[KeyTestsHash] == base[KeyTestsHash] || tag[KeySembitHash] == base[KeySembitHash] {
		t.Fatalf("impl tag must reach tests and sembit hashes")
	}

	cfg = DefaultConfig()
	cfg.DMax = 19
	dom := mustCompute(t, cfg, nil).Digests()
	if dom[KeyDomainDigest] == base[KeyDomainDigest] || dom[KeyChainHash] == base[KeyChainHash] {
		t.Fatalf("domain change must reach the chain")
	}
}

func TestCompute_TraceDoesNotAffectHashes(t *testing.T) {
	var buf bytes.Buffer
	traced := mustCompute(t, DefaultConfig(), trace.NewWriter("sembits", "", &buf)).Digests()
	plain := mustCompute(t, DefaultConfig(), nil).Digests()
	if err := VerifySnapshot(plain, traced); err != nil {
		t.Fatalf("trace sink changed hashes: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"CERT CHAIN", "chain_hash: " + plain[KeyChainHash], "test_id_3: den>3", "largest_class_sig: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("trace missing %q", want)
		}
	}
}

func TestCompute_Buckets(t *testing.T) {
	r := mustCompute(t, BucketsConfig(), nil)
	if r.Family.Len() != 6 {
		t.Fatalf("family size = %d", r.Family.Len())
	}
	if r.Quotient.Len() < 2 || r.Quotient.Len() >= len(r.Domain) {
		t.Fatalf("unexpected class count %d for domain %d", r.Quotient.Len(), len(r.Domain))
	}
	ids := strings.Join(r.Family.IDs(), ",")
	if ids != "positive,integer,den<=6,num_even,den_mod3,proper" {
		t.Fatalf("ids = %s", ids)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := Config{NMax: -1}
	err := bad.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"profile", "nmax", "dmax", "test", "impl tag"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
	cfg := DefaultConfig()
	cfg.Profile = "nope"
	if _, err := Compute(cfg, nil); err == nil {
		t.Fatalf("unknown profile should fail")
	}
	cfg = DefaultConfig()
	cfg.Tests = append(cfg.Tests, TestSpec{ID: "ünïcode", Predicate: SpineTests()[0].Predicate})
	if _, err := Compute(cfg, nil); !errors.Is(err, asc7.ErrNormalization) {
		t.Fatalf("expected normalization error, got %v", err)
	}
}

func TestSnapshot_FreezeAndVerify(t *testing.T) {
	r := mustCompute(t, DefaultConfig(), nil)
	path := filepath.Join(t.TempDir(), "gates", "expected.json")
	if err := WriteSnapshot(path, r.Digests()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(raw, []byte("}\n")) || !bytes.HasPrefix(raw, []byte("{\n  \"asc7_hash\": ")) {
		t.Fatalf("unexpected snapshot layout:\n%s", raw)
	}
	if err := Verify(path, r); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	tampered := r.Digests()
	tampered[KeyTestsHash] = strings.Repeat("0", 64)
	if err := WriteSnapshot(path, tampered); err != nil {
		t.Fatal(err)
	}
	err = Verify(path, r)
	var rm *RegressionMismatchError
	if !errors.As(err, &rm) || rm.Key != KeyTestsHash || rm.Missing {
		t.Fatalf("expected mismatch on tests_hash, got %v", err)
	}
	if !strings.Contains(err.Error(), "key=tests_hash") {
		t.Fatalf("error must name the key: %s", err)
	}
}

func TestSnapshot_Missing(t *testing.T) {
	_, err := ReadSnapshot(filepath.Join(t.TempDir(), "absent.json"))
	var rm *RegressionMismatchError
	if !errors.As(err, &rm) || !rm.Missing || rm.Key != "" {
		t.Fatalf("expected missing-file mismatch, got %v", err)
	}

	got := mustCompute(t, DefaultConfig(), nil).Digests()
	partial := Snapshot{}
	for k, v := range got {
		partial[k] = v
	}
	delete(partial, KeyChainHash)
	err = VerifySnapshot(partial, got)
	if !errors.As(err, &rm) || !rm.Missing || rm.Key != KeyChainHash {
		t.Fatalf("expected missing key chain_hash, got %v", err)
	}
}

func TestWriteSnapshot_RejectsNonDigest(t *testing.T) {
	err := WriteSnapshot(filepath.Join(t.TempDir(), "x.json"), Snapshot{KeyChainHash: "sha256:abc"})
	if err == nil {
		t.Fatalf("expected error for malformed digest")
	}
}
