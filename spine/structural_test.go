package spine

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"xdao.co/collapse/asc7"
	"xdao.co/collapse/numbers"
	"xdao.co/collapse/trace"
)

func TestTraceStructural(t *testing.T) {
	r := mustCompute(t, DefaultConfig(), nil)
	var buf bytes.Buffer
	s := TraceStructural(r, 3, 2, trace.NewWriter("structural", "", &buf))

	if len(s.NE) != 4 || len(s.ZE) != 5 {
		t.Fatalf("domains = %d, %d", len(s.NE), len(s.ZE))
	}
	if s.NEDigest != numbers.DigestNE(numbers.DomainNE(3)) || s.ZEDigest != numbers.DigestZE(numbers.DomainZE(2)) {
		t.Fatalf("digests do not match the domains")
	}
	want := []string{
		"QE DOMAIN: CONSTRUCTION",
		"size: 511",
		"first: -20/1",
		"last: 20/1",
		"domain_digest_hex(QE): " + r.DomainDigest.Hex(),
		"N_E.first: 0",
		"N_E.kind: N_E",
		"N_E.last: 3",
		"N_E.size: 4",
		"domain_digest_hex(N_E): " + s.NEDigest.Hex(),
		"Z_E.first: -2",
		"Z_E.last: 2",
		"Z_E.size: 5",
		"domain_digest_hex(Z_E): " + s.ZEDigest.Hex(),
	}
	out := buf.String()
	for _, w := range want {
		if !strings.Contains(out, w+"\n") {
			t.Fatalf("structural trace missing %q:\n%s", w, out)
		}
	}
	if strings.Index(out, "N_E.first") > strings.Index(out, "N_E.kind") {
		t.Fatalf("view keys not sorted")
	}
}

func TestTraceStructural_DoesNotTouchResult(t *testing.T) {
	r := mustCompute(t, DefaultConfig(), nil)
	before := r.Digests()
	TraceStructural(r, DefaultNEMax, DefaultZEMax, nil)
	if err := VerifySnapshot(before, r.Digests()); err != nil {
		t.Fatalf("structural trace changed the run: %v", err)
	}
}

func TestSummary(t *testing.T) {
	r := mustCompute(t, DefaultConfig(), nil)
	s := TraceStructural(r, DefaultNEMax, DefaultZEMax, nil)

	m := r.Summary(s)
	if len(m) != 8 {
		t.Fatalf("summary keys = %d", len(m))
	}
	if m["domain_ne_digest"] != s.NEDigest.Hex() || m["domain_ze_digest"] != s.ZEDigest.Hex() {
		t.Fatalf("integer domain digests missing")
	}
	if m["domain_qe_digest"] != goldenDefault[KeyDomainDigest] || m["chain_hash"] != goldenDefault[KeyChainHash] {
		t.Fatalf("summary disagrees with the run digests")
	}
	if _, ok := r.Summary(nil)["domain_ne_digest"]; ok {
		t.Fatalf("nil structural should omit integer digests")
	}

	var buf bytes.Buffer
	if err := WriteSummary(trace.NewWriter("sembits", "", &buf), m); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	out := buf.String()
	i := strings.Index(out, "{")
	if i < 0 || !strings.Contains(out, "SUMMARY") {
		t.Fatalf("summary block = %q", out)
	}
	var back map[string]string
	if err := json.Unmarshal([]byte(out[i:]), &back); err != nil {
		t.Fatalf("summary is not JSON: %v", err)
	}
	if back["tests_hash"] != m["tests_hash"] {
		t.Fatalf("round trip mismatch")
	}
	if strings.Index(out, `"asc7_hash"`) > strings.Index(out, `"chain_hash"`) {
		t.Fatalf("summary keys not sorted")
	}
}

func TestSample(t *testing.T) {
	norm, terminal, err := Sample(asc7.CodeSafe(), SampleText)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if norm != "Hello Wolld (oolll)" || !terminal {
		t.Fatalf("Sample = %q, %v", norm, terminal)
	}
	if _, _, err := Sample(asc7.CodeSafe(), "naïve"); err == nil {
		t.Fatalf("non-ASCII sample accepted")
	}
}

func TestCompute_TraceSections(t *testing.T) {
	var buf bytes.Buffer
	mustCompute(t, DefaultConfig(), trace.NewWriter("spine", "", &buf))
	out := buf.String()
	for _, want := range []string{
		"NORMALIZE EXAMPLES",
		"normalize(den>3): den>3",
		"normalize(A): A",
		"normalize(O): o",
		"largest_class_members: 211",
		"largest_class_avg_value: ",
		"largest_class_min_value: ",
		"largest_class_max_value: ",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("trace missing %q", want)
		}
	}
}
