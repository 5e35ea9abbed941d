package spine

import (
	"encoding/json"
	"fmt"
	"strings"

	"xdao.co/collapse/asc7"
	"xdao.co/collapse/digest"
	"xdao.co/collapse/numbers"
	"xdao.co/collapse/trace"
)

// Bounds of the integer domains in the structural trace.
const (
	DefaultNEMax = 40
	DefaultZEMax = 20
)

// SampleText is the string the spine command normalizes for humans.
const SampleText = "Hell0 W0r1d (O0I1)"

// Structural holds the integer domains traced next to a run's QE domain.
type Structural struct {
	NE       []numbers.NE
	ZE       []numbers.ZE
	NEDigest digest.Digest
	ZEDigest digest.Digest
}

// TraceStructural writes the QE domain of r and the N_E [0,neMax] and Z_E
// [-zeMax,zeMax] domains to sink. The integer domains never enter a
// certificate. sink may be nil.
func TraceStructural(r *Result, neMax uint64, zeMax int64, sink trace.Sink) *Structural {
	if sink == nil {
		sink = trace.Nop{}
	}
	sink.Section("QE DOMAIN: CONSTRUCTION")
	view := numbers.ViewQE(r.Domain)
	sink.KV("size", fmt.Sprint(view.Size))
	if view.Size > 0 {
		sink.KV("first", view.First)
		sink.KV("last", view.Last)
	}
	sink.KV("domain_digest_hex(QE)", r.DomainDigest.Hex())

	s := &Structural{
		NE: numbers.DomainNE(neMax),
		ZE: numbers.DomainZE(zeMax),
	}
	s.NEDigest = numbers.DigestNE(s.NE)
	s.ZEDigest = numbers.DigestZE(s.ZE)

	sink.Section("N_E DOMAIN: CONSTRUCTION")
	traceView(sink, numbers.ViewNE(s.NE))
	sink.KV("domain_digest_hex(N_E)", s.NEDigest.Hex())

	sink.Section("Z_E DOMAIN: CONSTRUCTION")
	traceView(sink, numbers.ViewZE(s.ZE))
	sink.KV("domain_digest_hex(Z_E)", s.ZEDigest.Hex())
	return s
}

func traceView(sink trace.Sink, v numbers.View) {
	m := v.Map()
	for _, k := range v.Keys() {
		sink.KV(v.Kind+"."+k, m[k])
	}
}

// Summary is the human summary of a traced run. s may be nil, in which case
// the integer domain digests are left out.
func (r *Result) Summary(s *Structural) map[string]string {
	m := map[string]string{
		"asc7_hash":        r.Asc7.HashHex(),
		"confusables_hash": r.Confusables.HashHex(),
		"domain_qe_digest": r.DomainDigest.Hex(),
		"tests_hash":       r.TestsHash.Hex(),
		"sembit_hash":      r.Sembit.HashHex(),
		"chain_hash":       r.Chain.HashHex(),
	}
	if s != nil {
		m["domain_ne_digest"] = s.NEDigest.Hex()
		m["domain_ze_digest"] = s.ZEDigest.Hex()
	}
	return m
}

// WriteSummary writes summary as indented JSON with sorted keys, one sink
// line per JSON line.
func WriteSummary(sink trace.Sink, summary map[string]string) error {
	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("spine: encode summary: %w", err)
	}
	sink.Section("SUMMARY")
	for _, line := range strings.Split(string(b), "\n") {
		sink.Line(line)
	}
	return nil
}

// Sample normalizes text strictly through p and reports whether the result
// is terminal.
func Sample(p *asc7.Profile, text string) (string, bool, error) {
	norm, err := asc7.Normalize(p, text, true)
	if err != nil {
		return "", false, err
	}
	return norm, asc7.VerifyTerminal(p, norm), nil
}
