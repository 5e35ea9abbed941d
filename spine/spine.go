// Package spine runs the full certification pipeline: profile, confusables,
// QE domain, test family, quotient, sembit certificate and chain.
package spine

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"xdao.co/collapse/asc7"
	"xdao.co/collapse/cert"
	"xdao.co/collapse/digest"
	"xdao.co/collapse/numbers"
	"xdao.co/collapse/quotient"
	"xdao.co/collapse/sembit"
	"xdao.co/collapse/trace"
)

// Defaults for the frozen spine run.
const (
	DefaultNMax    = 20
	DefaultDMax    = 20
	DefaultImplTag = "impl:static_v1"

	// BucketsImplTag identifies BucketTests.
	BucketsImplTag = "impl:static_v3_bucket_bits_proper"
)

// TestSpec is an unnormalized test definition over QE.
type TestSpec struct {
	ID        string
	Predicate func(numbers.QE) bool
}

// SpineTests is the three-test family the regression snapshot is frozen on.
func SpineTests() []TestSpec {
	return []TestSpec{
		{ID: "sign", Predicate: func(q numbers.QE) bool { return q.Num() > 0 }},
		{ID: "is_int", Predicate: func(q numbers.QE) bool { return q.Den() == 1 }},
		{ID: "den>3", Predicate: func(q numbers.QE) bool { return q.Den() > 3 }},
	}
}

// BucketTests is a six-test family of coarse buckets whose last test splits
// proper from improper fractions.
func BucketTests() []TestSpec {
	return []TestSpec{
		{ID: "positive", Predicate: func(q numbers.QE) bool { return q.Num() > 0 }},
		{ID: "integer", Predicate: func(q numbers.QE) bool { return q.Den() == 1 }},
		{ID: "den<=6", Predicate: func(q numbers.QE) bool { return q.Den() <= 6 }},
		{ID: "num_even", Predicate: func(q numbers.QE) bool { return q.Num()%2 == 0 }},
		{ID: "den_mod3", Predicate: func(q numbers.QE) bool { return q.Den()%3 == 0 }},
		{ID: "proper", Predicate: func(q numbers.QE) bool {
			n := q.Num()
			if n < 0 {
				n = -n
			}
			return n < q.Den()
		}},
	}
}

// Config selects the inputs of a run.
type Config struct {
	Profile string
	NMax    int64
	DMax    int64
	Tests   []TestSpec
	ImplTag string
}

// DefaultConfig is the configuration the regression snapshot is frozen on.
func DefaultConfig() Config {
	return Config{
		Profile: asc7.NameCodeSafe,
		NMax:    DefaultNMax,
		DMax:    DefaultDMax,
		Tests:   SpineTests(),
		ImplTag: DefaultImplTag,
	}
}

// BucketsConfig is the exploratory six-test run over a wider domain.
func BucketsConfig() Config {
	return Config{
		Profile: asc7.NameCodeSafe,
		NMax:    50,
		DMax:    50,
		Tests:   BucketTests(),
		ImplTag: BucketsImplTag,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Profile == "" {
		errs = append(errs, errors.New("profile is required"))
	}
	if c.NMax < 0 {
		errs = append(errs, fmt.Errorf("nmax must be >= 0 (got %d)", c.NMax))
	}
	if c.DMax < 1 {
		errs = append(errs, fmt.Errorf("dmax must be >= 1 (got %d)", c.DMax))
	}
	if len(c.Tests) == 0 {
		errs = append(errs, errors.New("at least one test is required"))
	}
	if c.ImplTag == "" {
		errs = append(errs, errors.New("impl tag is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("spine: invalid config: %w", errors.Join(errs...))
}

// Result holds every intermediate artifact of a run.
type Result struct {
	Profile        *asc7.Profile
	Asc7           *cert.Certificate
	Confusables    *cert.Certificate
	Domain         []numbers.QE
	DomainDigest   digest.Digest
	Family         *sembit.Family[numbers.QE]
	TestsHash      digest.Digest
	Quotient       *quotient.Quotient[numbers.QE]
	EntropyBits    float64
	QuotientDigest digest.Digest
	Sembit         *cert.Certificate
	Chain          *cert.Chain
}

// Certificates returns the certificates in chain order.
func (r *Result) Certificates() []*cert.Certificate {
	return []*cert.Certificate{r.Asc7, r.Confusables, r.Sembit}
}

// Digests is the snapshot of this run.
func (r *Result) Digests() Snapshot {
	return Snapshot{
		KeyAsc7Hash:        r.Asc7.HashHex(),
		KeyConfusablesHash: r.Confusables.HashHex(),
		KeyDomainDigest:    r.DomainDigest.Hex(),
		KeyTestsHash:       r.TestsHash.Hex(),
		KeySembitHash:      r.Sembit.HashHex(),
		KeyChainHash:       r.Chain.HashHex(),
	}
}

// Compute runs the pipeline. sink may be nil.
func Compute(cfg Config, sink trace.Sink) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = trace.Nop{}
	}

	p, err := asc7.ByName(cfg.Profile)
	if err != nil {
		return nil, err
	}
	r := &Result{Profile: p}

	sink.Section("ASC7 KERNEL CERT")
	sink.KV("profile", p.Params.Name)
	r.Asc7 = asc7.KernelCertificate(p)
	traceCertificate(sink, r.Asc7)

	sink.Section("CONFUSABLES KERNEL CERT")
	r.Confusables = asc7.ConfusablesCertificate()
	traceCertificate(sink, r.Confusables)

	sink.Section("NORMALIZE EXAMPLES")
	for _, spec := range cfg.Tests {
		traceNormalize(sink, p, spec.ID)
	}
	for _, raw := range []string{"A", "a", "O", "o"} {
		traceNormalize(sink, p, raw)
	}

	sink.Section("QE DOMAIN")
	r.Domain = numbers.DomainQEBounded(cfg.NMax, cfg.DMax)
	r.DomainDigest = numbers.DigestQE(r.Domain)
	view := numbers.ViewQE(r.Domain)
	sink.KV("domain_qe_bounded", fmt.Sprintf("nmax=%d dmax=%d size=%d", cfg.NMax, cfg.DMax, view.Size))
	sink.KV("first", view.First)
	sink.KV("last", view.Last)
	sink.KV("domain_digest", r.DomainDigest.Hex())

	sink.Section("TEST FAMILY")
	tests := make([]sembit.Test[numbers.QE], 0, len(cfg.Tests))
	for i, spec := range cfg.Tests {
		t, err := sembit.NewTest(p, spec.ID, spec.Predicate)
		if err != nil {
			return nil, err
		}
		sink.KV("test_id_"+strconv.Itoa(i+1), t.ID)
		tests = append(tests, t)
	}
	r.Family = sembit.NewFamily(tests...)
	r.TestsHash = sembit.TestsHash(r.Family, cfg.ImplTag)
	sink.KV("impl_tag", cfg.ImplTag)
	sink.KV("tests_hash", r.TestsHash.Hex())

	sink.Section("QUOTIENT")
	r.Quotient = sembit.Quotient(r.Domain, r.Family)
	r.EntropyBits, err = quotient.SemEntropyBits(r.Quotient.Len())
	if err != nil {
		return nil, err
	}
	r.QuotientDigest = sembit.QuotientDigest(r.Quotient)
	sink.KV("classes", strconv.Itoa(r.Quotient.Len()))
	sink.KV("sem_entropy_bits", strconv.FormatFloat(r.EntropyBits, 'g', -1, 64))
	sink.KV("quotient_digest", r.QuotientDigest.Hex())
	if c, err := quotient.Measure(len(r.Domain), r.Quotient.Len()); err == nil {
		sink.KV("raw_entropy_bits", fmt.Sprintf("%.6f", c.RawBits))
		sink.KV("saved_entropy_bits", fmt.Sprintf("%.6f", c.SavedBits))
		sink.KV("compression_percent", fmt.Sprintf("%.2f%%", c.PercentSave))
	}
	traceExtremes(sink, r.Quotient, len(r.Domain))

	sink.Section("SEMBIT KERNEL CERT")
	r.Sembit = sembit.KernelCertificate(sembit.CertificateInputs{
		Asc7Hash:        r.Asc7.Hash(),
		ConfusablesHash: r.Confusables.Hash(),
		TestsHash:       r.TestsHash,
		DomainDigest:    r.DomainDigest,
		Classes:         r.Quotient.Len(),
		EntropyBits:     r.EntropyBits,
		QuotientDigest:  r.QuotientDigest,
	})
	traceCertificate(sink, r.Sembit)

	sink.Section("CERT CHAIN")
	r.Chain = cert.BuildChain([]cert.Item{
		cert.ItemOf(r.Asc7),
		cert.ItemOf(r.Confusables),
		cert.ItemOf(r.Sembit),
	})
	sink.KV("chain_hash", r.Chain.HashHex())
	return r, nil
}

func traceCertificate(sink trace.Sink, c *cert.Certificate) {
	sink.KV("kernel", c.Name()+"@"+c.Version())
	sink.BytesPreview("canonical_bytes", c.PayloadBytes())
	sink.KV("kernel_hash", c.HashHex())
}

// traceNormalize logs the strict normal form of raw. Failures are left to
// NewTest, which reports them with the test context.
func traceNormalize(sink trace.Sink, p *asc7.Profile, raw string) {
	if norm, err := asc7.Normalize(p, raw, true); err == nil {
		sink.KV("normalize("+raw+")", norm)
	}
}

func traceExtremes(sink trace.Sink, q *quotient.Quotient[numbers.QE], domainSize int) {
	big, ok := q.Largest()
	if !ok {
		return
	}
	sink.KV("largest_class_sig", big.Signature.String())
	sink.KV("largest_class_members", strconv.Itoa(len(big.Members)))
	sink.KV("largest_class_percent", fmt.Sprintf("%.2f%%", float64(len(big.Members))/float64(domainSize)*100))
	for i, m := range big.Members {
		if i == 8 {
			break
		}
		sink.KV("example_"+strconv.Itoa(i+1), m.String())
	}
	sum, lo, hi := 0.0, math.Inf(1), math.Inf(-1)
	for _, m := range big.Members {
		v := float64(m.Num()) / float64(m.Den())
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	sink.KV("largest_class_avg_value", fmt.Sprintf("%.6f", sum/float64(len(big.Members))))
	sink.KV("largest_class_min_value", fmt.Sprintf("%.6f", lo))
	sink.KV("largest_class_max_value", fmt.Sprintf("%.6f", hi))
	small, _ := q.Smallest()
	sink.KV("smallest_class_sig", small.Signature.String())
	sink.KV("smallest_class_members", strconv.Itoa(len(small.Members)))
	sink.KV("smallest_class_example", small.Members[0].String())
}
