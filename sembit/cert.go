package sembit

import (
	"math"

	"xdao.co/collapse/canon"
	"xdao.co/collapse/cert"
	"xdao.co/collapse/digest"
)

const (
	KernelName    = "sembit"
	KernelVersion = "1.0.0"
)

// CertificateInputs are the upstream hashes and partition measurements a
// sembit certificate binds together.
type CertificateInputs struct {
	Asc7Hash        digest.Digest
	ConfusablesHash digest.Digest
	TestsHash       digest.Digest
	DomainDigest    digest.Digest
	Classes         int
	EntropyBits     float64
	QuotientDigest  digest.Digest
}

// MicroBits scales bits to integer micro-bits, rounding half away from zero.
func MicroBits(bits float64) int64 {
	return int64(math.Round(bits * 1e6))
}

// KernelCertificate builds the sembit certificate. Entropy enters the payload
// only as integer micro-bits.
func KernelCertificate(in CertificateInputs) *cert.Certificate {
	payload := canon.NewObject().
		Str("asc7_graph_hash", in.Asc7Hash.Hex()).
		Str("confusables_graph_hash", in.ConfusablesHash.Hex()).
		Str("tests_hash", in.TestsHash.Hex()).
		Str("domain_digest", in.DomainDigest.Hex()).
		U64("classes", uint64(in.Classes)).
		I64("h_sem_microbits", MicroBits(in.EntropyBits)).
		Str("quotient_digest", in.QuotientDigest.Hex()).
		Build()
	return cert.New(KernelName, KernelVersion, payload)
}
