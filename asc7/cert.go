package asc7

import (
	"sort"

	"xdao.co/collapse/canon"
	"xdao.co/collapse/cert"
)

// Kernel names and version used by this package's certificates.
const (
	KernelName            = "asc7"
	ConfusablesKernelName = "asc7_confusables"
	KernelVersion         = "1.0.0"
)

// KernelCertificate certifies a compiled profile by its graph hash.
func KernelCertificate(p *Profile) *cert.Certificate {
	payload := canon.NewObject().
		Str("profile_name", p.Params.Name).
		Flag("syntax_strict", p.Params.SyntaxStrict).
		U64("witness_len", uint64(len(p.WitnessAlphabet))).
		Str("graph_hash_hex", p.GraphHash.Hex()).
		Build()
	return cert.New(KernelName, KernelVersion, payload)
}

// ConfusablePair maps an ASCII symbol to a non-ASCII lookalike.
type ConfusablePair struct {
	Src string
	Dst string
}

// ConfusablesTable returns the minimal Latin to Greek/Cyrillic lookalike
// table, sorted by Src.
func ConfusablesTable() []ConfusablePair {
	t := []ConfusablePair{
		{"A", "Α"}, {"B", "Β"}, {"E", "Ε"}, {"I", "Ι"},
		{"K", "Κ"}, {"M", "Μ"}, {"N", "Ν"}, {"O", "Ο"},
		{"P", "Ρ"}, {"T", "Τ"}, {"X", "Χ"}, {"Y", "Υ"},
		{"a", "а"}, {"e", "е"}, {"o", "о"}, {"p", "р"},
		{"c", "с"}, {"x", "х"}, {"y", "у"},
	}
	sort.Slice(t, func(i, j int) bool { return t[i].Src < t[j].Src })
	return t
}

// ConfusablesCertificate certifies ConfusablesTable.
func ConfusablesCertificate() *cert.Certificate {
	table := ConfusablesTable()
	pairs := make([]canon.Value, 0, len(table))
	for _, p := range table {
		pairs = append(pairs, canon.NewObject().Str("src", p.Src).Str("dst", p.Dst).Build())
	}
	payload := canon.NewObject().
		U64("table_size", uint64(len(table))).
		Set("pairs", canon.Array(pairs...)).
		Build()
	return cert.New(ConfusablesKernelName, KernelVersion, payload)
}

// Unconfuse replaces every known lookalike in s with its ASCII source. It
// runs before Normalize when input may carry homoglyphs.
func Unconfuse(s string) string {
	table := ConfusablesTable()
	back := make(map[rune]rune, len(table))
	for _, p := range table {
		back[[]rune(p.Dst)[0]] = []rune(p.Src)[0]
	}
	out := []rune(s)
	for i, r := range out {
		if src, ok := back[r]; ok {
			out[i] = src
		}
	}
	return string(out)
}
