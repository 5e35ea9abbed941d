// Package sembit evaluates named boolean tests over a domain, partitions the
// domain by the resulting bit signatures and certifies the partition.
package sembit

import (
	"fmt"

	"xdao.co/collapse/asc7"
	"xdao.co/collapse/canon"
	"xdao.co/collapse/digest"
	"xdao.co/collapse/quotient"
)

// Test is a named predicate. ID is the profile-normalized label.
type Test[E any] struct {
	ID        string
	Predicate func(E) bool
}

// NewTest normalizes rawID strictly through p.
func NewTest[E any](p *asc7.Profile, rawID string, pred func(E) bool) (Test[E], error) {
	if pred == nil {
		return Test[E]{}, fmt.Errorf("sembit: test %q has no predicate", rawID)
	}
	id, err := asc7.Normalize(p, rawID, true)
	if err != nil {
		return Test[E]{}, fmt.Errorf("sembit: test id %q: %w", rawID, err)
	}
	return Test[E]{ID: id, Predicate: pred}, nil
}

// Family is an ordered list of tests. Order is significant: it fixes bit
// positions in every signature and the tests hash.
type Family[E any] struct {
	tests []Test[E]
}

func NewFamily[E any](tests ...Test[E]) *Family[E] {
	return &Family[E]{tests: append([]Test[E](nil), tests...)}
}

// Signature evaluates every test on e in family order.
func (f *Family[E]) Signature(e E) []bool {
	out := make([]bool, len(f.tests))
	for i, t := range f.tests {
		out[i] = t.Predicate(e)
	}
	return out
}

func (f *Family[E]) IDs() []string {
	ids := make([]string, len(f.tests))
	for i, t := range f.tests {
		ids[i] = t.ID
	}
	return ids
}

func (f *Family[E]) Len() int { return len(f.tests) }

// TestsHash hashes the canonical array of test IDs followed by implTag.
// Predicate bodies are not hashed; implTag is the only identity signal for
// them.
func TestsHash[E any](f *Family[E], implTag string) digest.Digest {
	elems := make([]canon.Value, 0, f.Len()+1)
	for _, id := range f.IDs() {
		elems = append(elems, canon.String(id))
	}
	elems = append(elems, canon.String(implTag))
	return digest.SumValue(canon.Array(elems...))
}

// Quotient partitions domain by Bits(f.Signature(e)).
func Quotient[E any](domain []E, f *Family[E]) *quotient.Quotient[E] {
	return quotient.FromSignatures(domain, func(e E) quotient.Signature {
		return quotient.Bits(f.Signature(e)...)
	})
}

// SignatureValue is the canonical form of a signature.
func SignatureValue(s quotient.Signature) canon.Value {
	switch s.Variant() {
	case quotient.VariantBits:
		bs := s.BitsValue()
		elems := make([]canon.Value, len(bs))
		for i, b := range bs {
			elems[i] = canon.Bool(b)
		}
		return canon.Array(elems...)
	case quotient.VariantText:
		return canon.String(s.TextValue())
	case quotient.VariantPairInt:
		a, b := s.PairValue()
		return canon.NewObject().I64("a", a).I64("b", b).Build()
	case quotient.VariantTuple:
		children := s.TupleValue()
		elems := make([]canon.Value, len(children))
		for i, c := range children {
			elems[i] = SignatureValue(c)
		}
		return canon.Array(elems...)
	}
	return canon.Null()
}

// QuotientDigest hashes [{"count":n,"sig":S},...] in class order.
func QuotientDigest[E any](q *quotient.Quotient[E]) digest.Digest {
	elems := make([]canon.Value, 0, q.Len())
	q.Ascend(func(sig quotient.Signature, members []E) bool {
		elems = append(elems, canon.NewObject().
			U64("count", uint64(len(members))).
			Set("sig", SignatureValue(sig)).
			Build())
		return true
	})
	return digest.SumValue(canon.Array(elems...))
}
