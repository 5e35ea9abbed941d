// Package quotient partitions a finite domain into equivalence classes keyed
// by a totally ordered Signature, and measures the partition.
package quotient

import (
	"errors"
	"math"

	"github.com/google/btree"
)

// ErrEmptyQuotient is returned by SemEntropyBits for a partition with no classes.
var ErrEmptyQuotient = errors.New("quotient: entropy of an empty partition is undefined")

const btreeDegree = 16

// Class is one equivalence class: its signature and members in encounter order.
type Class[E any] struct {
	Signature Signature
	Members   []E
}

// Quotient is an ordered mapping Signature -> members. Iteration follows
// Compare.
type Quotient[E any] struct {
	tree *btree.BTreeG[*Class[E]]
}

func lessClass[E any](a, b *Class[E]) bool {
	return Compare(a.Signature, b.Signature) < 0
}

func newQuotient[E any]() *Quotient[E] {
	return &Quotient[E]{tree: btree.NewG[*Class[E]](btreeDegree, lessClass[E])}
}

// FromSignatures evaluates sigFn once per element and groups elements by
// signature, appending each to its class in encounter order.
func FromSignatures[E any](elements []E, sigFn func(E) Signature) *Quotient[E] {
	q := newQuotient[E]()
	for _, e := range elements {
		entry := &Class[E]{Signature: sigFn(e)}
		if c, ok := q.tree.Get(entry); ok {
			c.Members = append(c.Members, e)
			continue
		}
		entry.Members = []E{e}
		q.tree.ReplaceOrInsert(entry)
	}
	return q
}

// Len is the number of classes.
func (q *Quotient[E]) Len() int { return q.tree.Len() }

// Ascend calls fn for every class in signature order until fn returns false.
// The members slice must not be modified.
func (q *Quotient[E]) Ascend(fn func(sig Signature, members []E) bool) {
	q.tree.Ascend(func(c *Class[E]) bool { return fn(c.Signature, c.Members) })
}

// Classes returns a copy of all classes in signature order.
func (q *Quotient[E]) Classes() []Class[E] {
	out := make([]Class[E], 0, q.tree.Len())
	q.tree.Ascend(func(c *Class[E]) bool {
		out = append(out, Class[E]{Signature: c.Signature, Members: append([]E(nil), c.Members...)})
		return true
	})
	return out
}

// Members returns a copy of the class with signature sig.
func (q *Quotient[E]) Members(sig Signature) ([]E, bool) {
	c, ok := q.tree.Get(&Class[E]{Signature: sig})
	if !ok {
		return nil, false
	}
	return append([]E(nil), c.Members...), true
}

// Size is the total number of elements across classes.
func (q *Quotient[E]) Size() int {
	n := 0
	q.tree.Ascend(func(c *Class[E]) bool {
		n += len(c.Members)
		return true
	})
	return n
}

// Largest returns the class with the most members; ties go to the earliest
// class in signature order.
func (q *Quotient[E]) Largest() (Class[E], bool) {
	return q.pick(func(n, best int) bool { return n > best })
}

// Smallest returns the class with the fewest members; ties go to the earliest
// class in signature order.
func (q *Quotient[E]) Smallest() (Class[E], bool) {
	return q.pick(func(n, best int) bool { return n < best })
}

func (q *Quotient[E]) pick(better func(n, best int) bool) (Class[E], bool) {
	var best *Class[E]
	q.tree.Ascend(func(c *Class[E]) bool {
		if best == nil || better(len(c.Members), len(best.Members)) {
			best = c
		}
		return true
	})
	if best == nil {
		return Class[E]{}, false
	}
	return Class[E]{Signature: best.Signature, Members: append([]E(nil), best.Members...)}, true
}

// Log2 returns log2(n) as a float.
func Log2(n uint64) float64 {
	return math.Log2(float64(n))
}

// SemEntropyBits is log2 of the class count. Zero classes is an error, never -Inf.
func SemEntropyBits(classCount int) (float64, error) {
	if classCount <= 0 {
		return 0, ErrEmptyQuotient
	}
	return Log2(uint64(classCount)), nil
}

// Compression compares the raw entropy of a domain with the entropy of its
// quotient.
type Compression struct {
	RawBits     float64
	SemBits     float64
	SavedBits   float64
	PercentSave float64
}

// Measure computes Compression for a domain of domainSize elements collapsed
// to classCount classes.
func Measure(domainSize, classCount int) (Compression, error) {
	sem, err := SemEntropyBits(classCount)
	if err != nil {
		return Compression{}, err
	}
	raw := Log2(uint64(domainSize))
	c := Compression{RawBits: raw, SemBits: sem, SavedBits: raw - sem}
	if raw > 0 {
		c.PercentSave = c.SavedBits / raw * 100
	}
	return c, nil
}
