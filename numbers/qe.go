// Package numbers generates the finite numeric domains the pipeline
// partitions: exact rationals (QE), naturals (NE) and integers (ZE).
package numbers

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"xdao.co/collapse/canon"
	"xdao.co/collapse/digest"
)

// ConstructionError reports an invalid rational. Callers treat it as fatal.
type ConstructionError struct {
	Num, Den int64
	Reason   string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("numbers: cannot construct %d/%d: %s", e.Num, e.Den, e.Reason)
}

// QE is an exact rational, always reduced with a positive denominator.
type QE struct {
	num int64
	den int64
}

// NewQE builds num/den in lowest terms. A zero denominator is an error, as is
// an operand of math.MinInt64 that would need to be negated.
func NewQE(num, den int64) (QE, error) {
	if den == 0 {
		return QE{}, &ConstructionError{Num: num, Den: den, Reason: "zero denominator"}
	}
	if den < 0 {
		if num == math.MinInt64 || den == math.MinInt64 {
			return QE{}, &ConstructionError{Num: num, Den: den, Reason: "sign normalization overflows int64"}
		}
		num, den = -num, -den
	}
	if num == math.MinInt64 {
		return QE{}, &ConstructionError{Num: num, Den: den, Reason: "numerator magnitude overflows int64"}
	}
	g := gcd(abs64(num), uint64(den))
	return QE{num: num / int64(g), den: den / int64(g)}, nil
}

// MustQE is NewQE that panics on error.
func MustQE(num, den int64) QE {
	q, err := NewQE(num, den)
	if err != nil {
		panic(err)
	}
	return q
}

func (q QE) Num() int64 { return q.num }

// Den is always positive for a constructed QE. The zero value reports 1.
func (q QE) Den() int64 {
	if q.den == 0 {
		return 1
	}
	return q.den
}

func (q QE) String() string { return fmt.Sprintf("%d/%d", q.num, q.Den()) }

// CompareQE orders by exact value, then den, then num. Cross products are
// computed in 128 bits so no input overflows.
func CompareQE(a, b QE) int {
	if c := cmpProducts(a.num, b.Den(), b.num, a.Den()); c != 0 {
		return c
	}
	if a.Den() != b.Den() {
		if a.Den() < b.Den() {
			return -1
		}
		return 1
	}
	switch {
	case a.num < b.num:
		return -1
	case a.num > b.num:
		return 1
	}
	return 0
}

// cmpProducts compares x1*y1 with x2*y2 for positive y1, y2.
func cmpProducts(x1, y1, x2, y2 int64) int {
	s1, s2 := sign(x1), sign(x2)
	if s1 != s2 {
		if s1 < s2 {
			return -1
		}
		return 1
	}
	if s1 == 0 {
		return 0
	}
	hi1, lo1 := bits.Mul64(abs64(x1), uint64(y1))
	hi2, lo2 := bits.Mul64(abs64(x2), uint64(y2))
	c := 0
	switch {
	case hi1 != hi2:
		c = cmpU(hi1, hi2)
	default:
		c = cmpU(lo1, lo2)
	}
	return c * s1
}

func cmpU(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sign(x int64) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}

func abs64(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// DomainQEBounded enumerates num/den for den in [1,dmax] and num in
// [-nmax,nmax], reduced, sorted by CompareQE and deduplicated.
func DomainQEBounded(nmax, dmax int64) []QE {
	var out []QE
	for den := int64(1); den <= dmax; den++ {
		for num := -nmax; num <= nmax; num++ {
			out = append(out, MustQE(num, den))
		}
	}
	sort.Slice(out, func(i, j int) bool { return CompareQE(out[i], out[j]) < 0 })
	dedup := out[:0]
	for i, q := range out {
		if i > 0 && q == dedup[len(dedup)-1] {
			continue
		}
		dedup = append(dedup, q)
	}
	return dedup
}

// DigestQE is the SHA-256 of the canonical [{"den":d,"num":n},...] array in
// the domain's order.
func DigestQE(domain []QE) digest.Digest {
	elems := make([]canon.Value, 0, len(domain))
	for _, q := range domain {
		elems = append(elems, canon.NewObject().I64("num", q.num).I64("den", q.Den()).Build())
	}
	return digest.SumValue(canon.Array(elems...))
}

// ViewQE summarizes a QE domain for humans.
func ViewQE(domain []QE) View {
	v := View{Kind: "Q_E", Size: len(domain)}
	if len(domain) > 0 {
		v.First = domain[0].String()
		v.Last = domain[len(domain)-1].String()
	}
	return v
}
