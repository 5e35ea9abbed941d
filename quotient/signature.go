package quotient

import (
	"fmt"
	"strings"
)

// Variant tags a Signature. The numeric order is the cross-variant order of
// Compare and is part of the hashing contract: do not reorder.
type Variant uint8

const (
	VariantBits Variant = iota
	VariantText
	VariantPairInt
	VariantTuple
)

func (v Variant) String() string {
	switch v {
	case VariantBits:
		return "Bits"
	case VariantText:
		return "Text"
	case VariantPairInt:
		return "PairInt"
	case VariantTuple:
		return "Tuple"
	default:
		return "Unknown"
	}
}

// Signature is a totally ordered summary of an element's predicate outcomes.
// Build it with Bits, Text, PairInt or Tuple.
type Signature struct {
	variant Variant
	bits    []bool
	text    string
	a, b    int64
	tuple   []Signature
}

func Bits(bs ...bool) Signature {
	return Signature{variant: VariantBits, bits: append([]bool(nil), bs...)}
}

func Text(s string) Signature { return Signature{variant: VariantText, text: s} }

func PairInt(a, b int64) Signature { return Signature{variant: VariantPairInt, a: a, b: b} }

func Tuple(sigs ...Signature) Signature {
	return Signature{variant: VariantTuple, tuple: append([]Signature(nil), sigs...)}
}

func (s Signature) Variant() Variant { return s.variant }

// BitsValue returns a copy of the bits of a Bits signature.
func (s Signature) BitsValue() []bool { return append([]bool(nil), s.bits...) }

func (s Signature) TextValue() string { return s.text }

func (s Signature) PairValue() (int64, int64) { return s.a, s.b }

// TupleValue returns a copy of the children of a Tuple signature.
func (s Signature) TupleValue() []Signature { return append([]Signature(nil), s.tuple...) }

// Compare orders signatures: variant first (Bits < Text < PairInt < Tuple);
// Bits element-wise with false < true, then shorter first; Text by bytes;
// PairInt by a then b; Tuple element-wise recursively, then shorter first.
func Compare(x, y Signature) int {
	if x.variant != y.variant {
		return cmpInt(int64(x.variant), int64(y.variant))
	}
	switch x.variant {
	case VariantBits:
		n := min(len(x.bits), len(y.bits))
		for i := 0; i < n; i++ {
			if x.bits[i] != y.bits[i] {
				if !x.bits[i] {
					return -1
				}
				return 1
			}
		}
		return cmpInt(int64(len(x.bits)), int64(len(y.bits)))
	case VariantText:
		return strings.Compare(x.text, y.text)
	case VariantPairInt:
		if c := cmpInt(x.a, y.a); c != 0 {
			return c
		}
		return cmpInt(x.b, y.b)
	case VariantTuple:
		n := min(len(x.tuple), len(y.tuple))
		for i := 0; i < n; i++ {
			if c := Compare(x.tuple[i], y.tuple[i]); c != 0 {
				return c
			}
		}
		return cmpInt(int64(len(x.tuple)), int64(len(y.tuple)))
	}
	return 0
}

// Equal reports Compare(x, y) == 0.
func Equal(x, y Signature) bool { return Compare(x, y) == 0 }

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders s for traces, e.g. Bits[1,0,1] or Tuple(Text("x"),PairInt(1,2)).
func (s Signature) String() string {
	var b strings.Builder
	s.write(&b)
	return b.String()
}

func (s Signature) write(b *strings.Builder) {
	switch s.variant {
	case VariantBits:
		b.WriteString("Bits[")
		for i, bit := range s.bits {
			if i > 0 {
				b.WriteByte(',')
			}
			if bit {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		b.WriteByte(']')
	case VariantText:
		fmt.Fprintf(b, "Text(%q)", s.text)
	case VariantPairInt:
		fmt.Fprintf(b, "PairInt(%d,%d)", s.a, s.b)
	case VariantTuple:
		b.WriteString("Tuple(")
		for i, c := range s.tuple {
			if i > 0 {
				b.WriteByte(',')
			}
			c.write(b)
		}
		b.WriteByte(')')
	}
}
