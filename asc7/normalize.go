package asc7

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNormalization matches every *NormalizationError via errors.Is.
var ErrNormalization = errors.New("asc7: normalization failed")

// NormalizationError reports a symbol outside the universe under strict
// normalization.
type NormalizationError struct {
	Char    rune
	Offset  int
	Profile string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("asc7: non-ASC7 char %q (U+%04X) at byte %d in strict mode (profile %s)", e.Char, e.Char, e.Offset, e.Profile)
}

func (e *NormalizationError) Is(target error) bool { return target == ErrNormalization }

// Normalize maps every character of s through the profile. Characters
// outside the universe fail under strict and pass through otherwise.
//
// Normalize is idempotent: every representative maps to itself.
func Normalize(p *Profile, s string, strict bool) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for off, r := range s {
		rep, ok := p.Rep(r)
		if !ok {
			if strict {
				return "", &NormalizationError{Char: r, Offset: off, Profile: p.Params.Name}
			}
			b.WriteRune(r)
			continue
		}
		b.WriteRune(rep)
	}
	return b.String(), nil
}

// MustNormalize is Normalize in strict mode, panicking on error. It is meant
// for fixed identifiers known at compile time.
func MustNormalize(p *Profile, s string) string {
	out, err := Normalize(p, s, true)
	if err != nil {
		panic(err)
	}
	return out
}

// VerifyTerminal reports whether every character of s is in the witness
// alphabet.
func VerifyTerminal(p *Profile, s string) bool {
	for _, r := range s {
		if !p.InWitness(r) {
			return false
		}
	}
	return true
}
