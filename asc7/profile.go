// Package asc7 compiles character-equivalence profiles over printable ASCII
// and normalizes strings through them.
//
// A profile partitions the 95-symbol universe into classes (via union-find
// over glyph groups and case pairs), picks one representative per class, and
// fingerprints the partition with a graph hash. Normalization maps every
// symbol to its representative; the set of representatives is the witness
// alphabet, the terminal alphabet of normalized output.
package asc7

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"xdao.co/collapse/digest"
)

const (
	universeLo = 0x20
	universeHi = 0x7E

	// UniverseSize is the number of printable ASCII symbols.
	UniverseSize = universeHi - universeLo + 1
)

// Universe returns the printable ASCII symbols 0x20..0x7E in code-point order.
func Universe() []rune {
	u := make([]rune, 0, UniverseSize)
	for r := rune(universeLo); r <= universeHi; r++ {
		u = append(u, r)
	}
	return u
}

func universeIndex(r rune) (int, bool) {
	if r < universeLo || r > universeHi {
		return 0, false
	}
	return int(r - universeLo), true
}

// ProfileParams are the inputs of Compile.
type ProfileParams struct {
	Name         string
	SyntaxStrict bool
	GlyphClasses [][]rune
	CasePairs    [][2]rune
}

// Profile is a compiled, immutable equivalence profile.
type Profile struct {
	Params          ProfileParams
	Universe        []rune
	WitnessAlphabet []rune
	GraphHash       digest.Digest

	repMap  [UniverseSize]rune
	classes [][]rune
}

// Compile builds a profile from params. It has no failure mode: symbols
// outside the universe are skipped.
func Compile(params ProfileParams) *Profile {
	universe := Universe()
	sets := newDSU(len(universe))

	tryUnion := func(a, b rune) {
		ia, okA := universeIndex(a)
		ib, okB := universeIndex(b)
		if !okA || !okB {
			return
		}
		if params.SyntaxStrict && !mayUnion(a, b) {
			return
		}
		sets.union(ia, ib)
	}

	for _, group := range params.GlyphClasses {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				tryUnion(group[i], group[j])
			}
		}
	}
	for _, p := range params.CasePairs {
		tryUnion(p[0], p[1])
	}

	// Group by root. Members are appended in universe order, which is the
	// first-seen order pickRep scans.
	var classes [][]rune
	slot := make(map[int]int, len(universe))
	for i, r := range universe {
		root := sets.find(i)
		k, ok := slot[root]
		if !ok {
			k = len(classes)
			slot[root] = k
			classes = append(classes, nil)
		}
		classes[k] = append(classes[k], r)
	}

	p := &Profile{
		Params:   cloneParams(params),
		Universe: universe,
	}
	for _, class := range classes {
		rep := pickRep(class)
		p.WitnessAlphabet = append(p.WitnessAlphabet, rep)
		for _, r := range class {
			i, _ := universeIndex(r)
			p.repMap[i] = rep
		}
	}
	sortRunes(p.WitnessAlphabet)

	sort.SliceStable(classes, func(i, j int) bool { return pickRep(classes[i]) < pickRep(classes[j]) })
	for _, class := range classes {
		sorted := append([]rune(nil), class...)
		sortRunes(sorted)
		p.classes = append(p.classes, sorted)
	}
	p.GraphHash = graphHash(universe, p.classes, p.WitnessAlphabet)
	return p
}

// pickRep returns the first lowercase letter, else the first digit, else the
// smallest symbol.
func pickRep(class []rune) rune {
	for _, r := range class {
		if r >= 'a' && r <= 'z' {
			return r
		}
	}
	for _, r := range class {
		if r >= '0' && r <= '9' {
			return r
		}
	}
	least := class[0]
	for _, r := range class[1:] {
		if r < least {
			least = r
		}
	}
	return least
}

// graphHash: universe bytes; per class (ordered by representative) a 0x00
// separator and its sorted members; then 0x01 and the witness alphabet.
func graphHash(universe []rune, classes [][]rune, witness []rune) digest.Digest {
	h := sha256.New()
	buf := make([]byte, 0, UniverseSize)
	for _, r := range universe {
		buf = append(buf, byte(r))
	}
	_, _ = h.Write(buf)
	for _, class := range classes {
		buf = append(buf[:0], 0)
		for _, r := range class {
			buf = append(buf, byte(r))
		}
		_, _ = h.Write(buf)
	}
	buf = append(buf[:0], 1)
	for _, r := range witness {
		buf = append(buf, byte(r))
	}
	_, _ = h.Write(buf)

	var d digest.Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Rep returns the representative of r, or false if r is outside the universe.
func (p *Profile) Rep(r rune) (rune, bool) {
	i, ok := universeIndex(r)
	if !ok {
		return r, false
	}
	return p.repMap[i], true
}

// Classes returns the partition ordered by representative, members sorted.
func (p *Profile) Classes() [][]rune {
	out := make([][]rune, len(p.classes))
	for i, c := range p.classes {
		out[i] = append([]rune(nil), c...)
	}
	return out
}

// InWitness reports whether r is a representative.
func (p *Profile) InWitness(r rune) bool {
	i := sort.Search(len(p.WitnessAlphabet), func(i int) bool { return p.WitnessAlphabet[i] >= r })
	return i < len(p.WitnessAlphabet) && p.WitnessAlphabet[i] == r
}

func sortRunes(rs []rune) {
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
}

func cloneParams(in ProfileParams) ProfileParams {
	out := ProfileParams{Name: in.Name, SyntaxStrict: in.SyntaxStrict}
	for _, g := range in.GlyphClasses {
		out.GlyphClasses = append(out.GlyphClasses, append([]rune(nil), g...))
	}
	out.CasePairs = append([][2]rune(nil), in.CasePairs...)
	return out
}

func baseGlyphClasses() [][]rune {
	return [][]rune{
		{'0', 'O', 'o'},
		{'1', 'l', 'I', '|'},
		{'\'', '`'},
	}
}

// Profile names accepted by ByName.
const (
	NameCodeSafe = "code_safe"
	NameAuthSafe = "auth_safe"
)

// CodeSafe merges visually confusable digits, letters and quotes without case
// folding.
func CodeSafe() *Profile {
	return Compile(ProfileParams{
		Name:         NameCodeSafe,
		SyntaxStrict: true,
		GlyphClasses: baseGlyphClasses(),
	})
}

// AuthSafe is CodeSafe plus full a-z/A-Z case folding.
func AuthSafe() *Profile {
	pairs := make([][2]rune, 0, 26)
	for i := rune(0); i < 26; i++ {
		pairs = append(pairs, [2]rune{'a' + i, 'A' + i})
	}
	return Compile(ProfileParams{
		Name:         NameAuthSafe,
		SyntaxStrict: true,
		GlyphClasses: baseGlyphClasses(),
		CasePairs:    pairs,
	})
}

// ByName returns a canned profile. "code-safe" and "auth-safe" spellings are
// accepted too.
func ByName(name string) (*Profile, error) {
	switch name {
	case NameCodeSafe, "code-safe":
		return CodeSafe(), nil
	case NameAuthSafe, "auth-safe":
		return AuthSafe(), nil
	default:
		return nil, fmt.Errorf("asc7: unknown profile %q", name)
	}
}
