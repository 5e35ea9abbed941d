package asc7

// Role is the syntactic role of a symbol. It gates unions in syntax-strict
// profiles.
type Role uint8

const (
	RoleLetter Role = iota
	RoleDigit
	RoleDelimiter
	RolePunctuation
	RoleSpace
	RoleOther
)

func (r Role) String() string {
	switch r {
	case RoleLetter:
		return "letter"
	case RoleDigit:
		return "digit"
	case RoleDelimiter:
		return "delimiter"
	case RolePunctuation:
		return "punctuation"
	case RoleSpace:
		return "space"
	default:
		return "other"
	}
}

// ClassifyRole returns the fixed role of r.
func ClassifyRole(r rune) Role {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return RoleLetter
	case r >= '0' && r <= '9':
		return RoleDigit
	}
	switch r {
	case '(', ')', '[', ']', '{', '}':
		return RoleDelimiter
	case ' ', '\t':
		return RoleSpace
	case '!', '"', '#', '$', '%', '&', '\'',
		'*', '+', ',', '-', '.', '/', ':',
		';', '<', '=', '>', '?', '@', '\\',
		'^', '_', '`', '|', '~':
		return RolePunctuation
	}
	return RoleOther
}

// mayUnion applies the syntax-strict gate: same role, or neither a delimiter.
func mayUnion(a, b rune) bool {
	ra, rb := ClassifyRole(a), ClassifyRole(b)
	return ra == rb || (ra != RoleDelimiter && rb != RoleDelimiter)
}
