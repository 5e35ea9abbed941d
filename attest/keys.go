package attest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

const kdfTag = "xdao-collapse-attest-v1"

// IssuerKeyFromSeed returns "ed25519:" + base64(pubkey) for an Ed25519 seed.
func IssuerKeyFromSeed(seed []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", newError(KindKey, "ATTEST-KEY-001", fmt.Sprintf("seed must be %d bytes", ed25519.SeedSize))
	}
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	return AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(pub), nil
}

// CheckRole accepts [A-Za-z0-9_-]+.
func CheckRole(role string) error {
	if role == "" {
		return newError(KindKey, "ATTEST-KEY-010", "role cannot be empty")
	}
	for _, r := range role {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return newError(KindKey, "ATTEST-KEY-011", fmt.Sprintf("invalid character %q in role", r))
	}
	return nil
}

// DeriveRoleSeed deterministically derives a role-specific Ed25519 seed from
// a root seed: sha256(root || 0 || tag || 0 || "role:" || role)[:32].
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, newError(KindKey, "ATTEST-KEY-001", fmt.Sprintf("root seed must be %d bytes", ed25519.SeedSize))
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(kdfTag))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	sum := h.Sum(nil)
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}

// ParseSeedHex decodes a 32-byte hex seed, tolerating surrounding space and
// a 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, wrapError(KindDecode, "ATTEST-KEY-002", "invalid seed hex", err)
	}
	if len(data) != ed25519.SeedSize {
		return nil, newError(KindKey, "ATTEST-KEY-001", fmt.Sprintf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data)))
	}
	return data, nil
}

// Dilithium3FromSeed expands a 32-byte seed into a Dilithium3 private key.
func Dilithium3FromSeed(seed []byte) (*mode3.PrivateKey, error) {
	if len(seed) != mode3.SeedSize {
		return nil, newError(KindKey, "ATTEST-KEY-001", fmt.Sprintf("seed must be %d bytes", mode3.SeedSize))
	}
	var s [mode3.SeedSize]byte
	copy(s[:], seed)
	_, priv := mode3.NewKeyFromSeed(&s)
	return priv, nil
}
