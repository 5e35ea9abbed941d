// Package attest signs certificate chain hashes and verifies the resulting
// attestations.
//
// The signed message is hash(chain hash bytes) where hash is the attestation's
// Hash-Alg. Supported signature algorithms are ed25519 and dilithium3.
package attest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"

	"xdao.co/collapse/canon"
	"xdao.co/collapse/cert"
	"xdao.co/collapse/digest"
)

// Algorithm names.
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"

	HashSHA256  = "sha256"
	HashSHA512  = "sha512"
	HashSHA3256 = "sha3-256"
	HashBLAKE3  = "blake3"
)

// Certificate metadata for attestations.
const (
	KernelName    = "chain_attestation"
	KernelVersion = "1.0.0"
)

// Attestation is a signature by an issuer over a chain hash.
type Attestation struct {
	ChainHash    digest.Digest
	IssuerKey    string
	SignatureAlg string
	HashAlg      string
	Signature    string
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case HashSHA256:
		s := sha256.Sum256(message)
		return s[:], nil
	case HashSHA512:
		s := sha512.Sum512(message)
		return s[:], nil
	case HashSHA3256:
		s := sha3.Sum256(message)
		return s[:], nil
	case HashBLAKE3:
		s := blake3.Sum256(message)
		return s[:], nil
	default:
		return nil, newError(KindCrypto, "ATTEST-CRYPTO-201", "unsupported hash algorithm: "+hashAlg)
	}
}

// SignEd25519 attests chain with an Ed25519 key.
func SignEd25519(chain digest.Digest, hashAlg string, priv ed25519.PrivateKey) (*Attestation, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, newError(KindKey, "ATTEST-KEY-101", "invalid ed25519 private key")
	}
	msg, err := digestFor(hashAlg, chain[:])
	if err != nil {
		return nil, err
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &Attestation{
		ChainHash:    chain,
		IssuerKey:    AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(pub),
		SignatureAlg: AlgEd25519,
		HashAlg:      hashAlg,
		Signature:    base64.StdEncoding.EncodeToString(ed25519.Sign(priv, msg)),
	}, nil
}

// SignDilithium3 attests chain with a Dilithium3 key.
func SignDilithium3(chain digest.Digest, hashAlg string, priv *mode3.PrivateKey) (*Attestation, error) {
	if priv == nil {
		return nil, newError(KindKey, "ATTEST-KEY-102", "missing private key")
	}
	msg, err := digestFor(hashAlg, chain[:])
	if err != nil {
		return nil, err
	}
	pub, err := priv.Public().(*mode3.PublicKey).MarshalBinary()
	if err != nil {
		return nil, wrapError(KindKey, "ATTEST-KEY-103", "encode dilithium3 public key", err)
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(priv, msg, sig)
	return &Attestation{
		ChainHash:    chain,
		IssuerKey:    AlgDilithium3 + ":" + base64.StdEncoding.EncodeToString(pub),
		SignatureAlg: AlgDilithium3,
		HashAlg:      hashAlg,
		Signature:    base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// GenerateDilithium3Keypair returns a new Dilithium3 keypair.
func GenerateDilithium3Keypair(rand io.Reader) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	return mode3.GenerateKey(rand)
}

// Verify checks the signature over hash(ChainHash).
func (a *Attestation) Verify() error {
	if a == nil {
		return newError(KindCrypto, "ATTEST-CRYPTO-001", "nil attestation")
	}
	if a.SignatureAlg == "" {
		return newError(KindCrypto, "ATTEST-CRYPTO-101", "missing signature algorithm")
	}
	if a.HashAlg == "" {
		return newError(KindCrypto, "ATTEST-CRYPTO-102", "missing hash algorithm")
	}
	keyAlg, enc, ok := strings.Cut(a.IssuerKey, ":")
	if !ok {
		return newError(KindCrypto, "ATTEST-CRYPTO-111", "invalid issuer key encoding")
	}
	if keyAlg != a.SignatureAlg {
		return newError(KindCrypto, "ATTEST-CRYPTO-121", "issuer key alg does not match signature alg")
	}
	pub, err := decodeBase64(enc)
	if err != nil {
		return wrapError(KindDecode, "ATTEST-CRYPTO-113", "invalid issuer key base64", err)
	}
	sig, err := decodeBase64(a.Signature)
	if err != nil {
		return wrapError(KindDecode, "ATTEST-CRYPTO-131", "invalid signature base64", err)
	}
	msg, err := digestFor(a.HashAlg, a.ChainHash[:])
	if err != nil {
		return err
	}

	switch a.SignatureAlg {
	case AlgEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return newError(KindCrypto, "ATTEST-CRYPTO-114", "invalid ed25519 public key length")
		}
		if len(sig) != ed25519.SignatureSize {
			return newError(KindCrypto, "ATTEST-CRYPTO-132", "invalid ed25519 signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
			return newError(KindCrypto, "ATTEST-CRYPTO-401", "signature invalid")
		}
		return nil
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return wrapError(KindCrypto, "ATTEST-CRYPTO-115", "invalid dilithium3 public key", err)
		}
		if len(sig) != mode3.SignatureSize {
			return newError(KindCrypto, "ATTEST-CRYPTO-133", "invalid dilithium3 signature length")
		}
		if !mode3.Verify(&pk, msg, sig) {
			return newError(KindCrypto, "ATTEST-CRYPTO-401", "signature invalid")
		}
		return nil
	default:
		return newError(KindCrypto, "ATTEST-CRYPTO-301", "unsupported signature algorithm: "+a.SignatureAlg)
	}
}

func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Payload is the canonical form of a.
func (a *Attestation) Payload() canon.Value {
	return canon.NewObject().
		Str("chain_hash", a.ChainHash.Hex()).
		Str("issuer_key", a.IssuerKey).
		Str("signature_alg", a.SignatureAlg).
		Str("hash_alg", a.HashAlg).
		Str("signature", a.Signature).
		Build()
}

// Certificate wraps a as a kernel certificate so it can be chained after
// the certificates it attests.
func (a *Attestation) Certificate() *cert.Certificate {
	return cert.New(KernelName, KernelVersion, a.Payload())
}

// FromPayload rebuilds an attestation from its canonical form.
func FromPayload(v canon.Value) (*Attestation, error) {
	str := func(key string) (string, error) {
		f, ok := v.Get(key)
		if !ok {
			return "", newError(KindDecode, "ATTEST-DECODE-001", "missing field "+key)
		}
		s, ok := f.AsString()
		if !ok {
			return "", newError(KindDecode, "ATTEST-DECODE-002", "field "+key+" is not a string")
		}
		return s, nil
	}
	var a Attestation
	fields := []struct {
		key string
		dst *string
	}{
		{"issuer_key", &a.IssuerKey},
		{"signature_alg", &a.SignatureAlg},
		{"hash_alg", &a.HashAlg},
		{"signature", &a.Signature},
	}
	for _, f := range fields {
		s, err := str(f.key)
		if err != nil {
			return nil, err
		}
		*f.dst = s
	}
	h, err := str("chain_hash")
	if err != nil {
		return nil, err
	}
	if a.ChainHash, err = digest.ParseHex(h); err != nil {
		return nil, wrapError(KindDecode, "ATTEST-DECODE-003", "invalid chain_hash", err)
	}
	return &a, nil
}
