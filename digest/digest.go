// Package digest provides the fixed-size SHA-256 digest used for every
// certificate, chain and domain fingerprint, and its content-address (CID)
// form.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"xdao.co/collapse/canon"
)

// Size is the digest length in bytes.
const Size = sha256.Size

// Digest is a 256-bit SHA-256 value.
type Digest [Size]byte

// Sum returns the SHA-256 digest of b.
func Sum(b []byte) Digest {
	return Digest(sha256.Sum256(b))
}

// SumValue returns the digest of the canonical encoding of v.
func SumValue(v canon.Value) Digest {
	return Sum(canon.Encode(v))
}

// Hex renders d as lowercase hex without prefix.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string { return d.Hex() }

// IsZero reports whether d is the all-zero value.
func (d Digest) IsZero() bool { return d == Digest{} }

// ParseHex parses a 64-character lowercase or uppercase hex digest.
func ParseHex(s string) (Digest, error) {
	var d Digest
	if len(s) != 2*Size {
		return d, fmt.Errorf("digest: want %d hex chars, got %d", 2*Size, len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("digest: %w", err)
	}
	return d, nil
}

// CID returns the CIDv1 (raw multicodec, sha2-256 multihash) carrying d.
//
// Because d is a plain SHA-256, d.CID() equals the CID of the bytes d was
// computed from, so a certificate hash and the storage address of its canonical
// payload are the same identity.
func (d Digest) CID() cid.Cid {
	mh, err := multihash.Encode(d[:], multihash.SHA2_256)
	if err != nil {
		// Encode only fails for unknown codes or mismatched lengths; both are fixed here.
		return cid.Undef
	}
	return cid.NewCidV1(cid.Raw, mh)
}

// FromCID recovers the digest carried by c. Only sha2-256 multihashes are accepted.
func FromCID(c cid.Cid) (Digest, error) {
	var d Digest
	if !c.Defined() {
		return d, fmt.Errorf("digest: undefined cid")
	}
	dec, err := multihash.Decode(c.Hash())
	if err != nil {
		return d, fmt.Errorf("digest: %w", err)
	}
	if dec.Code != multihash.SHA2_256 || len(dec.Digest) != Size {
		return d, fmt.Errorf("digest: unsupported multihash %s", multihash.Codes[dec.Code])
	}
	copy(d[:], dec.Digest)
	return d, nil
}

// CIDOf returns the CIDv1 raw + sha2-256 for data.
func CIDOf(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}
