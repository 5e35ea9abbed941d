// Package cert builds kernel certificates (named, versioned, hashed canonical
// payloads) and certificate chains (an ordered hash over certificate hashes).
package cert

import (
	"github.com/ipfs/go-cid"

	"xdao.co/collapse/canon"
	"xdao.co/collapse/digest"
)

// Certificate is a kernel certificate.
//
// The hash covers the payload only. Name and version are metadata and are not
// integrity protected.
type Certificate struct {
	name    string
	version string
	payload canon.Value
	hash    digest.Digest
}

// New builds a certificate, hashing the canonical encoding of payload once.
func New(name, version string, payload canon.Value) *Certificate {
	return &Certificate{
		name:    name,
		version: version,
		payload: payload,
		hash:    digest.SumValue(payload),
	}
}

func (c *Certificate) Name() string         { return c.name }
func (c *Certificate) Version() string      { return c.version }
func (c *Certificate) Payload() canon.Value { return c.payload }
func (c *Certificate) Hash() digest.Digest  { return c.hash }
func (c *Certificate) HashHex() string      { return c.hash.Hex() }
func (c *Certificate) PayloadBytes() []byte { return canon.Encode(c.payload) }

// CID is the content address of the canonical payload bytes.
func (c *Certificate) CID() cid.Cid { return c.hash.CID() }

// Record is the full canonical projection of the certificate, including the
// metadata fields.
func (c *Certificate) Record() canon.Value {
	return canon.NewObject().
		Str("kernel_name", c.name).
		Str("kernel_version", c.version).
		Set("payload", c.payload).
		Str("kernel_hash", c.HashHex()).
		Build()
}

// Verify recomputes the payload hash.
func (c *Certificate) Verify() error {
	if c == nil {
		return newError(KindIntegrity, "CERT-HASH-000", "nil certificate")
	}
	if got := digest.SumValue(c.payload); got != c.hash {
		return newError(KindIntegrity, "CERT-HASH-001", "certificate hash does not match payload: "+c.name)
	}
	return nil
}

// Item is one named hash in a chain.
type Item struct {
	Name    string
	HashHex string
}

// ItemOf returns the chain item for c.
func ItemOf(c *Certificate) Item {
	return Item{Name: c.name, HashHex: c.HashHex()}
}

// Chain is an ordered list of items and the digest over them.
type Chain struct {
	Items []Item
	Hash  digest.Digest
}

// BuildChain hashes items in the given order. Items are neither deduplicated
// nor reordered.
func BuildChain(items []Item) *Chain {
	own := append([]Item(nil), items...)
	return &Chain{Items: own, Hash: ChainHash(own)}
}

// ChainHash is sha256(canon([{"hash":h,"name":n}, ...])).
func ChainHash(items []Item) digest.Digest {
	return digest.SumValue(ChainValue(items))
}

// ChainValue is the canonical array hashed by ChainHash.
func ChainValue(items []Item) canon.Value {
	arr := make([]canon.Value, 0, len(items))
	for _, it := range items {
		arr = append(arr, canon.NewObject().Str("name", it.Name).Str("hash", it.HashHex).Build())
	}
	return canon.Array(arr...)
}

func (c *Chain) HashHex() string { return c.Hash.Hex() }

// Verify recomputes the chain hash from Items.
func (c *Chain) Verify() error {
	if c == nil {
		return newError(KindIntegrity, "CERT-CHAIN-000", "nil chain")
	}
	if ChainHash(c.Items) != c.Hash {
		return newError(KindIntegrity, "CERT-CHAIN-001", "chain hash does not match items")
	}
	return nil
}
