// Package storage defines the content-addressed block store that certificate
// payloads, records and chains are written to.
//
// Every block is addressed by a CIDv1 (raw codec, sha2-256). Because a
// certificate hash is the SHA-256 of its canonical payload, the CID of a
// stored payload block carries exactly the certificate hash.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable storage interface.
//
// Contract:
//   - Put is idempotent and returns the CID of the bytes written.
//   - Stored blocks are immutable.
//   - Get returns ErrNotFound when the CID is absent and ErrInvalidCID for an
//     undefined CID.
//   - Callers supply canonical bytes; the store never re-encodes.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
