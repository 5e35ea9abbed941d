// Package certstore writes kernel certificates and chains to a CAS.
//
// A certificate is stored as two blocks: its canonical payload, whose CID is
// the certificate CID, and its canonical record (name, version, payload and
// hash). A chain is stored as its canonical item array, whose CID carries the
// chain hash.
package certstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/collapse/canon"
	"xdao.co/collapse/cert"
	"xdao.co/collapse/digest"
	"xdao.co/collapse/storage"
)

// ErrNotCanonical reports a chain block that is not the canonical encoding
// of its own items.
var ErrNotCanonical = errors.New("certstore: chain block is not canonical")

// Entry locates the blocks of one stored certificate.
type Entry struct {
	Name    string
	Version string
	Payload cid.Cid
	Record  cid.Cid
}

// Store wraps a CAS. It holds no state of its own.
type Store struct {
	cas storage.CAS
}

func New(cas storage.CAS) *Store {
	return &Store{cas: cas}
}

// Put verifies c and stores its payload and record blocks.
func (s *Store) Put(c *cert.Certificate) (Entry, error) {
	if err := c.Verify(); err != nil {
		return Entry{}, err
	}
	pid, err := s.put(c.PayloadBytes(), c.CID())
	if err != nil {
		return Entry{}, fmt.Errorf("certstore: payload %s: %w", c.Name(), err)
	}
	rec := canon.Encode(c.Record())
	rid, err := s.cas.Put(rec)
	if err != nil {
		return Entry{}, fmt.Errorf("certstore: record %s: %w", c.Name(), err)
	}
	return Entry{Name: c.Name(), Version: c.Version(), Payload: pid, Record: rid}, nil
}

// PutChain stores the canonical item array of ch. The returned CID carries
// ch.Hash.
func (s *Store) PutChain(ch *cert.Chain) (cid.Cid, error) {
	if err := ch.Verify(); err != nil {
		return cid.Undef, err
	}
	id, err := s.put(canon.Encode(cert.ChainValue(ch.Items)), ch.Hash.CID())
	if err != nil {
		return cid.Undef, fmt.Errorf("certstore: chain: %w", err)
	}
	return id, nil
}

func (s *Store) put(b []byte, want cid.Cid) (cid.Cid, error) {
	got, err := s.cas.Put(b)
	if err != nil {
		return cid.Undef, err
	}
	if got != want {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return got, nil
}

// Load returns the block for id after re-hashing it against the digest the
// CID carries.
func (s *Store) Load(id cid.Cid) ([]byte, error) {
	want, err := digest.FromCID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidCID, err)
	}
	b, err := s.cas.Get(id)
	if err != nil {
		return nil, err
	}
	if digest.Sum(b) != want {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

// Has reports whether the payload of c is stored.
func (s *Store) Has(c *cert.Certificate) bool {
	return s.cas.Has(c.CID())
}

// Manifest is the set of blocks written for one run.
type Manifest struct {
	Entries []Entry
	Chain   cid.Cid
}

// PutRun stores every certificate and the chain over them, in order.
func (s *Store) PutRun(certs []*cert.Certificate, ch *cert.Chain) (*Manifest, error) {
	m := &Manifest{Entries: make([]Entry, 0, len(certs))}
	for _, c := range certs {
		e, err := s.Put(c)
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, e)
	}
	id, err := s.PutChain(ch)
	if err != nil {
		return nil, err
	}
	m.Chain = id
	return m, nil
}

// CIDs lists every block of m: payload and record per entry, then the chain.
func (m *Manifest) CIDs() []cid.Cid {
	out := make([]cid.Cid, 0, 2*len(m.Entries)+1)
	for _, e := range m.Entries {
		out = append(out, e.Payload, e.Record)
	}
	if m.Chain.Defined() {
		out = append(out, m.Chain)
	}
	return out
}

// Labels names each payload by kernel name and the chain as "chain", for
// bundle indexes.
func (m *Manifest) Labels() map[string]cid.Cid {
	out := make(map[string]cid.Cid, len(m.Entries)+1)
	for _, e := range m.Entries {
		out[e.Name] = e.Payload
		out[e.Name+".record"] = e.Record
	}
	if m.Chain.Defined() {
		out["chain"] = m.Chain
	}
	return out
}

// LoadChain loads the chain block id and rebuilds the chain from it. The
// block must be byte-for-byte the canonical encoding of the items it lists.
func (s *Store) LoadChain(id cid.Cid) (*cert.Chain, error) {
	b, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Name string `json:"name"`
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCanonical, err)
	}
	items := make([]cert.Item, len(raw))
	for i, it := range raw {
		d, err := digest.ParseHex(it.Hash)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrNotCanonical, i, err)
		}
		if d.Hex() != it.Hash {
			return nil, fmt.Errorf("%w: item %d: hash not lowercase", ErrNotCanonical, i)
		}
		items[i] = cert.Item{Name: it.Name, HashHex: it.Hash}
	}
	if !bytes.Equal(canon.Encode(cert.ChainValue(items)), b) {
		return nil, ErrNotCanonical
	}
	ch := cert.BuildChain(items)
	if ch.Hash.CID() != id {
		return nil, storage.ErrCIDMismatch
	}
	return ch, nil
}

// ChainReport is the outcome of VerifyChain. Missing lists items whose
// payload block is not in the store.
type ChainReport struct {
	Chain   *cert.Chain
	Missing []cert.Item
}

// Complete reports whether every item's payload is stored.
func (r *ChainReport) Complete() bool { return len(r.Missing) == 0 }

// VerifyChain loads the chain at id and re-hashes the payload of every item
// it names. An absent payload is reported in Missing; a payload whose bytes
// do not match its hash fails the whole check.
func (s *Store) VerifyChain(id cid.Cid) (*ChainReport, error) {
	ch, err := s.LoadChain(id)
	if err != nil {
		return nil, err
	}
	rep := &ChainReport{Chain: ch}
	for _, it := range ch.Items {
		d, err := digest.ParseHex(it.HashHex)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotCanonical, err)
		}
		if _, err := s.Load(d.CID()); err != nil {
			if storage.IsNotFound(err) {
				rep.Missing = append(rep.Missing, it)
				continue
			}
			return nil, fmt.Errorf("certstore: %s: %w", it.Name, err)
		}
	}
	return rep, nil
}
