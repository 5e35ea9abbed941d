package certstore_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/collapse/canon"
	"xdao.co/collapse/cert"
	"xdao.co/collapse/digest"
	"xdao.co/collapse/spine"
	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/certstore"
	"xdao.co/collapse/storage/memory"
)

func TestPutRun_AddressesMatchHashes(t *testing.T) {
	r, err := spine.Compute(spine.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	cas := memory.New()
	s := certstore.New(cas)

	m, err := s.PutRun(r.Certificates(), r.Chain)
	if err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	if len(m.Entries) != 3 {
		t.Fatalf("entries = %d", len(m.Entries))
	}
	for i, c := range r.Certificates() {
		e := m.Entries[i]
		if e.Name != c.Name() || e.Payload != c.CID() {
			t.Fatalf("entry %d = %+v, want %s at %s", i, e, c.Name(), c.CID())
		}
		b, err := s.Load(e.Payload)
		if err != nil {
			t.Fatalf("Load %s: %v", c.Name(), err)
		}
		if !bytes.Equal(b, c.PayloadBytes()) {
			t.Fatalf("%s: payload bytes differ", c.Name())
		}
		rec, err := s.Load(e.Record)
		if err != nil {
			t.Fatalf("Load record %s: %v", c.Name(), err)
		}
		if !bytes.Equal(rec, canon.Encode(c.Record())) {
			t.Fatalf("%s: record bytes differ", c.Name())
		}
		if !s.Has(c) {
			t.Fatalf("%s: Has = false", c.Name())
		}
	}

	got, err := digest.FromCID(m.Chain)
	if err != nil {
		t.Fatal(err)
	}
	if got != r.Chain.Hash {
		t.Fatalf("chain CID carries %s want %s", got.Hex(), r.Chain.HashHex())
	}
	if n := len(m.CIDs()); n != 7 || cas.Len() != 7 {
		t.Fatalf("blocks = %d stored = %d, want 7", n, cas.Len())
	}
	if m.Labels()["sembit"] != r.Sembit.CID() || m.Labels()["chain"] != m.Chain {
		t.Fatalf("labels = %v", m.Labels())
	}

	// Idempotent.
	again, err := s.PutRun(r.Certificates(), r.Chain)
	if err != nil || again.Chain != m.Chain || cas.Len() != 7 {
		t.Fatalf("second PutRun: %v", err)
	}
}

func TestPut_RejectsBrokenChain(t *testing.T) {
	s := certstore.New(memory.New())
	c := cert.New("k", "1", canon.String("x"))
	ch := cert.BuildChain([]cert.Item{cert.ItemOf(c)})
	ch.Items[0].HashHex = digest.Sum([]byte("y")).Hex()
	if _, err := s.PutChain(ch); err == nil {
		t.Fatalf("expected chain verification error")
	}
}

type lyingCAS struct{ storage.CAS }

func (l lyingCAS) Get(id cid.Cid) ([]byte, error) {
	b, err := l.CAS.Get(id)
	if err != nil {
		return nil, err
	}
	return append(b, '!'), nil
}

func (l lyingCAS) Put(b []byte) (cid.Cid, error) {
	return l.CAS.Put(append(append([]byte(nil), b...), '!'))
}

func TestLoad_DetectsCorruption(t *testing.T) {
	inner := memory.New()
	c := cert.New("k", "1", canon.NewObject().I64("n", 1).Build())
	if _, err := certstore.New(inner).Put(c); err != nil {
		t.Fatal(err)
	}
	s := certstore.New(lyingCAS{inner})
	if _, err := s.Load(c.CID()); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
	if _, err := s.Load(cid.Undef); !errors.Is(err, storage.ErrInvalidCID) {
		t.Fatalf("expected ErrInvalidCID, got %v", err)
	}
	if _, err := s.Put(cert.New("other", "1", canon.String("z"))); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected put mismatch, got %v", err)
	}
}

func TestVerifyChain_StoredRun(t *testing.T) {
	r, err := spine.Compute(spine.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	cas := memory.New()
	s := certstore.New(cas)
	m, err := s.PutRun(r.Certificates(), r.Chain)
	if err != nil {
		t.Fatalf("PutRun: %v", err)
	}

	ch, err := s.LoadChain(m.Chain)
	if err != nil {
		t.Fatalf("LoadChain: %v", err)
	}
	if ch.Hash != r.Chain.Hash || len(ch.Items) != len(r.Chain.Items) {
		t.Fatalf("LoadChain = %s (%d items) want %s", ch.HashHex(), len(ch.Items), r.Chain.HashHex())
	}
	for i := range ch.Items {
		if ch.Items[i] != r.Chain.Items[i] {
			t.Fatalf("item %d = %+v want %+v", i, ch.Items[i], r.Chain.Items[i])
		}
	}

	rep, err := s.VerifyChain(m.Chain)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !rep.Complete() {
		t.Fatalf("missing = %v", rep.Missing)
	}
}

func TestVerifyChain_ReportsMissingPayloads(t *testing.T) {
	a := cert.New("a", "1", canon.String("a"))
	b := cert.New("b", "1", canon.String("b"))
	s := certstore.New(memory.New())
	if _, err := s.Put(a); err != nil {
		t.Fatal(err)
	}
	id, err := s.PutChain(cert.BuildChain([]cert.Item{cert.ItemOf(a), cert.ItemOf(b)}))
	if err != nil {
		t.Fatalf("PutChain: %v", err)
	}
	rep, err := s.VerifyChain(id)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if rep.Complete() || len(rep.Missing) != 1 || rep.Missing[0].Name != "b" {
		t.Fatalf("missing = %v", rep.Missing)
	}
}

func TestLoadChain_RejectsNonCanonicalBlocks(t *testing.T) {
	h := digest.Sum([]byte("x")).Hex()
	cases := map[string]string{
		"spaces":        `[{"hash": "` + h + `","name":"k"}]`,
		"key order":     `[{"name":"k","hash":"` + h + `"}]`,
		"not an array":  `{"hash":"` + h + `","name":"k"}`,
		"bad hash":      `[{"hash":"zz","name":"k"}]`,
		"upper hex":     `[{"hash":"` + digest.Sum([]byte("x")).Hex()[:62] + `AB","name":"k"}]`,
		"unknown field": `[{"extra":1,"hash":"` + h + `","name":"k"}]`,
	}
	for name, block := range cases {
		cas := memory.New()
		id, err := cas.Put([]byte(block))
		if err != nil {
			t.Fatalf("%s: Put: %v", name, err)
		}
		if _, err := certstore.New(cas).LoadChain(id); !errors.Is(err, certstore.ErrNotCanonical) {
			t.Fatalf("%s: expected ErrNotCanonical, got %v", name, err)
		}
	}

	if _, err := certstore.New(memory.New()).LoadChain(digest.Sum([]byte("[]")).CID()); !storage.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
