package storage_test

import (
	"errors"
	"testing"

	"xdao.co/collapse/digest"
	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/memory"
)

func TestMultiCAS_SkipsNilAdapters(t *testing.T) {
	mem := memory.New()
	id, err := mem.Put([]byte("block"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	m := storage.MultiCAS{Adapters: []storage.CAS{nil, mem}}
	if !m.Has(id) {
		t.Fatalf("Has should find the block past a nil adapter")
	}
	if b, err := m.Get(id); err != nil || string(b) != "block" {
		t.Fatalf("Get = %q, %v", b, err)
	}

	only := storage.MultiCAS{Adapters: []storage.CAS{nil}}
	if only.Has(id) {
		t.Fatalf("Has on a nil adapter must be false")
	}
	if _, err := only.Get(id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get: got %v want ErrNotFound", err)
	}
	if _, err := only.Put([]byte("x")); !errors.Is(err, storage.ErrNoBackends) {
		t.Fatalf("Put to a nil adapter: got %v", err)
	}
}

func TestMultiCAS_WritesFirstReadsInOrder(t *testing.T) {
	first, second := memory.New(), memory.New()
	old, err := second.Put([]byte("only in second"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	m := storage.MultiCAS{Adapters: []storage.CAS{first, second}}

	id, err := m.Put([]byte("new"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !first.Has(id) || second.Has(id) {
		t.Fatalf("Put must write only the first adapter")
	}
	if b, err := m.Get(old); err != nil || string(b) != "only in second" {
		t.Fatalf("fallback Get = %q, %v", b, err)
	}
	if _, err := (storage.MultiCAS{}).Put([]byte("x")); !errors.Is(err, storage.ErrNoBackends) {
		t.Fatalf("empty MultiCAS Put: %v", err)
	}
}

func TestReplicatingCAS_WritesAll(t *testing.T) {
	a, b := memory.New(), memory.New()
	r := storage.ReplicatingCAS{Backends: []storage.NamedCAS{{Name: "a", CAS: a}, {Name: "b", CAS: b}}}
	id, got, err := r.PutAll([]byte("replicated"))
	if err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	want, _ := digest.CIDOf([]byte("replicated"))
	if id != want || got["a"] != want || got["b"] != want {
		t.Fatalf("PutAll ids = %s %v", id, got)
	}
	if !a.Has(id) || !b.Has(id) || !r.Has(id) {
		t.Fatalf("block not on every backend")
	}

	withNil := storage.ReplicatingCAS{Backends: []storage.NamedCAS{{Name: "a", CAS: a}, {Name: "gone"}}}
	if _, err := withNil.Put([]byte("y")); err == nil {
		t.Fatalf("nil backend accepted")
	}
	if !withNil.Has(id) {
		t.Fatalf("Has should skip the nil backend")
	}
}
