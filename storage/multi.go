package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/collapse/digest"
)

// MultiCAS reads from adapters in slice order and writes to the first one.
// Callers fix the order; nothing here iterates a map.
type MultiCAS struct {
	Adapters []CAS
}

var _ CAS = MultiCAS{}

func (m MultiCAS) Put(bytes []byte) (cid.Cid, error) {
	if len(m.Adapters) == 0 {
		return cid.Undef, ErrNoBackends
	}
	if m.Adapters[0] == nil {
		return cid.Undef, fmt.Errorf("storage: nil CAS at write position: %w", ErrNoBackends)
	}
	return m.Adapters[0].Put(bytes)
}

func (m MultiCAS) Get(id cid.Cid) ([]byte, error) {
	return getInOrder(id, m.Adapters)
}

func (m MultiCAS) Has(id cid.Cid) bool {
	for _, cas := range m.Adapters {
		if cas != nil && cas.Has(id) {
			return true
		}
	}
	return false
}

// getInOrder returns the first hit. ErrNotFound from one adapter moves on to
// the next; any other error stops the search.
func getInOrder(id cid.Cid, adapters []CAS) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	for _, cas := range adapters {
		if cas == nil {
			continue
		}
		b, err := cas.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

// NamedCAS pairs a backend with the stable name it is reported under.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS writes every block to every backend and requires each to
// report the same CID. Reads fall back in order.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var _ CAS = ReplicatingCAS{}

// PutAll writes bytes to all backends and returns the expected CID along with
// what each backend reported.
func (r ReplicatingCAS) PutAll(bytes []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := digest.CIDOf(bytes)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, ErrNoBackends
	}
	out := make(map[string]cid.Cid, len(r.Backends))
	for _, b := range r.Backends {
		if b.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for backend %q", b.Name)
		}
		got, err := b.CAS.Put(bytes)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if got != want {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingCAS) Put(bytes []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(bytes)
	return id, err
}

func (r ReplicatingCAS) Get(id cid.Cid) ([]byte, error) {
	adapters := make([]CAS, 0, len(r.Backends))
	for _, b := range r.Backends {
		adapters = append(adapters, b.CAS)
	}
	return getInOrder(id, adapters)
}

func (r ReplicatingCAS) Has(id cid.Cid) bool {
	for _, b := range r.Backends {
		if b.CAS != nil && b.CAS.Has(id) {
			return true
		}
	}
	return false
}
