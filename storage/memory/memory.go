// Package memory is an in-process CAS for tests and dry runs.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/collapse/digest"
	"xdao.co/collapse/storage"
)

// CAS keeps blocks in a map guarded by a mutex. It is safe for concurrent use.
type CAS struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

var _ storage.CAS = (*CAS)(nil)

func New() *CAS {
	return &CAS{blocks: make(map[cid.Cid][]byte)}
}

func (c *CAS) Put(b []byte) (cid.Cid, error) {
	id, err := digest.CIDOf(b)
	if err != nil {
		return cid.Undef, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.blocks[id]; ok {
		if !bytes.Equal(existing, b) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	c.blocks[id] = append([]byte(nil), b...)
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.blocks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.blocks[id]
	return ok
}

// Len is the number of stored blocks.
func (c *CAS) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// CIDs lists stored CIDs sorted by their string form.
func (c *CAS) CIDs() []cid.Cid {
	c.mu.RLock()
	out := make([]cid.Cid, 0, len(c.blocks))
	for id := range c.blocks {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
