// Package badgercas stores CAS blocks in an embedded Badger key-value store.
// Keys are the binary CID; values are the raw block bytes.
package badgercas

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/collapse/digest"
	"xdao.co/collapse/storage"
)

// Config selects where and how the store is opened.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir        string
	InMemory   bool
	SyncWrites bool
	// Logger receives Badger's internal messages. Nil silences them.
	Logger *zap.Logger
}

// CAS is a Badger-backed content-addressable store.
type CAS struct {
	db *badger.DB
}

var _ storage.CAS = (*CAS)(nil)

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*CAS, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("badgercas: dir is required unless in-memory")
	}
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(zapLogger{cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgercas: open: %w", err)
	}
	return &CAS{db: db}, nil
}

func (c *CAS) Close() error { return c.db.Close() }

func (c *CAS) Put(b []byte) (cid.Cid, error) {
	id, err := digest.CIDOf(b)
	if err != nil {
		return cid.Undef, err
	}
	key := id.Bytes()
	err = c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return txn.Set(key, b)
		case err != nil:
			return err
		}
		existing, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if !bytes.Equal(existing, b) {
			return storage.ErrImmutable
		}
		return nil
	})
	if err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// Get reads a block and re-derives its CID before returning it.
func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(id.Bytes())
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	got, err := digest.CIDOf(out)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(id.Bytes())
		return err
	})
	return err == nil
}

// zapLogger routes Badger's printf-style logger onto zap.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Errorf(f string, args ...interface{})   { l.s.Errorf(f, args...) }
func (l zapLogger) Warningf(f string, args ...interface{}) { l.s.Warnf(f, args...) }
func (l zapLogger) Infof(f string, args ...interface{})    { l.s.Infof(f, args...) }
func (l zapLogger) Debugf(f string, args ...interface{})   { l.s.Debugf(f, args...) }
