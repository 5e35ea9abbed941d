package badgercas

import (
	"fmt"
	"strconv"

	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/casregistry"
)

// Option keys.
const (
	OptDir      = "dir"
	OptInMemory = "in-memory"
	OptSync     = "sync"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "badger",
		Description: "Embedded Badger key-value CAS",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Keys:        []string{OptDir, OptInMemory, OptSync},
		Open: func(opts casregistry.Options) (storage.CAS, func() error, error) {
			cfg := Config{Dir: opts[OptDir]}
			var err error
			if cfg.InMemory, err = boolOpt(opts, OptInMemory); err != nil {
				return nil, nil, err
			}
			if cfg.SyncWrites, err = boolOpt(opts, OptSync); err != nil {
				return nil, nil, err
			}
			cas, err := Open(cfg)
			if err != nil {
				return nil, nil, err
			}
			return cas, cas.Close, nil
		},
	})
}

func boolOpt(opts casregistry.Options, key string) (bool, error) {
	v, ok := opts[key]
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("badger: option %q: %w", key, err)
	}
	return b, nil
}
