package localfs

import (
	"fmt"

	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/casregistry"
)

// OptDir is the option key naming the store directory.
const OptDir = "dir"

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "localfs",
		Description: "Local filesystem CAS (directory)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Keys:        []string{OptDir},
		Open: func(opts casregistry.Options) (storage.CAS, func() error, error) {
			dir := opts[OptDir]
			if dir == "" {
				return nil, nil, fmt.Errorf("localfs: missing %q option", OptDir)
			}
			cas, err := New(dir)
			return cas, nil, err
		},
	})
}
