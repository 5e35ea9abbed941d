package ipfs

import (
	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/casregistry"
)

// Option keys.
const (
	OptBin  = "bin"
	OptRepo = "repo"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "Local IPFS repository via the Kubo CLI (offline)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Keys:        []string{OptBin, OptRepo},
		Open: func(opts casregistry.Options) (storage.CAS, func() error, error) {
			return New(Options{Bin: opts[OptBin], RepoPath: opts[OptRepo]}), nil, nil
		},
	})
}
