package memory

import (
	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "memory",
		Description: "In-process CAS, discarded on exit (dry runs)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Open: func(casregistry.Options) (storage.CAS, func() error, error) {
			return New(), nil, nil
		},
	})
}
