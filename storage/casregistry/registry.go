// Package casregistry maps backend names to constructors so a CAS can be
// chosen at runtime from a config file or command-line options.
//
// Backends register themselves in init(); a binary enables one by importing
// its package, usually as a blank import.
package casregistry

import (
	"fmt"
	"sort"
	"sync"

	"xdao.co/collapse/storage"
)

// Usage restricts which programs accept a backend.
type Usage uint8

const (
	// UsageCLI marks backends available to the collapse CLI.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends a long-running CAS daemon may serve from.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }

// Options are backend-specific string settings, keyed like the CLI options
// that set them (e.g. "dir", "target").
type Options map[string]string

// Backend opens a storage.CAS from Options. Open returns an optional close
// function.
type Backend struct {
	Name        string
	Description string
	Usage       Usage
	// Keys documents the option keys Open reads.
	Keys []string
	Open func(opts Options) (storage.CAS, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("casregistry: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// Open opens the named backend if it exists and matches usage. Unknown option
// keys are rejected.
func Open(name string, usage Usage, opts Options) (storage.CAS, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("casregistry: unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("casregistry: backend %q not supported in this binary", name)
	}
	known := make(map[string]bool, len(b.Keys))
	for _, k := range b.Keys {
		known[k] = true
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !known[k] {
			return nil, nil, fmt.Errorf("casregistry: backend %q: unknown option %q", name, k)
		}
	}
	if opts == nil {
		opts = Options{}
	}
	return b.Open(opts)
}
