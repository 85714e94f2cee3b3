// Package casregistry lets mirror backends register themselves at link time
// and be opened by name from configuration.
//
// Backends register in init():
//
//	casregistry.MustRegister(casregistry.Backend{ ... })
//
// A binary enables a backend by importing its package, usually as a blank
// import.
package casregistry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"xdao.co/gridstore/storage"
)

// Role restricts which programs accept a given backend.
type Role uint8

const (
	// RoleClient marks backends usable by processes that resolve content
	// (gridstore serve and the CLI).
	RoleClient Role = 1 << iota
	// RoleDaemon marks backends a mirror daemon may serve from.
	RoleDaemon
)

func (r Role) allows(want Role) bool { return r&want != 0 }

// Options are the backend-specific string settings from the config file.
type Options map[string]string

// String returns the trimmed value for key or "".
func (o Options) String(key string) string { return strings.TrimSpace(o[key]) }

type Backend struct {
	Name        string
	Description string
	Roles       Role

	// Open constructs the CAS from opts and returns an optional close function.
	Open func(opts Options) (storage.CAS, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("casregistry: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	}
	if b.Roles == 0 {
		return fmt.Errorf("casregistry: backend %q missing Roles", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching role, sorted by name.
func List(role Role) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Roles.allows(role) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func Names(role Role) []string {
	bs := List(role)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// OpenWithConfig opens the named backend if it is registered for role.
func OpenWithConfig(name string, role Role, opts Options) (storage.CAS, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("casregistry: unknown backend %q (known: %s)", name, strings.Join(Names(role), ", "))
	}
	if !b.Roles.allows(role) {
		return nil, nil, fmt.Errorf("casregistry: backend %q not supported in this binary", name)
	}
	if opts == nil {
		opts = Options{}
	}
	return b.Open(opts)
}
