package registry

import (
	"fmt"
	"sync"

	"github.com/cadogan/recmap/pkg/executor"
)

// DefaultName is the handle used when a type names no connection.
const DefaultName = "default"

// Opener lazily establishes a connection. It runs at most once; the
// resulting handle is cached under its name.
type Opener func() (executor.Executor, error)

// Registry maps connection names to executor handles. Entity types
// carry a connection name; the registry turns it into a live handle.
// A Registry is an explicit dependency of every engine entry point,
// so tests can build their own instead of mutating process state.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]executor.Executor
	openers map[string]Opener
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		handles: map[string]executor.Executor{},
		openers: map[string]Opener{},
	}
}

// Register installs a live handle under name, replacing any previous
// registration.
func (r *Registry) Register(name string, exec executor.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[name] = exec
}

// RegisterOpener installs a lazy handle under name. The opener runs on
// first Get and its result is cached.
func (r *Registry) RegisterOpener(name string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[name] = open
}

// Get resolves name to a handle. The empty name means DefaultName.
func (r *Registry) Get(name string) (executor.Executor, error) {
	if name == "" {
		name = DefaultName
	}

	r.mu.RLock()
	exec, ok := r.handles[name]
	r.mu.RUnlock()
	if ok {
		return exec, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if exec, ok := r.handles[name]; ok {
		return exec, nil
	}
	open, ok := r.openers[name]
	if !ok {
		return nil, fmt.Errorf("no connection named %q registered", name)
	}
	exec, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to open connection %q: %w", name, err)
	}
	r.handles[name] = exec
	return exec, nil
}

// Swap replaces the handle under name and returns a function that
// restores the previous state. Tests override connections with it:
//
//	restore := reg.Swap(registry.DefaultName, fake)
//	defer restore()
func (r *Registry) Swap(name string, exec executor.Executor) (restore func()) {
	if name == "" {
		name = DefaultName
	}

	r.mu.Lock()
	previous, existed := r.handles[name]
	r.handles[name] = exec
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.handles[name] = previous
			return
		}
		delete(r.handles, name)
	}
}

var defaultRegistry = New()

// Default returns the process-wide registry used by the CLI and the
// demo application. Library code takes a *Registry instead.
func Default() *Registry {
	return defaultRegistry
}
