package modules

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the process-wide catalog of game modules. Modules are
// registered once at boot and immutable afterwards.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds a module under its gameId. Registering the same id twice
// is a boot-time programming error.
func (r *Registry) Register(m Module) error {
	id := m.Meta().GameID
	if id == "" {
		return fmt.Errorf("module has empty gameId")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[id]; exists {
		return fmt.Errorf("module %q already registered", id)
	}
	r.modules[id] = m
	return nil
}

// Get returns the module for gameId
func (r *Registry) Get(gameID string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.modules[gameID]
	if !exists {
		return nil, fmt.Errorf("unknown game %q", gameID)
	}
	return m, nil
}

// Has reports whether gameId is registered
func (r *Registry) Has(gameID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.modules[gameID]
	return exists
}

// List returns the metadata of all registered modules, sorted by gameId
func (r *Registry) List() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]Meta, 0, len(r.modules))
	for _, m := range r.modules {
		metas = append(metas, m.Meta())
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].GameID < metas[j].GameID })
	return metas
}
