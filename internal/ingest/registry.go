package ingest

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a thread-safe registry of payload adapters keyed by
// provider id, with an index of which adapters produce which canonical
// kind.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	kindIdx  map[PayloadKind][]string // kind → adapter ids
}

// NewRegistry creates a new empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		kindIdx:  make(map[PayloadKind][]string),
	}
}

// Register adds an adapter to the registry. Duplicate registrations
// overwrite the previous entry.
func (r *Registry) Register(a Adapter) error {
	info := a.Info()
	if info.ID == "" {
		return fmt.Errorf("adapter id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[info.ID]; !exists {
		r.kindIdx[info.Produces] = append(r.kindIdx[info.Produces], info.ID)
	}
	r.adapters[info.ID] = a
	return nil
}

// Get returns an adapter by provider id, or an error if not registered.
func (r *Registry) Get(id string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	if !ok {
		return nil, &ErrAdapterNotFound{ID: id}
	}
	return a, nil
}

// List returns info about all registered adapters, sorted by id.
func (r *Registry) List() []AdapterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AdapterInfo, 0, len(r.adapters))
	for _, a := range r.adapters {
		infos = append(infos, a.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// AdaptersFor returns the ids of adapters producing the given kind.
func (r *Registry) AdaptersFor(kind PayloadKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.kindIdx[kind]
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

// Normalize routes raw through the adapter registered for providerID.
// Canonical invariants are checked here so every adapter's output is
// validated uniformly.
func (r *Registry) Normalize(providerID string, raw []byte, q Query) (*Result, error) {
	a, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	res, err := a.Normalize(raw, q)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Series != nil:
		if err := res.Series.Validate(); err != nil {
			return nil, &MalformedPayloadError{Provider: providerID, Detail: err.Error()}
		}
	case res.Results != nil:
		if err := res.Results.Validate(); err != nil {
			return nil, &MalformedPayloadError{Provider: providerID, Detail: err.Error()}
		}
	default:
		return nil, &MalformedPayloadError{Provider: providerID, Detail: "adapter returned empty result"}
	}

	return res, nil
}

// global is the default global registry.
var global = NewRegistry()

// Global returns the default global adapter registry.
func Global() *Registry {
	return global
}

// RegisterAdapter adds an adapter to the global registry.
func RegisterAdapter(a Adapter) error {
	return global.Register(a)
}
