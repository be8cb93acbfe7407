package server

import (
	"sync"

	coreconfig "worker/core/config"
	"worker/core/errs"
	"worker/core/host"
	"worker/core/kv"
)

// AppData is the state shared by every route: the host runtime bodies are
// converted into, stream limits, and the named key-value bindings.
type AppData struct {
	Runtime host.Runtime
	Stream  coreconfig.StreamConfig

	mu       sync.RWMutex
	bindings map[string]*kv.Store
}

// NewAppData creates shared data with no bindings.
func NewAppData(rt host.Runtime, stream coreconfig.StreamConfig) *AppData {
	return &AppData{Runtime: rt, Stream: stream, bindings: make(map[string]*kv.Store)}
}

// Bind makes store available under name.
func (a *AppData) Bind(name string, store *kv.Store) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bindings[name] = store
}

// Store looks up a key-value binding by name.
func (a *AppData) Store(name string) (*kv.Store, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	store, ok := a.bindings[name]
	if !ok {
		return nil, errs.BindingError(name)
	}
	return store, nil
}
