package session

import "sync"

// Registry holds one runtime per user. A user's runtime survives
// disconnects; it is created on first use and reused on reconnect.
type Registry struct {
	mu       sync.Mutex
	runtimes map[string]*Runtime
	deps     Deps
}

// NewRegistry creates an empty registry sharing deps across runtimes
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		runtimes: make(map[string]*Runtime),
		deps:     deps,
	}
}

// Get returns the user's runtime, or nil if none exists yet
func (reg *Registry) Get(userID string) *Runtime {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.runtimes[userID]
}

// GetOrCreate returns the user's runtime, creating it on first use
func (reg *Registry) GetOrCreate(userID, username string) *Runtime {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if rt, ok := reg.runtimes[userID]; ok {
		return rt
	}
	rt := NewRuntime(userID, username, reg.deps)
	reg.runtimes[userID] = rt
	return rt
}

// StopAll tears down every worker, for server shutdown
func (reg *Registry) StopAll() {
	reg.mu.Lock()
	runtimes := make([]*Runtime, 0, len(reg.runtimes))
	for _, rt := range reg.runtimes {
		runtimes = append(runtimes, rt)
	}
	reg.mu.Unlock()

	for _, rt := range runtimes {
		rt.Stop()
	}
}
