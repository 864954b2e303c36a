package jshandler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cryguy/jshandler/internal/core"
)

// DefaultBackend is the engine used when EngineConfig.Backend is empty.
const DefaultBackend = "quickjs"

var (
	backendsMu sync.RWMutex
	backends   = map[string]core.Backend{}
)

func registerBackend(b core.Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[b.Name()] = b
}

// Backends lists the engine names compiled into this binary.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupBackend(name string) (core.Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	backendsMu.RLock()
	b, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown engine backend %q (available: %v)", name, Backends())
	}
	return b, nil
}
