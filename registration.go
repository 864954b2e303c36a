package jshandler

import (
	"strings"
	"sync"
)

// Registration binds a route (URL path prefix) to an entry script. It is
// created once from configuration and shared read-only by every worker; each
// worker builds its own RuntimeContext from it.
type Registration struct {
	route string
	path  string

	mu       sync.Mutex
	disposed bool
}

// Register copies route and path into a new Registration. The script path
// is not checked here; each worker reports a missing or broken script when
// it compiles it.
func Register(route, path string) *Registration {
	return &Registration{
		route: strings.Clone(route),
		path:  strings.Clone(path),
	}
}

// Route returns the URL path prefix served by this registration.
func (r *Registration) Route() string { return r.route }

// Path returns the entry script path.
func (r *Registration) Path() string { return r.path }

// Disposed reports whether Dispose has been called.
func (r *Registration) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// Dispose releases the registration. It must only be called once no worker
// uses it any more; later calls are no-ops.
func (r *Registration) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposed = true
}
