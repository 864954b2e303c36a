package core

// Backend is the interface that engine implementations (QuickJS, goja, V8)
// must satisfy. The root jshandler package picks one by name from
// EngineConfig.Backend.
type Backend interface {
	// Name is the value of EngineConfig.Backend that selects this backend.
	Name() string

	// NewRuntime allocates one engine instance. Console output produced by
	// scripts running in it is passed to logf, which may be nil.
	NewRuntime(cfg EngineConfig, logf LogFunc) (Runtime, error)
}
