package jshandler

import "github.com/cryguy/jshandler/internal/core"

// EngineConfig holds runtime configuration for the script engine: which
// backend to use, the per-runtime memory limit and the entry script size cap.
type EngineConfig = core.EngineConfig

// DefaultEngineConfig returns the configuration used when none is given.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Backend:         DefaultBackend,
		MemoryLimitMB:   64,
		MaxScriptSizeKB: 1024,
	}
}
