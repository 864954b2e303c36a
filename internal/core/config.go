package core

// EngineConfig holds runtime configuration for the script engine.
type EngineConfig struct {
	Backend         string // engine name: "quickjs", "goja" or "v8"
	MemoryLimitMB   int    // per-runtime memory limit, 0 leaves the engine default
	MaxScriptSizeKB int    // max entry script size, 0 means unlimited
}
