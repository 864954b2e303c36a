package jshandler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cryguy/jshandler/internal/core"
)

// State is the lifecycle position of a RuntimeContext.
type State int

const (
	StateUninitialized State = iota
	StateCompiling
	StateReady
	StateBroken
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCompiling:
		return "compiling"
	case StateReady:
		return "ready"
	case StateBroken:
		return "broken"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// RuntimeContext is the per-worker, per-registration execution state: one
// engine runtime and the unit compiled into it. It is created by
// Handler.OnWorkerStart and must only be used by the worker that created it.
type RuntimeContext struct {
	mu     sync.Mutex
	reg    *Registration
	rt     core.Runtime
	unit   core.Unit
	state  State
	err    error
	logger *slog.Logger
}

// Registration returns the registration this context was built from.
func (c *RuntimeContext) Registration() *Registration { return c.reg }

// State returns the current lifecycle state.
func (c *RuntimeContext) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the startup failure of a broken context: *ConfigError,
// *CompileError, or the runtime allocation error. It is nil otherwise.
func (c *RuntimeContext) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// fail records a startup failure. The runtime, if one was allocated, stays
// until the worker stops. Callers hold c.mu.
func (c *RuntimeContext) fail(err error) {
	c.state = StateBroken
	c.unit = nil
	c.err = err
	c.logger.Error("script startup failed", "error", err)
}

// dispose closes the runtime and, with it, the unit. Callers hold c.mu.
func (c *RuntimeContext) dispose() {
	if c.rt != nil {
		if err := c.rt.Close(); err != nil {
			c.logger.Warn("closing runtime", "error", err)
		}
	}
	c.rt = nil
	c.unit = nil
	c.state = StateDisposed
}

// consoleLog forwards script console output. It runs inside Invoke with
// c.mu held and must not lock.
func (c *RuntimeContext) consoleLog(level, message string) {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	c.logger.Log(context.Background(), lvl, message, "source", "script")
}
