package jshandler

import (
	"errors"

	"github.com/cryguy/jshandler/internal/core"
)

// ConfigError reports an entry script that could not be opened or read when
// a worker started. The route stays broken on that worker until restart.
type ConfigError = core.ConfigError

// CompileError reports an entry script that was read but failed to
// transform, parse or compile.
type CompileError = core.CompileError

// ScriptError is an exception raised by a script while serving a request.
type ScriptError = core.ScriptError

// ErrBrokenContext is returned for a request on a runtime context that is
// not ready: its startup failed, it was stopped, or it is nil.
var ErrBrokenContext = errors.New("runtime context is not ready")
