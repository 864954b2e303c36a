package jshandler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cryguy/jshandler/internal/compiler"
	"github.com/cryguy/jshandler/internal/core"
	"github.com/cryguy/jshandler/internal/logging"
)

type compileFunc func(rt core.Runtime, path string, opts compiler.Options) (core.Unit, error)

// Handler is the entry point a host drives: it builds runtime contexts when
// a worker starts, serves requests on them, and tears them down.
type Handler struct {
	cfg     EngineConfig
	backend core.Backend
	logger  *slog.Logger
	compile compileFunc
}

// NewHandler returns a Handler using the backend named by cfg.Backend.
// A nil logger discards diagnostics.
func NewHandler(cfg EngineConfig, logger *slog.Logger) (*Handler, error) {
	b, err := lookupBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}
	cfg.Backend = b.Name()
	return &Handler{
		cfg:     cfg,
		backend: b,
		logger:  logger,
		compile: compiler.Compile,
	}, nil
}

// Backend returns the name of the engine in use.
func (h *Handler) Backend() string { return h.backend.Name() }

// OnWorkerStart creates the runtime context for reg on the calling worker:
// one fresh runtime with the script compiled into it exactly once. It never
// returns nil. A script that cannot be read or compiled leaves the context
// Broken; the failure is logged and available from Err, and every request
// on the context gets a 500.
func (h *Handler) OnWorkerStart(reg *Registration) *RuntimeContext {
	c := &RuntimeContext{
		reg:    reg,
		logger: h.logger.With("route", reg.Route(), "path", reg.Path()),
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateCompiling
	rt, err := h.backend.NewRuntime(h.cfg, c.consoleLog)
	if err != nil {
		c.fail(fmt.Errorf("creating %s runtime: %w", h.backend.Name(), err))
		return c
	}
	c.rt = rt

	unit, err := h.compile(rt, reg.Path(), compiler.Options{MaxSizeKB: h.cfg.MaxScriptSizeKB})
	if err != nil {
		c.fail(err)
		return c
	}
	c.unit = unit
	c.state = StateReady
	c.logger.Debug("script compiled", "engine", h.backend.Name())
	return c
}

// OnWorkerStop releases the runtime of c. It is a no-op for a nil context, a
// context already stopped, or one that never finished starting.
func (h *Handler) OnWorkerStop(c *RuntimeContext) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateReady, StateBroken:
		c.dispose()
	}
}

// OnRequest runs the script of c for req and returns the response to send.
// Script exceptions and broken contexts are logged and answered with a
// generic 500.
func (h *Handler) OnRequest(c *RuntimeContext, req *http.Request) Response {
	out, err := c.Invoke()
	if err != nil {
		h.requestLogger(c, req).Error("request on unusable runtime context", "error", err)
		return errorResponse()
	}
	if out.Raised() {
		h.requestLogger(c, req).Error("script raised", "error", out.Err.Message)
		return errorResponse()
	}
	return okResponse(out.Value)
}

// OnUnregister disposes reg once all workers have stopped using it.
func (h *Handler) OnUnregister(reg *Registration) {
	if reg == nil || reg.Disposed() {
		return
	}
	reg.Dispose()
	h.logger.Debug("route unregistered", "route", reg.Route(), "path", reg.Path())
}

func (h *Handler) requestLogger(c *RuntimeContext, req *http.Request) *slog.Logger {
	l := h.logger
	if c != nil {
		l = c.logger
	}
	if req != nil {
		l = l.With("method", req.Method, "url", req.URL.String())
		if id := req.Header.Get("X-Request-Id"); id != "" {
			l = l.With("request_id", id)
		}
	}
	return l
}

// Check compiles the script at path into a scratch runtime and discards it.
// It reports the same *ConfigError or *CompileError a worker would log.
func Check(cfg EngineConfig, path string) error {
	b, err := lookupBackend(cfg.Backend)
	if err != nil {
		return err
	}
	rt, err := b.NewRuntime(cfg, nil)
	if err != nil {
		return fmt.Errorf("creating %s runtime: %w", b.Name(), err)
	}
	defer rt.Close()
	_, err = compiler.Compile(rt, path, compiler.Options{MaxSizeKB: cfg.MaxScriptSizeKB})
	return err
}
