//go:build v8

// Package v8engine runs scripts on V8 through github.com/tommie/v8go. It is
// only built with the v8 build tag.
package v8engine

import (
	"errors"
	"fmt"

	"github.com/cryguy/jshandler/internal/core"
	v8 "github.com/tommie/v8go"
)

// Backend creates V8 isolates, one context each.
type Backend struct{}

var _ core.Backend = Backend{}

// Name returns "v8".
func (Backend) Name() string { return "v8" }

// NewRuntime creates an isolate and context and installs the console.
func (Backend) NewRuntime(cfg core.EngineConfig, logf core.LogFunc) (core.Runtime, error) {
	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	ctx := v8.NewContext(iso)
	r := &v8Runtime{iso: iso, ctx: ctx}

	if logf == nil {
		logf = func(string, string) {}
	}
	tmpl := v8.NewFunctionTemplate(iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) >= 2 {
			logf(args[0].String(), args[1].String())
		}
		return nil
	})
	if err := ctx.Global().Set(core.ConsoleFunc, tmpl.GetFunction(ctx)); err != nil {
		r.dispose()
		return nil, fmt.Errorf("registering console: %w", err)
	}
	if _, err := ctx.RunScript(core.ConsoleJS, "console.js"); err != nil {
		r.dispose()
		return nil, fmt.Errorf("installing console: %w", err)
	}

	coerce, err := ctx.RunScript(core.CoerceJS, "coerce.js")
	if err != nil {
		r.dispose()
		return nil, fmt.Errorf("installing coercion: %w", err)
	}
	if r.coerce, err = coerce.AsFunction(); err != nil {
		r.dispose()
		return nil, fmt.Errorf("installing coercion: %w", err)
	}
	return r, nil
}

// v8Runtime implements core.Runtime for V8.
type v8Runtime struct {
	iso    *v8.Isolate
	ctx    *v8.Context
	coerce *v8.Function
	unit   *v8Unit
}

type v8Unit struct {
	owner  *v8Runtime
	label  string
	script *v8.UnboundScript
}

func (u *v8Unit) Label() string { return u.label }

var _ core.Runtime = (*v8Runtime)(nil)

// Compile compiles the script once as an unbound script. Nothing of it runs
// until Invoke binds it to the context.
func (r *v8Runtime) Compile(label, source string) (core.Unit, error) {
	if r.ctx == nil {
		return nil, core.ErrRuntimeClosed
	}
	if r.unit != nil {
		return nil, fmt.Errorf("runtime already holds unit %s", r.unit.label)
	}
	script, err := r.iso.CompileUnboundScript(source, label, v8.CompileOptions{})
	if err != nil {
		return nil, fmt.Errorf("V8: %s", errorMessage(err))
	}
	r.unit = &v8Unit{owner: r, label: label, script: script}
	return r.unit, nil
}

// Invoke runs the script in the context and coerces its completion value,
// then runs the microtask checkpoint so that Promise reactions queued by this
// run do not spill into the next.
func (r *v8Runtime) Invoke(u core.Unit) (string, error) {
	unit, ok := u.(*v8Unit)
	if !ok || unit.owner != r {
		return "", core.ErrForeignUnit
	}
	if r.ctx == nil {
		return "", core.ErrRuntimeClosed
	}
	val, err := unit.script.Run(r.ctx)
	if err == nil {
		if val == nil {
			val = v8.Undefined(r.iso)
		}
		val, err = r.coerce.Call(r.ctx.Global(), val)
	}
	r.ctx.PerformMicrotaskCheckpoint()
	if err != nil {
		return "", &core.ScriptError{Label: unit.label, Message: errorMessage(err)}
	}
	return val.String(), nil
}

// Close disposes the context and isolate.
func (r *v8Runtime) Close() error {
	if r.ctx == nil {
		return nil
	}
	r.dispose()
	return nil
}

func (r *v8Runtime) dispose() {
	r.ctx.Close()
	r.iso.Dispose()
	r.ctx = nil
	r.iso = nil
	r.coerce = nil
	r.unit = nil
}

// errorMessage renders a V8 exception with its location when V8 reports one.
func errorMessage(err error) string {
	var jsErr *v8.JSError
	if errors.As(err, &jsErr) && jsErr.Location != "" {
		return jsErr.Message + " at " + jsErr.Location
	}
	return err.Error()
}
