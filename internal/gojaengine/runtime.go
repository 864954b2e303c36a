// Package gojaengine runs scripts on github.com/dop251/goja, a JavaScript
// engine written in Go. It needs no cgo and no C runtime, which makes it the
// backend of choice for static builds.
//
// goja has no heap accounting, so EngineConfig.MemoryLimitMB is ignored by
// this backend: a script that allocates without bound grows the Go heap of
// the whole process. Only the call stack is capped.
package gojaengine

import (
	"errors"
	"fmt"

	"github.com/cryguy/jshandler/internal/core"
	"github.com/dop251/goja"
)

// maxCallStackSize turns runaway recursion into a catchable RangeError
// instead of exhausting the goroutine stack.
const maxCallStackSize = 10000

// Backend creates goja runtimes.
type Backend struct{}

var _ core.Backend = Backend{}

// Name returns "goja".
func (Backend) Name() string { return "goja" }

// NewRuntime creates a goja runtime with the console installed. goja has
// no heap limit, so MemoryLimitMB is ignored.
func (Backend) NewRuntime(_ core.EngineConfig, logf core.LogFunc) (core.Runtime, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)

	if logf == nil {
		logf = func(string, string) {}
	}
	if err := vm.Set(core.ConsoleFunc, func(level, message string) {
		logf(level, message)
	}); err != nil {
		return nil, fmt.Errorf("registering console: %w", err)
	}
	if _, err := vm.RunString(core.ConsoleJS); err != nil {
		return nil, fmt.Errorf("installing console: %w", err)
	}
	v, err := vm.RunString(core.CoerceJS)
	if err != nil {
		return nil, fmt.Errorf("installing coercion: %w", err)
	}
	coerce, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("installing coercion: not a function")
	}
	return &gojaRuntime{vm: vm, coerce: coerce}, nil
}

// gojaRuntime implements core.Runtime for goja.
type gojaRuntime struct {
	vm     *goja.Runtime
	coerce goja.Callable
	unit   *gojaUnit
}

// gojaUnit keeps the compiled program alongside its owner.
type gojaUnit struct {
	owner   *gojaRuntime
	label   string
	program *goja.Program
}

func (u *gojaUnit) Label() string { return u.label }

var _ core.Runtime = (*gojaRuntime)(nil)

// Compile compiles the script once. Programs hold no runtime state, so
// nothing of the script runs until Invoke.
func (r *gojaRuntime) Compile(label, source string) (core.Unit, error) {
	if r.vm == nil {
		return nil, core.ErrRuntimeClosed
	}
	if r.unit != nil {
		return nil, fmt.Errorf("runtime already holds unit %s", r.unit.label)
	}
	prg, err := goja.Compile(label, source, false)
	if err != nil {
		return nil, fmt.Errorf("goja: %w", err)
	}
	r.unit = &gojaUnit{owner: r, label: label, program: prg}
	return r.unit, nil
}

// Invoke runs the compiled program as a global script and coerces its
// completion value. goja unwinds its own exception state before RunProgram
// returns.
func (r *gojaRuntime) Invoke(u core.Unit) (string, error) {
	unit, ok := u.(*gojaUnit)
	if !ok || unit.owner != r {
		return "", core.ErrForeignUnit
	}
	if r.vm == nil {
		return "", core.ErrRuntimeClosed
	}
	v, err := r.vm.RunProgram(unit.program)
	if err != nil {
		return "", &core.ScriptError{Label: unit.label, Message: exceptionMessage(err)}
	}
	if v == nil {
		v = goja.Undefined()
	}
	s, err := r.coerce(goja.Undefined(), v)
	if err != nil {
		return "", &core.ScriptError{Label: unit.label, Message: exceptionMessage(err)}
	}
	return s.String(), nil
}

// Close drops the runtime. goja is garbage collected, so this only makes
// later calls fail.
func (r *gojaRuntime) Close() error {
	r.vm = nil
	r.coerce = nil
	r.unit = nil
	return nil
}

// exceptionMessage renders a thrown value the way the other engines do:
// "Error: message" followed by the throwing location.
func exceptionMessage(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Error()
	}
	return err.Error()
}
