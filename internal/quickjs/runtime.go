package quickjs

import (
	"fmt"

	"github.com/cryguy/jshandler/internal/core"
	"modernc.org/libc"
	"modernc.org/quickjs"
)

// qjsRuntime implements core.Runtime for the QuickJS engine.
type qjsRuntime struct {
	vm   *quickjs.VM
	unit *qjsUnit

	// cached from VM internals for draining the job queue; zero when the
	// struct layout of modernc.org/quickjs could not be read.
	cRuntime uintptr
	tls      *libc.TLS
}

// qjsUnit is the compiled entry script of one qjsRuntime.
type qjsUnit struct {
	owner    *qjsRuntime
	label    string
	bytecode []byte
}

func (u *qjsUnit) Label() string { return u.label }

var _ core.Runtime = (*qjsRuntime)(nil)

// Compile parses the script once into QuickJS bytecode. Nothing of the script
// runs here.
func (r *qjsRuntime) Compile(label, source string) (core.Unit, error) {
	if r.vm == nil {
		return nil, core.ErrRuntimeClosed
	}
	if r.unit != nil {
		return nil, fmt.Errorf("runtime already holds unit %s", r.unit.label)
	}
	code, err := r.vm.Compile(source, quickjs.EvalGlobal)
	if err != nil {
		return nil, fmt.Errorf("QuickJS: %w", err)
	}
	r.unit = &qjsUnit{owner: r, label: label, bytecode: code}
	return r.unit, nil
}

// Invoke evaluates the unit's bytecode as a global script and coerces its
// completion value. The Go wrapper fetches (and thereby clears) the pending
// exception before returning an error.
func (r *qjsRuntime) Invoke(u core.Unit) (string, error) {
	unit, ok := u.(*qjsUnit)
	if !ok || unit.owner != r {
		return "", core.ErrForeignUnit
	}
	if r.vm == nil {
		return "", core.ErrRuntimeClosed
	}
	v, err := r.vm.EvalBytecodeValue(unit.bytecode)
	if err != nil {
		r.drainJobs()
		return "", &core.ScriptError{Label: unit.label, Message: err.Error()}
	}
	result, err := r.vm.Call(core.CoerceJS, v)
	v.Free()
	r.drainJobs()
	if err != nil {
		return "", &core.ScriptError{Label: unit.label, Message: err.Error()}
	}
	s, _ := result.(string)
	return s, nil
}

// Close frees the VM and with it the compiled unit.
func (r *qjsRuntime) Close() error {
	if r.vm == nil {
		return nil
	}
	r.vm.Close()
	r.vm = nil
	r.unit = nil
	r.tls = nil
	return nil
}

// drainJobs runs the microtasks (Promise reactions) a run left queued so
// they do not leak into the next request.
func (r *qjsRuntime) drainJobs() {
	if r.tls == nil {
		return
	}
	executePendingJobs(r.cRuntime, r.tls)
}
