package quickjs

import (
	"fmt"

	"github.com/cryguy/jshandler/internal/core"
	"modernc.org/quickjs"
)

// Backend creates QuickJS runtimes. It is the default backend.
type Backend struct{}

var _ core.Backend = Backend{}

// Name returns "quickjs".
func (Backend) Name() string { return "quickjs" }

// NewRuntime creates a single QuickJS VM and installs the console.
func (Backend) NewRuntime(cfg core.EngineConfig, logf core.LogFunc) (core.Runtime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}

	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimitMB) * 1024 * 1024)
	}

	if logf == nil {
		logf = func(string, string) {}
	}
	if err := vm.RegisterFunc(core.ConsoleFunc, func(level, message string) {
		logf(level, message)
	}, false); err != nil {
		vm.Close()
		return nil, fmt.Errorf("registering console: %w", err)
	}
	v, err := vm.EvalValue(core.ConsoleJS, quickjs.EvalGlobal)
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("installing console: %w", err)
	}
	v.Free()

	rt := &qjsRuntime{vm: vm}
	if cRuntime, tls, ok := extractRuntime(vm); ok {
		rt.cRuntime, rt.tls = cRuntime, tls
	}
	return rt, nil
}
