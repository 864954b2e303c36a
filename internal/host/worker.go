package host

import (
	"log/slog"
	"net/http"
	"runtime"

	"github.com/cryguy/jshandler"
)

// job is one request queued on a worker.
type job struct {
	reg   *jshandler.Registration
	req   *http.Request
	reply chan jshandler.Response
}

// worker owns one runtime context per registration and runs every request
// of the connections assigned to it, one at a time, on a single OS thread.
type worker struct {
	id      int
	handler *jshandler.Handler
	regs    []*jshandler.Registration
	logger  *slog.Logger

	jobs     chan job
	quit     chan struct{}
	started  chan struct{}
	done     chan struct{}
	contexts map[*jshandler.Registration]*jshandler.RuntimeContext
}

func newWorker(id int, h *jshandler.Handler, regs []*jshandler.Registration, quit chan struct{}, logger *slog.Logger) *worker {
	return &worker{
		id:       id,
		handler:  h,
		regs:     regs,
		logger:   logger.With("worker", id),
		jobs:     make(chan job),
		quit:     quit,
		started:  make(chan struct{}),
		done:     make(chan struct{}),
		contexts: make(map[*jshandler.Registration]*jshandler.RuntimeContext, len(regs)),
	}
}

// run is the worker goroutine. Engines that keep thread-local state (V8,
// the C runtime behind QuickJS) see one thread for the worker's lifetime.
func (w *worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	for _, reg := range w.regs {
		c := w.handler.OnWorkerStart(reg)
		w.contexts[reg] = c
		if c.State() != jshandler.StateReady {
			w.logger.Warn("route unavailable on worker", "route", reg.Route(), "state", c.State().String())
		}
	}
	close(w.started)

	for {
		select {
		case j := <-w.jobs:
			j.reply <- w.handler.OnRequest(w.contexts[j.reg], j.req)
		case <-w.quit:
			for _, reg := range w.regs {
				w.handler.OnWorkerStop(w.contexts[reg])
			}
			w.logger.Debug("worker stopped")
			return
		}
	}
}
