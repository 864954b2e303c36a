package jshandler

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/cryguy/jshandler/internal/compiler"
	"github.com/cryguy/jshandler/internal/core"
)

const counterScript = "var counter = (typeof counter === 'number' ? counter : 0) + 1;\ncounter"

func TestCompileOncePerContext(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, _ *syncBuffer) {
		var mu sync.Mutex
		compiles := 0
		h.compile = func(rt core.Runtime, path string, opts compiler.Options) (core.Unit, error) {
			mu.Lock()
			compiles++
			mu.Unlock()
			return compiler.Compile(rt, path, opts)
		}
		c := startContext(t, h, `"x"`)
		for i := 0; i < 50; i++ {
			if resp := h.OnRequest(c, nil); resp.Status != http.StatusOK {
				t.Fatalf("request %d: %+v", i, resp)
			}
		}
		if compiles != 1 {
			t.Errorf("compiled %d times, want 1", compiles)
		}
	})
}

func TestContextsAreIsolated(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, _ *syncBuffer) {
		reg := Register("/count", writeScript(t, "count.js", counterScript))
		a := h.OnWorkerStart(reg)
		b := h.OnWorkerStart(reg)
		defer h.OnWorkerStop(a)
		defer h.OnWorkerStop(b)

		if a.rt == b.rt {
			t.Fatal("contexts share a runtime")
		}
		for i := 1; i <= 3; i++ {
			if got := h.OnRequest(a, nil).Body; got != strconv.Itoa(i) {
				t.Fatalf("a request %d: body %q", i, got)
			}
		}
		if got := h.OnRequest(b, nil).Body; got != "1" {
			t.Errorf("b saw a's globals: body %q", got)
		}
	})
}

func TestGlobalMutationStrictlyIncreases(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, _ *syncBuffer) {
		c := startContext(t, h, counterScript)
		prev := 0
		for i := 0; i < 20; i++ {
			n, err := strconv.Atoi(h.OnRequest(c, nil).Body)
			if err != nil {
				t.Fatal(err)
			}
			if n <= prev {
				t.Fatalf("counter went from %d to %d", prev, n)
			}
			prev = n
		}
	})
}

func TestConcurrentWorkersDoNotInterfere(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, _ *syncBuffer) {
		good := Register("/good", writeScript(t, "good.js", counterScript))
		bad := Register("/bad", writeScript(t, "bad.js", `throw new Error("always")`))

		const workers = 4
		const requests = 25
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				gc := h.OnWorkerStart(good)
				bc := h.OnWorkerStart(bad)
				defer h.OnWorkerStop(gc)
				defer h.OnWorkerStop(bc)
				for i := 1; i <= requests; i++ {
					if resp := h.OnRequest(bc, nil); resp.Status != http.StatusInternalServerError {
						errs <- errors.New("raising script returned " + strconv.Itoa(resp.Status))
						return
					}
					if resp := h.OnRequest(gc, nil); resp.Body != strconv.Itoa(i) {
						errs <- errors.New("counter request " + strconv.Itoa(i) + " returned " + resp.Body)
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})
}

func TestWorkerStopIsIdempotent(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, _ *syncBuffer) {
		reg := Register("/t", writeScript(t, "t.js", `"t"`))
		c := h.OnWorkerStart(reg)
		h.OnWorkerStop(c)
		h.OnWorkerStop(c)
		if c.State() != StateDisposed {
			t.Errorf("state = %s", c.State())
		}
		if resp := h.OnRequest(c, nil); resp.Status != http.StatusInternalServerError {
			t.Errorf("request after stop: %+v", resp)
		}

		broken := h.OnWorkerStart(Register("/b", "/does/not/exist.js"))
		h.OnWorkerStop(broken)
		h.OnWorkerStop(broken)
		if broken.State() != StateDisposed {
			t.Errorf("broken state = %s", broken.State())
		}

		h.OnWorkerStop(&RuntimeContext{})
	})
}

type failingBackend struct{}

func (failingBackend) Name() string { return "failing" }

func (failingBackend) NewRuntime(core.EngineConfig, core.LogFunc) (core.Runtime, error) {
	return nil, errors.New("out of isolates")
}

func TestRuntimeAllocationFailure(t *testing.T) {
	h, logs := newTestHandler(t, "goja")
	h.backend = failingBackend{}
	c := h.OnWorkerStart(Register("/x", "x.js"))
	if c.State() != StateBroken || c.Err() == nil {
		t.Fatalf("state = %s, err = %v", c.State(), c.Err())
	}
	if resp := h.OnRequest(c, nil); resp.Status != http.StatusInternalServerError {
		t.Errorf("resp = %+v", resp)
	}
	h.OnWorkerStop(c)
	if c.State() != StateDisposed {
		t.Errorf("state after stop = %s", c.State())
	}
	if logs.String() == "" {
		t.Error("allocation failure not logged")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateUninitialized: "uninitialized",
		StateCompiling:     "compiling",
		StateReady:         "ready",
		StateBroken:        "broken",
		StateDisposed:      "disposed",
		State(42):          "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
