package jshandler

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/cryguy/jshandler/internal/core"
)

func TestExceptionDoesNotPoisonNextRun(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, _ *syncBuffer) {
		c := startContext(t, h, `
globalThis.n = (globalThis.n || 0) + 1;
if (globalThis.n === 1) throw new Error("first run fails");
"run " + globalThis.n
`)
		first, err := c.Invoke()
		if err != nil {
			t.Fatal(err)
		}
		if !first.Raised() || !strings.Contains(first.Err.Message, "first run fails") {
			t.Fatalf("first = %+v", first)
		}
		second, err := c.Invoke()
		if err != nil {
			t.Fatal(err)
		}
		if second.Raised() || second.Value != "run 2" {
			t.Fatalf("second = %+v, err = %v", second, second.Err)
		}
	})
}

func TestTopLevelBindingsPersistPerWorker(t *testing.T) {
	scripts := map[string]string{
		"var":   "var n = (typeof n === 'number' ? n : 0) + 1;\nn",
		"let":   "let n = (typeof n === 'number' ? n : 0) + 1;\nn",
		"const": "const n = (typeof n === 'number' ? n : 0) + 1;\nn",
	}
	eachBackend(t, func(t *testing.T, h *Handler, _ *syncBuffer) {
		for kind, src := range scripts {
			t.Run(kind, func(t *testing.T) {
				reg := Register("/n", writeScript(t, "n.js", src))
				a := h.OnWorkerStart(reg)
				b := h.OnWorkerStart(reg)
				defer h.OnWorkerStop(a)
				defer h.OnWorkerStop(b)
				for i := 1; i <= 3; i++ {
					if got := h.OnRequest(a, nil).Body; got != strconv.Itoa(i) {
						t.Fatalf("worker a, run %d: %q", i, got)
					}
				}
				if got := h.OnRequest(b, nil).Body; got != "1" {
					t.Errorf("worker b saw worker a's binding: %q", got)
				}
			})
		}
	})
}

func TestScriptShapesRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"comment inside parens", "var x = 1;\n( /* c */ x + 1)", "2"},
		{"hashbang", "#!/usr/bin/env node\n'shebang'", "shebang"},
		{"trailing if", "var ok = true;\nif (ok) { 'then-branch' } else { 'else-branch' }", "then-branch"},
		{"trailing try", "try { JSON.parse('{') } catch (e) { 'fallback' }", "fallback"},
		{"class", "class Box { constructor(v) { this.v = v } }\nnew Box('boxed').v", "boxed"},
	}
	eachBackend(t, func(t *testing.T, h *Handler, _ *syncBuffer) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c := startContext(t, h, tt.src)
				if err := c.Err(); err != nil {
					t.Fatalf("start: %v", err)
				}
				for i := 0; i < 2; i++ {
					resp := h.OnRequest(c, nil)
					if resp.Status != http.StatusOK || resp.Body != tt.want {
						t.Fatalf("run %d: %+v, want body %q", i, resp, tt.want)
					}
				}
			})
		}
	})
}

// panickingRuntime stands in for a backend bug.
type panickingRuntime struct{}

type stubUnit struct{}

func (stubUnit) Label() string { return "stub.js" }

func (panickingRuntime) Compile(string, string) (core.Unit, error) { return stubUnit{}, nil }
func (panickingRuntime) Invoke(core.Unit) (string, error)          { panic("engine bug") }
func (panickingRuntime) Close() error                              { return nil }

func TestBackendPanicBecomesScriptError(t *testing.T) {
	h, logs := newTestHandler(t, "goja")
	c := &RuntimeContext{
		reg:    Register("/p", "stub.js"),
		rt:     panickingRuntime{},
		unit:   stubUnit{},
		state:  StateReady,
		logger: h.logger,
	}
	resp := h.OnRequest(c, nil)
	if resp.Status != http.StatusInternalServerError {
		t.Fatalf("resp = %+v", resp)
	}
	if !strings.Contains(logs.String(), "engine bug") {
		t.Errorf("panic not logged:\n%s", logs.String())
	}
	if c.State() != StateReady {
		t.Errorf("state = %s", c.State())
	}
}

func TestRegistrationCopiesStrings(t *testing.T) {
	route := []byte("/r")
	path := []byte("r.js")
	reg := Register(string(route), string(path))
	route[0], path[0] = 'x', 'x'
	if reg.Route() != "/r" || reg.Path() != "r.js" {
		t.Errorf("reg = %q %q", reg.Route(), reg.Path())
	}
}
