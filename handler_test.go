package jshandler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHelloWorld(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, _ *syncBuffer) {
		c := startContext(t, h, `"Hello, world!"`)
		if c.State() != StateReady {
			t.Fatalf("state = %s, err = %v", c.State(), c.Err())
		}
		resp := h.OnRequest(c, httptest.NewRequest(http.MethodGet, "/test", nil))
		if resp.Status != http.StatusOK || resp.StatusText != "OK" || resp.Body != "Hello, world!" {
			t.Errorf("resp = %+v", resp)
		}
	})
}

func TestNumberAndEmptyBodies(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`var a = 6; a * 7`, "42"},
		{`var nothing = 1;`, ""},
		{`null`, ""},
		{`undefined`, ""},
		{`["a", "b"]`, "a,b"},
		{`function f() { return "from f"; }\nf()`, "from f"},
	}
	eachBackend(t, func(t *testing.T, h *Handler, _ *syncBuffer) {
		for _, tt := range tests {
			c := startContext(t, h, strings.ReplaceAll(tt.src, `\n`, "\n"))
			resp := h.OnRequest(c, nil)
			if resp.Status != http.StatusOK || resp.Body != tt.want {
				t.Errorf("%s: resp = %+v, want body %q", tt.src, resp, tt.want)
			}
		}
	})
}

func TestThrowIsGeneric500(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, logs *syncBuffer) {
		c := startContext(t, h, `throw new Error("secret detail")`)
		req := httptest.NewRequest(http.MethodGet, "/test/x", nil)
		req.Header.Set("X-Request-Id", "req-123")
		resp := h.OnRequest(c, req)
		if resp.Status != http.StatusInternalServerError {
			t.Fatalf("status = %d", resp.Status)
		}
		if resp.StatusText != "Internal Server Error" || resp.Body != "Internal Server Error" {
			t.Errorf("resp = %+v", resp)
		}
		if strings.Contains(resp.Body, "secret") {
			t.Error("exception text leaked into the body")
		}
		out := logs.String()
		for _, want := range []string{"script raised", "secret detail", "request_id=req-123", "method=GET"} {
			if !strings.Contains(out, want) {
				t.Errorf("log missing %q:\n%s", want, out)
			}
		}
	})
}

func TestMissingScriptIsConfigError(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, logs *syncBuffer) {
		path := filepath.Join(t.TempDir(), "nope.js")
		reg := Register("/missing", path)
		c := h.OnWorkerStart(reg)
		defer h.OnWorkerStop(c)

		if c.State() != StateBroken {
			t.Fatalf("state = %s, want broken", c.State())
		}
		var ce *ConfigError
		if !errors.As(c.Err(), &ce) {
			t.Fatalf("Err() = %v (%T), want *ConfigError", c.Err(), c.Err())
		}
		if !errors.Is(c.Err(), os.ErrNotExist) {
			t.Errorf("Err() should carry the OS error: %v", c.Err())
		}
		if !strings.Contains(logs.String(), "nope.js") {
			t.Errorf("startup log should name the path:\n%s", logs.String())
		}
		for i := 0; i < 3; i++ {
			if resp := h.OnRequest(c, nil); resp.Status != http.StatusInternalServerError {
				t.Fatalf("request %d: status = %d", i, resp.Status)
			}
		}
	})
}

func TestSyntaxErrorIsCompileError(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, logs *syncBuffer) {
		c := startContext(t, h, "var x = ;")
		if c.State() != StateBroken {
			t.Fatalf("state = %s", c.State())
		}
		var ce *CompileError
		if !errors.As(c.Err(), &ce) {
			t.Fatalf("Err() = %v, want *CompileError", c.Err())
		}
		if resp := h.OnRequest(c, nil); resp.Status != http.StatusInternalServerError || resp.Body != "Internal Server Error" {
			t.Errorf("resp = %+v", resp)
		}
		if !strings.Contains(logs.String(), "script startup failed") {
			t.Errorf("compile failure not logged:\n%s", logs.String())
		}
	})
}

func TestNilContext(t *testing.T) {
	h, _ := newTestHandler(t, "goja")
	resp := h.OnRequest(nil, nil)
	if resp.Status != http.StatusInternalServerError {
		t.Errorf("status = %d", resp.Status)
	}
	if _, err := (*RuntimeContext)(nil).Invoke(); !errors.Is(err, ErrBrokenContext) {
		t.Errorf("err = %v", err)
	}
	h.OnWorkerStop(nil)
}

func TestConsoleGoesToLogger(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *Handler, logs *syncBuffer) {
		c := startContext(t, h, `console.warn("careful", 1); "ok"`)
		if resp := h.OnRequest(c, nil); resp.Body != "ok" {
			t.Fatalf("resp = %+v", resp)
		}
		out := logs.String()
		if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="careful 1"`) || !strings.Contains(out, "source=script") {
			t.Errorf("console output not logged:\n%s", out)
		}
	})
}

func TestUnknownBackend(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Backend = "rhino"
	if _, err := NewHandler(cfg, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestDefaultBackend(t *testing.T) {
	h, err := NewHandler(EngineConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if h.Backend() != DefaultBackend {
		t.Errorf("Backend() = %q", h.Backend())
	}
	names := Backends()
	for _, want := range testBackends {
		found := false
		for _, n := range names {
			found = found || n == want
		}
		if !found {
			t.Errorf("Backends() = %v, missing %s", names, want)
		}
	}
}

func TestCheck(t *testing.T) {
	cfg := DefaultEngineConfig()
	if err := Check(cfg, writeScript(t, "ok.js", `"fine"`)); err != nil {
		t.Errorf("Check(valid) = %v", err)
	}
	var ce *CompileError
	if err := Check(cfg, writeScript(t, "bad.js", `(`)); !errors.As(err, &ce) {
		t.Errorf("Check(invalid) = %v, want *CompileError", err)
	}
	var cfgErr *ConfigError
	if err := Check(cfg, filepath.Join(t.TempDir(), "none.js")); !errors.As(err, &cfgErr) {
		t.Errorf("Check(missing) = %v, want *ConfigError", err)
	}
}

func TestOnUnregisterIsIdempotent(t *testing.T) {
	h, _ := newTestHandler(t, "goja")
	reg := Register("/a", "a.js")
	h.OnUnregister(reg)
	h.OnUnregister(reg)
	h.OnUnregister(nil)
	if !reg.Disposed() {
		t.Error("registration not disposed")
	}
}
