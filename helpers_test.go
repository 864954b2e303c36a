package jshandler

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// testBackends are the engines built without tags.
var testBackends = []string{"quickjs", "goja"}

// syncBuffer lets worker goroutines log into one buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestHandler(t *testing.T, backend string) (*Handler, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	cfg := DefaultEngineConfig()
	cfg.Backend = backend
	h, err := NewHandler(cfg, slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h, logs
}

func writeScript(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// startContext registers src under /test and starts one context for it,
// stopping it when the test ends.
func startContext(t *testing.T, h *Handler, src string) *RuntimeContext {
	t.Helper()
	reg := Register("/test", writeScript(t, "script.js", src))
	c := h.OnWorkerStart(reg)
	t.Cleanup(func() { h.OnWorkerStop(c) })
	return c
}

func eachBackend(t *testing.T, fn func(t *testing.T, h *Handler, logs *syncBuffer)) {
	for _, name := range testBackends {
		t.Run(name, func(t *testing.T) {
			h, logs := newTestHandler(t, name)
			fn(t, h, logs)
		})
	}
}
