// Package enginetest holds the behavior every core.Backend must share. Each
// backend package runs it from its own tests.
package enginetest

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/cryguy/jshandler/internal/compiler"
	"github.com/cryguy/jshandler/internal/core"
)

// Run exercises b against the core.Runtime contract.
func Run(t *testing.T, b core.Backend) {
	t.Run("ReturnsCompletionValue", func(t *testing.T) { testReturnsCompletionValue(t, b) })
	t.Run("CoercesToString", func(t *testing.T) { testCoercesToString(t, b) })
	t.Run("ThrowIsScriptError", func(t *testing.T) { testThrowIsScriptError(t, b) })
	t.Run("ExceptionStateCleared", func(t *testing.T) { testExceptionStateCleared(t, b) })
	t.Run("TrailingStatementCompletion", func(t *testing.T) { testTrailingStatementCompletion(t, b) })
	t.Run("ThrowingToString", func(t *testing.T) { testThrowingToString(t, b) })
	t.Run("GlobalsPersist", func(t *testing.T) { testGlobalsPersist(t, b) })
	t.Run("TopLevelVarPersists", func(t *testing.T) { testTopLevelVarPersists(t, b) })
	t.Run("LoweredLexicalsRerun", func(t *testing.T) { testLoweredLexicalsRerun(t, b) })
	t.Run("Hashbang", func(t *testing.T) { testHashbang(t, b) })
	t.Run("CommentInsideParens", func(t *testing.T) { testCommentInsideParens(t, b) })
	t.Run("CompileDoesNotRun", func(t *testing.T) { testCompileDoesNotRun(t, b) })
	t.Run("SecondCompileRejected", func(t *testing.T) { testSecondCompileRejected(t, b) })
	t.Run("ForeignUnitRejected", func(t *testing.T) { testForeignUnitRejected(t, b) })
	t.Run("EngineSyntaxError", func(t *testing.T) { testEngineSyntaxError(t, b) })
	t.Run("Console", func(t *testing.T) { testConsole(t, b) })
	t.Run("CloseIsIdempotent", func(t *testing.T) { testCloseIsIdempotent(t, b) })
	t.Run("IndependentRuntimes", func(t *testing.T) { testIndependentRuntimes(t, b) })
}

// NewRuntime creates a runtime from b and closes it when the test ends.
func NewRuntime(t *testing.T, b core.Backend, logf core.LogFunc) core.Runtime {
	t.Helper()
	rt, err := b.NewRuntime(core.EngineConfig{Backend: b.Name(), MemoryLimitMB: 64}, logf)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

// Compile binds a script to rt under the label test.js.
func Compile(t *testing.T, rt core.Runtime, src string) core.Unit {
	t.Helper()
	u, err := rt.Compile("test.js", src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return u
}

// Invoke runs u and fails the test on error.
func Invoke(t *testing.T, rt core.Runtime, u core.Unit) string {
	t.Helper()
	out, err := rt.Invoke(u)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	return out
}

func testReturnsCompletionValue(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	u := Compile(t, rt, `("Hello, world!");`)
	if got := Invoke(t, rt, u); got != "Hello, world!" {
		t.Errorf("body = %q, want %q", got, "Hello, world!")
	}
	if u.Label() != "test.js" {
		t.Errorf("Label() = %q, want test.js", u.Label())
	}
}

func testCoercesToString(t *testing.T, b core.Backend) {
	tests := []struct {
		src  string
		want string
	}{
		{`42`, "42"},
		{`true`, "true"},
		{`undefined`, ""},
		{`null`, ""},
		{``, ""},
		{`var x = 1;`, ""},
		{`function f() { return 1; }`, ""},
		{`[1, 2, 3]`, "1,2,3"},
		{`2 ** 40`, "1099511627776"},
		{`({ toString: function() { return "custom"; } })`, "custom"},
	}
	for _, tt := range tests {
		rt := NewRuntime(t, b, nil)
		u := Compile(t, rt, tt.src)
		if got := Invoke(t, rt, u); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.src, got, tt.want)
		}
	}
}

func testTrailingStatementCompletion(t *testing.T, b core.Backend) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"if", "var ok = true;\nif (ok) { 'then-branch' } else { 'else-branch' }", "then-branch"},
		{"else", "var ok = false;\nif (ok) { 'then-branch' } else { 'else-branch' }", "else-branch"},
		{"try/catch", "try { JSON.parse('{') } catch (e) { 'fallback' }", "fallback"},
		{"try", "try { 'parsed' } catch (e) { 'fallback' }", "parsed"},
		{"block", "{ 'in block' }", "in block"},
		{"labelled", "outer: { 'labelled' }", "labelled"},
		{"trailing var", "'kept'; var unused = 1;", "kept"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := NewRuntime(t, b, nil)
			u := Compile(t, rt, tt.src)
			for i := 0; i < 2; i++ {
				if got := Invoke(t, rt, u); got != tt.want {
					t.Fatalf("call %d: got %q, want %q", i, got, tt.want)
				}
			}
		})
	}
}

func testThrowingToString(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	u := Compile(t, rt, `({ toString: function() { throw new Error("no string"); } })`)
	_, err := rt.Invoke(u)
	var se *core.ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v (%T), want *core.ScriptError", err, err)
	}
	if !strings.Contains(se.Message, "no string") {
		t.Errorf("message = %q", se.Message)
	}
}

func testThrowIsScriptError(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	u := Compile(t, rt, `throw new Error("boom");`)
	_, err := rt.Invoke(u)
	var se *core.ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v (%T), want *core.ScriptError", err, err)
	}
	if !strings.Contains(se.Message, "boom") {
		t.Errorf("message = %q, should mention boom", se.Message)
	}
	if se.Label != "test.js" {
		t.Errorf("label = %q, want test.js", se.Label)
	}
}

func testExceptionStateCleared(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	u := Compile(t, rt, `
globalThis.calls = (globalThis.calls || 0) + 1;
if (globalThis.calls % 2 === 1) throw new Error("odd call");
"even " + globalThis.calls;
`)
	for i := 1; i <= 6; i++ {
		out, err := rt.Invoke(u)
		if i%2 == 1 {
			if err == nil {
				t.Fatalf("call %d: expected error, got %q", i, out)
			}
			continue
		}
		if err != nil {
			t.Fatalf("call %d: stale exception leaked: %v", i, err)
		}
		if want := "even " + strconv.Itoa(i); out != want {
			t.Errorf("call %d: got %q, want %q", i, out, want)
		}
	}
}

func testGlobalsPersist(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	u := Compile(t, rt, `
globalThis.counter = (globalThis.counter || 0) + 1;
globalThis.counter;
`)
	for i := 1; i <= 5; i++ {
		if got := Invoke(t, rt, u); got != strconv.Itoa(i) {
			t.Fatalf("call %d: got %q", i, got)
		}
	}
}

func testTopLevelVarPersists(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	u := Compile(t, rt, "var n = (typeof n === 'number' ? n : 0) + 1;\nn")
	for i := 1; i <= 3; i++ {
		if got := Invoke(t, rt, u); got != strconv.Itoa(i) {
			t.Fatalf("call %d: got %q, want %d", i, got, i)
		}
	}
}

func testLoweredLexicalsRerun(t *testing.T, b core.Backend) {
	src, err := compiler.Lower("test.js", `
let hits = (typeof hits === 'number' ? hits : 0) + 1;
const prefix = "hit ";
class Greeter { greet(n) { return prefix + n; } }
new Greeter().greet(hits);
`)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	rt := NewRuntime(t, b, nil)
	u := Compile(t, rt, src)
	for i := 1; i <= 3; i++ {
		if got := Invoke(t, rt, u); got != "hit "+strconv.Itoa(i) {
			t.Fatalf("call %d: got %q", i, got)
		}
	}
}

func testHashbang(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	u := Compile(t, rt, "#!/usr/bin/env node\n'shebang'")
	if got := Invoke(t, rt, u); got != "shebang" {
		t.Errorf("got %q, want shebang", got)
	}
}

func testCommentInsideParens(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	u := Compile(t, rt, "var x = 1;\n( /* c */ x + 1)")
	if got := Invoke(t, rt, u); got != "2" {
		t.Errorf("got %q, want 2", got)
	}
}

func testCompileDoesNotRun(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	u := Compile(t, rt, `
globalThis.ran = (globalThis.ran || 0) + 1;
globalThis.ran;
`)
	if got := Invoke(t, rt, u); got != "1" {
		t.Errorf("first invoke saw ran = %q, compile must not execute the script", got)
	}
}

func testSecondCompileRejected(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	Compile(t, rt, `1`)
	if _, err := rt.Compile("again.js", `2`); err == nil {
		t.Fatal("second Compile on one runtime should fail")
	}
}

func testForeignUnitRejected(t *testing.T, b core.Backend) {
	rt1 := NewRuntime(t, b, nil)
	rt2 := NewRuntime(t, b, nil)
	u1 := Compile(t, rt1, `1`)
	Compile(t, rt2, `2`)
	if _, err := rt2.Invoke(u1); !errors.Is(err, core.ErrForeignUnit) {
		t.Fatalf("err = %v, want ErrForeignUnit", err)
	}
}

func testEngineSyntaxError(t *testing.T, b core.Backend) {
	rt := NewRuntime(t, b, nil)
	if _, err := rt.Compile("bad.js", `(1 + ;`); err == nil {
		t.Fatal("engine accepted invalid source")
	}
}

func testConsole(t *testing.T, b core.Backend) {
	var mu sync.Mutex
	var lines []string
	rt := NewRuntime(t, b, func(level, message string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, level+" "+message)
	})
	u := Compile(t, rt, `
console.log("hello", 1, {a: 1});
console.error(new Error("bad"));
typeof globalThis.`+core.ConsoleFunc+`;
`)
	if got := Invoke(t, rt, u); got != "undefined" {
		t.Errorf("console bridge should not stay on globalThis, typeof = %q", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want 2 entries", lines)
	}
	if lines[0] != `log hello 1 {"a":1}` {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "error Error: bad") {
		t.Errorf("lines[1] = %q", lines[1])
	}
}

func testCloseIsIdempotent(t *testing.T, b core.Backend) {
	rt, err := b.NewRuntime(core.EngineConfig{Backend: b.Name()}, nil)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	u := Compile(t, rt, `1`)
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := rt.Invoke(u); err == nil {
		t.Fatal("Invoke after Close should fail")
	}
}

func testIndependentRuntimes(t *testing.T, b core.Backend) {
	const src = `
var counter = (typeof counter === 'number' ? counter : 0) + 1;
if (counter === 2) throw new Error("second");
counter;
`
	const workers = 4
	const calls = 20

	var wg sync.WaitGroup
	errs := make(chan string, workers)
	for w := 0; w < workers; w++ {
		rt, err := b.NewRuntime(core.EngineConfig{Backend: b.Name()}, nil)
		if err != nil {
			t.Fatalf("NewRuntime: %v", err)
		}
		t.Cleanup(func() { _ = rt.Close() })
		u, err := rt.Compile("test.js", src)
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= calls; i++ {
				out, err := rt.Invoke(u)
				switch {
				case i == 2 && err == nil:
					errs <- "call 2 should have raised"
					return
				case i != 2 && err != nil:
					errs <- "call " + strconv.Itoa(i) + ": " + err.Error()
					return
				case i != 2 && out != strconv.Itoa(i):
					errs <- "call " + strconv.Itoa(i) + ": got " + out
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}
