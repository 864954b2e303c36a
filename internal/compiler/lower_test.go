package compiler

import (
	"strings"
	"testing"
)

func TestLower(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"literal", `"hi"`, `"hi"`},
		{"comment inside parens", "var x = 1;\n( /* c */ x + 1)", "var x = 1;\n( /* c */ x + 1)"},
		{"hashbang", "#!/usr/bin/env node\n'shebang'", "#!/usr/bin/env node\n'shebang'"},
		{"trailing if", "if (ok) { 'a' } else { 'b' }", "if (ok) { 'a' } else { 'b' }"},
		{"let", "let n = 1;\nn", "var n = 1;\nn"},
		{"const keeps columns", `const s = "x"; s`, `var   s = "x"; s`},
		{"class", "class C { m() { return 1 } }\nnew C().m()", "var C = class C { m() { return 1 } }\nnew C().m()"},
		{"several", "let a = 1; const b = 2;\na + b", "var a = 1; var   b = 2;\na + b"},
		{"nested let untouched", "{ let x = 1; x }", "{ let x = 1; x }"},
		{"loop let untouched", "for (let i = 0; i < 2; i++) {}", "for (let i = 0; i < 2; i++) {}"},
		{"function let untouched", "function f() { const y = 2; return y }\nf()", "function f() { const y = 2; return y }\nf()"},
		{"let in string untouched", `var m = "let x"; m`, `var m = "let x"; m`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lower("test.js", tt.src)
			if err != nil {
				t.Fatalf("lower: %v", err)
			}
			if got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestLowerKeepsLineNumbers(t *testing.T) {
	src := "let a = 1;\nconst b = 2;\n\na + b\n"
	got, err := lower("test.js", src)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(got, "\n") != strings.Count(src, "\n") {
		t.Errorf("line count changed: %q", got)
	}
	lines := strings.Split(got, "\n")
	if lines[3] != "a + b" {
		t.Errorf("line 4 = %q", lines[3])
	}
}

func TestLowerRejectsInvalidSource(t *testing.T) {
	for _, src := range []string{
		"var = 1",
		"function (",
		"return 1",
		"}",
	} {
		if _, err := lower("test.js", src); err == nil {
			t.Errorf("lower(%q) accepted invalid source", src)
		}
	}
}
