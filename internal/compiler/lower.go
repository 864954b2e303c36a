package compiler

import (
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"
)

// lower parses src and makes it safe to run as a global script more than
// once. Running a script again would redeclare its top-level let, const and
// class bindings, which every engine rejects, so those declarations become
// var bindings on the global object:
//
//	let n = 1       ->  var n = 1
//	const s = "x"   ->  var   s = "x"
//	class C {}      ->  var C = class C {}
//
// Nothing else changes: hashbang lines, comments and the script's own
// completion value are left to the engine. Lines are never added or removed,
// so diagnostics point at the script as written.
func lower(path, src string) (string, error) {
	prg, err := parser.ParseFile(nil, path, src, 0, parser.WithDisableSourceMaps)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}

	var edits []edit
	for _, stmt := range prg.Body {
		switch s := stmt.(type) {
		case *ast.LexicalDeclaration:
			at := offset(s.Idx)
			switch s.Token {
			case token.LET:
				edits = append(edits, edit{at: at, cut: len("let"), text: "var"})
			case token.CONST:
				edits = append(edits, edit{at: at, cut: len("const"), text: "var  "})
			}
		case *ast.ClassDeclaration:
			if s.Class == nil || s.Class.Name == nil {
				continue
			}
			at := offset(s.Class.Class)
			edits = append(edits, edit{at: at, text: "var " + s.Class.Name.Name.String() + " = "})
		}
	}
	return apply(src, edits), nil
}

// edit replaces cut bytes at a byte offset with text.
type edit struct {
	at   int
	cut  int
	text string
}

// offset turns a parser position into a byte offset. Positions are 1-based
// with a nil file set.
func offset(idx file.Idx) int { return int(idx) - 1 }

// apply performs edits, which must be sorted by offset and not overlap.
// An edit whose offset falls outside src is skipped.
func apply(src string, edits []edit) string {
	if len(edits) == 0 {
		return src
	}
	var b strings.Builder
	b.Grow(len(src) + 16*len(edits))
	last := 0
	for _, e := range edits {
		if e.at < last || e.at+e.cut > len(src) {
			continue
		}
		b.WriteString(src[last:e.at])
		b.WriteString(e.text)
		last = e.at + e.cut
	}
	b.WriteString(src[last:])
	return b.String()
}
