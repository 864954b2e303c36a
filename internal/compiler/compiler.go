// Package compiler turns an entry script on disk into a unit bound to one
// engine runtime. It is called once per runtime context at worker startup.
package compiler

import (
	"fmt"
	"io"
	"os"

	"github.com/cryguy/jshandler/internal/core"
)

// Options controls the front-end checks applied before the engine sees the
// source.
type Options struct {
	// MaxSizeKB rejects larger scripts with a CompileError. 0 is unlimited.
	MaxSizeKB int
}

// Compile reads the script at path, lowers it into a global script that can
// run once per request, and compiles that into rt.
//
// A script that cannot be opened or read yields *core.ConfigError without
// touching rt. Transform, parse and engine failures yield
// *core.CompileError. On success the unit stays attached to rt for the rest
// of its life.
func Compile(rt core.Runtime, path string, opts Options) (core.Unit, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, &core.ConfigError{Path: path, Err: err}
	}
	if opts.MaxSizeKB > 0 && len(src) > opts.MaxSizeKB*1024 {
		return nil, &core.CompileError{
			Path: path,
			Err:  fmt.Errorf("script is %d bytes, limit is %d KB", len(src), opts.MaxSizeKB),
		}
	}

	lowered, err := Lower(path, src)
	if err != nil {
		return nil, &core.CompileError{Path: path, Err: err}
	}

	unit, err := rt.Compile(path, lowered)
	if err != nil {
		return nil, &core.CompileError{Path: path, Err: err}
	}
	return unit, nil
}

// Lower runs the front end alone: optional TypeScript/JSX transform, parse
// check and lowering. The result is plain JavaScript whose completion value
// is the script's response body.
func Lower(path, src string) (string, error) {
	if loader, ok := loaderFor(path); ok {
		js, err := transform(path, src, loader)
		if err != nil {
			return "", err
		}
		src = js
	}
	return lower(path, src)
}

// readSource reads the whole file. The handle is closed before returning
// whatever the outcome.
func readSource(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
