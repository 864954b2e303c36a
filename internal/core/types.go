package core

import (
	"errors"
	"fmt"
)

// ErrForeignUnit is returned by Runtime.Invoke for a unit compiled by a
// different runtime instance.
var ErrForeignUnit = errors.New("unit was compiled by a different runtime")

// ErrRuntimeClosed is returned by a Runtime after Close.
var ErrRuntimeClosed = errors.New("runtime is closed")

// ConfigError reports a script that could not be opened or read at worker
// startup.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("opening script %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CompileError reports a script that was read but could not be turned into
// an executable unit: transform, parse or engine compile failure.
type CompileError struct {
	Path string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling script %s: %v", e.Path, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// ScriptError is a value thrown by a script during Invoke, already detached
// from the engine that raised it.
type ScriptError struct {
	Label   string
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s raised: %s", e.Label, e.Message)
}
