package core

// Runtime is one instance of an embedded JavaScript engine: its heap, call
// stack and pending-exception slot. A Runtime is not safe for concurrent
// use; the RuntimeContext that owns it serializes every call.
type Runtime interface {
	// Compile compiles a global script (as produced by the compiler
	// package) once and returns the executable unit. Nothing of the script
	// runs. label names the source in diagnostics. A runtime holds at most
	// one unit.
	Compile(label, source string) (Unit, error)

	// Invoke runs a unit produced by this runtime's Compile as a global
	// script to completion and returns its completion value coerced to a
	// string. A value thrown by the
	// script is returned as *ScriptError. The engine's exception state is
	// clear when Invoke returns, whatever the outcome.
	Invoke(u Unit) (string, error)

	// Close releases the engine instance and the unit compiled against it.
	Close() error
}

// Unit is an executable script bound to the Runtime that compiled it. Units
// are not portable: passing one to another Runtime's Invoke returns
// ErrForeignUnit.
type Unit interface {
	Label() string
}

// LogFunc receives console output produced by a script.
type LogFunc func(level, message string)
