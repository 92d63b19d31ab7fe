package engine

import (
	"fmt"
	"os"

	"github.com/eddid/v7go/bcode"
	"github.com/eddid/v7go/value"
	"github.com/eddid/v7go/vm"
)

// ExecOptions configures Exec beyond the bare source text, per spec.md §6's
// `exec_opt(source, {filename, this, is_json})`.
type ExecOptions struct {
	Filename string
	// This is not read: ExecOpt runs the script with a top-level `this`
	// of undefined.
	This value.Value
	// IsJSON restricts source to a single JSON value rather than a full
	// script, per ParseJSON's contract.
	IsJSON bool
}

// Exec compiles and runs source against the global scope, equivalent to
// `exec_opt(source, {})`.
func (e *Engine) Exec(source string) (value.Value, error) {
	return e.ExecOpt(source, ExecOptions{Filename: "<exec>"})
}

// ExecOpt is the full form: a filename for diagnostics and a JSON-only
// mode. opts.This is not applied; the script's top-level `this` is
// undefined.
func (e *Engine) ExecOpt(source string, opts ExecOptions) (value.Value, error) {
	if opts.IsJSON {
		return e.ParseJSON(source)
	}
	filename := opts.Filename
	if filename == "" {
		filename = "<exec>"
	}
	bc, err := e.compileCached(filename, source)
	if err != nil {
		return value.Undefined(), err
	}
	res, err := e.VM.RunProgram(bc)
	if err != nil {
		return value.Undefined(), e.translateExecError(err)
	}
	return res, nil
}

// ExecFile reads and executes a script from disk, per spec.md §6
// `exec_file(path)`. File I/O is explicitly an out-of-core concern
// (spec.md §1's "file I/O helpers" Non-goal), so this is a thin host-level
// convenience wrapper, not part of the evaluator itself.
func (e *Engine) ExecFile(path string) (value.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return value.Undefined(), fmt.Errorf("engine: %w", err)
	}
	return e.ExecOpt(string(src), ExecOptions{Filename: path})
}

// Apply invokes fn with the given this-binding and positional arguments,
// per spec.md §6 `apply(func, this, args_array)`.
func (e *Engine) Apply(fn, this value.Value, args []value.Value) (value.Value, error) {
	res, err := e.VM.Call(fn, this, args)
	if err != nil {
		return value.Undefined(), e.translateExecError(err)
	}
	return res, nil
}

// Compile parses and compiles source without running it, per spec.md §6
// `compile(source, binary, use_bcode, sink)`. The `binary`/`sink` framing
// of the original (compile straight to a serialized bcode image for a
// flash-constrained target) has no observable counterpart here: the
// compiled result is returned directly as an in-memory *bcode.Bcode ready
// for RunProgram, since this engine has no equivalent "freeze to flash"
// deployment step.
func (e *Engine) Compile(filename, source string) (*bcode.Bcode, error) {
	return e.compileCached(filename, source)
}

// RunCompiled executes a previously compiled bcode.Bcode, the counterpart
// to Compile for a host that wants to separate the two steps (e.g. warm a
// cache of signed/verified bytecode before running untrusted input).
func (e *Engine) RunCompiled(bc *bcode.Bcode) (value.Value, error) {
	res, err := e.VM.RunProgram(bc)
	if err != nil {
		return value.Undefined(), e.translateExecError(err)
	}
	return res, nil
}

// translateExecError normalizes a vm error into the engine's thrown-value
// state: if it already is a *vm.Exception the thrown value is already set
// (vm.run leaves it there on an uncaught throw); any other error becomes a
// synthetic InternalError, per spec.md §7's "engine errors create a
// synthetic exception of the appropriate JS kind".
func (e *Engine) translateExecError(err error) error {
	if _, ok := err.(*vm.Exception); ok {
		return err
	}
	return e.VM.ThrowKind(vm.InternalError, err.Error())
}
