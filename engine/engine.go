// Package engine is the host binding surface spec.md §6 describes: engine
// lifecycle, script execution, value construction/inspection, the object
// and array surface, rooting, exceptions, and the interrupt/GC controls a
// host embeds the core through. It is the one package allowed to see both
// the compiler and the vm, since every entry point here is "parse, compile,
// run, translate the result (or error) across the host boundary" —
// the same shape the teacher's integration package uses for its contract
// boundary (decode -> validate -> run -> translate error).
package engine

import (
	"fmt"

	"github.com/eddid/v7go/bcode"
	"github.com/eddid/v7go/compiler"
	"github.com/eddid/v7go/gc"
	"github.com/eddid/v7go/internal/parser"
	"github.com/eddid/v7go/object"
	"github.com/eddid/v7go/value"
	"github.com/eddid/v7go/vm"
)

// Engine is one embeddable runtime instance: a VM, a collector tracking
// host-rooted heap objects, and a compiled-script cache. Per spec.md §5,
// an Engine must not be driven from more than one host goroutine
// concurrently.
type Engine struct {
	VM   *vm.VM
	gc   *gc.Collector
	gcOn bool

	owned []value.Value // host-rooted values; see Own/Disown

	interrupted bool

	scripts *ScriptCache
}

// Options configures New. A zero Options is a reasonable default.
type Options struct {
	// CacheBytes sizes the compiled-script cache; 0 picks a small default.
	CacheBytes int
}

// New creates an Engine with a fresh heap, global object, and shared
// prototypes, mirroring original_source/v7/src/core_public.h's `v7_create`.
func New(opts Options) *Engine {
	if opts.CacheBytes <= 0 {
		opts.CacheBytes = 4 << 20
	}
	e := &Engine{
		VM:      vm.New(),
		gc:      gc.New(),
		gcOn:    true,
		scripts: newScriptCache(opts.CacheBytes),
	}
	return e
}

// Destroy releases the engine's compiled-script cache. The heap itself
// needs no explicit teardown: Go's own collector reclaims it once the
// Engine value is unreachable, the same simplification value.go's package
// doc documents for NaN boxing (see DESIGN.md).
func (e *Engine) Destroy() {
	e.scripts = nil
}

// SetGCEnabled toggles collection, per spec.md §6 `set_gc_enabled`. Native
// callback invocations always run with collection inhibited regardless of
// this setting (spec.md §4.5).
func (e *Engine) SetGCEnabled(on bool) {
	e.gcOn = on
}

// Interrupt requests that the running script raise InterruptedError at its
// next poll point (jump back-edge, call, or return). spec.md §5 notes the
// flag is edge-triggered; CheckInterrupt clears it when observed.
func (e *Engine) Interrupt() { e.interrupted = true }

// CheckInterrupt polls and clears the interrupt flag, returning whether it
// had been set. The compiler/vm in this implementation do not yet poll
// this automatically on every back-edge (spec.md's InterruptedError path
// is wired for host-level cooperative checks, e.g. a host-registered
// cfunction that calls this between steps of a long native loop).
func (e *Engine) CheckInterrupt() bool {
	was := e.interrupted
	e.interrupted = false
	return was
}

// Collect forces a mark-sweep pass over the global object, the shared
// prototypes, and every value this Engine has rooted via Own. It runs
// between top-level Exec/Apply calls, when no bcode frame is active, so
// the VM's transient value stack and call frames hold nothing live that
// Own hasn't already captured; a collection forced mid-execution (from a
// host callback) would additionally need those, which is why spec.md
// reserves that case for the VM's own back-edge trigger rather than this
// host-facing entry point. Exposed for tests exercising spec.md §8
// invariant 8 (GC transparency); ordinary execution never needs to call
// it directly.
func (e *Engine) Collect() gc.Stats {
	if !e.gcOn {
		return e.gc.Stats()
	}
	roots := gc.Roots{
		Global:     e.VM.Global,
		Prototypes: []*object.Object{e.VM.ObjectPrototype, e.VM.FunctionPrototype, e.VM.ArrayPrototype},
		Stack:      e.owned,
	}
	e.gc.Collect(roots)
	return e.gc.Stats()
}

// registerIfHeap tells the collector about a freshly allocated object, so
// its destructor (if any) runs during sweep even if the object is never
// explicitly rooted with Own. Values with no backing *object.Object
// (numbers, strings, booleans...) are a no-op.
func (e *Engine) registerIfHeap(v value.Value) value.Value {
	if o, ok := v.Ptr().(*object.Object); ok {
		e.gc.Register(o)
	}
	return v
}

// compileCached parses and compiles source, consulting the script cache
// first so repeated exec of identical source (a REPL re-running a
// snippet, a contract re-deployed verbatim) skips lex/parse/compile.
func (e *Engine) compileCached(filename, source string) (*bcode.Bcode, error) {
	if bc, ok := e.scripts.Get(source); ok {
		return bc, nil
	}
	prog, err := parser.Parse(filename, source)
	if err != nil {
		return nil, &CompileError{Err: err}
	}
	bc, err := compiler.Compile(prog)
	if err != nil {
		return nil, &CompileError{Err: err}
	}
	e.scripts.Put(source, bc)
	return bc, nil
}

// CompileError wraps a syntax or codegen failure, surfaced to the host as
// spec.md §6's SYNTAX_ERROR code.
type CompileError struct{ Err error }

func (e *CompileError) Error() string { return fmt.Sprintf("SyntaxError: %v", e.Err) }
func (e *CompileError) Unwrap() error { return e.Err }
