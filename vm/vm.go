// Package vm implements the stack machine that executes bcode (spec.md
// §4.4): a value stack, call frames, and the try-stack unwind protocol for
// break/continue/return/throw across try/catch/finally/loop/switch
// boundaries.
package vm

import (
	"fmt"
	"math"
	"strings"

	"github.com/eddid/v7go/bcode"
	"github.com/eddid/v7go/jsregexp"
	"github.com/eddid/v7go/object"
	"github.com/eddid/v7go/value"
)

// ErrorKind classifies a thrown internal/script exception, mirroring
// spec.md's error-taxonomy table recovered from original_source/v7/src/
// std_error.h (see DESIGN.md).
type ErrorKind int

const (
	NoError ErrorKind = iota
	SyntaxError
	TypeError
	RangeError
	ReferenceError
	InternalError
	EvalError
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case TypeError:
		return "TypeError"
	case RangeError:
		return "RangeError"
	case ReferenceError:
		return "ReferenceError"
	case InternalError:
		return "InternalError"
	case EvalError:
		return "EvalError"
	default:
		return "Error"
	}
}

// Exception is a thrown value paired with the classification used to
// construct it, when the engine (rather than user script) raised it.
type Exception struct {
	Value value.Value
	Kind  ErrorKind
}

func (e *Exception) Error() string {
	if s := toString(e.Value); s != "" && s != "[object Object]" {
		return s
	}
	return e.Kind.String()
}

// tryEntry is one active try-stack handler, per spec.md §4.4.
type tryEntry struct {
	kind      bcode.TryKind
	target    uint32
	stackBase int // value-stack depth to restore to on unwind
}

// Frame is one call-frame: its own bcode, instruction pointer, try-stack,
// and the object realizing its variable scope (a plain object whose
// properties are the frame's bound names, chained to the enclosing
// closure's scope and finally the global object — spec.md's object-based
// environment model rather than flat register slots).
type Frame struct {
	bc      *bcode.Bcode
	ip      int
	scope   *object.Object
	this    value.Value
	callee  *Function
	tries   []tryEntry
	pending pendingCompletion
}

// GCRoots satisfies gc.Frame.
func (f *Frame) GCRoots() []value.Value {
	roots := []value.Value{f.this}
	if f.scope != nil {
		roots = append(roots, value.Object(f.scope))
	}
	if f.callee != nil {
		roots = append(roots, value.Function(f.callee))
	}
	if f.pending.active {
		roots = append(roots, f.pending.value)
	}
	return roots
}

// pendingCompletion records a return/break/continue/throw that was in
// flight when a finally block needed to run, per spec.md's "finally
// re-establishes the pending completion after running" rule.
type pendingCompletion struct {
	active bool
	kind   completionKind
	value  value.Value
	target uint32 // for break/continue, the post-finally jump target
}

type completionKind int

const (
	completionNone completionKind = iota
	completionReturn
	completionThrow
	completionBreak
	completionContinue
)

// Function is a callable closure: either compiled bcode plus the scope it
// closed over, or (when Native is set) a Go function standing in for a
// script function — the global Error constructors and Array.prototype
// methods are Native closures so they share the same Obj-backed
// "prototype"/"name"/"length" machinery a script-defined function gets.
// Obj carries those script-visible own properties; ECMAScript functions
// are callable objects, not bare closures, so `new Fn()` and `instanceof`
// resolve through Obj rather than through Function itself.
type Function struct {
	BC     *bcode.Bcode
	Scope  *object.Object
	Native CFunction
	Obj    *object.Object
}

// GCScope satisfies gc's scopeHolder interface so the collector can trace
// through a closure to the lexical scope it captured without gc needing to
// import vm.
func (fn *Function) GCScope() *object.Object { return fn.Scope }

// CFunction is a native callable bound into the object graph.
type CFunction func(vm *VM, this value.Value, args []value.Value) (value.Value, error)

// VM is one execution context: a value stack and a frame stack.
type VM struct {
	stack  []value.Value
	frames []*Frame
	Global *object.Object

	// FunctionPrototype is shared by every function object, per spec.md's
	// "function objects share one prototype" policy (see object.Object's
	// effectiveProto doc comment).
	FunctionPrototype *object.Object
	ObjectPrototype   *object.Object
	ArrayPrototype    *object.Object

	// ErrorPrototype is Error.prototype; errorProtos holds the per-kind
	// prototypes (TypeError.prototype, etc.) chained onto it, so a thrown
	// engine error is a real instance an `instanceof TypeError` can match,
	// per spec.md §8 scenario 6.
	ErrorPrototype *object.Object
	errorProtos    map[ErrorKind]*object.Object

	thrown   value.Value
	hasThrow bool
}

// New creates a VM with a fresh global object and shared prototypes wired
// into its own prototype chain as ECMAScript requires.
func New() *VM {
	objProto := object.New(nil)
	funcProto := object.New(objProto)
	arrProto := object.NewDenseArray(objProto)
	global := object.New(objProto)
	vm := &VM{
		Global:            global,
		FunctionPrototype: funcProto,
		ObjectPrototype:   objProto,
		ArrayPrototype:    arrProto,
	}
	vm.installGlobals()
	return vm
}

// newFunctionObject builds the function object backing a freshly created
// closure: proto (with `constructor` pointing back at the closure) becomes
// its `prototype` property, plus `name`/`length`, so `new Fn()` and
// `instanceof` resolve through real own properties instead of the closure
// alone.
func (vm *VM) newFunctionObject(closure *Function, name string, paramCount int, proto *object.Object) *object.Object {
	fo := object.NewFunctionObject()
	fo.Proto = vm.FunctionPrototype
	proto.SetProperty("constructor", value.Function(closure))
	fo.SetProperty("prototype", value.Object(proto))
	fo.SetProperty("name", value.String(name, false))
	fo.SetProperty("length", value.Number(float64(paramCount)))
	return fo
}

// NewNativeFunction builds a callable, constructible function value backed
// by a Go function rather than compiled bcode, for host/ambient globals
// like Array.prototype methods that never need `new`'d but still live on
// a prototype chain like any other function.
func (vm *VM) NewNativeFunction(name string, paramCount int, fn CFunction) value.Value {
	return vm.NewNativeCtor(name, paramCount, object.New(vm.ObjectPrototype), fn)
}

// NewNativeCtor is NewNativeFunction with an explicit `prototype` object,
// for natives meant to be used with `new` against a prototype shared
// across instances (the Error constructor family's `error.prototype`).
func (vm *VM) NewNativeCtor(name string, paramCount int, proto *object.Object, fn CFunction) value.Value {
	closure := &Function{Native: fn}
	closure.Obj = vm.newFunctionObject(closure, name, paramCount, proto)
	return value.Function(closure)
}

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) top() value.Value { return vm.stack[len(vm.stack)-1] }

func (vm *VM) frame() *Frame { return vm.frames[len(vm.frames)-1] }

// RunProgram executes compiled top-level bcode against the global scope.
func (vm *VM) RunProgram(bc *bcode.Bcode) (value.Value, error) {
	scope := object.New(vm.Global)
	f := &Frame{bc: bc, scope: scope, this: value.Undefined()}
	vm.frames = append(vm.frames, f)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()
	return vm.run(f)
}

// Call invokes a callable value (Function or CFunction) with the given
// this-binding and arguments.
func (vm *VM) Call(callee value.Value, this value.Value, args []value.Value) (value.Value, error) {
	switch callee.Tag() {
	case value.TagCFunction:
		fn, ok := callee.Ptr().(CFunction)
		if !ok {
			return value.Undefined(), vm.throwTypeError("value is not callable")
		}
		return fn(vm, this, args)
	case value.TagFunction:
		closure, ok := callee.Ptr().(*Function)
		if !ok {
			return value.Undefined(), vm.throwTypeError("value is not callable")
		}
		if closure.Native != nil {
			return closure.Native(vm, this, args)
		}
		return vm.callClosure(closure, this, args)
	default:
		return value.Undefined(), vm.throwTypeError("value is not callable")
	}
}

func (vm *VM) callClosure(fn *Function, this value.Value, args []value.Value) (value.Value, error) {
	scope := object.New(fn.Scope)
	for i, name := range fn.BC.Names[:fn.BC.ParamCount] {
		if i < len(args) {
			scope.SetProperty(name, args[i])
		} else {
			scope.SetProperty(name, value.Undefined())
		}
	}
	argsObj := object.NewDenseArray(vm.ArrayPrototype)
	for _, a := range args {
		argsObj.Push(a)
	}
	scope.SetProperty("arguments", value.Object(argsObj))

	f := &Frame{bc: fn.BC, scope: scope, this: this, callee: fn}
	vm.frames = append(vm.frames, f)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()
	// The body's OpSwapDrop chain runs against a completion slot of its
	// own, and nothing the body leaves on the shared value stack reaches
	// the caller's operands.
	base := len(vm.stack)
	vm.push(value.Undefined())
	res, err := vm.run(f)
	if len(vm.stack) > base {
		vm.stack = vm.stack[:base]
	}
	return res, err
}

// throwTypeError constructs and raises a TypeError with the given message,
// per spec.md's ErrorKind taxonomy.
func (vm *VM) throwTypeError(msg string) error {
	return vm.throwKind(TypeError, msg)
}

func (vm *VM) throwKind(kind ErrorKind, msg string) error {
	v := vm.newErrorObject(kind, msg)
	exc := &Exception{Value: v, Kind: kind}
	vm.thrown = v
	vm.hasThrow = true
	return exc
}

// ThrowKind is the host-facing form of throwKind, for engine's `throwf`.
func (vm *VM) ThrowKind(kind ErrorKind, msg string) error { return vm.throwKind(kind, msg) }

// Throw raises an arbitrary script value as an exception (engine's `throw`,
// and `JSON.parse`/user code throwing a non-Error value).
func (vm *VM) Throw(v value.Value) error {
	vm.thrown = v
	vm.hasThrow = true
	return &Exception{Value: v}
}

// ThrownValue returns the engine's currently pending exception, if any.
func (vm *VM) ThrownValue() (value.Value, bool) { return vm.thrown, vm.hasThrow }

// ClearThrown discards the pending exception, per engine's
// `clear_thrown_value`.
func (vm *VM) ClearThrown() {
	vm.thrown = value.Undefined()
	vm.hasThrow = false
}

// ToString exposes the VM's ToString coercion to the engine package
// (`to_json_or_debug`, string concatenation in host code, error message
// formatting).
func ToString(v value.Value) string { return toString(v) }

// ToNumber exposes the VM's ToNumber coercion.
func ToNumber(v value.Value) float64 { return toNumber(v) }

// ToBoolean exposes the VM's ToBoolean coercion.
func ToBoolean(v value.Value) bool { return toBoolean(v) }

// run executes f's bytecode from its current ip until it returns, throws
// uncaught past this frame, or hits an unrecoverable internal error.
func (vm *VM) run(f *Frame) (value.Value, error) {
	code := f.bc.Code
	for f.ip < len(code) {
		op := bcode.Op(code[f.ip])
		f.ip++
		switch op {
		case bcode.OpPushLit:
			idx := vm.readImm(f)
			lit := f.bc.Literals[idx]
			vm.push(literalValue(lit))
		case bcode.OpPushUndefined:
			vm.push(value.Undefined())
		case bcode.OpPushNull:
			vm.push(value.Null())
		case bcode.OpPushTrue:
			vm.push(value.Boolean(true))
		case bcode.OpPushFalse:
			vm.push(value.Boolean(false))
		case bcode.OpPushThis:
			vm.push(f.this)
		case bcode.OpPushNoValue:
			vm.push(value.NoValue())
		case bcode.OpDup:
			vm.push(vm.top())
		case bcode.OpSwap:
			n := len(vm.stack)
			vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]
		case bcode.OpDrop:
			vm.pop()
		case bcode.OpSwapDrop:
			v := vm.pop()
			if len(vm.stack) > 0 {
				vm.pop()
			}
			vm.push(v)

		case bcode.OpGetVar:
			idx := vm.readImm(f)
			name := f.bc.Names[idx]
			vm.push(vm.lookupVar(f, name))
		case bcode.OpSetVar:
			idx := vm.readImm(f)
			name := f.bc.Names[idx]
			v := vm.top()
			vm.assignVar(f, name, v)
		case bcode.OpDeclVar:
			vm.readImm(f)

		case bcode.OpGetProp:
			key := vm.pop()
			obj := vm.pop()
			v, err := vm.getProperty(obj, key)
			if err != nil {
				if unwound, res, uerr := vm.handleThrow(f, err); unwound {
					if uerr != nil {
						return value.Undefined(), uerr
					}
					continue
				} else {
					return value.Undefined(), err
				}
			}
			vm.push(v)
		case bcode.OpSetProp:
			v := vm.pop()
			key := vm.pop()
			obj := vm.pop()
			if err := vm.setProperty(obj, key, v, f.bc.StrictMode); err != nil {
				if unwound, _, uerr := vm.handleThrow(f, err); unwound {
					if uerr != nil {
						return value.Undefined(), uerr
					}
					continue
				}
				return value.Undefined(), err
			}
			vm.push(v)
		case bcode.OpDelProp:
			key := vm.pop()
			obj := vm.pop()
			vm.push(value.Boolean(vm.deleteProperty(obj, key)))

		case bcode.OpUpdateProp:
			imm := vm.readImm(f)
			prefix := imm&1 != 0
			dec := imm&2 != 0
			key := vm.pop()
			obj := vm.pop()
			old, err := vm.getProperty(obj, key)
			if err != nil {
				return value.Undefined(), err
			}
			delta := 1.0
			if dec {
				delta = -1
			}
			nv := value.Number(toNumber(old) + delta)
			if err := vm.setProperty(obj, key, nv, f.bc.StrictMode); err != nil {
				return value.Undefined(), err
			}
			if prefix {
				vm.push(nv)
			} else {
				vm.push(value.Number(toNumber(old)))
			}
		case bcode.OpCompoundSetProp:
			binOp := bcode.Op(vm.readImm(f))
			rhs := vm.pop()
			key := vm.pop()
			obj := vm.pop()
			old, err := vm.getProperty(obj, key)
			if err != nil {
				return value.Undefined(), err
			}
			nv := vm.applyBinary(binOp, old, rhs)
			if err := vm.setProperty(obj, key, nv, f.bc.StrictMode); err != nil {
				return value.Undefined(), err
			}
			vm.push(nv)

		case bcode.OpNewObject:
			vm.push(value.Object(object.New(vm.ObjectPrototype)))
		case bcode.OpNewArray:
			n := int(vm.readImm(f))
			arr := object.NewDenseArray(vm.ArrayPrototype)
			elems := make([]value.Value, n)
			for i := n - 1; i >= 0; i-- {
				elems[i] = vm.pop()
			}
			for _, e := range elems {
				arr.Push(e)
			}
			vm.push(value.Object(arr))
		case bcode.OpNewFunc:
			idx := vm.readImm(f)
			child := f.bc.Nested[idx]
			closure := &Function{BC: child, Scope: f.scope}
			closure.Obj = vm.newFunctionObject(closure, child.Name, child.ParamCount, object.New(vm.ObjectPrototype))
			vm.push(value.Function(closure))
		case bcode.OpDefProp:
			attrs := vm.readImm(f)
			v := vm.pop()
			key := vm.pop()
			objV := vm.top()
			obj, _ := objV.Ptr().(*object.Object)
			keyStr, _ := key.Str()
			if obj != nil {
				switch attrs {
				case 1:
					obj.DefineProperty(keyStr, object.AttrDesc{Getter: &v, Enumerable: boolPtr(true), Configurable: boolPtr(true)})
				case 2:
					obj.DefineProperty(keyStr, object.AttrDesc{Setter: &v, Enumerable: boolPtr(true), Configurable: boolPtr(true)})
				default:
					obj.DefineProperty(keyStr, object.AttrDesc{Value: v, Writable: boolPtr(true), Enumerable: boolPtr(true), Configurable: boolPtr(true)})
				}
			}

		case bcode.OpAdd, bcode.OpSub, bcode.OpMul, bcode.OpDiv, bcode.OpMod,
			bcode.OpBAnd, bcode.OpBOr, bcode.OpBXor, bcode.OpShl, bcode.OpShr, bcode.OpUShr,
			bcode.OpEq, bcode.OpNotEq, bcode.OpEq3, bcode.OpNotEq3,
			bcode.OpLt, bcode.OpGt, bcode.OpLte, bcode.OpGte:
			r := vm.pop()
			l := vm.pop()
			vm.push(vm.applyBinary(op, l, r))
		case bcode.OpInstanceOf:
			r := vm.pop()
			l := vm.pop()
			vm.push(value.Boolean(vm.instanceOf(l, r)))
		case bcode.OpIn:
			r := vm.pop()
			l := vm.pop()
			vm.push(value.Boolean(vm.hasProperty(r, l)))
		case bcode.OpTypeOf:
			v := vm.pop()
			vm.push(value.String(typeOf(v), false))
		case bcode.OpNeg:
			v := vm.pop()
			vm.push(value.Number(-toNumber(v)))
		case bcode.OpPlus:
			v := vm.pop()
			vm.push(value.Number(toNumber(v)))
		case bcode.OpNot:
			v := vm.pop()
			vm.push(value.Boolean(!toBoolean(v)))
		case bcode.OpBNot:
			v := vm.pop()
			vm.push(value.Number(float64(^toInt32(v))))

		case bcode.OpJmp:
			target := vm.readImm(f)
			f.ip = int(target)
		case bcode.OpJmpIf:
			target := vm.readImm(f)
			if toBoolean(vm.pop()) {
				f.ip = int(target)
			}
		case bcode.OpJmpIfNot:
			target := vm.readImm(f)
			if !toBoolean(vm.pop()) {
				f.ip = int(target)
			}

		case bcode.OpCall:
			argc := int(vm.readImm(f))
			args := make([]value.Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop()
			}
			callee := vm.pop()
			this := vm.pop()
			res, err := vm.Call(callee, this, args)
			if err != nil {
				if unwound, _, uerr := vm.handleThrow(f, err); unwound {
					if uerr != nil {
						return value.Undefined(), uerr
					}
					continue
				}
				return value.Undefined(), err
			}
			vm.push(res)
		case bcode.OpNew:
			argc := int(vm.readImm(f))
			args := make([]value.Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop()
			}
			callee := vm.pop()
			res, err := vm.construct(callee, args)
			if err != nil {
				if unwound, _, uerr := vm.handleThrow(f, err); unwound {
					if uerr != nil {
						return value.Undefined(), uerr
					}
					continue
				}
				return value.Undefined(), err
			}
			vm.push(res)

		case bcode.OpReturn:
			v := vm.pop()
			if done, rv := vm.enterFinallyOr(f, completionReturn, v, 0); done {
				return rv, nil
			}
		case bcode.OpReturnUndefined:
			if done, rv := vm.enterFinallyOr(f, completionReturn, value.Undefined(), 0); done {
				return rv, nil
			}

		case bcode.OpThrow:
			v := vm.pop()
			if unwound, _, uerr := vm.handleThrow(f, &Exception{Value: v}); unwound {
				if uerr != nil {
					return value.Undefined(), uerr
				}
				continue
			}
			return value.Undefined(), vm.Throw(v)

		case bcode.OpTryPush:
			kind := bcode.TryKind(code[f.ip])
			f.ip++
			target := vm.readImm(f)
			f.tries = append(f.tries, tryEntry{kind: kind, target: target, stackBase: len(vm.stack)})
		case bcode.OpTryPop:
			if len(f.tries) > 0 {
				f.tries = f.tries[:len(f.tries)-1]
			}

		case bcode.OpEnterCatch:
			idx := vm.readImm(f)
			name := f.bc.Names[idx]
			f.scope.SetProperty(name, vm.thrown)
			vm.hasThrow = false
			vm.thrown = value.Undefined()
		case bcode.OpLeaveCatch:
			// no-op marker; scope binding for the catch parameter lives for
			// the rest of the frame rather than being popped, matching the
			// teacher's flat-scope-object style rather than a block scope.

		case bcode.OpEndFinally:
			if f.pending.active {
				p := f.pending
				f.pending = pendingCompletion{}
				switch p.kind {
				case completionReturn:
					if done, rv := vm.enterFinallyOr(f, completionReturn, p.value, 0); done {
						return rv, nil
					}
				case completionBreak:
					if done, _ := vm.enterFinallyOr(f, completionBreak, value.Undefined(), p.target); done {
						f.ip = int(p.target)
					}
				case completionContinue:
					if done, _ := vm.enterFinallyOr(f, completionContinue, value.Undefined(), p.target); done {
						f.ip = int(p.target)
					}
				case completionThrow:
					if unwound, _, uerr := vm.handleThrow(f, &Exception{Value: p.value}); unwound {
						if uerr != nil {
							return value.Undefined(), uerr
						}
						continue
					} else {
						return value.Undefined(), vm.Throw(p.value)
					}
				}
			}

		case bcode.OpForInInit:
			obj := vm.pop()
			vm.push(value.Foreign(newForInIterator(obj)))
		case bcode.OpForInNext:
			doneTarget := vm.readImm(f)
			it, _ := vm.top().Ptr().(*forInIterator)
			key, ok := it.next()
			if !ok {
				vm.pop()
				f.ip = int(doneTarget)
				continue
			}
			vm.push(value.String(key, false))

		case bcode.OpBreak:
			target := vm.readImm(f)
			if done, _ := vm.enterFinallyOr(f, completionBreak, value.Undefined(), target); done {
				f.ip = int(target)
			}
		case bcode.OpContinue:
			target := vm.readImm(f)
			if done, _ := vm.enterFinallyOr(f, completionContinue, value.Undefined(), target); done {
				f.ip = int(target)
			}

		case bcode.OpPop:
			vm.pop()
		case bcode.OpNop:
		default:
			return value.Undefined(), fmt.Errorf("vm: unimplemented opcode %d", op)
		}
	}
	return value.Undefined(), nil
}

func (vm *VM) readImm(f *Frame) uint32 {
	v := bcode.ReadUint32(f.bc.Code, f.ip)
	f.ip += 4
	return v
}

func literalValue(lit bcode.Literal) value.Value {
	switch lit.Kind {
	case bcode.LitNumber:
		return value.Number(lit.Num)
	case bcode.LitString:
		return value.String(lit.Str, false)
	case bcode.LitRegexp:
		return regexpLiteralValue(lit.Str)
	default:
		return value.Undefined()
	}
}

// regexpLiteralValue compiles a pooled "pattern\x00flags" literal into a
// value.Regexp wrapping a jsregexp.Matcher. A malformed pattern (most
// commonly a rejected named capture group) collapses to Undefined rather
// than aborting the whole pool load; the compile error itself is discarded
// and not reported.
func regexpLiteralValue(packed string) value.Value {
	pattern, flags, _ := strings.Cut(packed, "\x00")
	m, err := jsregexp.Compile(pattern, flags)
	if err != nil {
		return value.Undefined()
	}
	return value.Regexp(m)
}

func boolPtr(b bool) *bool { return &b }

// enterFinallyOr looks for an enclosing FINALLY handler within the current
// function's try-stack (stopping at the first one, since finally blocks
// nest, and for break/continue also stopping at the target's own
// loop/switch marker) and, if found, stashes the pending completion and jumps into it,
// returning (false, _) to tell the caller execution continues in-frame. If
// no finally intervenes, it returns (true, value) so the caller can act on
// the completion directly (return from the Go function, or jump to the
// break/continue target).
func (vm *VM) enterFinallyOr(f *Frame, kind completionKind, v value.Value, target uint32) (bool, value.Value) {
	for i := len(f.tries) - 1; i >= 0; i-- {
		if f.tries[i].kind == bcode.TryFinally {
			entry := f.tries[i]
			f.tries = f.tries[:i]
			f.pending = pendingCompletion{active: true, kind: kind, value: v, target: target}
			vm.stack = vm.stack[:entry.stackBase]
			f.ip = int(entry.target)
			return false, value.Undefined()
		}
		if (kind == completionBreak || kind == completionContinue) &&
			(f.tries[i].kind == bcode.TryLoop || f.tries[i].kind == bcode.TrySwitch) {
			if kind == completionContinue && f.tries[i].kind == bcode.TrySwitch {
				// A continue leaves every switch between it and its loop.
				f.tries = f.tries[:i]
				continue
			}
			// The nearest loop/switch marker is the target's own. A loop's
			// break target lies past its OpTryPop, so a break drops the
			// marker here; a switch's break target is its OpTryPop, which
			// pops the marker itself; a continue stays inside its loop.
			if kind == completionBreak && f.tries[i].kind == bcode.TryLoop {
				f.tries = f.tries[:i]
			}
			return true, v
		}
	}
	return true, v
}

// handleThrow searches f's try-stack for a CATCH or FINALLY handler. If one
// is found, the vm unwinds the value stack and jumps into it, returning
// (true, _, nil). If the exception passes entirely through this frame, it
// returns (false, _, err) for the caller (vm.run's caller) to propagate.
func (vm *VM) handleThrow(f *Frame, err error) (bool, value.Value, error) {
	exc, ok := err.(*Exception)
	if !ok {
		return false, value.Undefined(), err
	}
	for i := len(f.tries) - 1; i >= 0; i-- {
		entry := f.tries[i]
		if entry.kind == bcode.TryCatch || entry.kind == bcode.TryFinally {
			f.tries = f.tries[:i]
			vm.stack = vm.stack[:entry.stackBase]
			if entry.kind == bcode.TryFinally {
				// No catch to bind the value and clear the throw flag, so
				// stash it as a pending completion for OpEndFinally to
				// resume once the finally body itself finishes.
				f.pending = pendingCompletion{active: true, kind: completionThrow, value: exc.Value}
			} else {
				vm.thrown = exc.Value
				vm.hasThrow = true
			}
			f.ip = int(entry.target)
			return true, value.Undefined(), nil
		}
	}
	return false, value.Undefined(), err
}

func (vm *VM) lookupVar(f *Frame, name string) value.Value {
	for s := f.scope; s != nil; s = s.Proto {
		if p := s.GetOwnProperty(name); p != nil {
			return p.Value
		}
	}
	return value.Undefined()
}

func (vm *VM) assignVar(f *Frame, name string, v value.Value) {
	for s := f.scope; s != nil; s = s.Proto {
		if p := s.GetOwnProperty(name); p != nil {
			if p.Attr&object.PropNonWritable == 0 {
				p.Value = v
			}
			return
		}
	}
	vm.Global.SetProperty(name, v)
}

func typeOf(v value.Value) string {
	switch v.Tag() {
	case value.TagUndefined:
		return "undefined"
	case value.TagNull:
		return "object"
	case value.TagBoolean:
		return "boolean"
	case value.TagNumber:
		return "number"
	case value.TagString:
		return "string"
	case value.TagFunction, value.TagCFunction:
		return "function"
	default:
		return "object"
	}
}

func toBoolean(v value.Value) bool {
	switch v.Tag() {
	case value.TagUndefined, value.TagNull:
		return false
	case value.TagBoolean:
		return v.Bool()
	case value.TagNumber:
		f := v.Float64()
		return f != 0 && !math.IsNaN(f)
	case value.TagString:
		s, _ := v.Str()
		return s != ""
	default:
		return true
	}
}

func toNumber(v value.Value) float64 {
	switch v.Tag() {
	case value.TagNumber:
		return v.Float64()
	case value.TagBoolean:
		if v.Bool() {
			return 1
		}
		return 0
	case value.TagUndefined:
		return math.NaN()
	case value.TagNull:
		return 0
	case value.TagString:
		s, _ := v.Str()
		var f float64
		if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
			if s == "" {
				return 0
			}
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func toInt32(v value.Value) int32 {
	f := toNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(int64(f))
}

func toString(v value.Value) string {
	switch v.Tag() {
	case value.TagString:
		s, _ := v.Str()
		return s
	case value.TagUndefined:
		return "undefined"
	case value.TagNull:
		return "null"
	case value.TagBoolean:
		if v.Bool() {
			return "true"
		}
		return "false"
	case value.TagNumber:
		return formatNumber(v.Float64())
	default:
		if o, ok := v.Ptr().(*object.Object); ok {
			if name, msg, ok := errorStrings(o); ok {
				return name + ": " + msg
			}
		}
		return "[object Object]"
	}
}

// errorStrings reports the "name"/"message" pair of an object that looks
// like an Error instance (own-or-inherited string "name", own-or-inherited
// "message"), the only case toString gives a non-default rendering for
// without a general valueOf/toString method-dispatch (see toPrimitive).
func errorStrings(o *object.Object) (name, msg string, ok bool) {
	np, _ := o.GetProperty("name")
	if np == nil || !np.Value.IsString() {
		return "", "", false
	}
	mp, _ := o.GetProperty("message")
	if mp == nil {
		return "", "", false
	}
	n, _ := np.Value.Str()
	return n, toString(mp.Value), true
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return fmt.Sprintf("%g", f)
}
