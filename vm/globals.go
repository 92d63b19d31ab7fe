package vm

import (
	"strings"

	"github.com/eddid/v7go/object"
	"github.com/eddid/v7go/value"
)

// installGlobals wires the ECMAScript-level globals every script sees
// without any host setup: the Error constructor family (so script code can
// both `throw new TypeError(...)` and test a caught value with
// `instanceof`) and the handful of Object/Array.prototype methods spec.md
// §8's end-to-end scenarios exercise (`Object.defineProperty`,
// `Array.prototype.map`/`join`/`push`). Host-specific bindings (console,
// JSON, ...) are the engine package's concern; these are the language's
// own ambient stack.
func (vm *VM) installGlobals() {
	vm.errorProtos = make(map[ErrorKind]*object.Object)
	vm.ErrorPrototype = object.New(vm.ObjectPrototype)
	defineHidden(vm.ErrorPrototype, "name", value.String("Error", false))
	defineHidden(vm.ErrorPrototype, "message", value.String("", false))
	vm.Global.SetProperty("Error", vm.newErrorCtor(NoError, vm.ErrorPrototype))

	for _, kind := range []ErrorKind{SyntaxError, TypeError, RangeError, ReferenceError, InternalError, EvalError} {
		proto := object.New(vm.ErrorPrototype)
		defineHidden(proto, "name", value.String(kind.String(), false))
		vm.errorProtos[kind] = proto
		vm.Global.SetProperty(kind.String(), vm.newErrorCtor(kind, proto))
	}

	objectCtor := vm.NewNativeFunction("Object", 1, func(vm *VM, this value.Value, args []value.Value) (value.Value, error) {
		if len(args) > 0 && args[0].IsObject() {
			return args[0], nil
		}
		return value.Object(object.New(vm.ObjectPrototype)), nil
	})
	if o, ok := objectBacking(objectCtor); ok {
		defineHidden(o, "defineProperty", vm.NewNativeFunction("defineProperty", 3, objectDefineProperty))
	}
	vm.Global.SetProperty("Object", objectCtor)

	defineHidden(vm.ArrayPrototype, "map", vm.NewNativeFunction("map", 1, arrayMap))
	defineHidden(vm.ArrayPrototype, "join", vm.NewNativeFunction("join", 1, arrayJoin))
	defineHidden(vm.ArrayPrototype, "push", vm.NewNativeFunction("push", 1, arrayPush))
}

// defineHidden installs a writable, configurable, non-enumerable own
// property — the attributes a native method or prototype field gets in real
// ECMAScript, so `for (k in [1,2,3])` or `for (k in new TypeError())` doesn't
// walk into "map"/"join"/"push"/"name"/"message" alongside the own indices.
// object.SetProperty's Attr=0 default (writable+enumerable+configurable) is
// right for script-created properties, wrong for these.
func defineHidden(o *object.Object, name string, v value.Value) {
	o.DefineProperty(name, object.AttrDesc{Value: v, Writable: boolPtr(true), Configurable: boolPtr(true)})
}

// errorPrototype resolves the prototype a thrown engine error of the given
// kind is an instance of, falling back to the generic Error.prototype.
func (vm *VM) errorPrototype(kind ErrorKind) *object.Object {
	if p, ok := vm.errorProtos[kind]; ok {
		return p
	}
	return vm.ErrorPrototype
}

// newErrorObject builds the instance thrown by throwKind: a plain object
// on the matching error-kind prototype chain carrying `message`, so script
// catching it can read `.message` and test `e instanceof TypeError`.
func (vm *VM) newErrorObject(kind ErrorKind, msg string) value.Value {
	o := object.New(vm.errorPrototype(kind))
	defineHidden(o, "message", value.String(msg, false))
	return value.Object(o)
}

// newErrorCtor builds one of the global Error constructors (`Error`,
// `TypeError`, ...): calling it with or without `new` produces an instance
// of proto carrying the given message.
func (vm *VM) newErrorCtor(kind ErrorKind, proto *object.Object) value.Value {
	return vm.NewNativeCtor(kind.String(), 1, proto, func(vm *VM, this value.Value, args []value.Value) (value.Value, error) {
		msg := ""
		if len(args) > 0 {
			msg = toString(args[0])
		}
		target := this
		if o, ok := target.Ptr().(*object.Object); !ok || o == nil {
			target = value.Object(object.New(proto))
		}
		if o, ok := target.Ptr().(*object.Object); ok {
			defineHidden(o, "message", value.String(msg, false))
		}
		return target, nil
	})
}

// objectDefineProperty implements `Object.defineProperty(obj, name, desc)`
// against the subset of attribute keys spec.md's scenarios need: `value`,
// `writable`, `enumerable`, `configurable`. Omitted keys keep their
// previous attribute/value (object.AttrDesc.PreserveValue), matching
// ECMAScript's "absent descriptor fields are unchanged on redefinition"
// rule for an already-existing property.
func objectDefineProperty(vm *VM, this value.Value, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Undefined(), vm.throwTypeError("Object.defineProperty requires a target and a property name")
	}
	o, ok := objectBacking(args[0])
	if !ok {
		return value.Undefined(), vm.throwTypeError("Object.defineProperty called on a non-object")
	}
	name := toString(args[1])
	desc := object.AttrDesc{PreserveValue: true}
	if len(args) > 2 {
		if descObj, ok := objectBacking(args[2]); ok {
			if p := descObj.GetOwnProperty("value"); p != nil {
				desc.Value = p.Value
				desc.PreserveValue = false
			}
			if p := descObj.GetOwnProperty("writable"); p != nil {
				b := toBoolean(p.Value)
				desc.Writable = &b
			}
			if p := descObj.GetOwnProperty("enumerable"); p != nil {
				b := toBoolean(p.Value)
				desc.Enumerable = &b
			}
			if p := descObj.GetOwnProperty("configurable"); p != nil {
				b := toBoolean(p.Value)
				desc.Configurable = &b
			}
		}
	}
	if err := o.DefineProperty(name, desc); err != nil {
		return value.Undefined(), vm.throwTypeError(err.Error())
	}
	return args[0], nil
}

func arrayMap(vm *VM, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := objectBacking(this)
	if !ok || !o.IsDenseArray() {
		return value.Undefined(), vm.throwTypeError("Array.prototype.map called on a non-array")
	}
	if len(args) == 0 || !args[0].IsCallable() {
		return value.Undefined(), vm.throwTypeError("callback is not a function")
	}
	cb := args[0]
	result := object.NewDenseArray(vm.ArrayPrototype)
	n := o.Length()
	for i := 0; i < n; i++ {
		mapped, err := vm.Call(cb, value.Undefined(), []value.Value{o.ElementAt(i), value.Number(float64(i)), this})
		if err != nil {
			return value.Undefined(), err
		}
		result.Push(mapped)
	}
	return value.Object(result), nil
}

func arrayJoin(vm *VM, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := objectBacking(this)
	if !ok || !o.IsDenseArray() {
		return value.Undefined(), vm.throwTypeError("Array.prototype.join called on a non-array")
	}
	sep := ","
	if len(args) > 0 && !args[0].IsUndefined() {
		sep = toString(args[0])
	}
	n := o.Length()
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		v := o.ElementAt(i)
		if !v.IsNullOrUndefined() {
			parts[i] = toString(v)
		}
	}
	return value.String(strings.Join(parts, sep), false), nil
}

func arrayPush(vm *VM, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := objectBacking(this)
	if !ok || !o.IsDenseArray() {
		return value.Undefined(), vm.throwTypeError("Array.prototype.push called on a non-array")
	}
	for _, a := range args {
		o.Push(a)
	}
	return value.Number(float64(o.Length())), nil
}
