package vm

import (
	"math"

	"github.com/eddid/v7go/bcode"
	"github.com/eddid/v7go/object"
	"github.com/eddid/v7go/value"
)

// objectBacking returns the property-bearing object behind a value, for
// both plain objects and script functions: a function is callable through
// *Function, but its own properties ("prototype", "name", arbitrary
// script-assigned fields) live on the Function Object created alongside it
// in OpNewFunc.
func objectBacking(v value.Value) (*object.Object, bool) {
	switch v.Tag() {
	case value.TagObject:
		o, ok := v.Ptr().(*object.Object)
		return o, ok
	case value.TagFunction:
		fn, ok := v.Ptr().(*Function)
		if !ok || fn.Obj == nil {
			return nil, false
		}
		return fn.Obj, true
	default:
		return nil, false
	}
}

// getProperty implements the [[Get]] property-access contract used by
// OpGetProp, OpUpdateProp, and OpCompoundSetProp: it resolves a string or
// array-index key against an object (walking the prototype chain and
// dense-array storage), or the relevant builtin for a primitive receiver.
func (vm *VM) getProperty(obj, key value.Value) (value.Value, error) {
	keyStr := toString(key)
	o, ok := objectBacking(obj)
	if !ok {
		if obj.IsNullOrUndefined() {
			return value.Undefined(), vm.throwTypeError("cannot read property '" + keyStr + "' of " + toString(obj))
		}
		return primitiveProperty(obj, keyStr), nil
	}
	if o.IsDenseArray() {
		if keyStr == "length" {
			return value.Number(float64(o.Length())), nil
		}
		if idx, ok := arrayIndex(keyStr); ok {
			return o.ElementAt(idx), nil
		}
	}
	p, owner := o.GetProperty(keyStr)
	if p == nil {
		return value.Undefined(), nil
	}
	if p.IsAccessor() {
		getter := p.Getter()
		if getter.IsUndefined() {
			return value.Undefined(), nil
		}
		_ = owner
		return vm.Call(getter, obj, nil)
	}
	return p.Value, nil
}

// setProperty implements [[Set]] for OpSetProp/OpUpdateProp/
// OpCompoundSetProp. A write to a non-writable property is a silent no-op
// in non-strict code; strict code throws TypeError instead, per spec.md §8
// "Boundary behavior". An accessor setter found on the prototype chain is
// always invoked.
func (vm *VM) setProperty(obj, key, v value.Value, strict bool) error {
	o, ok := objectBacking(obj)
	if !ok {
		return nil
	}
	keyStr := toString(key)
	if o.IsDenseArray() {
		if keyStr == "length" {
			o.SetLength(int(toNumber(v)))
			return nil
		}
		if idx, ok := arrayIndex(keyStr); ok {
			o.SetElementAt(idx, v)
			return nil
		}
	}
	result, prop := o.SetProperty(keyStr, v)
	switch result {
	case object.SetNeedsSetterCall:
		setter := prop.Setter()
		if !setter.IsUndefined() {
			_, err := vm.Call(setter, obj, []value.Value{v})
			return err
		}
	case object.SetSilentNoop:
		if strict {
			return vm.throwTypeError("cannot assign to read only property '" + keyStr + "'")
		}
	}
	return nil
}

func (vm *VM) deleteProperty(obj, key value.Value) bool {
	o, ok := objectBacking(obj)
	if !ok {
		return true
	}
	keyStr := toString(key)
	if o.IsDenseArray() {
		if idx, ok := arrayIndex(keyStr); ok {
			o.DeleteElementAt(idx)
			return true
		}
	}
	return o.DeleteProperty(keyStr) != object.DeleteNonConfigurable
}

func (vm *VM) hasProperty(obj, key value.Value) bool {
	o, ok := objectBacking(obj)
	if !ok {
		return false
	}
	keyStr := toString(key)
	if o.IsDenseArray() {
		if idx, ok := arrayIndex(keyStr); ok {
			return idx >= 0 && idx < o.Length() && !o.RawElementAt(idx).IsNoValue()
		}
	}
	p, _ := o.GetProperty(keyStr)
	return p != nil
}

func arrayIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func primitiveProperty(v value.Value, key string) value.Value {
	if v.IsString() && key == "length" {
		s, _ := v.Str()
		return value.Number(float64(len([]rune(s))))
	}
	return value.Undefined()
}

// construct implements `new Callee(args...)`: allocates a fresh object
// whose prototype is Callee.prototype (falling back to Object.prototype),
// invokes Callee with that object as `this`, and returns the constructor's
// result if it returned an object, else the newly allocated one — the
// ordinary ECMAScript [[Construct]] contract.
func (vm *VM) construct(callee value.Value, args []value.Value) (value.Value, error) {
	if !callee.IsCallable() {
		return value.Undefined(), vm.throwTypeError("value is not a constructor")
	}
	proto := vm.ObjectPrototype
	if o, ok := objectBacking(callee); ok {
		if p := o.GetOwnProperty("prototype"); p != nil {
			if po, ok := p.Value.Ptr().(*object.Object); ok {
				proto = po
			}
		}
	}
	instance := object.New(proto)
	thisVal := value.Object(instance)
	res, err := vm.Call(callee, thisVal, args)
	if err != nil {
		return value.Undefined(), err
	}
	if res.IsObject() {
		return res, nil
	}
	return thisVal, nil
}

func (vm *VM) instanceOf(l, r value.Value) bool {
	ctor, ok := objectBacking(r)
	if !ok {
		return false
	}
	protoProp := ctor.GetOwnProperty("prototype")
	if protoProp == nil {
		return false
	}
	targetProto, ok := protoProp.Value.Ptr().(*object.Object)
	if !ok {
		return false
	}
	obj, ok := l.Ptr().(*object.Object)
	if !ok {
		return false
	}
	for p := obj.Proto; p != nil; p = p.Proto {
		if p == targetProto {
			return true
		}
	}
	return false
}

// applyBinary implements the arithmetic/bitwise/relational/equality
// operator table (spec.md §4.3's expression lowering), dispatching on the
// already-resolved bcode.Op rather than re-inspecting an AST operator
// string.
func (vm *VM) applyBinary(op bcode.Op, l, r value.Value) value.Value {
	switch op {
	case bcode.OpAdd:
		if l.IsString() || r.IsString() {
			return value.String(toString(l)+toString(r), false)
		}
		lp, rp := toPrimitive(l), toPrimitive(r)
		if lp.IsString() || rp.IsString() {
			return value.String(toString(lp)+toString(rp), false)
		}
		return value.Number(toNumber(lp) + toNumber(rp))
	case bcode.OpSub:
		return value.Number(toNumber(l) - toNumber(r))
	case bcode.OpMul:
		return value.Number(toNumber(l) * toNumber(r))
	case bcode.OpDiv:
		return value.Number(toNumber(l) / toNumber(r))
	case bcode.OpMod:
		return value.Number(math.Mod(toNumber(l), toNumber(r)))
	case bcode.OpBAnd:
		return value.Number(float64(toInt32(l) & toInt32(r)))
	case bcode.OpBOr:
		return value.Number(float64(toInt32(l) | toInt32(r)))
	case bcode.OpBXor:
		return value.Number(float64(toInt32(l) ^ toInt32(r)))
	case bcode.OpShl:
		return value.Number(float64(toInt32(l) << (uint32(toInt32(r)) & 31)))
	case bcode.OpShr:
		return value.Number(float64(toInt32(l) >> (uint32(toInt32(r)) & 31)))
	case bcode.OpUShr:
		return value.Number(float64(uint32(toInt32(l)) >> (uint32(toInt32(r)) & 31)))
	case bcode.OpEq:
		return value.Boolean(looseEquals(l, r))
	case bcode.OpNotEq:
		return value.Boolean(!looseEquals(l, r))
	case bcode.OpEq3:
		return value.Boolean(object.StrictEquals(l, r))
	case bcode.OpNotEq3:
		return value.Boolean(!object.StrictEquals(l, r))
	case bcode.OpLt:
		return compareValues(l, r, func(a, b float64) bool { return a < b }, func(a, b string) bool { return a < b })
	case bcode.OpGt:
		return compareValues(l, r, func(a, b float64) bool { return a > b }, func(a, b string) bool { return a > b })
	case bcode.OpLte:
		return compareValues(l, r, func(a, b float64) bool { return a <= b }, func(a, b string) bool { return a <= b })
	case bcode.OpGte:
		return compareValues(l, r, func(a, b float64) bool { return a >= b }, func(a, b string) bool { return a >= b })
	default:
		return value.Undefined()
	}
}

func compareValues(l, r value.Value, numCmp func(a, b float64) bool, strCmp func(a, b string) bool) value.Value {
	if l.IsString() && r.IsString() {
		ls, _ := l.Str()
		rs, _ := r.Str()
		return value.Boolean(strCmp(ls, rs))
	}
	ln, rn := toNumber(l), toNumber(r)
	if math.IsNaN(ln) || math.IsNaN(rn) {
		return value.Boolean(false)
	}
	return value.Boolean(numCmp(ln, rn))
}

// toPrimitive is a simplified [[ToPrimitive]]: objects have no
// valueOf/toString dispatch wired yet beyond their default string
// conversion, since the builtin prototype methods live in the engine
// package, not here.
func toPrimitive(v value.Value) value.Value {
	if v.IsObject() {
		return value.String(toString(v), false)
	}
	return v
}

// looseEquals implements `==` per the abstract equality comparison table:
// same-tag values compare strictly; null/undefined are mutually equal and
// nothing else; number/string pairs coerce the string side; booleans
// coerce to number on both sides.
func looseEquals(l, r value.Value) bool {
	if l.Tag() == r.Tag() {
		return object.StrictEquals(l, r)
	}
	if l.IsNullOrUndefined() && r.IsNullOrUndefined() {
		return true
	}
	if l.IsNullOrUndefined() || r.IsNullOrUndefined() {
		return false
	}
	if l.IsNumber() && r.IsString() {
		return l.Float64() == toNumber(r)
	}
	if l.IsString() && r.IsNumber() {
		return toNumber(l) == r.Float64()
	}
	if l.IsBoolean() {
		return looseEquals(value.Number(toNumber(l)), r)
	}
	if r.IsBoolean() {
		return looseEquals(l, value.Number(toNumber(r)))
	}
	if (l.IsNumber() || l.IsString()) && r.IsObject() {
		return looseEquals(l, toPrimitive(r))
	}
	if l.IsObject() && (r.IsNumber() || r.IsString()) {
		return looseEquals(toPrimitive(l), r)
	}
	return false
}

// forInIterator enumerates own-and-inherited enumerable property names of
// an object, the iteration protocol for-in's bcode lowering drives via
// OpForInInit/OpForInNext.
type forInIterator struct {
	obj     *object.Object
	cur     *object.Object
	handle  interface{}
	visited map[string]bool
}

func newForInIterator(v value.Value) *forInIterator {
	o, _ := v.Ptr().(*object.Object)
	it := &forInIterator{obj: o, cur: o, visited: make(map[string]bool)}
	return it
}

// ---- Exported wrappers for the host binding surface ----------------------
//
// engine.Engine drives property/call semantics through these rather than
// reimplementing them, so the object surface (§6 "get"/"set"/"del"/
// "next_prop"/"is_instance_of") and `new`/`apply` stay identical whether
// invoked from compiled bcode or from host code.

// GetProperty is the host-facing form of getProperty.
func (vm *VM) GetProperty(obj, key value.Value) (value.Value, error) { return vm.getProperty(obj, key) }

// SetProperty is the host-facing form of setProperty. Host writes are
// never strict: a host assigning onto a frozen property gets the
// non-strict silent no-op rather than a thrown TypeError.
func (vm *VM) SetProperty(obj, key, v value.Value) { vm.setProperty(obj, key, v, false) }

// DeleteProperty is the host-facing form of deleteProperty.
func (vm *VM) DeleteProperty(obj, key value.Value) bool { return vm.deleteProperty(obj, key) }

// HasProperty is the host-facing form of hasProperty (the `in` operator).
func (vm *VM) HasProperty(obj, key value.Value) bool { return vm.hasProperty(obj, key) }

// Construct is the host-facing form of construct (`new Callee(args...)`).
func (vm *VM) Construct(callee value.Value, args []value.Value) (value.Value, error) {
	return vm.construct(callee, args)
}

// InstanceOf is the host-facing form of instanceOf.
func (vm *VM) InstanceOf(l, r value.Value) bool { return vm.instanceOf(l, r) }

func (it *forInIterator) next() (string, bool) {
	for it.cur != nil {
		p, next := it.cur.NextProperty(it.handle)
		if p == nil {
			it.cur = it.cur.Proto
			it.handle = nil
			continue
		}
		it.handle = next
		if it.visited[p.Name] {
			continue
		}
		it.visited[p.Name] = true
		return p.Name, true
	}
	return "", false
}
