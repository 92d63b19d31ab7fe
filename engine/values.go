package engine

import (
	"github.com/eddid/v7go/object"
	"github.com/eddid/v7go/value"
	"github.com/eddid/v7go/vm"
)

// ---- Value construction (spec.md §6 "Value construction") ----------------

func (e *Engine) Number(f float64) value.Value      { return value.Number(f) }
func (e *Engine) Boolean(b bool) value.Value        { return value.Boolean(b) }
func (e *Engine) String(s string) value.Value       { return value.String(s, true) }
func (e *Engine) ForeignString(s string) value.Value { return value.ForeignString(s) }
func (e *Engine) Foreign(p interface{}) value.Value { return value.Foreign(p) }
func (e *Engine) Null() value.Value                 { return value.Null() }
func (e *Engine) Undefined() value.Value            { return value.Undefined() }

// Object creates a new plain object whose prototype is the engine's shared
// object prototype, and registers it with the collector.
func (e *Engine) Object() value.Value {
	o := object.New(e.VM.ObjectPrototype)
	return e.registerIfHeap(value.Object(o))
}

// Array creates a new empty dense array.
func (e *Engine) Array() value.Value {
	a := object.NewDenseArray(e.VM.ArrayPrototype)
	return e.registerIfHeap(value.Object(a))
}

// CFunction binds a native Go callable into a value callable from script.
func (e *Engine) CFunction(fn vm.CFunction) value.Value {
	return value.CFunction(fn)
}

// ---- Value inspection (spec.md §6 "Value inspection") --------------------

func (e *Engine) IsNumber(v value.Value) bool    { return v.IsNumber() }
func (e *Engine) IsString(v value.Value) bool    { return v.IsString() }
func (e *Engine) IsObject(v value.Value) bool    { return v.IsObject() }
func (e *Engine) IsCallable(v value.Value) bool  { return v.IsCallable() }
func (e *Engine) IsUndefined(v value.Value) bool { return v.IsUndefined() }
func (e *Engine) IsNull(v value.Value) bool      { return v.IsNull() }
func (e *Engine) IsBoolean(v value.Value) bool   { return v.IsBoolean() }
func (e *Engine) IsForeign(v value.Value) bool   { return v.IsForeign() }

// IsArray reports whether v is a dense-array object.
func (e *Engine) IsArray(v value.Value) bool {
	o, ok := v.Ptr().(*object.Object)
	return ok && o.IsDenseArray()
}

// IsGenericObject reports whether v is an object that is not itself a
// function, per spec.md §4.1's predicate of the same name.
func (e *Engine) IsGenericObject(v value.Value) bool {
	if !v.IsObject() {
		return false
	}
	o, ok := v.Ptr().(*object.Object)
	return ok && !o.IsFunction()
}

func (e *Engine) GetDouble(v value.Value) float64 { return v.Float64() }
func (e *Engine) GetBool(v value.Value) bool      { return v.Bool() }
func (e *Engine) GetPtr(v value.Value) interface{} { return v.Ptr() }

// GetString returns the string payload and its storage kind.
func (e *Engine) GetString(v value.Value) (string, value.StringKind) { return v.Str() }

// GetCString returns the string payload as a plain Go string; Go strings
// are never NUL-padded so this is equivalent to GetString's first return,
// kept as a distinct name only for parity with spec.md's
// `get_cstring`/`get_string` pair.
func (e *Engine) GetCString(v value.Value) string {
	s, _ := v.Str()
	return s
}

// ToString applies the engine's ToString coercion (spec.md §4.1).
func (e *Engine) ToString(v value.Value) string { return vm.ToString(v) }

// ToNumber applies the engine's ToNumber coercion.
func (e *Engine) ToNumber(v value.Value) float64 { return vm.ToNumber(v) }

// ToBoolean applies the engine's ToBoolean coercion.
func (e *Engine) ToBoolean(v value.Value) bool { return vm.ToBoolean(v) }

// ---- Object surface (spec.md §6 "Object surface") -------------------------

// Get reads a property by name, walking the prototype chain, invoking a
// getter if present.
func (e *Engine) Get(obj value.Value, name string) (value.Value, error) {
	return e.VM.GetProperty(obj, value.String(name, false))
}

// Set performs ordinary JS assignment semantics on obj[name].
func (e *Engine) Set(obj value.Value, name string, v value.Value) {
	e.VM.SetProperty(obj, value.String(name, false), v)
}

// AttrFlags is this package's host-facing attribute descriptor. Design
// Note §9 flags the original's "bits-to-set plus a mask of which bits are
// controlled" integer encoding as an aliasing trap and recommends a
// structured update instead (object.AttrDesc); AttrFlags sits one layer
// above that as a plain set of booleans (present/absent, not
// set/clear/unchanged) for writable/enumerable/configurable, with
// AttrPreserveValue covering the one case that needs a third state
// ("leave the value alone").
type AttrFlags uint32

const (
	AttrWritable AttrFlags = 1 << iota
	AttrEnumerable
	AttrConfigurable
	AttrHasGetter
	AttrHasSetter
	AttrPreserveValue
)

// Def implements spec.md §6 `def`: define or redefine a property with an
// explicit attribute descriptor.
func (e *Engine) Def(obj value.Value, name string, v value.Value, getter, setter *value.Value, flags AttrFlags) error {
	o, ok := obj.Ptr().(*object.Object)
	if !ok {
		return e.Throwf(vm.TypeError, "Def: not an object")
	}
	desc := object.AttrDesc{
		Value:         v,
		PreserveValue: flags&AttrPreserveValue != 0,
	}
	if flags&AttrHasGetter != 0 {
		desc.Getter = getter
	}
	if flags&AttrHasSetter != 0 {
		desc.Setter = setter
	}
	writable := flags&AttrWritable != 0
	enumerable := flags&AttrEnumerable != 0
	configurable := flags&AttrConfigurable != 0
	desc.Writable = &writable
	desc.Enumerable = &enumerable
	desc.Configurable = &configurable
	if err := o.DefineProperty(name, desc); err != nil {
		return e.Throwf(vm.TypeError, "cannot redefine property %q: %v", name, err)
	}
	return nil
}

// Del removes an own property.
func (e *Engine) Del(obj value.Value, name string) bool {
	return e.VM.DeleteProperty(obj, value.String(name, false))
}

// NextProp is the host-facing for-in-style enumeration iterator.
func (e *Engine) NextProp(obj value.Value, handle interface{}) (name string, val value.Value, next interface{}, ok bool) {
	o, isObj := obj.Ptr().(*object.Object)
	if !isObj {
		return "", value.Undefined(), nil, false
	}
	p, h := o.NextProperty(handle)
	if p == nil {
		return "", value.Undefined(), nil, false
	}
	return p.Name, p.Value, h, true
}

// SetProto sets obj's prototype. Per spec.md's "Prototype policy", this
// always fails (without throwing) for function objects.
func (e *Engine) SetProto(obj value.Value, proto *object.Object) bool {
	o, ok := obj.Ptr().(*object.Object)
	if !ok || o.IsFunction() {
		return false
	}
	o.Proto = proto
	return true
}

// GetProto returns obj's prototype, or nil.
func (e *Engine) GetProto(obj value.Value) *object.Object {
	o, ok := obj.Ptr().(*object.Object)
	if !ok {
		return nil
	}
	return o.Proto
}

// IsInstanceOf implements spec.md §6 `is_instance_of`.
func (e *Engine) IsInstanceOf(v, ctor value.Value) bool {
	return e.VM.InstanceOf(v, ctor)
}

// SetUserData/GetUserData/SetDestructorCB bind host-owned opaque data to an
// object, mirroring the C API's per-object user-data slot used to attach
// native resources (a file handle, a socket) a destructor must release.
func (e *Engine) SetUserData(obj value.Value, data interface{}) {
	if o, ok := obj.Ptr().(*object.Object); ok {
		o.UserData = data
	}
}

func (e *Engine) GetUserData(obj value.Value) interface{} {
	if o, ok := obj.Ptr().(*object.Object); ok {
		return o.UserData
	}
	return nil
}

func (e *Engine) SetDestructorCB(obj value.Value, d object.Destructor) {
	if o, ok := obj.Ptr().(*object.Object); ok {
		o.SetDestructor(d)
	}
}

// ---- Array surface (spec.md §6 "Array surface") ---------------------------

func asArray(v value.Value) (*object.Object, bool) {
	o, ok := v.Ptr().(*object.Object)
	if !ok || !o.IsDenseArray() {
		return nil, false
	}
	return o, true
}

func (e *Engine) MkArray() value.Value { return e.Array() }

func (e *Engine) ArrayLength(v value.Value) int {
	o, ok := asArray(v)
	if !ok {
		return 0
	}
	return o.Length()
}

func (e *Engine) ArrayGet(v value.Value, i int) value.Value {
	o, ok := asArray(v)
	if !ok {
		return value.Undefined()
	}
	return o.ElementAt(i)
}

func (e *Engine) ArraySet(v value.Value, i int, elem value.Value) error {
	o, ok := asArray(v)
	if !ok {
		return e.Throwf(vm.TypeError, "ArraySet: not an array")
	}
	o.SetElementAt(i, elem)
	return nil
}

func (e *Engine) ArrayPush(v, elem value.Value) (int, error) {
	o, ok := asArray(v)
	if !ok {
		return 0, e.Throwf(vm.TypeError, "ArrayPush: not an array")
	}
	return o.Push(elem), nil
}

func (e *Engine) ArrayDel(v value.Value, i int) error {
	o, ok := asArray(v)
	if !ok {
		return e.Throwf(vm.TypeError, "ArrayDel: not an array")
	}
	o.DeleteElementAt(i)
	return nil
}

// ---- Rooting (spec.md §6 "Rooting") ---------------------------------------

// Own appends v to the engine's root buffer so it survives Collect even if
// nothing else references it, per spec.md §6 `own`.
func (e *Engine) Own(v value.Value) {
	e.owned = append(e.owned, v)
}

// Disown removes the first occurrence of v from the root buffer, per
// spec.md §6 `disown`. Strict-equals identity, matching the source's
// pointer-equality semantics for `v7_disown` (array-of-pointers removal).
func (e *Engine) Disown(v value.Value) {
	for i, o := range e.owned {
		if object.StrictEquals(o, v) {
			e.owned = append(e.owned[:i], e.owned[i+1:]...)
			return
		}
	}
}
