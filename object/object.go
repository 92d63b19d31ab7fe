// Package object implements the property/object model of spec.md §3/§4.2:
// property lists, attribute bits, prototype chains, getters/setters, and
// dense arrays.
package object

import (
	"fmt"

	"github.com/eddid/v7go/value"
)

// Attr is an object-level attribute bit (spec.md §3 "Object").
type Attr uint8

const (
	AttrNotExtensible Attr = 1 << iota
	AttrDenseArray
	AttrFunction
	AttrOffHeap
	AttrHasDestructor
)

// PropAttr is a property-level attribute bit (spec.md §3 "Property").
type PropAttr uint8

const (
	PropNonWritable PropAttr = 1 << iota
	PropNonEnumerable
	PropNonConfigurable
	PropGetter
	PropSetter
	PropHidden
	PropOffHeap
	PropUserDataAndDestructor
)

// Property is one entry in an object's property list.
type Property struct {
	Name  string
	Value value.Value
	Attr  PropAttr
	next  *Property
}

// IsAccessor reports whether this property holds a [getter, setter] pair
// rather than a plain data value.
func (p *Property) IsAccessor() bool {
	return p.Attr&(PropGetter|PropSetter) != 0
}

// Destructor is invoked by the collector, during sweep, for any object
// carrying AttrHasDestructor, per spec.md §3/§4.5. It receives only the
// object's opaque user data and must not re-enter the engine.
type Destructor func(userData interface{})

// Object is a generic JS object: a linked property list plus attributes.
// Proto is the prototype for every object, function objects included; the
// vm points each function object's Proto at the engine's shared function
// prototype (spec.md §4.2 "Prototype policy").
type Object struct {
	Attr  Attr
	Proto *Object // nil == null

	props     *Property // linked list head
	propCount int

	// Dense array backing buffer. Only meaningful when Attr&AttrDenseArray
	// != 0. Holes are value.NoValue(); see SPEC §4.2 "Dense array contract".
	elements []value.Value

	UserData   interface{}
	destructor Destructor

	// Insertion order is kept by the props list itself: appendProperty
	// adds each new property at its tail, satisfying spec.md §8 invariant
	// 3 ("next_prop yields enumerable properties in the order they were
	// first added").
}

// New creates a plain generic object with the given prototype.
func New(proto *Object) *Object {
	return &Object{Proto: proto}
}

// NewFunctionObject creates an object flagged as a function, with a nil
// Proto; the caller sets Proto (the vm sets the engine's shared function
// prototype).
func NewFunctionObject() *Object {
	return &Object{Attr: AttrFunction}
}

// NewDenseArray creates an empty dense array object.
func NewDenseArray(proto *Object) *Object {
	return &Object{Attr: AttrDenseArray, Proto: proto}
}

// IsDenseArray reports whether o stores its indexed elements in a
// contiguous buffer rather than the property list.
func (o *Object) IsDenseArray() bool { return o.Attr&AttrDenseArray != 0 }

// IsFunction reports whether o is a function object.
func (o *Object) IsFunction() bool { return o.Attr&AttrFunction != 0 }

// ---- Dense array contract (§4.2) ----------------------------------------
//
// A dense array stores index-keyed elements in a contiguous Go slice rather
// than the linked property list. Per the recorded Open Question decision
// (see DESIGN.md), a dense array that later receives a non-numeric own
// property never converts to a sparse/property-list representation — it
// simply grows a conventional property list alongside its element buffer.

// Length returns the number of slots in the backing buffer, including
// holes. Meaningless unless IsDenseArray.
func (o *Object) Length() int { return len(o.elements) }

// ElementAt returns the element at i, or value.Undefined() for both an
// out-of-range index and an in-range hole — script code must never observe
// value.NoValue() directly.
func (o *Object) ElementAt(i int) value.Value {
	if i < 0 || i >= len(o.elements) {
		return value.Undefined()
	}
	if o.elements[i].IsNoValue() {
		return value.Undefined()
	}
	return o.elements[i]
}

// RawElementAt returns the raw slot value (possibly value.NoValue()),
// for callers that must distinguish a hole from an assigned undefined,
// such as the GC's marker and Array.prototype iteration methods.
func (o *Object) RawElementAt(i int) value.Value {
	if i < 0 || i >= len(o.elements) {
		return value.NoValue()
	}
	return o.elements[i]
}

// SetElementAt assigns index i, growing the backing buffer (filling any
// newly created gap with holes) as needed. Growth never shrinks capacity
// back down on its own; DeleteElementAt leaves a hole rather than
// compacting, matching ordinary JS array semantics (`delete a[i]` does not
// reindex).
func (o *Object) SetElementAt(i int, v value.Value) {
	if i < 0 {
		return
	}
	if i >= len(o.elements) {
		grown := make([]value.Value, i+1)
		copy(grown, o.elements)
		for j := len(o.elements); j < i; j++ {
			grown[j] = value.NoValue()
		}
		o.elements = grown
	}
	o.elements[i] = v
}

// DeleteElementAt clears index i to a hole without resizing the buffer.
func (o *Object) DeleteElementAt(i int) {
	if i >= 0 && i < len(o.elements) {
		o.elements[i] = value.NoValue()
	}
}

// Push appends v as a new highest index, as Array.prototype.push does.
func (o *Object) Push(v value.Value) int {
	o.elements = append(o.elements, v)
	return len(o.elements)
}

// SetLength implements the `array.length = n` contract: growing pads with
// holes, shrinking truncates and discards elements beyond n.
func (o *Object) SetLength(n int) {
	if n < 0 {
		n = 0
	}
	if n <= len(o.elements) {
		o.elements = o.elements[:n]
		return
	}
	grown := make([]value.Value, n)
	copy(grown, o.elements)
	for j := len(o.elements); j < n; j++ {
		grown[j] = value.NoValue()
	}
	o.elements = grown
}

// SetDestructor registers a and its destructor, setting AttrHasDestructor.
func (o *Object) SetDestructor(d Destructor) {
	o.destructor = d
	o.Attr |= AttrHasDestructor
}

// RunDestructor invokes the registered destructor, if any. Called by the
// GC during sweep, never by script-reachable code.
func (o *Object) RunDestructor() {
	if o.Attr&AttrHasDestructor != 0 && o.destructor != nil {
		o.destructor(o.UserData)
	}
}

// ---- Own-property lookup (§4.2) -----------------------------------------

// GetOwnProperty returns the named own property, or nil if absent. It does
// not walk the prototype chain.
func (o *Object) GetOwnProperty(name string) *Property {
	for p := o.props; p != nil; p = p.next {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// GetProperty walks the prototype chain starting at o, returning the first
// matching property and the object that owns it, or (nil, nil).
func (o *Object) GetProperty(name string) (*Property, *Object) {
	for cur := o; cur != nil; cur = cur.effectiveProto() {
		if p := cur.GetOwnProperty(name); p != nil {
			return p, cur
		}
	}
	return nil, nil
}

// effectiveProto returns the prototype used for chain walking: function
// objects never own a Proto slot (spec.md "Prototype policy"), so without a
// shared function_prototype wired in by the caller, the chain simply
// terminates — engine.Engine always sets Proto to the shared function
// prototype when constructing function objects, so this is a pass-through
// in the normal case and only matters for hand-built Objects in tests.
func (o *Object) effectiveProto() *Object { return o.Proto }

// ---- Attribute descriptor encoding (§6) ---------------------------------

// AttrDesc is a structured update to a property's attributes, modeled as
// three optional tri-state fields rather than the "set bits / mask bits"
// integer encoding spec.md §6 describes at the host-ABI level — Design
// Note §9 calls out that encoding as an aliasing trap ("no change" vs "set
// to zero") the target language should avoid. engine's public AttrFlags
// is a plain set of boolean flags, and engine.Def builds an AttrDesc from
// it, so the set/mask integer encoding appears in neither package.
type AttrDesc struct {
	Writable     *bool
	Enumerable   *bool
	Configurable *bool
	Getter       *value.Value
	Setter       *value.Value
	// PreserveValue means "update attributes only, keep existing value".
	PreserveValue bool
	Value         value.Value
}

var (
	boolTrue  = true
	boolFalse = false
)

func tri(b bool) *bool {
	if b {
		return &boolTrue
	}
	return &boolFalse
}

// ErrNotConfigurable is returned by DefineProperty when an incompatible
// redefinition of a non-configurable property is attempted.
var ErrNotConfigurable = fmt.Errorf("object: property is not configurable")

// DefineProperty implements [[DefineOwnProperty]] (spec.md §4.2), honoring
// existing attributes: it rejects disallowed changes on a non-configurable
// property but permits narrowing writable→non-writable and redefining with
// an identical value, per original_source/v7/src/object.c's def_property.
func (o *Object) DefineProperty(name string, desc AttrDesc) error {
	existing := o.GetOwnProperty(name)
	if existing == nil {
		p := &Property{Name: name}
		if desc.Getter != nil || desc.Setter != nil {
			p.Attr |= PropGetter | PropSetter
			p.Value = value.Object(newAccessorPair(desc.Getter, desc.Setter))
		} else {
			p.Value = desc.Value
		}
		applyDefaults(p, desc)
		o.appendProperty(p)
		return nil
	}

	nonConfigurable := existing.Attr&PropNonConfigurable != 0
	if nonConfigurable {
		if desc.Configurable != nil && *desc.Configurable {
			return ErrNotConfigurable
		}
		if desc.Enumerable != nil && *desc.Enumerable != (existing.Attr&PropNonEnumerable == 0) {
			return ErrNotConfigurable
		}
		if existing.IsAccessor() {
			if desc.Getter != nil || desc.Setter != nil {
				return ErrNotConfigurable
			}
		} else if !desc.PreserveValue {
			wasWritable := existing.Attr&PropNonWritable == 0
			wantsWritable := desc.Writable == nil || *desc.Writable
			if !wasWritable {
				// Narrowing writable->non-writable is always permitted;
				// widening non-writable->writable is not, and a value
				// change is only permitted if the new value is identical.
				if wantsWritable {
					return ErrNotConfigurable
				}
				if !desc.PreserveValue && !sameValue(existing.Value, desc.Value) {
					return ErrNotConfigurable
				}
			}
		}
	}

	if !desc.PreserveValue {
		if desc.Getter != nil || desc.Setter != nil {
			existing.Attr |= PropGetter | PropSetter
			existing.Value = value.Object(newAccessorPair(desc.Getter, desc.Setter))
		} else {
			existing.Value = desc.Value
		}
	}
	if desc.Writable != nil {
		setBit(&existing.Attr, PropNonWritable, !*desc.Writable)
	}
	if desc.Enumerable != nil {
		setBit(&existing.Attr, PropNonEnumerable, !*desc.Enumerable)
	}
	if desc.Configurable != nil {
		setBit(&existing.Attr, PropNonConfigurable, !*desc.Configurable)
	}
	return nil
}

func applyDefaults(p *Property, desc AttrDesc) {
	// Defaults on first creation: non-writable/non-enumerable/
	// non-configurable unless explicitly requested otherwise, matching
	// v7_def's documented default (conservative unless told otherwise).
	if desc.Writable == nil || !*desc.Writable {
		p.Attr |= PropNonWritable
	}
	if desc.Enumerable == nil || !*desc.Enumerable {
		p.Attr |= PropNonEnumerable
	}
	if desc.Configurable == nil || !*desc.Configurable {
		p.Attr |= PropNonConfigurable
	}
}

func setBit(attr *PropAttr, bit PropAttr, on bool) {
	if on {
		*attr |= bit
	} else {
		*attr &^= bit
	}
}

func sameValue(a, b value.Value) bool {
	return StrictEquals(a, b)
}

func (o *Object) appendProperty(p *Property) {
	if o.props == nil {
		o.props = p
	} else {
		cur := o.props
		for cur.next != nil {
			cur = cur.next
		}
		cur.next = p
	}
	o.propCount++
}

// accessorPair is the two-element array spec.md describes for getter/setter
// storage ("value holds a two-element dense array [getter, setter]").
type accessorPair struct {
	Get value.Value
	Set value.Value
}

func newAccessorPair(get, set *value.Value) *accessorPair {
	pair := &accessorPair{Get: value.Undefined(), Set: value.Undefined()}
	if get != nil {
		pair.Get = *get
	}
	if set != nil {
		pair.Set = *set
	}
	return pair
}

// Getter/Setter extract the accessor pair's two callables, or (Undefined,
// Undefined) if p does not carry PropGetter|PropSetter.
func (p *Property) Getter() value.Value {
	if pair, ok := p.Value.Ptr().(*accessorPair); ok {
		return pair.Get
	}
	return value.Undefined()
}

func (p *Property) Setter() value.Value {
	if pair, ok := p.Value.Ptr().(*accessorPair); ok {
		return pair.Set
	}
	return value.Undefined()
}

// ---- set_property / delete_property / next_property (§4.2) -------------

// SetResult reports how SetProperty resolved, so the VM can decide whether
// strict mode must throw.
type SetResult int

const (
	SetOK SetResult = iota
	SetSilentNoop
	SetNeedsSetterCall // caller must invoke Setter() with newValue
)

// SetProperty performs ordinary JS assignment semantics (without invoking
// any setter — callers that need setter dispatch check SetNeedsSetterCall
// first and invoke the setter themselves, since calling back into the VM
// is not this package's concern).
func (o *Object) SetProperty(name string, v value.Value) (SetResult, *Property) {
	if existing := o.GetOwnProperty(name); existing != nil {
		if existing.IsAccessor() {
			return SetNeedsSetterCall, existing
		}
		if existing.Attr&PropNonWritable != 0 {
			return SetSilentNoop, existing
		}
		existing.Value = v
		return SetOK, existing
	}
	// Walk the prototype chain only to discover an inherited accessor;
	// inherited data properties never block an own-property create.
	if p, owner := o.GetProperty(name); p != nil && owner != o {
		if p.IsAccessor() {
			return SetNeedsSetterCall, p
		}
	}
	if o.Attr&AttrNotExtensible != 0 {
		return SetSilentNoop, nil
	}
	p := &Property{Name: name, Value: v}
	o.appendProperty(p)
	return SetOK, p
}

// DeleteResult reports the outcome of DeleteProperty.
type DeleteResult int

const (
	DeleteOK DeleteResult = iota
	DeleteMissing              // property did not exist: still success
	DeleteNonConfigurable      // failure: property exists and is non-configurable
)

// DeleteProperty removes an own property (spec.md: "Only configurable
// properties may be deleted").
func (o *Object) DeleteProperty(name string) DeleteResult {
	var prev *Property
	for p := o.props; p != nil; p = p.next {
		if p.Name == name {
			if p.Attr&PropNonConfigurable != 0 {
				return DeleteNonConfigurable
			}
			if prev == nil {
				o.props = p.next
			} else {
				prev.next = p.next
			}
			o.propCount--
			return DeleteOK
		}
		prev = p
	}
	return DeleteMissing
}

// ForEachProperty visits every own property regardless of enumerability,
// including hidden/internal ones. Used by the collector's marker, which
// must trace every live reference an object holds, not just the subset
// for-in exposes to script.
func (o *Object) ForEachProperty(fn func(*Property)) {
	for p := o.props; p != nil; p = p.next {
		fn(p)
	}
}

// NextProperty implements the for-in enumeration iterator (§4.2): handle is
// the previously returned property (nil to start), and NextProperty returns
// the next own enumerable, non-hidden property in insertion order, or nil
// when exhausted. For dense arrays it synthesizes indices from the backing
// buffer, skipping holes, before falling through to any overflow property
// list entries (non-numeric keys set on a dense array).
func (o *Object) NextProperty(handle interface{}) (*Property, interface{}) {
	if o.IsDenseArray() {
		idx := 0
		if h, ok := handle.(int); ok {
			idx = h + 1
		} else if handle != nil {
			// Handle switched from array index iteration to property-list
			// iteration; delegate below.
			return o.nextPlainProperty(handle)
		}
		for ; idx < len(o.elements); idx++ {
			if !o.elements[idx].IsNoValue() {
				return &Property{Name: fmt.Sprintf("%d", idx), Value: o.elements[idx]}, idx
			}
		}
		return o.nextPlainProperty(nil)
	}
	return o.nextPlainProperty(handle)
}

func (o *Object) nextPlainProperty(handle interface{}) (*Property, interface{}) {
	var start *Property
	if handle == nil {
		start = o.props
	} else if p, ok := handle.(*Property); ok {
		start = p.next
	} else {
		start = o.props
	}
	for p := start; p != nil; p = p.next {
		if p.Attr&(PropNonEnumerable|PropHidden) == 0 {
			return p, p
		}
	}
	return nil, nil
}

// StrictEquals implements spec.md §4.1 strict equality: tag then payload,
// except that strings of any storage kind compare by byte content.
func StrictEquals(a, b value.Value) bool {
	if a.IsString() && b.IsString() {
		as, _ := a.Str()
		bs, _ := b.Str()
		return as == bs
	}
	if a.Tag() != b.Tag() {
		return false
	}
	switch a.Tag() {
	case value.TagUndefined, value.TagNull, value.TagNoValue:
		return true
	case value.TagNumber:
		return a.Float64() == b.Float64()
	case value.TagBoolean:
		return a.Bool() == b.Bool()
	default:
		return a.Ptr() == b.Ptr()
	}
}
