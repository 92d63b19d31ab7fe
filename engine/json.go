package engine

import (
	"encoding/json"
	"strings"

	"github.com/eddid/v7go/object"
	"github.com/eddid/v7go/value"
	"github.com/eddid/v7go/vm"
)

// ParseJSON implements spec.md §6 `parse_json(text)`: strict JSON on
// input, producing ordinary engine values (objects/dense arrays/numbers/
// strings/booleans/null) rather than JS source to compile and run.
func (e *Engine) ParseJSON(text string) (value.Value, error) {
	var decoded interface{}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return value.Undefined(), e.Throwf(vm.SyntaxError, "invalid JSON: %v", err)
	}
	if _, err := dec.Token(); err == nil {
		return value.Undefined(), e.Throwf(vm.SyntaxError, "invalid JSON: trailing data")
	}
	return e.fromJSON(decoded), nil
}

func (e *Engine) fromJSON(v interface{}) value.Value {
	switch x := v.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Boolean(x)
	case json.Number:
		f, _ := x.Float64()
		return value.Number(f)
	case string:
		return value.String(x, true)
	case []interface{}:
		arr := object.NewDenseArray(e.VM.ArrayPrototype)
		for _, elem := range x {
			arr.Push(e.fromJSON(elem))
		}
		return e.registerIfHeap(value.Object(arr))
	case map[string]interface{}:
		obj := object.New(e.VM.ObjectPrototype)
		for k, elem := range x {
			obj.SetProperty(k, e.fromJSON(elem))
		}
		return e.registerIfHeap(value.Object(obj))
	default:
		return value.Undefined()
	}
}

// ToJSONOrDebug implements spec.md §4.1 `to_json_or_debug(v, is_debug)`:
// formats v as JSON when isDebug is false (functions/undefined are
// omitted from objects, replaced by null inside arrays) or as a debug
// dump when true (functions and undefined are rendered literally). A
// per-call visited-set breaks cycles by emitting null on re-entry, per
// spec.md's "cycle-detection stack" rule.
func (e *Engine) ToJSONOrDebug(v value.Value, isDebug bool) string {
	seen := make(map[*object.Object]bool)
	var b []byte
	b = e.appendJSON(b, v, isDebug, seen)
	return string(b)
}

func (e *Engine) appendJSON(b []byte, v value.Value, isDebug bool, seen map[*object.Object]bool) []byte {
	switch v.Tag() {
	case value.TagUndefined:
		if isDebug {
			return append(b, "undefined"...)
		}
		return append(b, "null"...)
	case value.TagNull:
		return append(b, "null"...)
	case value.TagBoolean:
		if v.Bool() {
			return append(b, "true"...)
		}
		return append(b, "false"...)
	case value.TagNumber:
		return append(b, vm.ToString(v)...)
	case value.TagString:
		s, _ := v.Str()
		quoted, _ := json.Marshal(s)
		return append(b, quoted...)
	case value.TagFunction, value.TagCFunction:
		if isDebug {
			return append(b, "[Function]"...)
		}
		return append(b, "null"...)
	case value.TagObject:
		o, ok := v.Ptr().(*object.Object)
		if !ok {
			return append(b, "null"...)
		}
		if seen[o] {
			return append(b, "null"...)
		}
		seen[o] = true
		defer delete(seen, o)
		if o.IsDenseArray() {
			b = append(b, '[')
			n := o.Length()
			for i := 0; i < n; i++ {
				if i > 0 {
					b = append(b, ',')
				}
				b = e.appendJSON(b, o.ElementAt(i), isDebug, seen)
			}
			return append(b, ']')
		}
		b = append(b, '{')
		first := true
		var handle interface{}
		for {
			p, h := o.NextProperty(handle)
			if p == nil {
				break
			}
			handle = h
			if !isDebug && (p.Value.IsUndefined() || p.Value.IsCallable()) {
				continue
			}
			if !first {
				b = append(b, ',')
			}
			first = false
			key, _ := json.Marshal(p.Name)
			b = append(b, key...)
			b = append(b, ':')
			b = e.appendJSON(b, p.Value, isDebug, seen)
		}
		return append(b, '}')
	default:
		return append(b, "null"...)
	}
}

