package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddid/v7go/value"
	"github.com/eddid/v7go/vm"
)

func TestExecArithmetic(t *testing.T) {
	e := New(Options{})
	res, err := e.Exec("1 + 2 * 3;")
	require.NoError(t, err)
	assert.Equal(t, float64(7), res.Float64())
}

func TestExecReusesCompiledScriptCache(t *testing.T) {
	e := New(Options{})
	src := "var x = 1; x + 1;"
	res1, err := e.Exec(src)
	require.NoError(t, err)
	res2, err := e.Exec(src)
	require.NoError(t, err)
	assert.Equal(t, res1.Float64(), res2.Float64())
}

func TestExecOptIsJSONDelegatesToParseJSON(t *testing.T) {
	e := New(Options{})
	res, err := e.ExecOpt(`{"a": 1}`, ExecOptions{IsJSON: true})
	require.NoError(t, err)
	v, err := e.Get(res, "a")
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.Float64())
}

func TestExecSyntaxErrorReturnsCompileError(t *testing.T) {
	e := New(Options{})
	_, err := e.Exec("var = ;")
	require.Error(t, err)
	_, ok := err.(*CompileError)
	assert.True(t, ok)
	assert.Equal(t, SyntaxErrorCode, ClassifyErr(err))
}

func TestExecUncaughtThrowSetsThrownValue(t *testing.T) {
	e := New(Options{})
	_, err := e.Exec(`throw "boom";`)
	require.Error(t, err)
	assert.Equal(t, ExecExceptionCode, ClassifyErr(err))

	v, has := e.GetThrownValue()
	require.True(t, has)
	s, _ := v.Str()
	assert.Equal(t, "boom", s)

	e.ClearThrownValue()
	_, has = e.GetThrownValue()
	assert.False(t, has)
}

func TestApplyInvokesGlobalFunctionByLookup(t *testing.T) {
	e := New(Options{})
	_, err := e.Exec(`function add(a, b) { return a + b; }`)
	require.NoError(t, err)

	fnVal := e.VM.Global.GetOwnProperty("add")
	require.NotNil(t, fnVal)

	res, err := e.Apply(fnVal.Value, e.Undefined(), []value.Value{e.Number(2), e.Number(3)})
	require.NoError(t, err)
	assert.Equal(t, float64(5), res.Float64())
}

func TestCompileThenRunCompiled(t *testing.T) {
	e := New(Options{})
	bc, err := e.Compile("t.js", "21 * 2;")
	require.NoError(t, err)
	res, err := e.RunCompiled(bc)
	require.NoError(t, err)
	assert.Equal(t, float64(42), res.Float64())
}

func TestObjectAndArraySurface(t *testing.T) {
	e := New(Options{})
	o := e.Object()
	e.Set(o, "x", e.Number(5))
	v, err := e.Get(o, "x")
	require.NoError(t, err)
	assert.Equal(t, float64(5), v.Float64())

	arr := e.Array()
	n, err := e.ArrayPush(arr, e.Number(1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, e.ArrayLength(arr))
	assert.Equal(t, float64(1), e.ArrayGet(arr, 0).Float64())

	require.NoError(t, e.ArraySet(arr, 0, e.Number(9)))
	assert.Equal(t, float64(9), e.ArrayGet(arr, 0).Float64())

	require.NoError(t, e.ArrayDel(arr, 0))
	assert.True(t, e.ArrayGet(arr, 0).IsUndefined())
}

func TestIsArrayAndIsGenericObject(t *testing.T) {
	e := New(Options{})
	arr := e.Array()
	obj := e.Object()
	assert.True(t, e.IsArray(arr))
	assert.False(t, e.IsArray(obj))
	assert.True(t, e.IsGenericObject(obj))
}

func TestDefCreatesNonWritableProperty(t *testing.T) {
	e := New(Options{})
	o := e.Object()
	err := e.Def(o, "frozen", e.Number(1), nil, nil, AttrEnumerable|AttrConfigurable)
	require.NoError(t, err)

	e.Set(o, "frozen", e.Number(2))
	v, err := e.Get(o, "frozen")
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.Float64())
}

func TestDelRemovesOwnProperty(t *testing.T) {
	e := New(Options{})
	o := e.Object()
	e.Set(o, "x", e.Number(1))
	assert.True(t, e.Del(o, "x"))
	v, err := e.Get(o, "x")
	require.NoError(t, err)
	assert.True(t, v.IsUndefined())
}

func TestNextPropEnumeratesOwnProperties(t *testing.T) {
	e := New(Options{})
	o := e.Object()
	e.Set(o, "a", e.Number(1))
	e.Set(o, "b", e.Number(2))

	var names []string
	var handle interface{}
	for {
		name, _, next, ok := e.NextProp(o, handle)
		if !ok {
			break
		}
		names = append(names, name)
		handle = next
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestOwnDisownRooting(t *testing.T) {
	e := New(Options{})
	o := e.Object()
	e.Own(o)
	assert.Len(t, e.owned, 1)
	e.Disown(o)
	assert.Len(t, e.owned, 0)
}

func TestCollectFreesUnrootedObjects(t *testing.T) {
	e := New(Options{})
	e.Object() // garbage: never rooted, never assigned into the global graph
	stats := e.Collect()
	assert.GreaterOrEqual(t, stats.TotalSwept, 1)
}

func TestCollectDoesNotFreeOwnedObjects(t *testing.T) {
	e := New(Options{})
	o := e.Object()
	e.Own(o)
	e.Set(o, "x", e.Number(1))
	e.Collect()
	v, err := e.Get(o, "x")
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.Float64())
}

func TestThrowfBuildsErrorOfRequestedKind(t *testing.T) {
	e := New(Options{})
	err := e.Throwf(vm.TypeError, "bad %s", "value")
	require.Error(t, err)
	v, has := e.GetThrownValue()
	require.True(t, has)
	assert.Equal(t, "TypeError: bad value", vm.ToString(v))

	msg, err := e.Get(v, "message")
	require.NoError(t, err)
	s, _ := msg.Str()
	assert.Equal(t, "bad value", s)
}

func TestIsInstanceOf(t *testing.T) {
	e := New(Options{})
	_, err := e.Exec(`function Animal() {} var a = new Animal();`)
	require.NoError(t, err)
	a := e.VM.Global.GetOwnProperty("a")
	ctor := e.VM.Global.GetOwnProperty("Animal")
	require.NotNil(t, a)
	require.NotNil(t, ctor)
	assert.True(t, e.IsInstanceOf(a.Value, ctor.Value))
}

func TestScriptThrownErrorIsInstanceOfItsConstructor(t *testing.T) {
	e := New(Options{})
	res, err := e.Exec(`
		var caught;
		try {
			throw new TypeError("bad");
		} catch (e) {
			caught = e instanceof TypeError;
		}
		caught;
	`)
	require.NoError(t, err)
	assert.True(t, res.Bool())
}

func TestArrayPrototypeMapJoinPushFromScript(t *testing.T) {
	e := New(Options{})
	res, err := e.Exec(`
		var a = [1, 2, 3];
		a.push(4);
		a.map(function (x) { return x * 2; }).join("-");
	`)
	require.NoError(t, err)
	s, _ := res.Str()
	assert.Equal(t, "2-4-6-8", s)
}

func TestObjectDefinePropertyNonWritableNoopNonStrict(t *testing.T) {
	e := New(Options{})
	res, err := e.Exec(`
		var o = {x: 1};
		Object.defineProperty(o, "x", {writable: false});
		o.x = 2;
		o.x;
	`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), res.Float64())
}

func TestObjectDefinePropertyNonWritableThrowsInStrictMode(t *testing.T) {
	e := New(Options{})
	res, err := e.Exec(`
		(function () {
			"use strict";
			var o = {x: 1};
			Object.defineProperty(o, "x", {writable: false});
			try {
				o.x = 2;
				return false;
			} catch (e) {
				return e instanceof TypeError;
			}
		})();
	`)
	require.NoError(t, err)
	assert.True(t, res.Bool())
}
