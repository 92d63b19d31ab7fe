package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddid/v7go/internal/ast"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse("t.js", src)
	require.NoError(t, err)
	require.NotNil(t, prog)
	return prog
}

func TestParseVarDeclWithInit(t *testing.T) {
	prog := mustParse(t, "var x = 1 + 2;")
	require.Len(t, prog.Body, 1)
	decl, ok := prog.Body[0].(*ast.VarDecl)
	require.True(t, ok)
	assert.Equal(t, "x", decl.Name)
	bin, ok := decl.Init.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestParseCommaVarDeclDesugarsToBlock(t *testing.T) {
	prog := mustParse(t, "var a = 1, b = 2;")
	require.Len(t, prog.Body, 1)
	block, ok := prog.Body[0].(*ast.BlockStmt)
	require.True(t, ok)
	require.Len(t, block.Body, 2)
	assert.Equal(t, "a", block.Body[0].(*ast.VarDecl).Name)
	assert.Equal(t, "b", block.Body[1].(*ast.VarDecl).Name)
}

func TestParseFunctionDeclAndStrictMode(t *testing.T) {
	prog := mustParse(t, `function f(a, b) { "use strict"; return a + b; }`)
	require.Len(t, prog.Body, 1)
	decl, ok := prog.Body[0].(*ast.FunctionDecl)
	require.True(t, ok)
	assert.Equal(t, "f", decl.Fn.Name)
	assert.Equal(t, []string{"a", "b"}, decl.Fn.Params)
	assert.True(t, decl.Fn.StrictMode)
}

func TestParseIfElse(t *testing.T) {
	prog := mustParse(t, "if (x) y(); else z();")
	stmt, ok := prog.Body[0].(*ast.IfStmt)
	require.True(t, ok)
	assert.NotNil(t, stmt.Then)
	assert.NotNil(t, stmt.Else)
}

func TestParseForInWithDecl(t *testing.T) {
	prog := mustParse(t, "for (var k in obj) { use(k); }")
	stmt, ok := prog.Body[0].(*ast.ForInStmt)
	require.True(t, ok)
	assert.Equal(t, "k", stmt.VarName)
	assert.True(t, stmt.Decl)
}

func TestParseClassicFor(t *testing.T) {
	prog := mustParse(t, "for (var i = 0; i < 10; i++) sum += i;")
	stmt, ok := prog.Body[0].(*ast.ForStmt)
	require.True(t, ok)
	require.NotNil(t, stmt.Init)
	require.NotNil(t, stmt.Test)
	require.NotNil(t, stmt.Update)
}

func TestParseTryCatchFinally(t *testing.T) {
	prog := mustParse(t, `try { risky(); } catch (e) { handle(e); } finally { cleanup(); }`)
	stmt, ok := prog.Body[0].(*ast.TryStmt)
	require.True(t, ok)
	assert.True(t, stmt.HasCatch)
	assert.Equal(t, "e", stmt.CatchParam)
	assert.NotNil(t, stmt.Finally)
}

func TestParseSwitch(t *testing.T) {
	prog := mustParse(t, `switch (x) { case 1: a(); break; default: b(); }`)
	stmt, ok := prog.Body[0].(*ast.SwitchStmt)
	require.True(t, ok)
	require.Len(t, stmt.Cases, 2)
	assert.NotNil(t, stmt.Cases[0].Test)
	assert.Nil(t, stmt.Cases[1].Test)
}

func TestOperatorPrecedence(t *testing.T) {
	prog := mustParse(t, "1 + 2 * 3;")
	es := prog.Body[0].(*ast.ExprStmt)
	bin := es.Expr.(*ast.BinaryExpr)
	assert.Equal(t, "+", bin.Op)
	rhs := bin.Right.(*ast.BinaryExpr)
	assert.Equal(t, "*", rhs.Op)
}

func TestMemberAndCallChain(t *testing.T) {
	prog := mustParse(t, "a.b[c](1, 2);")
	es := prog.Body[0].(*ast.ExprStmt)
	call, ok := es.Expr.(*ast.CallExpr)
	require.True(t, ok)
	require.Len(t, call.Args, 2)
	member, ok := call.Callee.(*ast.MemberExpr)
	require.True(t, ok)
	assert.True(t, member.Computed)
}

func TestNewExpression(t *testing.T) {
	prog := mustParse(t, "new Foo.Bar(1);")
	es := prog.Body[0].(*ast.ExprStmt)
	n, ok := es.Expr.(*ast.NewExpr)
	require.True(t, ok)
	require.Len(t, n.Args, 1)
}

func TestRegexpLiteralParsed(t *testing.T) {
	prog := mustParse(t, "var r = /abc/gi;")
	decl := prog.Body[0].(*ast.VarDecl)
	re, ok := decl.Init.(*ast.RegexpLit)
	require.True(t, ok)
	assert.Equal(t, "abc", re.Pattern)
	assert.Equal(t, "gi", re.Flags)
}

func TestRegexpNamedCaptureGroupRejected(t *testing.T) {
	_, err := Parse("t.js", "var r = /(?<name>abc)/;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "named capture")
}

func TestObjectLiteralWithGetterSetter(t *testing.T) {
	prog := mustParse(t, `var o = { x: 1, get y() { return 2; }, set y(v) {} };`)
	decl := prog.Body[0].(*ast.VarDecl)
	obj, ok := decl.Init.(*ast.ObjectLit)
	require.True(t, ok)
	require.Len(t, obj.Properties, 3)
	assert.Equal(t, "init", obj.Properties[0].Kind)
	assert.Equal(t, "get", obj.Properties[1].Kind)
	assert.Equal(t, "set", obj.Properties[2].Kind)
}

func TestArrayLiteralWithElision(t *testing.T) {
	prog := mustParse(t, "var a = [1, , 3];")
	decl := prog.Body[0].(*ast.VarDecl)
	arr := decl.Init.(*ast.ArrayLit)
	require.Len(t, arr.Elements, 3)
	assert.Nil(t, arr.Elements[1])
}

func TestWithStatementRejected(t *testing.T) {
	_, err := Parse("t.js", "with (o) { x(); }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "with")
}

func TestLabeledStatementRejected(t *testing.T) {
	_, err := Parse("t.js", "outer: while (true) { break; }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "labeled")
}

func TestTryWithoutCatchOrFinallyRejected(t *testing.T) {
	_, err := Parse("t.js", "try { risky(); }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "try without")
}

func TestHexNumberLiteral(t *testing.T) {
	prog := mustParse(t, "var x = 0xFF;")
	decl := prog.Body[0].(*ast.VarDecl)
	num := decl.Init.(*ast.NumberLit)
	assert.Equal(t, float64(255), num.Value)
}
