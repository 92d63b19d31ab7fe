package compiler

import (
	"fmt"

	"github.com/eddid/v7go/bcode"
	"github.com/eddid/v7go/internal/ast"
)

var binaryOps = map[string]bcode.Op{
	"+":   bcode.OpAdd,
	"-":   bcode.OpSub,
	"*":   bcode.OpMul,
	"/":   bcode.OpDiv,
	"%":   bcode.OpMod,
	"&":   bcode.OpBAnd,
	"|":   bcode.OpBOr,
	"^":   bcode.OpBXor,
	"<<":  bcode.OpShl,
	">>":  bcode.OpShr,
	">>>": bcode.OpUShr,
	"==":  bcode.OpEq,
	"!=":  bcode.OpNotEq,
	"===": bcode.OpEq3,
	"!==": bcode.OpNotEq3,
	"<":   bcode.OpLt,
	">":   bcode.OpGt,
	"<=":  bcode.OpLte,
	">=":  bcode.OpGte,
	"instanceof": bcode.OpInstanceOf,
	"in":         bcode.OpIn,
}

// expr lowers an expression, leaving exactly one value on the stack.
func (b *builder) expr(e ast.Expression) error {
	switch n := e.(type) {
	case *ast.Ident:
		b.emitImm(bcode.OpGetVar, uint32(b.nameIndex(n.Name)))
		return nil
	case *ast.NumberLit:
		b.emitImm(bcode.OpPushLit, uint32(b.internNumber(n.Value)))
		return nil
	case *ast.StringLit:
		b.emitImm(bcode.OpPushLit, uint32(b.internString(n.Value)))
		return nil
	case *ast.RegexpLit:
		b.emitImm(bcode.OpPushLit, uint32(b.internRegexp(n.Pattern, n.Flags)))
		return nil
	case *ast.BoolLit:
		if n.Value {
			b.emit(bcode.OpPushTrue)
		} else {
			b.emit(bcode.OpPushFalse)
		}
		return nil
	case *ast.NullLit:
		b.emit(bcode.OpPushNull)
		return nil
	case *ast.UndefinedLit:
		b.emit(bcode.OpPushUndefined)
		return nil
	case *ast.ThisExpr:
		b.emit(bcode.OpPushThis)
		return nil
	case *ast.BinaryExpr:
		return b.binaryExpr(n)
	case *ast.UnaryExpr:
		return b.unaryExpr(n)
	case *ast.UpdateExpr:
		return b.updateExpr(n)
	case *ast.AssignExpr:
		return b.assignExpr(n)
	case *ast.ConditionalExpr:
		return b.conditionalExpr(n)
	case *ast.MemberExpr:
		return b.memberExpr(n)
	case *ast.CallExpr:
		return b.callExpr(n)
	case *ast.NewExpr:
		return b.newExpr(n)
	case *ast.ArrayLit:
		return b.arrayLit(n)
	case *ast.ObjectLit:
		return b.objectLit(n)
	case *ast.FunctionLit:
		return b.functionLit(n)
	default:
		return &Error{Msg: fmt.Sprintf("compiler: unsupported expression %T", e)}
	}
}

// binaryExpr lowers && and || with short-circuit jumps and every other
// binary operator as eager evaluation of both operands followed by a
// single opcode, per spec.md §4.3's expression lowering table.
func (b *builder) binaryExpr(n *ast.BinaryExpr) error {
	switch n.Op {
	case "&&":
		if err := b.expr(n.Left); err != nil {
			return err
		}
		b.emit(bcode.OpDup)
		shortCircuit := b.emitJump(bcode.OpJmpIfNot)
		b.emit(bcode.OpDrop)
		if err := b.expr(n.Right); err != nil {
			return err
		}
		b.patchJump(shortCircuit)
		return nil
	case "||":
		if err := b.expr(n.Left); err != nil {
			return err
		}
		b.emit(bcode.OpDup)
		shortCircuit := b.emitJump(bcode.OpJmpIf)
		b.emit(bcode.OpDrop)
		if err := b.expr(n.Right); err != nil {
			return err
		}
		b.patchJump(shortCircuit)
		return nil
	}
	op, ok := binaryOps[n.Op]
	if !ok {
		return &Error{Msg: fmt.Sprintf("compiler: unknown binary operator %q", n.Op)}
	}
	if err := b.expr(n.Left); err != nil {
		return err
	}
	if err := b.expr(n.Right); err != nil {
		return err
	}
	b.emit(op)
	return nil
}

func (b *builder) unaryExpr(n *ast.UnaryExpr) error {
	switch n.Op {
	case "typeof":
		// typeof on an undeclared identifier yields "undefined". OpGetVar
		// pushes undefined for any name that does not resolve, in every
		// context, so no separate opcode path is needed here; reading an
		// undeclared name outside typeof also yields undefined and raises
		// no ReferenceError.
		if err := b.expr(n.Operand); err != nil {
			return err
		}
		b.emit(bcode.OpTypeOf)
		return nil
	case "delete":
		m, ok := n.Operand.(*ast.MemberExpr)
		if !ok {
			// delete of a non-member expression is always true and has no
			// side effect to evaluate.
			b.emit(bcode.OpPushTrue)
			return nil
		}
		if err := b.expr(m.Object); err != nil {
			return err
		}
		if err := b.memberKey(m); err != nil {
			return err
		}
		b.emit(bcode.OpDelProp)
		return nil
	}
	if err := b.expr(n.Operand); err != nil {
		return err
	}
	switch n.Op {
	case "-":
		b.emit(bcode.OpNeg)
	case "+":
		b.emit(bcode.OpPlus)
	case "!":
		b.emit(bcode.OpNot)
	case "~":
		b.emit(bcode.OpBNot)
	default:
		return &Error{Msg: fmt.Sprintf("compiler: unknown unary operator %q", n.Op)}
	}
	return nil
}

// updateExpr lowers ++/-- for both prefix and postfix forms. For an
// identifier target the sequence is get/add/set, each of which is
// idempotent to repeat; for a member target, obj and key would have to be
// evaluated twice to do the same thing (and a computed key like `a[f()]`
// must only call f() once), so OpUpdateProp folds the whole
// read-modify-write into a single vm-side instruction instead.
func (b *builder) updateExpr(n *ast.UpdateExpr) error {
	delta := float64(1)
	if n.Op == "--" {
		delta = -1
	}
	switch target := n.Operand.(type) {
	case *ast.Ident:
		idx := uint32(b.nameIndex(target.Name))
		b.emitImm(bcode.OpGetVar, idx)
		if !n.Prefix {
			b.emit(bcode.OpDup)
		}
		b.emitImm(bcode.OpPushLit, uint32(b.internNumber(delta)))
		b.emit(bcode.OpAdd)
		if n.Prefix {
			b.emit(bcode.OpDup)
		}
		b.emitImm(bcode.OpSetVar, idx)
		b.emit(bcode.OpDrop)
		return nil
	case *ast.MemberExpr:
		if err := b.expr(target.Object); err != nil {
			return err
		}
		if err := b.memberKey(target); err != nil {
			return err
		}
		imm := uint32(0)
		if n.Prefix {
			imm |= 1
		}
		if n.Op == "--" {
			imm |= 2
		}
		b.emitImm(bcode.OpUpdateProp, imm)
		return nil
	default:
		return &Error{Msg: "compiler: invalid update target"}
	}
}

func (b *builder) assignExpr(n *ast.AssignExpr) error {
	if n.Op != "" {
		op, ok := binaryOps[n.Op]
		if !ok {
			return &Error{Msg: fmt.Sprintf("compiler: unknown compound-assign operator %q", n.Op)}
		}
		return b.compoundAssign(n, op)
	}
	switch target := n.Target.(type) {
	case *ast.Ident:
		if err := b.expr(n.Value); err != nil {
			return err
		}
		b.emitImm(bcode.OpSetVar, uint32(b.nameIndex(target.Name)))
		return nil
	case *ast.MemberExpr:
		if err := b.expr(target.Object); err != nil {
			return err
		}
		if err := b.memberKey(target); err != nil {
			return err
		}
		if err := b.expr(n.Value); err != nil {
			return err
		}
		b.emit(bcode.OpSetProp)
		return nil
	default:
		return &Error{Msg: "compiler: invalid assignment target"}
	}
}

func (b *builder) compoundAssign(n *ast.AssignExpr, op bcode.Op) error {
	switch target := n.Target.(type) {
	case *ast.Ident:
		idx := uint32(b.nameIndex(target.Name))
		b.emitImm(bcode.OpGetVar, idx)
		if err := b.expr(n.Value); err != nil {
			return err
		}
		b.emit(op)
		b.emitImm(bcode.OpSetVar, idx)
		return nil
	case *ast.MemberExpr:
		// As with OpUpdateProp, OpCompoundSetProp folds the read-modify-
		// write into one vm instruction so a computed key's side effects
		// run exactly once.
		if err := b.expr(target.Object); err != nil {
			return err
		}
		if err := b.memberKey(target); err != nil {
			return err
		}
		if err := b.expr(n.Value); err != nil {
			return err
		}
		b.emitImm(bcode.OpCompoundSetProp, uint32(op))
		return nil
	default:
		return &Error{Msg: "compiler: invalid compound-assignment target"}
	}
}

func (b *builder) conditionalExpr(n *ast.ConditionalExpr) error {
	if err := b.expr(n.Test); err != nil {
		return err
	}
	elseJump := b.emitJump(bcode.OpJmpIfNot)
	if err := b.expr(n.Then); err != nil {
		return err
	}
	endJump := b.emitJump(bcode.OpJmp)
	b.patchJump(elseJump)
	if err := b.expr(n.Else); err != nil {
		return err
	}
	b.patchJump(endJump)
	return nil
}

// memberKey lowers a MemberExpr's property portion only (not its object),
// leaving a single key value on the stack: a literal string for `.ident`
// access, or the evaluated subscript for `[expr]` access.
func (b *builder) memberKey(m *ast.MemberExpr) error {
	if !m.Computed {
		ident, ok := m.Property.(*ast.Ident)
		if !ok {
			return &Error{Msg: "compiler: non-computed member property must be an identifier"}
		}
		b.emitImm(bcode.OpPushLit, uint32(b.internString(ident.Name)))
		return nil
	}
	return b.expr(m.Property)
}

func (b *builder) memberExpr(n *ast.MemberExpr) error {
	if err := b.expr(n.Object); err != nil {
		return err
	}
	if err := b.memberKey(n); err != nil {
		return err
	}
	b.emit(bcode.OpGetProp)
	return nil
}

func (b *builder) callExpr(n *ast.CallExpr) error {
	// A call through a member expression passes the object as `this`; the
	// vm's OpCall convention expects callee and thisArg both on the stack
	// beneath the arguments, so member callees are lowered specially.
	if m, ok := n.Callee.(*ast.MemberExpr); ok {
		if err := b.expr(m.Object); err != nil {
			return err
		}
		b.emit(bcode.OpDup) // thisArg, obj
		if err := b.memberKey(m); err != nil {
			return err
		}
		b.emit(bcode.OpGetProp) // thisArg, callee
		for _, a := range n.Args {
			if err := b.expr(a); err != nil {
				return err
			}
		}
		b.emitImm(bcode.OpCall, uint32(len(n.Args)))
		return nil
	}
	b.emit(bcode.OpPushUndefined) // thisArg
	if err := b.expr(n.Callee); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := b.expr(a); err != nil {
			return err
		}
	}
	b.emitImm(bcode.OpCall, uint32(len(n.Args)))
	return nil
}

func (b *builder) newExpr(n *ast.NewExpr) error {
	if err := b.expr(n.Callee); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := b.expr(a); err != nil {
			return err
		}
	}
	b.emitImm(bcode.OpNew, uint32(len(n.Args)))
	return nil
}

func (b *builder) arrayLit(n *ast.ArrayLit) error {
	for _, el := range n.Elements {
		if el == nil {
			b.emit(bcode.OpPushNoValue)
			continue
		}
		if err := b.expr(el); err != nil {
			return err
		}
	}
	b.emitImm(bcode.OpNewArray, uint32(len(n.Elements)))
	return nil
}

func (b *builder) objectLit(n *ast.ObjectLit) error {
	b.emit(bcode.OpNewObject)
	for _, p := range n.Properties {
		b.emit(bcode.OpDup)
		if err := b.objectKey(p); err != nil {
			return err
		}
		if err := b.expr(p.Value); err != nil {
			return err
		}
		attrs := 0 // Kind encodes get/set via the low bits; init properties use 0.
		switch p.Kind {
		case "get":
			attrs = 1
		case "set":
			attrs = 2
		}
		b.emitImm(bcode.OpDefProp, uint32(attrs))
		b.emit(bcode.OpDrop)
	}
	return nil
}

func (b *builder) objectKey(p ast.Property) error {
	if p.Computed {
		return b.expr(p.Key)
	}
	switch k := p.Key.(type) {
	case *ast.Ident:
		b.emitImm(bcode.OpPushLit, uint32(b.internString(k.Name)))
	case *ast.StringLit:
		b.emitImm(bcode.OpPushLit, uint32(b.internString(k.Value)))
	case *ast.NumberLit:
		b.emitImm(bcode.OpPushLit, uint32(b.internString(fmt.Sprintf("%g", k.Value))))
	default:
		return &Error{Msg: "compiler: invalid object literal key"}
	}
	return nil
}

// functionLit compiles a nested function body into its own bcode (with its
// own literal pool and name table, not the parent's) and emits OpNewFunc
// referencing it by index in the parent's Nested slice.
func (b *builder) functionLit(n *ast.FunctionLit) error {
	child := newBuilder(n.Name)
	child.bc.StrictMode = n.StrictMode || b.bc.StrictMode
	child.bc.ParamCount = len(n.Params)
	for _, p := range n.Params {
		child.nameIndex(p)
	}
	child.bc.LocalCount = len(n.Params)
	if err := hoistProgram(child, n.Body.Body); err != nil {
		return err
	}
	for _, s := range n.Body.Body {
		if err := child.statement(s); err != nil {
			return err
		}
	}
	child.emit(bcode.OpReturnUndefined)

	idx := len(b.bc.Nested)
	b.bc.Nested = append(b.bc.Nested, child.bc)
	b.emitImm(bcode.OpNewFunc, uint32(idx))
	return nil
}
