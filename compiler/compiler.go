// Package compiler lowers an AST (internal/ast) into bcode (spec.md §4.3).
//
// Expression lowering leaves exactly one value on the stack; statement
// lowering leaves the stack exactly as it found it, except where the
// lowering table below says otherwise. An expression statement's value is
// computed, then folded away with OpSwapDrop against the body's running
// "last completion value" slot — the same SWAP_DROP convention the
// specification names explicitly in its stack-discipline notes.
package compiler

import (
	"fmt"

	"github.com/eddid/v7go/bcode"
	"github.com/eddid/v7go/internal/ast"
)

// Error is a compile-time failure (e.g. invalid break/continue placement).
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// loopCtx tracks the jump targets and try-stack depth active for break and
// continue inside the loop/switch currently being compiled.
type loopCtx struct {
	breakTargets    []int // patch sites for break jumps
	continueTargets []int // patch sites for continue jumps
	isSwitch        bool  // switch bodies accept break but not continue
}

// builder holds the in-progress state for one function/script body. Each
// function compiles with its own literal pool and name table; variable
// resolution across function boundaries happens at the vm's scope-chain
// level by name, not by any cross-builder slot numbering, so builder needs
// no link back to an enclosing one.
type builder struct {
	bc       *bcode.Bcode
	litIndex map[litKey]int
	nameIdx  map[string]int
	loops    []*loopCtx
}

type litKey struct {
	kind bcode.LiteralKind
	num  float64
	str  string
}

func newBuilder(name string) *builder {
	return &builder{
		bc:       &bcode.Bcode{Name: name},
		litIndex: make(map[litKey]int),
		nameIdx:  make(map[string]int),
	}
}

// Compile lowers a top-level program into its bcode. A script's completion
// value is observable (it's exec's result), so Compile emits the seed of the
// OpSwapDrop chain that tracks it (statement, below) at the bottom of the
// stack, and the program returns what it left on top instead of falling
// through to OpReturnUndefined. A function body emits no seed of its own:
// vm.callClosure pushes its completion slot before running it.
func Compile(prog *ast.Program) (*bcode.Bcode, error) {
	b := newBuilder("")
	b.bc.StrictMode = prog.StrictMode
	if err := hoistProgram(b, prog.Body); err != nil {
		return nil, err
	}
	b.emit(bcode.OpPushUndefined)
	for _, s := range prog.Body {
		if err := b.statement(s); err != nil {
			return nil, err
		}
	}
	b.emit(bcode.OpReturn)
	return b.bc, nil
}

// ---- Literal pool / name table ------------------------------------------

func (b *builder) internNumber(f float64) int {
	return b.intern(litKey{kind: bcode.LitNumber, num: f})
}

func (b *builder) internString(s string) int {
	return b.intern(litKey{kind: bcode.LitString, str: s})
}

func (b *builder) internRegexp(pattern, flags string) int {
	return b.intern(litKey{kind: bcode.LitRegexp, str: pattern + "\x00" + flags})
}

// intern deduplicates by content per the recorded Open Question decision:
// two literals with identical kind/value share one pool slot.
func (b *builder) intern(k litKey) int {
	if idx, ok := b.litIndex[k]; ok {
		return idx
	}
	idx := len(b.bc.Literals)
	lit := bcode.Literal{Kind: k.kind, Num: k.num, Str: k.str}
	if k.kind == bcode.LitRegexp {
		lit.Str = k.str
	}
	b.bc.Literals = append(b.bc.Literals, lit)
	b.litIndex[k] = idx
	return idx
}

func (b *builder) nameIndex(name string) int {
	if idx, ok := b.nameIdx[name]; ok {
		return idx
	}
	idx := len(b.bc.Names)
	b.bc.Names = append(b.bc.Names, name)
	b.nameIdx[name] = idx
	return idx
}

// ---- Emission helpers -----------------------------------------------------

func (b *builder) emit(op bcode.Op) int {
	pos := len(b.bc.Code)
	b.bc.Code = append(b.bc.Code, byte(op))
	return pos
}

func (b *builder) emitImm(op bcode.Op, imm uint32) int {
	pos := len(b.bc.Code)
	b.bc.Code = append(b.bc.Code, byte(op))
	b.bc.Code = bcode.PutUint32(b.bc.Code, imm)
	return pos
}

// emitJump emits a jump opcode with a placeholder immediate and returns the
// offset of that immediate, to be fixed up later via patchJump.
func (b *builder) emitJump(op bcode.Op) int {
	b.bc.Code = append(b.bc.Code, byte(op))
	at := len(b.bc.Code)
	b.bc.Code = bcode.PutUint32(b.bc.Code, 0)
	return at
}

func (b *builder) here() uint32 { return uint32(len(b.bc.Code)) }

// emitTryPush pushes a try-stack frame of the given kind. LOOP and SWITCH
// frames exist only so the vm's unwind protocol knows a thrown exception
// passes through them rather than stopping there; CATCH and FINALLY frames
// carry a handler entry point, patched in later via patchJump once the
// handler's bytecode offset is known. The returned offset is the target
// immediate's position, valid to pass to patchJump for CATCH/FINALLY
// pushes; it is unused (left zero) for LOOP/SWITCH pushes.
func (b *builder) emitTryPush(kind bcode.TryKind) int {
	b.bc.Code = append(b.bc.Code, byte(bcode.OpTryPush), byte(kind))
	at := len(b.bc.Code)
	b.bc.Code = bcode.PutUint32(b.bc.Code, 0)
	return at
}

func (b *builder) patchJump(immAt int) {
	target := b.here()
	copy(b.bc.Code[immAt:immAt+4], encodeImm(target))
}

func (b *builder) patchJumpTo(immAt int, target uint32) {
	copy(b.bc.Code[immAt:immAt+4], encodeImm(target))
}

func encodeImm(v uint32) []byte {
	return bcode.PutUint32(nil, v)
}

// ---- Hoisting (§4.3) ------------------------------------------------------
//
// Two passes over a function/script body: first every `var` declaration's
// name is registered (left undefined until its declaration statement
// actually runs), then every function declaration is compiled and bound to
// its name immediately, ahead of any other statement — matching
// original_source/v7/src/compiler.c's documented hoisting order, where
// function declarations are hoisted and bound before plain var hoisting
// takes visible effect. The body itself is compiled afterward, in source
// order, by the caller.
func hoistProgram(b *builder, body []ast.Statement) error {
	var funcDecls []*ast.FunctionDecl
	walkHoistable(body, func(name string) {
		b.nameIndex(name)
		b.bc.LocalCount++
	}, func(decl *ast.FunctionDecl) {
		b.nameIndex(decl.Fn.Name)
		b.bc.LocalCount++
		funcDecls = append(funcDecls, decl)
	})
	for _, decl := range funcDecls {
		if err := b.functionLit(decl.Fn); err != nil {
			return err
		}
		b.emitImm(bcode.OpSetVar, uint32(b.nameIndex(decl.Fn.Name)))
		b.emit(bcode.OpDrop)
	}
	return nil
}

// walkHoistable finds every var declaration and function declaration
// reachable without crossing into a nested function body (exactly the set
// ECMAScript function-scoping hoists), in source order.
func walkHoistable(body []ast.Statement, onVar func(name string), onFunc func(*ast.FunctionDecl)) {
	for _, s := range body {
		walkHoistableStmt(s, onVar, onFunc)
	}
}

func walkHoistableStmt(s ast.Statement, onVar func(string), onFunc func(*ast.FunctionDecl)) {
	switch n := s.(type) {
	case *ast.VarDecl:
		onVar(n.Name)
	case *ast.FunctionDecl:
		onFunc(n)
	case *ast.BlockStmt:
		walkHoistable(n.Body, onVar, onFunc)
	case *ast.IfStmt:
		walkHoistableStmt(n.Then, onVar, onFunc)
		if n.Else != nil {
			walkHoistableStmt(n.Else, onVar, onFunc)
		}
	case *ast.WhileStmt:
		walkHoistableStmt(n.Body, onVar, onFunc)
	case *ast.DoWhileStmt:
		walkHoistableStmt(n.Body, onVar, onFunc)
	case *ast.ForStmt:
		if n.Init != nil {
			walkHoistableStmt(n.Init, onVar, onFunc)
		}
		walkHoistableStmt(n.Body, onVar, onFunc)
	case *ast.ForInStmt:
		if n.Decl {
			onVar(n.VarName)
		}
		walkHoistableStmt(n.Body, onVar, onFunc)
	case *ast.TryStmt:
		walkHoistable(n.Block.Body, onVar, onFunc)
		if n.HasCatch {
			walkHoistable(n.CatchBody.Body, onVar, onFunc)
		}
		if n.Finally != nil {
			walkHoistable(n.Finally.Body, onVar, onFunc)
		}
	case *ast.SwitchStmt:
		for _, c := range n.Cases {
			walkHoistable(c.Body, onVar, onFunc)
		}
	}
}

// ---- Statements ------------------------------------------------------------

func (b *builder) statement(s ast.Statement) error {
	switch n := s.(type) {
	case *ast.ExprStmt:
		if err := b.expr(n.Expr); err != nil {
			return err
		}
		b.emit(bcode.OpSwapDrop)
		return nil
	case *ast.VarDecl:
		if n.Init == nil {
			return nil
		}
		if err := b.expr(n.Init); err != nil {
			return err
		}
		b.emitImm(bcode.OpSetVar, uint32(b.nameIndex(n.Name)))
		b.emit(bcode.OpDrop)
		return nil
	case *ast.FunctionDecl:
		// Already bound during hoisting; nothing to emit in source position.
		return nil
	case *ast.BlockStmt:
		for _, st := range n.Body {
			if err := b.statement(st); err != nil {
				return err
			}
		}
		return nil
	case *ast.IfStmt:
		return b.ifStmt(n)
	case *ast.WhileStmt:
		return b.whileStmt(n)
	case *ast.DoWhileStmt:
		return b.doWhileStmt(n)
	case *ast.ForStmt:
		return b.forStmt(n)
	case *ast.ForInStmt:
		return b.forInStmt(n)
	case *ast.ReturnStmt:
		if n.Value == nil {
			b.emit(bcode.OpReturnUndefined)
			return nil
		}
		if err := b.expr(n.Value); err != nil {
			return err
		}
		b.emit(bcode.OpReturn)
		return nil
	case *ast.BreakStmt:
		return b.breakStmt()
	case *ast.ContinueStmt:
		return b.continueStmt()
	case *ast.ThrowStmt:
		if err := b.expr(n.Value); err != nil {
			return err
		}
		b.emit(bcode.OpThrow)
		return nil
	case *ast.TryStmt:
		return b.tryStmt(n)
	case *ast.SwitchStmt:
		return b.switchStmt(n)
	case *ast.EmptyStmt:
		return nil
	default:
		return &Error{Msg: fmt.Sprintf("compiler: unsupported statement %T", s)}
	}
}

func (b *builder) ifStmt(n *ast.IfStmt) error {
	if err := b.expr(n.Test); err != nil {
		return err
	}
	elseJump := b.emitJump(bcode.OpJmpIfNot)
	if err := b.statement(n.Then); err != nil {
		return err
	}
	if n.Else == nil {
		b.patchJump(elseJump)
		return nil
	}
	endJump := b.emitJump(bcode.OpJmp)
	b.patchJump(elseJump)
	if err := b.statement(n.Else); err != nil {
		return err
	}
	b.patchJump(endJump)
	return nil
}

func (b *builder) pushLoop() *loopCtx {
	lc := &loopCtx{}
	b.loops = append(b.loops, lc)
	return lc
}

func (b *builder) popLoop() {
	b.loops = b.loops[:len(b.loops)-1]
}

func (b *builder) whileStmt(n *ast.WhileStmt) error {
	lc := b.pushLoop()
	b.emitTryPush(bcode.TryLoop)
	top := b.here()
	if err := b.expr(n.Test); err != nil {
		return err
	}
	exitJump := b.emitJump(bcode.OpJmpIfNot)
	if err := b.statement(n.Body); err != nil {
		return err
	}
	backEdge := b.emitJump(bcode.OpJmp)
	b.patchJumpTo(backEdge, top)
	b.patchJump(exitJump)
	b.emit(bcode.OpTryPop)
	for _, t := range lc.breakTargets {
		b.patchJump(t)
	}
	for _, t := range lc.continueTargets {
		b.patchJumpTo(t, top)
	}
	b.popLoop()
	return nil
}

func (b *builder) doWhileStmt(n *ast.DoWhileStmt) error {
	lc := b.pushLoop()
	b.emitTryPush(bcode.TryLoop)
	top := b.here()
	if err := b.statement(n.Body); err != nil {
		return err
	}
	contTarget := b.here()
	if err := b.expr(n.Test); err != nil {
		return err
	}
	b.emitJumpIfTo(bcode.OpJmpIf, top)
	b.emit(bcode.OpTryPop)
	for _, t := range lc.breakTargets {
		b.patchJump(t)
	}
	for _, t := range lc.continueTargets {
		b.patchJumpTo(t, contTarget)
	}
	b.popLoop()
	return nil
}

// emitJumpIfTo emits a conditional jump whose target is already known.
func (b *builder) emitJumpIfTo(op bcode.Op, target uint32) {
	b.bc.Code = append(b.bc.Code, byte(op))
	b.bc.Code = bcode.PutUint32(b.bc.Code, target)
}

func (b *builder) forStmt(n *ast.ForStmt) error {
	if n.Init != nil {
		if err := b.statement(n.Init); err != nil {
			return err
		}
	}
	lc := b.pushLoop()
	b.emitTryPush(bcode.TryLoop)
	top := b.here()
	var exitJump int
	hasTest := n.Test != nil
	if hasTest {
		if err := b.expr(n.Test); err != nil {
			return err
		}
		exitJump = b.emitJump(bcode.OpJmpIfNot)
	}
	if err := b.statement(n.Body); err != nil {
		return err
	}
	contTarget := b.here()
	if n.Update != nil {
		if err := b.expr(n.Update); err != nil {
			return err
		}
		b.emit(bcode.OpDrop)
	}
	b.emitJumpIfTo(bcode.OpJmp, top)
	if hasTest {
		b.patchJump(exitJump)
	}
	b.emit(bcode.OpTryPop)
	for _, t := range lc.breakTargets {
		b.patchJump(t)
	}
	for _, t := range lc.continueTargets {
		b.patchJumpTo(t, contTarget)
	}
	b.popLoop()
	return nil
}

func (b *builder) forInStmt(n *ast.ForInStmt) error {
	if err := b.expr(n.Object); err != nil {
		return err
	}
	b.emit(bcode.OpForInInit)
	lc := b.pushLoop()
	b.emitTryPush(bcode.TryLoop)
	top := b.here()
	doneJump := b.emitJump(bcode.OpForInNext)
	b.emitImm(bcode.OpSetVar, uint32(b.nameIndex(n.VarName)))
	b.emit(bcode.OpDrop)
	if err := b.statement(n.Body); err != nil {
		return err
	}
	b.emitJumpIfTo(bcode.OpJmp, top)
	b.patchJump(doneJump)
	b.emit(bcode.OpTryPop)
	for _, t := range lc.breakTargets {
		b.patchJump(t)
	}
	for _, t := range lc.continueTargets {
		b.patchJumpTo(t, top)
	}
	b.popLoop()
	return nil
}

func (b *builder) breakStmt() error {
	if len(b.loops) == 0 {
		return &Error{Msg: "compiler: break outside loop or switch"}
	}
	lc := b.loops[len(b.loops)-1]
	at := b.emitJump(bcode.OpBreak)
	lc.breakTargets = append(lc.breakTargets, at)
	return nil
}

func (b *builder) continueStmt() error {
	for i := len(b.loops) - 1; i >= 0; i-- {
		if b.loops[i].isSwitch {
			continue
		}
		at := b.emitJump(bcode.OpContinue)
		b.loops[i].continueTargets = append(b.loops[i].continueTargets, at)
		return nil
	}
	return &Error{Msg: "compiler: continue outside loop"}
}

// tryStmt lowers try/catch/finally per spec.md §4.4: a TryPush(CATCH)
// frame guards the protected block; on an exception the vm unwinds to the
// catch entry point, binds the thrown value, and runs the catch body; a
// finally block, if present, is compiled twice conceptually but emitted
// once here and reached both on normal fall-through and via the vm's
// unwind protocol re-entering at the same bytecode offset with the
// pending completion (return/throw/break) stashed on the try-stack.
func (b *builder) tryStmt(n *ast.TryStmt) error {
	var finallyTargetAt int
	if n.Finally != nil {
		finallyTargetAt = b.emitTryPush(bcode.TryFinally)
	}

	var catchTargetAt int
	if n.HasCatch {
		catchTargetAt = b.emitTryPush(bcode.TryCatch)
	}

	for _, st := range n.Block.Body {
		if err := b.statement(st); err != nil {
			return err
		}
	}

	if n.HasCatch {
		b.emit(bcode.OpTryPop)
		skipCatch := b.emitJump(bcode.OpJmp)
		catchEntry := b.here()
		b.patchJumpTo(catchTargetAt, catchEntry)
		b.emitImm(bcode.OpEnterCatch, uint32(b.nameIndex(n.CatchParam)))
		for _, st := range n.CatchBody.Body {
			if err := b.statement(st); err != nil {
				return err
			}
		}
		b.emit(bcode.OpLeaveCatch)
		b.patchJump(skipCatch)
	}

	if n.Finally != nil {
		b.emit(bcode.OpTryPop)
		finallyEntry := b.here()
		b.patchJumpTo(finallyTargetAt, finallyEntry)
		for _, st := range n.Finally.Body {
			if err := b.statement(st); err != nil {
				return err
			}
		}
		// A finally block reached via a suspended return/break/continue/
		// throw must resume that completion once it finishes running,
		// rather than falling through as if nothing happened; OpEndFinally
		// is the vm-side check for that, per spec.md's "finally
		// re-establishes the pending completion after running" rule.
		b.emit(bcode.OpEndFinally)
	}
	return nil
}

// switchStmt lowers to a linear chain of strict-equality comparisons
// against the discriminant followed by fallthrough execution of matched
// and subsequent case bodies, mirroring the two-pass approach spec.md §4.3
// describes: first locate the matching (or default) entry point, then run
// case bodies in source order with ordinary fallthrough.
//
// Each comparison leaves the stack exactly as it found it (one copy of the
// discriminant) whether or not it matched, so a match is routed through a
// tiny drop-then-jump trampoline rather than jumping straight into the
// body stream — otherwise a match on any case after the first would skip
// over the one OpDrop emitted ahead of the first body and leak the
// discriminant onto the stack for the rest of execution.
func (b *builder) switchStmt(n *ast.SwitchStmt) error {
	if err := b.expr(n.Disc); err != nil {
		return err
	}
	lc := &loopCtx{isSwitch: true}
	b.loops = append(b.loops, lc)
	b.emitTryPush(bcode.TrySwitch)

	matchJumps := make([]int, len(n.Cases))
	defaultIdx := -1
	for i, c := range n.Cases {
		if c.Test == nil {
			defaultIdx = i
			continue
		}
		b.emit(bcode.OpDup)
		if err := b.expr(c.Test); err != nil {
			return err
		}
		b.emit(bcode.OpEq3)
		noMatch := b.emitJump(bcode.OpJmpIfNot)
		b.emit(bcode.OpDrop)
		matchJumps[i] = b.emitJump(bcode.OpJmp)
		b.patchJump(noMatch)
	}
	b.emit(bcode.OpDrop)
	var defaultJump, endJump int
	if defaultIdx >= 0 {
		defaultJump = b.emitJump(bcode.OpJmp)
	} else {
		endJump = b.emitJump(bcode.OpJmp)
	}

	bodyOffsets := make([]uint32, len(n.Cases))
	for i, c := range n.Cases {
		bodyOffsets[i] = b.here()
		for _, st := range c.Body {
			if err := b.statement(st); err != nil {
				return err
			}
		}
	}
	for i, c := range n.Cases {
		if c.Test == nil {
			continue
		}
		b.patchJumpTo(matchJumps[i], bodyOffsets[i])
	}
	if defaultIdx >= 0 {
		b.patchJumpTo(defaultJump, bodyOffsets[defaultIdx])
	} else {
		b.patchJump(endJump)
	}

	for _, t := range lc.breakTargets {
		b.patchJump(t)
	}
	b.loops = b.loops[:len(b.loops)-1]
	b.emit(bcode.OpTryPop)
	return nil
}
