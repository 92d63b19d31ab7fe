// Package parser implements a recursive-descent/Pratt parser producing the
// AST the compiler consumes.
//
// Design, carried over from the teacher's PROBE parser:
//   - declarations/statements via straightforward recursive descent
//   - expressions via a Pratt (top-down operator precedence) table
//   - errors are collected rather than aborting immediately, but Parse
//     still returns the first error as a SyntaxError-shaped error since the
//     compiler has no use for a partial tree
//
// Per spec.md §1 this package is an external collaborator, not part of the
// core: the compiler never imports it, only internal/ast.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eddid/v7go/internal/ast"
	"github.com/eddid/v7go/internal/lexer"
	"github.com/eddid/v7go/internal/token"
)

// SyntaxError is returned for any parse failure, including the features the
// compiler must reject per spec.md Non-goals (labeled statements, `with`,
// named regexp capture groups are checked here too since they are
// syntactic).
type SyntaxError struct {
	Pos token.Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("SyntaxError: %s at %s", e.Msg, e.Pos)
}

type precedence int

const (
	precLowest precedence = iota
	precAssign
	precConditional
	precLogicalOr
	precLogicalAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
	precCall
)

var binPrecedence = map[token.Type]precedence{
	token.OR:         precLogicalOr,
	token.AND:        precLogicalAnd,
	token.BOR:        precBitOr,
	token.BXOR:       precBitXor,
	token.BAND:       precBitAnd,
	token.EQ:         precEquality,
	token.NOT_EQ:     precEquality,
	token.EQ3:        precEquality,
	token.NOT_EQ3:    precEquality,
	token.LT:         precRelational,
	token.GT:         precRelational,
	token.LTE:        precRelational,
	token.GTE:        precRelational,
	token.INSTANCEOF: precRelational,
	token.IN:         precRelational,
	token.SHL:        precShift,
	token.SHR:        precShift,
	token.USHR:       precShift,
	token.PLUS:       precAdditive,
	token.MINUS:      precAdditive,
	token.STAR:       precMultiplicative,
	token.SLASH:      precMultiplicative,
	token.PERCENT:    precMultiplicative,
}

var assignOps = map[token.Type]string{
	token.ASSIGN:         "",
	token.PLUS_ASSIGN:    "+",
	token.MINUS_ASSIGN:   "-",
	token.STAR_ASSIGN:    "*",
	token.SLASH_ASSIGN:   "/",
	token.PERCENT_ASSIGN: "%",
}

// Parser turns a token stream into a *ast.Program.
type Parser struct {
	l *lexer.Lexer

	cur  token.Token
	next token.Token

	errors []error
}

// Parse lexes and parses source, returning the Program or the first
// SyntaxError encountered.
func Parse(filename, source string) (*ast.Program, error) {
	p := &Parser{l: lexer.New(filename, source)}
	p.advance()
	p.advance()
	prog := p.parseProgram()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return prog, nil
}

func (p *Parser) advance() {
	p.cur = p.next
	p.next = p.l.Next()
}

func (p *Parser) errorf(pos token.Position, format string, args ...interface{}) {
	p.errors = append(p.errors, &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (p *Parser) expect(t token.Type) token.Token {
	if p.cur.Type != t {
		p.errorf(p.cur.Pos, "unexpected token %q", p.cur.Literal)
	}
	tok := p.cur
	p.advance()
	return tok
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	if p.cur.Type == token.STRING && p.cur.Literal == "use strict" {
		prog.StrictMode = true
	}
	for p.cur.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Body = append(prog.Body, stmt)
		}
		if len(p.errors) > 20 {
			break
		}
	}
	return prog
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case token.SEMICOLON:
		pos := p.cur.Pos
		p.advance()
		return &ast.EmptyStmt{Position: pos}
	case token.LBRACE:
		return p.parseBlock()
	case token.VAR:
		return p.parseVarDecl()
	case token.FUNCTION:
		return p.parseFunctionDecl()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.DO:
		return p.parseDoWhile()
	case token.FOR:
		return p.parseFor()
	case token.RETURN:
		return p.parseReturn()
	case token.BREAK:
		pos := p.cur.Pos
		p.advance()
		p.skipSemicolon()
		return &ast.BreakStmt{Position: pos}
	case token.CONTINUE:
		pos := p.cur.Pos
		p.advance()
		p.skipSemicolon()
		return &ast.ContinueStmt{Position: pos}
	case token.THROW:
		return p.parseThrow()
	case token.TRY:
		return p.parseTry()
	case token.SWITCH:
		return p.parseSwitch()
	case token.WITH:
		p.errorf(p.cur.Pos, "'with' statements are not supported")
		p.advance()
		return p.parseStatement()
	case token.IDENT:
		// Disambiguate a labeled statement (`label: stmt`), explicitly
		// rejected per spec.md Non-goals.
		if p.next.Type == token.COLON {
			p.errorf(p.cur.Pos, "labeled statements are not supported")
			p.advance()
			p.advance()
			return p.parseStatement()
		}
		return p.parseExprStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) skipSemicolon() {
	if p.cur.Type == token.SEMICOLON {
		p.advance()
	}
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	pos := p.cur.Pos
	p.expect(token.LBRACE)
	b := &ast.BlockStmt{Position: pos}
	for p.cur.Type != token.RBRACE && p.cur.Type != token.EOF {
		b.Body = append(b.Body, p.parseStatement())
	}
	p.expect(token.RBRACE)
	return b
}

func (p *Parser) parseVarDecl() ast.Statement {
	pos := p.cur.Pos
	p.advance() // 'var'
	// Support comma-separated declarators by desugaring into a block when
	// more than one is present, keeping the AST node itself single-name.
	first := p.parseOneVarDeclarator(pos)
	if p.cur.Type != token.COMMA {
		p.skipSemicolon()
		return first
	}
	block := &ast.BlockStmt{Position: pos, Body: []ast.Statement{first}}
	for p.cur.Type == token.COMMA {
		p.advance()
		block.Body = append(block.Body, p.parseOneVarDeclarator(p.cur.Pos))
	}
	p.skipSemicolon()
	return block
}

func (p *Parser) parseOneVarDeclarator(pos token.Position) *ast.VarDecl {
	name := p.expect(token.IDENT).Literal
	decl := &ast.VarDecl{Position: pos, Name: name}
	if p.cur.Type == token.ASSIGN {
		p.advance()
		decl.Init = p.parseAssignExpr()
	}
	return decl
}

func (p *Parser) parseFunctionDecl() ast.Statement {
	pos := p.cur.Pos
	fn := p.parseFunctionLit(pos, true)
	return &ast.FunctionDecl{Position: pos, Fn: fn}
}

func (p *Parser) parseFunctionLit(pos token.Position, named bool) *ast.FunctionLit {
	if p.cur.Type == token.FUNCTION {
		p.advance() // 'function'
	}
	fn := &ast.FunctionLit{Position: pos}
	if p.cur.Type == token.IDENT {
		fn.Name = p.cur.Literal
		p.advance()
	} else if named {
		p.errorf(p.cur.Pos, "function declaration requires a name")
	}
	p.expect(token.LPAREN)
	for p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
		fn.Params = append(fn.Params, p.expect(token.IDENT).Literal)
		if p.cur.Type == token.COMMA {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	body := p.parseBlock()
	fn.Body = &ast.Program{Body: body.Body}
	if len(fn.Body.Body) > 0 {
		if es, ok := fn.Body.Body[0].(*ast.ExprStmt); ok {
			if s, ok := es.Expr.(*ast.StringLit); ok && s.Value == "use strict" {
				fn.StrictMode = true
			}
		}
	}
	return fn
}

func (p *Parser) parseIf() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	p.expect(token.LPAREN)
	test := p.parseExpression()
	p.expect(token.RPAREN)
	then := p.parseStatement()
	var els ast.Statement
	if p.cur.Type == token.ELSE {
		p.advance()
		els = p.parseStatement()
	}
	return &ast.IfStmt{Position: pos, Test: test, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	p.expect(token.LPAREN)
	test := p.parseExpression()
	p.expect(token.RPAREN)
	body := p.parseStatement()
	return &ast.WhileStmt{Position: pos, Test: test, Body: body}
}

func (p *Parser) parseDoWhile() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	body := p.parseStatement()
	p.expect(token.WHILE)
	p.expect(token.LPAREN)
	test := p.parseExpression()
	p.expect(token.RPAREN)
	p.skipSemicolon()
	return &ast.DoWhileStmt{Position: pos, Body: body, Test: test}
}

func (p *Parser) parseFor() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	p.expect(token.LPAREN)

	if p.cur.Type == token.VAR {
		varPos := p.cur.Pos
		p.advance()
		name := p.expect(token.IDENT).Literal
		if p.cur.Type == token.IN {
			p.advance()
			obj := p.parseExpression()
			p.expect(token.RPAREN)
			body := p.parseStatement()
			return &ast.ForInStmt{Position: pos, VarName: name, Decl: true, Object: obj, Body: body}
		}
		decl := &ast.VarDecl{Position: varPos, Name: name}
		if p.cur.Type == token.ASSIGN {
			p.advance()
			decl.Init = p.parseAssignExpr()
		}
		return p.finishClassicFor(pos, decl)
	}

	if p.cur.Type == token.IDENT && p.next.Type == token.IN {
		name := p.cur.Literal
		p.advance()
		p.advance()
		obj := p.parseExpression()
		p.expect(token.RPAREN)
		body := p.parseStatement()
		return &ast.ForInStmt{Position: pos, VarName: name, Decl: false, Object: obj, Body: body}
	}

	var init ast.Statement
	if p.cur.Type != token.SEMICOLON {
		e := p.parseExpression()
		init = &ast.ExprStmt{Position: e.Pos(), Expr: e}
	}
	return p.finishClassicFor(pos, init)
}

func (p *Parser) finishClassicFor(pos token.Position, init ast.Statement) ast.Statement {
	p.expect(token.SEMICOLON)
	var test ast.Expression
	if p.cur.Type != token.SEMICOLON {
		test = p.parseExpression()
	}
	p.expect(token.SEMICOLON)
	var update ast.Expression
	if p.cur.Type != token.RPAREN {
		update = p.parseExpression()
	}
	p.expect(token.RPAREN)
	body := p.parseStatement()
	return &ast.ForStmt{Position: pos, Init: init, Test: test, Update: update, Body: body}
}

func (p *Parser) parseReturn() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	var val ast.Expression
	if p.cur.Type != token.SEMICOLON && p.cur.Type != token.RBRACE && p.cur.Type != token.EOF {
		val = p.parseExpression()
	}
	p.skipSemicolon()
	return &ast.ReturnStmt{Position: pos, Value: val}
}

func (p *Parser) parseThrow() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	val := p.parseExpression()
	p.skipSemicolon()
	return &ast.ThrowStmt{Position: pos, Value: val}
}

func (p *Parser) parseTry() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	block := p.parseBlock()
	ts := &ast.TryStmt{Position: pos, Block: block}
	if p.cur.Type == token.CATCH {
		p.advance()
		p.expect(token.LPAREN)
		ts.CatchParam = p.expect(token.IDENT).Literal
		p.expect(token.RPAREN)
		ts.CatchBody = p.parseBlock()
		ts.HasCatch = true
	}
	if p.cur.Type == token.FINALLY {
		p.advance()
		ts.Finally = p.parseBlock()
	}
	if !ts.HasCatch && ts.Finally == nil {
		p.errorf(pos, "try without catch or finally")
	}
	return ts
}

func (p *Parser) parseSwitch() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	p.expect(token.LPAREN)
	disc := p.parseExpression()
	p.expect(token.RPAREN)
	p.expect(token.LBRACE)
	sw := &ast.SwitchStmt{Position: pos, Disc: disc}
	for p.cur.Type != token.RBRACE && p.cur.Type != token.EOF {
		var c ast.SwitchCase
		if p.cur.Type == token.CASE {
			p.advance()
			c.Test = p.parseExpression()
		} else {
			p.expect(token.DEFAULT)
		}
		p.expect(token.COLON)
		for p.cur.Type != token.CASE && p.cur.Type != token.DEFAULT && p.cur.Type != token.RBRACE && p.cur.Type != token.EOF {
			c.Body = append(c.Body, p.parseStatement())
		}
		sw.Cases = append(sw.Cases, c)
	}
	p.expect(token.RBRACE)
	return sw
}

func (p *Parser) parseExprStmt() ast.Statement {
	pos := p.cur.Pos
	e := p.parseExpression()
	p.skipSemicolon()
	return &ast.ExprStmt{Position: pos, Expr: e}
}

// ---- Expressions --------------------------------------------------------

func (p *Parser) parseExpression() ast.Expression {
	return p.parseAssignExpr()
}

func (p *Parser) parseAssignExpr() ast.Expression {
	left := p.parseConditional()
	if op, ok := assignOps[p.cur.Type]; ok {
		pos := p.cur.Pos
		p.advance()
		right := p.parseAssignExpr()
		return &ast.AssignExpr{Position: pos, Op: op, Target: left, Value: right}
	}
	return left
}

func (p *Parser) parseConditional() ast.Expression {
	test := p.parseBinary(precLowest + 1)
	if p.cur.Type == token.QUESTION {
		pos := p.cur.Pos
		p.advance()
		then := p.parseAssignExpr()
		p.expect(token.COLON)
		els := p.parseAssignExpr()
		return &ast.ConditionalExpr{Position: pos, Test: test, Then: then, Else: els}
	}
	return test
}

func (p *Parser) parseBinary(minPrec precedence) ast.Expression {
	left := p.parseUnary()
	for {
		prec, ok := binPrecedence[p.cur.Type]
		if !ok || prec < minPrec {
			return left
		}
		op := p.cur.Literal
		pos := p.cur.Pos
		p.advance()
		right := p.parseBinary(prec + 1)
		left = &ast.BinaryExpr{Position: pos, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() ast.Expression {
	switch p.cur.Type {
	case token.MINUS, token.PLUS, token.BANG, token.BNOT:
		op := p.cur.Literal
		pos := p.cur.Pos
		p.advance()
		return &ast.UnaryExpr{Position: pos, Op: op, Operand: p.parseUnary()}
	case token.TYPEOF:
		pos := p.cur.Pos
		p.advance()
		return &ast.UnaryExpr{Position: pos, Op: "typeof", Operand: p.parseUnary()}
	case token.DELETE:
		pos := p.cur.Pos
		p.advance()
		return &ast.UnaryExpr{Position: pos, Op: "delete", Operand: p.parseUnary()}
	case token.PLUSPLUS, token.MINUSMINUS:
		op := p.cur.Literal
		pos := p.cur.Pos
		p.advance()
		return &ast.UpdateExpr{Position: pos, Op: op, Prefix: true, Operand: p.parseUnary()}
	case token.NEW:
		return p.parseNew()
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parseNew() ast.Expression {
	pos := p.cur.Pos
	p.advance()
	callee := p.parseMemberOnly(p.parsePrimary())
	var args []ast.Expression
	if p.cur.Type == token.LPAREN {
		args = p.parseArgs()
	}
	expr := ast.Expression(&ast.NewExpr{Position: pos, Callee: callee, Args: args})
	return p.parseCallTail(expr)
}

func (p *Parser) parsePostfix() ast.Expression {
	e := p.parseCallTail(p.parseMemberOnly(p.parsePrimary()))
	if p.cur.Type == token.PLUSPLUS || p.cur.Type == token.MINUSMINUS {
		op := p.cur.Literal
		pos := p.cur.Pos
		p.advance()
		return &ast.UpdateExpr{Position: pos, Op: op, Prefix: false, Operand: e}
	}
	return e
}

// parseMemberOnly parses `.ident` and `[expr]` suffixes (no calls), used
// while parsing a `new` callee so `new a.b.C(x)` binds correctly.
func (p *Parser) parseMemberOnly(e ast.Expression) ast.Expression {
	for {
		switch p.cur.Type {
		case token.DOT:
			pos := p.cur.Pos
			p.advance()
			name := p.expect(token.IDENT).Literal
			e = &ast.MemberExpr{Position: pos, Object: e, Property: &ast.StringLit{Position: pos, Value: name}, Computed: false}
		case token.LBRACKET:
			pos := p.cur.Pos
			p.advance()
			idx := p.parseExpression()
			p.expect(token.RBRACKET)
			e = &ast.MemberExpr{Position: pos, Object: e, Property: idx, Computed: true}
		default:
			return e
		}
	}
}

func (p *Parser) parseCallTail(e ast.Expression) ast.Expression {
	for {
		switch p.cur.Type {
		case token.DOT:
			pos := p.cur.Pos
			p.advance()
			name := p.expect(token.IDENT).Literal
			e = &ast.MemberExpr{Position: pos, Object: e, Property: &ast.StringLit{Position: pos, Value: name}, Computed: false}
		case token.LBRACKET:
			pos := p.cur.Pos
			p.advance()
			idx := p.parseExpression()
			p.expect(token.RBRACKET)
			e = &ast.MemberExpr{Position: pos, Object: e, Property: idx, Computed: true}
		case token.LPAREN:
			pos := p.cur.Pos
			args := p.parseArgs()
			e = &ast.CallExpr{Position: pos, Callee: e, Args: args}
		default:
			return e
		}
	}
}

func (p *Parser) parseArgs() []ast.Expression {
	p.expect(token.LPAREN)
	var args []ast.Expression
	for p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
		args = append(args, p.parseAssignExpr())
		if p.cur.Type == token.COMMA {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	return args
}

func (p *Parser) parsePrimary() ast.Expression {
	pos := p.cur.Pos
	switch p.cur.Type {
	case token.NUMBER:
		lit := p.cur.Literal
		p.advance()
		return &ast.NumberLit{Position: pos, Value: parseNumber(lit)}
	case token.STRING:
		lit := p.cur.Literal
		p.advance()
		return &ast.StringLit{Position: pos, Value: lit}
	case token.REGEXP:
		lit := p.cur.Literal
		p.advance()
		pat, flags := splitRegexp(lit)
		if strings.Contains(pat, "?<") {
			p.errorf(pos, "named capture groups are not supported")
		}
		return &ast.RegexpLit{Position: pos, Pattern: pat, Flags: flags}
	case token.TRUE:
		p.advance()
		return &ast.BoolLit{Position: pos, Value: true}
	case token.FALSE:
		p.advance()
		return &ast.BoolLit{Position: pos, Value: false}
	case token.NULL:
		p.advance()
		return &ast.NullLit{Position: pos}
	case token.UNDEFINED:
		p.advance()
		return &ast.UndefinedLit{Position: pos}
	case token.THIS:
		p.advance()
		return &ast.ThisExpr{Position: pos}
	case token.IDENT:
		name := p.cur.Literal
		p.advance()
		return &ast.Ident{Position: pos, Name: name}
	case token.LPAREN:
		p.advance()
		e := p.parseExpression()
		p.expect(token.RPAREN)
		return e
	case token.LBRACKET:
		return p.parseArrayLit()
	case token.LBRACE:
		return p.parseObjectLit()
	case token.FUNCTION:
		return p.parseFunctionLit(pos, false)
	default:
		p.errorf(pos, "unexpected token %q in expression", p.cur.Literal)
		p.advance()
		return &ast.UndefinedLit{Position: pos}
	}
}

func (p *Parser) parseArrayLit() ast.Expression {
	pos := p.cur.Pos
	p.advance()
	lit := &ast.ArrayLit{Position: pos}
	for p.cur.Type != token.RBRACKET && p.cur.Type != token.EOF {
		if p.cur.Type == token.COMMA {
			lit.Elements = append(lit.Elements, nil)
			p.advance()
			continue
		}
		lit.Elements = append(lit.Elements, p.parseAssignExpr())
		if p.cur.Type == token.COMMA {
			p.advance()
		}
	}
	p.expect(token.RBRACKET)
	return lit
}

func (p *Parser) parseObjectLit() ast.Expression {
	pos := p.cur.Pos
	p.advance()
	lit := &ast.ObjectLit{Position: pos}
	for p.cur.Type != token.RBRACE && p.cur.Type != token.EOF {
		prop := p.parseObjectProperty()
		lit.Properties = append(lit.Properties, prop)
		if p.cur.Type == token.COMMA {
			p.advance()
		}
	}
	p.expect(token.RBRACE)
	return lit
}

func (p *Parser) parseObjectProperty() ast.Property {
	var prop ast.Property
	prop.Kind = "init"
	if (p.cur.Literal == "get" || p.cur.Literal == "set") && p.cur.Type == token.IDENT &&
		p.next.Type != token.COLON && p.next.Type != token.COMMA && p.next.Type != token.RBRACE {
		prop.Kind = p.cur.Literal
		p.advance()
	}
	keyPos := p.cur.Pos
	switch p.cur.Type {
	case token.IDENT:
		prop.Key = &ast.StringLit{Position: keyPos, Value: p.cur.Literal}
		p.advance()
	case token.STRING:
		prop.Key = &ast.StringLit{Position: keyPos, Value: p.cur.Literal}
		p.advance()
	case token.NUMBER:
		prop.Key = &ast.StringLit{Position: keyPos, Value: p.cur.Literal}
		p.advance()
	case token.LBRACKET:
		p.advance()
		prop.Key = p.parseAssignExpr()
		prop.Computed = true
		p.expect(token.RBRACKET)
	default:
		p.errorf(keyPos, "invalid property key")
	}
	if prop.Kind == "get" || prop.Kind == "set" {
		fn := p.parseFunctionLit(keyPos, false)
		prop.Value = fn
		return prop
	}
	p.expect(token.COLON)
	prop.Value = p.parseAssignExpr()
	return prop
}

func parseNumber(lit string) float64 {
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		n, _ := strconv.ParseUint(lit[2:], 16, 64)
		return float64(n)
	}
	f, _ := strconv.ParseFloat(lit, 64)
	return f
}

func splitRegexp(lit string) (pattern, flags string) {
	last := strings.LastIndexByte(lit, '/')
	return lit[1:last], lit[last+1:]
}
