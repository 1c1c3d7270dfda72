// Copyright the Arafura authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pyparse is the SurfaceLang front end's parser: a recursive-
// descent, two-token-lookahead parser over internal/pyscan's token
// stream, producing an internal/past.Module. Like internal/pyscan, it is
// never imported by the core lowering packages (internal/clower/...,
// internal/tagset) — the dependency runs one way, front end feeds core.
package pyparse

import (
	"arafura.dev/arafura/internal/arerrors"
	"arafura.dev/arafura/internal/past"
	"arafura.dev/arafura/internal/pyscan"
)

// passthroughKeywords is the fixed vocabulary of bare top-level forms
// the translator copies through as the corresponding C construct (§4.5).
var passthroughKeywords = map[string]bool{
	"_Atomic": true, "_Alignas": true, "_Thread_local": true,
	"_Alignof": true, "_Static_assert": true,
}

type parser struct {
	filename string
	sc       *pyscan.Scanner

	tok past.Position
	k   pyscan.Kind
	lit string

	peekPos past.Position
	peekK   pyscan.Kind
	peekLit string
}

// ParseFile parses src (from the named file) into a Module. It stops and
// returns the first syntax error encountered — the front end does not
// attempt multi-error recovery (§7: a ParseError aborts the translation).
func ParseFile(filename string, src []byte) (*past.Module, error) {
	p := &parser{filename: filename}
	var scanErr error
	p.sc = pyscan.New(src, func(pos pyscan.Pos, msg string) {
		if scanErr == nil {
			scanErr = arerrors.Newf(arerrors.KindParse, p.toPos(pos), "%s", msg)
		}
	})
	p.advancePeek()
	p.next()

	var decls []past.Decl
	for p.k != pyscan.EOF {
		if scanErr != nil {
			return nil, scanErr
		}
		d, err := p.parseTopDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return &past.Module{Filename: filename, Decls: decls}, nil
}

func (p *parser) toPos(pos pyscan.Pos) past.Position {
	return past.Position{Filename: p.filename, Offset: pos.Offset, Line: pos.Line, Column: pos.Column}
}

func (p *parser) advancePeek() {
	t := p.sc.Scan()
	p.peekK, p.peekLit, p.peekPos = t.Kind, t.Lit, p.toPos(t.Pos)
}

func (p *parser) next() {
	p.k, p.lit, p.tok = p.peekK, p.peekLit, p.peekPos
	p.advancePeek()
}

func (p *parser) errf(format string, args ...any) error {
	return arerrors.Newf(arerrors.KindParse, p.tok, format, args...)
}

func (p *parser) expect(k pyscan.Kind) error {
	if p.k != k {
		return p.errf("expected %s, found %s %q", k, p.k, p.lit)
	}
	p.next()
	return nil
}

func (p *parser) expectNewline() error { return p.expect(pyscan.NEWLINE) }

// ----------------------------------------------------------------------------
// Top-level declarations

func (p *parser) parseTopDecl() (past.Decl, error) {
	switch p.k {
	case pyscan.AT:
		decorators, err := p.parseDecorators()
		if err != nil {
			return nil, err
		}
		switch p.k {
		case pyscan.CLASS:
			return p.parseClassDef(decorators)
		case pyscan.DEF:
			return p.parseFuncDef(decorators)
		default:
			return nil, p.errf("expected class or def after decorator, found %s", p.k)
		}
	case pyscan.CLASS:
		return p.parseClassDef(nil)
	case pyscan.DEF:
		return p.parseFuncDef(nil)
	case pyscan.IMPORT:
		return p.parseImport()
	case pyscan.FROM:
		return p.parseImportFrom()
	case pyscan.TYPE:
		return p.parseTypeAlias()
	case pyscan.IDENT:
		return p.parseTopIdentDecl()
	case pyscan.IF:
		// A preprocessor conditional is the only shape of `if` legal at
		// module scope; parseIf builds the same *past.If either way and
		// cdecl rejects a runtime-if test here instead of the grammar
		// distinguishing the two up front.
		n, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		return n.(*past.If), nil
	default:
		return nil, p.errf("unexpected token %s at top level", p.k)
	}
}

func (p *parser) parseDecorators() ([]*past.Decorator, error) {
	var ds []*past.Decorator
	for p.k == pyscan.AT {
		at := p.tok
		p.next()
		name, err := p.parseIdentRaw()
		if err != nil {
			return nil, err
		}
		var args []past.Expr
		if p.k == pyscan.LPAREN {
			call, err := p.parseCallTail(name)
			if err != nil {
				return nil, err
			}
			args = call.Args
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		ds = append(ds, &past.Decorator{At: at, Name: name, Args: args})
	}
	return ds, nil
}

func (p *parser) parseClassDef(decorators []*past.Decorator) (past.Decl, error) {
	classPos := p.tok
	p.next() // CLASS
	name, err := p.parseIdentRaw()
	if err != nil {
		return nil, err
	}
	var bases []past.Expr
	if p.k == pyscan.LPAREN {
		p.next()
		for p.k != pyscan.RPAREN {
			b, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			bases = append(bases, b)
			if p.k == pyscan.COMMA {
				p.next()
				continue
			}
			break
		}
		if err := p.expect(pyscan.RPAREN); err != nil {
			return nil, err
		}
	}
	if err := p.expect(pyscan.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuiteDecls()
	if err != nil {
		return nil, err
	}
	return &past.ClassDef{ClassPos: classPos, Decorators: decorators, Name: name, Bases: bases, Body: body}, nil
}

func (p *parser) parseFuncDef(decorators []*past.Decorator) (past.Decl, error) {
	defPos := p.tok
	p.next() // DEF
	name, err := p.parseIdentRaw()
	if err != nil {
		return nil, err
	}
	if err := p.expect(pyscan.LPAREN); err != nil {
		return nil, err
	}
	var params []*past.Param
	for p.k != pyscan.RPAREN {
		star := false
		if p.k == pyscan.STAR {
			star = true
			p.next()
		}
		pname, err := p.parseIdentRaw()
		if err != nil {
			return nil, err
		}
		var ann past.Expr
		if p.k == pyscan.COLON {
			p.next()
			ann, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		params = append(params, &past.Param{Name: pname, Annotation: ann, Star: star})
		if p.k == pyscan.COMMA {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(pyscan.RPAREN); err != nil {
		return nil, err
	}
	var returns past.Expr
	if p.k == pyscan.ARROW {
		p.next()
		returns, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(pyscan.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuiteStmts()
	if err != nil {
		return nil, err
	}
	return &past.FuncDef{DefPos: defPos, Decorators: decorators, Name: name, Params: params, Returns: returns, Body: body}, nil
}

func (p *parser) parseImport() (past.Decl, error) {
	pos := p.tok
	p.next() // IMPORT
	name, err := p.parseIdentRaw()
	if err != nil {
		return nil, err
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &past.Import{ImportPos: pos, Name: name.Name}, nil
}

func (p *parser) parseImportFrom() (past.Decl, error) {
	pos := p.tok
	p.next() // FROM
	name, err := p.parseIdentRaw()
	if err != nil {
		return nil, err
	}
	if err := p.expect(pyscan.IMPORT); err != nil {
		return nil, err
	}
	if err := p.expect(pyscan.STAR); err != nil {
		return nil, err
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &past.ImportFrom{FromPos: pos, Name: name.Name}, nil
}

func (p *parser) parseTypeAlias() (past.Decl, error) {
	pos := p.tok
	p.next() // TYPE
	name, err := p.parseIdentRaw()
	if err != nil {
		return nil, err
	}
	if err := p.expect(pyscan.ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &past.TypeAliasDecl{TypePos: pos, Name: name, Value: value}, nil
}

// parseTopIdentDecl parses a module-scope form starting with a bare
// identifier: an annotated assignment (declaration or object-like macro,
// §4.5) or a recognised passthrough call (_Atomic(...), etc.).
func (p *parser) parseTopIdentDecl() (past.Decl, error) {
	name, err := p.parseIdentRaw()
	if err != nil {
		return nil, err
	}
	switch p.k {
	case pyscan.COLON:
		colonPos := p.tok
		p.next()
		annotation, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		var value past.Expr
		if p.k == pyscan.ASSIGN {
			p.next()
			value, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &past.AnnAssign{Target: name, Annotation: annotation, Value: value, ColonPos: colonPos}, nil
	case pyscan.LPAREN:
		call, err := p.parseCallTail(name)
		if err != nil {
			return nil, err
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		if !passthroughKeywords[name.Name] {
			return nil, arerrors.Newf(arerrors.KindUnrecognisedPattern, name.Pos(),
				"%q is not a recognised top-level passthrough form", name.Name)
		}
		return &past.Passthrough{Keyword: name.Name, KwPos: name.NamePos, Args: call.Args}, nil
	default:
		return nil, p.errf("expected ':' or '(' after %q, found %s", name.Name, p.k)
	}
}

// ----------------------------------------------------------------------------
// Suites (indented statement/declaration blocks)

func (p *parser) parseSuiteStmts() ([]past.Stmt, error) {
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	if err := p.expect(pyscan.INDENT); err != nil {
		return nil, err
	}
	var stmts []past.Stmt
	for p.k != pyscan.DEDENT && p.k != pyscan.EOF {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if err := p.expect(pyscan.DEDENT); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *parser) parseSuiteDecls() ([]past.Decl, error) {
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	if err := p.expect(pyscan.INDENT); err != nil {
		return nil, err
	}
	var decls []past.Decl
	for p.k != pyscan.DEDENT && p.k != pyscan.EOF {
		d, err := p.parseClassMember()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	if err := p.expect(pyscan.DEDENT); err != nil {
		return nil, err
	}
	return decls, nil
}

// parseClassMember parses one line of a struct/union/enum body: a nested
// class definition, a field declaration (`name: T`), or an enumerator
// (`NAME = CONST`).
func (p *parser) parseClassMember() (past.Decl, error) {
	if p.k == pyscan.CLASS {
		return p.parseClassDef(nil)
	}
	name, err := p.parseIdentRaw()
	if err != nil {
		return nil, err
	}
	switch p.k {
	case pyscan.COLON:
		// A struct/union field: `name: T`. Value is always nil here —
		// emitAggregateBody never consults it — matching past.AnnAssign's
		// documented struct/union-element shape.
		colonPos := p.tok
		p.next()
		annotation, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &past.AnnAssign{Target: name, Annotation: annotation, ColonPos: colonPos}, nil
	case pyscan.ASSIGN:
		assignPos := p.tok
		p.next()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &past.AnnAssign{Target: name, Annotation: nil, Value: value, ColonPos: assignPos}, nil
	default:
		return nil, p.errf("expected ':' or '=' after %q, found %s", name.Name, p.k)
	}
}

// ----------------------------------------------------------------------------
// Statements

func (p *parser) parseStmt() (past.Stmt, error) {
	switch p.k {
	case pyscan.IF:
		return p.parseIf()
	case pyscan.WHILE:
		return p.parseWhile()
	case pyscan.FOR:
		return p.parseForC()
	case pyscan.MATCH:
		return p.parseMatch()
	case pyscan.RETURN:
		pos := p.tok
		p.next()
		var value past.Expr
		if p.k != pyscan.NEWLINE {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			value = v
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &past.Return{ReturnPos: pos, Value: value}, nil
	case pyscan.BREAK:
		pos := p.tok
		p.next()
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &past.Break{BreakPos: pos}, nil
	case pyscan.CONTINUE:
		pos := p.tok
		p.next()
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &past.Continue{ContinuePos: pos}, nil
	case pyscan.RAISE:
		pos := p.tok
		p.next()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &past.Raise{RaisePos: pos, X: x}, nil
	case pyscan.IDENT:
		if p.peekK == pyscan.COLON {
			return p.parseLocalAnnAssign()
		}
		return p.parseSimpleOrAssignStmt()
	default:
		return p.parseSimpleOrAssignStmt()
	}
}

// parseLocalAnnAssign parses `NAME: Annotation [= Value]` in statement
// position — a local declaration, or `NAME: label` (§4.4's labelled-
// statement encoding).
func (p *parser) parseLocalAnnAssign() (past.Stmt, error) {
	name, err := p.parseIdentRaw()
	if err != nil {
		return nil, err
	}
	colonPos := p.tok
	if err := p.expect(pyscan.COLON); err != nil {
		return nil, err
	}
	annotation, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var value past.Expr
	if p.k == pyscan.ASSIGN {
		p.next()
		value, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &past.AnnAssign{Target: name, Annotation: annotation, Value: value, ColonPos: colonPos}, nil
}

// parseSimpleOrAssignStmt parses a bare expression statement, or a plain
// assignment `Target = Value` when an '=' follows the expression.
func (p *parser) parseSimpleOrAssignStmt() (past.Stmt, error) {
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.k == pyscan.ASSIGN {
		eqPos := p.tok
		p.next()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &past.Assign{Target: x, Value: v, EqPos: eqPos}, nil
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &past.ExprStmt{X: x}, nil
}

func (p *parser) parseIf() (past.Stmt, error) {
	ifPos := p.tok
	p.next() // IF
	test, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(pyscan.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuiteStmts()
	if err != nil {
		return nil, err
	}
	n := &past.If{IfPos: ifPos, Test: test, Body: body}
	for p.k == pyscan.ELIF {
		elifPos := p.tok
		p.next()
		etest, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(pyscan.COLON); err != nil {
			return nil, err
		}
		ebody, err := p.parseSuiteStmts()
		if err != nil {
			return nil, err
		}
		n.Elifs = append(n.Elifs, &past.ElifClause{ElifPos: elifPos, Test: etest, Body: ebody})
	}
	if p.k == pyscan.ELSE {
		p.next()
		if err := p.expect(pyscan.COLON); err != nil {
			return nil, err
		}
		ebody, err := p.parseSuiteStmts()
		if err != nil {
			return nil, err
		}
		n.Else = ebody
	}
	return n, nil
}

func (p *parser) parseWhile() (past.Stmt, error) {
	pos := p.tok
	p.next() // WHILE
	test, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(pyscan.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuiteStmts()
	if err != nil {
		return nil, err
	}
	return &past.While{WhilePos: pos, Test: test, Body: body}, nil
}

// parseForC parses `for VARS in TYPES(INIT)(COND)(STEP): body` (§4.4).
// TYPES is parsed with parseAtom rather than the full expression grammar
// so the '(' that opens INIT is not mistaken for a call on TYPES.
func (p *parser) parseForC() (past.Stmt, error) {
	forPos := p.tok
	p.next() // FOR

	varsExpr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	vars, err := exprToIdents(varsExpr)
	if err != nil {
		return nil, err
	}

	if err := p.expect(pyscan.IN); err != nil {
		return nil, err
	}

	typesAtom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	types := exprToExprList(typesAtom)

	init, err := p.parseForCGroup()
	if err != nil {
		return nil, err
	}
	cond, err := p.parseForCGroup()
	if err != nil {
		return nil, err
	}
	step, err := p.parseForCGroup()
	if err != nil {
		return nil, err
	}

	if err := p.expect(pyscan.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuiteStmts()
	if err != nil {
		return nil, err
	}
	return &past.ForC{ForPos: forPos, Vars: vars, Types: types, Init: init, Cond: cond, Step: step, Body: body}, nil
}

// parseForCGroup parses one parenthesised `(...)` group of the C-style
// for-loop header, returning an empty TupleExpr for `()`, the bare
// expression for a single element, or a TupleExpr for a comma list.
func (p *parser) parseForCGroup() (past.Expr, error) {
	lparen := p.tok
	if err := p.expect(pyscan.LPAREN); err != nil {
		return nil, err
	}
	if p.k == pyscan.RPAREN {
		p.next()
		return &past.TupleExpr{LParen: lparen}, nil
	}
	var elts []past.Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		if p.k == pyscan.COMMA {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(pyscan.RPAREN); err != nil {
		return nil, err
	}
	if len(elts) == 1 {
		return elts[0], nil
	}
	return &past.TupleExpr{LParen: lparen, Elts: elts}, nil
}

// exprToIdents converts a for-loop VARS expression (a bare identifier or
// a parenthesised tuple of identifiers) into its component Idents.
func exprToIdents(e past.Expr) ([]*past.Ident, error) {
	if id, ok := e.(*past.Ident); ok {
		return []*past.Ident{id}, nil
	}
	tup, ok := e.(*past.TupleExpr)
	if !ok {
		return nil, arerrors.Newf(arerrors.KindAnnotationMismatch, e.Pos(),
			"for-loop variables must be a name or tuple of names")
	}
	idents := make([]*past.Ident, len(tup.Elts))
	for i, elt := range tup.Elts {
		id, ok := elt.(*past.Ident)
		if !ok {
			return nil, arerrors.Newf(arerrors.KindAnnotationMismatch, elt.Pos(),
				"for-loop variables must be a name or tuple of names")
		}
		idents[i] = id
	}
	return idents, nil
}

// exprToExprList converts a for-loop TYPES expression (a bare type
// expression or a parenthesised tuple of them) into its component Exprs.
func exprToExprList(e past.Expr) []past.Expr {
	if tup, ok := e.(*past.TupleExpr); ok {
		return tup.Elts
	}
	return []past.Expr{e}
}

func (p *parser) parseMatch() (past.Stmt, error) {
	pos := p.tok
	p.next() // MATCH
	subject, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(pyscan.COLON); err != nil {
		return nil, err
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	if err := p.expect(pyscan.INDENT); err != nil {
		return nil, err
	}
	var cases []*past.CaseClause
	for p.k != pyscan.DEDENT && p.k != pyscan.EOF {
		casePos := p.tok
		if err := p.expect(pyscan.CASE); err != nil {
			return nil, err
		}
		pattern, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(pyscan.COLON); err != nil {
			return nil, err
		}
		body, err := p.parseSuiteStmts()
		if err != nil {
			return nil, err
		}
		cases = append(cases, &past.CaseClause{CasePos: casePos, Pattern: pattern, Body: body})
	}
	if err := p.expect(pyscan.DEDENT); err != nil {
		return nil, err
	}
	return &past.Match{MatchPos: pos, Subject: subject, Cases: cases}, nil
}

// ----------------------------------------------------------------------------
// Expressions
//
// Precedence, loosest to tightest: ternary, or, and, not, comparison,
// bitwise-or, bitwise-xor, bitwise-and, shift, additive, multiplicative,
// power (right-assoc), unary, postfix (attribute/subscript/call), atom.

func (p *parser) parseExpr() (past.Expr, error) {
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.k == pyscan.IF {
		p.next()
		test, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(pyscan.ELSE); err != nil {
			return nil, err
		}
		orelse, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &past.IfExp{Body: e, Test: test, Orelse: orelse}, nil
	}
	return e, nil
}

func (p *parser) parseOr() (past.Expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.k == pyscan.OR {
		pos := p.tok
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &past.BoolOp{Op: "or", OpPos: pos, Values: []past.Expr{lhs, rhs}}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (past.Expr, error) {
	lhs, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.k == pyscan.AND {
		pos := p.tok
		p.next()
		rhs, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		lhs = &past.BoolOp{Op: "and", OpPos: pos, Values: []past.Expr{lhs, rhs}}
	}
	return lhs, nil
}

func (p *parser) parseNot() (past.Expr, error) {
	if p.k == pyscan.NOT {
		pos := p.tok
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &past.UnaryOp{Op: "not", OpPos: pos, X: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (past.Expr, error) {
	lhs, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	var ops []string
	var comps []past.Expr
	for isCompareStart(p.k) {
		op, err := p.parseCompareOp()
		if err != nil {
			return nil, err
		}
		rhs, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comps = append(comps, rhs)
	}
	if len(ops) == 0 {
		return lhs, nil
	}
	return &past.Compare{Left: lhs, Ops: ops, Comparators: comps}, nil
}

func isCompareStart(k pyscan.Kind) bool {
	switch k {
	case pyscan.EQ, pyscan.NE, pyscan.LT, pyscan.LE, pyscan.GT, pyscan.GE, pyscan.IS:
		return true
	}
	return false
}

func (p *parser) parseCompareOp() (string, error) {
	switch p.k {
	case pyscan.EQ:
		p.next()
		return "==", nil
	case pyscan.NE:
		p.next()
		return "!=", nil
	case pyscan.LT:
		p.next()
		return "<", nil
	case pyscan.LE:
		p.next()
		return "<=", nil
	case pyscan.GT:
		p.next()
		return ">", nil
	case pyscan.GE:
		p.next()
		return ">=", nil
	case pyscan.IS:
		p.next()
		if p.k == pyscan.NOT {
			p.next()
			return "is not", nil
		}
		return "is", nil
	}
	return "", p.errf("expected comparison operator, found %s", p.k)
}

func (p *parser) parseBitOr() (past.Expr, error) {
	lhs, err := p.parseBitXor()
	if err != nil {
		return nil, err
	}
	for p.k == pyscan.PIPE {
		pos := p.tok
		p.next()
		rhs, err := p.parseBitXor()
		if err != nil {
			return nil, err
		}
		lhs = &past.BinOp{X: lhs, Y: rhs, Op: "|", OpPos: pos}
	}
	return lhs, nil
}

func (p *parser) parseBitXor() (past.Expr, error) {
	lhs, err := p.parseBitAnd()
	if err != nil {
		return nil, err
	}
	for p.k == pyscan.CARET {
		pos := p.tok
		p.next()
		rhs, err := p.parseBitAnd()
		if err != nil {
			return nil, err
		}
		lhs = &past.BinOp{X: lhs, Y: rhs, Op: "^", OpPos: pos}
	}
	return lhs, nil
}

func (p *parser) parseBitAnd() (past.Expr, error) {
	lhs, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for p.k == pyscan.AMP {
		pos := p.tok
		p.next()
		rhs, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		lhs = &past.BinOp{X: lhs, Y: rhs, Op: "&", OpPos: pos}
	}
	return lhs, nil
}

func (p *parser) parseShift() (past.Expr, error) {
	lhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for p.k == pyscan.SHL || p.k == pyscan.SHR {
		op, pos := "<<", p.tok
		if p.k == pyscan.SHR {
			op = ">>"
		}
		p.next()
		rhs, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		lhs = &past.BinOp{X: lhs, Y: rhs, Op: op, OpPos: pos}
	}
	return lhs, nil
}

func (p *parser) parseAdd() (past.Expr, error) {
	lhs, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.k == pyscan.PLUS || p.k == pyscan.MINUS {
		op, pos := "+", p.tok
		if p.k == pyscan.MINUS {
			op = "-"
		}
		p.next()
		rhs, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		lhs = &past.BinOp{X: lhs, Y: rhs, Op: op, OpPos: pos}
	}
	return lhs, nil
}

func (p *parser) parseMul() (past.Expr, error) {
	lhs, err := p.parsePow()
	if err != nil {
		return nil, err
	}
	for p.k == pyscan.STAR || p.k == pyscan.SLASH || p.k == pyscan.PERCENT || p.k == pyscan.FLOORDIV {
		op, pos := tokText(p.k), p.tok
		p.next()
		rhs, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		lhs = &past.BinOp{X: lhs, Y: rhs, Op: op, OpPos: pos}
	}
	return lhs, nil
}

func tokText(k pyscan.Kind) string {
	switch k {
	case pyscan.STAR:
		return "*"
	case pyscan.SLASH:
		return "/"
	case pyscan.PERCENT:
		return "%"
	case pyscan.FLOORDIV:
		return "//"
	}
	return k.String()
}

// parsePow handles the right-associative `**` operator, which also
// encodes the wildcard increment/decrement forms (`e ** W`, `W ** e`) —
// cexpr decides that from the operands, not the parser.
func (p *parser) parsePow() (past.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.k == pyscan.POW {
		pos := p.tok
		p.next()
		rhs, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		return &past.BinOp{X: lhs, Y: rhs, Op: "**", OpPos: pos}, nil
	}
	return lhs, nil
}

func (p *parser) parseUnary() (past.Expr, error) {
	switch p.k {
	case pyscan.PLUS, pyscan.MINUS, pyscan.TILDE:
		op, pos := tokText(p.k), p.tok
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &past.UnaryOp{Op: op, OpPos: pos, X: x}, nil
	}
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(x)
}

func (p *parser) parsePostfix(x past.Expr) (past.Expr, error) {
	for {
		switch p.k {
		case pyscan.DOT:
			p.next()
			attr, err := p.parseIdentRaw()
			if err != nil {
				return nil, err
			}
			x = &past.Attribute{X: x, Attr: attr}
		case pyscan.LBRACK:
			pos := p.tok
			p.next()
			idx, err := p.parseExprOrTupleUntil(pyscan.RBRACK)
			if err != nil {
				return nil, err
			}
			if err := p.expect(pyscan.RBRACK); err != nil {
				return nil, err
			}
			x = &past.Subscript{X: x, Index: idx, LBrk: pos}
		case pyscan.LPAREN:
			call, err := p.parseCallTail(x)
			if err != nil {
				return nil, err
			}
			x = call
		default:
			return x, nil
		}
	}
}

// parseExprOrTupleUntil parses a comma-separated expression list up to
// (not including) end, returning a bare Expr for one element or a
// TupleExpr for more than one.
func (p *parser) parseExprOrTupleUntil(end pyscan.Kind) (past.Expr, error) {
	lbrack := p.tok
	var elts []past.Expr
	for p.k != end {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		if p.k == pyscan.COMMA {
			p.next()
			continue
		}
		break
	}
	if len(elts) == 1 {
		return elts[0], nil
	}
	return &past.TupleExpr{LParen: lbrack, Elts: elts}, nil
}

// parseCallTail parses a call's `(args..., name=value...)` suffix; the
// current token must be the opening '('.
func (p *parser) parseCallTail(fun past.Expr) (*past.Call, error) {
	pos := p.tok
	if err := p.expect(pyscan.LPAREN); err != nil {
		return nil, err
	}
	var args []past.Expr
	var kws []*past.Keyword
	for p.k != pyscan.RPAREN {
		if p.k == pyscan.IDENT && p.peekK == pyscan.ASSIGN {
			namePos, name := p.tok, p.lit
			p.next() // ident
			p.next() // '='
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			kws = append(kws, &past.Keyword{NamePos: namePos, Name: name, Value: val})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
		}
		if p.k == pyscan.COMMA {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(pyscan.RPAREN); err != nil {
		return nil, err
	}
	return &past.Call{Fun: fun, Args: args, Keywords: kws, LParen: pos}, nil
}

func (p *parser) parseIdentRaw() (*past.Ident, error) {
	if p.k != pyscan.IDENT {
		return nil, p.errf("expected identifier, found %s", p.k)
	}
	id := &past.Ident{NamePos: p.tok, Name: p.lit}
	p.next()
	return id, nil
}

func (p *parser) parseAtom() (past.Expr, error) {
	switch p.k {
	case pyscan.IDENT:
		pos, name := p.tok, p.lit
		p.next()
		id := &past.Ident{NamePos: pos, Name: name}
		if p.k == pyscan.WALRUS {
			p.next()
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &past.NamedExpr{Target: id, Value: val}, nil
		}
		return id, nil
	case pyscan.INT:
		pos, lit := p.tok, p.lit
		p.next()
		return &past.Constant{ValuePos: pos, Kind: past.IntConstant, Value: lit}, nil
	case pyscan.FLOAT:
		pos, lit := p.tok, p.lit
		p.next()
		return &past.Constant{ValuePos: pos, Kind: past.FloatConstant, Value: lit}, nil
	case pyscan.STRING:
		pos, lit := p.tok, p.lit
		p.next()
		return &past.Constant{ValuePos: pos, Kind: past.StringConstant, Value: lit}, nil
	case pyscan.BYTES:
		pos, lit := p.tok, p.lit
		p.next()
		return &past.Constant{ValuePos: pos, Kind: past.BytesConstant, Value: lit}, nil
	case pyscan.TRUE:
		pos, lit := p.tok, p.lit
		p.next()
		return &past.Constant{ValuePos: pos, Kind: past.BoolConstant, Value: lit}, nil
	case pyscan.FALSE:
		pos, lit := p.tok, p.lit
		p.next()
		return &past.Constant{ValuePos: pos, Kind: past.BoolConstant, Value: lit}, nil
	case pyscan.NONE:
		pos, lit := p.tok, p.lit
		p.next()
		return &past.Constant{ValuePos: pos, Kind: past.NoneConstant, Value: lit}, nil
	case pyscan.STAR:
		pos := p.tok
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &past.Starred{StarPos: pos, X: x}, nil
	case pyscan.LPAREN:
		return p.parseParenExpr()
	case pyscan.LBRACK:
		return p.parseListExpr()
	default:
		return nil, p.errf("unexpected token %s %q", p.k, p.lit)
	}
}

// parseParenExpr parses `()` (the empty-tuple loop-test sentinel), a
// grouped expression `(E)`, or a tuple `(E1, E2, ...)`. Walrus elements
// (`NAME := E`) fall out of parseExpr -> parseAtom with no extra handling
// here.
func (p *parser) parseParenExpr() (past.Expr, error) {
	lparen := p.tok
	p.next() // (
	if p.k == pyscan.RPAREN {
		p.next()
		return &past.TupleExpr{LParen: lparen}, nil
	}
	var elts []past.Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		if p.k == pyscan.COMMA {
			p.next()
			if p.k == pyscan.RPAREN {
				break
			}
			continue
		}
		break
	}
	if err := p.expect(pyscan.RPAREN); err != nil {
		return nil, err
	}
	if len(elts) == 1 {
		return elts[0], nil
	}
	return &past.TupleExpr{LParen: lparen, Elts: elts}, nil
}

func (p *parser) parseListExpr() (past.Expr, error) {
	lbrack := p.tok
	p.next() // [
	var elts []past.Expr
	for p.k != pyscan.RBRACK {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		if p.k == pyscan.COMMA {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(pyscan.RBRACK); err != nil {
		return nil, err
	}
	return &past.ListExpr{LBrack: lbrack, Elts: elts}, nil
}
