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

// Package cstmt is the statement emitter (§4.4): if/elif/else (runtime
// and preprocessor), the four loop encodings, match/case, labels and
// gotos, and return/break/continue.
package cstmt

import (
	"strings"

	"arafura.dev/arafura/internal/arerrors"
	"arafura.dev/arafura/internal/clower/cexpr"
	"arafura.dev/arafura/internal/clower/ctype"
	"arafura.dev/arafura/internal/cwriter"
	"arafura.dev/arafura/internal/past"
	"arafura.dev/arafura/internal/tagset"
)

// Emit writes s's C translation to w.
func Emit(s past.Stmt, w *cwriter.Writer, tags *tagset.Set, ctx *ctype.CStack) error {
	switch n := s.(type) {
	case *past.If:
		return emitIf(n, w, tags, ctx)
	case *past.While:
		return emitWhile(n, w, tags, ctx)
	case *past.ForC:
		return emitForC(n, w, tags, ctx)
	case *past.Match:
		return emitMatch(n, w, tags, ctx)
	case *past.Return:
		return emitReturn(n, w, tags, ctx)
	case *past.Break:
		w.WriteString("break;")
		w.NL()
		return nil
	case *past.Continue:
		w.WriteString("continue;")
		w.NL()
		return nil
	case *past.Raise:
		return emitRaise(n, w)
	case *past.ExprStmt:
		v, err := cexpr.Emit(n.X, tags, ctx)
		if err != nil {
			return err
		}
		w.WriteString(v + ";")
		w.NL()
		return nil
	case *past.AnnAssign:
		return emitLocalAnnAssign(n, w, tags, ctx)
	case *past.Assign:
		return emitAssign(n, w, tags, ctx)
	default:
		return arerrors.Newf(arerrors.KindUnrecognisedPattern, s.Pos(),
			"unexpected statement shape %T", s)
	}
}

func emitBody(body []past.Stmt, w *cwriter.Writer, tags *tagset.Set, ctx *ctype.CStack) error {
	for _, s := range body {
		if err := Emit(s, w, tags, ctx); err != nil {
			return err
		}
	}
	return nil
}

// blockBody writes body as a brace-delimited block, propagating any
// emission error out of the w.Block closure (Block itself takes a plain
// func(), so the error has to be captured rather than returned).
func blockBody(w *cwriter.Writer, body []past.Stmt, tags *tagset.Set, ctx *ctype.CStack) error {
	var bodyErr error
	w.Block(func() {
		if err := emitBody(body, w, tags, ctx); err != nil {
			bodyErr = err
		}
	})
	return bodyErr
}

// isPreprocessorTest reports whether test is the single-element list
// literal `[E]` that marks an if/elif/else chain as a preprocessor
// conditional (§4.4), returning the underlying E.
func isPreprocessorTest(test past.Expr) (past.Expr, bool) {
	lst, ok := test.(*past.ListExpr)
	if !ok || len(lst.Elts) != 1 {
		return nil, false
	}
	return lst.Elts[0], true
}

// preprocessorDirective renders one `[E]` preprocessor test as a full
// directive line: #ifdef/#ifndef/#if for the head of a chain, or
// #elif defined(...)/#elif !defined(...)/#elif E for a later arm.
func preprocessorDirective(e past.Expr, tags *tagset.Set, ctx *ctype.CStack, elif bool) (string, error) {
	if un, ok := e.(*past.UnaryOp); ok && un.Op == "not" {
		if id, ok := un.X.(*past.Ident); ok {
			if elif {
				return "#elif !defined(" + id.Name + ")", nil
			}
			return "#ifndef " + id.Name, nil
		}
	}
	if id, ok := e.(*past.Ident); ok {
		if elif {
			return "#elif defined(" + id.Name + ")", nil
		}
		return "#ifdef " + id.Name, nil
	}
	v, err := cexpr.Emit(e, tags, ctx)
	if err != nil {
		return "", err
	}
	if elif {
		return "#elif " + v, nil
	}
	return "#if " + v, nil
}

func emitIf(n *past.If, w *cwriter.Writer, tags *tagset.Set, ctx *ctype.CStack) error {
	if e, ok := isPreprocessorTest(n.Test); ok {
		return emitPreprocessorChain(n, e, w, tags, ctx)
	}
	cond, err := cexpr.Emit(n.Test, tags, ctx)
	if err != nil {
		return err
	}
	w.Printf("if (%s) ", cond)
	if err := blockBody(w, n.Body, tags, ctx); err != nil {
		return err
	}
	for _, el := range n.Elifs {
		ec, err := cexpr.Emit(el.Test, tags, ctx)
		if err != nil {
			return err
		}
		w.Printf(" else if (%s) ", ec)
		if err := blockBody(w, el.Body, tags, ctx); err != nil {
			return err
		}
	}
	if n.Else != nil {
		w.WriteString(" else ")
		if err := blockBody(w, n.Else, tags, ctx); err != nil {
			return err
		}
	}
	w.NL()
	return nil
}

func emitPreprocessorChain(n *past.If, ifCond past.Expr, w *cwriter.Writer, tags *tagset.Set, ctx *ctype.CStack) error {
	head, err := preprocessorDirective(ifCond, tags, ctx, false)
	if err != nil {
		return err
	}
	w.WriteString(head)
	w.NL()
	if err := emitBody(n.Body, w, tags, ctx); err != nil {
		return err
	}
	for _, el := range n.Elifs {
		e, ok := isPreprocessorTest(el.Test)
		if !ok {
			return arerrors.Newf(arerrors.KindUnrecognisedPattern, el.Test.Pos(),
				"elif in a preprocessor chain must also use the [E] form")
		}
		c, err := preprocessorDirective(e, tags, ctx, true)
		if err != nil {
			return err
		}
		w.WriteString(c)
		w.NL()
		if err := emitBody(el.Body, w, tags, ctx); err != nil {
			return err
		}
	}
	if n.Else != nil {
		w.WriteString("#else")
		w.NL()
		if err := emitBody(n.Else, w, tags, ctx); err != nil {
			return err
		}
	}
	w.WriteString("#endif")
	w.NL()
	return nil
}

// emitWhile implements the three while-shaped loop encodings (§4.4):
// an ordinary `while cond:`, and the empty-tuple-test `while ():` form,
// which is either a do-while (tail `if C: continue`) or a for-ever loop.
func emitWhile(n *past.While, w *cwriter.Writer, tags *tagset.Set, ctx *ctype.CStack) error {
	tup, isEmptyTuple := n.Test.(*past.TupleExpr)
	if !isEmptyTuple || len(tup.Elts) != 0 {
		cond, err := cexpr.Emit(n.Test, tags, ctx)
		if err != nil {
			return err
		}
		w.Printf("while (%s) ", cond)
		if err := blockBody(w, n.Body, tags, ctx); err != nil {
			return err
		}
		w.NL()
		return nil
	}

	if cond, rest, ok := tailIfContinue(n.Body); ok {
		condText, err := cexpr.Emit(cond, tags, ctx)
		if err != nil {
			return err
		}
		w.WriteString("do ")
		if err := blockBody(w, rest, tags, ctx); err != nil {
			return err
		}
		w.Printf(" while (%s);", condText)
		w.NL()
		return nil
	}

	w.WriteString("for (;;) ")
	if err := blockBody(w, n.Body, tags, ctx); err != nil {
		return err
	}
	w.NL()
	return nil
}

// tailIfContinue checks whether body's last statement is `if C: continue`
// with no elifs/else and a single-statement body (§4.4's encoding-2/3
// tie-break), returning C and body with that final statement removed.
func tailIfContinue(body []past.Stmt) (cond past.Expr, rest []past.Stmt, ok bool) {
	if len(body) == 0 {
		return nil, nil, false
	}
	last, isIf := body[len(body)-1].(*past.If)
	if !isIf || len(last.Elifs) != 0 || last.Else != nil || len(last.Body) != 1 {
		return nil, nil, false
	}
	if _, isContinue := last.Body[0].(*past.Continue); !isContinue {
		return nil, nil, false
	}
	if _, isPP := isPreprocessorTest(last.Test); isPP {
		return nil, nil, false
	}
	return last.Test, body[:len(body)-1], true
}

// emitForC implements the C-style for encoding (§4.4, scenario 3):
// `for VARS in TYPES(INIT)(COND)(STEP): body`. The variables form one C
// declaration, so they must share the first variable's base type.
func emitForC(n *past.ForC, w *cwriter.Writer, tags *tagset.Set, ctx *ctype.CStack) error {
	if len(n.Vars) != len(n.Types) {
		return arerrors.Newf(arerrors.KindAnnotationMismatch, n.Pos(),
			"for-loop has %d variables but %d types", len(n.Vars), len(n.Types))
	}
	inits, err := forInits(n.Init, len(n.Vars))
	if err != nil {
		return err
	}
	if len(inits) != len(n.Vars) {
		return arerrors.Newf(arerrors.KindAnnotationMismatch, n.Init.Pos(),
			"for-loop has %d variables but %d initialisers", len(n.Vars), len(inits))
	}

	var decls []string
	var base string
	for i, v := range n.Vars {
		t, err := ctype.Emit(n.Types[i], tags)
		if err != nil {
			return err
		}
		val, err := cexpr.Emit(inits[i], tags, ctx)
		if err != nil {
			return err
		}
		if i == 0 {
			base = t.Base
			decls = append(decls, t.Declarator(v.Name)+" = "+val)
			continue
		}
		if t.Base != base {
			return arerrors.Newf(arerrors.KindAnnotationMismatch, n.Types[i].Pos(),
				"for-loop variables must share one base type (%s vs %s)", base, t.Base)
		}
		decls = append(decls, t.Left+v.Name+t.Right+" = "+val)
	}

	cond, err := cexpr.Emit(n.Cond, tags, ctx)
	if err != nil {
		return err
	}
	step, err := commaList(n.Step, tags, ctx)
	if err != nil {
		return err
	}

	w.Printf("for (%s; %s; %s) ", strings.Join(decls, ", "), cond, step)
	if err := blockBody(w, n.Body, tags, ctx); err != nil {
		return err
	}
	w.NL()
	return nil
}

// forInits extracts each per-variable initial value from INIT, which is
// a single `(v := e)` walrus expression when there is one loop variable,
// or a tuple of walrus expressions when there is more than one.
func forInits(init past.Expr, nvars int) ([]past.Expr, error) {
	if nvars == 1 {
		ne, ok := init.(*past.NamedExpr)
		if !ok {
			return nil, arerrors.Newf(arerrors.KindAnnotationMismatch, init.Pos(),
				"for-loop init must be a walrus expression (v := e)")
		}
		return []past.Expr{ne.Value}, nil
	}
	tup, ok := init.(*past.TupleExpr)
	if !ok {
		return nil, arerrors.Newf(arerrors.KindAnnotationMismatch, init.Pos(),
			"for-loop init must be a tuple of walrus expressions")
	}
	values := make([]past.Expr, len(tup.Elts))
	for i, e := range tup.Elts {
		ne, ok := e.(*past.NamedExpr)
		if !ok {
			return nil, arerrors.Newf(arerrors.KindAnnotationMismatch, e.Pos(),
				"for-loop init element must be a walrus expression (v := e)")
		}
		values[i] = ne.Value
	}
	return values, nil
}

// commaList renders e as a C comma expression: each tuple element joined
// by ", " with no enclosing parentheses, used for the for-loop step
// clause (a bare expression when there is one variable).
func commaList(e past.Expr, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	tup, ok := e.(*past.TupleExpr)
	if !ok {
		return cexpr.Emit(e, tags, ctx)
	}
	parts := make([]string, len(tup.Elts))
	for i, elt := range tup.Elts {
		s, err := cexpr.Emit(elt, tags, ctx)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, ", "), nil
}

// emitMatch implements match/case -> switch (§4.4): `case W:` becomes
// `default:`, and fallthrough is simply the absence of a break statement
// in a case's body, which needs no special handling here since an
// ordinary Break already emits "break;" and nothing else inserts one.
func emitMatch(n *past.Match, w *cwriter.Writer, tags *tagset.Set, ctx *ctype.CStack) error {
	subj, err := cexpr.Emit(n.Subject, tags, ctx)
	if err != nil {
		return err
	}
	w.Printf("switch (%s) ", subj)
	var caseErr error
	w.Block(func() {
		for _, c := range n.Cases {
			if id, ok := c.Pattern.(*past.Ident); ok && id.IsWildcard() {
				w.WriteString("default:")
			} else {
				v, err := cexpr.Emit(c.Pattern, tags, ctx)
				if err != nil {
					caseErr = err
					return
				}
				w.WriteString("case " + v + ":")
			}
			w.NL()
			w.Indent()
			if err := emitBody(c.Body, w, tags, ctx); err != nil {
				caseErr = err
				w.Dedent()
				return
			}
			w.Dedent()
		}
	})
	if caseErr != nil {
		return caseErr
	}
	w.NL()
	return nil
}

func emitReturn(n *past.Return, w *cwriter.Writer, tags *tagset.Set, ctx *ctype.CStack) error {
	if n.Value == nil {
		w.WriteString("return;")
		w.NL()
		return nil
	}
	v, err := cexpr.Emit(n.Value, tags, ctx)
	if err != nil {
		return err
	}
	w.WriteString("return " + v + ";")
	w.NL()
	return nil
}

// emitRaise implements `raise NAME` -> `goto NAME;` (§4.4).
func emitRaise(n *past.Raise, w *cwriter.Writer) error {
	id, ok := n.X.(*past.Ident)
	if !ok {
		return arerrors.Newf(arerrors.KindUnrecognisedPattern, n.Pos(),
			"raise requires a bare identifier naming a goto target")
	}
	w.WriteString("goto " + id.Name + ";")
	w.NL()
	return nil
}

// emitAssign handles a plain (unannotated) assignment statement
// `Target = Value`; Target is lowered through the expression emitter like
// any other node, so the wildcard dereference and pointer-member forms
// (`e.W = v`, `p.W.x = v`) fall out of cexpr's existing rules with no
// special casing needed here.
func emitAssign(n *past.Assign, w *cwriter.Writer, tags *tagset.Set, ctx *ctype.CStack) error {
	lhs, err := cexpr.Emit(n.Target, tags, ctx)
	if err != nil {
		return err
	}
	rhs, err := cexpr.Emit(n.Value, tags, ctx)
	if err != nil {
		return err
	}
	w.WriteString(lhs + " = " + rhs + ";")
	w.NL()
	return nil
}

// emitLocalAnnAssign handles AnnAssign in statement position: either the
// labelled-statement encoding `NAME: label` (Annotation is the literal
// sentinel identifier "label") or an ordinary local declaration.
func emitLocalAnnAssign(n *past.AnnAssign, w *cwriter.Writer, tags *tagset.Set, ctx *ctype.CStack) error {
	if id, ok := n.Annotation.(*past.Ident); ok && id.Name == "label" {
		w.WriteString(n.Target.Name + ":")
		w.NL()
		return nil
	}
	t, err := ctype.Emit(n.Annotation, tags)
	if err != nil {
		return err
	}
	if n.Value == nil {
		w.WriteString(t.Declarator(n.Target.Name) + ";")
		w.NL()
		return nil
	}
	ctx.Push(t)
	v, err := cexpr.Emit(n.Value, tags, ctx)
	ctx.Pop()
	if err != nil {
		return err
	}
	w.WriteString(t.Declarator(n.Target.Name) + " = " + v + ";")
	w.NL()
	return nil
}
