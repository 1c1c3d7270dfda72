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

// Package cdecl is the declaration emitter (§4.5): top-level annotated
// assignment (macro or declaration), composite type definitions,
// function vs. function-like-macro dispatch, includes, type aliases,
// and the recognised passthrough forms.
package cdecl

import (
	"strings"

	"arafura.dev/arafura/internal/arerrors"
	"arafura.dev/arafura/internal/clower/cexpr"
	"arafura.dev/arafura/internal/clower/cstmt"
	"arafura.dev/arafura/internal/clower/ctype"
	"arafura.dev/arafura/internal/cwriter"
	"arafura.dev/arafura/internal/past"
	"arafura.dev/arafura/internal/tagset"
)

// Emit writes d's top-level C translation to w.
func Emit(d past.Decl, w *cwriter.Writer, tags *tagset.Set) error {
	switch n := d.(type) {
	case *past.AnnAssign:
		return emitTopAnnAssign(n, w, tags)
	case *past.ClassDef:
		return emitClass(n, w, tags)
	case *past.FuncDef:
		return emitFunc(n, w, tags)
	case *past.Import:
		w.Printf("#include \"%s.h\"", n.Name)
		w.NL()
		return nil
	case *past.ImportFrom:
		w.Printf("#include <%s.h>", n.Name)
		w.NL()
		return nil
	case *past.TypeAliasDecl:
		return emitTypeAlias(n, w, tags)
	case *past.Passthrough:
		return emitPassthrough(n, w, tags)
	case *past.If:
		return emitTopIf(n, w, tags)
	default:
		return arerrors.Newf(arerrors.KindUnrecognisedPattern, d.Pos(),
			"unexpected top-level declaration shape %T", d)
	}
}

// emitTopAnnAssign implements `NAME: T = E` at module scope (§4.5): a
// #define when T is the literal name "macro", otherwise a C
// declaration. The declaration's own type becomes the contextual type C
// while its initialiser is lowered, so a W(...) compound literal there
// resolves against it.
func emitTopAnnAssign(n *past.AnnAssign, w *cwriter.Writer, tags *tagset.Set) error {
	if id, ok := n.Annotation.(*past.Ident); ok && id.Name == "macro" {
		if n.Value == nil {
			return arerrors.Newf(arerrors.KindUnrecognisedPattern, n.Pos(),
				"macro %s requires a value", n.Target.Name)
		}
		v, err := cexpr.Emit(n.Value, tags, &ctype.CStack{})
		if err != nil {
			return err
		}
		w.Printf("#define %s %s", n.Target.Name, v)
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
	ctx := &ctype.CStack{}
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

// decorators is the outcome of evaluating a class's decorator list: at
// most one Typedef(X) and zero or more names from a Var(n1, n2, ...).
type decorators struct {
	typedefName *past.Ident
	varNames    []*past.Ident
}

func parseDecorators(decs []*past.Decorator) (decorators, error) {
	var info decorators
	for _, d := range decs {
		if d.Name == nil {
			continue
		}
		switch d.Name.Name {
		case "Typedef":
			if len(d.Args) != 1 {
				return info, arerrors.Newf(arerrors.KindUnrecognisedPattern, d.Pos(),
					"Typedef(...) takes exactly one name")
			}
			id, ok := d.Args[0].(*past.Ident)
			if !ok {
				return info, arerrors.Newf(arerrors.KindUnrecognisedPattern, d.Pos(),
					"Typedef(...) argument must be a bare name")
			}
			info.typedefName = id
		case "Var":
			for _, a := range d.Args {
				id, ok := a.(*past.Ident)
				if !ok {
					return info, arerrors.Newf(arerrors.KindUnrecognisedPattern, d.Pos(),
						"Var(...) arguments must be bare names")
				}
				info.varNames = append(info.varNames, id)
			}
		default:
			return info, arerrors.Newf(arerrors.KindUnknownDecorator, d.Pos(),
				"unknown decorator %s (only Typedef and Var are recognised)", d.Name.Name)
		}
	}
	return info, nil
}

func classKind(cd *past.ClassDef) string {
	for _, b := range cd.Bases {
		if id, ok := b.(*past.Ident); ok {
			switch id.Name {
			case "Union":
				return "union"
			case "Enum":
				return "enum"
			}
		}
	}
	return "struct"
}

// emitClass implements the composite type definition (§4.5): struct,
// union, or enum depending on the base class, with Typedef and Var
// decorators evaluated outside-in and composable.
func emitClass(cd *past.ClassDef, w *cwriter.Writer, tags *tagset.Set) error {
	info, err := parseDecorators(cd.Decorators)
	if err != nil {
		return err
	}
	anonymous := cd.Name == nil || cd.Name.IsWildcard()
	if anonymous && len(info.varNames) == 0 {
		return arerrors.Newf(arerrors.KindAnnotationMismatch, cd.Pos(),
			"an anonymous class (named W) requires a Var(...) decorator")
	}

	kind := classKind(cd)
	header := kind
	if !anonymous {
		header += " " + cd.Name.Name
	}
	if info.typedefName != nil {
		w.WriteString("typedef " + header + " ")
	} else {
		w.WriteString(header + " ")
	}

	var bodyErr error
	w.Block(func() {
		if kind == "enum" {
			bodyErr = emitEnumBody(cd.Body, w, tags)
		} else {
			bodyErr = emitAggregateBody(cd.Body, w, tags)
		}
	})
	if bodyErr != nil {
		return bodyErr
	}

	if info.typedefName != nil {
		w.WriteString(" " + info.typedefName.Name + ";")
		w.NL()
		if len(info.varNames) > 0 {
			w.WriteString(info.typedefName.Name + " " + joinIdents(info.varNames) + ";")
			w.NL()
		}
		return nil
	}
	if len(info.varNames) > 0 {
		w.WriteString(" " + joinIdents(info.varNames) + ";")
		w.NL()
		return nil
	}
	w.WriteString(";")
	w.NL()
	return nil
}

func joinIdents(ids []*past.Ident) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.Name
	}
	return strings.Join(names, ", ")
}

// emitEnumBody renders a list of `NAME = CONST` enumerators.
func emitEnumBody(body []past.Decl, w *cwriter.Writer, tags *tagset.Set) error {
	for i, d := range body {
		aa, ok := d.(*past.AnnAssign)
		if !ok {
			return arerrors.Newf(arerrors.KindUnrecognisedPattern, d.Pos(),
				"enum member must be a NAME = CONST assignment")
		}
		if i > 0 {
			w.WriteString(",")
			w.NL()
		}
		if aa.Value == nil {
			w.WriteString(aa.Target.Name)
			continue
		}
		v, err := cexpr.Emit(aa.Value, tags, &ctype.CStack{})
		if err != nil {
			return err
		}
		w.WriteString(aa.Target.Name + " = " + v)
	}
	w.NL()
	return nil
}

// emitAggregateBody renders struct/union fields (annotated assignments
// without a value) and nested composite type definitions.
func emitAggregateBody(body []past.Decl, w *cwriter.Writer, tags *tagset.Set) error {
	for i, d := range body {
		switch n := d.(type) {
		case *past.AnnAssign:
			t, err := ctype.Emit(n.Annotation, tags)
			if err != nil {
				return err
			}
			if t.Flexible && i != len(body)-1 {
				return arerrors.Newf(arerrors.KindAnnotationMismatch, n.Pos(),
					"flexible array member %s must be the final field", n.Target.Name)
			}
			decl := t.Declarator(n.Target.Name)
			if t.Bitfield != nil {
				width, err := cexpr.Emit(t.Bitfield, tags, &ctype.CStack{})
				if err != nil {
					return err
				}
				decl += " : " + width
			}
			w.WriteString(decl + ";")
			w.NL()
		case *past.ClassDef:
			if err := emitClass(n, w, tags); err != nil {
				return err
			}
		default:
			return arerrors.Newf(arerrors.KindUnrecognisedPattern, d.Pos(),
				"unexpected struct/union member shape %T", d)
		}
	}
	return nil
}

// emitFunc dispatches `def` between a C function and a function-like
// macro based on annotation completeness (§4.5): full annotations (a
// return type and every parameter annotated) make a function; no
// annotations at all make a macro; anything in between is an error.
func emitFunc(fd *past.FuncDef, w *cwriter.Writer, tags *tagset.Set) error {
	allAnnotated := true
	anyAnnotated := false
	for _, p := range fd.Params {
		if p.Annotation == nil {
			allAnnotated = false
		} else {
			anyAnnotated = true
		}
	}
	hasReturn := fd.Returns != nil

	switch {
	case hasReturn && allAnnotated:
		return emitFunction(fd, w, tags)
	case !hasReturn && !anyAnnotated:
		return emitMacroFunc(fd, w, tags)
	default:
		return arerrors.Newf(arerrors.KindAnnotationMismatch, fd.Pos(),
			"def %s has partial parameter/return annotations", fd.Name.Name)
	}
}

func emitFunction(fd *past.FuncDef, w *cwriter.Writer, tags *tagset.Set) error {
	ret, err := ctype.Emit(fd.Returns, tags)
	if err != nil {
		return err
	}
	var params []string
	for _, p := range fd.Params {
		pt, err := ctype.Emit(p.Annotation, tags)
		if err != nil {
			return err
		}
		params = append(params, pt.Declarator(p.Name.Name))
	}
	paramList := "void"
	if len(params) > 0 {
		paramList = strings.Join(params, ", ")
	}
	w.Printf("%s(%s) ", ret.Declarator(fd.Name.Name), paramList)
	return blockStmts(w, fd.Body, tags, &ctype.CStack{})
}

func blockStmts(w *cwriter.Writer, body []past.Stmt, tags *tagset.Set, ctx *ctype.CStack) error {
	var bodyErr error
	w.Block(func() {
		for _, s := range body {
			if err := cstmt.Emit(s, w, tags, ctx); err != nil {
				bodyErr = err
				return
			}
		}
	})
	return bodyErr
}

// emitMacroFunc implements the function-like macro encoding (§4.5): a
// trailing *args parameter becomes "..." in the formal list and
// "__VA_ARGS__" in the body — the latter needs no special casing, since
// an ordinary Ident named __VA_ARGS__ is already emitted literally by
// the expression emitter.
func emitMacroFunc(fd *past.FuncDef, w *cwriter.Writer, tags *tagset.Set) error {
	formals := make([]string, len(fd.Params))
	for i, p := range fd.Params {
		if p.Star {
			formals[i] = "..."
		} else {
			formals[i] = p.Name.Name
		}
	}
	body, err := macroBody(fd.Body, tags)
	if err != nil {
		return err
	}
	w.Printf("#define %s(%s) %s", fd.Name.Name, strings.Join(formals, ", "), body)
	w.NL()
	return nil
}

// macroBody renders a macro's body (§4.5): a single expression
// statement becomes the bare expansion; multiple statements are joined
// by "; " with backslash-newline continuations so the #define stays one
// preprocessor logical line.
func macroBody(body []past.Stmt, tags *tagset.Set) (string, error) {
	if len(body) == 1 {
		if es, ok := body[0].(*past.ExprStmt); ok {
			return cexpr.Emit(es.X, tags, &ctype.CStack{})
		}
	}
	parts := make([]string, len(body))
	for i, s := range body {
		tmp := cwriter.New()
		if err := cstmt.Emit(s, tmp, tags, &ctype.CStack{}); err != nil {
			return "", err
		}
		text := strings.TrimRight(tmp.String(), "\n")
		text = strings.TrimSuffix(text, ";")
		text = strings.ReplaceAll(text, "\n", " \\\n")
		parts[i] = text
	}
	return strings.Join(parts, "; \\\n\t"), nil
}

// emitTypeAlias implements `type ALIAS = T` -> `typedef T-base ALIAS T-tail;`.
func emitTypeAlias(n *past.TypeAliasDecl, w *cwriter.Writer, tags *tagset.Set) error {
	t, err := ctype.Emit(n.Value, tags)
	if err != nil {
		return err
	}
	w.WriteString("typedef " + t.Declarator(n.Name.Name) + ";")
	w.NL()
	return nil
}

// emitTopIf implements the one shape of `if` legal at module scope: a
// preprocessor conditional wrapping a run of top-level declarations
// (§4.4). A runtime if has no top-level C equivalent, so it is rejected
// here rather than by the grammar.
func emitTopIf(n *past.If, w *cwriter.Writer, tags *tagset.Set) error {
	if !isPreprocessorIf(n.Test) {
		return arerrors.Newf(arerrors.KindUnrecognisedPattern, n.Pos(),
			"a top-level if must be a preprocessor conditional ([E])")
	}
	return cstmt.Emit(n, w, tags, &ctype.CStack{})
}

func isPreprocessorIf(test past.Expr) bool {
	lst, ok := test.(*past.ListExpr)
	return ok && len(lst.Elts) == 1
}

// emitPassthrough copies _Atomic/_Alignas/_Thread_local/_Alignof/
// _Static_assert forms through with their arguments lowered (§4.5).
func emitPassthrough(n *past.Passthrough, w *cwriter.Writer, tags *tagset.Set) error {
	ctx := &ctype.CStack{}
	w.WriteString(n.Keyword + "(")
	err := cwriter.JoinComma(w, len(n.Args), func(i int) error {
		v, err := cexpr.Emit(n.Args[i], tags, ctx)
		if err != nil {
			return err
		}
		w.WriteString(v)
		return nil
	})
	if err != nil {
		return err
	}
	w.WriteString(");")
	w.NL()
	return nil
}
