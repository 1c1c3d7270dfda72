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

// Package ctype is the type emitter (§4.2): it translates a type-position
// AST node into a C declarator split into a base type and a declarator
// tail, following a classic cdecl-style "wrap from the inside out"
// algorithm so that pointer-to-array and function-pointer declarators
// come out correctly parenthesised.
package ctype

import (
	"strings"

	"arafura.dev/arafura/internal/arerrors"
	"arafura.dev/arafura/internal/past"
	"arafura.dev/arafura/internal/tagset"
)

var primitives = map[string]bool{
	"int": true, "char": true, "float": true, "double": true,
	"long": true, "short": true, "void": true,
}

var qualifiers = map[string]bool{
	"const": true, "volatile": true, "unsigned": true,
	"signed": true, "static": true, "extern": true,
}

// composable holds the names a Subscript's head may take and still be
// read as base-type composition (§4.2's unsigned[long[long]] tie-break)
// rather than as an array declarator.
var composable = func() map[string]bool {
	m := map[string]bool{}
	for k := range primitives {
		m[k] = true
	}
	for k := range qualifiers {
		m[k] = true
	}
	return m
}()

// Result is the (base, decl-tail) pair the specification's type emitter
// produces. Left and Right are the declarator tokens that surround a
// name: the full declarator for a variable "name" of this type is
// `Base Left name Right`.
type Result struct {
	Base string
	Left string
	Right string

	// Bitfield holds the width expression when this Result came from a
	// bit[X,n] form; only meaningful as a struct/union field.
	Bitfield past.Expr

	// Flexible marks a list[X] single-argument flexible array member;
	// only legal as the final field of a struct.
	Flexible bool
}

// Declarator renders the full declaration text for a variable named name
// ("" for an abstract/anonymous declarator, as used for function
// parameters and sizeof operands).
func (r Result) Declarator(name string) string {
	mid := r.Left + name + r.Right
	if mid == "" {
		return r.Base
	}
	return r.Base + " " + mid
}

// CStack is the contextual type C (§3, §9): a stack of Results, pushed on
// entry to a declaration's initializer (top-level in cdecl, local in
// cstmt); there is no brace-init list form, so nothing else pushes. It is
// consulted only by the W(k=v,...) compound-literal rule
// in internal/clower/cexpr. It is threaded explicitly by callers rather
// than kept as a mutable field anywhere, per §9's design note.
type CStack struct {
	frames []Result
}

// Push enters a new contextual type.
func (s *CStack) Push(t Result) { s.frames = append(s.frames, t) }

// Pop leaves the innermost contextual type.
func (s *CStack) Pop() { s.frames = s.frames[:len(s.frames)-1] }

// Top reports the innermost contextual type, if any.
func (s *CStack) Top() (Result, bool) {
	if len(s.frames) == 0 {
		return Result{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// Emit translates x, a type-position node, into a Result. tags is the
// tag set T built by the pre-pass (§3, §4.1).
func Emit(x past.Expr, tags *tagset.Set) (Result, error) {
	switch n := x.(type) {
	case *past.Ident:
		return emitIdent(n, tags)
	case *past.UnaryOp:
		return emitUnary(n, tags)
	case *past.Subscript:
		return emitSubscript(n, tags)
	case *past.Call:
		return emitFuncType(n, tags)
	default:
		return Result{}, arerrors.Newf(arerrors.KindUnrecognisedPattern, x.Pos(),
			"expected a type expression, found %T", x)
	}
}

func emitIdent(n *past.Ident, tags *tagset.Set) (Result, error) {
	if n.IsWildcard() {
		return Result{}, arerrors.Newf(arerrors.KindReservedMisuse, n.Pos(),
			"W cannot be used as an ordinary type name")
	}
	if primitives[n.Name] {
		return Result{Base: n.Name}, nil
	}
	if e, ok := tags.Lookup(n.Name); ok {
		if !e.Typedefed {
			return Result{}, arerrors.Newf(arerrors.KindUnrecognisedPattern, n.Pos(),
				"%s is a tag name, not a typedef: use type[%s] (or enum[%s]/union[%s])",
				n.Name, n.Name, n.Name, n.Name)
		}
		return Result{Base: n.Name}, nil
	}
	// Not a declared tag: an opaque external type name (a typedef
	// brought in via #include, e.g. uint8_t, size_t, FILE).
	return Result{Base: n.Name}, nil
}

// wrapPointer applies one level of pointer-to around a declarator tail,
// parenthesising when the inner declarator already has a suffix (array
// extent or function parameter list) so precedence reads correctly, e.g.
// `int (*name)[4]` rather than the wrong `int *name[4]`.
func wrapPointer(left, right string) (string, string) {
	if right == "" {
		return "*" + left, ""
	}
	return "(*" + left, ")" + right
}

func emitUnary(n *past.UnaryOp, tags *tagset.Set) (Result, error) {
	switch n.Op {
	case "-", "+":
		inner, err := Emit(n.X, tags)
		if err != nil {
			return Result{}, err
		}
		inner.Left, inner.Right = wrapPointer(inner.Left, inner.Right)
		return inner, nil
	default:
		return Result{}, arerrors.Newf(arerrors.KindUnrecognisedPattern, n.Pos(),
			"unexpected operator %q in type position", n.Op)
	}
}

func emitFuncType(n *past.Call, tags *tagset.Set) (Result, error) {
	ret, err := Emit(n.Fun, tags)
	if err != nil {
		return Result{}, err
	}
	var params []string
	for _, a := range n.Args {
		p, err := Emit(a, tags)
		if err != nil {
			return Result{}, err
		}
		params = append(params, p.Declarator(""))
	}
	paramList := "void"
	if len(params) > 0 {
		paramList = strings.Join(params, ", ")
	}
	ret.Right = "(" + paramList + ")" + ret.Right
	// A bare Call in type position always denotes a pointer to function
	// (§4.2): "pointer to function returning R with parameters P1…", not
	// a plain function declarator, so this wraps the same way emitUnary
	// wraps an explicit leading `-`.
	ret.Left, ret.Right = wrapPointer(ret.Left, ret.Right)
	return ret, nil
}

func emitSubscript(n *past.Subscript, tags *tagset.Set) (Result, error) {
	head, isIdent := n.X.(*past.Ident)

	switch {
	case isIdent && head.Name == "type":
		name, err := tagName(n.Index)
		if err != nil {
			return Result{}, err
		}
		return Result{Base: "struct " + name}, nil

	case isIdent && head.Name == "enum":
		name, err := tagName(n.Index)
		if err != nil {
			return Result{}, err
		}
		return Result{Base: "enum " + name}, nil

	case isIdent && head.Name == "union":
		name, err := tagName(n.Index)
		if err != nil {
			return Result{}, err
		}
		return Result{Base: "union " + name}, nil

	case isIdent && qualifiers[head.Name]:
		inner, err := Emit(n.Index, tags)
		if err != nil {
			return Result{}, err
		}
		inner.Base = head.Name + " " + inner.Base
		return inner, nil

	case isIdent && head.Name == "list":
		return emitListForm(n, tags)

	case isIdent && head.Name == "bit":
		return emitBitfield(n, tags)

	case isIdent && (head.Name == "long" || head.Name == "short") && LooksLikeTypeExpr(n.Index, tags):
		inner, err := Emit(n.Index, tags)
		if err != nil {
			return Result{}, err
		}
		inner.Base = head.Name + " " + inner.Base
		return inner, nil

	default:
		elem, err := Emit(n.X, tags)
		if err != nil {
			return Result{}, err
		}
		elem.Right = "[" + renderArrayExtent(n.Index) + "]" + elem.Right
		return elem, nil
	}
}

func emitListForm(n *past.Subscript, tags *tagset.Set) (Result, error) {
	if tup, ok := n.Index.(*past.TupleExpr); ok && len(tup.Elts) == 2 {
		elem, err := Emit(tup.Elts[0], tags)
		if err != nil {
			return Result{}, err
		}
		elem.Right = "[" + renderArrayExtent(tup.Elts[1]) + "]" + elem.Right
		return elem, nil
	}
	elem, err := Emit(n.Index, tags)
	if err != nil {
		return Result{}, err
	}
	elem.Right = "[]" + elem.Right
	elem.Flexible = true
	return elem, nil
}

func emitBitfield(n *past.Subscript, tags *tagset.Set) (Result, error) {
	tup, ok := n.Index.(*past.TupleExpr)
	if !ok || len(tup.Elts) != 2 {
		return Result{}, arerrors.Newf(arerrors.KindUnrecognisedPattern, n.Pos(),
			"bit[X, n] requires exactly two arguments")
	}
	elem, err := Emit(tup.Elts[0], tags)
	if err != nil {
		return Result{}, err
	}
	elem.Bitfield = tup.Elts[1]
	return elem, nil
}

func tagName(idx past.Expr) (string, error) {
	id, ok := idx.(*past.Ident)
	if !ok {
		return "", arerrors.Newf(arerrors.KindUnrecognisedPattern, idx.Pos(),
			"expected a bare tag name")
	}
	return id.Name, nil
}

// LooksLikeTypeExpr decides the unsigned[long[long]]-style tie-break: an
// Index counts as "further type composition" rather than "an array
// extent expression" when it is itself shaped like a type (a primitive
// or qualifier name, a typedef'd tag, a subscript headed by a composable
// name or by type/enum/union, or a `-`/`+` pointer form).
// Exported so internal/clower/cexpr's sizeof(x) dispatch can reuse the
// same head-shape discrimination instead of guessing independently.
func LooksLikeTypeExpr(e past.Expr, tags *tagset.Set) bool {
	switch v := e.(type) {
	case *past.Ident:
		if composable[v.Name] {
			return true
		}
		return tags.Typedefed(v.Name)
	case *past.Subscript:
		if id, ok := v.X.(*past.Ident); ok {
			return composable[id.Name] || id.Name == "type" || id.Name == "enum" || id.Name == "union"
		}
		return false
	case *past.UnaryOp:
		return v.Op == "-" || v.Op == "+"
	default:
		return false
	}
}

// renderArrayExtent renders an array-extent expression verbatim as C
// text (§4.2: "n is emitted verbatim as a C expression"). Array extents
// are ordinary arithmetic over names and constants; the cast/sizeof/
// compound-literal/wildcard pseudo-forms the full expression emitter
// (internal/clower/cexpr) understands do not occur here; cexpr itself
// depends on ctype (for cast and sizeof(type) targets), so this stays a
// small self-contained renderer rather than importing cexpr back.
func renderArrayExtent(e past.Expr) string {
	switch v := e.(type) {
	case *past.Ident:
		return v.Name
	case *past.Constant:
		return v.Value
	case *past.UnaryOp:
		return v.Op + renderArrayExtent(v.X)
	case *past.BinOp:
		return renderArrayExtent(v.X) + " " + v.Op + " " + renderArrayExtent(v.Y)
	case *past.Attribute:
		return renderArrayExtent(v.X) + "." + v.Attr.Name
	case *past.Subscript:
		return renderArrayExtent(v.X) + "[" + renderArrayExtent(v.Index) + "]"
	case *past.Call:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = renderArrayExtent(a)
		}
		return renderArrayExtent(v.Fun) + "(" + strings.Join(args, ", ") + ")"
	default:
		return ""
	}
}
