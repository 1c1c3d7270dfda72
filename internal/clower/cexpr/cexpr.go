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

// Package cexpr is the expression emitter (§4.3): it translates
// value-position AST nodes into C expressions, handling the reserved
// wildcard W and the cast/sizeof/compound-literal pseudo-forms.
package cexpr

import (
	"strings"

	"github.com/cockroachdb/apd/v3"

	"arafura.dev/arafura/internal/arerrors"
	"arafura.dev/arafura/internal/clower/ctype"
	"arafura.dev/arafura/internal/past"
	"arafura.dev/arafura/internal/tagset"
)

// Emit translates x, a value-position node, into a C expression. ctx is
// the contextual-type stack C (§3); it is consulted only when x is a
// W(k=v,...) compound literal.
func Emit(x past.Expr, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	switch n := x.(type) {
	case *past.Ident:
		return emitIdent(n)
	case *past.Constant:
		return emitConstant(n)
	case *past.Attribute:
		return emitAttribute(n, tags, ctx)
	case *past.Subscript:
		return emitSubscript(n, tags, ctx)
	case *past.Call:
		return emitCall(n, tags, ctx)
	case *past.BinOp:
		return emitBinOp(n, tags, ctx)
	case *past.UnaryOp:
		return emitUnaryOp(n, tags, ctx)
	case *past.BoolOp:
		return emitBoolOp(n, tags, ctx)
	case *past.Compare:
		return emitCompare(n, tags, ctx)
	case *past.IfExp:
		return emitIfExp(n, tags, ctx)
	case *past.NamedExpr:
		return emitNamedExpr(n, tags, ctx)
	case *past.TupleExpr:
		return emitTuple(n, tags, ctx)
	default:
		return "", arerrors.Newf(arerrors.KindUnrecognisedPattern, x.Pos(),
			"unexpected expression shape %T", x)
	}
}

func emitIdent(n *past.Ident) (string, error) {
	if n.IsWildcard() {
		return "", arerrors.Newf(arerrors.KindReservedMisuse, n.Pos(),
			"W cannot be used as an ordinary identifier")
	}
	return n.Name, nil
}

func emitConstant(n *past.Constant) (string, error) {
	switch n.Kind {
	case past.NoneConstant:
		return "NULL", nil
	case past.IntConstant, past.FloatConstant:
		if err := validateNumeric(n.Value); err != nil {
			return "", arerrors.Newf(arerrors.KindUnrecognisedPattern, n.Pos(),
				"malformed numeric literal %q: %v", n.Value, err)
		}
		return n.Value, nil
	case past.BoolConstant:
		if n.Value == "True" {
			return "true", nil
		}
		return "false", nil
	default:
		return n.Value, nil
	}
}

// validateNumeric checks that a decimal int/float literal's digits are
// well formed, using github.com/cockroachdb/apd/v3 the way the teacher
// validates its own numeric literals — purely for validation and
// faithful re-rendering; the original text is always what gets emitted,
// never a folded or reformatted value (no constant folding, §1 Non-goals).
// Hex/octal/binary-prefixed literals are validated lexically by the front
// end instead, since apd's grammar is decimal-only.
func validateNumeric(text string) error {
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") {
		return nil
	}
	clean := strings.ReplaceAll(text, "_", "")
	clean = strings.TrimRight(clean, "uUlLfF")
	if clean == "" {
		return nil
	}
	var d apd.Decimal
	_, _, err := d.SetString(clean)
	return err
}

// emitAttribute implements the three wildcard attribute forms (§4.3):
//
//	p.W.x  ->  p->x   (checked first: a single recognised form)
//	e.W    ->  *(e)
//	W.x    ->  &x     (x may itself be a chain of ordinary attributes)
//	e.x    ->  e.x    (ordinary member access, the default)
func emitAttribute(n *past.Attribute, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	if inner, ok := n.X.(*past.Attribute); ok && inner.Attr.IsWildcard() {
		p, err := Emit(inner.X, tags, ctx)
		if err != nil {
			return "", err
		}
		return p + "->" + n.Attr.Name, nil
	}
	if n.Attr.IsWildcard() {
		e, err := Emit(n.X, tags, ctx)
		if err != nil {
			return "", err
		}
		return "*(" + e + ")", nil
	}
	if chain, ok := wildcardChain(n); ok {
		return "&" + chain, nil
	}
	e, err := Emit(n.X, tags, ctx)
	if err != nil {
		return "", err
	}
	return e + "." + n.Attr.Name, nil
}

// wildcardChain reports whether n is W.a.b.c..., returning the
// dot-joined chain after the wildcard base.
func wildcardChain(n *past.Attribute) (string, bool) {
	var names []string
	var cur past.Expr = n
	for {
		att, ok := cur.(*past.Attribute)
		if !ok {
			break
		}
		names = append([]string{att.Attr.Name}, names...)
		cur = att.X
	}
	id, ok := cur.(*past.Ident)
	if ok && id.IsWildcard() {
		return strings.Join(names, "."), true
	}
	return "", false
}

func emitSubscript(n *past.Subscript, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	x, err := Emit(n.X, tags, ctx)
	if err != nil {
		return "", err
	}
	idx, err := Emit(n.Index, tags, ctx)
	if err != nil {
		return "", err
	}
	return x + "[" + idx + "]", nil
}

// emitCall dispatches the three call-shaped pseudo-forms: the wildcard
// compound literal, the single-element-list cast, and sizeof, falling
// back to an ordinary function call.
func emitCall(n *past.Call, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	if id, ok := n.Fun.(*past.Ident); ok && id.IsWildcard() {
		return emitCompoundLiteral(n, tags, ctx)
	}
	if lst, ok := n.Fun.(*past.ListExpr); ok && len(lst.Elts) == 1 {
		return emitCast(n, lst.Elts[0], tags, ctx)
	}
	if id, ok := n.Fun.(*past.Ident); ok && id.Name == "sizeof" && len(n.Args) == 1 && len(n.Keywords) == 0 {
		return emitSizeof(n.Args[0], tags, ctx)
	}
	fn, err := Emit(n.Fun, tags, ctx)
	if err != nil {
		return "", err
	}
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		s, err := Emit(a, tags, ctx)
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	return fn + "(" + strings.Join(args, ", ") + ")", nil
}

// emitCompoundLiteral implements W(k1=v1, k2=v2, ...) -> (C){ .k1=v1, ... },
// where C is the contextual type (§3, §4.3); it is an error if C is absent.
func emitCompoundLiteral(n *past.Call, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	c, ok := ctx.Top()
	if !ok {
		return "", arerrors.Newf(arerrors.KindMissingContext, n.Pos(),
			"W(...) compound literal used where no contextual type is available")
	}
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(c.Declarator(""))
	b.WriteString("){ ")
	for i, kw := range n.Keywords {
		if i > 0 {
			b.WriteString(", ")
		}
		v, err := Emit(kw.Value, tags, ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(".")
		b.WriteString(kw.Name)
		b.WriteString("=")
		b.WriteString(v)
	}
	b.WriteString(" }")
	return b.String(), nil
}

// emitCast implements [T](expr) -> ((T)(expr)).
func emitCast(n *past.Call, typeExpr past.Expr, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	if len(n.Args) != 1 || len(n.Keywords) != 0 {
		return "", arerrors.Newf(arerrors.KindUnrecognisedPattern, n.Pos(),
			"cast form [T](expr) takes exactly one argument")
	}
	t, err := ctype.Emit(typeExpr, tags)
	if err != nil {
		return "", err
	}
	v, err := Emit(n.Args[0], tags, ctx)
	if err != nil {
		return "", err
	}
	return "((" + t.Declarator("") + ")(" + v + "))", nil
}

// emitSizeof implements sizeof(x): sizeof(T) when x is shaped like a
// type expression, sizeof(x) when it is an ordinary value expression.
// Per §9, there is no name resolution: whether x is "shaped like a type"
// is decided purely syntactically (primitives, tags known to T, and the
// type-wrapper/pointer/function forms ctype recognises), matching the
// property test in §8 exactly ("sizeof(T) ... when T is a bare name in
// T").
func emitSizeof(x past.Expr, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	if isTypeShaped(x, tags) {
		t, err := ctype.Emit(x, tags)
		if err == nil {
			return "sizeof(" + t.Declarator("") + ")", nil
		}
	}
	v, err := Emit(x, tags, ctx)
	if err != nil {
		return "", err
	}
	return "sizeof(" + v + ")", nil
}

func isTypeShaped(x past.Expr, tags *tagset.Set) bool {
	switch n := x.(type) {
	case *past.Ident:
		if primitiveName(n.Name) {
			return true
		}
		_, ok := tags.Lookup(n.Name)
		return ok
	case *past.Subscript:
		// Reuse ctype's own head-shape discrimination rather than
		// treating every Subscript as type-shaped: buf[0] is ordinary
		// array-element access (buf is not a primitive/qualifier/tag
		// name), not the type form int[4]/type[Foo]/unsigned[long[...]].
		return ctype.LooksLikeTypeExpr(n, tags)
	case *past.UnaryOp:
		return n.Op == "-" || n.Op == "+"
	case *past.Call:
		// A Call is type-shaped only when its head is (a function
		// returning a plain function call like foo(1, 2) is not).
		return isTypeShaped(n.Fun, tags)
	default:
		return false
	}
}

func primitiveName(name string) bool {
	switch name {
	case "int", "char", "float", "double", "long", "short", "void":
		return true
	}
	return false
}

// emitBinOp handles the wildcard increment/decrement encodings and
// ordinary binary operators (§4.3). The increment/decrement rules apply
// only when exactly one operand is the wildcard; any other use of ** or
// // is reserved.
func emitBinOp(n *past.BinOp, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	xIsW, xOK := isWildcardIdent(n.X)
	yIsW, yOK := isWildcardIdent(n.Y)
	_ = xOK
	_ = yOK

	switch n.Op {
	case "**":
		switch {
		case xIsW:
			e, err := Emit(n.Y, tags, ctx)
			if err != nil {
				return "", err
			}
			return "++" + e, nil
		case yIsW:
			e, err := Emit(n.X, tags, ctx)
			if err != nil {
				return "", err
			}
			return e + "++", nil
		default:
			return "", arerrors.Newf(arerrors.KindReservedMisuse, n.Pos(),
				"** is reserved for the W increment encoding")
		}
	case "//":
		switch {
		case xIsW:
			e, err := Emit(n.Y, tags, ctx)
			if err != nil {
				return "", err
			}
			return "--" + e, nil
		case yIsW:
			e, err := Emit(n.X, tags, ctx)
			if err != nil {
				return "", err
			}
			return e + "--", nil
		default:
			return "", arerrors.Newf(arerrors.KindReservedMisuse, n.Pos(),
				"// is reserved for the W decrement encoding")
		}
	default:
		x, err := Emit(n.X, tags, ctx)
		if err != nil {
			return "", err
		}
		y, err := Emit(n.Y, tags, ctx)
		if err != nil {
			return "", err
		}
		return "(" + x + " " + n.Op + " " + y + ")", nil
	}
}

func isWildcardIdent(e past.Expr) (isW bool, isIdent bool) {
	id, ok := e.(*past.Ident)
	if !ok {
		return false, false
	}
	return id.IsWildcard(), true
}

func emitUnaryOp(n *past.UnaryOp, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	x, err := Emit(n.X, tags, ctx)
	if err != nil {
		return "", err
	}
	switch n.Op {
	case "not":
		return "!(" + x + ")", nil
	case "-", "+", "~":
		return n.Op + "(" + x + ")", nil
	default:
		return "", arerrors.Newf(arerrors.KindUnrecognisedPattern, n.Pos(),
			"unexpected unary operator %q", n.Op)
	}
}

func emitBoolOp(n *past.BoolOp, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	cOp := "&&"
	if n.Op == "or" {
		cOp = "||"
	}
	parts := make([]string, len(n.Values))
	for i, v := range n.Values {
		s, err := Emit(v, tags, ctx)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, " "+cOp+" ") + ")", nil
}

func emitCompare(n *past.Compare, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	if len(n.Ops) != 1 || len(n.Comparators) != 1 {
		return "", arerrors.Newf(arerrors.KindUnrecognisedPattern, n.Pos(),
			"chained comparisons are not modelled")
	}
	left, err := Emit(n.Left, tags, ctx)
	if err != nil {
		return "", err
	}
	right, err := Emit(n.Comparators[0], tags, ctx)
	if err != nil {
		return "", err
	}
	op, err := compareOp(n.Ops[0], n.Pos())
	if err != nil {
		return "", err
	}
	return "(" + left + " " + op + " " + right + ")", nil
}

func compareOp(op string, pos past.Position) (string, error) {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return op, nil
	case "is":
		return "==", nil
	case "is not":
		return "!=", nil
	default:
		return "", arerrors.Newf(arerrors.KindUnrecognisedPattern, pos,
			"unsupported comparison operator %q", op)
	}
}

func emitIfExp(n *past.IfExp, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	c, err := Emit(n.Test, tags, ctx)
	if err != nil {
		return "", err
	}
	a, err := Emit(n.Body, tags, ctx)
	if err != nil {
		return "", err
	}
	b, err := Emit(n.Orelse, tags, ctx)
	if err != nil {
		return "", err
	}
	return "(" + c + " ? " + a + " : " + b + ")", nil
}

func emitNamedExpr(n *past.NamedExpr, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	v, err := Emit(n.Value, tags, ctx)
	if err != nil {
		return "", err
	}
	return "(" + n.Target.Name + " = " + v + ")", nil
}

func emitTuple(n *past.TupleExpr, tags *tagset.Set, ctx *ctype.CStack) (string, error) {
	parts := make([]string, len(n.Elts))
	for i, e := range n.Elts {
		s, err := Emit(e, tags, ctx)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}
