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

package pyparse

import (
	"testing"

	"github.com/go-quicktest/qt"

	"arafura.dev/arafura/internal/past"
)

func mustParse(t *testing.T, src string) *past.Module {
	t.Helper()
	mod, err := ParseFile("t.sl", []byte(src))
	qt.Assert(t, qt.IsNil(err))
	return mod
}

func TestParseSimpleDeclaration(t *testing.T) {
	mod := mustParse(t, "x: int = 5\n")
	qt.Assert(t, qt.HasLen(mod.Decls, 1))
	aa, ok := mod.Decls[0].(*past.AnnAssign)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(aa.Target.Name, "x"))
	ann, ok := aa.Annotation.(*past.Ident)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(ann.Name, "int"))
}

func TestParseWildcardAddressOfAndDeref(t *testing.T) {
	// Scenario 1 from the specification: x: int = 5; px: -int = W.x;
	// v: int = px.W; px.W = 10
	mod := mustParse(t, "x: int = 5\npx: -int = W.x\nv: int = px.W\npx.W = 10\n")
	qt.Assert(t, qt.HasLen(mod.Decls, 4))

	px := mod.Decls[1].(*past.AnnAssign)
	attr, ok := px.Value.(*past.Attribute)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(attr.Attr.Name, "x"))
	wAddr, ok := attr.X.(*past.Ident)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsTrue(wAddr.IsWildcard()))

	v := mod.Decls[2].(*past.AnnAssign)
	deref, ok := v.Value.(*past.Attribute)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsTrue(deref.Attr.IsWildcard()))

	assign, ok := mod.Decls[3].(*past.Assign)
	qt.Assert(t, qt.IsTrue(ok))
	target, ok := assign.Target.(*past.Attribute)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsTrue(target.Attr.IsWildcard()))
	qt.Assert(t, qt.Equals(target.X.(*past.Ident).Name, "px"))
}

func TestParseForCHeader(t *testing.T) {
	src := "def f() -> int:\n" +
		"    for (i, j) in (int, int)((i := 0, j := 10))(i < 5)((i ** W, j // W)):\n" +
		"        x = 1\n"
	mod := mustParse(t, src)
	fn := mod.Decls[0].(*past.FuncDef)
	qt.Assert(t, qt.HasLen(fn.Body, 1))
	forC, ok := fn.Body[0].(*past.ForC)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(forC.Vars, 2))
	qt.Assert(t, qt.Equals(forC.Vars[0].Name, "i"))
	qt.Assert(t, qt.Equals(forC.Vars[1].Name, "j"))
	qt.Assert(t, qt.HasLen(forC.Types, 2))

	initTuple, ok := forC.Init.(*past.TupleExpr)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(initTuple.Elts, 2))
	ne0, ok := initTuple.Elts[0].(*past.NamedExpr)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(ne0.Target.Name, "i"))

	stepTuple, ok := forC.Step.(*past.TupleExpr)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(stepTuple.Elts, 2))
	incr, ok := stepTuple.Elts[0].(*past.BinOp)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(incr.Op, "**"))
}

func TestParseForCArityMismatchIsDeferredToLowering(t *testing.T) {
	// A single var against two types parses fine syntactically; the
	// arity check is cdecl/cstmt's job, not the parser's (the grammar is
	// purely syntactic).
	src := "def f() -> int:\n" +
		"    for i in (int, int)((i := 0))(i < 5)((i ** W)):\n" +
		"        x = 1\n"
	mod := mustParse(t, src)
	fn := mod.Decls[0].(*past.FuncDef)
	forC := fn.Body[0].(*past.ForC)
	qt.Assert(t, qt.HasLen(forC.Vars, 1))
	qt.Assert(t, qt.HasLen(forC.Types, 2))
}

func TestParseWhileForeverAndDoWhileShapes(t *testing.T) {
	src := "def f() -> int:\n" +
		"    while ():\n" +
		"        x = 1\n" +
		"        if x:\n" +
		"            continue\n" +
		"        break\n"
	mod := mustParse(t, src)
	fn := mod.Decls[0].(*past.FuncDef)
	w, ok := fn.Body[0].(*past.While)
	qt.Assert(t, qt.IsTrue(ok))
	tup, ok := w.Test.(*past.TupleExpr)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(tup.Elts, 0))
}

func TestParsePreprocessorIfElifElse(t *testing.T) {
	src := "if [DEBUG]:\n" +
		"    x: int = 1\n" +
		"elif [not RELEASE]:\n" +
		"    x: int = 2\n" +
		"else:\n" +
		"    x: int = 3\n"
	mod := mustParse(t, src)
	ifNode, ok := mod.Decls[0].(*past.If)
	qt.Assert(t, qt.IsTrue(ok))
	_, ok = ifNode.Test.(*past.ListExpr)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(ifNode.Elifs, 1))
	qt.Assert(t, qt.HasLen(ifNode.Else, 1))
}

func TestParseMatchCaseWithWildcardDefault(t *testing.T) {
	src := "def f(x: int) -> int:\n" +
		"    match x:\n" +
		"        case 1:\n" +
		"            return 1\n" +
		"        case W:\n" +
		"            return 0\n"
	mod := mustParse(t, src)
	fn := mod.Decls[0].(*past.FuncDef)
	m, ok := fn.Body[0].(*past.Match)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(m.Cases, 2))
	id, ok := m.Cases[1].Pattern.(*past.Ident)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsTrue(id.IsWildcard()))
}

func TestParseLabelledStatementAndRaise(t *testing.T) {
	src := "def f() -> int:\n" +
		"    cleanup: label\n" +
		"    raise cleanup\n" +
		"    return 0\n"
	mod := mustParse(t, src)
	fn := mod.Decls[0].(*past.FuncDef)
	label, ok := fn.Body[0].(*past.AnnAssign)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(label.Annotation.(*past.Ident).Name, "label"))
	raise, ok := fn.Body[1].(*past.Raise)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(raise.X.(*past.Ident).Name, "cleanup"))
}

func TestParseClassWithDecoratorAndEnumBody(t *testing.T) {
	src := "@Typedef\n" +
		"class Color(Enum):\n" +
		"    RED = 0\n" +
		"    GREEN = 1\n"
	mod := mustParse(t, src)
	cd, ok := mod.Decls[0].(*past.ClassDef)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(cd.Decorators, 1))
	qt.Assert(t, qt.Equals(cd.Decorators[0].Name.Name, "Typedef"))
	qt.Assert(t, qt.HasLen(cd.Body, 2))
	red := cd.Body[0].(*past.AnnAssign)
	qt.Assert(t, qt.Equals(red.Target.Name, "RED"))
	val, ok := red.Value.(*past.Constant)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(val.Value, "0"))
}

func TestParseCompoundLiteralCall(t *testing.T) {
	mod := mustParse(t, "p: Point = W(x=1, y=2)\n")
	aa := mod.Decls[0].(*past.AnnAssign)
	call, ok := aa.Value.(*past.Call)
	qt.Assert(t, qt.IsTrue(ok))
	fun, ok := call.Fun.(*past.Ident)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsTrue(fun.IsWildcard()))
	qt.Assert(t, qt.HasLen(call.Keywords, 2))
	qt.Assert(t, qt.Equals(call.Keywords[0].Name, "x"))
}

func TestParseTernaryAndWalrusInExpression(t *testing.T) {
	mod := mustParse(t, "x: int = 1 if (y := 2) else 3\n")
	aa := mod.Decls[0].(*past.AnnAssign)
	ifExp, ok := aa.Value.(*past.IfExp)
	qt.Assert(t, qt.IsTrue(ok))
	named, ok := ifExp.Test.(*past.NamedExpr)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(named.Target.Name, "y"))
}

func TestParseImportAndImportFrom(t *testing.T) {
	mod := mustParse(t, "import stdio\nfrom posix import *\n")
	qt.Assert(t, qt.HasLen(mod.Decls, 2))
	imp := mod.Decls[0].(*past.Import)
	qt.Assert(t, qt.Equals(imp.Name, "stdio"))
	impFrom := mod.Decls[1].(*past.ImportFrom)
	qt.Assert(t, qt.Equals(impFrom.Name, "posix"))
}

func TestParsePassthroughStaticAssert(t *testing.T) {
	mod := mustParse(t, `_Static_assert(1, "always true")` + "\n")
	pt, ok := mod.Decls[0].(*past.Passthrough)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(pt.Keyword, "_Static_assert"))
	qt.Assert(t, qt.HasLen(pt.Args, 2))
}

func TestParseUnknownPassthroughIsRejected(t *testing.T) {
	_, err := ParseFile("t.sl", []byte("_Bogus(1)\n"))
	qt.Assert(t, qt.IsNotNil(err))
}

func TestParseSyntaxErrorReturnsDiagnostic(t *testing.T) {
	_, err := ParseFile("t.sl", []byte("x: int =\n"))
	qt.Assert(t, qt.IsNotNil(err))
}
