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

package cdecl

import (
	"testing"

	"github.com/go-quicktest/qt"

	"arafura.dev/arafura/internal/cwriter"
	"arafura.dev/arafura/internal/past"
	"arafura.dev/arafura/internal/tagset"
)

func ident(name string) *past.Ident { return &past.Ident{Name: name} }

func intConst(text string) *past.Constant {
	return &past.Constant{Kind: past.IntConstant, Value: text}
}

func emptyTags() *tagset.Set { return tagset.Build(&past.Module{}) }

func emit(t *testing.T, d past.Decl) string {
	t.Helper()
	w := cwriter.New()
	err := Emit(d, w, emptyTags())
	qt.Assert(t, qt.IsNil(err))
	return w.String()
}

func TestEmitTopLevelDeclarationNoInitialiser(t *testing.T) {
	n := &past.AnnAssign{Target: ident("counter"), Annotation: ident("int")}
	qt.Assert(t, qt.Equals(emit(t, n), "int counter;\n"))
}

func TestEmitTopLevelMacroDefine(t *testing.T) {
	n := &past.AnnAssign{Target: ident("MAX"), Annotation: ident("macro"), Value: intConst("100")}
	qt.Assert(t, qt.Equals(emit(t, n), "#define MAX 100\n"))
}

func TestEmitMacroWithoutValueIsRejected(t *testing.T) {
	n := &past.AnnAssign{Target: ident("MAX"), Annotation: ident("macro")}
	w := cwriter.New()
	err := Emit(n, w, emptyTags())
	qt.Assert(t, qt.IsNotNil(err))
}

func TestEmitImportAndImportFrom(t *testing.T) {
	qt.Assert(t, qt.Equals(emit(t, &past.Import{Name: "stdio"}), "#include \"stdio.h\"\n"))
	qt.Assert(t, qt.Equals(emit(t, &past.ImportFrom{Name: "posix"}), "#include <posix.h>\n"))
}

func TestEmitTypeAlias(t *testing.T) {
	n := &past.TypeAliasDecl{Name: ident("count_t"), Value: ident("int")}
	qt.Assert(t, qt.Equals(emit(t, n), "typedef int count_t;\n"))
}

func TestEmitPassthroughStaticAssert(t *testing.T) {
	n := &past.Passthrough{Keyword: "_Static_assert", Args: []past.Expr{intConst("1"), ident("msg")}}
	qt.Assert(t, qt.Equals(emit(t, n), "_Static_assert(1, msg);\n"))
}

func TestEmitPlainStruct(t *testing.T) {
	cd := &past.ClassDef{
		Name: ident("Point"),
		Body: []past.Decl{
			&past.AnnAssign{Target: ident("x"), Annotation: ident("int")},
			&past.AnnAssign{Target: ident("y"), Annotation: ident("int")},
		},
	}
	want := "struct Point {\n\tint x;\n\tint y;\n};\n"
	qt.Assert(t, qt.Equals(emit(t, cd), want))
}

func TestEmitTypedefedStruct(t *testing.T) {
	cd := &past.ClassDef{
		Name:       ident("Point"),
		Decorators: []*past.Decorator{{Name: ident("Typedef"), Args: []past.Expr{ident("Point")}}},
		Body: []past.Decl{
			&past.AnnAssign{Target: ident("x"), Annotation: ident("int")},
		},
	}
	want := "typedef struct Point {\n\tint x;\n} Point;\n"
	qt.Assert(t, qt.Equals(emit(t, cd), want))
}

func TestEmitUnionKind(t *testing.T) {
	cd := &past.ClassDef{
		Name:  ident("Word"),
		Bases: []past.Expr{ident("Union")},
		Body: []past.Decl{
			&past.AnnAssign{Target: ident("i"), Annotation: ident("int")},
		},
	}
	want := "union Word {\n\tint i;\n};\n"
	qt.Assert(t, qt.Equals(emit(t, cd), want))
}

func TestEmitEnumWithImplicitAndExplicitValues(t *testing.T) {
	cd := &past.ClassDef{
		Name:  ident("Color"),
		Bases: []past.Expr{ident("Enum")},
		Body: []past.Decl{
			&past.AnnAssign{Target: ident("RED")},
			&past.AnnAssign{Target: ident("GREEN"), Value: intConst("5")},
		},
	}
	want := "enum Color {\n\tRED,\n\tGREEN = 5\n};\n"
	qt.Assert(t, qt.Equals(emit(t, cd), want))
}

func TestEmitAnonymousClassRequiresVarDecorator(t *testing.T) {
	cd := &past.ClassDef{Name: ident("W")}
	w := cwriter.New()
	err := Emit(cd, w, emptyTags())
	qt.Assert(t, qt.IsNotNil(err))
}

func TestEmitAnonymousClassWithVarDecorator(t *testing.T) {
	cd := &past.ClassDef{
		Name:       ident("W"),
		Decorators: []*past.Decorator{{Name: ident("Var"), Args: []past.Expr{ident("origin")}}},
		Body: []past.Decl{
			&past.AnnAssign{Target: ident("x"), Annotation: ident("int")},
		},
	}
	want := "struct {\n\tint x;\n} origin;\n"
	qt.Assert(t, qt.Equals(emit(t, cd), want))
}

func TestEmitUnknownDecoratorIsRejected(t *testing.T) {
	cd := &past.ClassDef{
		Name:       ident("Point"),
		Decorators: []*past.Decorator{{Name: ident("Bogus")}},
	}
	w := cwriter.New()
	err := Emit(cd, w, emptyTags())
	qt.Assert(t, qt.IsNotNil(err))
}

func TestEmitFlexibleArrayMemberMustBeLast(t *testing.T) {
	cd := &past.ClassDef{
		Name: ident("Buf"),
		Body: []past.Decl{
			&past.AnnAssign{Target: ident("tail"), Annotation: &past.Subscript{X: ident("list"), Index: ident("char")}},
			&past.AnnAssign{Target: ident("len"), Annotation: ident("int")},
		},
	}
	w := cwriter.New()
	err := Emit(cd, w, emptyTags())
	qt.Assert(t, qt.IsNotNil(err))
}

func TestEmitBitfieldMember(t *testing.T) {
	tup := &past.TupleExpr{Elts: []past.Expr{ident("int"), intConst("3")}}
	cd := &past.ClassDef{
		Name: ident("Flags"),
		Body: []past.Decl{
			&past.AnnAssign{Target: ident("a"), Annotation: &past.Subscript{X: ident("bit"), Index: tup}},
		},
	}
	want := "struct Flags {\n\tint a : 3;\n};\n"
	qt.Assert(t, qt.Equals(emit(t, cd), want))
}

func TestEmitFunction(t *testing.T) {
	fd := &past.FuncDef{
		Name:    ident("add"),
		Returns: ident("int"),
		Params: []*past.Param{
			{Name: ident("a"), Annotation: ident("int")},
			{Name: ident("b"), Annotation: ident("int")},
		},
		Body: []past.Stmt{
			&past.Return{Value: &past.BinOp{X: ident("a"), Op: "+", Y: ident("b")}},
		},
	}
	want := "int add(int a, int b) {\n\treturn (a + b);\n}"
	qt.Assert(t, qt.Equals(emit(t, fd), want))
}

func TestEmitFunctionWithNoParamsUsesVoid(t *testing.T) {
	fd := &past.FuncDef{
		Name:    ident("f"),
		Returns: ident("int"),
		Body:    []past.Stmt{&past.Return{Value: intConst("0")}},
	}
	want := "int f(void) {\n\treturn 0;\n}"
	qt.Assert(t, qt.Equals(emit(t, fd), want))
}

func TestEmitFunctionLikeMacro(t *testing.T) {
	fd := &past.FuncDef{
		Name: ident("SQUARE"),
		Params: []*past.Param{
			{Name: ident("x")},
		},
		Body: []past.Stmt{
			&past.ExprStmt{X: &past.BinOp{X: ident("x"), Op: "*", Y: ident("x")}},
		},
	}
	want := "#define SQUARE(x) (x * x)\n"
	qt.Assert(t, qt.Equals(emit(t, fd), want))
}

func TestEmitFunctionLikeMacroWithVariadic(t *testing.T) {
	fd := &past.FuncDef{
		Name: ident("LOG"),
		Params: []*past.Param{
			{Name: ident("fmt")},
			{Name: ident("args"), Star: true},
		},
		Body: []past.Stmt{
			&past.ExprStmt{X: &past.Call{Fun: ident("printf"), Args: []past.Expr{ident("fmt"), ident("__VA_ARGS__")}}},
		},
	}
	want := "#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)\n"
	qt.Assert(t, qt.Equals(emit(t, fd), want))
}

func TestEmitPartiallyAnnotatedFuncIsRejected(t *testing.T) {
	fd := &past.FuncDef{
		Name: ident("f"),
		Params: []*past.Param{
			{Name: ident("a"), Annotation: ident("int")},
		},
	}
	w := cwriter.New()
	err := Emit(fd, w, emptyTags())
	qt.Assert(t, qt.IsNotNil(err))
}

func TestEmitTopLevelPreprocessorConditional(t *testing.T) {
	n := &past.If{
		Test: &past.ListExpr{Elts: []past.Expr{ident("DEBUG")}},
		Body: []past.Stmt{&past.AnnAssign{Target: ident("x"), Annotation: ident("int"), Value: intConst("1")}},
		Else: []past.Stmt{&past.AnnAssign{Target: ident("x"), Annotation: ident("int"), Value: intConst("2")}},
	}
	want := "#ifdef DEBUG\nint x = 1;\n#else\nint x = 2;\n#endif\n"
	qt.Assert(t, qt.Equals(emit(t, n), want))
}

func TestEmitTopLevelRuntimeIfIsRejected(t *testing.T) {
	n := &past.If{Test: ident("cond"), Body: []past.Stmt{&past.Break{}}}
	w := cwriter.New()
	err := Emit(n, w, emptyTags())
	qt.Assert(t, qt.IsNotNil(err))
}

func TestEmitNestedCompositeDefinition(t *testing.T) {
	inner := &past.ClassDef{
		Name: ident("Inner"),
		Body: []past.Decl{
			&past.AnnAssign{Target: ident("v"), Annotation: ident("int")},
		},
	}
	outer := &past.ClassDef{
		Name: ident("Outer"),
		Body: []past.Decl{inner},
	}
	want := "struct Outer {\n\tstruct Inner {\n\t\tint v;\n\t};\n};\n"
	qt.Assert(t, qt.Equals(emit(t, outer), want))
}
