package skiff

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiffjs/skiff/ast"
)

func TestOptionalMemberShortCircuitsChain(t *testing.T) {
	// var u; u?.a.b.c === undefined (the whole tail is skipped)
	program := prog(
		declStmt(ast.DeclVar, "u", nil),
		exprStmt(&ast.MemberExpr{
			Target: &ast.MemberExpr{
				Target: &ast.MemberExpr{Target: ident("u"), Name: "a", Optional: true},
				Name:   "b",
			},
			Name: "c",
		}),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Undefined{}, v)
}

func TestOptionalCallOnNullishMethod(t *testing.T) {
	// ({}).missing?.() === undefined
	program := prog(
		declStmt(ast.DeclVar, "obj", &ast.ObjectLiteral{}),
		exprStmt(&ast.CallExpr{
			Callee:   member(ident("obj"), "missing"),
			Optional: true,
		}),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Undefined{}, v)
}

func TestNonOptionalMemberOfSkippedChainStillUndefined(t *testing.T) {
	// a?.b() with a nullish: the call is skipped, not a TypeError
	program := prog(
		declStmt(ast.DeclVar, "a", nil),
		exprStmt(&ast.CallExpr{
			Callee: &ast.MemberExpr{Target: ident("a"), Name: "b", Optional: true},
		}),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Undefined{}, v)
}

func TestTemplateLiteralInterpolation(t *testing.T) {
	// `a${1 + 1}b${"x"}`
	program := prog(exprStmt(&ast.TemplateLiteral{
		Cooked: []string{"a", "b", ""},
		Raw:    []string{"a", "b", ""},
		Exprs:  []ast.Expression{binary("+", num(1), num(1)), str("x")},
	}))
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, String("a2bx"), v)
}

func TestTaggedTemplateReceivesFrozenStrings(t *testing.T) {
	// function tag(strings, v) { return strings[0] + strings.raw[1] + v; }
	// tag`A${42}B`
	tagFn := fnDecl("tag", params("strings", "v"),
		retStmt(binary("+",
			binary("+",
				&ast.MemberExpr{Target: ident("strings"), Property: num(0)},
				&ast.MemberExpr{Target: member(ident("strings"), "raw"), Property: num(1)},
			),
			ident("v"),
		)),
	)
	program := prog(
		tagFn,
		exprStmt(&ast.TaggedTemplateExpr{
			Tag: ident("tag"),
			Quasi: &ast.TemplateLiteral{
				Cooked: []string{"A", "B"},
				Raw:    []string{"A", "\\x42"},
				Exprs:  []ast.Expression{num(42)},
			},
		}),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, String("A\\x4242"), v)
}

func TestLogicalAssignmentShortCircuits(t *testing.T) {
	// a ??= "set"; b ||= "replaced"; c &&= "kept-out"
	program := prog(
		declStmt(ast.DeclVar, "a", nil),
		declStmt(ast.DeclVar, "b", str("")),
		declStmt(ast.DeclVar, "c", nil),
		exprStmt(&ast.AssignExpr{Op: "??=", Target: ident("a"), Value: str("set")}),
		exprStmt(&ast.AssignExpr{Op: "||=", Target: ident("b"), Value: str("replaced")}),
		exprStmt(&ast.AssignExpr{Op: "&&=", Target: ident("c"), Value: str("kept-out")}),
		exprStmt(&ast.TemplateLiteral{
			Cooked: []string{"", ",", ",", ""},
			Exprs:  []ast.Expression{ident("a"), ident("b"), ident("c")},
		}),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, String("set,replaced,undefined"), v)
}

func TestLogicalSetterOnlyRunsWhenConditionHolds(t *testing.T) {
	// obj.x &&= f() must not call the setter (or f) when x is falsy
	program := prog(
		declStmt(ast.DeclVar, "calls", num(0)),
		fnDecl("f", nil, retStmt(&ast.UpdateExpr{Op: "++", Target: ident("calls"), Prefix: true})),
		declStmt(ast.DeclVar, "obj", &ast.ObjectLiteral{Props: []ast.ObjectProp{
			{Kind: ast.PropInit, Name: "x", Value: num(0)},
		}}),
		exprStmt(&ast.AssignExpr{Op: "&&=", Target: member(ident("obj"), "x"), Value: callExpr(ident("f"))}),
		exprStmt(ident("calls")),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Number(0), v)
}

func TestNullishCoalescingKeepsFalsyNonNullish(t *testing.T) {
	program := prog(exprStmt(&ast.LogicalExpr{Op: "??", Left: num(0), Right: str("fallback")}))
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Number(0), v)
}

func TestObjectLiteralSpreadAndComputedKeys(t *testing.T) {
	// var base = {a: 1}; var obj = {...base, ["b" + ""]: 2}; obj.a + obj.b
	program := prog(
		declStmt(ast.DeclVar, "base", &ast.ObjectLiteral{Props: []ast.ObjectProp{
			{Kind: ast.PropInit, Name: "a", Value: num(1)},
		}}),
		declStmt(ast.DeclVar, "obj", &ast.ObjectLiteral{Props: []ast.ObjectProp{
			{Kind: ast.PropSpread, Value: ident("base")},
			{Kind: ast.PropInit, Key: binary("+", str("b"), str("")), Value: num(2)},
		}}),
		exprStmt(binary("+", member(ident("obj"), "a"), member(ident("obj"), "b"))),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Number(3), v)
}

func TestArraySpreadExpandsIterables(t *testing.T) {
	program := prog(
		declStmt(ast.DeclVar, "head", &ast.ArrayLiteral{Elements: []ast.ArrayElem{
			{Value: num(1)}, {Value: num(2)},
		}}),
		exprStmt(&ast.ArrayLiteral{Elements: []ast.ArrayElem{
			{Value: num(0)},
			{Value: ident("head"), Spread: true},
			{Value: num(3)},
		}}),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, []Value{Number(0), Number(1), Number(2), Number(3)}, v.(*Object).ArrayItems())
}

func TestObjectLiteralAccessorPair(t *testing.T) {
	// var obj = {get v() { return this._v; }, set v(x) { this._v = x * 2; }};
	program := prog(
		declStmt(ast.DeclVar, "obj", &ast.ObjectLiteral{Props: []ast.ObjectProp{
			{Kind: ast.PropGet, Name: "v", Value: &ast.FunctionLiteral{
				Body: block(retStmt(member(thisExpr(), "_v"))),
			}},
			{Kind: ast.PropSet, Name: "v", Value: &ast.FunctionLiteral{
				Params: params("x"),
				Body:   block(exprStmt(assign(member(thisExpr(), "_v"), binary("*", ident("x"), num(2))))),
			}},
		}}),
		exprStmt(assign(member(ident("obj"), "v"), num(21))),
		exprStmt(member(ident("obj"), "v")),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Number(42), v)
}

func TestShorthandMethodSuperDispatch(t *testing.T) {
	// var base = {greet() { return "base"; }};
	// var obj = {greet() { return super.greet() + "+"; }};
	// with obj's prototype set to base via home-object wiring
	program := prog(
		declStmt(ast.DeclVar, "base", &ast.ObjectLiteral{Props: []ast.ObjectProp{
			{Kind: ast.PropMethod, Name: "greet", Value: &ast.FunctionLiteral{
				Body: block(retStmt(str("base"))),
			}},
		}}),
		declStmt(ast.DeclVar, "obj", &ast.ObjectLiteral{Props: []ast.ObjectProp{
			{Kind: ast.PropMethod, Name: "greet", Value: &ast.FunctionLiteral{
				Body: block(retStmt(binary("+",
					callExpr(&ast.MemberExpr{Target: &ast.SuperExpr{}, Name: "greet"}),
					str("+"),
				))),
			}},
		}}),
		exprStmt(callExpr(member(ident("Object"), "setPrototypeOf"), ident("obj"), ident("base"))),
		exprStmt(callExpr(member(ident("obj"), "greet"))),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, String("base+"), v)
}

func TestArrowCapturesLexicalThis(t *testing.T) {
	// var obj = {n: 5, probe() { var f = () => this.n; return f(); }};
	program := prog(
		declStmt(ast.DeclVar, "obj", &ast.ObjectLiteral{Props: []ast.ObjectProp{
			{Kind: ast.PropInit, Name: "n", Value: num(5)},
			{Kind: ast.PropMethod, Name: "probe", Value: &ast.FunctionLiteral{
				Body: block(
					declStmt(ast.DeclVar, "f", arrow(nil, member(thisExpr(), "n"))),
					retStmt(callExpr(ident("f"))),
				),
			}},
		}}),
		exprStmt(callExpr(member(ident("obj"), "probe"))),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Number(5), v)
}

func TestArrowImmediateInvocation(t *testing.T) {
	// ((x) => x * 2)(21) === 42
	program := prog(exprStmt(callExpr(
		arrow(params("x"), binary("*", ident("x"), num(2))),
		num(21),
	)))
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Number(42), v)
}

func TestBigIntArithmeticStaysExact(t *testing.T) {
	program := prog(exprStmt(binary("+",
		&ast.BigIntLiteral{Value: 9007199254740993},
		&ast.BigIntLiteral{Value: 1},
	)))
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, BigInt(9007199254740994), v)
}

func TestMixedBigIntNumberArithmeticThrows(t *testing.T) {
	program := prog(exprStmt(binary("+", &ast.BigIntLiteral{Value: 1}, num(1))))
	_, _, _, err := runProgram(t, program)
	requireJSError(t, err, "TypeError")
}

func TestSymbolTypeofAndInterning(t *testing.T) {
	// typeof Symbol.iterator === "symbol", and it equals itself
	program := prog(exprStmt(binary("+",
		&ast.UnaryExpr{Op: "typeof", Operand: member(ident("Symbol"), "iterator")},
		binary("===", member(ident("Symbol"), "iterator"), member(ident("Symbol"), "iterator")),
	)))
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, String("symboltrue"), v)
}

func TestExponentiationOperator(t *testing.T) {
	program := prog(exprStmt(binary("**", num(2), num(10))))
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Number(1024), v)
}

func TestBareSuperIsSyntaxError(t *testing.T) {
	program := prog(exprStmt(&ast.SuperExpr{}))
	_, _, _, err := runProgram(t, program)
	requireJSError(t, err, "SyntaxError")
}
