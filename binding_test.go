package skiff

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiffjs/skiff/ast"
)

func objPatternProp(name string, target ast.Pattern, def ast.Expression) ast.PropertyPattern {
	return ast.PropertyPattern{Name: name, Target: target, Default: def}
}

func TestArrayDestructuringWithDefaultsAndRest(t *testing.T) {
	// const [a = 10, b, ...rest] = [undefined, 2, 3, 4];
	pattern := &ast.ArrayPattern{Elements: []ast.PatternElem{
		{Target: ident("a"), Default: num(10)},
		{Target: ident("b")},
		{Target: ident("rest"), Rest: true},
	}}
	source := &ast.ArrayLiteral{Elements: []ast.ArrayElem{
		{Value: ident("undefined")},
		{Value: num(2)},
		{Value: num(3)},
		{Value: num(4)},
	}}
	program := prog(
		&ast.VarDeclStmt{Kind: ast.DeclConst, Decls: []*ast.Declarator{{Target: pattern, Init: source}}},
		exprStmt(&ast.ArrayLiteral{Elements: []ast.ArrayElem{
			{Value: ident("a")}, {Value: ident("b")}, {Value: ident("rest"), Spread: true},
		}}),
	)

	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	arr := v.(*Object)
	require.Equal(t, []Value{Number(10), Number(2), Number(3), Number(4)}, arr.ArrayItems())
}

func TestObjectDestructuringRestPreservesOrder(t *testing.T) {
	// const {a, ...r} = {a: 1, b: 2, c: 3};
	pattern := &ast.ObjectPattern{
		Props: []ast.PropertyPattern{objPatternProp("a", ident("a"), nil)},
		Rest:  ident("r"),
	}
	source := &ast.ObjectLiteral{Props: []ast.ObjectProp{
		{Kind: ast.PropInit, Name: "a", Value: num(1)},
		{Kind: ast.PropInit, Name: "b", Value: num(2)},
		{Kind: ast.PropInit, Name: "c", Value: num(3)},
	}}
	program := prog(
		&ast.VarDeclStmt{Kind: ast.DeclConst, Decls: []*ast.Declarator{{Target: pattern, Init: source}}},
		exprStmt(ident("r")),
	)

	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	rest := v.(*Object)
	require.Equal(t, []string{"b", "c"}, rest.OwnKeysInOrder(true))

	cx := newTestContext(NewRealm())
	b, err := rest.GetProperty(cx, NameKey("b"))
	require.NoError(t, err)
	require.Equal(t, Number(2), b)
}

func TestNestedDestructuringWithDefaultArray(t *testing.T) {
	// const {a = 10, b: [c, ...rest] = [20, 30, 40]} = {a: undefined};
	pattern := &ast.ObjectPattern{Props: []ast.PropertyPattern{
		objPatternProp("a", ident("a"), num(10)),
		objPatternProp("b", &ast.ArrayPattern{Elements: []ast.PatternElem{
			{Target: ident("c")},
			{Target: ident("rest"), Rest: true},
		}}, &ast.ArrayLiteral{Elements: []ast.ArrayElem{
			{Value: num(20)}, {Value: num(30)}, {Value: num(40)},
		}}),
	}}
	source := &ast.ObjectLiteral{Props: []ast.ObjectProp{
		{Kind: ast.PropInit, Name: "a", Value: ident("undefined")},
	}}
	program := prog(
		&ast.VarDeclStmt{Kind: ast.DeclConst, Decls: []*ast.Declarator{{Target: pattern, Init: source}}},
		exprStmt(&ast.ArrayLiteral{Elements: []ast.ArrayElem{
			{Value: ident("a")}, {Value: ident("c")}, {Value: ident("rest"), Spread: true},
		}}),
	)

	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	arr := v.(*Object)
	require.Equal(t, []Value{Number(10), Number(20), Number(30), Number(40)}, arr.ArrayItems())
}

func TestDestructuringAssignmentToExistingTargets(t *testing.T) {
	// var a, b; [a, b] = [1, 2];
	program := prog(
		declStmt(ast.DeclVar, "a", nil),
		declStmt(ast.DeclVar, "b", nil),
		exprStmt(&ast.AssignExpr{
			Op: "=",
			Target: &ast.ArrayPattern{Elements: []ast.PatternElem{
				{Target: ident("a")}, {Target: ident("b")},
			}},
			Value: &ast.ArrayLiteral{Elements: []ast.ArrayElem{{Value: num(1)}, {Value: num(2)}}},
		}),
		exprStmt(binary("+", ident("a"), ident("b"))),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Number(3), v)
}

func TestDestructuringNullishSourceThrows(t *testing.T) {
	pattern := &ast.ObjectPattern{Props: []ast.PropertyPattern{objPatternProp("a", ident("a"), nil)}}
	program := prog(
		&ast.VarDeclStmt{Kind: ast.DeclConst, Decls: []*ast.Declarator{{Target: pattern, Init: &ast.NullLiteral{}}}},
	)
	_, _, _, err := runProgram(t, program)
	requireJSError(t, err, "TypeError")
}

func TestNamedEvaluationOfDefaultFunction(t *testing.T) {
	// const {handler = function () {}} = {}; handler.name === "handler"
	pattern := &ast.ObjectPattern{Props: []ast.PropertyPattern{
		objPatternProp("handler", ident("handler"), &ast.FunctionLiteral{Body: block()}),
	}}
	program := prog(
		&ast.VarDeclStmt{Kind: ast.DeclConst, Decls: []*ast.Declarator{{Target: pattern, Init: &ast.ObjectLiteral{}}}},
		exprStmt(member(ident("handler"), "name")),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, String("handler"), v)
}

func TestParameterDestructuringWithRest(t *testing.T) {
	// function f([x, y], ...others) { return x + y + others.length; }
	// f([1, 2], "a", "b")
	fn := &ast.FunctionLiteral{
		Name: "f",
		Params: []ast.Param{
			{Target: &ast.ArrayPattern{Elements: []ast.PatternElem{
				{Target: ident("x")}, {Target: ident("y")},
			}}},
			{Target: ident("others"), Rest: true},
		},
		Body: block(retStmt(binary("+",
			binary("+", ident("x"), ident("y")),
			member(ident("others"), "length"),
		))),
	}
	program := prog(
		&ast.FunctionDeclStmt{Fn: fn},
		exprStmt(callExpr(ident("f"),
			&ast.ArrayLiteral{Elements: []ast.ArrayElem{{Value: num(1)}, {Value: num(2)}}},
			str("a"), str("b"),
		)),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Number(5), v)
}
