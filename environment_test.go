package skiff

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiffjs/skiff/ast"
)

func TestLetTDZReadThrowsReferenceError(t *testing.T) {
	// { probe = x; let x = 1; }
	program := prog(
		declStmt(ast.DeclVar, "probe", nil),
		block(
			exprStmt(assign(ident("probe"), ident("x"))),
			declStmt(ast.DeclLet, "x", num(1)),
		),
	)
	_, _, _, err := runProgram(t, program)
	requireJSError(t, err, "ReferenceError")
}

func TestConstReadsAfterDeclaration(t *testing.T) {
	// const y = 1; y;
	program := prog(
		declStmt(ast.DeclConst, "y", num(1)),
		exprStmt(ident("y")),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, Number(1), v)
}

func TestConstReassignmentThrowsTypeError(t *testing.T) {
	program := prog(
		declStmt(ast.DeclConst, "y", num(1)),
		exprStmt(assign(ident("y"), num(2))),
	)
	_, _, _, err := runProgram(t, program)
	requireJSError(t, err, "TypeError")
}

func TestLetIsBlockScoped(t *testing.T) {
	// let x = "outer"; { let x = "inner"; } x;
	program := prog(
		declStmt(ast.DeclLet, "x", str("outer")),
		block(declStmt(ast.DeclLet, "x", str("inner"))),
		exprStmt(ident("x")),
	)
	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	require.Equal(t, String("outer"), v)
}

func TestEnvironmentDefineAndAssignDirectly(t *testing.T) {
	realm := NewRealm()
	cx := newTestContext(realm)
	env := NewGlobalEnvironment(realm)
	inner := NewEnvironment(env)

	inner.Define("a", Number(1), BindLet, true)
	v, found := inner.TryGet(cx, "a")
	require.True(t, found)
	require.Equal(t, Number(1), v)

	inner.Assign(cx, "a", Number(2))
	require.False(t, cx.ShouldStopEvaluation())
	v, _ = inner.TryGet(cx, "a")
	require.Equal(t, Number(2), v)

	// outer lookup falls through the chain
	env.Define("b", String("outer"), BindVar, false)
	v, found = inner.TryGet(cx, "b")
	require.True(t, found)
	require.Equal(t, String("outer"), v)
}

func TestUninitializedConstBindingBlocksAssign(t *testing.T) {
	realm := NewRealm()
	cx := newTestContext(realm)
	env := NewEnvironment(NewGlobalEnvironment(realm))

	env.Define("c", nil, BindConst, true)
	env.Assign(cx, "c", Number(1))
	require.True(t, cx.IsThrow(), "assigning into the TDZ should throw")
}

func TestGetFunctionScopeWalksToNearestFunction(t *testing.T) {
	realm := NewRealm()
	global := NewGlobalEnvironment(realm)
	fn := NewEnvironment(global)
	fn.IsFunctionScope = true
	blockEnv := NewEnvironment(fn)
	inner := NewEnvironment(blockEnv)

	require.Same(t, fn, inner.GetFunctionScope())
	require.Same(t, global, global.GetFunctionScope())
}

func TestBlocksFunctionVarNames(t *testing.T) {
	realm := NewRealm()
	env := NewGlobalEnvironment(realm)
	env.SetBodyLexicalNames([]string{"taken"})
	env.SetSimpleCatchParameters([]string{"caught"})

	require.True(t, env.BlocksFunctionVarName("taken"))
	require.True(t, env.BlocksFunctionVarName("caught"))
	require.False(t, env.BlocksFunctionVarName("free"))
}

func TestPerIterationLetBindings(t *testing.T) {
	// let a = []; for (let i = 0; i < 3; i++) a.push(() => i);
	// a.map(f => f()) == [0, 1, 2]
	loop := &ast.LoopStmt{
		Leading:      []ast.Statement{declStmt(ast.DeclLet, "i", num(0))},
		Condition:    binary("<", ident("i"), num(3)),
		Post:         []ast.Statement{exprStmt(&ast.UpdateExpr{Op: "++", Target: ident("i")})},
		PerIteration: []string{"i"},
		Body: exprStmt(callExpr(
			member(ident("a"), "push"),
			arrow(nil, ident("i")),
		)),
	}
	program := prog(
		declStmt(ast.DeclLet, "a", &ast.ArrayLiteral{}),
		loop,
		exprStmt(callExpr(
			member(ident("a"), "map"),
			arrow(params("f"), callExpr(ident("f"))),
		)),
	)

	v, _, _, err := runProgram(t, program)
	require.NoError(t, err)
	arr, ok := v.(*Object)
	require.True(t, ok)
	require.Equal(t, []Value{Number(0), Number(1), Number(2)}, arr.ArrayItems())
}
