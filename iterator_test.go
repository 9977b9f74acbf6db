package skiff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiffjs/skiff/ast"
)

// countingIterator yields 1..n through the JS iterator protocol and
// counts return() calls.
type countingIterator struct {
	next    int
	limit   int
	returns int
}

func installCountingIterable(realm *Realm, limit int) *countingIterator {
	state := &countingIterator{limit: limit}

	iter := NewObject(realm.IteratorProto)
	iter.defineOrdered(NameKey("next"), methodProperty(
		realm.NewNativeFunction("next", 0, func(cx *Context, _ Value, _ []Value) (Value, error) {
			if state.next >= state.limit {
				return cx.Realm.NewIterResult(Undefined{}, true), nil
			}
			state.next++
			return cx.Realm.NewIterResult(Number(state.next), false), nil
		})))
	iter.defineOrdered(NameKey("return"), methodProperty(
		realm.NewNativeFunction("return", 1, func(cx *Context, _ Value, args []Value) (Value, error) {
			state.returns++
			var v Value = Undefined{}
			if len(args) > 0 {
				v = args[0]
			}
			return cx.Realm.NewIterResult(v, true), nil
		})))

	iterable := NewObject(realm.ObjectProto)
	iterable.DefineProperty(SymbolKey(realm.SymIterator), methodProperty(
		realm.NewNativeFunction("[Symbol.iterator]", 0, func(cx *Context, _ Value, _ []Value) (Value, error) {
			return iter, nil
		})))
	realm.Global.defineOrdered(NameKey("iterable"), DataProperty(iterable))

	return state
}

func forOfProgram(body ...ast.Statement) *ast.Program {
	return prog(
		declStmt(ast.DeclVar, "seen", num(0)),
		&ast.ForOfStmt{
			Decl:     ast.DeclConst,
			Target:   ident("x"),
			Iterable: ident("iterable"),
			Body:     block(body...),
		},
		exprStmt(ident("seen")),
	)
}

func runForOfCase(t *testing.T, limit int, program *ast.Program) (*countingIterator, Value, error) {
	t.Helper()
	realm := NewRealm()
	state := installCountingIterable(realm, limit)
	env := NewGlobalEnvironment(realm)
	v, err := EvaluateProgram(program, env, realm, context.Background(), KindScript, false)
	return state, v, err
}

func TestForOfBreakClosesIteratorExactlyOnce(t *testing.T) {
	program := forOfProgram(
		exprStmt(&ast.AssignExpr{Op: "+=", Target: ident("seen"), Value: ident("x")}),
		&ast.IfStmt{
			Test:       binary("===", ident("x"), num(2)),
			Consequent: &ast.BreakStmt{},
		},
	)
	state, v, err := runForOfCase(t, 5, program)
	require.NoError(t, err)
	require.Equal(t, Number(3), v, "saw 1 and 2 before the break")
	require.Equal(t, 1, state.returns, "break must close the iterator exactly once")
}

func TestForOfThrowClosesIteratorAndPreservesThrow(t *testing.T) {
	program := forOfProgram(
		&ast.IfStmt{
			Test:       binary("===", ident("x"), num(2)),
			Consequent: &ast.ThrowStmt{Arg: str("stop")},
		},
	)
	state, _, err := runForOfCase(t, 5, program)
	var ts *ThrowSignal
	require.ErrorAs(t, err, &ts)
	require.Equal(t, String("stop"), ts.Value, "the original completion survives the close")
	require.Equal(t, 1, state.returns)
}

func TestForOfReturnInsideFunctionClosesIterator(t *testing.T) {
	// function drain() { for (const x of iterable) { return x; } }
	fn := &ast.FunctionDeclStmt{Fn: &ast.FunctionLiteral{
		Name: "drain",
		Body: block(&ast.ForOfStmt{
			Decl:     ast.DeclConst,
			Target:   ident("x"),
			Iterable: ident("iterable"),
			Body:     block(retStmt(ident("x"))),
		}),
	}}
	program := prog(fn, exprStmt(callExpr(ident("drain"))))

	state, v, err := runForOfCase(t, 5, program)
	require.NoError(t, err)
	require.Equal(t, Number(1), v)
	require.Equal(t, 1, state.returns)
}

func TestForOfExhaustionDoesNotClose(t *testing.T) {
	program := forOfProgram(
		exprStmt(&ast.AssignExpr{Op: "+=", Target: ident("seen"), Value: ident("x")}),
	)
	state, v, err := runForOfCase(t, 3, program)
	require.NoError(t, err)
	require.Equal(t, Number(6), v)
	require.Equal(t, 0, state.returns, "a done iterator is not closed again")
}

func TestForOfOverArrayProducesIdenticalSequences(t *testing.T) {
	run := func() []Value {
		program := prog(
			declStmt(ast.DeclVar, "out", &ast.ArrayLiteral{}),
			&ast.ForOfStmt{
				Decl:   ast.DeclConst,
				Target: ident("x"),
				Iterable: &ast.ArrayLiteral{Elements: []ast.ArrayElem{
					{Value: num(5)}, {Value: num(6)}, {Value: num(7)},
				}},
				Body: exprStmt(callExpr(member(ident("out"), "push"), ident("x"))),
			},
			exprStmt(ident("out")),
		)
		v, _, _, err := runProgram(t, program)
		require.NoError(t, err)
		return v.(*Object).ArrayItems()
	}
	require.Equal(t, run(), run())
}

func TestSpreadArgumentsUseIteratorProtocol(t *testing.T) {
	// function sum(a, b, c) { return a + b + c; } sum(...iterable)
	realm := NewRealm()
	installCountingIterable(realm, 3)
	program := prog(
		fnDecl("sum", params("a", "b", "c"),
			retStmt(binary("+", binary("+", ident("a"), ident("b")), ident("c")))),
		exprStmt(&ast.CallExpr{
			Callee: ident("sum"),
			Args:   []ast.Argument{{Value: ident("iterable"), Spread: true}},
		}),
	)
	env := NewGlobalEnvironment(realm)
	v, err := EvaluateProgram(program, env, realm, context.Background(), KindScript, false)
	require.NoError(t, err)
	require.Equal(t, Number(6), v)
}

func TestForAwaitOfSettlesThenables(t *testing.T) {
	// for await (const x of [Promise.resolve(1), 2]) seen += x
	realm := NewRealm()
	program := prog(
		declStmt(ast.DeclVar, "seen", num(0)),
		&ast.ForOfStmt{
			Decl:   ast.DeclConst,
			Target: ident("x"),
			Await:  true,
			Iterable: &ast.ArrayLiteral{Elements: []ast.ArrayElem{
				{Value: callExpr(member(ident("Promise"), "resolve"), num(1))},
				{Value: num(2)},
			}},
			Body: exprStmt(&ast.AssignExpr{Op: "+=", Target: ident("seen"), Value: ident("x")}),
		},
		exprStmt(ident("seen")),
	)
	env := NewGlobalEnvironment(realm)
	v, err := EvaluateProgram(program, env, realm, context.Background(), KindScript, false)
	require.NoError(t, err)
	require.Equal(t, Number(3), v)
}
