package skiff

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiffjs/skiff/ast"
	"github.com/skiffjs/skiff/syntax"
)

// runScript evaluates source through the otto frontend on a fresh
// realm.
func runScript(t *testing.T, src string) (Value, error) {
	t.Helper()
	realm := NewRealm()
	return runScriptIn(t, realm, src)
}

func runScriptIn(t *testing.T, realm *Realm, src string) (Value, error) {
	t.Helper()
	prog, err := syntax.Parse("test.js", src)
	require.NoError(t, err, "frontend rejected the test source")
	return EvaluateProgram(prog, nil, realm, context.Background(), KindScript, false)
}

func mustRun(t *testing.T, src string) Value {
	t.Helper()
	v, err := runScript(t, src)
	require.NoError(t, err)
	return v
}

// runProgram evaluates a hand-built typed program on a fresh realm and
// returns the realm's global environment for inspection.
func runProgram(t *testing.T, prog *ast.Program) (Value, *Environment, *Realm, error) {
	t.Helper()
	realm := NewRealm()
	env := NewGlobalEnvironment(realm)
	v, err := EvaluateProgram(prog, env, realm, context.Background(), KindScript, false)
	return v, env, realm, err
}

// requireJSError asserts err is a ThrowSignal whose error object is
// named name (TypeError, ReferenceError, ...).
func requireJSError(t *testing.T, err error, name string) {
	t.Helper()
	var ts *ThrowSignal
	require.ErrorAs(t, err, &ts, "expected a JS throw")
	obj, ok := ts.Value.(*Object)
	require.True(t, ok, "thrown value should be an error object, got %s", InspectValue(ts.Value))
	cx := NewContext(NewRealm(), context.Background(), Options{})
	got, gerr := obj.GetProperty(cx, NameKey("name"))
	require.NoError(t, gerr)
	require.Equal(t, String(name), got)
}

// newTestContext builds a context suitable for driving values from Go.
func newTestContext(realm *Realm) *Context {
	return NewContext(realm, context.Background(), Options{Mode: ModeSloppyAnnexB})
}

// globalObjectValue reads a global property and requires it to be an
// object.
func globalObjectValue(t *testing.T, cx *Context, name string) *Object {
	t.Helper()
	v, err := cx.Realm.Global.GetProperty(cx, NameKey(name))
	require.NoError(t, err)
	obj, ok := v.(*Object)
	require.True(t, ok, "global %s should be an object, got %s", name, InspectValue(v))
	return obj
}

// callMethod invokes obj[name](args...) from the Go side.
func callMethod(cx *Context, obj *Object, name string, args ...Value) (Value, error) {
	m, err := obj.GetProperty(cx, NameKey(name))
	if err != nil {
		return nil, err
	}
	fn, ok := m.(*Object)
	if !ok || !fn.IsCallable() {
		return nil, errors.New(name + " is not callable")
	}
	return fn.Invoke(cx, obj, args)
}

// iterResult unpacks a {value, done} object.
func iterResult(t *testing.T, cx *Context, v Value) (Value, bool) {
	t.Helper()
	obj, ok := v.(*Object)
	require.True(t, ok, "iterator result should be an object, got %s", InspectValue(v))
	value, err := obj.GetProperty(cx, NameKey("value"))
	require.NoError(t, err)
	done, err := obj.GetProperty(cx, NameKey("done"))
	require.NoError(t, err)
	return value, bool(done.(Boolean))
}

// ---------------------------------------------------------------------------
// terse typed-AST builders for post-ES5 constructs the otto frontend
// cannot parse

func ident(name string) *ast.Identifier { return &ast.Identifier{Name: name} }

func num(v float64) *ast.NumberLiteral { return &ast.NumberLiteral{Value: v} }

func str(v string) *ast.StringLiteral { return &ast.StringLiteral{Value: v} }

func exprStmt(e ast.Expression) ast.Statement { return &ast.ExpressionStmt{Expr: e} }

func retStmt(e ast.Expression) ast.Statement { return &ast.ReturnStmt{Arg: e} }

func block(stmts ...ast.Statement) *ast.BlockStmt { return &ast.BlockStmt{Body: stmts} }

func prog(stmts ...ast.Statement) *ast.Program { return &ast.Program{Body: stmts} }

func declStmt(kind ast.DeclKind, name string, init ast.Expression) ast.Statement {
	return &ast.VarDeclStmt{Kind: kind, Decls: []*ast.Declarator{{Target: ident(name), Init: init}}}
}

func member(target ast.Expression, name string) *ast.MemberExpr {
	return &ast.MemberExpr{Target: target, Name: name}
}

func callExpr(callee ast.Expression, args ...ast.Expression) *ast.CallExpr {
	out := &ast.CallExpr{Callee: callee}
	for _, a := range args {
		out.Args = append(out.Args, ast.Argument{Value: a})
	}
	return out
}

func assign(target ast.Pattern, value ast.Expression) *ast.AssignExpr {
	return &ast.AssignExpr{Op: "=", Target: target, Value: value}
}

func binary(op string, l, r ast.Expression) *ast.BinaryExpr {
	return &ast.BinaryExpr{Op: op, Left: l, Right: r}
}

func params(names ...string) []ast.Param {
	out := make([]ast.Param, len(names))
	for i, n := range names {
		out[i] = ast.Param{Target: ident(n)}
	}
	return out
}

func fnDecl(name string, ps []ast.Param, body ...ast.Statement) ast.Statement {
	return &ast.FunctionDeclStmt{Fn: &ast.FunctionLiteral{Name: name, Params: ps, Body: block(body...)}}
}

func genDecl(name string, ps []ast.Param, body ...ast.Statement) ast.Statement {
	return &ast.FunctionDeclStmt{Fn: &ast.FunctionLiteral{Name: name, Params: ps, Body: block(body...), Generator: true}}
}

func arrow(ps []ast.Param, exprBody ast.Expression) *ast.FunctionLiteral {
	return &ast.FunctionLiteral{Params: ps, ExprBody: exprBody, Arrow: true}
}

func yieldExpr(arg ast.Expression) *ast.YieldExpr { return &ast.YieldExpr{Arg: arg} }

func yieldFrom(arg ast.Expression) *ast.YieldExpr {
	return &ast.YieldExpr{Arg: arg, Delegate: true}
}
