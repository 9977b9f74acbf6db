package syntax

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skiffjs/skiff/ast"
)

func parseOne(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse("test.js", src)
	require.NoError(t, err)
	return prog
}

func TestWhileLowersToPreTestPlan(t *testing.T) {
	prog := parseOne(t, `while (x) { y(); }`)
	require.Len(t, prog.Body, 1)
	loop, ok := prog.Body[0].(*ast.LoopStmt)
	require.True(t, ok)
	require.False(t, loop.ConditionAfterBody)
	require.Empty(t, loop.Leading)
	require.Empty(t, loop.Post)
	require.NotNil(t, loop.Condition)
}

func TestDoWhileLowersToPostTestPlan(t *testing.T) {
	prog := parseOne(t, `do { y(); } while (x);`)
	loop, ok := prog.Body[0].(*ast.LoopStmt)
	require.True(t, ok)
	require.True(t, loop.ConditionAfterBody)
}

func TestForLowersInitConditionUpdate(t *testing.T) {
	prog := parseOne(t, `for (var i = 0, j = 9; i < j; i++) { work(); }`)
	loop, ok := prog.Body[0].(*ast.LoopStmt)
	require.True(t, ok)
	require.Len(t, loop.Leading, 1)
	require.Len(t, loop.Post, 1)
	require.NotNil(t, loop.Condition)

	// the init keeps declaration shape so var hoisting sees i and j
	decl, ok := loop.Leading[0].(*ast.VarDeclStmt)
	require.True(t, ok)
	require.Equal(t, ast.DeclVar, decl.Kind)
	require.Len(t, decl.Decls, 2)
}

func TestInfiniteForHasNilCondition(t *testing.T) {
	prog := parseOne(t, `for (;;) { break; }`)
	loop, ok := prog.Body[0].(*ast.LoopStmt)
	require.True(t, ok)
	require.Nil(t, loop.Condition)
}

func TestUseStrictDirectiveDetected(t *testing.T) {
	require.True(t, parseOne(t, `"use strict"; var x = 1;`).Strict)
	require.False(t, parseOne(t, `var x = 1;`).Strict)
}

func TestFunctionBodyStrictDetected(t *testing.T) {
	prog := parseOne(t, `function f() { "use strict"; return 1; }`)
	decl, ok := prog.Body[0].(*ast.FunctionDeclStmt)
	require.True(t, ok)
	require.True(t, decl.Fn.Strict)
}

func TestWithInStrictModeFailsToLower(t *testing.T) {
	_, err := Parse("test.js", `"use strict"; with (obj) { x; }`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "strict mode")
}

func TestDeleteIdentifierInStrictModeFailsToLower(t *testing.T) {
	_, err := Parse("test.js", `"use strict"; var x; delete x;`)
	require.Error(t, err)
}

func TestCompoundAssignmentOperators(t *testing.T) {
	prog := parseOne(t, `a += 1; a -= 2; a *= 3; a <<= 4;`)
	wantOps := []string{"+=", "-=", "*=", "<<="}
	require.Len(t, prog.Body, len(wantOps))
	for i, want := range wantOps {
		es, ok := prog.Body[i].(*ast.ExpressionStmt)
		require.True(t, ok)
		as, ok := es.Expr.(*ast.AssignExpr)
		require.True(t, ok)
		require.Equal(t, want, as.Op)
	}
}

func TestPostfixAndPrefixUpdates(t *testing.T) {
	prog := parseOne(t, `i++; --j;`)
	post := prog.Body[0].(*ast.ExpressionStmt).Expr.(*ast.UpdateExpr)
	require.Equal(t, "++", post.Op)
	require.False(t, post.Prefix)
	pre := prog.Body[1].(*ast.ExpressionStmt).Expr.(*ast.UpdateExpr)
	require.Equal(t, "--", pre.Op)
	require.True(t, pre.Prefix)
}

func TestForInTargetForms(t *testing.T) {
	prog := parseOne(t, `for (var k in obj) {} for (k in obj) {}`)
	first, ok := prog.Body[0].(*ast.ForInStmt)
	require.True(t, ok)
	require.Equal(t, ast.DeclVar, first.Decl)
	second, ok := prog.Body[1].(*ast.ForInStmt)
	require.True(t, ok)
	require.Equal(t, ast.DeclNone, second.Decl)
}

func TestSpansPointIntoSource(t *testing.T) {
	prog := parseOne(t, "var a = 1;\nvar b = 2;")
	require.Len(t, prog.Body, 2)
	span := prog.Body[1].Span()
	require.NotNil(t, span)
	require.Equal(t, 2, span.Line)
}

func TestStripShebang(t *testing.T) {
	require.Equal(t, "var x = 1;", StripShebang("#!/usr/bin/env skiff\nvar x = 1;"))
	require.Equal(t, "var x = 1;", StripShebang("var x = 1;"))
}

func TestPrintASTRendersTree(t *testing.T) {
	prog := parseOne(t, `function add(a, b) { return a + b; }`)
	var sb strings.Builder
	PrintAST(&sb, prog)
	out := sb.String()
	require.Contains(t, out, "Program")
	require.Contains(t, out, "FunctionDeclStmt")
	require.Contains(t, out, `Name="add"`)
	require.Contains(t, out, "BinaryExpr")
}
