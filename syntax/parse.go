// Package syntax is the otto-backed frontend: it parses JavaScript
// source and lowers the resulting tree into the typed AST the
// evaluator consumes, normalizing loops into plan form along the way.
//
// The parser covers the ES5 surface; programs using newer syntax are
// expected to arrive as typed AST built by another producer.
package syntax

import (
	"fmt"
	"strings"

	ottoast "github.com/robertkrimen/otto/ast"
	ottofile "github.com/robertkrimen/otto/file"
	ottoparser "github.com/robertkrimen/otto/parser"
	"github.com/robertkrimen/otto/token"

	"github.com/skiffjs/skiff/ast"
)

// SyntaxError is a parse or lowering failure with source position.
type SyntaxError struct {
	Msg  string
	Span *ast.Source
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Span, e.Msg)
}

// Parse parses src and lowers it to a typed program.
func Parse(filename, src string) (*ast.Program, error) {
	program, err := ottoparser.ParseFile(nil, filename, src, 0)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}

	lw := &lowerer{file: program.File}
	out := &ast.Program{Strict: hasUseStrict(program.Body)}
	out.Src = lw.span(program)
	if out.Strict {
		lw.strictDepth++
	}
	for _, stmt := range program.Body {
		lowered := lw.stmt(stmt)
		if lw.err != nil {
			return nil, lw.err
		}
		out.Body = append(out.Body, lowered)
	}
	return out, nil
}

type lowerer struct {
	file *ottofile.File
	err  error
	// strictDepth counts enclosing strict scopes so strict-only
	// restrictions (with, delete identifier) fail at lowering time.
	strictDepth int
}

func (lw *lowerer) span(node ottoast.Node) *ast.Source {
	if node == nil || lw.file == nil {
		return nil
	}
	src := &ast.Source{
		Offset: int(node.Idx0()) - 1,
		End:    int(node.Idx1()) - 1,
	}
	if pos := lw.file.Position(node.Idx0()); pos != nil {
		src.File = pos.Filename
		src.Line = pos.Line
		src.Column = pos.Column
	}
	return src
}

func (lw *lowerer) fail(node ottoast.Node, format string, args ...any) {
	if lw.err == nil {
		lw.err = &SyntaxError{Msg: fmt.Sprintf(format, args...), Span: lw.span(node)}
	}
}

func hasUseStrict(body []ottoast.Statement) bool {
	if len(body) == 0 {
		return false
	}
	es, ok := body[0].(*ottoast.ExpressionStatement)
	if !ok {
		return false
	}
	lit, ok := es.Expression.(*ottoast.StringLiteral)
	return ok && lit.Value == "use strict"
}

// ---------------------------------------------------------------------------
// statements

func (lw *lowerer) stmts(in []ottoast.Statement) []ast.Statement {
	out := make([]ast.Statement, 0, len(in))
	for _, stmt := range in {
		out = append(out, lw.stmt(stmt))
	}
	return out
}

func (lw *lowerer) stmt(node ottoast.Statement) ast.Statement {
	if node == nil || lw.err != nil {
		return nil
	}

	switch stmt := node.(type) {
	case *ottoast.EmptyStatement:
		return &ast.EmptyStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}}

	case *ottoast.BlockStatement:
		return &ast.BlockStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}, Body: lw.stmts(stmt.List)}

	case *ottoast.ExpressionStatement:
		return &ast.ExpressionStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}, Expr: lw.expr(stmt.Expression)}

	case *ottoast.VariableStatement:
		return lw.variableStatement(stmt)

	case *ottoast.FunctionStatement:
		fn := lw.functionLiteral(stmt.Function)
		return &ast.FunctionDeclStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}, Fn: fn}

	case *ottoast.IfStatement:
		return &ast.IfStmt{
			NodeBase:   ast.NodeBase{Src: lw.span(stmt)},
			Test:       lw.expr(stmt.Test),
			Consequent: lw.stmt(stmt.Consequent),
			Alternate:  lw.stmt(stmt.Alternate),
		}

	case *ottoast.ReturnStatement:
		out := &ast.ReturnStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}}
		if stmt.Argument != nil {
			out.Arg = lw.expr(stmt.Argument)
		}
		return out

	case *ottoast.ThrowStatement:
		return &ast.ThrowStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}, Arg: lw.expr(stmt.Argument)}

	case *ottoast.TryStatement:
		out := &ast.TryStmt{
			NodeBase: ast.NodeBase{Src: lw.span(stmt)},
			Block:    lw.block(stmt.Body),
		}
		if stmt.Catch != nil {
			if stmt.Catch.Parameter != nil {
				out.CatchParam = &ast.Identifier{Name: stmt.Catch.Parameter.Name}
			}
			out.CatchBody = lw.block(stmt.Catch.Body)
		}
		if stmt.Finally != nil {
			out.Finally = lw.block(stmt.Finally)
		}
		return out

	case *ottoast.WhileStatement:
		// while lowers to a pre-test plan
		return &ast.LoopStmt{
			NodeBase:  ast.NodeBase{Src: lw.span(stmt)},
			Condition: lw.expr(stmt.Test),
			Body:      lw.stmt(stmt.Body),
		}

	case *ottoast.DoWhileStatement:
		return &ast.LoopStmt{
			NodeBase:           ast.NodeBase{Src: lw.span(stmt)},
			Condition:          lw.expr(stmt.Test),
			Body:               lw.stmt(stmt.Body),
			ConditionAfterBody: true,
		}

	case *ottoast.ForStatement:
		out := &ast.LoopStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}}
		if stmt.Initializer != nil {
			out.Leading = []ast.Statement{lw.forInitializer(stmt.Initializer)}
		}
		if stmt.Test != nil {
			out.Condition = lw.expr(stmt.Test)
		}
		if stmt.Update != nil {
			out.Post = []ast.Statement{&ast.ExpressionStmt{Expr: lw.expr(stmt.Update)}}
		}
		out.Body = lw.stmt(stmt.Body)
		return out

	case *ottoast.ForInStatement:
		out := &ast.ForInStmt{
			NodeBase: ast.NodeBase{Src: lw.span(stmt)},
			Object:   lw.expr(stmt.Source),
			Body:     lw.stmt(stmt.Body),
		}
		out.Decl, out.Target = lw.forTarget(stmt.Into)
		return out

	case *ottoast.BranchStatement:
		label := ""
		if stmt.Label != nil {
			label = stmt.Label.Name
		}
		if stmt.Token == token.BREAK {
			return &ast.BreakStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}, Label: label}
		}
		return &ast.ContinueStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}, Label: label}

	case *ottoast.LabelledStatement:
		return &ast.LabeledStmt{
			NodeBase: ast.NodeBase{Src: lw.span(stmt)},
			Label:    stmt.Label.Name,
			Body:     lw.stmt(stmt.Statement),
		}

	case *ottoast.WithStatement:
		if lw.strictDepth > 0 {
			lw.fail(stmt, "'with' statements are not valid in strict mode")
			return nil
		}
		return &ast.WithStmt{
			NodeBase: ast.NodeBase{Src: lw.span(stmt)},
			Object:   lw.expr(stmt.Object),
			Body:     lw.stmt(stmt.Body),
		}

	case *ottoast.SwitchStatement:
		out := &ast.SwitchStmt{
			NodeBase:     ast.NodeBase{Src: lw.span(stmt)},
			Discriminant: lw.expr(stmt.Discriminant),
		}
		for _, c := range stmt.Body {
			sc := &ast.SwitchCase{Body: lw.stmts(c.Consequent)}
			if c.Test != nil {
				sc.Test = lw.expr(c.Test)
			}
			out.Cases = append(out.Cases, sc)
		}
		return out

	case *ottoast.DebuggerStatement:
		return &ast.EmptyStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}}

	default:
		lw.fail(node, "unsupported statement node %T", node)
		return nil
	}
}

func (lw *lowerer) block(node ottoast.Statement) *ast.BlockStmt {
	lowered := lw.stmt(node)
	if b, ok := lowered.(*ast.BlockStmt); ok {
		return b
	}
	if lowered == nil {
		return &ast.BlockStmt{}
	}
	return &ast.BlockStmt{Body: []ast.Statement{lowered}}
}

// variableStatement lowers otto's expression-shaped var declarations
// into a declaration statement.
func (lw *lowerer) variableStatement(stmt *ottoast.VariableStatement) ast.Statement {
	out := &ast.VarDeclStmt{NodeBase: ast.NodeBase{Src: lw.span(stmt)}, Kind: ast.DeclVar}
	for _, item := range stmt.List {
		ve, ok := item.(*ottoast.VariableExpression)
		if !ok {
			lw.fail(stmt, "unsupported variable declaration form %T", item)
			return nil
		}
		decl := &ast.Declarator{Target: &ast.Identifier{Name: ve.Name}}
		if ve.Initializer != nil {
			decl.Init = lw.expr(ve.Initializer)
		}
		out.Decls = append(out.Decls, decl)
	}
	return out
}

// forInitializer keeps var declarations in a for-loop head as
// declarations, so var hoisting still sees them.
func (lw *lowerer) forInitializer(init ottoast.Expression) ast.Statement {
	toDecl := func(items []ottoast.Expression) ast.Statement {
		out := &ast.VarDeclStmt{NodeBase: ast.NodeBase{Src: lw.span(init)}, Kind: ast.DeclVar}
		for _, item := range items {
			ve, ok := item.(*ottoast.VariableExpression)
			if !ok {
				return nil
			}
			decl := &ast.Declarator{Target: &ast.Identifier{Name: ve.Name}}
			if ve.Initializer != nil {
				decl.Init = lw.expr(ve.Initializer)
			}
			out.Decls = append(out.Decls, decl)
		}
		return out
	}

	switch spec := init.(type) {
	case *ottoast.VariableExpression:
		if d := toDecl([]ottoast.Expression{spec}); d != nil {
			return d
		}
	case *ottoast.SequenceExpression:
		allVars := true
		for _, item := range spec.Sequence {
			if _, ok := item.(*ottoast.VariableExpression); !ok {
				allVars = false
				break
			}
		}
		if allVars {
			if d := toDecl(spec.Sequence); d != nil {
				return d
			}
		}
	}
	return &ast.ExpressionStmt{Expr: lw.expr(init)}
}

// forTarget lowers the head of a for-in loop: either a declaration or
// an assignment target.
func (lw *lowerer) forTarget(into ottoast.Expression) (ast.DeclKind, ast.Pattern) {
	switch spec := into.(type) {
	case *ottoast.VariableExpression:
		return ast.DeclVar, &ast.Identifier{Name: spec.Name}
	case *ottoast.Identifier:
		return ast.DeclNone, &ast.Identifier{Name: spec.Name}
	case *ottoast.DotExpression:
		return ast.DeclNone, &ast.MemberExpr{Target: lw.expr(spec.Left), Name: spec.Identifier.Name}
	case *ottoast.BracketExpression:
		return ast.DeclNone, &ast.MemberExpr{Target: lw.expr(spec.Left), Property: lw.expr(spec.Member)}
	default:
		lw.fail(into, "unsupported for-in target %T", into)
		return ast.DeclNone, nil
	}
}

func (lw *lowerer) functionLiteral(fn *ottoast.FunctionLiteral) *ast.FunctionLiteral {
	out := &ast.FunctionLiteral{NodeBase: ast.NodeBase{Src: lw.span(fn)}}
	if fn.Name != nil {
		out.Name = fn.Name.Name
	}
	if fn.ParameterList != nil {
		for _, param := range fn.ParameterList.List {
			out.Params = append(out.Params, ast.Param{Target: &ast.Identifier{Name: param.Name}})
		}
	}

	bodyBlock, isBlock := fn.Body.(*ottoast.BlockStatement)
	if isBlock && hasUseStrict(bodyBlock.List) {
		out.Strict = true
	}
	if out.Strict {
		lw.strictDepth++
		defer func() { lw.strictDepth-- }()
	}
	out.Body = lw.block(fn.Body)
	return out
}

// ---------------------------------------------------------------------------
// expressions

var binaryOps = map[token.Token]string{
	token.PLUS:                 "+",
	token.MINUS:                "-",
	token.MULTIPLY:             "*",
	token.SLASH:                "/",
	token.REMAINDER:            "%",
	token.AND:                  "&",
	token.OR:                   "|",
	token.EXCLUSIVE_OR:         "^",
	token.SHIFT_LEFT:           "<<",
	token.SHIFT_RIGHT:          ">>",
	token.UNSIGNED_SHIFT_RIGHT: ">>>",
	token.EQUAL:                "==",
	token.NOT_EQUAL:            "!=",
	token.STRICT_EQUAL:         "===",
	token.STRICT_NOT_EQUAL:     "!==",
	token.LESS:                 "<",
	token.LESS_OR_EQUAL:        "<=",
	token.GREATER:              ">",
	token.GREATER_OR_EQUAL:     ">=",
	token.INSTANCEOF:           "instanceof",
	token.IN:                   "in",
}

func (lw *lowerer) exprs(in []ottoast.Expression) []ast.Expression {
	out := make([]ast.Expression, 0, len(in))
	for _, e := range in {
		out = append(out, lw.expr(e))
	}
	return out
}

func (lw *lowerer) args(in []ottoast.Expression) []ast.Argument {
	out := make([]ast.Argument, 0, len(in))
	for _, e := range in {
		out = append(out, ast.Argument{Value: lw.expr(e)})
	}
	return out
}

func (lw *lowerer) expr(node ottoast.Expression) ast.Expression {
	if node == nil || lw.err != nil {
		return nil
	}

	switch expr := node.(type) {
	case *ottoast.NullLiteral:
		return &ast.NullLiteral{NodeBase: ast.NodeBase{Src: lw.span(expr)}}

	case *ottoast.BooleanLiteral:
		return &ast.BoolLiteral{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Value: expr.Value}

	case *ottoast.NumberLiteral:
		switch v := expr.Value.(type) {
		case float64:
			return &ast.NumberLiteral{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Value: v}
		case int64:
			return &ast.NumberLiteral{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Value: float64(v)}
		default:
			lw.fail(expr, "unsupported number literal representation %T", expr.Value)
			return nil
		}

	case *ottoast.StringLiteral:
		return &ast.StringLiteral{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Value: expr.Value}

	case *ottoast.RegExpLiteral:
		return &ast.RegExpLiteral{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Pattern: expr.Pattern, Flags: expr.Flags}

	case *ottoast.Identifier:
		return &ast.Identifier{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Name: expr.Name}

	case *ottoast.ThisExpression:
		return &ast.ThisExpr{NodeBase: ast.NodeBase{Src: lw.span(expr)}}

	case *ottoast.DotExpression:
		return &ast.MemberExpr{
			NodeBase: ast.NodeBase{Src: lw.span(expr)},
			Target:   lw.expr(expr.Left),
			Name:     expr.Identifier.Name,
		}

	case *ottoast.BracketExpression:
		return &ast.MemberExpr{
			NodeBase: ast.NodeBase{Src: lw.span(expr)},
			Target:   lw.expr(expr.Left),
			Property: lw.expr(expr.Member),
		}

	case *ottoast.CallExpression:
		return &ast.CallExpr{
			NodeBase: ast.NodeBase{Src: lw.span(expr)},
			Callee:   lw.expr(expr.Callee),
			Args:     lw.args(expr.ArgumentList),
		}

	case *ottoast.NewExpression:
		return &ast.NewExpr{
			NodeBase: ast.NodeBase{Src: lw.span(expr)},
			Callee:   lw.expr(expr.Callee),
			Args:     lw.args(expr.ArgumentList),
		}

	case *ottoast.UnaryExpression:
		return lw.unary(expr)

	case *ottoast.BinaryExpression:
		if expr.Operator == token.LOGICAL_AND || expr.Operator == token.LOGICAL_OR {
			op := "&&"
			if expr.Operator == token.LOGICAL_OR {
				op = "||"
			}
			return &ast.LogicalExpr{
				NodeBase: ast.NodeBase{Src: lw.span(expr)},
				Op:       op,
				Left:     lw.expr(expr.Left),
				Right:    lw.expr(expr.Right),
			}
		}
		op, ok := binaryOps[expr.Operator]
		if !ok {
			lw.fail(expr, "unsupported binary operator %s", expr.Operator)
			return nil
		}
		return &ast.BinaryExpr{
			NodeBase: ast.NodeBase{Src: lw.span(expr)},
			Op:       op,
			Left:     lw.expr(expr.Left),
			Right:    lw.expr(expr.Right),
		}

	case *ottoast.ConditionalExpression:
		return &ast.ConditionalExpr{
			NodeBase:   ast.NodeBase{Src: lw.span(expr)},
			Test:       lw.expr(expr.Test),
			Consequent: lw.expr(expr.Consequent),
			Alternate:  lw.expr(expr.Alternate),
		}

	case *ottoast.AssignExpression:
		return lw.assign(expr)

	case *ottoast.SequenceExpression:
		return &ast.SequenceExpr{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Exprs: lw.exprs(expr.Sequence)}

	case *ottoast.FunctionLiteral:
		return lw.functionLiteral(expr)

	case *ottoast.ObjectLiteral:
		return lw.objectLiteral(expr)

	case *ottoast.ArrayLiteral:
		out := &ast.ArrayLiteral{NodeBase: ast.NodeBase{Src: lw.span(expr)}}
		for _, item := range expr.Value {
			if item == nil {
				out.Elements = append(out.Elements, ast.ArrayElem{})
				continue
			}
			if _, isEmpty := item.(*ottoast.EmptyExpression); isEmpty {
				out.Elements = append(out.Elements, ast.ArrayElem{})
				continue
			}
			out.Elements = append(out.Elements, ast.ArrayElem{Value: lw.expr(item)})
		}
		return out

	case *ottoast.EmptyExpression:
		return nil

	case *ottoast.VariableExpression:
		// otto nests these under for-loop initializers
		decl := &ast.AssignExpr{
			NodeBase: ast.NodeBase{Src: lw.span(expr)},
			Op:       "=",
			Target:   &ast.Identifier{Name: expr.Name},
		}
		if expr.Initializer == nil {
			return &ast.Identifier{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Name: expr.Name}
		}
		decl.Value = lw.expr(expr.Initializer)
		return decl

	default:
		lw.fail(node, "unsupported expression node %T", node)
		return nil
	}
}

func (lw *lowerer) unary(expr *ottoast.UnaryExpression) ast.Expression {
	switch expr.Operator {
	case token.INCREMENT, token.DECREMENT:
		op := "++"
		if expr.Operator == token.DECREMENT {
			op = "--"
		}
		return &ast.UpdateExpr{
			NodeBase: ast.NodeBase{Src: lw.span(expr)},
			Op:       op,
			Target:   lw.expr(expr.Operand),
			Prefix:   !expr.Postfix,
		}

	case token.DELETE:
		if lw.strictDepth > 0 {
			if _, isIdent := expr.Operand.(*ottoast.Identifier); isIdent {
				lw.fail(expr, "delete of an unqualified identifier in strict mode")
				return nil
			}
		}
		return &ast.UnaryExpr{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Op: "delete", Operand: lw.expr(expr.Operand)}

	case token.TYPEOF:
		return &ast.UnaryExpr{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Op: "typeof", Operand: lw.expr(expr.Operand)}
	case token.VOID:
		return &ast.UnaryExpr{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Op: "void", Operand: lw.expr(expr.Operand)}
	case token.NOT:
		return &ast.UnaryExpr{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Op: "!", Operand: lw.expr(expr.Operand)}
	case token.MINUS:
		return &ast.UnaryExpr{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Op: "-", Operand: lw.expr(expr.Operand)}
	case token.PLUS:
		return &ast.UnaryExpr{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Op: "+", Operand: lw.expr(expr.Operand)}
	case token.BITWISE_NOT:
		return &ast.UnaryExpr{NodeBase: ast.NodeBase{Src: lw.span(expr)}, Op: "~", Operand: lw.expr(expr.Operand)}
	default:
		lw.fail(expr, "unsupported unary operator %s", expr.Operator)
		return nil
	}
}

var compoundOps = map[token.Token]string{
	token.PLUS:                 "+=",
	token.MINUS:                "-=",
	token.MULTIPLY:             "*=",
	token.SLASH:                "/=",
	token.REMAINDER:            "%=",
	token.AND:                  "&=",
	token.OR:                   "|=",
	token.EXCLUSIVE_OR:         "^=",
	token.SHIFT_LEFT:           "<<=",
	token.SHIFT_RIGHT:          ">>=",
	token.UNSIGNED_SHIFT_RIGHT: ">>>=",
}

func (lw *lowerer) assign(expr *ottoast.AssignExpression) ast.Expression {
	op := "="
	if expr.Operator != token.ASSIGN {
		var ok bool
		op, ok = compoundOps[expr.Operator]
		if !ok {
			lw.fail(expr, "unsupported assignment operator %s", expr.Operator)
			return nil
		}
	}

	target, ok := lw.expr(expr.Left).(ast.Pattern)
	if !ok {
		lw.fail(expr, "invalid assignment target")
		return nil
	}
	return &ast.AssignExpr{
		NodeBase: ast.NodeBase{Src: lw.span(expr)},
		Op:       op,
		Target:   target,
		Value:    lw.expr(expr.Right),
	}
}

func (lw *lowerer) objectLiteral(expr *ottoast.ObjectLiteral) ast.Expression {
	out := &ast.ObjectLiteral{NodeBase: ast.NodeBase{Src: lw.span(expr)}}
	for _, prop := range expr.Value {
		switch prop.Kind {
		case "value", "init":
			out.Props = append(out.Props, ast.ObjectProp{
				Kind:  ast.PropInit,
				Name:  prop.Key,
				Value: lw.expr(prop.Value),
			})
		case "get":
			out.Props = append(out.Props, ast.ObjectProp{
				Kind:  ast.PropGet,
				Name:  prop.Key,
				Value: lw.expr(prop.Value),
			})
		case "set":
			out.Props = append(out.Props, ast.ObjectProp{
				Kind:  ast.PropSet,
				Name:  prop.Key,
				Value: lw.expr(prop.Value),
			})
		default:
			lw.fail(expr, "unsupported object literal property kind %q", prop.Kind)
			return nil
		}
	}
	return out
}

// StripShebang removes a leading #! line so script files run as-is.
func StripShebang(src string) string {
	if strings.HasPrefix(src, "#!") {
		if idx := strings.IndexByte(src, '\n'); idx >= 0 {
			return src[idx+1:]
		}
		return ""
	}
	return src
}
