package skiff

import "github.com/skiffjs/skiff/ast"

// restrictedGlobalNames cannot be shadowed by a lexical declaration at
// global scope.
var restrictedGlobalNames = map[string]struct{}{
	"undefined": {},
	"NaN":       {},
	"Infinity":  {},
}

// prepareScope performs the hoisting rule set on a body about to run
// in env: lexical bindings enter their TDZ, function declarations are
// installed, and var names materialize as undefined bindings on the
// nearest function scope.
func (cx *Context) prepareScope(env *Environment, body []ast.Statement, functionLevel bool) {
	// 1. lexical declarations of this body open their TDZ window and
	// block sloppy function hoisting
	lexicals := collectLexicalNames(body)
	if len(lexicals) > 0 {
		env.SetBodyLexicalNames(lexicals)
	}
	for _, entry := range collectLexicalDecls(body) {
		if env.IsGlobal {
			if _, restricted := restrictedGlobalNames[entry.name]; restricted {
				cx.throwSyntaxError("Cannot declare a lexical binding named '%s' at global scope", entry.name)
				return
			}
		}
		env.Define(entry.name, nil, entry.kind, true)
	}

	// 2. function declarations of this level
	funcScope := env.GetFunctionScope()
	for _, decl := range collectFunctionDecls(body) {
		name := decl.Fn.Name
		fn := cx.makeFunction(env, decl.Fn)
		env.Define(name, fn, BindFunctionName, false)
		if cx.ShouldStopEvaluation() {
			return
		}
		// Annex B: a block function also lands on the var the
		// surrounding function scope hoisted for it
		if !functionLevel && cx.opts.Mode == ModeSloppyAnnexB && !env.IsStrict &&
			funcScope != env && !funcScope.BlocksFunctionVarName(name) && funcScope.HasOwnBinding(name) {
			funcScope.Define(name, fn, BindVar, false)
		}
	}

	// sloppy block functions additionally surface as a var on the
	// surrounding function scope, unless a lexical or simple catch
	// parameter of the same name blocks it
	if functionLevel && cx.opts.Mode == ModeSloppyAnnexB && !env.IsStrict {
		for _, name := range collectBlockFunctionNames(body) {
			if funcScope.BlocksFunctionVarName(name) {
				continue
			}
			if !funcScope.HasOwnBinding(name) {
				funcScope.Define(name, Undefined{}, BindVar, false)
			}
		}
	}

	// 3. var names hoist to the function/program scope
	if functionLevel {
		for _, name := range collectVarNames(body) {
			if funcScope.IsGlobal {
				if b, exists := funcScope.bindings[name]; exists && b.kind.lexical() {
					cx.throwSyntaxError("Identifier '%s' has already been declared", name)
					return
				}
			}
			if funcScope.HasOwnBinding(name) {
				continue // parameters and earlier vars win
			}
			funcScope.Define(name, Undefined{}, BindVar, false)
		}
	}
}

type lexicalDecl struct {
	name string
	kind BindingKind
}

func collectLexicalDecls(body []ast.Statement) []lexicalDecl {
	var out []lexicalDecl
	for _, stmt := range body {
		switch spec := stmt.(type) {
		case *ast.VarDeclStmt:
			if spec.Kind == ast.DeclLet || spec.Kind == ast.DeclConst {
				for _, d := range spec.Decls {
					for _, name := range patternNames(d.Target) {
						out = append(out, lexicalDecl{name, bindKindOf(spec.Kind)})
					}
				}
			}
		case *ast.ClassDeclStmt:
			if spec.Class.Name != "" {
				out = append(out, lexicalDecl{spec.Class.Name, BindLet})
			}
		}
	}
	return out
}

func collectLexicalNames(body []ast.Statement) []string {
	decls := collectLexicalDecls(body)
	out := make([]string, len(decls))
	for i, d := range decls {
		out[i] = d.name
	}
	return out
}

// collectFunctionDecls lists the function declarations directly at
// this body's level.
func collectFunctionDecls(body []ast.Statement) []*ast.FunctionDeclStmt {
	var out []*ast.FunctionDeclStmt
	for _, stmt := range body {
		if fd, ok := stmt.(*ast.FunctionDeclStmt); ok && fd.Fn.Name != "" {
			out = append(out, fd)
		}
	}
	return out
}

// collectBlockFunctionNames finds function declarations nested in
// blocks below this body, without crossing function boundaries; these
// are the Annex-B var-hoisting candidates.
func collectBlockFunctionNames(body []ast.Statement) []string {
	var out []string
	walkNestedStatements(body, func(stmt ast.Statement, topLevel bool) {
		if fd, ok := stmt.(*ast.FunctionDeclStmt); ok && !topLevel && fd.Fn.Name != "" {
			out = append(out, fd.Fn.Name)
		}
	})
	return out
}

// collectVarNames gathers every var-declared name reachable from this
// body without crossing into nested functions: plain declarations,
// destructuring targets and loop heads included.
func collectVarNames(body []ast.Statement) []string {
	var out []string
	walkNestedStatements(body, func(stmt ast.Statement, _ bool) {
		switch spec := stmt.(type) {
		case *ast.VarDeclStmt:
			if spec.Kind == ast.DeclVar {
				for _, d := range spec.Decls {
					out = append(out, patternNames(d.Target)...)
				}
			}
		case *ast.ForInStmt:
			if spec.Decl == ast.DeclVar {
				out = append(out, patternNames(spec.Target)...)
			}
		case *ast.ForOfStmt:
			if spec.Decl == ast.DeclVar {
				out = append(out, patternNames(spec.Target)...)
			}
		}
	})
	return out
}

// walkNestedStatements visits every statement reachable from body
// without entering function bodies. topLevel is true for the immediate
// statements of body.
func walkNestedStatements(body []ast.Statement, visit func(stmt ast.Statement, topLevel bool)) {
	var walk func(stmts []ast.Statement, topLevel bool)
	var walkOne func(stmt ast.Statement, topLevel bool)

	walkOne = func(stmt ast.Statement, topLevel bool) {
		if stmt == nil {
			return
		}
		visit(stmt, topLevel)
		switch spec := stmt.(type) {
		case *ast.BlockStmt:
			walk(spec.Body, false)
		case *ast.IfStmt:
			walkOne(spec.Consequent, false)
			walkOne(spec.Alternate, false)
		case *ast.LoopStmt:
			walk(spec.Leading, false)
			walk(spec.Prologue, false)
			walkOne(spec.Body, false)
			walk(spec.Post, false)
		case *ast.ForInStmt:
			walkOne(spec.Body, false)
		case *ast.ForOfStmt:
			walkOne(spec.Body, false)
		case *ast.TryStmt:
			if spec.Block != nil {
				walk(spec.Block.Body, false)
			}
			if spec.CatchBody != nil {
				walk(spec.CatchBody.Body, false)
			}
			if spec.Finally != nil {
				walk(spec.Finally.Body, false)
			}
		case *ast.LabeledStmt:
			walkOne(spec.Body, false)
		case *ast.WithStmt:
			walkOne(spec.Body, false)
		case *ast.SwitchStmt:
			for _, c := range spec.Cases {
				walk(c.Body, false)
			}
		}
	}

	walk = func(stmts []ast.Statement, topLevel bool) {
		for _, stmt := range stmts {
			walkOne(stmt, topLevel)
		}
	}

	walk(body, true)
}
