package skiff

import "github.com/skiffjs/skiff/ast"

// evalStmt executes one statement, threading completions through the
// context. Every branch checks ShouldStopEvaluation after its
// sub-evaluations and returns with the signal intact.
func (cx *Context) evalStmt(env *Environment, node ast.Statement) {
	if node == nil || cx.ShouldStopEvaluation() {
		return
	}

	switch stmt := node.(type) {
	case *ast.EmptyStmt:

	case *ast.BlockStmt:
		blockEnv := NewEnvironment(env)
		blockEnv.IsLexical = true
		cx.prepareScope(blockEnv, stmt.Body, false)
		if cx.ShouldStopEvaluation() {
			return
		}
		for _, inner := range stmt.Body {
			cx.evalStmt(blockEnv, inner)
			if cx.ShouldStopEvaluation() {
				return
			}
		}

	case *ast.ExpressionStmt:
		cx.evalExpr(env, stmt.Expr)

	case *ast.VarDeclStmt:
		cx.evalVarDecl(env, stmt)

	case *ast.FunctionDeclStmt:
		// installed during hoisting

	case *ast.ClassDeclStmt:
		cls := cx.buildClass(env, stmt.Class)
		if cx.ShouldStopEvaluation() {
			return
		}
		env.InitializeBinding(cx, stmt.Class.Name, cls)

	case *ast.IfStmt:
		test := cx.evalExpr(env, stmt.Test)
		if cx.ShouldStopEvaluation() {
			return
		}
		if cx.toBoolean(test) {
			cx.evalStmt(env, stmt.Consequent)
		} else {
			cx.evalStmt(env, stmt.Alternate)
		}

	case *ast.LoopStmt:
		cx.runLoop(env, stmt, "")

	case *ast.ForInStmt:
		cx.runForIn(env, stmt, "")

	case *ast.ForOfStmt:
		cx.runForOf(env, stmt, "")

	case *ast.ReturnStmt:
		var v Value = Undefined{}
		if stmt.Arg != nil {
			v = cx.evalExpr(env, stmt.Arg)
			if cx.ShouldStopEvaluation() {
				return
			}
		}
		cx.SetReturn(v)

	case *ast.ThrowStmt:
		v := cx.evalExpr(env, stmt.Arg)
		if cx.ShouldStopEvaluation() {
			return
		}
		cx.SetThrow(v)

	case *ast.TryStmt:
		cx.runTry(env, stmt)

	case *ast.BreakStmt:
		cx.SetBreak(stmt.Label)

	case *ast.ContinueStmt:
		cx.SetContinue(stmt.Label)

	case *ast.LabeledStmt:
		cx.runLabeled(env, stmt)

	case *ast.WithStmt:
		cx.runWith(env, stmt)

	case *ast.SwitchStmt:
		cx.runSwitch(env, stmt)

	default:
		cx.setHostError(errUnsupportedNode(node))
	}
}

func (cx *Context) evalVarDecl(env *Environment, stmt *ast.VarDeclStmt) {
	mode := bindDeclare(bindKindOf(stmt.Kind))
	for _, decl := range stmt.Decls {
		var v Value
		if decl.Init != nil {
			v = cx.evalExprNamed(env, decl.Init, patternBoundName(decl.Target))
			if cx.ShouldStopEvaluation() {
				return
			}
		} else {
			if stmt.Kind == ast.DeclVar {
				// the hoisted binding keeps its current value
				continue
			}
			v = Undefined{}
		}
		cx.bindPattern(env, decl.Target, v, mode)
		if cx.ShouldStopEvaluation() {
			return
		}
	}
}

// runTry: catch consumes a throw
// completion, finally snapshots the pending signal and restores it
// unless the finally itself completes abruptly, which wins. A yield
// suspension escaping a finally is kept as-is: the generator replay
// recomputes the pending completion on the next turn.
func (cx *Context) runTry(env *Environment, stmt *ast.TryStmt) {
	cx.evalStmt(env, stmt.Block)

	// a yield is a suspension, not a completion: the clauses run when
	// the replayed turn actually finishes the block
	if cx.IsYield() {
		return
	}

	if cx.IsThrow() && stmt.CatchBody != nil {
		thrown := cx.TakeThrow()

		catchEnv := NewEnvironment(env)
		catchEnv.IsLexical = true
		if stmt.CatchParam != nil {
			if id, ok := stmt.CatchParam.(*ast.Identifier); ok {
				catchEnv.SetSimpleCatchParameters([]string{id.Name})
			}
			declarePatternLexicals(catchEnv, stmt.CatchParam, ast.DeclLet)
			cx.bindPattern(catchEnv, stmt.CatchParam, thrown, bindDeclare(BindLet))
		}
		if !cx.ShouldStopEvaluation() {
			cx.evalStmt(catchEnv, stmt.CatchBody)
		}
		if cx.IsYield() {
			return
		}
	}

	if stmt.Finally != nil {
		pending := cx.snapshotSignal()
		cx.evalStmt(env, stmt.Finally)
		if !cx.ShouldStopEvaluation() {
			cx.restoreSignal(pending)
		}
	}
}

// runLabeled attaches the label to loops and switches so their
// break/continue consumers can match it; a labeled plain statement
// consumes only break.
func (cx *Context) runLabeled(env *Environment, stmt *ast.LabeledStmt) {
	switch body := stmt.Body.(type) {
	case *ast.LoopStmt:
		cx.runLoop(env, body, stmt.Label)
	case *ast.ForInStmt:
		cx.runForIn(env, body, stmt.Label)
	case *ast.ForOfStmt:
		cx.runForOf(env, body, stmt.Label)
	case *ast.LabeledStmt:
		cx.runLabeled(env, body)
		cx.TryClearBreak(stmt.Label)
	default:
		cx.evalStmt(env, stmt.Body)
		if cx.signal == SignalBreak && cx.signalLabel == stmt.Label {
			cx.ClearSignal()
		}
	}
}

// runWith pushes an environment whose overlay is the with-object.
// Strict-mode occurrences are rejected by the frontend; a runtime
// check backs that up for hand-built trees.
func (cx *Context) runWith(env *Environment, stmt *ast.WithStmt) {
	if env.isStrictHere() {
		cx.throwSyntaxError("Strict mode code may not include a with statement")
		return
	}
	obj := cx.evalExpr(env, stmt.Object)
	if cx.ShouldStopEvaluation() {
		return
	}
	withObj, err := cx.toObject(obj)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return
	}
	withEnv := NewEnvironment(env)
	withEnv.withObject = withObj
	cx.evalStmt(withEnv, stmt.Body)
}

// runSwitch finds the first strictly-equal case (default last) and
// falls through until a break or other abrupt completion.
func (cx *Context) runSwitch(env *Environment, stmt *ast.SwitchStmt) {
	disc := cx.evalExpr(env, stmt.Discriminant)
	if cx.ShouldStopEvaluation() {
		return
	}

	switchEnv := NewEnvironment(env)
	switchEnv.IsLexical = true
	var allBody []ast.Statement
	for _, c := range stmt.Cases {
		allBody = append(allBody, c.Body...)
	}
	cx.prepareScope(switchEnv, allBody, false)
	if cx.ShouldStopEvaluation() {
		return
	}

	matched := -1
	for i, c := range stmt.Cases {
		if c.Test == nil {
			continue
		}
		t := cx.evalExpr(switchEnv, c.Test)
		if cx.ShouldStopEvaluation() {
			return
		}
		if strictEquals(disc, t) {
			matched = i
			break
		}
	}
	if matched < 0 {
		for i, c := range stmt.Cases {
			if c.Test == nil {
				matched = i
				break
			}
		}
	}
	if matched < 0 {
		return
	}

	for _, c := range stmt.Cases[matched:] {
		for _, inner := range c.Body {
			cx.evalStmt(switchEnv, inner)
			if cx.ShouldStopEvaluation() {
				if cx.TryClearBreak("") {
					return
				}
				return
			}
		}
	}
}
