package skiff

import "github.com/skiffjs/skiff/ast"

// runLoop executes a normalized loop plan: leading statements once,
// then per iteration the condition prologue, the condition (pre- or
// post-test per ConditionAfterBody), the body and the post-iteration
// statements. label is the statement label attached to the loop, empty
// when unlabeled.
func (cx *Context) runLoop(env *Environment, stmt *ast.LoopStmt, label string) {
	loopEnv := NewEnvironment(env)
	loopEnv.IsLexical = true

	for _, lead := range stmt.Leading {
		if vd, ok := lead.(*ast.VarDeclStmt); ok && vd.Kind != ast.DeclVar {
			for _, d := range vd.Decls {
				for _, name := range patternNames(d.Target) {
					loopEnv.Define(name, nil, bindKindOf(vd.Kind), true)
				}
			}
		}
	}

	for _, lead := range stmt.Leading {
		cx.evalStmt(loopEnv, lead)
		if cx.ShouldStopEvaluation() {
			return
		}
	}

	firstIteration := true
	for {
		if err := cx.CheckCancellation(); err != nil {
			cx.setHostError(err)
			return
		}

		testNow := !stmt.ConditionAfterBody || !firstIteration
		if testNow {
			for _, pre := range stmt.Prologue {
				cx.evalStmt(loopEnv, pre)
				if cx.ShouldStopEvaluation() {
					return
				}
			}
			if stmt.Condition != nil {
				test := cx.evalExpr(loopEnv, stmt.Condition)
				if cx.ShouldStopEvaluation() {
					return
				}
				if !cx.toBoolean(test) {
					return
				}
			}
		}
		firstIteration = false

		// per-iteration copies of for-head let bindings, so closures
		// created in the body observe distinct values
		iterEnv := loopEnv
		if len(stmt.PerIteration) > 0 {
			iterEnv = NewEnvironment(loopEnv)
			iterEnv.IsLexical = true
			for _, name := range stmt.PerIteration {
				v, _ := loopEnv.TryGet(cx, name)
				if cx.ShouldStopEvaluation() {
					return
				}
				iterEnv.Define(name, v, BindLet, true)
			}
		}

		cx.evalStmt(iterEnv, stmt.Body)

		switch {
		case cx.TryClearContinue(label):
		case cx.TryClearBreak(label):
			return
		case cx.ShouldStopEvaluation():
			// return, throw, yield, an unmatched label, or a host error
			return
		}

		// copy per-iteration bindings back before the update runs;
		// direct slot writes, so const heads stay assignable-free
		if iterEnv != loopEnv {
			for _, name := range stmt.PerIteration {
				v, _ := iterEnv.TryGet(cx, name)
				if cx.ShouldStopEvaluation() {
					return
				}
				if b, ok := loopEnv.bindings[name]; ok {
					b.value = v
				}
			}
		}

		for _, post := range stmt.Post {
			cx.evalStmt(loopEnv, post)
			if cx.ShouldStopEvaluation() {
				return
			}
		}
	}
}
