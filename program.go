package skiff

import (
	"context"
	"fmt"

	"github.com/skiffjs/skiff/ast"
)

// UnsupportedNodeError reports an AST shape the evaluator does not
// cover. It is a host-level failure: callers may fall back to a legacy
// engine, but it is never visible to JS code.
type UnsupportedNodeError struct {
	Node ast.Node
}

func (e *UnsupportedNodeError) Error() string {
	return fmt.Sprintf("unsupported AST node %T at %s", e.Node, e.Node.Span())
}

func errUnsupportedNode(node ast.Node) error {
	return &UnsupportedNodeError{Node: node}
}

// EvaluateProgram is the single entry point of the evaluator: it
// builds the execution environment, hoists top-level declarations and
// executes the program's statements.
//
// The result is the program's completion value (undefined when no
// expression statement produced one). An uncaught JS throw surfaces as
// a *ThrowSignal carrying the thrown value; cancellation and internal
// failures surface as their own host error types.
func EvaluateProgram(prog *ast.Program, env *Environment, realm *Realm, goctx context.Context, kind ExecutionKind, createStrictEnvironment bool) (Value, error) {
	opts := Options{Mode: ModeSloppyAnnexB}
	if createStrictEnvironment || prog.Strict {
		opts.Mode = ModeStrict
	}
	return EvaluateProgramWithOptions(prog, env, realm, goctx, kind, opts)
}

// EvaluateProgramWithOptions is EvaluateProgram with explicit
// evaluation switches (strictness, Annex B behavior).
func EvaluateProgramWithOptions(prog *ast.Program, env *Environment, realm *Realm, goctx context.Context, kind ExecutionKind, opts Options) (Value, error) {
	cx := NewContext(realm, goctx, opts)

	if env == nil {
		env = NewGlobalEnvironment(realm)
	}
	if opts.Mode == ModeStrict && !env.IsStrict {
		wrapped := NewEnvironment(env)
		wrapped.IsStrict = true
		wrapped.IsFunctionScope = kind == KindEval
		wrapped.globalObject = realm.Global
		wrapped.IsGlobal = env.IsGlobal
		env = wrapped
	}

	if err := cx.CheckCancellation(); err != nil {
		return nil, err
	}

	cx.pushFrame("program", prog.Span())
	defer cx.popFrame()

	cx.prepareScope(env, prog.Body, true)
	if finished, v, err := cx.finishProgram(Undefined{}); finished {
		return v, err
	}

	var completion Value = Undefined{}
	for _, stmt := range prog.Body {
		if es, ok := stmt.(*ast.ExpressionStmt); ok {
			v := cx.evalExpr(env, es.Expr)
			if !cx.ShouldStopEvaluation() {
				completion = v
			}
		} else {
			cx.evalStmt(env, stmt)
		}
		if cx.ShouldStopEvaluation() {
			break
		}
	}

	realm.DrainJobs()

	if finished, v, err := cx.finishProgram(completion); finished {
		return v, err
	}
	return completion, nil
}

// finishProgram folds the context's final state into the entry-point
// contract: throws become ThrowSignal, host errors pass through, and
// stray return/break/continue at top level are internal errors.
func (cx *Context) finishProgram(completion Value) (bool, Value, error) {
	switch {
	case cx.hostErr != nil:
		return true, nil, cx.hostErr
	case cx.IsThrow():
		return true, nil, cx.Throw(cx.TakeThrow())
	case cx.signal == SignalReturn:
		return true, nil, fmt.Errorf("illegal return statement at top level")
	case cx.signal == SignalBreak, cx.signal == SignalContinue:
		return true, nil, fmt.Errorf("illegal %s statement at top level", cx.signal)
	case cx.signal == SignalYield:
		return true, nil, fmt.Errorf("yield escaped the program body")
	}
	return false, completion, nil
}
