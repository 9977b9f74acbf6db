package skiff

import "github.com/skiffjs/skiff/ast"

// The generator model is cooperative replay: every resumption re-runs
// the body from the top with a fresh call scope. A yield tracker
// assigns each plain yield evaluation a sequential index per turn;
// indices already delivered replay their archived resume payload
// instead of suspending again, so a single top-to-bottom execution
// reaches the next suspension point.

type resumeKind uint8

const (
	resumeNext resumeKind = iota
	resumeThrow
	resumeReturn
)

// resumePayload is what a resumption carries into the suspended yield.
type resumePayload struct {
	kind  resumeKind
	value Value
}

// delegKey identifies one dynamic evaluation of a yield* expression:
// the node plus its per-turn occurrence ordinal, which is stable
// across replays.
type delegKey struct {
	node *ast.YieldExpr
	seq  int
}

// delegatedYieldState tracks one yield* delegation across turns.
type delegatedYieldState struct {
	iter   *iterRecord
	done   bool
	result Value
}

// generatorState is the replay bookkeeping carried on the context
// while a generator turn runs.
type generatorState struct {
	// payloads archives the resume payload delivered to each plain
	// yield, in suspension order.
	payloads []resumePayload
	// turnIndex counts plain yields encountered during this turn.
	turnIndex int

	delegations map[delegKey]*delegatedYieldState
	delegSeq    map[*ast.YieldExpr]int

	// incoming is this turn's resume payload; it belongs to the
	// active frontier (a plain yield archives it, a delegation routes
	// it into the inner iterator).
	incoming resumePayload

	// frontierDelegate is set when the last suspension came from a
	// yield* rather than a plain yield.
	frontierDelegate *delegatedYieldState

	async bool
}

type generatorStatus uint8

const (
	genSuspendedStart generatorStatus = iota
	genRunning
	genSuspendedYield
	genDone
)

// generatorInstance is the state behind one generator object.
type generatorInstance struct {
	fn     *Object
	this   Value
	args   []Value
	status generatorStatus
	state  *generatorState
}

// newGeneratorObject allocates the iterable result of calling a
// generator function; the body does not run yet.
func (cx *Context) newGeneratorObject(fn *Object, this Value, args []Value) *Object {
	proto := cx.Realm.GeneratorProto
	if protoVal, found, err := fn.TryGetProperty(cx, NameKey("prototype")); err == nil && found {
		if p, ok := asObject(protoVal); ok {
			proto = p
		}
	}
	obj := NewObject(proto)
	obj.class = "Generator"
	obj.generator = &generatorInstance{
		fn:   fn,
		this: this,
		args: append([]Value(nil), args...),
		state: &generatorState{
			delegations: make(map[delegKey]*delegatedYieldState),
			delegSeq:    make(map[*ast.YieldExpr]int),
			async:       fn.fn.async,
		},
	}
	return obj
}

func (r *Realm) setupGeneratorProto() {
	resumer := func(kind resumeKind) NativeFunc {
		return func(cx *Context, this Value, args []Value) (Value, error) {
			obj, ok := asObject(this)
			if !ok || obj.generator == nil {
				return nil, cx.Throw(cx.Realm.NewTypeError("next method called on incompatible receiver"))
			}
			var arg Value = Undefined{}
			if len(args) > 0 {
				arg = args[0]
			}
			return cx.resumeGenerator(obj.generator, resumePayload{kind: kind, value: arg})
		}
	}
	r.defineMethod(r.GeneratorProto, "next", 1, resumer(resumeNext))
	r.defineMethod(r.GeneratorProto, "return", 1, resumer(resumeReturn))
	r.defineMethod(r.GeneratorProto, "throw", 1, resumer(resumeThrow))
}

// resumeGenerator runs one turn and packages the outcome as an
// iterator result. Throws surface as ThrowSignal errors.
func (cx *Context) resumeGenerator(g *generatorInstance, payload resumePayload) (Value, error) {
	r := cx.Realm

	switch g.status {
	case genRunning:
		return nil, cx.Throw(r.NewTypeError("Generator is already running"))

	case genDone:
		switch payload.kind {
		case resumeThrow:
			return nil, cx.Throw(payload.value)
		case resumeReturn:
			return r.NewIterResult(payload.value, true), nil
		default:
			return r.NewIterResult(Undefined{}, true), nil
		}

	case genSuspendedStart:
		switch payload.kind {
		case resumeThrow:
			g.status = genDone
			return nil, cx.Throw(payload.value)
		case resumeReturn:
			g.status = genDone
			return r.NewIterResult(payload.value, true), nil
		}
		// next() falls through and starts the body

	case genSuspendedYield:
		if g.state.frontierDelegate == nil {
			// the pending plain yield receives this payload on replay
			g.state.payloads = append(g.state.payloads, payload)
		}
	}

	g.state.incoming = payload
	g.state.turnIndex = 0
	g.state.frontierDelegate = nil
	for node := range g.state.delegSeq {
		delete(g.state.delegSeq, node)
	}

	savedGen := cx.gen
	savedSignal := cx.snapshotSignal()
	cx.gen = g.state
	g.status = genRunning

	v := cx.callFunctionBody(g.fn, g.this, g.args, nil)

	cx.gen = savedGen

	switch {
	case cx.IsYield():
		yielded := cx.signalValue
		cx.ClearSignal()
		cx.restoreSignal(savedSignal)
		g.status = genSuspendedYield
		return r.NewIterResult(yielded, false), nil

	case cx.IsThrow():
		thrown := cx.TakeThrow()
		cx.restoreSignal(savedSignal)
		g.status = genDone
		return nil, cx.Throw(thrown)

	case cx.hostErr != nil:
		g.status = genDone
		return nil, cx.hostErr

	default:
		cx.restoreSignal(savedSignal)
		g.status = genDone
		return r.NewIterResult(v, true), nil
	}
}

// ---------------------------------------------------------------------------
// yield expressions

func (cx *Context) evalYield(env *Environment, expr *ast.YieldExpr) Value {
	g := cx.gen
	if g == nil {
		cx.throwSyntaxError("yield expression outside a generator body")
		return Undefined{}
	}

	if expr.Delegate {
		return cx.evalYieldDelegate(env, g, expr)
	}

	idx := g.turnIndex
	g.turnIndex++

	if idx < len(g.payloads) {
		// replayed: this yield already suspended in a past turn
		p := g.payloads[idx]
		switch p.kind {
		case resumeThrow:
			cx.SetThrow(p.value)
			return Undefined{}
		case resumeReturn:
			cx.SetReturn(p.value)
			return Undefined{}
		default:
			return p.value
		}
	}

	// frontier: evaluate the operand and suspend
	var v Value = Undefined{}
	if expr.Arg != nil {
		v = cx.evalExpr(env, expr.Arg)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
	}
	g.frontierDelegate = nil
	cx.SetYield(v)
	return Undefined{}
}

// evalYieldDelegate drives a yield* delegation. The inner iterator
// lives across turns in a per-occurrence state record; each turn routes
// the incoming resume payload to the matching inner method.
func (cx *Context) evalYieldDelegate(env *Environment, g *generatorState, expr *ast.YieldExpr) Value {
	seq := g.delegSeq[expr]
	g.delegSeq[expr] = seq + 1
	key := delegKey{node: expr, seq: seq}

	state := g.delegations[key]
	if state != nil && state.done {
		return state.result
	}

	if state == nil {
		src := cx.evalExpr(env, expr.Arg)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		iter := cx.getIterator(src, g.async)
		if cx.ShouldStopEvaluation() || iter == nil {
			return Undefined{}
		}
		state = &delegatedYieldState{iter: iter}
		g.delegations[key] = state

		// first activation: pull the first inner value
		v, more := iter.step(cx)
		if cx.ShouldStopEvaluation() {
			state.done = true
			return Undefined{}
		}
		if !more {
			state.done = true
			state.result = v
			return v
		}
		g.frontierDelegate = state
		cx.SetYield(v)
		return Undefined{}
	}

	// resumed at this delegation: forward the payload
	payload := g.incoming
	g.incoming = resumePayload{}

	switch payload.kind {
	case resumeNext:
		v, more := state.iter.step(cx)
		if cx.ShouldStopEvaluation() {
			state.done = true
			return Undefined{}
		}
		if !more {
			state.done = true
			state.result = v
			return v
		}
		g.frontierDelegate = state
		cx.SetYield(v)
		return Undefined{}

	case resumeThrow:
		v, more, found := state.iter.resume(cx, "throw", payload.value)
		if cx.ShouldStopEvaluation() {
			state.done = true
			return Undefined{}
		}
		if !found {
			// no throw on the inner iterator: close it and raise a
			// TypeError in the outer generator
			cx.iteratorClose(state.iter)
			state.done = true
			if !cx.ShouldStopEvaluation() {
				cx.throwTypeError("The iterator does not provide a 'throw' method")
			}
			return Undefined{}
		}
		if !more {
			state.done = true
			state.result = v
			return v
		}
		g.frontierDelegate = state
		cx.SetYield(v)
		return Undefined{}

	case resumeReturn:
		v, more, found := state.iter.resume(cx, "return", payload.value)
		if cx.ShouldStopEvaluation() {
			state.done = true
			return Undefined{}
		}
		if !found {
			// no return on the inner iterator: the delegation closes
			// and the outer return proceeds
			state.done = true
			state.result = payload.value
			cx.SetReturn(payload.value)
			return Undefined{}
		}
		if !more {
			state.done = true
			state.result = v
			cx.SetReturn(v)
			return Undefined{}
		}
		g.frontierDelegate = state
		cx.SetYield(v)
		return Undefined{}
	}
	panic("bug: evalYieldDelegate: unknown resume kind")
}

// ---------------------------------------------------------------------------
// await and async function bodies

// evalAwait converts a settled promise (or plain value) into the
// expression result, draining microtasks through the promise adapter.
func (cx *Context) evalAwait(env *Environment, expr *ast.AwaitExpr) Value {
	v := cx.evalExpr(env, expr.Arg)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	settled, ok := cx.tryAwaitPromiseSync(v)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	if !ok {
		return v
	}
	return settled
}

// runAsyncFunction executes an async body to completion, converting
// the outcome into a settled promise. The evaluator is single-threaded
// per context; suspension beyond settled promises is the host
// scheduler's business.
func (cx *Context) runAsyncFunction(fn *Object, this Value, args []Value) (Value, error) {
	v := cx.callFunctionBody(fn, this, args, nil)

	if cx.IsThrow() {
		return cx.Realm.NewRejectedPromise(cx.TakeThrow()), nil
	}
	if cx.hostErr != nil {
		return nil, cx.hostErr
	}
	return cx.Realm.NewResolvedPromise(v), nil
}
