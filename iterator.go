package skiff

import "github.com/skiffjs/skiff/ast"

// hostEnumerator is the raw host-side iteration path: dense arrays and
// for-in key walks skip the full iterator protocol.
type hostEnumerator interface {
	MoveNext() bool
	Current() Value
}

type sliceEnumerator struct {
	items []Value
	pos   int
}

func (e *sliceEnumerator) MoveNext() bool {
	if e.pos >= len(e.items) {
		return false
	}
	e.pos++
	return true
}

func (e *sliceEnumerator) Current() Value { return e.items[e.pos-1] }

// iterRecord tracks one driven iteration source: either a JS iterator
// object or a host enumerator.
type iterRecord struct {
	obj      *Object
	nextFn   *Object
	hostEnum hostEnumerator
	async    bool
	done     bool
}

// getIterator resolves the iteration protocol on value. In async mode
// Symbol.asyncIterator is consulted first, falling back to the sync
// iterator. Dense arrays without an overridden iterator could take the
// host path; the JS protocol is authoritative when present.
func (cx *Context) getIterator(value Value, async bool) *iterRecord {
	obj, err := cx.toObject(value)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return nil
	}

	var method Value = Undefined{}
	if async {
		method, err = obj.GetProperty(cx, SymbolKey(cx.Realm.SymAsyncIterator))
		if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
			return nil
		}
	}
	if isNullish(method) || isUndefined(method) {
		method, err = obj.GetProperty(cx, SymbolKey(cx.Realm.SymIterator))
		if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
			return nil
		}
	}

	if fn, ok := asObject(method); ok && fn.IsCallable() {
		iterVal, err := fn.Invoke(cx, obj, nil)
		if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
			return nil
		}
		iterObj, ok := asObject(iterVal)
		if !ok {
			cx.throwTypeError("Result of the Symbol.iterator method is not an object")
			return nil
		}
		nextVal, err := iterObj.GetProperty(cx, NameKey("next"))
		if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
			return nil
		}
		nextFn, ok := asObject(nextVal)
		if !ok || !nextFn.IsCallable() {
			cx.throwTypeError("The iterator's next method is not callable")
			return nil
		}
		return &iterRecord{obj: iterObj, nextFn: nextFn, async: async}
	}

	if obj.arrayPart != nil {
		return &iterRecord{hostEnum: &sliceEnumerator{items: obj.arrayPart}, async: async}
	}

	cx.throwTypeError("%s is not iterable", InspectValue(value))
	return nil
}

// step advances the iterator once. The bool result is false when the
// source reported done; the record's done flag is updated.
func (it *iterRecord) step(cx *Context) (Value, bool) {
	if it.done {
		return Undefined{}, false
	}
	if err := cx.CheckCancellation(); err != nil {
		cx.setHostError(err)
		it.done = true
		return Undefined{}, false
	}

	if it.hostEnum != nil {
		if !it.hostEnum.MoveNext() {
			it.done = true
			return Undefined{}, false
		}
		return it.hostEnum.Current(), true
	}

	result, err := it.nextFn.Invoke(cx, it.obj, nil)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		it.done = true
		return Undefined{}, false
	}
	return it.settleResult(cx, result)
}

// resume advances a delegated iterator through next/throw/return. The
// last result reports whether the method existed at all.
func (it *iterRecord) resume(cx *Context, method string, arg Value) (Value, bool, bool) {
	if it.obj == nil {
		// host enumerators expose no throw/return surface
		return Undefined{}, false, false
	}
	fnVal, err := it.obj.GetProperty(cx, NameKey(method))
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}, false, false
	}
	fn, ok := asObject(fnVal)
	if !ok || !fn.IsCallable() {
		return Undefined{}, false, false
	}
	result, err := fn.Invoke(cx, it.obj, []Value{arg})
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		it.done = true
		return Undefined{}, false, true
	}
	v, more := it.settleResult(cx, result)
	return v, more, true
}

// settleResult validates and unpacks an iterator-result object,
// awaiting thenables first in async mode.
func (it *iterRecord) settleResult(cx *Context, result Value) (Value, bool) {
	if it.async {
		settled, ok := cx.tryAwaitPromiseSync(result)
		if cx.ShouldStopEvaluation() {
			it.done = true
			return Undefined{}, false
		}
		if ok {
			result = settled
		}
	}

	resObj, ok := asObject(result)
	if !ok {
		it.done = true
		cx.throwTypeError("Iterator result %s is not an object", InspectValue(result))
		return Undefined{}, false
	}

	doneVal, err := resObj.GetProperty(cx, NameKey("done"))
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		it.done = true
		return Undefined{}, false
	}
	value, err := resObj.GetProperty(cx, NameKey("value"))
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		it.done = true
		return Undefined{}, false
	}

	if it.async {
		// async-from-sync: element values settle too
		settledV, wasPromise := cx.tryAwaitPromiseSync(value)
		if cx.ShouldStopEvaluation() {
			it.done = true
			return Undefined{}, false
		}
		if wasPromise {
			value = settledV
		}
	}

	if cx.toBoolean(doneVal) {
		it.done = true
		return value, false
	}
	return value, true
}

// iteratorClose invokes return() on the source, preserving the active
// completion. A throw completion in flight suppresses errors raised by
// return(); otherwise a non-object result is a TypeError.
func (cx *Context) iteratorClose(it *iterRecord) {
	if it == nil || it.done || it.obj == nil {
		return
	}
	it.done = true

	saved := cx.snapshotSignal()

	retVal, err := it.obj.GetProperty(cx, NameKey("return"))
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		// an originating throw wins over anything close produced
		if saved.signal == SignalThrow {
			cx.ClearSignal()
			cx.restoreSignal(saved)
		}
		return
	}

	retFn, ok := asObject(retVal)
	if !ok || !retFn.IsCallable() {
		cx.restoreSignal(saved)
		return
	}

	result, err := retFn.Invoke(cx, it.obj, nil)
	if saved.signal == SignalThrow {
		cx.ClearSignal()
		cx.restoreSignal(saved)
		return
	}
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return
	}
	if _, ok := asObject(result); !ok {
		cx.throwTypeError("Iterator result %s is not an object", InspectValue(result))
		return
	}
	cx.restoreSignal(saved)
}

// ---------------------------------------------------------------------------
// for-of / for-await-of driver

func (cx *Context) runForOf(env *Environment, stmt *ast.ForOfStmt, label string) {
	iterable := cx.evalExpr(env, stmt.Iterable)
	if cx.ShouldStopEvaluation() {
		return
	}

	iter := cx.getIterator(iterable, stmt.Await)
	if cx.ShouldStopEvaluation() || iter == nil {
		return
	}

	for {
		if err := cx.CheckCancellation(); err != nil {
			cx.setHostError(err)
			return
		}

		v, more := iter.step(cx)
		if cx.ShouldStopEvaluation() {
			return
		}
		if !more {
			return
		}

		// let/const targets observe a fresh binding every iteration
		iterEnv := env
		if stmt.Decl == ast.DeclLet || stmt.Decl == ast.DeclConst {
			iterEnv = NewEnvironment(env)
			iterEnv.IsLexical = true
			declarePatternLexicals(iterEnv, stmt.Target, stmt.Decl)
		}

		switch stmt.Decl {
		case ast.DeclNone:
			cx.bindPattern(iterEnv, stmt.Target, v, bindAssign)
		case ast.DeclVar:
			cx.bindPattern(iterEnv, stmt.Target, v, bindDeclare(BindVar))
		default:
			cx.bindPattern(iterEnv, stmt.Target, v, bindDeclare(bindKindOf(stmt.Decl)))
		}
		if cx.ShouldStopEvaluation() {
			cx.iteratorClose(iter)
			return
		}

		cx.evalStmt(iterEnv, stmt.Body)

		switch {
		case cx.TryClearContinue(label):
			continue
		case cx.TryClearBreak(label):
			cx.iteratorClose(iter)
			return
		case cx.IsYield():
			// generator suspension: the source stays open for the
			// replayed turn
			return
		case cx.ShouldStopEvaluation():
			cx.iteratorClose(iter)
			return
		}
	}
}

func bindKindOf(kind ast.DeclKind) BindingKind {
	switch kind {
	case ast.DeclLet:
		return BindLet
	case ast.DeclConst:
		return BindConst
	default:
		return BindVar
	}
}

// declarePatternLexicals pre-creates uninitialized let/const bindings
// for every name a pattern introduces.
func declarePatternLexicals(env *Environment, pat ast.Pattern, kind ast.DeclKind) {
	for _, name := range patternNames(pat) {
		env.Define(name, nil, bindKindOf(kind), true)
	}
}

// patternNames lists the names a binding pattern introduces.
func patternNames(pat ast.Pattern) []string {
	var out []string
	var walk func(p ast.Pattern)
	walk = func(p ast.Pattern) {
		switch spec := p.(type) {
		case *ast.Identifier:
			out = append(out, spec.Name)
		case *ast.ArrayPattern:
			for _, elem := range spec.Elements {
				if elem.Target != nil {
					walk(elem.Target)
				}
			}
		case *ast.ObjectPattern:
			for _, prop := range spec.Props {
				walk(prop.Target)
			}
			if spec.Rest != nil {
				walk(spec.Rest)
			}
		}
	}
	walk(pat)
	return out
}

// ---------------------------------------------------------------------------
// for-in driver

func (cx *Context) runForIn(env *Environment, stmt *ast.ForInStmt, label string) {
	source := cx.evalExpr(env, stmt.Object)
	if cx.ShouldStopEvaluation() {
		return
	}
	if isNullish(source) {
		return
	}
	obj, err := cx.toObject(source)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return
	}

	keys := collectForInKeys(obj)
	enum := &sliceEnumerator{items: keys}

	for enum.MoveNext() {
		if err := cx.CheckCancellation(); err != nil {
			cx.setHostError(err)
			return
		}

		key := enum.Current()

		iterEnv := env
		if stmt.Decl == ast.DeclLet || stmt.Decl == ast.DeclConst {
			iterEnv = NewEnvironment(env)
			iterEnv.IsLexical = true
			declarePatternLexicals(iterEnv, stmt.Target, stmt.Decl)
		}

		switch stmt.Decl {
		case ast.DeclNone:
			cx.bindPattern(iterEnv, stmt.Target, key, bindAssign)
		case ast.DeclVar:
			cx.bindPattern(iterEnv, stmt.Target, key, bindDeclare(BindVar))
		default:
			cx.bindPattern(iterEnv, stmt.Target, key, bindDeclare(bindKindOf(stmt.Decl)))
		}
		if cx.ShouldStopEvaluation() {
			return
		}

		cx.evalStmt(iterEnv, stmt.Body)

		switch {
		case cx.TryClearContinue(label):
			continue
		case cx.TryClearBreak(label):
			return
		case cx.ShouldStopEvaluation():
			return
		}
	}
}

// collectForInKeys walks the prototype chain gathering enumerable
// string keys in order, own keys first, shadowed names skipped.
func collectForInKeys(obj *Object) []Value {
	var out []Value
	seen := make(map[string]struct{})
	for o := obj; o != nil; o = o.proto {
		for _, name := range o.OwnKeysInOrder(false) {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if p, ok := o.GetOwnPropertyDescriptor(NameKey(name)); ok && !p.Enumerable {
				continue
			}
			out = append(out, String(name))
		}
	}
	return out
}
