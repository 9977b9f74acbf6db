package skiff

import "errors"

// ErrPendingPromise reports an await on a promise that nothing on the
// microtask queue can ever settle; with a single-threaded cooperative
// context that is a host-level failure, not a JS condition.
var ErrPendingPromise = errors.New("await on a promise that never settles")

type promiseStatus uint8

const (
	promisePending promiseStatus = iota
	promiseFulfilled
	promiseRejected
)

type promiseState struct {
	status    promiseStatus
	value     Value
	reactions []func(status promiseStatus, v Value)
}

func (r *Realm) newPromiseObject() *Object {
	o := NewObject(r.PromiseProto)
	o.class = "Promise"
	o.promise = &promiseState{}
	return o
}

func (r *Realm) NewResolvedPromise(v Value) *Object {
	// resolving with a promise adopts its state
	if obj, ok := asObject(v); ok && obj.promise != nil {
		return obj
	}
	o := r.newPromiseObject()
	o.promise.status = promiseFulfilled
	o.promise.value = v
	return o
}

func (r *Realm) NewRejectedPromise(v Value) *Object {
	o := r.newPromiseObject()
	o.promise.status = promiseRejected
	o.promise.value = v
	return o
}

func (p *promiseState) settle(r *Realm, status promiseStatus, v Value) {
	if p.status != promisePending {
		return
	}
	p.status = status
	p.value = v
	for _, reaction := range p.reactions {
		reaction := reaction
		r.EnqueueJob(func() { reaction(status, v) })
	}
	p.reactions = nil
}

func (r *Realm) setupPromise() {
	ctor := r.NewNativeFunction("Promise", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return nil, cx.Throw(r.NewTypeError("Promise resolver is not a function"))
		}
		executor, ok := asObject(args[0])
		if !ok || !executor.IsCallable() {
			return nil, cx.Throw(r.NewTypeError("Promise resolver is not a function"))
		}
		p := r.newPromiseObject()
		resolve := r.NewNativeFunction("resolve", 1, func(cx *Context, _ Value, rargs []Value) (Value, error) {
			var v Value = Undefined{}
			if len(rargs) > 0 {
				v = rargs[0]
			}
			p.promise.settle(r, promiseFulfilled, v)
			return Undefined{}, nil
		})
		reject := r.NewNativeFunction("reject", 1, func(cx *Context, _ Value, rargs []Value) (Value, error) {
			var v Value = Undefined{}
			if len(rargs) > 0 {
				v = rargs[0]
			}
			p.promise.settle(r, promiseRejected, v)
			return Undefined{}, nil
		})
		if _, err := executor.Invoke(cx, Undefined{}, []Value{resolve, reject}); err != nil {
			if ts, isThrow := err.(*ThrowSignal); isThrow {
				p.promise.settle(r, promiseRejected, ts.Value)
			} else {
				return nil, err
			}
		}
		return p, nil
	})
	ctor.defineOrdered(NameKey("prototype"), &Property{Value: r.PromiseProto})
	r.PromiseProto.defineOrdered(NameKey("constructor"), methodProperty(ctor))

	r.defineMethod(ctor, "resolve", 1, func(cx *Context, _ Value, args []Value) (Value, error) {
		var v Value = Undefined{}
		if len(args) > 0 {
			v = args[0]
		}
		return r.NewResolvedPromise(v), nil
	})
	r.defineMethod(ctor, "reject", 1, func(cx *Context, _ Value, args []Value) (Value, error) {
		var v Value = Undefined{}
		if len(args) > 0 {
			v = args[0]
		}
		return r.NewRejectedPromise(v), nil
	})
	r.Global.defineOrdered(NameKey("Promise"), methodProperty(ctor))

	r.defineMethod(r.PromiseProto, "then", 2, func(cx *Context, this Value, args []Value) (Value, error) {
		obj, ok := asObject(this)
		if !ok || obj.promise == nil {
			return nil, cx.Throw(r.NewTypeError("Promise.prototype.then called on a non-promise"))
		}
		var onOK, onErr *Object
		if len(args) > 0 {
			if fn, is := asObject(args[0]); is && fn.IsCallable() {
				onOK = fn
			}
		}
		if len(args) > 1 {
			if fn, is := asObject(args[1]); is && fn.IsCallable() {
				onErr = fn
			}
		}

		next := r.newPromiseObject()
		react := func(status promiseStatus, v Value) {
			handler := onOK
			if status == promiseRejected {
				handler = onErr
			}
			if handler == nil {
				next.promise.settle(r, status, v)
				return
			}
			out, err := handler.Invoke(cx, Undefined{}, []Value{v})
			if ts, isThrow := err.(*ThrowSignal); isThrow {
				next.promise.settle(r, promiseRejected, ts.Value)
				return
			}
			if err != nil {
				cx.setHostError(err)
				return
			}
			if outObj, isObj := asObject(out); isObj && outObj.promise != nil {
				outObj.promise.subscribe(r, func(st promiseStatus, sv Value) {
					next.promise.settle(r, st, sv)
				})
				return
			}
			next.promise.settle(r, promiseFulfilled, out)
		}

		obj.promise.subscribe(r, react)
		return next, nil
	})
	r.defineMethod(r.PromiseProto, "catch", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		obj, ok := asObject(this)
		if !ok {
			return nil, cx.Throw(r.NewTypeError("Promise.prototype.catch called on a non-promise"))
		}
		thenVal, err := obj.GetProperty(cx, NameKey("then"))
		if err != nil {
			return nil, err
		}
		thenFn, ok := asObject(thenVal)
		if !ok || !thenFn.IsCallable() {
			return nil, cx.Throw(r.NewTypeError("Promise.prototype.catch: then is not callable"))
		}
		var handler Value = Undefined{}
		if len(args) > 0 {
			handler = args[0]
		}
		return thenFn.Invoke(cx, this, []Value{Undefined{}, handler})
	})
}

func (p *promiseState) subscribe(r *Realm, reaction func(status promiseStatus, v Value)) {
	if p.status != promisePending {
		status, v := p.status, p.value
		r.EnqueueJob(func() { reaction(status, v) })
		return
	}
	p.reactions = append(p.reactions, reaction)
}

// tryAwaitPromiseSync is the promise adapter: it drains the
// microtask queue until the awaited value settles. The bool result is
// false when the value was not a promise or thenable at all. Rejection
// sets a throw completion; a promise nothing can settle is a host
// error.
func (cx *Context) tryAwaitPromiseSync(v Value) (Value, bool) {
	obj, ok := asObject(v)
	if !ok {
		return Undefined{}, false
	}

	if obj.promise != nil {
		for obj.promise.status == promisePending && len(cx.Realm.jobs) > 0 {
			cx.Realm.DrainJobs()
		}
		switch obj.promise.status {
		case promiseFulfilled:
			// an adopted inner promise needs its own await
			if inner, isObj := asObject(obj.promise.value); isObj && inner.promise != nil && inner != obj {
				return cx.tryAwaitPromiseSync(inner)
			}
			return obj.promise.value, true
		case promiseRejected:
			cx.SetThrow(obj.promise.value)
			return Undefined{}, true
		default:
			cx.setHostError(ErrPendingPromise)
			return Undefined{}, true
		}
	}

	// thenable path
	thenVal, found, err := obj.TryGetProperty(cx, NameKey("then"))
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}, true
	}
	if !found {
		return Undefined{}, false
	}
	thenFn, ok := asObject(thenVal)
	if !ok || !thenFn.IsCallable() {
		return Undefined{}, false
	}

	adopted := cx.Realm.newPromiseObject()
	resolve := cx.Realm.NewNativeFunction("resolve", 1, func(cx *Context, _ Value, args []Value) (Value, error) {
		var rv Value = Undefined{}
		if len(args) > 0 {
			rv = args[0]
		}
		adopted.promise.settle(cx.Realm, promiseFulfilled, rv)
		return Undefined{}, nil
	})
	reject := cx.Realm.NewNativeFunction("reject", 1, func(cx *Context, _ Value, args []Value) (Value, error) {
		var rv Value = Undefined{}
		if len(args) > 0 {
			rv = args[0]
		}
		adopted.promise.settle(cx.Realm, promiseRejected, rv)
		return Undefined{}, nil
	})
	if _, err := thenFn.Invoke(cx, obj, []Value{resolve, reject}); cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}, true
	}
	return cx.tryAwaitPromiseSync(adopted)
}
