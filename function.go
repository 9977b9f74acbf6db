package skiff

import "github.com/skiffjs/skiff/ast"

// makeFunction builds a function value closing over env. Method and
// accessor bodies get their home object patched in by the class and
// object-literal builders afterwards.
func (cx *Context) makeFunction(env *Environment, lit *ast.FunctionLiteral) *Object {
	r := cx.Realm

	fn := NewObject(r.FunctionProto)
	fn.class = "Function"
	info := &FunctionInfo{
		name:      lit.Name,
		strict:    lit.Strict || env.isStrictHere(),
		params:    lit.Params,
		body:      lit.Body,
		exprBody:  lit.ExprBody,
		closure:   env,
		async:     lit.Async,
		generator: lit.Generator,
		privates:  cx.currentPrivateScope(),
	}
	if lit.Arrow {
		info.thisMode = thisModeLexical
		// arrows see the super binding of the method they close over
		info.super = cx.super
	} else if info.strict {
		info.thisMode = thisModeStrict
	}
	fn.fn = info

	fn.defineOrdered(NameKey("name"), &Property{Value: String(lit.Name), Configurable: true})
	fn.defineOrdered(NameKey("length"), &Property{Value: Number(countExpectedParams(lit.Params)), Configurable: true})

	if !lit.Arrow {
		protoParent := r.ObjectProto
		if lit.Generator {
			protoParent = r.GeneratorProto
		}
		proto := NewObject(protoParent)
		if !lit.Generator {
			proto.defineOrdered(NameKey("constructor"), methodProperty(fn))
		}
		fn.defineOrdered(NameKey("prototype"), &Property{Value: proto, Writable: true, Configurable: true})
	}

	return fn
}

func countExpectedParams(params []ast.Param) int {
	n := 0
	for _, p := range params {
		if p.Rest || p.Default != nil {
			break
		}
		n++
	}
	return n
}

// Invoke calls the function with this and args. A JS throw surfaces as
// a *ThrowSignal error; the context signal is left normal either way so
// native callers compose.
func (o *Object) Invoke(cx *Context, this Value, args []Value) (Value, error) {
	return o.invoke(cx, this, args, nil)
}

// invoke additionally threads the new.target object for construct
// calls (non-nil exactly when called through `new` or super()).
func (o *Object) invoke(cx *Context, this Value, args []Value, newTarget *Object) (Value, error) {
	info := o.fn
	if info == nil {
		return nil, cx.Throw(cx.Realm.NewTypeError(InspectValue(o) + " is not a function"))
	}

	if info.native != nil {
		return info.native(cx, this, args)
	}

	if info.generator {
		if newTarget != nil {
			return nil, cx.Throw(cx.Realm.NewTypeError(info.name + " is not a constructor"))
		}
		return cx.newGeneratorObject(o, this, args), nil
	}
	if info.async {
		return cx.runAsyncFunction(o, this, args)
	}

	v := cx.callFunctionBody(o, this, args, newTarget)
	if cx.IsThrow() {
		return nil, cx.Throw(cx.TakeThrow())
	}
	if cx.hostErr != nil {
		return nil, cx.hostErr
	}
	return v, nil
}

// callFunctionBody runs a declared body to completion under the
// completion-record regime: the return completion is consumed here,
// throw and yield stay on the context for the caller.
func (cx *Context) callFunctionBody(callee *Object, this Value, args []Value, newTarget *Object) Value {
	info := callee.fn

	env := cx.newCallEnvironment(callee, this, newTarget)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	savedSuper := cx.super
	savedFn := cx.currentFn
	cx.super = info.super
	cx.currentFn = callee
	pushedPrivates := false
	if info.privates != nil && cx.currentPrivateScope() != info.privates {
		cx.pushPrivateScope(info.privates)
		pushedPrivates = true
	}
	defer func() {
		cx.super = savedSuper
		cx.currentFn = savedFn
		if pushedPrivates {
			cx.popPrivateScope()
		}
	}()

	cx.bindParameters(env, info.params, args)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	if info.thisMode != thisModeLexical {
		env.Define("arguments", cx.buildArguments(env, info, args), BindVar, false)
		if info.name != "" {
			env.Define(info.name, callee, BindFunctionName, false)
		}
	}

	// base-class constructors run instance field initializers at
	// entry; derived ones run them when super() completes
	if info.ctor == ctorBase && newTarget != nil {
		if obj, ok := asObject(this); ok {
			cx.runInstanceFields(obj, callee)
			if cx.ShouldStopEvaluation() {
				return Undefined{}
			}
		}
	}

	if info.body == nil && info.exprBody == nil {
		// synthesized default constructor
		if info.ctor == ctorDerived {
			if cx.super == nil || cx.super.ParentCtor == nil {
				cx.throwTypeError("Super constructor is not a constructor")
				return Undefined{}
			}
			cx.superConstruct(env, args)
			if cx.ShouldStopEvaluation() {
				return Undefined{}
			}
			return cx.derivedConstructorResult(env, Undefined{})
		}
		return Undefined{}
	}

	if info.exprBody != nil {
		v := cx.evalExpr(env, info.exprBody)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		return v
	}

	cx.prepareScope(env, info.body.Body, true)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	for _, stmt := range info.body.Body {
		cx.evalStmt(env, stmt)
		if cx.ShouldStopEvaluation() {
			break
		}
	}

	if cx.IsReturn() {
		v := cx.TakeReturn()
		if info.ctor == ctorDerived && newTarget != nil {
			return cx.derivedConstructorResult(env, v)
		}
		return v
	}
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	if newTarget != nil && info.ctor == ctorDerived {
		return cx.derivedConstructorResult(env, Undefined{})
	}
	return Undefined{}
}

// derivedConstructorResult applies the derived-constructor rule: a
// non-object return value yields the (super-initialized) this, which
// must exist by then.
func (cx *Context) derivedConstructorResult(env *Environment, ret Value) Value {
	if obj, ok := asObject(ret); ok {
		return obj
	}
	this := env.ThisValue(cx)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	return this
}

// newCallEnvironment builds the call-frame scope and its this binding.
func (cx *Context) newCallEnvironment(callee *Object, this Value, newTarget *Object) *Environment {
	info := callee.fn
	env := NewEnvironment(info.closure)
	env.IsFunctionScope = true
	env.IsStrict = info.strict || (info.closure != nil && info.closure.isStrictHere())

	switch info.thisMode {
	case thisModeLexical:
		// arrows: this resolves through the closure chain
	default:
		if info.ctor == ctorDerived && newTarget != nil {
			// this materializes when super() runs
			env.bindThis(nil, false)
			break
		}
		if !env.IsStrict {
			if isNullish(this) {
				this = cx.Realm.Global
			} else if _, isObj := asObject(this); !isObj {
				boxed, err := cx.toObject(this)
				if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
					return env
				}
				this = boxed
			}
		}
		env.bindThis(this, true)
	}
	return env
}

// bindParameters binds formals in declared order: lazy defaults with
// NamedEvaluation, rest collection, destructuring.
func (cx *Context) bindParameters(env *Environment, params []ast.Param, args []Value) {
	for i, param := range params {
		if param.Rest {
			rest := cx.Realm.NewArray()
			if i < len(args) {
				rest.arrayPart = append(rest.arrayPart, args[i:]...)
			}
			cx.bindParam(env, param, rest)
			return
		}

		var v Value = Undefined{}
		if i < len(args) {
			v = args[i]
		}
		if param.Default != nil && isUndefined(v) {
			v = cx.applyDefault(env, v, param.Default, patternBoundName(param.Target))
			if cx.ShouldStopEvaluation() {
				return
			}
		}
		cx.bindParam(env, param, v)
		if cx.ShouldStopEvaluation() {
			return
		}
	}
}

func (cx *Context) bindParam(env *Environment, param ast.Param, v Value) {
	if id, ok := param.Target.(*ast.Identifier); ok {
		env.Define(id.Name, v, BindParameter, false)
		return
	}
	for _, name := range patternNames(param.Target) {
		env.Define(name, Undefined{}, BindParameter, false)
	}
	cx.bindPattern(env, param.Target, v, bindDeclare(BindParameter))
}

// buildArguments creates the arguments object. With a simple parameter
// list in sloppy mode the indexed slots are accessor-mapped onto the
// named parameter bindings, so writes flow both ways.
func (cx *Context) buildArguments(env *Environment, info *FunctionInfo, args []Value) *Object {
	r := cx.Realm
	obj := NewObject(r.ObjectProto)
	obj.class = "Arguments"

	mapped := !info.strict && hasSimpleParams(info.params)

	for i, arg := range args {
		if mapped && i < len(info.params) {
			name := info.params[i].Target.(*ast.Identifier).Name
			getter := r.NewNativeFunction("get", 0, func(cx *Context, _ Value, _ []Value) (Value, error) {
				v, _ := env.TryGet(cx, name)
				return v, nil
			})
			setter := r.NewNativeFunction("set", 1, func(cx *Context, _ Value, setArgs []Value) (Value, error) {
				if len(setArgs) > 0 {
					env.Assign(cx, name, setArgs[0])
				}
				return Undefined{}, nil
			})
			obj.defineOrdered(NameKey(itoa(i)), &Property{
				Get: getter, Set: setter, Enumerable: true, Configurable: true,
			})
			continue
		}
		obj.defineOrdered(NameKey(itoa(i)), DataProperty(arg))
	}

	obj.defineOrdered(NameKey("length"), &Property{Value: Number(len(args)), Writable: true, Configurable: true})
	snapshot := r.NewArray(args...)
	obj.DefineProperty(SymbolKey(r.SymIterator), methodProperty(
		r.NewNativeFunction("values", 0, func(cx *Context, this Value, _ []Value) (Value, error) {
			method, err := snapshot.GetProperty(cx, SymbolKey(cx.Realm.SymIterator))
			if err != nil {
				return nil, err
			}
			fn, ok := asObject(method)
			if !ok || !fn.IsCallable() {
				return nil, cx.Throw(cx.Realm.NewTypeError("arguments is not iterable"))
			}
			return fn.Invoke(cx, snapshot, nil)
		})))
	return obj
}

func hasSimpleParams(params []ast.Param) bool {
	for _, p := range params {
		if p.Rest || p.Default != nil {
			return false
		}
		if _, ok := p.Target.(*ast.Identifier); !ok {
			return false
		}
	}
	return true
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
