package skiff

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Realm holds the standard prototypes, the global object and the
// microtask queue. Realm state is shared by every context evaluating
// against it and is treated as read-mostly.
type Realm struct {
	ObjectProto         *Object
	FunctionProto       *Object
	ArrayProto          *Object
	StringProto         *Object
	NumberProto         *Object
	BooleanProto        *Object
	BigIntProto         *Object
	SymbolProto         *Object
	RegExpProto         *Object
	ErrorProto          *Object
	TypeErrorProto      *Object
	ReferenceErrorProto *Object
	SyntaxErrorProto    *Object
	RangeErrorProto     *Object
	IteratorProto       *Object
	GeneratorProto      *Object
	PromiseProto        *Object

	Global *Object

	SymIterator      *Symbol
	SymAsyncIterator *Symbol
	SymToStringTag   *Symbol

	// Stdout receives the output of the print builtin.
	Stdout io.Writer

	jobs []func()
}

// NewRealm builds a realm with the intrinsics the evaluator and its
// tests rely on. Anything beyond that minimal library is the host's
// business.
func NewRealm() *Realm {
	r := &Realm{
		Stdout:           os.Stdout,
		SymIterator:      NewSymbol("Symbol.iterator"),
		SymAsyncIterator: NewSymbol("Symbol.asyncIterator"),
		SymToStringTag:   NewSymbol("Symbol.toStringTag"),
	}

	r.ObjectProto = NewObject(nil)
	r.FunctionProto = NewObject(r.ObjectProto)
	r.FunctionProto.class = "Function"
	r.ArrayProto = NewObject(r.ObjectProto)
	r.StringProto = NewObject(r.ObjectProto)
	r.NumberProto = NewObject(r.ObjectProto)
	r.BooleanProto = NewObject(r.ObjectProto)
	r.BigIntProto = NewObject(r.ObjectProto)
	r.SymbolProto = NewObject(r.ObjectProto)
	r.RegExpProto = NewObject(r.ObjectProto)
	r.ErrorProto = NewObject(r.ObjectProto)
	r.TypeErrorProto = NewObject(r.ErrorProto)
	r.ReferenceErrorProto = NewObject(r.ErrorProto)
	r.SyntaxErrorProto = NewObject(r.ErrorProto)
	r.RangeErrorProto = NewObject(r.ErrorProto)
	r.IteratorProto = NewObject(r.ObjectProto)
	r.GeneratorProto = NewObject(r.IteratorProto)
	r.PromiseProto = NewObject(r.ObjectProto)

	r.Global = NewObject(r.ObjectProto)

	r.setupObjectProto()
	r.setupFunctionProto()
	r.setupArrayProto()
	r.setupErrorProtos()
	r.setupIteratorProtos()
	r.setupGeneratorProto()
	r.setupPromise()
	r.setupGlobal()

	return r
}

// EnqueueJob appends a microtask; DrainJobs runs the queue to empty.
func (r *Realm) EnqueueJob(job func()) {
	r.jobs = append(r.jobs, job)
}

func (r *Realm) DrainJobs() {
	for len(r.jobs) > 0 {
		job := r.jobs[0]
		r.jobs = r.jobs[1:]
		job()
	}
}

func (r *Realm) defineMethod(target *Object, name string, arity int, fn NativeFunc) {
	target.defineOrdered(NameKey(name), methodProperty(r.NewNativeFunction(name, arity, fn)))
}

func (r *Realm) setupObjectProto() {
	r.defineMethod(r.ObjectProto, "toString", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		obj, ok := asObject(this)
		if !ok {
			return String("[object Object]"), nil
		}
		if tag, found, _ := obj.TryGetProperty(cx, SymbolKey(cx.Realm.SymToStringTag)); found {
			if s, isStr := tag.(String); isStr {
				return String("[object " + string(s) + "]"), nil
			}
		}
		return String("[object " + obj.class + "]"), nil
	})
	r.defineMethod(r.ObjectProto, "valueOf", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		return this, nil
	})
	r.defineMethod(r.ObjectProto, "hasOwnProperty", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		obj, ok := asObject(this)
		if !ok || len(args) == 0 {
			return Boolean(false), nil
		}
		key, err := cx.toPropertyKeyErr(args[0])
		if err != nil {
			return nil, err
		}
		return Boolean(obj.HasOwnProperty(key)), nil
	})
}

func (r *Realm) setupFunctionProto() {
	r.defineMethod(r.FunctionProto, "call", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		fn, ok := asObject(this)
		if !ok || !fn.IsCallable() {
			return nil, cx.Throw(r.NewTypeError("Function.prototype.call: this is not callable"))
		}
		var forcedThis Value = Undefined{}
		if len(args) > 0 {
			forcedThis = args[0]
			args = args[1:]
		} else {
			args = nil
		}
		return fn.Invoke(cx, forcedThis, args)
	})
	r.defineMethod(r.FunctionProto, "apply", 2, func(cx *Context, this Value, args []Value) (Value, error) {
		fn, ok := asObject(this)
		if !ok || !fn.IsCallable() {
			return nil, cx.Throw(r.NewTypeError("Function.prototype.apply: this is not callable"))
		}
		var forcedThis Value = Undefined{}
		var callArgs []Value
		if len(args) > 0 {
			forcedThis = args[0]
		}
		if len(args) > 1 {
			if arr, ok := asObject(args[1]); ok && arr.arrayPart != nil {
				callArgs = append(callArgs, arr.arrayPart...)
			}
		}
		return fn.Invoke(cx, forcedThis, callArgs)
	})
	r.defineMethod(r.FunctionProto, "bind", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		fn, ok := asObject(this)
		if !ok || !fn.IsCallable() {
			return nil, cx.Throw(r.NewTypeError("Function.prototype.bind: this is not callable"))
		}
		var forcedThis Value = Undefined{}
		var bound []Value
		if len(args) > 0 {
			forcedThis = args[0]
			bound = append(bound, args[1:]...)
		}
		wrapper := r.NewNativeFunction("bound "+fn.fn.name, 0, func(cx *Context, _ Value, callArgs []Value) (Value, error) {
			return fn.Invoke(cx, forcedThis, append(append([]Value{}, bound...), callArgs...))
		})
		return wrapper, nil
	})
}

func (r *Realm) setupArrayProto() {
	r.ArrayProto.class = "Array"
	r.defineMethod(r.ArrayProto, "push", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		arr, ok := asObject(this)
		if !ok || arr.arrayPart == nil {
			return nil, cx.Throw(r.NewTypeError("Array.prototype.push called on a non-array"))
		}
		arr.arrayPart = append(arr.arrayPart, args...)
		return Number(len(arr.arrayPart)), nil
	})
	r.defineMethod(r.ArrayProto, "map", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		arr, ok := asObject(this)
		if !ok || arr.arrayPart == nil {
			return nil, cx.Throw(r.NewTypeError("Array.prototype.map called on a non-array"))
		}
		if len(args) == 0 {
			return nil, cx.Throw(r.NewTypeError("Array.prototype.map: callback is not a function"))
		}
		cb, ok := asObject(args[0])
		if !ok || !cb.IsCallable() {
			return nil, cx.Throw(r.NewTypeError("Array.prototype.map: callback is not a function"))
		}
		out := r.NewArray()
		for i, item := range arr.arrayPart {
			mapped, err := cb.Invoke(cx, Undefined{}, []Value{item, Number(i), arr})
			if err != nil {
				return nil, err
			}
			out.arrayPart = append(out.arrayPart, mapped)
		}
		return out, nil
	})
	r.defineMethod(r.ArrayProto, "join", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		arr, ok := asObject(this)
		if !ok || arr.arrayPart == nil {
			return nil, cx.Throw(r.NewTypeError("Array.prototype.join called on a non-array"))
		}
		sep := ","
		if len(args) > 0 && !isUndefined(args[0]) {
			s, err := cx.toStringErr(args[0])
			if err != nil {
				return nil, err
			}
			sep = string(s)
		}
		parts := make([]string, len(arr.arrayPart))
		for i, item := range arr.arrayPart {
			if isNullish(item) {
				continue
			}
			s, err := cx.toStringErr(item)
			if err != nil {
				return nil, err
			}
			parts[i] = string(s)
		}
		return String(strings.Join(parts, sep)), nil
	})
	r.defineMethod(r.ArrayProto, "toString", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		arr, ok := asObject(this)
		if !ok || arr.arrayPart == nil {
			return String(""), nil
		}
		join, err := arr.GetProperty(cx, NameKey("join"))
		if err != nil {
			return nil, err
		}
		if fn, ok := asObject(join); ok && fn.IsCallable() {
			return fn.Invoke(cx, this, nil)
		}
		return String(""), nil
	})
}

func (r *Realm) setupErrorProtos() {
	protos := map[string]*Object{
		"Error":          r.ErrorProto,
		"TypeError":      r.TypeErrorProto,
		"ReferenceError": r.ReferenceErrorProto,
		"SyntaxError":    r.SyntaxErrorProto,
		"RangeError":     r.RangeErrorProto,
	}
	for name, proto := range protos {
		proto.defineOrdered(NameKey("name"), &Property{Value: String(name), Writable: true, Configurable: true})
		proto.defineOrdered(NameKey("message"), &Property{Value: String(""), Writable: true, Configurable: true})
	}
	r.defineMethod(r.ErrorProto, "toString", 0, func(cx *Context, this Value, args []Value) (Value, error) {
		obj, ok := asObject(this)
		if !ok {
			return String("Error"), nil
		}
		name, _ := obj.GetProperty(cx, NameKey("name"))
		msg, _ := obj.GetProperty(cx, NameKey("message"))
		nameStr, _ := cx.toStringErr(name)
		msgStr, _ := cx.toStringErr(msg)
		if msgStr == "" {
			return nameStr, nil
		}
		return nameStr + ": " + msgStr, nil
	})
}

func (r *Realm) setupIteratorProtos() {
	// %IteratorPrototype%[Symbol.iterator] returns the receiver so
	// iterators are themselves iterable.
	r.IteratorProto.DefineProperty(SymbolKey(r.SymIterator), methodProperty(
		r.NewNativeFunction("[Symbol.iterator]", 0, func(cx *Context, this Value, args []Value) (Value, error) {
			return this, nil
		})))

	// Array iterator: values in index order.
	r.ArrayProto.DefineProperty(SymbolKey(r.SymIterator), methodProperty(
		r.NewNativeFunction("values", 0, func(cx *Context, this Value, args []Value) (Value, error) {
			arr, ok := asObject(this)
			if !ok {
				return nil, cx.Throw(r.NewTypeError("array iterator requires an array"))
			}
			index := 0
			iter := NewObject(r.IteratorProto)
			iter.defineOrdered(NameKey("next"), methodProperty(
				r.NewNativeFunction("next", 0, func(cx *Context, _ Value, _ []Value) (Value, error) {
					if arr.arrayPart == nil || index >= len(arr.arrayPart) {
						return r.NewIterResult(Undefined{}, true), nil
					}
					v := arr.arrayPart[index]
					index++
					return r.NewIterResult(v, false), nil
				})))
			return iter, nil
		})))
}

// NewIterResult builds an iterator-protocol result object.
func (r *Realm) NewIterResult(value Value, done bool) *Object {
	o := NewObject(r.ObjectProto)
	o.defineOrdered(NameKey("value"), DataProperty(value))
	o.defineOrdered(NameKey("done"), DataProperty(Boolean(done)))
	return o
}

func (r *Realm) setupGlobal() {
	g := r.Global
	g.defineOrdered(NameKey("globalThis"), DataProperty(g))
	g.defineOrdered(NameKey("undefined"), &Property{Value: Undefined{}})
	g.defineOrdered(NameKey("NaN"), &Property{Value: Number(nan())})
	g.defineOrdered(NameKey("Infinity"), &Property{Value: Number(inf())})

	symbolObj := r.NewNativeFunction("Symbol", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		desc := ""
		if len(args) > 0 && !isUndefined(args[0]) {
			s, err := cx.toStringErr(args[0])
			if err != nil {
				return nil, err
			}
			desc = string(s)
		}
		return NewSymbol(desc), nil
	})
	symbolObj.defineOrdered(NameKey("iterator"), &Property{Value: r.SymIterator})
	symbolObj.defineOrdered(NameKey("asyncIterator"), &Property{Value: r.SymAsyncIterator})
	symbolObj.defineOrdered(NameKey("toStringTag"), &Property{Value: r.SymToStringTag})
	g.defineOrdered(NameKey("Symbol"), methodProperty(symbolObj))

	objectCtor := r.NewNativeFunction("Object", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		if len(args) == 0 || isNullish(args[0]) {
			return NewObject(r.ObjectProto), nil
		}
		return cx.toObject(args[0])
	})
	objectCtor.defineOrdered(NameKey("prototype"), &Property{Value: r.ObjectProto})
	r.defineMethod(objectCtor, "keys", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		out := r.NewArray()
		if len(args) > 0 {
			if obj, ok := asObject(args[0]); ok {
				for _, k := range obj.OwnKeysInOrder(true) {
					out.arrayPart = append(out.arrayPart, String(k))
				}
			}
		}
		return out, nil
	})
	r.defineMethod(objectCtor, "freeze", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return Undefined{}, nil
		}
		if obj, ok := asObject(args[0]); ok {
			r.Freeze(obj)
		}
		return args[0], nil
	})
	r.defineMethod(objectCtor, "setPrototypeOf", 2, func(cx *Context, this Value, args []Value) (Value, error) {
		if len(args) < 2 {
			return Undefined{}, nil
		}
		obj, ok := asObject(args[0])
		if !ok {
			return args[0], nil
		}
		if proto, isObj := asObject(args[1]); isObj {
			obj.SetPrototype(proto)
		} else if _, isNull := args[1].(Null); isNull {
			obj.SetPrototype(nil)
		}
		return args[0], nil
	})
	r.defineMethod(objectCtor, "getPrototypeOf", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		if len(args) > 0 {
			if obj, ok := asObject(args[0]); ok {
				if obj.proto != nil {
					return obj.proto, nil
				}
			}
		}
		return Null{}, nil
	})
	g.defineOrdered(NameKey("Object"), methodProperty(objectCtor))

	arrayCtor := r.NewNativeFunction("Array", 1, func(cx *Context, this Value, args []Value) (Value, error) {
		return r.NewArray(args...), nil
	})
	arrayCtor.defineOrdered(NameKey("prototype"), &Property{Value: r.ArrayProto})
	g.defineOrdered(NameKey("Array"), methodProperty(arrayCtor))

	for name, proto := range map[string]*Object{
		"Error":          r.ErrorProto,
		"TypeError":      r.TypeErrorProto,
		"ReferenceError": r.ReferenceErrorProto,
		"SyntaxError":    r.SyntaxErrorProto,
		"RangeError":     r.RangeErrorProto,
	} {
		proto := proto
		ctor := r.NewNativeFunction(name, 1, func(cx *Context, this Value, args []Value) (Value, error) {
			msg := ""
			if len(args) > 0 && !isUndefined(args[0]) {
				s, err := cx.toStringErr(args[0])
				if err != nil {
					return nil, err
				}
				msg = string(s)
			}
			return r.newErrorWithProto(proto, msg), nil
		})
		ctor.defineOrdered(NameKey("prototype"), &Property{Value: proto})
		proto.defineOrdered(NameKey("constructor"), methodProperty(ctor))
		g.defineOrdered(NameKey(name), methodProperty(ctor))
	}

	g.defineOrdered(NameKey("print"), methodProperty(
		r.NewNativeFunction("print", 1, func(cx *Context, this Value, args []Value) (Value, error) {
			parts := make([]string, len(args))
			for i, arg := range args {
				if s, ok := arg.(String); ok {
					parts[i] = string(s)
					continue
				}
				s, err := cx.toStringErr(arg)
				if err != nil {
					return nil, err
				}
				parts[i] = string(s)
			}
			fmt.Fprintln(r.Stdout, strings.Join(parts, " "))
			return Undefined{}, nil
		})))
}

// Freeze makes every own slot non-writable, non-configurable and the
// object non-extensible.
func (r *Realm) Freeze(obj *Object) {
	for _, p := range obj.props {
		p.Writable = false
		p.Configurable = false
	}
	obj.PreventExtensions()
}

// ---------------------------------------------------------------------------
// error creation (the standard-library collaborator surface)

func (r *Realm) newErrorWithProto(proto *Object, msg string) *Object {
	e := NewObject(proto)
	e.class = "Error"
	e.defineOrdered(NameKey("message"), &Property{Value: String(msg), Writable: true, Configurable: true})
	return e
}

func (r *Realm) NewError(msg string) *Object          { return r.newErrorWithProto(r.ErrorProto, msg) }
func (r *Realm) NewTypeError(msg string) *Object      { return r.newErrorWithProto(r.TypeErrorProto, msg) }
func (r *Realm) NewReferenceError(msg string) *Object { return r.newErrorWithProto(r.ReferenceErrorProto, msg) }
func (r *Realm) NewSyntaxError(msg string) *Object    { return r.newErrorWithProto(r.SyntaxErrorProto, msg) }
func (r *Realm) NewRangeError(msg string) *Object     { return r.newErrorWithProto(r.RangeErrorProto, msg) }

// NewRegExpLiteral materializes a regex literal value. Matching is the
// host library's business; the evaluator only carries pattern and
// flags.
func (r *Realm) NewRegExpLiteral(pattern, flags string) *Object {
	o := NewObject(r.RegExpProto)
	o.class = "RegExp"
	o.regexp = &regexpPart{Pattern: pattern, Flags: flags}
	o.defineOrdered(NameKey("source"), &Property{Value: String(pattern)})
	o.defineOrdered(NameKey("flags"), &Property{Value: String(flags)})
	return o
}

// context-side shortcuts: set a throw completion with a fresh error.

func (cx *Context) throwTypeError(format string, args ...any) {
	cx.SetThrow(cx.Realm.NewTypeError(fmt.Sprintf(format, args...)))
}

func (cx *Context) throwReferenceError(format string, args ...any) {
	cx.SetThrow(cx.Realm.NewReferenceError(fmt.Sprintf(format, args...)))
}

func (cx *Context) throwSyntaxError(format string, args ...any) {
	cx.SetThrow(cx.Realm.NewSyntaxError(fmt.Sprintf(format, args...)))
}

func (cx *Context) throwRangeError(format string, args ...any) {
	cx.SetThrow(cx.Realm.NewRangeError(fmt.Sprintf(format, args...)))
}
