package skiff

import "github.com/skiffjs/skiff/ast"

// AssignmentReference is a first-class read/write handle over a
// resolved left-hand side. Resolution evaluates the target (and a
// computed key) exactly once, so compound operators and inc/dec read
// then write without re-running side effects.
type AssignmentReference struct {
	// Name feeds NamedEvaluation: anonymous functions assigned through
	// this reference adopt it.
	Name string

	get func() Value
	set func(v Value)
}

func (ref *AssignmentReference) Get() Value   { return ref.get() }
func (ref *AssignmentReference) Set(v Value)  { ref.set(v) }

// resolveReference turns an LHS expression into a reference. A nil
// result means resolution produced an abrupt completion.
func (cx *Context) resolveReference(env *Environment, node ast.Expression) *AssignmentReference {
	switch target := node.(type) {
	case *ast.Identifier:
		name := target.Name
		return &AssignmentReference{
			Name: name,
			get: func() Value {
				v, found := env.TryGet(cx, name)
				if cx.ShouldStopEvaluation() {
					return Undefined{}
				}
				if !found {
					cx.throwReferenceError("%s is not defined", name)
					return Undefined{}
				}
				return v
			},
			set: func(v Value) {
				env.Assign(cx, name, v)
			},
		}

	case *ast.MemberExpr:
		base := cx.evalExpr(env, target.Target)
		if cx.ShouldStopEvaluation() {
			return nil
		}

		if target.Private != "" {
			return cx.resolvePrivateReference(base, target.Private)
		}

		if isNullish(base) {
			cx.throwTypeError("Cannot access property of %s", typeOf(base))
			return nil
		}

		var key PropertyKey
		if target.Property != nil {
			keyVal := cx.evalExpr(env, target.Property)
			if cx.ShouldStopEvaluation() {
				return nil
			}
			k, err := cx.toPropertyKeyErr(keyVal)
			if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
				return nil
			}
			key = k
		} else {
			key = NameKey(target.Name)
		}

		strict := env.isStrictHere()
		return &AssignmentReference{
			Name: key.Name(),
			get: func() Value {
				obj, err := cx.toObject(base)
				if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
					return Undefined{}
				}
				v, err := obj.GetProperty(cx, key)
				if cx.absorb(err) != nil {
					return Undefined{}
				}
				return v
			},
			set: func(v Value) {
				obj, err := cx.toObject(base)
				if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
					return
				}
				ok, err := obj.SetProperty(cx, key, v)
				if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
					return
				}
				if !ok && strict {
					cx.throwTypeError("Cannot assign to read only property '%s'", key.String())
				}
			},
		}

	default:
		cx.throwSyntaxError("Invalid assignment target")
		return nil
	}
}

// resolvePrivateReference binds a #name access against the innermost
// private-name scope, enforcing the brand on every read and write.
func (cx *Context) resolvePrivateReference(base Value, name string) *AssignmentReference {
	scope := cx.currentPrivateScope()
	if scope == nil {
		cx.throwSyntaxError("Private field '#%s' must be declared in an enclosing class", name)
		return nil
	}
	key := scope.Resolve(name)

	check := func() *Object {
		obj, ok := asObject(base)
		if !ok || !obj.HasPrivateBrand(scope.Brand) {
			cx.throwTypeError("Invalid access of private member #%s", name)
			return nil
		}
		return obj
	}

	return &AssignmentReference{
		Name: "#" + name,
		get: func() Value {
			obj := check()
			if obj == nil {
				return Undefined{}
			}
			v, err := obj.GetProperty(cx, key)
			if cx.absorb(err) != nil {
				return Undefined{}
			}
			return v
		},
		set: func(v Value) {
			obj := check()
			if obj == nil {
				return
			}
			obj.DefineProperty(key, &Property{Value: v, Writable: true})
		},
	}
}
