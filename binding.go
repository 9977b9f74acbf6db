package skiff

import "github.com/skiffjs/skiff/ast"

// bindingMode says what a destructured name does when it lands:
// initialize a declaration of some kind, or assign an existing target.
type bindingMode struct {
	declare bool
	kind    BindingKind
}

var bindAssign = bindingMode{declare: false}

func bindDeclare(kind BindingKind) bindingMode {
	return bindingMode{declare: true, kind: kind}
}

// bindPattern destructures value into pattern, threading defaults,
// rest elements and nested patterns. Abrupt completions leave the
// context signal set and stop the walk.
func (cx *Context) bindPattern(env *Environment, pat ast.Pattern, value Value, mode bindingMode) {
	switch p := pat.(type) {
	case *ast.Identifier:
		cx.bindName(env, p.Name, value, mode)

	case *ast.MemberExpr:
		if mode.declare {
			cx.throwSyntaxError("Invalid destructuring declaration target")
			return
		}
		ref := cx.resolveReference(env, p)
		if ref == nil || cx.ShouldStopEvaluation() {
			return
		}
		ref.Set(value)

	case *ast.ArrayPattern:
		cx.bindArrayPattern(env, p, value, mode)

	case *ast.ObjectPattern:
		cx.bindObjectPattern(env, p, value, mode)

	default:
		panic("bug: bindPattern: unexpected pattern node")
	}
}

func (cx *Context) bindName(env *Environment, name string, value Value, mode bindingMode) {
	if !mode.declare {
		env.Assign(cx, name, value)
		return
	}
	switch mode.kind {
	case BindVar:
		// the var binding was hoisted; write through the chain so
		// parameters of the same name are honored
		env.Assign(cx, name, value)
	case BindLet, BindConst:
		env.InitializeBinding(cx, name, value)
	default:
		env.Define(name, value, mode.kind, false)
	}
}

func (cx *Context) bindArrayPattern(env *Environment, pat *ast.ArrayPattern, value Value, mode bindingMode) {
	iter := cx.getIterator(value, false)
	if cx.ShouldStopEvaluation() || iter == nil {
		return
	}

	for _, elem := range pat.Elements {
		if cx.ShouldStopEvaluation() {
			break
		}

		if elem.Rest {
			rest := cx.Realm.NewArray()
			for !iter.done {
				v, ok := iter.step(cx)
				if cx.ShouldStopEvaluation() {
					break
				}
				if !ok {
					break
				}
				rest.arrayPart = append(rest.arrayPart, v)
			}
			if cx.ShouldStopEvaluation() {
				break
			}
			cx.bindPattern(env, elem.Target, rest, mode)
			break
		}

		var v Value = Undefined{}
		if !iter.done {
			stepped, ok := iter.step(cx)
			if cx.ShouldStopEvaluation() {
				break
			}
			if ok {
				v = stepped
			}
		}

		if elem.Target == nil {
			continue // elision
		}

		v = cx.applyDefault(env, v, elem.Default, patternBoundName(elem.Target))
		if cx.ShouldStopEvaluation() {
			break
		}
		cx.bindPattern(env, elem.Target, v, mode)
	}

	// abrupt completions and unexhausted iterators both close the
	// source, preserving whatever signal is active
	if !iter.done {
		cx.iteratorClose(iter)
	}
}

func (cx *Context) bindObjectPattern(env *Environment, pat *ast.ObjectPattern, value Value, mode bindingMode) {
	if isNullish(value) {
		cx.throwTypeError("Cannot destructure '%s' as it is %s.", InspectValue(value), typeOf(value))
		return
	}
	source, err := cx.toObject(value)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return
	}

	consumed := make(map[string]struct{})

	for _, prop := range pat.Props {
		key := NameKey(prop.Name)
		if prop.Key != nil {
			keyVal := cx.evalExpr(env, prop.Key)
			if cx.ShouldStopEvaluation() {
				return
			}
			key, err = cx.toPropertyKeyErr(keyVal)
			if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
				return
			}
		}
		if !key.IsSymbol() {
			consumed[key.Name()] = struct{}{}
		}

		v, err := source.GetProperty(cx, key)
		if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
			return
		}

		v = cx.applyDefault(env, v, prop.Default, patternBoundName(prop.Target))
		if cx.ShouldStopEvaluation() {
			return
		}
		cx.bindPattern(env, prop.Target, v, mode)
		if cx.ShouldStopEvaluation() {
			return
		}
	}

	if pat.Rest != nil {
		rest := NewObject(cx.Realm.ObjectProto)
		for _, name := range source.OwnKeysInOrder(true) {
			if _, taken := consumed[name]; taken {
				continue
			}
			v, err := source.GetProperty(cx, NameKey(name))
			if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
				return
			}
			rest.defineOrdered(NameKey(name), DataProperty(v))
		}
		cx.bindPattern(env, pat.Rest, rest, mode)
	}
}

// applyDefault substitutes the default expression for undefined and
// performs NamedEvaluation on anonymous functions it produces.
func (cx *Context) applyDefault(env *Environment, v Value, def ast.Expression, boundName string) Value {
	if def == nil || !isUndefined(v) {
		return v
	}
	dv := cx.evalExprNamed(env, def, boundName)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	return dv
}

// patternBoundName reports the name a default's anonymous function
// would adopt; only simple identifier targets have one.
func patternBoundName(pat ast.Pattern) string {
	if id, ok := pat.(*ast.Identifier); ok {
		return id.Name
	}
	return ""
}
