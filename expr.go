package skiff

import (
	"strings"

	"github.com/skiffjs/skiff/ast"
)

// evalExpr evaluates one expression node. Abrupt completions leave the
// context signal set and the Undefined sentinel is returned.
func (cx *Context) evalExpr(env *Environment, node ast.Expression) Value {
	return cx.evalExprNamed(env, node, "")
}

// evalExprNamed additionally performs NamedEvaluation: anonymous
// function and class values adopt boundName.
func (cx *Context) evalExprNamed(env *Environment, node ast.Expression, boundName string) Value {
	if node == nil {
		return Undefined{}
	}

	switch expr := node.(type) {
	case *ast.NullLiteral:
		return Null{}
	case *ast.BoolLiteral:
		return Boolean(expr.Value)
	case *ast.NumberLiteral:
		return Number(expr.Value)
	case *ast.BigIntLiteral:
		return BigInt(expr.Value)
	case *ast.StringLiteral:
		return String(expr.Value)
	case *ast.RegExpLiteral:
		return cx.Realm.NewRegExpLiteral(expr.Pattern, expr.Flags)

	case *ast.Identifier:
		v, found := env.TryGet(cx, expr.Name)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		if !found {
			cx.throwReferenceError("%s is not defined", expr.Name)
			return Undefined{}
		}
		return v

	case *ast.ThisExpr:
		return env.ThisValue(cx)

	case *ast.MemberExpr, *ast.CallExpr:
		v, _ := cx.evalChainExpr(env, node)
		return v

	case *ast.NewExpr:
		return cx.evalNew(env, expr)

	case *ast.UnaryExpr:
		return cx.evalUnary(env, expr)

	case *ast.UpdateExpr:
		return cx.evalUpdate(env, expr)

	case *ast.BinaryExpr:
		return cx.evalBinary(env, expr)

	case *ast.LogicalExpr:
		return cx.evalLogical(env, expr)

	case *ast.ConditionalExpr:
		test := cx.evalExpr(env, expr.Test)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		if cx.toBoolean(test) {
			return cx.evalExpr(env, expr.Consequent)
		}
		return cx.evalExpr(env, expr.Alternate)

	case *ast.AssignExpr:
		return cx.evalAssign(env, expr)

	case *ast.FunctionLiteral:
		fn := cx.makeFunction(env, expr)
		if expr.Name == "" && boundName != "" {
			setFunctionName(fn, boundName)
		}
		if expr.Name != "" && !expr.Arrow {
			// a named function expression sees its own name
			fnEnv := NewEnvironment(env)
			fnEnv.Define(expr.Name, fn, BindFunctionName, false)
			fn.fn.closure = fnEnv
		}
		return fn

	case *ast.ClassExpr:
		cls := cx.buildClass(env, expr.Class)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		if expr.Class.Name == "" && boundName != "" {
			setFunctionName(cls, boundName)
		}
		return cls

	case *ast.ObjectLiteral:
		return cx.evalObjectLiteral(env, expr)

	case *ast.ArrayLiteral:
		return cx.evalArrayLiteral(env, expr)

	case *ast.TemplateLiteral:
		return cx.evalTemplate(env, expr)

	case *ast.TaggedTemplateExpr:
		return cx.evalTaggedTemplate(env, expr)

	case *ast.YieldExpr:
		return cx.evalYield(env, expr)

	case *ast.AwaitExpr:
		return cx.evalAwait(env, expr)

	case *ast.SequenceExpr:
		var v Value = Undefined{}
		for _, item := range expr.Exprs {
			v = cx.evalExpr(env, item)
			if cx.ShouldStopEvaluation() {
				return Undefined{}
			}
		}
		return v

	case *ast.SuperExpr:
		cx.throwSyntaxError("'super' keyword unexpected here")
		return Undefined{}

	default:
		cx.setHostError(errUnsupportedNode(node))
		return Undefined{}
	}
}

func setFunctionName(fn *Object, name string) {
	if fn.fn == nil || fn.fn.name != "" {
		return
	}
	fn.fn.name = name
	fn.defineOrdered(NameKey("name"), &Property{Value: String(name), Configurable: true})
}

// ---------------------------------------------------------------------------
// member access and calls (optional chains short-circuit as a unit)

// evalChainExpr evaluates a member/call chain. The bool result reports
// that an optional link was nullish and the remaining chain tail was
// skipped.
func (cx *Context) evalChainExpr(env *Environment, node ast.Expression) (Value, bool) {
	switch expr := node.(type) {
	case *ast.MemberExpr:
		target, skipped := cx.chainOperand(env, expr.Target)
		if cx.ShouldStopEvaluation() {
			return Undefined{}, false
		}
		if skipped {
			return Undefined{}, true
		}

		if _, isSuper := expr.Target.(*ast.SuperExpr); isSuper {
			return cx.evalSuperMember(env, expr), false
		}

		if isNullish(target) {
			if expr.Optional {
				return Undefined{}, true
			}
			cx.throwTypeError("Cannot read properties of %s (reading '%s')", typeOf(target), memberName(expr))
			return Undefined{}, false
		}

		if expr.Private != "" {
			ref := cx.resolvePrivateReference(target, expr.Private)
			if ref == nil || cx.ShouldStopEvaluation() {
				return Undefined{}, false
			}
			return ref.Get(), false
		}

		v := cx.readMember(env, target, expr)
		return v, false

	case *ast.CallExpr:
		return cx.evalCall(env, expr)

	default:
		return cx.evalExpr(env, node), false
	}
}

// chainOperand evaluates the base of a chain link, keeping skip
// propagation for nested member/call links.
func (cx *Context) chainOperand(env *Environment, node ast.Expression) (Value, bool) {
	switch node.(type) {
	case *ast.MemberExpr, *ast.CallExpr:
		return cx.evalChainExpr(env, node)
	case *ast.SuperExpr:
		return Undefined{}, false
	default:
		return cx.evalExpr(env, node), false
	}
}

func memberName(expr *ast.MemberExpr) string {
	if expr.Name != "" {
		return expr.Name
	}
	if expr.Private != "" {
		return "#" + expr.Private
	}
	return "<computed>"
}

// readMember reads a property off an evaluated, non-nullish target.
func (cx *Context) readMember(env *Environment, target Value, expr *ast.MemberExpr) Value {
	key, ok := cx.memberKey(env, expr)
	if !ok {
		return Undefined{}
	}

	// primitive receivers read through their boxed prototype
	obj, err := cx.toObject(target)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	if s, isStr := target.(String); isStr && !key.IsSymbol() {
		if key.Name() == "length" {
			return Number(len(s))
		}
		if idx, isIdx := arrayIndex(key); isIdx && idx < len(s) {
			return String(s[idx : idx+1])
		}
	}

	v, err := obj.GetProperty(cx, key)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	return v
}

func (cx *Context) memberKey(env *Environment, expr *ast.MemberExpr) (PropertyKey, bool) {
	if expr.Property == nil {
		return NameKey(expr.Name), true
	}
	keyVal := cx.evalExpr(env, expr.Property)
	if cx.ShouldStopEvaluation() {
		return PropertyKey{}, false
	}
	key, err := cx.toPropertyKeyErr(keyVal)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return PropertyKey{}, false
	}
	return key, true
}

// evalSuperMember performs super.x / super[x] through the active super
// binding: lookup on the home object's current prototype, falling back
// to SuperProto when there is no home object.
func (cx *Context) evalSuperMember(env *Environment, expr *ast.MemberExpr) Value {
	if cx.super == nil {
		cx.throwSyntaxError("'super' keyword unexpected here")
		return Undefined{}
	}
	key, ok := cx.memberKey(env, expr)
	if !ok {
		return Undefined{}
	}
	// lookup base: the home object's prototype at call time
	proto := cx.super.SuperProto
	if cx.super.Home != nil {
		proto = cx.super.Home.Prototype()
	}
	if proto == nil {
		return Undefined{}
	}
	v, err := proto.GetProperty(cx, key)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	return v
}

// callTarget is the resolved callee of a call expression: the function,
// its this binding, and whether an optional link skipped the call.
type callTarget struct {
	fn      *Object
	this    Value
	skipped bool
}

// resolveCallTarget resolves a callee into its function, this
// binding, and optional-chain skip flag.
func (cx *Context) resolveCallTarget(env *Environment, callee ast.Expression, optionalCall bool) callTarget {
	switch spec := callee.(type) {
	case *ast.MemberExpr:
		target, skipped := cx.chainOperand(env, spec.Target)
		if cx.ShouldStopEvaluation() || skipped {
			return callTarget{skipped: skipped}
		}

		if _, isSuper := spec.Target.(*ast.SuperExpr); isSuper {
			method := cx.evalSuperMember(env, spec)
			if cx.ShouldStopEvaluation() {
				return callTarget{}
			}
			return cx.asCallTarget(method, env.ThisValue(cx), spec)
		}

		if isNullish(target) {
			if spec.Optional {
				return callTarget{skipped: true}
			}
			cx.throwTypeError("Cannot read properties of %s (reading '%s')", typeOf(target), memberName(spec))
			return callTarget{}
		}

		var method Value
		if spec.Private != "" {
			ref := cx.resolvePrivateReference(target, spec.Private)
			if ref == nil || cx.ShouldStopEvaluation() {
				return callTarget{}
			}
			method = ref.Get()
		} else {
			method = cx.readMember(env, target, spec)
		}
		if cx.ShouldStopEvaluation() {
			return callTarget{}
		}
		if optionalCall && isNullish(method) {
			return callTarget{skipped: true}
		}
		return cx.asCallTarget(method, target, spec)

	case *ast.Identifier:
		v, receiver, found := env.ResolveCallee(cx, spec.Name)
		if cx.ShouldStopEvaluation() {
			return callTarget{}
		}
		if !found {
			cx.throwReferenceError("%s is not defined", spec.Name)
			return callTarget{}
		}
		if optionalCall && isNullish(v) {
			return callTarget{skipped: true}
		}
		fn, ok := asObject(v)
		if !ok || !fn.IsCallable() {
			cx.throwTypeError("%s is not a function", spec.Name)
			return callTarget{}
		}
		return callTarget{fn: fn, this: receiver}

	default:
		v, skipped := cx.chainOperand(env, callee)
		if cx.ShouldStopEvaluation() || skipped {
			return callTarget{skipped: skipped}
		}
		if optionalCall && isNullish(v) {
			return callTarget{skipped: true}
		}
		fn, ok := asObject(v)
		if !ok || !fn.IsCallable() {
			cx.throwTypeError("%s is not a function", InspectValue(v))
			return callTarget{}
		}
		return callTarget{fn: fn, this: Value(Undefined{})}
	}
}

func (cx *Context) asCallTarget(method Value, this Value, spec *ast.MemberExpr) callTarget {
	fn, ok := asObject(method)
	if !ok || !fn.IsCallable() {
		cx.throwTypeError("%s.%s is not a function", typeOf(this), memberName(spec))
		return callTarget{}
	}
	return callTarget{fn: fn, this: this}
}

func (cx *Context) evalCall(env *Environment, expr *ast.CallExpr) (Value, bool) {
	if _, isSuper := expr.Callee.(*ast.SuperExpr); isSuper {
		return cx.evalSuperCall(env, expr), false
	}

	target := cx.resolveCallTarget(env, expr.Callee, expr.Optional)
	if cx.ShouldStopEvaluation() {
		return Undefined{}, false
	}
	if target.skipped {
		return Undefined{}, true
	}

	args := cx.evalArguments(env, expr.Args)
	if cx.ShouldStopEvaluation() {
		return Undefined{}, false
	}

	cx.pushFrame("call "+target.fn.fn.name, expr.Span())
	defer cx.popFrame()

	v, err := target.fn.Invoke(cx, target.this, args)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}, false
	}
	return v, false
}

// evalSuperCall invokes the parent constructor and initializes the
// pending this binding of the running derived constructor.
func (cx *Context) evalSuperCall(env *Environment, expr *ast.CallExpr) Value {
	if cx.super == nil || cx.super.ParentCtor == nil {
		cx.throwSyntaxError("'super' call unexpected here")
		return Undefined{}
	}

	args := cx.evalArguments(env, expr.Args)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	cx.superConstruct(env, args)
	return Undefined{}
}

// superConstruct runs the parent-constructor step shared by explicit
// super() calls and synthesized default derived constructors: allocate
// this over the derived prototype, run the parent constructor on it,
// then initialize the pending this binding and the derived fields.
func (cx *Context) superConstruct(env *Environment, args []Value) {
	proto := cx.Realm.ObjectProto
	if cx.super.Home != nil {
		proto = cx.super.Home
	}
	this := NewObject(proto)

	_, err := cx.super.ParentCtor.invoke(cx, this, args, cx.super.ParentCtor)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return
	}

	env.initializeThis(cx, this)
	if cx.ShouldStopEvaluation() {
		return
	}

	// the derived class's own fields and brand land once this exists
	if cx.currentFn != nil {
		cx.runInstanceFields(this, cx.currentFn)
	}
}

// evalArguments expands call arguments, spreading via the iterator
// protocol.
func (cx *Context) evalArguments(env *Environment, args []ast.Argument) []Value {
	out := make([]Value, 0, len(args))
	for _, arg := range args {
		v := cx.evalExpr(env, arg.Value)
		if cx.ShouldStopEvaluation() {
			return nil
		}
		if !arg.Spread {
			out = append(out, v)
			continue
		}
		iter := cx.getIterator(v, false)
		if cx.ShouldStopEvaluation() || iter == nil {
			return nil
		}
		for {
			item, more := iter.step(cx)
			if cx.ShouldStopEvaluation() {
				return nil
			}
			if !more {
				break
			}
			out = append(out, item)
		}
	}
	return out
}

// evalNew constructs via the callable's constructor protocol: a new
// object wired to the constructor's prototype property, the body run
// with it as this, and an object return value overriding it.
func (cx *Context) evalNew(env *Environment, expr *ast.NewExpr) Value {
	calleeVal := cx.evalExpr(env, expr.Callee)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	ctor, ok := asObject(calleeVal)
	if !ok || !ctor.IsCallable() {
		cx.throwTypeError("%s is not a constructor", InspectValue(calleeVal))
		return Undefined{}
	}
	if ctor.fn.thisMode == thisModeLexical {
		cx.throwTypeError("%s is not a constructor", ctor.fn.name)
		return Undefined{}
	}

	args := cx.evalArguments(env, expr.Args)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	return cx.construct(ctor, args)
}

// construct is the shared new/super construction path.
func (cx *Context) construct(ctor *Object, args []Value) Value {
	proto := cx.Realm.ObjectProto
	if protoVal, found, err := ctor.TryGetProperty(cx, NameKey("prototype")); err == nil && found {
		if p, ok := asObject(protoVal); ok {
			proto = p
		}
	}

	this := NewObject(proto)

	ret, err := ctor.invoke(cx, this, args, ctor)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	if obj, ok := asObject(ret); ok {
		return obj
	}
	return this
}

// ---------------------------------------------------------------------------
// operators

func (cx *Context) evalUnary(env *Environment, expr *ast.UnaryExpr) Value {
	switch expr.Op {
	case "typeof":
		// typeof tolerates unresolvable identifiers
		if id, ok := expr.Operand.(*ast.Identifier); ok {
			if !env.HasBinding(id.Name) {
				return String("undefined")
			}
		}
		v := cx.evalExpr(env, expr.Operand)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		return String(typeOf(v))

	case "void":
		cx.evalExpr(env, expr.Operand)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		return Undefined{}

	case "delete":
		return cx.evalDelete(env, expr.Operand)

	case "!":
		v := cx.evalExpr(env, expr.Operand)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		return Boolean(!cx.toBoolean(v))

	case "-", "+", "~":
		v := cx.evalExpr(env, expr.Operand)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		num, err := cx.toNumeric(v)
		if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		switch spec := num.(type) {
		case Number:
			switch expr.Op {
			case "-":
				return -spec
			case "+":
				return spec
			default:
				return Number(^toInt32(float64(spec)))
			}
		case BigInt:
			switch expr.Op {
			case "-":
				return -spec
			case "+":
				cx.throwTypeError("Cannot convert a BigInt value to a number")
				return Undefined{}
			default:
				return ^spec
			}
		}
		panic("bug: toNumeric returned a non-numeric")

	default:
		panic("bug: evalUnary: unknown operator " + expr.Op)
	}
}

// evalDelete: member deletion defers to the object, identifier
// deletion to the environment; anything else is a no-op returning true.
func (cx *Context) evalDelete(env *Environment, operand ast.Expression) Value {
	switch target := operand.(type) {
	case *ast.Identifier:
		if env.isStrictHere() {
			cx.throwSyntaxError("Delete of an unqualified identifier in strict mode.")
			return Undefined{}
		}
		return Boolean(env.Delete(target.Name))

	case *ast.MemberExpr:
		base := cx.evalExpr(env, target.Target)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		if target.Optional && isNullish(base) {
			return Boolean(true)
		}
		obj, err := cx.toObject(base)
		if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		if target.Private != "" {
			cx.throwSyntaxError("Private fields can not be deleted")
			return Undefined{}
		}
		key, ok := cx.memberKey(env, target)
		if !ok {
			return Undefined{}
		}
		deleted := obj.DeleteProperty(key)
		if !deleted && env.isStrictHere() {
			cx.throwTypeError("Cannot delete property '%s'", key.String())
			return Undefined{}
		}
		return Boolean(deleted)

	default:
		cx.evalExpr(env, operand)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		return Boolean(true)
	}
}

func (cx *Context) evalUpdate(env *Environment, expr *ast.UpdateExpr) Value {
	ref := cx.resolveReference(env, expr.Target)
	if ref == nil || cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	old := ref.Get()
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	oldNum, err := cx.toNumeric(old)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	var delta Value = Number(1)
	if _, isBig := oldNum.(BigInt); isBig {
		delta = BigInt(1)
	}
	op := "+"
	if expr.Op == "--" {
		op = "-"
	}
	updated, err := cx.arithmeticOp(op, oldNum, delta)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	ref.Set(updated)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	if expr.Prefix {
		return updated
	}
	return oldNum
}

func (cx *Context) evalBinary(env *Environment, expr *ast.BinaryExpr) Value {
	left := cx.evalExpr(env, expr.Left)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	right := cx.evalExpr(env, expr.Right)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	var v Value
	var err error
	switch expr.Op {
	case "===":
		v = Boolean(strictEquals(left, right))
	case "!==":
		v = Boolean(!strictEquals(left, right))
	case "==":
		var eq bool
		eq, err = cx.looseEquals(left, right)
		v = Boolean(eq)
	case "!=":
		var eq bool
		eq, err = cx.looseEquals(left, right)
		v = Boolean(!eq)
	case "<", "<=", ">", ">=":
		v, err = cx.evalRelational(expr.Op, left, right)
	case "+":
		v, err = cx.addition(left, right)
	case "-", "*", "/", "%", "**", "<<", ">>", ">>>", "&", "|", "^":
		v, err = cx.arithmeticOp(expr.Op, left, right)
	case "instanceof":
		var is bool
		is, err = cx.instanceOf(left, right)
		v = Boolean(is)
	case "in":
		var has bool
		has, err = cx.inOperator(left, right)
		v = Boolean(has)
	default:
		panic("bug: evalBinary: unknown operator " + expr.Op)
	}

	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	return v
}

func (cx *Context) evalRelational(op string, left, right Value) (Value, error) {
	lp, err := cx.toPrimitive(left, hintNumber)
	if err != nil {
		return nil, err
	}
	rp, err := cx.toPrimitive(right, hintNumber)
	if err != nil {
		return nil, err
	}

	var b bool
	switch op {
	case "<":
		b, err = cx.isLessThan(lp, rp)
	case ">":
		b, err = cx.isLessThan(rp, lp)
	case "<=":
		b, err = cx.isNotLessThan(rp, lp)
	case ">=":
		b, err = cx.isNotLessThan(lp, rp)
	}
	return Boolean(b), err
}

func (cx *Context) evalLogical(env *Environment, expr *ast.LogicalExpr) Value {
	left := cx.evalExpr(env, expr.Left)
	if cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	switch expr.Op {
	case "&&":
		if !cx.toBoolean(left) {
			return left
		}
	case "||":
		if cx.toBoolean(left) {
			return left
		}
	case "??":
		if !isNullish(left) {
			return left
		}
	default:
		panic("bug: evalLogical: unknown operator " + expr.Op)
	}
	return cx.evalExpr(env, expr.Right)
}

// evalAssign covers plain, compound, logical-compound and
// destructuring assignment.
func (cx *Context) evalAssign(env *Environment, expr *ast.AssignExpr) Value {
	switch expr.Target.(type) {
	case *ast.ArrayPattern, *ast.ObjectPattern:
		if expr.Op != "=" {
			cx.throwSyntaxError("Invalid destructuring assignment target")
			return Undefined{}
		}
		v := cx.evalExpr(env, expr.Value)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		cx.bindPattern(env, expr.Target, v, bindAssign)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		return v
	}

	targetExpr, ok := expr.Target.(ast.Expression)
	if !ok {
		cx.throwSyntaxError("Invalid assignment target")
		return Undefined{}
	}
	ref := cx.resolveReference(env, targetExpr)
	if ref == nil || cx.ShouldStopEvaluation() {
		return Undefined{}
	}

	switch expr.Op {
	case "=":
		v := cx.evalExprNamed(env, expr.Value, ref.Name)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		ref.Set(v)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		return v

	case "&&=", "||=", "??=":
		current := ref.Get()
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		proceed := false
		switch expr.Op {
		case "&&=":
			proceed = cx.toBoolean(current)
		case "||=":
			proceed = !cx.toBoolean(current)
		case "??=":
			proceed = isNullish(current)
		}
		if !proceed {
			return current
		}
		v := cx.evalExprNamed(env, expr.Value, ref.Name)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		ref.Set(v)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		return v

	default:
		// compound: rhs once, then get ⊗ rhs, then set
		rhs := cx.evalExpr(env, expr.Value)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		current := ref.Get()
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		op := strings.TrimSuffix(expr.Op, "=")
		var v Value
		var err error
		if op == "+" {
			v, err = cx.addition(current, rhs)
		} else {
			v, err = cx.arithmeticOp(op, current, rhs)
		}
		if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		ref.Set(v)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		return v
	}
}

// ---------------------------------------------------------------------------
// literals

func (cx *Context) evalObjectLiteral(env *Environment, expr *ast.ObjectLiteral) Value {
	obj := NewObject(cx.Realm.ObjectProto)

	for _, prop := range expr.Props {
		if prop.Kind == ast.PropSpread {
			v := cx.evalExpr(env, prop.Value)
			if cx.ShouldStopEvaluation() {
				return Undefined{}
			}
			if src, ok := asObject(v); ok {
				for _, name := range src.OwnKeysInOrder(true) {
					pv, err := src.GetProperty(cx, NameKey(name))
					if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
						return Undefined{}
					}
					obj.defineOrdered(NameKey(name), DataProperty(pv))
				}
			}
			continue
		}

		key := NameKey(prop.Name)
		if prop.Key != nil {
			keyVal := cx.evalExpr(env, prop.Key)
			if cx.ShouldStopEvaluation() {
				return Undefined{}
			}
			k, err := cx.toPropertyKeyErr(keyVal)
			if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
				return Undefined{}
			}
			key = k
		}

		switch prop.Kind {
		case ast.PropInit:
			v := cx.evalExprNamed(env, prop.Value, key.Name())
			if cx.ShouldStopEvaluation() {
				return Undefined{}
			}
			obj.defineOrdered(key, DataProperty(v))

		case ast.PropMethod:
			fn := cx.evalMethodValue(env, prop.Value, obj, key.Name())
			if cx.ShouldStopEvaluation() {
				return Undefined{}
			}
			obj.defineOrdered(key, methodProperty(fn))

		case ast.PropGet, ast.PropSet:
			fn := cx.evalMethodValue(env, prop.Value, obj, key.Name())
			if cx.ShouldStopEvaluation() {
				return Undefined{}
			}
			slot, exists := obj.props[key]
			if !exists || !slot.isAccessor() {
				slot = &Property{Enumerable: true, Configurable: true}
				obj.defineOrdered(key, slot)
			}
			if prop.Kind == ast.PropGet {
				slot.Get = fn
			} else {
				slot.Set = fn
			}

		default:
			panic("bug: evalObjectLiteral: unexpected property kind")
		}
	}
	return obj
}

// evalMethodValue builds a shorthand method or accessor function and
// wires its home object for super dispatch.
func (cx *Context) evalMethodValue(env *Environment, value ast.Expression, home *Object, name string) *Object {
	lit, ok := value.(*ast.FunctionLiteral)
	if !ok {
		cx.throwSyntaxError("Object literal method must be a function")
		return nil
	}
	fn := cx.makeFunction(env, lit)
	setFunctionName(fn, name)
	fn.fn.home = home
	fn.fn.super = &SuperBinding{Home: home, SuperProto: home.proto}
	return fn
}

func (cx *Context) evalArrayLiteral(env *Environment, expr *ast.ArrayLiteral) Value {
	arr := cx.Realm.NewArray()
	for _, elem := range expr.Elements {
		if elem.Value == nil {
			arr.arrayPart = append(arr.arrayPart, Undefined{})
			continue
		}
		v := cx.evalExpr(env, elem.Value)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		if !elem.Spread {
			arr.arrayPart = append(arr.arrayPart, v)
			continue
		}
		iter := cx.getIterator(v, false)
		if cx.ShouldStopEvaluation() || iter == nil {
			return Undefined{}
		}
		for {
			item, more := iter.step(cx)
			if cx.ShouldStopEvaluation() {
				return Undefined{}
			}
			if !more {
				break
			}
			arr.arrayPart = append(arr.arrayPart, item)
		}
	}
	return arr
}

func (cx *Context) evalTemplate(env *Environment, expr *ast.TemplateLiteral) Value {
	var sb strings.Builder
	for i, part := range expr.Cooked {
		sb.WriteString(part)
		if i < len(expr.Exprs) {
			v := cx.evalExpr(env, expr.Exprs[i])
			if cx.ShouldStopEvaluation() {
				return Undefined{}
			}
			s, err := cx.toStringErr(v)
			if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
				return Undefined{}
			}
			sb.WriteString(string(s))
		}
	}
	return String(sb.String())
}

// evalTaggedTemplate calls the tag with the frozen strings array
// (carrying raw) first, substitution values after.
func (cx *Context) evalTaggedTemplate(env *Environment, expr *ast.TaggedTemplateExpr) Value {
	target := cx.resolveCallTarget(env, expr.Tag, false)
	if cx.ShouldStopEvaluation() || target.skipped {
		return Undefined{}
	}

	r := cx.Realm
	strs := r.NewArray()
	raw := r.NewArray()
	for i := range expr.Quasi.Cooked {
		strs.arrayPart = append(strs.arrayPart, String(expr.Quasi.Cooked[i]))
		rawPart := expr.Quasi.Cooked[i]
		if i < len(expr.Quasi.Raw) {
			rawPart = expr.Quasi.Raw[i]
		}
		raw.arrayPart = append(raw.arrayPart, String(rawPart))
	}
	r.Freeze(raw)
	strs.defineOrdered(NameKey("raw"), &Property{Value: raw})
	r.Freeze(strs)

	args := []Value{strs}
	for _, sub := range expr.Quasi.Exprs {
		v := cx.evalExpr(env, sub)
		if cx.ShouldStopEvaluation() {
			return Undefined{}
		}
		args = append(args, v)
	}

	v, err := target.fn.Invoke(cx, target.this, args)
	if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
		return Undefined{}
	}
	return v
}
