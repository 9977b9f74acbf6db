package skiff

import "github.com/skiffjs/skiff/ast"

// buildClass constructs the constructor/prototype pair of a class
// definition: heritage resolution, member installation, private-name
// scope wiring and super bindings.
func (cx *Context) buildClass(env *Environment, def *ast.ClassDefinition) *Object {
	r := cx.Realm

	classEnv := NewEnvironment(env)
	classEnv.IsStrict = true
	classEnv.IsLexical = true

	// 1. heritage
	var superCtor *Object
	var superProto *Object
	protoParent := r.ObjectProto
	derived := false

	switch def.Extends.(type) {
	case nil:
		// base class
	case *ast.NullLiteral:
		// `extends null`: instances have a null prototype, the
		// constructor still derives from %Function.prototype%
		protoParent = nil
	default:
		heritage := cx.evalExpr(classEnv, def.Extends)
		if cx.ShouldStopEvaluation() {
			return nil
		}
		hObj, ok := asObject(heritage)
		if !ok || !hObj.IsCallable() {
			cx.throwTypeError("Class extends value %s is not a constructor", InspectValue(heritage))
			return nil
		}
		superCtor = hObj
		protoVal, err := hObj.GetProperty(cx, NameKey("prototype"))
		if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
			return nil
		}
		if p, ok := asObject(protoVal); ok {
			superProto = p
			protoParent = p
		} else if _, isNull := protoVal.(Null); isNull {
			protoParent = nil
		} else {
			cx.throwTypeError("Class extends value does not have valid prototype property")
			return nil
		}
		derived = true
	}

	// 2. private-name scope, iff any member is private
	var privScope *PrivateNameScope
	for _, m := range def.Members {
		if m.Private != "" {
			privScope = NewPrivateNameScope(def.Name)
			break
		}
	}
	if privScope != nil {
		cx.pushPrivateScope(privScope)
		defer cx.popPrivateScope()
	}

	// 3. constructor function and prototype object
	proto := NewObject(protoParent)

	var ctor *Object
	if def.Constructor != nil {
		ctor = cx.makeFunction(classEnv, def.Constructor)
		if cx.ShouldStopEvaluation() {
			return nil
		}
	} else {
		// synthesized default constructor; its body-less FunctionInfo
		// is recognized by the invocation path
		ctor = NewObject(r.FunctionProto)
		ctor.class = "Function"
		ctor.fn = &FunctionInfo{name: def.Name, strict: true, closure: classEnv}
		ctor.defineOrdered(NameKey("length"), &Property{Value: Number(0), Configurable: true})
	}
	info := ctor.fn
	info.strict = true
	info.name = def.Name
	info.ctor = ctorBase
	if derived {
		info.ctor = ctorDerived
	}
	info.home = proto
	info.super = &SuperBinding{Home: proto, SuperProto: superProto, ParentCtor: superCtor}
	info.privates = privScope
	if privScope != nil {
		info.brand = privScope.Brand
	}
	if info.closure == nil {
		info.closure = classEnv
	}

	if superCtor != nil {
		ctor.SetPrototype(superCtor)
	} else {
		ctor.SetPrototype(r.FunctionProto)
	}
	ctor.defineOrdered(NameKey("prototype"), &Property{Value: proto})
	ctor.defineOrdered(NameKey("name"), &Property{Value: String(def.Name), Configurable: true})
	proto.defineOrdered(NameKey("constructor"), methodProperty(ctor))

	if def.Name != "" {
		classEnv.Define(def.Name, ctor, BindConst, true)
	}

	// 4. members
	for _, member := range def.Members {
		home := proto
		if member.Static {
			home = ctor
		}

		key, ok := cx.classMemberKey(classEnv, member, privScope)
		if !ok {
			return nil
		}

		if member.Kind == ast.MemberField {
			if member.Static {
				cx.installStaticField(classEnv, ctor, member, key)
				if cx.ShouldStopEvaluation() {
					return nil
				}
				continue
			}
			info.fields = append(info.fields, instanceField{
				key:       key,
				isPrivate: member.Private != "",
				name:      fieldDisplayName(member),
				init:      member.Init,
				env:       classEnv,
			})
			continue
		}

		fn := cx.makeFunction(classEnv, member.Value)
		if cx.ShouldStopEvaluation() {
			return nil
		}
		setFunctionName(fn, fieldDisplayName(member))
		fn.fn.home = home
		fn.fn.super = &SuperBinding{Home: home, SuperProto: home.proto}
		if !member.Value.Generator {
			fn.DeleteProperty(NameKey("prototype"))
		}

		switch member.Kind {
		case ast.MemberMethod:
			home.defineOrdered(key, methodProperty(fn))
		case ast.MemberGetter, ast.MemberSetter:
			slot, exists := home.props[key]
			if !exists || !slot.isAccessor() {
				slot = &Property{Configurable: true}
				home.defineOrdered(key, slot)
			}
			if member.Kind == ast.MemberGetter {
				slot.Get = fn
			} else {
				slot.Set = fn
			}
		}
	}

	// static private members brand the constructor itself
	if privScope != nil {
		ctor.AddPrivateBrand(privScope.Brand)
	}

	return ctor
}

func (cx *Context) classMemberKey(env *Environment, member *ast.ClassMember, privScope *PrivateNameScope) (PropertyKey, bool) {
	if member.Private != "" {
		if privScope == nil {
			panic("bug: private class member without a private-name scope")
		}
		return privScope.Resolve(member.Private), true
	}
	if member.Key != nil {
		keyVal := cx.evalExpr(env, member.Key)
		if cx.ShouldStopEvaluation() {
			return PropertyKey{}, false
		}
		key, err := cx.toPropertyKeyErr(keyVal)
		if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
			return PropertyKey{}, false
		}
		return key, true
	}
	if member.Name == "" {
		panic("bug: class member without a name expression")
	}
	return NameKey(member.Name), true
}

func fieldDisplayName(member *ast.ClassMember) string {
	if member.Private != "" {
		return "#" + member.Private
	}
	return member.Name
}

// installStaticField evaluates and defines a static field immediately,
// this bound to the constructor.
func (cx *Context) installStaticField(classEnv *Environment, ctor *Object, member *ast.ClassMember, key PropertyKey) {
	fieldEnv := NewEnvironment(classEnv)
	fieldEnv.bindThis(ctor, true)

	var v Value = Undefined{}
	if member.Init != nil {
		v = cx.evalExprNamed(fieldEnv, member.Init, fieldDisplayName(member))
		if cx.ShouldStopEvaluation() {
			return
		}
	}
	if member.Private != "" {
		ctor.DefineProperty(key, &Property{Value: v, Writable: true})
		return
	}
	ctor.defineOrdered(key, DataProperty(v))
}

// runInstanceFields brands a freshly constructed instance and runs the
// recorded field initializers against it.
func (cx *Context) runInstanceFields(obj *Object, ctor *Object) {
	info := ctor.fn
	if info == nil {
		return
	}
	if info.brand != nil {
		obj.AddPrivateBrand(info.brand)
	}
	for _, field := range info.fields {
		fieldEnv := NewEnvironment(field.env)
		fieldEnv.bindThis(obj, true)

		var v Value = Undefined{}
		if field.init != nil {
			v = cx.evalExprNamed(fieldEnv, field.init, field.name)
			if cx.ShouldStopEvaluation() {
				return
			}
		}
		if field.isPrivate {
			obj.DefineProperty(field.key, &Property{Value: v, Writable: true})
			continue
		}
		obj.defineOrdered(field.key, DataProperty(v))
	}
}
