package skiff

// BindingKind classifies how a name was introduced into a scope.
type BindingKind uint8

const (
	BindVar BindingKind = iota
	BindLet
	BindConst
	BindParameter
	BindFunctionName
)

func (k BindingKind) lexical() bool { return k == BindLet || k == BindConst }

type binding struct {
	value       Value
	kind        BindingKind
	initialized bool
	// blocksFunctionScopeOverride stops Annex-B block-function
	// hoisting from installing a var of the same name.
	blocksFunctionScopeOverride bool
}

// Environment is one record of the scope chain.
type Environment struct {
	parent *Environment

	bindings map[string]*binding

	IsStrict        bool
	IsLexical       bool
	IsFunctionScope bool
	IsGlobal        bool

	// bodyLexicalNames are let/const names of the directly attached
	// body; they block sloppy function hoisting.
	bodyLexicalNames map[string]struct{}
	// simpleCatchParameterNames behave like bodyLexicalNames for the
	// Annex-B rules but allow var redeclaration.
	simpleCatchParameterNames map[string]struct{}

	// withObject overlays the scope: name probes consult it through
	// HasProperty before own bindings.
	withObject *Object

	// globalObject backs the program scope: var and function bindings
	// surface as properties, and undeclared reads fall through to it.
	globalObject *Object

	hasThisSlot     bool
	thisValue       Value
	thisInitialized bool
}

func NewEnvironment(parent *Environment) *Environment {
	env := &Environment{
		parent:   parent,
		bindings: make(map[string]*binding),
	}
	if parent != nil {
		env.IsStrict = parent.IsStrict
	}
	return env
}

// NewGlobalEnvironment builds the root scope backed by the realm's
// global object.
func NewGlobalEnvironment(realm *Realm) *Environment {
	env := NewEnvironment(nil)
	env.IsGlobal = true
	env.IsFunctionScope = true
	env.globalObject = realm.Global
	env.bindThis(realm.Global, true)
	return env
}

func (env *Environment) Parent() *Environment { return env.parent }

// GetFunctionScope walks outward to the nearest function (or program)
// scope; var declarations hoist there.
func (env *Environment) GetFunctionScope() *Environment {
	for e := env; e != nil; e = e.parent {
		if e.IsFunctionScope {
			return e
		}
	}
	return env
}

func (env *Environment) SetBodyLexicalNames(names []string) {
	if env.bodyLexicalNames == nil {
		env.bodyLexicalNames = make(map[string]struct{}, len(names))
	}
	for _, n := range names {
		env.bodyLexicalNames[n] = struct{}{}
	}
}

func (env *Environment) SetSimpleCatchParameters(names []string) {
	if env.simpleCatchParameterNames == nil {
		env.simpleCatchParameterNames = make(map[string]struct{}, len(names))
	}
	for _, n := range names {
		env.simpleCatchParameterNames[n] = struct{}{}
	}
}

// BlocksFunctionVarName reports whether hoisting a sloppy block
// function named name as a var into this scope is forbidden.
func (env *Environment) BlocksFunctionVarName(name string) bool {
	if _, ok := env.bodyLexicalNames[name]; ok {
		return true
	}
	if _, ok := env.simpleCatchParameterNames[name]; ok {
		return true
	}
	if b, ok := env.bindings[name]; ok && b.blocksFunctionScopeOverride {
		return true
	}
	return false
}

// Define installs a binding in this record. let/const bindings defined
// without a value (nil) start uninitialized (TDZ) until
// InitializeBinding runs; every other binding is initialized
// immediately.
func (env *Environment) Define(name string, value Value, kind BindingKind, blocksOverride bool) {
	if existing, ok := env.bindings[name]; ok {
		// var and function redeclaration reuse the slot
		if !kind.lexical() && !existing.kind.lexical() {
			if value != nil {
				existing.value = value
				existing.initialized = true
			}
			existing.blocksFunctionScopeOverride = existing.blocksFunctionScopeOverride || blocksOverride
			return
		}
	}
	b := &binding{
		value:                       value,
		kind:                        kind,
		initialized:                 !kind.lexical() || value != nil,
		blocksFunctionScopeOverride: blocksOverride,
	}
	if value == nil {
		b.value = Undefined{}
		if !kind.lexical() {
			b.initialized = true
		}
	}
	env.bindings[name] = b
	if env.IsGlobal && env.globalObject != nil && (kind == BindVar || kind == BindFunctionName) {
		env.globalObject.DefineProperty(NameKey(name), DataProperty(b.value))
	}
}

// InitializeBinding ends the TDZ of a lexical binding.
func (env *Environment) InitializeBinding(cx *Context, name string, value Value) {
	b, ok := env.bindings[name]
	if !ok {
		env.Define(name, value, BindLet, false)
		return
	}
	b.value = value
	b.initialized = true
}

// HasOwnBinding reports whether this record itself binds name.
func (env *Environment) HasOwnBinding(name string) bool {
	_, ok := env.bindings[name]
	return ok
}

// HasBinding reports whether the name resolves somewhere on the chain
// (with-object overlays included).
func (env *Environment) HasBinding(name string) bool {
	for e := env; e != nil; e = e.parent {
		if e.withObject != nil && e.withObject.HasProperty(NameKey(name)) {
			return true
		}
		if _, ok := e.bindings[name]; ok {
			return true
		}
		if e.IsGlobal && e.globalObject != nil && e.globalObject.HasProperty(NameKey(name)) {
			return true
		}
	}
	return false
}

// TryGet resolves a name through the chain. Probing order per record:
// with-object overlay, own bindings, then parent. Reads inside a TDZ
// window set a ReferenceError throw completion.
func (env *Environment) TryGet(cx *Context, name string) (Value, bool) {
	for e := env; e != nil; e = e.parent {
		if e.withObject != nil {
			if e.withObject.HasProperty(NameKey(name)) {
				v, err := e.withObject.GetProperty(cx, NameKey(name))
				if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
					return Undefined{}, true
				}
				return v, true
			}
		}
		if b, ok := e.bindings[name]; ok {
			if !b.initialized {
				cx.throwReferenceError("Cannot access '%s' before initialization", name)
				return Undefined{}, true
			}
			return b.value, true
		}
		if e.IsGlobal && e.globalObject != nil && e.globalObject.HasProperty(NameKey(name)) {
			v, err := e.globalObject.GetProperty(cx, NameKey(name))
			if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
				return Undefined{}, true
			}
			return v, true
		}
	}
	return Undefined{}, false
}

// Assign walks the chain and writes the nearest binding. Writing a
// const or an uninitialized lexical binding throws; an undeclared name
// throws ReferenceError in strict mode and creates a global otherwise.
func (env *Environment) Assign(cx *Context, name string, value Value) {
	for e := env; e != nil; e = e.parent {
		if e.withObject != nil && e.withObject.HasProperty(NameKey(name)) {
			_, err := e.withObject.SetProperty(cx, NameKey(name), value)
			cx.absorb(err)
			return
		}
		if b, ok := e.bindings[name]; ok {
			if !b.initialized {
				cx.throwReferenceError("Cannot access '%s' before initialization", name)
				return
			}
			if b.kind == BindConst {
				cx.throwTypeError("Assignment to constant variable.")
				return
			}
			b.value = value
			if e.IsGlobal && e.globalObject != nil && (b.kind == BindVar || b.kind == BindFunctionName) {
				e.globalObject.DefineProperty(NameKey(name), DataProperty(value))
			}
			return
		}
		if e.IsGlobal && e.globalObject != nil && e.globalObject.HasProperty(NameKey(name)) {
			_, err := e.globalObject.SetProperty(cx, NameKey(name), value)
			cx.absorb(err)
			return
		}
	}

	if env.isStrictHere() {
		cx.throwReferenceError("%s is not defined", name)
		return
	}
	// sloppy mode: implicit global
	root := env
	for root.parent != nil {
		root = root.parent
	}
	if root.globalObject != nil {
		_, err := root.globalObject.SetProperty(cx, NameKey(name), value)
		cx.absorb(err)
		return
	}
	root.Define(name, value, BindVar, false)
}

// ResolveCallee resolves a name for a call expression, additionally
// reporting the receiver a with-object overlay supplies.
func (env *Environment) ResolveCallee(cx *Context, name string) (Value, Value, bool) {
	for e := env; e != nil; e = e.parent {
		if e.withObject != nil && e.withObject.HasProperty(NameKey(name)) {
			v, err := e.withObject.GetProperty(cx, NameKey(name))
			if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
				return Undefined{}, Undefined{}, true
			}
			return v, e.withObject, true
		}
		if b, ok := e.bindings[name]; ok {
			if !b.initialized {
				cx.throwReferenceError("Cannot access '%s' before initialization", name)
				return Undefined{}, Undefined{}, true
			}
			return b.value, Undefined{}, true
		}
		if e.IsGlobal && e.globalObject != nil && e.globalObject.HasProperty(NameKey(name)) {
			v, err := e.globalObject.GetProperty(cx, NameKey(name))
			if cx.absorb(err) != nil || cx.ShouldStopEvaluation() {
				return Undefined{}, Undefined{}, true
			}
			return v, Undefined{}, true
		}
	}
	return Undefined{}, Undefined{}, false
}

// Delete removes a name per the delete operator: bindings refuse,
// with-object and global-object properties defer to the object.
func (env *Environment) Delete(name string) bool {
	for e := env; e != nil; e = e.parent {
		if e.withObject != nil && e.withObject.HasProperty(NameKey(name)) {
			return e.withObject.DeleteProperty(NameKey(name))
		}
		if _, ok := e.bindings[name]; ok {
			return false
		}
		if e.IsGlobal && e.globalObject != nil && e.globalObject.HasProperty(NameKey(name)) {
			return e.globalObject.DeleteProperty(NameKey(name))
		}
	}
	return true
}

func (env *Environment) isStrictHere() bool {
	for e := env; e != nil; e = e.parent {
		if e.IsStrict {
			return true
		}
	}
	return false
}

// ThisValue walks to the nearest scope carrying a this binding (arrows
// have none and fall through to their closure).
func (env *Environment) ThisValue(cx *Context) Value {
	for e := env; e != nil; e = e.parent {
		if e.hasThisSlot {
			if !e.thisInitialized {
				cx.throwReferenceError("must call super constructor before accessing 'this'")
				return Undefined{}
			}
			return e.thisValue
		}
	}
	return Undefined{}
}

// initializeThis ends the uninitialized-this window of a derived
// constructor when super() completes.
func (env *Environment) initializeThis(cx *Context, v Value) {
	for e := env; e != nil; e = e.parent {
		if e.hasThisSlot {
			if e.thisInitialized {
				cx.throwReferenceError("super constructor may only be called once")
				return
			}
			e.thisValue = v
			e.thisInitialized = true
			return
		}
	}
	panic("bug: initializeThis without a this slot on the chain")
}

// bindThis marks this record as owning a this slot. Derived-class
// constructors leave it uninitialized until super() runs.
func (env *Environment) bindThis(v Value, initialized bool) {
	env.hasThisSlot = true
	env.thisValue = v
	env.thisInitialized = initialized
}
