package skiff

import (
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/skiffjs/skiff/ast"
)

// Value is any JavaScript value the evaluator can produce.
type Value interface {
	Kind() Kind
}

type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindBigInt
	KindString
	KindSymbol
	KindObject
	KindFunction
)

// Undefined is the single sentinel for the JS undefined value. It is
// distinct from Null and from Go nil.
type Undefined struct{}

func (Undefined) Kind() Kind { return KindUndefined }

type Null struct{}

func (Null) Kind() Kind { return KindNull }

type Boolean bool

func (Boolean) Kind() Kind { return KindBoolean }

type Number float64

func (Number) Kind() Kind { return KindNumber }

type BigInt int64

func (BigInt) Kind() Kind { return KindBigInt }

type String string

func (String) Kind() Kind { return KindString }

// Symbol is a unique property key. Identity is pointer identity; the ID
// only serves diagnostics.
type Symbol struct {
	ID          string
	Description string
}

func (*Symbol) Kind() Kind { return KindSymbol }

func NewSymbol(description string) *Symbol {
	return &Symbol{ID: uuid.NewString(), Description: description}
}

func (s *Symbol) String() string {
	return "Symbol(" + s.Description + ")"
}

// PropertyKey is a string or symbol key. Exactly one of name/sym is
// meaningful; sym wins when non-nil.
type PropertyKey struct {
	name string
	sym  *Symbol
}

func NameKey(name string) PropertyKey   { return PropertyKey{name: name} }
func SymbolKey(s *Symbol) PropertyKey   { return PropertyKey{sym: s} }
func (k PropertyKey) IsSymbol() bool    { return k.sym != nil }
func (k PropertyKey) Name() string      { return k.name }
func (k PropertyKey) Symbol() *Symbol   { return k.sym }

func (k PropertyKey) String() string {
	if k.sym != nil {
		return k.sym.String()
	}
	return k.name
}

// Property is a property slot: either a data property (Value) or an
// accessor pair (Get/Set).
type Property struct {
	Value        Value
	Get          *Object
	Set          *Object
	Writable     bool
	Enumerable   bool
	Configurable bool
}

func (p *Property) isAccessor() bool { return p.Get != nil || p.Set != nil }

// DataProperty builds the default data descriptor (writable,
// enumerable, configurable), matching ordinary assignment.
func DataProperty(v Value) *Property {
	return &Property{Value: v, Writable: true, Enumerable: true, Configurable: true}
}

// methodProperty is the descriptor shape of class and object methods:
// non-enumerable, writable, configurable.
func methodProperty(v Value) *Property {
	return &Property{Value: v, Writable: true, Enumerable: false, Configurable: true}
}

// Brand identifies membership in one class's private-name scope.
// Identity is pointer identity; Key serves diagnostics only.
type Brand struct {
	Key string
}

func NewBrand(className string) *Brand {
	return &Brand{Key: className + "#" + uuid.NewString()}
}

// Object is the single representation for ordinary objects, arrays,
// functions, arguments objects and wrapped primitives. At any time at
// most one of arrayPart, fn, generator, promise and primitive is set.
type Object struct {
	proto      *Object
	keys       []PropertyKey
	props      map[PropertyKey]*Property
	extensible bool
	class      string

	arrayPart []Value
	fn        *FunctionInfo
	generator *generatorInstance
	promise   *promiseState
	regexp    *regexpPart
	primitive Value

	brands map[*Brand]struct{}
}

type regexpPart struct {
	Pattern string
	Flags   string
}

func (o *Object) Kind() Kind {
	if o.fn != nil {
		return KindFunction
	}
	return KindObject
}

func NewObject(proto *Object) *Object {
	return &Object{
		proto:      proto,
		props:      make(map[PropertyKey]*Property),
		extensible: true,
		class:      "Object",
	}
}

func (o *Object) Class() string      { return o.class }
func (o *Object) Prototype() *Object { return o.proto }

func (o *Object) SetPrototype(p *Object) { o.proto = p }

func (o *Object) IsCallable() bool { return o.fn != nil }

func (o *Object) IsArray() bool { return o.arrayPart != nil }

// PreventExtensions freezes the key set; existing slots stay mutable
// subject to their descriptors.
func (o *Object) PreventExtensions() { o.extensible = false }

func (o *Object) GetOwnPropertyDescriptor(key PropertyKey) (*Property, bool) {
	if o.arrayPart != nil {
		if idx, ok := arrayIndex(key); ok {
			if idx < len(o.arrayPart) {
				return DataProperty(o.arrayPart[idx]), true
			}
			return nil, false
		}
		if !key.IsSymbol() && key.name == "length" {
			return &Property{Value: Number(len(o.arrayPart)), Writable: true}, true
		}
	}
	p, ok := o.props[key]
	return p, ok
}

func (o *Object) HasOwnProperty(key PropertyKey) bool {
	_, ok := o.GetOwnPropertyDescriptor(key)
	return ok
}

// HasProperty walks the prototype chain.
func (o *Object) HasProperty(key PropertyKey) bool {
	for obj := o; obj != nil; obj = obj.proto {
		if obj.HasOwnProperty(key) {
			return true
		}
	}
	return false
}

// TryGetProperty reads key through the prototype chain, invoking
// getters against the original receiver. The bool result reports
// whether any slot was found.
func (o *Object) TryGetProperty(cx *Context, key PropertyKey) (Value, bool, error) {
	for obj := o; obj != nil; obj = obj.proto {
		p, ok := obj.GetOwnPropertyDescriptor(key)
		if !ok {
			continue
		}
		if p.Get != nil {
			v, err := p.Get.Invoke(cx, o, nil)
			return v, true, err
		}
		if p.isAccessor() {
			return Undefined{}, true, nil
		}
		return p.Value, true, nil
	}
	return Undefined{}, false, nil
}

// GetProperty is TryGetProperty defaulting to undefined.
func (o *Object) GetProperty(cx *Context, key PropertyKey) (Value, error) {
	v, _, err := o.TryGetProperty(cx, key)
	return v, err
}

// SetProperty follows ordinary [[Set]]: setters on the chain win, data
// properties on the chain are shadowed on the receiver, non-writable
// slots reject (TypeError in strict mode, silently ignored otherwise;
// the caller decides by inspecting the bool).
func (o *Object) SetProperty(cx *Context, key PropertyKey, value Value) (bool, error) {
	if o.arrayPart != nil {
		if idx, ok := arrayIndex(key); ok {
			for len(o.arrayPart) <= idx {
				o.arrayPart = append(o.arrayPart, Undefined{})
			}
			o.arrayPart[idx] = value
			return true, nil
		}
		if !key.IsSymbol() && key.name == "length" {
			n, isNum := value.(Number)
			if !isNum || n < 0 {
				return false, nil
			}
			o.truncateArray(int(n))
			return true, nil
		}
	}

	for obj := o; obj != nil; obj = obj.proto {
		p, ok := obj.props[key]
		if !ok {
			continue
		}
		if p.Set != nil {
			_, err := p.Set.Invoke(cx, o, []Value{value})
			return true, err
		}
		if p.isAccessor() {
			return false, nil
		}
		if obj == o {
			if !p.Writable {
				return false, nil
			}
			p.Value = value
			return true, nil
		}
		if !p.Writable {
			return false, nil
		}
		break
	}

	if !o.extensible {
		return false, nil
	}
	o.defineOrdered(key, DataProperty(value))
	return true, nil
}

func (o *Object) truncateArray(n int) {
	for len(o.arrayPart) > n {
		o.arrayPart = o.arrayPart[:len(o.arrayPart)-1]
	}
	for len(o.arrayPart) < n {
		o.arrayPart = append(o.arrayPart, Undefined{})
	}
}

// DefineProperty installs or replaces a slot without running setters.
func (o *Object) DefineProperty(key PropertyKey, p *Property) {
	if o.arrayPart != nil {
		if idx, ok := arrayIndex(key); ok && !p.isAccessor() {
			for len(o.arrayPart) <= idx {
				o.arrayPart = append(o.arrayPart, Undefined{})
			}
			o.arrayPart[idx] = p.Value
			return
		}
	}
	o.defineOrdered(key, p)
}

func (o *Object) defineOrdered(key PropertyKey, p *Property) {
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = p
}

func (o *Object) DeleteProperty(key PropertyKey) bool {
	p, ok := o.props[key]
	if !ok {
		if o.arrayPart != nil {
			if idx, okIdx := arrayIndex(key); okIdx && idx < len(o.arrayPart) {
				o.arrayPart[idx] = Undefined{}
				return true
			}
		}
		return true
	}
	if !p.Configurable {
		return false
	}
	delete(o.props, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// OwnKeysInOrder reports own string keys in insertion order, array
// indices first. This is the GetEnumerableOwnPropertyKeysInOrder
// collaborator of the iterator machinery and object rest.
func (o *Object) OwnKeysInOrder(enumerableOnly bool) []string {
	var out []string
	for i := range o.arrayPart {
		out = append(out, strconv.Itoa(i))
	}
	for _, k := range o.keys {
		if k.IsSymbol() {
			continue
		}
		p := o.props[k]
		if enumerableOnly && !p.Enumerable {
			continue
		}
		out = append(out, k.name)
	}
	return out
}

// Private brands.

func (o *Object) HasPrivateBrand(b *Brand) bool {
	_, ok := o.brands[b]
	return ok
}

func (o *Object) AddPrivateBrand(b *Brand) {
	if o.brands == nil {
		o.brands = make(map[*Brand]struct{})
	}
	o.brands[b] = struct{}{}
}

// arrayIndex interprets a key as a dense array index.
func arrayIndex(key PropertyKey) (int, bool) {
	if key.IsSymbol() || key.name == "" {
		return 0, false
	}
	for _, c := range key.name {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(key.name)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NewArray builds an array object over the realm's Array prototype.
func (r *Realm) NewArray(items ...Value) *Object {
	o := NewObject(r.ArrayProto)
	o.class = "Array"
	o.arrayPart = make([]Value, 0, max(len(items), 4))
	o.arrayPart = append(o.arrayPart, items...)
	return o
}

func (o *Object) ArrayItems() []Value { return o.arrayPart }

// ---------------------------------------------------------------------------
// Functions

// NativeFunc is the Go implementation of a built-in. A returned error
// that is a *ThrowSignal becomes a JS throw completion; any other error
// aborts the host invocation.
type NativeFunc func(cx *Context, this Value, args []Value) (Value, error)

type thisMode uint8

const (
	thisModeOrdinary thisMode = iota
	thisModeLexical  // arrows: no own this, walk the closure chain
	thisModeStrict
)

type ctorKind uint8

const (
	ctorNone ctorKind = iota
	ctorBase
	ctorDerived
)

// instanceField is one class instance field recorded on the
// constructor for execution at construction time.
type instanceField struct {
	key       PropertyKey
	isPrivate bool
	name      string
	init      ast.Expression
	// env is the class body scope the initializer evaluates in.
	env *Environment
}

// FunctionInfo carries everything needed to invoke a function value:
// either a native callback or a declared body plus its captured scope.
type FunctionInfo struct {
	name   string
	strict bool

	native NativeFunc

	params   []ast.Param
	body     *ast.BlockStmt
	exprBody ast.Expression
	closure  *Environment

	thisMode  thisMode
	async     bool
	generator bool

	// class machinery
	home     *Object
	super    *SuperBinding
	ctor     ctorKind
	fields   []instanceField
	brand    *Brand
	privates *PrivateNameScope
}

func (fi *FunctionInfo) Name() string { return fi.name }

// SuperBinding is the home-object pair super dispatch resolves against.
type SuperBinding struct {
	Home       *Object
	SuperProto *Object
}

// NewNativeFunction wraps a Go callback as a callable object.
func (r *Realm) NewNativeFunction(name string, arity int, fn NativeFunc) *Object {
	o := NewObject(r.FunctionProto)
	o.class = "Function"
	o.fn = &FunctionInfo{name: name, strict: true, native: fn}
	o.defineOrdered(NameKey("name"), &Property{Value: String(name), Configurable: true})
	o.defineOrdered(NameKey("length"), &Property{Value: Number(arity), Configurable: true})
	return o
}

// Callable is the basic invocation contract. Natives receive the
// evaluation context, so stack-frame-aware built-ins need no separate
// variant.
type Callable interface {
	Invoke(cx *Context, this Value, args []Value) (Value, error)
}

// EnvironmentAwareCallable additionally receives the calling JS
// environment, for eval-like natives.
type EnvironmentAwareCallable interface {
	InvokeWithEnvironment(cx *Context, env *Environment, this Value, args []Value) (Value, error)
}

// ObjectLike is the property surface the evaluator needs from any
// object representation.
type ObjectLike interface {
	TryGetProperty(cx *Context, key PropertyKey) (Value, bool, error)
	SetProperty(cx *Context, key PropertyKey, value Value) (bool, error)
	DefineProperty(key PropertyKey, p *Property)
	GetOwnPropertyDescriptor(key PropertyKey) (*Property, bool)
	Prototype() *Object
	SetPrototype(p *Object)
}

// PrivateBrandHolder carries class brands for private member checks.
type PrivateBrandHolder interface {
	HasPrivateBrand(b *Brand) bool
	AddPrivateBrand(b *Brand)
}

var (
	_ Callable           = (*Object)(nil)
	_ ObjectLike         = (*Object)(nil)
	_ PrivateBrandHolder = (*Object)(nil)
)

// ---------------------------------------------------------------------------
// misc value helpers

func isUndefined(v Value) bool {
	_, ok := v.(Undefined)
	return ok
}

func isNullish(v Value) bool {
	switch v.(type) {
	case Undefined, Null:
		return true
	}
	return false
}

func asObject(v Value) (*Object, bool) {
	o, ok := v.(*Object)
	return o, ok
}

func numberToString(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == math.Trunc(n) && math.Abs(n) < 1e21:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
}

// InspectValue renders a value for diagnostics and the CLI.
func InspectValue(v Value) string {
	switch spec := v.(type) {
	case nil:
		return "<nil>"
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Boolean:
		if spec {
			return "true"
		}
		return "false"
	case Number:
		return numberToString(float64(spec))
	case BigInt:
		return strconv.FormatInt(int64(spec), 10) + "n"
	case String:
		return strconv.Quote(string(spec))
	case *Symbol:
		return spec.String()
	case *Object:
		if spec.fn != nil {
			if spec.fn.name != "" {
				return "[Function " + spec.fn.name + "]"
			}
			return "[Function anonymous]"
		}
		if spec.arrayPart != nil {
			s := "["
			for i, item := range spec.arrayPart {
				if i > 0 {
					s += ", "
				}
				s += InspectValue(item)
			}
			return s + "]"
		}
		return "[object " + spec.class + "]"
	default:
		return fmt.Sprintf("%#v", v)
	}
}
