package skiff

import (
	"math"
	"strconv"
	"strings"
)

func nan() float64 { return math.NaN() }
func inf() float64 { return math.Inf(1) }

// toBoolean never fails: every value has a boolean interpretation.
func (cx *Context) toBoolean(v Value) bool {
	switch spec := v.(type) {
	case Undefined, Null:
		return false
	case Boolean:
		return bool(spec)
	case Number:
		return spec != 0 && !math.IsNaN(float64(spec))
	case BigInt:
		return spec != 0
	case String:
		return spec != ""
	case *Symbol:
		return true
	case *Object:
		return true
	default:
		panic("bug: toBoolean: unexpected value representation")
	}
}

type primitiveHint uint8

const (
	hintDefault primitiveHint = iota
	hintNumber
	hintString
)

// toPrimitive runs OrdinaryToPrimitive: valueOf then toString for the
// number/default hints, the reverse for the string hint.
func (cx *Context) toPrimitive(v Value, hint primitiveHint) (Value, error) {
	obj, isObj := asObject(v)
	if !isObj {
		return v, nil
	}

	callOrder := []string{"valueOf", "toString"}
	if hint == hintString {
		callOrder = []string{"toString", "valueOf"}
	}

	for _, methodName := range callOrder {
		method, err := obj.GetProperty(cx, NameKey(methodName))
		if err != nil {
			return nil, err
		}
		methodObj, ok := asObject(method)
		if !ok || !methodObj.IsCallable() {
			continue
		}
		ret, err := methodObj.Invoke(cx, v, nil)
		if err != nil {
			return nil, err
		}
		if _, stillObj := asObject(ret); !stillObj {
			return ret, nil
		}
	}
	return nil, cx.Throw(cx.Realm.NewTypeError("Cannot convert object to primitive value"))
}

func (cx *Context) toNumberErr(v Value) (Number, error) {
	switch spec := v.(type) {
	case Undefined:
		return Number(math.NaN()), nil
	case Null:
		return 0, nil
	case Boolean:
		if spec {
			return 1, nil
		}
		return 0, nil
	case Number:
		return spec, nil
	case BigInt:
		return nil2num(), cx.Throw(cx.Realm.NewTypeError("Cannot convert a BigInt value to a number"))
	case String:
		return stringToNumber(string(spec)), nil
	case *Symbol:
		return nil2num(), cx.Throw(cx.Realm.NewTypeError("Cannot convert a Symbol value to a number"))
	case *Object:
		prim, err := cx.toPrimitive(v, hintNumber)
		if err != nil {
			return 0, err
		}
		return cx.toNumberErr(prim)
	default:
		panic("bug: toNumberErr: unexpected value representation")
	}
}

func nil2num() Number { return Number(math.NaN()) }

// stringToNumber follows the string-literal grammar loosely: trimmed
// whitespace, empty means 0, Infinity recognized, otherwise ParseFloat.
func stringToNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return Number(math.Inf(1))
	case "-Infinity":
		return Number(math.Inf(-1))
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseInt(s[2:], 16, 64)
		if err != nil {
			return Number(math.NaN())
		}
		return Number(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number(math.NaN())
	}
	return Number(f)
}

// toNumeric yields a Number or a BigInt, the operand shape the
// arithmetic operators dispatch on.
func (cx *Context) toNumeric(v Value) (Value, error) {
	prim, err := cx.toPrimitive(v, hintNumber)
	if err != nil {
		return nil, err
	}
	if bi, isBig := prim.(BigInt); isBig {
		return bi, nil
	}
	return cx.toNumberErr(prim)
}

func (cx *Context) toStringErr(v Value) (String, error) {
	switch spec := v.(type) {
	case Undefined:
		return "undefined", nil
	case Null:
		return "null", nil
	case Boolean:
		if spec {
			return "true", nil
		}
		return "false", nil
	case Number:
		return String(numberToString(float64(spec))), nil
	case BigInt:
		return String(strconv.FormatInt(int64(spec), 10)), nil
	case String:
		return spec, nil
	case *Symbol:
		return "", cx.Throw(cx.Realm.NewTypeError("Cannot convert a Symbol value to a string"))
	case *Object:
		prim, err := cx.toPrimitive(v, hintString)
		if err != nil {
			return "", err
		}
		return cx.toStringErr(prim)
	default:
		panic("bug: toStringErr: unexpected value representation")
	}
}

func (cx *Context) toBigIntErr(v Value) (BigInt, error) {
	prim := v
	if _, isObj := asObject(v); isObj {
		var err error
		prim, err = cx.toPrimitive(v, hintNumber)
		if err != nil {
			return 0, err
		}
	}
	switch spec := prim.(type) {
	case BigInt:
		return spec, nil
	case Boolean:
		if spec {
			return 1, nil
		}
		return 0, nil
	case Number:
		if spec != Number(math.Trunc(float64(spec))) {
			return 0, cx.Throw(cx.Realm.NewRangeError("The number %s cannot be converted to a BigInt because it is not an integer"))
		}
		return BigInt(spec), nil
	case String:
		n, err := strconv.ParseInt(strings.TrimSpace(string(spec)), 10, 64)
		if err != nil {
			return 0, cx.Throw(cx.Realm.NewSyntaxError("Cannot convert " + string(spec) + " to a BigInt"))
		}
		return BigInt(n), nil
	default:
		return 0, cx.Throw(cx.Realm.NewTypeError("Cannot convert value to a BigInt"))
	}
}

// toObject boxes primitives over their realm prototypes; null and
// undefined refuse.
func (cx *Context) toObject(v Value) (*Object, error) {
	r := cx.Realm
	switch spec := v.(type) {
	case *Object:
		return spec, nil
	case String:
		o := NewObject(r.StringProto)
		o.class = "String"
		o.primitive = spec
		o.defineOrdered(NameKey("length"), &Property{Value: Number(len(spec))})
		return o, nil
	case Number:
		o := NewObject(r.NumberProto)
		o.class = "Number"
		o.primitive = spec
		return o, nil
	case Boolean:
		o := NewObject(r.BooleanProto)
		o.class = "Boolean"
		o.primitive = spec
		return o, nil
	case BigInt:
		o := NewObject(r.BigIntProto)
		o.class = "BigInt"
		o.primitive = spec
		return o, nil
	case *Symbol:
		o := NewObject(r.SymbolProto)
		o.class = "Symbol"
		o.primitive = spec
		return o, nil
	default:
		return nil, cx.Throw(r.NewTypeError("Cannot convert undefined or null to object"))
	}
}

// toPropertyKeyErr resolves a computed property name: symbols pass
// through, everything else stringifies.
func (cx *Context) toPropertyKeyErr(v Value) (PropertyKey, error) {
	if sym, ok := v.(*Symbol); ok {
		return SymbolKey(sym), nil
	}
	s, err := cx.toStringErr(v)
	if err != nil {
		return PropertyKey{}, err
	}
	return NameKey(string(s)), nil
}

func typeOf(v Value) string {
	switch spec := v.(type) {
	case Undefined:
		return "undefined"
	case Null:
		return "object"
	case Boolean:
		return "boolean"
	case Number:
		return "number"
	case BigInt:
		return "bigint"
	case String:
		return "string"
	case *Symbol:
		return "symbol"
	case *Object:
		if spec.IsCallable() {
			return "function"
		}
		return "object"
	default:
		panic("bug: typeOf: unexpected value representation")
	}
}

// ---------------------------------------------------------------------------
// equality and relational comparison

func strictEquals(a, b Value) bool {
	switch av := a.(type) {
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case Null:
		_, ok := b.(Null)
		return ok
	case Boolean:
		bv, ok := b.(Boolean)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case BigInt:
		bv, ok := b.(BigInt)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case *Symbol:
		bv, ok := b.(*Symbol)
		return ok && av == bv
	case *Object:
		bv, ok := b.(*Object)
		return ok && av == bv
	default:
		panic("bug: strictEquals: unexpected value representation")
	}
}

func (cx *Context) looseEquals(a, b Value) (bool, error) {
	for range [6]struct{}{} {
		if a.Kind() == b.Kind() || (a.Kind() == KindObject && b.Kind() == KindFunction) ||
			(a.Kind() == KindFunction && b.Kind() == KindObject) {
			return strictEquals(a, b), nil
		}

		aNullish := isNullish(a)
		bNullish := isNullish(b)
		if aNullish || bNullish {
			return aNullish && bNullish, nil
		}

		_, aIsObj := asObject(a)
		_, bIsObj := asObject(b)
		if aIsObj {
			var err error
			a, err = cx.toPrimitive(a, hintDefault)
			if err != nil {
				return false, err
			}
			continue
		}
		if bIsObj {
			var err error
			b, err = cx.toPrimitive(b, hintDefault)
			if err != nil {
				return false, err
			}
			continue
		}

		_, aIsSym := a.(*Symbol)
		_, bIsSym := b.(*Symbol)
		if aIsSym || bIsSym {
			return false, nil
		}

		if ab, ok := a.(Boolean); ok {
			a = boolToNumber(ab)
			continue
		}
		if bb, ok := b.(Boolean); ok {
			b = boolToNumber(bb)
			continue
		}

		_, aIsStr := a.(String)
		_, bIsStr := b.(String)
		_, aIsNum := a.(Number)
		_, bIsNum := b.(Number)
		ai, aIsBig := a.(BigInt)
		bi, bIsBig := b.(BigInt)

		if aIsStr && bIsNum {
			a = stringToNumber(string(a.(String)))
			continue
		}
		if aIsNum && bIsStr {
			b = stringToNumber(string(b.(String)))
			continue
		}
		if aIsStr && bIsBig {
			n, err := strconv.ParseInt(string(a.(String)), 10, 64)
			if err != nil {
				return false, nil
			}
			a = BigInt(n)
			continue
		}
		if aIsBig && bIsStr {
			n, err := strconv.ParseInt(string(b.(String)), 10, 64)
			if err != nil {
				return false, nil
			}
			b = BigInt(n)
			continue
		}
		if aIsNum && bIsBig {
			af := float64(a.(Number))
			if math.IsNaN(af) || math.IsInf(af, 0) {
				return false, nil
			}
			return af == float64(bi), nil
		}
		if aIsBig && bIsNum {
			bf := float64(b.(Number))
			if math.IsNaN(bf) || math.IsInf(bf, 0) {
				return false, nil
			}
			return float64(ai) == bf, nil
		}

		return false, nil
	}
	panic("bug: looseEquals did not converge")
}

func boolToNumber(b Boolean) Number {
	if b {
		return 1
	}
	return 0
}

type tribool uint8

const (
	triFalse tribool = iota
	triTrue
	triNeither
)

func bool2tri(b bool) tribool {
	if b {
		return triTrue
	}
	return triFalse
}

// compareLess implements the abstract relational comparison on
// primitives; triNeither encodes the NaN-involved undefined result.
func (cx *Context) compareLess(a, b Value) (tribool, error) {
	if aStr, ok := a.(String); ok {
		if bStr, ok := b.(String); ok {
			return bool2tri(aStr < bStr), nil
		}
		if bBig, ok := b.(BigInt); ok {
			n, err := strconv.ParseInt(string(aStr), 10, 64)
			if err != nil {
				return triNeither, nil
			}
			return bool2tri(n < int64(bBig)), nil
		}
	}
	if aBig, ok := a.(BigInt); ok {
		if bStr, ok := b.(String); ok {
			n, err := strconv.ParseInt(string(bStr), 10, 64)
			if err != nil {
				return triNeither, nil
			}
			return bool2tri(int64(aBig) < n), nil
		}
	}

	an, err := cx.toNumericRelaxed(a)
	if err != nil {
		return triNeither, err
	}
	bn, err := cx.toNumericRelaxed(b)
	if err != nil {
		return triNeither, err
	}

	switch av := an.(type) {
	case Number:
		if math.IsNaN(float64(av)) {
			return triNeither, nil
		}
		switch bv := bn.(type) {
		case Number:
			if math.IsNaN(float64(bv)) {
				return triNeither, nil
			}
			return bool2tri(av < bv), nil
		case BigInt:
			return bool2tri(int64(math.Floor(float64(av))) < int64(bv)), nil
		}
	case BigInt:
		switch bv := bn.(type) {
		case Number:
			if math.IsNaN(float64(bv)) {
				return triNeither, nil
			}
			return bool2tri(int64(av) < int64(math.Ceil(float64(bv)))), nil
		case BigInt:
			return bool2tri(av < bv), nil
		}
	}
	panic("bug: compareLess: toNumeric returned a non-numeric")
}

// toNumericRelaxed converts strings straight to numbers and defers
// every other value to toNumeric.
func (cx *Context) toNumericRelaxed(v Value) (Value, error) {
	if s, ok := v.(String); ok {
		return stringToNumber(string(s)), nil
	}
	return cx.toNumeric(v)
}

func (cx *Context) isLessThan(a, b Value) (bool, error) {
	tri, err := cx.compareLess(a, b)
	return tri == triTrue, err
}

// isNotLessThan treats triNeither as false, which encodes the spec's
// NaN rule for <= and >=.
func (cx *Context) isNotLessThan(a, b Value) (bool, error) {
	tri, err := cx.compareLess(a, b)
	return tri == triFalse, err
}
