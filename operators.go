package skiff

import "math"

// addition implements the + operator:
//
//	a. Let lprim be ? ToPrimitive(lval).
//	b. Let rprim be ? ToPrimitive(rval).
//	c. If lprim is a String or rprim is a String, concatenate.
//	d. Otherwise proceed numerically.
func (cx *Context) addition(left, right Value) (Value, error) {
	lprim, err := cx.toPrimitive(left, hintDefault)
	if err != nil {
		return nil, err
	}
	rprim, err := cx.toPrimitive(right, hintDefault)
	if err != nil {
		return nil, err
	}

	_, lIsStr := lprim.(String)
	_, rIsStr := rprim.(String)
	if lIsStr || rIsStr {
		ls, err := cx.toStringErr(lprim)
		if err != nil {
			return nil, err
		}
		rs, err := cx.toStringErr(rprim)
		if err != nil {
			return nil, err
		}
		return ls + rs, nil
	}

	return cx.arithmeticOp("+", lprim, rprim)
}

// arithmeticOp dispatches a numeric binary operator after ToNumeric on
// both sides. Mixing number and bigint operands is a TypeError.
func (cx *Context) arithmeticOp(op string, left, right Value) (Value, error) {
	ln, err := cx.toNumeric(left)
	if err != nil {
		return nil, err
	}
	rn, err := cx.toNumeric(right)
	if err != nil {
		return nil, err
	}

	if ln.Kind() != rn.Kind() {
		return nil, cx.Throw(cx.Realm.NewTypeError("Cannot mix BigInt and other types, use explicit conversions"))
	}

	if li, isBig := ln.(BigInt); isBig {
		ri := rn.(BigInt)
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "/":
			if ri == 0 {
				return nil, cx.Throw(cx.Realm.NewRangeError("Division by zero"))
			}
			return li / ri, nil
		case "%":
			if ri == 0 {
				return nil, cx.Throw(cx.Realm.NewRangeError("Division by zero"))
			}
			return li % ri, nil
		case "**":
			if ri < 0 {
				return nil, cx.Throw(cx.Realm.NewRangeError("Exponent must be non-negative"))
			}
			result := BigInt(1)
			for i := BigInt(0); i < ri; i++ {
				result *= li
			}
			return result, nil
		case "<<":
			return li << ri, nil
		case ">>":
			return li >> ri, nil
		case ">>>":
			return nil, cx.Throw(cx.Realm.NewTypeError("BigInts have no unsigned right shift, use >> instead"))
		case "&":
			return li & ri, nil
		case "|":
			return li | ri, nil
		case "^":
			return li ^ ri, nil
		default:
			panic("bug: arithmeticOp: unknown operator " + op)
		}
	}

	lf := float64(ln.(Number))
	rf := float64(rn.(Number))
	switch op {
	case "+":
		return Number(lf + rf), nil
	case "-":
		return Number(lf - rf), nil
	case "*":
		return Number(lf * rf), nil
	case "/":
		return Number(lf / rf), nil
	case "%":
		return Number(floatRemainder(lf, rf)), nil
	case "**":
		return Number(math.Pow(lf, rf)), nil
	case "<<":
		return Number(toInt32(lf) << (toUint32(rf) & 31)), nil
	case ">>":
		return Number(toInt32(lf) >> (toUint32(rf) & 31)), nil
	case ">>>":
		return Number(toUint32(lf) >> (toUint32(rf) & 31)), nil
	case "&":
		return Number(toInt32(lf) & toInt32(rf)), nil
	case "|":
		return Number(toInt32(lf) | toInt32(rf)), nil
	case "^":
		return Number(toInt32(lf) ^ toInt32(rf)), nil
	default:
		panic("bug: arithmeticOp: unknown operator " + op)
	}
}

func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Trunc(f))))
}

func toUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return uint32(int64(math.Trunc(f)))
}

// floatRemainder implements the Number::remainder steps.
func floatRemainder(n, d float64) float64 {
	// 1. If n is NaN or d is NaN, return NaN.
	if math.IsNaN(n) || math.IsNaN(d) {
		return math.NaN()
	}
	// 2. If n is infinite, return NaN.
	if math.IsInf(n, 0) {
		return math.NaN()
	}
	// 3. If d is infinite, return n.
	if math.IsInf(d, 0) {
		return n
	}
	// 4. If d is zero, return NaN.
	if d == 0 {
		return math.NaN()
	}
	// 5. If n is zero, return n (sign preserved).
	if n == 0 {
		return n
	}
	q := math.Trunc(n / d)
	r := n - d*q
	if r == 0 && math.Signbit(n) {
		return math.Copysign(0, -1)
	}
	return r
}

// instanceOf walks the prototype chain of left against the prototype
// property of right.
func (cx *Context) instanceOf(left, right Value) (bool, error) {
	ctor, ok := asObject(right)
	if !ok || !ctor.IsCallable() {
		return false, cx.Throw(cx.Realm.NewTypeError("Right-hand side of 'instanceof' is not callable"))
	}
	protoVal, err := ctor.GetProperty(cx, NameKey("prototype"))
	if err != nil {
		return false, err
	}
	proto, ok := asObject(protoVal)
	if !ok {
		return false, cx.Throw(cx.Realm.NewTypeError("Function has non-object prototype in instanceof check"))
	}
	obj, ok := asObject(left)
	if !ok {
		return false, nil
	}
	for o := obj.proto; o != nil; o = o.proto {
		if o == proto {
			return true, nil
		}
	}
	return false, nil
}

// inOperator implements `key in obj`.
func (cx *Context) inOperator(left, right Value) (bool, error) {
	obj, ok := asObject(right)
	if !ok {
		return false, cx.Throw(cx.Realm.NewTypeError("Cannot use 'in' operator to search in a non-object"))
	}
	key, err := cx.toPropertyKeyErr(left)
	if err != nil {
		return false, err
	}
	return obj.HasProperty(key), nil
}
