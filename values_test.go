package skiff

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOwnKeysInOrderTracksInsertion(t *testing.T) {
	obj := NewObject(nil)
	obj.defineOrdered(NameKey("b"), DataProperty(Number(1)))
	obj.defineOrdered(NameKey("a"), DataProperty(Number(2)))
	obj.defineOrdered(NameKey("c"), DataProperty(Number(3)))
	require.Equal(t, []string{"b", "a", "c"}, obj.OwnKeysInOrder(true))

	obj.DeleteProperty(NameKey("a"))
	require.Equal(t, []string{"b", "c"}, obj.OwnKeysInOrder(true))

	obj.defineOrdered(NameKey("a"), DataProperty(Number(4)))
	require.Equal(t, []string{"b", "c", "a"}, obj.OwnKeysInOrder(true))
}

func TestOwnKeysSkipsNonEnumerableAndSymbols(t *testing.T) {
	realm := NewRealm()
	obj := NewObject(nil)
	obj.defineOrdered(NameKey("visible"), DataProperty(Number(1)))
	obj.defineOrdered(NameKey("hidden"), methodProperty(Number(2)))
	obj.DefineProperty(SymbolKey(realm.SymIterator), DataProperty(Number(3)))
	require.Equal(t, []string{"visible"}, obj.OwnKeysInOrder(true))
}

func TestSetPropertyRespectsSettersOnPrototype(t *testing.T) {
	realm := NewRealm()
	cx := newTestContext(realm)

	var captured Value
	proto := NewObject(nil)
	proto.defineOrdered(NameKey("v"), &Property{
		Set: realm.NewNativeFunction("set", 1, func(cx *Context, this Value, args []Value) (Value, error) {
			captured = args[0]
			return Undefined{}, nil
		}),
		Configurable: true,
	})

	obj := NewObject(proto)
	ok, err := obj.SetProperty(cx, NameKey("v"), Number(9))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Number(9), captured)
	require.False(t, obj.HasOwnProperty(NameKey("v")), "setter consumed the write")
}

func TestSetPropertyShadowsWritableProtoData(t *testing.T) {
	realm := NewRealm()
	cx := newTestContext(realm)

	proto := NewObject(nil)
	proto.defineOrdered(NameKey("v"), DataProperty(Number(1)))
	obj := NewObject(proto)

	ok, err := obj.SetProperty(cx, NameKey("v"), Number(2))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, obj.HasOwnProperty(NameKey("v")))

	pv, _ := proto.GetProperty(cx, NameKey("v"))
	require.Equal(t, Number(1), pv, "the prototype slot is untouched")
}

func TestNonWritableOwnPropertyRejectsWrite(t *testing.T) {
	realm := NewRealm()
	cx := newTestContext(realm)

	obj := NewObject(nil)
	obj.defineOrdered(NameKey("v"), &Property{Value: Number(1), Writable: false})
	ok, err := obj.SetProperty(cx, NameKey("v"), Number(2))
	require.NoError(t, err)
	require.False(t, ok)
	v, _ := obj.GetProperty(cx, NameKey("v"))
	require.Equal(t, Number(1), v)
}

func TestPreventExtensionsBlocksNewSlots(t *testing.T) {
	realm := NewRealm()
	cx := newTestContext(realm)

	obj := NewObject(nil)
	obj.PreventExtensions()
	ok, err := obj.SetProperty(cx, NameKey("fresh"), Number(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPrivateBrands(t *testing.T) {
	a := NewBrand("A")
	b := NewBrand("A") // same class name, distinct token
	require.NotSame(t, a, b)

	obj := NewObject(nil)
	require.False(t, obj.HasPrivateBrand(a))
	obj.AddPrivateBrand(a)
	require.True(t, obj.HasPrivateBrand(a))
	require.False(t, obj.HasPrivateBrand(b))
}

func TestSymbolKeysAreIdentityKeyed(t *testing.T) {
	s1 := NewSymbol("x")
	s2 := NewSymbol("x")
	obj := NewObject(nil)
	obj.DefineProperty(SymbolKey(s1), DataProperty(Number(1)))
	require.True(t, obj.HasOwnProperty(SymbolKey(s1)))
	require.False(t, obj.HasOwnProperty(SymbolKey(s2)))
}

func TestArrayPartGrowthAndLength(t *testing.T) {
	realm := NewRealm()
	cx := newTestContext(realm)
	arr := realm.NewArray(Number(1))

	ok, err := arr.SetProperty(cx, NameKey("3"), String("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, arr.ArrayItems(), 4)
	require.Equal(t, Undefined{}, arr.ArrayItems()[1])

	length, _ := arr.GetProperty(cx, NameKey("length"))
	require.Equal(t, Number(4), length)

	ok, err = arr.SetProperty(cx, NameKey("length"), Number(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, arr.ArrayItems(), 1)
}

func TestInspectValueRendering(t *testing.T) {
	require.Equal(t, "undefined", InspectValue(Undefined{}))
	require.Equal(t, "null", InspectValue(Null{}))
	require.Equal(t, "3", InspectValue(Number(3)))
	require.Equal(t, "1.5", InspectValue(Number(1.5)))
	require.Equal(t, "NaN", InspectValue(Number(nan())))
	require.Equal(t, "7n", InspectValue(BigInt(7)))
	require.Equal(t, `"s"`, InspectValue(String("s")))

	realm := NewRealm()
	require.Equal(t, "[1, 2]", InspectValue(realm.NewArray(Number(1), Number(2))))
}
