package skiff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skiffjs/skiff/syntax"
)

func TestCompletionValueOfExpressionStatement(t *testing.T) {
	require.Equal(t, Number(42), mustRun(t, `40 + 2`))
}

func TestArithmeticAndStringConcat(t *testing.T) {
	require.Equal(t, Number(7), mustRun(t, `1 + 2 * 3`))
	require.Equal(t, String("a1"), mustRun(t, `"a" + 1`))
	require.Equal(t, Number(1), mustRun(t, `7 % 3`))
	require.Equal(t, Number(-0x10), mustRun(t, `~15`))
}

func TestEqualityOperators(t *testing.T) {
	require.Equal(t, Boolean(true), mustRun(t, `1 == "1"`))
	require.Equal(t, Boolean(false), mustRun(t, `1 === "1"`))
	require.Equal(t, Boolean(true), mustRun(t, `null == undefined`))
	require.Equal(t, Boolean(false), mustRun(t, `null === undefined`))
	require.Equal(t, Boolean(false), mustRun(t, `NaN === NaN`))
}

func TestFunctionCallAndClosure(t *testing.T) {
	v := mustRun(t, `
		function adder(n) {
			return function (m) { return n + m; };
		}
		adder(40)(2);
	`)
	require.Equal(t, Number(42), v)
}

func TestFunctionHoisting(t *testing.T) {
	// typeof f is "function" before its declaration, typeof g is
	// "undefined" before its var assignment
	v := mustRun(t, `
		var early = typeof f;
		var earlyVar = typeof g;
		function f() {}
		var g = function () {};
		early + "," + earlyVar;
	`)
	require.Equal(t, String("function,undefined"), v)
}

func TestVarHoistsToFunctionScope(t *testing.T) {
	v := mustRun(t, `
		function probe() {
			var before = typeof x;
			if (true) { var x = 1; }
			return before + "," + x;
		}
		probe();
	`)
	require.Equal(t, String("undefined,1"), v)
}

func TestStrictAssignmentToUndeclaredThrows(t *testing.T) {
	_, err := runScript(t, `"use strict"; missing = 1;`)
	requireJSError(t, err, "ReferenceError")
}

func TestSloppyAssignmentCreatesGlobal(t *testing.T) {
	v := mustRun(t, `
		function sloppy() { created = 42; }
		sloppy();
		created;
	`)
	require.Equal(t, Number(42), v)
}

func TestTypeofUnresolvableIsUndefined(t *testing.T) {
	require.Equal(t, String("undefined"), mustRun(t, `typeof neverDeclared`))
}

func TestThrowAndCatch(t *testing.T) {
	v := mustRun(t, `
		var got;
		try { throw "boom"; } catch (e) { got = e; }
		got;
	`)
	require.Equal(t, String("boom"), v)
}

func TestFinallyRunsOnThrow(t *testing.T) {
	v := mustRun(t, `
		var order = "";
		try {
			try { throw "x"; } finally { order += "f"; }
		} catch (e) { order += "c"; }
		order;
	`)
	require.Equal(t, String("fc"), v)
}

func TestFinallyOverridesCompletion(t *testing.T) {
	v := mustRun(t, `
		function f() {
			try { return "try"; } finally { return "finally"; }
		}
		f();
	`)
	require.Equal(t, String("finally"), v)
}

func TestUncaughtThrowSurfacesAsThrowSignal(t *testing.T) {
	_, err := runScript(t, `throw new TypeError("nope");`)
	requireJSError(t, err, "TypeError")
}

func TestWhileAndDoWhileLoops(t *testing.T) {
	require.Equal(t, Number(10), mustRun(t, `
		var n = 0;
		while (n < 10) { n = n + 1; }
		n;
	`))
	// do-while runs the body before the first test
	require.Equal(t, Number(1), mustRun(t, `
		var n = 0;
		do { n = n + 1; } while (false);
		n;
	`))
}

func TestForLoopWithBreakAndContinue(t *testing.T) {
	v := mustRun(t, `
		var sum = 0;
		for (var i = 0; i < 10; i++) {
			if (i === 3) { continue; }
			if (i === 6) { break; }
			sum += i;
		}
		sum;
	`)
	// 0+1+2+4+5
	require.Equal(t, Number(12), v)
}

func TestLabeledBreakEscapesOuterLoop(t *testing.T) {
	v := mustRun(t, `
		var count = 0;
		outer: for (var i = 0; i < 3; i++) {
			for (var j = 0; j < 3; j++) {
				if (j === 1) { continue outer; }
				if (i === 2) { break outer; }
				count++;
			}
		}
		count;
	`)
	require.Equal(t, Number(2), v)
}

func TestForInVisitsOwnEnumerableKeysInOrder(t *testing.T) {
	v := mustRun(t, `
		var obj = { a: 1, b: 2, c: 3 };
		var keys = "";
		for (var k in obj) { keys += k; }
		keys;
	`)
	require.Equal(t, String("abc"), v)
}

func TestSwitchFallThroughAndDefault(t *testing.T) {
	v := mustRun(t, `
		function pick(n) {
			var out = "";
			switch (n) {
			case 1: out += "one ";
			case 2: out += "two"; break;
			default: out += "other";
			}
			return out;
		}
		pick(1) + "|" + pick(2) + "|" + pick(9);
	`)
	require.Equal(t, String("one two|two|other"), v)
}

func TestWithStatementOverlay(t *testing.T) {
	v := mustRun(t, `
		var obj = { x: 10 };
		var x = 1;
		var seen;
		with (obj) { seen = x; x = 20; }
		seen + "," + x + "," + obj.x;
	`)
	require.Equal(t, String("10,1,20"), v)
}

func TestNewAndInstanceof(t *testing.T) {
	v := mustRun(t, `
		function Point(x, y) { this.x = x; this.y = y; }
		Point.prototype.norm = function () { return this.x + this.y; };
		var p = new Point(1, 2);
		(p instanceof Point) + "," + p.norm();
	`)
	require.Equal(t, String("true,3"), v)
}

func TestConstructorReturningObjectWins(t *testing.T) {
	v := mustRun(t, `
		function Weird() { this.a = 1; return { a: 2 }; }
		new Weird().a;
	`)
	require.Equal(t, Number(2), v)
}

func TestDeleteOperator(t *testing.T) {
	v := mustRun(t, `
		var obj = { gone: 1 };
		var deleted = delete obj.gone;
		deleted + "," + typeof obj.gone;
	`)
	require.Equal(t, String("true,undefined"), v)
}

func TestMemberOfNullishThrowsTypeError(t *testing.T) {
	_, err := runScript(t, `var u; u.x;`)
	requireJSError(t, err, "TypeError")
}

func TestCallingNonCallableThrowsTypeError(t *testing.T) {
	_, err := runScript(t, `var n = 4; n();`)
	requireJSError(t, err, "TypeError")
}

func TestMappedArgumentsInSloppyMode(t *testing.T) {
	v := mustRun(t, `
		function swap(a) {
			arguments[0] = "changed";
			return a;
		}
		swap("orig");
	`)
	require.Equal(t, String("changed"), v)
}

func TestUnmappedArgumentsInStrictMode(t *testing.T) {
	v := mustRun(t, `
		function keep(a) {
			"use strict";
			arguments[0] = "changed";
			return a;
		}
		keep("orig");
	`)
	require.Equal(t, String("orig"), v)
}

func TestPureExpressionIsIdempotent(t *testing.T) {
	realm := NewRealm()
	first, err := runScriptIn(t, realm, `1 + 2 * 3`)
	require.NoError(t, err)
	second, err := runScriptIn(t, realm, `1 + 2 * 3`)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCancellationStopsLoops(t *testing.T) {
	prog, err := syntax.Parse("spin.js", `while (true) {}`)
	require.NoError(t, err)

	goctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	realm := NewRealm()
	_, err = EvaluateProgram(prog, nil, realm, goctx, KindScript, false)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnnexBBlockFunctionHoisting(t *testing.T) {
	v := mustRun(t, `
		function probe() {
			var before = typeof inner;
			{ function inner() { return 1; } }
			return before + "," + typeof inner;
		}
		probe();
	`)
	require.Equal(t, String("undefined,function"), v)
}
