package skiff

import (
	"context"
	"fmt"
	"strings"

	"github.com/skiffjs/skiff/ast"
)

// Signal enumerates completion states. Abrupt completions are carried
// on the Context and checked after every sub-evaluation instead of
// being thrown through the host stack.
type Signal uint8

const (
	SignalNormal Signal = iota
	SignalReturn
	SignalThrow
	SignalBreak
	SignalContinue
	SignalYield
)

func (s Signal) String() string {
	switch s {
	case SignalNormal:
		return "normal"
	case SignalReturn:
		return "return"
	case SignalThrow:
		return "throw"
	case SignalBreak:
		return "break"
	case SignalContinue:
		return "continue"
	case SignalYield:
		return "yield"
	default:
		return "invalid"
	}
}

// Mode selects strict/sloppy semantics for a whole evaluation.
type Mode uint8

const (
	ModeSloppy Mode = iota
	ModeStrict
	// ModeSloppyAnnexB additionally enables the Annex B
	// block-function var hoisting rules.
	ModeSloppyAnnexB
)

// ExecutionKind distinguishes the entry points of EvaluateProgram.
type ExecutionKind uint8

const (
	KindScript ExecutionKind = iota
	KindModule
	KindEval
)

// Options carries evaluation switches.
type Options struct {
	Mode Mode
}

// StackEntry is one frame of the diagnostic stack rendered on uncaught
// throws.
type StackEntry struct {
	What string
	Span *ast.Source
}

// Context is the per-invocation evaluation state: the completion
// signal, the realm, cancellation, the private-name scope stack, the
// current super binding and the generator auxiliaries.
type Context struct {
	Realm *Realm

	goctx context.Context
	opts  Options

	signal      Signal
	signalValue Value
	signalLabel string

	// hostErr carries cancellation and internal host failures; it
	// unwinds the whole invocation and is never visible to JS code.
	hostErr error

	privates []*PrivateNameScope
	super    *SuperBinding

	gen *generatorState

	// currentFn is the function object whose body is executing; super()
	// uses it to run the derived class's field initializers.
	currentFn *Object

	stack []StackEntry
}

func NewContext(realm *Realm, goctx context.Context, opts Options) *Context {
	if goctx == nil {
		goctx = context.Background()
	}
	return &Context{Realm: realm, goctx: goctx, opts: opts}
}

func (cx *Context) Options() Options { return cx.opts }

// CheckCancellation surfaces host cancellation as a host-level error.
// It is consulted at every loop iteration and iterator step.
func (cx *Context) CheckCancellation() error {
	return cx.goctx.Err()
}

// ShouldStopEvaluation is true for any abrupt completion or host
// failure. Evaluator steps check it after each sub-evaluation and bail
// out with Undefined.
func (cx *Context) ShouldStopEvaluation() bool {
	return cx.signal != SignalNormal || cx.hostErr != nil
}

// HostError reports the pending host-level failure, if any.
func (cx *Context) HostError() error { return cx.hostErr }

func (cx *Context) setHostError(err error) {
	if cx.hostErr == nil {
		cx.hostErr = err
	}
}

func (cx *Context) IsThrow() bool  { return cx.signal == SignalThrow }
func (cx *Context) IsReturn() bool { return cx.signal == SignalReturn }
func (cx *Context) IsYield() bool  { return cx.signal == SignalYield }

func (cx *Context) Signal() Signal     { return cx.signal }
func (cx *Context) SignalValue() Value { return cx.signalValue }

func (cx *Context) SetThrow(v Value) {
	cx.signal = SignalThrow
	cx.signalValue = v
	cx.signalLabel = ""
}

func (cx *Context) SetReturn(v Value) {
	cx.signal = SignalReturn
	cx.signalValue = v
	cx.signalLabel = ""
}

func (cx *Context) SetBreak(label string) {
	cx.signal = SignalBreak
	cx.signalValue = nil
	cx.signalLabel = label
}

func (cx *Context) SetContinue(label string) {
	cx.signal = SignalContinue
	cx.signalValue = nil
	cx.signalLabel = label
}

func (cx *Context) SetYield(v Value) {
	cx.signal = SignalYield
	cx.signalValue = v
	cx.signalLabel = ""
}

func (cx *Context) ClearSignal() {
	cx.signal = SignalNormal
	cx.signalValue = nil
	cx.signalLabel = ""
}

// TakeThrow consumes a throw completion, returning the thrown value.
func (cx *Context) TakeThrow() Value {
	if cx.signal != SignalThrow {
		panic("bug: TakeThrow without a throw completion")
	}
	v := cx.signalValue
	cx.ClearSignal()
	return v
}

// TakeReturn consumes a return completion.
func (cx *Context) TakeReturn() Value {
	if cx.signal != SignalReturn {
		panic("bug: TakeReturn without a return completion")
	}
	v := cx.signalValue
	cx.ClearSignal()
	return v
}

// TryClearBreak consumes a break completion when its label matches (an
// empty signal label matches any consumer).
func (cx *Context) TryClearBreak(label string) bool {
	if cx.signal != SignalBreak {
		return false
	}
	if cx.signalLabel != "" && cx.signalLabel != label {
		return false
	}
	cx.ClearSignal()
	return true
}

// TryClearContinue consumes a continue completion when its label
// matches.
func (cx *Context) TryClearContinue(label string) bool {
	if cx.signal != SignalContinue {
		return false
	}
	if cx.signalLabel != "" && cx.signalLabel != label {
		return false
	}
	cx.ClearSignal()
	return true
}

// savedSignal is a snapshot of the active completion, taken so a
// finally block can run and then restore it.
type savedSignal struct {
	signal Signal
	value  Value
	label  string
}

func (cx *Context) snapshotSignal() savedSignal {
	s := savedSignal{cx.signal, cx.signalValue, cx.signalLabel}
	cx.ClearSignal()
	return s
}

func (cx *Context) restoreSignal(s savedSignal) {
	cx.signal = s.signal
	cx.signalValue = s.value
	cx.signalLabel = s.label
}

// ---------------------------------------------------------------------------
// private-name scopes

// PrivateNameScope maps lexical #names of one class body to globally
// unique keys and carries the brand token instances receive at
// construction.
type PrivateNameScope struct {
	Brand *Brand
	names map[string]PropertyKey
}

func NewPrivateNameScope(className string) *PrivateNameScope {
	return &PrivateNameScope{
		Brand: NewBrand(className),
		names: make(map[string]PropertyKey),
	}
}

// Resolve returns the mangled key for #name, creating it on first use
// within the scope's class body.
func (ps *PrivateNameScope) Resolve(name string) PropertyKey {
	if k, ok := ps.names[name]; ok {
		return k
	}
	k := NameKey("#" + name + "@" + ps.Brand.Key)
	ps.names[name] = k
	return k
}

func (cx *Context) pushPrivateScope(ps *PrivateNameScope) {
	cx.privates = append(cx.privates, ps)
}

func (cx *Context) popPrivateScope() {
	cx.privates = cx.privates[:len(cx.privates)-1]
}

func (cx *Context) currentPrivateScope() *PrivateNameScope {
	if len(cx.privates) == 0 {
		return nil
	}
	return cx.privates[len(cx.privates)-1]
}

// ---------------------------------------------------------------------------
// host-level throw signal

// ThrowSignal is the single host-level exception type. It escapes
// deeply nested native helpers where cooperative signal checks would be
// noisy, and carries uncaught JS throws out of EvaluateProgram. On
// catch inside the evaluator it is translated back to SetThrow.
type ThrowSignal struct {
	Value Value
	Stack []StackEntry
}

func (ts *ThrowSignal) Error() string {
	msg := describeThrown(ts.Value)
	if len(ts.Stack) == 0 {
		return "JS exception: " + msg
	}
	lines := make([]string, 1+len(ts.Stack))
	lines[0] = "JS exception: " + msg
	for i, entry := range ts.Stack {
		lines[1+i] = fmt.Sprintf("  JS @ %s %s", entry.Span, entry.What)
	}
	return strings.Join(lines, "\n")
}

func describeThrown(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	if obj, ok := v.(*Object); ok {
		if p, found := obj.props[NameKey("message")]; found {
			if msg, isStr := p.Value.(String); isStr {
				name := obj.class
				if np, ok := obj.props[NameKey("name")]; ok {
					if ns, isStr := np.Value.(String); isStr {
						name = string(ns)
					}
				}
				return name + ": " + string(msg)
			}
		}
	}
	return InspectValue(v)
}

// Throw wraps v as a host-level signal.
func (cx *Context) Throw(v Value) error {
	return &ThrowSignal{Value: v, Stack: append([]StackEntry(nil), cx.stack...)}
}

// absorb translates a native-call error into context state: a
// ThrowSignal becomes a throw completion, anything else becomes a host
// error that unwinds the invocation.
func (cx *Context) absorb(err error) error {
	if err == nil {
		return nil
	}
	if ts, ok := err.(*ThrowSignal); ok {
		cx.SetThrow(ts.Value)
		return nil
	}
	cx.setHostError(err)
	return err
}

func (cx *Context) pushFrame(what string, span *ast.Source) {
	cx.stack = append(cx.stack, StackEntry{What: what, Span: span})
}

func (cx *Context) popFrame() {
	cx.stack = cx.stack[:len(cx.stack)-1]
}
