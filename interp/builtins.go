package interp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Builtin functions
// ---------------------------------------------------------------------------

// BuiltinFunc is the native implementation behind a builtin value. It takes
// already-evaluated arguments and returns a value or an error. ctx carries
// the deadline for calls that reach external collaborators.
type BuiltinFunc func(ctx context.Context, args []Value) (Value, error)

// NewRootEnv builds the root scope shared by the tree-walking evaluator and
// the bytecode VM: every builtin registered once, bound const so programs
// cannot rebind them. Output from print lands in out; knowledge, say and
// listen go through caps.
func NewRootEnv(caps Capabilities, out *Sink) *Env {
	env := NewEnv(nil)

	register := func(name string, fn BuiltinFunc) {
		env.DefineConst(name, Value{Kind: KindBuiltin, Builtin: &Builtin{Name: name, Fn: fn}})
	}

	register("print", func(ctx context.Context, args []Value) (Value, error) {
		for i, arg := range args {
			if i > 0 {
				out.WriteString(" ")
			}
			out.WriteString(arg.Display())
		}
		out.WriteString("\n")
		return NilValue, nil
	})

	register("knowledge", func(ctx context.Context, args []Value) (Value, error) {
		if err := wantArgs("knowledge", args, 1); err != nil {
			return NilValue, err
		}
		query, err := wantString("knowledge", args[0])
		if err != nil {
			return NilValue, err
		}
		facts, err := caps.Knowledge(ctx, query)
		if err != nil {
			return NilValue, err
		}
		elements := make([]Value, len(facts))
		for i, f := range facts {
			elements[i] = ExternalValue(f)
		}
		return ArrayValue(elements), nil
	})

	register("say", func(ctx context.Context, args []Value) (Value, error) {
		if len(args) < 1 || len(args) > 3 {
			return NilValue, typeErrf("say expects 1 to 3 arguments, got %d", len(args))
		}
		text, err := wantString("say", args[0])
		if err != nil {
			return NilValue, err
		}
		emotion := ""
		if len(args) >= 2 {
			if emotion, err = wantString("say", args[1]); err != nil {
				return NilValue, err
			}
		}
		speed := 0.0
		if len(args) == 3 {
			if !args[2].IsNumber() {
				return NilValue, typeErrf("say speed must be a number, got %s", args[2].TypeName())
			}
			speed = args[2].AsFloat()
		}
		return NilValue, caps.Say(ctx, text, emotion, speed)
	})

	register("listen", func(ctx context.Context, args []Value) (Value, error) {
		if len(args) < 1 || len(args) > 2 {
			return NilValue, typeErrf("listen expects 1 or 2 arguments, got %d", len(args))
		}
		if !args[0].IsNumber() {
			return NilValue, typeErrf("listen timeout must be a number, got %s", args[0].TypeName())
		}
		timeout := time.Duration(args[0].AsFloat() * float64(time.Second))
		language := ""
		if len(args) == 2 {
			var err error
			if language, err = wantString("listen", args[1]); err != nil {
				return NilValue, err
			}
		}
		heard, err := caps.Listen(ctx, timeout, language)
		if err != nil {
			return NilValue, err
		}
		return StringValue(heard), nil
	})

	register("len", func(ctx context.Context, args []Value) (Value, error) {
		if err := wantArgs("len", args, 1); err != nil {
			return NilValue, err
		}
		switch args[0].Kind {
		case KindArray:
			return IntValue(int64(len(args[0].Array.Elements))), nil
		case KindString:
			return IntValue(int64(len(args[0].Str))), nil
		default:
			return NilValue, typeErrf("len expects array or string, got %s", args[0].TypeName())
		}
	})

	register("push", func(ctx context.Context, args []Value) (Value, error) {
		if err := wantArgs("push", args, 2); err != nil {
			return NilValue, err
		}
		arr, err := wantArray("push", args[0])
		if err != nil {
			return NilValue, err
		}
		arr.Elements = append(arr.Elements, args[1])
		return args[0], nil
	})

	register("pop", func(ctx context.Context, args []Value) (Value, error) {
		if err := wantArgs("pop", args, 1); err != nil {
			return NilValue, err
		}
		arr, err := wantArray("pop", args[0])
		if err != nil {
			return NilValue, err
		}
		if len(arr.Elements) == 0 {
			return NilValue, &RuntimeError{Kind: ErrIndex, Msg: "pop from empty array"}
		}
		last := arr.Elements[len(arr.Elements)-1]
		arr.Elements = arr.Elements[:len(arr.Elements)-1]
		return last, nil
	})

	register("range", func(ctx context.Context, args []Value) (Value, error) {
		var start, stop int64
		switch len(args) {
		case 1:
			stop = args[0].Int
		case 2:
			start, stop = args[0].Int, args[1].Int
		default:
			return NilValue, typeErrf("range expects 1 or 2 arguments, got %d", len(args))
		}
		for _, a := range args {
			if a.Kind != KindInt {
				return NilValue, typeErrf("range expects int arguments, got %s", a.TypeName())
			}
		}
		var elements []Value
		for i := start; i < stop; i++ {
			elements = append(elements, IntValue(i))
		}
		return ArrayValue(elements), nil
	})

	register("str", func(ctx context.Context, args []Value) (Value, error) {
		if err := wantArgs("str", args, 1); err != nil {
			return NilValue, err
		}
		return StringValue(args[0].Display()), nil
	})

	register("abs", func(ctx context.Context, args []Value) (Value, error) {
		if err := wantArgs("abs", args, 1); err != nil {
			return NilValue, err
		}
		switch args[0].Kind {
		case KindInt:
			if args[0].Int < 0 {
				return IntValue(-args[0].Int), nil
			}
			return args[0], nil
		case KindFloat:
			return FloatValue(math.Abs(args[0].Float)), nil
		default:
			return NilValue, typeErrf("abs expects a number, got %s", args[0].TypeName())
		}
	})

	register("min", func(ctx context.Context, args []Value) (Value, error) {
		return pickExtreme("min", args, func(a, b float64) bool { return a < b })
	})

	register("max", func(ctx context.Context, args []Value) (Value, error) {
		return pickExtreme("max", args, func(a, b float64) bool { return a > b })
	})

	register("sqrt", func(ctx context.Context, args []Value) (Value, error) {
		if err := wantArgs("sqrt", args, 1); err != nil {
			return NilValue, err
		}
		if !args[0].IsNumber() {
			return NilValue, typeErrf("sqrt expects a number, got %s", args[0].TypeName())
		}
		f := args[0].AsFloat()
		if f < 0 {
			return NilValue, &RuntimeError{Kind: ErrArithmetic, Msg: "sqrt of negative number"}
		}
		return FloatValue(math.Sqrt(f)), nil
	})

	register("floor", func(ctx context.Context, args []Value) (Value, error) {
		if err := wantArgs("floor", args, 1); err != nil {
			return NilValue, err
		}
		switch args[0].Kind {
		case KindInt:
			return args[0], nil
		case KindFloat:
			return IntValue(int64(math.Floor(args[0].Float))), nil
		default:
			return NilValue, typeErrf("floor expects a number, got %s", args[0].TypeName())
		}
	})

	// Accessors for the opaque fact records knowledge returns.
	register("fact_title", factAccessor("fact_title", func(f Fact) Value { return StringValue(f.Title) }))
	register("fact_summary", factAccessor("fact_summary", func(f Fact) Value { return StringValue(f.Summary) }))
	register("fact_confidence", factAccessor("fact_confidence", func(f Fact) Value { return FloatValue(f.Confidence) }))
	register("fact_verified", factAccessor("fact_verified", func(f Fact) Value { return BoolValue(f.Verified) }))

	return env
}

// IsBuiltinName reports whether name is bound to a builtin in the root of
// the given scope chain.
func IsBuiltinName(env *Env, name string) bool {
	v, ok := env.Get(name)
	return ok && v.Kind == KindBuiltin
}

// CallBuiltin invokes a builtin and maps context-deadline failures to the
// timeout error kind. pos-free; the caller attaches the source position.
func CallBuiltin(ctx context.Context, b *Builtin, args []Value) (Value, error) {
	v, err := b.Fn(ctx, args)
	if err == nil {
		return v, nil
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return NilValue, re
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NilValue, &RuntimeError{Kind: ErrTimeout, Msg: fmt.Sprintf("builtin %s timed out", b.Name)}
	}
	return NilValue, &RuntimeError{Kind: ErrBuiltin, Msg: fmt.Sprintf("%s: %v", b.Name, err)}
}

// Helpers

func typeErrf(format string, args ...any) error {
	return &RuntimeError{Kind: ErrType, Msg: fmt.Sprintf(format, args...)}
}

func wantArgs(name string, args []Value, n int) error {
	if len(args) != n {
		return typeErrf("%s expects %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func wantString(name string, v Value) (string, error) {
	if v.Kind != KindString {
		return "", typeErrf("%s expects a string, got %s", name, v.TypeName())
	}
	return v.Str, nil
}

func wantArray(name string, v Value) (*ArrayObject, error) {
	if v.Kind != KindArray {
		return nil, typeErrf("%s expects an array, got %s", name, v.TypeName())
	}
	return v.Array, nil
}

func pickExtreme(name string, args []Value, better func(a, b float64) bool) (Value, error) {
	if len(args) < 2 {
		return NilValue, typeErrf("%s expects at least 2 arguments, got %d", name, len(args))
	}
	best := args[0]
	for _, a := range args {
		if !a.IsNumber() {
			return NilValue, typeErrf("%s expects numbers, got %s", name, a.TypeName())
		}
	}
	for _, a := range args[1:] {
		if better(a.AsFloat(), best.AsFloat()) {
			best = a
		}
	}
	return best, nil
}

func factAccessor(name string, get func(Fact) Value) BuiltinFunc {
	return func(ctx context.Context, args []Value) (Value, error) {
		if err := wantArgs(name, args, 1); err != nil {
			return NilValue, err
		}
		f, ok := args[0].External.(Fact)
		if args[0].Kind != KindExternal || !ok {
			return NilValue, typeErrf("%s expects a fact, got %s", name, args[0].TypeName())
		}
		return get(f), nil
	}
}
