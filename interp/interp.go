package interp

import (
	"context"
	"time"

	"github.com/aura-lang/aura/compiler"
)

// ---------------------------------------------------------------------------
// Interp: tree-walking evaluator
// ---------------------------------------------------------------------------

// DefaultMaxDepth is the recursion ceiling for nested function calls.
// Tree-walking recursion rides the host call stack, so the ceiling exists
// to surface a StackOverflowError result instead of crashing the process.
const DefaultMaxDepth = 1000

// Options configures an interpreter.
type Options struct {
	MaxDepth    int           // 0 means DefaultMaxDepth
	OutputLimit int           // bytes; 0 means DefaultOutputLimit
	CallTimeout time.Duration // per-builtin-call deadline; 0 means none
}

// ExecutionResult is what running a program produces. Output printed before
// a failure is preserved next to the error; they are not mutually
// exclusive.
type ExecutionResult struct {
	Output    string
	Truncated bool
	Traits    map[string]float64 // personality traits set by the program
	Err       error              // nil, or a *RuntimeError
}

// Interp evaluates an AST directly. Each Interp owns its scope chain,
// output sink and trait map; nothing is shared between instances, so
// independent executions can run in parallel processes with no
// coordination.
type Interp struct {
	caps        Capabilities
	root        *Env
	globals     *Env
	out         *Sink
	traits      map[string]float64
	depth       int
	maxDepth    int
	callTimeout time.Duration
}

// New creates an interpreter with the given capability object. Builtins are
// registered once, here, into the root scope.
func New(caps Capabilities, opts Options) *Interp {
	if caps == nil {
		caps = NewFixtureCaps()
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	out := NewSink(opts.OutputLimit)
	root := NewRootEnv(caps, out)
	return &Interp{
		caps:        caps,
		root:        root,
		globals:     NewEnv(root),
		out:         out,
		traits:      make(map[string]float64),
		maxDepth:    maxDepth,
		callTimeout: opts.CallTimeout,
	}
}

// Globals exposes the persistent global scope (REPL sessions evaluate into
// it across calls).
func (ip *Interp) Globals() *Env { return ip.globals }

// Output returns the sink capturing program output.
func (ip *Interp) Output() *Sink { return ip.out }

// Traits returns the personality traits the program has set so far.
func (ip *Interp) Traits() map[string]float64 { return ip.traits }

// Execute runs a program to completion and folds any runtime error into
// the result alongside whatever output was already produced.
func (ip *Interp) Execute(ctx context.Context, prog *compiler.Program) ExecutionResult {
	err := ip.Run(ctx, prog)
	return ExecutionResult{
		Output:    ip.out.String(),
		Truncated: ip.out.Truncated(),
		Traits:    ip.traits,
		Err:       err,
	}
}

// Run evaluates the program's statements in the global scope and returns
// the first runtime error, if any.
func (ip *Interp) Run(ctx context.Context, prog *compiler.Program) error {
	for _, stmt := range prog.Statements {
		comp, err := ip.evalStmt(ctx, stmt, ip.globals)
		if err != nil {
			return err
		}
		switch comp.Kind {
		case CompReturn:
			return runtimeErrf(ErrTopLevelReturn, stmt.Span().Start, "return outside of a function")
		case CompBreak:
			return runtimeErrf(ErrLoopControl, stmt.Span().Start, "break outside of a loop")
		case CompContinue:
			return runtimeErrf(ErrLoopControl, stmt.Span().Start, "continue outside of a loop")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Statement evaluation
//
// Every statement reduces to a Completion. Block evaluation stops at the
// first non-normal completion and hands it up unchanged; only loops and
// calls absorb them.
// ---------------------------------------------------------------------------

func (ip *Interp) evalStmt(ctx context.Context, stmt compiler.Stmt, env *Env) (Completion, *RuntimeError) {
	switch s := stmt.(type) {
	case *compiler.ExprStmt:
		v, err := ip.evalExpr(ctx, s.Expr, env)
		if err != nil {
			return Completion{}, err
		}
		return normal(v), nil

	case *compiler.LetStmt:
		v, err := ip.evalExpr(ctx, s.Value, env)
		if err != nil {
			return Completion{}, err
		}
		env.Define(s.Name, v)
		return normal(NilValue), nil

	case *compiler.ConstStmt:
		v, err := ip.evalExpr(ctx, s.Value, env)
		if err != nil {
			return Completion{}, err
		}
		env.DefineConst(s.Name, v)
		return normal(NilValue), nil

	case *compiler.FuncDecl:
		fn := &Function{Name: s.Name, Params: s.Params, Body: s.Body, Env: env}
		env.Define(s.Name, FuncValue(fn))
		return normal(NilValue), nil

	case *compiler.BlockStmt:
		return ip.evalBlock(ctx, s, NewEnv(env))

	case *compiler.IfStmt:
		return ip.evalIf(ctx, s, env)

	case *compiler.WhileStmt:
		return ip.evalWhile(ctx, s, env)

	case *compiler.ForStmt:
		return ip.evalFor(ctx, s, env)

	case *compiler.ReturnStmt:
		v := NilValue
		if s.Value != nil {
			var err *RuntimeError
			if v, err = ip.evalExpr(ctx, s.Value, env); err != nil {
				return Completion{}, err
			}
		}
		return returning(v), nil

	case *compiler.BreakStmt:
		return breakCompletion, nil

	case *compiler.ContinueStmt:
		return continueCompletion, nil

	case *compiler.PersonalityBlock:
		// Unknown trait names are stored as-is; nothing validates them and
		// nothing reads them until a feature does. Revisit if that ever
		// changes (tracked as a design decision, not an accident).
		for _, t := range s.Traits {
			ip.traits[t.Name] = t.Value
		}
		return normal(NilValue), nil

	default:
		return Completion{}, runtimeErrf(ErrType, stmt.Span().Start, "unhandled statement %T", stmt)
	}
}

// evalBlock runs statements in env until one completes non-normally.
func (ip *Interp) evalBlock(ctx context.Context, block *compiler.BlockStmt, env *Env) (Completion, *RuntimeError) {
	last := normal(NilValue)
	for _, stmt := range block.Statements {
		comp, err := ip.evalStmt(ctx, stmt, env)
		if err != nil {
			return Completion{}, err
		}
		if comp.Kind != CompNormal {
			return comp, nil
		}
		last = comp
	}
	return last, nil
}

func (ip *Interp) evalIf(ctx context.Context, s *compiler.IfStmt, env *Env) (Completion, *RuntimeError) {
	cond, err := ip.evalExpr(ctx, s.Cond, env)
	if err != nil {
		return Completion{}, err
	}
	if cond.Truthy() {
		return ip.evalBlock(ctx, s.Then, NewEnv(env))
	}
	if s.Else != nil {
		return ip.evalStmt(ctx, s.Else, env)
	}
	return normal(NilValue), nil
}

// evalWhile loops on the condition, absorbing Break and Continue so they
// never escape past the loop that owns them.
func (ip *Interp) evalWhile(ctx context.Context, s *compiler.WhileStmt, env *Env) (Completion, *RuntimeError) {
	for {
		cond, err := ip.evalExpr(ctx, s.Cond, env)
		if err != nil {
			return Completion{}, err
		}
		if !cond.Truthy() {
			return normal(NilValue), nil
		}

		comp, err := ip.evalBlock(ctx, s.Body, NewEnv(env))
		if err != nil {
			return Completion{}, err
		}
		switch comp.Kind {
		case CompBreak:
			return normal(NilValue), nil
		case CompReturn:
			return comp, nil
		}
		// CompNormal and CompContinue both continue the loop.
	}
}

func (ip *Interp) evalFor(ctx context.Context, s *compiler.ForStmt, env *Env) (Completion, *RuntimeError) {
	iterable, err := ip.evalExpr(ctx, s.Iterable, env)
	if err != nil {
		return Completion{}, err
	}

	var items []Value
	switch iterable.Kind {
	case KindArray:
		items = iterable.Array.Elements
	case KindString:
		for _, r := range iterable.Str {
			items = append(items, StringValue(string(r)))
		}
	default:
		return Completion{}, runtimeErrf(ErrType, s.Iterable.Span().Start,
			"cannot iterate over %s", iterable.TypeName())
	}

	for _, item := range items {
		scope := NewEnv(env)
		scope.Define(s.Var, item)

		comp, err := ip.evalBlock(ctx, s.Body, scope)
		if err != nil {
			return Completion{}, err
		}
		switch comp.Kind {
		case CompBreak:
			return normal(NilValue), nil
		case CompReturn:
			return comp, nil
		}
	}
	return normal(NilValue), nil
}

// ---------------------------------------------------------------------------
// Expression evaluation
// ---------------------------------------------------------------------------

func (ip *Interp) evalExpr(ctx context.Context, expr compiler.Expr, env *Env) (Value, *RuntimeError) {
	switch e := expr.(type) {
	case *compiler.IntLiteral:
		return IntValue(e.Value), nil

	case *compiler.FloatLiteral:
		return FloatValue(e.Value), nil

	case *compiler.StringLiteral:
		return StringValue(e.Value), nil

	case *compiler.BoolLiteral:
		return BoolValue(e.Value), nil

	case *compiler.ArrayLiteral:
		elements := make([]Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := ip.evalExpr(ctx, el, env)
			if err != nil {
				return NilValue, err
			}
			elements[i] = v
		}
		return ArrayValue(elements), nil

	case *compiler.Ident:
		v, ok := env.Get(e.Name)
		if !ok {
			return NilValue, runtimeErrf(ErrUnresolvedName, e.Span().Start, "undefined name: %s", e.Name)
		}
		return v, nil

	case *compiler.UnaryExpr:
		return ip.evalUnary(ctx, e, env)

	case *compiler.BinaryExpr:
		return ip.evalBinary(ctx, e, env)

	case *compiler.AssignExpr:
		return ip.evalAssign(ctx, e, env)

	case *compiler.IndexExpr:
		return ip.evalIndex(ctx, e, env)

	case *compiler.CallExpr:
		return ip.evalCall(ctx, e, env)

	default:
		return NilValue, runtimeErrf(ErrType, expr.Span().Start, "unhandled expression %T", expr)
	}
}

func (ip *Interp) evalUnary(ctx context.Context, e *compiler.UnaryExpr, env *Env) (Value, *RuntimeError) {
	operand, err := ip.evalExpr(ctx, e.Operand, env)
	if err != nil {
		return NilValue, err
	}

	switch e.Op {
	case "-":
		switch operand.Kind {
		case KindInt:
			return IntValue(-operand.Int), nil
		case KindFloat:
			return FloatValue(-operand.Float), nil
		}
		return NilValue, runtimeErrf(ErrType, e.Span().Start, "cannot negate %s", operand.TypeName())
	case "!":
		return BoolValue(!operand.Truthy()), nil
	}
	return NilValue, runtimeErrf(ErrType, e.Span().Start, "unknown unary operator %s", e.Op)
}

func (ip *Interp) evalBinary(ctx context.Context, e *compiler.BinaryExpr, env *Env) (Value, *RuntimeError) {
	// Short-circuit operators evaluate the right side conditionally.
	if e.Op == "&&" || e.Op == "||" {
		left, err := ip.evalExpr(ctx, e.Left, env)
		if err != nil {
			return NilValue, err
		}
		if e.Op == "&&" && !left.Truthy() {
			return BoolValue(false), nil
		}
		if e.Op == "||" && left.Truthy() {
			return BoolValue(true), nil
		}
		right, err := ip.evalExpr(ctx, e.Right, env)
		if err != nil {
			return NilValue, err
		}
		return BoolValue(right.Truthy()), nil
	}

	left, err := ip.evalExpr(ctx, e.Left, env)
	if err != nil {
		return NilValue, err
	}
	right, err := ip.evalExpr(ctx, e.Right, env)
	if err != nil {
		return NilValue, err
	}

	v, berr := BinaryOp(e.Op, left, right)
	if berr != nil {
		berr.Pos = e.Span().Start
		return NilValue, berr
	}
	return v, nil
}

// BinaryOp applies a binary operator to two evaluated values. It is shared
// with the bytecode VM so both execution paths agree on every coercion and
// every error. The returned error carries no position.
func BinaryOp(op string, left, right Value) (Value, *RuntimeError) {
	switch op {
	case "+":
		switch {
		case left.Kind == KindInt && right.Kind == KindInt:
			return IntValue(left.Int + right.Int), nil
		case left.IsNumber() && right.IsNumber():
			return FloatValue(left.AsFloat() + right.AsFloat()), nil
		case left.Kind == KindString && right.Kind == KindString:
			return StringValue(left.Str + right.Str), nil
		case left.Kind == KindArray && right.Kind == KindArray:
			out := make([]Value, 0, len(left.Array.Elements)+len(right.Array.Elements))
			out = append(out, left.Array.Elements...)
			out = append(out, right.Array.Elements...)
			return ArrayValue(out), nil
		}
		return NilValue, &RuntimeError{Kind: ErrType,
			Msg: "unsupported operand types for +: " + left.TypeName() + " and " + right.TypeName()}

	case "-", "*":
		if !left.IsNumber() || !right.IsNumber() {
			return NilValue, &RuntimeError{Kind: ErrType,
				Msg: "unsupported operand types for " + op + ": " + left.TypeName() + " and " + right.TypeName()}
		}
		if left.Kind == KindInt && right.Kind == KindInt {
			if op == "-" {
				return IntValue(left.Int - right.Int), nil
			}
			return IntValue(left.Int * right.Int), nil
		}
		if op == "-" {
			return FloatValue(left.AsFloat() - right.AsFloat()), nil
		}
		return FloatValue(left.AsFloat() * right.AsFloat()), nil

	case "/":
		if !left.IsNumber() || !right.IsNumber() {
			return NilValue, &RuntimeError{Kind: ErrType,
				Msg: "unsupported operand types for /: " + left.TypeName() + " and " + right.TypeName()}
		}
		if right.AsFloat() == 0 {
			return NilValue, &RuntimeError{Kind: ErrArithmetic, Msg: "division by zero"}
		}
		if left.Kind == KindInt && right.Kind == KindInt {
			return IntValue(left.Int / right.Int), nil
		}
		return FloatValue(left.AsFloat() / right.AsFloat()), nil

	case "%":
		if left.Kind != KindInt || right.Kind != KindInt {
			return NilValue, &RuntimeError{Kind: ErrType,
				Msg: "unsupported operand types for %: " + left.TypeName() + " and " + right.TypeName()}
		}
		if right.Int == 0 {
			return NilValue, &RuntimeError{Kind: ErrArithmetic, Msg: "division by zero"}
		}
		return IntValue(left.Int % right.Int), nil

	case "==":
		return BoolValue(left.Equal(right)), nil
	case "!=":
		return BoolValue(!left.Equal(right)), nil

	case "<", "<=", ">", ">=":
		if left.IsNumber() && right.IsNumber() {
			a, b := left.AsFloat(), right.AsFloat()
			switch op {
			case "<":
				return BoolValue(a < b), nil
			case "<=":
				return BoolValue(a <= b), nil
			case ">":
				return BoolValue(a > b), nil
			default:
				return BoolValue(a >= b), nil
			}
		}
		if left.Kind == KindString && right.Kind == KindString {
			a, b := left.Str, right.Str
			switch op {
			case "<":
				return BoolValue(a < b), nil
			case "<=":
				return BoolValue(a <= b), nil
			case ">":
				return BoolValue(a > b), nil
			default:
				return BoolValue(a >= b), nil
			}
		}
		return NilValue, &RuntimeError{Kind: ErrType,
			Msg: "cannot compare " + left.TypeName() + " and " + right.TypeName()}
	}

	return NilValue, &RuntimeError{Kind: ErrType, Msg: "unknown operator " + op}
}

func (ip *Interp) evalAssign(ctx context.Context, e *compiler.AssignExpr, env *Env) (Value, *RuntimeError) {
	value, err := ip.evalExpr(ctx, e.Value, env)
	if err != nil {
		return NilValue, err
	}

	switch target := e.Target.(type) {
	case *compiler.Ident:
		found, konst := env.Set(target.Name, value)
		if konst {
			return NilValue, runtimeErrf(ErrConstAssign, e.Span().Start, "cannot assign to const %s", target.Name)
		}
		if !found {
			return NilValue, runtimeErrf(ErrUnresolvedName, e.Span().Start, "undefined name: %s", target.Name)
		}
		return value, nil

	case *compiler.IndexExpr:
		container, err := ip.evalExpr(ctx, target.Target, env)
		if err != nil {
			return NilValue, err
		}
		index, err := ip.evalExpr(ctx, target.Index, env)
		if err != nil {
			return NilValue, err
		}
		if serr := StoreIndex(container, index, value); serr != nil {
			serr.Pos = e.Span().Start
			return NilValue, serr
		}
		return value, nil
	}

	return NilValue, runtimeErrf(ErrType, e.Span().Start, "invalid assignment target")
}

// StoreIndex writes container[index] = value. Shared with the bytecode VM.
func StoreIndex(container, index, value Value) *RuntimeError {
	if container.Kind != KindArray {
		return &RuntimeError{Kind: ErrType, Msg: "cannot index-assign into " + container.TypeName()}
	}
	if index.Kind != KindInt {
		return &RuntimeError{Kind: ErrType, Msg: "array index must be int, got " + index.TypeName()}
	}
	elements := container.Array.Elements
	if index.Int < 0 || index.Int >= int64(len(elements)) {
		return &RuntimeError{Kind: ErrIndex,
			Msg: "index " + IntValue(index.Int).Display() + " out of bounds for length " + IntValue(int64(len(elements))).Display()}
	}
	elements[index.Int] = value
	return nil
}

func (ip *Interp) evalIndex(ctx context.Context, e *compiler.IndexExpr, env *Env) (Value, *RuntimeError) {
	container, err := ip.evalExpr(ctx, e.Target, env)
	if err != nil {
		return NilValue, err
	}
	index, err := ip.evalExpr(ctx, e.Index, env)
	if err != nil {
		return NilValue, err
	}
	v, ierr := LoadIndex(container, index)
	if ierr != nil {
		ierr.Pos = e.Span().Start
		return NilValue, ierr
	}
	return v, nil
}

// LoadIndex reads container[index]. Shared with the bytecode VM.
func LoadIndex(container, index Value) (Value, *RuntimeError) {
	if index.Kind != KindInt {
		return NilValue, &RuntimeError{Kind: ErrType, Msg: "index must be int, got " + index.TypeName()}
	}
	switch container.Kind {
	case KindArray:
		elements := container.Array.Elements
		if index.Int < 0 || index.Int >= int64(len(elements)) {
			return NilValue, &RuntimeError{Kind: ErrIndex,
				Msg: "index " + IntValue(index.Int).Display() + " out of bounds for length " + IntValue(int64(len(elements))).Display()}
		}
		return elements[index.Int], nil
	case KindString:
		if index.Int < 0 || index.Int >= int64(len(container.Str)) {
			return NilValue, &RuntimeError{Kind: ErrIndex,
				Msg: "index " + IntValue(index.Int).Display() + " out of bounds for length " + IntValue(int64(len(container.Str))).Display()}
		}
		return StringValue(string(container.Str[index.Int])), nil
	}
	return NilValue, &RuntimeError{Kind: ErrType, Msg: "cannot index " + container.TypeName()}
}

func (ip *Interp) evalCall(ctx context.Context, e *compiler.CallExpr, env *Env) (Value, *RuntimeError) {
	callee, err := ip.evalExpr(ctx, e.Callee, env)
	if err != nil {
		return NilValue, err
	}

	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		v, err := ip.evalExpr(ctx, a, env)
		if err != nil {
			return NilValue, err
		}
		args[i] = v
	}

	switch callee.Kind {
	case KindFunction:
		return ip.callFunction(ctx, callee.Fn, args, e.Span().Start)
	case KindBuiltin:
		return ip.callBuiltin(ctx, callee.Builtin, args, e.Span().Start)
	}
	return NilValue, runtimeErrf(ErrType, e.Span().Start, "%s is not callable", callee.TypeName())
}

// callFunction pushes a new scope whose parent is the function's captured
// closure scope, never the caller's scope.
func (ip *Interp) callFunction(ctx context.Context, fn *Function, args []Value, pos compiler.Position) (Value, *RuntimeError) {
	if fn.Body == nil {
		return NilValue, runtimeErrf(ErrType, pos, "%s has no evaluable body", fn.Name)
	}
	if len(args) != len(fn.Params) {
		return NilValue, runtimeErrf(ErrType, pos, "%s expects %d argument(s), got %d",
			fn.Name, len(fn.Params), len(args))
	}

	if ip.depth >= ip.maxDepth {
		return NilValue, runtimeErrf(ErrStackOverflow, pos, "recursion depth exceeded %d", ip.maxDepth)
	}
	ip.depth++
	defer func() { ip.depth-- }()

	scope := NewEnv(fn.Env)
	for i, param := range fn.Params {
		scope.Define(param, args[i])
	}

	comp, err := ip.evalBlock(ctx, fn.Body, scope)
	if err != nil {
		return NilValue, err
	}
	switch comp.Kind {
	case CompReturn:
		return comp.Value, nil
	case CompBreak:
		return NilValue, runtimeErrf(ErrLoopControl, pos, "break outside of a loop")
	case CompContinue:
		return NilValue, runtimeErrf(ErrLoopControl, pos, "continue outside of a loop")
	}
	return NilValue, nil
}

func (ip *Interp) callBuiltin(ctx context.Context, b *Builtin, args []Value, pos compiler.Position) (Value, *RuntimeError) {
	if ip.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ip.callTimeout)
		defer cancel()
	}
	v, err := CallBuiltin(ctx, b, args)
	if err != nil {
		re := err.(*RuntimeError)
		if re.Pos.Line == 0 {
			re.Pos = pos
		}
		return NilValue, re
	}
	return v, nil
}
