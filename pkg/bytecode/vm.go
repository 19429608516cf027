package bytecode

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/aura-lang/aura/interp"
)

// VM executes a loaded program on a value stack. It shares the evaluator's
// value model, scope chain and builtin registry, so a compiled program and
// its source observe identical semantics.
type VM struct {
	prog        *Container
	caps        interp.Capabilities
	root        *interp.Env
	out         *interp.Sink
	traits      map[string]float64
	maxDepth    int
	callTimeout time.Duration

	env    *interp.Env
	stack  []interp.Value
	iters  []*iterator
	frames []frame
	ip     int
	end    int
}

// frame records where execution resumes when a function returns. iters is
// the iterator-stack depth at call time; a return from inside a loop must
// unwind the callee's open iterators.
type frame struct {
	retIP  int
	retEnd int
	env    *interp.Env
	iters  int
}

type iterator struct {
	items []interp.Value
	pos   int
}

// compiledFunc is the code handle stored on function values created by
// OpMakeFunc. The symbol carries the body's code window.
type compiledFunc struct {
	sym *Symbol
}

// NewVM prepares a program for execution. Options mirror the evaluator's.
func NewVM(prog *Container, caps interp.Capabilities, opts interp.Options) *VM {
	if caps == nil {
		caps = interp.NewFixtureCaps()
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = interp.DefaultMaxDepth
	}
	out := interp.NewSink(opts.OutputLimit)
	root := interp.NewRootEnv(caps, out)
	return &VM{
		prog:        prog,
		caps:        caps,
		root:        root,
		out:         out,
		traits:      make(map[string]float64),
		maxDepth:    maxDepth,
		callTimeout: opts.CallTimeout,
		env:         interp.NewEnv(root),
	}
}

// Output returns the sink capturing program output.
func (vm *VM) Output() *interp.Sink { return vm.out }

// Traits returns the personality traits the program has set so far.
func (vm *VM) Traits() map[string]float64 { return vm.traits }

// Execute runs the program and folds any runtime error into the result
// alongside whatever output was already produced.
func (vm *VM) Execute(ctx context.Context) interp.ExecutionResult {
	err := vm.Run(ctx)
	return interp.ExecutionResult{
		Output:    vm.out.String(),
		Truncated: vm.out.Truncated(),
		Traits:    vm.traits,
		Err:       err,
	}
}

// Run executes the top-level code window to completion and returns the
// first runtime error, if any. Function bodies are laid out after the main
// window, so the first body offset bounds the top-level program.
func (vm *VM) Run(ctx context.Context) error {
	vm.ip = 0
	vm.end = mainWindowEnd(vm.prog)

	steps := 0
	for vm.ip < vm.end {
		steps++
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return &interp.RuntimeError{Kind: interp.ErrTimeout, Msg: "execution cancelled: " + err.Error()}
			}
		}
		if err := vm.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) step(ctx context.Context) *interp.RuntimeError {
	code := vm.prog.Code
	op := Opcode(code[vm.ip])
	vm.ip++

	switch op {
	case OpNop:

	case OpPop:
		if _, err := vm.pop(); err != nil {
			return err
		}

	case OpDup:
		v, err := vm.peek()
		if err != nil {
			return err
		}
		vm.push(v)

	case OpConst:
		c := vm.prog.Constants[vm.readU16()]
		switch c.Kind {
		case ConstInt:
			vm.push(interp.IntValue(c.Int))
		case ConstFloat:
			vm.push(interp.FloatValue(c.Float))
		case ConstString:
			vm.push(interp.StringValue(c.Str))
		}

	case OpTrue:
		vm.push(interp.BoolValue(true))
	case OpFalse:
		vm.push(interp.BoolValue(false))
	case OpNil:
		vm.push(interp.NilValue)

	case OpLoadName:
		name := vm.prog.Symbols[vm.readU16()].Name
		v, ok := vm.env.Get(name)
		if !ok {
			return &interp.RuntimeError{Kind: interp.ErrUnresolvedName, Msg: "undefined name: " + name}
		}
		vm.push(v)

	case OpStoreName:
		name := vm.prog.Symbols[vm.readU16()].Name
		v, err := vm.pop()
		if err != nil {
			return err
		}
		found, konst := vm.env.Set(name, v)
		if konst {
			return &interp.RuntimeError{Kind: interp.ErrConstAssign, Msg: "cannot assign to const " + name}
		}
		if !found {
			return &interp.RuntimeError{Kind: interp.ErrUnresolvedName, Msg: "undefined name: " + name}
		}

	case OpDefineName:
		name := vm.prog.Symbols[vm.readU16()].Name
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.env.Define(name, v)

	case OpDefineConst:
		name := vm.prog.Symbols[vm.readU16()].Name
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.env.DefineConst(name, v)

	case OpMakeFunc:
		sym := &vm.prog.Symbols[vm.readU16()]
		params := make([]string, len(sym.Params))
		for i, p := range sym.Params {
			params[i] = vm.prog.Symbols[p].Name
		}
		fn := &interp.Function{
			Name:   sym.Name,
			Params: params,
			Env:    vm.env,
			Code:   &compiledFunc{sym: sym},
		}
		vm.push(interp.FuncValue(fn))

	case OpCall:
		argc := int(vm.readU8())
		return vm.call(ctx, argc)

	case OpReturn:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.doReturn(v)

	case OpReturnNil:
		return vm.doReturn(interp.NilValue)

	case OpJump:
		vm.ip += vm.readOffset()

	case OpJumpFalse:
		off := vm.readOffset()
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if !v.Truthy() {
			vm.ip += off
		}

	case OpJumpTrue:
		off := vm.readOffset()
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if v.Truthy() {
			vm.ip += off
		}

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		right, err := vm.pop()
		if err != nil {
			return err
		}
		left, err := vm.pop()
		if err != nil {
			return err
		}
		v, berr := interp.BinaryOp(binaryOpNames[op], left, right)
		if berr != nil {
			return berr
		}
		vm.push(v)

	case OpNeg:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		switch v.Kind {
		case interp.KindInt:
			vm.push(interp.IntValue(-v.Int))
		case interp.KindFloat:
			vm.push(interp.FloatValue(-v.Float))
		default:
			return &interp.RuntimeError{Kind: interp.ErrType, Msg: "cannot negate " + v.TypeName()}
		}

	case OpNot:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.push(interp.BoolValue(!v.Truthy()))

	case OpTruthy:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.push(interp.BoolValue(v.Truthy()))

	case OpArray:
		n := int(vm.readU16())
		if len(vm.stack) < n {
			return vmStackErr()
		}
		elements := make([]interp.Value, n)
		copy(elements, vm.stack[len(vm.stack)-n:])
		vm.stack = vm.stack[:len(vm.stack)-n]
		vm.push(interp.ArrayValue(elements))

	case OpIndex:
		index, err := vm.pop()
		if err != nil {
			return err
		}
		container, err := vm.pop()
		if err != nil {
			return err
		}
		v, ierr := interp.LoadIndex(container, index)
		if ierr != nil {
			return ierr
		}
		vm.push(v)

	case OpSetIndex:
		value, err := vm.pop()
		if err != nil {
			return err
		}
		index, err := vm.pop()
		if err != nil {
			return err
		}
		container, err := vm.pop()
		if err != nil {
			return err
		}
		if serr := interp.StoreIndex(container, index, value); serr != nil {
			return serr
		}
		vm.push(value)

	case OpIterNew:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		it, ierr := newIterator(v)
		if ierr != nil {
			return ierr
		}
		vm.iters = append(vm.iters, it)

	case OpIterNext:
		off := vm.readOffset()
		if len(vm.iters) == 0 {
			return vmStackErr()
		}
		it := vm.iters[len(vm.iters)-1]
		if it.pos >= len(it.items) {
			vm.iters = vm.iters[:len(vm.iters)-1]
			vm.ip += off
			break
		}
		vm.push(it.items[it.pos])
		it.pos++

	case OpIterPop:
		if len(vm.iters) == 0 {
			return vmStackErr()
		}
		vm.iters = vm.iters[:len(vm.iters)-1]

	case OpEnterScope:
		vm.env = interp.NewEnv(vm.env)

	case OpExitScope:
		parent := vm.env.Parent()
		if parent == nil {
			return vmStackErr()
		}
		vm.env = parent

	case OpPersonality:
		n := int(vm.readU16())
		if len(vm.stack) < 2*n {
			return vmStackErr()
		}
		pairs := vm.stack[len(vm.stack)-2*n:]
		for i := 0; i < n; i++ {
			name, value := pairs[2*i], pairs[2*i+1]
			if name.Kind != interp.KindString || value.Kind != interp.KindFloat {
				return &interp.RuntimeError{Kind: interp.ErrType, Msg: "malformed personality trait"}
			}
			vm.traits[name.Str] = value.Float
		}
		vm.stack = vm.stack[:len(vm.stack)-2*n]

	case OpKnowledge:
		return vm.domainCall(ctx, "knowledge", int(vm.readU8()))
	case OpSay:
		return vm.domainCall(ctx, "say", int(vm.readU8()))
	case OpListen:
		return vm.domainCall(ctx, "listen", int(vm.readU8()))

	default:
		return &interp.RuntimeError{Kind: interp.ErrType, Msg: "unknown opcode " + op.String()}
	}
	return nil
}

var binaryOpNames = map[Opcode]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
}

func newIterator(v interp.Value) (*iterator, *interp.RuntimeError) {
	switch v.Kind {
	case interp.KindArray:
		return &iterator{items: v.Array.Elements}, nil
	case interp.KindString:
		var items []interp.Value
		for _, r := range v.Str {
			items = append(items, interp.StringValue(string(r)))
		}
		return &iterator{items: items}, nil
	}
	return nil, &interp.RuntimeError{Kind: interp.ErrType, Msg: "cannot iterate over " + v.TypeName()}
}

func (vm *VM) call(ctx context.Context, argc int) *interp.RuntimeError {
	if len(vm.stack) < argc+1 {
		return vmStackErr()
	}
	args := make([]interp.Value, argc)
	copy(args, vm.stack[len(vm.stack)-argc:])
	vm.stack = vm.stack[:len(vm.stack)-argc]
	callee, err := vm.pop()
	if err != nil {
		return err
	}

	switch callee.Kind {
	case interp.KindBuiltin:
		v, err := vm.callBuiltin(ctx, callee.Builtin, args)
		if err != nil {
			return err
		}
		vm.push(v)
		return nil

	case interp.KindFunction:
		cf, ok := callee.Fn.Code.(*compiledFunc)
		if !ok {
			return &interp.RuntimeError{Kind: interp.ErrType, Msg: callee.Fn.Name + " has no compiled body"}
		}
		if argc != len(callee.Fn.Params) {
			return &interp.RuntimeError{Kind: interp.ErrType,
				Msg: callee.Fn.Name + " expects " + interp.IntValue(int64(len(callee.Fn.Params))).Display() +
					" argument(s), got " + interp.IntValue(int64(argc)).Display()}
		}
		if len(vm.frames) >= vm.maxDepth {
			return &interp.RuntimeError{Kind: interp.ErrStackOverflow,
				Msg: "recursion depth exceeded " + interp.IntValue(int64(vm.maxDepth)).Display()}
		}
		vm.frames = append(vm.frames, frame{retIP: vm.ip, retEnd: vm.end, env: vm.env, iters: len(vm.iters)})
		scope := interp.NewEnv(callee.Fn.Env)
		for i, param := range callee.Fn.Params {
			scope.Define(param, args[i])
		}
		vm.env = scope
		vm.ip = int(cf.sym.CodeOffset)
		vm.end = int(cf.sym.CodeOffset + cf.sym.CodeLen)
		return nil
	}
	return &interp.RuntimeError{Kind: interp.ErrType, Msg: callee.TypeName() + " is not callable"}
}

func (vm *VM) doReturn(v interp.Value) *interp.RuntimeError {
	if len(vm.frames) == 0 {
		return &interp.RuntimeError{Kind: interp.ErrTopLevelReturn, Msg: "return outside of a function"}
	}
	f := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.ip = f.retIP
	vm.end = f.retEnd
	vm.env = f.env
	vm.iters = vm.iters[:f.iters]
	vm.push(v)
	return nil
}

func (vm *VM) domainCall(ctx context.Context, name string, argc int) *interp.RuntimeError {
	if len(vm.stack) < argc {
		return vmStackErr()
	}
	args := make([]interp.Value, argc)
	copy(args, vm.stack[len(vm.stack)-argc:])
	vm.stack = vm.stack[:len(vm.stack)-argc]

	v, ok := vm.root.Get(name)
	if !ok || v.Kind != interp.KindBuiltin {
		return &interp.RuntimeError{Kind: interp.ErrUnresolvedName, Msg: "undefined name: " + name}
	}
	result, err := vm.callBuiltin(ctx, v.Builtin, args)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

func (vm *VM) callBuiltin(ctx context.Context, b *interp.Builtin, args []interp.Value) (interp.Value, *interp.RuntimeError) {
	if vm.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, vm.callTimeout)
		defer cancel()
	}
	v, err := interp.CallBuiltin(ctx, b, args)
	if err != nil {
		return interp.NilValue, err.(*interp.RuntimeError)
	}
	return v, nil
}

func (vm *VM) push(v interp.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() (interp.Value, *interp.RuntimeError) {
	if len(vm.stack) == 0 {
		return interp.NilValue, vmStackErr()
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) peek() (interp.Value, *interp.RuntimeError) {
	if len(vm.stack) == 0 {
		return interp.NilValue, vmStackErr()
	}
	return vm.stack[len(vm.stack)-1], nil
}

func vmStackErr() *interp.RuntimeError {
	return &interp.RuntimeError{Kind: interp.ErrType, Msg: "value stack corrupted"}
}

func (vm *VM) readU8() uint8 {
	v := vm.prog.Code[vm.ip]
	vm.ip++
	return v
}

func (vm *VM) readU16() uint16 {
	v := binary.LittleEndian.Uint16(vm.prog.Code[vm.ip:])
	vm.ip += 2
	return v
}

func (vm *VM) readOffset() int {
	return int(int16(vm.readU16()))
}
