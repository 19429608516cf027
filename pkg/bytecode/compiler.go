package bytecode

import (
	"fmt"
	"math"
	"time"

	"github.com/aura-lang/aura/compiler"
)

// CompilerVersion is recorded in the metadata section of every program.
const CompilerVersion = "aurac 1.0.0"

// CompileError reports a static error found while lowering a program.
type CompileError struct {
	Msg string
	Pos compiler.Position
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

func compileErrf(pos compiler.Position, format string, args ...any) *CompileError {
	return &CompileError{Msg: fmt.Sprintf(format, args...), Pos: pos}
}

// Compile lowers a parsed program to a binary container in three ordered
// passes: constant pooling, symbol resolution, then opcode emission. The
// output is deterministic for identical input except for the header
// timestamp.
func Compile(prog *compiler.Program, sourceFile string) (*Container, error) {
	c := &comp{
		constIndex:    make(map[Constant]uint16),
		resolved:      make(map[compiler.Node]uint16),
		funcSym:       make(map[*compiler.FuncDecl]uint16),
		unresolvedSym: make(map[string]uint16),
	}

	c.poolProgram(prog)

	c.pushScope()
	if err := c.resolveStmts(prog.Statements); err != nil {
		return nil, err
	}
	c.popScope()

	if err := c.emitProgram(prog); err != nil {
		return nil, err
	}

	return &Container{
		Header: Header{
			Major:     FormatMajor,
			Minor:     FormatMinor,
			Patch:     FormatPatch,
			Timestamp: uint64(time.Now().Unix()),
		},
		Code:      c.code,
		Constants: c.constants,
		Symbols:   c.symbols,
		Meta: Metadata{
			SourceFile:      sourceFile,
			CompilerVersion: CompilerVersion,
		},
	}, nil
}

// CompileSource parses and compiles in one step.
func CompileSource(src, sourceFile string) (*Container, error) {
	prog, err := compiler.Parse(src)
	if err != nil {
		return nil, err
	}
	return Compile(prog, sourceFile)
}

type comp struct {
	constants  []Constant
	constIndex map[Constant]uint16

	symbols       []Symbol
	scopes        []*scope
	resolved      map[compiler.Node]uint16 // decl and reference nodes to symbol index
	funcSym       map[*compiler.FuncDecl]uint16
	unresolvedSym map[string]uint16 // interned free names, resolved at run time

	code     []byte
	loops    []*loopCtx
	scopeDep int
	pending  []*compiler.FuncDecl
}

type scope struct {
	names    map[string]uint16
	nextSlot uint32
	function bool // frame boundary
}

type loopCtx struct {
	isFor        bool
	scopeDepth   int
	continuePos  int
	breakPatches []int
}

// ---------------------------------------------------------------------------
// Pass 1: constant pooling
// ---------------------------------------------------------------------------

func (c *comp) addConst(k Constant) uint16 {
	if idx, ok := c.constIndex[k]; ok {
		return idx
	}
	idx := uint16(len(c.constants))
	c.constants = append(c.constants, k)
	c.constIndex[k] = idx
	return idx
}

func (c *comp) poolProgram(prog *compiler.Program) {
	for _, s := range prog.Statements {
		c.poolStmt(s)
	}
}

func (c *comp) poolStmt(s compiler.Stmt) {
	switch n := s.(type) {
	case *compiler.ExprStmt:
		c.poolExpr(n.Expr)
	case *compiler.LetStmt:
		c.poolExpr(n.Value)
	case *compiler.ConstStmt:
		c.poolExpr(n.Value)
	case *compiler.BlockStmt:
		for _, st := range n.Statements {
			c.poolStmt(st)
		}
	case *compiler.FuncDecl:
		c.poolStmt(n.Body)
	case *compiler.IfStmt:
		c.poolExpr(n.Cond)
		c.poolStmt(n.Then)
		if n.Else != nil {
			c.poolStmt(n.Else)
		}
	case *compiler.ForStmt:
		c.poolExpr(n.Iterable)
		c.poolStmt(n.Body)
	case *compiler.WhileStmt:
		c.poolExpr(n.Cond)
		c.poolStmt(n.Body)
	case *compiler.ReturnStmt:
		if n.Value != nil {
			c.poolExpr(n.Value)
		}
	case *compiler.PersonalityBlock:
		for _, t := range n.Traits {
			c.addConst(StringConstant(t.Name))
			c.addConst(FloatConstant(t.Value))
		}
	}
}

func (c *comp) poolExpr(e compiler.Expr) {
	switch n := e.(type) {
	case *compiler.IntLiteral:
		c.addConst(IntConstant(n.Value))
	case *compiler.FloatLiteral:
		c.addConst(FloatConstant(n.Value))
	case *compiler.StringLiteral:
		c.addConst(StringConstant(n.Value))
	case *compiler.ArrayLiteral:
		for _, el := range n.Elements {
			c.poolExpr(el)
		}
	case *compiler.BinaryExpr:
		c.poolExpr(n.Left)
		c.poolExpr(n.Right)
	case *compiler.UnaryExpr:
		c.poolExpr(n.Operand)
	case *compiler.CallExpr:
		c.poolExpr(n.Callee)
		for _, a := range n.Args {
			c.poolExpr(a)
		}
	case *compiler.IndexExpr:
		c.poolExpr(n.Target)
		c.poolExpr(n.Index)
	case *compiler.AssignExpr:
		c.poolExpr(n.Target)
		c.poolExpr(n.Value)
	}
}

// ---------------------------------------------------------------------------
/// Pass 2: symbol resolution
// ---------------------------------------------------------------------------

func (c *comp) pushScope() {
	c.scopes = append(c.scopes, &scope{names: make(map[string]uint16)})
}

func (c *comp) pushFrameScope() {
	c.scopes = append(c.scopes, &scope{names: make(map[string]uint16), function: true})
}

func (c *comp) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *comp) addSymbol(name string, kind SymbolKind) (uint16, error) {
	if len(c.symbols) > math.MaxUint16 {
		return 0, fmt.Errorf("too many symbols")
	}
	sc := c.scopes[len(c.scopes)-1]
	idx := uint16(len(c.symbols))
	c.symbols = append(c.symbols, Symbol{Name: name, Kind: kind, Offset: sc.nextSlot})
	sc.names[name] = idx
	sc.nextSlot++
	return idx, nil
}

// declare binds a new name in the innermost scope. Shadowing an outer scope
// is allowed; a second declaration in the same scope is not.
func (c *comp) declare(name string, kind SymbolKind, pos compiler.Position) (uint16, error) {
	sc := c.scopes[len(c.scopes)-1]
	if _, ok := sc.names[name]; ok {
		return 0, compileErrf(pos, "%s already declared in this scope", name)
	}
	return c.addSymbol(name, kind)
}

func (c *comp) lookup(name string) (uint16, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if idx, ok := c.scopes[i].names[name]; ok {
			return idx, true
		}
	}
	return 0, false
}

// reference resolves a name use. Free names are interned as global symbols
// so the loader can rebuild them; they bind to builtins at run time.
func (c *comp) reference(node compiler.Node, name string) error {
	if idx, ok := c.lookup(name); ok {
		c.resolved[node] = idx
		return nil
	}
	idx, ok := c.unresolvedSym[name]
	if !ok {
		var err error
		idx, err = c.addSymbol(name, SymGlobal)
		if err != nil {
			return err
		}
		// addSymbol recorded the name in the innermost scope; free names
		// must not shadow anything, so undo that part.
		delete(c.scopes[len(c.scopes)-1].names, name)
		c.unresolvedSym[name] = idx
	}
	c.resolved[node] = idx
	return nil
}

func (c *comp) declKind() SymbolKind {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i].function {
			return SymLocal
		}
	}
	return SymGlobal
}

func (c *comp) resolveStmts(stmts []compiler.Stmt) error {
	for _, s := range stmts {
		if err := c.resolveStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *comp) resolveStmt(s compiler.Stmt) error {
	switch n := s.(type) {
	case *compiler.ExprStmt:
		return c.resolveExpr(n.Expr)
	case *compiler.LetStmt:
		if err := c.resolveExpr(n.Value); err != nil {
			return err
		}
		idx, err := c.declare(n.Name, c.declKind(), n.SpanVal.Start)
		if err != nil {
			return err
		}
		c.resolved[n] = idx
		return nil
	case *compiler.ConstStmt:
		if err := c.resolveExpr(n.Value); err != nil {
			return err
		}
		idx, err := c.declare(n.Name, c.declKind(), n.SpanVal.Start)
		if err != nil {
			return err
		}
		c.resolved[n] = idx
		return nil
	case *compiler.BlockStmt:
		c.pushScope()
		defer c.popScope()
		return c.resolveStmts(n.Statements)
	case *compiler.FuncDecl:
		idx, err := c.declare(n.Name, SymFunction, n.SpanVal.Start)
		if err != nil {
			return err
		}
		c.resolved[n] = idx
		c.funcSym[n] = idx

		c.pushFrameScope()
		defer c.popScope()
		params := make([]uint16, 0, len(n.Params))
		for _, p := range n.Params {
			pidx, err := c.declare(p, SymLocal, n.SpanVal.Start)
			if err != nil {
				return err
			}
			params = append(params, pidx)
		}
		c.symbols[idx].Params = params
		return c.resolveStmts(n.Body.Statements)
	case *compiler.IfStmt:
		if err := c.resolveExpr(n.Cond); err != nil {
			return err
		}
		if err := c.resolveStmt(n.Then); err != nil {
			return err
		}
		if n.Else != nil {
			return c.resolveStmt(n.Else)
		}
		return nil
	case *compiler.ForStmt:
		if err := c.resolveExpr(n.Iterable); err != nil {
			return err
		}
		c.pushScope()
		defer c.popScope()
		idx, err := c.declare(n.Var, c.declKind(), n.SpanVal.Start)
		if err != nil {
			return err
		}
		c.resolved[n] = idx
		return c.resolveStmts(n.Body.Statements)
	case *compiler.WhileStmt:
		if err := c.resolveExpr(n.Cond); err != nil {
			return err
		}
		return c.resolveStmt(n.Body)
	case *compiler.ReturnStmt:
		if n.Value != nil {
			return c.resolveExpr(n.Value)
		}
		return nil
	case *compiler.BreakStmt, *compiler.ContinueStmt, *compiler.PersonalityBlock:
		return nil
	}
	return nil
}

func (c *comp) resolveExpr(e compiler.Expr) error {
	switch n := e.(type) {
	case *compiler.Ident:
		return c.reference(n, n.Name)
	case *compiler.ArrayLiteral:
		for _, el := range n.Elements {
			if err := c.resolveExpr(el); err != nil {
				return err
			}
		}
		return nil
	case *compiler.BinaryExpr:
		if err := c.resolveExpr(n.Left); err != nil {
			return err
		}
		return c.resolveExpr(n.Right)
	case *compiler.UnaryExpr:
		return c.resolveExpr(n.Operand)
	case *compiler.CallExpr:
		if err := c.resolveExpr(n.Callee); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := c.resolveExpr(a); err != nil {
				return err
			}
		}
		return nil
	case *compiler.IndexExpr:
		if err := c.resolveExpr(n.Target); err != nil {
			return err
		}
		return c.resolveExpr(n.Index)
	case *compiler.AssignExpr:
		if err := c.resolveExpr(n.Value); err != nil {
			return err
		}
		return c.resolveExpr(n.Target)
	}
	return nil
}

// isFree reports whether a call target resolved to nothing user-declared.
func (c *comp) isFree(node compiler.Node, name string) bool {
	idx, ok := c.resolved[node]
	if !ok {
		return false
	}
	free, ok := c.unresolvedSym[name]
	return ok && free == idx
}

// ---------------------------------------------------------------------------
// Pass 3: opcode emission
// ---------------------------------------------------------------------------

func (c *comp) emit(op Opcode) {
	c.code = append(c.code, byte(op))
}

func (c *comp) emitU8(op Opcode, v uint8) {
	c.code = append(c.code, byte(op), v)
}

func (c *comp) emitU16(op Opcode, v uint16) {
	c.code = append(c.code, byte(op), byte(v), byte(v>>8))
}

// emitJump emits a jump with a placeholder offset and returns the position
// of the operand for later patching.
func (c *comp) emitJump(op Opcode) int {
	c.emit(op)
	pos := len(c.code)
	c.code = append(c.code, 0, 0)
	return pos
}

// patchJump points the operand at pos to the current emission position.
func (c *comp) patchJump(pos int) error {
	return c.patchJumpTo(pos, len(c.code))
}

func (c *comp) patchJumpTo(pos, target int) error {
	// Offsets are relative to the instruction pointer after the operand.
	delta := target - (pos + 2)
	if delta < math.MinInt16 || delta > math.MaxInt16 {
		return fmt.Errorf("jump distance %d out of range", delta)
	}
	c.code[pos] = byte(uint16(int16(delta)))
	c.code[pos+1] = byte(uint16(int16(delta)) >> 8)
	return nil
}

func (c *comp) emitProgram(prog *compiler.Program) error {
	for _, s := range prog.Statements {
		if err := c.emitStmt(s); err != nil {
			return err
		}
	}

	// Function bodies follow the main window as separate code windows;
	// nested declarations queue more while their parents compile.
	for len(c.pending) > 0 {
		fn := c.pending[0]
		c.pending = c.pending[1:]
		start := len(c.code)
		for _, s := range fn.Body.Statements {
			if err := c.emitStmt(s); err != nil {
				return err
			}
		}
		c.emit(OpReturnNil)
		idx := c.funcSym[fn]
		c.symbols[idx].CodeOffset = uint32(start)
		c.symbols[idx].CodeLen = uint32(len(c.code) - start)
	}
	return nil
}

func (c *comp) emitStmt(s compiler.Stmt) error {
	switch n := s.(type) {
	case *compiler.ExprStmt:
		if err := c.emitExpr(n.Expr); err != nil {
			return err
		}
		c.emit(OpPop)
		return nil
	case *compiler.LetStmt:
		if err := c.emitExpr(n.Value); err != nil {
			return err
		}
		c.emitU16(OpDefineName, c.resolved[n])
		return nil
	case *compiler.ConstStmt:
		if err := c.emitExpr(n.Value); err != nil {
			return err
		}
		c.emitU16(OpDefineConst, c.resolved[n])
		return nil
	case *compiler.BlockStmt:
		return c.emitBlock(n)
	case *compiler.FuncDecl:
		c.emitU16(OpMakeFunc, c.funcSym[n])
		c.emitU16(OpDefineName, c.funcSym[n])
		c.pending = append(c.pending, n)
		return nil
	case *compiler.IfStmt:
		return c.emitIf(n)
	case *compiler.ForStmt:
		return c.emitFor(n)
	case *compiler.WhileStmt:
		return c.emitWhile(n)
	case *compiler.ReturnStmt:
		// Emitted even at top level; an empty frame stack raises the
		// runtime error there, matching direct evaluation of dead code
		// like `if false { return 1 }`.
		if n.Value == nil {
			c.emit(OpReturnNil)
		} else {
			if err := c.emitExpr(n.Value); err != nil {
				return err
			}
			c.emit(OpReturn)
		}
		return nil
	case *compiler.BreakStmt:
		return c.emitBreak(n.SpanVal.Start)
	case *compiler.ContinueStmt:
		return c.emitContinue(n.SpanVal.Start)
	case *compiler.PersonalityBlock:
		for _, t := range n.Traits {
			c.emitU16(OpConst, c.constIndex[StringConstant(t.Name)])
			c.emitU16(OpConst, c.constIndex[FloatConstant(t.Value)])
		}
		if len(n.Traits) > math.MaxUint16 {
			return compileErrf(n.SpanVal.Start, "too many traits")
		}
		c.emitU16(OpPersonality, uint16(len(n.Traits)))
		return nil
	}
	return nil
}

func (c *comp) emitBlock(b *compiler.BlockStmt) error {
	c.emit(OpEnterScope)
	c.scopeDep++
	for _, s := range b.Statements {
		if err := c.emitStmt(s); err != nil {
			return err
		}
	}
	c.scopeDep--
	c.emit(OpExitScope)
	return nil
}

func (c *comp) emitIf(n *compiler.IfStmt) error {
	if err := c.emitExpr(n.Cond); err != nil {
		return err
	}
	elseJump := c.emitJump(OpJumpFalse)
	if err := c.emitBlock(n.Then); err != nil {
		return err
	}
	if n.Else == nil {
		return c.patchJump(elseJump)
	}
	endJump := c.emitJump(OpJump)
	if err := c.patchJump(elseJump); err != nil {
		return err
	}
	if err := c.emitStmt(n.Else); err != nil {
		return err
	}
	return c.patchJump(endJump)
}

func (c *comp) emitWhile(n *compiler.WhileStmt) error {
	start := len(c.code)
	if err := c.emitExpr(n.Cond); err != nil {
		return err
	}
	exitJump := c.emitJump(OpJumpFalse)

	loop := &loopCtx{scopeDepth: c.scopeDep, continuePos: start}
	c.loops = append(c.loops, loop)
	if err := c.emitBlock(n.Body); err != nil {
		return err
	}
	c.loops = c.loops[:len(c.loops)-1]

	back := c.emitJump(OpJump)
	if err := c.patchJumpTo(back, start); err != nil {
		return err
	}
	if err := c.patchJump(exitJump); err != nil {
		return err
	}
	for _, p := range loop.breakPatches {
		if err := c.patchJump(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *comp) emitFor(n *compiler.ForStmt) error {
	if err := c.emitExpr(n.Iterable); err != nil {
		return err
	}
	c.emit(OpIterNew)

	start := len(c.code)
	exitJump := c.emitJump(OpIterNext)

	loop := &loopCtx{isFor: true, scopeDepth: c.scopeDep, continuePos: start}
	c.loops = append(c.loops, loop)

	c.emit(OpEnterScope)
	c.scopeDep++
	c.emitU16(OpDefineName, c.resolved[n])
	for _, s := range n.Body.Statements {
		if err := c.emitStmt(s); err != nil {
			return err
		}
	}
	c.scopeDep--
	c.emit(OpExitScope)

	c.loops = c.loops[:len(c.loops)-1]

	back := c.emitJump(OpJump)
	if err := c.patchJumpTo(back, start); err != nil {
		return err
	}
	if err := c.patchJump(exitJump); err != nil {
		return err
	}
	for _, p := range loop.breakPatches {
		if err := c.patchJump(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *comp) emitBreak(pos compiler.Position) error {
	if len(c.loops) == 0 {
		return compileErrf(pos, "break outside loop")
	}
	loop := c.loops[len(c.loops)-1]
	for i := loop.scopeDepth; i < c.scopeDep; i++ {
		c.emit(OpExitScope)
	}
	if loop.isFor {
		c.emit(OpIterPop)
	}
	loop.breakPatches = append(loop.breakPatches, c.emitJump(OpJump))
	return nil
}

func (c *comp) emitContinue(pos compiler.Position) error {
	if len(c.loops) == 0 {
		return compileErrf(pos, "continue outside loop")
	}
	loop := c.loops[len(c.loops)-1]
	for i := loop.scopeDepth; i < c.scopeDep; i++ {
		c.emit(OpExitScope)
	}
	back := c.emitJump(OpJump)
	return c.patchJumpTo(back, loop.continuePos)
}

var binaryOps = map[string]Opcode{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod,
	"==": OpEq, "!=": OpNe, "<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe,
}

func (c *comp) emitExpr(e compiler.Expr) error {
	switch n := e.(type) {
	case *compiler.IntLiteral:
		c.emitU16(OpConst, c.constIndex[IntConstant(n.Value)])
		return nil
	case *compiler.FloatLiteral:
		c.emitU16(OpConst, c.constIndex[FloatConstant(n.Value)])
		return nil
	case *compiler.StringLiteral:
		c.emitU16(OpConst, c.constIndex[StringConstant(n.Value)])
		return nil
	case *compiler.BoolLiteral:
		if n.Value {
			c.emit(OpTrue)
		} else {
			c.emit(OpFalse)
		}
		return nil
	case *compiler.ArrayLiteral:
		for _, el := range n.Elements {
			if err := c.emitExpr(el); err != nil {
				return err
			}
		}
		if len(n.Elements) > math.MaxUint16 {
			return compileErrf(n.SpanVal.Start, "array literal too long")
		}
		c.emitU16(OpArray, uint16(len(n.Elements)))
		return nil
	case *compiler.Ident:
		c.emitU16(OpLoadName, c.resolved[n])
		return nil
	case *compiler.BinaryExpr:
		return c.emitBinary(n)
	case *compiler.UnaryExpr:
		if err := c.emitExpr(n.Operand); err != nil {
			return err
		}
		if n.Op == "!" {
			c.emit(OpNot)
		} else {
			c.emit(OpNeg)
		}
		return nil
	case *compiler.CallExpr:
		return c.emitCall(n)
	case *compiler.IndexExpr:
		if err := c.emitExpr(n.Target); err != nil {
			return err
		}
		if err := c.emitExpr(n.Index); err != nil {
			return err
		}
		c.emit(OpIndex)
		return nil
	case *compiler.AssignExpr:
		return c.emitAssign(n)
	}
	return compileErrf(e.Span().Start, "cannot compile expression")
}

func (c *comp) emitBinary(n *compiler.BinaryExpr) error {
	// Logical operators short-circuit; everything else is a plain
	// two-operand instruction.
	switch n.Op {
	case "&&":
		if err := c.emitExpr(n.Left); err != nil {
			return err
		}
		falseJump := c.emitJump(OpJumpFalse)
		if err := c.emitExpr(n.Right); err != nil {
			return err
		}
		c.emit(OpTruthy)
		endJump := c.emitJump(OpJump)
		if err := c.patchJump(falseJump); err != nil {
			return err
		}
		c.emit(OpFalse)
		return c.patchJump(endJump)
	case "||":
		if err := c.emitExpr(n.Left); err != nil {
			return err
		}
		trueJump := c.emitJump(OpJumpTrue)
		if err := c.emitExpr(n.Right); err != nil {
			return err
		}
		c.emit(OpTruthy)
		endJump := c.emitJump(OpJump)
		if err := c.patchJump(trueJump); err != nil {
			return err
		}
		c.emit(OpTrue)
		return c.patchJump(endJump)
	}

	if err := c.emitExpr(n.Left); err != nil {
		return err
	}
	if err := c.emitExpr(n.Right); err != nil {
		return err
	}
	op, ok := binaryOps[n.Op]
	if !ok {
		return compileErrf(n.SpanVal.Start, "unknown operator %s", n.Op)
	}
	c.emit(op)
	return nil
}

var domainCalls = map[string]Opcode{
	"knowledge": OpKnowledge,
	"say":       OpSay,
	"listen":    OpListen,
}

func (c *comp) emitCall(n *compiler.CallExpr) error {
	if len(n.Args) > math.MaxUint8 {
		return compileErrf(n.SpanVal.Start, "too many call arguments")
	}

	// Calls to free identifiers naming a companion capability lower to the
	// reserved domain band; a user declaration of the same name shadows it
	// and compiles as an ordinary call.
	if id, ok := n.Callee.(*compiler.Ident); ok {
		if op, domain := domainCalls[id.Name]; domain && c.isFree(id, id.Name) {
			for _, a := range n.Args {
				if err := c.emitExpr(a); err != nil {
					return err
				}
			}
			c.emitU8(op, uint8(len(n.Args)))
			return nil
		}
	}

	if err := c.emitExpr(n.Callee); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := c.emitExpr(a); err != nil {
			return err
		}
	}
	c.emitU8(OpCall, uint8(len(n.Args)))
	return nil
}

func (c *comp) emitAssign(n *compiler.AssignExpr) error {
	switch target := n.Target.(type) {
	case *compiler.Ident:
		if err := c.emitExpr(n.Value); err != nil {
			return err
		}
		c.emit(OpDup)
		c.emitU16(OpStoreName, c.resolved[target])
		return nil
	case *compiler.IndexExpr:
		if err := c.emitExpr(target.Target); err != nil {
			return err
		}
		if err := c.emitExpr(target.Index); err != nil {
			return err
		}
		if err := c.emitExpr(n.Value); err != nil {
			return err
		}
		c.emit(OpSetIndex)
		return nil
	}
	return compileErrf(n.SpanVal.Start, "invalid assignment target")
}
