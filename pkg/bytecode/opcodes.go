package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category; new domain opcodes go into
// the 0xE0 band so they never collide with core ones.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop Opcode = 0x00 // No operation
	OpPop Opcode = 0x01 // Pop top of stack
	OpDup Opcode = 0x02 // Duplicate top of stack

	// ========================================================================
	// Literal loads (0x10-0x1F)
	// ========================================================================

	OpConst Opcode = 0x10 // Push constant from pool: OpConst <index:u16>
	OpTrue  Opcode = 0x11 // Push true
	OpFalse Opcode = 0x12 // Push false
	OpNil   Opcode = 0x13 // Push the void value

	// ========================================================================
	// Variable load/store (0x20-0x2F), operand is a symbol-table index
	// ========================================================================

	OpLoadName    Opcode = 0x20 // Push named binding: OpLoadName <sym:u16>
	OpStoreName   Opcode = 0x21 // Pop and assign nearest binding: OpStoreName <sym:u16>
	OpDefineName  Opcode = 0x22 // Pop and bind in innermost scope: OpDefineName <sym:u16>
	OpDefineConst Opcode = 0x23 // Like OpDefineName but immutable

	// ========================================================================
	// Function call/return (0x30-0x3F)
	// ========================================================================

	OpCall      Opcode = 0x30 // Call TOS-argc..TOS args on callee below: OpCall <argc:u8>
	OpReturn    Opcode = 0x31 // Return top of stack from current frame
	OpReturnNil Opcode = 0x32 // Return the void value
	OpMakeFunc  Opcode = 0x33 // Push closure over current env: OpMakeFunc <sym:u16>

	// ========================================================================
	// Jumps (0x40-0x4F), relative signed 16-bit offsets
	// ========================================================================

	OpJump      Opcode = 0x40 // Unconditional jump: OpJump <offset:i16>
	OpJumpFalse Opcode = 0x41 // Pop, jump if falsy: OpJumpFalse <offset:i16>
	OpJumpTrue  Opcode = 0x42 // Pop, jump if truthy: OpJumpTrue <offset:i16>

	// ========================================================================
	// Arithmetic and comparison (0x50-0x5F)
	// ========================================================================

	OpAdd    Opcode = 0x50 // Pop two, push sum/concatenation
	OpSub    Opcode = 0x51 // Pop two, push difference
	OpMul    Opcode = 0x52 // Pop two, push product
	OpDiv    Opcode = 0x53 // Pop two, push quotient
	OpMod    Opcode = 0x54 // Pop two, push remainder
	OpNeg    Opcode = 0x55 // Negate top of stack
	OpNot    Opcode = 0x56 // Logical NOT
	OpTruthy Opcode = 0x57 // Coerce top of stack to bool
	OpEq     Opcode = 0x58 // Pop two, push equality
	OpNe     Opcode = 0x59 // Pop two, push inequality
	OpLt     Opcode = 0x5A // Pop two, push a < b
	OpLe     Opcode = 0x5B // Pop two, push a <= b
	OpGt     Opcode = 0x5C // Pop two, push a > b
	OpGe     Opcode = 0x5D // Pop two, push a >= b

	// ========================================================================
	// Array build/index and iteration (0x60-0x6F)
	// ========================================================================

	OpArray    Opcode = 0x60 // Pop n elements, push array: OpArray <n:u16>
	OpIndex    Opcode = 0x61 // Pop index and container, push element
	OpSetIndex Opcode = 0x62 // Pop value, index, container; store element; push value
	OpIterNew  Opcode = 0x63 // Pop iterable, open an iterator
	OpIterNext Opcode = 0x64 // Push next element, or jump when exhausted: OpIterNext <offset:i16>
	OpIterPop  Opcode = 0x65 // Discard the innermost open iterator (break paths)

	// ========================================================================
	// Scopes (0x70-0x7F)
	// ========================================================================

	OpEnterScope Opcode = 0x70 // Push a child scope
	OpExitScope  Opcode = 0x71 // Pop the current scope

	// ========================================================================
	// Domain operations (0xE0-0xEF), reserved band
	// ========================================================================

	OpPersonality Opcode = 0xE0 // Pop n (name, value) const pairs: OpPersonality <n:u16>
	OpKnowledge   Opcode = 0xE1 // Knowledge query: OpKnowledge <argc:u8>
	OpSay         Opcode = 0xE2 // Voice output: OpSay <argc:u8>
	OpListen      Opcode = 0xE3 // Voice input: OpListen <argc:u8>
)

// OpcodeInfo provides metadata about each opcode for the disassembler and
// for validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	OperandLen int    // Number of operand bytes following the opcode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop: {"NOP", 0},
	OpPop: {"POP", 0},
	OpDup: {"DUP", 0},

	OpConst: {"CONST", 2},
	OpTrue:  {"TRUE", 0},
	OpFalse: {"FALSE", 0},
	OpNil:   {"NIL", 0},

	OpLoadName:    {"LOAD_NAME", 2},
	OpStoreName:   {"STORE_NAME", 2},
	OpDefineName:  {"DEFINE_NAME", 2},
	OpDefineConst: {"DEFINE_CONST", 2},

	OpCall:      {"CALL", 1},
	OpReturn:    {"RETURN", 0},
	OpReturnNil: {"RETURN_NIL", 0},
	OpMakeFunc:  {"MAKE_FUNC", 2},

	OpJump:      {"JUMP", 2},
	OpJumpFalse: {"JUMP_FALSE", 2},
	OpJumpTrue:  {"JUMP_TRUE", 2},

	OpAdd:    {"ADD", 0},
	OpSub:    {"SUB", 0},
	OpMul:    {"MUL", 0},
	OpDiv:    {"DIV", 0},
	OpMod:    {"MOD", 0},
	OpNeg:    {"NEG", 0},
	OpNot:    {"NOT", 0},
	OpTruthy: {"TRUTHY", 0},
	OpEq:     {"EQ", 0},
	OpNe:     {"NE", 0},
	OpLt:     {"LT", 0},
	OpLe:     {"LE", 0},
	OpGt:     {"GT", 0},
	OpGe:     {"GE", 0},

	OpArray:    {"ARRAY", 2},
	OpIndex:    {"INDEX", 0},
	OpSetIndex: {"SET_INDEX", 0},
	OpIterNew:  {"ITER_NEW", 0},
	OpIterNext: {"ITER_NEXT", 2},
	OpIterPop:  {"ITER_POP", 0},

	OpEnterScope: {"ENTER_SCOPE", 0},
	OpExitScope:  {"EXIT_SCOPE", 0},

	OpPersonality: {"PERSONALITY", 2},
	OpKnowledge:   {"KNOWLEDGE", 1},
	OpSay:         {"SAY", 1},
	OpListen:      {"LISTEN", 1},
}

// GetOpcodeInfo returns metadata for an opcode. Unknown opcodes get a
// synthesized UNKNOWN name.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction.
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode carries a relative jump offset.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJumpFalse || op == OpJumpTrue || op == OpIterNext
}

// IsDomain returns true for opcodes in the reserved domain band.
func (op Opcode) IsDomain() bool {
	return op >= 0xE0 && op <= 0xEF
}

// AllOpcodes returns a slice of all defined opcodes, for metadata tests.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
