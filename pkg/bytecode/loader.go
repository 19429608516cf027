package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// Loader failure modes. Each validation check fails with its own sentinel
// so callers can tell a wrong file apart from a damaged one.
var (
	ErrBadMagic           = errors.New("not a compiled aura program")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrTruncated          = errors.New("file truncated")
	ErrSectionSize        = errors.New("section sizes exceed file length")
	ErrCorruptConstant    = errors.New("corrupt constant pool")
	ErrCorruptSymbol      = errors.New("corrupt symbol table")
	ErrCorruptCode        = errors.New("corrupt code section")
	ErrCorruptMetadata    = errors.New("corrupt metadata")
)

// Load parses and validates a serialized program. Magic and version are
// checked before anything else; no opcode executes unless every section
// passes validation.
func Load(raw []byte) (*Container, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(raw), HeaderSize)
	}
	if string(raw[0:4]) != Magic {
		return nil, ErrBadMagic
	}

	h := Header{
		Major:           raw[4],
		Minor:           raw[5],
		Patch:           raw[6],
		Flags:           raw[7],
		Timestamp:       binary.LittleEndian.Uint64(raw[8:16]),
		CodeSize:        binary.LittleEndian.Uint32(raw[16:20]),
		DataSize:        binary.LittleEndian.Uint32(raw[20:24]),
		SymbolTableSize: binary.LittleEndian.Uint32(raw[24:28]),
	}
	if h.Major != FormatMajor {
		return nil, fmt.Errorf("%w: %d.%d.%d", ErrUnsupportedVersion, h.Major, h.Minor, h.Patch)
	}

	total := uint64(HeaderSize) + uint64(h.CodeSize) + uint64(h.DataSize) + uint64(h.SymbolTableSize)
	if total > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: declared %d bytes, have %d", ErrSectionSize, total, len(raw))
	}

	codeStart := uint64(HeaderSize)
	dataStart := codeStart + uint64(h.CodeSize)
	symStart := dataStart + uint64(h.DataSize)
	metaStart := symStart + uint64(h.SymbolTableSize)

	code := raw[codeStart:dataStart]

	consts, err := decodeConstants(raw[dataStart:symStart])
	if err != nil {
		return nil, err
	}
	syms, err := decodeSymbols(raw[symStart:metaStart], h.CodeSize)
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if metaStart < uint64(len(raw)) {
		if err := cbor.Unmarshal(raw[metaStart:], &meta); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
		}
	}

	c := &Container{
		Header:    h,
		Code:      code,
		Constants: consts,
		Symbols:   syms,
		Meta:      meta,
	}
	if err := validateCode(c); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeConstants(data []byte) ([]Constant, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: missing count", ErrCorruptConstant)
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	pos := 4
	consts := make([]Constant, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptConstant, i)
		}
		kind := ConstKind(data[pos])
		pos++
		switch kind {
		case ConstInt:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptConstant, i)
			}
			consts = append(consts, IntConstant(int64(binary.LittleEndian.Uint64(data[pos:]))))
			pos += 8
		case ConstFloat:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptConstant, i)
			}
			consts = append(consts, FloatConstant(math.Float64frombits(binary.LittleEndian.Uint64(data[pos:]))))
			pos += 8
		case ConstString:
			if pos+4 > len(data) {
				return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptConstant, i)
			}
			n := int(binary.LittleEndian.Uint32(data[pos:]))
			pos += 4
			if pos+n > len(data) {
				return nil, fmt.Errorf("%w: entry %d string overruns section", ErrCorruptConstant, i)
			}
			consts = append(consts, StringConstant(string(data[pos:pos+n])))
			pos += n
		default:
			return nil, fmt.Errorf("%w: entry %d has unknown kind %d", ErrCorruptConstant, i, kind)
		}
	}
	if pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptConstant, len(data)-pos)
	}
	return consts, nil
}

func decodeSymbols(data []byte, codeSize uint32) ([]Symbol, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: missing count", ErrCorruptSymbol)
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	pos := 4
	syms := make([]Symbol, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos+3 > len(data) {
			return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptSymbol, i)
		}
		kind := SymbolKind(data[pos])
		if kind > SymFunction {
			return nil, fmt.Errorf("%w: entry %d has unknown kind %d", ErrCorruptSymbol, i, kind)
		}
		nameLen := int(binary.LittleEndian.Uint16(data[pos+1:]))
		pos += 3
		if pos+nameLen+4 > len(data) {
			return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptSymbol, i)
		}
		s := Symbol{
			Kind: kind,
			Name: string(data[pos : pos+nameLen]),
		}
		pos += nameLen
		s.Offset = binary.LittleEndian.Uint32(data[pos:])
		pos += 4

		if kind == SymFunction {
			if pos >= len(data) {
				return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptSymbol, i)
			}
			paramCount := int(data[pos])
			pos++
			if pos+2*paramCount+8 > len(data) {
				return nil, fmt.Errorf("%w: entry %d truncated", ErrCorruptSymbol, i)
			}
			s.Params = make([]uint16, paramCount)
			for p := 0; p < paramCount; p++ {
				s.Params[p] = binary.LittleEndian.Uint16(data[pos:])
				pos += 2
			}
			s.CodeOffset = binary.LittleEndian.Uint32(data[pos:])
			s.CodeLen = binary.LittleEndian.Uint32(data[pos+4:])
			pos += 8
			if uint64(s.CodeOffset)+uint64(s.CodeLen) > uint64(codeSize) {
				return nil, fmt.Errorf("%w: %s body [%d:%d] outside code section",
					ErrCorruptSymbol, s.Name, s.CodeOffset, s.CodeOffset+s.CodeLen)
			}
		}
		syms = append(syms, s)
	}
	if pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptSymbol, len(data)-pos)
	}
	// Parameter references must point back into the table at local symbols.
	for _, s := range syms {
		for _, p := range s.Params {
			if int(p) >= len(syms) {
				return nil, fmt.Errorf("%w: %s parameter index %d out of range", ErrCorruptSymbol, s.Name, p)
			}
		}
	}
	return syms, nil
}

// validateCode walks the opcode stream checking instruction framing and
// operand ranges before the program is allowed to run.
func validateCode(c *Container) error {
	ip := 0
	for ip < len(c.Code) {
		op := Opcode(c.Code[ip])
		info, ok := opcodeInfoTable[op]
		if !ok {
			return fmt.Errorf("%w: unknown opcode 0x%02X at %d", ErrCorruptCode, byte(op), ip)
		}
		if ip+1+info.OperandLen > len(c.Code) {
			return fmt.Errorf("%w: %s at %d truncated", ErrCorruptCode, info.Name, ip)
		}
		switch op {
		case OpConst:
			idx := binary.LittleEndian.Uint16(c.Code[ip+1:])
			if int(idx) >= len(c.Constants) {
				return fmt.Errorf("%w: constant index %d out of range at %d", ErrCorruptCode, idx, ip)
			}
		case OpLoadName, OpStoreName, OpDefineName, OpDefineConst, OpMakeFunc:
			idx := binary.LittleEndian.Uint16(c.Code[ip+1:])
			if int(idx) >= len(c.Symbols) {
				return fmt.Errorf("%w: symbol index %d out of range at %d", ErrCorruptCode, idx, ip)
			}
			if op == OpMakeFunc && c.Symbols[idx].Kind != SymFunction {
				return fmt.Errorf("%w: MAKE_FUNC target %q is not a function", ErrCorruptCode, c.Symbols[idx].Name)
			}
		default:
			if op.IsJump() {
				delta := int(int16(binary.LittleEndian.Uint16(c.Code[ip+1:])))
				target := ip + 1 + info.OperandLen + delta
				if target < 0 || target > len(c.Code) {
					return fmt.Errorf("%w: jump target %d out of range at %d", ErrCorruptCode, target, ip)
				}
			}
		}
		ip += 1 + info.OperandLen
	}
	return nil
}
