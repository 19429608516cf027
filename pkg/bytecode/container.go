package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Binary container layout:
//
//	[0:32]   fixed header, little-endian
//	[32:...] code section (opcode stream)
//	[...]    data section (constant pool)
//	[...]    symbol table
//	[...]    metadata (canonical CBOR, runs to end of file)
//
// Header layout:
//
//	[0:4]    magic "AURC"
//	[4:7]    format version major, minor, patch
//	[7]      flags
//	[8:16]   build timestamp, unix seconds
//	[16:20]  code section size in bytes
//	[20:24]  data section size in bytes
//	[24:28]  symbol table size in bytes
//	[28:32]  reserved, must be zero

const (
	Magic      = "AURC"
	HeaderSize = 32

	FormatMajor = 1
	FormatMinor = 0
	FormatPatch = 0
)

// Header flags.
const (
	FlagNone      byte = 0
	FlagOptimized byte = 1 << 0
	FlagDebugInfo byte = 1 << 1
)

// Header is the fixed-size preamble of a compiled program.
type Header struct {
	Major, Minor, Patch byte
	Flags               byte
	Timestamp           uint64
	CodeSize            uint32
	DataSize            uint32
	SymbolTableSize     uint32
}

// ConstKind discriminates constant pool entries.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstString
)

// Constant is a single constant pool entry. Identical literals share one
// entry; the compiler dedupes on the full struct value, so the int 1 and
// the float 1.0 stay distinct.
type Constant struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Str   string
}

func IntConstant(v int64) Constant     { return Constant{Kind: ConstInt, Int: v} }
func FloatConstant(v float64) Constant { return Constant{Kind: ConstFloat, Float: v} }
func StringConstant(s string) Constant { return Constant{Kind: ConstString, Str: s} }

func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstFloat:
		return fmt.Sprintf("%g", c.Float)
	case ConstString:
		return fmt.Sprintf("%q", c.Str)
	}
	return "?"
}

// SymbolKind discriminates symbol table entries.
type SymbolKind uint8

const (
	SymGlobal SymbolKind = iota
	SymLocal
	SymFunction
)

func (k SymbolKind) String() string {
	switch k {
	case SymGlobal:
		return "global"
	case SymLocal:
		return "local"
	case SymFunction:
		return "function"
	}
	return "?"
}

// Symbol is a single symbol table entry. Function symbols additionally
// carry their parameter symbols and the code window holding their body.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Offset uint32 // declaration slot within its scope

	// Function symbols only.
	Params     []uint16 // symbol indices of the parameters, in order
	CodeOffset uint32   // body start within the code section
	CodeLen    uint32   // body length in bytes
}

// Metadata is the trailing CBOR section. Encoded with canonical options so
// byte-identical output is reproducible.
type Metadata struct {
	SourceFile      string   `cbor:"source_file"`
	CompilerVersion string   `cbor:"compiler_version"`
	Flags           []string `cbor:"optimization_flags,omitempty"`
}

// Container is a compiled program ready for serialization or execution.
type Container struct {
	Header    Header
	Code      []byte
	Constants []Constant
	Symbols   []Symbol
	Meta      Metadata
}

var metaEncMode cbor.EncMode

func init() {
	var err error
	metaEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// Serialize writes the container to its binary form. Section sizes recorded
// in the header are cross-checked against the serialized section lengths
// before assembly; a mismatch means the container was mutated inconsistently
// and is reported rather than written out.
func (c *Container) Serialize() ([]byte, error) {
	data, err := encodeConstants(c.Constants)
	if err != nil {
		return nil, err
	}
	symtab, err := encodeSymbols(c.Symbols)
	if err != nil {
		return nil, err
	}
	meta, err := metaEncMode.Marshal(&c.Meta)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	h := c.Header
	h.Major, h.Minor, h.Patch = FormatMajor, FormatMinor, FormatPatch
	if h.Timestamp == 0 {
		h.Timestamp = uint64(time.Now().Unix())
	}
	h.CodeSize = uint32(len(c.Code))
	h.DataSize = uint32(len(data))
	h.SymbolTableSize = uint32(len(symtab))

	if int(h.CodeSize) != len(c.Code) || int(h.DataSize) != len(data) || int(h.SymbolTableSize) != len(symtab) {
		return nil, fmt.Errorf("section size overflow")
	}

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(c.Code) + len(data) + len(symtab) + len(meta))

	var hdr [HeaderSize]byte
	copy(hdr[0:4], Magic)
	hdr[4] = h.Major
	hdr[5] = h.Minor
	hdr[6] = h.Patch
	hdr[7] = h.Flags
	binary.LittleEndian.PutUint64(hdr[8:16], h.Timestamp)
	binary.LittleEndian.PutUint32(hdr[16:20], h.CodeSize)
	binary.LittleEndian.PutUint32(hdr[20:24], h.DataSize)
	binary.LittleEndian.PutUint32(hdr[24:28], h.SymbolTableSize)
	buf.Write(hdr[:])

	buf.Write(c.Code)
	buf.Write(data)
	buf.Write(symtab)
	buf.Write(meta)

	c.Header = h
	return buf.Bytes(), nil
}

func encodeConstants(consts []Constant) ([]byte, error) {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(consts)))
	for _, c := range consts {
		buf.WriteByte(byte(c.Kind))
		switch c.Kind {
		case ConstInt:
			writeUint64(&buf, uint64(c.Int))
		case ConstFloat:
			writeUint64(&buf, math.Float64bits(c.Float))
		case ConstString:
			if len(c.Str) > math.MaxUint32 {
				return nil, fmt.Errorf("string constant too long: %d bytes", len(c.Str))
			}
			writeUint32(&buf, uint32(len(c.Str)))
			buf.WriteString(c.Str)
		default:
			return nil, fmt.Errorf("unknown constant kind %d", c.Kind)
		}
	}
	return buf.Bytes(), nil
}

func encodeSymbols(syms []Symbol) ([]byte, error) {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(syms)))
	for _, s := range syms {
		if len(s.Name) > math.MaxUint16 {
			return nil, fmt.Errorf("symbol name too long: %d bytes", len(s.Name))
		}
		buf.WriteByte(byte(s.Kind))
		writeUint16(&buf, uint16(len(s.Name)))
		buf.WriteString(s.Name)
		writeUint32(&buf, s.Offset)
		if s.Kind == SymFunction {
			if len(s.Params) > math.MaxUint8 {
				return nil, fmt.Errorf("too many parameters on %s: %d", s.Name, len(s.Params))
			}
			buf.WriteByte(byte(len(s.Params)))
			for _, p := range s.Params {
				writeUint16(&buf, p)
			}
			writeUint32(&buf, s.CodeOffset)
			writeUint32(&buf, s.CodeLen)
		}
	}
	return buf.Bytes(), nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
