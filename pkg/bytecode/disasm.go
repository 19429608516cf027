package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Disassemble renders a human-readable listing of a container: header,
// constant pool, symbol table, then the annotated opcode stream split into
// its code windows.
func Disassemble(c *Container) string {
	var sb strings.Builder

	h := c.Header
	fmt.Fprintf(&sb, "format %d.%d.%d  flags 0x%02X  built %s\n",
		h.Major, h.Minor, h.Patch, h.Flags,
		time.Unix(int64(h.Timestamp), 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "code %d B  data %d B  symbols %d B\n",
		h.CodeSize, h.DataSize, h.SymbolTableSize)
	if c.Meta.SourceFile != "" {
		fmt.Fprintf(&sb, "source %s (%s)\n", c.Meta.SourceFile, c.Meta.CompilerVersion)
	}

	sb.WriteString("\nconstants:\n")
	for i, k := range c.Constants {
		fmt.Fprintf(&sb, "  %4d  %s\n", i, k)
	}

	sb.WriteString("\nsymbols:\n")
	for i, s := range c.Symbols {
		fmt.Fprintf(&sb, "  %4d  %-8s %s", i, s.Kind, s.Name)
		if s.Kind == SymFunction {
			fmt.Fprintf(&sb, "/%d body [%d:%d]", len(s.Params), s.CodeOffset, s.CodeOffset+s.CodeLen)
		}
		sb.WriteByte('\n')
	}

	sb.WriteString("\nmain:\n")
	disasmWindow(&sb, c, 0, mainWindowEnd(c))
	for _, s := range c.Symbols {
		if s.Kind != SymFunction || s.CodeLen == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\nfn %s:\n", s.Name)
		disasmWindow(&sb, c, int(s.CodeOffset), int(s.CodeOffset+s.CodeLen))
	}
	return sb.String()
}

func mainWindowEnd(c *Container) int {
	end := len(c.Code)
	for _, s := range c.Symbols {
		if s.Kind == SymFunction && s.CodeLen > 0 && int(s.CodeOffset) < end {
			end = int(s.CodeOffset)
		}
	}
	return end
}

func disasmWindow(sb *strings.Builder, c *Container, start, end int) {
	ip := start
	for ip < end && ip < len(c.Code) {
		op := Opcode(c.Code[ip])
		info := GetOpcodeInfo(op)
		fmt.Fprintf(sb, "  %04d  %-12s", ip, info.Name)

		if ip+1+info.OperandLen > len(c.Code) {
			sb.WriteString("  <truncated>\n")
			return
		}
		switch {
		case op == OpConst:
			idx := binary.LittleEndian.Uint16(c.Code[ip+1:])
			if int(idx) < len(c.Constants) {
				fmt.Fprintf(sb, "  %d (%s)", idx, c.Constants[idx])
			} else {
				fmt.Fprintf(sb, "  %d <bad index>", idx)
			}
		case op == OpLoadName || op == OpStoreName || op == OpDefineName || op == OpDefineConst || op == OpMakeFunc:
			idx := binary.LittleEndian.Uint16(c.Code[ip+1:])
			if int(idx) < len(c.Symbols) {
				fmt.Fprintf(sb, "  %d (%s)", idx, c.Symbols[idx].Name)
			} else {
				fmt.Fprintf(sb, "  %d <bad index>", idx)
			}
		case op.IsJump():
			delta := int(int16(binary.LittleEndian.Uint16(c.Code[ip+1:])))
			fmt.Fprintf(sb, "  %+d -> %04d", delta, ip+3+delta)
		case info.OperandLen == 1:
			fmt.Fprintf(sb, "  %d", c.Code[ip+1])
		case info.OperandLen == 2:
			fmt.Fprintf(sb, "  %d", binary.LittleEndian.Uint16(c.Code[ip+1:]))
		}
		sb.WriteByte('\n')
		ip += 1 + info.OperandLen
	}
}
