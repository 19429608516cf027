package interp

import (
	"fmt"

	"github.com/aura-lang/aura/compiler"
)

// ---------------------------------------------------------------------------
// Runtime error taxonomy
// ---------------------------------------------------------------------------

// ErrorKind classifies a runtime failure.
type ErrorKind int

const (
	ErrUnresolvedName ErrorKind = iota
	ErrType
	ErrArithmetic
	ErrIndex
	ErrStackOverflow
	ErrTopLevelReturn
	ErrTimeout
	ErrConstAssign
	ErrLoopControl
	ErrBuiltin
)

var errorKindNames = map[ErrorKind]string{
	ErrUnresolvedName: "UnresolvedNameError",
	ErrType:           "TypeError",
	ErrArithmetic:     "ArithmeticError",
	ErrIndex:          "IndexError",
	ErrStackOverflow:  "StackOverflowError",
	ErrTopLevelReturn: "TopLevelReturnError",
	ErrTimeout:        "TimeoutError",
	ErrConstAssign:    "ConstAssignError",
	ErrLoopControl:    "LoopControlError",
	ErrBuiltin:        "BuiltinError",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// RuntimeError is the single structured error type every evaluation failure
// reduces to. Callers render Kind, Msg and Pos; the interpreter performs no
// other formatting.
type RuntimeError struct {
	Kind ErrorKind
	Msg  string
	Pos  compiler.Position
}

func (e *RuntimeError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func runtimeErrf(kind ErrorKind, pos compiler.Position, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Msg: fmt.Sprintf(format, args...), Pos: pos}
}
