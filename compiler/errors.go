package compiler

import "fmt"

// LexError reports a tokenization failure. Pos points at the offending
// construct (the opening quote of an unterminated string, the opener of an
// unterminated block comment).
type LexError struct {
	Msg string
	Pos Position
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %s: %s", e.Pos, e.Msg)
}

// ParseError reports the first unexpected token. Parsing aborts at the
// first error; there is no multi-error recovery. Opener is non-nil when the
// error is an unclosed block or paren and points at the unmatched opener.
type ParseError struct {
	Expected string
	Found    string
	Pos      Position
	Opener   *Position
}

func (e *ParseError) Error() string {
	if e.Opener != nil {
		return fmt.Sprintf("parse error at %s: expected %s, found %s (unclosed block opened at %s)",
			e.Pos, e.Expected, e.Found, *e.Opener)
	}
	return fmt.Sprintf("parse error at %s: expected %s, found %s", e.Pos, e.Expected, e.Found)
}
