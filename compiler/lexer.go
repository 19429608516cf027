package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for Aura source text
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Lexer tokenizes Aura source code. Tokens are produced lazily, one per
// NextToken call; a TokenError terminates the stream.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// NextToken returns the next token. Whitespace and comments are discarded,
// never emitted.
func (l *Lexer) NextToken() Token {
	if tok, bad := l.skipTrivia(); bad {
		return tok
	}

	pos := l.position()

	switch {
	case l.ch == 0:
		return l.emit(TokenEOF, "", pos)

	case l.ch == '(':
		l.readChar()
		return l.emit(TokenLParen, "(", pos)

	case l.ch == ')':
		l.readChar()
		return l.emit(TokenRParen, ")", pos)

	case l.ch == '{':
		l.readChar()
		return l.emit(TokenLBrace, "{", pos)

	case l.ch == '}':
		l.readChar()
		return l.emit(TokenRBrace, "}", pos)

	case l.ch == '[':
		l.readChar()
		return l.emit(TokenLBracket, "[", pos)

	case l.ch == ']':
		l.readChar()
		return l.emit(TokenRBracket, "]", pos)

	case l.ch == ',':
		l.readChar()
		return l.emit(TokenComma, ",", pos)

	case l.ch == ';':
		l.readChar()
		return l.emit(TokenSemicolon, ";", pos)

	case l.ch == ':':
		l.readChar()
		return l.emit(TokenColon, ":", pos)

	case l.ch == '+':
		l.readChar()
		return l.emit(TokenPlus, "+", pos)

	case l.ch == '-':
		l.readChar()
		return l.emit(TokenMinus, "-", pos)

	case l.ch == '*':
		l.readChar()
		return l.emit(TokenStar, "*", pos)

	case l.ch == '/':
		l.readChar()
		return l.emit(TokenSlash, "/", pos)

	case l.ch == '%':
		l.readChar()
		return l.emit(TokenPercent, "%", pos)

	case l.ch == '=':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return l.emit(TokenEq, "==", pos)
		}
		return l.emit(TokenAssign, "=", pos)

	case l.ch == '!':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return l.emit(TokenNe, "!=", pos)
		}
		return l.emit(TokenBang, "!", pos)

	case l.ch == '<':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return l.emit(TokenLe, "<=", pos)
		}
		return l.emit(TokenLt, "<", pos)

	case l.ch == '>':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return l.emit(TokenGe, ">=", pos)
		}
		return l.emit(TokenGt, ">", pos)

	case l.ch == '&':
		l.readChar()
		if l.ch == '&' {
			l.readChar()
			return l.emit(TokenAnd, "&&", pos)
		}
		return l.errorToken("unexpected character: &", pos)

	case l.ch == '|':
		l.readChar()
		if l.ch == '|' {
			l.readChar()
			return l.emit(TokenOr, "||", pos)
		}
		return l.errorToken("unexpected character: |", pos)

	case l.ch == '"':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)

	default:
		ch := l.ch
		l.readChar()
		return l.errorToken(fmt.Sprintf("unexpected character: %c", ch), pos)
	}
}

// emit builds a token whose raw end is the current scan position.
func (l *Lexer) emit(t TokenType, literal string, pos Position) Token {
	return Token{Type: t, Literal: literal, Pos: pos, End: l.pos}
}

// errorToken builds a TokenError. The position points at the offending
// construct, not at wherever scanning stopped.
func (l *Lexer) errorToken(msg string, pos Position) Token {
	return Token{Type: TokenError, Literal: msg, Pos: pos, End: l.pos}
}

// skipTrivia skips whitespace, line comments and block comments. An
// unterminated block comment is returned as an error token.
func (l *Lexer) skipTrivia() (Token, bool) {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			open := l.position()
			l.readChar() // consume /
			l.readChar() // consume *
			for {
				if l.ch == 0 {
					return l.errorToken("unterminated block comment", open), true
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
			continue
		}

		return Token{}, false
	}
}

// readString reads a double-quoted string literal, decoding escapes.
// The token's Literal holds the decoded value; Pos points at the opening
// quote so an unterminated string reports where it began.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			return l.errorToken("unterminated string", pos)
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 0:
				return l.errorToken("unterminated string", pos)
			default:
				return l.errorToken(fmt.Sprintf("invalid escape sequence: \\%c", l.ch), pos)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing "

	return l.emit(TokenString, sb.String(), pos)
}

// readNumber reads an integer or float literal. A decimal point followed by
// a digit makes the literal a float; otherwise the point is left for the
// parser (it is not part of the number).
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
		return l.emit(TokenFloat, l.input[start:l.pos], pos)
	}

	return l.emit(TokenInt, l.input[start:l.pos], pos)
}

// readIdentifier reads an identifier or keyword (longest match, keyword
// lookup first).
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos

	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	literal := l.input[start:l.pos]
	if tokType, ok := keywords[literal]; ok {
		return l.emit(tokType, literal, pos)
	}
	return l.emit(TokenIdentifier, literal, pos)
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input, stopping at EOF or the first
// error token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
