package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Aura lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInt        // 42
	TokenFloat      // 3.14
	TokenString     // "hello"
	TokenIdentifier // foo, Bar

	// Keywords
	TokenLet
	TokenConst
	TokenFn
	TokenIf
	TokenElse
	TokenFor
	TokenIn
	TokenWhile
	TokenReturn
	TokenBreak
	TokenContinue
	TokenTrue
	TokenFalse
	TokenPersonality

	// Operators
	TokenAssign  // =
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenBang    // !
	TokenEq      // ==
	TokenNe      // !=
	TokenLt      // <
	TokenLe      // <=
	TokenGt      // >
	TokenGe      // >=
	TokenAnd     // &&
	TokenOr      // ||

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenComma     // ,
	TokenSemicolon // ;
	TokenColon     // :
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenError:       "ERROR",
	TokenInt:         "INT",
	TokenFloat:       "FLOAT",
	TokenString:      "STRING",
	TokenIdentifier:  "IDENTIFIER",
	TokenLet:         "let",
	TokenConst:       "const",
	TokenFn:          "fn",
	TokenIf:          "if",
	TokenElse:        "else",
	TokenFor:         "for",
	TokenIn:          "in",
	TokenWhile:       "while",
	TokenReturn:      "return",
	TokenBreak:       "break",
	TokenContinue:    "continue",
	TokenTrue:        "true",
	TokenFalse:       "false",
	TokenPersonality: "personality",
	TokenAssign:      "=",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenStar:        "*",
	TokenSlash:       "/",
	TokenPercent:     "%",
	TokenBang:        "!",
	TokenEq:          "==",
	TokenNe:          "!=",
	TokenLt:          "<",
	TokenLe:          "<=",
	TokenGt:          ">",
	TokenGe:          ">=",
	TokenAnd:         "&&",
	TokenOr:          "||",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenLBrace:      "{",
	TokenRBrace:      "}",
	TokenLBracket:    "[",
	TokenRBracket:    "]",
	TokenComma:       ",",
	TokenSemicolon:   ";",
	TokenColon:       ":",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // raw text; string tokens hold the decoded value
	Pos     Position // start position
	End     int      // byte offset one past the raw lexeme
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Keywords mapped to their token types. Exact-match lookup runs before the
// identifier rule, so a keyword never lexes as an identifier.
var keywords = map[string]TokenType{
	"let":         TokenLet,
	"const":       TokenConst,
	"fn":          TokenFn,
	"if":          TokenIf,
	"else":        TokenElse,
	"for":         TokenFor,
	"in":          TokenIn,
	"while":       TokenWhile,
	"return":      TokenReturn,
	"break":       TokenBreak,
	"continue":    TokenContinue,
	"true":        TokenTrue,
	"false":       TokenFalse,
	"personality": TokenPersonality,
}
