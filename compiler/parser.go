package compiler

import (
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for Aura
// ---------------------------------------------------------------------------

// Parser parses Aura source code into an AST. It keeps one token of
// lookahead and stops at the first error.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	err       error
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse tokenizes and parses a complete program.
func Parse(input string) (*Program, error) {
	return NewParser(input).ParseProgram()
}

// nextToken advances to the next token. A lexer error token becomes the
// parser's terminal error.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.peekToken.Type == TokenError && p.err == nil {
		p.err = &LexError{Msg: p.peekToken.Literal, Pos: p.peekToken.Pos}
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances past the current token if it matches, otherwise records
// an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.fail(t.String(), nil)
	return false
}

// fail records the first parse error; later failures are discarded.
func (p *Parser) fail(expected string, opener *Position) {
	if p.err != nil {
		return
	}
	p.err = &ParseError{
		Expected: expected,
		Found:    p.curToken.Type.String(),
		Pos:      p.curToken.Pos,
		Opener:   opener,
	}
}

// failed reports whether parsing has already aborted.
func (p *Parser) failed() bool { return p.err != nil }

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses the whole input. It returns the program or the first
// lex/parse error.
func (p *Parser) ParseProgram() (*Program, error) {
	start := p.curToken.Pos

	var stmts []Stmt
	for !p.curTokenIs(TokenEOF) && !p.failed() {
		stmt := p.parseStatement()
		if p.failed() {
			break
		}
		stmts = append(stmts, stmt)
	}

	if p.err != nil {
		return nil, p.err
	}

	return &Program{
		SpanVal:    MakeSpan(start, p.curToken.Pos),
		Statements: stmts,
	}, nil
}

// parseStatement dispatches on the current token. A trailing semicolon is
// optional after every statement.
func (p *Parser) parseStatement() Stmt {
	var stmt Stmt

	switch p.curToken.Type {
	case TokenLet:
		stmt = p.parseLet()
	case TokenConst:
		stmt = p.parseConst()
	case TokenFn:
		stmt = p.parseFuncDecl()
	case TokenIf:
		stmt = p.parseIf()
	case TokenFor:
		stmt = p.parseFor()
	case TokenWhile:
		stmt = p.parseWhile()
	case TokenReturn:
		stmt = p.parseReturn()
	case TokenBreak:
		stmt = &BreakStmt{SpanVal: MakeSpan(p.curToken.Pos, p.curToken.Pos)}
		p.nextToken()
	case TokenContinue:
		stmt = &ContinueStmt{SpanVal: MakeSpan(p.curToken.Pos, p.curToken.Pos)}
		p.nextToken()
	case TokenPersonality:
		stmt = p.parsePersonality()
	default:
		stmt = p.parseExprStatement()
	}

	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseLet() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume let

	if !p.curTokenIs(TokenIdentifier) {
		p.fail("identifier", nil)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if !p.expect(TokenAssign) {
		return nil
	}

	value := p.parseExpression()
	if p.failed() {
		return nil
	}

	return &LetStmt{
		SpanVal: MakeSpan(start, value.Span().End),
		Name:    name,
		Value:   value,
	}
}

func (p *Parser) parseConst() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume const

	if !p.curTokenIs(TokenIdentifier) {
		p.fail("identifier", nil)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if !p.expect(TokenAssign) {
		return nil
	}

	value := p.parseExpression()
	if p.failed() {
		return nil
	}

	return &ConstStmt{
		SpanVal: MakeSpan(start, value.Span().End),
		Name:    name,
		Value:   value,
	}
}

// parseFuncDecl parses fn name(p1, p2) { ... }. Parameters are positional
// only; no defaults, no varargs.
func (p *Parser) parseFuncDecl() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume fn

	if !p.curTokenIs(TokenIdentifier) {
		p.fail("function name", nil)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	openParen := p.curToken.Pos
	if !p.expect(TokenLParen) {
		return nil
	}

	var params []string
	for !p.curTokenIs(TokenRParen) {
		if p.curTokenIs(TokenEOF) {
			p.fail(")", &openParen)
			return nil
		}
		if !p.curTokenIs(TokenIdentifier) {
			p.fail("parameter name", nil)
			return nil
		}
		params = append(params, p.curToken.Literal)
		p.nextToken()

		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else if !p.curTokenIs(TokenRParen) {
			p.fail(") or ,", &openParen)
			return nil
		}
	}
	p.nextToken() // consume )

	body := p.parseBlock()
	if p.failed() {
		return nil
	}

	return &FuncDecl{
		SpanVal: MakeSpan(start, body.Span().End),
		Name:    name,
		Params:  params,
		Body:    body,
	}
}

// parseBlock parses { stmt* }. A missing closer reports the position of the
// unmatched opener.
func (p *Parser) parseBlock() *BlockStmt {
	open := p.curToken.Pos
	if !p.expect(TokenLBrace) {
		return nil
	}

	var stmts []Stmt
	for !p.curTokenIs(TokenRBrace) {
		if p.curTokenIs(TokenEOF) {
			p.fail("} at end of block", &open)
			return nil
		}
		stmt := p.parseStatement()
		if p.failed() {
			return nil
		}
		stmts = append(stmts, stmt)
	}
	end := p.curToken.Pos
	p.nextToken() // consume }

	return &BlockStmt{
		SpanVal:    MakeSpan(open, end),
		Statements: stmts,
	}
}

func (p *Parser) parseIf() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume if

	cond := p.parseExpression()
	if p.failed() {
		return nil
	}

	then := p.parseBlock()
	if p.failed() {
		return nil
	}

	stmt := &IfStmt{
		SpanVal: MakeSpan(start, then.Span().End),
		Cond:    cond,
		Then:    then,
	}

	if p.curTokenIs(TokenElse) {
		p.nextToken() // consume else
		if p.curTokenIs(TokenIf) {
			stmt.Else = p.parseIf()
		} else {
			stmt.Else = p.parseBlock()
		}
		if p.failed() {
			return nil
		}
		stmt.SpanVal.End = stmt.Else.Span().End
	}

	return stmt
}

func (p *Parser) parseFor() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume for

	if !p.curTokenIs(TokenIdentifier) {
		p.fail("loop variable", nil)
		return nil
	}
	loopVar := p.curToken.Literal
	p.nextToken()

	if !p.expect(TokenIn) {
		return nil
	}

	iterable := p.parseExpression()
	if p.failed() {
		return nil
	}

	body := p.parseBlock()
	if p.failed() {
		return nil
	}

	return &ForStmt{
		SpanVal:  MakeSpan(start, body.Span().End),
		Var:      loopVar,
		Iterable: iterable,
		Body:     body,
	}
}

func (p *Parser) parseWhile() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume while

	cond := p.parseExpression()
	if p.failed() {
		return nil
	}

	body := p.parseBlock()
	if p.failed() {
		return nil
	}

	return &WhileStmt{
		SpanVal: MakeSpan(start, body.Span().End),
		Cond:    cond,
		Body:    body,
	}
}

func (p *Parser) parseReturn() Stmt {
	start := p.curToken.Pos
	end := p.curToken.Pos
	p.nextToken() // consume return

	stmt := &ReturnStmt{SpanVal: MakeSpan(start, end)}

	// A bare return is followed by ; } or EOF.
	if !p.curTokenIs(TokenSemicolon) && !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		value := p.parseExpression()
		if p.failed() {
			return nil
		}
		stmt.Value = value
		stmt.SpanVal.End = value.Span().End
	}

	return stmt
}

// parsePersonality parses personality { trait: number, ... } into a flat
// name-to-float map. Trait names are not checked against any schema.
func (p *Parser) parsePersonality() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume personality

	open := p.curToken.Pos
	if !p.expect(TokenLBrace) {
		return nil
	}

	var traits []Trait
	for !p.curTokenIs(TokenRBrace) {
		if p.curTokenIs(TokenEOF) {
			p.fail("} at end of block", &open)
			return nil
		}
		if !p.curTokenIs(TokenIdentifier) {
			p.fail("trait name", nil)
			return nil
		}
		name := p.curToken.Literal
		p.nextToken()

		if !p.expect(TokenColon) {
			return nil
		}

		value, ok := p.parseTraitValue()
		if !ok {
			return nil
		}

		traits = append(traits, Trait{Name: name, Value: value})

		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else if !p.curTokenIs(TokenRBrace) {
			p.fail("} or ,", &open)
			return nil
		}
	}
	end := p.curToken.Pos
	p.nextToken() // consume }

	return &PersonalityBlock{
		SpanVal: MakeSpan(start, end),
		Traits:  traits,
	}
}

// parseTraitValue parses a (possibly negated) numeric trait value.
func (p *Parser) parseTraitValue() (float64, bool) {
	neg := false
	if p.curTokenIs(TokenMinus) {
		neg = true
		p.nextToken()
	}

	var value float64
	switch p.curToken.Type {
	case TokenFloat:
		value, _ = strconv.ParseFloat(p.curToken.Literal, 64)
	case TokenInt:
		i, _ := strconv.ParseInt(p.curToken.Literal, 10, 64)
		value = float64(i)
	default:
		p.fail("trait value", nil)
		return 0, false
	}
	p.nextToken()

	if neg {
		value = -value
	}
	return value, true
}

func (p *Parser) parseExprStatement() Stmt {
	expr := p.parseExpression()
	if p.failed() {
		return nil
	}
	return &ExprStmt{SpanVal: expr.Span(), Expr: expr}
}

// ---------------------------------------------------------------------------
// Expression parsing
//
// Precedence is encoded by nesting call order, lowest first:
// assignment, or, and, equality, relational, additive, multiplicative,
// unary, postfix (call/index), primary.
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression() Expr {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() Expr {
	left := p.parseOr()
	if p.failed() {
		return nil
	}

	if !p.curTokenIs(TokenAssign) {
		return left
	}

	switch left.(type) {
	case *Ident, *IndexExpr:
		// assignable
	default:
		p.fail("assignable expression before =", nil)
		return nil
	}
	p.nextToken() // consume =

	value := p.parseAssignment()
	if p.failed() {
		return nil
	}

	return &AssignExpr{
		SpanVal: MakeSpan(left.Span().Start, value.Span().End),
		Target:  left,
		Value:   value,
	}
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for !p.failed() && p.curTokenIs(TokenOr) {
		op := p.curToken.Literal
		p.nextToken()
		right := p.parseAnd()
		if p.failed() {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: MakeSpan(left.Span().Start, right.Span().End),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseEquality()
	for !p.failed() && p.curTokenIs(TokenAnd) {
		op := p.curToken.Literal
		p.nextToken()
		right := p.parseEquality()
		if p.failed() {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: MakeSpan(left.Span().Start, right.Span().End),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseEquality() Expr {
	left := p.parseRelational()
	for !p.failed() && (p.curTokenIs(TokenEq) || p.curTokenIs(TokenNe)) {
		op := p.curToken.Literal
		p.nextToken()
		right := p.parseRelational()
		if p.failed() {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: MakeSpan(left.Span().Start, right.Span().End),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseRelational() Expr {
	left := p.parseAdditive()
	for !p.failed() && (p.curTokenIs(TokenLt) || p.curTokenIs(TokenLe) ||
		p.curTokenIs(TokenGt) || p.curTokenIs(TokenGe)) {
		op := p.curToken.Literal
		p.nextToken()
		right := p.parseAdditive()
		if p.failed() {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: MakeSpan(left.Span().Start, right.Span().End),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for !p.failed() && (p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus)) {
		op := p.curToken.Literal
		p.nextToken()
		right := p.parseMultiplicative()
		if p.failed() {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: MakeSpan(left.Span().Start, right.Span().End),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for !p.failed() && (p.curTokenIs(TokenStar) || p.curTokenIs(TokenSlash) ||
		p.curTokenIs(TokenPercent)) {
		op := p.curToken.Literal
		p.nextToken()
		right := p.parseUnary()
		if p.failed() {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: MakeSpan(left.Span().Start, right.Span().End),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.curTokenIs(TokenBang) || p.curTokenIs(TokenMinus) {
		start := p.curToken.Pos
		op := p.curToken.Literal
		p.nextToken()
		operand := p.parseUnary()
		if p.failed() {
			return nil
		}
		return &UnaryExpr{
			SpanVal: MakeSpan(start, operand.Span().End),
			Op:      op,
			Operand: operand,
		}
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary expression followed by any number of call
// and index suffixes.
func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()

	for !p.failed() {
		switch {
		case p.curTokenIs(TokenLParen):
			expr = p.parseCall(expr)
		case p.curTokenIs(TokenLBracket):
			expr = p.parseIndex(expr)
		default:
			return expr
		}
	}
	return nil
}

func (p *Parser) parseCall(callee Expr) Expr {
	open := p.curToken.Pos
	p.nextToken() // consume (

	var args []Expr
	for !p.curTokenIs(TokenRParen) {
		if p.curTokenIs(TokenEOF) {
			p.fail(")", &open)
			return nil
		}
		arg := p.parseExpression()
		if p.failed() {
			return nil
		}
		args = append(args, arg)

		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else if !p.curTokenIs(TokenRParen) {
			p.fail(") or ,", &open)
			return nil
		}
	}
	end := p.curToken.Pos
	p.nextToken() // consume )

	return &CallExpr{
		SpanVal: MakeSpan(callee.Span().Start, end),
		Callee:  callee,
		Args:    args,
	}
}

func (p *Parser) parseIndex(target Expr) Expr {
	open := p.curToken.Pos
	p.nextToken() // consume [

	index := p.parseExpression()
	if p.failed() {
		return nil
	}

	if p.curTokenIs(TokenEOF) {
		p.fail("]", &open)
		return nil
	}
	end := p.curToken.Pos
	if !p.expect(TokenRBracket) {
		return nil
	}

	return &IndexExpr{
		SpanVal: MakeSpan(target.Span().Start, end),
		Target:  target,
		Index:   index,
	}
}

func (p *Parser) parsePrimary() Expr {
	pos := p.curToken.Pos

	switch p.curToken.Type {
	case TokenInt:
		value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			p.fail("integer literal", nil)
			return nil
		}
		end := p.curToken.Pos
		p.nextToken()
		return &IntLiteral{SpanVal: MakeSpan(pos, end), Value: value}

	case TokenFloat:
		value, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			p.fail("float literal", nil)
			return nil
		}
		end := p.curToken.Pos
		p.nextToken()
		return &FloatLiteral{SpanVal: MakeSpan(pos, end), Value: value}

	case TokenString:
		value := p.curToken.Literal
		end := p.curToken.Pos
		p.nextToken()
		return &StringLiteral{SpanVal: MakeSpan(pos, end), Value: value}

	case TokenTrue, TokenFalse:
		value := p.curTokenIs(TokenTrue)
		end := p.curToken.Pos
		p.nextToken()
		return &BoolLiteral{SpanVal: MakeSpan(pos, end), Value: value}

	case TokenIdentifier:
		name := p.curToken.Literal
		end := p.curToken.Pos
		p.nextToken()
		return &Ident{SpanVal: MakeSpan(pos, end), Name: name}

	case TokenLParen:
		open := p.curToken.Pos
		p.nextToken() // consume (
		expr := p.parseExpression()
		if p.failed() {
			return nil
		}
		if p.curTokenIs(TokenEOF) {
			p.fail(")", &open)
			return nil
		}
		if !p.expect(TokenRParen) {
			return nil
		}
		return expr

	case TokenLBracket:
		return p.parseArrayLiteral()

	default:
		p.fail("expression", nil)
		return nil
	}
}

func (p *Parser) parseArrayLiteral() Expr {
	open := p.curToken.Pos
	p.nextToken() // consume [

	var elements []Expr
	for !p.curTokenIs(TokenRBracket) {
		if p.curTokenIs(TokenEOF) {
			p.fail("]", &open)
			return nil
		}
		elem := p.parseExpression()
		if p.failed() {
			return nil
		}
		elements = append(elements, elem)

		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else if !p.curTokenIs(TokenRBracket) {
			p.fail("] or ,", &open)
			return nil
		}
	}
	end := p.curToken.Pos
	p.nextToken() // consume ]

	return &ArrayLiteral{
		SpanVal:  MakeSpan(open, end),
		Elements: elements,
	}
}
