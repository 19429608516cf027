package compiler

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func mustParse(t *testing.T, input string) *Program {
	t.Helper()
	prog, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return prog
}

func parseExpr(t *testing.T, input string) Expr {
	t.Helper()
	prog := mustParse(t, input)
	if len(prog.Statements) != 1 {
		t.Fatalf("Parse(%q): %d statements, want 1", input, len(prog.Statements))
	}
	es, ok := prog.Statements[0].(*ExprStmt)
	if !ok {
		t.Fatalf("Parse(%q): statement is %T, want *ExprStmt", input, prog.Statements[0])
	}
	return es.Expr
}

func TestPrecedence(t *testing.T) {
	// Render the parse tree with full parenthesization and compare.
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 * 2 + 3", "((1 * 2) + 3)"},
		{"1 + 2 - 3", "((1 + 2) - 3)"},
		{"10 / 2 % 3", "((10 / 2) % 3)"},
		{"-a * b", "((-a) * b)"},
		{"!a && b", "((!a) && b)"},
		{"a < b == c", "((a < b) == c)"},
		{"a == b && c != d", "((a == b) && (c != d))"},
		{"a && b || c && d", "((a && b) || (c && d))"},
		{"a + b < c * d", "((a + b) < (c * d))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"a[0] + f(x) * 2", "((a[0]) + ((f(x)) * 2))"},
		{"x = y = 1", "(x = (y = 1))"},
	}
	for _, tt := range tests {
		got := renderExpr(parseExpr(t, tt.input))
		if got != tt.want {
			t.Errorf("%q parsed as %s, want %s", tt.input, got, tt.want)
		}
	}
}

func renderExpr(e Expr) string {
	switch n := e.(type) {
	case *IntLiteral:
		return strconv.FormatInt(n.Value, 10)
	case *FloatLiteral:
		return "float"
	case *BoolLiteral:
		if n.Value {
			return "true"
		}
		return "false"
	case *StringLiteral:
		return "\"" + n.Value + "\""
	case *Ident:
		return n.Name
	case *BinaryExpr:
		return "(" + renderExpr(n.Left) + " " + n.Op + " " + renderExpr(n.Right) + ")"
	case *UnaryExpr:
		return "(" + n.Op + renderExpr(n.Operand) + ")"
	case *AssignExpr:
		return "(" + renderExpr(n.Target) + " = " + renderExpr(n.Value) + ")"
	case *CallExpr:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = renderExpr(a)
		}
		return "(" + renderExpr(n.Callee) + "(" + strings.Join(args, ", ") + "))"
	case *IndexExpr:
		return "(" + renderExpr(n.Target) + "[" + renderExpr(n.Index) + "])"
	}
	return "?"
}

func TestLetConstAndOptionalSemicolons(t *testing.T) {
	prog := mustParse(t, "let a = 1; const b = 2\nlet c = a + b;")
	if len(prog.Statements) != 3 {
		t.Fatalf("got %d statements, want 3", len(prog.Statements))
	}
	if ls, ok := prog.Statements[0].(*LetStmt); !ok || ls.Name != "a" {
		t.Errorf("statement 0 = %#v", prog.Statements[0])
	}
	if cs, ok := prog.Statements[1].(*ConstStmt); !ok || cs.Name != "b" {
		t.Errorf("statement 1 = %#v", prog.Statements[1])
	}
}

func TestFuncDecl(t *testing.T) {
	prog := mustParse(t, "fn add(a, b) { return a + b }")
	fd, ok := prog.Statements[0].(*FuncDecl)
	if !ok {
		t.Fatalf("statement is %T", prog.Statements[0])
	}
	if fd.Name != "add" || len(fd.Params) != 2 || fd.Params[0] != "a" || fd.Params[1] != "b" {
		t.Errorf("decl = %#v", fd)
	}
	if len(fd.Body.Statements) != 1 {
		t.Errorf("body has %d statements", len(fd.Body.Statements))
	}
	ret, ok := fd.Body.Statements[0].(*ReturnStmt)
	if !ok || ret.Value == nil {
		t.Errorf("body statement = %#v", fd.Body.Statements[0])
	}
}

func TestBareReturn(t *testing.T) {
	prog := mustParse(t, "fn f() { return }\nfn g() { return; }")
	for i := 0; i < 2; i++ {
		fd := prog.Statements[i].(*FuncDecl)
		ret := fd.Body.Statements[0].(*ReturnStmt)
		if ret.Value != nil {
			t.Errorf("fn %d: bare return carried a value: %#v", i, ret.Value)
		}
	}
}

func TestElseIfChain(t *testing.T) {
	prog := mustParse(t, `
if a { x = 1 }
else if b { x = 2 }
else { x = 3 }`)
	top, ok := prog.Statements[0].(*IfStmt)
	if !ok {
		t.Fatalf("statement is %T", prog.Statements[0])
	}
	mid, ok := top.Else.(*IfStmt)
	if !ok {
		t.Fatalf("else branch is %T, want *IfStmt", top.Else)
	}
	if _, ok := mid.Else.(*BlockStmt); !ok {
		t.Fatalf("final else is %T, want *BlockStmt", mid.Else)
	}
}

func TestLoops(t *testing.T) {
	prog := mustParse(t, `
for item in items { print(item) }
while x < 10 { x = x + 1; if x == 5 { break } else { continue } }`)
	fs, ok := prog.Statements[0].(*ForStmt)
	if !ok || fs.Var != "item" {
		t.Fatalf("statement 0 = %#v", prog.Statements[0])
	}
	ws, ok := prog.Statements[1].(*WhileStmt)
	if !ok {
		t.Fatalf("statement 1 = %T", prog.Statements[1])
	}
	if len(ws.Body.Statements) != 2 {
		t.Errorf("while body has %d statements", len(ws.Body.Statements))
	}
}

func TestPersonalityBlock(t *testing.T) {
	prog := mustParse(t, "personality { warmth: 0.8, humor: 0.5, formality: -0.2 }")
	pb, ok := prog.Statements[0].(*PersonalityBlock)
	if !ok {
		t.Fatalf("statement is %T", prog.Statements[0])
	}
	if len(pb.Traits) != 3 {
		t.Fatalf("got %d traits, want 3", len(pb.Traits))
	}
	// Source order is preserved.
	names := []string{"warmth", "humor", "formality"}
	for i, want := range names {
		if pb.Traits[i].Name != want {
			t.Errorf("trait %d = %s, want %s", i, pb.Traits[i].Name, want)
		}
	}
	if v, ok := pb.Trait("formality"); !ok || v != -0.2 {
		t.Errorf("formality = %v, %v", v, ok)
	}
	if _, ok := pb.Trait("missing"); ok {
		t.Error("lookup of absent trait succeeded")
	}
}

func TestArrayLiteralAndIndex(t *testing.T) {
	e := parseExpr(t, `[1, "two", [3]][0]`)
	ix, ok := e.(*IndexExpr)
	if !ok {
		t.Fatalf("expr is %T", e)
	}
	arr, ok := ix.Target.(*ArrayLiteral)
	if !ok || len(arr.Elements) != 3 {
		t.Fatalf("target = %#v", ix.Target)
	}
	if _, ok := arr.Elements[2].(*ArrayLiteral); !ok {
		t.Errorf("element 2 = %T", arr.Elements[2])
	}
}

func TestInvalidAssignmentTarget(t *testing.T) {
	for _, input := range []string{"1 = 2", "f() = 3", "a + b = c"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
		}
	}
}

func TestUnclosedBlockReportsOpener(t *testing.T) {
	_, err := Parse("fn f() {\n  let x = 1\n")
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error is %T: %v", err, err)
	}
	if perr.Opener == nil {
		t.Fatal("no opener position recorded")
	}
	if perr.Opener.Line != 1 || perr.Opener.Column != 8 {
		t.Errorf("opener at %v, want 1:8", *perr.Opener)
	}
	if !strings.Contains(err.Error(), "unclosed block") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestLexErrorSurfacesFromParse(t *testing.T) {
	_, err := Parse(`let s = "unfinished`)
	if err == nil {
		t.Fatal("expected error")
	}
	var lerr *LexError
	if !errors.As(err, &lerr) {
		t.Fatalf("error is %T: %v", err, err)
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"let = 1",
		"let x 1",
		"fn (a) {}",
		"fn f(a b) {}",
		"if x let y = 1",
		"for x items {}",
		"personality { warmth 0.8 }",
		"personality { warmth: high }",
		"a +",
		"(1 + 2",
	}
	for _, input := range inputs {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
		}
	}
}

func TestSpansCoverStatements(t *testing.T) {
	input := "let x = 1 + 2"
	prog := mustParse(t, input)
	sp := prog.Statements[0].Span()
	if sp.Start.Offset != 0 {
		t.Errorf("span starts at %d, want 0", sp.Start.Offset)
	}
	if sp.End.Offset < sp.Start.Offset {
		t.Errorf("span ends before it starts: %+v", sp)
	}
}
