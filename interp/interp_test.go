package interp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aura-lang/aura/compiler"
)

func run(t *testing.T, src string) ExecutionResult {
	t.Helper()
	return runWith(t, src, NewFixtureCaps(), Options{})
}

func runWith(t *testing.T, src string, caps Capabilities, opts Options) ExecutionResult {
	t.Helper()
	prog, err := compiler.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return New(caps, opts).Execute(context.Background(), prog)
}

func wantOutput(t *testing.T, src, want string) {
	t.Helper()
	result := run(t, src)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Output != want {
		t.Errorf("output = %q, want %q", result.Output, want)
	}
}

func wantError(t *testing.T, src string, kind ErrorKind) *RuntimeError {
	t.Helper()
	result := run(t, src)
	if result.Err == nil {
		t.Fatalf("no error, output %q", result.Output)
	}
	re, ok := result.Err.(*RuntimeError)
	if !ok {
		t.Fatalf("error is %T: %v", result.Err, result.Err)
	}
	if re.Kind != kind {
		t.Fatalf("error kind = %v, want %v (%v)", re.Kind, kind, re)
	}
	return re
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"print(1 + 2 * 3)", "7\n"},
		{"print((1 + 2) * 3)", "9\n"},
		{"print(7 / 2)", "3\n"}, // int division truncates
		{"print(7.0 / 2)", "3.5\n"},
		{"print(1 + 0.5)", "1.5\n"},
		{"print(10 % 3)", "1\n"},
		{"print(-5 + 3)", "-2\n"},
		{"print(\"ab\" + \"cd\")", "abcd\n"},
		{"print([1, 2] + [3])", "[1, 2, 3]\n"},
		{"print(2 < 3, 2 <= 2, \"a\" < \"b\")", "true true true\n"},
		{"print(1 == 1.0, 1 != 2)", "true true\n"},
		{"print(!true, !0)", "false true\n"},
	}
	for _, tt := range tests {
		wantOutput(t, tt.src, tt.want)
	}
}

func TestArithmeticErrors(t *testing.T) {
	wantError(t, "print(1 / 0)", ErrArithmetic)
	wantError(t, "print(1.0 / 0)", ErrArithmetic)
	wantError(t, "print(5 % 0)", ErrArithmetic)
	wantError(t, `print(1 + "x")`, ErrType)
	wantError(t, "print(-\"x\")", ErrType)
}

func TestVariables(t *testing.T) {
	wantOutput(t, "let x = 1\nx = x + 41\nprint(x)", "42\n")
	wantOutput(t, "const c = 10\nprint(c * 2)", "20\n")

	wantError(t, "const c = 1\nc = 2", ErrConstAssign)
	wantError(t, "print(nope)", ErrUnresolvedName)
	wantError(t, "missing = 5", ErrUnresolvedName)
}

func TestScopes(t *testing.T) {
	// Inner let shadows; the outer binding is untouched.
	wantOutput(t, `
let x = 1
if true {
  let x = 2
  print(x)
}
print(x)`, "2\n1\n")

	// Assignment without let reaches the outer binding.
	wantOutput(t, `
let x = 1
if true { x = 2 }
print(x)`, "2\n")

	// Block-local names do not leak.
	wantError(t, "if true { let y = 1 }\nprint(y)", ErrUnresolvedName)
}

func TestFunctionScopeIsParentedToDefinitionSite(t *testing.T) {
	// The callee must not see the caller's locals.
	wantError(t, `
fn f() { return hidden }
fn g() {
  let hidden = 99
  return f()
}
print(g())`, ErrUnresolvedName)
}

func TestClosures(t *testing.T) {
	wantOutput(t, `
fn counter() {
  let n = 0
  fn next() {
    n = n + 1
    return n
  }
  return next
}
let a = counter()
let b = counter()
print(a())
print(a())
print(b())`, "1\n2\n1\n")
}

func TestRecursion(t *testing.T) {
	wantOutput(t, `
fn fib(n) {
  if n < 2 { return n }
  return fib(n - 1) + fib(n - 2)
}
print(fib(10))`, "55\n")
}

func TestControlFlow(t *testing.T) {
	wantOutput(t, `
let total = 0
for n in [1, 2, 3, 4, 5] {
  if n == 2 { continue }
  if n == 5 { break }
  total = total + n
}
print(total)`, "8\n")

	wantOutput(t, `
let i = 0
while true {
  i = i + 1
  if i >= 3 { break }
}
print(i)`, "3\n")

	wantOutput(t, `
if 1 > 2 { print("a") }
else if 2 > 2 { print("b") }
else { print("c") }`, "c\n")

	// break binds to the innermost loop only
	wantOutput(t, `
let hits = 0
for a in [1, 2] {
  for b in [1, 2, 3] {
    if b == 2 { break }
    hits = hits + 1
  }
}
print(hits)`, "2\n")

	wantOutput(t, `for ch in "abc" { print(ch) }`, "a\nb\nc\n")
}

func TestReturnSemantics(t *testing.T) {
	// Fall-through returns the void value, which prints as nil.
	wantOutput(t, "fn f() { let x = 1 }\nprint(f())", "nil\n")

	wantError(t, "return 1", ErrTopLevelReturn)
	wantError(t, "break", ErrLoopControl)
	wantError(t, "continue", ErrLoopControl)

	// return unwinds out of nested loops inside a function.
	wantOutput(t, `
fn find(items, target) {
  for item in items {
    if item == target { return true }
  }
  return false
}
print(find([1, 2, 3], 2))
print(find([1, 2, 3], 9))`, "true\nfalse\n")
}

func TestArityMismatch(t *testing.T) {
	wantError(t, "fn f(a, b) { return a }\nf(1)", ErrType)
	wantError(t, "let x = 5\nx(1)", ErrType)
}

func TestIndexing(t *testing.T) {
	wantOutput(t, `
let a = [10, 20, 30]
a[1] = 99
print(a[0], a[1], "abc"[2])`, "10 99 c\n")

	wantError(t, "let a = [1]\nprint(a[5])", ErrIndex)
	wantError(t, "let a = [1]\nprint(a[-1])", ErrIndex)
	wantError(t, `print("ab"[9])`, ErrIndex)
	wantError(t, "let a = [1]\nprint(a[\"x\"])", ErrType)
	wantError(t, "print(5[0])", ErrType)
}

func TestArraysAreSharedReferences(t *testing.T) {
	wantOutput(t, `
let a = [1]
let b = a
push(b, 2)
print(len(a))`, "2\n")
}

func TestRecursionCeiling(t *testing.T) {
	src := "fn loop() { return loop() }\nloop()"
	prog, err := compiler.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	result := New(NewFixtureCaps(), Options{MaxDepth: 25}).Execute(context.Background(), prog)
	re, ok := result.Err.(*RuntimeError)
	if !ok || re.Kind != ErrStackOverflow {
		t.Fatalf("error = %v, want StackOverflowError", result.Err)
	}
}

func TestOutputTruncation(t *testing.T) {
	prog, err := compiler.Parse(`
let i = 0
while i < 100 {
  print("0123456789")
  i = i + 1
}`)
	if err != nil {
		t.Fatal(err)
	}
	result := New(NewFixtureCaps(), Options{OutputLimit: 64}).Execute(context.Background(), prog)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if !result.Truncated {
		t.Error("result not marked truncated")
	}
	if len(result.Output) > 64 {
		t.Errorf("output length %d exceeds limit", len(result.Output))
	}
}

func TestPersonality(t *testing.T) {
	result := run(t, `
personality { warmth: 0.8, humor: 0.5 }
personality { warmth: 0.9, sparkle: 1.0 }`)
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	want := map[string]float64{"warmth": 0.9, "humor": 0.5, "sparkle": 1.0}
	if len(result.Traits) != len(want) {
		t.Fatalf("traits = %v", result.Traits)
	}
	for name, v := range want {
		if result.Traits[name] != v {
			t.Errorf("trait %s = %g, want %g", name, result.Traits[name], v)
		}
	}
}

func TestKnowledgeAndFactAccessors(t *testing.T) {
	caps := NewFixtureCaps()
	caps.Facts["rainbows"] = []Fact{
		{Title: "Refraction", Summary: "light bends", Confidence: 0.97, Verified: true},
		{Title: "Leprechauns", Summary: "gold at the end", Confidence: 0.01, Verified: false},
	}

	result := runWith(t, `
let facts = knowledge("rainbows")
print(len(facts))
for f in facts {
  if fact_verified(f) && fact_confidence(f) > 0.5 {
    print(fact_title(f), "-", fact_summary(f))
  }
}
print(len(knowledge("unknown topic")))`, caps, Options{})
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	want := "2\nRefraction - light bends\n0\n"
	if result.Output != want {
		t.Errorf("output = %q, want %q", result.Output, want)
	}
}

func TestSayAndListen(t *testing.T) {
	caps := NewFixtureCaps()
	caps.ListenFeed = []string{"hello there"}

	result := runWith(t, `
say("hi", "happy", 1.2)
say("bye")
let heard = listen(5)
print(heard)`, caps, Options{})
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if len(caps.Spoken) != 2 || caps.Spoken[0] != "hi" || caps.Spoken[1] != "bye" {
		t.Errorf("spoken = %v", caps.Spoken)
	}
	if result.Output != "hello there\n" {
		t.Errorf("output = %q", result.Output)
	}
}

func TestCapabilityTimeout(t *testing.T) {
	prog, err := compiler.Parse(`say("too late")`)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	result := New(NewFixtureCaps(), Options{}).Execute(ctx, prog)
	re, ok := result.Err.(*RuntimeError)
	if !ok || re.Kind != ErrTimeout {
		t.Fatalf("error = %v, want TimeoutError", result.Err)
	}
}

func TestOutputPreservedOnError(t *testing.T) {
	result := run(t, `
print("before")
print(1 / 0)`)
	if result.Err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(result.Output, "before") {
		t.Errorf("output %q lost the pre-failure print", result.Output)
	}
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"print(len([1, 2, 3]), len(\"abcd\"))", "3 4\n"},
		{"let a = [1]\npush(a, 2)\nprint(pop(a), len(a))", "2 1\n"},
		{"print(range(3))", "[0, 1, 2]\n"},
		{"print(range(2, 5))", "[2, 3, 4]\n"},
		{"print(str(42) + \"!\")", "42!\n"},
		{"print(abs(-3), abs(2.5))", "3 2.5\n"},
		{"print(min(3, 1, 2), max(3, 1, 2))", "1 3\n"},
		{"print(sqrt(9.0))", "3\n"},
		{"print(floor(2.7), floor(5))", "2 5\n"},
	}
	for _, tt := range tests {
		wantOutput(t, tt.src, tt.want)
	}

	wantError(t, "pop([])", ErrIndex)
	wantError(t, "len(5)", ErrType)
	wantError(t, "sqrt(-1)", ErrArithmetic)
	wantError(t, "fact_title(5)", ErrType)
}

func TestBuiltinsAreConst(t *testing.T) {
	wantError(t, "print = 5", ErrConstAssign)
	// A local let may shadow a builtin without touching it.
	wantOutput(t, `
fn f() {
  let len = 42
  return len
}
print(f())
print(len([1]))`, "42\n1\n")
}

func TestShortCircuit(t *testing.T) {
	// The right side must not evaluate when the left decides.
	wantOutput(t, `
fn boom() {
  print("boom")
  return true
}
print(false && boom())
print(true || boom())`, "false\ntrue\n")
}

func TestReplStyleIncrementalRuns(t *testing.T) {
	ip := New(NewFixtureCaps(), Options{})
	for _, src := range []string{"let x = 1", "x = x + 1", "print(x)"} {
		prog, err := compiler.Parse(src)
		if err != nil {
			t.Fatal(err)
		}
		if err := ip.Run(context.Background(), prog); err != nil {
			t.Fatalf("%q: %v", src, err)
		}
	}
	if got := ip.Output().String(); got != "2\n" {
		t.Errorf("output = %q, want %q", got, "2\n")
	}
}
