package bytecode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aura-lang/aura/compiler"
	"github.com/aura-lang/aura/interp"
)

func compile(t *testing.T, src string) *Container {
	t.Helper()
	c, err := CompileSource(src, "test.aura")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return c
}

func roundTrip(t *testing.T, src string) *Container {
	t.Helper()
	raw, err := compile(t, src).Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	loaded, err := Load(raw)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return loaded
}

func execVM(t *testing.T, src string, caps interp.Capabilities) interp.ExecutionResult {
	t.Helper()
	if caps == nil {
		caps = interp.NewFixtureCaps()
	}
	return NewVM(roundTrip(t, src), caps, interp.Options{}).Execute(context.Background())
}

func execTree(t *testing.T, src string, caps interp.Capabilities) interp.ExecutionResult {
	t.Helper()
	if caps == nil {
		caps = interp.NewFixtureCaps()
	}
	prog, err := compiler.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	return interp.New(caps, interp.Options{}).Execute(context.Background(), prog)
}

// Compiled execution must agree with direct evaluation on output, traits
// and failure kind.
func TestCompiledMatchesEvaluated(t *testing.T) {
	sources := []string{
		"print(1 + 2 * 3, (1 + 2) * 3, 7 / 2, 7.0 / 2, 10 % 3)",
		`print("a" + "b", [1] + [2, 3])`,
		"let x = 1\nx = x + 41\nprint(x)",
		"const c = 2\nprint(c * c)",
		`
let total = 0
for n in [1, 2, 3, 4, 5] {
  if n == 2 { continue }
  if n == 5 { break }
  total = total + n
}
print(total)`,
		`
let i = 0
while i < 5 {
  i = i + 1
  if i == 3 { break }
}
print(i)`,
		`
fn fib(n) {
  if n < 2 { return n }
  return fib(n - 1) + fib(n - 2)
}
print(fib(12))`,
		`
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
print(a(), a(), b())`,
		`for ch in "hey" { print(ch) }`,
		"let a = [10, 20]\na[1] = 99\nprint(a[0], a[1], len(a))",
		"personality { warmth: 0.8, humor: -0.25 }\nprint(\"set\")",
		"print(range(4), min(5, 2), max(1.5, 7), str(12) + \"!\")",
		`
if 1 > 2 { print("a") }
else if 2 > 2 { print("b") }
else { print("c") }`,
		`
fn boom() {
  print("boom")
  return true
}
print(false && boom(), true || boom())`,
		`
fn first(arr) {
  for x in arr { return x }
  return 0
}
for y in [10, 20] {
  print(first([1, 2, 3]))
  print(y)
}`,
		"if false { return 1 }\nprint(\"ok\")",
		"return 5",
		"print(1 / 0)",
		"print(missing)",
		"const k = 1\nk = 2",
		"let a = [1]\nprint(a[7])",
	}

	for _, src := range sources {
		want := execTree(t, src, nil)
		got := execVM(t, src, nil)

		if got.Output != want.Output {
			t.Errorf("source %q:\n vm output   %q\n tree output %q", src, got.Output, want.Output)
		}
		if (got.Err == nil) != (want.Err == nil) {
			t.Errorf("source %q: vm err %v, tree err %v", src, got.Err, want.Err)
			continue
		}
		if got.Err != nil {
			gk := got.Err.(*interp.RuntimeError).Kind
			wk := want.Err.(*interp.RuntimeError).Kind
			if gk != wk {
				t.Errorf("source %q: vm err kind %v, tree err kind %v", src, gk, wk)
			}
		}
		if len(got.Traits) != len(want.Traits) {
			t.Errorf("source %q: vm traits %v, tree traits %v", src, got.Traits, want.Traits)
		}
		for name, v := range want.Traits {
			if got.Traits[name] != v {
				t.Errorf("source %q: trait %s = %g, want %g", src, name, got.Traits[name], v)
			}
		}
	}
}

// A return from inside a loop must close the callee's open iterators, or
// the enclosing loop's next-element fetch reads from the wrong one and the
// loop never terminates. The deadline turns a regression into a failure
// instead of a hang.
func TestReturnInsideLoopUnwindsIterators(t *testing.T) {
	prog := roundTrip(t, `
fn firstPair(rows) {
  for row in rows {
    for cell in row { return cell }
  }
  return -1
}
for round in [10, 20, 30] {
  print(firstPair([[1, 2], [3]]))
  print(round)
}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result := NewVM(prog, nil, interp.Options{}).Execute(ctx)
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if want := "1\n10\n1\n20\n1\n30\n"; result.Output != want {
		t.Errorf("output = %q, want %q", result.Output, want)
	}
}

// Dead top-level return is valid; a reached one fails at run time like it
// does under direct evaluation.
func TestTopLevelReturn(t *testing.T) {
	result := execVM(t, "if false { return 1 }\nprint(\"done\")", nil)
	if result.Err != nil {
		t.Fatalf("dead return: %v", result.Err)
	}
	if result.Output != "done\n" {
		t.Errorf("output = %q", result.Output)
	}

	result = execVM(t, "print(\"before\")\nreturn 1", nil)
	re, ok := result.Err.(*interp.RuntimeError)
	if !ok || re.Kind != interp.ErrTopLevelReturn {
		t.Fatalf("error = %v, want top-level return error", result.Err)
	}
	if result.Output != "before\n" {
		t.Errorf("output before failure = %q", result.Output)
	}
}

func TestDomainCallsOnVM(t *testing.T) {
	caps := interp.NewFixtureCaps()
	caps.Facts["stars"] = []interp.Fact{{Title: "Sun", Summary: "nearest", Confidence: 1, Verified: true}}
	caps.ListenFeed = []string{"ok"}

	result := execVM(t, `
say("hello", "warm", 1.1)
let facts = knowledge("stars")
print(fact_title(facts[0]))
print(listen(2))`, caps)
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if result.Output != "Sun\nok\n" {
		t.Errorf("output = %q", result.Output)
	}
	if len(caps.Spoken) != 1 || caps.Spoken[0] != "hello" {
		t.Errorf("spoken = %v", caps.Spoken)
	}
}

func TestDomainCallsLowerToReservedBand(t *testing.T) {
	c := compile(t, `say("hi")
let facts = knowledge("q")
listen(1)`)
	for _, op := range []Opcode{OpSay, OpKnowledge, OpListen} {
		if !bytes.Contains(c.Code, []byte{byte(op)}) {
			t.Errorf("code stream lacks %v", op)
		}
	}

	// A user declaration shadows the capability and compiles as a plain
	// call.
	c = compile(t, `
fn say(text) { return text }
say("hi")`)
	count := 0
	for ip := 0; ip < len(c.Code); {
		op := Opcode(c.Code[ip])
		if op == OpSay {
			count++
		}
		ip += op.InstructionLen()
	}
	if count != 0 {
		t.Error("shadowed say still lowered to the domain band")
	}
}

func TestConstantPoolDedup(t *testing.T) {
	c := compile(t, `
let a = "greeting"
let b = "greeting"
print("greeting", 7, 7, 7.0)`)

	seen := make(map[Constant]int)
	for _, k := range c.Constants {
		seen[k]++
		if seen[k] > 1 {
			t.Errorf("constant %v pooled twice", k)
		}
	}
	// The int 7 and the float 7.0 stay distinct entries.
	if _, ok := seen[IntConstant(7)]; !ok {
		t.Error("int 7 missing from pool")
	}
	if _, ok := seen[FloatConstant(7)]; !ok {
		t.Error("float 7.0 missing from pool")
	}
	if n := seen[StringConstant("greeting")]; n != 1 {
		t.Errorf("string pooled %d times", n)
	}
}

func TestSameScopeRedeclarationFails(t *testing.T) {
	for _, src := range []string{
		"let x = 1\nlet x = 2",
		"const x = 1\nlet x = 2",
		"fn f(a, a) { return a }",
		"fn g() { let y = 1\nlet y = 2 }",
	} {
		_, err := CompileSource(src, "test.aura")
		var cerr *CompileError
		if !errors.As(err, &cerr) {
			t.Errorf("%q: err = %v, want CompileError", src, err)
		}
	}

	// Shadowing in a nested scope is fine.
	if _, err := CompileSource("let x = 1\nif true { let x = 2 }", "test.aura"); err != nil {
		t.Errorf("shadowing rejected: %v", err)
	}
}

func TestHeaderLayout(t *testing.T) {
	raw, err := compile(t, "print(1)").Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) < HeaderSize {
		t.Fatalf("serialized %d bytes", len(raw))
	}
	if string(raw[0:4]) != Magic {
		t.Errorf("magic = %q", raw[0:4])
	}
	if raw[4] != FormatMajor || raw[5] != FormatMinor || raw[6] != FormatPatch {
		t.Errorf("version = %d.%d.%d", raw[4], raw[5], raw[6])
	}
	codeSize := binary.LittleEndian.Uint32(raw[16:20])
	dataSize := binary.LittleEndian.Uint32(raw[20:24])
	symSize := binary.LittleEndian.Uint32(raw[24:28])
	if int(HeaderSize+codeSize+dataSize+symSize) > len(raw) {
		t.Error("declared sections exceed file length")
	}
	for _, b := range raw[28:32] {
		if b != 0 {
			t.Error("reserved bytes not zero")
		}
	}
}

// Identical source compiles to identical bytes except the build timestamp.
func TestDeterministicOutput(t *testing.T) {
	src := `
fn f(x) { return x * 2 }
personality { warmth: 0.5 }
print(f(21), "done")`

	a, err := compile(t, src).Serialize()
	if err != nil {
		t.Fatal(err)
	}
	b, err := compile(t, src).Serialize()
	if err != nil {
		t.Fatal(err)
	}
	for i := 8; i < 16; i++ {
		a[i], b[i] = 0, 0
	}
	if !bytes.Equal(a, b) {
		t.Error("output differs between identical compilations")
	}
}

func TestLoaderValidation(t *testing.T) {
	raw, err := compile(t, "let x = 1\nprint(x + 1)").Serialize()
	if err != nil {
		t.Fatal(err)
	}

	mutate := func(f func(b []byte)) []byte {
		b := make([]byte, len(raw))
		copy(b, raw)
		f(b)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"short header", raw[:10], ErrTruncated},
		{"bad magic", mutate(func(b []byte) { copy(b, "NOPE") }), ErrBadMagic},
		{"future version", mutate(func(b []byte) { b[4] = 99 }), ErrUnsupportedVersion},
		{"oversized code section", mutate(func(b []byte) {
			binary.LittleEndian.PutUint32(b[16:20], 1<<30)
		}), ErrSectionSize},
		{"truncated sections", raw[:HeaderSize+2], ErrSectionSize},
		{"truncated metadata", raw[:len(raw)-5], ErrCorruptMetadata},
		{"unknown opcode", mutate(func(b []byte) { b[HeaderSize] = 0xFF }), ErrCorruptCode},
	}
	for _, tt := range tests {
		_, err := Load(tt.data)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	if _, err := Load(raw); err != nil {
		t.Errorf("pristine program rejected: %v", err)
	}
}

func TestSymbolTableCarriesFunctionWindows(t *testing.T) {
	c := roundTrip(t, `
fn add(a, b) { return a + b }
print(add(1, 2))`)

	var fn *Symbol
	for i := range c.Symbols {
		if c.Symbols[i].Name == "add" {
			fn = &c.Symbols[i]
			break
		}
	}
	if fn == nil {
		t.Fatal("no symbol for add")
	}
	if fn.Kind != SymFunction {
		t.Errorf("kind = %v", fn.Kind)
	}
	if len(fn.Params) != 2 {
		t.Fatalf("params = %v", fn.Params)
	}
	if c.Symbols[fn.Params[0]].Name != "a" || c.Symbols[fn.Params[1]].Name != "b" {
		t.Errorf("param names = %q, %q", c.Symbols[fn.Params[0]].Name, c.Symbols[fn.Params[1]].Name)
	}
	if fn.CodeLen == 0 || int(fn.CodeOffset+fn.CodeLen) > len(c.Code) {
		t.Errorf("body window [%d:%d] outside code", fn.CodeOffset, fn.CodeOffset+fn.CodeLen)
	}
}

func TestMetadataSurvivesRoundTrip(t *testing.T) {
	c := roundTrip(t, "print(1)")
	if c.Meta.SourceFile != "test.aura" {
		t.Errorf("source file = %q", c.Meta.SourceFile)
	}
	if c.Meta.CompilerVersion != CompilerVersion {
		t.Errorf("compiler version = %q", c.Meta.CompilerVersion)
	}
}

func TestVMRecursionCeiling(t *testing.T) {
	prog := roundTrip(t, "fn loop() { return loop() }\nloop()")
	result := NewVM(prog, nil, interp.Options{MaxDepth: 25}).Execute(context.Background())
	re, ok := result.Err.(*interp.RuntimeError)
	if !ok || re.Kind != interp.ErrStackOverflow {
		t.Fatalf("error = %v, want StackOverflowError", result.Err)
	}
}

func TestOpcodeMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("opcode 0x%02X has no name", byte(op))
		}
		if op.InstructionLen() != 1+info.OperandLen {
			t.Errorf("%s: instruction length mismatch", info.Name)
		}
	}
	if !OpSay.IsDomain() || OpAdd.IsDomain() {
		t.Error("domain band misclassified")
	}
	unknown := GetOpcodeInfo(Opcode(0xFF))
	if !strings.Contains(unknown.Name, "UNKNOWN") {
		t.Errorf("unknown opcode name = %q", unknown.Name)
	}
}

func TestDisassembleListsEverything(t *testing.T) {
	listing := Disassemble(roundTrip(t, `
fn greet(name) { say("hi " + name) }
greet("you")`))
	for _, want := range []string{"constants:", "symbols:", "main:", "fn greet:", "MAKE_FUNC", "SAY", "\"hi \""} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing lacks %q:\n%s", want, listing)
		}
	}
}
