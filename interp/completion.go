package interp

// ---------------------------------------------------------------------------
// Completions: non-local exits as explicit values
// ---------------------------------------------------------------------------

// CompletionKind tags the outcome of evaluating a statement or block.
type CompletionKind int

const (
	// CompNormal is ordinary sequential completion carrying a value.
	CompNormal CompletionKind = iota
	// CompReturn is an in-flight return; it unwinds to the enclosing call.
	CompReturn
	// CompBreak unwinds to the enclosing loop, which absorbs it.
	CompBreak
	// CompContinue unwinds to the enclosing loop, which resumes iteration.
	CompContinue
)

// Completion is the result of evaluating a statement. Block evaluation
// stops at the first non-normal completion and propagates it unchanged;
// loops intercept Break and Continue so they never escape the loop that
// owns them.
type Completion struct {
	Kind  CompletionKind
	Value Value
}

func normal(v Value) Completion    { return Completion{Kind: CompNormal, Value: v} }
func returning(v Value) Completion { return Completion{Kind: CompReturn, Value: v} }

var breakCompletion = Completion{Kind: CompBreak}
var continueCompletion = Completion{Kind: CompContinue}
