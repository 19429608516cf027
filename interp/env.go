package interp

// ---------------------------------------------------------------------------
// Environments: lexical scope chain
// ---------------------------------------------------------------------------

type binding struct {
	value Value
	konst bool
}

// Env is a lexical scope frame with a parent link. Lookups walk parent-ward
// until found or the chain is exhausted. The root frame holds builtins.
type Env struct {
	parent *Env
	table  map[string]binding
}

// NewEnv creates a new scope frame with the given parent (which may be nil).
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, table: make(map[string]binding)}
}

// Parent returns the enclosing scope, or nil at the root.
func (e *Env) Parent() *Env { return e.parent }

// Define binds name in the current frame, shadowing any outer binding.
func (e *Env) Define(name string, v Value) {
	e.table[name] = binding{value: v}
}

// DefineConst binds name in the current frame and marks it immutable.
func (e *Env) DefineConst(name string, v Value) {
	e.table[name] = binding{value: v, konst: true}
}

// Set updates the nearest existing binding of name. It reports whether a
// binding was found and whether that binding is const (in which case the
// value is left unchanged).
func (e *Env) Set(name string, v Value) (found, konst bool) {
	for scope := e; scope != nil; scope = scope.parent {
		if b, ok := scope.table[name]; ok {
			if b.konst {
				return true, true
			}
			scope.table[name] = binding{value: v}
			return true, false
		}
	}
	return false, false
}

// Get retrieves the nearest visible binding for name.
func (e *Env) Get(name string) (Value, bool) {
	for scope := e; scope != nil; scope = scope.parent {
		if b, ok := scope.table[name]; ok {
			return b.value, true
		}
	}
	return Value{}, false
}

// DefinedLocally reports whether name is bound in this frame itself, not in
// an ancestor.
func (e *Env) DefinedLocally(name string) bool {
	_, ok := e.table[name]
	return ok
}
