// Package bytecode defines the compiled form of aura programs: the opcode
// set, the binary container that carries code, constants, symbols and
// metadata, a three-pass compiler lowering parsed programs into it, a
// validating loader, and a stack machine that executes loaded programs with
// the same semantics as the tree-walking evaluator.
//
// The container starts with a fixed 32-byte little-endian header whose
// magic and version are checked before anything else. Section sizes are
// declared in the header and validated against the file length, so a
// damaged file is rejected before a single opcode runs. Compilation is
// deterministic: the same source yields byte-identical output except for
// the build timestamp in the header.
package bytecode
