// Package ir implements the mid-level, explicit-control-flow intermediate
// representation a shading-language translator lowers parsed programs into:
// the identifier/metadata store, the per-function block trees, and the
// invariants both must satisfy between passes.
package ir

import (
	"github.com/sasha-s/go-deadlock"
)

// IR is one owned compile's object graph: IRMeta plus the per-function
// block trees, held separately so a pass can walk a function's blocks
// while still calling mutating metadata operations (§2, §5).
//
// mu guards the "traversals are not re-entrant on the same IR" and
// "exclusively mutated through a single mutable borrow during any given
// pass" invariants from §5: every pass entry point and codegen.Generate lock
// it for the duration of their run (the traverse helpers take blocks, not
// an IR, and do not lock), so concurrent or accidentally re-entrant use
// is caught rather than silently corrupting the flat tables.
type IR struct {
	Meta *Meta

	// FunctionEntries holds one optional entry block per function id.
	// A nil entry means the function has no body in this IR (never true
	// for a fully populated input, but legal mid-construction).
	FunctionEntries []*Block

	mu deadlock.Mutex
}

// New constructs an empty IR with a freshly reserved Meta.
func New(shaderType ShaderType) *IR {
	return &IR{Meta: NewMeta(shaderType)}
}

// Lock/Unlock expose the single-mutable-borrow guard to passes and
// traversals; Run is the convenience most callers want.
func (ir *IR) Lock()   { ir.mu.Lock() }
func (ir *IR) Unlock() { ir.mu.Unlock() }

// Run executes fn with the IR's re-entrancy guard held. Passes are
// expected to call this (or compile.Run, which calls it per pass) rather
// than mutating Meta/FunctionEntries unguarded.
func (ir *IR) Run(fn func(*IR)) {
	ir.Lock()
	defer ir.Unlock()
	fn(ir)
}

// EntryBlock returns the entry block for fn, growing FunctionEntries if
// necessary.
func (ir *IR) EntryBlock(fn FunctionId) *Block {
	for len(ir.FunctionEntries) <= int(fn) {
		ir.FunctionEntries = append(ir.FunctionEntries, nil)
	}
	return ir.FunctionEntries[fn]
}

// SetEntryBlock installs b as fn's entry block.
func (ir *IR) SetEntryBlock(fn FunctionId, b *Block) {
	for len(ir.FunctionEntries) <= int(fn) {
		ir.FunctionEntries = append(ir.FunctionEntries, nil)
	}
	ir.FunctionEntries[fn] = b
}
