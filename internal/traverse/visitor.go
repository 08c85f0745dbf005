// Package traverse implements the two IR traversal engines: a read-only
// Visitor and a mutating Transformer (spec §4.2). Dealias edits instruction
// lists through TransformBlock; the other middle-end passes recurse over
// blocks themselves.
package traverse

import "shadeir/internal/ir"

// VisitAfter controls how a block_visit result steers descent into the
// block's children.
type VisitAfter int

const (
	// VisitSubBlocks descends into loop_condition/block1/block2/case_blocks
	// and then the merge_block, in that order.
	VisitSubBlocks VisitAfter = iota
	// SkipToMergeBlock skips the sub-blocks and goes straight to merge_block.
	SkipToMergeBlock
	// Stop halts descent entirely; no children of this block are visited.
	Stop
)

// Visitor drives a read-only walk over a function's block tree.
type Visitor struct {
	// PreVisit runs before a block's own instructions/children are visited.
	PreVisit func(b *ir.Block)
	// BlockVisit runs after PreVisit and decides how to descend.
	BlockVisit func(b *ir.Block) VisitAfter
	// PostVisit runs after a block and all of its visited children.
	PostVisit func(b *ir.Block)
}

// ForEachFunction visits every live function's entry block in declaration
// order.
func (v *Visitor) ForEachFunction(meta *ir.Meta, entries []*ir.Block) {
	for i, entry := range entries {
		if entry == nil || meta.Function(ir.FunctionId(i)).IsDeadCodeEliminated {
			continue
		}
		v.visitBlock(entry)
	}
}

// Visit walks a single block tree starting at root.
func (v *Visitor) Visit(root *ir.Block) {
	v.visitBlock(root)
}

func (v *Visitor) visitBlock(b *ir.Block) {
	if b == nil {
		return
	}
	if v.PreVisit != nil {
		v.PreVisit(b)
	}
	after := VisitSubBlocks
	if v.BlockVisit != nil {
		after = v.BlockVisit(b)
	}
	switch after {
	case Stop:
	case SkipToMergeBlock:
		v.visitBlock(b.MergeBlock)
	default: // VisitSubBlocks
		for _, sub := range b.SubBlocks() {
			v.visitBlock(sub)
		}
		v.visitBlock(b.MergeBlock)
	}
	if v.PostVisit != nil {
		v.PostVisit(b)
	}
}

// VisitInstructions calls fn for every instruction in b, in order,
// including the terminating branch.
func VisitInstructions(meta *ir.Meta, b *ir.Block, fn func(ir.BlockInstruction, ir.OpCode)) {
	if b == nil {
		return
	}
	for _, inst := range b.Instructions {
		fn(inst, inst.Op(meta))
	}
}

// BlockResult is the generic result type visit_block_instructions folds
// per-block results into; codegen and other bottom-up consumers instantiate
// this themselves rather than this package prescribing a concrete shape.
// It is a plain alias for any rather than a defined type so that callers'
// own named result-value types (e.g. codegen.Value) can be used directly
// wherever a BlockResult is expected.
type BlockResult = any

// InstructionVisitor is the callback shape visit_block_instructions drives:
// generate is called once per non-branch instruction in order; branch is
// called once, last, with the already-generated sub-block results; reduce
// folds a block's own result together with its merge-chain successor's
// result (nil when there is no successor).
type InstructionVisitor struct {
	Generate func(b *ir.Block, inst ir.BlockInstruction, op ir.OpCode)
	Branch   func(b *ir.Block, term ir.OpCode, subResults []BlockResult) BlockResult
	Reduce   func(b *ir.Block, own BlockResult, mergeResult BlockResult) BlockResult
}

// VisitBlockInstructions implements the codegen-oriented traversal from
// §4.2: generate non-branch instructions, recursively gather sub-block
// results, emit the branch using those results, then fold in the merge
// chain's result. This matches how backends build ASTs/IR bottom-up while
// preserving forward-declaration-free DAG order.
func VisitBlockInstructions(meta *ir.Meta, b *ir.Block, iv InstructionVisitor) BlockResult {
	if b == nil {
		return nil
	}
	n := len(b.Instructions)
	for i := 0; i < n-1; i++ {
		iv.Generate(b, b.Instructions[i], b.Instructions[i].Op(meta))
	}
	var term ir.OpCode
	if n > 0 {
		term = b.Instructions[n-1].Op(meta)
	}
	subs := b.SubBlocks()
	subResults := make([]BlockResult, len(subs))
	for i, sub := range subs {
		subResults[i] = VisitBlockInstructions(meta, sub, iv)
	}
	own := iv.Branch(b, term, subResults)
	var mergeResult BlockResult
	if b.MergeBlock != nil {
		mergeResult = VisitBlockInstructions(meta, b.MergeBlock, iv)
	}
	return iv.Reduce(b, own, mergeResult)
}
