package traverse

import "shadeir/internal/ir"

// TransformKind is the tag of a single edit returned from a transform_block
// callback.
type TransformKind int

const (
	Keep TransformKind = iota
	Remove
	Add
	AddBlock
	DeclareVariable
)

// Transform is one instruction-level edit. Branch instructions are never
// themselves transformable except to Keep plus prefixed Add entries ahead
// of them (§4.2).
type Transform struct {
	Kind     TransformKind
	Inst     ir.BlockInstruction // Add
	Block    *ir.Block           // AddBlock
	Variable ir.VariableId       // DeclareVariable
}

func KeepT() Transform                        { return Transform{Kind: Keep} }
func RemoveT() Transform                      { return Transform{Kind: Remove} }
func AddT(inst ir.BlockInstruction) Transform { return Transform{Kind: Add, Inst: inst} }
func AddBlockT(b *ir.Block) Transform         { return Transform{Kind: AddBlock, Block: b} }
func DeclareVariableT(id ir.VariableId) Transform {
	return Transform{Kind: DeclareVariable, Variable: id}
}

// TransformBlockFunc is the per-instruction callback: nil or an empty slice
// means "unchanged" (the fast path), a single {Keep} means the same thing
// explicitly.
type TransformBlockFunc func(index int, inst ir.BlockInstruction) []Transform

// TransformBlock iterates b's instruction list. The first instruction whose
// callback result is not exactly [Keep] triggers a rebuild: everything from
// that point on is reconstructed from the callback results, and any
// AddBlock result splices that block's instructions/variables into the
// tail and adopts its child slots (the new block's branch and successors
// become this block's).
func TransformBlock(b *ir.Block, fn TransformBlockFunc) {
	TransformBlockFrom(b, 0, fn)
}

// TransformBlockFrom is TransformBlock starting at instruction index from,
// keeping everything before it untouched unconditionally.
func TransformBlockFrom(b *ir.Block, from int, fn TransformBlockFunc) {
	rebuilt := append([]ir.BlockInstruction(nil), b.Instructions[:from]...)
	changed := false

	for i := from; i < len(b.Instructions); i++ {
		inst := b.Instructions[i]
		results := fn(i, inst)
		if len(results) == 0 {
			results = []Transform{KeepT()}
		}
		if !changed && len(results) == 1 && results[0].Kind == Keep {
			rebuilt = append(rebuilt, inst)
			continue
		}
		changed = true
		for _, t := range results {
			switch t.Kind {
			case Keep:
				rebuilt = append(rebuilt, inst)
			case Remove:
				// drop
			case Add:
				rebuilt = append(rebuilt, t.Inst)
			case AddBlock:
				spliceBlock(b, &rebuilt, t.Block)
			case DeclareVariable:
				b.Variables = append(b.Variables, t.Variable)
			}
		}
	}

	if changed {
		b.Instructions = rebuilt
	}
}

// spliceBlock appends add's instructions to the growing tail and makes b
// adopt add's child slots (its branch and successors), since add was
// introduced to replace everything from this point in b forward.
func spliceBlock(b *ir.Block, tail *[]ir.BlockInstruction, add *ir.Block) {
	*tail = append(*tail, add.Instructions...)
	b.Variables = append(b.Variables, add.Variables...)
	b.MergeBlock = add.MergeBlock
	b.LoopCondition = add.LoopCondition
	b.Block1 = add.Block1
	b.Block2 = add.Block2
	b.CaseBlocks = add.CaseBlocks
	if add.Input != nil {
		b.Input = add.Input
	}
}

// Transformer drives a mutating walk. Pre and Post hooks may return a
// different block than the one passed in (swapping it in place) so
// traversal resumes past a freshly-spliced tree.
type Transformer struct {
	Pre  func(b *ir.Block) *ir.Block
	Post func(b *ir.Block) *ir.Block
}

// ForEachBlock recurses into b's sub-blocks and merge_block, applying Pre
// before descent and Post after, returning whatever block the hooks leave
// in place of b.
func (t *Transformer) ForEachBlock(b *ir.Block) *ir.Block {
	if b == nil {
		return nil
	}
	if t.Pre != nil {
		if swapped := t.Pre(b); swapped != nil {
			b = swapped
		}
	}

	if b.LoopCondition != nil {
		b.LoopCondition = t.ForEachBlock(b.LoopCondition)
	}
	if b.Block1 != nil {
		b.Block1 = t.ForEachBlock(b.Block1)
	}
	if b.Block2 != nil {
		b.Block2 = t.ForEachBlock(b.Block2)
	}
	for i, c := range b.CaseBlocks {
		b.CaseBlocks[i] = t.ForEachBlock(c)
	}
	if b.MergeBlock != nil {
		b.MergeBlock = t.ForEachBlock(b.MergeBlock)
	}

	if t.Post != nil {
		if swapped := t.Post(b); swapped != nil {
			b = swapped
		}
	}
	return b
}
