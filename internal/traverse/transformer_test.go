package traverse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadeir/internal/ir"
	"shadeir/internal/traverse"
)

func TestTransformBlockKeepIsANoOpFastPath(t *testing.T) {
	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{
		ir.InlineInst(&ir.Discard{}),
	}
	original := b.Instructions

	traverse.TransformBlock(b, func(i int, inst ir.BlockInstruction) []traverse.Transform {
		return []traverse.Transform{traverse.KeepT()}
	})

	assert.Equal(t, original, b.Instructions, "an all-Keep pass must leave Instructions untouched")
}

func TestTransformBlockRemoveDropsInstruction(t *testing.T) {
	b := ir.NewBlock()
	marker := ir.InlineInst(&ir.Alias{})
	term := ir.InlineInst(&ir.Discard{})
	b.Instructions = []ir.BlockInstruction{marker, term}

	traverse.TransformBlock(b, func(i int, inst ir.BlockInstruction) []traverse.Transform {
		if inst.Inline == marker.Inline {
			return []traverse.Transform{traverse.RemoveT()}
		}
		return nil
	})

	require.Len(t, b.Instructions, 1)
	assert.Equal(t, term, b.Instructions[0])
}

func TestTransformBlockAddPrependsAheadOfMatch(t *testing.T) {
	b := ir.NewBlock()
	target := ir.InlineInst(&ir.Discard{})
	b.Instructions = []ir.BlockInstruction{target}

	prefix := ir.InlineInst(&ir.Alias{})
	traverse.TransformBlock(b, func(i int, inst ir.BlockInstruction) []traverse.Transform {
		return []traverse.Transform{traverse.AddT(prefix), traverse.KeepT()}
	})

	require.Len(t, b.Instructions, 2)
	assert.Equal(t, prefix, b.Instructions[0])
	assert.Equal(t, target, b.Instructions[1])
}

func TestTransformBlockAddBlockAdoptsChildSlots(t *testing.T) {
	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Discard{})}

	newMerge := ir.NewBlock()
	newMerge.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Return{})}
	addBlock := ir.NewBlock()
	addBlock.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.NextBlock{})}
	addBlock.MergeBlock = newMerge
	v := ir.VariableId(7)
	addBlock.Variables = []ir.VariableId{v}

	traverse.TransformBlock(b, func(i int, inst ir.BlockInstruction) []traverse.Transform {
		return []traverse.Transform{traverse.AddBlockT(addBlock)}
	})

	require.Len(t, b.Instructions, 1)
	assert.Same(t, newMerge, b.MergeBlock, "b must adopt addBlock's merge_block")
	assert.Contains(t, b.Variables, v)
}

func TestTransformerForEachBlockVisitsSubBlocksAndMerge(t *testing.T) {
	then := ir.NewBlock()
	then.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Merge{})}
	els := ir.NewBlock()
	els.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Merge{})}
	merge := ir.NewBlock()
	merge.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Return{})}

	root := ir.NewBlock()
	root.Block1 = then
	root.Block2 = els
	root.MergeBlock = merge
	root.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.If{})}

	var visited []*ir.Block
	tr := traverse.Transformer{
		Pre: func(b *ir.Block) *ir.Block {
			visited = append(visited, b)
			return nil
		},
	}
	result := tr.ForEachBlock(root)

	assert.Same(t, root, result)
	assert.Equal(t, []*ir.Block{root, then, els, merge}, visited)
}

func TestTransformerPostCanSwapBlock(t *testing.T) {
	leaf := ir.NewBlock()
	leaf.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.NextBlock{})}
	replacement := ir.NewBlock()
	replacement.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Discard{})}

	tr := traverse.Transformer{
		Post: func(b *ir.Block) *ir.Block {
			if b == leaf {
				return replacement
			}
			return nil
		},
	}
	result := tr.ForEachBlock(leaf)
	assert.Same(t, replacement, result)
}
