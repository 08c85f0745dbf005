package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadeir/internal/ir"
	"shadeir/internal/transform"
)

func TestDealiasFollowsChainAndRemovesAliasInstructions(t *testing.T) {
	irv := ir.New(ir.ShaderVertex)
	meta := irv.Meta

	root := meta.NewRegister(&ir.Load{Ptr: ir.TypedId{Id: ir.ConstId(ir.ConstFloatOne), Type: ir.TypeFloat, Precision: ir.PrecisionHigh}}, ir.TypeFloat, ir.PrecisionHigh)
	alias1 := meta.NewRegister(&ir.Alias{Source: root.Id}, ir.TypeFloat, ir.PrecisionHigh)
	alias2 := meta.NewRegister(&ir.Alias{Source: alias1.Id}, ir.TypeFloat, ir.PrecisionHigh)
	use := meta.NewRegister(&ir.Unary{Op: ir.UnaryNegate, Operand: alias2}, ir.TypeFloat, ir.PrecisionHigh)

	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{
		ir.RegInst(root.Id.Register),
		ir.RegInst(alias1.Id.Register),
		ir.RegInst(alias2.Id.Register),
		ir.RegInst(use.Id.Register),
		ir.InlineInst(&ir.Discard{}),
	}
	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, b)

	transform.Dealias(irv)

	require.Len(t, b.Instructions, 3, "both Alias instructions must be removed, leaving root/use/terminator")
	rewritten, ok := meta.Instruction(use.Id.Register).Op.(*ir.Unary)
	require.True(t, ok)
	assert.Equal(t, root.Id, rewritten.Operand.Id, "the operand must be rewritten to the alias chain's origin")
}

func TestDealiasRewritesMergeInput(t *testing.T) {
	irv := ir.New(ir.ShaderVertex)
	meta := irv.Meta

	root := meta.NewRegister(&ir.Load{Ptr: ir.TypedId{Id: ir.ConstId(ir.ConstFloatOne), Type: ir.TypeFloat, Precision: ir.PrecisionHigh}}, ir.TypeFloat, ir.PrecisionHigh)
	alias := meta.NewRegister(&ir.Alias{Source: root.Id}, ir.TypeFloat, ir.PrecisionHigh)

	merge := ir.NewBlock()
	aliasReg := alias.Id.Register
	merge.Input = &aliasReg
	merge.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Return{})}

	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{
		ir.RegInst(root.Id.Register),
		ir.RegInst(alias.Id.Register),
		ir.InlineInst(&ir.NextBlock{}),
	}
	b.MergeBlock = merge

	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, b)

	transform.Dealias(irv)

	require.NotNil(t, merge.Input)
	assert.Equal(t, root.Id.Register, *merge.Input)
}
