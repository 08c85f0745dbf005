package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shadeir/internal/ir"
	"shadeir/internal/transform"
)

func buildCountingLoop(meta *ir.Meta) (*ir.Block, ir.VariableId) {
	ptrInt := meta.InternPointer(ir.TypeInt)
	i := meta.DeclareVariable(ir.Variable{Name: "i", Type: ptrInt, Scope: ir.ScopeLocal})

	iLoad := meta.NewRegister(&ir.Load{Ptr: ir.TypedId{Id: ir.VarId(i), Type: ptrInt}}, ir.TypeInt, ir.PrecisionHigh)
	limit := ir.TypedId{Id: ir.ConstId(ir.ConstIntZero), Type: ir.TypeInt}
	cmp := meta.NewRegister(&ir.Binary{Op: ir.BinaryLess, Lhs: iLoad, Rhs: limit}, ir.TypeBool, ir.PrecisionHigh)

	cond := ir.NewBlock()
	cond.Instructions = []ir.BlockInstruction{
		ir.RegInst(iLoad.Id.Register),
		ir.RegInst(cmp.Id.Register),
		ir.InlineInst(&ir.LoopIf{Cond: cmp}),
	}

	bodyLoad := meta.NewRegister(&ir.Load{Ptr: ir.TypedId{Id: ir.VarId(i), Type: ptrInt}}, ir.TypeInt, ir.PrecisionHigh)
	one := ir.TypedId{Id: ir.ConstId(ir.ConstIntOne), Type: ir.TypeInt}
	inc := meta.NewRegister(&ir.Binary{Op: ir.BinaryAdd, Lhs: bodyLoad, Rhs: one}, ir.TypeInt, ir.PrecisionHigh)
	store := ir.InlineInst(&ir.Store{Ptr: ir.TypedId{Id: ir.VarId(i), Type: ptrInt}, Value: inc})

	continueBlock := ir.NewBlock()
	continueBlock.Instructions = []ir.BlockInstruction{
		ir.RegInst(bodyLoad.Id.Register),
		ir.RegInst(inc.Id.Register),
		store,
		ir.InlineInst(&ir.NextBlock{}),
	}

	body := ir.NewBlock()
	body.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.NextBlock{})}
	body.MergeBlock = continueBlock

	header := ir.NewBlock()
	header.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Loop{})}
	header.LoopCondition = cond
	header.Block1 = body
	header.Block2 = continueBlock

	return header, i
}

func TestEnsureLoopForwardProgressLeavesProvenTerminatingLoopAlone(t *testing.T) {
	irv := ir.New(ir.ShaderFragment)
	meta := irv.Meta

	header, _ := buildCountingLoop(meta)
	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, header)

	transform.EnsureLoopForwardProgress(irv)

	for _, inst := range header.Block1.Instructions {
		if _, ok := inst.Op(meta).(*ir.BuiltIn_); ok {
			t.Fatalf("a provably-terminating counting loop must not get a forward-progress sentinel")
		}
	}
}

func TestEnsureLoopForwardProgressAnnotatesUnprovableLoop(t *testing.T) {
	irv := ir.New(ir.ShaderFragment)
	meta := irv.Meta

	header, i := buildCountingLoop(meta)
	// A second, unrelated store to the same induction variable elsewhere in
	// the program defeats the single-write requirement, making termination
	// unprovable by this pass's pattern match.
	other := ir.NewBlock()
	other.Instructions = []ir.BlockInstruction{
		ir.InlineInst(&ir.Store{Ptr: ir.TypedId{Id: ir.VarId(i), Type: meta.InternPointer(ir.TypeInt)}, Value: ir.TypedId{Id: ir.ConstId(ir.ConstIntZero), Type: ir.TypeInt}}),
		ir.InlineInst(&ir.Discard{}),
	}
	header.MergeBlock = other

	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, header)

	transform.EnsureLoopForwardProgress(irv)

	sawSentinel := false
	for _, inst := range header.Block1.Instructions {
		if bi, ok := inst.Op(meta).(*ir.BuiltIn_); ok && bi.Op == ir.BuiltInLoopForwardProgress {
			sawSentinel = true
		}
	}
	assert.True(t, sawSentinel, "an unprovable loop must get the forward-progress sentinel prepended to its body")
}
