package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shadeir/internal/ir"
	"shadeir/internal/transform"
)

func TestPropagatePrecisionTakesHigherOfBinaryOperands(t *testing.T) {
	irv := ir.New(ir.ShaderFragment)
	meta := irv.Meta

	ptrFloat := meta.InternPointer(ir.TypeFloat)
	lowVar := meta.DeclareVariable(ir.Variable{Name: "lp", Type: ptrFloat, Precision: ir.PrecisionLow, Scope: ir.ScopeLocal})
	highVar := meta.DeclareVariable(ir.Variable{Name: "hp", Type: ptrFloat, Precision: ir.PrecisionHigh, Scope: ir.ScopeLocal})

	lowLoad := meta.NewRegister(&ir.Load{Ptr: ir.TypedId{Id: ir.VarId(lowVar), Type: ptrFloat}}, ir.TypeFloat, ir.PrecisionNotApplicable)
	highLoad := meta.NewRegister(&ir.Load{Ptr: ir.TypedId{Id: ir.VarId(highVar), Type: ptrFloat}}, ir.TypeFloat, ir.PrecisionNotApplicable)
	bin := meta.NewRegister(&ir.Binary{Op: ir.BinaryAdd, Lhs: lowLoad, Rhs: highLoad}, ir.TypeFloat, ir.PrecisionNotApplicable)

	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{
		ir.RegInst(lowLoad.Id.Register),
		ir.RegInst(highLoad.Id.Register),
		ir.RegInst(bin.Id.Register),
		ir.InlineInst(&ir.Discard{}),
	}
	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, b)

	transform.PropagatePrecision(irv)

	assert.Equal(t, ir.PrecisionLow, meta.Instruction(lowLoad.Id.Register).ResultPrecision)
	assert.Equal(t, ir.PrecisionHigh, meta.Instruction(highLoad.Id.Register).ResultPrecision)
	assert.Equal(t, ir.PrecisionHigh, meta.Instruction(bin.Id.Register).ResultPrecision, "a binary op takes the higher of its two operand precisions")
}

func TestPropagatePrecisionStrandedRegisterDefaultsHigh(t *testing.T) {
	irv := ir.New(ir.ShaderFragment)
	meta := irv.Meta

	// A register with no rule that resolves it (an orphaned Alias-like use
	// with no operand precision anywhere) must fall back to high precision
	// rather than stay unset.
	stranded := meta.NewRegister(&ir.ConstructScalar{Source: ir.TypedId{Id: ir.ConstId(ir.ConstFloatOne), Type: ir.TypeFloat}}, ir.TypeFloat, ir.PrecisionNotApplicable)

	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{ir.RegInst(stranded.Id.Register), ir.InlineInst(&ir.Discard{})}
	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, b)

	transform.PropagatePrecision(irv)

	assert.Equal(t, ir.PrecisionHigh, meta.Instruction(stranded.Id.Register).ResultPrecision)
}
