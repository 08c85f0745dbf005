package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadeir/internal/ir"
	"shadeir/internal/transform"
)

func TestDuplicateBlockFreshensRegistersAndTempVariables(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)

	ptrFloat := meta.InternPointer(ir.TypeFloat)
	temp := meta.DeclareVariable(ir.Variable{Name: "t", NameSource: ir.NameSourceTemporary, Type: ptrFloat, Scope: ir.ScopeLocal})

	load := meta.NewRegister(&ir.Load{Ptr: ir.TypedId{Id: ir.VarId(temp), Type: ptrFloat}}, ir.TypeFloat, ir.PrecisionHigh)
	src := ir.NewBlock()
	src.Variables = []ir.VariableId{temp}
	src.Instructions = []ir.BlockInstruction{ir.RegInst(load.Id.Register), ir.InlineInst(&ir.Return{Value: &load})}

	dup := transform.DuplicateBlock(meta, src, nil)

	require.Len(t, dup.Variables, 1)
	assert.NotEqual(t, temp, dup.Variables[0], "a temporary-sourced variable must be re-declared fresh")

	require.Len(t, dup.Instructions, 2)
	freshReg := dup.Instructions[0].Register
	assert.NotEqual(t, load.Id.Register, freshReg)

	term, ok := dup.Instructions[1].Op(meta).(*ir.Return)
	require.True(t, ok)
	assert.Equal(t, freshReg, term.Value.Id.Register, "operands referencing the duplicated register must be remapped consistently")
}

func TestDuplicateBlockSharesNonTemporaryVariables(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)

	ptrFloat := meta.InternPointer(ir.TypeFloat)
	global := meta.DeclareVariable(ir.Variable{Name: "gl_FragDepth", NameSource: ir.NameSourceInternalExact, Type: ptrFloat, BuiltIn: ir.BuiltInFragDepth, Scope: ir.ScopeGlobal})

	src := ir.NewBlock()
	src.Variables = []ir.VariableId{global}
	src.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Discard{})}

	dup := transform.DuplicateBlock(meta, src, nil)

	require.Len(t, dup.Variables, 1)
	assert.Equal(t, global, dup.Variables[0], "a non-temporary variable must map to itself, not a fresh declaration")
}

func TestDuplicateBlockRespectsVarMapPreBinding(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)

	ptrFloat := meta.InternPointer(ir.TypeFloat)
	param := meta.DeclareVariable(ir.Variable{Name: "p", NameSource: ir.NameSourceTemporary, Type: ptrFloat, Scope: ir.ScopeFunctionParam})
	bound := meta.DeclareVariable(ir.Variable{Name: "bound", Type: ptrFloat, Scope: ir.ScopeLocal})

	load := meta.NewRegister(&ir.Load{Ptr: ir.TypedId{Id: ir.VarId(param), Type: ptrFloat}}, ir.TypeFloat, ir.PrecisionHigh)
	src := ir.NewBlock()
	src.Instructions = []ir.BlockInstruction{ir.RegInst(load.Id.Register), ir.InlineInst(&ir.Discard{})}

	dup := transform.DuplicateBlock(meta, src, transform.VarMap{param: bound})

	rewritten := meta.Instruction(dup.Instructions[0].Register).Op.(*ir.Load)
	assert.Equal(t, bound, rewritten.Ptr.Id.Variable)
}
