package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadeir/internal/ir"
)

func TestInternVectorDedupes(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderFragment)

	a := meta.InternVector(ir.TypeFloat, 3)
	b := meta.InternVector(ir.TypeFloat, 3)
	assert.Equal(t, a, b, "interning the same vector shape twice must return the same id")
	assert.Equal(t, ir.TypeVec3, a, "vec3<float> is predefined and must not be re-declared")

	c := meta.InternVector(ir.TypeInt, 3)
	assert.NotEqual(t, a, c)
}

func TestInternPointerRejectsNesting(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)

	ptr := meta.InternPointer(ir.TypeFloat)
	assert.Panics(t, func() {
		meta.InternPointer(ptr)
	}, "pointer types must never nest")
}

func TestInternCompositeDedupesByShape(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)

	vec3 := meta.InternVector(ir.TypeFloat, 3)
	a := meta.InternComposite(vec3, []ir.ConstantId{ir.ConstFloatZero, ir.ConstFloatZero, ir.ConstFloatOne})
	b := meta.InternComposite(vec3, []ir.ConstantId{ir.ConstFloatZero, ir.ConstFloatZero, ir.ConstFloatOne})
	assert.Equal(t, a, b)

	c := meta.InternComposite(vec3, []ir.ConstantId{ir.ConstFloatOne, ir.ConstFloatZero, ir.ConstFloatOne})
	assert.NotEqual(t, a, c)
}

func TestGetConstantNullRecursesThroughStructs(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)

	vec3 := meta.InternVector(ir.TypeFloat, 3)
	st := meta.DeclareStruct("Particle", []ir.StructField{
		{Name: "position", Type: vec3},
		{Name: "mass", Type: ir.TypeFloat},
	}, ir.StructSpecStruct)

	null := meta.GetConstantNull(st)
	c := meta.Constant(null)
	require.Equal(t, ir.ConstantTagComposite, c.Tag)
	require.Len(t, c.Components, 2)
	assert.Equal(t, ir.ConstantTagFloat, meta.Constant(c.Components[1]).Tag)
	assert.Equal(t, float64(0), meta.Constant(c.Components[1]).Float())
}

func TestEliminateTypeRemovesFromInternMaps(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)

	arr := meta.InternArray(ir.TypeFloat, 4, true)
	meta.EliminateType(arr)
	assert.Equal(t, ir.TypeTagDeadCodeEliminated, meta.Type(arr).Tag)

	// Re-interning the same shape must not resurrect the eliminated id.
	fresh := meta.InternArray(ir.TypeFloat, 4, true)
	assert.NotEqual(t, arr, fresh)
}

func TestEliminateTypeRejectsPredefined(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)
	assert.Panics(t, func() {
		meta.EliminateType(ir.TypeVec3)
	})
}

func TestAssignNewRegisterToInstructionLeavesPlaceholder(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)

	typed := meta.NewRegister(&ir.Binary{Op: ir.BinaryAdd, Lhs: constF(ir.ConstFloatZero), Rhs: constF(ir.ConstFloatOne)}, ir.TypeFloat, ir.PrecisionHigh)
	orig := typed.Id.Register

	fresh := meta.AssignNewRegisterToInstruction(orig)
	require.NotEqual(t, orig, fresh)

	movedOp, ok := meta.Instruction(fresh).Op.(*ir.Binary)
	require.True(t, ok, "moved instruction must keep its original opcode")
	assert.Equal(t, ir.BinaryAdd, movedOp.Op)

	_, isPlaceholder := meta.Instruction(orig).Op.(*ir.NextBlock)
	assert.True(t, isPlaceholder, "original id must be left as an inert placeholder")
}

func TestReplaceInstructionSwapsContent(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)

	a := meta.NewRegister(&ir.Load{Ptr: constF(ir.ConstFloatZero)}, ir.TypeFloat, ir.PrecisionHigh).Id.Register
	b := meta.NewRegister(&ir.Unary{Op: ir.UnaryNegate, Operand: constF(ir.ConstFloatOne)}, ir.TypeFloat, ir.PrecisionHigh).Id.Register

	meta.ReplaceInstruction(a, b)

	_, aIsUnary := meta.Instruction(a).Op.(*ir.Unary)
	assert.True(t, aIsUnary, "toReplace now carries replaceBy's content")
	assert.Equal(t, a, meta.Instruction(a).Result, "result id must track the table slot, not the moved content")

	_, bIsLoad := meta.Instruction(b).Op.(*ir.Load)
	assert.True(t, bIsLoad, "replaceBy now carries toReplace's old content")
}

func TestGetAliasedIdFollowsChain(t *testing.T) {
	meta := ir.NewMeta(ir.ShaderVertex)

	root := meta.NewRegister(&ir.Load{Ptr: constF(ir.ConstFloatZero)}, ir.TypeFloat, ir.PrecisionHigh)
	mid := meta.NewRegister(&ir.Alias{Source: root.Id}, ir.TypeFloat, ir.PrecisionHigh)
	leaf := meta.NewRegister(&ir.Alias{Source: mid.Id}, ir.TypeFloat, ir.PrecisionHigh)

	resolved := meta.GetAliasedId(leaf.Id)
	assert.Equal(t, root.Id, resolved)
}

func constF(c ir.ConstantId) ir.TypedId {
	return ir.TypedId{Id: ir.ConstId(c), Type: ir.TypeFloat, Precision: ir.PrecisionHigh}
}
