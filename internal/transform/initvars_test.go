package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadeir/internal/ir"
	"shadeir/internal/transform"
)

func TestInitializeUninitializedVariablesUsesConstantInitializerForLocals(t *testing.T) {
	irv := ir.New(ir.ShaderFragment)
	meta := irv.Meta

	ptrFloat := meta.InternPointer(ir.TypeFloat)
	local := meta.DeclareVariable(ir.Variable{Name: "x", Type: ptrFloat, Scope: ir.ScopeLocal})

	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Discard{})}
	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, b)

	transform.InitializeUninitializedVariables(irv, map[ir.VariableId]bool{local: true}, transform.InitializeUninitializedVariablesOptions{})

	require.NotNil(t, meta.Variable(local).Initializer, "a local variable is always eligible for a constant initializer")
}

func TestInitializeUninitializedVariablesEmitsStoresForNonConstGlobal(t *testing.T) {
	irv := ir.New(ir.ShaderFragment)
	meta := irv.Meta

	ptrFloat := meta.InternPointer(ir.TypeFloat)
	global := meta.DeclareVariable(ir.Variable{Name: "g", Type: ptrFloat, Scope: ir.ScopeGlobal})

	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Discard{})}
	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, b)

	transform.InitializeUninitializedVariables(irv, map[ir.VariableId]bool{global: true}, transform.InitializeUninitializedVariablesOptions{
		InitializerAllowedOnNonConstantGlobalVariables: false,
	})

	assert.Nil(t, meta.Variable(global).Initializer, "a non-const global without the policy flag must not get a constant initializer")
	require.Len(t, b.Instructions, 2, "an explicit Store must be prefixed into main's entry block")
	st, ok := b.Instructions[0].Inline.(*ir.Store)
	require.True(t, ok)
	assert.Equal(t, global, st.Ptr.Id.Variable)
}

func TestInitializeUninitializedVariablesSkipsParamsAndBuiltins(t *testing.T) {
	irv := ir.New(ir.ShaderFragment)
	meta := irv.Meta

	ptrFloat := meta.InternPointer(ir.TypeFloat)
	param := meta.DeclareVariable(ir.Variable{Name: "p", Type: ptrFloat, Scope: ir.ScopeFunctionParam})
	builtin := meta.DeclareVariable(ir.Variable{Name: "gl_FragDepth", Type: ptrFloat, BuiltIn: ir.BuiltInFragDepth, Scope: ir.ScopeGlobal})

	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Discard{})}
	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, b)

	transform.InitializeUninitializedVariables(irv, map[ir.VariableId]bool{param: true, builtin: true}, transform.InitializeUninitializedVariablesOptions{})

	assert.Nil(t, meta.Variable(param).Initializer)
	assert.Nil(t, meta.Variable(builtin).Initializer)
	assert.Len(t, b.Instructions, 1, "neither a param nor a built-in may receive an injected store")
}

func TestInitializeUninitializedVariablesEmitsLoopForLargeArrayWhenAllowed(t *testing.T) {
	irv := ir.New(ir.ShaderVertex)
	meta := irv.Meta

	arrType := meta.InternArray(ir.TypeFloat, 8, true)
	ptrArr := meta.InternPointer(arrType)
	global := meta.DeclareVariable(ir.Variable{Name: "g", Type: ptrArr, Scope: ir.ScopeGlobal})

	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Discard{})}
	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, b)

	transform.InitializeUninitializedVariables(irv, map[ir.VariableId]bool{global: true}, transform.InitializeUninitializedVariablesOptions{
		LoopsAllowedWhenInitializingVariables:          true,
		InitializerAllowedOnNonConstantGlobalVariables: false,
	})

	require.Len(t, b.Instructions, 2, "the header block ends with the Loop terminator, preceded by the index store")
	_, ok := b.Instructions[1].Inline.(*ir.Loop)
	require.True(t, ok, "a large array with loops allowed must terminate its block with Loop, not an unrolled Store sequence")
	require.NotNil(t, b.LoopCondition)
	require.NotNil(t, b.Block1)
	require.NotNil(t, b.Block2)
	require.NotNil(t, b.MergeBlock)
	assert.Len(t, b.MergeBlock.Instructions, 1, "the original entry-block instruction must resume after the loop")
	_, discardAfter := b.MergeBlock.Instructions[0].Inline.(*ir.Discard)
	assert.True(t, discardAfter)
}

func TestInitializeUninitializedVariablesUnrollsFragmentOutputArrayDespiteLoopPolicy(t *testing.T) {
	irv := ir.New(ir.ShaderFragment)
	meta := irv.Meta

	arrType := meta.InternArray(ir.TypeFloat, 8, true)
	ptrArr := meta.InternPointer(arrType)
	fragOut := meta.DeclareVariable(ir.Variable{Name: "o", Type: ptrArr, Scope: ir.ScopeGlobal, Decoration: ir.DecorationOutput})

	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Discard{})}
	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, b)

	transform.InitializeUninitializedVariables(irv, map[ir.VariableId]bool{fragOut: true}, transform.InitializeUninitializedVariablesOptions{
		LoopsAllowedWhenInitializingVariables:          true,
		InitializerAllowedOnNonConstantGlobalVariables: false,
	})

	require.Nil(t, b.LoopCondition, "the fragment-output driver-bug workaround forces unrolling even when loops are allowed")
	require.Len(t, b.Instructions, 17, "8 unrolled (access + store) pairs plus the original discard")
}
