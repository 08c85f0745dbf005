package compile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadeir/internal/codegen"
	"shadeir/internal/compile"
	"shadeir/internal/ir"
)

// stubTarget is a no-op codegen.Target that records whether it was driven at
// all, for tests that only care that Run reaches code generation.
type stubTarget struct{ ran bool }

func (s *stubTarget) Begin(meta *ir.Meta)     { s.ran = true }
func (s *stubTarget) End()                     {}
func (s *stubTarget) GlobalScope(meta *ir.Meta) {}
func (s *stubTarget) NewType(id ir.TypeId, t *ir.Type)             {}
func (s *stubTarget) NewConstant(id ir.ConstantId, c *ir.Constant) {}
func (s *stubTarget) NewVariable(id ir.VariableId, v *ir.Variable) {}
func (s *stubTarget) NewFunction(id ir.FunctionId, f *ir.Function) {}
func (s *stubTarget) VariableRef(id ir.VariableId) codegen.Value   { return "var" }
func (s *stubTarget) ConstantRef(id ir.ConstantId) codegen.Value   { return "const" }
func (s *stubTarget) BeginBlock(b *ir.Block)             {}
func (s *stubTarget) EndFunction(id ir.FunctionId)       {}
func (s *stubTarget) MergeBlocks(own, merge codegen.Value) codegen.Value { return own }
func (s *stubTarget) SwizzleComponent(base codegen.Value, index int, pointer bool) codegen.Value {
	return nil
}
func (s *stubTarget) SwizzleMulti(base codegen.Value, indices []int, pointer bool) codegen.Value {
	return nil
}
func (s *stubTarget) IndexDynamic(base, index codegen.Value, pointer bool) codegen.Value { return nil }
func (s *stubTarget) IndexMatrixColumn(base, column codegen.Value, pointer bool) codegen.Value {
	return nil
}
func (s *stubTarget) SelectField(base codegen.Value, field int, pointer bool) codegen.Value {
	return nil
}
func (s *stubTarget) IndexArrayElement(base, index codegen.Value, pointer bool) codegen.Value {
	return nil
}
func (s *stubTarget) ConstructScalar(source codegen.Value, resultType ir.TypeId) codegen.Value {
	return nil
}
func (s *stubTarget) ConstructSplat(source codegen.Value, resultType ir.TypeId) codegen.Value {
	return nil
}
func (s *stubTarget) ConstructMatrixResize(source codegen.Value, resultType ir.TypeId) codegen.Value {
	return nil
}
func (s *stubTarget) ConstructComposite(components []codegen.Value, resultType ir.TypeId) codegen.Value {
	return nil
}
func (s *stubTarget) Load(ptr codegen.Value) codegen.Value                       { return "load" }
func (s *stubTarget) Store(ptr, value codegen.Value) codegen.Value              { return nil }
func (s *stubTarget) Call(fn ir.FunctionId, args []codegen.Value) codegen.Value  { return nil }
func (s *stubTarget) Unary(op ir.UnaryOp, operand codegen.Value) codegen.Value   { return nil }
func (s *stubTarget) Binary(op ir.BinaryOp, lhs, rhs codegen.Value) codegen.Value { return nil }
func (s *stubTarget) BuiltIn(op ir.BuiltInOp, args []codegen.Value) codegen.Value { return nil }
func (s *stubTarget) Texture(shape ir.TextureShape, sampler, coord codegen.Value, extra codegen.TextureExtra) codegen.Value {
	return nil
}
func (s *stubTarget) BranchDiscard() codegen.Value                         { return "discard" }
func (s *stubTarget) BranchReturn(value codegen.Value, hasValue bool) codegen.Value { return "return" }
func (s *stubTarget) BranchBreak() codegen.Value                           { return "break" }
func (s *stubTarget) BranchContinue() codegen.Value                        { return "continue" }
func (s *stubTarget) BranchPassthrough() codegen.Value                     { return "passthrough" }
func (s *stubTarget) BranchIf(cond codegen.Value, thenResult, elseResult codegen.Value) codegen.Value {
	return "if"
}
func (s *stubTarget) BranchLoop(condResult, bodyResult codegen.Value) codegen.Value { return "loop" }
func (s *stubTarget) BranchDoLoop(bodyResult, condResult codegen.Value) codegen.Value {
	return "doLoop"
}
func (s *stubTarget) BranchLoopIf(cond codegen.Value) codegen.Value { return "loopIf" }
func (s *stubTarget) BranchSwitch(value codegen.Value, caseResults []codegen.Value, hasDefault bool) codegen.Value {
	return "switch"
}

func simpleFragmentIR() *ir.IR {
	irv := ir.New(ir.ShaderFragment)
	meta := irv.Meta

	b := ir.NewBlock()
	b.Instructions = []ir.BlockInstruction{ir.InlineInst(&ir.Discard{})}
	fn := meta.DeclareFunction(ir.Function{Name: "main"})
	meta.SetMainFunction(fn)
	irv.SetEntryBlock(fn, b)
	return irv
}

func TestRunReturnsAStableDiagnosticID(t *testing.T) {
	irv := simpleFragmentIR()
	target := &stubTarget{}

	id := compile.Run(irv, compile.Options{ShaderVersion: 300}, target)

	require.NotEmpty(t, id)
	assert.True(t, target.ran, "Run must drive the target through code generation")
}

func TestRunSkipsFramebufferFetchRemovalBelowES300(t *testing.T) {
	irv := simpleFragmentIR()
	target := &stubTarget{}

	opts := compile.Options{ShaderVersion: 100}
	opts.Extensions.EXT_shader_framebuffer_fetch = true

	assert.NotPanics(t, func() {
		compile.Run(irv, opts, target)
	}, "below ES 3.00, framebuffer-fetch removal must not run and must not touch an absent variable")
}

func TestRunGatesPixelLocalStorageOnOption(t *testing.T) {
	irv := simpleFragmentIR()
	target := &stubTarget{}

	opts := compile.Options{ShaderVersion: 300}
	opts.PixelLocalStorage = false

	assert.NotPanics(t, func() {
		compile.Run(irv, opts, target)
	}, "PixelLocalStorage gated off must not invoke the PLS lowering pass")
}

func TestRunGatesBroadcastFragColorOnNumDrawBuffers(t *testing.T) {
	irv := simpleFragmentIR()
	target := &stubTarget{}

	opts := compile.Options{ShaderVersion: 100, IsES1: true, NumDrawBuffers: 1}

	assert.NotPanics(t, func() {
		compile.Run(irv, opts, target)
	}, "a single draw buffer must not trigger BroadcastFragColor")
}
