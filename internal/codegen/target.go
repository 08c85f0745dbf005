// Package codegen drives a finalized IR (post-dealias, post-astify) into a
// backend-supplied Target, in the fixed order described in §4.5/§6: declare
// every type/constant/variable/function by id, set up global scope, then
// walk the call graph from main in DAG-topological order, generating each
// function body bottom-up via traverse.VisitBlockInstructions.
package codegen

import "shadeir/internal/ir"

// Value is whatever representation a Target's opcode hooks choose to
// return for a computed IR value (an AST node, a string fragment, a register
// name — the adapter does not care). Operand values are looked up by
// RegisterId/ConstantId/VariableId from the Generator's own caches and
// handed back to the Target uninterpreted. It aliases any so it is freely
// interchangeable with traverse.BlockResult.
type Value = any

// Target is the backend contract (§4.5, §6 "Target contract"). Every method
// is called strictly bottom-up: a Target's children are always constructed
// before the parent that consumes them.
type Target interface {
	Begin(meta *ir.Meta)
	End()
	GlobalScope(meta *ir.Meta)

	NewType(id ir.TypeId, t *ir.Type)
	NewConstant(id ir.ConstantId, c *ir.Constant)
	NewVariable(id ir.VariableId, v *ir.Variable)
	NewFunction(id ir.FunctionId, f *ir.Function)

	// VariableRef and ConstantRef resolve an operand reference to a Value,
	// for use sites where a TypedId names a variable or constant directly
	// rather than a previously-generated register.
	VariableRef(id ir.VariableId) Value
	ConstantRef(id ir.ConstantId) Value

	BeginBlock(b *ir.Block)
	EndFunction(id ir.FunctionId)
	// MergeBlocks folds a block's own generated statements with its
	// merge-chain successor's, in source order.
	MergeBlocks(own, merge Value) Value

	// --- per-opcode-family hooks ---------------------------------------

	SwizzleComponent(base Value, index int, pointer bool) Value
	SwizzleMulti(base Value, indices []int, pointer bool) Value
	IndexDynamic(base, index Value, pointer bool) Value
	IndexMatrixColumn(base, column Value, pointer bool) Value
	SelectField(base Value, field int, pointer bool) Value
	IndexArrayElement(base, index Value, pointer bool) Value

	ConstructScalar(source Value, resultType ir.TypeId) Value
	ConstructSplat(source Value, resultType ir.TypeId) Value
	ConstructMatrixResize(source Value, resultType ir.TypeId) Value
	ConstructComposite(components []Value, resultType ir.TypeId) Value

	Load(ptr Value) Value
	Store(ptr, value Value) Value
	Call(fn ir.FunctionId, args []Value) Value
	Unary(op ir.UnaryOp, operand Value) Value
	Binary(op ir.BinaryOp, lhs, rhs Value) Value
	BuiltIn(op ir.BuiltInOp, args []Value) Value
	Texture(shape ir.TextureShape, sampler, coord Value, extra TextureExtra) Value

	// --- terminators ------------------------------------------------------

	BranchDiscard() Value
	BranchReturn(value Value, hasValue bool) Value
	BranchBreak() Value
	BranchContinue() Value
	BranchPassthrough() Value
	BranchIf(cond Value, thenResult, elseResult Value) Value
	BranchLoop(condResult, bodyResult Value) Value
	BranchDoLoop(bodyResult, condResult Value) Value
	BranchLoopIf(cond Value) Value
	BranchSwitch(value Value, caseResults []Value, hasDefault bool) Value
}

// TextureExtra carries a Texture opcode's optional operands, pre-resolved to
// Values, so Target.Texture doesn't need a variant-specific signature per
// TextureShape.
type TextureExtra struct {
	IsProj    bool
	Offset    Value
	Compare   Value
	Lod       Value
	Bias      Value
	Dx        Value
	Dy        Value
	RefZ      Value
	Component *int
}
