package transform

import "shadeir/internal/ir"

// InitializeUninitializedVariablesOptions mirrors the driver's per-pass
// option struct (§6).
type InitializeUninitializedVariablesOptions struct {
	LoopsAllowedWhenInitializingVariables           bool
	InitializerAllowedOnNonConstantGlobalVariables bool
}

// smallArrayThreshold is the array-length cutoff below which initialization
// is unrolled even when loops are allowed, matching the "not small" gate in
// §4.4.5.
const smallArrayThreshold = 4

// InitializeUninitializedVariables zero-initializes every variable marked
// as requiring it (§4.4.5). Where policy permits a constant initializer
// (local scope always; global only if non-const globals may carry
// initializers or the variable is const; never for params, built-ins or
// input/uniform-class interface variables), a null constant is installed
// directly. Otherwise explicit stores are emitted at the block that
// defines the variable. A fragment shader's output variable is still a
// candidate for store-based initialization (some drivers read an
// unwritten fragment output as garbage rather than the spec-mandated
// zero), but its arrays always unroll rather than loop, regardless of
// opts.LoopsAllowedWhenInitializingVariables.
func InitializeUninitializedVariables(irv *ir.IR, needsInit map[ir.VariableId]bool, opts InitializeUninitializedVariablesOptions) {
	irv.Run(func(irv *ir.IR) {
		meta := irv.Meta
		tails := map[*ir.Block]*ir.Block{}
		for v, want := range needsInit {
			if !want {
				continue
			}
			variable := meta.Variable(v)
			if variable.Scope == ir.ScopeFunctionParam || variable.BuiltIn != ir.BuiltInNone || !initializableDecoration(variable.Decoration) {
				continue
			}
			pointee := meta.Type(variable.Type).Pointee
			if canUseConstantInitializer(variable, opts) {
				null := meta.GetConstantNull(pointee)
				variable.Initializer = &null
				continue
			}
			target := initializationTargetBlock(irv, v)
			if target == nil {
				continue
			}
			cur, ok := tails[target]
			if !ok {
				cur = target
			}
			rest := cur.Instructions
			cur.Instructions = nil
			isFragmentOutput := meta.ShaderType() == ir.ShaderFragment && variable.Decoration == ir.DecorationOutput
			tail := emitInit(meta, cur, ir.TypedId{Id: ir.VarId(v), Type: variable.Type, Precision: variable.Precision}, pointee, opts, isFragmentOutput)
			tail.Instructions = append(tail.Instructions, rest...)
			tails[target] = tail
		}
	})
}

// initializableDecoration reports whether a global with this decoration can
// have zero-initialization emitted at all: inputs and uniform-class storage
// are populated by the pipeline, not this pass, but a plain output (and the
// non-decorated default) are fair game.
func initializableDecoration(d ir.Decoration) bool {
	switch d {
	case ir.DecorationNone, ir.DecorationOutput:
		return true
	default:
		return false
	}
}

func canUseConstantInitializer(v *ir.Variable, opts InitializeUninitializedVariablesOptions) bool {
	if v.Scope == ir.ScopeLocal {
		return true
	}
	// global scope
	return opts.InitializerAllowedOnNonConstantGlobalVariables || v.IsConst
}

// initializationTargetBlock resolves "the block that defines it": main's
// entry for globals, the function's entry for parameters (excluded above),
// and the declaring block for locals. This module does not track per-
// variable declaring blocks outside of Variables slices, so callers of this
// pass are expected to have already resolved target blocks for locals via
// their own declaration-site bookkeeping; this helper only resolves the
// global case, which is unambiguous (main's entry).
func initializationTargetBlock(irv *ir.IR, v ir.VariableId) *ir.Block {
	variable := irv.Meta.Variable(v)
	if variable.Scope != ir.ScopeGlobal {
		return nil
	}
	main, ok := irv.Meta.MainFunction()
	if !ok {
		return nil
	}
	return irv.EntryBlock(main)
}

// emitInit appends the instructions that zero-initialize ptr's pointee onto
// the end of cur, recursing field-by-field for structs and, for arrays,
// either unrolling or splitting cur into a for-loop per policy. It returns
// the block subsequent initialization (of a later sibling field, or of the
// next variable sharing this target) should continue appending to: cur
// itself, unless an array loop was emitted, in which case the loop's
// post-loop merge block.
func emitInit(meta *ir.Meta, cur *ir.Block, ptr ir.TypedId, pointee ir.TypeId, opts InitializeUninitializedVariablesOptions, isFragmentOutput bool) *ir.Block {
	typ := meta.Type(pointee)
	switch typ.Tag {
	case ir.TypeTagStruct:
		for i, f := range typ.Fields {
			field := meta.NewRegister(&ir.AccessStructField{Pointer: true, Base: ptr, Field: i}, meta.InternPointer(f.Type), ir.PrecisionNotApplicable)
			cur.Instructions = append(cur.Instructions, ir.RegInst(field.Id.Register))
			cur = emitInit(meta, cur, field, f.Type, opts, isFragmentOutput)
		}
		return cur
	case ir.TypeTagArray:
		if !typ.ArraySized {
			return cur
		}
		useLoop := opts.LoopsAllowedWhenInitializingVariables && typ.ArraySize >= smallArrayThreshold && !isFragmentOutput
		if !useLoop {
			for i := 0; i < typ.ArraySize; i++ {
				idxConst := meta.InternInt(ir.TypeInt, int64(i))
				elem := meta.NewRegister(&ir.AccessArrayElement{Pointer: true, Base: ptr, Index: ir.TypedId{Id: ir.ConstId(idxConst), Type: ir.TypeInt}}, meta.InternPointer(typ.ArrayElement), ir.PrecisionNotApplicable)
				cur.Instructions = append(cur.Instructions, ir.RegInst(elem.Id.Register))
				cur = emitInit(meta, cur, elem, typ.ArrayElement, opts, isFragmentOutput)
			}
			return cur
		}
		return emitArrayInitLoop(meta, cur, ptr, typ.ArrayElement, typ.ArraySize, opts, isFragmentOutput)
	default:
		cur.Instructions = append(cur.Instructions, ir.InlineInst(&ir.Store{Ptr: ptr, Value: zeroTypedId(meta, pointee)}))
		return cur
	}
}

// emitArrayInitLoop terminates cur with a for-loop over [0, count) that
// recursively initializes array[index] for a fresh int local index,
// matching the Loop/LoopCondition/Block1(body)/Block2(continue) shape used
// throughout this IR for C-style loops. The body's own tail (which may
// differ from body itself, if an element is in turn a large array needing
// its own nested loop) is merged into the continue block. Returns the
// block reached once the loop condition evaluates false.
func emitArrayInitLoop(meta *ir.Meta, cur *ir.Block, ptr ir.TypedId, elemType ir.TypeId, count int, opts InitializeUninitializedVariablesOptions, isFragmentOutput bool) *ir.Block {
	ptrInt := meta.InternPointer(ir.TypeInt)
	index := meta.DeclareVariable(ir.Variable{Name: "index", NameSource: ir.NameSourceTemporary, Type: ptrInt, Scope: ir.ScopeLocal})
	indexPtr := ir.TypedId{Id: ir.VarId(index), Type: ptrInt}

	cur.Variables = append(cur.Variables, index)
	zero := ir.TypedId{Id: ir.ConstId(meta.InternInt(ir.TypeInt, 0)), Type: ir.TypeInt}
	cur.Instructions = append(cur.Instructions, ir.InlineInst(&ir.Store{Ptr: indexPtr, Value: zero}))
	cur.Instructions = append(cur.Instructions, ir.InlineInst(&ir.Loop{}))

	condLoad := meta.NewRegister(&ir.Load{Ptr: indexPtr}, ir.TypeInt, ir.PrecisionHigh)
	countConst := ir.TypedId{Id: ir.ConstId(meta.InternInt(ir.TypeInt, int64(count))), Type: ir.TypeInt}
	cmp := meta.NewRegister(&ir.Binary{Op: ir.BinaryLess, Lhs: condLoad, Rhs: countConst}, ir.TypeBool, ir.PrecisionHigh)
	cond := ir.NewBlock()
	cond.Instructions = []ir.BlockInstruction{ir.RegInst(condLoad.Id.Register), ir.RegInst(cmp.Id.Register), ir.InlineInst(&ir.LoopIf{Cond: cmp})}
	cur.LoopCondition = cond

	bodyLoad := meta.NewRegister(&ir.Load{Ptr: indexPtr}, ir.TypeInt, ir.PrecisionHigh)
	elem := meta.NewRegister(&ir.AccessArrayElement{Pointer: true, Base: ptr, Index: bodyLoad}, meta.InternPointer(elemType), ir.PrecisionNotApplicable)
	body := ir.NewBlock()
	body.Instructions = []ir.BlockInstruction{ir.RegInst(bodyLoad.Id.Register), ir.RegInst(elem.Id.Register)}
	bodyTail := emitInit(meta, body, elem, elemType, opts, isFragmentOutput)
	bodyTail.Instructions = append(bodyTail.Instructions, ir.InlineInst(&ir.NextBlock{}))
	cur.Block1 = body

	continueLoad := meta.NewRegister(&ir.Load{Ptr: indexPtr}, ir.TypeInt, ir.PrecisionHigh)
	one := ir.TypedId{Id: ir.ConstId(meta.InternInt(ir.TypeInt, 1)), Type: ir.TypeInt}
	inc := meta.NewRegister(&ir.Binary{Op: ir.BinaryAdd, Lhs: continueLoad, Rhs: one}, ir.TypeInt, ir.PrecisionHigh)
	continueBlock := ir.NewBlock()
	continueBlock.Instructions = []ir.BlockInstruction{
		ir.RegInst(continueLoad.Id.Register),
		ir.RegInst(inc.Id.Register),
		ir.InlineInst(&ir.Store{Ptr: indexPtr, Value: inc}),
		ir.InlineInst(&ir.NextBlock{}),
	}
	cur.Block2 = continueBlock
	bodyTail.MergeBlock = continueBlock

	merge := ir.NewBlock()
	cur.MergeBlock = merge
	return merge
}

func zeroTypedId(meta *ir.Meta, typ ir.TypeId) ir.TypedId {
	null := meta.GetConstantNull(typ)
	return ir.TypedId{Id: ir.ConstId(null), Type: typ}
}
