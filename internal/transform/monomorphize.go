package transform

import "shadeir/internal/ir"

// MonomorphizeOptions gates which argument shapes are considered unsupported
// on the eventual target and therefore require specializing the callee
// (§4.4.4). The field names mirror the driver's per-generator flags (§6).
type MonomorphizeOptions struct {
	StructContainingSamplers     bool
	Image                        bool
	AtomicCounter                bool
	ArrayOfArrayOfSamplerOrImage bool
	PixelLocalStorage            bool
}

// accessStep is one link of an access chain from an opaque global uniform
// down to the argument passed at a call site.
type accessStep struct {
	field   *int     // AccessStructField
	index   *int     // AccessArrayElement / AccessVectorComponent with a constant index
	dynamic *ir.TypedId // AccessArrayElement with a non-constant index: becomes an extra scalar param
}

// MonomorphizeUnsupportedFunctions specializes callees at call sites whose
// argument cannot legally pass through a parameter on the target. The
// access chain from the opaque uniform down to the argument is split:
// constant indices/struct-field selects are baked into a preamble in the
// monomorphized body; non-constant indices become additional scalar
// parameters. Recursion continues until no callees need specialization; a
// work queue avoids revisiting processed functions, and the original
// function is dead-code-eliminated once every call site has been rewritten.
func MonomorphizeUnsupportedFunctions(irv *ir.IR, opts MonomorphizeOptions) {
	irv.Run(func(irv *ir.IR) {
		meta := irv.Meta
		queue := make([]ir.FunctionId, 0, meta.NumFunctions())
		for f := 0; f < meta.NumFunctions(); f++ {
			queue = append(queue, ir.FunctionId(f))
		}
		processed := map[ir.FunctionId]bool{}

		for len(queue) > 0 {
			fn := queue[0]
			queue = queue[1:]
			if processed[fn] || meta.Function(fn).IsDeadCodeEliminated {
				continue
			}
			processed[fn] = true

			entry := irv.EntryBlock(fn)
			walkCallsInBlock(meta, entry, func(callInst *ir.Instruction) {
				call := callInst.Op.(*ir.Call)
				callee := meta.Function(call.Function)
				idx, needs := firstUnsupportedParam(meta, callee, opts)
				if !needs {
					return
				}
				arg := call.Args[idx]
				chain, base, ok := decomposeAccessChain(meta, arg)
				if !ok {
					return
				}
				specialized := specializeCallee(meta, irv, call.Function, idx, base, chain)
				call.Function = specialized
				newArgs := append([]ir.TypedId{}, call.Args[:idx]...)
				newArgs = append(newArgs, call.Args[idx+1:]...)
				for _, step := range chain {
					if step.dynamic != nil {
						newArgs = append(newArgs, *step.dynamic)
					}
				}
				call.Args = newArgs
				queue = append(queue, specialized)
			})
		}

		markUnreferencedFunctionsDead(irv)
	})
}

// markUnreferencedFunctionsDead is the closing step of specialization: once
// call sites have been rewritten to target specialized callees, the
// original (and any intermediate specialized-but-superseded) function may
// have no remaining callers. Rather than tracking per-function caller
// counts through the loop above, which can change at any point as further
// call sites are rewritten, this does one fresh global reachability sweep
// from every live function's call sites once specialization has settled.
func markUnreferencedFunctionsDead(irv *ir.IR) {
	meta := irv.Meta
	referenced := map[ir.FunctionId]bool{}
	main, hasMain := meta.MainFunction()
	if hasMain {
		referenced[main] = true
	}
	for f := 0; f < meta.NumFunctions(); f++ {
		fn := ir.FunctionId(f)
		if meta.Function(fn).IsDeadCodeEliminated {
			continue
		}
		walkCallsInBlock(meta, irv.EntryBlock(fn), func(callInst *ir.Instruction) {
			referenced[callInst.Op.(*ir.Call).Function] = true
		})
	}
	for f := 0; f < meta.NumFunctions(); f++ {
		fn := ir.FunctionId(f)
		if hasMain && fn == main {
			continue
		}
		if !referenced[fn] {
			meta.Function(fn).IsDeadCodeEliminated = true
		}
	}
}

func walkCallsInBlock(meta *ir.Meta, b *ir.Block, fn func(*ir.Instruction)) {
	if b == nil {
		return
	}
	for _, inst := range b.Instructions {
		if inst.HasRegister {
			reg := meta.Instruction(inst.Register)
			if _, ok := reg.Op.(*ir.Call); ok {
				fn(reg)
			}
		}
	}
	for _, sub := range b.SubBlocks() {
		walkCallsInBlock(meta, sub, fn)
	}
	walkCallsInBlock(meta, b.MergeBlock, fn)
}

// firstUnsupportedParam returns the index of the first parameter whose
// pointee type requires monomorphization under opts.
func firstUnsupportedParam(meta *ir.Meta, fn *ir.Function, opts MonomorphizeOptions) (int, bool) {
	for i, p := range fn.Params {
		typ := meta.Variable(p.Variable).Type
		pointee := typ
		if meta.Type(typ).Tag == ir.TypeTagPointer {
			pointee = meta.Type(typ).Pointee
		}
		if needsMonomorphization(meta, pointee, opts) {
			return i, true
		}
	}
	return 0, false
}

func needsMonomorphization(meta *ir.Meta, t ir.TypeId, opts MonomorphizeOptions) bool {
	typ := meta.Type(t)
	switch typ.Tag {
	case ir.TypeTagImage:
		return opts.Image
	case ir.TypeTagScalar:
		return opts.AtomicCounter && typ.Basic == ir.TypeAtomicCounter
	case ir.TypeTagStruct:
		if !opts.StructContainingSamplers {
			return false
		}
		for _, f := range typ.Fields {
			if structContainsSampler(meta, f.Type) {
				return true
			}
		}
		return false
	case ir.TypeTagArray:
		if !opts.ArrayOfArrayOfSamplerOrImage {
			return false
		}
		elem := meta.Type(typ.ArrayElement)
		if elem.Tag != ir.TypeTagArray {
			return false
		}
		inner := meta.Type(elem.ArrayElement)
		return inner.Tag == ir.TypeTagImage
	default:
		return false
	}
}

func structContainsSampler(meta *ir.Meta, t ir.TypeId) bool {
	typ := meta.Type(t)
	switch typ.Tag {
	case ir.TypeTagImage:
		return typ.Image.Sampled
	case ir.TypeTagStruct:
		for _, f := range typ.Fields {
			if structContainsSampler(meta, f.Type) {
				return true
			}
		}
	}
	return false
}

// decomposeAccessChain walks backward from arg's producing Access*
// instruction chain to the root variable, collecting one accessStep per
// link, innermost first. ok is false if arg is not a pure access chain
// (e.g. it came from a Call or Load of a non-opaque value), in which case
// monomorphization cannot proceed for this call site.
func decomposeAccessChain(meta *ir.Meta, arg ir.TypedId) ([]accessStep, ir.Id, bool) {
	var steps []accessStep
	cur := arg
	for cur.Id.Kind == ir.IdRegister {
		reg := meta.Instruction(cur.Id.Register)
		switch o := reg.Op.(type) {
		case *ir.AccessStructField:
			f := o.Field
			steps = append([]accessStep{{field: &f}}, steps...)
			cur = o.Base
		case *ir.AccessArrayElement:
			if o.Index.Id.Kind == ir.IdConstant {
				c := meta.Constant(o.Index.Id.Constant)
				idx := int(c.IntVal)
				steps = append([]accessStep{{index: &idx}}, steps...)
			} else {
				dyn := o.Index
				steps = append([]accessStep{{dynamic: &dyn}}, steps...)
			}
			cur = o.Base
		default:
			return nil, ir.Id{}, false
		}
	}
	if cur.Id.Kind != ir.IdVariable {
		return nil, ir.Id{}, false
	}
	return steps, cur.Id, true
}

// specializeCallee duplicates fn's body, dropping its paramIdx-th
// parameter, and prepends a preamble that re-derives the access chain from
// base (the opaque uniform) down to the original argument, binding dynamic
// index steps to freshly added scalar parameters. Every reference to the
// removed parameter's variable inside the duplicated body is then rebound
// to the reconstructed chain's final pointer.
func specializeCallee(meta *ir.Meta, irv *ir.IR, fn ir.FunctionId, paramIdx int, base ir.Id, chain []accessStep) ir.FunctionId {
	orig := meta.Function(fn)
	origParamVar := orig.Params[paramIdx].Variable

	newParams := make([]ir.Param, 0, len(orig.Params))
	for i, p := range orig.Params {
		if i != paramIdx {
			newParams = append(newParams, p)
		}
	}
	extraParamVars := make([]ir.VariableId, 0)
	for _, step := range chain {
		if step.dynamic != nil {
			v := meta.DeclareVariable(ir.Variable{
				Name:       "index",
				NameSource: ir.NameSourceTemporary,
				Type:       meta.InternPointer(step.dynamic.Type),
				Precision:  step.dynamic.Precision,
				Scope:      ir.ScopeFunctionParam,
			})
			extraParamVars = append(extraParamVars, v)
			newParams = append(newParams, ir.Param{Variable: v, Direction: ir.ParamIn})
		}
	}

	specialized := ir.Function{
		Name:             orig.Name + "_mono",
		Params:           newParams,
		ReturnType:       orig.ReturnType,
		ReturnPrecision:  orig.ReturnPrecision,
		ReturnDecoration: orig.ReturnDecoration,
	}
	newId := meta.DeclareFunction(specialized)

	// origParamVar is bound to itself rather than left to DuplicateBlock's
	// default fresh-copy treatment: it is no longer one of the specialized
	// function's parameters, but its variable id still appears throughout
	// the duplicated body until the rewrite below replaces every use.
	body := DuplicateBlock(meta, irv.EntryBlock(fn), VarMap{origParamVar: origParamVar})

	preamble, reconstructed := buildAccessChainPreamble(meta, base, chain, extraParamVars)
	body.Instructions = append(preamble, body.Instructions...)

	rewriteVariableReferences(meta, body, origParamVar, reconstructed)

	irv.SetEntryBlock(newId, body)
	return newId
}

// buildAccessChainPreamble emits the instruction sequence that re-derives
// the call site's argument from base, applying chain in order. A constant
// index or struct field select is baked directly into the chain; a dynamic
// index is loaded from its corresponding entry in paramVars (populated in
// the same order buildAccessChainPreamble's caller declared them) before
// being used to index. Returns the preamble and the final pointer operand
// standing in for the original parameter.
func buildAccessChainPreamble(meta *ir.Meta, base ir.Id, chain []accessStep, paramVars []ir.VariableId) ([]ir.BlockInstruction, ir.TypedId) {
	cur := ir.TypedId{Id: base, Type: meta.Variable(base.Variable).Type}
	var out []ir.BlockInstruction
	dynIdx := 0

	for _, step := range chain {
		pointee := meta.Type(cur.Type).Pointee
		pointeeType := meta.Type(pointee)

		switch {
		case step.field != nil:
			fieldType := pointeeType.Fields[*step.field].Type
			resultType := meta.InternPointer(fieldType)
			reg := meta.NewRegister(&ir.AccessStructField{Pointer: true, Base: cur, Field: *step.field}, resultType, ir.PrecisionNotApplicable)
			out = append(out, ir.RegInst(reg.Id.Register))
			cur = ir.TypedId{Id: reg.Id, Type: resultType}

		case step.index != nil:
			resultType := meta.InternPointer(pointeeType.ArrayElement)
			idxConst := meta.InternInt(ir.TypeInt, int64(*step.index))
			index := ir.TypedId{Id: ir.ConstId(idxConst), Type: ir.TypeInt}
			reg := meta.NewRegister(&ir.AccessArrayElement{Pointer: true, Base: cur, Index: index}, resultType, ir.PrecisionNotApplicable)
			out = append(out, ir.RegInst(reg.Id.Register))
			cur = ir.TypedId{Id: reg.Id, Type: resultType}

		default: // step.dynamic != nil
			paramVar := paramVars[dynIdx]
			dynIdx++
			load := meta.NewRegister(&ir.Load{Ptr: ir.TypedId{Id: ir.VarId(paramVar), Type: meta.Variable(paramVar).Type, Precision: step.dynamic.Precision}}, step.dynamic.Type, step.dynamic.Precision)
			out = append(out, ir.RegInst(load.Id.Register))

			resultType := meta.InternPointer(pointeeType.ArrayElement)
			index := ir.TypedId{Id: load.Id, Type: step.dynamic.Type, Precision: step.dynamic.Precision}
			reg := meta.NewRegister(&ir.AccessArrayElement{Pointer: true, Base: cur, Index: index}, resultType, ir.PrecisionNotApplicable)
			out = append(out, ir.RegInst(reg.Id.Register))
			cur = ir.TypedId{Id: reg.Id, Type: resultType}
		}
	}

	return out, cur
}

// rewriteVariableReferences substitutes every TypedId operand across b's
// whole block tree whose id names oldVar with replacement's id, preserving
// the use site's own Type/Precision. This mirrors dealias.go's alias-id
// substitution, keyed on a variable id instead of a register alias map.
func rewriteVariableReferences(meta *ir.Meta, b *ir.Block, oldVar ir.VariableId, replacement ir.TypedId) {
	if b == nil {
		return
	}
	rewriteId := func(id ir.Id) ir.Id {
		if id.Kind == ir.IdVariable && id.Variable == oldVar {
			return replacement.Id
		}
		return id
	}
	rewriteTypedId := func(t ir.TypedId) ir.TypedId {
		t.Id = rewriteId(t.Id)
		return t
	}
	rewriteOptTypedId := func(t *ir.TypedId) *ir.TypedId {
		if t == nil {
			return nil
		}
		v := rewriteTypedId(*t)
		return &v
	}

	for i, inst := range b.Instructions {
		if inst.HasRegister {
			reg := meta.Instruction(inst.Register)
			reg.Op = rewriteOpTypedIds(reg.Op, rewriteId, rewriteTypedId, rewriteOptTypedId)
		} else {
			b.Instructions[i].Inline = rewriteOpTypedIds(inst.Inline, rewriteId, rewriteTypedId, rewriteOptTypedId)
		}
	}
	for _, sub := range b.SubBlocks() {
		rewriteVariableReferences(meta, sub, oldVar, replacement)
	}
	rewriteVariableReferences(meta, b.MergeBlock, oldVar, replacement)
}

// rewriteOpTypedIds is the exhaustive per-opcode operand rewrite, applying
// rewriteId/rewriteTypedId/rewriteOptTypedId to every TypedId/Id-typed
// operand of op.
func rewriteOpTypedIds(op ir.OpCode, rewriteId func(ir.Id) ir.Id, rewriteTypedId func(ir.TypedId) ir.TypedId, rewriteOptTypedId func(*ir.TypedId) *ir.TypedId) ir.OpCode {
	switch o := op.(type) {
	case *ir.Return:
		o.Value = rewriteOptTypedId(o.Value)
	case *ir.Merge:
		o.Value = rewriteOptTypedId(o.Value)
	case *ir.If:
		o.Cond = rewriteTypedId(o.Cond)
	case *ir.LoopIf:
		o.Cond = rewriteTypedId(o.Cond)
	case *ir.Switch:
		o.Value = rewriteTypedId(o.Value)
	case *ir.AccessVectorComponent:
		o.Base = rewriteTypedId(o.Base)
	case *ir.AccessVectorSwizzle:
		o.Base = rewriteTypedId(o.Base)
	case *ir.AccessVectorDynamic:
		o.Base = rewriteTypedId(o.Base)
		o.Index = rewriteTypedId(o.Index)
	case *ir.AccessMatrixColumn:
		o.Base = rewriteTypedId(o.Base)
		o.Column = rewriteTypedId(o.Column)
	case *ir.AccessStructField:
		o.Base = rewriteTypedId(o.Base)
	case *ir.AccessArrayElement:
		o.Base = rewriteTypedId(o.Base)
		o.Index = rewriteTypedId(o.Index)
	case *ir.ConstructScalar:
		o.Source = rewriteTypedId(o.Source)
	case *ir.ConstructSplat:
		o.Source = rewriteTypedId(o.Source)
	case *ir.ConstructMatrixResize:
		o.Source = rewriteTypedId(o.Source)
	case *ir.ConstructComposite:
		for i := range o.Components {
			o.Components[i] = rewriteTypedId(o.Components[i])
		}
	case *ir.Load:
		o.Ptr = rewriteTypedId(o.Ptr)
	case *ir.Store:
		o.Ptr = rewriteTypedId(o.Ptr)
		o.Value = rewriteTypedId(o.Value)
	case *ir.Alias:
		o.Source = rewriteId(o.Source)
	case *ir.Call:
		for i := range o.Args {
			o.Args[i] = rewriteTypedId(o.Args[i])
		}
	case *ir.Unary:
		o.Operand = rewriteTypedId(o.Operand)
	case *ir.Binary:
		o.Lhs = rewriteTypedId(o.Lhs)
		o.Rhs = rewriteTypedId(o.Rhs)
	case *ir.BuiltIn_:
		for i := range o.Args {
			o.Args[i] = rewriteTypedId(o.Args[i])
		}
	case *ir.Texture:
		o.Sampler = rewriteTypedId(o.Sampler)
		o.Coord = rewriteTypedId(o.Coord)
		o.Offset = rewriteOptTypedId(o.Offset)
		o.Compare = rewriteOptTypedId(o.Compare)
		o.Lod = rewriteOptTypedId(o.Lod)
		o.Bias = rewriteOptTypedId(o.Bias)
		o.Dx = rewriteOptTypedId(o.Dx)
		o.Dy = rewriteOptTypedId(o.Dy)
		o.RefZ = rewriteOptTypedId(o.RefZ)
	}
	return op
}
