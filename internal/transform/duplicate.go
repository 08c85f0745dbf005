package transform

import "shadeir/internal/ir"

// VarMap is a caller-supplied pre-binding of old variable ids to specific
// replacement ids, used by monomorphization's entry path to bind a
// function's parameter variable to the accessed pointer at the call site.
type VarMap map[ir.VariableId]ir.VariableId

// duplicator carries the fresh-id maps built up while recursively
// rebuilding a block tree (§4.4.9).
type duplicator struct {
	meta *ir.Meta
	regs map[ir.RegisterId]ir.RegisterId
	vars map[ir.VariableId]ir.VariableId
}

// DuplicateBlock recursively rebuilds the block tree rooted at src,
// mapping every register and variable id encountered to a fresh one and
// carrying over block-local variables, which must be temporary-sourced.
// varMap may pre-bind some ids (typically function parameters) to specific
// replacement ids rather than fresh ones.
func DuplicateBlock(meta *ir.Meta, src *ir.Block, varMap VarMap) *ir.Block {
	d := &duplicator{meta: meta, regs: map[ir.RegisterId]ir.RegisterId{}, vars: map[ir.VariableId]ir.VariableId{}}
	for k, v := range varMap {
		d.vars[k] = v
	}
	return d.block(src)
}

func (d *duplicator) freshVariable(old ir.VariableId) ir.VariableId {
	if v, ok := d.vars[old]; ok {
		return v
	}
	orig := *d.meta.Variable(old)
	if orig.NameSource != ir.NameSourceTemporary {
		// Block-local variables being duplicated must be temporary-sourced
		// (§4.4.9); shader-interface/internal-exact variables are shared,
		// not duplicated, so map them to themselves.
		d.vars[old] = old
		return old
	}
	fresh := d.meta.DeclareVariable(orig)
	d.vars[old] = fresh
	return fresh
}

func (d *duplicator) remapId(id ir.Id) ir.Id {
	switch id.Kind {
	case ir.IdRegister:
		return ir.RegId(d.remapRegister(id.Register))
	case ir.IdVariable:
		return ir.VarId(d.freshVariable(id.Variable))
	default:
		return id
	}
}

func (d *duplicator) remapTypedId(t ir.TypedId) ir.TypedId {
	t.Id = d.remapId(t.Id)
	return t
}

func (d *duplicator) remapOptTypedId(t *ir.TypedId) *ir.TypedId {
	if t == nil {
		return nil
	}
	v := d.remapTypedId(*t)
	return &v
}

// remapRegister returns the fresh register standing in for old, allocating
// one (by re-emitting old's instruction with remapped operands) the first
// time old is seen.
func (d *duplicator) remapRegister(old ir.RegisterId) ir.RegisterId {
	if r, ok := d.regs[old]; ok {
		return r
	}
	orig := *d.meta.Instruction(old)
	fresh := d.meta.NewRegister(d.remapOp(orig.Op), orig.ResultType, orig.ResultPrecision)
	d.regs[old] = fresh.Id.Register
	return fresh.Id.Register
}

func (d *duplicator) remapOp(op ir.OpCode) ir.OpCode {
	switch o := op.(type) {
	case *ir.Return:
		return &ir.Return{Value: d.remapOptTypedId(o.Value)}
	case *ir.Merge:
		return &ir.Merge{Value: d.remapOptTypedId(o.Value)}
	case *ir.If:
		return &ir.If{Cond: d.remapTypedId(o.Cond)}
	case *ir.LoopIf:
		return &ir.LoopIf{Cond: d.remapTypedId(o.Cond)}
	case *ir.Switch:
		return &ir.Switch{Value: d.remapTypedId(o.Value), Cases: o.Cases}
	case *ir.AccessVectorComponent:
		return &ir.AccessVectorComponent{Pointer: o.Pointer, Base: d.remapTypedId(o.Base), Index: o.Index}
	case *ir.AccessVectorSwizzle:
		return &ir.AccessVectorSwizzle{Pointer: o.Pointer, Base: d.remapTypedId(o.Base), Indices: o.Indices}
	case *ir.AccessVectorDynamic:
		return &ir.AccessVectorDynamic{Pointer: o.Pointer, Base: d.remapTypedId(o.Base), Index: d.remapTypedId(o.Index)}
	case *ir.AccessMatrixColumn:
		return &ir.AccessMatrixColumn{Pointer: o.Pointer, Base: d.remapTypedId(o.Base), Column: d.remapTypedId(o.Column)}
	case *ir.AccessStructField:
		return &ir.AccessStructField{Pointer: o.Pointer, Base: d.remapTypedId(o.Base), Field: o.Field}
	case *ir.AccessArrayElement:
		return &ir.AccessArrayElement{Pointer: o.Pointer, Base: d.remapTypedId(o.Base), Index: d.remapTypedId(o.Index)}
	case *ir.ConstructScalar:
		return &ir.ConstructScalar{Source: d.remapTypedId(o.Source)}
	case *ir.ConstructSplat:
		return &ir.ConstructSplat{Source: d.remapTypedId(o.Source)}
	case *ir.ConstructMatrixResize:
		return &ir.ConstructMatrixResize{Source: d.remapTypedId(o.Source)}
	case *ir.ConstructComposite:
		comps := make([]ir.TypedId, len(o.Components))
		for i, c := range o.Components {
			comps[i] = d.remapTypedId(c)
		}
		return &ir.ConstructComposite{Components: comps}
	case *ir.Load:
		return &ir.Load{Ptr: d.remapTypedId(o.Ptr)}
	case *ir.Store:
		return &ir.Store{Ptr: d.remapTypedId(o.Ptr), Value: d.remapTypedId(o.Value)}
	case *ir.Alias:
		return &ir.Alias{Source: d.remapId(o.Source)}
	case *ir.Call:
		args := make([]ir.TypedId, len(o.Args))
		for i, a := range o.Args {
			args[i] = d.remapTypedId(a)
		}
		return &ir.Call{Function: o.Function, Args: args}
	case *ir.Unary:
		return &ir.Unary{Op: o.Op, Operand: d.remapTypedId(o.Operand)}
	case *ir.Binary:
		return &ir.Binary{Op: o.Op, Lhs: d.remapTypedId(o.Lhs), Rhs: d.remapTypedId(o.Rhs)}
	case *ir.BuiltIn_:
		args := make([]ir.TypedId, len(o.Args))
		for i, a := range o.Args {
			args[i] = d.remapTypedId(a)
		}
		return &ir.BuiltIn_{Op: o.Op, Args: args}
	case *ir.Texture:
		cp := *o
		cp.Sampler = d.remapTypedId(o.Sampler)
		cp.Coord = d.remapTypedId(o.Coord)
		cp.Offset = d.remapOptTypedId(o.Offset)
		cp.Compare = d.remapOptTypedId(o.Compare)
		cp.Lod = d.remapOptTypedId(o.Lod)
		cp.Bias = d.remapOptTypedId(o.Bias)
		cp.Dx = d.remapOptTypedId(o.Dx)
		cp.Dy = d.remapOptTypedId(o.Dy)
		cp.RefZ = d.remapOptTypedId(o.RefZ)
		return &cp
	default:
		return op // terminators with no operands: Discard, Break, Continue, Passthrough, NextBlock, Loop, DoLoop
	}
}

func (d *duplicator) block(src *ir.Block) *ir.Block {
	if src == nil {
		return nil
	}
	fresh := &ir.Block{}
	for _, v := range src.Variables {
		fresh.Variables = append(fresh.Variables, d.freshVariable(v))
	}
	if src.Input != nil {
		r := d.remapRegister(*src.Input)
		fresh.Input = &r
	}
	for _, inst := range src.Instructions {
		if inst.HasRegister {
			fresh.Instructions = append(fresh.Instructions, ir.RegInst(d.remapRegister(inst.Register)))
		} else {
			fresh.Instructions = append(fresh.Instructions, ir.InlineInst(d.remapOp(inst.Inline)))
		}
	}
	fresh.LoopCondition = d.block(src.LoopCondition)
	fresh.Block1 = d.block(src.Block1)
	fresh.Block2 = d.block(src.Block2)
	for _, c := range src.CaseBlocks {
		fresh.CaseBlocks = append(fresh.CaseBlocks, d.block(c))
	}
	fresh.MergeBlock = d.block(src.MergeBlock)
	return fresh
}
