package transform

import "shadeir/internal/ir"

// PruneUnusedVariables is a three-phase dead-code elimination (§4.4.2):
//  1. mark referenced types/constants/variables by scanning every
//     instruction's operands and switch-case constants; function
//     parameters and variables carrying any decoration or built-in tag are
//     marked live unconditionally, since reflection is not collected here;
//  2. propagate liveness transitively through variable types/initializers,
//     composite-constant components, and struct-field/array-element/
//     pointer-pointee types;
//  3. mark everything not reached as dead-code-eliminated. Predefined ids
//     are never eliminated.
func PruneUnusedVariables(irv *ir.IR) {
	irv.Run(func(irv *ir.IR) {
		live := newLiveSet()

		for fn := range irv.Meta.NumFunctions() {
			f := irv.Meta.Function(ir.FunctionId(fn))
			if f.IsDeadCodeEliminated {
				continue
			}
			for _, p := range f.Params {
				live.variables[p.Variable] = true
			}
			live.types[f.ReturnType] = true
		}

		for v := 0; v < irv.Meta.NumVariables(); v++ {
			variable := irv.Meta.Variable(ir.VariableId(v))
			if variable.IsDeadCodeEliminated {
				continue
			}
			if variable.HasDecorationOrBuiltIn() {
				live.variables[ir.VariableId(v)] = true
			}
		}

		for _, entry := range irv.FunctionEntries {
			markBlock(irv.Meta, entry, live)
		}

		propagateLiveness(irv.Meta, live)

		eliminateDead(irv.Meta, live)
	})
}

type liveSet struct {
	types     map[ir.TypeId]bool
	constants map[ir.ConstantId]bool
	variables map[ir.VariableId]bool
}

func newLiveSet() *liveSet {
	return &liveSet{
		types:     map[ir.TypeId]bool{},
		constants: map[ir.ConstantId]bool{},
		variables: map[ir.VariableId]bool{},
	}
}

func markBlock(meta *ir.Meta, b *ir.Block, live *liveSet) {
	if b == nil {
		return
	}
	// declared-in-scope variables (b.Variables) are only marked live if
	// actually referenced by an instruction below, not merely declared.
	for _, inst := range b.Instructions {
		op := inst.Op(meta)
		markOpOperands(meta, op, live)
		if sw, ok := op.(*ir.Switch); ok {
			for _, c := range sw.Cases {
				if c != nil {
					live.constants[*c] = true
				}
			}
		}
	}
	for _, sub := range b.SubBlocks() {
		markBlock(meta, sub, live)
	}
	markBlock(meta, b.MergeBlock, live)
}

func markId(id ir.Id, live *liveSet) {
	switch id.Kind {
	case ir.IdConstant:
		live.constants[id.Constant] = true
	case ir.IdVariable:
		live.variables[id.Variable] = true
	}
}

func markTypedId(t ir.TypedId, live *liveSet) {
	markId(t.Id, live)
	live.types[t.Type] = true
}

func markOptTypedId(t *ir.TypedId, live *liveSet) {
	if t != nil {
		markTypedId(*t, live)
	}
}

func markOpOperands(meta *ir.Meta, op ir.OpCode, live *liveSet) {
	switch o := op.(type) {
	case *ir.Return:
		markOptTypedId(o.Value, live)
	case *ir.Merge:
		markOptTypedId(o.Value, live)
	case *ir.If:
		markTypedId(o.Cond, live)
	case *ir.LoopIf:
		markTypedId(o.Cond, live)
	case *ir.Switch:
		markTypedId(o.Value, live)
	case *ir.AccessVectorComponent:
		markTypedId(o.Base, live)
	case *ir.AccessVectorSwizzle:
		markTypedId(o.Base, live)
	case *ir.AccessVectorDynamic:
		markTypedId(o.Base, live)
		markTypedId(o.Index, live)
	case *ir.AccessMatrixColumn:
		markTypedId(o.Base, live)
		markTypedId(o.Column, live)
	case *ir.AccessStructField:
		markTypedId(o.Base, live)
	case *ir.AccessArrayElement:
		markTypedId(o.Base, live)
		markTypedId(o.Index, live)
	case *ir.ConstructScalar:
		markTypedId(o.Source, live)
	case *ir.ConstructSplat:
		markTypedId(o.Source, live)
	case *ir.ConstructMatrixResize:
		markTypedId(o.Source, live)
	case *ir.ConstructComposite:
		for _, c := range o.Components {
			markTypedId(c, live)
		}
	case *ir.Load:
		markTypedId(o.Ptr, live)
	case *ir.Store:
		markTypedId(o.Ptr, live)
		markTypedId(o.Value, live)
	case *ir.Alias:
		markId(o.Source, live)
	case *ir.Call:
		for _, a := range o.Args {
			markTypedId(a, live)
		}
	case *ir.Unary:
		markTypedId(o.Operand, live)
	case *ir.Binary:
		markTypedId(o.Lhs, live)
		markTypedId(o.Rhs, live)
	case *ir.BuiltIn_:
		for _, a := range o.Args {
			markTypedId(a, live)
		}
	case *ir.Texture:
		markTypedId(o.Sampler, live)
		markTypedId(o.Coord, live)
		markOptTypedId(o.Offset, live)
		markOptTypedId(o.Compare, live)
		markOptTypedId(o.Lod, live)
		markOptTypedId(o.Bias, live)
		markOptTypedId(o.Dx, live)
		markOptTypedId(o.Dy, live)
		markOptTypedId(o.RefZ, live)
	}
}

// propagateLiveness runs to a fixed point, walking from every currently
// live variable/constant through its type/initializer/components to mark
// whatever they in turn reference.
func propagateLiveness(meta *ir.Meta, live *liveSet) {
	for {
		changed := false

		for v := range live.variables {
			if !live.types[meta.Variable(v).Type] {
				live.types[meta.Variable(v).Type] = true
				changed = true
			}
			variable := meta.Variable(v)
			if variable.Initializer != nil && !live.constants[*variable.Initializer] {
				live.constants[*variable.Initializer] = true
				changed = true
			}
		}

		for c := range live.constants {
			cst := meta.Constant(c)
			if !live.types[cst.Typ] {
				live.types[cst.Typ] = true
				changed = true
			}
			for _, comp := range cst.Components {
				if !live.constants[comp] {
					live.constants[comp] = true
					changed = true
				}
			}
		}

		for t := range live.types {
			if markTypeLive(meta, live.types, t) {
				changed = true
			}
		}

		if !changed {
			return
		}
	}
}

// markTypeLive marks t's structural children (element/pointee/field/array
// element types) live, returning whether anything new was marked.
func markTypeLive(meta *ir.Meta, types map[ir.TypeId]bool, t ir.TypeId) bool {
	typ := meta.Type(t)
	changed := false
	mark := func(child ir.TypeId) {
		if !types[child] {
			types[child] = true
			changed = true
		}
	}
	switch typ.Tag {
	case ir.TypeTagVector, ir.TypeTagMatrix:
		mark(typ.Element)
	case ir.TypeTagArray:
		mark(typ.ArrayElement)
	case ir.TypeTagPointer:
		mark(typ.Pointee)
	case ir.TypeTagStruct:
		for _, f := range typ.Fields {
			mark(f.Type)
		}
	case ir.TypeTagImage:
		mark(typ.ImageBasic)
	}
	return changed
}

func eliminateDead(meta *ir.Meta, live *liveSet) {
	for v := 0; v < meta.NumVariables(); v++ {
		id := ir.VariableId(v)
		variable := meta.Variable(id)
		if !variable.IsDeadCodeEliminated && !live.variables[id] {
			variable.IsDeadCodeEliminated = true
		}
	}
	for t := 0; t < meta.NumTypes(); t++ {
		id := ir.TypeId(t)
		if ir.IsPredefinedType(id) || live.types[id] {
			continue
		}
		if meta.Type(id).Tag == ir.TypeTagDeadCodeEliminated {
			continue
		}
		meta.EliminateType(id)
	}
}
