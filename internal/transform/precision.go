package transform

import "shadeir/internal/ir"

// PropagatePrecision derives a precision for every register that does not
// already carry one, by repeated passes over every function's blocks until
// a pass changes nothing (§4.4.3). Built-ins with a dominant operand
// (texture samplers) take the sampler's precision; call results take the
// callee's declared return precision; Store(ptr, value) pushes the
// pointer's precision down to the value's register, and Return(value) and
// Merge(value) push the value's own use-site precision down to its
// register. Symmetric binary ops take the higher of their operands.
// Merge-block input registers get no precision from the feeding
// Merge(value), and image-store and PLS built-ins push nothing from their
// pointer. A register that is still unset after the last pass is a
// stranded register and defaults to high precision.
func PropagatePrecision(irv *ir.IR) {
	irv.Run(func(irv *ir.IR) {
		meta := irv.Meta
		changed := true
		for changed {
			changed = false
			for _, entry := range irv.FunctionEntries {
				if propagateBlock(meta, entry) {
					changed = true
				}
			}
		}
		strandDefaults(meta)
	})
}

func propagateBlock(meta *ir.Meta, b *ir.Block) bool {
	if b == nil {
		return false
	}
	changed := false
	for _, inst := range b.Instructions {
		if !inst.HasRegister {
			if propagateVoid(meta, inst.Inline) {
				changed = true
			}
			continue
		}
		reg := meta.Instruction(inst.Register)
		if resolvePrecision(meta, reg) {
			changed = true
		}
	}
	for _, sub := range b.SubBlocks() {
		if propagateBlock(meta, sub) {
			changed = true
		}
	}
	if propagateBlock(meta, b.MergeBlock) {
		changed = true
	}
	return changed
}

// resolvePrecision assigns reg.ResultPrecision if it is still unset and a
// rule applies, returning whether anything changed.
func resolvePrecision(meta *ir.Meta, reg *ir.Instruction) bool {
	if reg.ResultPrecision != ir.PrecisionNotApplicable {
		return false
	}
	if !meta.IsPrecisionApplicable(reg.ResultType) {
		return false
	}

	switch o := reg.Op.(type) {
	case *ir.Call:
		fn := meta.Function(o.Function)
		if fn.ReturnPrecision != ir.PrecisionNotApplicable {
			reg.ResultPrecision = fn.ReturnPrecision
			return true
		}
	case *ir.Texture:
		if p := operandPrecision(meta, o.Sampler); p != ir.PrecisionNotApplicable {
			reg.ResultPrecision = p
			return true
		}
	case *ir.Binary:
		lp, rp := operandPrecision(meta, o.Lhs), operandPrecision(meta, o.Rhs)
		if h := ir.Higher(lp, rp); h != ir.PrecisionNotApplicable {
			reg.ResultPrecision = h
			return true
		}
	case *ir.Unary:
		if p := operandPrecision(meta, o.Operand); p != ir.PrecisionNotApplicable {
			reg.ResultPrecision = p
			return true
		}
	case *ir.Load:
		if p := pointerPrecision(meta, o.Ptr); p != ir.PrecisionNotApplicable {
			reg.ResultPrecision = p
			return true
		}
	case *ir.BuiltIn_:
		best := ir.PrecisionNotApplicable
		for _, a := range o.Args {
			best = ir.Higher(best, operandPrecision(meta, a))
		}
		if best != ir.PrecisionNotApplicable {
			reg.ResultPrecision = best
			return true
		}
	case *ir.ConstructScalar:
		if p := operandPrecision(meta, o.Source); p != ir.PrecisionNotApplicable {
			reg.ResultPrecision = p
			return true
		}
	case *ir.ConstructSplat:
		if p := operandPrecision(meta, o.Source); p != ir.PrecisionNotApplicable {
			reg.ResultPrecision = p
			return true
		}
	case *ir.ConstructMatrixResize:
		if p := operandPrecision(meta, o.Source); p != ir.PrecisionNotApplicable {
			reg.ResultPrecision = p
			return true
		}
	case *ir.ConstructComposite:
		best := ir.PrecisionNotApplicable
		for _, c := range o.Components {
			best = ir.Higher(best, operandPrecision(meta, c))
		}
		if best != ir.PrecisionNotApplicable {
			reg.ResultPrecision = best
			return true
		}
	}
	return false
}

// propagateVoid handles the terminators/stores whose own "result" has no
// precision, but which push an expected precision down onto an operand
// register that is still unassigned.
func propagateVoid(meta *ir.Meta, op ir.OpCode) bool {
	switch o := op.(type) {
	case *ir.Return:
		if o.Value != nil {
			return pushPrecisionTo(meta, *o.Value, func() ir.Precision { return o.Value.Precision })
		}
	case *ir.Store:
		return pushPrecisionTo(meta, o.Value, func() ir.Precision { return pointerPrecision(meta, o.Ptr) })
	case *ir.Merge:
		if o.Value != nil {
			return pushPrecisionTo(meta, *o.Value, func() ir.Precision { return o.Value.Precision })
		}
	}
	return false
}

// pushPrecisionTo assigns want() to operand.Id's register if that register
// still has no precision resolved.
func pushPrecisionTo(meta *ir.Meta, operand ir.TypedId, want func() ir.Precision) bool {
	if operand.Id.Kind != ir.IdRegister {
		return false
	}
	reg := meta.Instruction(operand.Id.Register)
	if reg.ResultPrecision != ir.PrecisionNotApplicable {
		return false
	}
	if p := want(); p != ir.PrecisionNotApplicable {
		reg.ResultPrecision = p
		return true
	}
	return false
}

// operandPrecision resolves a typed id's effective precision: its own
// use-site precision if set, else (for registers) whatever the producing
// instruction currently carries.
func operandPrecision(meta *ir.Meta, t ir.TypedId) ir.Precision {
	if t.Precision != ir.PrecisionNotApplicable {
		return t.Precision
	}
	if t.Id.Kind == ir.IdRegister {
		return meta.Instruction(t.Id.Register).ResultPrecision
	}
	return ir.PrecisionNotApplicable
}

// pointerPrecision resolves the precision that loads/stores through ptr
// should use: the pointer operand's own use-site precision, or (for
// variables) the variable's declared precision.
func pointerPrecision(meta *ir.Meta, ptr ir.TypedId) ir.Precision {
	if ptr.Precision != ir.PrecisionNotApplicable {
		return ptr.Precision
	}
	if ptr.Id.Kind == ir.IdVariable {
		return meta.Variable(ptr.Id.Variable).Precision
	}
	return ir.PrecisionNotApplicable
}

// strandDefaults assigns high precision to every precision-applicable
// register that the fixed-point loop above left unset (§4.4.3, and the
// open question in §9 about whether this should instead be an invariant
// violation: this module follows the documented default-to-high policy).
func strandDefaults(meta *ir.Meta) {
	for r := 0; r < meta.NumInstructions(); r++ {
		reg := meta.Instruction(ir.RegisterId(r))
		if reg.ResultPrecision == ir.PrecisionNotApplicable && meta.IsPrecisionApplicable(reg.ResultType) {
			reg.ResultPrecision = ir.PrecisionHigh
		}
	}
}
