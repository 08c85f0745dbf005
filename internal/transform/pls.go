package transform

import "shadeir/internal/ir"

// RewritePixelLocalStorage lowers reads and writes of an
// ANGLE_shader_pixel_local_storage plane variable into explicit image-load
// and image-store built-ins. Full coherent-vs-non-coherent barrier
// insertion (the original's per-extension fence sequencing) is left as
// this pass's documented scope boundary: every store here is followed by a
// single MemoryBarrier, which is correct for the non-coherent path only.
func RewritePixelLocalStorage(irv *ir.IR) {
	irv.Run(func(irv *ir.IR) {
		meta := irv.Meta
		planes := map[ir.VariableId]bool{}
		for v := 0; v < meta.NumVariables(); v++ {
			variable := meta.Variable(ir.VariableId(v))
			if variable.Decoration == ir.DecorationPixelLocalStorage {
				planes[ir.VariableId(v)] = true
			}
		}
		if len(planes) == 0 {
			return
		}
		for _, entry := range irv.FunctionEntries {
			rewritePLSBlock(meta, entry, planes)
		}
	})
}

func rewritePLSBlock(meta *ir.Meta, b *ir.Block, planes map[ir.VariableId]bool) {
	if b == nil {
		return
	}
	for i := 0; i < len(b.Instructions); i++ {
		inst := b.Instructions[i]
		if inst.HasRegister {
			reg := meta.Instruction(inst.Register)
			if ld, ok := reg.Op.(*ir.Load); ok && ld.Ptr.Id.Kind == ir.IdVariable && planes[ld.Ptr.Id.Variable] {
				reg.Op = &ir.BuiltIn_{Op: ir.BuiltInImageLoad, Args: []ir.TypedId{ld.Ptr}}
			}
			continue
		}
		if st, ok := inst.Inline.(*ir.Store); ok && st.Ptr.Id.Kind == ir.IdVariable && planes[st.Ptr.Id.Variable] {
			store := meta.NewRegister(&ir.BuiltIn_{Op: ir.BuiltInImageStore, Args: []ir.TypedId{st.Ptr, st.Value}}, ir.TypeVoid, ir.PrecisionNotApplicable)
			barrier := meta.NewRegister(&ir.BuiltIn_{Op: ir.BuiltInMemoryBarrier}, ir.TypeVoid, ir.PrecisionNotApplicable)
			replacement := []ir.BlockInstruction{ir.RegInst(store.Id.Register), ir.RegInst(barrier.Id.Register)}
			b.Instructions = append(b.Instructions[:i], append(replacement, b.Instructions[i+1:]...)...)
			i += len(replacement) - 1
		}
	}
	for _, sub := range b.SubBlocks() {
		rewritePLSBlock(meta, sub, planes)
	}
	rewritePLSBlock(meta, b.MergeBlock, planes)
}
