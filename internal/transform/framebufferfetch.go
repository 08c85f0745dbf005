package transform

import "shadeir/internal/ir"

// RemoveUnusedFramebufferFetch scans main() for channel-level writes
// (tracking a 4-bit mask per variable, accumulated only from stores
// directly inside main, non-nested) and any-scope reads. If the shader has
// no discard, a fragment inout that is fully written and never read is
// narrowed to plain out (§4.4.6). The channel-mask heuristic is
// intentionally conservative about nested control flow per the open
// question in §9: only direct, unconditional stores in main count.
func RemoveUnusedFramebufferFetch(irv *ir.IR) {
	irv.Run(func(irv *ir.IR) {
		meta := irv.Meta
		main, ok := meta.MainFunction()
		if !ok {
			return
		}

		hasDiscard := false
		anyScopeReads := map[ir.VariableId]bool{}
		for _, entry := range irv.FunctionEntries {
			scanForDiscardAndReads(meta, entry, &hasDiscard, anyScopeReads)
		}
		if hasDiscard {
			return
		}

		writeMasks := map[ir.VariableId]uint8{}
		scanMainWritesDirect(meta, irv.EntryBlock(main), writeMasks)

		for v, mask := range writeMasks {
			variable := meta.Variable(v)
			if variable.Decoration != ir.DecorationInputOutput {
				continue
			}
			if anyScopeReads[v] {
				continue
			}
			if mask == fullChannelMask(meta, variable.Type) {
				variable.Decoration = ir.DecorationOutput
			}
		}
	})
}

func fullChannelMask(meta *ir.Meta, ptrType ir.TypeId) uint8 {
	pointee := meta.Type(ptrType).Pointee
	typ := meta.Type(pointee)
	if typ.Tag == ir.TypeTagVector {
		return uint8(1<<typ.VectorSize) - 1
	}
	return 1
}

func scanForDiscardAndReads(meta *ir.Meta, b *ir.Block, hasDiscard *bool, reads map[ir.VariableId]bool) {
	if b == nil {
		return
	}
	for _, inst := range b.Instructions {
		op := inst.Op(meta)
		if _, ok := op.(*ir.Discard); ok {
			*hasDiscard = true
		}
		if ld, ok := op.(*ir.Load); ok && ld.Ptr.Id.Kind == ir.IdVariable {
			reads[ld.Ptr.Id.Variable] = true
		}
		if st, ok := op.(*ir.Store); ok && st.Value.Id.Kind == ir.IdVariable {
			reads[st.Value.Id.Variable] = true
		}
	}
	for _, sub := range b.SubBlocks() {
		scanForDiscardAndReads(meta, sub, hasDiscard, reads)
	}
	scanForDiscardAndReads(meta, b.MergeBlock, hasDiscard, reads)
}

// scanMainWritesDirect accumulates channel write masks only for Store
// instructions that appear directly in b (not inside any nested
// control-flow sub-block), per §4.4.6's documented conservatism.
func scanMainWritesDirect(meta *ir.Meta, b *ir.Block, masks map[ir.VariableId]uint8) {
	if b == nil {
		return
	}
	for _, inst := range b.Instructions {
		st, ok := inst.Op(meta).(*ir.Store)
		if !ok {
			continue
		}
		switch ptrOp := resolveProducer(meta, st.Ptr); p := ptrOp.(type) {
		case *ir.AccessVectorComponent:
			if p.Base.Id.Kind == ir.IdVariable {
				masks[p.Base.Id.Variable] |= 1 << uint(p.Index)
			}
		default:
			if st.Ptr.Id.Kind == ir.IdVariable {
				masks[st.Ptr.Id.Variable] |= fullChannelMask(meta, meta.Variable(st.Ptr.Id.Variable).Type)
			}
		}
	}
}

func resolveProducer(meta *ir.Meta, t ir.TypedId) ir.OpCode {
	if t.Id.Kind != ir.IdRegister {
		return nil
	}
	return meta.Instruction(t.Id.Register).Op
}
