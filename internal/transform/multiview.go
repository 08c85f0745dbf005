package transform

import "shadeir/internal/ir"

// EmulateMultiview covers the documented, testable slice of
// OVR_multiview/OVR_multiview2 emulation: on targets invoking the shader
// once per view via instancing rather than natively, a read of the
// gl_ViewID_OVR built-in is rewritten into a load from a view-count-sized
// array variable indexed by gl_InstanceID. Duplicating every
// gl_ViewID_OVR-dependent varying into its own per-view array (the
// original's full behavior) is out of scope here; only the gl_ViewID_OVR
// read-site rewrite is implemented.
func EmulateMultiview(irv *ir.IR, viewIdsArray ir.VariableId) {
	irv.Run(func(irv *ir.IR) {
		meta := irv.Meta
		viewID, ok := findBuiltInVariable(meta, ir.BuiltInViewIDOVR)
		if !ok {
			return
		}
		instanceID, ok := findBuiltInVariable(meta, ir.BuiltInInstanceID)
		if !ok {
			return
		}
		for _, entry := range irv.FunctionEntries {
			rewriteViewIDReads(meta, entry, viewID, instanceID, viewIdsArray)
		}
	})
}

func findBuiltInVariable(meta *ir.Meta, b ir.BuiltIn) (ir.VariableId, bool) {
	for v := 0; v < meta.NumVariables(); v++ {
		if meta.Variable(ir.VariableId(v)).BuiltIn == b {
			return ir.VariableId(v), true
		}
	}
	return 0, false
}

func rewriteViewIDReads(meta *ir.Meta, b *ir.Block, viewID, instanceID, viewIdsArray ir.VariableId) {
	if b == nil {
		return
	}
	for _, inst := range b.Instructions {
		if !inst.HasRegister {
			continue
		}
		reg := meta.Instruction(inst.Register)
		ld, ok := reg.Op.(*ir.Load)
		if !ok || ld.Ptr.Id.Kind != ir.IdVariable || ld.Ptr.Id.Variable != viewID {
			continue
		}
		arrayVar := meta.Variable(viewIdsArray)
		arrayType := meta.Type(arrayVar.Type).Pointee
		elemType := meta.Type(arrayType).ArrayElement

		instance := meta.Variable(instanceID)
		idx := meta.NewRegister(&ir.Load{Ptr: ir.TypedId{Id: ir.VarId(instanceID), Type: instance.Type}}, ir.TypeInt, ir.PrecisionHigh)
		elemPtr := meta.NewRegister(&ir.AccessArrayElement{
			Pointer: true,
			Base:    ir.TypedId{Id: ir.VarId(viewIdsArray), Type: arrayVar.Type},
			Index:   idx,
		}, meta.InternPointer(elemType), ir.PrecisionNotApplicable)
		reg.Op = &ir.Load{Ptr: elemPtr}
	}
	for _, sub := range b.SubBlocks() {
		rewriteViewIDReads(meta, sub, viewID, instanceID, viewIdsArray)
	}
	rewriteViewIDReads(meta, b.MergeBlock, viewID, instanceID, viewIdsArray)
}
