package transform

import "shadeir/internal/ir"

// BroadcastFragColor implements the ES1 fixed-function-fragment-shader
// behavior where a write to gl_FragColor is broadcast to every
// gl_FragData[i] index, grounded on the original's documented compile.rs
// option surface for IsES1 targets.
func BroadcastFragColor(irv *ir.IR, numDrawBuffers int) {
	irv.Run(func(irv *ir.IR) {
		meta := irv.Meta
		fragColor, ok := findBuiltInVariable(meta, ir.BuiltInFragColor)
		if !ok {
			return
		}
		fragData, ok := findBuiltInVariable(meta, ir.BuiltInFragData)
		if !ok {
			return
		}
		for _, entry := range irv.FunctionEntries {
			broadcastBlock(meta, entry, fragColor, fragData, numDrawBuffers)
		}
	})
}

func broadcastBlock(meta *ir.Meta, b *ir.Block, fragColor, fragData ir.VariableId, n int) {
	if b == nil {
		return
	}
	for i := 0; i < len(b.Instructions); i++ {
		inst := b.Instructions[i]
		if inst.HasRegister {
			continue
		}
		st, ok := inst.Inline.(*ir.Store)
		if !ok || st.Ptr.Id.Kind != ir.IdVariable || st.Ptr.Id.Variable != fragColor {
			continue
		}
		dataVar := meta.Variable(fragData)
		arrayType := meta.Type(dataVar.Type).Pointee
		elemType := meta.Type(arrayType).ArrayElement

		replacement := make([]ir.BlockInstruction, 0, n)
		for d := 0; d < n; d++ {
			idxConst := meta.InternInt(ir.TypeInt, int64(d))
			elemPtr := meta.NewRegister(&ir.AccessArrayElement{
				Pointer: true,
				Base:    ir.TypedId{Id: ir.VarId(fragData), Type: dataVar.Type},
				Index:   ir.TypedId{Id: ir.ConstId(idxConst), Type: ir.TypeInt},
			}, meta.InternPointer(elemType), ir.PrecisionNotApplicable)
			replacement = append(replacement, ir.InlineInst(&ir.Store{Ptr: elemPtr, Value: st.Value}))
		}
		b.Instructions = append(b.Instructions[:i], append(replacement, b.Instructions[i+1:]...)...)
		i += len(replacement) - 1
	}
	for _, sub := range b.SubBlocks() {
		broadcastBlock(meta, sub, fragColor, fragData, n)
	}
	broadcastBlock(meta, b.MergeBlock, fragColor, fragData, n)
}
