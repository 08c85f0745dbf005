package transform

import "shadeir/internal/ir"

// EnsureLoopForwardProgress marks loops whose termination cannot be
// trivially proven (§4.4.8, target-specific). A loop matches the provably-
// terminating pattern when its condition is `var OP c` with OP one of
// ==, !=, <, <=, >, >=, c is a constant or a load from a uniform/input, its
// continue block is one of ++var/--var/var+=1/var-=1, and var is written
// exactly once in the whole program (that write being the update).
// Non-matching loops get a sentinel LoopForwardProgress built-in prepended
// to the loop body, which the backend lowers to a volatile side effect to
// inhibit infinite-loop-crashing optimizations.
func EnsureLoopForwardProgress(irv *ir.IR) {
	irv.Run(func(irv *ir.IR) {
		meta := irv.Meta
		writeCounts := countVariableWrites(meta, irv.FunctionEntries)
		for _, entry := range irv.FunctionEntries {
			annotateLoops(meta, entry, writeCounts)
		}
	})
}

func countVariableWrites(meta *ir.Meta, entries []*ir.Block) map[ir.VariableId]int {
	counts := map[ir.VariableId]int{}
	// A loop's continue block can be reachable both as the loop's Block2
	// and as the body's merge block; each block's stores count once.
	seen := map[*ir.Block]bool{}
	var walk func(*ir.Block)
	walk = func(b *ir.Block) {
		if b == nil || seen[b] {
			return
		}
		seen[b] = true
		for _, inst := range b.Instructions {
			if st, ok := inst.Op(meta).(*ir.Store); ok && st.Ptr.Id.Kind == ir.IdVariable {
				counts[st.Ptr.Id.Variable]++
			}
		}
		for _, sub := range b.SubBlocks() {
			walk(sub)
		}
		walk(b.MergeBlock)
	}
	for _, e := range entries {
		walk(e)
	}
	return counts
}

func annotateLoops(meta *ir.Meta, b *ir.Block, writeCounts map[ir.VariableId]int) {
	if b == nil {
		return
	}
	term := b.Terminator(meta)
	if _, ok := term.(*ir.Loop); ok {
		if !provesTermination(meta, b, writeCounts) {
			prependSentinel(meta, b.Block1)
		}
	}
	for _, sub := range b.SubBlocks() {
		annotateLoops(meta, sub, writeCounts)
	}
	annotateLoops(meta, b.MergeBlock, writeCounts)
}

// provesTermination implements the pattern match described in §4.4.8 at
// the granularity the IR's loop_condition/block2 shape makes available: a
// LoopIf comparing a loaded variable against a constant-or-uniform operand,
// with block2 (the continue block) consisting of exactly one increment-
// style store to that same variable, which is written nowhere else.
func provesTermination(meta *ir.Meta, loopHeader *ir.Block, writeCounts map[ir.VariableId]int) bool {
	cond := loopHeader.LoopCondition
	if cond == nil {
		return false
	}
	loopIf, ok := cond.Terminator(meta).(*ir.LoopIf)
	if !ok {
		return false
	}
	cmp, ok := resolveProducer(meta, loopIf.Cond).(*ir.Binary)
	if !ok || !isComparisonOp(cmp.Op) {
		return false
	}
	v, ok := loadedVariable(meta, cmp.Lhs)
	if !ok {
		return false
	}
	if !isConstantOrUniformLoad(meta, cmp.Rhs) {
		return false
	}

	cont := loopHeader.Block2
	if cont == nil || len(cont.Instructions) < 1 {
		return false
	}
	if !isSingleStepUpdate(meta, cont, v) {
		return false
	}
	return writeCounts[v] == 1
}

func isComparisonOp(op ir.BinaryOp) bool {
	switch op {
	case ir.BinaryEqual, ir.BinaryNotEqual, ir.BinaryLess, ir.BinaryLessEqual, ir.BinaryGreater, ir.BinaryGreaterEqual:
		return true
	default:
		return false
	}
}

func loadedVariable(meta *ir.Meta, t ir.TypedId) (ir.VariableId, bool) {
	ld, ok := resolveProducer(meta, t).(*ir.Load)
	if !ok || ld.Ptr.Id.Kind != ir.IdVariable {
		return 0, false
	}
	return ld.Ptr.Id.Variable, true
}

func isConstantOrUniformLoad(meta *ir.Meta, t ir.TypedId) bool {
	if t.Id.Kind == ir.IdConstant {
		return true
	}
	if ld, ok := resolveProducer(meta, t).(*ir.Load); ok && ld.Ptr.Id.Kind == ir.IdVariable {
		variable := meta.Variable(ld.Ptr.Id.Variable)
		return variable.Decoration == ir.DecorationUniform || variable.Decoration == ir.DecorationInput
	}
	return false
}

// isSingleStepUpdate reports whether cont consists of exactly one store to
// v whose value is v +/- 1 (covering ++var/--var/var+=1/var-=1 in IR form).
func isSingleStepUpdate(meta *ir.Meta, cont *ir.Block, v ir.VariableId) bool {
	var store *ir.Store
	count := 0
	for _, inst := range cont.Instructions {
		if st, ok := inst.Op(meta).(*ir.Store); ok {
			store = st
			count++
		}
	}
	if count != 1 || store == nil || store.Ptr.Id.Kind != ir.IdVariable || store.Ptr.Id.Variable != v {
		return false
	}
	bin, ok := resolveProducer(meta, store.Value).(*ir.Binary)
	if !ok || (bin.Op != ir.BinaryAdd && bin.Op != ir.BinarySub) {
		return false
	}
	lv, ok := loadedVariable(meta, bin.Lhs)
	if !ok || lv != v {
		return false
	}
	if bin.Rhs.Id.Kind != ir.IdConstant {
		return false
	}
	switch c := meta.Constant(bin.Rhs.Id.Constant); c.Tag {
	case ir.ConstantTagInt:
		return c.IntVal == 1 || c.IntVal == -1
	case ir.ConstantTagUint:
		return c.UintVal == 1
	}
	return false
}

func prependSentinel(meta *ir.Meta, body *ir.Block) {
	if body == nil {
		return
	}
	sentinel := ir.InlineInst(&ir.BuiltIn_{Op: ir.BuiltInLoopForwardProgress})
	body.Instructions = append([]ir.BlockInstruction{sentinel}, body.Instructions...)
}
