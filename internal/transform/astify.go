package transform

import "shadeir/internal/ir"

// Astify prepares a dealiased IR to be consumable by a tree-shaped output
// (§4.4.7): it caches side-effecting/multiply-read expressions into temps,
// spills high-precision constants mixed with lower-precision operands,
// eliminates merge-block inputs, replicates loop continue blocks and
// do-loop condition blocks so every `continue` falls through to a fresh
// copy, and propagates do-loop breaks across enclosing switches.
func Astify(irv *ir.IR) {
	irv.Run(func(irv *ir.IR) {
		meta := irv.Meta
		info := collectRegisterInfo(meta, irv.FunctionEntries)

		for fnId, entry := range irv.FunctionEntries {
			if entry == nil {
				continue
			}
			st := &astifyState{meta: meta, info: info}
			st.fn = ir.FunctionId(fnId)
			st.run(entry, nil)
		}
	})
}

// registerInfo is the astify pre-pass's per-register classification used
// by temp-variable caching.
type registerInfo struct {
	readCount     int
	hasSideEffect bool
	isComplex     bool
}

func collectRegisterInfo(meta *ir.Meta, entries []*ir.Block) map[ir.RegisterId]*registerInfo {
	info := map[ir.RegisterId]*registerInfo{}
	ensure := func(r ir.RegisterId) *registerInfo {
		if info[r] == nil {
			info[r] = &registerInfo{}
		}
		return info[r]
	}

	var countRefs func(*ir.Block)
	countRefs = func(b *ir.Block) {
		if b == nil {
			return
		}
		for _, inst := range b.Instructions {
			for _, rid := range operandRegisters(meta, inst.Op(meta)) {
				ensure(rid).readCount++
			}
		}
		for _, sub := range b.SubBlocks() {
			countRefs(sub)
		}
		countRefs(b.MergeBlock)
	}
	var classify func(*ir.Block)
	classify = func(b *ir.Block) {
		if b == nil {
			return
		}
		for _, inst := range b.Instructions {
			if !inst.HasRegister {
				continue
			}
			reg := meta.Instruction(inst.Register)
			e := ensure(inst.Register)
			e.hasSideEffect, e.isComplex = classifyOp(reg.Op)
		}
		for _, sub := range b.SubBlocks() {
			classify(sub)
		}
		classify(b.MergeBlock)
	}
	for _, e := range entries {
		countRefs(e)
		classify(e)
	}
	return info
}

// classifyOp reports an instruction's side-effect and complexity facets for
// the temp-caching pre-pass.
func classifyOp(op ir.OpCode) (hasSideEffect, isComplex bool) {
	switch o := op.(type) {
	case *ir.Call:
		return true, true
	case *ir.BuiltIn_:
		return o.Op.HasSideEffect(), !o.Op.MayConstFold()
	case *ir.Texture:
		return false, true
	case *ir.Load:
		return false, false
	default:
		return false, false
	}
}

// operandRegisters returns every register id op reads from, for the
// read-count pre-pass.
func operandRegisters(meta *ir.Meta, op ir.OpCode) []ir.RegisterId {
	var out []ir.RegisterId
	add := func(t ir.TypedId) {
		if t.Id.Kind == ir.IdRegister {
			out = append(out, t.Id.Register)
		}
	}
	addOpt := func(t *ir.TypedId) {
		if t != nil {
			add(*t)
		}
	}
	switch o := op.(type) {
	case *ir.Return:
		addOpt(o.Value)
	case *ir.Merge:
		addOpt(o.Value)
	case *ir.If:
		add(o.Cond)
	case *ir.LoopIf:
		add(o.Cond)
	case *ir.Switch:
		add(o.Value)
	case *ir.AccessVectorComponent:
		add(o.Base)
	case *ir.AccessVectorSwizzle:
		add(o.Base)
	case *ir.AccessVectorDynamic:
		add(o.Base)
		add(o.Index)
	case *ir.AccessMatrixColumn:
		add(o.Base)
		add(o.Column)
	case *ir.AccessStructField:
		add(o.Base)
	case *ir.AccessArrayElement:
		add(o.Base)
		add(o.Index)
	case *ir.ConstructScalar:
		add(o.Source)
	case *ir.ConstructSplat:
		add(o.Source)
	case *ir.ConstructMatrixResize:
		add(o.Source)
	case *ir.ConstructComposite:
		for _, c := range o.Components {
			add(c)
		}
	case *ir.Load:
		add(o.Ptr)
	case *ir.Store:
		add(o.Ptr)
		add(o.Value)
	case *ir.Call:
		for _, a := range o.Args {
			add(a)
		}
	case *ir.Unary:
		add(o.Operand)
	case *ir.Binary:
		add(o.Lhs)
		add(o.Rhs)
	case *ir.BuiltIn_:
		for _, a := range o.Args {
			add(a)
		}
	case *ir.Texture:
		add(o.Sampler)
		add(o.Coord)
		addOpt(o.Offset)
		addOpt(o.Compare)
		addOpt(o.Lod)
		addOpt(o.Bias)
		addOpt(o.Dx)
		addOpt(o.Dy)
		addOpt(o.RefZ)
	}
	return out
}

// astifyState carries the per-function working state through the
// continue/condition-block replication and break-propagation passes.
type astifyState struct {
	meta *ir.Meta
	info map[ir.RegisterId]*registerInfo
	fn   ir.FunctionId

	continueStack      []*ir.Block     // Loop continue (update) blocks detached so far
	doCondStack        []*ir.Block     // DoLoop condition blocks detached so far
	propagateBreakVars []ir.VariableId // one per enclosing switch since the nearest do-loop
}

// run walks the block tree rooted at b performing every astify sub-pass in
// one traversal: temp-caching, merge-input elimination, then continue/
// condition replication (which must see the already-caching-rewritten
// instruction stream so duplicated blocks carry correct operands).
func (st *astifyState) run(b *ir.Block, enclosingSwitch *ir.Block) {
	if b == nil {
		return
	}

	st.cacheTemps(b)
	st.spillConstants(b)

	term := b.Terminator(st.meta)
	switch t := term.(type) {
	case *ir.Loop:
		if b.Block2 != nil {
			st.continueStack = append(st.continueStack, b.Block2)
			b.Block2 = nil
			defer func() { st.continueStack = st.continueStack[:len(st.continueStack)-1] }()
		}
	case *ir.DoLoop:
		if b.LoopCondition != nil {
			st.doCondStack = append(st.doCondStack, b.LoopCondition)
			defer func() { st.doCondStack = st.doCondStack[:len(st.doCondStack)-1] }()
		}
	case *ir.Switch:
		if len(st.doCondStack) > 0 {
			v := st.meta.DeclareVariable(ir.Variable{
				Name:       "propagate_break",
				NameSource: ir.NameSourceTemporary,
				Type:       st.meta.InternPointer(ir.TypeBool),
				Scope:      ir.ScopeLocal,
			})
			b.Variables = append(b.Variables, v)
			st.propagateBreakVars = append(st.propagateBreakVars, v)
			defer func() { st.propagateBreakVars = st.propagateBreakVars[:len(st.propagateBreakVars)-1] }()
		}
		_ = t
	}

	if m := b.MergeBlock; m != nil && m.Input != nil {
		st.eliminateMergeInput(b)
	}

	replicated := false
	for _, inst := range b.Instructions {
		if _, ok := inst.Op(st.meta).(*ir.Continue); ok {
			before := b.MergeBlock
			st.rewriteContinue(b)
			replicated = b.MergeBlock != before
		}
	}

	for _, sub := range b.SubBlocks() {
		st.run(sub, b)
	}
	// A replica spliced in by rewriteContinue ends in Continue itself;
	// walking it would replicate the same block again without end.
	if !replicated {
		st.run(b.MergeBlock, enclosingSwitch)
	}

	if _, ok := term.(*ir.Switch); ok && len(st.propagateBreakVars) > 0 {
		v := st.propagateBreakVars[len(st.propagateBreakVars)-1]
		st.appendBreakPropagationCheck(b, v)
	}
}

// cacheTemps materializes a local variable for any register in b that is
// complex-or-side-effecting and read more than once, or that has a side
// effect regardless (§4.4.7 "Temp-variable caching"). Any memory-writing
// instruction forces deferred loads (handled implicitly here since this
// pass caches eagerly rather than deferring reads across side effects).
func (st *astifyState) cacheTemps(b *ir.Block) {
	for i := 0; i < len(b.Instructions); i++ {
		inst := b.Instructions[i]
		if !inst.HasRegister {
			continue
		}
		info := st.info[inst.Register]
		if info == nil || !(info.hasSideEffect || (info.isComplex && info.readCount > 1)) {
			continue
		}

		// Snapshot before AssignNewRegisterToInstruction relocates it: the
		// original id is about to become a NextBlock placeholder, which we
		// immediately overwrite below with a Load from the cache variable.
		orig := *st.meta.Instruction(inst.Register)
		fresh := st.meta.AssignNewRegisterToInstruction(inst.Register)

		ptrType := st.meta.InternPointer(orig.ResultType)
		v := st.meta.DeclareVariable(ir.Variable{
			Name:       "t",
			NameSource: ir.NameSourceTemporary,
			Type:       ptrType,
			Precision:  orig.ResultPrecision,
			Scope:      ir.ScopeLocal,
		})
		b.Variables = append(b.Variables, v)

		freshTyped := ir.TypedId{Id: ir.RegId(fresh), Type: orig.ResultType, Precision: orig.ResultPrecision}
		ptrTyped := ir.TypedId{Id: ir.VarId(v), Type: ptrType, Precision: orig.ResultPrecision}

		*st.meta.Instruction(inst.Register) = ir.Instruction{
			Result: inst.Register, Op: &ir.Load{Ptr: ptrTyped},
			ResultType: orig.ResultType, ResultPrecision: orig.ResultPrecision,
		}

		// Original position now: compute into fresh, store into the cache
		// variable, then load back under the original id so every existing
		// reference to it (the stable result id other instructions' operands
		// still point at) sees the cached value.
		replacement := []ir.BlockInstruction{
			ir.RegInst(fresh),
			ir.InlineInst(&ir.Store{Ptr: ptrTyped, Value: freshTyped}),
			ir.RegInst(inst.Register),
		}
		b.Instructions = append(b.Instructions[:i], append(replacement, b.Instructions[i+1:]...)...)
		i += len(replacement) - 1
	}
}

// spillConstants spills high-precision constant operands that are mixed
// with lower-precision non-constant operands in a Binary instruction into
// their own precision-carrying local, so AST rendering cannot let the
// constant silently take on its neighbor's precision (§4.4.7 "Constant
// precision preservation").
func (st *astifyState) spillConstants(b *ir.Block) {
	for _, inst := range b.Instructions {
		if !inst.HasRegister {
			continue
		}
		reg := st.meta.Instruction(inst.Register)
		bin, ok := reg.Op.(*ir.Binary)
		if !ok {
			continue
		}
		st.spillIfMixedPrecision(b, &bin.Lhs, bin.Rhs)
		st.spillIfMixedPrecision(b, &bin.Rhs, bin.Lhs)
	}
}

func (st *astifyState) spillIfMixedPrecision(b *ir.Block, operand *ir.TypedId, other ir.TypedId) {
	if operand.Id.Kind != ir.IdConstant {
		return
	}
	if operand.Precision != ir.PrecisionHigh {
		return
	}
	if other.Precision == ir.PrecisionNotApplicable || other.Precision >= ir.PrecisionHigh {
		return
	}
	constId := operand.Id.Constant
	v := st.meta.DeclareVariable(ir.Variable{
		Name:        "c",
		NameSource:  ir.NameSourceTemporary,
		Type:        st.meta.InternPointer(operand.Type),
		Precision:   operand.Precision,
		Scope:       ir.ScopeLocal,
		IsConst:     true,
		Initializer: &constId,
	})
	b.Variables = append(b.Variables, v)
	ptrTyped := ir.TypedId{Id: ir.VarId(v), Type: st.meta.InternPointer(operand.Type), Precision: operand.Precision}
	load := st.meta.NewRegister(&ir.Load{Ptr: ptrTyped}, operand.Type, operand.Precision)
	*operand = load
}

// eliminateMergeInput declares a local variable in the block dominating a
// merge block with an input, replaces the input with a prepended Load at
// the top of the merge block, and rewrites every feeding Merge(value) into
// Store var, value; Merge (§4.4.7 "Merge-input elimination").
func (st *astifyState) eliminateMergeInput(owner *ir.Block) {
	m := owner.MergeBlock
	orig := *st.meta.Instruction(*m.Input)
	ptrType := st.meta.InternPointer(orig.ResultType)
	v := st.meta.DeclareVariable(ir.Variable{
		Name:       "m",
		NameSource: ir.NameSourceTemporary,
		Type:       ptrType,
		Precision:  orig.ResultPrecision,
		Scope:      ir.ScopeLocal,
	})
	owner.Variables = append(owner.Variables, v)
	ptrTyped := ir.TypedId{Id: ir.VarId(v), Type: ptrType, Precision: orig.ResultPrecision}

	// The merge-input register was never computed by an instruction of its
	// own (it's a phi placeholder); repurpose its stable id as a Load so
	// every existing reference to it keeps working, and schedule that Load
	// at the top of the merge block.
	*st.meta.Instruction(*m.Input) = ir.Instruction{
		Result: *m.Input, Op: &ir.Load{Ptr: ptrTyped},
		ResultType: orig.ResultType, ResultPrecision: orig.ResultPrecision,
	}
	m.Instructions = append([]ir.BlockInstruction{ir.RegInst(*m.Input)}, m.Instructions...)
	m.Input = nil

	for _, sub := range owner.SubBlocks() {
		st.rewriteFeedingMerge(sub, ptrTyped)
	}
}

// rewriteFeedingMerge finds the block that terminates with a value-carrying
// Merge targeting owner's merge block and splits that terminator into
// Store var, value; Merge. Starting at a feeding sub-block it follows that
// block's merge chain; it never descends into the sub-blocks of a nested
// If/Loop/Switch, since a Merge there feeds that construct's own merge
// block, not owner's.
func (st *astifyState) rewriteFeedingMerge(b *ir.Block, ptrTyped ir.TypedId) {
	if b == nil {
		return
	}
	if n := len(b.Instructions); n > 0 {
		if merge, ok := b.Instructions[n-1].Op(st.meta).(*ir.Merge); ok && merge.Value != nil {
			store := ir.InlineInst(&ir.Store{Ptr: ptrTyped, Value: *merge.Value})
			term := ir.InlineInst(&ir.Merge{})
			b.Instructions = append(b.Instructions[:n-1], store, term)
			return
		}
	}
	st.rewriteFeedingMerge(b.MergeBlock, ptrTyped)
}

// rewriteContinue detaches a fresh duplicate of the nearest enclosing
// Loop's continue block (or DoLoop's condition block, rewritten) and
// splices it between b's Continue and whatever followed.
func (st *astifyState) rewriteContinue(b *ir.Block) {
	n := len(b.Instructions)
	if n == 0 {
		return
	}
	if len(st.doCondStack) > 0 {
		cond := st.doCondStack[len(st.doCondStack)-1]
		dup := DuplicateBlock(st.meta, cond, nil)
		st.rewriteLoopIfToBreakContinue(dup)
		b.Instructions[n-1] = ir.InlineInst(&ir.NextBlock{})
		b.MergeBlock = dup
		return
	}
	if len(st.continueStack) > 0 {
		cont := st.continueStack[len(st.continueStack)-1]
		dup := DuplicateBlock(st.meta, cont, nil)
		b.Instructions[n-1] = ir.InlineInst(&ir.NextBlock{})
		b.MergeBlock = dup
	}
}

// rewriteLoopIfToBreakContinue turns a duplicated do-loop condition block's
// terminating LoopIf %c into If !c { break; } followed by Continue, per
// §4.4.7 "Do-loop condition replication". When this replication sits inside
// an enclosing switch, the synthesized break must first set that switch's
// propagate_break variable, since a bare IR Break here only exits the
// switch, not the do-loop: appendBreakPropagationCheck re-checks it just
// after the switch to keep unwinding.
func (st *astifyState) rewriteLoopIfToBreakContinue(dup *ir.Block) {
	n := len(dup.Instructions)
	if n == 0 {
		return
	}
	loopIf, ok := dup.Instructions[n-1].Op(st.meta).(*ir.LoopIf)
	if !ok {
		return
	}
	notC := st.meta.NewRegister(&ir.Unary{Op: ir.UnaryLogicalNot, Operand: loopIf.Cond}, ir.TypeBool, ir.PrecisionNotApplicable)
	var breakInsts []ir.BlockInstruction
	if len(st.propagateBreakVars) > 0 {
		v := st.propagateBreakVars[len(st.propagateBreakVars)-1]
		ptrTyped := ir.TypedId{Id: ir.VarId(v), Type: st.meta.InternPointer(ir.TypeBool)}
		trueVal := ir.TypedId{Id: ir.ConstId(ir.ConstTrue), Type: ir.TypeBool}
		breakInsts = append(breakInsts, ir.InlineInst(&ir.Store{Ptr: ptrTyped, Value: trueVal}))
	}
	breakInsts = append(breakInsts, ir.InlineInst(&ir.Break{}))
	breakBlock := &ir.Block{Instructions: breakInsts}
	dup.Instructions[n-1] = ir.InlineInst(&ir.If{Cond: notC})
	dup.Block1 = breakBlock
	dup.MergeBlock = &ir.Block{Instructions: []ir.BlockInstruction{ir.InlineInst(&ir.Continue{})}}
}

// appendBreakPropagationCheck appends `if (propagate_break) break;` after a
// switch block whose body may have set v via a do-loop continue that needs
// to keep unwinding past this switch (§4.4.7 "Break propagation across
// switch").
func (st *astifyState) appendBreakPropagationCheck(b *ir.Block, v ir.VariableId) {
	ptrTyped := ir.TypedId{Id: ir.VarId(v), Type: st.meta.InternPointer(ir.TypeBool)}
	cond := st.meta.NewRegister(&ir.Load{Ptr: ptrTyped}, ir.TypeBool, ir.PrecisionNotApplicable)
	check := &ir.Block{
		Instructions: []ir.BlockInstruction{ir.InlineInst(&ir.If{Cond: cond})},
		Block1:       &ir.Block{Instructions: []ir.BlockInstruction{ir.InlineInst(&ir.Break{})}},
		MergeBlock:   b.MergeBlock,
	}
	b.MergeBlock = check
}
