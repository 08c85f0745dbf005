package codegen

import (
	"fmt"

	"shadeir/internal/diag"
	"shadeir/internal/ir"
	"shadeir/internal/traverse"
)

// Generator is ast::Generator (§4.5): it drives a Target through a
// finalized IR in the fixed declaration → global-scope → DAG-topological
// function order the contract requires.
type Generator struct {
	meta   *ir.Meta
	target Target

	regValues map[ir.RegisterId]Value
	visiting  map[ir.FunctionId]bool
	done      map[ir.FunctionId]bool
}

// Generate runs the full adapter sequence over irv against target.
func Generate(irv *ir.IR, target Target) {
	irv.Run(func(irv *ir.IR) {
		g := &Generator{
			meta:      irv.Meta,
			target:    target,
			regValues: map[ir.RegisterId]Value{},
			visiting:  map[ir.FunctionId]bool{},
			done:      map[ir.FunctionId]bool{},
		}
		g.run(irv)
	})
}

func (g *Generator) run(irv *ir.IR) {
	meta := g.meta
	target := g.target

	target.Begin(meta)
	for t := 0; t < meta.NumTypes(); t++ {
		typ := meta.Type(ir.TypeId(t))
		if typ.Tag == ir.TypeTagDeadCodeEliminated {
			continue
		}
		target.NewType(ir.TypeId(t), typ)
	}
	for c := 0; c < meta.NumConstants(); c++ {
		target.NewConstant(ir.ConstantId(c), meta.Constant(ir.ConstantId(c)))
	}
	for v := 0; v < meta.NumVariables(); v++ {
		variable := meta.Variable(ir.VariableId(v))
		if variable.IsDeadCodeEliminated {
			continue
		}
		target.NewVariable(ir.VariableId(v), variable)
	}
	for f := 0; f < meta.NumFunctions(); f++ {
		fn := meta.Function(ir.FunctionId(f))
		if fn.IsDeadCodeEliminated {
			continue
		}
		target.NewFunction(ir.FunctionId(f), fn)
	}
	target.GlobalScope(meta)

	main, ok := meta.MainFunction()
	if !ok {
		diag.Abortf("codegen.generator", "IR has no main function")
	}
	g.generateFunction(irv, main)
	// Any function unreachable from main (dead code elimination should have
	// already pruned these, but a pass ordering bug could leave one behind)
	// is still emitted, in declaration order, so no live code is silently
	// dropped from the output.
	for f := 0; f < meta.NumFunctions(); f++ {
		fn := ir.FunctionId(f)
		if meta.Function(fn).IsDeadCodeEliminated || g.done[fn] {
			continue
		}
		g.generateFunction(irv, fn)
	}

	target.End()
}

// generateFunction walks fn's call graph rooted at its entry block,
// generating every callee before fn's own body (so the bottom-up contract
// holds at the function-graph level too), and aborts on recursion — the IR
// is a closed-world shading-language program, which never legally recurses.
func (g *Generator) generateFunction(irv *ir.IR, fn ir.FunctionId) {
	if g.done[fn] {
		return
	}
	if g.visiting[fn] {
		diag.AbortIds("codegen.generator", []string{fmt.Sprint(fn)}, "recursive call graph rooted at function %d", fn)
	}
	g.visiting[fn] = true

	for _, callee := range calleesOf(g.meta, irv.EntryBlock(fn)) {
		g.generateFunction(irv, callee)
	}

	iv := traverse.InstructionVisitor{
		Generate: g.generateInstruction,
		Branch:   g.generateBranch,
		Reduce:   g.reduceBlock,
	}
	traverse.VisitBlockInstructions(g.meta, irv.EntryBlock(fn), iv)

	g.target.EndFunction(fn)
	g.visiting[fn] = false
	g.done[fn] = true
}

func calleesOf(meta *ir.Meta, b *ir.Block) []ir.FunctionId {
	var out []ir.FunctionId
	traverse.VisitInstructions(meta, b, func(_ ir.BlockInstruction, op ir.OpCode) {
		if call, ok := op.(*ir.Call); ok {
			out = append(out, call.Function)
		}
	})
	if b == nil {
		return out
	}
	for _, sub := range b.SubBlocks() {
		out = append(out, calleesOf(meta, sub)...)
	}
	out = append(out, calleesOf(meta, b.MergeBlock)...)
	return out
}

// resolve maps a TypedId operand to a Value, following whichever table it
// names.
func (g *Generator) resolve(t ir.TypedId) Value {
	switch t.Id.Kind {
	case ir.IdRegister:
		v, ok := g.regValues[t.Id.Register]
		if !ok {
			diag.AbortIds("codegen.generator", []string{fmt.Sprint(t.Id.Register)}, "register %d consumed before it was generated", t.Id.Register)
		}
		return v
	case ir.IdConstant:
		return g.target.ConstantRef(t.Id.Constant)
	default:
		return g.target.VariableRef(t.Id.Variable)
	}
}

func (g *Generator) resolveOpt(t *ir.TypedId) Value {
	if t == nil {
		return nil
	}
	return g.resolve(*t)
}

// generateInstruction dispatches one non-branch register instruction to its
// matching Target hook and caches the result under its register id.
func (g *Generator) generateInstruction(b *ir.Block, inst ir.BlockInstruction, op ir.OpCode) {
	if !inst.HasRegister {
		// A void inline instruction with no register (the astify pass never
		// emits these outside of Store, which is handled below via its own
		// case) — nothing else to do.
		if store, ok := op.(*ir.Store); ok {
			g.target.Store(g.resolve(store.Ptr), g.resolve(store.Value))
		}
		return
	}
	reg := g.meta.Instruction(inst.Register)
	g.regValues[inst.Register] = g.dispatch(op, reg.ResultType)
}

func (g *Generator) dispatch(op ir.OpCode, resultType ir.TypeId) Value {
	target := g.target
	switch o := op.(type) {
	case *ir.AccessVectorComponent:
		return target.SwizzleComponent(g.resolve(o.Base), o.Index, o.Pointer)
	case *ir.AccessVectorSwizzle:
		return target.SwizzleMulti(g.resolve(o.Base), o.Indices, o.Pointer)
	case *ir.AccessVectorDynamic:
		return target.IndexDynamic(g.resolve(o.Base), g.resolve(o.Index), o.Pointer)
	case *ir.AccessMatrixColumn:
		return target.IndexMatrixColumn(g.resolve(o.Base), g.resolve(o.Column), o.Pointer)
	case *ir.AccessStructField:
		return target.SelectField(g.resolve(o.Base), o.Field, o.Pointer)
	case *ir.AccessArrayElement:
		return target.IndexArrayElement(g.resolve(o.Base), g.resolve(o.Index), o.Pointer)
	case *ir.ConstructScalar:
		return target.ConstructScalar(g.resolve(o.Source), resultType)
	case *ir.ConstructSplat:
		return target.ConstructSplat(g.resolve(o.Source), resultType)
	case *ir.ConstructMatrixResize:
		return target.ConstructMatrixResize(g.resolve(o.Source), resultType)
	case *ir.ConstructComposite:
		comps := make([]Value, len(o.Components))
		for i, c := range o.Components {
			comps[i] = g.resolve(c)
		}
		return target.ConstructComposite(comps, resultType)
	case *ir.Load:
		return target.Load(g.resolve(o.Ptr))
	case *ir.Call:
		args := make([]Value, len(o.Args))
		for i, a := range o.Args {
			args[i] = g.resolve(a)
		}
		return target.Call(o.Function, args)
	case *ir.Unary:
		return target.Unary(o.Op, g.resolve(o.Operand))
	case *ir.Binary:
		return target.Binary(o.Op, g.resolve(o.Lhs), g.resolve(o.Rhs))
	case *ir.BuiltIn_:
		args := make([]Value, len(o.Args))
		for i, a := range o.Args {
			args[i] = g.resolve(a)
		}
		return target.BuiltIn(o.Op, args)
	case *ir.Texture:
		extra := TextureExtra{
			IsProj:    o.IsProj,
			Offset:    g.resolveOpt(o.Offset),
			Compare:   g.resolveOpt(o.Compare),
			Lod:       g.resolveOpt(o.Lod),
			Bias:      g.resolveOpt(o.Bias),
			Dx:        g.resolveOpt(o.Dx),
			Dy:        g.resolveOpt(o.Dy),
			RefZ:      g.resolveOpt(o.RefZ),
			Component: o.Component,
		}
		return target.Texture(o.Shape, g.resolve(o.Sampler), g.resolve(o.Coord), extra)
	default:
		diag.Abortf("codegen.generator", "unexpected opcode in non-branch position: %T", op)
		return nil
	}
}

// generateBranch emits the block's terminator, folding in its already-
// generated sub-block results, and returns this block's own Value.
func (g *Generator) generateBranch(b *ir.Block, term ir.OpCode, subResults []traverse.BlockResult) Value {
	g.target.BeginBlock(b)
	switch o := term.(type) {
	case *ir.Discard:
		return g.target.BranchDiscard()
	case *ir.Return:
		return g.target.BranchReturn(g.resolveOpt(o.Value), o.Value != nil)
	case *ir.Break:
		return g.target.BranchBreak()
	case *ir.Continue:
		return g.target.BranchContinue()
	case *ir.Passthrough:
		return g.target.BranchPassthrough()
	case *ir.NextBlock:
		return nil
	case *ir.Merge:
		if o.Value != nil {
			diag.Abortf("codegen.generator", "merge with a value reached code generation; astify should have eliminated it")
		}
		return nil
	case *ir.If:
		var thenResult, elseResult Value
		if len(subResults) > 0 {
			thenResult = subResults[0]
		}
		if len(subResults) > 1 {
			elseResult = subResults[1]
		}
		return g.target.BranchIf(g.resolve(o.Cond), thenResult, elseResult)
	case *ir.Loop:
		var condResult, bodyResult Value
		if len(subResults) > 0 {
			condResult = subResults[0]
		}
		if len(subResults) > 1 {
			bodyResult = subResults[1]
		}
		return g.target.BranchLoop(condResult, bodyResult)
	case *ir.DoLoop:
		var condResult, bodyResult Value
		if len(subResults) > 0 {
			condResult = subResults[0]
		}
		if len(subResults) > 1 {
			bodyResult = subResults[1]
		}
		return g.target.BranchDoLoop(bodyResult, condResult)
	case *ir.LoopIf:
		return g.target.BranchLoopIf(g.resolve(o.Cond))
	case *ir.Switch:
		hasDefault := false
		for _, c := range o.Cases {
			if c == nil {
				hasDefault = true
			}
		}
		return g.target.BranchSwitch(g.resolve(o.Value), subResults, hasDefault)
	default:
		diag.Abortf("codegen.generator", "unterminated block reached code generation")
		return nil
	}
}

func (g *Generator) reduceBlock(b *ir.Block, own, mergeResult Value) Value {
	if mergeResult == nil {
		return own
	}
	return g.target.MergeBlocks(own, mergeResult)
}
