// Package transform holds the middle-end passes that run, in a fixed
// driver order, between a fully populated IR and the code-generation
// adapter (spec §4.4).
package transform

import (
	"shadeir/internal/ir"
	"shadeir/internal/traverse"
)

// Dealias removes every `Alias r = Alias s` instruction. It walks each
// block's instruction list and replaces every register operand with the id
// Meta.GetAliasedId resolves it to, which follows Alias chains
// transitively.
func Dealias(irv *ir.IR) {
	irv.Run(func(irv *ir.IR) {
		for _, entry := range irv.FunctionEntries {
			dealiasBlock(irv.Meta, entry)
		}
	})
}

func dealiasBlock(meta *ir.Meta, b *ir.Block) {
	if b == nil {
		return
	}
	if b.Input != nil {
		resolved := meta.GetAliasedId(ir.RegId(*b.Input))
		if resolved.Kind == ir.IdRegister {
			b.Input = &resolved.Register
		}
	}

	for i, inst := range b.Instructions {
		if inst.HasRegister {
			dealiasOperands(meta, meta.Instruction(inst.Register))
		} else {
			b.Instructions[i].Inline = dealiasInline(meta, inst.Inline)
		}
	}

	traverse.TransformBlock(b, func(i int, inst ir.BlockInstruction) []traverse.Transform {
		if inst.HasRegister {
			if _, isAlias := meta.Instruction(inst.Register).Op.(*ir.Alias); isAlias {
				return []traverse.Transform{traverse.RemoveT()}
			}
		}
		return nil
	})

	for _, sub := range b.SubBlocks() {
		dealiasBlock(meta, sub)
	}
	dealiasBlock(meta, b.MergeBlock)
}

func dealiasId(meta *ir.Meta, id ir.Id) ir.Id {
	if id.Kind != ir.IdRegister {
		return id
	}
	return meta.GetAliasedId(id)
}

func dealiasTypedId(meta *ir.Meta, t ir.TypedId) ir.TypedId {
	t.Id = dealiasId(meta, t.Id)
	return t
}

func dealiasOptTypedId(meta *ir.Meta, t *ir.TypedId) *ir.TypedId {
	if t == nil {
		return nil
	}
	v := dealiasTypedId(meta, *t)
	return &v
}

// dealiasOperands rewrites inst's operands in place to refer to aliased
// origins rather than Alias registers.
func dealiasOperands(meta *ir.Meta, inst *ir.Instruction) {
	inst.Op = dealiasInline(meta, inst.Op)
}

// dealiasInline is the exhaustive per-opcode operand rewrite. Every opcode
// family with a TypedId/Id operand is listed; opcodes with no operands fall
// through unchanged.
func dealiasInline(meta *ir.Meta, op ir.OpCode) ir.OpCode {
	switch o := op.(type) {
	case *ir.Return:
		o.Value = dealiasOptTypedId(meta, o.Value)
	case *ir.Merge:
		o.Value = dealiasOptTypedId(meta, o.Value)
	case *ir.If:
		o.Cond = dealiasTypedId(meta, o.Cond)
	case *ir.LoopIf:
		o.Cond = dealiasTypedId(meta, o.Cond)
	case *ir.Switch:
		o.Value = dealiasTypedId(meta, o.Value)
	case *ir.AccessVectorComponent:
		o.Base = dealiasTypedId(meta, o.Base)
	case *ir.AccessVectorSwizzle:
		o.Base = dealiasTypedId(meta, o.Base)
	case *ir.AccessVectorDynamic:
		o.Base = dealiasTypedId(meta, o.Base)
		o.Index = dealiasTypedId(meta, o.Index)
	case *ir.AccessMatrixColumn:
		o.Base = dealiasTypedId(meta, o.Base)
		o.Column = dealiasTypedId(meta, o.Column)
	case *ir.AccessStructField:
		o.Base = dealiasTypedId(meta, o.Base)
	case *ir.AccessArrayElement:
		o.Base = dealiasTypedId(meta, o.Base)
		o.Index = dealiasTypedId(meta, o.Index)
	case *ir.ConstructScalar:
		o.Source = dealiasTypedId(meta, o.Source)
	case *ir.ConstructSplat:
		o.Source = dealiasTypedId(meta, o.Source)
	case *ir.ConstructMatrixResize:
		o.Source = dealiasTypedId(meta, o.Source)
	case *ir.ConstructComposite:
		for i := range o.Components {
			o.Components[i] = dealiasTypedId(meta, o.Components[i])
		}
	case *ir.Load:
		o.Ptr = dealiasTypedId(meta, o.Ptr)
	case *ir.Store:
		o.Ptr = dealiasTypedId(meta, o.Ptr)
		o.Value = dealiasTypedId(meta, o.Value)
	case *ir.Alias:
		o.Source = dealiasId(meta, o.Source)
	case *ir.Call:
		for i := range o.Args {
			o.Args[i] = dealiasTypedId(meta, o.Args[i])
		}
	case *ir.Unary:
		o.Operand = dealiasTypedId(meta, o.Operand)
	case *ir.Binary:
		o.Lhs = dealiasTypedId(meta, o.Lhs)
		o.Rhs = dealiasTypedId(meta, o.Rhs)
	case *ir.BuiltIn_:
		for i := range o.Args {
			o.Args[i] = dealiasTypedId(meta, o.Args[i])
		}
	case *ir.Texture:
		o.Sampler = dealiasTypedId(meta, o.Sampler)
		o.Coord = dealiasTypedId(meta, o.Coord)
		o.Offset = dealiasOptTypedId(meta, o.Offset)
		o.Compare = dealiasOptTypedId(meta, o.Compare)
		o.Lod = dealiasOptTypedId(meta, o.Lod)
		o.Bias = dealiasOptTypedId(meta, o.Bias)
		o.Dx = dealiasOptTypedId(meta, o.Dx)
		o.Dy = dealiasOptTypedId(meta, o.Dy)
		o.RefZ = dealiasOptTypedId(meta, o.RefZ)
	}
	return op
}
