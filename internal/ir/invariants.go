package ir

import "fmt"

// CheckBlockTerminators verifies the §3/§8 invariant that exactly one
// terminator appears in a block's instruction list, at its last position,
// recursively through every child block reachable from root.
func CheckBlockTerminators(m *Meta, root *Block) error {
	return walkBlocksForCheck(root, func(b *Block) error {
		if len(b.Instructions) == 0 {
			return fmt.Errorf("block has no instructions, expected a terminator")
		}
		for i, inst := range b.Instructions {
			term := IsTerminator(inst.Op(m))
			if term && i != len(b.Instructions)-1 {
				return fmt.Errorf("terminator at position %d, expected %d", i, len(b.Instructions)-1)
			}
			if !term && i == len(b.Instructions)-1 {
				return fmt.Errorf("last instruction at position %d is not a terminator", i)
			}
		}
		return nil
	})
}

// CheckNoAlias verifies the post-dealias invariant: no instruction's opcode
// is Alias, anywhere in the tree rooted at root.
func CheckNoAlias(m *Meta, root *Block) error {
	return walkBlocksForCheck(root, func(b *Block) error {
		for _, inst := range b.Instructions {
			if _, ok := inst.Op(m).(*Alias); ok {
				return fmt.Errorf("Alias instruction survived dealias")
			}
		}
		return nil
	})
}

// CheckNoMergeInputs verifies the post-astify invariant: no block carries a
// merge input, and no Merge opcode carries a value.
func CheckNoMergeInputs(m *Meta, root *Block) error {
	return walkBlocksForCheck(root, func(b *Block) error {
		if b.Input != nil {
			return fmt.Errorf("block still has a merge input after astify")
		}
		for _, inst := range b.Instructions {
			if merge, ok := inst.Op(m).(*Merge); ok && merge.Value != nil {
				return fmt.Errorf("Merge instruction still carries a value after astify")
			}
		}
		return nil
	})
}

func walkBlocksForCheck(b *Block, check func(*Block) error) error {
	if b == nil {
		return nil
	}
	if err := check(b); err != nil {
		return err
	}
	for _, child := range b.Children() {
		if err := walkBlocksForCheck(child, check); err != nil {
			return err
		}
	}
	return nil
}
