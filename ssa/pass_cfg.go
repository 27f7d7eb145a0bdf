package ssa

// Postorder returns the reachable blocks of f in postorder starting from
// the entry block. Liveness (§4.2) iterates "to a fixed point on
// postorder"; regalloc's per-block allocation (§4.3.3) walks the same
// traversal reversed, computed by its own reversePostorder (which also
// takes in unreachable blocks), so that predecessors are processed before successors
// whenever possible (the "primary predecessor" merge seeding, §9).
func (f *Func) Postorder() []BlockID {
	visited := make([]bool, len(f.blocks))
	var order []BlockID
	var walk func(b BlockID)
	walk = func(b BlockID) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, e := range f.blocks[b].succs {
			walk(e.Block)
		}
		order = append(order, b)
	}
	walk(f.entry)
	return order
}

// ReversePostorder returns the reachable blocks of f in reverse postorder,
// the canonical linearization regalloc and the emitter lay blocks out in
// absent an explicit layout pass (§SPEC_FULL "branch-likelihood-aware
// block layout" may reorder within this as a later step).
func (f *Func) ReversePostorder() []BlockID {
	po := f.Postorder()
	rev := make([]BlockID, len(po))
	for i, b := range po {
		rev[len(po)-1-i] = b
	}
	return rev
}
