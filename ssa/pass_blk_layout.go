package ssa

// LayoutBlocks produces the final block emission order (§SPEC_FULL
// "branch-likelihood-aware block layout"), straightening a likely-taken
// edge into fallthrough position instead of always following raw reverse
// postorder. Grounded on the teacher's own builder.LayoutBlocks /
// markFallthroughJumps (backend/ssa/builder.go), simplified: this backend
// never splits critical edges (no trampoline blocks), since CORE's block
// shapes (§3 BlockKind) never need one to preserve a phi's edge-specific
// value — every edge here already carries its value through a named local,
// not a phi operand position.
//
// The algorithm walks reverse postorder and, whenever the block it just
// placed has a successor that isn't the block §4.2's penalty model marks
// LikelihoodUnlikely, chains straight into that successor next (skipping
// ahead of where reverse postorder would have placed it), falling back to
// reverse postorder for everything else. A block already placed by an
// earlier chain is skipped when reverse postorder reaches it normally.
// A function in which no block carries a likelihood hint is returned in
// plain reverse postorder, with no chaining at all.
func (f *Func) LayoutBlocks() []BlockID {
	rpo := f.ReversePostorder()
	hinted := false
	for i := range f.blocks {
		if f.blocks[i].likelihood != LikelihoodNone {
			hinted = true
			break
		}
	}
	if !hinted {
		return rpo
	}
	placed := make([]bool, len(f.blocks))
	order := make([]BlockID, 0, len(rpo))

	var chain func(b BlockID)
	chain = func(b BlockID) {
		if placed[b] {
			return
		}
		placed[b] = true
		order = append(order, b)
		if next, ok := fallthroughCandidate(f, f.Block(b)); ok {
			chain(next)
		}
	}

	for _, b := range rpo {
		chain(b)
	}
	return order
}

// fallthroughCandidate picks which of blk's successors (if any) should
// immediately follow it in layout order. A BlockPlain/BlockIf with one
// successor always chains to it. A BlockIf with two successors chains to
// whichever successor's own Likelihood hint marks it the common case
// (Likely, or the other side marked Unlikely); with no hint on either
// side it defaults to the true (index 0) successor, leaving the false
// side to require an explicit jump. It is only consulted for functions
// where at least one block carries a hint.
func fallthroughCandidate(f *Func, blk *Block) (BlockID, bool) {
	succs := blk.Succs()
	switch len(succs) {
	case 0:
		return 0, false
	case 1:
		return succs[0].Block, true
	default:
		trueB, falseB := succs[0].Block, succs[1].Block
		return pickLikelySucc(f, trueB, falseB), true
	}
}

func pickLikelySucc(f *Func, trueB, falseB BlockID) BlockID {
	t, fa := f.Block(trueB).Likelihood(), f.Block(falseB).Likelihood()
	switch {
	case t == LikelihoodUnlikely && fa != LikelihoodUnlikely:
		return falseB
	case fa == LikelihoodUnlikely && t != LikelihoodUnlikely:
		return trueB
	case fa == LikelihoodLikely && t != LikelihoodLikely:
		return falseB
	default:
		return trueB
	}
}
