package regalloc

import (
	"github.com/cot-land/bootstrap-0.2-sub003/internal/xlog"
	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

// DoAllocation runs the three phases of §4.3 over f: per-block allocation
// in reverse postorder (so a block's predecessors, excluding back edges,
// have already committed an end-of-block register state by the time it is
// processed), followed by a single shuffle pass over every CFG edge.
//
// The shuffle pass must run after every block has been allocated, not
// interleaved with the per-block walk: a loop header's back-edge
// predecessor has not been processed yet when the header itself is (§4.3.1
// "the handshake between the per-block walk and the shuffle pass"), so any
// edge whose source is still unprocessed at header-allocation time can only
// be reconciled afterward.
func DoAllocation(f *ssa.Func) *Allocator {
	ssa.Liveness(f)

	a := NewAllocator(f)
	a.order = reversePostorder(f)

	processed := map[ssa.BlockID]bool{}
	for _, b := range a.order {
		a.allocateBlock(b, processed)
	}

	a.Shuffle()

	spills := 0
	for _, vs := range a.vstate {
		if vs.hasSpill {
			spills++
		}
	}
	xlog.RegAllocDone(f.Name, spills)

	return a
}

// reversePostorder is regalloc's own copy of the traversal ssa.Func.Postorder
// already computes, kept local so this package does not need to reach back
// into ssa for an order it can derive itself from Preds/Succs — the
// allocator's block-processing order is an implementation detail of
// regalloc, not a property of the Func (ssa.Postorder is for liveness and
// layout, not for this).
func reversePostorder(f *ssa.Func) []ssa.BlockID {
	visited := make([]bool, f.NumBlocks())
	var post []ssa.BlockID
	var visit func(b ssa.BlockID)
	visit = func(b ssa.BlockID) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, e := range f.Block(b).Succs() {
			visit(e.Block)
		}
		post = append(post, b)
	}
	visit(f.Entry())
	// Any block unreachable from the entry by Succs (should not occur in
	// well-formed input, but defensive ordering here costs nothing) is
	// visited after the reachable ones, which puts it ahead of them once the
	// postorder is reversed; DoAllocation still processes it rather than
	// silently skipping it.
	for _, b := range f.Blocks() {
		visit(b)
	}
	rpo := make([]ssa.BlockID, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}
