package ssa

import "github.com/cot-land/bootstrap-0.2-sub003/internal/xlog"

// Penalty distances added when a live range crosses a block boundary
// (§4.2). They encode Belady's rule as a numeric maximum: the allocator
// later picks the spill victim with the *largest* distance, so a value
// live across a call (distance +100) is preferred over one merely live
// across an unlikely branch (+100 too — both models "far away and
// possibly never needed again"), which in turn outranks a normal fall
// through (+10), which outranks a likely-taken branch (+1, "probably
// needed again very soon").
const (
	penaltyLikely     = 1
	penaltySequential = 10
	penaltyUnlikely   = 100
	penaltyCall       = 100
)

func edgePenalty(from *Block) int {
	switch from.likelihood {
	case LikelihoodLikely:
		return penaltyLikely
	case LikelihoodUnlikely:
		return penaltyUnlikely
	default:
		return penaltySequential
	}
}

// Liveness runs the backward dataflow of §4.2 over f and records each
// block's live-out set (value id and distance) via Func.SetLiveOut.
//
// The per-Value *intra-block* use list regalloc needs for Belady-accurate
// spill choice (§4.3.1, §9 "Intra-block next-use vs inter-block next-use")
// is deliberately NOT built here: it is cheaper and more precise to build
// it on demand, once per block, during regalloc's own scan of that block
// (§4.3.3 step 3) than to thread it through this coarser pass.
func Liveness(f *Func) {
	xlog.SSABuilt(f.Name, len(f.blocks), len(f.values))

	order := f.Postorder()

	liveOut := make(map[BlockID]map[ValueID]int, len(f.blocks))
	for _, b := range order {
		liveOut[b] = map[ValueID]int{}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range order {
			blk := f.Block(b)
			live := map[ValueID]int{}

			// Seed from each successor's live-in, which for this
			// coarse inter-block pass we approximate as that
			// successor's live-out plus the cost of walking through it;
			// for the common case (successor not yet visited this
			// iteration) this starts at the successor's current
			// believed live-out, converging over repeated passes.
			for _, e := range blk.succs {
				succ := f.Block(e.Block)
				pen := edgePenalty(blk)
				for v, d := range liveOut[e.Block] {
					nd := d + pen
					if cur, ok := live[v]; !ok || nd > cur {
						live[v] = nd
					}
				}
				// Phi arguments contributed to this successor are live
				// out of `b` at the branch, regardless of whether the
				// phi's *result* is otherwise live-in to succ.
				for _, pv := range succ.phis {
					val := f.Value(pv)
					for i, pe := range succ.preds {
						if pe.Block != b {
							continue
						}
						arg := val.args[i]
						if cur, ok := live[arg]; !ok || pen > cur {
							live[arg] = pen
						}
					}
				}
			}
			for _, cv := range blk.ctrl {
				if _, ok := live[cv]; !ok {
					live[cv] = 0
				}
			}

			// Walk bottom-to-top: each definition kills liveness, each
			// argument extends it; crossing a call pushes every
			// currently-live value's distance out by the call penalty
			// so values live across calls are preferred spill
			// candidates (§4.2).
			for i := len(blk.values) - 1; i >= 0; i-- {
				vid := blk.values[i]
				val := f.Value(vid)
				if val.op.IsCall() {
					for v := range live {
						live[v] += penaltyCall
					}
				}
				delete(live, vid)
				for _, a := range val.args {
					d := len(blk.values) - 1 - i
					if cur, ok := live[a]; !ok || d > cur {
						live[a] = d
					}
				}
			}

			if !mapsEqualInt(live, liveOut[b]) {
				liveOut[b] = live
				changed = true
			}
		}
	}

	for _, b := range order {
		set := liveOut[b]
		out := make([]LiveOut, 0, len(set))
		for v, d := range set {
			out = append(out, LiveOut{Value: v, Dist: d})
		}
		f.SetLiveOut(b, out)
	}
}

func mapsEqualInt(a, b map[ValueID]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
