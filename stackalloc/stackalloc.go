// Package stackalloc implements §4.4: assigning a stack offset to every
// local and every spill Value, reusing spill slots across non-interfering
// spills, and computing the final 16-byte-aligned frame size.
package stackalloc

import (
	"github.com/cot-land/bootstrap-0.2-sub003/internal/xlog"
	"github.com/cot-land/bootstrap-0.2-sub003/regalloc"
	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

// headerSize is the saved-FP/LR area every frame carries (§4.4 frame
// diagram: "[ saved LR ] <- [FP+8]", "[ saved FP ] <- [FP+0]").
const headerSize = 16

// Layout is the output of stack allocation: the final frame size. The
// stack Locations of locals and spills are recorded on the Func itself
// (SetLocalHome/SetHome), not here.
type Layout struct {
	FrameSize int64
}

// slot is one reusable stack storage location; occupants is every spill
// Value that has ever been assigned to it, used to check non-interference
// before handing it to one more (§4.4 "Spill slot reuse").
type slot struct {
	offset    int64
	size      int64
	occupants []ssa.ValueID
}

// Allocate assigns ssa.Location{Kind: LocationStack} to every entry in
// f.Locals and to every spill Value a's allocation created, then returns
// the frame's total (16-byte-aligned) size. a must have already completed
// DoAllocation on f.
func Allocate(f *ssa.Func, a *regalloc.Allocator) *Layout {
	cur := int64(0)
	for i, lv := range f.Locals {
		sz := lv.Size
		if sz <= 0 {
			sz = 8
		}
		align := sz
		if align > 8 {
			align = 8 // no >8-byte-aligned aggregates in this ABI's locals (§6.2)
		}
		cur = alignUp(cur+sz, align)
		f.SetLocalHome(i, ssa.Location{Kind: ssa.LocationStack, Offset: int32(-(headerSize + cur))})
	}
	localsEnd := cur

	spillOf := collectSpills(f, a)
	interferes := buildInterference(f, a, spillOf)
	order := orderedSpillValues(spillOf)

	var slots []*slot
	frameCur := localsEnd
	for _, v := range order {
		typ := f.Value(v).Type()
		sz := typ.Size()
		s := findReusableSlot(slots, v, sz, interferes)
		if s == nil {
			frameCur = alignUp(frameCur+sz, sz)
			s = &slot{offset: -(headerSize + frameCur), size: sz}
			slots = append(slots, s)
		}
		s.occupants = append(s.occupants, v)
		// The slot offset belongs to the spill Value (the store_reg/load_reg
		// instructions lowering emits), not the original: v keeps whatever
		// register Home regalloc gave its defining occurrence, and
		// spillOf[v] is what isa/arm64/lower.go reads the frame offset from.
		f.SetHome(spillOf[v], ssa.Location{Kind: ssa.LocationStack, Offset: int32(s.offset)})
	}

	layout := &Layout{FrameSize: alignUp(headerSize+frameCur, 16)}
	xlog.StackAllocDone(f.Name, layout.FrameSize)
	return layout
}

func alignUp(n, align int64) int64 {
	if align <= 0 {
		align = 8
	}
	return (n + align - 1) / align * align
}

// collectSpills returns, for every Value regalloc ever spilled, its
// OpStoreReg identity (§4.3.1 "optional spill Value... store_reg
// instruction, created lazily").
func collectSpills(f *ssa.Func, a *regalloc.Allocator) map[ssa.ValueID]ssa.ValueID {
	out := map[ssa.ValueID]ssa.ValueID{}
	for _, b := range f.Blocks() {
		for _, vid := range f.Block(b).Values() {
			if sp, ok := a.SpillOf(vid); ok {
				out[vid] = sp
			}
		}
	}
	return out
}

// orderedSpillValues returns spilled original-Value ids in ascending id
// order — a stable, deterministic program order to walk during greedy
// slot assignment.
func orderedSpillValues(spillOf map[ssa.ValueID]ssa.ValueID) []ssa.ValueID {
	out := make([]ssa.ValueID, 0, len(spillOf))
	for v := range spillOf {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

type interferenceSet map[ssa.ValueID]map[ssa.ValueID]bool

func (s interferenceSet) add(a, b ssa.ValueID) {
	if a == b {
		return
	}
	if s[a] == nil {
		s[a] = map[ssa.ValueID]bool{}
	}
	if s[b] == nil {
		s[b] = map[ssa.ValueID]bool{}
	}
	s[a][b] = true
	s[b][a] = true
}

func (s interferenceSet) interferes(a, b ssa.ValueID) bool {
	return s[a] != nil && s[a][b]
}

// buildInterference walks each block in reverse maintaining the live set
// of spilled Values, per §4.4: "when a spill Value is defined, it
// interferes with every Value then in the live set", plus "every pair of
// spills that crosses the same call instruction interferes pairwise".
func buildInterference(f *ssa.Func, a *regalloc.Allocator, spillOf map[ssa.ValueID]ssa.ValueID) interferenceSet {
	result := interferenceSet{}
	for _, b := range f.Blocks() {
		blk := f.Block(b)
		live := map[ssa.ValueID]bool{}
		for _, lo := range f.LiveOutOf(b) {
			if _, ok := spillOf[lo.Value]; ok {
				live[lo.Value] = true
			}
		}
		for _, cv := range blk.ControlValues() {
			if _, ok := spillOf[cv]; ok {
				live[cv] = true
			}
		}

		vals := blk.Values()
		for i := len(vals) - 1; i >= 0; i-- {
			vid := vals[i]
			val := f.Value(vid)

			if val.Op().IsCall() {
				crossing := make([]ssa.ValueID, 0, len(live))
				for v := range live {
					crossing = append(crossing, v)
				}
				for x := 0; x < len(crossing); x++ {
					for y := x + 1; y < len(crossing); y++ {
						result.add(crossing[x], crossing[y])
					}
				}
			}

			if _, ok := spillOf[vid]; ok {
				for other := range live {
					result.add(vid, other)
				}
				delete(live, vid)
			}

			for _, arg := range val.Args() {
				if _, ok := spillOf[arg]; ok {
					live[arg] = true
				}
			}
		}
	}
	return result
}

// findReusableSlot returns an existing slot whose size matches and none of
// whose occupants interfere with v, or nil if v needs a fresh slot (§4.4
// "either reuse an existing slot... or allocate a new one").
func findReusableSlot(slots []*slot, v ssa.ValueID, size int64, interferes interferenceSet) *slot {
	for _, s := range slots {
		if s.size != size {
			continue
		}
		ok := true
		for _, occ := range s.occupants {
			if interferes.interferes(v, occ) {
				ok = false
				break
			}
		}
		if ok {
			return s
		}
	}
	return nil
}
