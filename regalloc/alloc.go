package regalloc

import (
	"math"

	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

const farAway = math.MaxInt32

// liveDistances collects, for the Values live out of a block, their
// recorded use-distance (§4.2) so the forward walk can approximate a
// cross-block next-use for Belady spill comparisons (§4.3.1 "Inter-block
// next-use").
func liveDistances(f *ssa.Func, b ssa.BlockID) map[ssa.ValueID]int {
	m := map[ssa.ValueID]int{}
	for _, lo := range f.LiveOutOf(b) {
		if d, ok := m[lo.Value]; !ok || lo.Dist < d {
			m[lo.Value] = lo.Dist
		}
	}
	return m
}

// buildUseList scans block b forward once and records, for every Value
// used within it, the increasing list of positions at which it is
// consumed (a control value at position len(values)) — the "intrusive
// linked list of remaining Uses" of §4.3.1, realized here as a plain slice
// since Go has no pointer-splicing need for it.
func (a *Allocator) buildUseList(blk *ssa.Block) {
	vals := blk.Values()
	for i, vid := range vals {
		v := a.f.Value(vid)
		for _, arg := range v.Args() {
			a.useList[arg] = append(a.useList[arg], i)
		}
	}
	for _, c := range blk.ControlValues() {
		a.useList[c] = append(a.useList[c], len(vals))
	}
}

// buildNextCall fills a.nextCall[i] with the distance from position i to
// the nearest call at or after i (farAway if none). Nothing in the
// allocator reads it: spillAcrossCall picks the values to spill at a call
// from nextUseDistance (§4.3.3 "For calls").
func (a *Allocator) buildNextCall(blk *ssa.Block) {
	vals := blk.Values()
	a.nextCall = make([]int, len(vals)+1)
	next := farAway
	for i := len(vals) - 1; i >= 0; i-- {
		if a.f.Value(vals[i]).Op().IsCall() {
			next = 0
		}
		a.nextCall[i] = next
		if next != farAway {
			next++
		}
	}
	a.nextCall[len(vals)] = next
}

// nextUseDistance estimates how far away (in instructions) the next use of
// v is from position pos in block b, preferring the exact intra-block
// answer and falling back to the live-out distance recorded by Liveness
// for values that escape the block, and to "effectively infinite" for
// values dead by the end of the block (§4.3.1, §4.2).
func (a *Allocator) nextUseDistance(blk *ssa.Block, pos int, v ssa.ValueID, liveDist map[ssa.ValueID]int) int {
	for _, p := range a.useList[v] {
		if p >= pos {
			return p - pos
		}
	}
	if d, ok := liveDist[v]; ok {
		return (len(blk.Values()) - pos) + d
	}
	return farAway
}

// chooseVictim picks the resident, non-`used` register whose Value has the
// farthest next use (Belady's rule, §4.3.1 "spill victim selection"),
// preferring an already-spilled (spill_used) Value so no new store_reg is
// needed, and panicking if every allocatable register is committed to the
// current instruction's inputs — a condition lowering must never produce
// (§4.3.3 "An instruction whose argument count exceeds the allocatable set
// is a lowering bug").
func (a *Allocator) chooseVictim(blk *ssa.Block, pos int, liveDist map[ssa.ValueID]int) Reg {
	best := RegInvalid
	bestDist := -1
	bestSpilled := false
	for _, r := range Allocatable {
		if a.used[r] {
			continue
		}
		v := a.regValue[r]
		if v == invalid {
			return r
		}
		d := a.nextUseDistance(blk, pos, v, liveDist)
		_, spilled := a.SpillOf(v)
		switch {
		case best == RegInvalid:
			best, bestDist, bestSpilled = r, d, spilled
		case spilled && !bestSpilled:
			best, bestDist, bestSpilled = r, d, spilled
		case spilled == bestSpilled && d > bestDist:
			best, bestDist, bestSpilled = r, d, spilled
		}
	}
	if best == RegInvalid {
		panic("regalloc: no register available to evict; lowering produced an instruction needing more registers than AAPCS64 allocates")
	}
	return best
}

// spillSlot returns v's OpStoreReg Value, materializing it (via
// InsertBefore b's instruction `before`) the first time v must leave a
// register while still live (§4.3.1 "optional spill Value... created
// lazily", §4.4).
func (a *Allocator) spillSlot(b ssa.BlockID, before ssa.ValueID, v ssa.ValueID) ssa.ValueID {
	vs := a.state(v)
	if vs.hasSpill {
		return vs.spill
	}
	val := a.f.Value(v)
	sp := a.f.InsertBefore(b, before, ssa.OpStoreReg, val.Type(), val.Pos(), v)
	vs.spill = sp
	vs.hasSpill = true
	a.spillLiveOf[b] = append(a.spillLiveOf[b], v)
	return sp
}

// evict frees r, spilling its resident Value to the stack first unless the
// Value is rematerializable (in which case no store is ever needed — the
// consumer that next wants it gets a fresh recomputation instead, §4.3.3
// "rematerialization in preference to spill/reload") or it is provably
// dead (no next use at all).
func (a *Allocator) evict(b ssa.BlockID, before ssa.ValueID, r Reg, blk *ssa.Block, pos int, liveDist map[ssa.ValueID]int) {
	v := a.regValue[r]
	if v == invalid {
		return
	}
	op := a.f.Value(v).Op()
	dead := a.nextUseDistance(blk, pos, v, liveDist) == farAway
	if a.regDirty[r] && !op.Rematerializable() && !dead {
		a.spillSlot(b, before, v)
	}
	a.freeReg(r)
}

// ensureInReg makes sure v occupies some allocatable register at
// instruction position pos within block b, evicting a victim or
// rematerializing/reloading as needed, and returns that register. The
// returned register is marked `used` so later allocation in the same
// instruction cannot evict it out from under its own operand (§4.3.1 "Used
// mask").
func (a *Allocator) ensureInReg(b ssa.BlockID, blk *ssa.Block, pos int, before ssa.ValueID, v ssa.ValueID, liveDist map[ssa.ValueID]int) Reg {
	if r, ok := a.resident[v]; ok {
		a.used[r] = true
		return r
	}

	r := a.pickFreeReg()
	if r == RegInvalid {
		r = a.chooseVictim(blk, pos, liveDist)
		a.evict(b, before, r, blk, pos, liveDist)
	}

	val := a.f.Value(v)
	if val.Op().Rematerializable() {
		clone := a.f.InsertBefore(b, before, val.Op(), val.Type(), val.Pos())
		a.f.SetAuxInt(clone, val.AuxInt())
		a.f.SetAuxSymbol(clone, val.AuxSymbol())
		a.rewireConsumer(before, v, clone)
		a.bind(r, v, false)
		// The physical instruction lowering must find a destination
		// register for is `clone`, not `v` (v's own definition, if it has
		// one, keeps whatever Location it was already given) — see
		// DESIGN.md "Home is last-writer-wins across blocks".
		a.f.SetHome(clone, ssa.Location{Kind: ssa.LocationRegister, Reg: uint8(r)})
		a.used[r] = true
		return r
	}

	if sp, ok := a.SpillOf(v); ok {
		ld := a.f.InsertBefore(b, before, ssa.OpLoadReg, val.Type(), val.Pos(), sp)
		a.bind(r, v, false)
		a.f.SetHome(ld, ssa.Location{Kind: ssa.LocationRegister, Reg: uint8(r)})
		a.used[r] = true
		return r
	}

	// Live but never yet materialized in this block and has no spill:
	// only possible for a phi result or cross-block value whose producer
	// is in a predecessor, reconciled by the shuffle pass rather than
	// here — bind the register now and let shuffle supply the value on
	// entry to this block.
	a.bind(r, v, false)
	a.used[r] = true
	return r
}

// rewireConsumer redirects the single argument reference to `old` in the
// instruction `consumer` over to `new`; used right after rematerializing
// an operand in place, since the rematerialized clone is only valid for
// that one consumer (§4.3.3).
func (a *Allocator) rewireConsumer(consumer, old, new ssa.ValueID) {
	val := a.f.Value(consumer)
	for i, arg := range val.Args() {
		if arg == old {
			a.f.ReplaceArg(consumer, i, new)
		}
	}
}

// allocateBlock runs §4.3.3's per-block allocation: seed from a processed
// predecessor's end state, allocate phi results, then walk the block's own
// instructions in program order allocating operands and results.
func (a *Allocator) allocateBlock(b ssa.BlockID, processed map[ssa.BlockID]bool) {
	blk := a.f.Block(b)
	a.resetBlockState()
	a.buildUseList(blk)
	a.buildNextCall(blk)
	liveDist := liveDistances(a.f, b)

	a.seedFromPredecessor(b, blk, processed)

	// Phase: phi results. A phi's value is only ever resolved at entry to
	// this block (via shuffle), so its allocation here is reservation-only
	// — pick a register, seeded from whichever already-processed
	// predecessor supplied the "primary" value (its first operand),
	// matching that predecessor's register when possible to save a
	// shuffle copy (§4.3.3 step 2, "primary predecessor").
	for _, phi := range blk.Phis() {
		a.allocatePhi(phi, blk)
	}
	a.captureEntryRegs(b)

	vals := blk.Values()
	for i, vid := range vals {
		a.clearUsedMask()
		// The value's own future residency must not be evicted by its own
		// argument allocation if it is reused in place (resultInArg0).
		val := a.f.Value(vid)
		op := val.Op()

		var argRegs []Reg
		for _, arg := range val.Args() {
			argRegs = append(argRegs, a.ensureInReg(b, blk, i, vid, arg, liveDist))
		}

		if op.IsCall() {
			a.spillAcrossCall(b, vid, blk, i, liveDist)
		}

		if !op.HasSideEffects() && a.f.Value(vid).Uses() == 0 && op != ssa.OpStoreReg {
			// Dead on arrival (never consumed): still must exist for the
			// emitter's program order, but needs no destination register.
			continue
		}
		if isVoid(op) {
			continue
		}

		var r Reg
		if op.ResultInArg0() && len(argRegs) > 0 {
			r = argRegs[0]
		} else {
			r = a.pickFreeReg()
			if r == RegInvalid {
				r = a.chooseVictim(blk, i, liveDist)
				a.evict(b, vid, r, blk, i, liveDist)
			}
		}
		a.used[r] = true
		a.bind(r, vid, true)
	}

	for _, cv := range blk.ControlValues() {
		a.clearUsedMask()
		a.ensureInReg(b, blk, len(vals), invalid, cv, liveDist)
	}

	a.recordEndRegs(b)
	processed[b] = true
}

func isVoid(op ssa.Op) bool {
	return op == ssa.OpStore
}

// allocatePhi reserves a register for a phi result, preferring the
// register its primary predecessor (preds[0]) left the corresponding
// argument in, when that predecessor has already been processed — this is
// the "seeding" §4.3.3 step 2 describes, and it is what keeps the common
// case (a loop's single-entry, single-latch header) shuffle-copy-free.
func (a *Allocator) allocatePhi(phi ssa.ValueID, blk *ssa.Block) {
	val := a.f.Value(phi)
	var seed Reg = RegInvalid
	if len(blk.Preds()) > 0 {
		primary := blk.Preds()[0].Block
		if er, ok := a.endRegsOf[primary]; ok {
			arg := val.Args()[0]
			for r := Reg(0); r < numRegs; r++ {
				if er.value[r] == arg && IsAllocatable(r) {
					seed = r
					break
				}
			}
		}
	}
	r := seed
	if r == RegInvalid || a.regValue[r] != invalid {
		r = a.pickFreeReg()
	}
	if r == RegInvalid {
		r = a.chooseVictim(blk, 0, nil)
		anchor := invalid
		if vs := blk.Values(); len(vs) > 0 {
			anchor = vs[0]
		}
		a.evict(blk.ID(), anchor, r, blk, 0, nil)
	}
	a.bind(r, phi, true)
}

// spillAcrossCall spills every caller-saved register still holding a
// live-past-the-call Value immediately before a call instruction, per
// AAPCS64's caller-saved convention and §4.3.3 "For calls: spill any
// caller-saved register holding a Value live past the call".
func (a *Allocator) spillAcrossCall(b ssa.BlockID, call ssa.ValueID, blk *ssa.Block, pos int, liveDist map[ssa.ValueID]int) {
	for r := Reg(0); r <= 17; r++ {
		v := a.regValue[r]
		if v == invalid || v == call {
			continue
		}
		if a.nextUseDistance(blk, pos, v, liveDist) == farAway {
			a.freeReg(r)
			continue
		}
		a.evict(b, call, r, blk, pos, liveDist)
	}
}

func (a *Allocator) recordEndRegs(b ssa.BlockID) {
	er := newEndRegs()
	for r := 0; r < numRegs; r++ {
		er.value[r] = a.regValue[r]
		er.dirty[r] = a.regDirty[r]
	}
	a.endRegsOf[b] = er
}

// seedFromPredecessor initializes this block's register file from the
// lowest-id already-processed predecessor's end state (§4.3.3's
// deterministic choice among possibly several processed predecessors;
// §4.3.4's shuffle pass reconciles any mismatch against the others after
// every block has been allocated once).
func (a *Allocator) seedFromPredecessor(b ssa.BlockID, blk *ssa.Block, processed map[ssa.BlockID]bool) {
	var chosen *endRegs
	best := ^ssa.BlockID(0)
	for _, e := range blk.Preds() {
		if processed[e.Block] && e.Block < best {
			if er, ok := a.endRegsOf[e.Block]; ok {
				chosen, best = er, e.Block
			}
		}
	}
	if chosen == nil {
		return
	}
	for r := 0; r < numRegs; r++ {
		v := chosen.value[r]
		if v != invalid {
			a.regValue[r] = v
			a.regDirty[r] = false
			a.resident[v] = Reg(r)
		}
	}
}
