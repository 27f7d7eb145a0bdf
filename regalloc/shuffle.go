package regalloc

import "github.com/cot-land/bootstrap-0.2-sub003/ssa"

// scratch is the temporary register the shuffle pass uses to break cycles
// (§4.3.4 "a temporary register"). x16 (IP0) is linker scratch and never
// allocatable (§4.3.2), so it is always free at block boundaries.
const scratch = RegX16

// entryRegsOf records, per block, the register assignment that block's own
// allocation *assumed* at entry — its phi results and any live-in Values
// carried over from a predecessor (§4.3.3 step 2's seeding). The shuffle
// pass reconciles every predecessor's actual end-of-block state against
// this per-edge, since different predecessors may supply a different phi
// argument or leave a shared live-in value in a different register.
func (a *Allocator) captureEntryRegs(b ssa.BlockID) {
	er := newEndRegs()
	for r := 0; r < numRegs; r++ {
		er.value[r] = a.regValue[r]
	}
	if a.entryRegsOf == nil {
		a.entryRegsOf = map[ssa.BlockID]*endRegs{}
	}
	a.entryRegsOf[b] = er
}

// Shuffle runs §4.3.4 over every CFG edge once all blocks have been
// allocated: it inserts copies at the tail of each predecessor so that,
// on arrival, every live-in register of the successor holds the value
// that predecessor's edge actually supplies (a predecessor-specific phi
// argument, or the same cross-block live value every predecessor must
// agree on).
func (a *Allocator) Shuffle() {
	for _, bid := range a.order {
		blk := a.f.Block(bid)
		entry, ok := a.entryRegsOf[bid]
		if !ok {
			continue
		}
		for i, e := range blk.Preds() {
			a.shuffleEdge(e.Block, bid, blk, i, entry)
		}
	}
}

// shuffleEdge reconciles predecessor p's end-of-block register file
// against successor s's entry requirements for the specific edge indexed
// i (the predecessor index a phi's i-th argument corresponds to, §3 Edge
// invariant).
func (a *Allocator) shuffleEdge(p, s ssa.BlockID, sblk *ssa.Block, i int, entry *endRegs) {
	pend, ok := a.endRegsOf[p]
	if !ok {
		return
	}

	desired := map[Reg]ssa.ValueID{}
	for r := 0; r < numRegs; r++ {
		v := entry.value[Reg(r)]
		if v == invalid {
			continue
		}
		if val := a.f.Value(v); val.Op() == ssa.OpPhi && val.Block() == s {
			desired[Reg(r)] = val.Args()[i]
		} else {
			desired[Reg(r)] = v
		}
	}

	current := map[Reg]ssa.ValueID{}
	locOf := map[ssa.ValueID]Reg{}
	for r := 0; r < numRegs; r++ {
		if v := pend.value[Reg(r)]; v != invalid {
			current[Reg(r)] = v
			locOf[v] = Reg(r)
		}
	}

	pblk := a.f.Block(p)
	var anchor ssa.ValueID = invalid
	if cv := pblk.ControlValues(); len(cv) > 0 {
		anchor = cv[0]
	}

	pending := map[Reg]ssa.ValueID{}
	for r, v := range desired {
		if cur, ok := current[r]; !ok || cur != v {
			pending[r] = v
		}
	}

	for len(pending) > 0 {
		progressed := false
		for r, v := range pending {
			src, resident := locOf[v]
			if !resident {
				a.emitReload(p, anchor, v, r)
				current[r] = v
				locOf[v] = r
				delete(pending, r)
				progressed = true
				continue
			}
			if src == r {
				delete(pending, r)
				progressed = true
				continue
			}
			if destNeededAsSource(pending, locOf, r) {
				continue // r still holds a value another pending move must read; defer
			}
			a.emitCopy(p, anchor, v, src, r)
			current[r] = v
			locOf[v] = r
			delete(pending, r)
			progressed = true
		}
		if !progressed && len(pending) > 0 {
			// Cycle: every remaining destination's source is itself a
			// pending destination. Break it by rescuing one value into the
			// scratch register, which frees its old home as a safe source.
			var r Reg
			for rr := range pending {
				r = rr
				break
			}
			old := current[r]
			a.emitCopy(p, anchor, old, r, scratch)
			locOf[old] = scratch
			current[scratch] = old
		}
	}
}

// destNeededAsSource reports whether register r is still the current
// location of some other pending move's source value — i.e. overwriting
// r now (to satisfy the move into r) would clobber a value another
// pending move still needs to read. This, not "is r itself a pending
// destination", is the correct readiness test (§4.3.4): a move is only
// safe to run once nothing else still pending depends on r's contents.
func destNeededAsSource(pending map[Reg]ssa.ValueID, locOf map[ssa.ValueID]Reg, r Reg) bool {
	for r2, v2 := range pending {
		if r2 == r {
			continue
		}
		if src, ok := locOf[v2]; ok && src == r {
			return true
		}
	}
	return false
}

func (a *Allocator) emitCopy(b ssa.BlockID, anchor ssa.ValueID, v ssa.ValueID, from, to Reg) {
	val := a.f.Value(v)
	var cp ssa.ValueID
	if anchor != invalid {
		cp = a.f.InsertBefore(b, anchor, ssa.OpCopy, val.Type(), val.Pos(), v)
	} else {
		cp = a.f.Append(b, ssa.OpCopy, val.Type(), val.Pos(), v)
	}
	a.f.SetHome(cp, ssa.Location{Kind: ssa.LocationRegister, Reg: uint8(to)})
	_ = from
}

// emitReload materializes v (by rematerialization if possible, else a
// load_reg from its spill slot) directly into register r at the tail of
// block b, for a value the shuffle pass needs that predecessor p's own
// allocation never kept resident (§4.3.4).
func (a *Allocator) emitReload(b ssa.BlockID, anchor ssa.ValueID, v ssa.ValueID, r Reg) {
	val := a.f.Value(v)
	var id ssa.ValueID
	if val.Op().Rematerializable() {
		if anchor != invalid {
			id = a.f.InsertBefore(b, anchor, val.Op(), val.Type(), val.Pos())
		} else {
			id = a.f.Append(b, val.Op(), val.Type(), val.Pos())
		}
		a.f.SetAuxInt(id, val.AuxInt())
		a.f.SetAuxSymbol(id, val.AuxSymbol())
	} else if sp, ok := a.SpillOf(v); ok {
		if anchor != invalid {
			id = a.f.InsertBefore(b, anchor, ssa.OpLoadReg, val.Type(), val.Pos(), sp)
		} else {
			id = a.f.Append(b, ssa.OpLoadReg, val.Type(), val.Pos(), sp)
		}
	} else {
		panic("regalloc: shuffle needs a value that was never kept resident or spilled")
	}
	a.f.SetHome(id, ssa.Location{Kind: ssa.LocationRegister, Reg: uint8(r)})
}
