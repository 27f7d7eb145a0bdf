package regalloc

import "github.com/cot-land/bootstrap-0.2-sub003/ssa"

const numRegs = 32
const invalid = ssa.ValueID(0xffff_ffff)

// endRegs is the per-block snapshot of which Value occupies which register
// at the end of a block's own allocation, before the shuffle pass runs
// (§4.3.1 "Edge state"). It is the handshake between per-block allocation
// and the shuffle pass.
type endRegs struct {
	value [numRegs]ssa.ValueID
	dirty [numRegs]bool
}

func newEndRegs() *endRegs {
	e := &endRegs{}
	for i := range e.value {
		e.value[i] = invalid
	}
	return e
}

// valueState is the persistent (across-block) per-Value bookkeeping of
// §4.3.1: whether it has ever been spilled, and to which OpStoreReg Value.
type valueState struct {
	spill    ssa.ValueID // OpStoreReg Value id; invalid until first spilled
	hasSpill bool
}

// Allocator runs the three phases of §4.3 over a single ssa.Func.
type Allocator struct {
	f *ssa.Func

	endRegsOf   map[ssa.BlockID]*endRegs
	entryRegsOf map[ssa.BlockID]*endRegs
	vstate      map[ssa.ValueID]*valueState

	// order is the reverse-postorder block sequence DoAllocation walked;
	// Shuffle reuses it to visit successors in the same order so a block's
	// entry requirements are always captured before its edges are fixed
	// up.
	order []ssa.BlockID

	// spillLiveOf records, per block, the Values live on exit whose
	// spill was materialized during that block's allocation — stackalloc
	// consumes this to build its interference graph (§4.3.3 step 7,
	// §4.4).
	spillLiveOf map[ssa.BlockID][]ssa.ValueID

	// Transient, reset at the start of each block's own allocation
	// (§4.3.1 "Per-Register state (reset at block boundaries)").
	regValue [numRegs]ssa.ValueID
	regDirty [numRegs]bool
	resident map[ssa.ValueID]Reg

	// useList holds, for the block currently being processed, each
	// Value's use positions within that block in increasing order
	// (§4.3.1 "intrusive linked list of remaining Uses"); built
	// fresh per block (§4.3.3 step 3, §9 "Intra-block vs inter-block").
	useList map[ssa.ValueID][]int
	// nextCall[i] is the distance from position i to the next call in
	// the block being processed, or a large sentinel if none (§4.3.1).
	nextCall []int

	// used is the set of registers already committed to the arguments of
	// the instruction currently being processed; output allocation may
	// not evict them (§4.3.1 "Used mask"). Cleared at the *start* of each
	// instruction and never before output allocation for that same
	// instruction (§9 "`used` mask lifetime").
	used [numRegs]bool

	// pending is never filled: spillSlot splices each store_reg into the
	// block directly via ssa.Func.InsertBefore, immediately ahead of the
	// consumer that caused it (§4.3.1 "Pending spills"), so no store_reg
	// ever waits here.
	pending []ssa.ValueID
}

// NewAllocator returns an Allocator ready to run DoAllocation on f.
func NewAllocator(f *ssa.Func) *Allocator {
	return &Allocator{
		f:           f,
		endRegsOf:   map[ssa.BlockID]*endRegs{},
		vstate:      map[ssa.ValueID]*valueState{},
		spillLiveOf: map[ssa.BlockID][]ssa.ValueID{},
	}
}

func (a *Allocator) state(v ssa.ValueID) *valueState {
	vs, ok := a.vstate[v]
	if !ok {
		vs = &valueState{spill: invalid}
		a.vstate[v] = vs
	}
	return vs
}

// SpillLiveOf returns the Values live on exit from block b whose spill
// slot was materialized during b's allocation (consumed by stackalloc).
func (a *Allocator) SpillLiveOf(b ssa.BlockID) []ssa.ValueID { return a.spillLiveOf[b] }

// SpillOf returns the OpStoreReg Value id that holds v's spill slot, and
// whether v has ever been spilled.
func (a *Allocator) SpillOf(v ssa.ValueID) (ssa.ValueID, bool) {
	vs, ok := a.vstate[v]
	if !ok || !vs.hasSpill {
		return invalid, false
	}
	return vs.spill, true
}

func (a *Allocator) resetBlockState() {
	for i := 0; i < numRegs; i++ {
		a.regValue[i] = invalid
		a.regDirty[i] = false
	}
	a.resident = map[ssa.ValueID]Reg{}
	a.useList = map[ssa.ValueID][]int{}
}

func (a *Allocator) clearUsedMask() {
	for i := range a.used {
		a.used[i] = false
	}
}

func (a *Allocator) freeReg(r Reg) {
	if v := a.regValue[r]; v != invalid {
		delete(a.resident, v)
	}
	a.regValue[r] = invalid
	a.regDirty[r] = false
}

func (a *Allocator) bind(r Reg, v ssa.ValueID, dirty bool) {
	a.regValue[r] = v
	a.regDirty[r] = dirty
	a.resident[v] = r
	// Home records the register a Value was most recently (re)computed
	// into; for the overwhelming majority of Values (never evicted, never
	// the target of a reconciliation copy) this is their one and only
	// register for their entire live range. See DESIGN.md "Home is
	// last-writer-wins across blocks" for the narrow case where a value's
	// register changes across a merge and how lowering must treat Home as
	// the register valid *as of this point in program order* rather than
	// a single global truth.
	a.f.SetHome(v, ssa.Location{Kind: ssa.LocationRegister, Reg: uint8(r)})
}

// pickFreeReg returns an allocatable register not in `used` and not
// currently resident, or RegInvalid if none exists.
func (a *Allocator) pickFreeReg() Reg {
	for _, r := range Allocatable {
		if !a.used[r] && a.regValue[r] == invalid {
			return r
		}
	}
	return RegInvalid
}
