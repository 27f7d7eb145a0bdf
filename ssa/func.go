package ssa

import "strconv"

// Signature is the parameter/result type list of a Func, mirroring the
// frontend's already-resolved type-checked signature (§6.1).
type Signature struct {
	Params  []Type
	Results []Type
}

// LocalVar is one row of a Func's local-variable table (§3 Func,
// §6.1 "Local table: [(name, type_index, size_bytes, is_param)]").
type LocalVar struct {
	Name    string
	Type    Type
	Size    int64
	IsParam bool
}

// constKey identifies a cacheable constant Value by structural identity
// (§3: "a constant cache mapping (op, type, aux_int) -> Value").
type constKey struct {
	op     Op
	typ    Type
	auxInt int64
}

// LiveOut is one entry of a Block's live-out set, as produced by liveness
// (§4.2): the Value and its use-distance from the top of the block it
// flows out of.
type LiveOut struct {
	Value ValueID
	Dist  int
}

// Func is a named unit of code; it exclusively owns all its Blocks and
// Values (§3 Func, §5 "A Func's data structures are owned exclusively by
// the thread compiling it").
type Func struct {
	Name string
	Sig  Signature

	blocks []Block
	values []Value

	entry BlockID

	constCache map[constKey]ValueID

	// home is populated by regalloc (registers) then stackalloc (stack
	// offsets for spills/locals); see §8 invariant 3.
	home []Location

	Locals    []LocalVar
	localHome []Location
	Strings   []string

	// blockLiveOut holds, per BlockID, the live-out set computed by
	// liveness (§4.2) and consumed by regalloc's per-block allocation
	// (§4.3.3 step 1).
	blockLiveOut [][]LiveOut
}

// NewFunc allocates an empty Func ready for SSA construction.
func NewFunc(name string, sig Signature) *Func {
	return &Func{
		Name:       name,
		Sig:        sig,
		constCache: make(map[constKey]ValueID),
	}
}

// Value returns the Value with the given id. An out-of-range id is always a
// backend bug, never a runtime condition (§7), so this panics rather than
// returning an error.
func (f *Func) Value(id ValueID) *Value {
	if int(id) >= len(f.values) {
		panic("ssa: invalid ValueID " + strconv.Itoa(int(id)))
	}
	return &f.values[id]
}

// Block returns the Block with the given id.
func (f *Func) Block(id BlockID) *Block {
	if int(id) >= len(f.blocks) {
		panic("ssa: invalid BlockID " + strconv.Itoa(int(id)))
	}
	return &f.blocks[id]
}

// NumBlocks returns the number of Blocks allocated so far.
func (f *Func) NumBlocks() int { return len(f.blocks) }

// NumValues returns the number of Values allocated so far.
func (f *Func) NumValues() int { return len(f.values) }

// Entry returns the entry Block's id.
func (f *Func) Entry() BlockID { return f.entry }

// Blocks returns ids for every allocated Block, in allocation order. Passes
// that need a specific traversal order (postorder, reverse postorder)
// compute it themselves from Preds/Succs; Func only owns storage.
func (f *Func) Blocks() []BlockID {
	ids := make([]BlockID, len(f.blocks))
	for i := range f.blocks {
		ids[i] = BlockID(i)
	}
	return ids
}

// SetHome records the Location assigned to a Value by regalloc/stackalloc.
func (f *Func) SetHome(v ValueID, loc Location) {
	if int(v) >= len(f.home) {
		grown := make([]Location, len(f.values))
		copy(grown, f.home)
		f.home = grown
	}
	f.home[v] = loc
}

// Home returns the Location assigned to a Value, or the zero Location if
// none has been assigned yet.
func (f *Func) Home(v ValueID) Location {
	if int(v) >= len(f.home) {
		return Location{}
	}
	return f.home[v]
}

// SetLocalHome records the stack Location stackalloc assigned to the i-th
// entry of f.Locals (§4.4). Locals are addressed by OpLocalAddr's AuxInt
// index, not by a ValueID, so they are tracked in their own parallel
// table rather than through SetHome/Home.
func (f *Func) SetLocalHome(i int, loc Location) {
	for len(f.localHome) <= i {
		f.localHome = append(f.localHome, Location{})
	}
	f.localHome[i] = loc
}

// LocalHome returns the stack Location assigned to the i-th local.
func (f *Func) LocalHome(i int) Location {
	if i >= len(f.localHome) {
		return Location{}
	}
	return f.localHome[i]
}

// SetLiveOut records the live-out set computed by liveness for block b.
func (f *Func) SetLiveOut(b BlockID, s []LiveOut) {
	for len(f.blockLiveOut) <= int(b) {
		f.blockLiveOut = append(f.blockLiveOut, nil)
	}
	f.blockLiveOut[b] = s
}

// LiveOutOf returns the live-out set computed by liveness for block b.
func (f *Func) LiveOutOf(b BlockID) []LiveOut {
	if int(b) >= len(f.blockLiveOut) {
		return nil
	}
	return f.blockLiveOut[b]
}
