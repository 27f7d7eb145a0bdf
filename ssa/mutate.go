package ssa

import "github.com/cot-land/bootstrap-0.2-sub003/internal/diag"

// This file holds the low-level Value/Block/Edge mutation primitives that
// back both the SSA builder (§4.1) and later passes (trivial-phi removal,
// regalloc's spill/reload and shuffle-copy insertion). Keeping them here keeps
// the invariants of §3 (unique ids, use counts, bidirectional edges) in one
// place rather than duplicated at each call site.

// NewBlock allocates a fresh, unsealed Block with no predecessors and no
// successors and returns its id.
func (f *Func) NewBlock(kind BlockKind, pos Pos) BlockID {
	id := BlockID(len(f.blocks))
	f.blocks = append(f.blocks, Block{id: id, kind: kind, pos: pos})
	if id == 0 {
		f.entry = id
	}
	return id
}

// newValue allocates a fresh Value in block b and returns its id. It does
// not append to b.values — callers append explicitly (phis are never
// appended to b.values; they are read via Block.Phis in builder.go).
func (f *Func) newValue(op Op, typ Type, pos Pos, blk BlockID) ValueID {
	id := ValueID(len(f.values))
	f.values = append(f.values, Value{id: id, op: op, typ: typ, pos: pos, blk: blk})
	return id
}

// AddInstruction allocates a new non-phi Value, appends it to the tail of
// block b's instruction list, and wires up its arguments' use counts
// (§3 invariant: "each argument holds +1 to that argument's use count").
func (f *Func) AddInstruction(b BlockID, op Op, typ Type, pos Pos, args ...ValueID) ValueID {
	id := f.newValue(op, typ, pos, b)
	v := &f.values[id]
	if n := op.ArgLen(); n >= 0 && n != len(args) {
		diag.Bugf(diag.Context{Value: int32(id)}, "%s expects %d args, got %d", op, n, len(args))
	}
	v.args = append(v.args, args...)
	for _, a := range args {
		f.addUse(a)
	}
	blk := &f.blocks[b]
	blk.values = append(blk.values, id)
	return id
}

// InsertBefore allocates a new Value and splices it into block b's
// instruction list immediately before `before` (which must already be in
// b). Regalloc uses this to place load_reg/store_reg/rematerialized
// copies precisely where §4.3.3 requires them — "before the consumer that
// caused them" — so that the final order is the canonical execution order
// the emitter preserves verbatim (§5).
func (f *Func) InsertBefore(b BlockID, before ValueID, op Op, typ Type, pos Pos, args ...ValueID) ValueID {
	id := f.newValue(op, typ, pos, b)
	v := &f.values[id]
	v.args = append(v.args, args...)
	for _, a := range args {
		f.addUse(a)
	}
	blk := &f.blocks[b]
	idx := len(blk.values)
	for i, vid := range blk.values {
		if vid == before {
			idx = i
			break
		}
	}
	blk.values = append(blk.values, invalidValueID)
	copy(blk.values[idx+1:], blk.values[idx:])
	blk.values[idx] = id
	return id
}

// Append allocates a new Value and appends it to the tail of block b's
// instruction list (used when there is no specific consumer to precede,
// e.g. a spill emitted for a call-clobbered register, §4.3.3).
func (f *Func) Append(b BlockID, op Op, typ Type, pos Pos, args ...ValueID) ValueID {
	return f.AddInstructionRaw(b, op, typ, pos, args...)
}

// AddInstructionRaw is AddInstruction without the declared arg-length
// check, used for variadic-by-construction synthesized ops.
func (f *Func) AddInstructionRaw(b BlockID, op Op, typ Type, pos Pos, args ...ValueID) ValueID {
	id := f.newValue(op, typ, pos, b)
	v := &f.values[id]
	v.args = append(v.args, args...)
	for _, a := range args {
		f.addUse(a)
	}
	blk := &f.blocks[b]
	blk.values = append(blk.values, id)
	return id
}

// AddPhi allocates a phi Value directly in block b's phi list, one arg per
// entry in b.Preds() order (§3 Edge/Phi invariant). Builder's own
// SSA-construction phis go through readRecursive/addPhi instead (they need
// the trivial-phi-elimination bookkeeping); this entry point is for passes
// and tests that already know the exact phi shape they want, such as
// regalloc's shuffle-pass fixtures.
func (f *Func) AddPhi(b BlockID, typ Type, pos Pos, args ...ValueID) ValueID {
	id := f.newValue(OpPhi, typ, pos, b)
	v := &f.values[id]
	v.args = append(v.args, args...)
	for _, a := range args {
		f.addUse(a)
	}
	blk := &f.blocks[b]
	blk.phis = append(blk.phis, id)
	return id
}

// SetAuxInt sets the signed-integer aux payload of a Value.
func (f *Func) SetAuxInt(v ValueID, i int64) { f.values[v].auxInt = i }

// SetAuxSymbol sets the symbol-name aux payload of a Value.
func (f *Func) SetAuxSymbol(v ValueID, s string) { f.values[v].auxSym = s }

// SetAuxCall sets the call-descriptor aux payload of a Value.
func (f *Func) SetAuxCall(v ValueID, c *AuxCall) { f.values[v].auxCall = c }

func (f *Func) addUse(v ValueID) { f.values[v].uses++ }

func (f *Func) removeUse(v ValueID) {
	f.values[v].uses--
	if f.values[v].uses < 0 {
		diag.Bugf(diag.Context{Value: int32(v)}, "use count went negative")
	}
}

// ReplaceArg rewrites the i-th argument of v, maintaining use counts on
// both the old and new argument (used by regalloc when splicing in a
// load_reg/rematerialized copy ahead of a consumer, §4.3.3).
func (f *Func) ReplaceArg(v ValueID, i int, newArg ValueID) {
	val := &f.values[v]
	old := val.args[i]
	val.args[i] = newArg
	f.removeUse(old)
	f.addUse(newArg)
}

// ReplaceAllUses rewrites every argument reference (and control-value
// reference) to `old` into `new` across the whole Func, used by trivial-phi
// elimination (§4.1). It does not
// touch `old`'s own definition.
func (f *Func) ReplaceAllUses(old, new ValueID) {
	if old == new {
		return
	}
	for i := range f.values {
		v := &f.values[i]
		for j, a := range v.args {
			if a == old {
				v.args[j] = new
				f.removeUse(old)
				f.addUse(new)
			}
		}
	}
	for bi := range f.blocks {
		b := &f.blocks[bi]
		for j, c := range b.ctrl {
			if c == old {
				b.ctrl[j] = new
				f.removeUse(old)
				f.addUse(new)
			}
		}
	}
}

// SetControl sets block b's control values (the branch condition for
// BlockIf, the return operands for BlockRet), registering uses.
func (f *Func) SetControl(b BlockID, ctrl ...ValueID) {
	blk := &f.blocks[b]
	for _, c := range blk.ctrl {
		f.removeUse(c)
	}
	blk.ctrl = append([]ValueID(nil), ctrl...)
	for _, c := range blk.ctrl {
		f.addUse(c)
	}
}

// AddEdge connects `from` -> `to`, appending to both endpoints' edge lists
// and maintaining the bidirectional invariant of §3 ("for every successor
// edge (to, i) of from, to.preds[i].block == from").
func (f *Func) AddEdge(from, to BlockID) {
	fb, tb := &f.blocks[from], &f.blocks[to]
	succIdx := len(fb.succs)
	predIdx := len(tb.preds)
	fb.succs = append(fb.succs, Edge{Block: to, Index: predIdx})
	tb.preds = append(tb.preds, Edge{Block: from, Index: succIdx})
}

// ConstInt returns the cached Value for const_int(typ, i), allocating one
// on first request (§3 "constant cache", §8 invariant 7: identity is
// preserved across repeated calls on the same Func).
func (f *Func) ConstInt(b BlockID, typ Type, i int64, pos Pos) ValueID {
	key := constKey{op: OpConstInt, typ: typ, auxInt: i}
	if id, ok := f.constCache[key]; ok {
		return id
	}
	id := f.newValue(OpConstInt, typ, pos, b)
	f.values[id].auxInt = i
	f.blocks[b].values = append(f.blocks[b].values, id)
	f.constCache[key] = id
	return id
}

// DiscardIfUnused removes a side-effect-free, zero-use Value from its
// block and purges it from the constant cache (§3: "a Value with uses==0
// and no side effects and that is not a control value may be discarded";
// §9 "Constant cache invalidation": a forgotten cache entry is a
// live-reference-to-dead-memory bug).
func (f *Func) DiscardIfUnused(v ValueID) bool {
	val := &f.values[v]
	if val.uses != 0 || val.op.HasSideEffects() {
		return false
	}
	blk := &f.blocks[val.blk]
	for i, id := range blk.values {
		if id == v {
			blk.values = append(blk.values[:i], blk.values[i+1:]...)
			break
		}
	}
	for _, a := range val.args {
		f.removeUse(a)
	}
	val.args = nil
	for key, id := range f.constCache {
		if id == v {
			delete(f.constCache, key)
			break
		}
	}
	return true
}
