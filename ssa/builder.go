package ssa

import "github.com/cot-land/bootstrap-0.2-sub003/internal/diag"

// Variable is a frontend local-variable index, exactly the "local variable
// indices" §4.1 says the input IR uses instead of SSA values.
type Variable uint32

// Builder drives construction of a Func's SSA form from a frontend IR
// whose blocks already reference local-variable slots (§4.1). It
// implements the on-the-fly variable-to-phi algorithm (Braun et al.,
// "Simple and Efficient Construction of Static Single Assignment Form"),
// the same algorithm wazevo's ssa.builder uses for its block-parameter
// variant of SSA; here it is adapted to emit classic Phi Values ordered to
// match each block's predecessor list, per §3's Edge/Phi invariant.
type Builder struct {
	f *Func

	varTypes []Type // Variable -> Type, grown lazily

	// defs[block][variable] is the Value most recently defining `variable`
	// on exit from `block` (§4.1 "defs[b][x]").
	defs []map[Variable]ValueID

	// incomplete[block][variable] holds a not-yet-filled Phi materialized
	// because `block` was unsealed at read time; filled in by SealBlock.
	incomplete []map[Variable]ValueID

	cur BlockID

	// aliases records phi ids collapsed by tryRemoveTrivialPhi to their
	// replacement, so any reference recorded only in builder bookkeeping
	// (rather than in Value.args, which ReplaceAllUses already rewrote)
	// still resolves correctly.
	aliases map[ValueID]ValueID
}

// NewBuilder returns a Builder that constructs SSA form for f.
func NewBuilder(f *Func) *Builder {
	return &Builder{f: f}
}

func (bd *Builder) growTo(b BlockID) {
	for len(bd.defs) <= int(b) {
		bd.defs = append(bd.defs, nil)
		bd.incomplete = append(bd.incomplete, nil)
	}
}

// DeclareVariable records the type of a local-variable slot; must be
// called (directly, or implicitly via WriteVariable) before any read.
func (bd *Builder) DeclareVariable(v Variable, t Type) {
	for Variable(len(bd.varTypes)) <= v {
		bd.varTypes = append(bd.varTypes, 0)
	}
	bd.varTypes[v] = t
}

func (bd *Builder) typeOf(v Variable) Type {
	if int(v) >= len(bd.varTypes) || bd.varTypes[v] == 0 {
		diag.Bugf(diag.Context{}, "read of undeclared variable v%d", v)
	}
	return bd.varTypes[v]
}

// SetCurrentBlock directs subsequent WriteVariable calls at block b.
func (bd *Builder) SetCurrentBlock(b BlockID) { bd.cur = b }

// CurrentBlock returns the block set by SetCurrentBlock.
func (bd *Builder) CurrentBlock() BlockID { return bd.cur }

// WriteVariable records that `value` is the current definition of
// `variable` on exit from `block` (§4.1 "defs[b][x]").
func (bd *Builder) WriteVariable(variable Variable, value ValueID, block BlockID) {
	bd.growTo(block)
	if bd.defs[block] == nil {
		bd.defs[block] = make(map[Variable]ValueID)
	}
	bd.defs[block][variable] = value
}

// ReadVariable returns the Value currently defining `variable` as observed
// from `block`, materializing phis (possibly incomplete ones, if `block`
// is not yet sealed) as required by §4.1.
func (bd *Builder) ReadVariable(variable Variable, block BlockID) ValueID {
	bd.growTo(block)
	if v, ok := bd.defs[block][variable]; ok {
		return v
	}
	return bd.readRecursive(variable, block)
}

func (bd *Builder) readRecursive(variable Variable, block BlockID) ValueID {
	blk := bd.f.Block(block)

	if !blk.sealed {
		// Incomplete CFG from the reader's perspective: `block` may yet
		// gain predecessors we haven't visited (a loop header reached
		// before its back edge's source block is built). Materialize a
		// placeholder and remember it; SealBlock resolves it later (§4.1
		// "Forward references").
		ph := bd.f.newValue(OpFwdRef, bd.typeOf(variable), Pos{}, block)
		bd.f.SetAuxInt(ph, int64(variable))
		bd.WriteVariable(variable, ph, block)
		if bd.incomplete[block] == nil {
			bd.incomplete[block] = make(map[Variable]ValueID)
		}
		bd.incomplete[block][variable] = ph
		return ph
	}

	if len(blk.preds) == 1 {
		v := bd.ReadVariable(variable, blk.preds[0].Block)
		bd.WriteVariable(variable, v, block)
		return v
	}

	if len(blk.preds) == 0 {
		// Reachable-but-undefined local (§4.1 "Fail modes"): the frontend
		// is responsible for not doing this; we still produce well-formed
		// SSA by materializing an undefined constant rather than failing.
		v := bd.f.newValue(OpConstInt, bd.typeOf(variable), Pos{}, block)
		bd.f.SetAuxInt(v, 0)
		blk.values = append(blk.values, v)
		bd.WriteVariable(variable, v, block)
		return v
	}

	// Multiple predecessors: materialize a phi up front (so recursive
	// reads that loop back to this variable terminate), then fill it.
	phi := bd.f.newValue(OpPhi, bd.typeOf(variable), Pos{}, block)
	bd.f.values[phi].auxInt = int64(variable)
	blk.phis = append(blk.phis, phi)
	bd.WriteVariable(variable, phi, block)
	bd.fillPhiOperands(phi, block)
	return bd.tryRemoveTrivialPhi(phi)
}

func (bd *Builder) fillPhiOperands(phi ValueID, block BlockID) {
	blk := bd.f.Block(block)
	variable := bd.phiVariableOf(phi)
	args := make([]ValueID, len(blk.preds))
	for i, e := range blk.preds {
		args[i] = bd.ReadVariable(variable, e.Block)
	}
	val := &bd.f.values[phi]
	val.args = args
	for _, a := range args {
		bd.f.addUse(a)
	}
}

// phiVariableOf recovers which Variable a phi stands for. Rather than a
// reverse map, builder keeps it alongside the phi via auxInt, mirroring
// fwd_ref's own encoding (§4.1).
func (bd *Builder) phiVariableOf(phi ValueID) Variable {
	return Variable(bd.f.Value(phi).auxInt)
}

// addPhi is used by SealBlock to promote a previously-incomplete fwd_ref
// placeholder into a real phi in place, so every existing use of its
// ValueID remains valid (§4.1 "rewritten in place... users updated").
func (bd *Builder) addPhi(ph ValueID, block BlockID, variable Variable) {
	val := &bd.f.values[ph]
	val.op = OpPhi
	val.auxInt = int64(variable)
	bd.f.blocks[block].phis = append(bd.f.blocks[block].phis, ph)
	bd.fillPhiOperands(ph, block)
}

// SealBlock marks `block` as having all of its predecessors known, and
// resolves every fwd_ref placeholder materialized while it was open
// (§4.1 "A block is sealed only after all its predecessors are known").
func (bd *Builder) SealBlock(block BlockID) {
	blk := bd.f.Block(block)
	for variable, ph := range bd.incomplete[block] {
		bd.addPhi(ph, block, variable)
		bd.tryRemoveTrivialPhi(ph)
	}
	bd.incomplete[block] = nil
	blk.sealed = true
}

// tryRemoveTrivialPhi collapses a phi whose operands are all identical (or
// all identical modulo a self-reference) into its single real operand,
// rewiring every use transitively (§4.1 "Trivial phis... are removed and
// their uses rewired, transitively").
func (bd *Builder) tryRemoveTrivialPhi(phi ValueID) ValueID {
	val := bd.f.Value(phi)
	if val.op != OpPhi {
		return phi
	}
	var same ValueID = invalidValueID
	for _, arg := range val.args {
		a := bd.resolveAlias(arg)
		if a == phi || a == same {
			continue
		}
		if same != invalidValueID {
			// Non-trivial: at least two distinct real operands.
			return phi
		}
		same = a
	}
	if same == invalidValueID {
		// Phi is unreachable / self-referential only: leave as-is, the
		// frontend guarantees it is never read in a reachable path.
		return phi
	}

	// Find other phis that used `phi` so we can recheck their triviality
	// after rewiring (transitivity, §4.1).
	var users []ValueID
	for i := range bd.f.values {
		v := &bd.f.values[i]
		if v.op != OpPhi || ValueID(i) == phi {
			continue
		}
		for _, a := range v.args {
			if a == phi {
				users = append(users, ValueID(i))
				break
			}
		}
	}

	bd.f.ReplaceAllUses(phi, same)
	bd.f.values[phi].args = nil
	bd.aliasTo(phi, same)
	blk := &bd.f.blocks[val.blk]
	for i, p := range blk.phis {
		if p == phi {
			blk.phis = append(blk.phis[:i], blk.phis[i+1:]...)
			break
		}
	}

	for _, u := range users {
		bd.tryRemoveTrivialPhi(u)
	}
	return same
}

// alias records that `phi` has been collapsed to `target`, so any stale
// reference recorded only in builder bookkeeping (defs maps) resolves
// correctly without a second rewrite pass.
func (bd *Builder) aliasTo(phi, target ValueID) {
	if bd.aliases == nil {
		bd.aliases = make(map[ValueID]ValueID)
	}
	bd.aliases[phi] = target
}

func (bd *Builder) resolveAlias(v ValueID) ValueID {
	for {
		t, ok := bd.aliases[v]
		if !ok {
			return v
		}
		v = t
	}
}
