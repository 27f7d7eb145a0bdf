package arm64

import (
	"github.com/cot-land/bootstrap-0.2-sub003/internal/diag"
	"github.com/cot-land/bootstrap-0.2-sub003/internal/xlog"
	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
	"github.com/cot-land/bootstrap-0.2-sub003/stackalloc"
)

// This file implements §4.5: pattern-directed rewriting of the already
// register/stack-allocated generic ssa.Value stream into the Instr list
// encoding.go turns into bytes. By the time Lower runs, every Value either
// already carries the register it lives in for its own defining occurrence
// (f.Home), or (locals) the frame offset stackalloc assigned
// (f.LocalHome) — Lower makes no allocation decisions of its own, only
// translation ones (§5's strict phase order).
//
// Convention (see DESIGN.md "Home is last-writer-wins across blocks"): to
// find the register that holds value id `v` as an argument at a point of
// use, read f.Home(v) directly. Every value that regalloc ever spills and
// reloads, or rematerializes, more than once across its lifetime gets a
// fresh reload/clone Value per consumer (mirroring how rematerialization
// already works) whose own Home is set directly on that fresh id — so a
// bare f.Home(v) lookup is exact for every shape this backend's regalloc
// produces.

// Lower translates f (after regalloc and stackalloc) into its final
// per-function machine code and relocations.
func Lower(f *ssa.Func, layout *stackalloc.Layout) ([]byte, []Relocation) {
	l := &lowerer{f: f, layout: layout}
	l.run()
	lf := &LoweredFunc{Name: f.Name, Instrs: l.instrs, BlockStart: l.blockStart}
	xlog.Lowered(f.Name, len(l.instrs))
	return Encode(lf)
}

type lowerer struct {
	f      *ssa.Func
	layout *stackalloc.Layout

	instrs     []Instr
	blockStart map[ssa.BlockID]int

	needsFrame bool
}

// headerSize is the saved-FP/LR pair every frame carries, the same 16 bytes
// stackalloc counts into Layout.FrameSize.
const headerSize = 16

func (l *lowerer) emit(in Instr) { l.instrs = append(l.instrs, in) }

func (l *lowerer) run() {
	l.needsFrame = l.layout.FrameSize > headerSize || containsCall(l.f)
	l.blockStart = map[ssa.BlockID]int{}

	order := l.f.LayoutBlocks()
	for i, b := range order {
		l.blockStart[b] = len(l.instrs)
		blk := l.f.Block(b)
		if b == l.f.Entry() {
			l.emitPrologue()
		}
		for _, vid := range blk.Values() {
			l.lowerValue(vid)
		}
		var next ssa.BlockID
		var hasNext bool
		if i+1 < len(order) {
			next, hasNext = order[i+1], true
		}
		l.lowerTerminator(blk, next, hasNext)
	}
}

// containsCall reports whether f ever executes a call, which by itself
// forces a stack frame even with no locals or spills: BL clobbers LR, so
// LR must be saved before the call and restored before this function's own
// RET (§6.2).
func containsCall(f *ssa.Func) bool {
	for _, b := range f.Blocks() {
		for _, vid := range f.Block(b).Values() {
			op := f.Value(vid).Op()
			if op.IsCall() {
				return true
			}
		}
	}
	return false
}

// emitPrologue saves FP/LR and reserves the frame (§6.2, §4.4 frame
// diagram). Leaf functions with no locals, spills, or calls need no frame
// at all (§8 Scenario A/B: "no prologue beyond FP/LR save/restore, often
// elided for leaf functions with no stack frame").
func (l *lowerer) emitPrologue() {
	if !l.needsFrame {
		return
	}
	l.emit(Instr{Kind: KStp, Rd: RegFP, Rt2: RegLR, Rn: RegSP, Imm: -l.layout.FrameSize, PrePost: 1})
	// mov fp, sp is ADD-immediate #0: in ORR (KMov) register 31 is XZR.
	l.emit(Instr{Kind: KAddImm, Rd: RegFP, Rn: RegSP, Imm: 0, Is64: true})
}

func (l *lowerer) emitEpilogue() {
	if !l.needsFrame {
		return
	}
	l.emit(Instr{Kind: KLdp, Rd: RegFP, Rt2: RegLR, Rn: RegSP, Imm: l.layout.FrameSize, PrePost: -1})
}

func (l *lowerer) lowerTerminator(blk *ssa.Block, next ssa.BlockID, hasNext bool) {
	switch blk.Kind() {
	case ssa.BlockRet:
		l.lowerReturn(blk)
	case ssa.BlockIf:
		l.lowerIf(blk, next, hasNext)
	case ssa.BlockPlain:
		if len(blk.Succs()) == 1 {
			target := blk.Succs()[0].Block
			if hasNext && target == next {
				// The layout pass (ssa.Func.LayoutBlocks) placed the
				// successor immediately next; falling through to it
				// costs nothing, so the jump itself is redundant.
				return
			}
			l.emit(Instr{Kind: KB, Target: target})
		}
	case ssa.BlockExit:
		// unreachable terminator: nothing to emit (§3 BlockExit "has no
		// successors"); a trap is left to whatever noreturn call preceded
		// it.
	}
}

func (l *lowerer) lowerReturn(blk *ssa.Block) {
	ctrl := blk.ControlValues()
	for i, cv := range ctrl {
		if i > 1 {
			break // results beyond x0/x1 are hidden-return-pointer shaped, handled by the caller
		}
		l.movIfNeeded(uint8(i), l.f.Home(cv).Reg, l.f.Value(cv).Type())
	}
	l.emitEpilogue()
	rn := uint8(RegLR)
	if l.needsFrame {
		rn = RegLR
	}
	l.emit(Instr{Kind: KRet, Rn: rn})
}

// lowerIf emits the conditional compare-and-branch pair for a BlockIf.
// When the layout pass (ssa.Func.LayoutBlocks) placed one of the two
// targets immediately next, that side is reached by falling through
// instead of an explicit jump — inverting the condition first if it was
// the true side that landed there, so the remaining Bcond still reaches
// whichever target did not (§SPEC_FULL "branch-likelihood-aware block
// layout").
func (l *lowerer) lowerIf(blk *ssa.Block, next ssa.BlockID, hasNext bool) {
	ctrl := blk.ControlValues()
	trueTarget := blk.Succs()[0].Block
	falseTarget := blk.Succs()[1].Block

	cond := CondNE
	if len(ctrl) == 1 {
		cv := l.f.Value(ctrl[0])
		if isCompareOp(cv.Op()) {
			args := cv.Args()
			l.emit(Instr{Kind: KAluRRR, Alu: AluSubS, Rd: RegZR, Rn: l.f.Home(args[0]).Reg, Rm: l.f.Home(args[1]).Reg, Is64: true})
			cond = condForOp(cv.Op())
		} else {
			l.emit(Instr{Kind: KSubsImm, Rd: RegZR, Rn: l.f.Home(ctrl[0]).Reg, Imm: 0, Is64: true})
			cond = CondNE
		}
	}

	if hasNext && trueTarget == next {
		l.emit(Instr{Kind: KBcond, Cond: cond.invert(), Target: falseTarget})
		return
	}
	l.emit(Instr{Kind: KBcond, Cond: cond, Target: trueTarget})
	if hasNext && falseTarget == next {
		return
	}
	l.emit(Instr{Kind: KB, Target: falseTarget})
}

func isCompareOp(op ssa.Op) bool {
	switch op {
	case ssa.OpEq, ssa.OpNeq, ssa.OpLess, ssa.OpLeq, ssa.OpGreater, ssa.OpGeq:
		return true
	default:
		return false
	}
}

// movIfNeeded emits `mov dst, src` unless src already is dst — used
// whenever a Value already resident somewhere must end up in a specific
// ABI-mandated register (return values, call arguments) so the common case
// (it already landed there by luck of allocation order, §8 Scenario A/B)
// costs nothing.
func (l *lowerer) movIfNeeded(dst, src uint8, typ ssa.Type) {
	if dst == src {
		return
	}
	l.emit(Instr{Kind: KMov, Rd: dst, Rm: src, Is64: typ.Size() == 8})
}

func (l *lowerer) lowerValue(vid ssa.ValueID) {
	val := l.f.Value(vid)
	op := val.Op()
	args := val.Args()
	is64 := val.Type().Size() == 8

	switch op {
	case ssa.OpConstInt:
		l.lowerConstInt(vid, val.AuxInt(), is64)

	case ssa.OpArg:
		l.lowerArg(vid, int(val.AuxInt()), val.Type())

	case ssa.OpAdd, ssa.OpSub, ssa.OpMul, ssa.OpDiv, ssa.OpMod, ssa.OpAnd, ssa.OpOr, ssa.OpXor,
		ssa.OpShl, ssa.OpShr, ssa.OpSar:
		l.lowerBinOp(vid, op, args, is64)

	case ssa.OpNeg:
		l.emit(Instr{Kind: KAluRRR, Alu: AluNeg, Rd: l.f.Home(vid).Reg, Rm: l.f.Home(args[0]).Reg, Is64: is64})
	case ssa.OpNot:
		l.emit(Instr{Kind: KAluRRR, Alu: AluNot, Rd: l.f.Home(vid).Reg, Rm: l.f.Home(args[0]).Reg, Is64: is64})

	case ssa.OpEq, ssa.OpNeq, ssa.OpLess, ssa.OpLeq, ssa.OpGreater, ssa.OpGeq:
		l.lowerCompare(vid, op, args)

	case ssa.OpLoad:
		l.emit(Instr{Kind: KLdrImm, Rd: l.f.Home(vid).Reg, Rn: l.f.Home(args[0]).Reg, Size: val.Type().Size(), Signed: false})
	case ssa.OpStore:
		storedType := l.f.Value(args[1]).Type()
		l.emit(Instr{Kind: KStrImm, Rd: l.f.Home(args[1]).Reg, Rn: l.f.Home(args[0]).Reg, Size: storedType.Size()})

	case ssa.OpLocalAddr:
		l.lowerLocalAddr(vid, int(val.AuxInt()))
	case ssa.OpGlobalAddr:
		l.emit(Instr{Kind: KAdrp, Rd: l.f.Home(vid).Reg, Symbol: val.AuxSymbol()})
		l.emit(Instr{Kind: KAddSym, Rd: l.f.Home(vid).Reg, Rn: l.f.Home(vid).Reg, Symbol: val.AuxSymbol()})

	case ssa.OpCall, ssa.OpCallIndirect, ssa.OpStringConcat:
		l.lowerCall(vid)

	case ssa.OpMakeTuple:
		// A bookkeeping node only: its pieces already carry their own
		// Locations; nothing to emit.

	case ssa.OpSelect:
		l.lowerSelect(vid, args[0], int(val.AuxInt()))

	case ssa.OpStoreReg:
		l.emit(Instr{Kind: KStrImm, Rd: l.f.Home(args[0]).Reg, Rn: RegFP, Imm: int64(l.f.Home(vid).Offset), Size: l.f.Value(args[0]).Type().Size()})
	case ssa.OpLoadReg:
		sp := l.f.Value(args[0])
		orig := sp.Args()[0]
		l.emit(Instr{Kind: KLdrImm, Rd: l.f.Home(vid).Reg, Rn: RegFP, Imm: int64(l.f.Home(args[0]).Offset), Size: l.f.Value(orig).Type().Size()})
	case ssa.OpCopy:
		l.movIfNeeded(l.f.Home(vid).Reg, l.f.Home(args[0]).Reg, val.Type())

	case ssa.OpFwdRef:
		diag.Bugf(diag.Context{Func: l.f.Name, Value: int32(vid)}, "unsealed fwd_ref reached lowering")

	default:
		diag.Bugf(diag.Context{Func: l.f.Name, Value: int32(vid)}, "lowering does not know op %s", op)
	}
}

// lowerConstInt materializes a constant via MOVZ/MOVN, adding MOVK lanes
// for anything that doesn't fit a single 16-bit immediate (§4.6's
// move-wide-immediate family is this backend's only way to build an
// arbitrary 64-bit constant).
func (l *lowerer) lowerConstInt(vid ssa.ValueID, value int64, is64 bool) {
	rd := l.f.Home(vid).Reg
	u := uint64(value)
	if !is64 {
		u &= 0xffffffff
	}

	// A value whose upper 48 bits are all one (a small negative number)
	// is a single MOVN of its inverted low 16 bits; everything else
	// starts from MOVZ.
	if value < 0 && is64 && (u>>16) == 0xffffffffffff {
		l.emit(Instr{Kind: KMovn, Rd: rd, Imm: int64(^uint16(u)), HW: 0, Is64: is64})
		return
	}

	lane0 := uint16(u)
	l.emit(Instr{Kind: KMovz, Rd: rd, Imm: int64(lane0), HW: 0, Is64: is64})
	maxLanes := 4
	if !is64 {
		maxLanes = 2
	}
	for hw := 1; hw < maxLanes; hw++ {
		lane := uint16(u >> (16 * hw))
		if lane != 0 {
			l.emit(Instr{Kind: KMovk, Rd: rd, Imm: int64(lane), HW: uint8(hw), Is64: is64})
		}
	}
}

func (l *lowerer) lowerArg(vid ssa.ValueID, idx int, typ ssa.Type) {
	if idx < 8 {
		l.movIfNeeded(l.f.Home(vid).Reg, uint8(idx), typ)
		return
	}
	// 9th-and-later integer argument is stack-passed, at a positive
	// FP-relative offset past the saved FP/LR pair (§6.2).
	off := headerSize + int64(idx-8)*8
	l.emit(Instr{Kind: KLdrImm, Rd: l.f.Home(vid).Reg, Rn: RegFP, Imm: off, Size: typ.Size()})
}

func (l *lowerer) lowerLocalAddr(vid ssa.ValueID, idx int) {
	loc := l.f.LocalHome(idx)
	rd := l.f.Home(vid).Reg
	if loc.Offset < 0 {
		l.emit(Instr{Kind: KSubImm, Rd: rd, Rn: RegFP, Imm: int64(-loc.Offset), Is64: true})
	} else {
		l.emit(Instr{Kind: KAddImm, Rd: rd, Rn: RegFP, Imm: int64(loc.Offset), Is64: true})
	}
}

var aluOpOf = map[ssa.Op]AluOp{
	ssa.OpAdd: AluAdd,
	ssa.OpSub: AluSub,
	ssa.OpMul: AluMul,
	ssa.OpAnd: AluAnd,
	ssa.OpOr:  AluOrr,
	ssa.OpXor: AluEor,
	ssa.OpShl: AluLsl,
	ssa.OpShr: AluLsr,
	ssa.OpSar: AluAsr,
}

// lowerBinOp covers the register-register and small-immediate-right-operand
// shapes of §4.5's arithmetic example ("add(a, const_int k) in ADD-imm
// range -> arm64_add_imm"). Div/Mod (no ARM64 immediate form) always lower
// to a register-register SDIV (signed; UDIV is never emitted); mod is then synthesized as
// `a - (a/b)*b` since ARM64 has no remainder instruction.
func (l *lowerer) lowerBinOp(vid ssa.ValueID, op ssa.Op, args []ssa.ValueID, is64 bool) {
	rd := l.f.Home(vid).Reg

	if op == ssa.OpMod {
		q := uint8(scratch1)
		l.emit(Instr{Kind: KAluRRR, Alu: AluSdiv, Rd: q, Rn: l.f.Home(args[0]).Reg, Rm: l.f.Home(args[1]).Reg, Is64: is64})
		mul := uint8(scratch2)
		l.emit(Instr{Kind: KAluRRR, Alu: AluMul, Rd: mul, Rn: q, Rm: l.f.Home(args[1]).Reg, Is64: is64})
		l.emit(Instr{Kind: KAluRRR, Alu: AluSub, Rd: rd, Rn: l.f.Home(args[0]).Reg, Rm: mul, Is64: is64})
		return
	}

	if (op == ssa.OpAdd || op == ssa.OpSub) && l.f.Value(args[1]).Op() == ssa.OpConstInt {
		imm := l.f.Value(args[1]).AuxInt()
		if imm >= 0 && imm < 1<<12 {
			kind := KAddImm
			if op == ssa.OpSub {
				kind = KSubImm
			}
			l.emit(Instr{Kind: kind, Rd: rd, Rn: l.f.Home(args[0]).Reg, Imm: imm, Is64: is64})
			return
		}
	}

	if op == ssa.OpDiv {
		l.emit(Instr{Kind: KAluRRR, Alu: AluSdiv, Rd: rd, Rn: l.f.Home(args[0]).Reg, Rm: l.f.Home(args[1]).Reg, Is64: is64})
		return
	}

	l.emit(Instr{Kind: KAluRRR, Alu: aluOpOf[op], Rd: rd, Rn: l.f.Home(args[0]).Reg, Rm: l.f.Home(args[1]).Reg, Is64: is64})
}

// lowerCompare materializes a boolean 0/1 result via cmp+cset (§4.6's
// CSET-via-CSINC alias). Every comparison Value is lowered this way,
// including one that only feeds a BlockIf; lowerIf then emits its own cmp
// on the same operands and branches on the flags.
func (l *lowerer) lowerCompare(vid ssa.ValueID, op ssa.Op, args []ssa.ValueID) {
	is64 := l.f.Value(args[0]).Type().Size() == 8
	l.emit(Instr{Kind: KAluRRR, Alu: AluSubS, Rd: RegZR, Rn: l.f.Home(args[0]).Reg, Rm: l.f.Home(args[1]).Reg, Is64: is64})
	l.emit(Instr{Kind: KCSet, Rd: l.f.Home(vid).Reg, Cond: condForOp(op), Is64: true})
}

func (l *lowerer) lowerSelect(vid, tuple ssa.ValueID, idx int) {
	src := l.f.Home(vid)
	tv := l.f.Value(tuple)
	var from uint8
	if tv.Op() == ssa.OpMakeTuple {
		from = l.f.Home(tv.Args()[idx]).Reg
	} else {
		// Directly after a multi-register call: AAPCS64 gives result i in
		// x(i) (§6.2); valid as long as select immediately follows its
		// call in program order, which is how this backend's lowering of
		// OpCall always places any consumer reading past x0/x1.
		from = uint8(idx)
	}
	l.movIfNeeded(src.Reg, from, tv.Type())
	_ = src
}
