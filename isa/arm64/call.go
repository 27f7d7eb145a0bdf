package arm64

import (
	"github.com/cot-land/bootstrap-0.2-sub003/abi"
	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

// lowerCall expands a call-shaped Value (OpCall, OpCallIndirect,
// OpStringConcat — all three share the same "move args into the ABI
// registers, branch, move results back out" shape, §4.5's string_concat
// example) into the argument shuffle, the branch, and the result move.
//
// Convention for aggregates returned through the hidden pointer (§6.2,
// §8 Scenario F): when the callee's ABIParamResultInfo reports
// UsesHiddenReturn, args[0] of the call Value is the address of the
// caller-allocated return slot (the frontend is responsible for emitting
// an OpLocalAddr for that slot and passing it as the first call argument);
// lowering moves it into x8 ahead of the declared parameters. No pack
// repo models a hidden-return-pointer call shape identically (wazero's
// Wasm ABI never returns aggregates this way), so this is this backend's
// own documented resolution — see DESIGN.md.
func (l *lowerer) lowerCall(vid ssa.ValueID) {
	val := l.f.Value(vid)
	call := val.AuxCallInfo()
	args := val.Args()

	// OpCallIndirect's args[0] is always the callee address (§3: "args[0] =
	// callee address, rest = arguments"), never a declared parameter — peel
	// it off before anything else touches args so it's never mistaken for
	// the hidden-return-pointer slot below.
	var calleeReg uint8
	isIndirect := val.Op() == ssa.OpCallIndirect
	if isIndirect {
		calleeReg = l.f.Home(args[0]).Reg
		args = args[1:]
	}

	abi := callABI(l.f, vid, call, args)

	argStart := 0
	if abi.UsesHiddenReturn {
		l.movIfNeeded(RegX8, l.f.Home(args[0]).Reg, ssa.TypeI64)
		argStart = 1
	}

	moves := map[uint8]uint8{}
	for i := argStart; i < len(args) && i-argStart < len(abi.Params); i++ {
		p := abi.Params[i-argStart]
		if p.Kind != ssa.ABIArgInReg {
			continue // stack-passed args beyond the 8-register window: out of CORE scope's literal call shapes
		}
		moves[p.Regs[0]] = l.f.Home(args[i]).Reg
	}
	l.emitParallelMoves(moves)

	if isIndirect {
		l.emit(Instr{Kind: KBlr, Rn: calleeReg})
	} else {
		l.emit(Instr{Kind: KBL, Symbol: call.Symbol})
	}

	if abi.UsesHiddenReturn {
		l.movIfNeeded(l.f.Home(vid).Reg, RegX8, ssa.TypeI64)
		return
	}
	if len(abi.Results) >= 1 {
		l.movIfNeeded(l.f.Home(vid).Reg, abi.Results[0].Regs[0], val.Type())
	}
}

// callABI returns the call's already-resolved ABI plan if the frontend
// supplied one, or synthesizes a reasonable one from the call's own
// argument/result types otherwise (regalloc's own tests build OpCall
// Values with a bare Symbol and no ABI, relying on this fallback).
func callABI(f *ssa.Func, vid ssa.ValueID, call *ssa.AuxCall, args []ssa.ValueID) *ssa.ABIParamResultInfo {
	if call.ABI != nil {
		return call.ABI
	}
	paramTypes := make([]ssa.Type, len(args))
	for i, a := range args {
		paramTypes[i] = f.Value(a).Type()
	}
	resultTypes := []ssa.Type(nil)
	if t := f.Value(vid).Type(); t != 0 {
		resultTypes = []ssa.Type{t}
	}
	return abi.AnalyzeSignature(ssa.Signature{Params: paramTypes, Results: resultTypes})
}

// emitParallelMoves resolves the "move these source registers into these
// destination registers, possibly overlapping" problem call-argument
// placement poses, using the same cycle-breaking-via-scratch-register
// technique as regalloc's own shuffle pass (§4.3.4) — grounded on that
// pass rather than wazero (wazero's own call lowering never needs this: it
// always moves Wasm-stack-order operands into argument registers with a
// fixed, acyclic mapping).
func (l *lowerer) emitParallelMoves(moves map[uint8]uint8) {
	pending := map[uint8]uint8{}
	for dst, src := range moves {
		if dst != src {
			pending[dst] = src
		}
	}

	for len(pending) > 0 {
		progressed := false
		for dst, src := range pending {
			if destNeededAsSource(pending, dst) {
				continue // dst still holds a value another pending move must read; defer
			}
			l.movIfNeeded(dst, src, ssa.TypeI64)
			delete(pending, dst)
			progressed = true
		}
		if !progressed && len(pending) > 0 {
			var dst uint8
			for d := range pending {
				dst = d
				break
			}
			l.movIfNeeded(scratch2, pending[dst], ssa.TypeI64)
			pending[dst] = scratch2
		}
	}
}

// destNeededAsSource reports whether register r is still read as the
// source of some other pending move — the correct readiness test
// (§4.3.4, same fix as regalloc's own shuffle pass): a move into r is
// only safe to run once nothing else still pending needs r's current
// contents.
func destNeededAsSource(pending map[uint8]uint8, r uint8) bool {
	for dst2, src2 := range pending {
		if dst2 != r && src2 == r {
			return true
		}
	}
	return false
}
