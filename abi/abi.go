// Package abi computes the AAPCS64 calling-convention plan
// (ssa.ABIParamResultInfo) for a function or call signature (§3 AuxCall,
// §6.2). It is its own package, rather than living inside isa/arm64,
// so that a consumer other than the encoder can reach this analysis
// without importing isa/arm64. Its one caller today is the caller-side
// call expansion in isa/arm64 (callABI); the callee side (lowering of
// OpArg) assigns incoming registers by argument index and does not use it.
package abi

import "github.com/cot-land/bootstrap-0.2-sub003/ssa"

// hiddenReturnThreshold is §6.2's cutover: aggregates larger than this many
// bytes are returned through a caller-supplied pointer in x8 instead of in
// registers.
const hiddenReturnThreshold = 16

// regX8 is AAPCS64's hidden-return-pointer register. Defined locally
// (rather than imported from isa/arm64) so this package stays free of any
// dependency on the instruction encoder — isa/arm64 depends on abi, not
// the other way around.
const regX8 = 8

// AnalyzeSignature computes the AAPCS64 calling-convention plan for a
// Signature (§6.2), used by the caller-side call expansion (§3 AuxCall
// doc); the callee-side prologue does not call it. Grounded on wazero's
// `backend/isa/arm64/abi.go` (`paramResultInfo`'s register-then-stack
// greedy assignment), generalized from wazero's Wasm-value-only signatures
// to this backend's scalar-or-small-struct CORE types.
func AnalyzeSignature(sig ssa.Signature) *ssa.ABIParamResultInfo {
	info := &ssa.ABIParamResultInfo{}

	intArg := 0
	stackOff := int64(0)
	for _, t := range sig.Params {
		if intArg < 8 {
			info.Params = append(info.Params, ssa.ABIArgLoc{Kind: ssa.ABIArgInReg, Regs: []uint8{uint8(intArg)}, Type: t})
			intArg++
			continue
		}
		sz := alignedSize(t)
		info.Params = append(info.Params, ssa.ABIArgLoc{Kind: ssa.ABIArgOnStack, StackOffset: stackOff, StackSize: sz, Type: t})
		stackOff += sz
	}
	info.ArgStackBytes = alignUp8(stackOff)

	info.Results = assignResults(sig.Results, &info.UsesHiddenReturn, &info.HiddenReturnSize)
	return info
}

// assignResults implements §6.2's return-value rule: a single scalar
// result in x0 (or x0/x1 for a two-word aggregate up to 16 bytes); larger
// aggregates are instead written through the hidden pointer passed in x8,
// and the call's "result" becomes that same pointer (no register holds the
// value itself).
func assignResults(results []ssa.Type, hidden *bool, hiddenSize *int64) []ssa.ABIArgLoc {
	if len(results) == 0 {
		return nil
	}
	total := int64(0)
	for _, t := range results {
		total += alignedSize(t)
	}
	if total > hiddenReturnThreshold {
		*hidden = true
		*hiddenSize = total
		return []ssa.ABIArgLoc{{Kind: ssa.ABIArgInReg, Regs: []uint8{regX8}, Type: ssa.TypeI64}}
	}

	var out []ssa.ABIArgLoc
	reg := 0
	for _, t := range results {
		out = append(out, ssa.ABIArgLoc{Kind: ssa.ABIArgInReg, Regs: []uint8{uint8(reg)}, Type: t})
		reg++
	}
	return out
}

func alignedSize(t ssa.Type) int64 {
	sz := t.Size()
	return alignUp8(sz)
}

func alignUp8(n int64) int64 {
	return (n + 7) / 8 * 8
}
