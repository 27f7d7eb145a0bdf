package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/arm64/arm64asm"

	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

// TestLowerStringConcat is §8 Scenario E: string_concat lowers the same
// way any other call-shaped op does (§4.5), taking four arguments
// (ptr,len,ptr,len) and producing a BL against the runtime helper symbol.
func TestLowerStringConcat(t *testing.T) {
	f := ssa.NewFunc("greet", ssa.Signature{
		Params:  []ssa.Type{ssa.TypeI64, ssa.TypeI64, ssa.TypeI64, ssa.TypeI64},
		Results: []ssa.Type{ssa.TypeI64, ssa.TypeI64},
	})
	b := f.NewBlock(ssa.BlockRet, ssa.Pos{})

	args := make([]ssa.ValueID, 4)
	for i := range args {
		args[i] = f.AddInstruction(b, ssa.OpArg, ssa.TypeI64, ssa.Pos{})
		f.SetAuxInt(args[i], int64(i))
	}
	concat := f.AddInstruction(b, ssa.OpStringConcat, ssa.TypeI64, ssa.Pos{}, args...)
	f.SetAuxCall(concat, &ssa.AuxCall{Symbol: "runtime.stringConcat"})
	f.SetControl(b, concat)

	code, relocs := compile(t, f)

	var branches []Relocation
	for _, r := range relocs {
		if r.Kind == RelocBranch26 {
			branches = append(branches, r)
		}
	}
	require.Len(t, branches, 1)
	require.Equal(t, "runtime.stringConcat", branches[0].Symbol)

	insts := decodeAll(t, code)
	var sawBL bool
	for _, in := range insts {
		if in.Op == arm64asm.BL {
			sawBL = true
		}
	}
	require.True(t, sawBL, "string_concat must lower through the same call-branch shape as any other call")
}

// TestLowerCallWithHiddenReturnPointer is §8 Scenario F: a callee whose
// results don't fit in the two available result registers (more than 16
// bytes of results, §6.2) receives its return slot's address in x8; the
// caller passes that address as args[0] of the call Value (§4.5's
// documented convention, isa/arm64/call.go) via an OpLocalAddr against a
// caller-allocated local.
func TestLowerCallWithHiddenReturnPointer(t *testing.T) {
	f := ssa.NewFunc("caller", ssa.Signature{Results: []ssa.Type{ssa.TypeI64}})
	f.Locals = append(f.Locals, ssa.LocalVar{Name: "ret_slot", Type: ssa.TypeI64, Size: 24})
	b := f.NewBlock(ssa.BlockRet, ssa.Pos{})

	slotAddr := f.AddInstruction(b, ssa.OpLocalAddr, ssa.TypeI64, ssa.Pos{})
	f.SetAuxInt(slotAddr, 0)

	call := f.AddInstruction(b, ssa.OpCall, ssa.TypeI64, ssa.Pos{}, slotAddr)
	f.SetAuxCall(call, &ssa.AuxCall{
		Symbol: "make_triple",
		ABI: &ssa.ABIParamResultInfo{
			UsesHiddenReturn: true,
			HiddenReturnSize: 24,
			Results:          []ssa.ABIArgLoc{{Kind: ssa.ABIArgInReg, Regs: []uint8{8}, Type: ssa.TypeI64}},
		},
	})
	f.SetControl(b, call)

	code, relocs := compile(t, f)
	require.Len(t, relocs, 1)
	require.Equal(t, "make_triple", relocs[0].Symbol)

	insts := decodeAll(t, code)
	var sawBL bool
	for _, in := range insts {
		if in.Op == arm64asm.BL {
			sawBL = true
		}
	}
	require.True(t, sawBL)
}
