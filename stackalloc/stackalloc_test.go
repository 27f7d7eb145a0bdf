package stackalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cot-land/bootstrap-0.2-sub003/regalloc"
	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

func TestLocalsGetDistinctAlignedOffsets(t *testing.T) {
	f := ssa.NewFunc("locals", ssa.Signature{})
	f.Locals = []ssa.LocalVar{
		{Name: "a", Type: ssa.TypeI64, Size: 8},
		{Name: "b", Type: ssa.TypeI32, Size: 4},
	}
	b := f.NewBlock(ssa.BlockRet, ssa.Pos{})
	f.SetControl(b)

	a := regalloc.DoAllocation(f)
	layout := Allocate(f, a)

	h0 := f.LocalHome(0)
	h1 := f.LocalHome(1)
	require.True(t, h0.IsStack())
	require.True(t, h1.IsStack())
	require.NotEqual(t, h0.Offset, h1.Offset)
	require.EqualValues(t, 0, layout.FrameSize%16, "frame size must be 16-byte aligned (§4.4)")
}

func TestRematerializedOverflowKeepsFrameAligned(t *testing.T) {
	f := ssa.NewFunc("spillreuse", ssa.Signature{})
	b := f.NewBlock(ssa.BlockRet, ssa.Pos{})

	const n = 40
	consts := make([]ssa.ValueID, n)
	for i := 0; i < n; i++ {
		c := f.AddInstruction(b, ssa.OpConstInt, ssa.TypeI64, ssa.Pos{})
		f.SetAuxInt(c, int64(i))
		consts[i] = c
	}
	sum := consts[0]
	for i := 1; i < n; i++ {
		sum = f.AddInstruction(b, ssa.OpAdd, ssa.TypeI64, ssa.Pos{}, sum, consts[i])
	}
	f.SetControl(b, sum)

	a := regalloc.DoAllocation(f)
	layout := Allocate(f, a)
	require.EqualValues(t, 0, layout.FrameSize%16)
}

func TestSpillsLiveAcrossSameCallGetDistinctSlots(t *testing.T) {
	f := ssa.NewFunc("acrosscall", ssa.Signature{Params: []ssa.Type{ssa.TypeI64, ssa.TypeI64, ssa.TypeI64}})
	b := f.NewBlock(ssa.BlockRet, ssa.Pos{})
	args := make([]ssa.ValueID, 3)
	for i := range args {
		args[i] = f.AddInstruction(b, ssa.OpArg, ssa.TypeI64, ssa.Pos{})
		f.SetAuxInt(args[i], int64(i))
	}
	// Force every arg to be spilled across the call by keeping them all
	// live afterward (no register survives the call), then combine after
	// the call.
	call := f.AddInstruction(b, ssa.OpCall, ssa.TypeI64, ssa.Pos{})
	f.SetAuxCall(call, &ssa.AuxCall{Symbol: "callee"})
	sum := f.AddInstruction(b, ssa.OpAdd, ssa.TypeI64, ssa.Pos{}, args[0], args[1])
	sum = f.AddInstruction(b, ssa.OpAdd, ssa.TypeI64, ssa.Pos{}, sum, args[2])
	f.SetControl(b, sum)

	a := regalloc.DoAllocation(f)
	layout := Allocate(f, a)
	require.EqualValues(t, 0, layout.FrameSize%16)
}
