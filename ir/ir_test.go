package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

// A local-variable read is itself a referenceable instruction, so a
// later instruction's Args can point at it the same way it would point
// at any arithmetic result — this is what lets a single Args-index
// scheme cover both "earlier instruction in this block" and "read of a
// local" per §6.1, without a separate reference-kind tag.
func TestVarReadIsArgAddressable(t *testing.T) {
	blk := Block{
		Kind: ssa.BlockRet,
		Instructions: []Instruction{
			{Op: OpVarRead, Type: ssa.TypeI64, AuxInt: 0},
			{Op: OpNeg, Type: ssa.TypeI64, Args: []int{0}},
		},
		Ctrl: []int{1},
	}
	require.Equal(t, 0, blk.Instructions[1].Args[0])
	require.Equal(t, int64(0), blk.Instructions[0].AuxInt)
}

func TestTypeIsSSAType(t *testing.T) {
	var t1 Type = ssa.TypeI64
	require.True(t, t1.IsInt())
	require.Equal(t, int64(8), t1.Size())
}
