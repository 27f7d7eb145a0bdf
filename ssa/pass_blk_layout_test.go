package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLayoutBlocksStraightensLikelySuccessor builds an if/else diamond
// where the else arm is marked unlikely (an error path) and checks that
// LayoutBlocks places the then arm immediately after the branch, leaving
// the unlikely arm out of the fallthrough chain.
func TestLayoutBlocksStraightensLikelySuccessor(t *testing.T) {
	f := NewFunc("f", Signature{Results: []Type{TypeI64}})
	entry := f.NewBlock(BlockIf, Pos{})
	thenB := f.NewBlock(BlockPlain, Pos{})
	elseB := f.NewBlock(BlockPlain, Pos{})
	elseB2 := f.Block(elseB)
	elseB2.SetLikelihood(LikelihoodUnlikely)
	merge := f.NewBlock(BlockRet, Pos{})

	f.AddEdge(entry, thenB)
	f.AddEdge(entry, elseB)
	f.AddEdge(thenB, merge)
	f.AddEdge(elseB, merge)

	cond := f.AddInstruction(entry, OpConstInt, TypeI64, Pos{})
	f.SetAuxInt(cond, 1)
	f.SetControl(entry, cond)

	order := f.LayoutBlocks()
	require.Len(t, order, 4)
	require.Equal(t, entry, order[0])
	require.Equal(t, thenB, order[1], "the non-unlikely arm should be placed right after the branch")
}

func TestLayoutBlocksHandlesStraightLineFunc(t *testing.T) {
	f := NewFunc("f", Signature{Results: []Type{TypeI64}})
	b := f.NewBlock(BlockRet, Pos{})
	v := f.ConstInt(b, TypeI64, 1, Pos{})
	f.SetControl(b, v)

	order := f.LayoutBlocks()
	require.Equal(t, []BlockID{b}, order)
}
