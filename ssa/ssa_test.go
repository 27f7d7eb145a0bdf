package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildDiamond constructs the CFG of spec.md Scenario D:
//
//	if cond { a = 1 } else { a = 2 }
//	return a
func buildDiamond(t *testing.T) (*Func, BlockID) {
	t.Helper()
	f := NewFunc("diamond", Signature{Results: []Type{TypeI64}})
	bd := NewBuilder(f)
	bd.DeclareVariable(0, TypeI64)

	entry := f.NewBlock(BlockIf, Pos{})
	thenB := f.NewBlock(BlockPlain, Pos{})
	elseB := f.NewBlock(BlockPlain, Pos{})
	merge := f.NewBlock(BlockRet, Pos{})

	f.AddEdge(entry, thenB)
	f.AddEdge(entry, elseB)
	f.AddEdge(thenB, merge)
	f.AddEdge(elseB, merge)

	cond := f.AddInstruction(entry, OpConstInt, TypeI64, Pos{})
	f.SetAuxInt(cond, 1)
	f.SetControl(entry, cond)
	bd.SealBlock(entry)

	one := f.ConstInt(thenB, TypeI64, 1, Pos{})
	bd.WriteVariable(0, one, thenB)
	bd.SealBlock(thenB)

	two := f.ConstInt(elseB, TypeI64, 2, Pos{})
	bd.WriteVariable(0, two, elseB)
	bd.SealBlock(elseB)

	bd.SealBlock(merge)
	a := bd.ReadVariable(0, merge)
	f.SetControl(merge, a)

	return f, merge
}

func TestBuilderInsertsPhiAtDiamondMerge(t *testing.T) {
	f, merge := buildDiamond(t)
	mb := f.Block(merge)
	require.Len(t, mb.Phis(), 1, "merge block should have exactly one phi for `a`")
	phi := f.Value(mb.Phis()[0])
	require.Equal(t, OpPhi, phi.Op())
	require.Len(t, phi.Args(), 2, "phi args ordered to match preds (§3 Edge invariant)")
	for i, e := range mb.Preds() {
		arg := f.Value(phi.Args()[i])
		require.Equal(t, OpConstInt, arg.Op())
		require.Equal(t, e.Block, arg.Block())
	}
}

func TestTrivialPhiRemoved(t *testing.T) {
	f := NewFunc("trivial", Signature{Results: []Type{TypeI64}})
	bd := NewBuilder(f)
	bd.DeclareVariable(0, TypeI64)

	entry := f.NewBlock(BlockPlain, Pos{})
	a := f.NewBlock(BlockPlain, Pos{})
	merge := f.NewBlock(BlockRet, Pos{})
	f.AddEdge(entry, a)
	f.AddEdge(a, merge)
	f.AddEdge(entry, merge) // entry also jumps straight to merge

	c := f.ConstInt(entry, TypeI64, 7, Pos{})
	bd.WriteVariable(0, c, entry)
	bd.SealBlock(entry)
	bd.SealBlock(a) // a's only pred (entry) already defines the var; no phi needed there
	bd.SealBlock(merge)

	v := bd.ReadVariable(0, merge)
	require.Equal(t, c, v, "both paths into merge resolve to the same definition, so no phi should survive")
	require.Empty(t, f.Block(merge).Phis())
}

func TestConstantCacheIdentity(t *testing.T) {
	f := NewFunc("consts", Signature{})
	b := f.NewBlock(BlockRet, Pos{})
	v1 := f.ConstInt(b, TypeI64, 42, Pos{})
	v2 := f.ConstInt(b, TypeI64, 42, Pos{})
	require.Equal(t, v1, v2, "two calls to const_int(i64, 42) on the same Func must return the same Value (§8 invariant 7)")

	v3 := f.ConstInt(b, TypeI32, 42, Pos{})
	require.NotEqual(t, v1, v3, "distinct type should not share the cache entry")
}

func TestUseCountInvariant(t *testing.T) {
	f := NewFunc("uses", Signature{})
	b := f.NewBlock(BlockRet, Pos{})
	x := f.ConstInt(b, TypeI64, 1, Pos{})
	y := f.ConstInt(b, TypeI64, 2, Pos{})
	sum := f.AddInstruction(b, OpAdd, TypeI64, Pos{}, x, y)
	f.SetControl(b, sum)

	require.EqualValues(t, 1, f.Value(x).Uses())
	require.EqualValues(t, 1, f.Value(y).Uses())
	require.EqualValues(t, 1, f.Value(sum).Uses(), "control-value use counts toward uses (§8 invariant 1)")
}

func TestEdgeBidirectionalInvariant(t *testing.T) {
	f, merge := buildDiamond(t)
	for _, b := range f.Blocks() {
		blk := f.Block(b)
		for i, e := range blk.succs {
			to := f.Block(e.Block)
			require.Less(t, e.Index, len(to.preds))
			require.Equal(t, b, to.preds[e.Index].Block)
			require.Equal(t, i, to.preds[e.Index].Index)
		}
	}
	require.Equal(t, BlockID(3), merge)
}

func TestLivenessReturnBlockHasNoLiveOut(t *testing.T) {
	f := NewFunc("f", Signature{Params: []Type{TypeI64, TypeI64}, Results: []Type{TypeI64}})
	b := f.NewBlock(BlockRet, Pos{})
	x := f.AddInstruction(b, OpArg, TypeI64, Pos{})
	f.SetAuxInt(x, 0)
	y := f.AddInstruction(b, OpArg, TypeI64, Pos{})
	f.SetAuxInt(y, 1)
	s := f.AddInstruction(b, OpAdd, TypeI64, Pos{}, x, y)
	call := f.AddInstruction(b, OpCall, TypeI64, Pos{})
	f.SetAuxCall(call, &AuxCall{Symbol: "callee"})
	one := f.ConstInt(b, TypeI64, 1, Pos{})
	result := f.AddInstruction(b, OpAdd, TypeI64, Pos{}, s, one)
	f.SetControl(b, result)
	_ = call

	Liveness(f)
	out := f.LiveOutOf(b)
	require.Empty(t, out, "nothing is live past the function's own return block")
}
