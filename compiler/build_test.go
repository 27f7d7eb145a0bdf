package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cot-land/bootstrap-0.2-sub003/ir"
	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

func addFunc() *ir.Func {
	return &ir.Func{
		Name:    "add",
		Params:  []ir.Type{ssa.TypeI64, ssa.TypeI64},
		Results: []ir.Type{ssa.TypeI64},
		Locals: []ir.Local{
			{Name: "a", Type: ssa.TypeI64, Size: 8, IsParam: true},
			{Name: "b", Type: ssa.TypeI64, Size: 8, IsParam: true},
		},
		Blocks: []ir.Block{
			{
				Kind: ssa.BlockRet,
				Instructions: []ir.Instruction{
					{Op: ir.OpVarRead, Type: ssa.TypeI64, AuxInt: 0},
					{Op: ir.OpVarRead, Type: ssa.TypeI64, AuxInt: 1},
					{Op: ir.OpAdd, Type: ssa.TypeI64, Args: []int{0, 1}},
				},
				Ctrl: []int{2},
			},
		},
	}
}

func TestBuildSSATranslatesSingleBlockFunc(t *testing.T) {
	f := BuildSSA(addFunc())

	require.Equal(t, "add", f.Name)
	require.Equal(t, 1, f.NumBlocks())

	entry := f.Entry()
	block := f.Block(entry)
	require.Equal(t, ssa.BlockRet, block.Kind())

	// Two OpArg values plus one OpAdd.
	var addCount, argCount int
	for _, id := range allValueIDs(f) {
		switch f.Value(id).Op() {
		case ssa.OpArg:
			argCount++
		case ssa.OpAdd:
			addCount++
			require.Len(t, f.Value(id).Args(), 2)
		}
	}
	require.Equal(t, 2, argCount)
	require.Equal(t, 1, addCount)
}

// ifFunc builds a diamond CFG (entry -> then/else -> join) assigning the
// same local on both arms, exercising the phi insertion that BuildSSA's
// eager whole-CFG sealing must still produce correctly (§4.1).
func ifFunc() *ir.Func {
	return &ir.Func{
		Name:    "branchy",
		Params:  []ir.Type{ssa.TypeI64},
		Results: []ir.Type{ssa.TypeI64},
		Locals: []ir.Local{
			{Name: "cond", Type: ssa.TypeI64, Size: 8, IsParam: true},
			{Name: "result", Type: ssa.TypeI64, Size: 8},
		},
		Blocks: []ir.Block{
			{ // 0: entry
				Kind: ssa.BlockIf,
				Instructions: []ir.Instruction{
					{Op: ir.OpVarRead, Type: ssa.TypeI64, AuxInt: 0},
				},
				Ctrl:  []int{0},
				Succs: []int{1, 2},
			},
			{ // 1: then
				Instructions: []ir.Instruction{
					{Op: ir.OpConstInt, Type: ssa.TypeI64, AuxInt: 1},
					{Op: ir.OpVarWrite, AuxInt: 1, Args: []int{0}},
				},
				Succs: []int{3},
			},
			{ // 2: else
				Instructions: []ir.Instruction{
					{Op: ir.OpConstInt, Type: ssa.TypeI64, AuxInt: 2},
					{Op: ir.OpVarWrite, AuxInt: 1, Args: []int{0}},
				},
				Succs: []int{3},
			},
			{ // 3: join, returns result
				Kind: ssa.BlockRet,
				Instructions: []ir.Instruction{
					{Op: ir.OpVarRead, Type: ssa.TypeI64, AuxInt: 1},
				},
				Ctrl: []int{0},
			},
		},
	}
}

func TestBuildSSAInsertsPhiAcrossDiamond(t *testing.T) {
	f := BuildSSA(ifFunc())

	require.Equal(t, 4, f.NumBlocks())

	var phiCount int
	for _, id := range allValueIDs(f) {
		if f.Value(id).Op() == ssa.OpPhi {
			phiCount++
		}
	}
	require.Equal(t, 1, phiCount, "join block should resolve result via a single phi")
}

func allValueIDs(f *ssa.Func) []ssa.ValueID {
	ids := make([]ssa.ValueID, f.NumValues())
	for i := range ids {
		ids[i] = ssa.ValueID(i)
	}
	return ids
}
