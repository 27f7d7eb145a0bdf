package main

import (
	"github.com/cot-land/bootstrap-0.2-sub003/ir"
	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

// sampleProgram builds a tiny fixed ir.Program in place of a real
// frontend (§1 places the lexer/parser/resolver/type-checker out of
// scope; cmd/cotc is "a thin smoke-test driver, not a real frontend",
// §2.3). It compiles one function, add(a, b int64) int64 { return a + b }
// — §8 Scenario B's literal shape — so a single `cotc` invocation proves
// the whole pipeline end to end without requiring any frontend input at
// all.
func sampleProgram() *ir.Program {
	return &ir.Program{
		Funcs: []ir.Func{
			{
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
							{Op: ir.OpVarRead, Type: ssa.TypeI64, AuxInt: 0},     // 0: a
							{Op: ir.OpVarRead, Type: ssa.TypeI64, AuxInt: 1},     // 1: b
							{Op: ir.OpAdd, Type: ssa.TypeI64, Args: []int{0, 1}}, // 2: a + b
						},
						Ctrl: []int{2},
					},
				},
			},
		},
	}
}
