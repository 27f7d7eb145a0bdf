// Package compiler composes the backend's pipeline stages in the strict
// order §5 requires: ir.Func → ssa.Func → Liveness → RegAlloc →
// StackAlloc → Lowering → Emit → Mach-O. This file is the first of those
// arrows — translating one frontend ir.Func into ssa form.
package compiler

import (
	"github.com/cot-land/bootstrap-0.2-sub003/internal/diag"
	"github.com/cot-land/bootstrap-0.2-sub003/ir"
	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

// opTable maps every ir.Op with a direct ssa.Op counterpart. OpVarRead/
// OpVarWrite have no entry: they are handled directly by buildBlock via
// ssa.Builder.ReadVariable/WriteVariable rather than ssa.Func.AddInstruction,
// since in ssa form a local read or write isn't its own Value kind.
var opTable = map[ir.Op]ssa.Op{
	ir.OpConstInt:     ssa.OpConstInt,
	ir.OpConstFloat:   ssa.OpConstFloat,
	ir.OpAdd:          ssa.OpAdd,
	ir.OpSub:          ssa.OpSub,
	ir.OpMul:          ssa.OpMul,
	ir.OpDiv:          ssa.OpDiv,
	ir.OpMod:          ssa.OpMod,
	ir.OpNeg:          ssa.OpNeg,
	ir.OpAnd:          ssa.OpAnd,
	ir.OpOr:           ssa.OpOr,
	ir.OpXor:          ssa.OpXor,
	ir.OpNot:          ssa.OpNot,
	ir.OpShl:          ssa.OpShl,
	ir.OpShr:          ssa.OpShr,
	ir.OpSar:          ssa.OpSar,
	ir.OpEq:           ssa.OpEq,
	ir.OpNeq:          ssa.OpNeq,
	ir.OpLess:         ssa.OpLess,
	ir.OpLeq:          ssa.OpLeq,
	ir.OpGreater:      ssa.OpGreater,
	ir.OpGeq:          ssa.OpGeq,
	ir.OpLoad:         ssa.OpLoad,
	ir.OpStore:        ssa.OpStore,
	ir.OpLocalAddr:    ssa.OpLocalAddr,
	ir.OpGlobalAddr:   ssa.OpGlobalAddr,
	ir.OpCall:         ssa.OpCall,
	ir.OpCallIndirect: ssa.OpCallIndirect,
	ir.OpStringConcat: ssa.OpStringConcat,
}

// BuildSSA translates fn into SSA form (§4.1). It does not run Liveness,
// regalloc, stackalloc, or lowering — Compile (pipeline.go) sequences
// those afterward.
//
// fn's whole CFG (every block and every edge) is known up front, unlike
// the streaming, one-block-at-a-time construction §4.1 describes for an
// incremental frontend. BuildSSA exploits that: it creates every block
// and wires every edge before translating a single instruction, then
// seals every block immediately. A block's predecessor list is therefore
// always complete by the time anything reads a variable through it, so
// Builder's incomplete-phi/fwd_ref machinery (built for a frontend that
// seals blocks as it goes) is exercised correctly but never actually
// takes the "unsealed" branch — ReadVariable always resolves directly to
// a real definition (a phi only where predecessors disagree), never a
// placeholder, and SealBlock's resolution loop always
// finds nothing left to do. That machinery stays in ssa.Builder for a
// streaming caller; this is a non-streaming one.
func BuildSSA(fn *ir.Func) *ssa.Func {
	sig := ssa.Signature{Params: fn.Params, Results: fn.Results}
	f := ssa.NewFunc(fn.Name, sig)

	for _, lv := range fn.Locals {
		f.Locals = append(f.Locals, ssa.LocalVar{
			Name: lv.Name, Type: lv.Type, Size: lv.Size, IsParam: lv.IsParam,
		})
	}

	bd := ssa.NewBuilder(f)
	for i, lv := range fn.Locals {
		bd.DeclareVariable(ssa.Variable(i), lv.Type)
	}

	blockIDs := make([]ssa.BlockID, len(fn.Blocks))
	for i, b := range fn.Blocks {
		blockIDs[i] = f.NewBlock(b.Kind, ssa.Pos{})
		f.Block(blockIDs[i]).SetLikelihood(b.Likelihood)
	}
	for i, b := range fn.Blocks {
		for _, s := range b.Succs {
			f.AddEdge(blockIDs[i], blockIDs[s])
		}
	}
	for _, id := range blockIDs {
		bd.SealBlock(id)
	}

	// Params arrive as OpArg reads of the first len(fn.Params) locals
	// (§6.1's local table marks these IsParam); the frontend is
	// responsible for ordering Locals so the IsParam-true prefix matches
	// Params positionally.
	argIdx := 0
	for i, lv := range fn.Locals {
		if !lv.IsParam {
			continue
		}
		v := f.AddInstruction(blockIDs[0], ssa.OpArg, lv.Type, ssa.Pos{})
		f.SetAuxInt(v, int64(argIdx))
		argIdx++
		bd.WriteVariable(ssa.Variable(i), v, blockIDs[0])
	}

	for i, b := range fn.Blocks {
		buildBlock(f, bd, fn, blockIDs, i, b)
	}

	return f
}

func buildBlock(f *ssa.Func, bd *ssa.Builder, fn *ir.Func, blockIDs []ssa.BlockID, idx int, b ir.Block) {
	bid := blockIDs[idx]
	bd.SetCurrentBlock(bid)

	vals := make([]ssa.ValueID, len(b.Instructions))
	resolve := func(argIdx int) ssa.ValueID { return vals[argIdx] }

	for ii, in := range b.Instructions {
		switch in.Op {
		case ir.OpVarRead:
			vals[ii] = bd.ReadVariable(ssa.Variable(in.AuxInt), bid)

		case ir.OpVarWrite:
			bd.WriteVariable(ssa.Variable(in.AuxInt), resolve(in.Args[0]), bid)

		case ir.OpConstInt:
			vals[ii] = f.ConstInt(bid, in.Type, in.AuxInt, ssa.Pos{})

		case ir.OpCall, ir.OpCallIndirect, ir.OpStringConcat:
			args := make([]ssa.ValueID, len(in.Args))
			for k, a := range in.Args {
				args[k] = resolve(a)
			}
			op := opTable[in.Op]
			vid := f.AddInstruction(bid, op, in.Type, ssa.Pos{}, args...)
			f.SetAuxCall(vid, &ssa.AuxCall{Symbol: in.AuxSymbol})
			vals[ii] = vid

		case ir.OpGlobalAddr:
			vid := f.AddInstruction(bid, ssa.OpGlobalAddr, in.Type, ssa.Pos{})
			f.SetAuxSymbol(vid, in.AuxSymbol)
			vals[ii] = vid

		case ir.OpLocalAddr:
			vid := f.AddInstruction(bid, ssa.OpLocalAddr, in.Type, ssa.Pos{})
			f.SetAuxInt(vid, in.AuxInt)
			vals[ii] = vid

		default:
			op, ok := opTable[in.Op]
			if !ok {
				diag.Bugf(diag.Context{Func: fn.Name, Block: int32(idx)}, "ir op %d has no ssa counterpart", in.Op)
			}
			args := make([]ssa.ValueID, len(in.Args))
			for k, a := range in.Args {
				args[k] = resolve(a)
			}
			vals[ii] = f.AddInstruction(bid, op, in.Type, ssa.Pos{}, args...)
		}
	}

	if len(b.Ctrl) > 0 {
		ctrl := make([]ssa.ValueID, len(b.Ctrl))
		for i, c := range b.Ctrl {
			ctrl[i] = resolve(c)
		}
		f.SetControl(bid, ctrl...)
	}
}
