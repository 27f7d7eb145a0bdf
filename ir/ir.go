// Package ir is the frontend IR contract the backend consumes (§6.1): a
// per-function record of ordered, already-numbered basic blocks holding
// three-address instructions that reference local-variable indices
// directly, rather than SSA values. The frontend (lexer, parser, name
// resolver, type checker) is out of this module's scope (§1) and is
// modeled here only by the shape of the data it hands off.
//
// ir.Type is ssa.Type itself: both describe nothing more than register
// class and size, so giving the frontend contract its own parallel type
// tag would only add a translation table with no semantic content of its
// own. A struct-shaped local still gets a scalar Type (its representative
// word, normally TypeI64 for its base address) plus a Size larger than 8
// bytes in its Local entry — size_bytes is explicitly orthogonal to
// type_index in §6.1's local-table shape for exactly this reason.
package ir

import "github.com/cot-land/bootstrap-0.2-sub003/ssa"

// Type aliases ssa.Type; see the package doc for why no separate type
// exists at the IR boundary.
type Type = ssa.Type

// Op is the frontend IR's own instruction tag. Every arithmetic/compare/
// memory/call op has a direct one-to-one counterpart in ssa.Op (§3's op
// table); OpVarRead/OpVarWrite are the two the SSA op table does not need,
// since in ssa.Func a local read or write happens at the ssa.Builder API
// level (ReadVariable/WriteVariable), not as its own Value kind — the IR
// layer still needs them as ordinary instructions because §6.1 says
// "loads and stores against locals are explicit" in the input program.
type Op byte

const (
	OpInvalid Op = iota

	OpConstInt
	OpConstFloat

	OpVarRead  // AuxInt = local index; no Args; produces a value
	OpVarWrite // AuxInt = local index; Args[0] = value; produces nothing

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpShr
	OpSar

	OpEq
	OpNeq
	OpLess
	OpLeq
	OpGreater
	OpGeq

	OpLoad  // Args[0] = address
	OpStore // Args[0] = address, Args[1] = value

	OpLocalAddr  // AuxInt = local index
	OpGlobalAddr // AuxSymbol = global name

	OpCall         // AuxSymbol = callee; Args = arguments
	OpCallIndirect // Args[0] = callee address, rest = arguments

	OpStringConcat // AuxSymbol = runtime helper symbol; Args[0..3] = ptr,len,ptr,len
)

// Instruction is one (op, type_index, aux, arg_indices[]) row (§6.1).
// Args indexes earlier entries of the same Block's Instructions slice —
// cross-block value flow always goes through a local variable
// (OpVarWrite in the producing block, OpVarRead in the consuming one),
// matching exactly how ssa.Builder's defs[block][variable] table already
// works; a plain arithmetic result is never referenced outside the block
// that computed it.
type Instruction struct {
	Op   Op
	Type Type

	AuxInt    int64
	AuxFloat  float64
	AuxSymbol string

	Args []int
}

// Block is one CFG node: a kind (matching ssa.BlockKind exactly — both
// describe nothing more than the terminator shape) and its straight-line
// instruction list. Succs holds successor block indices in the same
// function's Blocks slice, in ssa.BlockKind-defined order (for BlockIf:
// [0]=true target, [1]=false target). Ctrl holds instruction indices
// (within this block) for the branch condition (BlockIf) or return
// operands (BlockRet); empty for BlockPlain/BlockExit.
type Block struct {
	Kind       ssa.BlockKind
	Likelihood ssa.Likelihood

	Instructions []Instruction
	Succs        []int
	Ctrl         []int
}

// Local is one row of the per-function local-variable table (§6.1
// "Local table: [(name, type_index, size_bytes, is_param)]").
type Local struct {
	Name    string
	Type    Type
	Size    int64
	IsParam bool
}

// Func is one frontend function: its signature, local table, and CFG.
// The whole CFG is supplied up front rather than streamed block-by-block
// (§4.1 describes an on-the-fly, possibly-incremental construction, but
// nothing in §6.1 requires the input to actually arrive incrementally) —
// see DESIGN.md for how compiler.BuildSSA exploits that to seal every
// block before processing any instruction.
type Func struct {
	Name    string
	Params  []Type
	Results []Type
	Locals  []Local
	Blocks  []Block
}

// Global is one row of the program-wide global table, shared across every
// Func in a Program (§6.1 "Global table shared across functions").
type Global struct {
	Name        string
	Type        Type
	IsConst     bool
	Size        int64
	Initializer []byte // nil if the global has no compile-time initializer
}

// Program is the complete input to the backend: every function to
// compile, plus the global and string-literal tables they may reference
// via OpGlobalAddr/OpStringConcat (§6.1).
type Program struct {
	Funcs   []Func
	Globals []Global
	Strings []string // interned byte strings (§6.1 "String-literal table")
}
