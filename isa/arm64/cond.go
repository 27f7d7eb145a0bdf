package arm64

import "github.com/cot-land/bootstrap-0.2-sub003/ssa"

// Cond is an ARM64 4-bit condition code (AAPCS64 manual, "Condition codes").
type Cond uint8

const (
	CondEQ Cond = 0x0
	CondNE Cond = 0x1
	CondGE Cond = 0xa
	CondLT Cond = 0xb
	CondGT Cond = 0xc
	CondLE Cond = 0xd
	CondAL Cond = 0xe
)

// condForOp maps a generic comparison op to the condition code tested after
// a preceding arm64Cmp (§4.5 "eq(a,b) -> cmp + bcond"). SPEC_FULL.md's Type
// enum carries no signed/unsigned distinction (§6.1: only i8/i16/i32/i64),
// so this backend treats every ordered comparison as signed — the decision
// recorded in DESIGN.md's Open Question log, matching what every CORE-scope
// source language in the retrieval pack (including Typthon's own int type)
// treats as its default integer comparison.
func condForOp(op ssa.Op) Cond {
	switch op {
	case ssa.OpEq:
		return CondEQ
	case ssa.OpNeq:
		return CondNE
	case ssa.OpLess:
		return CondLT
	case ssa.OpLeq:
		return CondLE
	case ssa.OpGreater:
		return CondGT
	case ssa.OpGeq:
		return CondGE
	default:
		panic("arm64: " + op.String() + " is not a comparison op")
	}
}

// invert returns the condition that holds exactly when c does not, used to
// lower `if !cond` branches and CSEL-of-the-false-arm without a second cmp.
func (c Cond) invert() Cond {
	return c ^ 1
}
