package arm64

import "github.com/cot-land/bootstrap-0.2-sub003/ssa"

// Kind tags one lowered ARM64 instruction (§4.6). Unlike wazero's
// backend/isa/arm64, which multiplexes every shape through a single
// generic-union instruction struct (it has on the order of a hundred
// opcodes to cover all of Wasm), this backend's instruction set is the
// small, fixed subset §4.5/§4.6 name explicitly, so a flat Kind + a
// handful of named fields stays readable without the union's indirection.
type Kind uint8

const (
	KInvalid Kind = iota
	KMovz
	KMovn
	KMovk
	KAddImm
	KSubImm
	KAddsImm // ADDS: like AddImm but sets flags (compare-against-immediate)
	KSubsImm // SUBS: CMP rn, #imm is rd=zr
	KAluRRR  // register-register ALU: Add/Sub/And/Orr/Eor/Mul/Udiv/Sdiv/SubS(cmp)
	KCSet
	KCSel
	KB     // unconditional branch, intra-function (to a Block)
	KBL    // branch-with-link, call to a symbol (always relocated)
	KBcond // conditional branch, intra-function (to a Block)
	KRet
	KLdrImm // load, unsigned-scaled 12-bit immediate addressing
	KStrImm // store, unsigned-scaled 12-bit immediate addressing
	KLdp    // load pair, pre/post-indexed (prologue/epilogue only)
	KStp    // store pair, pre/post-indexed (prologue/epilogue only)
	KAdrp   // page address of a symbol; relocation ARM64_RELOC_PAGE21
	KAddSym // low 12 bits of a symbol's address; relocation ARM64_RELOC_PAGEOFF12
	KMov    // register-register move, alias of ORR rd, zr, rm
	KBlr    // branch-with-link to a register (call_indirect)
	KNop
)

// AluOp distinguishes the register-register ALU operations that share
// KAluRRR's three-register shape.
type AluOp uint8

const (
	AluAdd AluOp = iota
	AluSub
	AluAnd
	AluOrr
	AluEor
	AluMul
	AluUdiv
	AluSdiv
	AluSubS // flag-setting subtract, used for CMP rd=zr
	AluLsl
	AluLsr
	AluAsr
	AluNeg // rn ignored, result = 0 - rm
	AluNot // rn ignored, result = ^rm
)

// Instr is one lowered ARM64 instruction. Not every field is meaningful for
// every Kind; see the Kind constants' own comments for which fields a given
// Kind reads. A []Instr is exactly len()*4 bytes once encoded — every
// ARM64 instruction this backend emits is fixed-width, so Encode can lay
// out block offsets before encoding a single byte (encoding.go).
type Instr struct {
	Kind Kind

	Rd, Rn, Rm uint8
	Is64       bool

	// Imm is the generic immediate payload: MOVZ/MOVN/MOVK's 16-bit field,
	// ADD/SUB-imm's 12-bit field, LDR/STR's byte offset (pre-scaling), or
	// LDP/STP's signed offset.
	Imm int64
	// HW selects which 16-bit lane (0,1,2,3 => shift by 0,16,32,48) a
	// MOVZ/MOVN/MOVK targets.
	HW uint8

	Alu AluOp

	Cond Cond

	// Target is the intra-function branch destination for KB/KBcond.
	Target ssa.BlockID

	// Symbol is the relocation target's name for KBL/KAdrp/KAddSym.
	Symbol string

	// Size is the load/store width in bytes (1/2/4/8) for KLdrImm/KStrImm.
	Size int64
	// Signed marks a sign-extending load (LDRSB/LDRSH/LDRSW) vs. zero-extend.
	Signed bool

	// Rt2 is the second register of a KLdp/KStp pair.
	Rt2 uint8
	// PrePost selects addressing mode for KLdp/KStp: 0 = signed offset (no
	// writeback), 1 = pre-indexed, -1 = post-indexed (§6.2 prologue/epilogue
	// use pre-indexed push / post-indexed pop, matching AAPCS64 convention).
	PrePost int8
}
