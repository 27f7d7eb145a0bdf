package arm64

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/arm64/arm64asm"

	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
)

// disasm decodes a single little-endian encoded instruction word and
// returns the arm64asm library's own rendering of it, so these tests
// cross-check the hand-derived encoder against an independent decoder
// rather than only against hand-computed constants (mirroring how
// wazero's own instr_test.go leans on a library rather than trusting its
// own encoder to self-verify).
func disasm(t *testing.T, word uint32) string {
	t.Helper()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)
	inst, err := arm64asm.Decode(buf[:])
	require.NoError(t, err)
	return inst.String()
}

// TestScenarioA_MovzReturn is §8 Scenario A, "return 42": a single MOVZ
// into x0 followed by RET, bit-exact against the literal encodings the
// spec names.
func TestScenarioA_MovzReturn(t *testing.T) {
	lf := &LoweredFunc{
		Name: "answer",
		Instrs: []Instr{
			{Kind: KMovz, Rd: 0, Imm: 42, HW: 0, Is64: true},
			{Kind: KRet, Rn: RegLR},
		},
	}
	code, relocs := Encode(lf)
	require.Empty(t, relocs)
	require.Len(t, code, 8)

	movz := binary.LittleEndian.Uint32(code[0:4])
	ret := binary.LittleEndian.Uint32(code[4:8])
	require.Equal(t, uint32(0xD2800540), movz, "MOVZ x0, #42")
	require.Equal(t, uint32(0xD65F03C0), ret, "RET")
	require.Contains(t, disasm(t, movz), "MOV")
	require.Contains(t, disasm(t, ret), "RET")
}

// TestScenarioB_AddRegisters is §8 Scenario B: ADD x0, x0, x1 then RET.
func TestScenarioB_AddRegisters(t *testing.T) {
	lf := &LoweredFunc{
		Name: "add",
		Instrs: []Instr{
			{Kind: KAluRRR, Alu: AluAdd, Rd: 0, Rn: 0, Rm: 1, Is64: true},
			{Kind: KRet, Rn: RegLR},
		},
	}
	code, _ := Encode(lf)
	add := binary.LittleEndian.Uint32(code[0:4])
	ret := binary.LittleEndian.Uint32(code[4:8])
	require.Equal(t, uint32(0x8B010000), add, "ADD x0, x0, x1")
	require.Equal(t, uint32(0xD65F03C0), ret, "RET")
	require.Equal(t, "ADD X0, X0, X1", disasm(t, add))
}

// TestBranchResolvesToBlockStart exercises the two-pass branch target
// resolution (word-offset, not byte-offset, per §4.6's encoding for
// unconditional-branch/b.cond) against a block that starts at the branch
// instruction itself (index 1).
func TestBranchResolvesToBlockStart(t *testing.T) {
	target := ssa.BlockID(7)
	lf := &LoweredFunc{
		Name: "branch",
		Instrs: []Instr{
			{Kind: KMovz, Rd: 0, Imm: 1, Is64: true},
			{Kind: KB, Target: target},
		},
		BlockStart: map[ssa.BlockID]int{target: 1},
	}
	code, _ := Encode(lf)
	b := binary.LittleEndian.Uint32(code[4:8])
	// b whose target block starts at the branch itself: word offset 0.
	require.Equal(t, uint32(0x14000000), b)
}

// TestCallEmitsBranchRelocation checks that a BL to a symbol always
// produces a matching ARM64_RELOC_BRANCH26-class relocation rather than
// an attempt to resolve it locally (§4.7 calls are always relocated,
// unlike intra-function branches which are resolved by Encode itself).
func TestCallEmitsBranchRelocation(t *testing.T) {
	lf := &LoweredFunc{
		Name: "caller",
		Instrs: []Instr{
			{Kind: KBL, Symbol: "callee"},
		},
	}
	_, relocs := Encode(lf)
	require.Len(t, relocs, 1)
	require.Equal(t, RelocBranch26, relocs[0].Kind)
	require.Equal(t, "callee", relocs[0].Symbol)
	require.EqualValues(t, 0, relocs[0].Offset)
}

// TestAdrpAndAddSymEmitPageRelocations covers the PC-relative
// global-address sequence (§4.7, §6.3): ADRP gets a PAGE21 relocation
// and the following ADD gets a PAGEOFF12 relocation against the same
// symbol.
func TestAdrpAndAddSymEmitPageRelocations(t *testing.T) {
	lf := &LoweredFunc{
		Name: "globalref",
		Instrs: []Instr{
			{Kind: KAdrp, Rd: 0, Symbol: "count"},
			{Kind: KAddSym, Rd: 0, Rn: 0, Symbol: "count"},
		},
	}
	_, relocs := Encode(lf)
	require.Len(t, relocs, 2)
	require.Equal(t, RelocPage21, relocs[0].Kind)
	require.Equal(t, RelocPageOff12, relocs[1].Kind)
	require.Equal(t, "count", relocs[0].Symbol)
	require.Equal(t, "count", relocs[1].Symbol)
}

func TestCSetMaterializesBoolean(t *testing.T) {
	lf := &LoweredFunc{
		Name: "cset",
		Instrs: []Instr{
			{Kind: KCSet, Rd: 0, Cond: CondEQ, Is64: true},
		},
	}
	code, _ := Encode(lf)
	word := binary.LittleEndian.Uint32(code)
	require.Equal(t, "CSET X0, EQ", disasm(t, word))
}

func TestLoadStoreUnsignedImmediateRoundTrips(t *testing.T) {
	lf := &LoweredFunc{
		Name: "loadstore",
		Instrs: []Instr{
			{Kind: KStrImm, Rd: 0, Rn: RegFP, Imm: 16, Size: 8},
			{Kind: KLdrImm, Rd: 1, Rn: RegFP, Imm: 16, Size: 8},
		},
	}
	code, _ := Encode(lf)
	str := binary.LittleEndian.Uint32(code[0:4])
	ldr := binary.LittleEndian.Uint32(code[4:8])
	require.Contains(t, disasm(t, str), "STR")
	require.Contains(t, disasm(t, ldr), "LDR")
}
