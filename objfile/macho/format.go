// Package macho writes relocatable (MH_OBJECT) Mach-O object files for
// darwin/arm64 (§4.7, §6.3). It only ever writes — debug/macho (imported
// here purely for its named constants: Cpu, Type, LoadCmd, the section
// attribute flags) ships no encoder of its own, and the pack carries no
// third-party Mach-O writer, so this file's bit layouts are grounded
// directly on the Mach-O/ARM64 reference the mach-o-reloc.h headers and
// debug/macho's own (read-only) struct definitions describe, in the same
// explicit-offset style other_examples' tinyrange Mach-O builder uses for
// its own (executable, not relocatable) output.
package macho

import "debug/macho"

const (
	cpuTypeARM64    = uint32(macho.CpuArm64)
	cpuSubtypeAll   = uint32(0)
	fileTypeObject  = uint32(macho.TypeObj)
	flagSubsections = uint32(0x2000) // MH_SUBSECTIONS_VIA_SYMBOLS

	lcSegment64    = uint32(macho.LoadCmdSegment64)
	lcSymtab       = uint32(macho.LoadCmdSymtab)
	lcDysymtab     = uint32(macho.LoadCmdDysymtab)
	lcBuildVersion = uint32(0x32)

	segCmdSize   = 72 // segment_command_64
	sectCmdSize  = 80 // section_64
	symtabSize   = 24
	dysymtabSize = 80
	buildVerSize = 24 // no load-tool entries

	// __text's section flags: S_REGULAR | S_ATTR_PURE_INSTRUCTIONS |
	// S_ATTR_SOME_INSTRUCTIONS, the same combination every Mach-O compiler
	// back end sets for executable code sections.
	textSectionFlags = uint32(0x80000400)

	textAlign = 16 // log2 exponent 4, stored in section_64.Align below

	// ARM64-specific relocation types (mach-o/arm64/reloc.h); debug/macho
	// has no arm64-specific reloc constant table of its own since it only
	// ever reads generic relocation_info, so these are named here.
	relocUnsigned  = 0
	relocBranch26  = 2
	relocPage21    = 3
	relocPageOff12 = 4

	platformMacOS = 1
)

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putU64(b []byte, v uint64) {
	putU32(b, uint32(v))
	putU32(b[4:], uint32(v>>32))
}

func alignUp(n, align int) int {
	if align <= 0 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + align - rem
}
