package macho

import (
	"sort"

	"github.com/cot-land/bootstrap-0.2-sub003/internal/diag"
	"github.com/cot-land/bootstrap-0.2-sub003/internal/xlog"
	"github.com/cot-land/bootstrap-0.2-sub003/isa/arm64"
)

// Func is one compiled function's final machine code and the
// relocations isa/arm64's Lower recorded against it (§5: Lower's output
// feeds directly into this package, the last stage of the pipeline).
type Func struct {
	Name   string
	Code   []byte
	Relocs []arm64.Relocation
}

// symbol is one entry this object's symbol table will carry. Every
// compiled Func becomes a defined, external symbol (so another
// translation unit's call can resolve to it); every relocation target
// this object references but does not itself define becomes an
// undefined external symbol for the linker to resolve against another
// object or a system library (§4.7: "produces relocatable object files,
// not a linked executable" — resolving those is explicitly left to the
// external linker).
type symbol struct {
	name    string
	value   uint64
	defined bool
}

// Write assembles a single-section (__TEXT,__text) MH_OBJECT Mach-O file
// holding every function in funcs back to back, with one relocation
// entry per arm64.Relocation and one symbol table entry per function
// plus one per external symbol any function's code references (§6.3).
func Write(funcs []Func) []byte {
	text, funcOffset := concatCode(funcs)
	syms, symIndex := buildSymbolTable(funcs, funcOffset)
	relocs := buildRelocations(funcs, funcOffset, symIndex)
	strtab, nameOffset := buildStringTable(syms)

	ncmds := 4
	cmdsTotal := segCmdSize + sectCmdSize + symtabSize + dysymtabSize + buildVerSize
	headerTotal := 32 + cmdsTotal

	textOffset := alignUp(headerTotal, textAlign)
	textSize := len(text)

	relocOffset := alignUp(textOffset+textSize, 4)
	relocSize := len(relocs) * 8

	symOffset := alignUp(relocOffset+relocSize, 8)
	nsyms := len(syms)
	symSize := nsyms * 16

	strOffset := symOffset + symSize
	strSize := len(strtab)

	total := alignUp(strOffset+strSize, 8)
	bin := make([]byte, total)

	// mach_header_64
	putU32(bin[0:], 0xfeedfacf)
	putU32(bin[4:], cpuTypeARM64)
	putU32(bin[8:], cpuSubtypeAll)
	putU32(bin[12:], fileTypeObject)
	putU32(bin[16:], uint32(ncmds))
	putU32(bin[20:], uint32(cmdsTotal))
	putU32(bin[24:], flagSubsections)
	putU32(bin[28:], 0) // reserved

	off := 32

	// LC_SEGMENT_64, unnamed (object files use an empty segment name; the
	// linker merges it into the final image's __TEXT segment), one section.
	putU32(bin[off:], lcSegment64)
	putU32(bin[off+4:], uint32(segCmdSize+sectCmdSize))
	// segname left zero (16 bytes of "")
	putU64(bin[off+24:], 0)                // vmaddr
	putU64(bin[off+32:], uint64(textSize)) // vmsize
	putU64(bin[off+40:], uint64(textOffset))
	putU64(bin[off+48:], uint64(textSize)) // filesize
	putU32(bin[off+56:], 7)                // maxprot rwx
	putU32(bin[off+60:], 5)                // initprot r-x
	putU32(bin[off+64:], 1)                // nsects
	putU32(bin[off+68:], 0)                // flags
	off += segCmdSize

	copy(bin[off:], "__text\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")
	copy(bin[off+16:], "__TEXT\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")
	putU64(bin[off+32:], 0) // addr, section-relative to the (zero) segment vmaddr
	putU64(bin[off+40:], uint64(textSize))
	putU32(bin[off+48:], uint32(textOffset))
	putU32(bin[off+52:], 4) // align = log2(16)
	putU32(bin[off+56:], uint32(relocOffset))
	putU32(bin[off+60:], uint32(len(relocs)))
	putU32(bin[off+64:], textSectionFlags)
	off += sectCmdSize

	// LC_SYMTAB
	putU32(bin[off:], lcSymtab)
	putU32(bin[off+4:], symtabSize)
	putU32(bin[off+8:], uint32(symOffset))
	putU32(bin[off+12:], uint32(nsyms))
	putU32(bin[off+16:], uint32(strOffset))
	putU32(bin[off+20:], uint32(strSize))
	off += symtabSize

	// LC_DYSYMTAB: every symbol here is either a defined or undefined
	// external, never a local (§4.7 names no static/file-scope symbols)
	// — buildSymbolTable already orders defined-external before
	// undefined-external, matching what this load command requires.
	nDefined := 0
	for _, s := range syms {
		if s.defined {
			nDefined++
		}
	}
	putU32(bin[off:], lcDysymtab)
	putU32(bin[off+4:], dysymtabSize)
	putU32(bin[off+8:], 0)                       // ilocalsym
	putU32(bin[off+12:], 0)                      // nlocalsym
	putU32(bin[off+16:], 0)                      // iextdefsym
	putU32(bin[off+20:], uint32(nDefined))       // nextdefsym
	putU32(bin[off+24:], uint32(nDefined))       // iundefsym
	putU32(bin[off+28:], uint32(nsyms-nDefined)) // nundefsym
	off += dysymtabSize

	// LC_BUILD_VERSION, macOS/arm64, no tool entries — just enough for
	// the linker to know the target platform without a full SDK record.
	putU32(bin[off:], lcBuildVersion)
	putU32(bin[off+4:], buildVerSize)
	putU32(bin[off+8:], platformMacOS)
	putU32(bin[off+12:], 0) // minos
	putU32(bin[off+16:], 0) // sdk
	putU32(bin[off+20:], 0) // ntools
	off += buildVerSize

	copy(bin[textOffset:], text)

	relOff := relocOffset
	for _, r := range relocs {
		putU32(bin[relOff:], uint32(r.address))
		packed := uint32(r.symbolnum&0xffffff) |
			boolBit(r.pcrel)<<24 |
			uint32(r.length&0x3)<<25 |
			boolBit(r.extern)<<27 |
			uint32(r.kind&0xf)<<28
		putU32(bin[relOff+4:], packed)
		relOff += 8
	}

	symOff := symOffset
	for _, s := range syms {
		putU32(bin[symOff:], uint32(nameOffset[s.name]))
		typ := byte(0x01) // N_EXT
		sect := byte(0)
		if s.defined {
			typ |= 0x0e // N_SECT
			sect = 1
		}
		bin[symOff+4] = typ
		bin[symOff+5] = sect
		// n_desc left zero
		putU64(bin[symOff+8:], s.value)
		symOff += 16
	}

	copy(bin[strOffset:], strtab)

	xlog.Debug("macho object assembled", "functions", len(funcs), "bytes", total, "relocations", len(relocs))
	return bin
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func concatCode(funcs []Func) ([]byte, map[string]int) {
	var text []byte
	offsets := make(map[string]int, len(funcs))
	for _, fn := range funcs {
		offsets[fn.Name] = len(text)
		text = append(text, fn.Code...)
	}
	return text, offsets
}

// buildSymbolTable produces one defined-external symbol per function
// (in call order) followed by one undefined-external symbol per
// distinct external reference no function in this unit defines,
// sorted for determinism — LC_DYSYMTAB requires defined symbols to
// precede undefined ones.
func buildSymbolTable(funcs []Func, funcOffset map[string]int) ([]symbol, map[string]int) {
	syms := make([]symbol, 0, len(funcs))
	for _, fn := range funcs {
		syms = append(syms, symbol{name: fn.Name, value: uint64(funcOffset[fn.Name]), defined: true})
	}

	external := map[string]bool{}
	for _, fn := range funcs {
		for _, r := range fn.Relocs {
			if _, isLocal := funcOffset[r.Symbol]; !isLocal {
				external[r.Symbol] = true
			}
		}
	}
	names := make([]string, 0, len(external))
	for name := range external {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		syms = append(syms, symbol{name: name, defined: false})
	}

	index := make(map[string]int, len(syms))
	for i, s := range syms {
		index[s.name] = i
	}
	return syms, index
}

type relocEntry struct {
	address   int
	symbolnum int
	pcrel     bool
	length    int
	extern    bool
	kind      int
}

func buildRelocations(funcs []Func, funcOffset map[string]int, symIndex map[string]int) []relocEntry {
	var out []relocEntry
	for _, fn := range funcs {
		base := funcOffset[fn.Name]
		for _, r := range fn.Relocs {
			e := relocEntry{
				address:   base + r.Offset,
				symbolnum: symIndex[r.Symbol],
				extern:    true,
			}
			switch r.Kind {
			case arm64.RelocBranch26:
				e.kind, e.pcrel, e.length = relocBranch26, true, 2
			case arm64.RelocPage21:
				e.kind, e.pcrel, e.length = relocPage21, true, 2
			case arm64.RelocPageOff12:
				e.kind, e.pcrel, e.length = relocPageOff12, false, 2
			case arm64.RelocUnsigned64:
				e.kind, e.pcrel, e.length = relocUnsigned, false, 3
			default:
				diag.Bugf(diag.Context{Func: fn.Name}, "unknown relocation kind %d", r.Kind)
			}
			out = append(out, e)
		}
	}
	return out
}

func buildStringTable(syms []symbol) ([]byte, map[string]int) {
	strtab := []byte{0}
	offsets := make(map[string]int, len(syms))
	for _, s := range syms {
		if _, ok := offsets[s.name]; ok {
			continue
		}
		offsets[s.name] = len(strtab)
		strtab = append(strtab, []byte(s.name)...)
		strtab = append(strtab, 0)
	}
	return strtab, offsets
}
