package compiler

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/arch/arm64/arm64asm"

	"github.com/cot-land/bootstrap-0.2-sub003/internal/diag"
	"github.com/cot-land/bootstrap-0.2-sub003/internal/xlog"
	"github.com/cot-land/bootstrap-0.2-sub003/ir"
	"github.com/cot-land/bootstrap-0.2-sub003/isa/arm64"
	"github.com/cot-land/bootstrap-0.2-sub003/objfile/macho"
	"github.com/cot-land/bootstrap-0.2-sub003/regalloc"
	"github.com/cot-land/bootstrap-0.2-sub003/ssa"
	"github.com/cot-land/bootstrap-0.2-sub003/stackalloc"
)

// Compile runs every stage of §5's pipeline over prog, in the strict
// order it requires — SSA build, Liveness, RegAlloc, StackAlloc,
// Lowering, then the single Mach-O write covering every function — and
// returns the assembled object bytes.
//
// Each Func is carried through every stage before the next Func starts
// (rather than batching, say, all Liveness before any RegAlloc): §5
// requires the order per function, not a global barrier between stages,
// and nothing downstream of one function's lowering depends on another
// function having been lowered yet — only the final Mach-O write needs
// every function's result at once.
func Compile(prog *ir.Program, opts Options) ([]byte, error) {
	if opts.Verbose {
		xlog.Init(xlog.Config{Level: slog.LevelDebug})
	}

	funcs := make([]macho.Func, 0, len(prog.Funcs))
	for i := range prog.Funcs {
		fn := &prog.Funcs[i]
		f := BuildSSA(fn)

		ssa.Liveness(f)
		a := regalloc.DoAllocation(f)
		layout := stackalloc.Allocate(f, a)
		code, relocs := arm64.Lower(f, layout)

		if opts.VerifyEncoding {
			if err := verifyEncoding(fn.Name, code); err != nil {
				return nil, err
			}
		}

		funcs = append(funcs, macho.Func{Name: fn.Name, Code: code, Relocs: relocs})
	}

	obj := macho.Write(funcs)

	if opts.PerfMapPath != "" {
		if err := writePerfMap(opts.PerfMapPath, funcs); err != nil {
			return nil, fmt.Errorf("compiler: writing perf map: %w", err)
		}
	}

	if opts.OutputPath != "" {
		if err := os.WriteFile(opts.OutputPath, obj, 0o644); err != nil {
			return nil, fmt.Errorf("compiler: writing object file: %w", err)
		}
		xlog.ObjectWritten(opts.OutputPath, len(funcs))
	}

	return obj, nil
}

// verifyEncoding re-disassembles code with an independent decoder and
// returns an error naming the function and offset of the first word that
// does not decode as a real ARM64 instruction, rather than shipping it. A
// code length that is not a multiple of 4 is an encoder bug and panics
// through diag.Bugf. Grounded on
// wazevoapi.PrintMachineCodeHexPerFunctionDisassemblable's self-check
// idiom, using golang.org/x/arch's decoder the way
// isa/arm64/encoding_test.go already does, now also reachable from
// a real compile rather than only from a test.
func verifyEncoding(funcName string, code []byte) error {
	for off := 0; off+4 <= len(code); off += 4 {
		if _, err := arm64asm.Decode(code[off:]); err != nil {
			return fmt.Errorf("compiler: %s: undecodable instruction at offset %d: %w", funcName, off, err)
		}
	}
	if len(code)%4 != 0 {
		diag.Bugf(diag.Context{Func: funcName}, "emitted code length %d is not a multiple of 4", len(code))
	}
	return nil
}

// writePerfMap emits one `addr size name` line per function, in the
// hex/hex/name format wazevoapi's Perfmap.Flush writes, with addr taken
// as each function's offset within the concatenated __text section
// (matching exactly how objfile/macho.Write lays functions out back to
// back) rather than a real runtime address — useful against an `objdump
// -d` of the written object, not against a live process.
func writePerfMap(path string, funcs []macho.Func) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	offset := 0
	for _, fn := range funcs {
		line := strconv.FormatInt(int64(offset), 16) + " " +
			strconv.FormatInt(int64(len(fn.Code)), 16) + " " + fn.Name + "\n"
		if _, err := f.WriteString(line); err != nil {
			return err
		}
		offset += len(fn.Code)
	}
	return nil
}
