package compiler

// Options configures a single Compile call (§2.3), constructed directly
// by the caller rather than through a flag/env-var library — grounded on
// wazevo's own `wazevoapi.NewConfig`-style plain struct, since §1 places
// the CLI outside this module's scope and the teacher's own `cmd/wazero`
// reaches for nothing fancier than `flag` either.
type Options struct {
	// OutputPath, if non-empty, is where Compile writes the assembled
	// Mach-O object. Compile always returns the bytes regardless, so a
	// caller embedding this module (rather than driving it via cmd/cotc)
	// can skip the filesystem entirely.
	OutputPath string

	// PerfMapPath, if non-empty, enables a `perf map` sidecar listing
	// each function's offset/size/name, grounded on wazevoapi/perfmap.go's
	// entry format (§SPEC_FULL 4 supplemented feature). Addresses are
	// relative to the __text section's start, matching how `perf` itself
	// expects this file when given a `--map-file` offset to add at load
	// time.
	PerfMapPath string

	// Verbose raises internal/xlog's default logger to debug level
	// instead of leaving it discarding (§2.1).
	Verbose bool

	// VerifyEncoding re-decodes every emitted function's machine code
	// with an independent disassembler and fails the compile if any
	// instruction doesn't decode, rather than trusting the encoder
	// silently (§SPEC_FULL 4 supplemented feature, grounded on
	// wazevoapi.PrintMachineCodeHexPerFunctionDisassemblable's
	// disassembly-based self-check idiom).
	VerifyEncoding bool
}
