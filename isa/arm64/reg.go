// Package arm64 implements §4.5 (lowering), §4.6 (bit-exact ARM64
// encoding) and the callee-side half of §6.2 (AAPCS64 ABI, prologue and
// epilogue). It consumes ssa.Func only after regalloc and stackalloc have
// populated every Value's Home and every local's LocalHome (§5's strict
// phase order), so this package never makes its own register or stack
// decisions — it only translates already-assigned Locations into bytes.
package arm64

// Register numbers in AAPCS64/encoding order; regalloc.Reg already uses
// this exact numbering (§4.3.2), so Location.Reg round-trips into this
// package without any remapping table — unlike a JIT backend that must
// map an abstract VReg down to a physical one, this backend's allocator
// output *is* the physical register.
const (
	RegFP    = 29
	RegLR    = 30
	RegSP    = 31
	RegZR    = 31 // same encoding as SP; context (ALU vs load/store base) disambiguates
	RegX8    = 8
	scratch1 = 16 // IP0, the quotient temporary when lowering mod
	scratch2 = 17 // IP1
)
