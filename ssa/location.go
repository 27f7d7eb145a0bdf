package ssa

import "strconv"

// LocationKind distinguishes a register-resident value from a stack-resident
// one (§3 Location).
type LocationKind byte

const (
	LocationInvalid LocationKind = iota
	LocationRegister
	LocationStack
)

// Location is the tagged variant `Register(reg_num) | Stack(offset)` of §3.
// Every Value that produces a runtime value and is reachable must carry one
// by the end of regalloc+stackalloc (§8 invariant 3).
type Location struct {
	Kind LocationKind
	// Reg is valid when Kind == LocationRegister: a 0..31 physical register
	// number in the target's own numbering (AAPCS64 for ARM64).
	Reg uint8
	// Offset is valid when Kind == LocationStack: a frame-pointer-relative
	// byte offset, assigned by the stack allocator (§4.4).
	Offset int32
}

func (l Location) String() string {
	switch l.Kind {
	case LocationRegister:
		return "r" + strconv.Itoa(int(l.Reg))
	case LocationStack:
		return "fp" + strconv.Itoa(int(l.Offset))
	default:
		return "none"
	}
}

// IsRegister reports whether this Location is a register.
func (l Location) IsRegister() bool { return l.Kind == LocationRegister }

// IsStack reports whether this Location is a stack slot.
func (l Location) IsStack() bool { return l.Kind == LocationStack }
