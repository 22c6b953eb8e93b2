//go:build arm64

package sample

// Registers is the ARM64 register file subset carried by a sampling
// context. Function call arguments live in the indexed general purpose
// registers X0..X7.
type Registers struct {
	PC   uint64
	SP   uint64
	FP   uint64
	Regs [31]uint64
}

// Param6 returns the sixth function call argument, which on ARM64 is
// passed in the X5 general purpose register.
func (r Registers) Param6() uint64 {
	return r.Regs[5]
}
