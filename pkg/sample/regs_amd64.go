//go:build amd64

package sample

// Registers is the x86-64 register file subset carried by a sampling
// context. Function call arguments live in RDI, RSI, RDX, RCX, R8 and
// R9, in that order.
type Registers struct {
	IP  uint64
	SP  uint64
	BP  uint64
	RDI uint64
	RSI uint64
	RDX uint64
	RCX uint64
	R8  uint64
	R9  uint64
}

// Param6 returns the sixth function call argument, which on x86-64 is
// passed in the R9 register.
func (r Registers) Param6() uint64 {
	return r.R9
}
