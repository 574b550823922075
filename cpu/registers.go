package cpu

import (
	"fmt"

	"github.com/ezrec/tx2/word"
)

// Registers is the register file of the control and arithmetic
// elements. The X memory doubles as the placeholder store: index
// register j parks the program counter of sequence j while that
// sequence is not running.
type Registers struct {
	A word.Word // accumulator
	B word.Word // low half of double-length results
	C word.Word
	D word.Word
	E word.Word // exchange register; also the sequence-change record

	X [NumSequences]word.Xword // index registers; X0 is wired to zero
	F [32]word.Configuration   // exchange configurations

	P word.Address // program counter of the live sequence
	Q word.Address // most recent operand address

	// K is the current sequence number, or -1 before the first
	// selection so that the very first cycle is seen as a change of
	// sequence.
	K int

	// SPR is the start point register: where sequence 0 begins, since
	// its placeholder X0 is wired to zero.
	SPR word.Address

	// Overflow is the overflow flip-flop, set by masked arithmetic
	// overflows and tested (and cleared) by JOV.
	Overflow bool
}

// NewRegisters returns the power-on register state: everything zero,
// the F memory at its standard settings, and no sequence selected.
func NewRegisters() (regs Registers) {
	regs.F = word.StandardConfigs
	regs.K = -1
	return
}

// Index returns X[j]. X0 always reads as zero.
func (regs *Registers) Index(j uint8) word.Xword {
	if j == 0 {
		return 0
	}
	if int(j) >= NumSequences {
		panic(fmt.Sprintf("cpu: index register %#o out of range", j))
	}
	return regs.X[j]
}

// SetIndex stores into X[j]. Stores to X0 are dropped; it is wired to
// zero in the hardware.
func (regs *Registers) SetIndex(j uint8, x word.Xword) {
	if j == 0 {
		return
	}
	if int(j) >= NumSequences {
		panic(fmt.Sprintf("cpu: index register %#o out of range", j))
	}
	regs.X[j] = x & word.XMask
}

// Config returns F memory entry n. Entry 0 is pinned to the full-word
// configuration.
func (regs *Registers) Config(n uint8) word.Configuration {
	if n == 0 {
		return word.FullWord
	}
	return regs.F[n&0o37]
}

// SetConfig replaces F memory entry n. Entry 0 is immutable.
func (regs *Registers) SetConfig(n uint8, cfg word.Configuration) {
	if n == 0 {
		return
	}
	regs.F[n&0o37] = cfg
}

// String renders the register file one register per line, for
// inspection tooling.
func (regs *Registers) String() (text string) {
	k := "--"
	if regs.K >= 0 {
		k = fmt.Sprintf("%02o", regs.K)
	}
	text = fmt.Sprintf("   a: %v\n   b: %v\n   c: %v\n   d: %v\n   e: %v\n",
		regs.A, regs.B, regs.C, regs.D, regs.E)
	text += fmt.Sprintf("   p: %v\n   q: %v\n   k: %v\n spr: %v\n ovf: %v\n",
		regs.P, regs.Q, k, regs.SPR, regs.Overflow)
	return
}
