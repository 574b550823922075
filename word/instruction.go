// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package word

import (
	"fmt"
)

// Instruction field boundaries within a machine word:
//
//	bit 35     h    hold bit
//	bits 34-30 cf   configuration (F memory selector)
//	bits 29-24 op   operation code
//	bits 23-18 j    index register / sequence number
//	bit 17     d    defer (indirect) bit
//	bits 16-0  y    operand address
const (
	holdShift = 35
	cfShift   = 30
	opShift   = 24
	jShift    = 18

	cfWidth = 5
	opWidth = 6
	jWidth  = 6

	cfLimit = 1 << cfWidth
	opLimit = 1 << opWidth
	jLimit  = 1 << jWidth

	deferBit = Word(1) << AddrBits
)

// Instruction is the decoded view of an instruction word. It is a
// transient value; the control element rebuilds it from the N register
// on every cycle.
type Instruction struct {
	Held  bool   // Hold bit: suppresses flag scanning and dismissal.
	Cfg   uint8  // Configuration, selects an F memory entry.
	Op    uint8  // Operation code.
	J     uint8  // Index register, also the sequence/unit number.
	Defer bool   // Deferred (indirect) addressing.
	Addr  uint32 // 17-bit operand address.
}

// Decode splits a machine word into instruction fields. Decode is
// total: every word decodes to some Instruction. Whether the operation
// code is defined is the control element's concern, not the codec's.
func Decode(w Word) Instruction {
	return Instruction{
		Held:  w>>holdShift&1 != 0,
		Cfg:   uint8(w >> cfShift & (cfLimit - 1)),
		Op:    uint8(w >> opShift & (opLimit - 1)),
		J:     uint8(w >> jShift & (jLimit - 1)),
		Defer: w&deferBit != 0,
		Addr:  uint32(w) & uint32(AddrMask),
	}
}

// Encode packs instruction fields into a machine word, the exact
// inverse of Decode. Fields out of range are a caller bug and panic.
func (inst Instruction) Encode() Word {
	if inst.Cfg >= cfLimit {
		panic(fmt.Sprintf("word: configuration %#o out of range", inst.Cfg))
	}
	if inst.Op >= opLimit {
		panic(fmt.Sprintf("word: operation %#o out of range", inst.Op))
	}
	if inst.J >= jLimit {
		panic(fmt.Sprintf("word: index %#o out of range", inst.J))
	}
	if Address(inst.Addr) > AddrMask {
		panic(fmt.Sprintf("word: operand address %#o out of range", inst.Addr))
	}

	w := Word(inst.Cfg)<<cfShift |
		Word(inst.Op)<<opShift |
		Word(inst.J)<<jShift |
		Word(inst.Addr)
	if inst.Held {
		w |= Word(1) << holdShift
	}
	if inst.Defer {
		w |= deferBit
	}
	return w
}

// Operand returns the operand address as an Address value.
func (inst Instruction) Operand() Address {
	return NewAddress(inst.Addr)
}

// String renders the fields in octal, one group per field.
func (inst Instruction) String() string {
	h := ""
	if inst.Held {
		h = "h "
	}
	d := ""
	if inst.Defer {
		d = "*"
	}
	return fmt.Sprintf("%v%02o %02o %02o %v%06o",
		h, inst.Cfg, inst.Op, inst.J, d, inst.Addr)
}
