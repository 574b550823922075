package cpu

import (
	"fmt"
	"iter"
	"maps"
)

// Op is a TX-2 operation code, the 6-bit field at bits 29-24 of an
// instruction word. Operation numbers follow the hardware assignments;
// HLT occupies 0o01, which the hardware left unassigned.
type Op uint8

const (
	OpHLT Op = 0o01 // halt (emulator assignment)
	OpIOS Op = 0o04 // in-out select: flags, unit connect/disconnect
	OpJMP Op = 0o05 // jump
	OpJPX Op = 0o06 // jump on positive index, counting down
	OpJNX Op = 0o07 // jump on negative index, counting up
	OpAUX Op = 0o10 // augment index from memory
	OpRSX Op = 0o11 // reset index from memory
	OpSKX Op = 0o12 // set or test index against the address field
	OpDPX Op = 0o16 // deposit index into memory
	OpSKM Op = 0o17 // skip on (and modify) a memory bit
	OpLDE Op = 0o20 // load E
	OpSPF Op = 0o21 // store configuration from F memory
	OpSPG Op = 0o22 // load configuration into F memory
	OpLDA Op = 0o24 // load A
	OpLDB Op = 0o25 // load B
	OpLDC Op = 0o26 // load C
	OpLDD Op = 0o27 // load D
	OpSTE Op = 0o30 // store E
	OpSTA Op = 0o34 // store A
	OpSTB Op = 0o35 // store B
	OpSTC Op = 0o36 // store C
	OpSTD Op = 0o37 // store D
	OpITA Op = 0o41 // intersect (AND) into A
	OpUNA Op = 0o42 // unite (OR) into A
	OpSED Op = 0o43 // skip if E differs from memory
	OpJOV Op = 0o45 // jump on overflow
	OpJPA Op = 0o46 // jump on positive A
	OpJNA Op = 0o47 // jump on negative A
	OpTSD Op = 0o57 // transfer word through the selected device
	OpCYA Op = 0o60 // cycle A
	OpCYB Op = 0o61 // cycle B
	OpADD Op = 0o67 // add to A
	OpTLY Op = 0o74 // tally ones of memory into A
	OpDIV Op = 0o75 // divide A, remainder to B
	OpMUL Op = 0o76 // multiply, double-length product to A,B
	OpSUB Op = 0o77 // subtract from A
)

// opNames maps every defined operation to its mnemonic. Operations not
// present here decode to an OCSAL alarm.
var opNames = map[Op]string{
	OpHLT: "hlt",
	OpIOS: "ios",
	OpJMP: "jmp",
	OpJPX: "jpx",
	OpJNX: "jnx",
	OpAUX: "aux",
	OpRSX: "rsx",
	OpSKX: "skx",
	OpDPX: "dpx",
	OpSKM: "skm",
	OpLDE: "lde",
	OpSPF: "spf",
	OpSPG: "spg",
	OpLDA: "lda",
	OpLDB: "ldb",
	OpLDC: "ldc",
	OpLDD: "ldd",
	OpSTE: "ste",
	OpSTA: "sta",
	OpSTB: "stb",
	OpSTC: "stc",
	OpSTD: "std",
	OpITA: "ita",
	OpUNA: "una",
	OpSED: "sed",
	OpJOV: "jov",
	OpJPA: "jpa",
	OpJNA: "jna",
	OpTSD: "tsd",
	OpCYA: "cya",
	OpCYB: "cyb",
	OpADD: "add",
	OpTLY: "tly",
	OpDIV: "div",
	OpMUL: "mul",
	OpSUB: "sub",
}

// ByName maps mnemonics back to operation codes, for the assembler.
var ByName = func() (names map[string]Op) {
	names = make(map[string]Op, len(opNames))
	for op, name := range opNames {
		names[name] = op
	}
	return
}()

// Defined reports whether the operation code has assigned behavior.
func (op Op) Defined() bool {
	_, ok := opNames[op]
	return ok
}

// String returns the mnemonic, or the octal code for undefined
// operations.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("%02o", uint8(op))
}

var _cpu_defines = map[string]string{
	"SEQ_STARTOVER": fmt.Sprintf("%#o", SeqStartover),
	"SEQ_IO_ALARM":  fmt.Sprintf("%#o", SeqIOAlarm),
	"SEQ_TRAP":      fmt.Sprintf("%#o", SeqTrap),
	"SEQ_READER":    fmt.Sprintf("%#o", SeqReader),
	"SEQ_PUNCH":     fmt.Sprintf("%#o", SeqPunch),
}

// Defines returns an iterator of assembler equates for this package.
func (cu *ControlUnit) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}
