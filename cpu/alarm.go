package cpu

import (
	"github.com/ezrec/tx2/word"
)

// AlarmKind identifies a fault condition by its hardware alarm name.
type AlarmKind int

const (
	OCSAL AlarmKind = iota // operation code alarm: undefined opcode
	PSAL                   // program fetch alarm: bad instruction address
	QSAL                   // operand alarm: bad operand address
	AOVAL                  // arithmetic overflow
	DIVAL                  // divide fault
	IOSAL                  // in-out misuse: no unit on the sequence

	numAlarmKinds
)

var alarmNames = [numAlarmKinds]string{
	OCSAL: "OCSAL",
	PSAL:  "PSAL",
	QSAL:  "QSAL",
	AOVAL: "AOVAL",
	DIVAL: "DIVAL",
	IOSAL: "IOSAL",
}

func (k AlarmKind) String() string {
	if k >= 0 && k < numAlarmKinds {
		return alarmNames[k]
	}
	return "?"
}

// Alarm is a raised fault condition. It carries the context a handler
// or operator needs: the sequence that faulted, the instruction
// address, and the offending word or operand address.
type Alarm struct {
	Kind AlarmKind
	Seq  uint8        // sequence that raised the alarm
	At   word.Address // address of the faulting instruction
	Word word.Word    // offending instruction word (OCSAL)
	Addr word.Address // offending operand address (PSAL, QSAL)
}

func (a *Alarm) Error() string {
	switch a.Kind {
	case OCSAL:
		return f("%v: undefined operation in %v at %v (sequence %02o)",
			a.Kind, a.Word, a.At, a.Seq)
	case PSAL, QSAL:
		return f("%v: address %v outside core at %v (sequence %02o)",
			a.Kind, a.Addr, a.At, a.Seq)
	default:
		return f("%v at %v (sequence %02o)", a.Kind, a.At, a.Seq)
	}
}

func (a *Alarm) Is(err error) (ok bool) {
	_, ok = err.(*Alarm)
	return
}

// Policy decides what the control element does with a raised alarm.
type Policy int

const (
	// PolicyFatal halts the machine.
	PolicyFatal Policy = iota
	// PolicyMasked records the condition (the overflow flip-flop for
	// arithmetic alarms) and lets execution continue with the wrapped
	// result.
	PolicyMasked
	// PolicyTrap aborts the faulting instruction and raises the flag
	// of the trap sequence, so software in another sequence can field
	// the alarm.
	PolicyTrap
)

// AlarmConfig is the trap table: one policy per alarm kind, plus the
// sequence that catches trapped alarms. The classification is explicit
// configuration; the hardware documentation leaves parts of it
// ambiguous, so nothing here is hard-coded at call sites.
type AlarmConfig struct {
	Policy  [numAlarmKinds]Policy
	TrapSeq uint8
}

// DefaultAlarmConfig matches the machine's standard behavior: address
// and opcode faults halt, arithmetic overflow sets the overflow
// flip-flop and wraps.
func DefaultAlarmConfig() (cfg AlarmConfig) {
	cfg.TrapSeq = SeqTrap
	cfg.Policy[OCSAL] = PolicyFatal
	cfg.Policy[PSAL] = PolicyFatal
	cfg.Policy[QSAL] = PolicyFatal
	cfg.Policy[AOVAL] = PolicyMasked
	cfg.Policy[DIVAL] = PolicyFatal
	cfg.Policy[IOSAL] = PolicyFatal
	return
}

// HaltReason explains why the machine stopped.
type HaltReason int

const (
	HaltNone HaltReason = iota
	HaltExplicit                // HLT instruction
	HaltLimbo                   // no runnable sequence
	HaltIllegalInstruction      // OCSAL
	HaltAddressFault            // PSAL or QSAL
	HaltArithmeticFault         // AOVAL or DIVAL
	HaltIOFault                 // IOSAL
)

var haltNames = map[HaltReason]string{
	HaltNone:               "running",
	HaltExplicit:           "halt instruction",
	HaltLimbo:              "no runnable sequence",
	HaltIllegalInstruction: "illegal instruction",
	HaltAddressFault:       "address fault",
	HaltArithmeticFault:    "arithmetic fault",
	HaltIOFault:            "in-out fault",
}

func (r HaltReason) String() string {
	if name, ok := haltNames[r]; ok {
		return name
	}
	return "?"
}

// HaltReason maps an alarm kind onto the halt taxonomy.
func (k AlarmKind) HaltReason() HaltReason {
	switch k {
	case OCSAL:
		return HaltIllegalInstruction
	case PSAL, QSAL:
		return HaltAddressFault
	case AOVAL, DIVAL:
		return HaltArithmeticFault
	case IOSAL:
		return HaltIOFault
	}
	return HaltNone
}
