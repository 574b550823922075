// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"log"

	"github.com/ezrec/tx2/ae"
	"github.com/ezrec/tx2/mem"
	"github.com/ezrec/tx2/word"
)

// Unit is an in-out device attached to a sequence number. IOS connects
// and disconnects it; TSD moves one word at a time between it and
// core.
type Unit interface {
	Connect()
	Disconnect()

	// Transfer performs one TSD exchange. An input unit fills *w and
	// reports wrote; an output unit consumes *w. done reports end of
	// medium, which dismisses the sequence rather than faulting.
	Transfer(w *word.Word) (wrote bool, done bool)
}

// Cycle is the structured record of one executed machine cycle,
// published to diagnostics subscribers.
type Cycle struct {
	Seq  uint8            // sequence that ran
	At   word.Address     // address the instruction was fetched from
	Word word.Word        // raw instruction word
	Inst word.Instruction // decoded N register (after deferral)
	Skip bool             // the instruction skipped over the next word
	Jump bool             // the instruction transferred control

	// Trapped is the alarm this cycle redirected to the trap sequence,
	// if any.
	Trapped *Alarm
}

// ControlUnit drives the fetch, decode, and execute cycle over the
// register file, the sequence table, and core.
type ControlUnit struct {
	Verbose bool // Set to enable verbose logging.

	Regs   Registers
	Seqs   Sequences
	Alarms AlarmConfig

	// TrapOnChangeSequence mirrors the console toggle of that name:
	// switching into a marked sequence (placeholder sign bit set)
	// raises the trap sequence first.
	TrapOnChangeSequence bool

	held     bool // previous instruction carried the hold bit
	runnable bool // current sequence keeps running with its flag down
	units    map[uint8]Unit
}

// NewControlUnit returns a control unit at power-on: registers and
// flags clear, the machine in Limbo, the default alarm table.
func NewControlUnit() (cu *ControlUnit) {
	cu = &ControlUnit{
		Regs:   NewRegisters(),
		Seqs:   NewSequences(),
		Alarms: DefaultAlarmConfig(),
		units:  map[uint8]Unit{},
	}
	return
}

// SetUnit attaches an in-out unit to sequence j, or detaches it when
// unit is nil.
func (cu *ControlUnit) SetUnit(j uint8, unit Unit) {
	if unit == nil {
		delete(cu.units, j)
		return
	}
	cu.units[j] = unit
}

// Unit returns the device attached to sequence j, if any.
func (cu *ControlUnit) Unit(j uint8) Unit {
	return cu.units[j]
}

// Reset loads the start point register, as the console RESET buttons
// do. Nothing else changes.
func (cu *ControlUnit) Reset(spr word.Address) {
	cu.Regs.SPR = spr
}

// Startover raises the flag of sequence 0, which begins at the start
// point register.
func (cu *ControlUnit) Startover() {
	cu.Seqs.Raise(SeqStartover)
}

// Boot points sequence j at entry and raises its flag: the state the
// standard tape read-in leaves behind.
func (cu *ControlUnit) Boot(j uint8, entry word.Address) {
	if j == SeqStartover {
		cu.Reset(entry)
	} else {
		cu.Regs.SetIndex(j, entry.Xword())
	}
	cu.Seqs.Raise(j)
	if cu.Verbose {
		log.Printf("cpu: boot sequence %02o at %v", j, entry)
	}
}

// changeSequence parks the old sequence's program counter in its
// placeholder and takes up the new one's. The E register records the
// switch: old and new sequence numbers in the left half, the departed
// program counter in the right.
func (cu *ControlUnit) changeSequence(next uint8) {
	prev := cu.Regs.K

	if cu.TrapOnChangeSequence &&
		next > cu.Alarms.TrapSeq &&
		prev != int(cu.Alarms.TrapSeq) &&
		cu.Regs.Index(next).IsNegative() {
		cu.Seqs.Raise(cu.Alarms.TrapSeq)
		next = cu.Alarms.TrapSeq
	}

	prevSeq := word.Word(0)
	if prev >= 0 {
		prevSeq = word.Word(prev)
	}
	cu.Regs.E = word.JoinHalves(
		prevSeq<<word.QuarterBits|word.Word(next),
		word.Word(cu.Regs.P.Xword()))

	if prev >= 0 {
		cu.Regs.SetIndex(uint8(prev), cu.Regs.P.Xword())
	}
	if next == SeqStartover {
		// X0 is wired to zero; sequence 0 starts at the start point
		// register instead.
		cu.Regs.P = cu.Regs.SPR
	} else {
		cu.Regs.P = word.AddressFromXword(cu.Regs.Index(next))
	}
	cu.Regs.K = int(next)
	cu.runnable = true

	if cu.Verbose {
		log.Printf("cpu: sequence %02o -> %02o at %v", prevSeq, next, cu.Regs.P)
	}
}

// dismiss drops the current sequence: flag lowered, no longer runnable.
func (cu *ControlUnit) dismiss() {
	if cu.Regs.K >= 0 {
		cu.Seqs.Lower(uint8(cu.Regs.K))
	}
	cu.runnable = false
}

// fault routes a raised alarm through the configured policy. abort
// reports that the current instruction must not mutate anything
// further; err is the fatal case.
func (cu *ControlUnit) fault(cyc *Cycle, kind AlarmKind, w word.Word, addr word.Address) (abort bool, err error) {
	al := &Alarm{
		Kind: kind,
		Seq:  cyc.Seq,
		At:   cyc.At,
		Word: w,
		Addr: addr,
	}

	switch cu.Alarms.Policy[kind] {
	case PolicyMasked:
		switch kind {
		case AOVAL, DIVAL:
			// The wrapped result stands; the flip-flop remembers.
			cu.Regs.Overflow = true
		default:
			// A masked fault suppresses the operation.
			abort = true
		}
	case PolicyTrap:
		cu.Seqs.Raise(cu.Alarms.TrapSeq)
		cyc.Trapped = al
		abort = true
	default:
		err = al
	}

	if cu.Verbose && err == nil {
		log.Printf("cpu: %v (%v)", al, cu.Alarms.Policy[kind])
	}
	return
}

// Step executes one machine cycle: select the live sequence, fetch,
// decode, resolve the operand address, and dispatch. The returned
// error is nil to continue, ErrHalted or ErrLimbo for the terminal
// conditions, or a fatal *Alarm.
func (cu *ControlUnit) Step(m *mem.Memory) (cyc Cycle, err error) {
	// The hold bit suppresses flag scanning entirely.
	if !cu.held {
		next, ok := cu.Seqs.Select()
		switch {
		case !ok && !cu.runnable:
			err = ErrLimbo
			return
		case ok && next != uint8(cu.Regs.K) || cu.Regs.K < 0:
			if !ok {
				// Flagless but runnable: carry on as we are.
				break
			}
			cu.changeSequence(next)
		}
	}
	if cu.Regs.K < 0 {
		err = ErrLimbo
		return
	}
	cyc.Seq = uint8(cu.Regs.K)

	// Fetch the instruction and advance the counter.
	at := word.NewAddress(cu.Regs.P.Physical())
	cyc.At = at
	w, rerr := m.Read(at)
	if rerr != nil {
		var abort bool
		abort, err = cu.fault(&cyc, PSAL, 0, at)
		if err != nil || abort {
			// A caught fetch fault dismisses the sequence; retrying
			// the same counter could never progress.
			cu.dismiss()
			cu.held = false
			return
		}
	}
	cu.Regs.P = cu.Regs.P.Successor()
	cyc.Word = w

	inst := word.Decode(w)
	if !Op(inst.Op).Defined() {
		var abort bool
		abort, err = cu.fault(&cyc, OCSAL, w, at)
		if err != nil || abort {
			cu.dismiss()
			cu.held = false
			return
		}
	}
	cu.held = inst.Held

	if cu.Verbose {
		log.Printf("cpu: %02o %v: %v %v", cyc.Seq, at, Op(inst.Op), inst)
	}

	err = cu.execute(m, &cyc, inst)
	return
}

// resolveOperand runs deferred address cycles in the N register, then
// applies the index register when the instruction's j field selects
// one. The final physical address is recorded in Q.
func (cu *ControlUnit) resolveOperand(m *mem.Memory, cyc *Cycle, inst *word.Instruction, indexed bool) (addr word.Address, abort bool, err error) {
	nw := inst.Encode()
	for inst.Defer {
		w, rerr := m.Read(inst.Operand())
		if rerr != nil {
			abort, err = cu.fault(cyc, QSAL, nw, inst.Operand())
			return
		}
		// The fetched right half replaces the right half of N; its
		// own defer bit decides whether the chain continues.
		nw = word.JoinHalves(nw.LeftHalf(), w.RightHalf())
		*inst = word.Decode(nw)
	}
	cyc.Inst = *inst

	if indexed {
		addr = inst.Operand().IndexBy(cu.Regs.Index(inst.J))
	} else {
		addr = word.NewAddress(inst.Operand().Physical())
	}
	cu.Regs.Q = addr
	return
}

// readOperand fetches the word at addr through the QSAL policy.
func (cu *ControlUnit) readOperand(m *mem.Memory, cyc *Cycle, addr word.Address) (w word.Word, abort bool, err error) {
	w, rerr := m.Read(addr)
	if rerr != nil {
		abort, err = cu.fault(cyc, QSAL, cyc.Word, addr)
	}
	return
}

// writeOperand stores through the exchange configuration: active
// quarters from value, the rest kept from core.
func (cu *ControlUnit) writeOperand(m *mem.Memory, cyc *Cycle, addr word.Address, cfg word.Configuration, value word.Word) (abort bool, err error) {
	existing, abort, err := cu.readOperand(m, cyc, addr)
	if abort || err != nil {
		return
	}
	if werr := m.Write(addr, cfg.Merge(value, existing)); werr != nil {
		abort, err = cu.fault(cyc, QSAL, cyc.Word, addr)
	}
	return
}

// skip jumps the program counter over the next word.
func (cu *ControlUnit) skip(cyc *Cycle) {
	cu.Regs.P = cu.Regs.P.Successor()
	cyc.Skip = true
}

// jump transfers control, preserving the mark bit of P.
func (cu *ControlUnit) jump(cyc *Cycle, target word.Address) {
	cu.Regs.P = word.NewAddress(target.Physical()).WithMark(cu.Regs.P.Mark())
	cyc.Jump = true
}

// shiftCount interprets the 17-bit operand address field as a signed
// cycle count: positive rotates left, negative right.
func shiftCount(addr word.Address) int {
	p := int(addr.Physical())
	if p >= 1<<(word.AddrBits-1) {
		p -= 1 << word.AddrBits
	}
	return p
}

// execute dispatches one decoded instruction.
func (cu *ControlUnit) execute(m *mem.Memory, cyc *Cycle, inst word.Instruction) (err error) {
	cyc.Inst = inst
	cfg := cu.Regs.Config(inst.Cfg)
	regs := &cu.Regs

	// Operand resolution happens per class below; control operations
	// like HLT and IOS use the raw address field and must not fault on
	// it.
	switch Op(inst.Op) {
	case OpHLT:
		cu.dismiss()
		err = ErrHalted
		return

	case OpIOS:
		return cu.executeIOS(cyc, inst)
	}

	// For the index, bit, configuration, and unit classes the j field
	// names the register operand rather than an index, so the operand
	// address is taken as written.
	indexed := true
	switch Op(inst.Op) {
	case OpAUX, OpRSX, OpDPX, OpSKX, OpSKM,
		OpJPX, OpJNX, OpSPF, OpSPG, OpTSD:
		indexed = false
	}

	addr, abort, err := cu.resolveOperand(m, cyc, &inst, indexed)
	if abort || err != nil {
		return
	}

	switch Op(inst.Op) {
	case OpJMP:
		cu.jump(cyc, addr)

	case OpJPX:
		x := regs.Index(inst.J)
		if !x.IsNegative() && x.Signed() != 0 {
			regs.SetIndex(inst.J, x.Sub(word.XFromSigned(1)))
			cu.jump(cyc, addr)
		}

	case OpJNX:
		x := regs.Index(inst.J)
		if x.IsNegative() {
			regs.SetIndex(inst.J, x.Add(word.XFromSigned(1)))
			cu.jump(cyc, addr)
		}

	case OpJOV:
		if regs.Overflow {
			cu.jump(cyc, addr)
		}
		regs.Overflow = false

	case OpJPA:
		if !regs.A.IsNegative() {
			cu.jump(cyc, addr)
		}

	case OpJNA:
		if regs.A.IsNegative() {
			cu.jump(cyc, addr)
		}

	case OpAUX:
		w, abort, rerr := cu.readOperand(m, cyc, addr)
		if abort || rerr != nil {
			return rerr
		}
		regs.SetIndex(inst.J, regs.Index(inst.J).Add(word.Xword(w.RightHalf())))

	case OpRSX:
		w, abort, rerr := cu.readOperand(m, cyc, addr)
		if abort || rerr != nil {
			return rerr
		}
		regs.SetIndex(inst.J, word.Xword(w.RightHalf()))

	case OpDPX:
		// Deposit the index value, sign extended to a full word, into
		// the active quarters.
		x := regs.Index(inst.J)
		left := word.Word(0)
		if x.IsNegative() {
			left = word.HalfMask
		}
		value := word.JoinHalves(left, word.Word(x))
		abort, werr := cu.writeOperand(m, cyc, addr, cfg, value)
		if abort || werr != nil {
			return werr
		}

	case OpSKX:
		cu.executeSKX(cyc, inst, addr)

	case OpSKM:
		return cu.executeSKM(m, cyc, inst, addr, cfg)

	case OpLDA, OpLDB, OpLDC, OpLDD, OpLDE:
		w, abort, rerr := cu.readOperand(m, cyc, addr)
		if abort || rerr != nil {
			return rerr
		}
		value := cfg.Extract(w)
		switch Op(inst.Op) {
		case OpLDA:
			regs.A = value
		case OpLDB:
			regs.B = value
		case OpLDC:
			regs.C = value
		case OpLDD:
			regs.D = value
		case OpLDE:
			regs.E = value
		}

	case OpSTA, OpSTB, OpSTC, OpSTD, OpSTE:
		var value word.Word
		switch Op(inst.Op) {
		case OpSTA:
			value = regs.A
		case OpSTB:
			value = regs.B
		case OpSTC:
			value = regs.C
		case OpSTD:
			value = regs.D
		case OpSTE:
			value = regs.E
		}
		abort, werr := cu.writeOperand(m, cyc, addr, cfg, value)
		if abort || werr != nil {
			return werr
		}

	case OpSPF:
		abort, werr := cu.writeOperand(m, cyc, addr, word.FullWord,
			regs.Config(inst.J&0o37).Bits())
		if abort || werr != nil {
			return werr
		}

	case OpSPG:
		w, abort, rerr := cu.readOperand(m, cyc, addr)
		if abort || rerr != nil {
			return rerr
		}
		regs.SetConfig(inst.J&0o37, word.ConfigFromBits(w))

	case OpADD, OpSUB, OpTLY:
		w, abort, rerr := cu.readOperand(m, cyc, addr)
		if abort || rerr != nil {
			return rerr
		}
		operand := cfg.Extract(w)

		var sum word.Word
		var out ae.Outcome
		switch Op(inst.Op) {
		case OpADD:
			sum, out = ae.Add(regs.A, operand)
		case OpSUB:
			sum, out = ae.Sub(regs.A, operand)
		case OpTLY:
			sum, out = ae.Add(regs.A, word.FromSigned(int64(ae.Tally(operand))))
		}
		if out.Overflow {
			abort, aerr := cu.fault(cyc, AOVAL, cyc.Word, addr)
			if abort || aerr != nil {
				return aerr
			}
		}
		regs.A = sum

	case OpMUL:
		w, abort, rerr := cu.readOperand(m, cyc, addr)
		if abort || rerr != nil {
			return rerr
		}
		regs.A, regs.B, _ = ae.Mul(regs.A, cfg.Extract(w))

	case OpDIV:
		w, abort, rerr := cu.readOperand(m, cyc, addr)
		if abort || rerr != nil {
			return rerr
		}
		quot, rem, out := ae.Div(regs.A, cfg.Extract(w))
		if out.Overflow {
			abort, aerr := cu.fault(cyc, DIVAL, cyc.Word, addr)
			if abort || aerr != nil {
				return aerr
			}
			// A masked divide fault leaves A and B alone.
			return
		}
		regs.A, regs.B = quot, rem

	case OpITA, OpUNA:
		w, abort, rerr := cu.readOperand(m, cyc, addr)
		if abort || rerr != nil {
			return rerr
		}
		operand := cfg.Extract(w)
		if Op(inst.Op) == OpITA {
			regs.A, _ = ae.And(regs.A, operand)
		} else {
			regs.A, _ = ae.Or(regs.A, operand)
		}

	case OpSED:
		w, abort, rerr := cu.readOperand(m, cyc, addr)
		if abort || rerr != nil {
			return rerr
		}
		diff, _ := ae.Xor(cfg.Extract(regs.E), cfg.Extract(w))
		if !diff.IsZero() {
			cu.skip(cyc)
		}

	case OpCYA:
		regs.A, _ = ae.Cycle(regs.A, shiftCount(addr))

	case OpCYB:
		regs.B, _ = ae.Cycle(regs.B, shiftCount(addr))

	case OpTSD:
		return cu.executeTSD(m, cyc, inst, addr, cfg)

	default:
		// Defined() let it through; dispatch must agree.
		panic(f("cpu: defined operation %v not dispatched", Op(inst.Op)))
	}

	return
}

// IOS subfunctions, selected by the top five bits of the operand
// address field.
const (
	iosDisconnect = 0o2 // disconnect unit j
	iosConnect    = 0o3 // connect unit j
	iosLowerFlag  = 0o4 // lower flag j
	iosRaiseFlag  = 0o5 // raise flag j
	iosSetRank    = 0o6 // set rank of sequence j from the low bits
)

// executeIOS handles flag and unit control. Lowering the current
// sequence's own flag does not stop it: it keeps running until some
// other flag is raised.
func (cu *ControlUnit) executeIOS(cyc *Cycle, inst word.Instruction) (err error) {
	fn := inst.Addr >> 12
	switch fn {
	case iosDisconnect:
		if unit := cu.units[inst.J]; unit != nil {
			unit.Disconnect()
		}
	case iosConnect:
		if unit := cu.units[inst.J]; unit != nil {
			unit.Connect()
		}
	case iosLowerFlag:
		cu.Seqs.Lower(inst.J)
		// The current sequence stays runnable with its flag down.
	case iosRaiseFlag:
		cu.Seqs.Raise(inst.J)
	case iosSetRank:
		cu.Seqs.SetRank(inst.J, int(inst.Addr&0o77))
	default:
		abort, aerr := cu.fault(cyc, IOSAL, cyc.Word, inst.Operand())
		_ = abort
		return aerr
	}
	return
}

// SKX subfunctions, selected by the configuration field.
const (
	skxLoad    = 0 // Xj = address field
	skxAugment = 1 // Xj += address field
	skxSkipEq  = 2 // skip when Xj equals the address field
	skxSkipNe  = 3 // skip when Xj differs
)

func (cu *ControlUnit) executeSKX(cyc *Cycle, inst word.Instruction, addr word.Address) {
	value := word.Xword(addr.Physical())
	x := cu.Regs.Index(inst.J)

	switch inst.Cfg & 0o3 {
	case skxLoad:
		cu.Regs.SetIndex(inst.J, value)
	case skxAugment:
		cu.Regs.SetIndex(inst.J, x.Add(value))
	case skxSkipEq:
		if x.Signed() == value.Signed() {
			cu.skip(cyc)
		}
	case skxSkipNe:
		if x.Signed() != value.Signed() {
			cu.skip(cyc)
		}
	}
}

// SKM field packing: the low two configuration bits select the skip
// test, the next two the bit modification applied after the test.
const (
	skmTestNever  = 0
	skmTestSet    = 1
	skmTestClear  = 2
	skmTestAlways = 3

	skmModifyNone       = 0
	skmModifySet        = 1
	skmModifyClear      = 2
	skmModifyComplement = 3
)

func (cu *ControlUnit) executeSKM(m *mem.Memory, cyc *Cycle, inst word.Instruction, addr word.Address, cfg word.Configuration) (err error) {
	w, abort, rerr := cu.readOperand(m, cyc, addr)
	if abort || rerr != nil {
		return rerr
	}

	bit := word.Word(1) << (int(inst.J) % word.Bits)
	set := w&bit != 0

	switch inst.Cfg & 0o3 {
	case skmTestSet:
		if set {
			cu.skip(cyc)
		}
	case skmTestClear:
		if !set {
			cu.skip(cyc)
		}
	case skmTestAlways:
		cu.skip(cyc)
	}

	switch inst.Cfg >> 2 & 0o3 {
	case skmModifySet:
		w |= bit
	case skmModifyClear:
		w &^= bit
	case skmModifyComplement:
		w ^= bit
	default:
		return
	}
	abort, err = cu.writeOperand(m, cyc, addr, word.FullWord, w)
	_ = abort
	return
}

// executeTSD moves one word between the sequence's unit and core. End
// of medium dismisses the sequence; a sequence without a unit is an
// in-out misuse alarm.
func (cu *ControlUnit) executeTSD(m *mem.Memory, cyc *Cycle, inst word.Instruction, addr word.Address, cfg word.Configuration) (err error) {
	unit := cu.units[inst.J]
	if unit == nil {
		abort, aerr := cu.fault(cyc, IOSAL, cyc.Word, addr)
		_ = abort
		return aerr
	}

	w, abort, rerr := cu.readOperand(m, cyc, addr)
	if abort || rerr != nil {
		return rerr
	}

	wrote, done := unit.Transfer(&w)
	if done {
		cu.dismiss()
		return
	}
	if wrote {
		abort, err = cu.writeOperand(m, cyc, addr, cfg, w)
		_ = abort
	}
	return
}
