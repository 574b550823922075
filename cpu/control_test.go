package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/tx2/mem"
	"github.com/ezrec/tx2/word"
)

func code(o Op, j uint8, addr uint32) word.Word {
	return word.Instruction{Op: uint8(o), J: j, Addr: addr}.Encode()
}

func load(t *testing.T, m *mem.Memory, base uint32, words ...word.Word) {
	t.Helper()
	err := m.LoadBlock(word.NewAddress(base), words)
	assert.NoError(t, err)
}

func TestBootAndHalt(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100, code(OpHLT, 0, 0))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	cyc, err := cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(SeqStartover, cyc.Seq)
	assert.Equal(word.NewAddress(0o100), cyc.At)

	_, err = cu.Step(m)
	assert.ErrorIs(err, ErrLimbo)
}

func TestLimboFromPowerOn(t *testing.T) {
	assert := assert.New(t)

	cu := NewControlUnit()
	_, err := cu.Step(mem.New(mem.DefaultSize))
	assert.ErrorIs(err, ErrLimbo)
}

func TestLoadAddStore(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpLDA, 0, 0o200),
		code(OpADD, 0, 0o201),
		code(OpSTA, 0, 0o202),
		code(OpHLT, 0, 0))
	load(t, m, 0o200, word.FromSigned(10), word.FromSigned(-3))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	for {
		_, err := cu.Step(m)
		if err != nil {
			assert.ErrorIs(err, ErrHalted)
			break
		}
	}

	assert.Equal(int64(7), cu.Regs.A.Signed())
	assert.Equal(int64(7), m.Peek(word.NewAddress(0o202)).Signed())
	assert.Equal(word.NewAddress(0o202), cu.Regs.Q)
}

func TestIllegalOpcodeAlarm(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100, word.Instruction{Op: 0o02}.Encode())
	cu.Boot(SeqStartover, word.NewAddress(0o100))
	before := m.Snapshot()

	_, err := cu.Step(m)
	var alarm *Alarm
	assert.ErrorAs(err, &alarm)
	assert.Equal(OCSAL, alarm.Kind)
	assert.Equal(word.NewAddress(0o100), alarm.At)
	assert.Equal(before, m.Snapshot())
}

func TestTrappedOpcodeAlarm(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()
	cu.Alarms.Policy[OCSAL] = PolicyTrap

	load(t, m, 0o100, word.Instruction{Op: 0o02}.Encode())
	load(t, m, 0o300, code(OpHLT, 0, 0))
	cu.Regs.SetIndex(SeqTrap, word.NewAddress(0o300).Xword())
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	cyc, err := cu.Step(m)
	assert.NoError(err)
	if assert.NotNil(cyc.Trapped) {
		assert.Equal(OCSAL, cyc.Trapped.Kind)
	}

	cyc, err = cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(SeqTrap, cyc.Seq)
	assert.Equal(word.NewAddress(0o300), cyc.At)
}

func TestTrapOnChangeSequence(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()
	cu.TrapOnChangeSequence = true

	load(t, m, 0o200, code(OpSTA, 0, 0o400))
	load(t, m, 0o300, code(OpHLT, 0, 0))
	cu.Regs.SetIndex(SeqTrap, word.NewAddress(0o300).Xword())

	// The reader sequence's placeholder carries the mark bit, so
	// taking it up diverts control into the trap sequence instead.
	cu.Regs.A = word.FromSigned(7)
	cu.Boot(SeqReader, word.NewAddress(0o200).WithMark(true))

	cyc, err := cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(SeqTrap, cyc.Seq)
	assert.Equal(word.NewAddress(0o300), cyc.At)

	// The marked sequence never executed its store.
	assert.True(m.Peek(word.NewAddress(0o400)).IsZero())
	assert.True(cu.Seqs.Raised(SeqReader))
}

func TestOperandAddressAlarm(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(0o1000)
	cu := NewControlUnit()

	load(t, m, 0o100, code(OpLDA, 0, 0o777))
	load(t, m, 0o777, word.FromSigned(1))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(int64(1), cu.Regs.A.Signed())

	// One past the end of core.
	load(t, m, 0o101, code(OpLDA, 0, 0o1000))
	var alarm *Alarm
	_, err = cu.Step(m)
	assert.ErrorAs(err, &alarm)
	assert.Equal(QSAL, alarm.Kind)
	assert.Equal(word.NewAddress(0o1000), alarm.Addr)
}

func TestFetchAddressAlarm(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(0o200)
	cu := NewControlUnit()
	cu.Boot(SeqStartover, word.NewAddress(0o500))

	var alarm *Alarm
	_, err := cu.Step(m)
	assert.ErrorAs(err, &alarm)
	assert.Equal(PSAL, alarm.Kind)
}

func TestOverflowMaskedAndJOV(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpLDA, 0, 0o200),
		code(OpADD, 0, 0o201),
		code(OpJOV, 0, 0o104),
		code(OpHLT, 0, 0),
		code(OpHLT, 0, 0))
	load(t, m, 0o200, word.FromSigned(word.MaxSigned), word.FromSigned(1))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	_, err = cu.Step(m)
	assert.NoError(err)
	assert.True(cu.Regs.Overflow)
	assert.Equal(int64(word.MinSigned), cu.Regs.A.Signed())

	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.True(cyc.Jump)
	assert.False(cu.Regs.Overflow)

	cyc, err = cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(word.NewAddress(0o104), cyc.At)
}

func TestOverflowFatal(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()
	cu.Alarms.Policy[AOVAL] = PolicyFatal

	load(t, m, 0o100,
		code(OpLDA, 0, 0o200),
		code(OpADD, 0, 0o200))
	load(t, m, 0o200, word.FromSigned(word.MaxSigned))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)

	var alarm *Alarm
	_, err = cu.Step(m)
	assert.ErrorAs(err, &alarm)
	assert.Equal(AOVAL, alarm.Kind)
}

func TestDivideFault(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpLDA, 0, 0o200),
		code(OpDIV, 0, 0o201))
	load(t, m, 0o200, word.FromSigned(42), word.FromSigned(0))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)

	var alarm *Alarm
	_, err = cu.Step(m)
	assert.ErrorAs(err, &alarm)
	assert.Equal(DIVAL, alarm.Kind)
	// A untouched by the faulting divide.
	assert.Equal(int64(42), cu.Regs.A.Signed())
}

func TestMulDiv(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpLDA, 0, 0o200),
		code(OpMUL, 0, 0o201),
		code(OpLDA, 0, 0o202),
		code(OpDIV, 0, 0o203),
		code(OpHLT, 0, 0))
	load(t, m, 0o200,
		word.FromSigned(1234), word.FromSigned(-5),
		word.FromSigned(100), word.FromSigned(7))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	_, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(int64(-6170), cu.Regs.B.Signed())

	_, err = cu.Step(m)
	assert.NoError(err)
	_, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(int64(14), cu.Regs.A.Signed())
	assert.Equal(int64(2), cu.Regs.B.Signed())
}

func TestDeferredAddressing(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		word.Instruction{Op: uint8(OpLDA), Defer: true, Addr: 0o200}.Encode(),
		code(OpHLT, 0, 0))
	load(t, m, 0o200, word.New(0o300)) // right half: final address, defer clear
	load(t, m, 0o300, word.FromSigned(-77))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(int64(-77), cu.Regs.A.Signed())
	assert.Equal(word.NewAddress(0o300), cu.Regs.Q)
	assert.False(cyc.Inst.Defer)
	assert.Equal(uint32(0o300), cyc.Inst.Addr)
}

func TestDeferredChain(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	// 0o200 defers again through 0o210 before landing on 0o300.
	load(t, m, 0o100,
		word.Instruction{Op: uint8(OpLDA), Defer: true, Addr: 0o200}.Encode())
	load(t, m, 0o200, word.New(1<<17|0o210))
	load(t, m, 0o210, word.New(0o300))
	load(t, m, 0o300, word.FromSigned(5))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(int64(5), cu.Regs.A.Signed())
}

func TestIndexedOperand(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpRSX, 1, 0o210),
		code(OpLDA, 1, 0o200),
		code(OpHLT, 0, 0))
	load(t, m, 0o203, word.FromSigned(99))
	load(t, m, 0o210, word.New(3)) // right half loads X1
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(int32(3), cu.Regs.Index(1).Signed())

	_, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(int64(99), cu.Regs.A.Signed())
	assert.Equal(word.NewAddress(0o203), cu.Regs.Q)
}

func TestJPXCountdown(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpJPX, 1, 0o100),
		code(OpHLT, 0, 0))
	cu.Regs.SetIndex(1, word.XFromSigned(2))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.True(cyc.Jump)
	assert.Equal(int32(1), cu.Regs.Index(1).Signed())

	cyc, err = cu.Step(m)
	assert.NoError(err)
	assert.True(cyc.Jump)
	assert.Equal(int32(0), cu.Regs.Index(1).Signed())

	cyc, err = cu.Step(m)
	assert.NoError(err)
	assert.False(cyc.Jump)

	cyc, err = cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(word.NewAddress(0o101), cyc.At)
}

func TestJNXCountup(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100, code(OpJNX, 1, 0o100))
	cu.Regs.SetIndex(1, word.XFromSigned(-2))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.True(cyc.Jump)
	assert.Equal(int32(-1), cu.Regs.Index(1).Signed())

	_, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(int32(0), cu.Regs.Index(1).Signed())

	cyc, err = cu.Step(m)
	assert.NoError(err)
	assert.False(cyc.Jump)
}

func TestDPXDeposit(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	// Configuration 1 is the right-half configuration: only the low
	// half of the target changes.
	load(t, m, 0o100,
		word.Instruction{Op: uint8(OpDPX), Cfg: 1, J: 2, Addr: 0o200}.Encode())
	load(t, m, 0o200, word.JoinHalves(0o123456, 0))
	cu.Regs.SetIndex(2, word.XFromSigned(-5))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(word.JoinHalves(0o123456, word.Word(word.XFromSigned(-5))),
		m.Peek(word.NewAddress(0o200)))
}

func TestAUX(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100, code(OpAUX, 3, 0o200))
	load(t, m, 0o200, word.New(0o10))
	cu.Regs.SetIndex(3, word.XFromSigned(7))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(int32(15), cu.Regs.Index(3).Signed())
}

func TestSKX(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		word.Instruction{Op: uint8(OpSKX), Cfg: skxLoad, J: 1, Addr: 5}.Encode(),
		word.Instruction{Op: uint8(OpSKX), Cfg: skxAugment, J: 1, Addr: 2}.Encode(),
		word.Instruction{Op: uint8(OpSKX), Cfg: skxSkipEq, J: 1, Addr: 7}.Encode(),
		code(OpHLT, 0, 0), // skipped
		word.Instruction{Op: uint8(OpSKX), Cfg: skxSkipNe, J: 1, Addr: 7}.Encode(),
		code(OpHLT, 0, 0))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(int32(5), cu.Regs.Index(1).Signed())

	_, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(int32(7), cu.Regs.Index(1).Signed())

	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.True(cyc.Skip)

	cyc, err = cu.Step(m)
	assert.NoError(err)
	assert.False(cyc.Skip)

	cyc, err = cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(word.NewAddress(0o105), cyc.At)
}

func TestSKMTestAndModify(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	// Test bit 3 (set: skip) and complement it.
	skm := word.Instruction{
		Op:   uint8(OpSKM),
		Cfg:  skmModifyComplement<<2 | skmTestSet,
		J:    3,
		Addr: 0o200,
	}
	load(t, m, 0o100, skm.Encode(), code(OpHLT, 0, 0), skm.Encode())
	load(t, m, 0o200, word.New(0o10))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.True(cyc.Skip)
	assert.True(m.Peek(word.NewAddress(0o200)).IsZero())

	// Bit now clear: no skip, bit set again.
	cyc, err = cu.Step(m)
	assert.NoError(err)
	assert.False(cyc.Skip)
	assert.Equal(word.New(0o10), m.Peek(word.NewAddress(0o200)))
}

func TestSPFSPG(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpSPG, 5, 0o200), // load F5 from core
		code(OpSPF, 5, 0o201)) // store it back
	load(t, m, 0o200, word.StandardConfigs[2].Bits())
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(word.StandardConfigs[2], cu.Regs.Config(5))

	_, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(word.StandardConfigs[2].Bits(), m.Peek(word.NewAddress(0o201)))
}

func TestExchangeConfiguredLoad(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	// Configuration 1 extracts the right half.
	load(t, m, 0o100,
		word.Instruction{Op: uint8(OpLDA), Cfg: 1, Addr: 0o200}.Encode())
	load(t, m, 0o200, word.JoinHalves(0o707070, 0o001234))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(word.New(0o001234), cu.Regs.A)
}

func TestLogicAndCycle(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpLDA, 0, 0o200),
		code(OpITA, 0, 0o201),
		code(OpUNA, 0, 0o202),
		code(OpCYA, 0, 3),
		code(OpTLY, 0, 0o203))
	load(t, m, 0o200,
		word.New(0o707070),
		word.New(0o700070),
		word.New(0o000007),
		word.New(0o7)) // three ones
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	_, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(word.New(0o700070), cu.Regs.A)

	_, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(word.New(0o700077), cu.Regs.A)

	_, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(word.New(0o7000770), cu.Regs.A)

	_, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(word.New(0o7000773), cu.Regs.A)
}

func TestJumpTests(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpLDA, 0, 0o200),
		code(OpJNA, 0, 0o110), // taken: A negative
		code(OpHLT, 0, 0))
	load(t, m, 0o110,
		code(OpJPA, 0, 0o120), // not taken
		code(OpHLT, 0, 0))
	load(t, m, 0o200, word.FromSigned(-1))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)

	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.True(cyc.Jump)

	cyc, err = cu.Step(m)
	assert.NoError(err)
	assert.False(cyc.Jump)

	cyc, err = cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(word.NewAddress(0o111), cyc.At)
}

func TestSED(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpLDE, 0, 0o200),
		code(OpSED, 0, 0o200), // equal: no skip
		code(OpSED, 0, 0o201)) // differs: skip
	load(t, m, 0o200, word.New(0o1234), word.New(0o4321))
	cu.Boot(SeqStartover, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)

	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.False(cyc.Skip)

	cyc, err = cu.Step(m)
	assert.NoError(err)
	assert.True(cyc.Skip)
}

func TestPreemptionAndResume(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	// Sequence 4 raises the flag of sequence 2, which outranks it.
	load(t, m, 0o100,
		code(OpIOS, 2, iosRaiseFlag<<12),
		code(OpHLT, 0, 0))
	load(t, m, 0o200, code(OpHLT, 0, 0))
	cu.Regs.SetIndex(2, word.NewAddress(0o200).Xword())
	cu.Boot(4, word.NewAddress(0o100))

	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(uint8(4), cyc.Seq)

	cyc, err = cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(uint8(2), cyc.Seq)
	assert.Equal(word.NewAddress(0o200), cyc.At)

	// The sequence-change record: from 4 to 2, counter was 0o101.
	assert.Equal(word.Word(4<<word.QuarterBits|2), cu.Regs.E.LeftHalf())
	assert.Equal(word.Word(0o101), cu.Regs.E.RightHalf())

	// Sequence 4 resumes where it left off.
	cyc, err = cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(uint8(4), cyc.Seq)
	assert.Equal(word.NewAddress(0o101), cyc.At)
}

func TestHoldSuppressesPreemption(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	held := word.Instruction{Held: true, Op: uint8(OpIOS), J: 2,
		Addr: iosRaiseFlag << 12}
	load(t, m, 0o100,
		held.Encode(),
		code(OpLDA, 0, 0o200), // still sequence 4: hold bit
		code(OpHLT, 0, 0))
	load(t, m, 0o200, word.FromSigned(1), code(OpHLT, 0, 0))
	cu.Regs.SetIndex(2, word.NewAddress(0o201).Xword())
	cu.Boot(4, word.NewAddress(0o100))

	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(uint8(4), cyc.Seq)

	cyc, err = cu.Step(m)
	assert.NoError(err)
	assert.Equal(uint8(4), cyc.Seq)
	assert.Equal(int64(1), cu.Regs.A.Signed())

	// Hold released: sequence 2 takes over.
	cyc, err = cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(uint8(2), cyc.Seq)
}

func TestLowerOwnFlagKeepsRunning(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		code(OpIOS, 4, iosLowerFlag<<12),
		code(OpLDA, 0, 0o200),
		code(OpHLT, 0, 0))
	load(t, m, 0o200, word.FromSigned(3))
	cu.Boot(4, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.False(cu.Seqs.Raised(4))

	// Flag down, but nothing else runnable: the sequence carries on.
	cyc, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(uint8(4), cyc.Seq)
	assert.Equal(int64(3), cu.Regs.A.Signed())

	_, err = cu.Step(m)
	assert.ErrorIs(err, ErrHalted)
}

func TestIOSSetRank(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100,
		word.Instruction{Op: uint8(OpIOS), J: 0o50,
			Addr: iosSetRank<<12 | 0o77}.Encode(),
		code(OpHLT, 0, 0))
	cu.Boot(4, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.Equal(0o77, cu.Seqs.Rank(0o50))
}

type stubUnit struct {
	input     []word.Word
	connected bool
}

func (u *stubUnit) Connect()    { u.connected = true }
func (u *stubUnit) Disconnect() { u.connected = false }

func (u *stubUnit) Transfer(w *word.Word) (wrote bool, done bool) {
	if len(u.input) == 0 {
		done = true
		return
	}
	*w = u.input[0]
	u.input = u.input[1:]
	wrote = true
	return
}

func TestTSDInput(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()
	unit := &stubUnit{input: []word.Word{word.New(0o111), word.New(0o222)}}
	cu.SetUnit(SeqReader, unit)

	load(t, m, 0o100,
		code(OpIOS, SeqReader, iosConnect<<12),
		code(OpTSD, SeqReader, 0o200),
		code(OpTSD, SeqReader, 0o201),
		code(OpTSD, SeqReader, 0o202)) // exhausted: dismisses
	cu.Boot(SeqReader, word.NewAddress(0o100))

	_, err := cu.Step(m)
	assert.NoError(err)
	assert.True(unit.connected)

	for n := 0; n < 3; n++ {
		_, err = cu.Step(m)
		assert.NoError(err)
	}
	assert.Equal(word.New(0o111), m.Peek(word.NewAddress(0o200)))
	assert.Equal(word.New(0o222), m.Peek(word.NewAddress(0o201)))
	assert.True(m.Peek(word.NewAddress(0o202)).IsZero())

	_, err = cu.Step(m)
	assert.ErrorIs(err, ErrLimbo)
}

func TestTSDWithoutUnit(t *testing.T) {
	assert := assert.New(t)

	m := mem.New(mem.DefaultSize)
	cu := NewControlUnit()

	load(t, m, 0o100, code(OpTSD, 0o30, 0o200))
	cu.Boot(4, word.NewAddress(0o100))

	var alarm *Alarm
	_, err := cu.Step(m)
	assert.ErrorAs(err, &alarm)
	assert.Equal(IOSAL, alarm.Kind)
}

func TestDeterministicRun(t *testing.T) {
	assert := assert.New(t)

	run := func() (word.Word, []word.Word) {
		m := mem.New(0o2000)
		cu := NewControlUnit()
		load(t, m, 0o100,
			code(OpRSX, 1, 0o300),
			code(OpLDA, 0, 0o301),
			code(OpADD, 1, 0o200),
			code(OpSTA, 1, 0o400),
			code(OpJPX, 1, 0o101),
			code(OpHLT, 0, 0))
		load(t, m, 0o200, word.FromSigned(1), word.FromSigned(2),
			word.FromSigned(3), word.FromSigned(4))
		load(t, m, 0o300, word.New(3), word.FromSigned(100))
		cu.Boot(SeqStartover, word.NewAddress(0o100))
		for {
			_, err := cu.Step(m)
			if err != nil {
				assert.ErrorIs(err, ErrHalted)
				break
			}
		}
		return cu.Regs.A, m.Snapshot()
	}

	a1, m1 := run()
	a2, m2 := run()
	assert.Equal(a1, a2)
	assert.Equal(m1, m2)
}
