// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package emulator wires the control unit, core memory, and tape
// units into a whole machine.
package emulator

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"

	"github.com/ezrec/tx2/cpu"
	"github.com/ezrec/tx2/internal"
	"github.com/ezrec/tx2/mem"
	"github.com/ezrec/tx2/tape"
	"github.com/ezrec/tx2/word"
)

var _emulator_defines = map[string]string{
	"CORE_SIZE": fmt.Sprintf("%#o", mem.DefaultSize),
}

// Emulator state: control unit, core, and the tape units.
type Emulator struct {
	Verbose          bool // If set, enables verbose logging.
	*cpu.ControlUnit      // The control and arithmetic elements.
	Core             *mem.Memory

	Reader *tape.ReaderUnit // Mounted input tape, if any.
	Punch  *tape.PunchUnit  // Threaded output tape, if any.

	// MaxCycles bounds Run; zero means no bound.
	MaxCycles int

	// Trace, when set, receives every executed cycle.
	Trace func(cpu.Cycle)

	Cycles int            // Cycles executed since New.
	Halt   cpu.HaltReason // Why the machine stopped.
	Alarm  *cpu.Alarm     // The fatal alarm, when Halt is an alarm.
}

// New creates a machine with a full core and nothing mounted.
func New() (emu *Emulator) {
	emu = &Emulator{
		ControlUnit: cpu.NewControlUnit(),
		Core:        mem.New(mem.DefaultSize),
	}
	return
}

// Defines returns an iterator over all of the assembler equates the
// machine publishes.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.ControlUnit.Defines(),
		emu.Core.Defines(),
	)
}

// Mount threads an input tape image into the reader unit on the
// reader sequence.
func (emu *Emulator) Mount(img *tape.Image) {
	emu.Reader = tape.MountImage(img)
	emu.SetUnit(cpu.SeqReader, emu.Reader)
}

// MountTape threads a raw punched tape into the reader unit.
func (emu *Emulator) MountTape(r io.Reader) (err error) {
	emu.Reader, err = tape.NewReaderUnit(r)
	if err != nil {
		return
	}
	emu.SetUnit(cpu.SeqReader, emu.Reader)
	return
}

// ThreadPunch threads blank tape into the punch unit on the punch
// sequence, writing frames to w.
func (emu *Emulator) ThreadPunch(w io.Writer) {
	emu.Punch = tape.NewPunchUnit(w)
	emu.SetUnit(cpu.SeqPunch, emu.Punch)
}

// Boot performs the standard read-in: the image's blocks go into
// core, and the reader sequence starts at the entry address.
func (emu *Emulator) Boot(img *tape.Image) (err error) {
	entry, err := img.Load(emu.Core)
	if err != nil {
		return
	}
	emu.ControlUnit.Verbose = emu.Verbose
	emu.ControlUnit.Boot(cpu.SeqReader, entry)
	emu.Halt = cpu.HaltNone
	emu.Alarm = nil
	return
}

// Step executes one machine cycle. done reports that the machine has
// stopped, with the reason in Halt; err is set only for fatal alarms.
func (emu *Emulator) Step() (done bool, err error) {
	if emu.Halt != cpu.HaltNone {
		done = true
		err = cpu.ErrNotRunning
		return
	}
	emu.ControlUnit.Verbose = emu.Verbose

	cyc, err := emu.ControlUnit.Step(emu.Core)
	emu.Cycles++

	switch {
	case err == nil:
		if emu.Trace != nil {
			emu.Trace(cyc)
		}
		return

	case errors.Is(err, cpu.ErrHalted):
		emu.Halt = cpu.HaltExplicit
		done = true
		err = nil
		if emu.Trace != nil {
			emu.Trace(cyc)
		}
		return

	case errors.Is(err, cpu.ErrLimbo):
		emu.Halt = cpu.HaltLimbo
		done = true
		err = nil
		return
	}

	var alarm *cpu.Alarm
	if errors.As(err, &alarm) {
		emu.Halt = alarm.Kind.HaltReason()
		emu.Alarm = alarm
	}
	done = true
	err = &ErrRuntime{Cycle: emu.Cycles, At: cyc.At, Err: err}
	return
}

// Run steps the machine until it stops, returning why.
func (emu *Emulator) Run() (halt cpu.HaltReason, err error) {
	start := emu.Cycles
	for {
		var done bool
		if done, err = emu.Step(); done || err != nil {
			halt = emu.Halt
			return
		}
		if emu.MaxCycles > 0 && emu.Cycles-start >= emu.MaxCycles {
			err = &ErrRuntime{Cycle: emu.Cycles, At: emu.Regs.P, Err: ErrCycleLimit}
			return
		}
	}
}

// Peek inspects core without faulting.
func (emu *Emulator) Peek(addr uint32) word.Word {
	return emu.Core.Peek(word.NewAddress(addr))
}
