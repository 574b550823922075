package cpu

import (
	"errors"

	"github.com/ezrec/tx2/translate"
)

var f = translate.From

var (
	// ErrHalted is returned by Step when a HLT instruction executes.
	ErrHalted = errors.New(f("halted"))

	// ErrLimbo is returned by Step when no sequence is runnable. It is
	// a terminal condition, distinct from an alarm.
	ErrLimbo = errors.New(f("no runnable sequence"))

	// ErrNotRunning is returned when Step is called after the machine
	// has already halted.
	ErrNotRunning = errors.New(f("machine not running"))
)
