package emulator

import (
	"errors"

	"github.com/ezrec/tx2/translate"
	"github.com/ezrec/tx2/word"
)

var f = translate.From

// ErrCycleLimit is returned by Run when MaxCycles elapse without the
// machine halting.
var ErrCycleLimit = errors.New(f("cycle limit exceeded"))

// ErrRuntime wraps a fatal machine condition with where it happened.
type ErrRuntime struct {
	Cycle int
	At    word.Address
	Err   error
}

func (err *ErrRuntime) Error() string {
	return f("cycle %v at %v: %v", err.Cycle, err.At, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
