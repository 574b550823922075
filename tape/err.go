package tape

import (
	"errors"

	"github.com/ezrec/tx2/translate"
	"github.com/ezrec/tx2/word"
)

var f = translate.From

var (
	// ErrEndOfTape is returned when the read head runs off the end of
	// the punched region.
	ErrEndOfTape = errors.New(f("end of tape"))

	// ErrNoEntry is returned by Load when the image has no entry
	// block.
	ErrNoEntry = errors.New(f("tape image has no entry block"))
)

// FrameError is a malformed frame: a byte with data holes punched but
// no sync hole.
type FrameError struct {
	Offset int  // byte offset on the tape
	Frame  byte // offending frame
}

func (e *FrameError) Error() string {
	return f("bad frame %#o at tape offset %v", e.Frame, e.Offset)
}

func (e *FrameError) Is(err error) (ok bool) {
	_, ok = err.(*FrameError)
	return
}

// ChecksumError reports a block whose words do not sum to zero.
type ChecksumError struct {
	Base word.Address // load address of the bad block
	Sum  word.Word    // the nonzero sum
}

func (e *ChecksumError) Error() string {
	return f("tape block at %v fails checksum (sum %v)", e.Base, e.Sum)
}

func (e *ChecksumError) Is(err error) (ok bool) {
	_, ok = err.(*ChecksumError)
	return
}
