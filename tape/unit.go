package tape

import (
	"io"

	"github.com/ezrec/tx2/cpu"
	"github.com/ezrec/tx2/word"
)

// ReaderUnit is the photoelectric tape reader: an input unit that
// yields the words of a mounted tape one TSD at a time.
type ReaderUnit struct {
	s         scanner
	connected bool
	err       error
}

var _ cpu.Unit = (*ReaderUnit)(nil)

// NewReaderUnit mounts a raw tape on the reader.
func NewReaderUnit(r io.Reader) (u *ReaderUnit, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return
	}
	u = &ReaderUnit{s: scanner{data: data}}
	return
}

// MountImage mounts an assembled image, as if it had been punched and
// threaded.
func MountImage(img *Image) (u *ReaderUnit) {
	u = &ReaderUnit{}
	for _, w := range img.Words() {
		fr := frames(w)
		u.s.data = append(u.s.data, fr[:]...)
	}
	return
}

func (u *ReaderUnit) Connect()    { u.connected = true }
func (u *ReaderUnit) Disconnect() { u.connected = false }

// Err returns the tape fault that stopped the reader, if any.
func (u *ReaderUnit) Err() error {
	if u.err == ErrEndOfTape {
		return nil
	}
	return u.err
}

// Transfer reads the next word from the tape. Running off the end, a
// torn frame, or a disconnected unit reports done, which dismisses
// the reader's sequence.
func (u *ReaderUnit) Transfer(w *word.Word) (wrote bool, done bool) {
	if !u.connected || u.err != nil {
		done = true
		return
	}
	next, err := u.s.next()
	if err != nil {
		u.err = err
		done = true
		return
	}
	*w = next
	wrote = true
	return
}

// PunchUnit is the tape punch: an output unit that punches each TSD
// word as six frames.
type PunchUnit struct {
	w         io.Writer
	leader    bool
	connected bool
	err       error
}

var _ cpu.Unit = (*PunchUnit)(nil)

// NewPunchUnit threads blank tape into the punch, writing frames to
// w.
func NewPunchUnit(w io.Writer) *PunchUnit {
	return &PunchUnit{w: w}
}

func (u *PunchUnit) Connect()    { u.connected = true }
func (u *PunchUnit) Disconnect() { u.connected = false }

// Err returns the write fault that stopped the punch, if any.
func (u *PunchUnit) Err() error { return u.err }

// Transfer punches one word. The first word is preceded by a blank
// leader.
func (u *PunchUnit) Transfer(w *word.Word) (wrote bool, done bool) {
	if !u.connected || u.err != nil {
		done = true
		return
	}
	if !u.leader {
		if _, err := u.w.Write(make([]byte, leaderFrames)); err != nil {
			u.err = err
			done = true
			return
		}
		u.leader = true
	}
	fr := frames(*w)
	if _, err := u.w.Write(fr[:]); err != nil {
		u.err = err
		done = true
	}
	return
}
