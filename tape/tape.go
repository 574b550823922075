// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package tape implements the punched paper tape format: the
// interchange medium for program images and the data format of the
// reader and punch units.
//
// A frame is one tape row: six data holes plus a sync hole. Rows with
// no holes at all are blank leader and are skipped. Six frames, most
// significant first, make one machine word. Words are grouped into
// blocks, each a header word of join(count, base), count data words,
// and a checksum word chosen so the whole block sums to zero. A block
// with a zero count carries the entry address and ends the image.
package tape

import (
	"io"

	"github.com/ezrec/tx2/ae"
	"github.com/ezrec/tx2/mem"
	"github.com/ezrec/tx2/word"
)

const (
	// SyncHole marks a punched frame; a frame without it carries no
	// data.
	SyncHole = byte(0o100)

	// DataMask covers the six data holes of a frame.
	DataMask = byte(0o77)

	framesPerWord = word.Bits / 6

	// leaderFrames is the blank run punched before and after the
	// image, long enough to thread the physical reader.
	leaderFrames = 32
)

// Block is one loadable span of words.
type Block struct {
	Base  word.Address
	Words []word.Word
}

// header returns the block's header word: count in the left half,
// base address in the right.
func (b *Block) header() word.Word {
	return word.JoinHalves(word.Word(len(b.Words)), word.Word(b.Base.Physical()))
}

// checksum returns the word that makes the block sum to zero: the
// negated end-around sum of the header and data words.
func (b *Block) checksum() word.Word {
	sum := b.header()
	for _, w := range b.Words {
		sum, _ = ae.Add(sum, w)
	}
	return sum.Negate()
}

// Image is a parsed or assembled tape: loadable blocks plus the entry
// address of the terminating block.
type Image struct {
	Blocks []Block

	Entry    word.Address
	HasEntry bool
}

// Add appends a loadable block to the image.
func (img *Image) Add(base word.Address, words []word.Word) {
	img.Blocks = append(img.Blocks, Block{Base: base, Words: words})
}

// SetEntry seals the image with its entry address.
func (img *Image) SetEntry(entry word.Address) {
	img.Entry = entry
	img.HasEntry = true
}

// Words returns every word the punched image carries, in tape order:
// header, data, and checksum of each block, then the entry block.
func (img *Image) Words() (words []word.Word) {
	for n := range img.Blocks {
		b := &img.Blocks[n]
		words = append(words, b.header())
		words = append(words, b.Words...)
		words = append(words, b.checksum())
	}
	if img.HasEntry {
		entry := Block{Base: img.Entry}
		words = append(words, entry.header(), entry.checksum())
	}
	return
}

// Load stores every block into core and returns the entry address.
// Load is all-or-nothing per block, as LoadBlock is.
func (img *Image) Load(m *mem.Memory) (entry word.Address, err error) {
	for n := range img.Blocks {
		b := &img.Blocks[n]
		if err = m.LoadBlock(b.Base, b.Words); err != nil {
			return
		}
	}
	if !img.HasEntry {
		err = ErrNoEntry
		return
	}
	entry = img.Entry
	return
}

// frames splits a word into its six tape frames, most significant
// first, each with the sync hole punched.
func frames(w word.Word) (fr [framesPerWord]byte) {
	for n := range fr {
		shift := (framesPerWord - 1 - n) * 6
		fr[n] = SyncHole | byte(w>>shift)&DataMask
	}
	return
}

// Punch writes the image to w in tape format, with blank leader and
// trailer.
func Punch(w io.Writer, img *Image) (err error) {
	blank := make([]byte, leaderFrames)
	if _, err = w.Write(blank); err != nil {
		return
	}
	for _, wd := range img.Words() {
		fr := frames(wd)
		if _, err = w.Write(fr[:]); err != nil {
			return
		}
	}
	_, err = w.Write(blank)
	return
}

// scanner walks a raw tape, frame by frame.
type scanner struct {
	data []byte
	pos  int
}

// next assembles the next word, skipping blank frames before it. At
// the end of the punched region it returns ErrEndOfTape.
func (s *scanner) next() (w word.Word, err error) {
	// Skip leader.
	for s.pos < len(s.data) && s.data[s.pos] == 0 {
		s.pos++
	}

	for n := 0; n < framesPerWord; n++ {
		if s.pos >= len(s.data) {
			err = ErrEndOfTape
			return
		}
		fr := s.data[s.pos]
		if fr&SyncHole == 0 {
			err = &FrameError{Offset: s.pos, Frame: fr}
			return
		}
		s.pos++
		w = w<<6 | word.Word(fr&DataMask)
	}
	return
}

// atEnd reports whether only blank tape remains.
func (s *scanner) atEnd() bool {
	for pos := s.pos; pos < len(s.data); pos++ {
		if s.data[pos] != 0 {
			return false
		}
	}
	return true
}

// Read parses a punched tape back into an image, verifying every
// block checksum. A tape that ends without an entry block yields an
// image with HasEntry false.
func Read(r io.Reader) (img *Image, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return
	}

	img = &Image{}
	s := &scanner{data: data}
	for !s.atEnd() {
		var header word.Word
		if header, err = s.next(); err != nil {
			return
		}
		count := int(header.LeftHalf())
		base := word.NewAddress(uint32(header.RightHalf()))

		sum := header
		block := Block{Base: base, Words: make([]word.Word, 0, count)}
		for n := 0; n < count; n++ {
			var w word.Word
			if w, err = s.next(); err != nil {
				return
			}
			sum, _ = ae.Add(sum, w)
			block.Words = append(block.Words, w)
		}

		var check word.Word
		if check, err = s.next(); err != nil {
			return
		}
		sum, _ = ae.Add(sum, check)
		if !sum.IsZero() {
			err = &ChecksumError{Base: base, Sum: sum}
			return
		}

		if count == 0 {
			img.SetEntry(base)
			return
		}
		img.Blocks = append(img.Blocks, block)
	}
	return
}
