// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package word

import (
	"fmt"
)

// Word is a 36-bit one's complement machine word, kept in the low 36
// bits of a uint64. The upper 28 bits are always zero.
type Word uint64

const (
	Bits = 36               // Width of a machine word.
	Mask = Word(1)<<Bits - 1 // Low 36 bits.

	SignBit   = Word(1) << (Bits - 1) // Bit 4.9, the sign.
	MinusZero = Mask                  // One's complement negative zero.

	QuarterBits = 9                          // Width of a quarter word.
	QuarterMask = Word(1)<<QuarterBits - 1   // Low 9 bits.
	HalfBits    = 18                         // Width of a half word.
	HalfMask    = Word(1)<<HalfBits - 1      // Low 18 bits.

	// MaxSigned and MinSigned are the bounds of the signed value a
	// Word can hold.
	MaxSigned = int64(1)<<(Bits-1) - 1
	MinSigned = -MaxSigned
)

// New masks v to 36 bits.
func New(v uint64) Word {
	return Word(v) & Mask
}

// FromSigned converts a host integer to a one's complement Word.
// Values outside [MinSigned, MaxSigned] panic.
func FromSigned(v int64) Word {
	if v > MaxSigned || v < MinSigned {
		panic(fmt.Sprintf("word: signed value %d out of range", v))
	}
	if v < 0 {
		return (^Word(-v)) & Mask
	}
	return Word(v)
}

// Signed returns the one's complement signed value of the word.
// Both +0 and -0 return 0.
func (w Word) Signed() int64 {
	if w.IsNegative() {
		return -int64((^w) & Mask)
	}
	return int64(w)
}

// IsNegative reports whether the sign bit is set. Note that negative
// zero is negative by this test, matching the hardware sign flip-flop.
func (w Word) IsNegative() bool {
	return w&SignBit != 0
}

// IsZero reports whether the word is +0 or -0.
func (w Word) IsZero() bool {
	return w == 0 || w == MinusZero
}

// Negate returns the one's complement of the word.
func (w Word) Negate() Word {
	return (^w) & Mask
}

// Quarter returns quarter n of the word. Quarters are numbered 1 to 4
// from the right, following the handbook's bit notation.
func (w Word) Quarter(n int) Word {
	if n < 1 || n > 4 {
		panic(fmt.Sprintf("word: quarter %d out of range", n))
	}
	return (w >> (QuarterBits * (n - 1))) & QuarterMask
}

// WithQuarter returns the word with quarter n replaced by the low nine
// bits of q.
func (w Word) WithQuarter(n int, q Word) Word {
	if n < 1 || n > 4 {
		panic(fmt.Sprintf("word: quarter %d out of range", n))
	}
	shift := QuarterBits * (n - 1)
	return (w &^ (QuarterMask << shift)) | ((q & QuarterMask) << shift)
}

// LeftHalf returns the left (most significant) 18 bits.
func (w Word) LeftHalf() Word {
	return (w >> HalfBits) & HalfMask
}

// RightHalf returns the right (least significant) 18 bits.
func (w Word) RightHalf() Word {
	return w & HalfMask
}

// JoinHalves packs two 18-bit halves into a word.
func JoinHalves(left, right Word) Word {
	return ((left & HalfMask) << HalfBits) | (right & HalfMask)
}

// JoinQuarters packs four 9-bit quarters into a word. Arguments are
// given most significant first (quarter 4 to quarter 1).
func JoinQuarters(q4, q3, q2, q1 Word) Word {
	return ((q4 & QuarterMask) << (3 * QuarterBits)) |
		((q3 & QuarterMask) << (2 * QuarterBits)) |
		((q2 & QuarterMask) << QuarterBits) |
		(q1 & QuarterMask)
}

// String formats the word as twelve octal digits, the convention used
// in all TX-2 documentation.
func (w Word) String() string {
	return fmt.Sprintf("%012o", uint64(w))
}

// Xword is an 18-bit one's complement value, the format of the X
// (index) memory. The index registers form an 18-bit ring: arithmetic
// on them wraps with end-around carry and never faults.
type Xword uint32

const (
	XMask    = Xword(1)<<HalfBits - 1 // Low 18 bits.
	XSignBit = Xword(1) << (HalfBits - 1)

	MaxXSigned = int32(1)<<(HalfBits-1) - 1
	MinXSigned = -MaxXSigned
)

// XFromSigned converts a host integer to an 18-bit one's complement
// value. Values outside the representable range panic.
func XFromSigned(v int32) Xword {
	if v > MaxXSigned || v < MinXSigned {
		panic(fmt.Sprintf("word: index value %d out of range", v))
	}
	if v < 0 {
		return (^Xword(-v)) & XMask
	}
	return Xword(v)
}

// Signed returns the one's complement signed value.
func (x Xword) Signed() int32 {
	if x.IsNegative() {
		return -int32((^x) & XMask)
	}
	return int32(x)
}

// IsNegative reports whether the sign bit (2.9) is set.
func (x Xword) IsNegative() bool {
	return x&XSignBit != 0
}

// Add performs 18-bit one's complement addition with end-around carry.
// The ring wraps; there is no overflow indication.
func (x Xword) Add(y Xword) Xword {
	sum := uint32(x&XMask) + uint32(y&XMask)
	if sum > uint32(XMask) {
		sum = (sum & uint32(XMask)) + (sum >> HalfBits)
	}
	return Xword(sum)
}

// Sub subtracts y from x in the 18-bit ring.
func (x Xword) Sub(y Xword) Xword {
	return x.Add((^y) & XMask)
}
