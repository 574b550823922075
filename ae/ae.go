// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package ae implements the arithmetic element: 36-bit one's
// complement addition with end-around carry, double-length multiply,
// divide, cycles and shifts, and the logical combinations.
//
// Every operation is pure: it takes words, returns words plus an
// Outcome, and mutates nothing. Whether an overflow wraps, sets the
// overflow flip-flop, or raises an alarm is decided per opcode by the
// control element, never here.
package ae

import (
	"math/bits"

	"github.com/ezrec/tx2/word"
)

// Outcome is the condition result of one arithmetic operation.
type Outcome struct {
	Overflow bool // Result exceeded the representable range.
	Carry    bool // End-around carry occurred.
	Negative bool // Sign bit of the (primary) result.
	Zero     bool // Result is +0 or -0.
}

func outcomeOf(w word.Word) Outcome {
	return Outcome{
		Negative: w.IsNegative(),
		Zero:     w.IsZero(),
	}
}

// Add performs one's complement addition with end-around carry.
// Overflow is reported when both operands share a sign and the sum
// does not.
func Add(a, b word.Word) (sum word.Word, out Outcome) {
	raw := uint64(a&word.Mask) + uint64(b&word.Mask)
	carry := raw > uint64(word.Mask)
	if carry {
		raw = (raw & uint64(word.Mask)) + (raw >> word.Bits)
	}
	sum = word.Word(raw)

	out = outcomeOf(sum)
	out.Carry = carry
	out.Overflow = a.IsNegative() == b.IsNegative() &&
		sum.IsNegative() != a.IsNegative() &&
		!a.IsZero() && !b.IsZero()
	return
}

// Sub subtracts b from a by adding its complement.
func Sub(a, b word.Word) (diff word.Word, out Outcome) {
	return Add(a, b.Negate())
}

// magnitude returns the absolute value of a word as a host integer.
func magnitude(w word.Word) uint64 {
	if w.IsNegative() {
		w = w.Negate()
	}
	return uint64(w)
}

// withSign gives a magnitude the requested sign in n bits.
func withSign(mag uint64, negative bool, mask word.Word) word.Word {
	w := word.Word(mag) & mask
	if negative {
		w = (^w) & mask
	}
	return w
}

const loBits = word.Bits - 1 // magnitude bits held by the low word

// Mul computes the double-length product of two words. The high part
// carries the sign and the upper magnitude bits; the low part carries
// the lower 35 magnitude bits with the same sign. A double-length
// result always fits, so Mul never overflows.
func Mul(a, b word.Word) (hi, lo word.Word, out Outcome) {
	negative := a.IsNegative() != b.IsNegative()
	// The 70-bit magnitude product does not fit a host word.
	pHi, pLo := bits.Mul64(magnitude(a), magnitude(b))

	hiMag := pHi<<(64-loBits) | pLo>>loBits
	loMag := pLo & (1<<loBits - 1)

	hi = withSign(hiMag, negative, word.Mask)
	lo = withSign(loMag, negative, word.Mask)

	out = outcomeOf(hi)
	out.Zero = pHi == 0 && pLo == 0
	out.Negative = negative && !out.Zero
	return
}

// Div divides a by b, truncating toward zero, with the remainder
// keeping the sign of the dividend. Division by (either) zero reports
// Overflow with undefined quotient and remainder, for the control
// element to convert into a divide fault.
func Div(a, b word.Word) (quot, rem word.Word, out Outcome) {
	if b.IsZero() {
		out.Overflow = true
		return
	}
	negQ := a.IsNegative() != b.IsNegative()
	magA, magB := magnitude(a), magnitude(b)

	quot = withSign(magA/magB, negQ, word.Mask)
	rem = withSign(magA%magB, a.IsNegative(), word.Mask)
	out = outcomeOf(quot)
	return
}

// Cycle rotates the full 36-bit word left by n places. Negative n
// rotates right. Cycling moves the sign bit like any other; it cannot
// overflow.
func Cycle(a word.Word, n int) (w word.Word, out Outcome) {
	n %= word.Bits
	if n < 0 {
		n += word.Bits
	}
	a &= word.Mask
	w = (a<<n | a>>(word.Bits-n)) & word.Mask
	out = outcomeOf(w)
	return
}

// Shift shifts the magnitude left by n places (right for negative n),
// preserving the sign. Left shifts that lose significant magnitude
// bits report Overflow.
func Shift(a word.Word, n int) (w word.Word, out Outcome) {
	negative := a.IsNegative()
	mag := magnitude(a)

	switch {
	case n >= loBits || n <= -loBits:
		out.Overflow = n > 0 && mag != 0
		mag = 0
	case n >= 0:
		shifted := mag << n
		out.Overflow = shifted>>n != mag || shifted > 1<<loBits-1
		mag = shifted & (1<<loBits - 1)
	default:
		mag >>= -n
	}

	w = withSign(mag, negative, word.Mask)
	out.Negative = w.IsNegative()
	out.Zero = w.IsZero()
	return
}

// And returns the bitwise intersection.
func And(a, b word.Word) (w word.Word, out Outcome) {
	w = a & b & word.Mask
	out = outcomeOf(w)
	return
}

// Or returns the bitwise union.
func Or(a, b word.Word) (w word.Word, out Outcome) {
	w = (a | b) & word.Mask
	out = outcomeOf(w)
	return
}

// Xor returns the bitwise difference mask, the quantity the SED
// instruction tests.
func Xor(a, b word.Word) (w word.Word, out Outcome) {
	w = (a ^ b) & word.Mask
	out = outcomeOf(w)
	return
}

// Tally counts the set bits of the word, the TLY operation.
func Tally(a word.Word) (count int) {
	return bits.OnesCount64(uint64(a & word.Mask))
}

// Compare orders two words by signed value, treating +0 and -0 as
// equal. Returns -1, 0, or +1.
func Compare(a, b word.Word) int {
	av, bv := a.Signed(), b.Signed()
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}
