package word

import (
	"fmt"
)

// Address is an 18-bit address register value: a 17-bit physical
// address in the low bits plus the mark bit 2.9. The program counter
// and the X memory placeholders hold values of this form.
//
// Only the physical part selects a memory location. The mark bit is
// preserved by Successor and Jump-style updates; a change of sequence
// is the only event that replaces it.
type Address uint32

const (
	AddrBits = 17                         // Physical address width.
	AddrMask = Address(1)<<AddrBits - 1   // Low 17 bits.
	MarkBit  = Address(1) << AddrBits     // Bit 2.9.
	AddrSize = uint32(1) << AddrBits      // Number of addressable words.
)

// NewAddress masks p to the physical address range, with the mark
// bit clear.
func NewAddress(p uint32) Address {
	return Address(p) & AddrMask
}

// Physical returns the 17-bit physical address.
func (a Address) Physical() uint32 {
	return uint32(a & AddrMask)
}

// Mark reports the state of bit 2.9.
func (a Address) Mark() bool {
	return a&MarkBit != 0
}

// WithMark returns the address with bit 2.9 set to mark.
func (a Address) WithMark(mark bool) Address {
	if mark {
		return a | MarkBit
	}
	return a &^ MarkBit
}

// Successor returns the next address. The count circuit does not
// reach bit 2.9, so the physical part wraps and the mark survives.
func (a Address) Successor() Address {
	next := Address(a.Physical()+1) & AddrMask
	return next.WithMark(a.Mark())
}

// IndexBy offsets the physical address by the signed value of x,
// wrapping within the address ring. The mark bit is cleared; operand
// addresses produced by the X adder carry no mark.
func (a Address) IndexBy(x Xword) Address {
	delta := x.Signed()
	p := int64(a.Physical()) + int64(delta)
	p &= int64(AddrMask)
	return Address(p)
}

// Xword returns the address as an 18-bit index value, the form in
// which placeholders are parked in the X memory.
func (a Address) Xword() Xword {
	return Xword(a) & XMask
}

// AddressFromXword reinterprets an 18-bit index value as an address.
func AddressFromXword(x Xword) Address {
	return Address(x & XMask)
}

// String formats the address as six octal digits, with the mark shown
// as a prefix when set.
func (a Address) String() string {
	if a.Mark() {
		return fmt.Sprintf("*%06o", a.Physical())
	}
	return fmt.Sprintf("%06o", a.Physical())
}
