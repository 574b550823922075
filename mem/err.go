package mem

import (
	"github.com/ezrec/tx2/translate"
	"github.com/ezrec/tx2/word"
)

var f = translate.From

// AddressFault reports an access outside the configured core size. It
// carries the offending address for diagnostics.
type AddressFault word.Address

func (af AddressFault) Error() string {
	return f("address %v outside core", word.Address(af))
}

func (af AddressFault) Is(err error) (ok bool) {
	_, ok = err.(AddressFault)
	return
}

// Addr returns the faulting address.
func (af AddressFault) Addr() word.Address {
	return word.Address(af)
}
