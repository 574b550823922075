// Package word implements the 36-bit machine word of the TX-2 and the
// structure imposed on it: one's complement sign, quarters and halves,
// the packed instruction fields, and the exchange-element configurations
// that select which quarters of a word take part in a transfer.
//
// Everything in this package is a pure transformation. Values out of
// range for a field are a caller bug and panic; they are never reported
// as machine alarms.
package word
