// Package cpu implements the control element of the TX-2: the machine's
// registers, the 64 instruction sequences and their priority scheduling,
// the fetch/decode/execute cycle with deferred addressing, and the alarm
// system that converts fault conditions into traps or halts.
//
// The control element owns all mutation of core and registers. One call
// to Step is one machine cycle: it either completes fully or aborts into
// an alarm before any partial state is visible.
package cpu
