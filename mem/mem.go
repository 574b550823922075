// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package mem implements the core memory of the machine: a flat,
// zero-initialized array of 36-bit words indexed by physical address.
// Accesses outside the configured size fail with an AddressFault; they
// are never silently wrapped or ignored.
package mem

import (
	"fmt"
	"iter"
	"maps"

	"github.com/ezrec/tx2/word"
)

const (
	// DefaultSize is the standard core size, 65536 words. The address
	// ring is wider than core; the words above core are fault space.
	DefaultSize = uint32(0o200000)
)

var _mem_defines = map[string]string{
	"MEM_SIZE": fmt.Sprintf("%#o", DefaultSize),
}

// Memory is the machine's core store. It is mutated only by the
// control element acting for the current cycle; external callers may
// inspect it between cycles via Peek and Snapshot.
type Memory struct {
	// Observer, when set, is called after every successful Write with
	// the address and the old and new contents. Used for cycle
	// diagnostics; never for control flow.
	Observer func(addr word.Address, old, new word.Word)

	words []word.Word
}

// New creates a zeroed memory of the given size in words. A size of
// zero or one exceeding the address ring is a configuration bug.
func New(size uint32) (m *Memory) {
	if size == 0 || size > word.AddrSize {
		panic(fmt.Sprintf("mem: size %#o out of range", size))
	}
	m = &Memory{
		words: make([]word.Word, size),
	}
	return
}

// Defines returns an iterator of assembler equates for this package.
func (m *Memory) Defines() iter.Seq2[string, string] {
	return maps.All(_mem_defines)
}

// Size returns the configured size in words.
func (m *Memory) Size() uint32 {
	return uint32(len(m.words))
}

// Clear zeroes all of core, as the power-on and read-in sequences do.
func (m *Memory) Clear() {
	clear(m.words)
}

// Read returns the word at addr, or an AddressFault when addr is
// outside core. Locations never written read as zero.
func (m *Memory) Read(addr word.Address) (w word.Word, err error) {
	p := addr.Physical()
	if p >= m.Size() {
		err = AddressFault(addr)
		return
	}
	w = m.words[p]
	return
}

// Write stores a word at addr, or fails with an AddressFault. Nothing
// is mutated on failure.
func (m *Memory) Write(addr word.Address, w word.Word) (err error) {
	p := addr.Physical()
	if p >= m.Size() {
		err = AddressFault(addr)
		return
	}
	old := m.words[p]
	m.words[p] = w & word.Mask
	if m.Observer != nil {
		m.Observer(addr, old, m.words[p])
	}
	return
}

// LoadBlock writes a contiguous block starting at base, for the tape
// read-in path. The whole block is bounds-checked before the first
// word is stored, so a failed load leaves core untouched.
func (m *Memory) LoadBlock(base word.Address, words []word.Word) (err error) {
	p := base.Physical()
	end := uint64(p) + uint64(len(words))
	if p >= m.Size() || end > uint64(m.Size()) {
		err = AddressFault(word.NewAddress(uint32(end)))
		return
	}
	for n, w := range words {
		old := m.words[p+uint32(n)]
		m.words[p+uint32(n)] = w & word.Mask
		if m.Observer != nil {
			m.Observer(word.NewAddress(p+uint32(n)), old, w&word.Mask)
		}
	}
	return
}

// Peek reads without fault semantics, for inspection tooling only.
// Out-of-range addresses peek as zero.
func (m *Memory) Peek(addr word.Address) (w word.Word) {
	p := addr.Physical()
	if p < m.Size() {
		w = m.words[p]
	}
	return
}

// Snapshot returns a copy of all of core.
func (m *Memory) Snapshot() (words []word.Word) {
	words = make([]word.Word, len(m.words))
	copy(words, m.words)
	return
}
