package word

import (
	"fmt"
)

// Configuration describes one exchange-element setting: which quarters
// of a word are active during a transfer, and whether inactive quarters
// of a fetched operand are filled with the sign of the active part.
//
// The hardware's quarter permutations are not carried; a configuration
// here is activity plus sign extension only.
type Configuration struct {
	Active     [4]bool // Activity of quarters 1 to 4.
	SignExtend bool    // Fill inactive quarters with the active sign.
}

const (
	cfgActiveBits = 4
	cfgSignBit    = Word(1) << cfgActiveBits
	cfgValueMask  = Word(1)<<(cfgActiveBits+1) - 1
)

// FullWord is the configuration with every quarter active.
var FullWord = Configuration{Active: [4]bool{true, true, true, true}}

// ConfigFromBits unpacks a configuration from its stored form: bits
// 1.1-1.4 are the activity of quarters 1-4, bit 1.5 is sign extension.
// This is the format the SPG instruction loads into the F memory.
func ConfigFromBits(w Word) Configuration {
	var cfg Configuration
	for q := 0; q < 4; q++ {
		cfg.Active[q] = w>>q&1 != 0
	}
	cfg.SignExtend = w&cfgSignBit != 0
	return cfg
}

// Bits packs the configuration into its stored form.
func (cfg Configuration) Bits() Word {
	var w Word
	for q := 0; q < 4; q++ {
		if cfg.Active[q] {
			w |= Word(1) << q
		}
	}
	if cfg.SignExtend {
		w |= cfgSignBit
	}
	return w & cfgValueMask
}

// IsFullWord reports whether every quarter is active.
func (cfg Configuration) IsFullWord() bool {
	return cfg.Active[0] && cfg.Active[1] && cfg.Active[2] && cfg.Active[3]
}

// topActive returns the highest active quarter number, or 0 when the
// configuration is entirely inactive.
func (cfg Configuration) topActive() int {
	for q := 4; q >= 1; q-- {
		if cfg.Active[q-1] {
			return q
		}
	}
	return 0
}

// Extract applies the configuration to a fetched operand: active
// quarters pass through, inactive quarters become zero, or copies of
// the active sign when sign extension is selected.
func (cfg Configuration) Extract(w Word) Word {
	var out Word
	for q := 1; q <= 4; q++ {
		if cfg.Active[q-1] {
			out = out.WithQuarter(q, w.Quarter(q))
		}
	}
	if cfg.SignExtend {
		top := cfg.topActive()
		quarterSign := Word(1) << (QuarterBits - 1)
		if top != 0 && w.Quarter(top)&quarterSign != 0 {
			for q := 1; q <= 4; q++ {
				if !cfg.Active[q-1] {
					out = out.WithQuarter(q, QuarterMask)
				}
			}
		}
	}
	return out
}

// Merge applies the configuration to a store: active quarters come
// from value, inactive quarters keep the existing memory contents.
func (cfg Configuration) Merge(value, existing Word) Word {
	out := existing
	for q := 1; q <= 4; q++ {
		if cfg.Active[q-1] {
			out = out.WithQuarter(q, value.Quarter(q))
		}
	}
	return out
}

// String lists the active quarters, e.g. "q4q3q2q1" or "q2q1s".
func (cfg Configuration) String() string {
	s := ""
	for q := 4; q >= 1; q-- {
		if cfg.Active[q-1] {
			s += fmt.Sprintf("q%d", q)
		}
	}
	if s == "" {
		s = "inactive"
	}
	if cfg.SignExtend {
		s += "s"
	}
	return s
}

// StandardConfigs is the power-on contents of the F memory. Entry 0 is
// the full word and must stay that way; programs reload the rest with
// SPG as needed.
var StandardConfigs = [32]Configuration{
	0: FullWord,
	1: {Active: [4]bool{true, true, false, false}},                   // right half
	2: {Active: [4]bool{false, false, true, true}},                   // left half
	3: {Active: [4]bool{true, false, false, false}},                  // quarter 1
	4: {Active: [4]bool{false, true, false, false}},                  // quarter 2
	5: {Active: [4]bool{false, false, true, false}},                  // quarter 3
	6: {Active: [4]bool{false, false, false, true}},                  // quarter 4
	0o10: {Active: [4]bool{true, true, false, false}, SignExtend: true},  // right half, extended
	0o11: {Active: [4]bool{true, false, false, false}, SignExtend: true}, // quarter 1, extended
	0o12: {Active: [4]bool{false, true, false, false}, SignExtend: true}, // quarter 2, extended
	// Remaining entries power on as full word.
	7:    FullWord,
	0o13: FullWord, 0o14: FullWord, 0o15: FullWord, 0o16: FullWord, 0o17: FullWord,
	0o20: FullWord, 0o21: FullWord, 0o22: FullWord, 0o23: FullWord, 0o24: FullWord,
	0o25: FullWord, 0o26: FullWord, 0o27: FullWord, 0o30: FullWord, 0o31: FullWord,
	0o32: FullWord, 0o33: FullWord, 0o34: FullWord, 0o35: FullWord, 0o36: FullWord,
	0o37: FullWord,
}
