// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

// NumSequences is the number of architectural sequence slots. Each
// sequence is an independent instruction stream with its own
// placeholder in the X memory.
const NumSequences = 64

// Special sequence assignments, following the unit numbering of the
// machine.
const (
	SeqStartover = uint8(0)    // run by the start-over button
	SeqIOAlarm   = uint8(0o41) // handles in-out alarm conditions
	SeqTrap      = uint8(0o42) // handles trap conditions
	SeqReader    = uint8(0o52) // photoelectric tape reader (PETR)
	SeqPunch     = uint8(0o63) // tape punch
)

// Sequence is one scheduling slot: a raised flag requests the sequence
// to run, and the rank orders competing requests.
type Sequence struct {
	Flag bool // raised: the sequence requests to run
	Rank int  // scheduling priority; larger wins
}

// Sequences is the flag register and priority table. Selection is a
// pure function of this table; flag changes made during a cycle only
// influence the next selection, never the cycle in flight.
type Sequences struct {
	seq [NumSequences]Sequence
}

// NewSequences returns the table with all flags lowered ("Limbo") and
// the default priority chain: the lowest-numbered sequence outranks
// all higher-numbered ones.
func NewSequences() (s Sequences) {
	for n := range s.seq {
		s.seq[n].Rank = NumSequences - 1 - n
	}
	return
}

// Raise sets the flag of sequence j.
func (s *Sequences) Raise(j uint8) {
	s.seq[j].Flag = true
}

// Lower drops the flag of sequence j.
func (s *Sequences) Lower(j uint8) {
	s.seq[j].Flag = false
}

// LowerAll drops every flag, putting the machine in Limbo.
func (s *Sequences) LowerAll() {
	for n := range s.seq {
		s.seq[n].Flag = false
	}
}

// Raised reports the flag of sequence j.
func (s *Sequences) Raised(j uint8) bool {
	return s.seq[j].Flag
}

// Rank returns the priority rank of sequence j.
func (s *Sequences) Rank(j uint8) int {
	return s.seq[j].Rank
}

// SetRank adjusts the priority rank of sequence j. Rank changes take
// effect at the next selection.
func (s *Sequences) SetRank(j uint8, rank int) {
	s.seq[j].Rank = rank
}

// Select picks the sequence that should run next: the raised flag with
// the highest rank, ties broken by the lowest sequence number. ok is
// false when no flag is raised.
func (s *Sequences) Select() (j uint8, ok bool) {
	best := -1
	for n := range s.seq {
		if !s.seq[n].Flag {
			continue
		}
		if best < 0 || s.seq[n].Rank > s.seq[best].Rank {
			best = n
		}
	}
	if best < 0 {
		return
	}
	return uint8(best), true
}
