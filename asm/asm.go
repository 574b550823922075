// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package asm implements the program assembler. Source lines are one
// statement each:
//
//	label: h MNEMONIC/cfg *address,j  ; comment
//
// The hold prefix, configuration, defer star, and index field are all
// optional. Numbers are octal. The directives are .equ, .org, .word,
// .start, and .macro/.endm; $(...) evaluates a Starlark expression at
// assembly time. The output is a tape image ready to punch or load.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/tx2/cpu"
	"github.com/ezrec/tx2/tape"
	"github.com/ezrec/tx2/word"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// span is a contiguous run of emitted words.
type span struct {
	base  word.Address
	words []word.Word
}

// link is an instruction operand waiting for a label definition.
type link struct {
	span   int
	offset int
	label  string
}

// Assembler is a single pass assembler producing tape images.
type Assembler struct {
	Verbose bool // If set, verbosely logs the assembler actions.

	predefine map[string]string       // Predefines
	Label     map[string]word.Address // Map of labels to addresses.
	Equate    map[string]string       // Map of equates.
	Macro     map[string](*Macro)     // Map of macros.

	origin word.Address
	open   bool
	spans  []span
	links  []link

	entry    string
	hasEntry bool
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// valueOf returns the value of a numeric token. Numbers are octal,
// with an optional sign.
func (asm *Assembler) valueOf(tok string) (value int64, err error) {
	value, perr := strconv.ParseInt(tok, 8, 64)
	if perr != nil {
		err = ErrParseNumber(tok)
	}
	return
}

// lookup resolves a token through the equate table, then as a number.
func (asm *Assembler) lookup(tok string) (value int64, err error) {
	if equate, ok := asm.Equate[tok]; ok {
		tok = equate
	}
	return asm.valueOf(tok)
}

// addressOf resolves a token as a label or a 17-bit address value.
func (asm *Assembler) addressOf(tok string) (addr word.Address, err error) {
	if at, ok := asm.Label[tok]; ok {
		addr = at
		return
	}
	value, err := asm.lookup(tok)
	if err != nil {
		return
	}
	if value < 0 || value >= 1<<word.AddrBits {
		err = ErrOperandRange
		return
	}
	addr = word.NewAddress(uint32(value))
	return
}

// wordOf resolves a token as a full 36-bit word value.
func (asm *Assembler) wordOf(tok string) (w word.Word, err error) {
	value, err := asm.lookup(tok)
	if err != nil {
		return
	}
	switch {
	case value >= word.MinSigned && value <= word.MaxSigned:
		w = word.FromSigned(value)
	case value >= 0 && uint64(value) <= uint64(word.Mask):
		w = word.New(uint64(value))
	default:
		err = ErrOperandRange
	}
	return
}

// parenEval does assembly-time $(...) evaluations.
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		value64, verr := asm.valueOf(str)
		if verr != nil {
			// Ignore non-integer equates.
			continue
		}
		pred[key] = starlark.MakeInt64(value64)
	}
	for key, addr := range asm.Label {
		pred[key] = starlark.MakeInt(int(addr.Physical()))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
	}
	return
}

// emit appends one word at the current origin, opening a new span if
// the previous one was closed by .org.
func (asm *Assembler) emit(w word.Word) {
	if !asm.open {
		asm.spans = append(asm.spans, span{base: asm.origin})
		asm.open = true
	}
	s := &asm.spans[len(asm.spans)-1]
	s.words = append(s.words, w)
	asm.origin = asm.origin.Successor()
}

// parseLine expands a single source line into statement words.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%o", lineno)

	// Do $() evaluations
	re := regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%o", value)
	})
	if err != nil {
		return
	}

	words = slices.DeleteFunc(strings.Split(line, " "), func(a string) bool { return len(a) == 0 })

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, tok := range words {
		// Check for equate next
		equate, ok := asm.Equate[tok]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]word.Address, 16)
		}
		asm.Label[label] = asm.origin
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", fmt.Sprintf("%v_%v_", name, lineno))
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// operand parses the address part of a statement: optional defer
// star, address token, optional ,j index field. A forward label
// reference is returned for linking.
func (asm *Assembler) operand(inst *word.Instruction, tok string) (label string, err error) {
	if strings.HasPrefix(tok, "*") {
		inst.Defer = true
		tok = tok[1:]
	}

	addrTok, jTok, found := strings.Cut(tok, ",")
	if found {
		var j int64
		if j, err = asm.lookup(jTok); err != nil {
			return
		}
		if j < 0 || j >= cpu.NumSequences {
			err = ErrOperandRange
			return
		}
		inst.J = uint8(j)
	}
	if len(addrTok) == 0 {
		err = ErrOperandMissing
		return
	}

	if addr, ok := asm.Label[addrTok]; ok {
		inst.Addr = addr.Physical()
		return
	}
	value, verr := asm.lookup(addrTok)
	if verr != nil {
		if nameRe.MatchString(addrTok) {
			// Forward reference, linked after the final line.
			label = addrTok
			return
		}
		err = verr
		return
	}
	if value < -(1<<(word.AddrBits-1)) || value >= 1<<word.AddrBits {
		err = ErrOperandRange
		return
	}
	if value < 0 {
		// Negative counts, as for the cycle operations, wrap into the
		// field.
		value += 1 << word.AddrBits
	}
	inst.Addr = uint32(value)
	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	// no-op
	if len(words) == 0 {
		return
	}

	switch words[0] {
	case ".org":
		if len(words) != 2 {
			err = ErrOrgSyntax
			return
		}
		var addr word.Address
		if addr, err = asm.addressOf(words[1]); err != nil {
			return
		}
		asm.open = false
		asm.origin = addr
		return

	case ".word":
		if len(words) < 2 {
			err = ErrWordSyntax
			return
		}
		for _, tok := range words[1:] {
			var w word.Word
			if w, err = asm.wordOf(tok); err != nil {
				return
			}
			asm.emit(w)
		}
		return

	case ".start":
		if len(words) != 2 {
			err = ErrStartSyntax
			return
		}
		if asm.hasEntry {
			err = ErrStartDuplicate
			return
		}
		asm.entry = words[1]
		asm.hasEntry = true
		return
	}

	held := false
	if strings.EqualFold(words[0], "h") {
		held = true
		words = words[1:]
		if len(words) == 0 {
			err = ErrMnemonicInvalid
			return
		}
	}

	mnemonic := strings.ToLower(words[0])
	mnemonic, cfgTok, hasCfg := strings.Cut(mnemonic, "/")
	op, ok := cpu.ByName[mnemonic]
	if !ok {
		err = ErrMnemonicInvalid
		return
	}

	inst := word.Instruction{Held: held, Op: uint8(op)}
	if hasCfg {
		var cfg int64
		if cfg, err = asm.lookup(cfgTok); err != nil {
			return
		}
		if cfg < 0 || cfg > 0o37 {
			err = ErrOperandRange
			return
		}
		inst.Cfg = uint8(cfg)
	}

	var label string
	switch len(words) {
	case 1:
	case 2:
		if label, err = asm.operand(&inst, words[1]); err != nil {
			return
		}
	default:
		err = ErrOperandExtra
		return
	}

	asm.emit(inst.Encode())
	if len(label) > 0 {
		asm.links = append(asm.links, link{
			span:   len(asm.spans) - 1,
			offset: len(asm.spans[len(asm.spans)-1].words) - 1,
			label:  label,
		})
	}
	return
}

// Parse assembles an input stream into a tape image.
func (asm *Assembler) Parse(input io.Reader) (img *tape.Image, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}
	asm.origin = word.NewAddress(0)
	asm.open = false
	asm.spans = nil
	asm.links = nil
	asm.entry = ""
	asm.hasEntry = false

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		all_words := strings.Split(line, " ")

		var words []string
		for _, single := range all_words {
			if len(single) > 0 {
				words = append(words, single)
			}
		}

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of forward label references.
	for _, lk := range asm.links {
		addr, ok := asm.Label[lk.label]
		if !ok {
			err = ErrLabelMissing(lk.label)
			return
		}
		w := asm.spans[lk.span].words[lk.offset]
		inst := word.Decode(w)
		inst.Addr = addr.Physical()
		asm.spans[lk.span].words[lk.offset] = inst.Encode()
	}

	img = &tape.Image{}
	for _, s := range asm.spans {
		if len(s.words) == 0 {
			continue
		}
		img.Add(s.base, slices.Clone(s.words))
	}
	if asm.hasEntry {
		var entry word.Address
		if entry, err = asm.addressOf(asm.entry); err != nil {
			img = nil
			return
		}
		img.SetEntry(entry)
	}

	return
}
