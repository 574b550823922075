// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	slogmulti "github.com/samber/slog-multi"

	"github.com/ezrec/tx2/asm"
	"github.com/ezrec/tx2/cpu"
	"github.com/ezrec/tx2/emulator"
	"github.com/ezrec/tx2/tape"
)

var cli struct {
	Verbose bool   `short:"v" help:"Verbose logging."`
	Trace   string `help:"Also write a cycle trace log to this file."`

	Asm asmCmd `cmd:"" help:"Assemble a source file into a tape image."`
	Run runCmd `cmd:"" help:"Boot a tape image and run it to a halt."`
}

type context struct {
	logger *slog.Logger
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("tx2"),
		kong.Description("A 36-bit multiple sequence computer."))

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}
	if len(cli.Trace) != 0 {
		ouf, err := os.Create(cli.Trace)
		if err != nil {
			ctx.FatalIfErrorf(err)
		}
		defer ouf.Close()
		handlers = append(handlers,
			slog.NewJSONHandler(ouf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	logger := slog.New(slogmulti.Fanout(handlers...))

	err := ctx.Run(&context{logger: logger})
	ctx.FatalIfErrorf(err)
}

type asmCmd struct {
	Source string `arg:"" type:"existingfile" help:"Assembly source file."`
	Output string `short:"o" default:"a.tape" help:"Tape image to punch."`
}

func (c *asmCmd) Run(ctx *context) error {
	inf, err := os.Open(c.Source)
	if err != nil {
		return err
	}
	defer inf.Close()

	a := &asm.Assembler{Verbose: cli.Verbose}
	for key, value := range emulator.New().Defines() {
		a.Predefine(key, value)
	}

	img, err := a.Parse(inf)
	if err != nil {
		return err
	}

	ouf, err := os.Create(c.Output)
	if err != nil {
		return err
	}
	defer ouf.Close()

	if err = tape.Punch(ouf, img); err != nil {
		return err
	}

	words := 0
	for _, b := range img.Blocks {
		words += len(b.Words)
	}
	ctx.logger.Info("assembled", "blocks", len(img.Blocks), "words", words,
		"output", c.Output)
	return nil
}

type runCmd struct {
	Tape      string `arg:"" type:"existingfile" help:"Tape image to boot."`
	Punch     string `short:"o" help:"Thread the punch unit, writing to this file."`
	MaxCycles int    `help:"Stop after this many cycles (0: no bound)."`
}

func (c *runCmd) Run(ctx *context) error {
	inf, err := os.Open(c.Tape)
	if err != nil {
		return err
	}
	defer inf.Close()

	img, err := tape.Read(inf)
	if err != nil {
		return err
	}

	emu := emulator.New()
	emu.Verbose = cli.Verbose
	emu.MaxCycles = c.MaxCycles
	emu.Trace = func(cyc cpu.Cycle) {
		ctx.logger.Debug("cycle",
			"seq", fmt.Sprintf("%02o", cyc.Seq),
			"at", cyc.At.String(),
			"op", cpu.Op(cyc.Inst.Op).String(),
			"word", cyc.Word.String())
	}

	if len(c.Punch) != 0 {
		ouf, err := os.Create(c.Punch)
		if err != nil {
			return err
		}
		defer ouf.Close()
		emu.ThreadPunch(ouf)
	}

	if err = emu.Boot(img); err != nil {
		return err
	}

	halt, err := emu.Run()
	if err != nil {
		return err
	}

	ctx.logger.Info("stopped", "reason", halt.String(), "cycles", emu.Cycles)
	fmt.Print(emu.Regs.String())
	return nil
}
