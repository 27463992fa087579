package maincmd

import (
	"context"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/lumen/internal/config"
	"github.com/mna/lumen/lang/compiler"
	"github.com/mna/lumen/lang/machine"
)

// Run implements the `run <file>` command (spec §6's driver contract):
// read source, compile, and on success execute the resulting top-level
// closure to completion.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		if err := runFile(stdio, path, c.Trace); err != nil {
			return printError(stdio, err)
		}
	}
	return nil
}

func runFile(stdio mainer.Stdio, path string, trace bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fn, err := compiler.Compile(src)
	if err != nil {
		printError(stdio, err)
		return &compileError{path: path}
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	t := machine.NewThread(cfg.GC)
	t.Stdout = stdio.Stdout
	t.MaxFrames = cfg.VM.MaxFrames
	if trace {
		t.TraceOut = stdio.Stderr
	}

	if err := t.Run(fn); err != nil {
		return &runtimeFailure{path: path, err: err}
	}
	return nil
}
