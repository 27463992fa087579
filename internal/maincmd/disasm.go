package maincmd

import (
	"context"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/lumen/lang/compiler"
)

// Disasm implements the `disasm <file>` introspection command: compile
// the source and print its disassembled bytecode without running it.
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		src, err := os.ReadFile(path)
		if err != nil {
			return printError(stdio, err)
		}
		fn, err := compiler.Compile(src)
		if err != nil {
			printError(stdio, err)
			return &compileError{path: path}
		}
		compiler.Disassemble(stdio.Stdout, fn)
	}
	return nil
}
