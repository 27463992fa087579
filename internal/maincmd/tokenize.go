package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/lumen/lang/scanner"
	"github.com/mna/lumen/lang/token"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var firstErr error
	for _, path := range args {
		if err := tokenizeFile(stdio, path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return printError(stdio, firstErr)
}

func tokenizeFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var errs []string
	var sc scanner.Scanner
	sc.Init(src, func(line int, msg string) {
		errs = append(errs, fmt.Sprintf("%s:%d: %s", path, line, msg))
	})

	for {
		tok := sc.Scan()
		fmt.Fprintf(stdio.Stdout, "%s:%d: %s", path, tok.Line, tok.Kind)
		if lit := tok.Lexeme(src); lit != "" {
			fmt.Fprintf(stdio.Stdout, " %q", lit)
		}
		fmt.Fprintln(stdio.Stdout)
		if tok.Kind == token.EOF {
			break
		}
	}

	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(stdio.Stderr, e)
		}
		return &compileError{path: path}
	}
	return nil
}
