package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/lumen/lang/scanner"
	"github.com/mna/lumen/lang/token"
)

func scanAll(t *testing.T, src string) ([]token.Token, []string) {
	t.Helper()

	var errs []string
	var s scanner.Scanner
	s.Init([]byte(src), func(line int, msg string) {
		errs = append(errs, msg)
	})

	var toks []token.Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks, errs
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestScanBasics(t *testing.T) {
	toks, errs := scanAll(t, `var x = 1 + 2.5; // comment`)
	require.Empty(t, errs)
	require.Equal(t, []token.Kind{
		token.VAR, token.IDENTIFIER, token.EQUAL, token.NUMBER,
		token.PLUS, token.NUMBER, token.SEMICOLON, token.EOF,
	}, kinds(toks))
}

func TestScanBlockComment(t *testing.T) {
	toks, errs := scanAll(t, "1 /* nested /* comment */ still */ 2")
	require.Empty(t, errs)
	require.Equal(t, []token.Kind{token.NUMBER, token.NUMBER, token.EOF}, kinds(toks))
}

func TestScanKeywordsAndPunctuation(t *testing.T) {
	toks, errs := scanAll(t, `class C expands P { const var x; init(){} }`)
	require.Empty(t, errs)
	require.Equal(t, []token.Kind{
		token.CLASS, token.IDENTIFIER, token.EXPANDS, token.IDENTIFIER,
		token.LEFT_BRACE, token.CONST, token.VAR, token.IDENTIFIER, token.SEMICOLON,
		token.IDENTIFIER, token.LEFT_PAREN, token.RIGHT_PAREN, token.LEFT_BRACE, token.RIGHT_BRACE,
		token.RIGHT_BRACE, token.EOF,
	}, kinds(toks))
}

func TestScanStringInterpolation(t *testing.T) {
	var s scanner.Scanner
	var errs []string
	s.Init([]byte(`"a${x}b${y}c"`), func(_ int, msg string) { errs = append(errs, msg) })

	tok := s.Scan()
	require.Equal(t, token.STRING_INTERP_START, tok.Kind)
	require.Equal(t, "a", s.Decoded())

	tok = s.Scan()
	require.Equal(t, token.IDENTIFIER, tok.Kind)

	tok = s.Scan()
	require.Equal(t, token.STRING_INTERP_START, tok.Kind)
	require.Equal(t, "b", s.Decoded())

	tok = s.Scan()
	require.Equal(t, token.IDENTIFIER, tok.Kind)

	tok = s.Scan()
	require.Equal(t, token.STRING_WITH_INTERP, tok.Kind)
	require.Equal(t, "c", s.Decoded())

	require.Empty(t, errs)
}

func TestScanStringWithDictLiteralInsideInterpolation(t *testing.T) {
	// the '{'/'}' of the dict literal must not be confused with the
	// interpolation's own closing brace.
	toks, errs := scanAll(t, `"${ {"k": 1} }"`)
	require.Empty(t, errs)
	require.Equal(t, []token.Kind{
		token.STRING_INTERP_START,
		token.LEFT_BRACE, token.STRING, token.COLON, token.NUMBER, token.RIGHT_BRACE,
		token.STRING_WITH_INTERP,
		token.EOF,
	}, kinds(toks))
}

func TestScanUnterminatedString(t *testing.T) {
	_, errs := scanAll(t, `"unterminated`)
	require.NotEmpty(t, errs)
}

func TestScanEscapeSequences(t *testing.T) {
	var s scanner.Scanner
	s.Init([]byte(`"a\nb\tc\"d"`), nil)
	tok := s.Scan()
	require.Equal(t, token.STRING, tok.Kind)
	require.Equal(t, "a\nb\tc\"d", s.Decoded())
}
