package token_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/lumen/lang/token"
)

func TestLookupIdent(t *testing.T) {
	cases := []struct {
		lit  string
		want token.Kind
	}{
		{"fn", token.FN},
		{"class", token.CLASS},
		{"expands", token.EXPANDS},
		{"const", token.CONST},
		{"nothing", token.IDENTIFIER},
		{"Fn", token.IDENTIFIER},
	}
	for _, c := range cases {
		require.Equal(t, c.want, token.LookupIdent(c.lit), c.lit)
	}
}

func TestTokenLexeme(t *testing.T) {
	src := []byte("var answer = 42;")
	tok := token.Token{Kind: token.IDENTIFIER, Start: 4, Length: 6, Line: 1}
	require.Equal(t, "answer", tok.Lexeme(src))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "fn", token.FN.String())
	require.Equal(t, "=>", token.MATCHES_TO.String())
}
