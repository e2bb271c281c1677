package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenIs(t *testing.T) {
	tok := Token{Type: Keyword, Literal: "while"}
	require.True(t, tok.Is("if", "while"))
	require.False(t, tok.Is("if", "do"))
}

func TestIntValue(t *testing.T) {
	v, err := Token{Type: IntConst, Literal: "32767"}.IntValue()
	require.NoError(t, err)
	require.EqualValues(t, 32767, v)

	_, err = Token{Type: IntConst, Literal: "32768"}.IntValue()
	require.Error(t, err)

	_, err = Token{Type: IntConst, Literal: "-1"}.IntValue()
	require.Error(t, err)
}

func TestKeywordsAndSymbolsVocabulary(t *testing.T) {
	require.Len(t, Keywords, 21)
	require.Len(t, Symbols, 19)
}
