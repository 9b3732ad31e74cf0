package tree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeLiteral(t *testing.T) {
	require.Equal(t, "hello", decodeLiteral(`'hello'`))
	require.Equal(t, "hello", decodeLiteral(`"hello"`))
	require.Equal(t, "it's", decodeLiteral(`'it\'s'`))
	require.Equal(t, "line\nbreak", decodeLiteral(`'line\nbreak'`))
	require.Equal(t, nil, decodeLiteral("null"))
	require.Equal(t, true, decodeLiteral("true"))
	require.Equal(t, false, decodeLiteral("false"))
	require.Equal(t, "", decodeLiteral("  "))
	// bare tokens fall back to their raw text
	require.Equal(t, "12345", decodeLiteral("12345"))
	require.Equal(t, "window.foo", decodeLiteral("window.foo"))
}

func TestDecodeLiteralConcatIdiom(t *testing.T) {
	require.Equal(t, "valor", decodeLiteral(`'valor'.concat('')`))
	require.Equal(t, "valor", decodeLiteral(`'valor'.concat("")`))
}

func TestSplitArgs(t *testing.T) {
	args := splitArgs(`'a, com vírgula','b',null,true,42`)
	require.Equal(t, []any{"a, com vírgula", "b", nil, true, "42"}, args)
}

func TestSplitArgsUnparseable(t *testing.T) {
	require.Nil(t, splitArgs(""))
	require.Nil(t, splitArgs(`'unterminated`))
}
