package compiler_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libklein/jackc/internal/compiler"
)

func TestNewIOErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("permission denied")
	err := compiler.NewIOError("Main.jack", cause)

	require.Equal(t, compiler.IOErrorKind, err.Kind)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "Main.jack")
	require.Contains(t, err.Error(), "permission denied")
}
