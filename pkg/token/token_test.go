package token_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/token"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tok, err := token.New("ps_")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok, "ps_"))
	assert.Greater(t, len(tok), 40, "256 bits of entropy plus prefix")

	seen := make(map[string]bool)
	for range 100 {
		tok, err := token.New("at_")
		require.NoError(t, err)
		assert.False(t, seen[tok], "tokens must not repeat")
		seen[tok] = true
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	tok, err := token.New("at_")
	require.NoError(t, err)

	assert.True(t, token.Equal(tok, tok))
	assert.False(t, token.Equal(tok, tok+"x"))
	assert.False(t, token.Equal(tok, ""))
}
