package expander

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortCodeAppend(t *testing.T) {
	s := NewShortCode(4)
	require.NoError(t, s.Append('a'))
	require.NoError(t, s.Append('ß'))
	assert.ErrorIs(t, s.Append('b'), ErrShortCodeFull)
	assert.Equal(t, "aß", s.String())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 2, s.Chars())
	assert.Equal(t, 4, s.Cap())
}

func TestShortCodeMultiByteDoesNotSplit(t *testing.T) {
	s := NewShortCode(3)
	require.NoError(t, s.Append('a'))
	assert.ErrorIs(t, s.Append('€'), ErrShortCodeFull)
	assert.Equal(t, "a", s.String())
}

func TestShortCodeBackspace(t *testing.T) {
	s := NewShortCode(16)
	for _, r := range "x€😀" {
		require.NoError(t, s.Append(r))
	}
	assert.True(t, s.Backspace())
	assert.Equal(t, "x€", s.String())
	assert.True(t, s.Backspace())
	assert.Equal(t, "x", s.String())
	assert.True(t, s.Backspace())
	assert.False(t, s.Backspace())
	assert.Zero(t, s.Len())
}

func TestShortCodeSet(t *testing.T) {
	s := NewShortCode(4)
	require.NoError(t, s.Set("abc"))
	assert.Equal(t, "abc", s.String())
	assert.ErrorIs(t, s.Set("abcd"), ErrShortCodeFull)
	assert.Equal(t, "abc", s.String())
	s.Reset()
	assert.Empty(t, s.String())
}

func TestZeroCapacity(t *testing.T) {
	s := NewShortCode(0)
	assert.ErrorIs(t, s.Append('a'), ErrShortCodeFull)
	assert.Equal(t, 1, s.Cap())
}
