package hid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeycode(t *testing.T) {
	tests := []struct {
		in   string
		want Keycode
	}{
		{"space", KeySpace},
		{"SPACE", KeySpace},
		{" enter ", KeyEnter},
		{"return", KeyEnter},
		{"a", KeyA},
		{"z", KeyZ},
		{"1", Key1},
		{"0", Key0},
		{"kp_5", KeyKp5},
		{"0x2c", KeySpace},
		{"44", KeySpace},
	}
	for _, tt := range tests {
		got, err := ParseKeycode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseKeycodeErrors(t *testing.T) {
	for _, in := range []string{"", "nope", "0x0", "0x10000"} {
		_, err := ParseKeycode(in)
		assert.Error(t, err, in)
	}
}

func TestParseKeycodes(t *testing.T) {
	codes, err := ParseKeycodes([]string{"space", "tab", "enter"})
	require.NoError(t, err)
	assert.Equal(t, []Keycode{KeySpace, KeyTab, KeyEnter}, codes)

	_, err = ParseKeycodes([]string{"space", "bogus"})
	assert.Error(t, err)
}

func TestKeycodeString(t *testing.T) {
	assert.Equal(t, "space", KeySpace.String())
	assert.Equal(t, "q", KeyQ.String())
	assert.Equal(t, "7", Key7.String())
	assert.Equal(t, "0xf0", Keycode(0xF0).String())
}

func TestModifiers(t *testing.T) {
	m := ModLeftCtrl | ModLeftShift
	assert.Equal(t, []Keycode{KeyLeftCtrl, KeyLeftShift}, m.Keys())
	assert.Equal(t, "left_ctrl+left_shift", m.String())
	assert.Equal(t, "none", Modifiers(0).String())
	assert.Equal(t, ModLeftAlt, KeyLeftAlt.Modifier())
	assert.Equal(t, Modifiers(0), KeyA.Modifier())
}

func TestKeySet(t *testing.T) {
	s := NewKeySet(KeySpace, KeyEnter)
	assert.True(t, s.Has(KeySpace))
	assert.False(t, s.Has(KeyTab))

	var empty KeySet
	assert.False(t, empty.Has(KeySpace))
}
