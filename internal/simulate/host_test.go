package simulate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textexpander/internal/hid"
	"textexpander/internal/layout"
)

func press(t *testing.T, h *Host, k hid.Keycode) {
	t.Helper()
	require.NoError(t, h.SendKey(k, true))
	require.NoError(t, h.Flush())
	require.NoError(t, h.SendKey(k, false))
	require.NoError(t, h.Flush())
}

func mods(t *testing.T, h *Host, m hid.Modifiers, down bool) {
	t.Helper()
	if down {
		require.NoError(t, h.RegisterMods(m))
	} else {
		require.NoError(t, h.UnregisterMods(m))
	}
	require.NoError(t, h.Flush())
}

func TestHostTypesThroughLayout(t *testing.T) {
	h := NewHost(layout.US, Windows)
	press(t, h, hid.KeyH)
	mods(t, h, hid.ModLeftShift, true)
	press(t, h, hid.Key1)
	mods(t, h, hid.ModLeftShift, false)
	assert.Equal(t, "h!", h.Text())

	press(t, h, hid.KeyBackspace)
	assert.Equal(t, "h", h.Text())
	assert.Equal(t, "+h -h +[left_shift] +1 -1 -[left_shift] +backspace -backspace", h.Trace())
}

func TestHostWindowsAltCode(t *testing.T) {
	h := NewHost(layout.US, Windows)
	mods(t, h, hid.ModLeftAlt, true)
	press(t, h, hid.KeyKp2)
	press(t, h, hid.KeyKp3)
	press(t, h, hid.KeyKp3)
	mods(t, h, hid.ModLeftAlt, false)
	assert.Equal(t, "é", h.Text())
}

func TestHostMacHexInput(t *testing.T) {
	h := NewHost(layout.German, MacOS)
	mods(t, h, hid.ModLeftAlt, true)
	for _, k := range []hid.Keycode{hid.Key0, hid.Key0, hid.KeyF, hid.KeyC} {
		press(t, h, k)
	}
	mods(t, h, hid.ModLeftAlt, false)
	assert.Equal(t, "ü", h.Text())
}

func TestHostLinuxUnicodeEntry(t *testing.T) {
	h := NewHost(layout.US, Linux)
	mods(t, h, hid.ModLeftCtrl|hid.ModLeftShift, true)
	press(t, h, hid.KeyU)
	mods(t, h, hid.ModLeftCtrl|hid.ModLeftShift, false)
	for _, k := range []hid.Keycode{hid.Key2, hid.Key0, hid.KeyA, hid.KeyC, hid.KeyEnter} {
		press(t, h, k)
	}
	assert.Equal(t, "€", h.Text())
}

func TestHostTracksHeldState(t *testing.T) {
	h := NewHost(layout.US, Windows)
	require.NoError(t, h.SendKey(hid.KeyA, true))
	require.NoError(t, h.RegisterMods(hid.ModLeftShift))
	assert.Equal(t, []hid.Keycode{hid.KeyA}, h.HeldKeys())
	assert.Equal(t, hid.ModLeftShift, h.Mods())
	assert.Empty(t, h.Text(), "nothing is visible before a flush")

	require.NoError(t, h.Flush())
	assert.Equal(t, "A", h.Text())
	assert.Equal(t, 1, h.Count(KeyDown, hid.KeyA))
}

func TestHostFailSends(t *testing.T) {
	h := NewHost(layout.US, Windows)
	h.FailSends(true)
	assert.ErrorIs(t, h.SendKey(hid.KeyA, true), ErrInjected)
	assert.Len(t, h.Actions(), 1)
	h.Reset()
	assert.Empty(t, h.Actions())
}
