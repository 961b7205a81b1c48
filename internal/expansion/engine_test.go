package expansion

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textexpander/internal/hid"
	"textexpander/internal/jitter"
	"textexpander/internal/layout"
	"textexpander/internal/sched"
	"textexpander/internal/simulate"
	"textexpander/internal/trie"
)

type rig struct {
	engine *Engine
	host   *simulate.Host
	clock  *sched.Virtual
	done   []Summary
}

func platformFor(os OS) simulate.Platform {
	switch os {
	case OSMacOS:
		return simulate.MacOS
	case OSLinux:
		return simulate.Linux
	}
	return simulate.Windows
}

func newRig(t *testing.T, os OS, lay layout.Layout) *rig {
	t.Helper()
	r := &rig{
		host:  simulate.NewHost(lay, platformFor(os)),
		clock: sched.NewVirtual(time.Unix(0, 0)),
	}
	opts := Options{
		OS:     os,
		Jitter: jitter.Fixed(),
		OnIdle: func(s Summary) { r.done = append(r.done, s) },
	}
	r.engine = NewEngine(opts, r.host, lay, r.clock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return r
}

// runUntil steps the clock until cond holds.
func (r *rig) runUntil(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		if cond() {
			return
		}
		require.Equal(t, 1, r.clock.RunUntilIdle(1), "engine went idle before condition held")
	}
	t.Fatal("condition never held")
}

func (r *rig) finish(t *testing.T) Summary {
	t.Helper()
	r.clock.RunUntilIdle(100000)
	require.False(t, r.engine.Active())
	require.NotEmpty(t, r.done)
	return r.done[len(r.done)-1]
}

func TestHandlerTableComplete(t *testing.T) {
	table := newHandlerTable()
	for s := State(0); s < numStates; s++ {
		assert.NotNil(t, table[s], "state %s has no handler", s)
		assert.NotEmpty(t, stateNames[s])
	}
	assert.Equal(t, "state(99)", State(99).String())
}

func TestReplacementWithReplayKey(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.host.Type("tm")

	r.engine.Start([]byte("tomorrow"), 2, hid.KeySpace)
	sum := r.finish(t)

	assert.Equal(t, "tomorrow ", r.host.Text())
	assert.Equal(t, 2, r.host.Count(simulate.KeyDown, hid.KeyBackspace))
	assert.Equal(t, Summary{Typed: 8, Deleted: 2, Replayed: true}, sum)

	acts := r.host.Actions()
	assert.Equal(t, simulate.Action{Kind: simulate.KeyUp, Key: hid.KeySpace}, acts[len(acts)-1])
	assert.Empty(t, r.host.HeldKeys())
	assert.Zero(t, r.host.Mods())
}

func TestCompletionTypesRemainder(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.host.Type("to")

	r.engine.Start([]byte("morrow"), 0, hid.None)
	sum := r.finish(t)

	assert.Equal(t, "tomorrow", r.host.Text())
	assert.Zero(t, r.host.Count(simulate.KeyDown, hid.KeyBackspace))
	assert.Equal(t, 6, sum.Typed)
	assert.False(t, sum.Replayed)
}

func TestShiftedCharacters(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("Hi, World!"), 0, hid.None)
	r.finish(t)
	assert.Equal(t, "Hi, World!", r.host.Text())
	assert.Zero(t, r.host.Mods())
}

func TestUnicodeDrivers(t *testing.T) {
	tests := []struct {
		os     OS
		text   string
		digits string
	}{
		{OSWindows, "café", "233"},
		{OSMacOS, "café", "00e9"},
		{OSLinux, "café", "e9"},
		{OSMacOS, "😀", "1f600"},
		{OSWindows, "😀", "128512"},
		{OSLinux, "€", "20ac"},
	}
	for _, tt := range tests {
		t.Run(tt.os.String()+"/"+tt.text, func(t *testing.T) {
			r := newRig(t, tt.os, layout.US)
			r.engine.Start([]byte(tt.text), 0, hid.None)

			r.runUntil(t, func() bool { return r.engine.State() == DriverFor(tt.os).First() })
			assert.Equal(t, tt.digits, r.engine.Snapshot().Digits)

			sum := r.finish(t)
			assert.Equal(t, tt.text, r.host.Text())
			assert.Equal(t, len([]rune(tt.text)), sum.Typed)
			assert.Empty(t, r.host.HeldKeys())
			assert.Zero(t, r.host.Mods())
		})
	}
}

func TestMultiByteCharacterDecodedOnce(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("é!"), 0, hid.None)

	r.runUntil(t, func() bool { return r.engine.State() == StateUnicodeStart })
	snap := r.engine.Snapshot()
	assert.Equal(t, 2, snap.Cursor)
	assert.Equal(t, 'é', snap.Codepoint)

	r.finish(t)
	alt := 0
	for _, a := range r.host.Actions() {
		if a.Kind == simulate.ModsDown && a.Mods == hid.ModLeftAlt {
			alt++
		}
	}
	assert.Equal(t, 1, alt)
	assert.Equal(t, "é!", r.host.Text())
}

func TestUnmappedASCIIUsesUnicodePath(t *testing.T) {
	r := newRig(t, OSWindows, layout.German)
	r.engine.Start([]byte("a^b"), 0, hid.None)
	r.finish(t)
	assert.Equal(t, "a^b", r.host.Text())
	assert.Equal(t, 1, r.host.Count(simulate.KeyDown, hid.KeyKp9))
	assert.Equal(t, 1, r.host.Count(simulate.KeyDown, hid.KeyKp4))
}

func TestLinuxHexDigitsFollowLayout(t *testing.T) {
	r := newRig(t, OSLinux, layout.French)
	r.engine.Start([]byte("ß"), 0, hid.None)
	r.finish(t)
	// ß is U+00DF: "df" needs no shift, but French digits would.
	assert.Equal(t, "ß", r.host.Text())

	r2 := newRig(t, OSLinux, layout.French)
	r2.engine.Start([]byte("€"), 0, hid.None)
	r2.finish(t)
	assert.Equal(t, "€", r2.host.Text())
	assert.Zero(t, r2.host.Mods())
}

func TestInvalidBytesSkipped(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("a\xffb\x05c"), 0, hid.None)
	sum := r.finish(t)
	assert.Equal(t, "abc", r.host.Text())
	assert.Equal(t, 3, sum.Typed)
}

func TestLiteralBlockTypedVerbatim(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("x{{{{{cmd:linux}}}}}y"), 0, hid.None)
	r.finish(t)
	assert.Equal(t, "x{{cmd:linux}}y", r.host.Text())
	assert.Equal(t, OSWindows, r.engine.OS())
}

func TestUnclosedLiteralTypedAsText(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("{{{ab"), 0, hid.None)
	r.finish(t)
	assert.Equal(t, "{{{ab", r.host.Text())
}

func TestRuntimeCommandSwitchesDriver(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.host = simulate.NewHost(layout.US, simulate.MacOS)
	r.engine.sender = r.host

	r.engine.Start([]byte("{{cmd:mac}}é{{cmd:bogus}}"), 0, hid.None)
	r.finish(t)
	assert.Equal(t, "é", r.host.Text())
	assert.Equal(t, OSMacOS, r.engine.OS())
}

func TestOpcodeSwitchesDriver(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte{trie.OpSelectLinux, 'o', 'k'}, 0, hid.None)
	sum := r.finish(t)
	assert.Equal(t, OSLinux, r.engine.OS())
	assert.Equal(t, 2, sum.Typed)
	assert.Equal(t, "ok", r.host.Text())
}

func TestCodepointZeroEmitsNoDigits(t *testing.T) {
	for _, os := range []OS{OSWindows, OSMacOS, OSLinux} {
		assert.Empty(t, DriverFor(os).Render(nil, 0), os.String())
	}

	r := newRig(t, OSWindows, layout.US)
	r.engine.job = Job{state: StateUnicodeStart}
	r.engine.work.Schedule(0)
	r.finish(t)
	for _, a := range r.host.Actions() {
		assert.NotEqual(t, simulate.KeyDown, a.Kind, "unexpected key %s", a)
	}
	assert.Zero(t, r.host.Mods())
}

func TestCancelPartialUndoAfterTyping(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("hello"), 0, hid.None)
	r.runUntil(t, func() bool {
		s := r.engine.Snapshot()
		return s.Typed == 2 && s.State == StateTypeCharStart
	})

	r.engine.Cancel(true)
	snap := r.engine.Snapshot()
	assert.Equal(t, StateStartBackspace, snap.State)
	assert.Equal(t, 2, snap.Backspaces)
	assert.Empty(t, snap.Text)

	sum := r.finish(t)
	assert.Equal(t, "", r.host.Text())
	assert.Equal(t, 2, sum.Deleted)
	assert.False(t, sum.Cancelled)
}

func TestCancelMidKeyPressCountsCharacter(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("hello"), 0, hid.None)
	r.runUntil(t, func() bool {
		s := r.engine.Snapshot()
		return s.Typed == 2 && s.State == StateTypeCharKeyRelease
	})
	require.Equal(t, []hid.Keycode{hid.KeyL}, r.host.HeldKeys())

	r.engine.Cancel(true)
	assert.Empty(t, r.host.HeldKeys())
	assert.Equal(t, 3, r.engine.Snapshot().Backspaces)

	r.finish(t)
	assert.Equal(t, "", r.host.Text())
}

func TestCancelDuringReplayRemovesTriggerKey(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("hi"), 0, hid.KeySpace)
	r.runUntil(t, func() bool { return r.engine.State() == StateReplayKeyRelease })
	require.Equal(t, "hi ", r.host.Text())
	require.Equal(t, []hid.Keycode{hid.KeySpace}, r.host.HeldKeys())

	r.engine.Cancel(true)
	assert.Empty(t, r.host.HeldKeys())
	assert.Equal(t, 3, r.engine.Snapshot().Backspaces)

	r.finish(t)
	assert.Equal(t, "", r.host.Text())
}

func TestCancelWithoutUndo(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("hello"), 0, hid.None)
	r.runUntil(t, func() bool { return r.engine.Snapshot().Typed == 3 })

	r.engine.Cancel(false)
	assert.False(t, r.engine.Active())
	require.Len(t, r.done, 1)
	assert.True(t, r.done[0].Cancelled)
	assert.Equal(t, 3, r.done[0].Typed)
	assert.Zero(t, r.clock.Pending())
	assert.Equal(t, "hel", r.host.Text())
}

func TestPartialUndoWithNothingTypedGoesIdle(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.host.Type("abc")
	r.engine.Start([]byte("xyz"), 3, hid.None)
	r.runUntil(t, func() bool { return r.engine.Snapshot().Deleted == 1 })

	r.engine.Cancel(true)
	assert.False(t, r.engine.Active())
	assert.Equal(t, "ab", r.host.Text())
	assert.Empty(t, r.host.HeldKeys())
}

func TestCancelReleasesUnicodeModifiers(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("é"), 0, hid.None)
	r.runUntil(t, func() bool { return r.engine.State() == StateWinNumpadRelease })
	require.NotZero(t, r.host.Mods())
	require.NotEmpty(t, r.host.HeldKeys())

	r.engine.Cancel(false)
	assert.Zero(t, r.host.Mods())
	assert.Empty(t, r.host.HeldKeys())
	assert.False(t, r.engine.Active())
}

func TestCancelIdleIsNoop(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Cancel(false)
	r.engine.Cancel(true)
	assert.Empty(t, r.host.Actions())
	assert.Empty(t, r.done)
	assert.False(t, r.engine.Active())
}

func TestStartCancelsRunningJob(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.engine.Start([]byte("abcdef"), 0, hid.None)
	r.runUntil(t, func() bool { return r.engine.Snapshot().Typed == 2 })

	r.engine.Start([]byte("xy"), 0, hid.None)
	r.finish(t)
	require.Len(t, r.done, 2)
	assert.True(t, r.done[0].Cancelled)
	assert.Equal(t, "abxy", r.host.Text())
}

func TestUnknownStateForcesIdle(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	require.NoError(t, r.host.SendKey(hid.KeyA, true))
	r.engine.job = Job{state: numStates + 3, heldKey: hid.KeyA}

	r.engine.run()
	assert.Equal(t, StateIdle, r.engine.State())
	assert.Empty(t, r.host.HeldKeys())
	require.Len(t, r.done, 1)
	assert.True(t, r.done[0].Cancelled)
}

func TestStepTiming(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.host.Type("x")
	r.engine.Start([]byte("y"), 1, hid.None)

	r.clock.Advance(9 * time.Millisecond)
	assert.Empty(t, r.host.Actions())

	r.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, r.host.Count(simulate.KeyDown, hid.KeyBackspace))
	assert.Zero(t, r.host.Count(simulate.KeyUp, hid.KeyBackspace))

	r.clock.Advance(4 * time.Millisecond)
	assert.Zero(t, r.host.Count(simulate.KeyUp, hid.KeyBackspace))
	r.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, r.host.Count(simulate.KeyUp, hid.KeyBackspace))

	r.finish(t)
	assert.Equal(t, "y", r.host.Text())
}

func TestSendFailuresDoNotStall(t *testing.T) {
	r := newRig(t, OSWindows, layout.US)
	r.host.FailSends(true)
	r.engine.Start([]byte("ok"), 0, hid.KeyEnter)
	sum := r.finish(t)
	assert.Equal(t, 2, sum.Typed)
	assert.True(t, sum.Replayed)
}

func TestParseOS(t *testing.T) {
	for in, want := range map[string]OS{"win": OSWindows, "Darwin": OSMacOS, " linux ": OSLinux, "mac": OSMacOS} {
		got, err := ParseOS(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseOS("beos")
	assert.Error(t, err)
}
