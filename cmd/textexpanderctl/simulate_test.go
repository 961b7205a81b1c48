package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textexpander/internal/config"
	"textexpander/internal/dictionary"
	"textexpander/internal/expansion"
	"textexpander/internal/trie"
)

func testDict(t *testing.T) *trie.Trie {
	t.Helper()
	dict, _, err := dictionary.Build(&dictionary.Source{Expansions: []dictionary.Entry{
		{ShortCode: "tm", Text: "tomorrow"},
		{ShortCode: "cf", Text: "café"},
	}})
	require.NoError(t, err)
	return dict
}

func newTestSimulation(t *testing.T, target expansion.OS) *simulation {
	t.Helper()
	s, err := newSimulation(config.DefaultConfig(), testDict(t), target, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestSimulateAutoExpand(t *testing.T) {
	s := newTestSimulation(t, expansion.OSWindows)
	require.NoError(t, s.Type("tm "))
	assert.Equal(t, "tomorrow ", s.host.Text())
}

func TestSimulateManualTrigger(t *testing.T) {
	s := newTestSimulation(t, expansion.OSWindows)
	require.NoError(t, s.Type("tm<trigger>"))
	assert.Equal(t, "tomorrow", s.host.Text())
}

func TestSimulateUndo(t *testing.T) {
	s := newTestSimulation(t, expansion.OSWindows)
	require.NoError(t, s.Type("tm <undo>"))
	assert.Equal(t, "tm", s.host.Text())
}

func TestSimulateUnicodePerOS(t *testing.T) {
	for _, target := range []expansion.OS{expansion.OSWindows, expansion.OSMacOS, expansion.OSLinux} {
		t.Run(target.String(), func(t *testing.T) {
			s := newTestSimulation(t, target)
			require.NoError(t, s.Type("cf "))
			assert.Equal(t, "café ", s.host.Text())
		})
	}
}

func TestSimulateShiftedInput(t *testing.T) {
	s := newTestSimulation(t, expansion.OSWindows)
	require.NoError(t, s.Type("Hi<enter>"))
	assert.Equal(t, "Hi\n", s.host.Text())
}

func TestSimulateUnknownKey(t *testing.T) {
	s := newTestSimulation(t, expansion.OSWindows)
	assert.Error(t, s.Type("<nope>"))
}

func TestDisplayText(t *testing.T) {
	in := []byte{trie.OpSelectLinux}
	in = append(in, "é\n"...)
	assert.Equal(t, `{{cmd:linux}}é\n`, displayText(in))
	assert.Equal(t, `\xff`, displayText([]byte{0xff}))
}

func TestReorderFlags(t *testing.T) {
	assert.Equal(t, []string{"-o", "out.json", "src.toml"}, reorder([]string{"src.toml", "-o", "out.json"}))
	assert.Equal(t, []string{"-trace", "-os=linux", "d.toml", "tm "}, reorder([]string{"d.toml", "-trace", "tm ", "-os=linux"}))
}
