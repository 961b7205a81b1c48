package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string, debounce time.Duration) *Watcher {
	t.Helper()
	w, err := New([]string{path}, debounce)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.toml")
	require.NoError(t, os.WriteFile(path, []byte("test content for hashing"), 0600))

	h1, size, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(24), size)

	h2, _, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(path, []byte("different content"), 0600))
	h3, _, err := HashFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	_, _, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestInitialHashRecorded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.toml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0600))

	w := startWatcher(t, path, 20*time.Millisecond)

	want, _, _ := HashFile(path)
	got, ok := w.Hash(path)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Len(t, w.WatchedPaths(), 1)
	assert.True(t, filepath.IsAbs(w.WatchedPaths()[0]))
}

func TestChangeReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.toml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0600))

	w := startWatcher(t, path, 20*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("new content"), 0600))

	select {
	case ev := <-w.Events():
		assert.Equal(t, path, ev.Path)
		assert.Equal(t, int64(11), ev.Size)
		want, _, _ := HashFile(path)
		assert.Equal(t, want, ev.Hash)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestIdenticalRewriteIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.toml")
	require.NoError(t, os.WriteFile(path, []byte("same"), 0600))

	w := startWatcher(t, path, 20*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("same"), 0600))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestBurstDebounced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.toml")
	require.NoError(t, os.WriteFile(path, []byte("v"), 0600))

	w := startWatcher(t, path, 300*time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{'v', byte('0' + i)}, 0600))
		time.Sleep(20 * time.Millisecond)
	}

	count := 0
	timeout := time.After(1500 * time.Millisecond)
	for done := false; !done; {
		select {
		case ev := <-w.Events():
			count++
			assert.Equal(t, int64(2), ev.Size)
		case <-timeout:
			done = true
		}
	}
	assert.Equal(t, 1, count)
}

func TestRenameSaveReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.toml")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0600))

	w := startWatcher(t, path, 20*time.Millisecond)

	tmp := filepath.Join(dir, ".dict.toml.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("after rename"), 0600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case ev := <-w.Events():
		assert.Equal(t, int64(12), ev.Size)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestFileCreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.toml")
	w := startWatcher(t, path, 20*time.Millisecond)

	_, ok := w.Hash(path)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("fresh"), 0600))
	select {
	case ev := <-w.Events():
		assert.Equal(t, path, ev.Path)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestOtherFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.toml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	w := startWatcher(t, path, 20*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("y"), 0600))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestStopClosesChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.toml")
	w, err := New([]string{path}, 0)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}
