package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("json: %v %v", f, err)
	}
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("text: %v %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestLevelString(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		back, err := ParseLevel(LevelString(l))
		if err != nil || back != l {
			t.Errorf("round trip of %v gave %v, %v", l, back, err)
		}
	}
}

func newBuffered(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf
	cfg.Format = FormatJSON
	cfg.Level = LevelDebug
	if mutate != nil {
		mutate(cfg)
	}
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("bad JSON %q: %v", buf.String(), err)
	}
	return entry
}

func TestTypedTextRedacted(t *testing.T) {
	l, buf := newBuffered(t, nil)
	l.Info("expanded", "short_code", "brb", "text", "be right back", "deleted", 4)

	entry := decode(t, buf)
	if entry["short_code"] != "[3 chars]" {
		t.Errorf("short_code = %v", entry["short_code"])
	}
	if entry["text"] != "[13 chars]" {
		t.Errorf("text = %v", entry["text"])
	}
	if entry["deleted"] != float64(4) {
		t.Errorf("non-text attribute altered: %v", entry["deleted"])
	}
	if entry["component"] != "textexpanderd" {
		t.Errorf("component = %v", entry["component"])
	}
}

func TestShowText(t *testing.T) {
	l, buf := newBuffered(t, func(c *Config) { c.ShowText = true })
	l.Info("expanded", "short_code", "brb")

	if decode(t, buf)["short_code"] != "brb" {
		t.Error("text redacted despite ShowText")
	}
}

func TestLevelFilter(t *testing.T) {
	l, buf := newBuffered(t, func(c *Config) { c.Level = LevelWarn })
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %s", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn not logged")
	}
}

func TestWithComponent(t *testing.T) {
	l, buf := newBuffered(t, nil)
	l.WithComponent("watcher").Info("reloaded")
	if !strings.Contains(buf.String(), `"component":"watcher"`) {
		t.Errorf("component missing: %s", buf.String())
	}
}

func TestRunContext(t *testing.T) {
	if RunFromContext(nil) != "" { //nolint:staticcheck
		t.Error("nil context should have no run")
	}
	if RunFromContext(context.Background()) != "" {
		t.Error("empty context should have no run")
	}

	ctx := ContextWithRun(context.Background(), "run-7")
	if RunFromContext(ctx) != "run-7" {
		t.Error("run ID not carried")
	}

	l, buf := newBuffered(t, nil)
	l.WithContext(ctx).Info("step")
	if decode(t, buf)["run"] != "run-7" {
		t.Errorf("run attribute missing: %s", buf.String())
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "d.log")
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = path

	l, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("to file")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("file content: %s", data)
	}
}

func TestFileRotatorSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.log")
	cfg := DefaultConfig()
	cfg.FilePath = path
	cfg.Compress = false
	cfg.MaxBackups = 2

	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	r.maxBytes = 16

	for i := 0; i < 5; i++ {
		if _, err := r.Write([]byte("0123456789abc\n")); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	backups, err := r.Backups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Errorf("expected 2 backups after pruning, got %v", backups)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "0123456789abc\n" {
		t.Errorf("current file = %q", data)
	}
}

func TestFileRotatorDaily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.log")
	cfg := DefaultConfig()
	cfg.FilePath = path

	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	r.now = func() time.Time { return day }
	r.opened = day

	r.Write([]byte("monday\n"))
	day = day.Add(2 * time.Minute)
	r.Write([]byte("tuesday\n"))
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	backups, _ := r.Backups()
	if len(backups) != 1 || !strings.HasSuffix(backups[0], ".gz") {
		t.Fatalf("expected one compressed backup, got %v", backups)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "tuesday\n" {
		t.Errorf("current file = %q", data)
	}
}

func TestCrashHandlerGuard(t *testing.T) {
	dir := t.TempDir()
	l, buf := newBuffered(t, nil)
	h := NewCrashHandler(CrashHandlerConfig{
		Dir:     dir,
		Version: "test",
		Logger:  l.Logger,
		State:   func() map[string]any { return map[string]any{"queued": 3} },
	})

	err := h.Guard("coordinator", func() error { panic("boom") })
	if !errors.Is(err, ErrPanicked) {
		t.Fatalf("expected ErrPanicked, got %v", err)
	}
	if !strings.Contains(buf.String(), "worker panicked") {
		t.Errorf("panic not logged: %s", buf.String())
	}

	reports, err := h.Reports()
	if err != nil || len(reports) != 1 {
		t.Fatalf("reports = %v, %v", reports, err)
	}
	r := reports[0]
	if r.Worker != "coordinator" || r.PanicValue != "boom" || r.Version != "test" {
		t.Errorf("report = %+v", r)
	}
	if r.State["queued"] != float64(3) {
		t.Errorf("state = %v", r.State)
	}
}

func TestCrashHandlerPassesErrors(t *testing.T) {
	h := NewCrashHandler(CrashHandlerConfig{})
	want := errors.New("plain")
	if err := h.Guard("w", func() error { return want }); err != want {
		t.Errorf("got %v", err)
	}
	if err := <-h.Go("w", func() error { return nil }); err != nil {
		t.Errorf("got %v", err)
	}
	if err := <-h.Go("w", func() error { panic(1) }); !errors.Is(err, ErrPanicked) {
		t.Errorf("got %v", err)
	}
}

func TestCrashHandlerCleanupOld(t *testing.T) {
	dir := t.TempDir()
	h := NewCrashHandler(CrashHandlerConfig{Dir: dir})
	h.Guard("w", func() error { panic("old") })

	files, _ := filepath.Glob(filepath.Join(dir, "crash-*.json"))
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
	past := time.Now().Add(-48 * time.Hour)
	os.Chtimes(files[0], past, past)

	if err := h.CleanupOldCrashReports(24 * time.Hour); err != nil {
		t.Fatal(err)
	}
	files, _ = filepath.Glob(filepath.Join(dir, "crash-*.json"))
	if len(files) != 0 {
		t.Errorf("old report kept: %v", files)
	}
}
