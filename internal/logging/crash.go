package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// ErrPanicked is wrapped by Guard when the guarded function panics.
var ErrPanicked = errors.New("panic recovered")

// CrashReport describes a recovered panic.
type CrashReport struct {
	Timestamp    time.Time      `json:"timestamp"`
	Version      string         `json:"version"`
	GOOS         string         `json:"goos"`
	GOARCH       string         `json:"goarch"`
	NumGoroutine int            `json:"num_goroutine"`
	Worker       string         `json:"worker"`
	PanicValue   string         `json:"panic_value"`
	StackTrace   string         `json:"stack_trace"`
	State        map[string]any `json:"state,omitempty"`
}

// CrashHandler recovers panics in daemon goroutines, writes a JSON report
// and logs it.
type CrashHandler struct {
	mu      sync.Mutex
	dir     string
	version string
	logger  *slog.Logger
	state   func() map[string]any
	seq     int
}

// CrashHandlerConfig configures the crash handler.
type CrashHandlerConfig struct {
	// Dir receives crash-*.json reports. Empty disables dumps.
	Dir string

	Version string
	Logger  *slog.Logger

	// State is sampled into each report, typically the coordinator snapshot.
	State func() map[string]any
}

// DefaultCrashDir returns the platform-specific default crash directory.
func DefaultCrashDir() string {
	return filepath.Join(filepath.Dir(defaultLogPath()), "crashes")
}

// NewCrashHandler creates a new CrashHandler.
func NewCrashHandler(cfg CrashHandlerConfig) *CrashHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir != "" {
		os.MkdirAll(cfg.Dir, 0750)
	}
	return &CrashHandler{
		dir:     cfg.Dir,
		version: cfg.Version,
		logger:  logger,
		state:   cfg.State,
	}
}

// Guard runs fn and converts a panic into an error wrapping ErrPanicked.
func (h *CrashHandler) Guard(worker string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			report := h.HandlePanic(worker, r)
			err = fmt.Errorf("%s: %w: %s", worker, ErrPanicked, report.PanicValue)
		}
	}()
	return fn()
}

// Go runs fn on a new goroutine under Guard, delivers its result on the
// returned channel and then closes it.
func (h *CrashHandler) Go(worker string, fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- h.Guard(worker, fn)
		close(done)
	}()
	return done
}

// HandlePanic records a recovered panic value.
func (h *CrashHandler) HandlePanic(worker string, value any) CrashReport {
	report := CrashReport{
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		Worker:       worker,
		PanicValue:   fmt.Sprint(value),
		StackTrace:   string(debug.Stack()),
	}
	if h.state != nil {
		func() {
			// A broken state sampler must not mask the original panic.
			defer func() { recover() }()
			report.State = h.state()
		}()
	}

	h.mu.Lock()
	path, err := h.write(report)
	h.mu.Unlock()

	attrs := []any{"worker", worker, "panic", report.PanicValue}
	if path != "" {
		attrs = append(attrs, "report", path)
	}
	if err != nil {
		attrs = append(attrs, "report_error", err)
	}
	h.logger.Error("worker panicked", attrs...)
	return report
}

func (h *CrashHandler) write(report CrashReport) (string, error) {
	if h.dir == "" {
		return "", nil
	}
	h.seq++
	name := fmt.Sprintf("crash-%s-%s-%d.json",
		report.Worker, report.Timestamp.Format("20060102-150405"), h.seq)
	path := filepath.Join(h.dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Reports returns stored crash reports, oldest first.
func (h *CrashHandler) Reports() ([]CrashReport, error) {
	if h.dir == "" {
		return nil, nil
	}
	files, err := filepath.Glob(filepath.Join(h.dir, "crash-*.json"))
	if err != nil {
		return nil, err
	}

	reports := make([]CrashReport, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var report CrashReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Timestamp.Before(reports[j].Timestamp)
	})
	return reports, nil
}

// CleanupOldCrashReports removes crash reports older than maxAge.
func (h *CrashHandler) CleanupOldCrashReports(maxAge time.Duration) error {
	if h.dir == "" {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(h.dir, "crash-*.json"))
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
		}
	}
	return nil
}
