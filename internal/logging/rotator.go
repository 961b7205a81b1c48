package logging

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileRotator is an io.Writer over a log file that rotates on size or at
// the first write of a new day. Rotated files are optionally gzipped and
// pruned by count and age in the background.
type FileRotator struct {
	path       string
	maxBytes   int64
	maxBackups int
	maxAge     time.Duration
	compress   bool

	now func() time.Time

	mu      sync.Mutex
	pruneMu sync.Mutex
	file    *os.File
	size    int64
	opened  time.Time
	pending sync.WaitGroup
}

// NewFileRotator creates a FileRotator for cfg.FilePath.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	r := &FileRotator{
		path:       cfg.FilePath,
		maxBytes:   cfg.MaxSizeMB * 1024 * 1024,
		maxBackups: cfg.MaxBackups,
		maxAge:     time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		compress:   cfg.Compress,
		now:        time.Now,
	}
	if r.maxBytes <= 0 {
		r.maxBytes = 10 * 1024 * 1024
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) open() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file = file
	r.size = info.Size()
	r.opened = r.now()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}

	if r.due(int64(len(p))) {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *FileRotator) due(next int64) bool {
	if r.size > 0 && r.size+next > r.maxBytes {
		return true
	}
	y1, m1, d1 := r.opened.Date()
	y2, m2, d2 := r.now().Date()
	return r.size > 0 && (y1 != y2 || m1 != m2 || d1 != d2)
}

func (r *FileRotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	r.file = nil

	rotated := r.backupName(r.now())
	if err := os.Rename(r.path, rotated); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("rename log file: %w", err)
	}

	if err := r.open(); err != nil {
		return err
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		if r.compress {
			compressFile(rotated)
		}
		r.prune()
	}()
	return nil
}

// backupName returns a unique rotated file name for t.
func (r *FileRotator) backupName(t time.Time) string {
	dir, name, ext := r.parts()
	stamp := t.Format("20060102-150405.000000000")
	candidate := filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, stamp, ext))
	for i := 1; exists(candidate) || exists(candidate+".gz"); i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%s.%d%s", name, stamp, i, ext))
	}
	return candidate
}

func (r *FileRotator) parts() (dir, name, ext string) {
	base := filepath.Base(r.path)
	ext = filepath.Ext(base)
	return filepath.Dir(r.path), strings.TrimSuffix(base, ext), ext
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func compressFile(path string) {
	input, err := os.Open(path)
	if err != nil {
		return
	}
	defer input.Close()

	output, err := os.Create(path + ".gz")
	if err != nil {
		return
	}

	gz := gzip.NewWriter(output)
	gz.Name = filepath.Base(path)

	_, err = io.Copy(gz, input)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := output.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

// prune removes rotated files beyond MaxBackups or older than MaxAge.
// Backup names embed the rotation time, so name order is age order.
func (r *FileRotator) prune() {
	r.pruneMu.Lock()
	defer r.pruneMu.Unlock()

	backups, err := r.Backups()
	if err != nil {
		return
	}

	type aged struct {
		path string
		mod  time.Time
	}
	files := make([]aged, 0, len(backups))
	for _, b := range backups {
		info, err := os.Stat(b)
		if err != nil {
			continue
		}
		files = append(files, aged{b, info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return strings.TrimSuffix(files[i].path, ".gz") > strings.TrimSuffix(files[j].path, ".gz")
	})

	cutoff := r.now().Add(-r.maxAge)
	for i, f := range files {
		if (r.maxBackups > 0 && i >= r.maxBackups) || (r.maxAge > 0 && f.mod.Before(cutoff)) {
			os.Remove(f.path)
		}
	}
}

// Backups lists rotated log files, compressed or not.
func (r *FileRotator) Backups() ([]string, error) {
	dir, name, ext := r.parts()
	return filepath.Glob(filepath.Join(dir, name+"-*"+ext+"*"))
}

// Close waits for background compression and closes the file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending.Wait()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// Sync flushes any buffered data to the file.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}
