package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"textexpander/internal/expansion"
	"textexpander/internal/hid"
	"textexpander/internal/layout"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Limits accepted by validation.
const (
	MinTypingDelayMs = 1
	MaxTypingDelayMs = 1000
	MinShortLen      = 2
	MaxShortLen      = 255
	MaxQueueSize     = 1024
)

// ValidateConfig performs comprehensive validation of the configuration.
// Only error-level findings are returned; call Check for warnings too.
func ValidateConfig(c *Config) error {
	errs := Check(c).Errors()
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Check returns every finding, warnings included.
func Check(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateExpander(&c.Expander)...)
	errs = append(errs, validateDictionary(&c.Dictionary)...)
	errs = append(errs, validateJournal(&c.Journal)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	return errs
}

func validateExpander(e *ExpanderConfig) ValidationErrors {
	var errs ValidationErrors

	lists := []struct {
		field string
		names []string
	}{
		{"expander.reset_keycodes", e.ResetKeys},
		{"expander.auto_expand_keycodes", e.AutoExpandKeys},
		{"expander.undo_keycodes", e.UndoKeys},
		{"expander.ignore_keycodes", e.IgnoreKeys},
		{"expander.trigger_keycodes", e.TriggerKeys},
	}
	owner := make(map[hid.Keycode]string)
	for _, l := range lists {
		for _, name := range l.names {
			k, err := hid.ParseKeycode(name)
			if err != nil {
				errs = append(errs, ValidationError{Field: l.field, Message: err.Error()})
				continue
			}
			if prev, dup := owner[k]; dup && prev != l.field {
				errs = append(errs, ValidationError{
					Field:   l.field,
					Message: fmt.Sprintf("key %s is already bound in %s", k, prev),
				})
				continue
			}
			owner[k] = l.field
		}
	}

	if e.TypingDelayMs < MinTypingDelayMs || e.TypingDelayMs > MaxTypingDelayMs {
		errs = append(errs, *RangeError("expander.typing_delay_ms", MinTypingDelayMs, MaxTypingDelayMs))
	}

	if e.MaxShortLen != 0 && (e.MaxShortLen < MinShortLen || e.MaxShortLen > MaxShortLen) {
		errs = append(errs, ValidationError{
			Field:   "expander.max_short_len",
			Message: fmt.Sprintf("must be 0 (use dictionary) or between %d and %d", MinShortLen, MaxShortLen),
		})
	}

	if e.EventQueueSize < 1 || e.EventQueueSize > MaxQueueSize {
		errs = append(errs, *RangeError("expander.event_queue_size", 1, MaxQueueSize))
	}

	if _, err := expansion.ParseOS(e.DefaultOS); err != nil {
		errs = append(errs, ValidationError{
			Field:   "expander.default_os",
			Message: fmt.Sprintf("invalid OS: %s (valid: windows, macos, linux)", e.DefaultOS),
		})
	}

	if _, err := layout.ByName(e.Layout); err != nil {
		errs = append(errs, ValidationError{
			Field:   "expander.layout",
			Message: err.Error(),
		})
	}

	return errs
}

func validateDictionary(d *DictionaryConfig) ValidationErrors {
	var errs ValidationErrors

	if d.Path == "" {
		errs = append(errs, *RequiredFieldError("dictionary.path"))
		return errs
	}

	if _, err := os.Stat(expandPath(d.Path)); err != nil {
		errs = append(errs, ValidationError{
			Field:   "dictionary.path",
			Message: fmt.Sprintf("not readable: %v", err),
		})
	}

	if d.Watch && d.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "dictionary.debounce_ms",
			Message: "debounce must not be negative",
		})
	}

	return errs
}

func validateJournal(j *JournalConfig) ValidationErrors {
	var errs ValidationErrors

	if !j.Enabled {
		return errs
	}

	if j.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "journal.path",
			Message: "journal path is required when the journal is enabled",
		})
	}

	if j.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "journal.busy_timeout_ms",
			Message: "busy timeout must not be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors
	if !m.Enabled {
		return errs
	}
	if _, port, err := net.SplitHostPort(m.Listen); err != nil || port == "" {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen",
			Message: fmt.Sprintf("listen address must be host:port, got %q", m.Listen),
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[lower(l.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[lower(l.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format: %s (valid: text, json)", l.Format),
		})
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true, "both": true}
	if !validOutputs[lower(l.Output)] {
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if (l.Output == "file" || l.Output == "both") && l.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "file path is required when output is file",
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups must not be negative",
		})
	}

	return errs
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	// The dictionary may be created after the daemon starts watching.
	warningFields := []string{
		"dictionary.path",
	}
	for _, f := range warningFields {
		if e.Field == f && e.Message != "required field is missing" {
			return true
		}
	}
	return false
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")
