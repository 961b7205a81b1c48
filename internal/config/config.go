// Package config handles configuration loading, validation, and management for textexpander.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"textexpander/internal/expander"
	"textexpander/internal/expansion"
	"textexpander/internal/hid"
	"textexpander/internal/jitter"
	"textexpander/internal/layout"
	"textexpander/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TEXTEXPANDER_"

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Expander holds key bindings and typing behaviour.
	Expander ExpanderConfig `toml:"expander" json:"expander" yaml:"expander"`

	// Dictionary locates the short-code dictionary.
	Dictionary DictionaryConfig `toml:"dictionary" json:"dictionary" yaml:"dictionary"`

	// Journal configures the expansion history database.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// Device configures the host keyboard source and sink.
	Device DeviceConfig `toml:"device" json:"device" yaml:"device"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configures the HTTP metrics and health endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// ExpanderConfig holds the coordinator and typing configuration. Keys are
// names ("space", "enter", "f12") or numeric HID usages ("0x2c").
type ExpanderConfig struct {
	ResetKeys      []string `toml:"reset_keycodes" json:"reset_keycodes" yaml:"reset_keycodes"`
	AutoExpandKeys []string `toml:"auto_expand_keycodes" json:"auto_expand_keycodes" yaml:"auto_expand_keycodes"`
	UndoKeys       []string `toml:"undo_keycodes" json:"undo_keycodes" yaml:"undo_keycodes"`
	IgnoreKeys     []string `toml:"ignore_keycodes" json:"ignore_keycodes" yaml:"ignore_keycodes"`

	// TriggerKeys fire the manual trigger. They are consumed by the
	// listener and never reach the short-code buffer.
	TriggerKeys []string `toml:"trigger_keycodes" json:"trigger_keycodes" yaml:"trigger_keycodes"`

	// TypingDelayMs is the base delay between synthetic key actions.
	TypingDelayMs int `toml:"typing_delay_ms" json:"typing_delay_ms" yaml:"typing_delay_ms"`

	// Jitter randomizes each delay by up to half its base.
	Jitter bool `toml:"jitter" json:"jitter" yaml:"jitter"`

	// MaxShortLen is the short-code buffer capacity. 0 uses the dictionary's.
	MaxShortLen int `toml:"max_short_len" json:"max_short_len" yaml:"max_short_len"`

	EventQueueSize int `toml:"event_queue_size" json:"event_queue_size" yaml:"event_queue_size"`

	AggressiveReset        bool `toml:"aggressive_reset" json:"aggressive_reset" yaml:"aggressive_reset"`
	RestartWithTriggerChar bool `toml:"restart_with_trigger_char" json:"restart_with_trigger_char" yaml:"restart_with_trigger_char"`

	// DefaultOS selects the initial Unicode driver: windows, macos, linux.
	DefaultOS string `toml:"default_os" json:"default_os" yaml:"default_os"`

	// Layout is the host keyboard layout: us, de, fr.
	Layout string `toml:"layout" json:"layout" yaml:"layout"`
}

// DictionaryConfig holds dictionary location settings.
type DictionaryConfig struct {
	// Path is a source file (.toml, .yaml, .json) or a compiled artifact.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Watch reloads the dictionary when the file changes.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`

	// DebounceMs is the quiet period before a changed file is reloaded.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// JournalConfig holds expansion history settings.
type JournalConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// DeviceConfig holds host input and output device settings.
type DeviceConfig struct {
	// InputPath is the evdev keyboard device. Empty autodetects.
	InputPath string `toml:"input_path" json:"input_path" yaml:"input_path"`

	// UinputName is the name of the virtual keyboard.
	UinputName string `toml:"uinput_name" json:"uinput_name" yaml:"uinput_name"`
}

// MetricsConfig holds the metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Listen is a host:port. Keep it on loopback; the endpoint has no auth.
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to gzip rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`

	// ShowText logs short codes and expansion text instead of their lengths.
	ShowText bool `toml:"show_text" json:"show_text" yaml:"show_text"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Expander: ExpanderConfig{
			ResetKeys:      []string{"enter", "esc", "tab"},
			AutoExpandKeys: []string{"space"},
			UndoKeys:       []string{},
			IgnoreKeys: []string{
				"left_ctrl", "left_shift", "left_alt", "left_gui",
				"right_ctrl", "right_shift", "right_alt", "right_gui",
			},
			TriggerKeys:    []string{},
			TypingDelayMs:  10,
			Jitter:         true,
			MaxShortLen:    0,
			EventQueueSize: expander.DefaultQueueSize,
			DefaultOS:      "windows",
			Layout:         "us",
		},
		Dictionary: DictionaryConfig{
			Path:       filepath.Join(PlatformConfigDir(), "dictionary.toml"),
			Watch:      true,
			DebounceMs: 200,
		},
		Journal: JournalConfig{
			Enabled:       true,
			Path:          filepath.Join(dir, "journal.db"),
			BusyTimeoutMs: 5000,
		},
		Device: DeviceConfig{
			InputPath:  "",
			UinputName: "textexpander virtual keyboard",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "textexpanderd.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9477",
		},
	}
}

// ConfigPath returns the first existing config file in the standard
// locations, or config.toml in the platform config directory.
func ConfigPath() string {
	if p := FindConfigFile(); p != "" {
		return p
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DataDir returns the base data directory.
// TEXTEXPANDER_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv(EnvPrefix + "DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// PIDFile is where a running daemon records its process id.
func PIDFile() string {
	return filepath.Join(DataDir(), "textexpanderd.pid")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{}
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with TEXTEXPANDER_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv(EnvPrefix + "DICTIONARY"); v != "" {
		c.Dictionary.Path = v
	}
	if v := os.Getenv(EnvPrefix + "JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv(EnvPrefix + "LAYOUT"); v != "" {
		c.Expander.Layout = v
	}
	if v := os.Getenv(EnvPrefix + "OS"); v != "" {
		c.Expander.DefaultOS = v
	}
	if v := os.Getenv(EnvPrefix + "TYPING_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Expander.TypingDelayMs = n
		}
	}
	if v := os.Getenv(EnvPrefix + "INPUT_DEVICE"); v != "" {
		c.Device.InputPath = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv(EnvPrefix + "METRICS_LISTEN"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Listen = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:    c.Version,
		Expander:   c.Expander,
		Dictionary: c.Dictionary,
		Journal:    c.Journal,
		Device:     c.Device,
		Logging:    c.Logging,
		Metrics:    c.Metrics,
	}
	clone.Expander.ResetKeys = append([]string{}, c.Expander.ResetKeys...)
	clone.Expander.AutoExpandKeys = append([]string{}, c.Expander.AutoExpandKeys...)
	clone.Expander.UndoKeys = append([]string{}, c.Expander.UndoKeys...)
	clone.Expander.IgnoreKeys = append([]string{}, c.Expander.IgnoreKeys...)
	clone.Expander.TriggerKeys = append([]string{}, c.Expander.TriggerKeys...)
	return clone
}

// assign copies every section of src into c.
func (c *Config) assign(src *Config) {
	clone := src.Clone()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Version = clone.Version
	c.Expander = clone.Expander
	c.Dictionary = clone.Dictionary
	c.Journal = clone.Journal
	c.Device = clone.Device
	c.Logging = clone.Logging
	c.Metrics = clone.Metrics
}

// Coordinator converts the expander section into the coordinator's policy.
func (e ExpanderConfig) Coordinator() (expander.Config, error) {
	cfg := expander.DefaultConfig()
	var err error
	if cfg.ResetKeys, err = keySet("reset_keycodes", e.ResetKeys); err != nil {
		return cfg, err
	}
	if cfg.AutoExpandKeys, err = keySet("auto_expand_keycodes", e.AutoExpandKeys); err != nil {
		return cfg, err
	}
	if cfg.UndoKeys, err = keySet("undo_keycodes", e.UndoKeys); err != nil {
		return cfg, err
	}
	if cfg.IgnoreKeys, err = keySet("ignore_keycodes", e.IgnoreKeys); err != nil {
		return cfg, err
	}
	cfg.MaxShortLen = e.MaxShortLen
	cfg.QueueSize = e.EventQueueSize
	cfg.AggressiveReset = e.AggressiveReset
	cfg.RestartWithTriggerChar = e.RestartWithTriggerChar
	return cfg, nil
}

// Triggers returns the manual trigger keys.
func (e ExpanderConfig) Triggers() (hid.KeySet, error) {
	return keySet("trigger_keycodes", e.TriggerKeys)
}

// Engine converts the expander section into state machine options.
func (e ExpanderConfig) Engine() (expansion.Options, error) {
	target, err := expansion.ParseOS(e.DefaultOS)
	if err != nil {
		return expansion.Options{}, fmt.Errorf("config: expander.default_os: %w", err)
	}
	delay := time.Duration(e.TypingDelayMs) * time.Millisecond
	params := jitter.DefaultParameters()
	params.Enabled = e.Jitter
	return expansion.Options{
		TypingDelay: delay,
		StartDelay:  delay,
		OS:          target,
		Jitter:      jitter.New(params),
	}, nil
}

// KeyboardLayout resolves the configured layout.
func (e ExpanderConfig) KeyboardLayout() (layout.Layout, error) {
	return layout.ByName(e.Layout)
}

// Options converts the logging section for logging.New.
func (l LoggingConfig) Options(component string) (*logging.Config, error) {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("config: logging.level: %w", err)
	}
	format, err := logging.ParseFormat(l.Format)
	if err != nil {
		return nil, fmt.Errorf("config: logging.format: %w", err)
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.Output = lower(l.Output)
	cfg.FilePath = l.FilePath
	cfg.MaxSizeMB = int64(l.MaxSizeMB)
	cfg.MaxBackups = l.MaxBackups
	cfg.MaxAgeDays = l.MaxAgeDays
	cfg.Compress = l.Compress
	cfg.ShowText = l.ShowText
	if component != "" {
		cfg.Component = component
	}
	return cfg, nil
}

func keySet(field string, names []string) (hid.KeySet, error) {
	codes, err := hid.ParseKeycodes(names)
	if err != nil {
		return nil, fmt.Errorf("config: expander.%s: %w", field, err)
	}
	return hid.NewKeySet(codes...), nil
}

// String summarizes the configuration for logs.
func (c *Config) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("layout=%s os=%s delay=%dms dictionary=%s journal=%t",
		c.Expander.Layout, c.Expander.DefaultOS, c.Expander.TypingDelayMs,
		c.Dictionary.Path, c.Journal.Enabled)
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
