package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Marshal encodes the configuration in the format named by ext
// (".toml", ".json", ".yaml", ".yml").
func (c *Config) Marshal(ext string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch strings.ToLower(ext) {
	case ".json":
		return json.MarshalIndent(c, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(c)
	case ".toml", "":
		var buf bytes.Buffer
		buf.WriteString("# textexpander configuration\n\n")
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported config format %q", ext)
}

// SaveConfig writes the configuration to path in the format implied by its
// extension. The write goes through a temporary file and a rename.
func SaveConfig(cfg *Config, path string) error {
	data, err := cfg.Marshal(filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
