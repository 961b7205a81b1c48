// Package dictionary compiles human-written expansion sources into the
// flat-array trie artifact consumed at runtime.
package dictionary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrInvalidShortCode = errors.New("dictionary: invalid short code")

// Entry is one short code and its expansion as written by the user.
type Entry struct {
	ShortCode       string `toml:"short_code" json:"short_code" yaml:"short_code"`
	Text            string `toml:"text" json:"text" yaml:"text"`
	PreserveTrigger *bool  `toml:"preserve_trigger,omitempty" json:"preserve_trigger,omitempty" yaml:"preserve_trigger,omitempty"`
}

// Source is a dictionary document.
type Source struct {
	DisablePreserveTrigger bool    `toml:"disable_preserve_trigger" json:"disable_preserve_trigger" yaml:"disable_preserve_trigger"`
	Expansions             []Entry `toml:"expansions" json:"expansions" yaml:"expansions"`
}

// Format identifies a source encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported dictionary extension %q", filepath.Ext(path))
}

// Parse decodes and schema-validates a source document.
func Parse(data []byte, format Format) (*Source, error) {
	var doc any
	switch format {
	case FormatTOML:
		var m map[string]any
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		doc = m
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported dictionary format %q", format)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var src Source
	var err error
	switch format {
	case FormatTOML:
		_, err = toml.Decode(string(data), &src)
	case FormatYAML:
		err = yaml.Unmarshal(data, &src)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&src)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s source: %w", format, err)
	}
	return &src, nil
}

// LoadSource reads a source file, choosing the decoder by extension.
func LoadSource(path string) (*Source, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	src, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// normalizeShortCode lowercases a short code and rejects ones that can
// never be typed into the buffer.
func normalizeShortCode(code string) (string, error) {
	c := strings.ToLower(code)
	switch {
	case c == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidShortCode)
	case strings.ContainsAny(c, " \t\n\r"):
		return "", fmt.Errorf("%w: %q contains whitespace", ErrInvalidShortCode, code)
	}
	return c, nil
}
