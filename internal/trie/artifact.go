package trie

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ArtifactVersion is the on-disk format version written by Save.
const ArtifactVersion = 1

type artifact struct {
	Version int `json:"version"`
	*Trie
}

// Decode reads a JSON artifact and validates it.
func Decode(r io.Reader) (*Trie, error) {
	a := artifact{Trie: &Trie{}}
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidArtifact, a.Version)
	}
	if err := a.Trie.Validate(); err != nil {
		return nil, err
	}
	return a.Trie, nil
}

// Encode writes t as a JSON artifact.
func (t *Trie) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(artifact{Version: ArtifactVersion, Trie: t})
}

// Load reads a compiled artifact from path.
func Load(path string) (*Trie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Save writes t to path, replacing any existing file atomically.
func (t *Trie) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := t.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}
