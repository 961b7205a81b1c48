package dictionary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"textexpander/internal/trie"
)

// Open loads a dictionary from either a compiled artifact or a source
// file. A JSON file carrying a "version" key is treated as an artifact.
func Open(path string) (*trie.Trie, []Warning, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, nil, err
	}
	if format != FormatJSON {
		return Compile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read dictionary: %w", err)
	}
	var probe struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Version != nil {
		t, err := trie.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		return t, nil, nil
	}
	src, err := Parse(data, FormatJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return Build(src)
}
