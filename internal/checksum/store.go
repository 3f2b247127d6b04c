package checksum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads a snapshot. A missing or blank file is an empty snapshot.
func Load(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(Map), nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return make(Map), nil
	}

	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	if m == nil {
		m = make(Map)
	}
	return m, nil
}

// Save writes m as a JSON object, replacing any previous snapshot atomically.
func Save(path string, m Map) error {
	if m == nil {
		m = make(Map)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalizing snapshot: %w", err)
	}
	return nil
}
