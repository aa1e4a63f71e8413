package ingestion

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadNames reads a YAML mapping of instrument code to display name. A
// missing file yields an empty mapping.
func LoadNames(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading names file: %w", err)
	}

	names := map[string]string{}
	if err := yaml.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("error parsing names file %s: %w", path, err)
	}
	return names, nil
}

// SaveNames writes the mapping atomically through a temp file.
func SaveNames(path string, names map[string]string) error {
	data, err := yaml.Marshal(names)
	if err != nil {
		return fmt.Errorf("error encoding names: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("error writing names file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("error renaming names file: %w", err)
	}
	return nil
}
