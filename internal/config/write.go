package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	yaml "go.yaml.in/yaml/v3"
)

// WriteDefault materializes the default configuration at path so a first run
// leaves the user a file to edit. Fails if the file already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// Round-trip through JSON so the YAML keys match the json tags the
	// strict decoder expects on the way back in.
	jb, err := json.Marshal(Default())
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(jb, &m); err != nil {
		return err
	}
	yb, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, yb, 0o644)
}
