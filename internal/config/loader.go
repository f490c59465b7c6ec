package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromPath reads a study file (YAML or JSON) over the defaults,
// resolves relative paths against the file's directory and validates it.
// Format is detected by extension (.yaml/.yml → YAML, .json → JSON) or by content (first non-whitespace char).
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Load(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	c.Resolve(filepath.Dir(path))
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load parses a study file from bytes on top of Default. ext is the file
// extension (e.g. ".json", ".yaml") for format hint; empty = detect from content.
// The result is not validated.
func Load(data []byte, ext string) (*Config, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" {
		// Detect: JSON starts with {, else YAML
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			ext = ".json"
		} else {
			ext = ".yaml"
		}
	}

	c := Default()
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	case ".yaml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}
	return c, nil
}

// Marshal renders c as YAML, for `imrmap config` and the run archive.
func Marshal(c *Config) ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
