package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Marshal encodes the config as TOML when toTOML is set, YAML otherwise.
func (c *Config) Marshal(toTOML bool) ([]byte, error) {
	if toTOML {
		return toml.Marshal(c)
	}
	return yaml.Marshal(c)
}

// SaveTo writes the config to a specific path. The extension picks the
// encoding.
func (c *Config) SaveTo(path string) error {
	// Create parent directory if needed
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := c.Marshal(isTOML(path))
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
