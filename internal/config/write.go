package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"
)

// WriteConfig serializes the given Config and writes it to path, as TOML
// when the path ends in .toml and as YAML otherwise.
func WriteConfig(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		data, err = toml.Marshal(cfg)
	default:
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	content := "# PackEagle configuration\n" + string(data)
	return os.WriteFile(path, []byte(content), 0o644)
}
