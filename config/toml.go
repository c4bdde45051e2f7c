package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/kastheco/opsdash/log"
)

// LoadTOMLConfigFrom decodes the file at path over the defaults. Keys absent
// from the file keep their default values; unknown keys are logged and ignored.
func LoadTOMLConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.WarningLog.Printf("ignoring unknown keys in %s: %v", path, undecoded)
	}
	return cfg, nil
}

// SaveTOMLConfigTo writes cfg to path, creating the directory if needed.
// The file may hold a token, so it is written owner-only.
func SaveTOMLConfigTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
