package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
// Fields absent from the file keep their zero value; see LoadWithDefaults.
func Load(path string) (Config, error) {
	var cfg Config
	err := decodeFile(path, &cfg)
	return cfg, err
}

// LoadWithDefaults decodes the file at path over Default and validates the
// result. Keys the file omits keep their default; keys it sets, zero values
// included, replace it. An empty path yields the validated defaults.
func LoadWithDefaults(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// decodeFile decodes path into cfg without resetting fields the file does
// not mention. Unknown keys are rejected.
func decodeFile(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		err = dec.Decode(cfg)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
	// An empty document leaves cfg as is.
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
