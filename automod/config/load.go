package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/galaxyguard/warden/automod/moderr"

	"gopkg.in/yaml.v3"
)

// Parses a YAML (or JSON) configuration document on top of the defaults, then validates the result. Sections absent
// from the document keep their default values; categories present in the document replace (or add to) the default
// category table.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, moderr.Configuration("config.parse", "%v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Reads a configuration file. An empty path returns the (validated) defaults.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Parse(nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, moderr.Configuration("config.load", "reading %s: %v", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

// Serializes the configuration as YAML, eg for printing the effective config.
func (c Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
