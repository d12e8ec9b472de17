package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Save writes cfg to path atomically, creating the parent directory if
// needed. Used by tests and by `config` CLI commands that rewrite the
// whole struct at once.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}

// ToMap marshals cfg to a nested map via its JSON tags.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns every field of cfg as a flat dot-separated map,
// masking secret values (llm.api_key, telegram.token) unless mask is false.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// loadRawMap loads the config file at path as a generic JSON map (creating
// it with defaults on first run via Load), preserving any keys a caller
// wrote that aren't part of the Config struct.
func loadRawMap(path string) (map[string]any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return m, nil
}

// GetValue returns the value at the given dot-separated key in the config
// file at path.
func GetValue(path string, key string) (any, error) {
	m, err := loadRawMap(path)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue updates a single dot-separated key in the config file at path,
// parsing value as JSON where possible (numbers, booleans) and falling back
// to a plain string. The file must already exist; SetValue never creates a
// config from defaults, unlike Load/GetValue.
func SetValue(path string, key string, value string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	m, err := loadRawMap(path)
	if err != nil {
		return err
	}
	flat := Flatten(m)

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	flat[key] = parsed

	nested := Unflatten(flat)
	data, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
