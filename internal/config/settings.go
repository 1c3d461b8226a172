package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the persisted record of non-secret configuration choices.
// It is created on first interactive resolution and read on every
// subsequent start.
type Settings struct {
	GeminiAuthMode string `yaml:"gemini_auth_mode,omitempty"`
}

// Secrets is the persisted record of sensitive credentials. It is written
// with owner-only permissions and its contents are never logged.
type Secrets struct {
	GeminiAPIKey string `yaml:"gemini_api_key,omitempty"`
}

// LoadSettings reads the settings record. A missing file is not an error;
// a file that exists but does not parse is fatal configuration damage and
// surfaces as an error.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if err := loadYAML(path, &s); err != nil {
		return Settings{}, fmt.Errorf("settings file %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings persists the settings record atomically.
func SaveSettings(path string, s Settings) error {
	return saveYAML(path, s, 0o644)
}

// LoadSecrets reads the secret record, with the same missing/malformed
// semantics as LoadSettings.
func LoadSecrets(path string) (Secrets, error) {
	var s Secrets
	if err := loadYAML(path, &s); err != nil {
		return Secrets{}, fmt.Errorf("secrets file %s: %w", path, err)
	}
	return s, nil
}

// SaveSecrets persists the secret record atomically with mode 0600.
func SaveSecrets(path string, s Secrets) error {
	return saveYAML(path, s, 0o600)
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// saveYAML writes the record via a temp file in the same directory followed
// by a rename, so a crash mid-write cannot corrupt the previous record.
func saveYAML(path string, v any, perm os.FileMode) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
