package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/piwi3910/bompack/internal/model"
)

// DefaultConfigDir returns the default directory for application configuration.
// On all platforms this is ~/.bompack/
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".bompack")
}

// DefaultConfigPath returns the default path for the application config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// SaveConfig persists cfg as JSON, or YAML for .yaml and .yml paths.
func SaveConfig(path string, cfg model.AppConfig) error {
	return writeFile(path, cfg)
}

// LoadConfig reads an AppConfig from path. Keys absent from the file keep
// their defaults; a missing file yields DefaultAppConfig with no error.
func LoadConfig(path string) (model.AppConfig, error) {
	cfg := model.DefaultAppConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return model.AppConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := decode(path, data, &cfg); err != nil {
		return model.AppConfig{}, err
	}
	return cfg, nil
}
