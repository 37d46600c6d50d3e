package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/piwi3910/bompack/internal/model"
)

var ErrUnnamedProfile = errors.New("profile has no name")

// DefaultProfilesPath returns the default file path for custom G-code dialects.
func DefaultProfilesPath() string {
	return filepath.Join(DefaultConfigDir(), "profiles.json")
}

// SaveProfiles writes custom dialects as JSON or YAML.
func SaveProfiles(path string, profiles []model.GCodeProfile) error {
	return writeFile(path, profiles)
}

// LoadProfiles reads custom dialects. A missing file yields an empty slice.
func LoadProfiles(path string) ([]model.GCodeProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.GCodeProfile{}, nil
		}
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	var profiles []model.GCodeProfile
	if err := decode(path, data, &profiles); err != nil {
		return nil, err
	}
	for i, p := range profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: entry %d of %s", ErrUnnamedProfile, i, path)
		}
	}
	return profiles, nil
}

// ResolveProfile returns the custom dialect called name, falling back to
// the built-in profiles and finally to Generic.
func ResolveProfile(name string, custom []model.GCodeProfile) model.GCodeProfile {
	for _, p := range custom {
		if p.Name == name {
			return p
		}
	}
	return model.GetProfile(name)
}
