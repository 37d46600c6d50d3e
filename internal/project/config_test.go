package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/bompack/internal/model"
)

func TestSaveAndLoadConfig(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := model.DefaultAppConfig()
			cfg.Nesting.Algorithm = model.AlgorithmSkyline
			cfg.Nesting.LookAhead = 2
			cfg.CNC.Profile = "Grbl"
			cfg.Debug = true

			require.NoError(t, SaveConfig(path, cfg))
			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadConfig_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultAppConfig(), cfg)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nesting:\n  bin_width: 60\n  algorithm: genetic\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 60.0, cfg.Nesting.BinWidth)
	assert.Equal(t, model.AlgorithmGenetic, cfg.Nesting.Algorithm)
	assert.Equal(t, 96.0, cfg.Nesting.BinHeight)
	assert.Equal(t, model.DefaultCNCSettings(), cfg.CNC)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestDefaultConfigPath(t *testing.T) {
	assert.Equal(t, ".bompack", filepath.Base(DefaultConfigDir()))
	assert.Equal(t, "config.json", filepath.Base(DefaultConfigPath()))
}
