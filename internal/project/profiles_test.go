package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/bompack/internal/model"
)

func TestSaveAndLoadProfiles(t *testing.T) {
	custom := model.GetProfile("Grbl")
	custom.Name = "Shop Router"
	custom.Units = "mm"
	custom.StartCode = []string{"G90", "G21"}

	for _, name := range []string{"profiles.json", "profiles.yaml"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, SaveProfiles(path, []model.GCodeProfile{custom}))

		loaded, err := LoadProfiles(path)
		require.NoError(t, err)
		assert.Equal(t, []model.GCodeProfile{custom}, loaded, name)
	}
}

func TestLoadProfiles_MissingFile(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
	assert.NotNil(t, profiles)
}

func TestLoadProfiles_RejectsUnnamed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"ok"},{"units":"mm"}]`), 0644))

	_, err := LoadProfiles(path)
	assert.ErrorIs(t, err, ErrUnnamedProfile)
}

func TestResolveProfile(t *testing.T) {
	custom := []model.GCodeProfile{{Name: "Fanuc", CommentPrefix: "#"}, {Name: "Mine"}}

	assert.Equal(t, "#", ResolveProfile("Fanuc", custom).CommentPrefix, "custom shadows built-in")
	assert.Equal(t, "Mine", ResolveProfile("Mine", custom).Name)
	assert.Equal(t, "Grbl", ResolveProfile("Grbl", custom).Name)
	assert.Equal(t, "Generic", ResolveProfile("Unknown", nil).Name)
}
