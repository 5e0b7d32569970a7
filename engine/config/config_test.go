package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ember.toml")
	body := `
log_level = "debug"

[window]
title = "demo"
width = 640
height = 480

[renderer]
frames_in_flight = 3
max_objects = 16
staging_bytes = 4096
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "demo", cfg.Window.Title)
	assert.Equal(t, uint32(640), cfg.Window.Width)
	assert.Equal(t, uint32(3), cfg.Renderer.FramesInFlight)
	assert.Equal(t, uint32(16), cfg.Renderer.MaxObjects)
	assert.Equal(t, uint64(4096), cfg.Renderer.StagingBytes)
	// Untouched fields keep their defaults.
	assert.Equal(t, uint32(64), cfg.Renderer.MaxMaterials)
}

func TestLoadRejectsZeroFramesInFlight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ember.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nframes_in_flight = 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
