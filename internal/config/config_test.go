package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing server URL.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Bad server URL.
	cfg = &Config{
		ServerURL:    "not a url",
		AccessID:     "id",
		AccessSecret: "secret",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Missing credentials.
	cfg = &Config{
		ServerURL: "https://updates.local",
		AccessID:  "id",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Okay, defaults fill in.
	cfg = &Config{
		ServerURL:    "https://updates.local",
		AccessID:     "id",
		AccessSecret: "secret",
	}

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, int64(131072), cfg.ChunkSize)
	require.Equal(t, 10*time.Minute, cfg.Timeout)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		ServerURL:    "https://updates.local",
		AccessID:     "123ACCESSID",
		AccessSecret: "SECRET",
		ChunkSize:    4096,
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ServerURL, loaded.ServerURL)
	require.Equal(t, cfg.AccessID, loaded.AccessID)
	require.Equal(t, cfg.AccessSecret, loaded.AccessSecret)
	require.Equal(t, int64(4096), loaded.ChunkSize)

	// Secret stays owner-readable only.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}
