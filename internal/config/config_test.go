package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.Oracle.BaseURL)
	assert.Equal(t, 3, cfg.Run.Workers)
	assert.Equal(t, "codigo_postal", cfg.Input.IDField)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[oracle]
base_url = "http://osrm:5000"
max_attempts = 5

[run]
workers = 8
force = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://osrm:5000", cfg.Oracle.BaseURL)
	assert.Equal(t, 5, cfg.Oracle.MaxAttempts)
	assert.Equal(t, 8, cfg.Run.Workers)
	assert.True(t, cfg.Run.Force)
	// Untouched sections keep their defaults.
	assert.Equal(t, "data/postcodes.csv", cfg.Input.Path)
}

func TestLoad_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not toml ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OSRM_URL", "http://router:5000")
	t.Setenv("THREADS", "6")
	t.Setenv("FORCE", "true")
	t.Setenv("SUBSET", "12")
	t.Setenv("ID_FIELD", "zip")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "http://router:5000", cfg.Oracle.BaseURL)
	assert.Equal(t, 6, cfg.Run.Workers)
	assert.True(t, cfg.Run.Force)
	assert.Equal(t, 12, cfg.Run.Subset)
	assert.Equal(t, "zip", cfg.Input.IDField)
}

func TestApplyEnv_IgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("THREADS", "many")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, 3, cfg.Run.Workers)
}
