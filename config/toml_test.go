package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTOMLConfig(t *testing.T) {
	t.Run("parses valid TOML", func(t *testing.T) {
		tomlPath := filepath.Join(t.TempDir(), "config.toml")
		content := `
api_url = "https://ops.example.com/api"
api_token = "secret"
request_timeout = "5s"
telemetry_enabled = false
audit_db = "/tmp/audit.db"
default_project = "42"
`
		require.NoError(t, os.WriteFile(tomlPath, []byte(content), 0o644))

		cfg, err := LoadTOMLConfigFrom(tomlPath)
		require.NoError(t, err)
		assert.Equal(t, "https://ops.example.com/api", cfg.APIURL)
		assert.Equal(t, "secret", cfg.APIToken)
		assert.Equal(t, 5*time.Second, cfg.Timeout())
		assert.False(t, cfg.IsTelemetryEnabled())
		assert.Equal(t, "/tmp/audit.db", cfg.AuditDB)
		assert.Equal(t, "42", cfg.DefaultProject)
	})

	t.Run("absent keys keep defaults", func(t *testing.T) {
		tomlPath := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(tomlPath, []byte(`api_url = "http://localhost:8080"`), 0o644))

		cfg, err := LoadTOMLConfigFrom(tomlPath)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.Timeout())
		assert.True(t, cfg.IsTelemetryEnabled())
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		tomlPath := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(tomlPath, []byte("api_url = \"http://x\"\ncolour = \"blue\"\n"), 0o644))

		cfg, err := LoadTOMLConfigFrom(tomlPath)
		require.NoError(t, err)
		assert.Equal(t, "http://x", cfg.APIURL)
	})

	t.Run("returns error on missing file", func(t *testing.T) {
		_, err := LoadTOMLConfigFrom("/nonexistent/config.toml")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("returns error on invalid TOML", func(t *testing.T) {
		tomlPath := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(tomlPath, []byte("[invalid toml\n"), 0o644))

		_, err := LoadTOMLConfigFrom(tomlPath)
		assert.Error(t, err)
	})
}

func TestSaveTOMLConfig(t *testing.T) {
	t.Run("round-trips through save and load", func(t *testing.T) {
		tomlPath := filepath.Join(t.TempDir(), "nested", "config.toml")
		off := false
		original := &Config{
			APIURL:           "https://ops.example.com/api",
			APIToken:         "secret",
			RequestTimeout:   "10s",
			TelemetryEnabled: &off,
			AuditDB:          "",
			DefaultProject:   "7",
		}

		require.NoError(t, SaveTOMLConfigTo(original, tomlPath))
		info, err := os.Stat(tomlPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		loaded, err := LoadTOMLConfigFrom(tomlPath)
		require.NoError(t, err)
		assert.Equal(t, original.APIURL, loaded.APIURL)
		assert.Equal(t, original.APIToken, loaded.APIToken)
		assert.Equal(t, 10*time.Second, loaded.Timeout())
		assert.False(t, loaded.IsTelemetryEnabled())
		assert.Empty(t, loaded.AuditDB, "an explicit empty audit_db disables the audit log")
		assert.Equal(t, "7", loaded.DefaultProject)
	})
}
