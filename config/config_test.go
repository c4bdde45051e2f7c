package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kastheco/opsdash/log"
)

// TestMain runs before all tests to set up the test environment
func TestMain(m *testing.M) {
	log.Initialize(false)
	code := m.Run()
	log.Close()
	os.Exit(code)
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := DefaultConfig()
	assert.Empty(t, cfg.APIURL)
	assert.True(t, cfg.IsTelemetryEnabled())
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, AuditFileName, filepath.Base(cfg.AuditDB))
	assert.ErrorIs(t, cfg.Validate(), ErrNoAPIURL)
}

func TestIsTelemetryEnabled_NilMeansTrue(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.IsTelemetryEnabled())
}

func TestTimeout_InvalidFallsBack(t *testing.T) {
	for _, v := range []string{"soon", "-5s", "0s"} {
		cfg := &Config{RequestTimeout: v}
		assert.Equal(t, 30*time.Second, cfg.Timeout(), v)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("creates default file on first run", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv(EnvAPIURL, "")
		t.Setenv(EnvAPIToken, "")

		cfg := LoadConfig()
		require.NotNil(t, cfg)
		assert.True(t, cfg.IsTelemetryEnabled())

		_, err := os.Stat(filepath.Join(home, ".config", "opsdash", ConfigFileName))
		assert.NoError(t, err)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		dir := filepath.Join(home, ".config", "opsdash")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName),
			[]byte("api_url = \"http://file\"\napi_token = \"file-token\"\n"), 0o600))
		t.Setenv(EnvAPIURL, "http://env")
		t.Setenv(EnvAPIToken, "")

		cfg := LoadConfig()
		assert.Equal(t, "http://env", cfg.APIURL)
		assert.Equal(t, "file-token", cfg.APIToken)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("broken file falls back to defaults", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv(EnvAPIURL, "")
		dir := filepath.Join(home, ".config", "opsdash")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("[broken"), 0o600))

		cfg := LoadConfig()
		assert.Empty(t, cfg.APIURL)
		assert.Equal(t, 30*time.Second, cfg.Timeout())
	})
}

func TestResolveProject(t *testing.T) {
	cfg := &Config{DefaultProject: "7"}
	p, err := cfg.ResolveProject("42")
	require.NoError(t, err)
	assert.Equal(t, "42", p)

	p, err = cfg.ResolveProject("")
	require.NoError(t, err)
	assert.Equal(t, "7", p)

	_, err = (&Config{}).ResolveProject("")
	assert.Error(t, err)
}
