package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_WritesToFile(t *testing.T) {
	orig := logFileName
	logFileName = filepath.Join(t.TempDir(), "nested", "opsdash.log")
	t.Cleanup(func() { logFileName = orig })

	Initialize(false)
	ErrorLog.Printf("link failed: %s", "503")
	WarningLog.Print("tab pin skipped")
	Close()

	data, err := os.ReadFile(logFileName)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ERROR:")
	assert.Contains(t, string(data), "link failed: 503")
	assert.Contains(t, string(data), "WARNING:")
}

func TestClose_WithoutInitialize(t *testing.T) {
	assert.NotPanics(t, Close)
}

func TestEvery(t *testing.T) {
	e := NewEvery(time.Hour)
	assert.True(t, e.ShouldLog())
	assert.False(t, e.ShouldLog())
}
