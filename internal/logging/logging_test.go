package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocburn.log")

	logger, err := New(Options{Path: path, Verbose: true})
	require.NoError(t, err)
	logger.Debug("debug line")
	logger.Info("info line")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug line")
	assert.Contains(t, string(data), "info line")
}

func TestNew_DefaultLevelDropsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocburn.log")

	logger, err := New(Options{Path: path})
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}
