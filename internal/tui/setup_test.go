package tui

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/ocburn/internal/config"
)

func TestSetupValues_RoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Budget.Weekly = ptr(12.5)
	cfg.Appearance.Theme = "no-such-theme"

	v := NewSetupValues(cfg)
	assert.Equal(t, "12.5", v.Weekly)
	assert.Empty(t, v.Daily)
	assert.Equal(t, "30", v.DefaultDays)
	assert.Equal(t, "flexoki-dark", v.Theme)
	assert.True(t, v.Save)

	v.BaseURL = " http://localhost:5000/ "
	v.ProjectID = "proj_x"
	v.DefaultDays = "14"
	v.Daily = "$5"
	v.Weekly = ""
	v.Theme = "tokyo-night"

	got, err := v.Apply(cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", got.Opencode.BaseURL)
	assert.Equal(t, "proj_x", got.General.ProjectID)
	assert.Equal(t, 14, got.General.DefaultDays)
	require.NotNil(t, got.Budget.Daily)
	assert.Equal(t, 5.0, *got.Budget.Daily)
	assert.Nil(t, got.Budget.Weekly)
	assert.Equal(t, "tokyo-night", got.Appearance.Theme)
	assert.Equal(t, cfg.Output, got.Output)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.SaveFile(path, got))
	loaded, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 14, loaded.General.DefaultDays)
	require.NotNil(t, loaded.Budget.Daily)
	assert.Equal(t, 5.0, *loaded.Budget.Daily)
}

func TestSetupValues_ApplyErrors(t *testing.T) {
	base := NewSetupValues(config.DefaultConfig())

	bad := base
	bad.BaseURL = "localhost:4096"
	_, err := bad.Apply(config.DefaultConfig())
	assert.ErrorContains(t, err, "opencode URL")

	bad = base
	bad.DefaultDays = "0"
	_, err = bad.Apply(config.DefaultConfig())
	assert.ErrorContains(t, err, "default days")

	bad = base
	bad.Monthly = "-3"
	_, err = bad.Apply(config.DefaultConfig())
	assert.ErrorContains(t, err, "monthly budget")
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateURL("https://example.com"))
	assert.Error(t, ValidateURL("ftp://example.com"))
	assert.Error(t, ValidateURL("http://"))

	assert.NoError(t, ValidateDays(" 7 "))
	assert.Error(t, ValidateDays("week"))

	assert.NoError(t, ValidateLimit(""))
	assert.NoError(t, ValidateLimit("$1.50"))
	assert.Error(t, ValidateLimit("abc"))
}

func TestNewSetupForm(t *testing.T) {
	v := NewSetupValues(config.DefaultConfig())
	assert.NotNil(t, NewSetupForm(&v))
}
