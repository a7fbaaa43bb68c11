package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, "https://api.proff.no", cfg.Provider.BaseURL)
	assert.Equal(t, "1.1", cfg.Provider.APIVersion)
	assert.Equal(t, "NO", cfg.Provider.Country)
	assert.InDelta(t, 5.0, cfg.Provider.RatePerSec, 0.001)
	assert.Equal(t, 6, cfg.Provider.MaxRetries)
	assert.Equal(t, 100, cfg.Provider.PageSize)

	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, 25, cfg.Pipeline.CheckpointEveryN)
	assert.Equal(t, "company", cfg.Pipeline.View)
	assert.Equal(t, 4, cfg.Pipeline.WindowYears)

	// Business-quality weights sum to 100.
	sum := cfg.Scoring.ROEWeight + cfg.Scoring.MarginWeight +
		cfg.Scoring.RevenueCAGRWeight + cfg.Scoring.EBITDACAGRWeight +
		cfg.Scoring.EquityRatioWeight + cfg.Scoring.ScaleWeight
	assert.InDelta(t, 100.0, sum, 0.001)
	assert.InDelta(t, 0.25, cfg.Scoring.ROEBand.Ceiling, 0.001)
	assert.InDelta(t, -0.05, cfg.Scoring.CAGRBand.Floor, 0.001)
	assert.Equal(t, 3, cfg.Scoring.StabilityMinPeriods)
	assert.InDelta(t, 0.8, cfg.Scoring.StabilityShortCap, 0.001)
	assert.InDelta(t, 70.0, cfg.Scoring.BusinessShare, 0.001)

	assert.Equal(t, 10, cfg.Shortlist.Size)
	assert.Equal(t, 12, cfg.Shortlist.CooldownMonths)

	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, 1024, cfg.Anthropic.MaxTokens)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  database_url: postgres://localhost/prospects
log:
  level: debug
  format: console
shortlist:
  size: 5
provider:
  rate_per_sec: 2.5
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/prospects", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Shortlist.Size)
	assert.InDelta(t, 2.5, cfg.Provider.RatePerSec, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 12, cfg.Shortlist.CooldownMonths)
	assert.Equal(t, "https://api.proff.no", cfg.Provider.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PROSPECT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("PROSPECT_SERVER_PORT", "3000")
	t.Setenv("PROSPECT_PROVIDER_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Provider.APIKey)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
