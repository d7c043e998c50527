package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) string {
	// Change to temp dir so no config.yaml is found
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sitescan.db", cfg.Store.Path)
	assert.Equal(t, "sentinel-2-l2a", cfg.Provider.Collection)
	assert.InDelta(t, 5.0, cfg.Provider.RateRPS, 0.001)
	assert.Equal(t, 100, cfg.Provider.GridSize)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100, cfg.Detector.NumTrees)
	assert.Equal(t, 256, cfg.Detector.SampleSize)
	assert.InDelta(t, 0.05, cfg.Detector.Contamination, 0.001)
	assert.Equal(t, 3, cfg.Extractor.MinPixels)
	assert.InDelta(t, 250.0, cfg.Evaluation.MatchDistanceM, 0.001)
	assert.Equal(t, []string{"geojson", "csv"}, cfg.Export.Formats)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentRuns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chtemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/sitescan
log:
  level: debug
  format: console
server:
  port: 9090
detector:
  num_trees: 200
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/sitescan", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 200, cfg.Detector.NumTrees)
	// Defaults still apply for unset values
	assert.Equal(t, 256, cfg.Detector.SampleSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chtemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SITESCAN_STORE_DRIVER", "postgres")
	t.Setenv("SITESCAN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)

	t.Setenv("SITESCAN_SERVER_PORT", "3000")
	t.Setenv("SITESCAN_PROVIDER_TOKEN", "tok-123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "tok-123", cfg.Provider.Token)
}

func TestRetryConfigToRetry(t *testing.T) {
	r := RetryConfig{MaxAttempts: 5, InitialBackoffMS: 100, MaxBackoffMS: 2000, Multiplier: 3.0, JitterFraction: 0.1}
	cfg := r.ToRetry()

	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 2*time.Second, cfg.MaxBackoff)
	assert.InDelta(t, 3.0, cfg.Multiplier, 0.001)
	assert.InDelta(t, 0.1, cfg.JitterFraction, 0.001)
}

func TestRetryConfigToRetryZeroFallsBack(t *testing.T) {
	cfg := RetryConfig{}.ToRetry()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "sitescan.db"
	cfg.Detector.Contamination = 0.05
	cfg.Evaluation.MatchDistanceM = 250
	cfg.Server.Port = 8080
	cfg.Batch.MaxConcurrentRuns = 4
	return cfg
}

func TestValidateLive_RequiresBaseURL(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("live")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.base_url is required")

	cfg.Provider.BaseURL = "https://earth-search.example.com/v1"
	assert.NoError(t, cfg.Validate("live"))
}

func TestValidateDemo_NoProviderNeeded(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("demo"))
}

func TestValidatePostgresRequiresURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/sitescan"
	assert.NoError(t, cfg.Validate("demo"))
}

func TestValidateContaminationBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Detector.Contamination = 0
	err := cfg.Validate("demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contamination")

	cfg.Detector.Contamination = 1.5
	assert.Error(t, cfg.Validate("demo"))
}

func TestValidateServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateBatchConcurrency(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrentRuns = 0
	assert.Error(t, cfg.Validate("batch"))

	cfg.Batch.MaxConcurrentRuns = 33
	assert.Error(t, cfg.Validate("batch"))

	cfg.Batch.MaxConcurrentRuns = 8
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}
