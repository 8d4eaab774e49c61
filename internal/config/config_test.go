package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TICKSTOCK_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "tickstock.jobs.requests", cfg.JobChannel)
	assert.Equal(t, "tickstock.jobs.cancel", cfg.CancelChannel)
	assert.Equal(t, "tickstock.errors", cfg.ErrorChannel)
	assert.Equal(t, "tickstock.monitoring", cfg.MonitoringChannel)
	assert.Equal(t, time.Hour, cfg.JobStatusTTL)
	assert.Equal(t, 3*time.Second, cfg.BrokerTimeout)
	assert.Equal(t, "error", cfg.ErrorSeverityThreshold)
	assert.Equal(t, 30, cfg.ErrorRetentionDays)
	assert.Equal(t, time.Hour, cfg.UniverseCacheTTL)
	assert.False(t, cfg.Backup.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TICKSTOCK_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("JOB_STATUS_TTL_SECONDS", "120")
	t.Setenv("ERROR_SEVERITY_THRESHOLD", "warning")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 2*time.Minute, cfg.JobStatusTTL)
	assert.Equal(t, "warning", cfg.ErrorSeverityThreshold)
	assert.True(t, cfg.DevMode)
}

func TestLoad_DataDirIsAbsolute(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TICKSTOCK_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, filepath.Join(cfg.DataDir, "logs"), cfg.LogsDir())
}

func TestLoad_InvalidSeverityThreshold(t *testing.T) {
	t.Setenv("TICKSTOCK_DATA_DIR", t.TempDir())
	t.Setenv("ERROR_SEVERITY_THRESHOLD", "fatal")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_SEVERITY_THRESHOLD")
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	t.Setenv("TICKSTOCK_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:                   8080,
			RedisAddr:              "localhost:6379",
			JobChannel:             "jobs",
			CancelChannel:          "cancel",
			ErrorChannel:           "errors",
			MonitoringChannel:      "monitoring",
			JobStatusTTL:           time.Hour,
			BrokerTimeout:          3 * time.Second,
			UniverseCacheTTL:       time.Hour,
			ErrorSeverityThreshold: "error",
			ErrorRetentionDays:     30,
			Backup:                 &BackupConfig{},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty channel", func(t *testing.T) {
		cfg := base()
		cfg.ErrorChannel = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive ttl", func(t *testing.T) {
		cfg := base()
		cfg.JobStatusTTL = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("backup enabled without bucket", func(t *testing.T) {
		cfg := base()
		cfg.Backup = &BackupConfig{Enabled: true, Endpoint: "https://acc.r2.cloudflarestorage.com"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("backup enabled without credentials", func(t *testing.T) {
		cfg := base()
		cfg.Backup = &BackupConfig{
			Enabled:  true,
			Bucket:   "backups",
			Endpoint: "https://acc.r2.cloudflarestorage.com",
		}
		assert.Error(t, cfg.Validate())
	})
}
