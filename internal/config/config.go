// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and logs (defaults to "./data", always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Redis broker connection
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Pub/sub channel names shared with the worker process
	JobChannel        string
	CancelChannel     string
	ErrorChannel      string
	MonitoringChannel string

	JobStatusTTL  time.Duration // Expiry for job:status:{job_id} records
	BrokerTimeout time.Duration // Upper bound for any single broker round-trip

	ErrorSeverityThreshold string // Minimum severity persisted to the queryable error store
	ErrorRetentionDays     int

	UniverseCacheTTL time.Duration

	Backup *BackupConfig
}

// BackupConfig holds settings for the S3/R2 database backup service.
// Disabled unless BACKUP_ENABLED is set; when enabled, all fields are required.
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// severityLevels are the accepted values for ERROR_SEVERITY_THRESHOLD,
// matching the ordered severity enum on the error channel.
var severityLevels = map[string]bool{
	"critical": true,
	"error":    true,
	"warning":  true,
	"info":     true,
	"debug":    true,
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check TICKSTOCK_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("TICKSTOCK_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JobChannel:        getEnv("JOB_CHANNEL", "tickstock.jobs.requests"),
		CancelChannel:     getEnv("CANCEL_CHANNEL", "tickstock.jobs.cancel"),
		ErrorChannel:      getEnv("ERROR_CHANNEL", "tickstock.errors"),
		MonitoringChannel: getEnv("MONITORING_CHANNEL", "tickstock.monitoring"),

		JobStatusTTL:  time.Duration(getEnvAsInt("JOB_STATUS_TTL_SECONDS", 3600)) * time.Second,
		BrokerTimeout: time.Duration(getEnvAsInt("BROKER_TIMEOUT_SECONDS", 3)) * time.Second,

		ErrorSeverityThreshold: getEnv("ERROR_SEVERITY_THRESHOLD", "error"),
		ErrorRetentionDays:     getEnvAsInt("ERROR_RETENTION_DAYS", 30),

		UniverseCacheTTL: time.Duration(getEnvAsInt("UNIVERSE_CACHE_TTL_SECONDS", 3600)) * time.Second,

		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and consistent
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must not be empty")
	}
	if !severityLevels[c.ErrorSeverityThreshold] {
		return fmt.Errorf("invalid ERROR_SEVERITY_THRESHOLD: %q", c.ErrorSeverityThreshold)
	}
	if c.JobStatusTTL <= 0 {
		return fmt.Errorf("JOB_STATUS_TTL_SECONDS must be positive")
	}
	if c.BrokerTimeout <= 0 {
		return fmt.Errorf("BROKER_TIMEOUT_SECONDS must be positive")
	}
	if c.UniverseCacheTTL <= 0 {
		return fmt.Errorf("UNIVERSE_CACHE_TTL_SECONDS must be positive")
	}
	if c.ErrorRetentionDays < 1 {
		return fmt.Errorf("ERROR_RETENTION_DAYS must be at least 1")
	}
	for name, channel := range map[string]string{
		"JOB_CHANNEL":        c.JobChannel,
		"CANCEL_CHANNEL":     c.CancelChannel,
		"ERROR_CHANNEL":      c.ErrorChannel,
		"MONITORING_CHANNEL": c.MonitoringChannel,
	} {
		if channel == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	if c.Backup != nil && c.Backup.Enabled {
		if c.Backup.Bucket == "" || c.Backup.Endpoint == "" {
			return fmt.Errorf("backup enabled but R2_BUCKET or R2_ENDPOINT is missing")
		}
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			return fmt.Errorf("backup enabled but R2 credentials are missing")
		}
	}
	return nil
}

// LogsDir returns the directory error log files are written to.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// loadBackupConfig loads backup settings from the environment.
// Backups stay disabled unless explicitly turned on.
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Bucket:          getEnv("R2_BUCKET", ""),
		Endpoint:        getEnv("R2_ENDPOINT", ""),
		AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}
}
