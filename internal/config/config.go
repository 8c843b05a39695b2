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
	DataDir   string // Base directory for state files and the risk database (always absolute)
	LogLevel  string
	LogPretty bool
	Port      int
	DevMode   bool

	// Core risk engine parameters. These are the composition-root defaults;
	// each component also accepts its own config struct for testing.
	BaseCapital             float64
	MaxGroupExposurePct     float64
	MaxTotalExposure        float64
	MaxCorrGroupExposure    float64
	CorrelationThreshold    float64
	MinMatrixConfidence     float64
	CorrelationLookback     int
	CorrelationRefreshEvery time.Duration
	VaRLimit95Pct           float64
	VaRLimit99Pct           float64
	MonitorInterval         time.Duration
	DailyVolatilityAssumed  float64
	HistoricalWindow        int
	ATRPeriod               int
	ProtectedCapitalPct     float64
	RecoveryWinStreak       int
	RecoveryProfitThreshold float64
	SnapshotArchiveSchedule string
	SnapshotPruneSchedule   string
	SnapshotRetention       time.Duration
}

// StatePath returns the path of the drawdown protection state file.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "drawdown_protection.json")
}

// RiskDBPath returns the path of the risk archive database.
func (c *Config) RiskDBPath() string {
	return filepath.Join(c.DataDir, "risk.db")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("BASTION_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		Port:      getEnvAsInt("BASTION_PORT", 8090),
		DevMode:   getEnvAsBool("DEV_MODE", false),

		BaseCapital:             getEnvAsFloat("BASE_CAPITAL", 10000),
		MaxGroupExposurePct:     getEnvAsFloat("MAX_GROUP_EXPOSURE_PCT", 0.40),
		MaxTotalExposure:        getEnvAsFloat("MAX_TOTAL_EXPOSURE", 0.80),
		MaxCorrGroupExposure:    getEnvAsFloat("MAX_CORRELATION_GROUP_EXPOSURE", 0.30),
		CorrelationThreshold:    getEnvAsFloat("CORRELATION_THRESHOLD", 0.70),
		MinMatrixConfidence:     getEnvAsFloat("MIN_MATRIX_CONFIDENCE", 0.50),
		CorrelationLookback:     getEnvAsInt("CORRELATION_LOOKBACK", 100),
		CorrelationRefreshEvery: getEnvAsDuration("CORRELATION_REFRESH_INTERVAL", 5*time.Minute),
		VaRLimit95Pct:           getEnvAsFloat("VAR_LIMIT_95_PCT", 0.05),
		VaRLimit99Pct:           getEnvAsFloat("VAR_LIMIT_99_PCT", 0.08),
		MonitorInterval:         getEnvAsDuration("MONITOR_INTERVAL", 60*time.Second),
		DailyVolatilityAssumed:  getEnvAsFloat("DAILY_VOLATILITY_ASSUMPTION", 0.02),
		HistoricalWindow:        getEnvAsInt("HISTORICAL_WINDOW", 500),
		ATRPeriod:               getEnvAsInt("ATR_PERIOD", 14),
		ProtectedCapitalPct:     getEnvAsFloat("PROTECTED_CAPITAL_PCT", 0.80),
		RecoveryWinStreak:       getEnvAsInt("RECOVERY_WIN_STREAK_REQUIRED", 3),
		RecoveryProfitThreshold: getEnvAsFloat("RECOVERY_PROFIT_THRESHOLD_PCT", 0.50),
		SnapshotArchiveSchedule: getEnv("SNAPSHOT_ARCHIVE_SCHEDULE", "@every 5m"),
		SnapshotPruneSchedule:   getEnv("SNAPSHOT_PRUNE_SCHEDULE", "@daily"),
		SnapshotRetention:       getEnvAsDuration("SNAPSHOT_RETENTION", 30*24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.BaseCapital <= 0 {
		return fmt.Errorf("BASE_CAPITAL must be positive, got %v", c.BaseCapital)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive, got %v", c.MonitorInterval)
	}
	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
