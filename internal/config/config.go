// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/aristath/xray/internal/modules/runs"
	"github.com/aristath/xray/internal/modules/xray"
	"github.com/aristath/xray/internal/utils"
	"github.com/aristath/xray/pkg/formulas"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Analysis defaults, overridable per request
	StressQuantile    float64
	QuantileMethod    string
	Horizons          []xray.Horizon
	MinHistoryDays    int
	MinStressSamples  int
	MinHorizonWindows int
	ForwardFill       bool

	// Run cache and background jobs
	RunTTL                time.Duration
	CleanupSchedule       string
	WALCheckpointSchedule string
}

// cronParser accepts the six-field (with seconds) schedules the scheduler runs.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Load reads configuration from environment variables, after loading a .env
// file when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("XRAY_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	horizons := xray.DefaultHorizons()
	if list := getEnv("XRAY_HORIZONS", ""); list != "" {
		horizons, err = ParseHorizons(list)
		if err != nil {
			return nil, fmt.Errorf("invalid XRAY_HORIZONS: %w", err)
		}
	}

	cfg := &Config{
		DataDir:               absDataDir,
		Port:                  getEnvAsInt("XRAY_PORT", 8010),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DevMode:               getEnvAsBool("DEV_MODE", false),
		StressQuantile:        getEnvAsFloat("XRAY_STRESS_QUANTILE", xray.DefaultStressQuantile),
		QuantileMethod:        getEnv("XRAY_QUANTILE_METHOD", string(formulas.QuantileLinear)),
		Horizons:              horizons,
		MinHistoryDays:        getEnvAsInt("XRAY_MIN_HISTORY_DAYS", xray.DefaultMinHistoryDays),
		MinStressSamples:      getEnvAsInt("XRAY_MIN_STRESS_SAMPLES", xray.DefaultMinStressSamples),
		MinHorizonWindows:     getEnvAsInt("XRAY_MIN_HORIZON_WINDOWS", xray.DefaultMinHorizonWindows),
		ForwardFill:           getEnvAsBool("XRAY_FORWARD_FILL", false),
		RunTTL:                getEnvAsDuration("XRAY_RUN_TTL", runs.DefaultTTL),
		CleanupSchedule:       getEnv("XRAY_CLEANUP_SCHEDULE", "0 0 * * * *"),
		WALCheckpointSchedule: getEnv("XRAY_WAL_CHECKPOINT_SCHEDULE", "0 30 3 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the service cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	if c.RunTTL <= 0 {
		return fmt.Errorf("run TTL must be positive, got %s", c.RunTTL)
	}
	if _, err := cronParser.Parse(c.CleanupSchedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", c.CleanupSchedule, err)
	}
	if _, err := cronParser.Parse(c.WALCheckpointSchedule); err != nil {
		return fmt.Errorf("invalid WAL checkpoint schedule %q: %w", c.WALCheckpointSchedule, err)
	}
	return nil
}

// DatabasePath returns the path of a named database under DataDir.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// EngineConfig converts the analysis defaults into a validated engine configuration.
func (c *Config) EngineConfig() (xray.Config, error) {
	method, err := formulas.ParseQuantileMethod(c.QuantileMethod)
	if err != nil {
		return xray.Config{}, err
	}

	cfg := xray.DefaultConfig()
	cfg.StressQuantile = c.StressQuantile
	cfg.QuantileMethod = method
	if len(c.Horizons) > 0 {
		cfg.Horizons = append([]xray.Horizon(nil), c.Horizons...)
	}
	cfg.MinHistoryDays = c.MinHistoryDays
	cfg.MinStressSamples = c.MinStressSamples
	cfg.MinHorizonWindows = c.MinHorizonWindows
	cfg.ForwardFill = c.ForwardFill

	if err := cfg.Validate(); err != nil {
		return xray.Config{}, err
	}
	return cfg, nil
}

// ParseHorizons parses a comma-separated list of label:days pairs, e.g. "1M:21,6M:126".
func ParseHorizons(list string) ([]xray.Horizon, error) {
	var horizons []xray.Horizon
	for _, part := range utils.SplitList(list) {
		label, days, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("horizon %q is not label:days", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(days))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("horizon %q must have a positive number of days", part)
		}
		horizons = append(horizons, xray.Horizon{Label: strings.TrimSpace(label), Days: n})
	}
	if len(horizons) == 0 {
		return nil, fmt.Errorf("no horizons in %q", list)
	}
	return horizons, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as float64 or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as time.Duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
