// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like VAPID_PRIVATE_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, ignored if not present
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the first location that has one, so the
// binary and tests can run from different working directories.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)
		if s, ok := val.(string); ok && strings.Contains(s, "${") {
			v.Set(key, os.ExpandEnv(s))
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "notification-service"
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = ":9102"
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	if cfg.Push.TTL == 0 {
		cfg.Push.TTL = 86400 // one day
	}
	if cfg.Delivery.TransportMaxRetries == 0 {
		cfg.Delivery.TransportMaxRetries = 1
	}
	if cfg.Delivery.TransportRetryDelay == 0 {
		cfg.Delivery.TransportRetryDelay = 500 * time.Millisecond
	}
	if cfg.Delivery.StorageMaxRetries == 0 {
		cfg.Delivery.StorageMaxRetries = 3
	}
	if cfg.Delivery.StorageRetryDelay == 0 {
		cfg.Delivery.StorageRetryDelay = 200 * time.Millisecond
	}
	if cfg.Delivery.FailureThreshold == 0 {
		cfg.Delivery.FailureThreshold = 5
	}
	if cfg.Delivery.BadgeCacheTTL == 0 {
		cfg.Delivery.BadgeCacheTTL = 30 * time.Second
	}
	if cfg.Cleanup.Schedule == "" {
		cfg.Cleanup.Schedule = "0 3 * * *" // daily at 03:00
	}
	if cfg.Cleanup.StalenessWindow == 0 {
		cfg.Cleanup.StalenessWindow = 60 * 24 * time.Hour
	}
	if cfg.Cleanup.LogRetention == 0 {
		cfg.Cleanup.LogRetention = 90 * 24 * time.Hour
	}
	if cfg.Cleanup.FailureThreshold == 0 {
		cfg.Cleanup.FailureThreshold = cfg.Delivery.FailureThreshold
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Delivery.FailureThreshold < 1 {
		return fmt.Errorf("delivery.failure_threshold must be positive")
	}
	if cfg.Cleanup.StalenessWindow < time.Hour {
		return fmt.Errorf("cleanup.staleness_window is implausibly short")
	}
	// VAPID keys are validated by the push transport constructor so that
	// read-only deployments (history/badge only) can run without them.
	return nil
}
