// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Push     PushConfig     `mapstructure:"push"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PushConfig holds web push transport credentials and options.
// VAPID keys are required; the transport refuses to start without them.
type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber"` // contact mailto/URL sent to push services
	TTL             int    `mapstructure:"ttl"`        // seconds the push service may queue a message
}

// DeliveryConfig tunes the per-device send path.
type DeliveryConfig struct {
	TransportMaxRetries int           `mapstructure:"transport_max_retries"`
	TransportRetryDelay time.Duration `mapstructure:"transport_retry_delay"`
	StorageMaxRetries   int           `mapstructure:"storage_max_retries"`
	StorageRetryDelay   time.Duration `mapstructure:"storage_retry_delay"`
	FailureThreshold    int           `mapstructure:"failure_threshold"` // consecutive failures before deactivation
	BadgeCacheTTL       time.Duration `mapstructure:"badge_cache_ttl"`   // unread counter cache lifetime
}

// CleanupConfig tunes the periodic sweep.
type CleanupConfig struct {
	Schedule         string        `mapstructure:"schedule"`          // cron expression
	StalenessWindow  time.Duration `mapstructure:"staleness_window"`  // unused subscriptions older than this are deactivated
	LogRetention     time.Duration `mapstructure:"log_retention"`     // log rows older than this are deleted
	FailureThreshold int           `mapstructure:"failure_threshold"` // mirrors delivery.failure_threshold
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
