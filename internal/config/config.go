// Package config loads the daemon's configuration surface: the rate-gate
// window, shutdown timeout, admin identity for credential lookup, logging,
// and the database/redis connection parameters the concrete adapters need.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	RateGate RateGateConfig `mapstructure:"rategate"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the health HTTP surface's listen address.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// RateGateConfig holds the per-key admission throttle window.
type RateGateConfig struct {
	WindowSeconds int64 `mapstructure:"window_seconds"`
}

// DaemonConfig holds daemon-level lifecycle tunables.
type DaemonConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AdminIdentity   string        `mapstructure:"admin_identity"`
}

// RedisConfig holds the ticker store's Redis connection parameters.
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	DB           int    `mapstructure:"db"`
	Password     string `mapstructure:"password"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// DatabaseConfig holds the process registry and config store's Postgres
// connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggingConfig holds logrus setup parameters.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configPath (if present), layers environment variable
// overrides on top, validates the result, and applies
// environment-specific overrides (development/production/testing, chosen
// by the ENVIRONMENT or ENV variable).
func Load(configPath string) (*Config, error) {
	setDefaults()

	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logrus.Warn("config file not found, using defaults and environment variables")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	applyEnvironmentOverrides(&cfg)

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8091)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("rategate.window_seconds", 30)

	viper.SetDefault("daemon.shutdown_timeout", "30s")
	viper.SetDefault("daemon.admin_identity", "")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 3)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 5)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "fullon_ticker")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.RateGate.WindowSeconds <= 0 {
		return fmt.Errorf("rategate.window_seconds must be positive, got %d", cfg.RateGate.WindowSeconds)
	}
	if cfg.Redis.Port <= 0 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis port: %d", cfg.Redis.Port)
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", cfg.Database.Port)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}
	return nil
}

func applyEnvironmentOverrides(cfg *Config) {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = os.Getenv("ENV")
	}

	switch strings.ToLower(env) {
	case "development", "dev":
		applyDevelopmentOverrides(cfg)
	case "production", "prod":
		applyProductionOverrides(cfg)
	case "testing", "test":
		applyTestingOverrides(cfg)
	}
}

func applyDevelopmentOverrides(cfg *Config) {
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"
	logrus.Info("applied development environment overrides")
}

func applyProductionOverrides(cfg *Config) {
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	logrus.Info("applied production environment overrides")
}

func applyTestingOverrides(cfg *Config) {
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "text"
	if !viper.IsSet("database.name") {
		cfg.Database.Name = "fullon_ticker_test"
	}
	if !viper.IsSet("redis.db") {
		cfg.Redis.DB = 15
	}
	logrus.Info("applied testing environment overrides")
}

// GetDSN returns the Postgres connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// GetRedisAddr returns the Redis address.
func (r *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GetServerAddr returns the health HTTP server's listen address.
func (s *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GateWindow returns the configured rate-gate window as a time.Duration.
func (r *RateGateConfig) GateWindow() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}
