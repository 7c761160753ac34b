// Package config loads process configuration from environment variables
// and optional .env files via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Chain   ChainConfig
	Logging LoggingConfig
}

// ServerConfig represents the admin HTTP server configuration.
type ServerConfig struct {
	Host           string
	Port           int
	RateLimitRPS   float64 // per-client request budget for the admin API
	RateLimitBurst int
}

// StorageConfig locates the permission document and the deny-log database.
type StorageConfig struct {
	AccessConfigPath string
	DenyLogPath      string
}

// ChainConfig tunes the call-chain tracker.
type ChainConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration.
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(projectRoot)

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_HOST", "127.0.0.1")
	viper.SetDefault("SERVER_PORT", 8124)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)

	viper.SetDefault("ACCESS_CONFIG_PATH", "config/access_control.yaml")
	viper.SetDefault("DENY_LOG_PATH", "data/deny_log.db")

	viper.SetDefault("CHAIN_TTL_SECONDS", 120)
	viper.SetDefault("CHAIN_SWEEP_SECONDS", 30)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	return nil
}

// Load loads configuration from viper.
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:           viper.GetString("SERVER_HOST"),
			Port:           viper.GetInt("SERVER_PORT"),
			RateLimitRPS:   viper.GetFloat64("RATE_LIMIT_RPS"),
			RateLimitBurst: viper.GetInt("RATE_LIMIT_BURST"),
		},
		Storage: StorageConfig{
			AccessConfigPath: viper.GetString("ACCESS_CONFIG_PATH"),
			DenyLogPath:      viper.GetString("DENY_LOG_PATH"),
		},
		Chain: ChainConfig{
			TTL:           time.Duration(viper.GetInt("CHAIN_TTL_SECONDS")) * time.Second,
			SweepInterval: time.Duration(viper.GetInt("CHAIN_SWEEP_SECONDS")) * time.Second,
		},
		Logging: LoggingConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	if config.Storage.AccessConfigPath == "" {
		return nil, fmt.Errorf("ACCESS_CONFIG_PATH must not be empty")
	}
	if config.Chain.TTL <= 0 {
		return nil, fmt.Errorf("CHAIN_TTL_SECONDS must be positive")
	}

	return config, nil
}

// Addr returns the listen address for the admin server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
