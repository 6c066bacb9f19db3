package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath         = "CONFIG_PATH"
	EnvDBConnection       = "DB_CONNECTION"
	EnvRedisAddr          = "REDIS_ADDR"
	EnvRedisPassword      = "REDIS_PASSWORD"
	EnvRedisDB            = "REDIS_DB"
	EnvServiceTokenSecret = "SERVICE_TOKEN_SECRET"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// DefaultRedisPrefix is the fallback key prefix for fast-store counters.
const DefaultRedisPrefix = "quotad"

// RedisConfig holds fast counter store connection settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LoadRedisConfig loads fast-store settings from the YAML config file with
// environment overrides.
func LoadRedisConfig(configPath string) (RedisConfig, error) {
	// fileConfig maps the YAML fields needed for redis settings.
	type fileConfig struct {
		Redis RedisConfig `yaml:"redis"`
	}

	result := RedisConfig{Prefix: DefaultRedisPrefix}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Redis
		}
	}

	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		result.Addr = addr
		result.Enabled = true
	}
	if password := strings.TrimSpace(os.Getenv(EnvRedisPassword)); password != "" {
		result.Password = password
	}
	if dbRaw := strings.TrimSpace(os.Getenv(EnvRedisDB)); dbRaw != "" {
		if dbIndex, errParse := strconv.Atoi(dbRaw); errParse == nil && dbIndex >= 0 {
			result.DB = dbIndex
		}
	}

	result.Addr = strings.TrimSpace(result.Addr)
	result.Prefix = strings.TrimSpace(result.Prefix)
	if result.Prefix == "" {
		result.Prefix = DefaultRedisPrefix
	}
	if result.DB < 0 {
		result.DB = 0
	}
	if result.Addr == "" {
		result.Enabled = false
	}
	return result, nil
}

// ServiceAuthConfig holds the shared secret for service-token JWTs.
type ServiceAuthConfig struct {
	Secret string `yaml:"secret"`
}

// LoadServiceAuthConfig loads service auth settings from the YAML config
// file with environment overrides.
func LoadServiceAuthConfig(configPath string) (ServiceAuthConfig, error) {
	// fileConfig maps the YAML fields needed for service auth.
	type fileConfig struct {
		ServiceAuth ServiceAuthConfig `yaml:"service-auth"`
	}

	var result ServiceAuthConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.ServiceAuth
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvServiceTokenSecret)); secret != "" {
		result.Secret = secret
	}
	result.Secret = strings.TrimSpace(result.Secret)
	return result, nil
}

// AggregationConfig controls the optional in-process rollup loop.
type AggregationConfig struct {
	InProcess bool `yaml:"in-process"`
}

// LoadAggregationConfig loads aggregation settings from the YAML config file.
func LoadAggregationConfig(configPath string) (AggregationConfig, error) {
	// fileConfig maps the YAML fields needed for aggregation settings.
	type fileConfig struct {
		Aggregation AggregationConfig `yaml:"aggregation"`
	}

	var result AggregationConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Aggregation
		}
	}
	return result, nil
}
