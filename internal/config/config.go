// Package config loads the service configuration from a YAML file, an optional .env file and
// EMS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/util"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up when no path is given.
const DefaultConfigFile = "config.yaml"

// Environment variables that override file values.
const (
	EnvConfigPath  = "EMS_CONFIG"
	EnvDatabaseDSN = "EMS_DATABASE_DSN"
	EnvJWTSecret   = "EMS_JWT_SECRET"
	EnvListen      = "EMS_LISTEN"
	EnvRedisAddr   = "EMS_REDIS_ADDR"
	EnvLogLevel    = "EMS_LOG_LEVEL"
)

// ErrMissingJWTSecret is returned when no signing secret is configured.
var ErrMissingJWTSecret = errors.New("config: jwt secret is not configured")

// AppConfig carries command line inputs shared by every command.
type AppConfig struct {
	ConfigPath string
}

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Auth       AuthConfig       `yaml:"auth"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Billing    BillingConfig    `yaml:"billing"`
	Attendance AttendanceConfig `yaml:"attendance"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the database.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`    // 0 uses the dialect default
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"` // 0 uses the default
}

// JWTConfig configures bearer token signing.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// AuthConfig tunes password hashing.
type AuthConfig struct {
	PasswordCost int `yaml:"password_cost"` // bcrypt cost, 4-31; 0 uses the default
}

// RedisConfig configures the optional redis used for distributed locks.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Enabled reports whether a redis address is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// LoggingConfig configures logrus output and file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // empty logs to stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// BillingConfig tunes the billing calculator.
type BillingConfig struct {
	Currency         string `yaml:"currency"`
	FormulaMaxLength int    `yaml:"formula_max_length"`
}

// DefaultAutoCloseAfterHours applies when auto_close_after_hours is not set. An explicit 0
// disables auto-closing.
const DefaultAutoCloseAfterHours = 16

// AttendanceConfig tunes the attendance auto-closer.
type AttendanceConfig struct {
	AutoCloseAfterHours int           `yaml:"auto_close_after_hours"`
	CheckInterval       time.Duration `yaml:"check_interval"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	return cfg
}

// newConfig returns a Config holding the defaults whose zero value is meaningful. Unmarshal
// overwrites only the keys present in the file.
func newConfig() *Config {
	return &Config{Attendance: AttendanceConfig{AutoCloseAfterHours: DefaultAutoCloseAfterHours}}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Listen) == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		c.Database.DSN = defaultSQLiteDSN()
	}
	if c.JWT.Expiry <= 0 {
		c.JWT.Expiry = 24 * time.Hour
	}
	if strings.TrimSpace(c.Redis.KeyPrefix) == "" {
		c.Redis.KeyPrefix = "ems:"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 30
	}
	if strings.TrimSpace(c.Billing.Currency) == "" {
		c.Billing.Currency = "USD"
	}
	c.Billing.Currency = strings.ToUpper(strings.TrimSpace(c.Billing.Currency))
	if c.Attendance.CheckInterval <= 0 {
		c.Attendance.CheckInterval = 15 * time.Minute
	}
}

// defaultSQLiteDSN places the database under WRITABLE_PATH when set.
func defaultSQLiteDSN() string {
	dir := "data"
	if writable := util.WritablePath(); writable != "" {
		dir = filepath.Join(writable, "data")
	}
	return "file:" + filepath.ToSlash(filepath.Join(dir, "ems.db"))
}

// ResolveConfigPath returns the configuration path to use: the explicit path, then EMS_CONFIG,
// then config.yaml under WRITABLE_PATH, then config.yaml in the working directory.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		return env
	}
	if writable := util.WritablePath(); writable != "" {
		return filepath.Join(writable, DefaultConfigFile)
	}
	return DefaultConfigFile
}

// ConfigExists reports whether a configuration file exists at path.
func ConfigExists(path string) bool {
	info, errStat := os.Stat(path)
	return errStat == nil && !info.IsDir()
}

// LoadConfig reads path, applies .env and environment overrides and fills defaults. A missing
// file is not an error; the service then runs on defaults and environment values.
func LoadConfig(path string) (*Config, error) {
	loadDotEnv(path)

	cfg := newConfig()
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errParse := yaml.Unmarshal(data, cfg); errParse != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errParse)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	if errEnv := cfg.applyEnv(); errEnv != nil {
		return nil, errEnv
	}
	cfg.applyDefaults()
	if errValidate := cfg.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

// loadDotEnv loads .env from the working directory and from the config directory. Variables that
// are already set win over file values.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "" && dir != "." {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, candidate := range candidates {
		if !ConfigExists(candidate) {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv(EnvDatabaseDSN); ok {
		c.Database.DSN = v
	}
	if v, ok := lookupEnv(EnvJWTSecret); ok {
		c.JWT.Secret = v
	}
	if v, ok := lookupEnv(EnvListen); ok {
		c.Server.Listen = v
	}
	if v, ok := lookupEnv(EnvRedisAddr); ok {
		c.Redis.Addr = v
	}
	if v, ok := lookupEnv(EnvLogLevel); ok {
		c.Logging.Level = v
	}
	if v, ok := lookupEnv("EMS_BILLING_CURRENCY"); ok {
		c.Billing.Currency = v
	}
	if v, ok := lookupEnv("EMS_REDIS_DB"); ok {
		db, errParse := strconv.Atoi(v)
		if errParse != nil {
			return fmt.Errorf("config: EMS_REDIS_DB: %w", errParse)
		}
		c.Redis.DB = db
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Billing.FormulaMaxLength < 0 {
		return fmt.Errorf("config: billing.formula_max_length must not be negative")
	}
	if c.Auth.PasswordCost != 0 && (c.Auth.PasswordCost < 4 || c.Auth.PasswordCost > 31) {
		return fmt.Errorf("config: auth.password_cost must be between 4 and 31")
	}
	if c.Attendance.AutoCloseAfterHours < 0 {
		return fmt.Errorf("config: attendance.auto_close_after_hours must not be negative")
	}
	if len(c.Billing.Currency) != 3 {
		return fmt.Errorf("config: billing.currency %q is not an ISO 4217 code", c.Billing.Currency)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: logging.format %q must be text or json", c.Logging.Format)
	}
	return nil
}

// LoadDatabaseDSN returns the configured database DSN.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, errLoad := LoadConfig(path)
	if errLoad != nil {
		return "", errLoad
	}
	return cfg.Database.DSN, nil
}

// LoadJWTConfig returns the JWT settings. The secret is required.
func LoadJWTConfig(path string) (JWTConfig, error) {
	cfg, errLoad := LoadConfig(path)
	if errLoad != nil {
		return JWTConfig{}, errLoad
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return JWTConfig{}, ErrMissingJWTSecret
	}
	return cfg.JWT, nil
}
