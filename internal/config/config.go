package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // timezone database for minimal containers

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the data directory
const FileName = "recovery.yaml"

// Config holds all configuration for the recovery tracker
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Security SecurityConfig `mapstructure:"security"`
	Recovery RecoveryConfig `mapstructure:"recovery"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	Backend    string        `mapstructure:"backend"` // sqlite, badger
	DataDir    string        `mapstructure:"data_dir"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	BadgerPath string        `mapstructure:"badger_path"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig holds circuit breaker settings for store calls
type BreakerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	MaxRequests      uint32 `mapstructure:"max_requests"`
	IntervalSeconds  int    `mapstructure:"interval_seconds"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	FailureThreshold uint32 `mapstructure:"failure_threshold"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret      string   `mapstructure:"jwt_secret"`
	AllowOrigins   []string `mapstructure:"allow_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// RecoveryConfig holds program behaviour settings
type RecoveryConfig struct {
	Timezone string `mapstructure:"timezone"`
	Warmup   bool   `mapstructure:"warmup"`
}

// CatalogConfig holds program catalog settings
type CatalogConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.SetDefault("storage.data_dir", dataDir)

	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join(dataDir, FileName)
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if explicit {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigNotFound.Code, "configuration not found")
	}

	// Environment variables (RECOVERY_SERVER_PORT, RECOVERY_STORAGE_BACKEND, etc.)
	v.SetEnvPrefix("RECOVERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.DataDir, "recovery.db")
	}
	if cfg.Storage.BadgerPath == "" {
		cfg.Storage.BadgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.breaker.enabled", true)
	v.SetDefault("storage.breaker.max_requests", 1)
	v.SetDefault("storage.breaker.interval_seconds", 60)
	v.SetDefault("storage.breaker.timeout_seconds", 30)
	v.SetDefault("storage.breaker.failure_threshold", 5)

	v.SetDefault("security.allow_origins", []string{"*"})
	v.SetDefault("security.rate_limit_rps", 10.0)
	v.SetDefault("security.rate_limit_burst", 20)

	v.SetDefault("recovery.timezone", "UTC")
	v.SetDefault("recovery.warmup", true)

	v.SetDefault("catalog.watch", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// DefaultDataDir is where data and recovery.yaml live when --data is not set
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "recovery-tracker")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "recovery-tracker")
}

// bindEnv registers keys without defaults, which AutomaticEnv alone would
// not surface through Unmarshal.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{"storage.sqlite_path", "storage.badger_path", "catalog.path"} {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("security.jwt_secret", "RECOVERY_SECURITY_JWT_SECRET", "RECOVERY_JWT_SECRET", "JWT_SECRET")
}

func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "sqlite", "badger":
	default:
		return apperrors.Invalid(apperrors.ErrConfigInvalid, "storage.backend must be sqlite or badger, got %q", cfg.Storage.Backend)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return apperrors.Invalid(apperrors.ErrConfigInvalid, "server.port %d out of range", cfg.Server.Port)
	}

	if _, err := time.LoadLocation(cfg.Recovery.Timezone); err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfigInvalid.Code, "recovery.timezone")
	}

	if cfg.Security.RateLimitRPS < 0 || cfg.Security.RateLimitBurst < 0 {
		return apperrors.Invalid(apperrors.ErrConfigInvalid, "security rate limits must not be negative")
	}

	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = generateRandomString(32)
	}

	return nil
}

// GenerateSecret returns a random hex secret suitable for security.jwt_secret
func GenerateSecret() string {
	return generateRandomString(64)
}

func generateRandomString(n int) string {
	b := make([]byte, n/2)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("x", n)
	}
	return hex.EncodeToString(b)
}

// Location returns the time zone that defines a calendar day
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Recovery.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr returns the host:port the HTTP server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
