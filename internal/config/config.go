package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lmslight/lms-core/internal/ratelimit"
	internalsettings "github.com/lmslight/lms-core/internal/settings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"

	EnvRateLimitBackend       = "RATE_LIMIT_BACKEND"
	EnvRateLimitRedisAddr     = "RATE_LIMIT_REDIS_ADDR"
	EnvRateLimitRedisPassword = "RATE_LIMIT_REDIS_PASSWORD"
	EnvAIRequestLimit         = "AI_REQUEST_LIMIT"
	EnvAIReadingTextLimit     = "AI_READING_TEXT_LIMIT"
)

// LoadDotEnv loads environment variables from a .env file when it exists.
// Variables already present in the environment win.
func LoadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ".env"
	}
	if errLoad := godotenv.Load(path); errLoad != nil {
		if errors.Is(errLoad, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", errLoad)
	}
	log.WithField("path", path).Debug("loaded env file")
	return nil
}

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

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

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

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadLogConfig loads logger settings from the YAML config file and environment.
func LoadLogConfig(configPath string) LogConfig {
	// fileConfig maps the YAML fields needed for logging.
	type fileConfig struct {
		Log LogConfig `yaml:"log"`
	}

	result := LogConfig{Level: "info", Format: "text"}
	var cfg fileConfig
	if readYAML(configPath, &cfg) {
		if level := strings.TrimSpace(cfg.Log.Level); level != "" {
			result.Level = level
		}
		if format := strings.TrimSpace(cfg.Log.Format); format != "" {
			result.Format = format
		}
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		result.Level = level
	}
	if format := strings.TrimSpace(os.Getenv(EnvLogFormat)); format != "" {
		result.Format = format
	}
	return result
}

// RateLimitConfig holds the limiter backend, sweep cadence and policies.
type RateLimitConfig struct {
	Settings      ratelimit.SettingsConfig
	SweepInterval time.Duration
}

// LoadRateLimitConfig loads rate limit settings from the YAML config file and environment.
// Invalid values fall back to defaults.
func LoadRateLimitConfig(configPath string) RateLimitConfig {
	// fileConfig maps the YAML fields needed for rate limiting.
	type fileConfig struct {
		RateLimit struct {
			Backend       string        `yaml:"backend"`
			SweepInterval time.Duration `yaml:"sweep-interval"`
			Redis         struct {
				Addr     string `yaml:"addr"`
				Password string `yaml:"password"`
				DB       int    `yaml:"db"`
				Prefix   string `yaml:"prefix"`
			} `yaml:"redis"`
			Policies ratelimit.Policies `yaml:"policies"`
		} `yaml:"rate-limit"`
	}

	settings := ratelimit.DefaultSettingsConfig()
	sweepInterval := internalsettings.DefaultSweepInterval

	var cfg fileConfig
	if readYAML(configPath, &cfg) {
		rl := cfg.RateLimit
		settings.Backend = rl.Backend
		settings.RedisAddr = rl.Redis.Addr
		settings.RedisPassword = rl.Redis.Password
		settings.RedisDB = rl.Redis.DB
		if prefix := strings.TrimSpace(rl.Redis.Prefix); prefix != "" {
			settings.RedisPrefix = prefix
		}
		settings.Policies = rl.Policies
		if rl.SweepInterval > 0 {
			sweepInterval = rl.SweepInterval
		}
	}

	if backend := strings.TrimSpace(os.Getenv(EnvRateLimitBackend)); backend != "" {
		settings.Backend = backend
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRateLimitRedisAddr)); addr != "" {
		settings.RedisAddr = addr
	}
	if password := os.Getenv(EnvRateLimitRedisPassword); password != "" {
		settings.RedisPassword = password
	}
	if limit, ok := envPositiveInt(EnvAIRequestLimit); ok {
		settings.Policies.AIRequest.Limit = limit
	}
	if limit, ok := envPositiveInt(EnvAIReadingTextLimit); ok {
		settings.Policies.AIReadingText.Limit = limit
	}

	return RateLimitConfig{Settings: settings.Normalize(), SweepInterval: sweepInterval}
}

// readYAML decodes the config file into target and reports whether it succeeded.
func readYAML(configPath string, target any) bool {
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return false
	}
	if errUnmarshal := yaml.Unmarshal(data, target); errUnmarshal != nil {
		log.WithError(errUnmarshal).Warn("config: invalid yaml, using defaults")
		return false
	}
	return true
}

func envPositiveInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	value, errParse := strconv.Atoi(raw)
	if errParse != nil || value <= 0 {
		log.WithField("key", key).Warn("config: ignoring invalid positive integer")
		return 0, false
	}
	return value, true
}
