// Package config loads the server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/podcastofficial/Usdt-miner/pkg/logger"
)

// Duration parses YAML values like "15s" or "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level server configuration.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Storage  StorageConfig        `yaml:"storage"`
	Auth     AuthConfig           `yaml:"auth"`
	Accrual  AccrualConfig        `yaml:"accrual"`
	Telegram TelegramConfig       `yaml:"telegram"`
	Logging  logger.LoggingConfig `yaml:"logging"`
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	ListenAddr      string   `yaml:"listen_addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	RateRPS         float64  `yaml:"rate_rps"`
	RateBurst       int      `yaml:"rate_burst"`
}

// StorageConfig selects and configures the persistence backend.
// Backend is one of "memory", "postgres" or "redis".
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
}

// AuthConfig carries the secrets guarding the admin and cron surfaces.
type AuthConfig struct {
	AdminSecretHash string   `yaml:"admin_secret_hash"`
	JWTKey          string   `yaml:"jwt_key"`
	CronSecret      string   `yaml:"cron_secret"`
	TokenTTL        Duration `yaml:"token_ttl"`
}

// AccrualConfig controls the daily accrual scheduler.
type AccrualConfig struct {
	Spec     string `yaml:"spec"`
	Disabled bool   `yaml:"disabled"`
}

// TelegramConfig names the bot used for referral deep links.
type TelegramConfig struct {
	BotUsername string `yaml:"bot_username"`
}

// Load reads config/server.yaml, falling back to defaults when the file is
// absent, then applies environment overrides.
func Load() (*Config, error) {
	return LoadFromPath(filepath.Join("config", "server.yaml"))
}

// LoadFromPath loads the configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment are enough to run.
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: Duration(15 * time.Second),
			RateRPS:         10,
			RateBurst:       20,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Auth: AuthConfig{
			TokenTTL: Duration(time.Hour),
		},
		Accrual: AccrualConfig{
			Spec: "@daily",
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func (c *Config) applyEnv() {
	setString(&c.Server.ListenAddr, "LISTEN_ADDR")
	setString(&c.Storage.Backend, "STORAGE_BACKEND")
	setString(&c.Storage.PostgresDSN, "DATABASE_URL")
	setString(&c.Storage.RedisAddr, "REDIS_ADDR")
	setInt(&c.Storage.RedisDB, "REDIS_DB")
	setString(&c.Auth.AdminSecretHash, "ADMIN_SECRET_HASH")
	setString(&c.Auth.JWTKey, "JWT_KEY")
	setString(&c.Auth.CronSecret, "CRON_SECRET")
	setString(&c.Accrual.Spec, "ACCRUAL_SPEC")
	setString(&c.Telegram.BotUsername, "BOT_USERNAME")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage backend postgres requires a DSN")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage backend redis requires an address")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}
