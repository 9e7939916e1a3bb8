package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr %q", cfg.Server.ListenAddr)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if cfg.Accrual.Spec != "@daily" {
		t.Fatalf("unexpected accrual spec %q", cfg.Accrual.Spec)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := []byte(`
server:
  listen_addr: ":9999"
storage:
  backend: redis
  redis_addr: localhost:6379
telegram:
  bot_username: my_bot
logging:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":9999" {
		t.Fatalf("unexpected listen addr %q", cfg.Server.ListenAddr)
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Telegram.BotUsername != "my_bot" {
		t.Fatalf("unexpected bot username %q", cfg.Telegram.BotUsername)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/usdt")
	t.Setenv("CRON_SECRET", "s3cret")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":7070" {
		t.Fatalf("unexpected listen addr %q", cfg.Server.ListenAddr)
	}
	if cfg.Storage.Backend != "postgres" {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if cfg.Auth.CronSecret != "s3cret" {
		t.Fatalf("unexpected cron secret %q", cfg.Auth.CronSecret)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected postgres without a DSN to fail validation")
	}

	t.Setenv("STORAGE_BACKEND", "floppy")
	t.Setenv("DATABASE_URL", "postgres://localhost/usdt")
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an unknown backend to fail validation")
	}
}
