package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"browser_use":{"env_file":""}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	bu := cfg.BrowserUse
	if bu.BaseURL != "https://api.browser-use.com/api/v2" {
		t.Fatalf("base url = %q", bu.BaseURL)
	}
	if bu.PollInterval != 2*time.Second || bu.MaxAttempts != 180 || bu.MaxSteps != 100 {
		t.Fatalf("unexpected poll defaults: %+v", bu)
	}
	if cfg.Server.Address != ":10001" {
		t.Fatalf("address = %q", cfg.Server.Address)
	}
	if cfg.Worker.Stream != "extraction.requested" || cfg.Worker.Concurrency != 4 {
		t.Fatalf("unexpected worker defaults: %+v", cfg.Worker)
	}
	if cfg.Storage.Redis.Enabled() {
		t.Fatalf("redis should be disabled without a host")
	}
	if !errors.Is(bu.Validate(), ErrBrowserUseKeyMissing) {
		t.Fatalf("expected missing key error, got %v", bu.Validate())
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
browser_use:
  api_key: from-file
  base_url: https://bu.internal/api/v2/
  poll_interval: 500ms
  env_file: ""
storage:
  redis:
    host: redis
    port: "6380"
worker:
  concurrency: 2
`)
	t.Setenv("WEBSCRAPER_SERVER_ADDRESS", ":9000")
	t.Setenv("BROWSER_USE_API_KEY", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BrowserUse.APIKey != "from-env" {
		t.Fatalf("env should override file, got %q", cfg.BrowserUse.APIKey)
	}
	if cfg.BrowserUse.BaseURL != "https://bu.internal/api/v2" {
		t.Fatalf("base url = %q", cfg.BrowserUse.BaseURL)
	}
	if cfg.BrowserUse.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval = %v", cfg.BrowserUse.PollInterval)
	}
	if cfg.Server.Address != ":9000" {
		t.Fatalf("address = %q", cfg.Server.Address)
	}
	if cfg.Storage.Redis.Addr() != "redis:6380" || cfg.Worker.Concurrency != 2 {
		t.Fatalf("unexpected storage/worker: %+v %+v", cfg.Storage.Redis, cfg.Worker)
	}
	if err := cfg.BrowserUse.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfigEnvFileFallback(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "# sandbox env\nBROWSER_USE_API_KEY=sandbox-key\nBROWSER_USE_BASE_URL=https://sandbox.example/api\n")
	path := writeFile(t, dir, "config.json", `{"browser_use":{"env_file":"`+envFile+`"}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BrowserUse.APIKey != "sandbox-key" || cfg.BrowserUse.BaseURL != "https://sandbox.example/api" {
		t.Fatalf("env file not applied: %+v", cfg.BrowserUse)
	}
}

func TestLoadConfigProcessEnvBeatsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "BROWSER_USE_API_KEY=sandbox-key\n")
	path := writeFile(t, dir, "config.json", `{"browser_use":{"env_file":"`+envFile+`"}}`)
	t.Setenv("BROWSER_USE_API_KEY", "process-key")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BrowserUse.APIKey != "process-key" {
		t.Fatalf("api key = %q", cfg.BrowserUse.APIKey)
	}
	if cfg.BrowserUse.BaseURL != "https://api.browser-use.com/api/v2" {
		t.Fatalf("base url = %q", cfg.BrowserUse.BaseURL)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestReadEnvFileMissing(t *testing.T) {
	vals, err := ReadEnvFile(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil || len(vals) != 0 {
		t.Fatalf("expected empty map, got %v %v", vals, err)
	}
}

func TestLoadConfigUnreadableEnvFileIsOptional(t *testing.T) {
	dir := t.TempDir()
	envDir := filepath.Join(dir, "envdir")
	if err := os.Mkdir(envDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("WEBSCRAPER_BROWSER_USE_ENV_FILE", envDir)
	t.Setenv("BROWSER_USE_API_KEY", "")
	t.Setenv("WEBSCRAPER_BROWSER_USE_API_KEY", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BrowserUse.APIKey != "" {
		t.Fatalf("api key = %q", cfg.BrowserUse.APIKey)
	}
	if len(cfg.Warnings) != 1 || !strings.Contains(cfg.Warnings[0], "envdir") {
		t.Fatalf("warnings = %v", cfg.Warnings)
	}
}

func TestRedisValidate(t *testing.T) {
	if err := (RedisConfig{Host: "r", Port: "", JobTTL: time.Hour}).Validate(); err == nil {
		t.Fatalf("expected port error")
	}
	if err := (RedisConfig{Host: "r", Port: "6379"}).Validate(); err == nil {
		t.Fatalf("expected ttl error")
	}
	if err := (RedisConfig{}).Validate(); err != nil {
		t.Fatalf("disabled redis should validate: %v", err)
	}
}
