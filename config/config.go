package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammad-safakhou/webscraper/internal/browseruse"
	"github.com/spf13/viper"
)

// ErrBrowserUseKeyMissing is returned when no Browser Use API key is configured.
var ErrBrowserUseKeyMissing = errors.New("BROWSER_USE_API_KEY is not configured in runtime env; set it in the deployment env vars or in browser_use.env_file")

// Config holds all configuration for the scraper service
type Config struct {
	BrowserUse BrowserUseConfig `mapstructure:"browser_use"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Logging    LoggingConfig    `mapstructure:"logging"`

	// Warnings collects non-fatal load problems, logged once a logger exists.
	Warnings []string `mapstructure:"-"`
}

// BrowserUseConfig contains Browser Use cloud settings
type BrowserUseConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	MaxSteps       int           `mapstructure:"max_steps"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	EnvFile        string        `mapstructure:"env_file"`
}

// Normalize applies defaults for unset values.
func (b BrowserUseConfig) Normalize() BrowserUseConfig {
	b.APIKey = strings.TrimSpace(b.APIKey)
	b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	if b.BaseURL == "" {
		b.BaseURL = browseruse.DefaultBaseURL
	}
	if b.PollInterval <= 0 {
		b.PollInterval = browseruse.DefaultPollInterval
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = browseruse.DefaultMaxAttempts
	}
	if b.MaxSteps <= 0 {
		b.MaxSteps = browseruse.DefaultMaxSteps
	}
	if b.RequestTimeout <= 0 {
		b.RequestTimeout = browseruse.DefaultRequestTimeout
	}
	return b
}

// Validate is called lazily by the components that talk to Browser Use, so
// tools that only normalize payloads work without a key.
func (b BrowserUseConfig) Validate() error {
	if b.APIKey == "" {
		return ErrBrowserUseKeyMissing
	}
	if !strings.HasPrefix(b.BaseURL, "http://") && !strings.HasPrefix(b.BaseURL, "https://") {
		return fmt.Errorf("browser_use.base_url must be an http(s) url")
	}
	return nil
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	JobTTL   time.Duration `mapstructure:"job_ttl"`
}

// Enabled reports whether a Redis host was configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// Addr returns host:port.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	if r.JobTTL <= 0 {
		return fmt.Errorf("storage.redis.job_ttl must be > 0")
	}
	return nil
}

// WorkerConfig controls the async extraction worker
type WorkerConfig struct {
	Stream      string        `mapstructure:"stream"`
	Group       string        `mapstructure:"group"`
	Concurrency int           `mapstructure:"concurrency"`
	Block       time.Duration `mapstructure:"block"`
	// MaxLen caps the request stream at roughly this many entries; 0 leaves it unbounded.
	MaxLen int64 `mapstructure:"max_len"`
}

func (w WorkerConfig) Validate() error {
	if strings.TrimSpace(w.Stream) == "" || strings.TrimSpace(w.Group) == "" {
		return fmt.Errorf("worker.stream and worker.group are required")
	}
	if w.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	return nil
}

// FetchConfig contains headless page preview settings
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	UserAgent string        `mapstructure:"user_agent"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browser_use.api_key", "")
	v.SetDefault("browser_use.base_url", "")
	v.SetDefault("browser_use.poll_interval", browseruse.DefaultPollInterval)
	v.SetDefault("browser_use.max_attempts", browseruse.DefaultMaxAttempts)
	v.SetDefault("browser_use.max_steps", browseruse.DefaultMaxSteps)
	v.SetDefault("browser_use.request_timeout", browseruse.DefaultRequestTimeout)
	v.SetDefault("browser_use.env_file", "/home/user/.env")
	v.SetDefault("server.address", ":10001")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("storage.redis.host", "")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.redis.job_ttl", 24*time.Hour)
	v.SetDefault("worker.stream", "extraction.requested")
	v.SetDefault("worker.group", "extraction-workers")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.block", 5*time.Second)
	v.SetDefault("worker.max_len", 10000)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_chars", 12000)
	v.SetDefault("fetch.user_agent", "WebScraper/1.0 (+https://github.com/mohammad-safakhou/webscraper)")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
}

// LoadConfig loads config from path, or from config.{json,yaml} in the usual
// search paths when path is empty. A missing file in the search paths is not
// an error; environment variables (WEBSCRAPER_*) still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, ".."))
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("WEBSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the bare names are what hosted agent runtimes inject
	_ = v.BindEnv("browser_use.api_key", "WEBSCRAPER_BROWSER_USE_API_KEY", "BROWSER_USE_API_KEY")
	_ = v.BindEnv("browser_use.base_url", "WEBSCRAPER_BROWSER_USE_BASE_URL", "BROWSER_USE_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	bu, err := applyEnvFile(cfg.BrowserUse)
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, err.Error())
	}
	cfg.BrowserUse = bu.Normalize()

	if err := cfg.Storage.Redis.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Worker.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
