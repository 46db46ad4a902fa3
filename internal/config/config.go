package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the songdex service configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Catalog CatalogConfig `yaml:"catalog"`
	Index   IndexConfig   `yaml:"index"`
	LastFM  LastFMConfig  `yaml:"lastfm"`
	Cache   CacheConfig   `yaml:"cache"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig points at the catalog files. ParquetPath wins when set.
type CatalogConfig struct {
	SongsPath    string `yaml:"songs_path"`
	FeaturesPath string `yaml:"features_path"`
	ParquetPath  string `yaml:"parquet_path"`
}

// IndexConfig holds neighbour search settings.
type IndexConfig struct {
	K    int `yaml:"k"`
	TopN int `yaml:"top_n"`
}

// LastFMConfig holds the similar-tracks provider settings.
// An empty APIKey disables hybrid recommendations.
type LastFMConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Limit       int           `yaml:"limit"`
	TimeoutMs   int           `yaml:"timeout_ms"`
	RatePerSec  float64       `yaml:"rate_per_sec"`
	Concurrency int           `yaml:"concurrency"`
	Breaker     BreakerConfig `yaml:"breaker"`
	Quota       QuotaConfig   `yaml:"quota"`
	// DeepHealth makes /health call Last.fm instead of reporting breaker state only.
	DeepHealth bool `yaml:"deep_health"`
}

// Enabled reports whether hybrid recommendations are configured.
func (c *LastFMConfig) Enabled() bool { return c.APIKey != "" }

// Timeout returns the per-lookup timeout.
func (c *LastFMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// BreakerConfig holds circuit breaker settings for the provider.
type BreakerConfig struct {
	MaxRequests  uint32  `yaml:"max_requests"`
	IntervalSec  int     `yaml:"interval_sec"`
	TimeoutSec   int     `yaml:"timeout_sec"`
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio"`
}

// QuotaConfig caps provider requests per UTC day and month. Zero means unlimited.
type QuotaConfig struct {
	DailyLimit   int64  `yaml:"daily_limit"`
	MonthlyLimit int64  `yaml:"monthly_limit"`
	Action       string `yaml:"action"` // warn, reject (default: warn)
}

// Enabled reports whether any limit is set.
func (c *QuotaConfig) Enabled() bool { return c.DailyLimit > 0 || c.MonthlyLimit > 0 }

// CacheConfig holds the optional similar-tracks cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Index.K <= 0 {
		c.Index.K = 5
	}
	if c.Index.TopN <= 0 {
		c.Index.TopN = 5
	}
	if c.LastFM.BaseURL == "" {
		c.LastFM.BaseURL = "https://ws.audioscrobbler.com/2.0/"
	}
	if c.LastFM.TimeoutMs <= 0 {
		c.LastFM.TimeoutMs = 5000
	}
	if c.LastFM.Concurrency <= 0 {
		c.LastFM.Concurrency = 1
	}
	if c.LastFM.RatePerSec <= 0 {
		c.LastFM.RatePerSec = 5
	}
	if c.LastFM.Quota.Action == "" {
		c.LastFM.Quota.Action = "warn"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "valkey"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 86400
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Catalog.ParquetPath == "" && (c.Catalog.SongsPath == "" || c.Catalog.FeaturesPath == "") {
		return fmt.Errorf("catalog.songs_path and catalog.features_path are required unless catalog.parquet_path is set")
	}
	if c.LastFM.Limit < 0 {
		return fmt.Errorf("lastfm.limit must not be negative, got %d", c.LastFM.Limit)
	}
	if r := c.LastFM.Breaker.FailureRatio; r < 0 || r > 1 {
		return fmt.Errorf("lastfm.breaker.failure_ratio must be between 0 and 1, got %g", r)
	}
	if q := c.LastFM.Quota; q.DailyLimit < 0 || q.MonthlyLimit < 0 {
		return fmt.Errorf("lastfm.quota limits must not be negative")
	}
	switch c.LastFM.Quota.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("lastfm.quota.action must be \"warn\" or \"reject\", got %q", c.LastFM.Quota.Action)
	}
	if c.Cache.Enabled {
		switch c.Cache.Driver {
		case "valkey", "redis":
			// ok
		default:
			return fmt.Errorf("cache.driver must be \"valkey\" or \"redis\", got %q", c.Cache.Driver)
		}
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required when cache is enabled")
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
