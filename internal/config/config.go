package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the facetdex API configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	Query   QueryConfig   `yaml:"query"`
	Facets  FacetsConfig  `yaml:"facets"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig holds search backend connection settings.
type BackendConfig struct {
	Addresses          []string `yaml:"addresses"`
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	TimeoutSec         int      `yaml:"timeout_sec"`
	MaxRPS             float64  `yaml:"max_rps"` // 0 = unlimited
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
	ReadinessTimeout   int      `yaml:"readiness_timeout_sec"`
	ResultWindow       int      `yaml:"result_window"`
	ScrollKeepAliveSec int      `yaml:"scroll_keep_alive_sec"`
}

// QueryConfig holds descriptor and paging settings.
type QueryConfig struct {
	Descriptors     []string `yaml:"descriptors"`
	DefaultPageSize int      `yaml:"default_page_size"`
	MaxPageSize     int      `yaml:"max_page_size"`
	MaxBatchSize    int      `yaml:"max_batch_size"`
	Parallelism     int      `yaml:"parallelism"`
}

// FacetsConfig holds facet set and cache settings.
type FacetsConfig struct {
	File            string `yaml:"file"`
	CacheDriver     string `yaml:"cache_driver"` // memory, redis, none (default: memory)
	CacheTTLSec     int    `yaml:"cache_ttl_sec"`
	CacheMaxEntries int    `yaml:"cache_max_entries"`
}

// RedisConfig holds the shared cache connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
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
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = 30
	}
	if c.Backend.ReadinessTimeout <= 0 {
		c.Backend.ReadinessTimeout = 30
	}
	if c.Backend.ResultWindow <= 0 {
		c.Backend.ResultWindow = 10000
	}
	if c.Backend.ScrollKeepAliveSec <= 0 {
		c.Backend.ScrollKeepAliveSec = 10
	}
	if len(c.Query.Descriptors) == 0 {
		c.Query.Descriptors = []string{"config/queries.yaml"}
	}
	if c.Query.DefaultPageSize <= 0 {
		c.Query.DefaultPageSize = 20
	}
	if c.Query.MaxPageSize <= 0 {
		c.Query.MaxPageSize = 10000
	}
	if c.Query.MaxBatchSize <= 0 {
		c.Query.MaxBatchSize = 100
	}
	if c.Query.Parallelism <= 0 {
		c.Query.Parallelism = 8
	}
	if c.Facets.File == "" {
		c.Facets.File = "config/facets.yaml"
	}
	if c.Facets.CacheDriver == "" {
		c.Facets.CacheDriver = "memory"
	}
	if c.Facets.CacheTTLSec <= 0 {
		c.Facets.CacheTTLSec = 300
	}
	if c.Facets.CacheMaxEntries <= 0 {
		c.Facets.CacheMaxEntries = 1000
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Backend.Addresses) == 0 {
		return fmt.Errorf("backend.addresses is required")
	}
	if c.Backend.MaxRPS < 0 {
		return fmt.Errorf("backend.max_rps must not be negative, got %v", c.Backend.MaxRPS)
	}
	if c.Query.MaxPageSize > 10000 {
		return fmt.Errorf("query.max_page_size must be at most 10000, got %d", c.Query.MaxPageSize)
	}
	if c.Query.DefaultPageSize > c.Query.MaxPageSize {
		return fmt.Errorf("query.default_page_size %d exceeds max_page_size %d",
			c.Query.DefaultPageSize, c.Query.MaxPageSize)
	}
	switch c.Facets.CacheDriver {
	case "memory", "none":
	case "redis":
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required when facets.cache_driver is redis")
		}
	default:
		return fmt.Errorf("facets.cache_driver must be \"memory\", \"redis\" or \"none\", got %q", c.Facets.CacheDriver)
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
