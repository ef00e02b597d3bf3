// Package config loads the epd-ingest configuration from a YAML file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendS3       = "s3"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Token sources.
const (
	TokenSourceEnv    = "env"
	TokenSourceSSM    = "ssm"
	TokenSourceStatic = "static"
)

// Config is the complete application configuration.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Token    TokenConfig    `yaml:"token"`
	Batches  BatchesConfig  `yaml:"batches"`
	Records  RecordsConfig  `yaml:"records"`
	Redis    RedisConfig    `yaml:"redis"`
	S3       S3Config       `yaml:"s3"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
}

// CatalogConfig configures the catalog API client.
type CatalogConfig struct {
	URL            string        `yaml:"url"`
	UserAgent      string        `yaml:"user_agent"`
	ValidUntil     int           `yaml:"valid_until"` // 0 = current year
	RateLimit      float64       `yaml:"rate_limit"`  // requests per second, 0 = unlimited
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
}

// TokenConfig selects where the bearer token comes from.
type TokenConfig struct {
	Source       string `yaml:"source"` // env, ssm, static
	EnvVar       string `yaml:"env_var"`
	Value        string `yaml:"value"`
	SSMParameter string `yaml:"ssm_parameter"`
	Region       string `yaml:"region"`
}

// BatchesConfig configures durable batch storage.
type BatchesConfig struct {
	Backend string        `yaml:"backend"` // memory, redis, s3
	Prefix  string        `yaml:"prefix"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"` // redis only
}

// RecordsConfig configures the destination store.
type RecordsConfig struct {
	Backend     string `yaml:"backend"` // memory, redis, s3, sqlite, postgres
	Prefix      string `yaml:"prefix"`
	OnDuplicate string `yaml:"on_duplicate"` // skip, overwrite
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	MaxConns    int    `yaml:"max_conns"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	URL       string `yaml:"url"` // host:port or redis:// URL
	KeyPrefix string `yaml:"key_prefix"`
}

// S3Config configures the S3 bucket.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // MinIO, LocalStack
}

// PipelineConfig configures the processing phase.
type PipelineConfig struct {
	Concurrency      int           `yaml:"concurrency"`
	ResolveTimeout   time.Duration `yaml:"resolve_timeout"`
	BatchParallelism int           `yaml:"batch_parallelism"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Catalog: CatalogConfig{
			URL:            "https://data.eco-platform.org/resource/processes",
			UserAgent:      "epd-ingest/0.1.0",
			RateLimit:      10,
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			InitialBackoff: time.Second,
		},
		Token: TokenConfig{
			Source:       TokenSourceEnv,
			EnvVar:       "ECOPLATFORM_TOKEN",
			SSMParameter: "/etl/ECOPLATFORM_TOKEN",
			Region:       "eu-west-3",
		},
		Batches: BatchesConfig{
			Backend: BackendMemory,
			Prefix:  "batches/eco",
			Size:    200,
		},
		Records: RecordsConfig{
			Backend:     BackendMemory,
			Prefix:      "eco",
			OnDuplicate: "skip",
			SQLitePath:  "epd.db",
			MaxConns:    8,
		},
		Redis: RedisConfig{
			URL:       "localhost:6379",
			KeyPrefix: "epd:",
		},
		S3: S3Config{
			Region: "eu-west-3",
		},
		Pipeline: PipelineConfig{
			Concurrency:      8,
			ResolveTimeout:   60 * time.Second,
			BatchParallelism: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the YAML file at path (if path is not empty) over the defaults,
// applies environment overrides and validates the result. ${VAR} references
// in the file are expanded.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides values from the environment.
func (c *Config) applyEnv() error {
	c.Catalog.URL = getEnv("EPD_CATALOG_URL", c.Catalog.URL)
	c.Catalog.UserAgent = getEnv("EPD_USER_AGENT", c.Catalog.UserAgent)

	c.Token.Source = getEnv("EPD_TOKEN_SOURCE", c.Token.Source)
	c.Token.SSMParameter = getEnv("EPD_TOKEN_SSM_PARAMETER", c.Token.SSMParameter)

	c.Batches.Backend = getEnv("EPD_BATCH_BACKEND", c.Batches.Backend)
	c.Records.Backend = getEnv("EPD_RECORD_BACKEND", c.Records.Backend)
	c.Records.OnDuplicate = getEnv("EPD_ON_DUPLICATE", c.Records.OnDuplicate)
	c.Records.SQLitePath = getEnv("EPD_SQLITE_PATH", c.Records.SQLitePath)
	c.Records.PostgresDSN = getEnv("EPD_POSTGRES_DSN", c.Records.PostgresDSN)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.S3.Bucket = getEnv("BUCKET_NAME", c.S3.Bucket)
	c.S3.Endpoint = getEnv("EPD_S3_ENDPOINT", c.S3.Endpoint)

	c.Log.Level = getEnv("EPD_LOG_LEVEL", c.Log.Level)
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}

	var err error
	if c.Batches.Size, err = getEnvInt("EPD_BATCH_SIZE", c.Batches.Size); err != nil {
		return err
	}
	if c.Pipeline.Concurrency, err = getEnvInt("EPD_CONCURRENCY", c.Pipeline.Concurrency); err != nil {
		return err
	}
	if c.Pipeline.BatchParallelism, err = getEnvInt("EPD_BATCH_PARALLELISM", c.Pipeline.BatchParallelism); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Catalog.URL == "" {
		return fmt.Errorf("catalog.url is required")
	}
	if c.Catalog.UserAgent == "" {
		return fmt.Errorf("catalog.user_agent is required")
	}
	if c.Catalog.RateLimit < 0 {
		return fmt.Errorf("catalog.rate_limit must be >= 0 (got %v)", c.Catalog.RateLimit)
	}
	if c.Catalog.MaxRetries < 1 {
		return fmt.Errorf("catalog.max_retries must be >= 1 (got %d)", c.Catalog.MaxRetries)
	}

	switch c.Token.Source {
	case TokenSourceEnv, TokenSourceSSM:
	case TokenSourceStatic:
		if c.Token.Value == "" {
			return fmt.Errorf("token.value is required for the static token source")
		}
	default:
		return fmt.Errorf("token.source must be one of env, ssm, static (got %q)", c.Token.Source)
	}

	switch c.Batches.Backend {
	case BackendMemory, BackendRedis, BackendS3:
	default:
		return fmt.Errorf("batches.backend must be one of memory, redis, s3 (got %q)", c.Batches.Backend)
	}
	if c.Batches.Size <= 0 {
		return fmt.Errorf("batches.size must be > 0 (got %d)", c.Batches.Size)
	}

	switch c.Records.Backend {
	case BackendMemory, BackendRedis, BackendS3:
	case BackendSQLite:
		if c.Records.SQLitePath == "" {
			return fmt.Errorf("records.sqlite_path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Records.PostgresDSN == "" {
			return fmt.Errorf("records.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("records.backend must be one of memory, redis, s3, sqlite, postgres (got %q)", c.Records.Backend)
	}

	switch strings.ToLower(c.Records.OnDuplicate) {
	case "", "skip", "overwrite":
	default:
		return fmt.Errorf("records.on_duplicate must be skip or overwrite (got %q)", c.Records.OnDuplicate)
	}

	if (c.Batches.Backend == BackendS3 || c.Records.Backend == BackendS3) && c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required for the s3 backend")
	}

	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0 (got %d)", c.Pipeline.Concurrency)
	}
	if c.Pipeline.BatchParallelism <= 0 {
		return fmt.Errorf("pipeline.batch_parallelism must be > 0 (got %d)", c.Pipeline.BatchParallelism)
	}
	if c.Pipeline.ResolveTimeout <= 0 {
		return fmt.Errorf("pipeline.resolve_timeout must be > 0 (got %v)", c.Pipeline.ResolveTimeout)
	}

	return nil
}

// UsesRedis reports whether any configured backend needs Redis.
func (c *Config) UsesRedis() bool {
	return c.Batches.Backend == BackendRedis || c.Records.Backend == BackendRedis
}

// UsesS3 reports whether any configured backend needs S3.
func (c *Config) UsesS3() bool {
	return c.Batches.Backend == BackendS3 || c.Records.Backend == BackendS3
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", key, value)
	}
	return n, nil
}
