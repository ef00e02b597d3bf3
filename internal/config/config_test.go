package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "epd-ingest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 200, cfg.Batches.Size)
	assert.Equal(t, "batches/eco", cfg.Batches.Prefix)
	assert.Equal(t, "eco", cfg.Records.Prefix)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, 10, cfg.Pipeline.BatchParallelism)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.ResolveTimeout)
	assert.Equal(t, "/etl/ECOPLATFORM_TOKEN", cfg.Token.SSMParameter)
	assert.Equal(t, "eu-west-3", cfg.Token.Region)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Batches.Backend)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
catalog:
  user_agent: test-agent/1.0
  timeout: 5s
batches:
  backend: redis
  size: 50
  ttl: 24h
records:
  backend: sqlite
  sqlite_path: /tmp/epd.db
  on_duplicate: overwrite
pipeline:
  concurrency: 4
  resolve_timeout: 15s
log:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-agent/1.0", cfg.Catalog.UserAgent)
	assert.Equal(t, 5*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, BackendRedis, cfg.Batches.Backend)
	assert.Equal(t, 50, cfg.Batches.Size)
	assert.Equal(t, 24*time.Hour, cfg.Batches.TTL)
	assert.Equal(t, BackendSQLite, cfg.Records.Backend)
	assert.Equal(t, "overwrite", cfg.Records.OnDuplicate)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.ResolveTimeout)
	assert.True(t, cfg.Log.Pretty)

	// untouched keys keep their defaults
	assert.Equal(t, "batches/eco", cfg.Batches.Prefix)
	assert.Equal(t, 10, cfg.Pipeline.BatchParallelism)
	assert.True(t, cfg.UsesRedis())
	assert.False(t, cfg.UsesS3())
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("EPD_TEST_BUCKET", "epd-data")
	path := writeConfig(t, `
batches:
  backend: s3
s3:
  bucket: ${EPD_TEST_BUCKET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "epd-data", cfg.S3.Bucket)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("BUCKET_NAME", "from-env")
	t.Setenv("EPD_CONCURRENCY", "16")
	t.Setenv("EPD_ON_DUPLICATE", "overwrite")
	t.Setenv("PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, "from-env", cfg.S3.Bucket)
	assert.Equal(t, 16, cfg.Pipeline.Concurrency)
	assert.Equal(t, "overwrite", cfg.Records.OnDuplicate)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "batches: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("invalid env int", func(t *testing.T) {
		t.Setenv("EPD_BATCH_SIZE", "many")
		_, err := Load("")
		assert.ErrorContains(t, err, "EPD_BATCH_SIZE")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:     "empty user agent",
			mutate:   func(c *Config) { c.Catalog.UserAgent = "" },
			errorMsg: "catalog.user_agent is required",
		},
		{
			name:     "negative rate limit",
			mutate:   func(c *Config) { c.Catalog.RateLimit = -1 },
			errorMsg: "catalog.rate_limit must be >= 0",
		},
		{
			name:     "zero batch size",
			mutate:   func(c *Config) { c.Batches.Size = 0 },
			errorMsg: "batches.size must be > 0",
		},
		{
			name:     "unknown batch backend",
			mutate:   func(c *Config) { c.Batches.Backend = "sqlite" },
			errorMsg: "batches.backend must be one of",
		},
		{
			name:     "unknown record backend",
			mutate:   func(c *Config) { c.Records.Backend = "mongo" },
			errorMsg: "records.backend must be one of",
		},
		{
			name:     "postgres without dsn",
			mutate:   func(c *Config) { c.Records.Backend = BackendPostgres },
			errorMsg: "records.postgres_dsn is required",
		},
		{
			name:     "s3 without bucket",
			mutate:   func(c *Config) { c.Records.Backend = BackendS3 },
			errorMsg: "s3.bucket is required",
		},
		{
			name:     "unknown duplicate policy",
			mutate:   func(c *Config) { c.Records.OnDuplicate = "merge" },
			errorMsg: "records.on_duplicate must be skip or overwrite",
		},
		{
			name:     "static token without value",
			mutate:   func(c *Config) { c.Token.Source = TokenSourceStatic },
			errorMsg: "token.value is required",
		},
		{
			name:     "unknown token source",
			mutate:   func(c *Config) { c.Token.Source = "vault" },
			errorMsg: "token.source must be one of",
		},
		{
			name:     "zero concurrency",
			mutate:   func(c *Config) { c.Pipeline.Concurrency = 0 },
			errorMsg: "pipeline.concurrency must be > 0",
		},
		{
			name:     "zero batch parallelism",
			mutate:   func(c *Config) { c.Pipeline.BatchParallelism = 0 },
			errorMsg: "pipeline.batch_parallelism must be > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}
