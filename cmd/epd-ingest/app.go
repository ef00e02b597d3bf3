package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/epd-ingest/internal/config"
	"github.com/Sternrassler/epd-ingest/pkg/client"
	"github.com/Sternrassler/epd-ingest/pkg/logging"
	"github.com/Sternrassler/epd-ingest/pkg/objstore"
	"github.com/Sternrassler/epd-ingest/pkg/pagination"
	"github.com/Sternrassler/epd-ingest/pkg/pipeline"
	"github.com/Sternrassler/epd-ingest/pkg/store"
	"github.com/Sternrassler/epd-ingest/pkg/store/postgres"
	"github.com/Sternrassler/epd-ingest/pkg/store/sqlite"
	"github.com/Sternrassler/epd-ingest/pkg/token"
)

// app holds the wired pipeline and everything that must be closed.
type app struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	logger   zerolog.Logger

	redis   *redis.Client
	closers []func()
}

// loadApp loads the configuration, sets up logging and wires the pipeline.
func loadApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logging.Setup(logging.Config{
		Level:   level,
		Pretty:  cfg.Log.Pretty,
		Output:  os.Stderr,
		Service: "epd-ingest",
	})

	return newApp(ctx, cfg)
}

// newApp wires the pipeline from cfg.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger("epd-ingest"),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	catalog, err := client.New(clientConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create catalog client: %w", err)
	}

	tokens, err := a.tokenProvider(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.UsesRedis() {
		if a.redis, err = connectRedis(ctx, cfg.Redis.URL); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { a.redis.Close() })
	}

	var s3Store *objstore.S3
	if cfg.UsesS3() {
		awsCfg, err := loadAWS(ctx, cfg.S3.Region)
		if err != nil {
			return nil, err
		}
		if s3Store, err = objstore.NewS3FromConfig(awsCfg, cfg.S3.Bucket, cfg.S3.Endpoint); err != nil {
			return nil, err
		}
	}

	batches, err := a.objectStore(cfg.Batches.Backend, cfg.Batches.TTL, s3Store)
	if err != nil {
		return nil, err
	}

	records, err := a.recordStore(ctx, s3Store)
	if err != nil {
		return nil, err
	}

	policy, err := store.ParseDuplicatePolicy(cfg.Records.OnDuplicate)
	if err != nil {
		return nil, err
	}

	a.pipeline, err = pipeline.New(tokens, catalog, batches, store.New(records, policy), pipelineConfig(cfg))
	if err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("batches_backend", cfg.Batches.Backend).
		Str("records_backend", cfg.Records.Backend).
		Str("on_duplicate", string(policy)).
		Str("token_source", cfg.Token.Source).
		Int("concurrency", cfg.Pipeline.Concurrency).
		Msg("Pipeline configured")

	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func clientConfig(cfg *config.Config) client.Config {
	cc := client.DefaultConfig(cfg.Catalog.UserAgent)
	cc.RateLimit = cfg.Catalog.RateLimit
	cc.Burst = max(1, int(cfg.Catalog.RateLimit))
	if cfg.Catalog.Timeout > 0 {
		cc.Timeout = cfg.Catalog.Timeout
	}
	cc.Retry.MaxAttempts = cfg.Catalog.MaxRetries
	if cfg.Catalog.InitialBackoff > 0 {
		cc.Retry.InitialBackoff = cfg.Catalog.InitialBackoff
	}
	return cc
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.Pager = pagination.Config{
		URL:        cfg.Catalog.URL,
		ValidUntil: cfg.Catalog.ValidUntil,
		Now:        time.Now,
	}
	pc.Batches.Prefix = cfg.Batches.Prefix
	pc.Batches.Size = cfg.Batches.Size
	pc.Runner.Concurrency = cfg.Pipeline.Concurrency
	pc.Runner.ResolveTimeout = cfg.Pipeline.ResolveTimeout
	pc.BatchParallelism = cfg.Pipeline.BatchParallelism
	return pc
}

func (a *app) tokenProvider(ctx context.Context) (token.Provider, error) {
	switch a.cfg.Token.Source {
	case config.TokenSourceStatic:
		return token.Static(a.cfg.Token.Value), nil
	case config.TokenSourceSSM:
		awsCfg, err := loadAWS(ctx, a.cfg.Token.Region)
		if err != nil {
			return nil, err
		}
		return token.NewSSMFromConfig(awsCfg, a.cfg.Token.SSMParameter, true), nil
	default:
		return token.Env{Var: a.cfg.Token.EnvVar}, nil
	}
}

// objectStore returns the object store for an object-store backend.
func (a *app) objectStore(backend string, ttl time.Duration, s3Store *objstore.S3) (objstore.Store, error) {
	switch backend {
	case config.BackendMemory:
		return objstore.NewMemory(), nil
	case config.BackendRedis:
		return objstore.NewRedis(a.redis, objstore.RedisOptions{
			KeyPrefix: a.cfg.Redis.KeyPrefix,
			TTL:       ttl,
		}), nil
	case config.BackendS3:
		return s3Store, nil
	default:
		return nil, fmt.Errorf("unsupported object store backend %q", backend)
	}
}

func (a *app) recordStore(ctx context.Context, s3Store *objstore.S3) (store.RecordStore, error) {
	switch a.cfg.Records.Backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(a.cfg.Records.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { db.Close() })
		return db, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, a.cfg.Records.PostgresDSN, a.cfg.Records.MaxConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return db, nil

	default:
		objects, err := a.objectStore(a.cfg.Records.Backend, 0, s3Store)
		if err != nil {
			return nil, err
		}
		return store.NewObjectRecords(objects, a.cfg.Records.Prefix), nil
	}
}

// connectRedis accepts either "host:port" or a redis:// URL.
func connectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts := &redis.Options{Addr: rawURL}
	if strings.Contains(rawURL, "://") {
		parsed, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

func loadAWS(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
