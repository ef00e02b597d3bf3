// Package runner resolves and persists descriptors with a bounded worker pool.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/logging"
)

var (
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epd_runner_items_total",
		Help: "Descriptors processed by the worker pool by outcome",
	}, []string{"outcome"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "epd_runner_in_flight",
		Help: "Resolutions currently in flight",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "epd_runner_duration_seconds",
		Help:    "Duration of one runner invocation",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)

// Resolver fetches the detail document of a descriptor. It must not fail;
// failures are reported as failed documents.
type Resolver interface {
	Resolve(ctx context.Context, d epd.Descriptor) epd.Document
}

// Persister stores a resolved document.
type Persister interface {
	Persist(ctx context.Context, doc epd.Document) (epd.Outcome, error)
}

// Config holds runner configuration.
type Config struct {
	// Concurrency is the number of workers.
	Concurrency int

	// ResolveTimeout bounds a single resolution. A timeout is an ordinary
	// resolution failure.
	ResolveTimeout time.Duration
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:    8,
		ResolveTimeout: 60 * time.Second,
	}
}

// Summary holds the counts of one run. Total always equals
// Stored + Duplicates + Errors.
type Summary struct {
	Total      int
	Stored     int
	Duplicates int
	Errors     int

	// Unavailable counts the errors caused by an unavailable destination
	// store. It is a subset of Errors.
	Unavailable int
}

// Runner drives descriptors through resolve and persist.
type Runner struct {
	resolver  Resolver
	persister Persister
	config    Config
	logger    zerolog.Logger
}

// New creates a new runner.
func New(resolver Resolver, persister Persister, config Config) *Runner {
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = 60 * time.Second
	}

	return &Runner{
		resolver:  resolver,
		persister: persister,
		config:    config,
		logger:    logging.NewLogger("runner"),
	}
}

// itemResult is the outcome of one descriptor.
type itemResult struct {
	ID      string
	Outcome epd.Outcome
	Err     error
}

// Run resolves and persists every descriptor exactly once and returns the
// folded counts. It returns only after all workers have finished. A
// cancelled context does not drop descriptors: the remaining ones fail fast
// and are counted as errors.
func (r *Runner) Run(ctx context.Context, descriptors []epd.Descriptor) Summary {
	start := time.Now()
	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
	}()

	queue := make(chan epd.Descriptor, len(descriptors))
	results := make(chan itemResult, len(descriptors))

	for _, d := range descriptors {
		queue <- d
	}
	close(queue)

	workers := min(r.config.Concurrency, len(descriptors))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go r.worker(ctx, queue, results, &wg, i)
	}

	// Close results channel when all workers done
	go func() {
		wg.Wait()
		close(results)
	}()

	summary := Summary{Total: len(descriptors)}
	for res := range results {
		itemsTotal.WithLabelValues(res.Outcome.String()).Inc()

		switch res.Outcome {
		case epd.OutcomeStored:
			summary.Stored++
		case epd.OutcomeDuplicate:
			summary.Duplicates++
		default:
			summary.Errors++
			if errors.Is(res.Err, epd.ErrStoreUnavailable) {
				summary.Unavailable++
			}
		}
	}

	r.logger.Info().
		Int("total", summary.Total).
		Int("stored", summary.Stored).
		Int("duplicates", summary.Duplicates).
		Int("errors", summary.Errors).
		Int("workers", workers).
		Dur("duration", time.Since(start)).
		Msg("Run complete")

	return summary
}

// worker processes descriptors from the queue until it is drained.
func (r *Runner) worker(ctx context.Context, queue <-chan epd.Descriptor, results chan<- itemResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for d := range queue {
		results <- r.process(ctx, d)
		processed++
	}

	r.logger.Debug().
		Int("worker_id", workerID).
		Int("processed", processed).
		Msg("Worker finished")
}

// process resolves and persists a single descriptor.
func (r *Runner) process(ctx context.Context, d epd.Descriptor) itemResult {
	inFlight.Inc()
	resolveCtx, cancel := context.WithTimeout(ctx, r.config.ResolveTimeout)
	doc := r.resolver.Resolve(resolveCtx, d)
	cancel()
	inFlight.Dec()

	outcome, err := r.persister.Persist(ctx, doc)
	if err != nil {
		evt := r.logger.Warn()
		if errors.Is(err, epd.ErrStoreUnavailable) {
			evt = r.logger.Error()
		}
		evt.Err(err).
			Str("uuid", d.ID).
			Str("outcome", outcome.String()).
			Msg("Descriptor not persisted")
	}

	return itemResult{ID: d.ID, Outcome: outcome, Err: err}
}
