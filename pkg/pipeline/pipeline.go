// Package pipeline orchestrates the two ingestion phases.
//
// List enumerates the catalog and stores the listing as batches. Process
// resolves and persists one batch and then deletes it. The phases share no
// in-memory state; the batch handle is the only thing passed between them,
// so they can run in separate processes or invocations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/epd-ingest/pkg/batch"
	"github.com/Sternrassler/epd-ingest/pkg/client"
	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/logging"
	"github.com/Sternrassler/epd-ingest/pkg/objstore"
	"github.com/Sternrassler/epd-ingest/pkg/pagination"
	"github.com/Sternrassler/epd-ingest/pkg/resolver"
	"github.com/Sternrassler/epd-ingest/pkg/runner"
	"github.com/Sternrassler/epd-ingest/pkg/token"
)

var (
	phaseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epd_pipeline_phase_total",
		Help: "Pipeline phase invocations by phase and result",
	}, []string{"phase", "result"}) // phase: "list", "process"; result: "ok", "error"

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "epd_pipeline_phase_duration_seconds",
		Help:    "Duration of pipeline phases",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
	}, []string{"phase"})
)

// Config holds pipeline configuration.
type Config struct {
	Pager   pagination.Config
	Batches batch.Config
	Runner  runner.Config

	// BatchParallelism bounds the number of batches processed at once by Run.
	BatchParallelism int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Pager:            pagination.DefaultConfig(),
		Batches:          batch.DefaultConfig(),
		Runner:           runner.DefaultConfig(),
		BatchParallelism: 10,
	}
}

// ListResult is the output of the listing phase.
type ListResult struct {
	Batches     []batch.Handle `json:"inputBatchesS3Keys"`
	Descriptors int            `json:"descriptors"`
	Truncated   bool           `json:"truncated"`
}

// Result is the output of processing one batch.
type Result struct {
	BatchID    int `json:"batchId"`
	Errors     int `json:"errorsCount"`
	Duplicates int `json:"duplicatesCount"`
	Stored     int `json:"storedCount"`
	Total      int `json:"totalCount"`
}

// FailedBatch records a batch whose processing could not run.
type FailedBatch struct {
	Handle batch.Handle `json:"batch"`
	Error  string       `json:"error"`
}

// RunResult is the output of a full run.
type RunResult struct {
	Listing ListResult    `json:"listing"`
	Results []Result      `json:"results"`
	Failed  []FailedBatch `json:"failed,omitempty"`

	Stored     int `json:"storedCount"`
	Errors     int `json:"errorsCount"`
	Duplicates int `json:"duplicatesCount"`
}

// Pipeline wires the catalog, the batch storage and the destination store.
type Pipeline struct {
	tokens    token.Provider
	catalog   *client.Client
	writer    *batch.Writer
	reader    *batch.Reader
	persister runner.Persister
	config    Config
	logger    zerolog.Logger
}

// New creates a new pipeline.
func New(tokens token.Provider, catalog *client.Client, batches objstore.Store, persister runner.Persister, config Config) (*Pipeline, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog client is required")
	}
	if persister == nil {
		return nil, fmt.Errorf("persister is required")
	}
	if config.BatchParallelism <= 0 {
		config.BatchParallelism = 10
	}

	writer, err := batch.NewWriter(batches, config.Batches)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		tokens:    tokens,
		catalog:   catalog,
		writer:    writer,
		reader:    batch.NewReader(batches),
		persister: persister,
		config:    config,
		logger:    logging.NewLogger("pipeline"),
	}, nil
}

// authorise fetches a fresh token and returns a client that sends it.
func (p *Pipeline) authorise(ctx context.Context) (*client.Client, error) {
	tok, err := p.tokens.GetToken(ctx)
	if err != nil {
		if !errors.Is(err, epd.ErrAuth) {
			err = fmt.Errorf("%w: %w", epd.ErrAuth, err)
		}
		return nil, err
	}
	return p.catalog.WithToken(tok), nil
}

// List enumerates the catalog and writes the descriptors as batches. Auth
// failures and a failed first page abort the phase; a failure of a later
// page yields a truncated listing.
func (p *Pipeline) List(ctx context.Context) (*ListResult, error) {
	start := time.Now()
	res, err := p.list(ctx)
	observePhase("list", start, err)
	return res, err
}

func (p *Pipeline) list(ctx context.Context) (*ListResult, error) {
	c, err := p.authorise(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to obtain catalog token")
		return nil, err
	}

	listing, err := pagination.NewPager(c, p.config.Pager).FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	handles, err := p.writer.Write(ctx, listing.Descriptors)
	if err != nil {
		return nil, fmt.Errorf("write batches: %w", err)
	}

	p.logger.Info().
		Int("descriptors", len(listing.Descriptors)).
		Int("batches", len(handles)).
		Bool("truncated", listing.Truncated).
		Msg("Listing phase complete")

	return &ListResult{
		Batches:     handles,
		Descriptors: len(listing.Descriptors),
		Truncated:   listing.Truncated,
	}, nil
}

// Process resolves and persists the batch behind h and deletes it. A stale
// handle yields an error wrapping epd.ErrNotFound. Per-item failures are
// counted, never returned.
func (p *Pipeline) Process(ctx context.Context, h batch.Handle) (*Result, error) {
	start := time.Now()
	res, err := p.process(ctx, h)
	observePhase("process", start, err)
	return res, err
}

func (p *Pipeline) process(ctx context.Context, h batch.Handle) (*Result, error) {
	c, err := p.authorise(ctx)
	if err != nil {
		p.logger.Error().Err(err).Str("batch_key", h.Key).Msg("Failed to obtain catalog token")
		return nil, err
	}

	b, err := p.reader.Read(ctx, h)
	if err != nil {
		p.logger.Error().Err(err).Str("batch_key", h.Key).Msg("Failed to read batch")
		return nil, err
	}

	logger := p.logger.With().Int("batch_id", b.ID).Str("batch_key", h.Key).Logger()
	logger.Info().Int("descriptors", len(b.Descriptors)).Msg("Processing batch")

	summary := runner.New(resolver.New(c), p.persister, p.config.Runner).Run(ctx, b.Descriptors)

	// An interrupted batch is kept so the next invocation processes it again.
	if err := ctx.Err(); err != nil {
		logger.Warn().
			Err(err).
			Int("stored", summary.Stored).
			Int("errors", summary.Errors).
			Int("total", summary.Total).
			Msg("Batch processing interrupted, keeping batch for retry")
		return nil, fmt.Errorf("process batch %s interrupted: %w", h.Key, err)
	}

	if err := p.writer.Delete(context.WithoutCancel(ctx), h); err != nil {
		logger.Warn().Err(err).Msg("Failed to delete processed batch")
	}

	logger.Info().
		Int("stored", summary.Stored).
		Int("errors", summary.Errors).
		Int("duplicates", summary.Duplicates).
		Int("unavailable", summary.Unavailable).
		Msg("Batch processed")

	return &Result{
		BatchID:    b.ID,
		Errors:     summary.Errors,
		Duplicates: summary.Duplicates,
		Stored:     summary.Stored,
		Total:      summary.Total,
	}, nil
}

// Run lists the catalog and processes every batch, at most
// BatchParallelism at a time. A failing batch never aborts its siblings; it
// is reported in RunResult.Failed.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	listing, err := p.List(ctx)
	if err != nil {
		return nil, err
	}

	out := &RunResult{
		Listing: *listing,
		Results: make([]Result, 0, len(listing.Batches)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.config.BatchParallelism)

	for _, h := range listing.Batches {
		g.Go(func() error {
			res, err := p.Process(ctx, h)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failed = append(out.Failed, FailedBatch{Handle: h, Error: err.Error()})
				return nil
			}
			out.Results = append(out.Results, *res)
			out.Stored += res.Stored
			out.Errors += res.Errors
			out.Duplicates += res.Duplicates
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Info().
		Int("batches", len(listing.Batches)).
		Int("failed_batches", len(out.Failed)).
		Int("stored", out.Stored).
		Int("errors", out.Errors).
		Int("duplicates", out.Duplicates).
		Msg("Run complete")

	return out, nil
}

func observePhase(phase string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	phaseTotal.WithLabelValues(phase, result).Inc()
	phaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
