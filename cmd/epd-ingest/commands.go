package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/epd-ingest/internal/config"
	"github.com/Sternrassler/epd-ingest/pkg/batch"
	"github.com/Sternrassler/epd-ingest/pkg/pipeline"
)

func newListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Enumerate the catalog and store the listing as batches",
		Long: `Runs the listing phase: fetches every catalog page, splits the
descriptors into batches and stores them. Prints the batch handles as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			a.warnIfEphemeral()

			res, err := a.pipeline.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newProcessCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "process <batch-key>...",
		Short: "Resolve and persist stored batches",
		Long: `Runs the processing phase for each given batch key: resolves every
descriptor, persists the documents and deletes the batch. Prints one result
per batch as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			a.warnIfEphemeral()

			var failed []error
			for _, key := range args {
				res, err := a.pipeline.Process(cmd.Context(), batch.Handle{Key: key})
				if err != nil {
					failed = append(failed, fmt.Errorf("process %s: %w", key, err))
					continue
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			}
			return errors.Join(failed...)
		},
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run both phases in one process",
		Long: `Lists the catalog and processes every batch with bounded
parallelism (pipeline.batch_parallelism). Prints the combined result as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the pipeline phases over HTTP",
		Long: `Starts an HTTP server with:
  GET  /health   liveness check
  GET  /metrics  Prometheus metrics
  POST /list     listing phase
  POST /process  processing phase, body {"s3Key": "<batch key>"}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(cmd.Context(), a)
		},
	}
}

// serve runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context, a *app) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           newServer(a.pipeline),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// warnIfEphemeral warns when a phase runs alone against in-process storage,
// where its batches cannot outlive the process.
func (a *app) warnIfEphemeral() {
	if a.cfg.Batches.Backend == config.BackendMemory {
		a.logger.Warn().Msg("Batches are kept in memory and are lost when this process exits; use redis or s3 for separate phases")
	}
}

var _ phases = (*pipeline.Pipeline)(nil)
