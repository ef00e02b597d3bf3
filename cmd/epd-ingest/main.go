// Command epd-ingest runs the EPD ingestion pipeline.
//
// The two phases can be invoked separately (list, process) so that a
// scheduler can fan out one process invocation per batch, or together (run).
// serve exposes the same phases over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "epd-ingest",
		Short: "Ingest Environmental Product Declarations from the ECO Platform catalog",
		Long: `epd-ingest enumerates the EPD catalog, stores the listing as batches,
resolves every record's detail document and persists it idempotently.

Configuration is read from an optional YAML file (--config) and the
environment (EPD_*, ECOPLATFORM_TOKEN, REDIS_URL, BUCKET_NAME, PORT).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("EPD_CONFIG"), "Path to the YAML configuration file")

	rootCmd.AddCommand(
		newListCmd(&configPath),
		newProcessCmd(&configPath),
		newRunCmd(&configPath),
		newServeCmd(&configPath),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"version": version,
				"commit":  commit,
				"date":    buildDate,
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
