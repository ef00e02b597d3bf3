// Package metrics provides the Prometheus registry and HTTP handler for the
// ingestion pipeline. All metrics are defined in their respective packages
// (client, pagination, batch, resolver, runner, store, objstore, pipeline)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - epd_requests_total{operation, status} (Counter): Catalog requests by operation (search, detail) and HTTP status
//   - epd_request_duration_seconds{operation} (Histogram): Request duration including retries
//   - epd_request_errors_total{class} (Counter): Errors by class (client, auth, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - epd_retries_total{error_class} (Counter): Retry attempts by error class
//   - epd_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - epd_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Catalog Metrics (pkg/pagination):
//   - epd_catalog_pages_total{result} (Counter): Search pages fetched (ok, error)
//   - epd_catalog_truncations_total (Counter): Listings cut short by a failed later page
//   - epd_catalog_descriptors (Gauge): Descriptors discovered by the last listing
//
// Batch Metrics (pkg/batch):
//   - epd_batches_written_total (Counter): Batches written to durable storage
//
// Resolution Metrics (pkg/resolver, pkg/runner):
//   - epd_resolutions_total{result} (Counter): Detail resolutions (ok, failed)
//   - epd_runner_items_total{outcome} (Counter): Descriptors by outcome (stored, duplicate, errored)
//   - epd_runner_in_flight (Gauge): Resolutions currently in flight
//   - epd_runner_duration_seconds (Histogram): Duration of one batch run
//
// Storage Metrics (pkg/store, pkg/objstore):
//   - epd_persist_total{outcome} (Counter): Persistence attempts by outcome
//   - epd_objstore_operations_total{backend, operation, result} (Counter): Object store operations
//   - epd_objstore_written_bytes_total{backend} (Counter): Bytes written per backend
//
// Pipeline Metrics (pkg/pipeline):
//   - epd_pipeline_phase_total{phase, result} (Counter): Phase invocations (list, process)
//   - epd_pipeline_phase_duration_seconds{phase} (Histogram): Phase duration
//
// Example Prometheus Queries:
//
//   # Detail failure rate
//   sum(rate(epd_resolutions_total{result="failed"}[5m])) / sum(rate(epd_resolutions_total[5m]))
//
//   # Duplicate share of persisted documents
//   rate(epd_persist_total{outcome="duplicate"}[1h]) / rate(epd_persist_total[1h])
//
//   # Truncated listings
//   increase(epd_catalog_truncations_total[1d]) > 0
//
//   # P95 detail latency
//   histogram_quantile(0.95, rate(epd_request_duration_seconds_bucket{operation="detail"}[5m]))
