package objstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations tracks object store operations by backend, operation and result
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epd_objstore_operations_total",
			Help: "Total number of object store operations",
		},
		[]string{"backend", "operation", "result"}, // result: "ok", "not_found", "error"
	)

	// WrittenBytes tracks bytes written by backend
	WrittenBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epd_objstore_written_bytes_total",
			Help: "Total bytes written to the object store",
		},
		[]string{"backend"},
	)
)

// observe records the result of one operation.
func observe(backend, operation string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case err == ErrNotFound:
		result = "not_found"
	default:
		result = "error"
	}
	Operations.WithLabelValues(backend, operation, result).Inc()
}
