package objstore

import (
	"context"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
)

// ErrNotFound indicates the requested key does not exist.
var ErrNotFound = epd.ErrNotFound

// Store is a durable key/value object store with per-object metadata.
type Store interface {
	// Put writes body and metadata under key, replacing any previous object.
	// Writing the same key twice is safe; the last write wins.
	Put(ctx context.Context, key string, body []byte, meta map[string]string) error

	// Get returns the body stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Head returns the metadata stored under key or ErrNotFound.
	Head(ctx context.Context, key string) (map[string]string, error)

	// Exists reports whether key exists. Backend failures are returned as
	// errors and never reported as "absent".
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
