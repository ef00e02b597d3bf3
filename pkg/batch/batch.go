// Package batch splits catalog listings into durably stored batches and
// reads them back by handle.
//
// A batch is stored as one JSON object:
//
//	{"batchId": 0, "epdInfos": [{"uuid": "...", "uri": "...", "version": "..."}]}
//
// under a fresh key "<prefix>/<uuid>.json". The handle returned for it is the
// only thing the processing phase needs.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/logging"
	"github.com/Sternrassler/epd-ingest/pkg/objstore"
)

const (
	// DefaultPrefix is the key prefix of stored batches.
	DefaultPrefix = "batches/eco"

	// DefaultSize is the maximum number of descriptors per batch.
	DefaultSize = 200
)

// ErrDecode indicates a stored batch exists but could not be decoded.
var ErrDecode = errors.New("batch payload is corrupt")

var batchesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "epd_batches_written_total",
	Help: "Batches written to durable storage",
})

// Handle is the opaque reference to one stored batch.
type Handle struct {
	Key string `json:"s3Key"`
}

// Config holds batch storage configuration.
type Config struct {
	// Prefix of the batch keys
	Prefix string

	// Size is the maximum number of descriptors per batch
	Size int
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() Config {
	return Config{
		Prefix: DefaultPrefix,
		Size:   DefaultSize,
	}
}

// Writer chunks descriptors and stores each chunk.
type Writer struct {
	store  objstore.Store
	config Config
	newID  func() string
	logger zerolog.Logger
}

// NewWriter creates a new batch writer.
func NewWriter(store objstore.Store, config Config) (*Writer, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if config.Size <= 0 {
		return nil, fmt.Errorf("batch size must be > 0 (got %d)", config.Size)
	}
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}

	return &Writer{
		store:  store,
		config: config,
		newID:  uuid.NewString,
		logger: logging.NewLogger("batch-writer"),
	}, nil
}

// Write stores descriptors as ceil(len/Size) batches with sequential batch
// IDs starting at 0 and returns their handles in chunk order. Descriptor
// order is preserved inside and across batches. An empty input writes
// nothing.
func (w *Writer) Write(ctx context.Context, descriptors []epd.Descriptor) ([]Handle, error) {
	handles := make([]Handle, 0, (len(descriptors)+w.config.Size-1)/w.config.Size)

	for i, id := 0, 0; i < len(descriptors); i, id = i+w.config.Size, id+1 {
		end := min(i+w.config.Size, len(descriptors))

		payload, err := json.Marshal(epd.Batch{
			ID:          id,
			Descriptors: descriptors[i:end],
		})
		if err != nil {
			return handles, fmt.Errorf("encode batch %d: %w", id, err)
		}

		key := objstore.JoinKey(w.config.Prefix, w.newID())
		if err := w.store.Put(ctx, key, payload, nil); err != nil {
			return handles, fmt.Errorf("store batch %d: %w", id, err)
		}
		batchesWrittenTotal.Inc()

		w.logger.Debug().
			Int("batch_id", id).
			Str("batch_key", key).
			Int("descriptors", end-i).
			Msg("Batch stored")

		handles = append(handles, Handle{Key: key})
	}

	w.logger.Info().
		Int("descriptors", len(descriptors)).
		Int("batches", len(handles)).
		Msg("Listing split into batches")

	return handles, nil
}

// Delete removes a processed batch.
func (w *Writer) Delete(ctx context.Context, h Handle) error {
	if err := w.store.Delete(ctx, h.Key); err != nil {
		return fmt.Errorf("delete batch %s: %w", h.Key, err)
	}
	return nil
}

// Reader loads stored batches.
type Reader struct {
	store objstore.Store
}

// NewReader creates a new batch reader.
func NewReader(store objstore.Store) *Reader {
	return &Reader{store: store}
}

// Read returns the batch stored under h. A missing key yields an error
// wrapping epd.ErrNotFound; an undecodable payload yields one wrapping
// ErrDecode.
func (r *Reader) Read(ctx context.Context, h Handle) (epd.Batch, error) {
	if h.Key == "" {
		return epd.Batch{}, fmt.Errorf("read batch: empty key: %w", epd.ErrNotFound)
	}

	data, err := r.store.Get(ctx, h.Key)
	if err != nil {
		return epd.Batch{}, fmt.Errorf("read batch %s: %w", h.Key, err)
	}

	var b epd.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return epd.Batch{}, fmt.Errorf("%w: %s: %v", ErrDecode, h.Key, err)
	}
	return b, nil
}
