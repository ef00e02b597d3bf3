// Package store persists resolved documents idempotently by catalog UUID.
//
// IdempotentStore decides between Stored, Duplicate and Errored; the actual
// storage is delegated to a RecordStore. Adapters exist for any
// objstore.Store (S3, Redis, memory) and for SQL databases in the sqlite and
// postgres subpackages.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/logging"
)

var persistTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "epd_persist_total",
	Help: "Persistence attempts by outcome",
}, []string{"outcome"}) // outcome: "stored", "duplicate", "errored"

// DuplicatePolicy selects what happens when a record already exists.
type DuplicatePolicy string

const (
	// Skip leaves the existing record untouched.
	Skip DuplicatePolicy = "skip"

	// Overwrite rewrites the existing record with the new document.
	Overwrite DuplicatePolicy = "overwrite"
)

// ParseDuplicatePolicy parses a policy name. The empty string means Skip.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Skip:
		return Skip, nil
	case Overwrite:
		return Overwrite, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (want skip or overwrite)", s)
	}
}

// RecordStore is the destination of stored records.
type RecordStore interface {
	// Exists reports whether a record with the given ID is stored. Backend
	// failures are returned as errors.
	Exists(ctx context.Context, id string) (bool, error)

	// Write stores rec. Writing the same ID twice must be safe; the last
	// write wins.
	Write(ctx context.Context, rec epd.StoredRecord) error
}

// IdempotentStore persists documents at most once per ID.
type IdempotentStore struct {
	records     RecordStore
	onDuplicate DuplicatePolicy
	logger      zerolog.Logger
}

// New creates an IdempotentStore. An empty policy means Skip.
func New(records RecordStore, onDuplicate DuplicatePolicy) *IdempotentStore {
	if onDuplicate == "" {
		onDuplicate = Skip
	}
	return &IdempotentStore{
		records:     records,
		onDuplicate: onDuplicate,
		logger:      logging.NewLogger("idempotent-store"),
	}
}

// Persist stores doc unless a record with the same ID exists.
//
// A failed document is never written and yields an error wrapping
// epd.ErrResolution. A failed existence check yields an error wrapping
// epd.ErrStoreUnavailable; it is never read as "absent". A failed write is
// reported the same way.
func (s *IdempotentStore) Persist(ctx context.Context, doc epd.Document) (epd.Outcome, error) {
	outcome, err := s.persist(ctx, doc)
	persistTotal.WithLabelValues(outcome.String()).Inc()
	return outcome, err
}

func (s *IdempotentStore) persist(ctx context.Context, doc epd.Document) (epd.Outcome, error) {
	rec, err := doc.Record()
	if err != nil {
		return epd.OutcomeErrored, err
	}

	exists, err := s.records.Exists(ctx, doc.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("uuid", doc.ID).Msg("Existence check failed")
		return epd.OutcomeErrored, fmt.Errorf("%w: exists %s: %w", epd.ErrStoreUnavailable, doc.ID, err)
	}

	if exists {
		if s.onDuplicate == Overwrite {
			if err := s.records.Write(ctx, rec); err != nil {
				s.logger.Error().Err(err).Str("uuid", doc.ID).Msg("Failed to overwrite record")
				return epd.OutcomeErrored, fmt.Errorf("%w: overwrite %s: %w", epd.ErrStoreUnavailable, doc.ID, err)
			}
			s.logger.Debug().Str("uuid", doc.ID).Msg("Record already exists, overwritten")
		} else {
			s.logger.Debug().Str("uuid", doc.ID).Msg("Record already exists, skipped")
		}
		return epd.OutcomeDuplicate, nil
	}

	if err := s.records.Write(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("uuid", doc.ID).Msg("Failed to write record")
		return epd.OutcomeErrored, fmt.Errorf("%w: write %s: %w", epd.ErrStoreUnavailable, doc.ID, err)
	}
	return epd.OutcomeStored, nil
}
