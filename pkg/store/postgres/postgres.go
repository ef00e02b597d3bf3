// Package postgres stores EPD records in a PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
)

// DefaultMaxConns is the pool size used when none is configured.
const DefaultMaxConns = 8

const schema = `
CREATE TABLE IF NOT EXISTS epd_records (
	id              TEXT PRIMARY KEY,
	uri             TEXT NOT NULL,
	version         TEXT NOT NULL,
	dataset_version TEXT NOT NULL,
	pdf_url         TEXT NOT NULL,
	body            JSONB NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store is a store.RecordStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and creates the records table if needed.
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. Call Migrate before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the records table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Exists implements store.RecordStore.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM epd_records WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query record %s: %w", id, err)
	}
	return true, nil
}

// Write implements store.RecordStore.
func (s *Store) Write(ctx context.Context, rec epd.StoredRecord) error {
	m := rec.Metadata
	_, err := s.pool.Exec(ctx, `
		INSERT INTO epd_records (id, uri, version, dataset_version, pdf_url, body, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			uri = EXCLUDED.uri,
			version = EXCLUDED.version,
			dataset_version = EXCLUDED.dataset_version,
			pdf_url = EXCLUDED.pdf_url,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`, m.ID, m.SourceURI, m.Version, m.DatasetVersion, m.PDFURL, string(rec.Body))
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", m.ID, err)
	}
	return nil
}

// Get returns the stored metadata of a record or epd.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (epd.Metadata, error) {
	var m epd.Metadata
	err := s.pool.QueryRow(ctx, `
		SELECT id, uri, version, dataset_version, pdf_url
		FROM epd_records WHERE id = $1
	`, id).Scan(&m.ID, &m.SourceURI, &m.Version, &m.DatasetVersion, &m.PDFURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return epd.Metadata{}, fmt.Errorf("record %s: %w", id, epd.ErrNotFound)
	}
	if err != nil {
		return epd.Metadata{}, fmt.Errorf("query record %s: %w", id, err)
	}
	return m, nil
}
