// Package sqlite stores EPD records in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Sternrassler/epd-ingest/pkg/epd"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS epd_records (
	id              TEXT PRIMARY KEY,
	uri             TEXT NOT NULL,
	version         TEXT NOT NULL,
	dataset_version TEXT NOT NULL,
	pdf_url         TEXT NOT NULL,
	body            TEXT NOT NULL,
	updated_at      DATETIME NOT NULL
)`

// Store is a store.RecordStore backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (and creates if needed) the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		// WAL mode for concurrent readers while workers write
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == MemoryPath {
		// every connection would get its own empty database otherwise
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Exists implements store.RecordStore.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM epd_records WHERE id = ?`, id).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query record %s: %w", id, err)
	default:
		return true, nil
	}
}

// Write implements store.RecordStore.
func (s *Store) Write(ctx context.Context, rec epd.StoredRecord) error {
	m := rec.Metadata
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO epd_records (id, uri, version, dataset_version, pdf_url, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uri = excluded.uri,
			version = excluded.version,
			dataset_version = excluded.dataset_version,
			pdf_url = excluded.pdf_url,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, m.ID, m.SourceURI, m.Version, m.DatasetVersion, m.PDFURL, string(rec.Body), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", m.ID, err)
	}
	return nil
}

// Get returns the stored record with the given ID or epd.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (epd.StoredRecord, error) {
	var (
		rec  epd.StoredRecord
		body string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, uri, version, dataset_version, pdf_url, body
		FROM epd_records WHERE id = ?
	`, id).Scan(&rec.Metadata.ID, &rec.Metadata.SourceURI, &rec.Metadata.Version,
		&rec.Metadata.DatasetVersion, &rec.Metadata.PDFURL, &body)
	if err == sql.ErrNoRows {
		return epd.StoredRecord{}, fmt.Errorf("record %s: %w", id, epd.ErrNotFound)
	}
	if err != nil {
		return epd.StoredRecord{}, fmt.Errorf("query record %s: %w", id, err)
	}
	rec.Body = []byte(body)
	return rec, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM epd_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
