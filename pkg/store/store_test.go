package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/objstore"
)

// fakeRecords is a RecordStore with injectable failures.
type fakeRecords struct {
	mu        sync.Mutex
	records   map[string]epd.StoredRecord
	writes    int
	existsErr error
	writeErr  error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[string]epd.StoredRecord)}
}

func (f *fakeRecords) Exists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.records[id]
	return ok, nil
}

func (f *fakeRecords) Write(_ context.Context, rec epd.StoredRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.records[rec.Metadata.ID] = rec
	return nil
}

func resolvedDoc(id, version string) epd.Document {
	return epd.Document{
		ID:        id,
		SourceURI: "https://data.example.org/resource/processes/" + id,
		Version:   version,
		PDFURL:    epd.DerivePDFURL("https://data.example.org/resource/processes/"+id, id, version),
		Body:      map[string]any{"version": version, "name": "EPD " + id},
	}
}

func TestParseDuplicatePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    DuplicatePolicy
		wantErr bool
	}{
		{in: "", want: Skip},
		{in: "skip", want: Skip},
		{in: " Overwrite ", want: Overwrite},
		{in: "merge", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuplicatePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPersist_StoredThenDuplicate(t *testing.T) {
	ctx := context.Background()
	records := newFakeRecords()
	s := New(records, Skip)

	doc := resolvedDoc("a", "1.0")

	outcome, err := s.Persist(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, epd.OutcomeStored, outcome)

	outcome, err = s.Persist(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, epd.OutcomeDuplicate, outcome)

	assert.Equal(t, 1, records.writes, "duplicate must not be rewritten under Skip")
}

func TestPersist_OverwriteRewritesDuplicate(t *testing.T) {
	ctx := context.Background()
	records := newFakeRecords()
	s := New(records, Overwrite)

	_, err := s.Persist(ctx, resolvedDoc("a", "1.0"))
	require.NoError(t, err)

	outcome, err := s.Persist(ctx, resolvedDoc("a", "2.0"))
	require.NoError(t, err)
	assert.Equal(t, epd.OutcomeDuplicate, outcome)
	assert.Equal(t, 2, records.writes)
	assert.Equal(t, "2.0", records.records["a"].Metadata.Version)
}

func TestPersist_FailedDocument(t *testing.T) {
	records := newFakeRecords()
	s := New(records, "")

	outcome, err := s.Persist(context.Background(), epd.FailedDocument(epd.Descriptor{ID: "b"}))
	assert.Equal(t, epd.OutcomeErrored, outcome)
	assert.ErrorIs(t, err, epd.ErrResolution)
	assert.Zero(t, records.writes)
}

func TestPersist_ExistenceCheckFailure(t *testing.T) {
	records := newFakeRecords()
	records.existsErr = errors.New("connection refused")
	s := New(records, Skip)

	outcome, err := s.Persist(context.Background(), resolvedDoc("a", "1.0"))
	assert.Equal(t, epd.OutcomeErrored, outcome)
	assert.ErrorIs(t, err, epd.ErrStoreUnavailable)
	assert.Zero(t, records.writes, "an unavailable store must never be read as absent")
}

func TestPersist_WriteFailure(t *testing.T) {
	records := newFakeRecords()
	records.writeErr = errors.New("quota exceeded")
	s := New(records, Skip)

	outcome, err := s.Persist(context.Background(), resolvedDoc("a", "1.0"))
	assert.Equal(t, epd.OutcomeErrored, outcome)
	assert.ErrorIs(t, err, epd.ErrStoreUnavailable)
}

func TestObjectRecords(t *testing.T) {
	ctx := context.Background()
	objects := objstore.NewMemory()
	records := NewObjectRecords(objects, "")
	s := New(records, Skip)

	outcome, err := s.Persist(ctx, resolvedDoc("a", "1.0"))
	require.NoError(t, err)
	assert.Equal(t, epd.OutcomeStored, outcome)

	assert.Equal(t, []string{"eco/a.json"}, objects.Keys())

	meta, err := objects.Head(ctx, "eco/a.json")
	require.NoError(t, err)
	assert.Equal(t, "a", meta[epd.KeyUUID])
	assert.Equal(t, "1.0", meta[epd.KeyVersion])
	assert.Equal(t, "1.0", meta[epd.KeyDatasetVersion])
	assert.Equal(t, "https://data.example.org/resource/processes/a/epd?version=1.0", meta[epd.KeyPDFURL])

	raw, err := objects.Get(ctx, "eco/a.json")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "EPD a", body["name"])
	assert.Equal(t, false, body[epd.KeyError])

	outcome, err = s.Persist(ctx, resolvedDoc("a", "1.0"))
	require.NoError(t, err)
	assert.Equal(t, epd.OutcomeDuplicate, outcome)
	assert.Equal(t, 1, objects.Puts())
}

func TestObjectRecords_CustomPrefix(t *testing.T) {
	records := NewObjectRecords(objstore.NewMemory(), "records/eco")
	assert.Equal(t, "records/eco/x.json", records.Key("x"))
}
