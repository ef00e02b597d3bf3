package store

import (
	"context"
	"fmt"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/objstore"
)

// DefaultRecordPrefix is the key prefix of stored records.
const DefaultRecordPrefix = "eco"

// ObjectRecords stores each record as "<prefix>/<uuid>.json" in an object
// store, with the record metadata attached to the object.
type ObjectRecords struct {
	objects objstore.Store
	prefix  string
}

// NewObjectRecords creates a RecordStore over an object store. An empty
// prefix means DefaultRecordPrefix.
func NewObjectRecords(objects objstore.Store, prefix string) *ObjectRecords {
	if prefix == "" {
		prefix = DefaultRecordPrefix
	}
	return &ObjectRecords{objects: objects, prefix: prefix}
}

// Key returns the object key of the record with the given ID.
func (o *ObjectRecords) Key(id string) string {
	return objstore.JoinKey(o.prefix, id)
}

// Exists implements RecordStore.
func (o *ObjectRecords) Exists(ctx context.Context, id string) (bool, error) {
	return o.objects.Exists(ctx, o.Key(id))
}

// Write implements RecordStore.
func (o *ObjectRecords) Write(ctx context.Context, rec epd.StoredRecord) error {
	if err := o.objects.Put(ctx, o.Key(rec.Metadata.ID), rec.Body, rec.Metadata.Map()); err != nil {
		return fmt.Errorf("put record %s: %w", rec.Metadata.ID, err)
	}
	return nil
}
