// Package epd defines the data model shared by the ingestion pipeline:
// catalog descriptors, batches, resolved detail documents and the records
// persisted for them.
package epd

import (
	"fmt"
)

// JSON keys used on the wire and in stored records.
const (
	KeyUUID           = "uuid"
	KeyURI            = "uri"
	KeyVersion        = "version"
	KeyDatasetVersion = "dataset_version"
	KeyPDFURL         = "pdf_url"
	KeyError          = "error"
)

// Descriptor is the lightweight identity of one catalog entry as returned by
// the search endpoint.
type Descriptor struct {
	// ID is the catalog UUID and the only key used for deduplication.
	ID string `json:"uuid"`

	// SourceURI is the detail endpoint URI of the record. It may contain
	// transient query parameters and is never used as a key.
	SourceURI string `json:"uri"`

	// Version is the dataset version reported by the catalog (may be empty).
	Version string `json:"version"`
}

// Batch is a durably stored chunk of descriptors processed as one unit.
type Batch struct {
	ID          int          `json:"batchId"`
	Descriptors []Descriptor `json:"epdInfos"`
}

// Outcome is the terminal result of persisting one document.
type Outcome int

const (
	// OutcomeErrored means the document was not persisted.
	OutcomeErrored Outcome = iota

	// OutcomeStored means a new record was written.
	OutcomeStored

	// OutcomeDuplicate means a record with the same ID already existed.
	OutcomeDuplicate
)

// String returns the label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeErrored:
		return "errored"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Metadata is the side record written next to every stored document. It
// allows existence checks and audits without reading the full body.
type Metadata struct {
	ID             string
	SourceURI      string
	Version        string // version reported inside the detail payload
	DatasetVersion string // version reported by the catalog listing
	PDFURL         string
}

// Map returns the metadata as a flat string map keyed like the stored JSON.
func (m Metadata) Map() map[string]string {
	return map[string]string{
		KeyUUID:           m.ID,
		KeyURI:            m.SourceURI,
		KeyVersion:        m.Version,
		KeyDatasetVersion: m.DatasetVersion,
		KeyPDFURL:         m.PDFURL,
	}
}

// StoredRecord is the persisted form of a successfully resolved document.
type StoredRecord struct {
	Metadata Metadata
	Body     []byte
}
