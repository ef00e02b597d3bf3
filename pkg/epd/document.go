package epd

import (
	"encoding/json"
	"fmt"
)

// Document is a resolved detail document. The envelope fields are the ones
// the pipeline inspects; Body carries the opaque upstream payload.
type Document struct {
	ID        string
	SourceURI string
	Version   string
	PDFURL    string
	Failed    bool

	Body map[string]any
}

// FailedDocument returns the minimal document recorded for a descriptor whose
// detail could not be resolved. It never carries a partial payload.
func FailedDocument(d Descriptor) Document {
	return Document{
		ID:        d.ID,
		SourceURI: d.SourceURI,
		Version:   d.Version,
		Failed:    true,
	}
}

// MarshalJSON writes the upstream body with the envelope keys merged in.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Body)+5)
	for k, v := range d.Body {
		out[k] = v
	}
	out[KeyUUID] = d.ID
	out[KeyURI] = d.SourceURI
	out[KeyDatasetVersion] = d.Version
	out[KeyError] = d.Failed
	if !d.Failed {
		out[KeyPDFURL] = d.PDFURL
	}
	return json.Marshal(out)
}

// PayloadVersion returns the version reported inside the upstream body, or
// an empty string when the body has none.
func (d Document) PayloadVersion() string {
	v, ok := d.Body[KeyVersion]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Record converts a successful document into its persisted form.
func (d Document) Record() (StoredRecord, error) {
	if d.Failed {
		return StoredRecord{}, fmt.Errorf("%w: document %s is marked failed", ErrResolution, d.ID)
	}

	body, err := json.Marshal(d)
	if err != nil {
		return StoredRecord{}, fmt.Errorf("marshal document %s: %w", d.ID, err)
	}

	return StoredRecord{
		Metadata: Metadata{
			ID:             d.ID,
			SourceURI:      d.SourceURI,
			Version:        d.PayloadVersion(),
			DatasetVersion: d.Version,
			PDFURL:         d.PDFURL,
		},
		Body: body,
	}, nil
}
