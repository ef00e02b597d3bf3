// Package resolver fetches the full detail document of a catalog record.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/epd-ingest/pkg/client"
	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/logging"
)

var resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "epd_resolutions_total",
	Help: "Detail resolutions by result",
}, []string{"result"}) // result: "ok", "failed"

// Fetcher is the interface the catalog client must implement.
type Fetcher interface {
	GetJSON(ctx context.Context, operation, rawURL string, params url.Values) ([]byte, error)
}

// Resolver turns descriptors into detail documents.
type Resolver struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

// New creates a new resolver.
func New(fetcher Fetcher) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		logger:  logging.NewLogger("detail-resolver"),
	}
}

// Resolve fetches the detail document of d. It never returns an error: any
// failure produces a failed document and a warning. Both outcomes carry the
// cleaned URI.
func (r *Resolver) Resolve(ctx context.Context, d epd.Descriptor) epd.Document {
	uri := epd.CleanURI(d.SourceURI)
	d.SourceURI = uri

	body, err := r.fetch(ctx, uri)
	if err != nil {
		resolutionsTotal.WithLabelValues("failed").Inc()
		r.logger.Warn().
			Err(err).
			Str("uuid", d.ID).
			Str("uri", uri).
			Str("error_class", string(client.ClassOf(err))).
			Msg("Error while getting EPD detail")
		return epd.FailedDocument(d)
	}
	resolutionsTotal.WithLabelValues("ok").Inc()

	return epd.Document{
		ID:        d.ID,
		SourceURI: uri,
		Version:   d.Version,
		PDFURL:    epd.DerivePDFURL(uri, d.ID, d.Version),
		Body:      body,
	}
}

func (r *Resolver) fetch(ctx context.Context, uri string) (map[string]any, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty uri", epd.ErrResolution)
	}

	raw, err := r.fetcher.GetJSON(ctx, "detail", uri, url.Values{"format": {"json"}})
	if err != nil {
		return nil, err
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: decode detail: %v", epd.ErrResolution, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: detail is not a JSON object", epd.ErrResolution)
	}
	return body, nil
}
