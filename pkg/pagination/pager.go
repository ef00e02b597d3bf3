package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/logging"
)

// DefaultURL is the ECO Platform search endpoint.
const DefaultURL = "https://data.eco-platform.org/resource/processes"

var (
	catalogPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epd_catalog_pages_total",
		Help: "Catalog search pages fetched by result",
	}, []string{"result"})

	catalogTruncationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epd_catalog_truncations_total",
		Help: "Listings cut short by a failed page after the first",
	})

	catalogDescriptors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "epd_catalog_descriptors",
		Help: "Descriptors discovered by the last listing",
	})
)

// Config holds pager configuration.
type Config struct {
	// URL of the search endpoint
	URL string

	// ValidUntil is the validity cutoff year sent to the catalog.
	// 0 means the current year.
	ValidUntil int

	// Now is the clock used to derive the current year (default time.Now).
	Now func() time.Time
}

// DefaultConfig returns the configuration for the public ECO Platform catalog.
func DefaultConfig() Config {
	return Config{
		URL: DefaultURL,
		Now: time.Now,
	}
}

// Fetcher is the interface the catalog client must implement.
type Fetcher interface {
	GetJSON(ctx context.Context, operation, rawURL string, params url.Values) ([]byte, error)
}

// Listing is the result of a full enumeration.
type Listing struct {
	Descriptors []epd.Descriptor
	TotalCount  int
	Pages       int

	// Truncated is set when a page after the first failed; Cause holds
	// the failure.
	Truncated bool
	Cause     error
}

// page is one search response.
type page struct {
	Data []struct {
		UUID    string `json:"uuid"`
		URI     string `json:"uri"`
		Version string `json:"version"`
	} `json:"data"`
	TotalCount int `json:"totalCount"`
	PageSize   int `json:"pageSize"`
	StartIndex int `json:"startIndex"`
}

// Pager walks the search endpoint page by page.
type Pager struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewPager creates a new pager.
func NewPager(fetcher Fetcher, config Config) *Pager {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Pager{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("catalog-pager"),
	}
}

// baseParams returns the fixed search filter.
func (p *Pager) baseParams() url.Values {
	year := p.config.ValidUntil
	if year == 0 {
		year = p.config.Now().Year()
	}
	return url.Values{
		"search":       {"true"},
		"format":       {"json"},
		"distributed":  {"true"},
		"virtual":      {"true"},
		"metaDataOnly": {"false"},
		"validUntil":   {strconv.Itoa(year)},
	}
}

// FetchAll enumerates every descriptor of the current listing window.
// A failure of the first page is returned as an error wrapping
// epd.ErrUpstream (or epd.ErrAuth). A failure of a later page ends the
// enumeration with the descriptors collected so far.
func (p *Pager) FetchAll(ctx context.Context) (*Listing, error) {
	start := time.Now()
	params := p.baseParams()

	first, err := p.fetchPage(ctx, params)
	if err != nil {
		catalogPagesTotal.WithLabelValues("error").Inc()
		p.logger.Error().Err(err).Msg("Failed to fetch first catalog page")
		if errors.Is(err, epd.ErrAuth) {
			return nil, fmt.Errorf("fetch first page: %w", err)
		}
		return nil, fmt.Errorf("%w: fetch first page: %w", epd.ErrUpstream, err)
	}
	catalogPagesTotal.WithLabelValues("ok").Inc()

	listing := &Listing{
		TotalCount: first.TotalCount,
		Pages:      1,
	}
	listing.Descriptors = appendDescriptors(listing.Descriptors, first)

	p.logger.Info().
		Int("records", len(first.Data)).
		Int("total_count", first.TotalCount).
		Int("page_size", first.PageSize).
		Msg("Retrieved initial catalog page")

	current := first
	for {
		if current.PageSize <= 0 {
			if current.StartIndex+len(current.Data) < current.TotalCount {
				p.logger.Warn().
					Int("page_size", current.PageSize).
					Int("start_index", current.StartIndex).
					Msg("Catalog reported no page size, stopping pagination")
			}
			break
		}

		next := current.StartIndex + current.PageSize
		if next >= current.TotalCount {
			break
		}

		params.Set("startIndex", strconv.Itoa(next))
		pg, err := p.fetchPage(ctx, params)
		if err != nil {
			catalogPagesTotal.WithLabelValues("error").Inc()
			if errors.Is(err, epd.ErrAuth) {
				return nil, fmt.Errorf("fetch page at index %d: %w", next, err)
			}

			catalogTruncationsTotal.Inc()
			p.logger.Warn().
				Err(err).
				Int("start_index", next).
				Int("fetched", len(listing.Descriptors)).
				Int("total_count", listing.TotalCount).
				Msg("Error while getting catalog page, returning partial results")

			listing.Truncated = true
			listing.Cause = fmt.Errorf("%w: fetch page at index %d: %w", epd.ErrUpstream, next, err)
			break
		}
		catalogPagesTotal.WithLabelValues("ok").Inc()

		listing.Pages++
		listing.Descriptors = appendDescriptors(listing.Descriptors, pg)
		current = pg
	}

	catalogDescriptors.Set(float64(len(listing.Descriptors)))

	p.logger.Info().
		Int("descriptors", len(listing.Descriptors)).
		Int("pages", listing.Pages).
		Bool("truncated", listing.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Catalog enumeration complete")

	return listing, nil
}

// fetchPage fetches and decodes a single search page.
func (p *Pager) fetchPage(ctx context.Context, params url.Values) (*page, error) {
	body, err := p.fetcher.GetJSON(ctx, "search", p.config.URL, params)
	if err != nil {
		return nil, err
	}

	var pg page
	if err := json.Unmarshal(body, &pg); err != nil {
		return nil, fmt.Errorf("decode search page: %w", err)
	}
	return &pg, nil
}

func appendDescriptors(dst []epd.Descriptor, pg *page) []epd.Descriptor {
	for _, rec := range pg.Data {
		dst = append(dst, epd.Descriptor{
			ID:        rec.UUID,
			SourceURI: rec.URI,
			Version:   rec.Version,
		})
	}
	return dst
}
