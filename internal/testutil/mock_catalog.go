// Package testutil provides testing utilities for the EPD ingestion pipeline.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
)

// SearchPath is the path of the catalog search endpoint on the mock server.
const SearchPath = "/resource/processes"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is a configurable mock of the EPD catalog API. It serves the
// paginated search endpoint and one detail endpoint per record.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	records  []epd.Descriptor
	pageSize int
	total    int // overrides len(records) in responses when > 0

	failStarts  map[int]MockResponse
	details     map[string]MockResponse
	detailDelay time.Duration

	token string

	// Tracking
	SearchRequests  int
	DetailRequests  int
	SearchQueries   []url.Values
	LastAuthHeader  string
	UnauthorizedHit int
}

// NewMockCatalog creates a new mock catalog server with a page size of 200.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pageSize:   200,
		failStarts: make(map[int]MockResponse),
		details:    make(map[string]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.LastAuthHeader = r.Header.Get("Authorization")
		authorised := mock.token == "" || mock.LastAuthHeader == "Bearer "+mock.token
		if !authorised {
			mock.UnauthorizedHit++
		}
		mock.mu.Unlock()

		if !authorised {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		switch {
		case r.URL.Path == SearchPath:
			mock.searchHandler(w, r)
		case strings.HasPrefix(r.URL.Path, SearchPath+"/"):
			mock.detailHandler(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// SearchURL returns the full URL of the search endpoint.
func (m *MockCatalog) SearchURL() string {
	return m.server.URL + SearchPath
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// RequireToken makes every endpoint answer 401 unless the bearer token matches.
func (m *MockCatalog) RequireToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// SetPageSize sets the page size reported by the search endpoint.
func (m *MockCatalog) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// SetTotalCount overrides the totalCount reported by the search endpoint.
func (m *MockCatalog) SetTotalCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = n
}

// AddRecords registers n records with ids "<prefix>-<i>" and returns their
// descriptors in catalog order.
func (m *MockCatalog) AddRecords(prefix string, n int) []epd.Descriptor {
	out := make([]epd.Descriptor, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.AddRecord(fmt.Sprintf("%s-%d", prefix, i), "1.0"))
	}
	return out
}

// AddRecord registers a single record and returns its descriptor.
func (m *MockCatalog) AddRecord(id, version string) epd.Descriptor {
	d := epd.Descriptor{
		ID:        id,
		SourceURI: m.server.URL + SearchPath + "/" + id + "?version=" + version,
		Version:   version,
	}
	m.mu.Lock()
	m.records = append(m.records, d)
	m.mu.Unlock()
	return d
}

// FailSearchAt makes the search request with the given startIndex fail.
func (m *MockCatalog) FailSearchAt(startIndex int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStarts[startIndex] = resp
}

// SetDetail overrides the detail response of one record.
func (m *MockCatalog) SetDetail(id string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[id] = resp
}

// SetDetailDelay delays every default detail response.
func (m *MockCatalog) SetDetailDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detailDelay = d
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCatalog) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// GetSearchRequests returns the number of search requests served.
func (m *MockCatalog) GetSearchRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SearchRequests
}

// GetDetailRequests returns the number of detail requests served.
func (m *MockCatalog) GetDetailRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.DetailRequests
}

// GetSearchQueries returns a copy of the received search queries.
func (m *MockCatalog) GetSearchQueries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]url.Values(nil), m.SearchQueries...)
}

type searchRecord struct {
	UUID    string `json:"uuid"`
	URI     string `json:"uri"`
	Version string `json:"version"`
	Name    string `json:"name"`
}

type searchPage struct {
	Data       []searchRecord `json:"data"`
	TotalCount int            `json:"totalCount"`
	PageSize   int            `json:"pageSize"`
	StartIndex int            `json:"startIndex"`
}

func (m *MockCatalog) searchHandler(w http.ResponseWriter, r *http.Request) {
	start, _ := strconv.Atoi(r.URL.Query().Get("startIndex"))

	m.mu.Lock()
	m.SearchRequests++
	m.SearchQueries = append(m.SearchQueries, r.URL.Query())
	fail, failing := m.failStarts[start]
	pageSize := m.pageSize
	total := m.total
	records := m.records
	m.mu.Unlock()

	if failing {
		writeResponse(w, fail)
		return
	}

	if total <= 0 {
		total = len(records)
	}

	page := searchPage{
		Data:       []searchRecord{},
		TotalCount: total,
		PageSize:   pageSize,
		StartIndex: start,
	}
	for i := start; i < start+pageSize && i < len(records); i++ {
		d := records[i]
		page.Data = append(page.Data, searchRecord{
			UUID:    d.ID,
			URI:     d.SourceURI,
			Version: d.Version,
			Name:    "EPD " + d.ID,
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(page)
}

func (m *MockCatalog) detailHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, SearchPath+"/")

	m.mu.Lock()
	m.DetailRequests++
	resp, custom := m.details[id]
	delay := m.detailDelay
	m.mu.Unlock()

	if custom {
		writeResponse(w, resp)
		return
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	body := map[string]any{
		"version": r.URL.Query().Get("version"),
		"processInformation": map[string]any{
			"dataSetInformation": map[string]any{"UUID": id},
		},
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewJSONResponse creates a 200 OK response with a JSON body.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Retry-After":  "1",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "Not found"}`,
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}
