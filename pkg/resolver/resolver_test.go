package resolver

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/epd-ingest/internal/testutil"
	"github.com/Sternrassler/epd-ingest/pkg/client"
	"github.com/Sternrassler/epd-ingest/pkg/epd"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig("epd-ingest-test/1.0")
	cfg.RateLimit = 0
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New failed: %v", err)
	}
	return c
}

func TestResolve_Success(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	d := mock.AddRecord("abc", "2.1")
	r := New(newTestClient(t))

	doc := r.Resolve(context.Background(), d)
	if doc.Failed {
		t.Fatal("document should not be failed")
	}
	if doc.ID != "abc" || doc.Version != "2.1" {
		t.Errorf("envelope = %+v", doc)
	}
	if doc.PayloadVersion() != "2.1" {
		t.Errorf("PayloadVersion() = %q, want 2.1", doc.PayloadVersion())
	}
	wantPDF := mock.URL() + "/resource/processes/abc/epd?version=2.1"
	if doc.PDFURL != wantPDF {
		t.Errorf("PDFURL = %q, want %q", doc.PDFURL, wantPDF)
	}
	if _, ok := doc.Body["processInformation"]; !ok {
		t.Error("body should carry the upstream payload")
	}
}

func TestResolve_StripsSpacesAndRequestsJSON(t *testing.T) {
	rec := &recordingFetcher{body: []byte(`{"version":"1.0"}`)}
	r := New(rec)

	d := epd.Descriptor{
		ID:        "x",
		SourceURI: "https://data.example.org/resource/processes/ x?version=1.0 ",
		Version:   "1.0",
	}
	doc := r.Resolve(context.Background(), d)

	if doc.Failed {
		t.Fatal("document should not be failed")
	}
	if strings.Contains(rec.uri, " ") {
		t.Errorf("requested uri %q still contains spaces", rec.uri)
	}
	if doc.SourceURI != rec.uri {
		t.Errorf("SourceURI = %q, want cleaned %q", doc.SourceURI, rec.uri)
	}
	if rec.params.Get("format") != "json" {
		t.Errorf("format = %q, want json", rec.params.Get("format"))
	}
	if rec.operation != "detail" {
		t.Errorf("operation = %q, want detail", rec.operation)
	}
}

func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp testutil.MockResponse
	}{
		{name: "server error", resp: testutil.NewServerErrorResponse()},
		{name: "not found", resp: testutil.NewNotFoundResponse()},
		{name: "malformed body", resp: testutil.NewMalformedResponse()},
		{name: "json array", resp: testutil.NewJSONResponse(`[1,2,3]`)},
		{name: "json null", resp: testutil.NewJSONResponse(`null`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCatalog()
			defer mock.Close()

			d := mock.AddRecord("bad", "1.0")
			mock.SetDetail("bad", tt.resp)

			doc := New(newTestClient(t)).Resolve(context.Background(), d)
			if !doc.Failed {
				t.Fatal("document should be failed")
			}
			if doc.ID != d.ID || doc.SourceURI != d.SourceURI || doc.Version != d.Version {
				t.Errorf("failed document = %+v, want descriptor fields", doc)
			}
			if doc.Body != nil {
				t.Errorf("failed document carries a body: %v", doc.Body)
			}
		})
	}
}

func TestResolve_Timeout(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	d := mock.AddRecord("slow", "1.0")
	mock.SetDetailDelay(500 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	doc := New(newTestClient(t)).Resolve(ctx, d)
	if !doc.Failed {
		t.Error("timed out resolution should yield a failed document")
	}
}

func TestResolve_EmptyURI(t *testing.T) {
	rec := &recordingFetcher{}
	doc := New(rec).Resolve(context.Background(), epd.Descriptor{ID: "x"})
	if !doc.Failed {
		t.Error("empty uri should yield a failed document")
	}
	if rec.calls != 0 {
		t.Errorf("fetcher called %d times, want 0", rec.calls)
	}
}

func TestResolve_FetcherError(t *testing.T) {
	rec := &recordingFetcher{err: errors.New("connection refused")}
	doc := New(rec).Resolve(context.Background(), epd.Descriptor{ID: "x", SourceURI: "https://h/resource/processes/x"})
	if !doc.Failed {
		t.Error("fetcher error should yield a failed document")
	}
}

func TestResolve_FailedDocumentCarriesCleanedURI(t *testing.T) {
	rec := &recordingFetcher{err: errors.New("connection refused")}
	d := epd.Descriptor{ID: "x", SourceURI: " https://h/resource/processes/ x ", Version: "1.0"}

	doc := New(rec).Resolve(context.Background(), d)
	if !doc.Failed {
		t.Fatal("fetcher error should yield a failed document")
	}
	if want := "https://h/resource/processes/x"; doc.SourceURI != want {
		t.Errorf("SourceURI = %q, want %q", doc.SourceURI, want)
	}
	if rec.uri != doc.SourceURI {
		t.Errorf("requested %q but recorded %q", rec.uri, doc.SourceURI)
	}
}

type recordingFetcher struct {
	body      []byte
	err       error
	calls     int
	operation string
	uri       string
	params    url.Values
}

func (f *recordingFetcher) GetJSON(_ context.Context, operation, rawURL string, params url.Values) ([]byte, error) {
	f.calls++
	f.operation = operation
	f.uri = rawURL
	f.params = params
	return f.body, f.err
}
