package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/catalog"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
)

type stubExtractor struct {
	format    string
	cachePath string
	err       error
}

func (s stubExtractor) Probe(context.Context, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.format, nil
}

func (s stubExtractor) CachedPath(context.Context, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.cachePath, nil
}

func (s stubExtractor) Peek(context.Context, string) (string, bool) {
	return s.cachePath, s.cachePath != ""
}

// newTestServer builds a catalog over one audio file of exactly size bytes
// and returns the handler plus the item's content URL.
func newTestServer(t *testing.T, size int) (http.Handler, string) {
	t.Helper()
	root := t.TempDir()
	payload := make([]byte, size)
	if _, err := rand.Read(payload); err != nil {
		t.Fatalf("rand: %v", err)
	}
	path := filepath.Join(root, "track.mp3")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cat := catalog.New(stubExtractor{}, logging.NewNop())
	if err := cat.Scan([]string{root}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	item, _ := cat.ByPath(path)

	srv, err := New(Options{
		Bind:         "127.0.0.1:0",
		FriendlyName: "test",
		UDN:          "00000000-0000-0000-0000-000000000000",
		Catalog:      cat,
		Logger:       logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv.Handler(), fmt.Sprintf("/content/%d/media", item.ID())
}

func doRequest(t *testing.T, h http.Handler, method, target, rangeHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRangeRequestReturnsPartialContent(t *testing.T) {
	h, url := newTestServer(t, 1000)

	rec := doRequest(t, h, http.MethodGet, url, "bytes=100-199")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 100-199/900" {
		t.Errorf("Content-Range = %q, want bytes 100-199/900", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "100" {
		t.Errorf("Content-Length = %q, want 100", got)
	}
	if got := rec.Body.Len(); got != 100 {
		t.Errorf("body length = %d, want 100", got)
	}
	if got := rec.Header().Get("contentFeatures.dlna.org"); got != "DLNA.ORG_OP=01" {
		t.Errorf("contentFeatures.dlna.org = %q", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
}

func TestOpenEndedRangeRunsToEnd(t *testing.T) {
	h, url := newTestServer(t, 1000)

	rec := doRequest(t, h, http.MethodGet, url, "bytes=500-")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 500-999/500" {
		t.Errorf("Content-Range = %q, want bytes 500-999/500", got)
	}
	if got := rec.Body.Len(); got != 500 {
		t.Errorf("body length = %d, want 500", got)
	}
}

func TestNoRangeServesWholeResource(t *testing.T) {
	h, url := newTestServer(t, 1000)

	rec := doRequest(t, h, http.MethodGet, url, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("Content-Length = %q, want 1000", got)
	}
	if got := rec.Body.Len(); got != 1000 {
		t.Errorf("body length = %d, want 1000", got)
	}
}

func TestMalformedAndMultiRangeServeWhole(t *testing.T) {
	h, url := newTestServer(t, 1000)

	for _, header := range []string{
		"bytes=0-99,200-299",
		"bytes=-500",
		"bytes=abc-def",
		"chunks=0-99",
		"bytes=2000-",
	} {
		rec := doRequest(t, h, http.MethodGet, url, header)
		if rec.Code != http.StatusOK {
			t.Errorf("Range %q: status = %d, want 200", header, rec.Code)
		}
		if rec.Body.Len() != 1000 {
			t.Errorf("Range %q: body length = %d, want 1000", header, rec.Body.Len())
		}
	}
}

func TestRangeEndClampedToResource(t *testing.T) {
	h, url := newTestServer(t, 1000)

	rec := doRequest(t, h, http.MethodGet, url, "bytes=900-5000")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 900-999/100" {
		t.Errorf("Content-Range = %q, want bytes 900-999/100", got)
	}
	if got := rec.Body.Len(); got != 100 {
		t.Errorf("body length = %d, want 100", got)
	}
}

func TestRangeBodyMatchesSpan(t *testing.T) {
	h, url := newTestServer(t, 1000)

	whole := doRequest(t, h, http.MethodGet, url, "")
	part := doRequest(t, h, http.MethodGet, url, "bytes=100-199")

	want := whole.Body.Bytes()[100:200]
	if got := part.Body.Bytes(); string(got) != string(want) {
		t.Errorf("partial body does not match the span of the full body")
	}
}

func TestHeadReturnsHeadersOnly(t *testing.T) {
	h, url := newTestServer(t, 1000)

	rec := doRequest(t, h, http.MethodHead, url, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("Content-Length = %q, want 1000", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body length = %d, want 0", rec.Body.Len())
	}
}

func TestUnknownObjectIs404(t *testing.T) {
	h, _ := newTestServer(t, 10)

	for _, target := range []string{
		"/content/99999/media",
		"/content/notanumber/media",
		"/content/0/media",
	} {
		rec := doRequest(t, h, http.MethodGet, target, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, rec.Code)
		}
	}
}

func TestCoverServedWhenPresent(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "track.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "cover.jpg"), []byte("jpegbytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cat := catalog.New(stubExtractor{}, logging.NewNop())
	if err := cat.Scan([]string{root}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	item, _ := cat.ByPath(filepath.Join(root, "track.mp3"))
	srv, err := New(Options{Bind: "127.0.0.1:0", Catalog: cat, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := doRequest(t, srv.Handler(), http.MethodGet, fmt.Sprintf("/content/%d/cover", item.ID()), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body, _ := io.ReadAll(rec.Body); string(body) != "jpegbytes" {
		t.Errorf("cover body mismatch")
	}
}

func TestDeviceDescriptionRoute(t *testing.T) {
	h, _ := newTestServer(t, 10)

	rec := doRequest(t, h, http.MethodGet, "/device.xml", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "urn:schemas-upnp-org:device:MediaServer:1") {
		t.Errorf("device description missing device type:\n%s", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/xml") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestSCPDRoutes(t *testing.T) {
	h, _ := newTestServer(t, 10)

	for _, target := range []string{"/scpd/ContentDirectory.xml", "/scpd/ConnectionManager.xml"} {
		rec := doRequest(t, h, http.MethodGet, target, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "<scpd") {
			t.Errorf("%s: not an scpd document", target)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	h, url := newTestServer(t, 10)
	doRequest(t, h, http.MethodGet, url, "")

	rec := doRequest(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "media_server_http_requests_total") {
		t.Errorf("metrics output missing request counter")
	}
}
