package upnp

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/catalog"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
)

type stubExtractor struct{ format string }

func (s stubExtractor) Probe(context.Context, string) (string, error)   { return s.format, nil }
func (s stubExtractor) CachedPath(context.Context, string) (string, error) {
	return "", fmt.Errorf("not cached")
}
func (s stubExtractor) Peek(context.Context, string) (string, bool) { return "", false }

func buildCatalog(t *testing.T) (*catalog.Catalog, string) {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"b.mp3", "a.mp3"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	c := catalog.New(stubExtractor{format: "aac"}, logging.NewNop())
	if err := c.Scan([]string{root}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return c, root
}

func browseRequest(objectID, flag string, start, count int) *http.Request {
	body := fmt.Sprintf(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <u:Browse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1">
      <ObjectID>%s</ObjectID>
      <BrowseFlag>%s</BrowseFlag>
      <Filter>*</Filter>
      <StartingIndex>%d</StartingIndex>
      <RequestedCount>%d</RequestedCount>
      <SortCriteria></SortCriteria>
    </u:Browse>
  </s:Body>
</s:Envelope>`, objectID, flag, start, count)
	req := httptest.NewRequest(http.MethodPost, "/control/ContentDirectory", strings.NewReader(body))
	req.Header.Set("SOAPACTION", `"urn:schemas-upnp-org:service:ContentDirectory:1#Browse"`)
	req.Host = "media.local:8000"
	return req
}

type browseResponse struct {
	Result         string `xml:"Body>BrowseResponse>Result"`
	NumberReturned int    `xml:"Body>BrowseResponse>NumberReturned"`
	TotalMatches   int    `xml:"Body>BrowseResponse>TotalMatches"`
	UpdateID       uint32 `xml:"Body>BrowseResponse>UpdateID"`
}

func decodeBrowse(t *testing.T, body string) browseResponse {
	t.Helper()
	var resp browseResponse
	if err := xml.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode browse response: %v\n%s", err, body)
	}
	return resp
}

func TestBrowseDirectChildrenOfRoot(t *testing.T) {
	cat, root := buildCatalog(t)
	h := NewControlHandler(cat, logging.NewNop())

	rec := httptest.NewRecorder()
	h.ServeContentDirectory(rec, browseRequest("0", "BrowseDirectChildren", 0, 0))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	resp := decodeBrowse(t, rec.Body.String())
	if resp.NumberReturned != 1 || resp.TotalMatches != 1 {
		t.Fatalf("returned/total = %d/%d, want 1/1", resp.NumberReturned, resp.TotalMatches)
	}
	if !strings.Contains(resp.Result, filepath.Base(root)) {
		t.Errorf("result should list the media directory container:\n%s", resp.Result)
	}
}

func TestBrowseChildrenSortedAndLinked(t *testing.T) {
	cat, root := buildCatalog(t)
	top, _ := cat.ByPath(root)
	h := NewControlHandler(cat, logging.NewNop())

	rec := httptest.NewRecorder()
	h.ServeContentDirectory(rec, browseRequest(fmt.Sprintf("%d", top.ID()), "BrowseDirectChildren", 0, 0))

	resp := decodeBrowse(t, rec.Body.String())
	if resp.TotalMatches != 2 {
		t.Fatalf("TotalMatches = %d, want 2", resp.TotalMatches)
	}
	if strings.Index(resp.Result, "a.mp3") > strings.Index(resp.Result, "b.mp3") {
		t.Errorf("children should sort by title:\n%s", resp.Result)
	}
	if !strings.Contains(resp.Result, "http://media.local:8000/content/") {
		t.Errorf("res URL should use the request host:\n%s", resp.Result)
	}
	if !strings.Contains(resp.Result, "DLNA.ORG_OP=01") {
		t.Errorf("protocolInfo should advertise range support:\n%s", resp.Result)
	}
}

func TestBrowsePagination(t *testing.T) {
	cat, root := buildCatalog(t)
	top, _ := cat.ByPath(root)
	h := NewControlHandler(cat, logging.NewNop())

	rec := httptest.NewRecorder()
	h.ServeContentDirectory(rec, browseRequest(fmt.Sprintf("%d", top.ID()), "BrowseDirectChildren", 1, 1))

	resp := decodeBrowse(t, rec.Body.String())
	if resp.NumberReturned != 1 {
		t.Errorf("NumberReturned = %d, want 1", resp.NumberReturned)
	}
	if resp.TotalMatches != 2 {
		t.Errorf("TotalMatches = %d, want 2", resp.TotalMatches)
	}
	if !strings.Contains(resp.Result, "b.mp3") || strings.Contains(resp.Result, "a.mp3") {
		t.Errorf("page should hold only the second child:\n%s", resp.Result)
	}
}

func TestBrowseMetadata(t *testing.T) {
	cat, root := buildCatalog(t)
	item, _ := cat.ByPath(filepath.Join(root, "a.mp3"))
	h := NewControlHandler(cat, logging.NewNop())

	rec := httptest.NewRecorder()
	h.ServeContentDirectory(rec, browseRequest(fmt.Sprintf("%d", item.ID()), "BrowseMetadata", 0, 0))

	resp := decodeBrowse(t, rec.Body.String())
	if resp.NumberReturned != 1 || resp.TotalMatches != 1 {
		t.Fatalf("returned/total = %d/%d, want 1/1", resp.NumberReturned, resp.TotalMatches)
	}
	if !strings.Contains(resp.Result, "object.item.audioItem.musicTrack") {
		t.Errorf("metadata should carry the item class:\n%s", resp.Result)
	}
}

func TestBrowseUnknownObjectFaults(t *testing.T) {
	cat, _ := buildCatalog(t)
	h := NewControlHandler(cat, logging.NewNop())

	rec := httptest.NewRecorder()
	h.ServeContentDirectory(rec, browseRequest("99999", "BrowseDirectChildren", 0, 0))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<errorCode>701</errorCode>") {
		t.Errorf("fault should carry error 701:\n%s", rec.Body.String())
	}
}

func TestGetSystemUpdateID(t *testing.T) {
	cat, _ := buildCatalog(t)
	h := NewControlHandler(cat, logging.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/control/ContentDirectory", strings.NewReader(""))
	req.Header.Set("SOAPACTION", `"urn:schemas-upnp-org:service:ContentDirectory:1#GetSystemUpdateID"`)
	rec := httptest.NewRecorder()
	h.ServeContentDirectory(rec, req)

	want := fmt.Sprintf("<Id>%d</Id>", cat.SystemUpdateID())
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("response missing %s:\n%s", want, rec.Body.String())
	}
}

func TestUnknownActionFaults(t *testing.T) {
	cat, _ := buildCatalog(t)
	h := NewControlHandler(cat, logging.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/control/ContentDirectory", strings.NewReader(""))
	req.Header.Set("SOAPACTION", `"urn:schemas-upnp-org:service:ContentDirectory:1#Destroy"`)
	rec := httptest.NewRecorder()
	h.ServeContentDirectory(rec, req)

	if !strings.Contains(rec.Body.String(), "<errorCode>401</errorCode>") {
		t.Errorf("unknown action should fault with 401:\n%s", rec.Body.String())
	}
}

func TestGetProtocolInfo(t *testing.T) {
	cat, _ := buildCatalog(t)
	h := NewControlHandler(cat, logging.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/control/ConnectionManager", strings.NewReader(""))
	req.Header.Set("SOAPACTION", `"urn:schemas-upnp-org:service:ConnectionManager:1#GetProtocolInfo"`)
	rec := httptest.NewRecorder()
	h.ServeConnectionManager(rec, req)

	if !strings.Contains(rec.Body.String(), "http-get:*:audio/mpeg:DLNA.ORG_OP=01") {
		t.Errorf("GetProtocolInfo should list audio protocols:\n%s", rec.Body.String())
	}
}
