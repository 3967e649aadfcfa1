package upnp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/catalog"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
)

func TestRenderDIDLEscapesTitles(t *testing.T) {
	root := t.TempDir()
	name := "Tom & Jerry <live>.mp3"
	if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := catalog.New(stubExtractor{format: "aac"}, logging.NewNop())
	if err := c.Scan([]string{root}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	obj, _ := c.ByPath(filepath.Join(root, name))

	didl := RenderDIDL(context.Background(), []catalog.Object{obj}, "http://h:1")
	if !strings.Contains(didl, "Tom &amp; Jerry &lt;live&gt;.mp3") {
		t.Errorf("title not escaped:\n%s", didl)
	}
	if strings.Contains(didl, "<live>") {
		t.Errorf("raw angle brackets leaked into the document:\n%s", didl)
	}
}

func TestRenderDIDLTranscodeItemUsesProbedFormat(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "movie.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := catalog.New(stubExtractor{format: "ac3"}, logging.NewNop())
	if err := c.Scan([]string{root}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	obj, _ := c.ByPath(filepath.Join(root, "movie.mkv"))

	didl := RenderDIDL(context.Background(), []catalog.Object{obj}, "http://h:1")
	if !strings.Contains(didl, "movie.ac3") {
		t.Errorf("item title should advertise the extracted extension:\n%s", didl)
	}
	if !strings.Contains(didl, "http-get:*:audio/ac3:DLNA.ORG_OP=01") {
		t.Errorf("protocolInfo should use the probed format's MIME type:\n%s", didl)
	}
	if !strings.Contains(didl, fmt.Sprintf("http://h:1/content/%d/media", obj.ID())) {
		t.Errorf("res URL should address the item by identifier:\n%s", didl)
	}
}

func TestDeviceDescription(t *testing.T) {
	doc, err := DeviceDescription("Living Room Media", "11111111-2222-3333-4444-555555555555")
	if err != nil {
		t.Fatalf("DeviceDescription: %v", err)
	}
	for _, want := range []string{
		"<friendlyName>Living Room Media</friendlyName>",
		"<UDN>uuid:11111111-2222-3333-4444-555555555555</UDN>",
		ContentDirectoryType,
		ConnectionManagerType,
		"/control/ContentDirectory",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("device description missing %q:\n%s", want, doc)
		}
	}
}

func TestParseSearch(t *testing.T) {
	payload := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: urn:schemas-upnp-org:device:MediaServer:1\r\n\r\n"
	st, ok := parseSearch(payload)
	if !ok {
		t.Fatalf("parseSearch should accept an M-SEARCH request")
	}
	if st != "urn:schemas-upnp-org:device:MediaServer:1" {
		t.Errorf("st = %q", st)
	}

	if _, ok := parseSearch("NOTIFY * HTTP/1.1\r\nNT: upnp:rootdevice\r\n\r\n"); ok {
		t.Errorf("notifications should be ignored")
	}
}
