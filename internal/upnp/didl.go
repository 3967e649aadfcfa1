package upnp

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/catalog"
)

const (
	classStorageFolder = "object.container.storageFolder"
	classMusicTrack    = "object.item.audioItem.musicTrack"

	didlOpen = `<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
		` xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/"` +
		` xmlns:dlna="urn:schemas-dlna-org:metadata-1-0/">`
	didlClose = `</DIDL-Lite>`
)

// protocolInfoFor builds the http-get protocolInfo string for a MIME type.
// DLNA.ORG_OP=01 advertises byte-range seek support.
func protocolInfoFor(mimeType string) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("http-get:*:%s:DLNA.ORG_OP=01", mimeType)
}

// RenderDIDL serializes catalog objects into a DIDL-Lite document. baseURL
// is the scheme://host:port prefix clients can reach the server at.
//
// Namespace-prefixed elements (dc:title, upnp:class) are written by hand;
// encoding/xml cannot emit prefixed names, only default-namespace ones, and
// several renderers reject the latter form.
func RenderDIDL(ctx context.Context, objects []catalog.Object, baseURL string) string {
	var b strings.Builder
	b.WriteString(didlOpen)
	for _, obj := range objects {
		writeObject(ctx, &b, obj, baseURL)
	}
	b.WriteString(didlClose)
	return b.String()
}

func writeObject(ctx context.Context, b *strings.Builder, obj catalog.Object, baseURL string) {
	parentID := -1
	if parent := obj.Parent(); parent != nil {
		parentID = parent.ID()
	}

	switch o := obj.(type) {
	case *catalog.Container:
		fmt.Fprintf(b, `<container id="%d" parentID="%d" restricted="1" childCount="%d">`,
			o.ID(), parentID, len(o.Children()))
		writeElement(b, "dc:title", o.Name())
		writeElement(b, "upnp:class", classStorageFolder)
		writeCommon(b, obj, baseURL)
		b.WriteString(`</container>`)

	case catalog.Item:
		fmt.Fprintf(b, `<item id="%d" parentID="%d" restricted="1">`, o.ID(), parentID)
		writeElement(b, "dc:title", itemTitle(ctx, o))
		writeElement(b, "upnp:class", classMusicTrack)
		writeCommon(b, obj, baseURL)

		sizeAttr := ""
		if size := o.Size(); size > 0 {
			sizeAttr = fmt.Sprintf(` size="%d"`, size)
		}
		fmt.Fprintf(b, `<res protocolInfo="%s"%s>`, protocolInfoFor(itemMime(ctx, o)), sizeAttr)
		writeText(b, fmt.Sprintf("%s/content/%d/media", baseURL, o.ID()))
		b.WriteString(`</res>`)
		b.WriteString(`</item>`)
	}
}

func writeCommon(b *strings.Builder, obj catalog.Object, baseURL string) {
	if !obj.Date().IsZero() {
		writeElement(b, "dc:date", obj.Date().Format("2006-01-02T15:04:05"))
	}
	if obj.CoverPath() != "" {
		writeElement(b, "upnp:albumArtURI", fmt.Sprintf("%s/content/%d/cover", baseURL, obj.ID()))
	}
}

func writeElement(b *strings.Builder, name, value string) {
	b.WriteByte('<')
	b.WriteString(name)
	b.WriteByte('>')
	writeText(b, value)
	b.WriteString("</")
	b.WriteString(name)
	b.WriteByte('>')
}

func writeText(b *strings.Builder, value string) {
	_ = xml.EscapeText(b, []byte(value))
}

// itemTitle waits for the background probe on transcode items so the
// advertised name carries the extracted extension.
func itemTitle(ctx context.Context, item catalog.Item) string {
	if t, ok := item.(*catalog.TranscodeItem); ok {
		t.Format(ctx)
	}
	return item.Name()
}

func itemMime(ctx context.Context, item catalog.Item) string {
	if t, ok := item.(*catalog.TranscodeItem); ok {
		t.Format(ctx)
	}
	return item.MimeType()
}
