package upnp

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/catalog"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
)

// UPnP error codes used by the control handler.
const (
	errInvalidAction = 401
	errInvalidArgs   = 402
	errNoSuchObject  = 701
)

const (
	browseMetadata       = "BrowseMetadata"
	browseDirectChildren = "BrowseDirectChildren"
)

// ControlHandler answers SOAP control requests for the ContentDirectory and
// ConnectionManager services.
type ControlHandler struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewControlHandler wires the control endpoints to a catalog.
func NewControlHandler(cat *catalog.Catalog, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{
		catalog: cat,
		logger:  logging.NewComponentLogger(logger, "upnp"),
	}
}

type soapEnvelope struct {
	Body soapBody `xml:"Body"`
}

type soapBody struct {
	Browse *browseArgs `xml:"Browse"`
}

type browseArgs struct {
	ObjectID       string `xml:"ObjectID"`
	BrowseFlag     string `xml:"BrowseFlag"`
	Filter         string `xml:"Filter"`
	StartingIndex  int    `xml:"StartingIndex"`
	RequestedCount int    `xml:"RequestedCount"`
	SortCriteria   string `xml:"SortCriteria"`
}

// soapAction extracts the action name from the SOAPACTION header, which has
// the form "urn:service-type#ActionName" in quotes.
func soapAction(r *http.Request) string {
	header := strings.Trim(r.Header.Get("SOAPACTION"), `"`)
	if i := strings.LastIndexByte(header, '#'); i >= 0 {
		return header[i+1:]
	}
	return ""
}

// ServeContentDirectory handles POSTs to the ContentDirectory control URL.
func (h *ControlHandler) ServeContentDirectory(w http.ResponseWriter, r *http.Request) {
	action := soapAction(r)
	h.logger.Debug("control request",
		logging.String("service", "ContentDirectory"),
		logging.String("action", action))

	switch action {
	case "Browse":
		h.browse(w, r)
	case "GetSystemUpdateID":
		h.respond(w, ContentDirectoryType, action,
			element("Id", strconv.FormatUint(uint64(h.catalog.SystemUpdateID()), 10)))
	case "GetSearchCapabilities":
		h.respond(w, ContentDirectoryType, action, element("SearchCaps", ""))
	case "GetSortCapabilities":
		h.respond(w, ContentDirectoryType, action, element("SortCaps", "dc:title"))
	case "GetFeatureList":
		h.respond(w, ContentDirectoryType, action, element("FeatureList",
			`<Features xmlns="urn:schemas-upnp-org:av:avs"/>`))
	default:
		h.fault(w, errInvalidAction, "Invalid Action")
	}
}

// ServeConnectionManager handles POSTs to the ConnectionManager control URL.
func (h *ControlHandler) ServeConnectionManager(w http.ResponseWriter, r *http.Request) {
	action := soapAction(r)
	h.logger.Debug("control request",
		logging.String("service", "ConnectionManager"),
		logging.String("action", action))

	switch action {
	case "GetProtocolInfo":
		source := strings.Join([]string{
			protocolInfoFor("audio/mpeg"),
			protocolInfoFor("audio/mp4"),
			protocolInfoFor("audio/flac"),
			protocolInfoFor("audio/ac3"),
			protocolInfoFor("audio/aac"),
		}, ",")
		h.respond(w, ConnectionManagerType, action,
			element("Source", source)+element("Sink", ""))
	case "GetCurrentConnectionIDs":
		h.respond(w, ConnectionManagerType, action, element("ConnectionIDs", "0"))
	default:
		h.fault(w, errInvalidAction, "Invalid Action")
	}
}

func (h *ControlHandler) browse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.fault(w, errInvalidArgs, "Invalid Args")
		return
	}
	var envelope soapEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil || envelope.Body.Browse == nil {
		h.fault(w, errInvalidArgs, "Invalid Args")
		return
	}
	args := envelope.Body.Browse

	objectID, err := strconv.Atoi(args.ObjectID)
	if err != nil {
		h.fault(w, errNoSuchObject, "No such object")
		return
	}
	obj, ok := h.catalog.Get(objectID)
	if !ok {
		h.fault(w, errNoSuchObject, "No such object")
		return
	}

	baseURL := "http://" + r.Host

	var page []catalog.Object
	var total int
	var updateID uint32

	switch args.BrowseFlag {
	case browseMetadata:
		page = []catalog.Object{obj}
		total = 1
		if container, isContainer := obj.(*catalog.Container); isContainer {
			updateID = container.UpdateID()
		}
	case browseDirectChildren:
		container, isContainer := obj.(*catalog.Container)
		if !isContainer {
			h.fault(w, errNoSuchObject, "No such object")
			return
		}
		children := catalog.SortedChildren(container)
		total = len(children)
		updateID = container.UpdateID()
		page = paginate(children, args.StartingIndex, args.RequestedCount)
	default:
		h.fault(w, errInvalidArgs, "Invalid Args")
		return
	}

	didl := RenderDIDL(r.Context(), page, baseURL)
	h.respond(w, ContentDirectoryType, "Browse",
		element("Result", didl)+
			element("NumberReturned", strconv.Itoa(len(page)))+
			element("TotalMatches", strconv.Itoa(total))+
			element("UpdateID", strconv.FormatUint(uint64(updateID), 10)))
}

func paginate(objects []catalog.Object, start, count int) []catalog.Object {
	if start >= len(objects) {
		return nil
	}
	end := len(objects)
	if count > 0 && start+count < end {
		end = start + count
	}
	return objects[start:end]
}

// element writes a response argument, escaping the value. Values that are
// themselves XML documents (DIDL results) arrive escaped on the wire per the
// SOAP encoding rules.
func element(name, value string) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(name)
	b.WriteByte('>')
	_ = xml.EscapeText(&b, []byte(value))
	b.WriteString("</")
	b.WriteString(name)
	b.WriteByte('>')
	return b.String()
}

func (h *ControlHandler) respond(w http.ResponseWriter, serviceType, action, arguments string) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>`+
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"`+
		` s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`+
		`<s:Body><u:%sResponse xmlns:u="%s">%s</u:%sResponse></s:Body></s:Envelope>`,
		action, serviceType, arguments, action)
}

func (h *ControlHandler) fault(w http.ResponseWriter, code int, description string) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>`+
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"`+
		` s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`+
		`<s:Body><s:Fault><faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring>`+
		`<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0">`+
		`<errorCode>%d</errorCode><errorDescription>%s</errorDescription>`+
		`</UPnPError></detail></s:Fault></s:Body></s:Envelope>`,
		code, description)
}
