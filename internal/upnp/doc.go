// Package upnp implements the discovery and control surface of the media
// server: SSDP presence announcements, the device and service description
// documents, SOAP control endpoints for ContentDirectory and
// ConnectionManager, and DIDL-Lite rendering of catalog objects.
//
// Eventing (GENA) is not implemented; control points poll GetSystemUpdateID
// to notice tree changes.
package upnp
