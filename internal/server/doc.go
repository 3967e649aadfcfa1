// Package server exposes the media server over HTTP: UPnP device and
// service descriptions, SOAP control endpoints, Prometheus metrics, and the
// content delivery routes with single-range seek support.
package server
