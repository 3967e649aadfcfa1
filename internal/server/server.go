package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"log/slog"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/catalog"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/upnp"
)

// Server is the HTTP face of the media server: UPnP description and control
// documents plus the content delivery endpoints.
type Server struct {
	bind    string
	logger  *slog.Logger
	catalog *catalog.Catalog

	deviceXML string
	control   *upnp.ControlHandler

	listener net.Listener
	server   *http.Server
}

// Options configures a Server.
type Options struct {
	Bind         string
	FriendlyName string
	UDN          string
	Catalog      *catalog.Catalog
	Logger       *slog.Logger
}

// New builds the server and its route table.
func New(opts Options) (*Server, error) {
	if opts.Catalog == nil {
		return nil, errors.New("server: catalog required")
	}
	deviceXML, err := upnp.DeviceDescription(opts.FriendlyName, opts.UDN)
	if err != nil {
		return nil, err
	}

	s := &Server{
		bind:      opts.Bind,
		logger:    logging.NewComponentLogger(opts.Logger, "server"),
		catalog:   opts.Catalog,
		deviceXML: deviceXML,
		control:   upnp.NewControlHandler(opts.Catalog, opts.Logger),
	}

	router := mux.NewRouter()
	router.HandleFunc("/device.xml", s.handleDeviceDescription).Methods(http.MethodGet).Name("device")
	router.HandleFunc("/scpd/ContentDirectory.xml", scpdHandler(upnp.ContentDirectorySCPD)).Methods(http.MethodGet).Name("scpd")
	router.HandleFunc("/scpd/ConnectionManager.xml", scpdHandler(upnp.ConnectionManagerSCPD)).Methods(http.MethodGet).Name("scpd")
	router.HandleFunc("/control/ContentDirectory", s.control.ServeContentDirectory).Methods(http.MethodPost).Name("control")
	router.HandleFunc("/control/ConnectionManager", s.control.ServeConnectionManager).Methods(http.MethodPost).Name("control")
	router.HandleFunc("/content/{objectID}/{mediaType}", s.handleContent).
		Methods(http.MethodGet, http.MethodHead).Name("content")
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	router.Use(s.metricsMiddleware)

	// WriteTimeout stays unset: media streams legitimately outlive any
	// fixed deadline.
	s.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start begins serving and arranges shutdown on context cancellation.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.bind, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr reports the bound listen address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests with a short grace period.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleDeviceDescription(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	_, _ = w.Write([]byte(s.deviceXML))
}

func scpdHandler(document string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
		_, _ = w.Write([]byte(document))
	}
}
