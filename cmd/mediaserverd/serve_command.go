package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/catalog"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/config"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/extract"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/mediadb"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/server"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/upnp"
)

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the media server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock := flock.New(instanceLockPath(cfg))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance already manages %s", cfg.Paths.CacheDir)
	}
	defer lock.Unlock() //nolint:errcheck

	store, err := mediadb.Open(cfg.Paths.DBPath)
	if err != nil {
		return fmt.Errorf("open media database: %w", err)
	}
	defer store.Close()

	engine, err := extract.New(extract.Options{
		Store:          store,
		Runner:         extract.CLIRunner{FFprobe: cfg.Tools.FFprobe, FFmpeg: cfg.Tools.FFmpeg},
		Logger:         logger,
		CacheDir:       cfg.Paths.CacheDir,
		MaxCacheBytes:  cfg.Cache.MaxSizeBytes,
		EvictGrace:     cfg.EvictGrace(),
		ProbeSlots:     cfg.Cache.ProbeSlots,
		ProbeTimeout:   cfg.ProbeTimeout(),
		ExtractTimeout: cfg.ExtractTimeout(),
	})
	if err != nil {
		return fmt.Errorf("create extraction engine: %w", err)
	}

	cat := catalog.New(engine, logger)
	if err := cat.Scan(cfg.Paths.MediaDirs); err != nil {
		return fmt.Errorf("scan media directories: %w", err)
	}

	watcher, err := catalog.NewWatcher(cat)
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	go watcher.Run(ctx) //nolint:errcheck

	udn := cfg.Server.UDN
	if udn == "" {
		udn = uuid.NewString()
		logger.Warn("server.udn not configured, using a fresh identity",
			logging.String("udn", udn))
	}

	srv, err := server.New(server.Options{
		Bind:         cfg.Server.Bind,
		FriendlyName: cfg.Server.FriendlyName,
		UDN:          udn,
		Catalog:      cat,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	location, err := advertiseLocation(cfg, srv.Addr())
	if err != nil {
		return err
	}
	go upnp.NewSSDP(udn, location, logger).Run(ctx) //nolint:errcheck

	logger.Info("media server running",
		logging.String("address", srv.Addr()),
		logging.Int("objects", cat.ObjectCount()))

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// instanceLockPath places the single-instance lock beside the database,
// never inside the cache directory: the evictor treats every file there as
// an eviction candidate and would eventually delete a held lock.
func instanceLockPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Paths.DBPath), "mediaserverd.lock")
}

// advertiseLocation builds the device description URL announced over SSDP.
// When no advertise host is configured and the server binds a wildcard
// address, the primary outbound interface address is used.
func advertiseLocation(cfg *config.Config, boundAddr string) (string, error) {
	_, port, err := net.SplitHostPort(boundAddr)
	if err != nil {
		return "", fmt.Errorf("parse bound address %q: %w", boundAddr, err)
	}

	host := cfg.Server.AdvertiseHost
	if host == "" {
		bindHost, _, _ := net.SplitHostPort(cfg.Server.Bind)
		if ip := net.ParseIP(bindHost); ip != nil && !ip.IsUnspecified() {
			host = bindHost
		} else {
			host, err = outboundIP()
			if err != nil {
				return "", err
			}
		}
	}
	return fmt.Sprintf("http://%s/device.xml", net.JoinHostPort(host, port)), nil
}

// outboundIP finds the local address used to reach off-host destinations.
// No packets are sent; the connect only selects a route.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp4", "239.255.255.250:1900")
	if err != nil {
		return "", fmt.Errorf("determine outbound address: %w", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
