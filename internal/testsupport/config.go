package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.MediaDirs = []string{filepath.Join(base, "media")}
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.DBPath = filepath.Join(base, "media.db")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Server.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithCacheBudget overrides the cache size limit on the test config.
func WithCacheBudget(bytes int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Cache.MaxSizeBytes = bytes
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
