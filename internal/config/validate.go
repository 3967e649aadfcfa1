package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Paths.MediaDirs) == 0 {
		return errors.New("paths.media_dirs must list at least one directory to serve")
	}
	for _, dir := range c.Paths.MediaDirs {
		if strings.TrimSpace(dir) == "" {
			return errors.New("paths.media_dirs entries must not be empty")
		}
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DBPath) == "" {
		return errors.New("paths.db_path must be set")
	}
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q is not a host:port value: %w", c.Server.Bind, err)
	}
	if c.Cache.MaxSizeBytes <= 0 {
		return errors.New("cache.max_size_bytes must be positive")
	}
	return nil
}
