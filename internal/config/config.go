package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	MediaDirs []string `toml:"media_dirs"`
	CacheDir  string   `toml:"cache_dir"`
	DBPath    string   `toml:"db_path"`
	LogDir    string   `toml:"log_dir"`
}

// Server contains the HTTP and UPnP presence settings.
type Server struct {
	Bind          string `toml:"bind"`
	AdvertiseHost string `toml:"advertise_host"`
	FriendlyName  string `toml:"friendly_name"`
	UDN           string `toml:"udn"`
}

// Cache contains the audio-extraction cache budget settings.
type Cache struct {
	MaxSizeBytes      int64 `toml:"max_size_bytes"`
	EvictGraceSeconds int   `toml:"evict_grace_seconds"`
	ProbeSlots        int   `toml:"probe_slots"`
}

// Tools contains the external ffmpeg-family binaries and their deadlines.
type Tools struct {
	FFmpeg                string `toml:"ffmpeg"`
	FFprobe               string `toml:"ffprobe"`
	ProbeTimeoutSeconds   int    `toml:"probe_timeout"`
	ExtractTimeoutSeconds int    `toml:"extract_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the media server.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Server  Server  `toml:"server"`
	Cache   Cache   `toml:"cache"`
	Tools   Tools   `toml:"tools"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the default config location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/media-server/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	for i, dir := range c.Paths.MediaDirs {
		if c.Paths.MediaDirs[i], err = expandPath(strings.TrimRight(dir, "/")); err != nil {
			return fmt.Errorf("paths.media_dirs[%d]: %w", i, err)
		}
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.DBPath, err = expandPath(c.Paths.DBPath); err != nil {
		return fmt.Errorf("paths.db_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.AdvertiseHost = strings.TrimSpace(c.Server.AdvertiseHost)
	c.Server.FriendlyName = strings.TrimSpace(c.Server.FriendlyName)
	if c.Server.FriendlyName == "" {
		c.Server.FriendlyName = defaultFriendlyName
	}
	c.Server.UDN = strings.TrimSpace(c.Server.UDN)

	if c.Cache.MaxSizeBytes <= 0 {
		c.Cache.MaxSizeBytes = defaultMaxCacheBytes
	}
	if c.Cache.EvictGraceSeconds <= 0 {
		c.Cache.EvictGraceSeconds = defaultEvictGraceSeconds
	}
	if c.Cache.ProbeSlots <= 0 {
		c.Cache.ProbeSlots = defaultProbeSlots
	}

	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}
	if c.Tools.ProbeTimeoutSeconds <= 0 {
		c.Tools.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
	if c.Tools.ExtractTimeoutSeconds <= 0 {
		c.Tools.ExtractTimeoutSeconds = defaultExtractTimeoutSeconds
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// EvictGrace returns the eviction grace window as a duration.
func (c *Config) EvictGrace() time.Duration {
	return time.Duration(c.Cache.EvictGraceSeconds) * time.Second
}

// ProbeTimeout returns the ffprobe deadline as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Tools.ProbeTimeoutSeconds) * time.Second
}

// ExtractTimeout returns the ffmpeg remux deadline as a duration.
func (c *Config) ExtractTimeout() time.Duration {
	return time.Duration(c.Tools.ExtractTimeoutSeconds) * time.Second
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CacheDir, c.Paths.LogDir, filepath.Dir(c.Paths.DBPath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the annotated sample configuration to path.
func WriteSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
