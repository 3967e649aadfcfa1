package config

const (
	defaultCacheDir              = "~/.cache/media-server/audio"
	defaultDBPath                = "~/.local/share/media-server/media.db"
	defaultLogDir                = "~/.local/share/media-server/logs"
	defaultBind                  = "0.0.0.0:8000"
	defaultFriendlyName          = "Media Server"
	defaultMaxCacheBytes         = 1_000_000_000
	defaultEvictGraceSeconds     = 600
	defaultProbeSlots            = 10
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultProbeTimeoutSeconds   = 60
	defaultExtractTimeoutSeconds = 300
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir,
			DBPath:   defaultDBPath,
			LogDir:   defaultLogDir,
		},
		Server: Server{
			Bind:         defaultBind,
			FriendlyName: defaultFriendlyName,
		},
		Cache: Cache{
			MaxSizeBytes:      defaultMaxCacheBytes,
			EvictGraceSeconds: defaultEvictGraceSeconds,
			ProbeSlots:        defaultProbeSlots,
		},
		Tools: Tools{
			FFmpeg:                defaultFFmpegBinary,
			FFprobe:               defaultFFprobeBinary,
			ProbeTimeoutSeconds:   defaultProbeTimeoutSeconds,
			ExtractTimeoutSeconds: defaultExtractTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
