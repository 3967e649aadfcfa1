package logging

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/config"
)

// NewFromConfig builds the process logger from the logging section of the
// configuration, writing to stderr and, when a log directory is configured,
// to mediaserverd.log inside it.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	outputs := []string{"stderr"}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		outputs = append(outputs, filepath.Join(dir, "mediaserverd.log"))
	}
	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
}
