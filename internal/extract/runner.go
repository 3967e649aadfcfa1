package extract

import (
	"context"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/media/ffmpeg"
)

// Runner abstracts the external analysis and remux processes.
type Runner interface {
	// Probe returns the diagnostic output of the analysis process.
	Probe(ctx context.Context, path string) (string, error)
	// Remux stream-copies the selected audio track of src into dst.
	Remux(ctx context.Context, src, streamSelector, dst string) error
}

// CLIRunner invokes the configured ffprobe and ffmpeg binaries.
type CLIRunner struct {
	FFprobe string
	FFmpeg  string
}

func (r CLIRunner) Probe(ctx context.Context, path string) (string, error) {
	return ffmpeg.Probe(ctx, r.FFprobe, path)
}

func (r CLIRunner) Remux(ctx context.Context, src, streamSelector, dst string) error {
	return ffmpeg.Remux(ctx, r.FFmpeg, src, streamSelector, dst)
}

var _ Runner = CLIRunner{}
