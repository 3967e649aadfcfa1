package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
)

// Remux copies the selected audio stream of src into dst without re-encoding.
// The video stream is dropped. dst should be a temporary path the caller
// renames into place after success.
func Remux(ctx context.Context, binary, src, streamSelector, dst string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(src) == "" {
		return errors.New("ffmpeg remux: empty source path")
	}
	if strings.TrimSpace(dst) == "" {
		return errors.New("ffmpeg remux: empty output path")
	}

	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y", "-i", src}
	if selector := strings.TrimSpace(streamSelector); selector != "" {
		args = append(args, "-map", selector)
	}
	args = append(args, "-vn", "-c:a", "copy", dst)

	cmd := commandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg remux %s: %w: %s", src, err, tail(stderr.String()))
	}
	return nil
}
