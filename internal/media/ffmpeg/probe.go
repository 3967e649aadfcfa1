package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var commandContext = exec.CommandContext

// AudioStream describes one audio elementary stream reported by ffprobe.
type AudioStream struct {
	// Selector is the container-relative stream identifier, e.g. "0:1".
	Selector string
	// Annotation is the parenthesized language/disposition tag, e.g. "eng".
	// Empty when the stream carries no annotation.
	Annotation string
	// Codec is the short codec tag with trailing parameters stripped, e.g. "aac".
	Codec string
}

// Probe runs ffprobe against path and returns its diagnostic output.
// ffprobe writes stream descriptions to stderr; stdout is ignored.
func Probe(ctx context.Context, binary, path string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return "", errors.New("ffprobe: empty path")
	}

	cmd := commandContext(ctx, binary, "-hide_banner", "--", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffprobe %s: %w: %s", path, err, tail(stderr.String()))
	}
	return stderr.String(), nil
}

// Stream lines look like
//
//	Stream #0:1[0x2](eng): Audio: aac (LC), 48000 Hz, stereo, fltp (default)
//
// with the bracketed id and the parenthesized annotation both optional.
var audioStreamPattern = regexp.MustCompile(`Stream #(\d+:\d+)(?:\[[^\]]*\])?(?:\(([^)]*)\))?: Audio: ([^\s,]+)`)

// ParseAudioStreams extracts the audio stream descriptions from ffprobe
// diagnostic output, in file order.
func ParseAudioStreams(output string) []AudioStream {
	var streams []AudioStream
	for _, line := range strings.Split(output, "\n") {
		match := audioStreamPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		streams = append(streams, AudioStream{
			Selector:   match[1],
			Annotation: match[2],
			Codec:      strings.TrimSuffix(match[3], ","),
		})
	}
	return streams
}

// SelectAudioStream picks the stream to extract: the first English-annotated
// stream wins, then the first unannotated stream, then the first stream in
// file order. ok is false when no audio stream exists.
func SelectAudioStream(streams []AudioStream) (AudioStream, bool) {
	for _, stream := range streams {
		if strings.Contains(stream.Annotation, "eng") {
			return stream, true
		}
	}
	for _, stream := range streams {
		if stream.Annotation == "" {
			return stream, true
		}
	}
	if len(streams) > 0 {
		return streams[0], true
	}
	return AudioStream{}, false
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
