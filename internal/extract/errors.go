package extract

import "errors"

var (
	// ErrNotReady means a cache path was requested before any successful
	// probe recorded the source file's audio format.
	ErrNotReady = errors.New("extract: source not probed yet")

	// ErrProbeFailed means ffprobe failed or found no audio stream. Nothing
	// is persisted; the next request retries.
	ErrProbeFailed = errors.New("extract: probe failed")

	// ErrExtractionFailed means ffmpeg failed or produced no output. Nothing
	// is persisted; the next request retries.
	ErrExtractionFailed = errors.New("extract: extraction failed")
)
