// Package ffmpeg wraps the external ffprobe and ffmpeg binaries.
//
// Probe runs ffprobe and returns its diagnostic output; the stream-line
// parser and selection policy pick which audio stream an extraction should
// copy. Remux performs the stream-copy extraction itself. Neither function
// retries: callers decide what a failure means.
package ffmpeg
