// Package extract is the transcode cache engine.
//
// It probes video files for their audio format, extracts (stream-copies) the
// chosen audio track into a cache directory, and keeps that directory under a
// size budget with LRU eviction. Concurrent requests for the same source file
// share one extraction: the first caller runs ffmpeg, later callers wait on
// its completion and read the committed result from the metadata store.
package extract
