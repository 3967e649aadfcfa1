// Package catalog maps the scanned filesystem hierarchy into browsable
// objects with stable integer identifiers and change-tracking counters.
//
// Containers mirror directories; audio files become directly playable items;
// video files become transcode items whose playable path is produced lazily
// by the extraction engine. The catalog owns the identifier counter and the
// SystemUpdateID; the scanner and watcher mutate the tree through it.
package catalog
