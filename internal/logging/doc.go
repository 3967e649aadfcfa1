// Package logging configures slog handlers for the media server and
// provides attribute helpers shared across components.
package logging
