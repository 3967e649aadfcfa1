package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/media/ffmpeg"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/mediadb"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/metrics"
)

// Options describes engine construction parameters.
type Options struct {
	Store          *mediadb.Store
	Runner         Runner
	Logger         *slog.Logger
	CacheDir       string
	MaxCacheBytes  int64
	EvictGrace     time.Duration
	ProbeSlots     int
	ProbeTimeout   time.Duration
	ExtractTimeout time.Duration
}

// Engine composes the prober, the extraction coordinator, and the cache
// evictor behind the Probe/CachedPath contract.
type Engine struct {
	store  *mediadb.Store
	runner Runner
	logger *slog.Logger

	cacheDir       string
	maxCacheBytes  int64
	evictGrace     time.Duration
	probeTimeout   time.Duration
	extractTimeout time.Duration

	probeSlots chan struct{}

	mu      sync.Mutex
	running map[string]chan struct{}

	sweepMu  sync.Mutex
	sweeping bool
}

// New constructs the engine, creates the cache directory, and discards any
// temp files a previous process left behind.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("extract: store required")
	}
	if strings.TrimSpace(opts.CacheDir) == "" {
		return nil, errors.New("extract: cache directory required")
	}
	if opts.MaxCacheBytes <= 0 {
		return nil, errors.New("extract: max cache size must be positive")
	}
	if opts.Runner == nil {
		opts.Runner = CLIRunner{}
	}
	if opts.ProbeSlots <= 0 {
		opts.ProbeSlots = 10
	}
	if opts.EvictGrace <= 0 {
		opts.EvictGrace = 600 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 60 * time.Second
	}
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = 300 * time.Second
	}

	if err := os.MkdirAll(opts.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("extract: create cache directory: %w", err)
	}

	e := &Engine{
		store:          opts.Store,
		runner:         opts.Runner,
		logger:         logging.NewComponentLogger(opts.Logger, "extract"),
		cacheDir:       opts.CacheDir,
		maxCacheBytes:  opts.MaxCacheBytes,
		evictGrace:     opts.EvictGrace,
		probeTimeout:   opts.ProbeTimeout,
		extractTimeout: opts.ExtractTimeout,
		probeSlots:     make(chan struct{}, opts.ProbeSlots),
		running:        make(map[string]chan struct{}),
	}
	e.removeStaleTempFiles()
	return e, nil
}

// Probe determines the audio format of a source file, running ffprobe only
// when no record exists yet. At most ProbeSlots probes run concurrently;
// additional callers block until a slot frees up.
func (e *Engine) Probe(ctx context.Context, sourcePath string) (string, error) {
	rec, err := e.store.Get(ctx, sourcePath)
	if err != nil {
		return "", err
	}
	if rec != nil && rec.MediaFormat != "" {
		return rec.MediaFormat, nil
	}

	select {
	case e.probeSlots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-e.probeSlots }()

	probeCtx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	output, err := e.runner.Probe(probeCtx, sourcePath)
	if err != nil {
		metrics.ProbesTotal.WithLabelValues("error").Inc()
		e.logger.Error("probe failed",
			logging.String("source", sourcePath),
			logging.Error(err))
		return "", fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	stream, ok := ffmpeg.SelectAudioStream(ffmpeg.ParseAudioStreams(output))
	if !ok {
		metrics.ProbesTotal.WithLabelValues("no_audio").Inc()
		e.logger.Error("no audio stream found", logging.String("source", sourcePath))
		return "", fmt.Errorf("%w: no audio stream in %s", ErrProbeFailed, sourcePath)
	}

	if err := e.store.UpsertFormat(ctx, sourcePath, stream.Codec, stream.Selector); err != nil {
		return "", err
	}
	metrics.ProbesTotal.WithLabelValues("success").Inc()
	e.logger.Debug("probed source",
		logging.String("source", sourcePath),
		logging.String("format", stream.Codec),
		logging.String("stream", stream.Selector))
	return stream.Codec, nil
}

// CachedPath returns the path of the extracted audio file for a source,
// producing it first when necessary. A prior successful Probe is required.
func (e *Engine) CachedPath(ctx context.Context, sourcePath string) (string, error) {
	rec, err := e.store.Get(ctx, sourcePath)
	if err != nil {
		return "", err
	}
	if rec == nil || rec.MediaFormat == "" {
		return "", fmt.Errorf("%w: %s", ErrNotReady, sourcePath)
	}

	if rec.CachePath != "" {
		if _, statErr := os.Stat(rec.CachePath); statErr == nil {
			metrics.CacheHitsTotal.Inc()
			e.touch(rec.CachePath)
			return rec.CachePath, nil
		}
	}

	cachePath, err := e.extract(ctx, sourcePath, rec)
	if err != nil {
		return "", err
	}
	e.touch(cachePath)
	return cachePath, nil
}

// Peek reports the cached file for a source when it already exists on disk.
// Unlike CachedPath it never starts an extraction and never refreshes the
// access timestamp.
func (e *Engine) Peek(ctx context.Context, sourcePath string) (string, bool) {
	rec, err := e.store.Get(ctx, sourcePath)
	if err != nil || rec == nil || rec.CachePath == "" {
		return "", false
	}
	if _, statErr := os.Stat(rec.CachePath); statErr != nil {
		return "", false
	}
	return rec.CachePath, true
}

// extract enforces the single-flight rule: the first caller for a source
// path runs the subprocess, everyone else waits for its completion signal
// and re-reads the store.
func (e *Engine) extract(ctx context.Context, sourcePath string, rec *mediadb.Record) (string, error) {
	e.mu.Lock()
	if done, found := e.running[sourcePath]; found {
		e.mu.Unlock()
		return e.awaitExtraction(ctx, sourcePath, done)
	}
	done := make(chan struct{})
	e.running[sourcePath] = done
	e.mu.Unlock()

	e.scheduleSweep()

	cachePath, err := e.runExtraction(ctx, sourcePath, rec)

	// Store commit happened inside runExtraction; signal waiters, then
	// clear the job entry.
	close(done)
	e.mu.Lock()
	delete(e.running, sourcePath)
	e.mu.Unlock()

	return cachePath, err
}

func (e *Engine) awaitExtraction(ctx context.Context, sourcePath string, done <-chan struct{}) (string, error) {
	select {
	case <-done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	rec, err := e.store.Get(ctx, sourcePath)
	if err != nil {
		return "", err
	}
	if rec != nil && rec.CachePath != "" {
		if _, statErr := os.Stat(rec.CachePath); statErr == nil {
			return rec.CachePath, nil
		}
	}
	return "", fmt.Errorf("%w: shared extraction for %s produced no file", ErrExtractionFailed, sourcePath)
}

func (e *Engine) runExtraction(ctx context.Context, sourcePath string, rec *mediadb.Record) (string, error) {
	fileName := CacheFileName(sourcePath, rec.MediaFormat)
	finalPath := filepath.Join(e.cacheDir, fileName)
	tmpPath := filepath.Join(e.cacheDir, "tmp."+fileName)
	_ = os.Remove(tmpPath)

	// Detach from the requesting client: an aborted request must not kill
	// an extraction other callers are waiting on, nor prevent the store
	// commit that makes the finished file visible to them.
	detached := context.WithoutCancel(ctx)
	remuxCtx, cancel := context.WithTimeout(detached, e.extractTimeout)
	defer cancel()

	start := time.Now()
	if err := e.runner.Remux(remuxCtx, sourcePath, rec.StreamSelector, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		metrics.ExtractionsTotal.WithLabelValues("error").Inc()
		e.logger.Error("extraction failed",
			logging.String("source", sourcePath),
			logging.Error(err))
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if _, err := os.Stat(tmpPath); err != nil {
		metrics.ExtractionsTotal.WithLabelValues("error").Inc()
		e.logger.Error("extraction produced no output",
			logging.String("source", sourcePath),
			logging.String("temp", tmpPath))
		return "", fmt.Errorf("%w: no output for %s", ErrExtractionFailed, sourcePath)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		metrics.ExtractionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if err := e.store.SetCachePath(detached, sourcePath, finalPath); err != nil {
		metrics.ExtractionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	metrics.ExtractionsTotal.WithLabelValues("success").Inc()
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	e.logger.Info("extracted audio",
		logging.String("source", sourcePath),
		logging.String("cache", finalPath),
		logging.Duration("took", time.Since(start)))
	return finalPath, nil
}

// touch refreshes the access timestamp so the evictor's recency ordering
// reflects actual usage.
func (e *Engine) touch(path string) {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		e.logger.Warn("refresh cache timestamp",
			logging.String("cache", path),
			logging.Error(err))
	}
}

func (e *Engine) removeStaleTempFiles() {
	entries, err := os.ReadDir(e.cacheDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "tmp.") {
			continue
		}
		path := filepath.Join(e.cacheDir, entry.Name())
		if err := os.Remove(path); err != nil {
			e.logger.Warn("remove stale temp file",
				logging.String("temp", path),
				logging.Error(err))
			continue
		}
		e.logger.Debug("removed stale temp file", logging.String("temp", path))
	}
}
