package extract

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/metrics"
)

// scheduleSweep arms a background eviction sweep unless one is already
// running. Called on every extraction, so the cache converges back under
// budget shortly after each write.
func (e *Engine) scheduleSweep() {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	if e.sweeping {
		return
	}
	e.sweeping = true
	go func() {
		e.sweep()
		e.sweepMu.Lock()
		e.sweeping = false
		e.sweepMu.Unlock()
	}()
}

type cacheFile struct {
	path    string
	size    int64
	modTime time.Time
}

// sweep removes least-recently-touched files while the cache exceeds its
// budget. A file touched within the grace window stops the sweep entirely:
// everything younger than it is younger still, and evicting files under
// active playback would thrash.
func (e *Engine) sweep() {
	files, total := e.scanCache()

	now := time.Now()
	for total > e.maxCacheBytes && len(files) > 0 {
		oldest := files[0]
		if now.Sub(oldest.modTime) < e.evictGrace {
			break
		}
		files = files[1:]
		if err := os.Remove(oldest.path); err != nil {
			e.logger.Warn("evict cache file",
				logging.String("cache", oldest.path),
				logging.Error(err))
			continue
		}
		total -= oldest.size
		metrics.EvictedBytesTotal.Add(float64(oldest.size))
		e.logger.Info("evicted cache file",
			logging.String("cache", oldest.path),
			logging.String("size", humanize.Bytes(uint64(oldest.size))))
	}

	metrics.CacheSizeBytes.Set(float64(total))
}

func (e *Engine) scanCache() ([]cacheFile, int64) {
	entries, err := os.ReadDir(e.cacheDir)
	if err != nil {
		e.logger.Warn("list cache directory", logging.Error(err))
		return nil, 0
	}

	files := make([]cacheFile, 0, len(entries))
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, cacheFile{
			path:    filepath.Join(e.cacheDir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})
	return files, total
}
