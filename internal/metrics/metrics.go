package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_server_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_server_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Transcode cache metrics
var (
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_server_cache_hits_total",
			Help: "Cached audio files served without extraction",
		},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_server_extractions_total",
			Help: "Audio extraction subprocess invocations by result",
		},
		[]string{"status"},
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_server_extraction_duration_seconds",
			Help:    "Audio extraction duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_server_probes_total",
			Help: "ffprobe invocations by result",
		},
		[]string{"status"},
	)

	EvictedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_server_evicted_bytes_total",
			Help: "Bytes removed from the audio cache by the LRU sweep",
		},
	)

	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_server_cache_size_bytes",
			Help: "Total size of the audio cache directory after the last sweep",
		},
	)
)
